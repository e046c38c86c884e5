package repository

import (
	"sync"

	"gorm.io/gorm"
)

// Factory manages repository instances and ensures they are singletons
type Factory struct {
	db    *gorm.DB
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{
		db: db,
	}
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}

// GetSubscriptionUserRepository returns the subscriber registry instance
func (f *Factory) GetSubscriptionUserRepository() SubscriptionUserRepository {
	return f.GetRepositories().SubscriptionUser
}

// GetSubscriptionEventRepository returns the audit event repository instance
func (f *Factory) GetSubscriptionEventRepository() SubscriptionEventRepository {
	return f.GetRepositories().SubscriptionEvent
}

// GetAppSettingRepository returns the settings repository instance
func (f *Factory) GetAppSettingRepository() AppSettingRepository {
	return f.GetRepositories().AppSetting
}

// GetClientSubscriptionRepository returns the client handoff repository instance
func (f *Factory) GetClientSubscriptionRepository() ClientSubscriptionRepository {
	return f.GetRepositories().ClientSubscription
}

// Global factory instance
var globalFactory *Factory
var factoryOnce sync.Once

// InitializeFactory initializes the global repository factory
func InitializeFactory(db *gorm.DB) {
	factoryOnce.Do(func() {
		globalFactory = NewFactory(db)
	})
}

// GetGlobalFactory returns the global repository factory instance
func GetGlobalFactory() *Factory {
	if globalFactory == nil {
		panic("Repository factory not initialized. Call InitializeFactory first.")
	}
	return globalFactory
}

// GetGlobalRepositories returns the global repositories instance
func GetGlobalRepositories() *Repositories {
	return GetGlobalFactory().GetRepositories()
}
