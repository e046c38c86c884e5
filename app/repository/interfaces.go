package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/arclightai/arclight-admin/app/models"
)

// SubscriptionUserRepository defines the database operations for the
// subscriber registry. All mutations are idempotent; registration status
// never moves backward regardless of call order.
type SubscriptionUserRepository interface {
	// CreateIfNotExists inserts the record unless one already exists for the
	// subscription ID. It returns whether a row was created and the stored
	// record either way.
	CreateIfNotExists(user *models.SubscriptionUser) (bool, *models.SubscriptionUser, error)
	// UpsertPaymentCompleted merges the email fields for the subscription ID.
	// A new row starts at PAYMENT_COMPLETED; an existing row keeps its
	// current status.
	UpsertPaymentCompleted(user *models.SubscriptionUser) error
	GetBySubscriptionID(subscriptionID string) (*models.SubscriptionUser, error)
	// AdvanceStatus moves the record to next only if that is a forward
	// transition, and reports whether the row changed.
	AdvanceStatus(subscriptionID, next string) (bool, error)
	// LinkAccount stores the identity-provider subject (and email when
	// known) and advances the record to AUTH0_ACCOUNT_LINKED in one
	// transaction.
	LinkAccount(subscriptionID, auth0ID, email string) error
}

// EventTally is one aggregation bucket of the audit log.
type EventTally struct {
	EventType   string
	EventStatus string
	Count       int64
}

// SubscriptionEventRepository defines operations for the audit event log.
type SubscriptionEventRepository interface {
	Create(event *models.SubscriptionEvent) error
	ListRecent(since time.Time, eventType string, limit int) ([]models.SubscriptionEvent, error)
	CountsSince(since time.Time) ([]EventTally, error)
	CountByType(eventType string, since, until time.Time) (int64, error)
	AverageStripeLatency(since time.Time) (float64, error)
}

// AppSettingRepository manages the single-row validation policy record.
type AppSettingRepository interface {
	Get() (*models.AppSetting, error)
	Save(setting *models.AppSetting) error
}

// ClientSubscriptionRepository writes into the client application's
// subscriptions table. The client app owns that schema; this side only
// upserts handoff rows keyed by the provider subscription ID.
type ClientSubscriptionRepository interface {
	Upsert(sub *models.ClientSubscription) error
	GetByPaymentMethod(subscriptionID string) (*models.ClientSubscription, error)
}

// Repositories bundles all repository instances
type Repositories struct {
	SubscriptionUser   SubscriptionUserRepository
	SubscriptionEvent  SubscriptionEventRepository
	AppSetting         AppSettingRepository
	ClientSubscription ClientSubscriptionRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		SubscriptionUser:   NewSubscriptionUserRepository(db),
		SubscriptionEvent:  NewSubscriptionEventRepository(db),
		AppSetting:         NewAppSettingRepository(db),
		ClientSubscription: NewClientSubscriptionRepository(db),
	}
}
