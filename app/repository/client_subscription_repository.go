package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/arclightai/arclight-admin/app/models"
)

type clientSubscriptionRepository struct {
	db *gorm.DB
}

// NewClientSubscriptionRepository creates a new client handoff repository
func NewClientSubscriptionRepository(db *gorm.DB) ClientSubscriptionRepository {
	return &clientSubscriptionRepository{db: db}
}

// Upsert inserts the handoff row or refreshes it when one already exists
// for the same provider subscription ID.
func (r *clientSubscriptionRepository) Upsert(sub *models.ClientSubscription) error {
	if sub.Status == "" {
		sub.Status = models.ClientSubscriptionStatusActive
	}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "payment_method"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id", "status", "payment_status", "auto_renew",
			"start_date", "end_date", "updated_at",
		}),
	}).Create(sub).Error
}

func (r *clientSubscriptionRepository) GetByPaymentMethod(subscriptionID string) (*models.ClientSubscription, error) {
	var sub models.ClientSubscription
	if err := r.db.Where("payment_method = ?", subscriptionID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}
