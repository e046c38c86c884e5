package repository

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/arclightai/arclight-admin/app/models"
)

// subscriptionUserRepository implements SubscriptionUserRepository with GORM
type subscriptionUserRepository struct {
	db *gorm.DB
}

// NewSubscriptionUserRepository creates a new subscriber registry repository
func NewSubscriptionUserRepository(db *gorm.DB) SubscriptionUserRepository {
	return &subscriptionUserRepository{db: db}
}

func (r *subscriptionUserRepository) CreateIfNotExists(user *models.SubscriptionUser) (bool, *models.SubscriptionUser, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "subscription_id"}},
		DoNothing: true,
	}).Create(user)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.SubscriptionUser
	if err := r.db.Where("subscription_id = ?", user.SubscriptionID).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *subscriptionUserRepository) UpsertPaymentCompleted(user *models.SubscriptionUser) error {
	if user.RegistrationStatus == "" {
		user.RegistrationStatus = models.RegistrationPaymentCompleted
	}
	// Status is deliberately not in the update set: an existing row keeps
	// whatever stage it already reached.
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "subscription_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"email",
			"purchaser_email",
			"updated_at",
		}),
	}).Create(user).Error; err != nil {
		return err
	}

	return r.db.Where("subscription_id = ?", user.SubscriptionID).First(user).Error
}

func (r *subscriptionUserRepository) GetBySubscriptionID(subscriptionID string) (*models.SubscriptionUser, error) {
	var user models.SubscriptionUser
	err := r.db.Where("subscription_id = ?", subscriptionID).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *subscriptionUserRepository) AdvanceStatus(subscriptionID, next string) (bool, error) {
	if models.RegistrationStatusRank(next) < 0 {
		return false, fmt.Errorf("unknown registration status %q", next)
	}
	lower := statusesBelow(next)
	if len(lower) == 0 {
		// Nothing ranks below the initial state, so there is nothing to advance.
		return false, nil
	}
	tx := r.db.Model(&models.SubscriptionUser{}).
		Where("subscription_id = ? AND registration_status IN ?", subscriptionID, lower).
		Update("registration_status", next)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *subscriptionUserRepository) LinkAccount(subscriptionID, auth0ID, email string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"auth0_id": auth0ID}
		if email != "" {
			updates["email"] = email
		}
		res := tx.Model(&models.SubscriptionUser{}).
			Where("subscription_id = ?", subscriptionID).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		return tx.Model(&models.SubscriptionUser{}).
			Where("subscription_id = ? AND registration_status IN ?",
				subscriptionID, statusesBelow(models.RegistrationAccountLinked)).
			Update("registration_status", models.RegistrationAccountLinked).Error
	})
}

// statusesBelow returns every status with a strictly lower rank than next.
// The guard keeps concurrent or replayed writes from moving a record back.
func statusesBelow(next string) []string {
	rank := models.RegistrationStatusRank(next)
	if rank < 0 {
		return nil
	}
	all := []string{
		models.RegistrationPaymentCompleted,
		models.RegistrationInviteSent,
		models.RegistrationAccountLinked,
	}
	return all[:rank]
}
