package models

import "time"

// Registration progress for a subscriber. Transitions only ever move forward.
const (
	RegistrationPaymentCompleted = "PAYMENT_COMPLETED"
	RegistrationInviteSent       = "AUTH0_INVITE_SENT"
	RegistrationAccountLinked    = "AUTH0_ACCOUNT_LINKED"
)

// SubscriptionUser is the registry record for one purchased subscription.
// The key is the provider's subscription ID, or the payment-intent ID for
// one-time purchases. Email and purchaser email differ for gifted
// subscriptions.
type SubscriptionUser struct {
	SubscriptionID     string    `gorm:"type:varchar(191);primaryKey" json:"subscription_id"`
	Email              string    `gorm:"type:varchar(255);not null;default:''" json:"email"`
	PurchaserEmail     string    `gorm:"type:varchar(255);not null;default:''" json:"purchaser_email"`
	Auth0ID            string    `gorm:"type:varchar(191);not null;default:'';index" json:"auth0_id"`
	RegistrationStatus string    `gorm:"type:varchar(32);not null;default:'PAYMENT_COMPLETED';index" json:"registration_status"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SubscriptionUser) TableName() string {
	return "subscription_users"
}

// RegistrationStatusRank orders the registration states for monotonic
// comparisons. Unknown values rank below every valid state.
func RegistrationStatusRank(status string) int {
	switch status {
	case RegistrationPaymentCompleted:
		return 0
	case RegistrationInviteSent:
		return 1
	case RegistrationAccountLinked:
		return 2
	default:
		return -1
	}
}

// AdvanceStatus moves the record to next if that is a forward transition and
// reports whether anything changed. Backward or sideways moves are ignored.
func (u *SubscriptionUser) AdvanceStatus(next string) bool {
	if RegistrationStatusRank(next) <= RegistrationStatusRank(u.RegistrationStatus) {
		return false
	}
	u.RegistrationStatus = next
	return true
}
