package models

import "time"

// ClientSubscriptionStatusActive is the fallback status written on handoff
// when the provider does not report one.
const ClientSubscriptionStatusActive = "active"

// ClientSubscriptionPaymentStatusPaid marks handoff rows; anything further
// is the client application's business.
const ClientSubscriptionPaymentStatusPaid = "paid"

// ClientSubscription mirrors a row in the client application's
// subscriptions table. The table is owned and migrated by the client app;
// this service only inserts or refreshes handoff rows after account
// linking, so the struct carries just the columns it writes. The provider
// subscription ID travels in payment_method, the identity provider subject
// in user_id.
type ClientSubscription struct {
	ID            uint       `gorm:"primarykey" json:"id"`
	UserID        string     `gorm:"column:user_id;type:varchar(191);index" json:"user_id"`
	PaymentMethod string     `gorm:"column:payment_method;type:varchar(191);uniqueIndex" json:"payment_method"`
	Status        string     `gorm:"type:varchar(32);default:'active'" json:"status"`
	PaymentStatus string     `gorm:"column:payment_status;type:varchar(32);default:''" json:"payment_status"`
	AutoRenew     bool       `gorm:"column:auto_renew;default:true" json:"auto_renew"`
	StartDate     time.Time  `gorm:"column:start_date" json:"start_date"`
	EndDate       *time.Time `gorm:"column:end_date" json:"end_date"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName overrides the table name
func (ClientSubscription) TableName() string {
	return "subscriptions"
}
