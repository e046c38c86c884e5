package models

import "time"

const (
	EventTypeValidationCheck = "validation_check"
	EventTypeStripeAPICall   = "stripe_api_call"
	EventTypeRedirect        = "redirect"
	EventTypeError           = "error"
)

const (
	EventStatusSuccess = "success"
	EventStatusFailure = "failure"
	EventStatusError   = "error"
)

// SubscriptionEvent is an audit row for the subscription pipeline: upstream
// API calls with latency, issued redirects, validation checks and errors.
// Inserts are best-effort and never fail the operation they describe.
type SubscriptionEvent struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	EventType        string    `gorm:"type:varchar(32);not null;index:idx_subscription_events_type_created,priority:1" json:"event_type"`
	EventStatus      string    `gorm:"type:varchar(16);not null;index" json:"event_status"`
	UserID           string    `gorm:"type:varchar(191);not null;default:''" json:"user_id"`
	UserEmail        string    `gorm:"type:varchar(255);not null;default:''" json:"user_email"`
	StripeCustomerID string    `gorm:"type:varchar(191);not null;default:''" json:"stripe_customer_id"`
	DetailsJSON      string    `gorm:"type:longtext" json:"details_json"`
	ErrorMessage     string    `gorm:"type:text" json:"error_message"`
	ResponseTimeMs   float64   `gorm:"default:0" json:"response_time_ms"`
	CreatedAt        time.Time `gorm:"autoCreateTime;index:idx_subscription_events_type_created,priority:2" json:"created_at"`
}

func (SubscriptionEvent) TableName() string {
	return "subscription_events"
}
