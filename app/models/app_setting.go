package models

import "time"

// AppSettingRowID is the fixed primary key of the single settings row.
const AppSettingRowID = 1

// AppSetting is the single-row validation policy record. The subscription
// pipeline only reads it; writes go through the admin settings endpoint.
type AppSetting struct {
	ID                            uint      `gorm:"primaryKey" json:"id"`
	SubscriptionValidationEnabled bool      `gorm:"not null;default:false" json:"subscription_validation_enabled"`
	SubscriptionLandingPageURL    string    `gorm:"type:varchar(512);not null;default:''" json:"subscription_landing_page_url"`
	CreatedAt                     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (AppSetting) TableName() string {
	return "app_settings"
}
