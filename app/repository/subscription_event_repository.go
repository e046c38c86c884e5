package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/arclightai/arclight-admin/app/models"
)

// subscriptionEventRepository implements SubscriptionEventRepository with GORM
type subscriptionEventRepository struct {
	db *gorm.DB
}

// NewSubscriptionEventRepository creates a new audit event repository
func NewSubscriptionEventRepository(db *gorm.DB) SubscriptionEventRepository {
	return &subscriptionEventRepository{db: db}
}

func (r *subscriptionEventRepository) Create(event *models.SubscriptionEvent) error {
	return r.db.Create(event).Error
}

func (r *subscriptionEventRepository) ListRecent(since time.Time, eventType string, limit int) ([]models.SubscriptionEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := r.db.Where("created_at >= ?", since)
	if eventType != "" {
		q = q.Where("event_type = ?", eventType)
	}
	var events []models.SubscriptionEvent
	err := q.Order("created_at DESC").Limit(limit).Find(&events).Error
	return events, err
}

func (r *subscriptionEventRepository) CountsSince(since time.Time) ([]EventTally, error) {
	var tallies []EventTally
	err := r.db.Model(&models.SubscriptionEvent{}).
		Select("event_type, event_status, COUNT(*) as count").
		Where("created_at >= ?", since).
		Group("event_type").Group("event_status").
		Scan(&tallies).Error
	return tallies, err
}

func (r *subscriptionEventRepository) CountByType(eventType string, since, until time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.SubscriptionEvent{}).
		Where("event_type = ? AND created_at >= ? AND created_at < ?", eventType, since, until).
		Count(&count).Error
	return count, err
}

func (r *subscriptionEventRepository) AverageStripeLatency(since time.Time) (float64, error) {
	var avg *float64
	err := r.db.Model(&models.SubscriptionEvent{}).
		Select("AVG(response_time_ms)").
		Where("event_type = ? AND created_at >= ?", models.EventTypeStripeAPICall, since).
		Scan(&avg).Error
	if err != nil || avg == nil {
		return 0, err
	}
	return *avg, nil
}
