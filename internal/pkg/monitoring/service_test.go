package monitoring

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arclightai/arclight-admin/app/models"
	"github.com/arclightai/arclight-admin/app/repository"
)

type fakeEventRepo struct {
	events    []models.SubscriptionEvent
	createErr error

	lastListSince time.Time
	lastListType  string
	lastListLimit int
}

func (f *fakeEventRepo) Create(event *models.SubscriptionEvent) error {
	if f.createErr != nil {
		return f.createErr
	}
	stored := *event
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	f.events = append(f.events, stored)
	return nil
}

func (f *fakeEventRepo) ListRecent(since time.Time, eventType string, limit int) ([]models.SubscriptionEvent, error) {
	f.lastListSince = since
	f.lastListType = eventType
	f.lastListLimit = limit

	var out []models.SubscriptionEvent
	for _, e := range f.events {
		if e.CreatedAt.After(since) && (eventType == "" || e.EventType == eventType) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEventRepo) CountsSince(since time.Time) ([]repository.EventTally, error) {
	counts := map[[2]string]int64{}
	for _, e := range f.events {
		if e.CreatedAt.After(since) {
			counts[[2]string{e.EventType, e.EventStatus}]++
		}
	}
	var out []repository.EventTally
	for key, count := range counts {
		out = append(out, repository.EventTally{EventType: key[0], EventStatus: key[1], Count: count})
	}
	return out, nil
}

func (f *fakeEventRepo) CountByType(eventType string, since, until time.Time) (int64, error) {
	var count int64
	for _, e := range f.events {
		if e.EventType == eventType && e.CreatedAt.After(since) && !e.CreatedAt.After(until) {
			count++
		}
	}
	return count, nil
}

func (f *fakeEventRepo) AverageStripeLatency(since time.Time) (float64, error) {
	var sum float64
	var count int
	for _, e := range f.events {
		if e.EventType == models.EventTypeStripeAPICall && e.CreatedAt.After(since) {
			sum += e.ResponseTimeMs
			count++
		}
	}
	if count == 0 {
		return 0, nil
	}
	return sum / float64(count), nil
}

func (f *fakeEventRepo) seed(eventType, status string, age time.Duration, latencyMs float64) {
	f.events = append(f.events, models.SubscriptionEvent{
		EventType:      eventType,
		EventStatus:    status,
		ResponseTimeMs: latencyMs,
		CreatedAt:      time.Now().Add(-age),
	})
}

func TestRecordStripeAPICall(t *testing.T) {
	repo := &fakeEventRepo{}
	svc := NewService(repo)

	svc.RecordStripeAPICall("checkout_session_retrieve", 123.4, nil)
	svc.RecordStripeAPICall("subscription_retrieve", 55.0, errors.New("connection reset"))

	require.Len(t, repo.events, 2)

	ok := repo.events[0]
	assert.Equal(t, models.EventTypeStripeAPICall, ok.EventType)
	assert.Equal(t, models.EventStatusSuccess, ok.EventStatus)
	assert.Equal(t, 123.4, ok.ResponseTimeMs)
	assert.Contains(t, ok.DetailsJSON, "checkout_session_retrieve")

	failed := repo.events[1]
	assert.Equal(t, models.EventStatusFailure, failed.EventStatus)
	assert.Equal(t, "connection reset", failed.ErrorMessage)
}

func TestRecordValidationCheckAndError(t *testing.T) {
	repo := &fakeEventRepo{}
	svc := NewService(repo)

	svc.RecordValidationCheck("user@example.com", false, "subscription status canceled")
	svc.RecordError("auth0_invitation", errors.New("rate limited"), "user@example.com")

	require.Len(t, repo.events, 2)
	assert.Equal(t, models.EventStatusFailure, repo.events[0].EventStatus)
	assert.Equal(t, "user@example.com", repo.events[0].UserEmail)
	assert.Equal(t, models.EventTypeError, repo.events[1].EventType)
	assert.Equal(t, "rate limited", repo.events[1].ErrorMessage)
}

func TestRecordingIsBestEffort(t *testing.T) {
	repo := &fakeEventRepo{createErr: errors.New("table gone")}
	svc := NewService(repo)

	// Must not panic or surface the insert failure.
	svc.RecordStripeAPICall("checkout_session_retrieve", 1, nil)
	svc.RecordRedirect("auth0|abc", "user@example.com", "https://example.com/welcome")
}

func TestRecentEventsDefaults(t *testing.T) {
	repo := &fakeEventRepo{}
	svc := NewService(repo)

	_, err := svc.RecentEvents(0, models.EventTypeRedirect, 50)
	require.NoError(t, err)

	assert.Equal(t, models.EventTypeRedirect, repo.lastListType)
	assert.Equal(t, 50, repo.lastListLimit)
	assert.WithinDuration(t, time.Now().Add(-24*time.Hour), repo.lastListSince, time.Minute)
}

func TestStatsBreakdown(t *testing.T) {
	repo := &fakeEventRepo{}
	repo.seed(models.EventTypeStripeAPICall, models.EventStatusSuccess, time.Hour, 100)
	repo.seed(models.EventTypeStripeAPICall, models.EventStatusSuccess, 2*time.Hour, 200)
	repo.seed(models.EventTypeStripeAPICall, models.EventStatusFailure, 3*time.Hour, 300)
	repo.seed(models.EventTypeValidationCheck, models.EventStatusSuccess, time.Hour, 0)
	repo.seed(models.EventTypeError, models.EventStatusError, time.Hour, 0)
	// Outside the window, must not count.
	repo.seed(models.EventTypeStripeAPICall, models.EventStatusFailure, 48*time.Hour, 900)

	svc := NewService(repo)
	stats, err := svc.Stats(24)
	require.NoError(t, err)

	assert.Equal(t, 24, stats.WindowHours)

	stripe := stats.Events[models.EventTypeStripeAPICall]
	assert.Equal(t, int64(3), stripe.Total)
	assert.Equal(t, int64(2), stripe.Success)
	assert.Equal(t, int64(1), stripe.Failure)

	assert.InDelta(t, 1.0/3.0, stats.StripeFailureRate, 0.001)
	assert.InDelta(t, 200, stats.AvgStripeLatencyMs, 0.001)

	errorsBucket := stats.Events[models.EventTypeError]
	assert.Equal(t, int64(1), errorsBucket.Errors)

	assert.Empty(t, stats.Alerts)
}

func TestStatsStripeFailureAlert(t *testing.T) {
	repo := &fakeEventRepo{}
	for i := 0; i < 8; i++ {
		repo.seed(models.EventTypeStripeAPICall, models.EventStatusSuccess, time.Minute, 100)
	}
	repo.seed(models.EventTypeStripeAPICall, models.EventStatusFailure, time.Minute, 100)
	repo.seed(models.EventTypeStripeAPICall, models.EventStatusFailure, time.Minute, 100)

	svc := NewService(repo)
	stats, err := svc.Stats(24)
	require.NoError(t, err)

	require.Len(t, stats.Alerts, 1)
	assert.Equal(t, "stripe_failure_rate", stats.Alerts[0].Type)
	assert.Equal(t, "high", stats.Alerts[0].Severity)
	assert.Contains(t, stats.Alerts[0].Message, "20.0%")
}

func TestStatsStripeFailureAlertThresholdIsStrict(t *testing.T) {
	// Exactly at the threshold: 1 failure out of 10 is 10%, not above it.
	repo := &fakeEventRepo{}
	for i := 0; i < 9; i++ {
		repo.seed(models.EventTypeStripeAPICall, models.EventStatusSuccess, time.Minute, 100)
	}
	repo.seed(models.EventTypeStripeAPICall, models.EventStatusFailure, time.Minute, 100)

	svc := NewService(repo)
	stats, err := svc.Stats(24)
	require.NoError(t, err)
	assert.Empty(t, stats.Alerts)
}

func TestStatsAlertVolumeGuard(t *testing.T) {
	// Five total calls stay at the volume floor; even all failures must not
	// page anyone.
	repo := &fakeEventRepo{}
	for i := 0; i < 5; i++ {
		repo.seed(models.EventTypeStripeAPICall, models.EventStatusFailure, time.Minute, 100)
	}

	svc := NewService(repo)
	stats, err := svc.Stats(24)
	require.NoError(t, err)
	assert.Empty(t, stats.Alerts)
}

func TestStatsValidationSpikeAlert(t *testing.T) {
	repo := &fakeEventRepo{}
	// Previous fifteen-minute period: 6 checks. Current period: 13.
	for i := 0; i < 6; i++ {
		repo.seed(models.EventTypeValidationCheck, models.EventStatusSuccess, 20*time.Minute, 0)
	}
	for i := 0; i < 13; i++ {
		repo.seed(models.EventTypeValidationCheck, models.EventStatusSuccess, time.Minute, 0)
	}

	svc := NewService(repo)
	stats, err := svc.Stats(24)
	require.NoError(t, err)

	require.Len(t, stats.Alerts, 1)
	assert.Equal(t, "validation_spike", stats.Alerts[0].Type)
	assert.Equal(t, "medium", stats.Alerts[0].Severity)
}

func TestStatsValidationSpikeThresholdIsStrict(t *testing.T) {
	repo := &fakeEventRepo{}
	// Exactly 2.0x must not alert.
	for i := 0; i < 6; i++ {
		repo.seed(models.EventTypeValidationCheck, models.EventStatusSuccess, 20*time.Minute, 0)
	}
	for i := 0; i < 12; i++ {
		repo.seed(models.EventTypeValidationCheck, models.EventStatusSuccess, time.Minute, 0)
	}

	svc := NewService(repo)
	stats, err := svc.Stats(24)
	require.NoError(t, err)
	assert.Empty(t, stats.Alerts)
}
