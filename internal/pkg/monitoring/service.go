package monitoring

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/arclightai/arclight-admin/app/models"
	"github.com/arclightai/arclight-admin/app/repository"
)

// Alert thresholds. Volume below minAlertVolume never alerts.
const (
	StripeFailureRateThreshold = 0.1
	ValidationSpikeThreshold   = 2.0

	alertCheckWindow = 15 * time.Minute
	minAlertVolume   = 5
)

// Service records audit events for the subscription pipeline and computes
// windowed statistics over them. Recording never fails the caller.
type Service struct {
	events repository.SubscriptionEventRepository
}

// NewService creates a monitoring service from an injected repository.
func NewService(events repository.SubscriptionEventRepository) *Service {
	return &Service{events: events}
}

// RecordStripeAPICall logs one provider API call with its latency.
func (s *Service) RecordStripeAPICall(operation string, elapsedMs float64, callErr error) {
	event := &models.SubscriptionEvent{
		EventType:      models.EventTypeStripeAPICall,
		EventStatus:    models.EventStatusSuccess,
		DetailsJSON:    detailsJSON(map[string]string{"operation": operation}),
		ResponseTimeMs: elapsedMs,
	}
	if callErr != nil {
		event.EventStatus = models.EventStatusFailure
		event.ErrorMessage = callErr.Error()
	}
	s.insert(event)
}

// RecordValidationCheck logs a subscription validation decision.
func (s *Service) RecordValidationCheck(userEmail string, ok bool, details string) {
	event := &models.SubscriptionEvent{
		EventType:   models.EventTypeValidationCheck,
		EventStatus: models.EventStatusSuccess,
		UserEmail:   userEmail,
		DetailsJSON: detailsJSON(map[string]string{"details": details}),
	}
	if !ok {
		event.EventStatus = models.EventStatusFailure
	}
	s.insert(event)
}

// RecordRedirect logs a browser redirect issued by the pipeline.
func (s *Service) RecordRedirect(userID, userEmail, redirectURL string) {
	s.insert(&models.SubscriptionEvent{
		EventType:   models.EventTypeRedirect,
		EventStatus: models.EventStatusSuccess,
		UserID:      userID,
		UserEmail:   userEmail,
		DetailsJSON: detailsJSON(map[string]string{"redirect_url": redirectURL}),
	})
}

// RecordError logs a pipeline error outside the API call path.
func (s *Service) RecordError(scope string, callErr error, userEmail string) {
	event := &models.SubscriptionEvent{
		EventType:   models.EventTypeError,
		EventStatus: models.EventStatusError,
		UserEmail:   userEmail,
		DetailsJSON: detailsJSON(map[string]string{"scope": scope}),
	}
	if callErr != nil {
		event.ErrorMessage = callErr.Error()
	}
	s.insert(event)
}

// RecentEvents lists audit events from the trailing window, newest first.
func (s *Service) RecentEvents(hours int, eventType string, limit int) ([]models.SubscriptionEvent, error) {
	if hours <= 0 {
		hours = 24
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	return s.events.ListRecent(since, eventType, limit)
}

// TypeBreakdown tallies one event type by status.
type TypeBreakdown struct {
	Total   int64 `json:"total"`
	Success int64 `json:"success"`
	Failure int64 `json:"failure"`
	Errors  int64 `json:"errors"`
}

// Alert is a triggered alert condition.
type Alert struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// Stats are windowed aggregates plus the currently firing alerts.
type Stats struct {
	WindowHours        int                      `json:"window_hours"`
	Events             map[string]TypeBreakdown `json:"events"`
	AvgStripeLatencyMs float64                  `json:"avg_stripe_latency_ms"`
	StripeFailureRate  float64                  `json:"stripe_failure_rate"`
	Alerts             []Alert                  `json:"alerts"`
	CheckedAt          time.Time                `json:"checked_at"`
}

// Stats aggregates the trailing window and evaluates alert conditions over
// the last fifteen minutes.
func (s *Service) Stats(hours int) (*Stats, error) {
	if hours <= 0 {
		hours = 24
	}
	now := time.Now()
	since := now.Add(-time.Duration(hours) * time.Hour)

	tallies, err := s.events.CountsSince(since)
	if err != nil {
		return nil, err
	}
	avg, err := s.events.AverageStripeLatency(since)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		WindowHours:        hours,
		Events:             breakdown(tallies),
		AvgStripeLatencyMs: avg,
		Alerts:             []Alert{},
		CheckedAt:          now,
	}
	if stripe, ok := stats.Events[models.EventTypeStripeAPICall]; ok && stripe.Total > 0 {
		stats.StripeFailureRate = float64(stripe.Failure) / float64(stripe.Total)
	}

	if err := s.evaluateAlerts(now, stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Service) evaluateAlerts(now time.Time, stats *Stats) error {
	checkSince := now.Add(-alertCheckWindow)
	recent, err := s.events.CountsSince(checkSince)
	if err != nil {
		return err
	}
	recentEvents := breakdown(recent)

	if stripe, ok := recentEvents[models.EventTypeStripeAPICall]; ok && stripe.Total > minAlertVolume {
		rate := float64(stripe.Failure) / float64(stripe.Total)
		if rate > StripeFailureRateThreshold {
			stats.Alerts = append(stats.Alerts, Alert{
				Type:     "stripe_failure_rate",
				Severity: "high",
				Message: fmt.Sprintf("Stripe API failure rate is %.1f%% (threshold: %.0f%%)",
					rate*100, StripeFailureRateThreshold*100),
			})
		}
	}

	current := recentEvents[models.EventTypeValidationCheck].Total
	previous, err := s.events.CountByType(models.EventTypeValidationCheck,
		checkSince.Add(-alertCheckWindow), checkSince)
	if err != nil {
		return err
	}
	if previous > minAlertVolume {
		ratio := float64(current) / float64(previous)
		if ratio > ValidationSpikeThreshold {
			stats.Alerts = append(stats.Alerts, Alert{
				Type:     "validation_spike",
				Severity: "medium",
				Message:  fmt.Sprintf("Validation checks spiked %.1fx compared to previous period", ratio),
			})
		}
	}
	return nil
}

func breakdown(tallies []repository.EventTally) map[string]TypeBreakdown {
	out := make(map[string]TypeBreakdown, len(tallies))
	for _, t := range tallies {
		b := out[t.EventType]
		b.Total += t.Count
		switch t.EventStatus {
		case models.EventStatusSuccess:
			b.Success += t.Count
		case models.EventStatusFailure:
			b.Failure += t.Count
		case models.EventStatusError:
			b.Errors += t.Count
		}
		out[t.EventType] = b
	}
	return out
}

func (s *Service) insert(event *models.SubscriptionEvent) {
	if err := s.events.Create(event); err != nil {
		log.Warn().Err(err).
			Str("event_type", event.EventType).
			Msg("could not record audit event")
	}
}

func detailsJSON(details map[string]string) string {
	data, err := json.Marshal(details)
	if err != nil {
		return ""
	}
	return string(data)
}
