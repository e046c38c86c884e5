package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"

	"github.com/arclightai/arclight-admin/app/models"
	"github.com/arclightai/arclight-admin/app/repository"
)

// ErrSubscriberNotFound marks operations against a subscription ID that has
// no subscriber record yet.
var ErrSubscriberNotFound = errors.New("subscriber not found")

// Redirect reasons handed back to the browser-facing error endpoint. Coarse
// by design: they classify the failure without exposing internals.
const (
	ReasonNotSubscription = "not_subscription"
	ReasonNoSubscription  = "no_subscription"
)

// SubscriberStore is the durable registry the processor mutates.
type SubscriberStore interface {
	CreateIfNotExists(user *models.SubscriptionUser) (bool, *models.SubscriptionUser, error)
	UpsertPaymentCompleted(user *models.SubscriptionUser) error
	GetBySubscriptionID(subscriptionID string) (*models.SubscriptionUser, error)
	AdvanceStatus(subscriptionID, next string) (bool, error)
	LinkAccount(subscriptionID, auth0ID, email string) error
}

// SettingsStore reads the validation policy singleton.
type SettingsStore interface {
	Get() (*models.AppSetting, error)
}

// HandoffStore writes subscription rows into the client application's table
// once an account is linked.
type HandoffStore interface {
	Upsert(sub *models.ClientSubscription) error
}

// StripeGateway is the slice of the payment provider API the processor needs.
type StripeGateway interface {
	GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*StripeSubscription, error)
}

// InviteSender dispatches account invitations through the identity provider.
type InviteSender interface {
	SendInvitation(ctx context.Context, email, subscriptionID string) error
}

// EventRecorder receives audit events. Recording is always best-effort.
type EventRecorder interface {
	RecordStripeAPICall(operation string, elapsedMs float64, callErr error)
	RecordValidationCheck(userEmail string, ok bool, details string)
	RecordError(scope string, callErr error, userEmail string)
}

// Service drives the subscription lifecycle: webhook processing, checkout
// success resolution, manual recovery and account linking.
type Service struct {
	subscribers SubscriberStore
	settings    SettingsStore
	handoff     HandoffStore
	gateway     StripeGateway
	invites     InviteSender
	recorder    EventRecorder
}

// NewService creates a billing service from injected collaborators.
func NewService(
	subscribers SubscriberStore,
	settings SettingsStore,
	handoff HandoffStore,
	gateway StripeGateway,
	invites InviteSender,
	recorder EventRecorder,
) *Service {
	return &Service{
		subscribers: subscribers,
		settings:    settings,
		handoff:     handoff,
		gateway:     gateway,
		invites:     invites,
		recorder:    recorder,
	}
}

// NewServiceFromRepositories wires the service against the repository bundle.
func NewServiceFromRepositories(
	repos *repository.Repositories,
	gateway StripeGateway,
	invites InviteSender,
	recorder EventRecorder,
) *Service {
	return NewService(
		repos.SubscriptionUser,
		repos.AppSetting,
		repos.ClientSubscription,
		gateway,
		invites,
		recorder,
	)
}

// WebhookOutcome summarizes what a processed webhook event did.
type WebhookOutcome struct {
	EventType      string
	Handled        bool
	SessionID      string
	SubscriptionID string
	Created        bool
	Gift           bool
	InviteSent     bool
}

// ProcessWebhookEvent applies the business effects of a verified webhook
// event. Event types outside the handled set are acknowledged without state
// change so the provider does not redeliver them forever.
func (s *Service) ProcessWebhookEvent(ctx context.Context, event *stripe.Event) (*WebhookOutcome, error) {
	if event == nil {
		return nil, errors.New("event is required")
	}

	outcome := &WebhookOutcome{EventType: string(event.Type)}
	switch string(event.Type) {
	case EventTypeCheckoutCompleted:
		outcome.Handled = true
		if err := s.handleCheckoutCompleted(ctx, event, outcome); err != nil {
			return outcome, err
		}
	default:
		log.Info().
			Str("event_id", event.ID).
			Str("event_type", string(event.Type)).
			Msg("acknowledging unhandled webhook event type")
	}
	return outcome, nil
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, event *stripe.Event, outcome *WebhookOutcome) error {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return errors.New("event carries no data object")
	}
	var payload struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(event.Data.Raw, &payload); err != nil {
		return fmt.Errorf("decode checkout session payload: %w", err)
	}
	if payload.ID == "" {
		return errors.New("checkout session payload carries no id")
	}
	outcome.SessionID = payload.ID

	// The webhook payload's nested session may be partial. Always re-read
	// the session from the API before acting on it.
	session, err := s.fetchCheckoutSession(ctx, payload.ID)
	if err != nil {
		return err
	}

	switch session.Mode {
	case CheckoutModePayment:
		return s.recordOneTimePayment(session, outcome)
	case CheckoutModeSubscription:
		return s.recordSubscription(ctx, session, outcome)
	default:
		log.Warn().
			Str("session_id", session.ID).
			Str("mode", session.Mode).
			Msg("checkout session has unexpected mode, acknowledging without state change")
		return nil
	}
}

// recordOneTimePayment stores a one-time purchase keyed by its payment
// intent. No invitation is sent for this mode.
func (s *Service) recordOneTimePayment(session *CheckoutSession, outcome *WebhookOutcome) error {
	paymentIntent := session.PaymentIntent.String()
	if paymentIntent == "" {
		return fmt.Errorf("payment mode session %s carries no payment intent", session.ID)
	}
	outcome.SubscriptionID = paymentIntent
	outcome.Gift = session.IsGift()

	user := &models.SubscriptionUser{
		SubscriptionID: paymentIntent,
		Email:          resolveAccountEmail(session),
		PurchaserEmail: session.PurchaserEmail(),
	}
	created, _, err := s.subscribers.CreateIfNotExists(user)
	if err != nil {
		return fmt.Errorf("store one-time payment %s: %w", paymentIntent, err)
	}
	outcome.Created = created
	return nil
}

func (s *Service) recordSubscription(ctx context.Context, session *CheckoutSession, outcome *WebhookOutcome) error {
	subscriptionID := session.SubscriptionID()
	if subscriptionID == "" {
		return fmt.Errorf("subscription mode session %s carries no subscription", session.ID)
	}
	outcome.SubscriptionID = subscriptionID
	outcome.Gift = session.IsGift()

	user := &models.SubscriptionUser{
		SubscriptionID: subscriptionID,
		Email:          resolveAccountEmail(session),
		PurchaserEmail: session.PurchaserEmail(),
	}
	created, stored, err := s.subscribers.CreateIfNotExists(user)
	if err != nil {
		return fmt.Errorf("store subscriber %s: %w", subscriptionID, err)
	}
	outcome.Created = created

	if !session.IsGift() {
		// The recipient signs in through the authorize redirect instead.
		return nil
	}

	recipient := session.RecipientEmail()
	if recipient == "" {
		log.Warn().
			Str("subscription_id", subscriptionID).
			Msg("gift session carries an empty recipient, skipping invitation")
		return nil
	}
	if stored.RegistrationStatus != models.RegistrationPaymentCompleted {
		// Redelivery after the invitation already went out.
		return nil
	}
	outcome.InviteSent = s.sendInvitation(ctx, recipient, subscriptionID)
	return nil
}

// sendInvitation dispatches an invitation and advances the registration
// status on success. Failures are logged and recorded, never propagated:
// the payment state is already durable and must not trigger redelivery.
func (s *Service) sendInvitation(ctx context.Context, email, subscriptionID string) bool {
	if err := s.invites.SendInvitation(ctx, email, subscriptionID); err != nil {
		log.Error().Err(err).
			Str("subscription_id", subscriptionID).
			Msg("failed to send account invitation")
		s.recorder.RecordError("auth0_invitation", err, email)
		return false
	}
	advanced, err := s.subscribers.AdvanceStatus(subscriptionID, models.RegistrationInviteSent)
	if err != nil {
		log.Error().Err(err).
			Str("subscription_id", subscriptionID).
			Msg("failed to advance registration status after invitation")
		return true
	}
	if !advanced {
		log.Debug().
			Str("subscription_id", subscriptionID).
			Msg("registration status already past invitation stage")
	}
	return true
}

// CheckoutSuccessResult tells the HTTP layer where to send the browser
// after a completed checkout.
type CheckoutSuccessResult struct {
	Session        *CheckoutSession
	SubscriptionID string
	Gift           bool
	InviteSent     bool

	// FailureReason, when set, routes the browser to the error endpoint.
	FailureReason string
}

// ResolveCheckoutSuccess handles the browser's return from checkout. The
// session is re-read from the API and the subscriber record upserted, since
// the success redirect can arrive before or instead of the webhook.
func (s *Service) ResolveCheckoutSuccess(ctx context.Context, sessionID string) (*CheckoutSuccessResult, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, errors.New("session id is required")
	}

	session, err := s.fetchCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	result := &CheckoutSuccessResult{Session: session}
	if session.Mode != CheckoutModeSubscription {
		result.FailureReason = ReasonNotSubscription
		return result, nil
	}
	subscriptionID := session.SubscriptionID()
	if subscriptionID == "" {
		result.FailureReason = ReasonNoSubscription
		return result, nil
	}
	result.SubscriptionID = subscriptionID
	result.Gift = session.IsGift()

	user := &models.SubscriptionUser{
		SubscriptionID: subscriptionID,
		Email:          resolveAccountEmail(session),
		PurchaserEmail: session.PurchaserEmail(),
	}
	if err := s.subscribers.UpsertPaymentCompleted(user); err != nil {
		return nil, fmt.Errorf("store subscriber %s: %w", subscriptionID, err)
	}

	if session.IsGift() {
		recipient := session.RecipientEmail()
		stored, err := s.subscribers.GetBySubscriptionID(subscriptionID)
		if err != nil {
			log.Error().Err(err).
				Str("subscription_id", subscriptionID).
				Msg("could not reload subscriber after upsert")
		} else if recipient != "" && stored.RegistrationStatus == models.RegistrationPaymentCompleted {
			result.InviteSent = s.sendInvitation(ctx, recipient, subscriptionID)
		}
	}
	return result, nil
}

// RecoverOutcome reports what a manual recovery run did.
type RecoverOutcome struct {
	SubscriptionID string
	Created        bool
	InviteSent     bool
	Status         string
}

// RecoverSubscription re-triggers invitation issuance for a subscription
// that exists upstream. Admin-only; unlike webhook processing, invitation
// failures here are surfaced so the operator sees them.
func (s *Service) RecoverSubscription(ctx context.Context, subscriptionID, email string) (*RecoverOutcome, error) {
	subscriptionID = strings.TrimSpace(subscriptionID)
	email = strings.TrimSpace(email)
	if subscriptionID == "" || email == "" {
		return nil, errors.New("subscription_id and email are required")
	}

	start := time.Now()
	_, err := s.gateway.GetSubscription(ctx, subscriptionID)
	s.recorder.RecordStripeAPICall("subscription_retrieve", elapsedMs(start), err)
	if err != nil {
		return nil, fmt.Errorf("verify subscription %s: %w", subscriptionID, err)
	}

	created, stored, err := s.subscribers.CreateIfNotExists(&models.SubscriptionUser{
		SubscriptionID: subscriptionID,
		Email:          email,
	})
	if err != nil {
		return nil, fmt.Errorf("store subscriber %s: %w", subscriptionID, err)
	}
	if !created && stored.Email != email {
		stored.Email = email
		if err := s.subscribers.UpsertPaymentCompleted(stored); err != nil {
			return nil, fmt.Errorf("update subscriber email %s: %w", subscriptionID, err)
		}
	}

	if err := s.invites.SendInvitation(ctx, email, subscriptionID); err != nil {
		s.recorder.RecordError("auth0_invitation", err, email)
		return nil, fmt.Errorf("send invitation: %w", err)
	}
	advanced, err := s.subscribers.AdvanceStatus(subscriptionID, models.RegistrationInviteSent)
	if err != nil {
		return nil, fmt.Errorf("advance registration status %s: %w", subscriptionID, err)
	}

	status := stored.RegistrationStatus
	if advanced {
		status = models.RegistrationInviteSent
	}
	return &RecoverOutcome{
		SubscriptionID: subscriptionID,
		Created:        created,
		InviteSent:     true,
		Status:         status,
	}, nil
}

// LinkResult reports how the HTTP layer should finish the callback flow.
type LinkResult struct {
	// RedirectOverride, when set, sends the browser to the configured
	// landing page instead of the dashboard.
	RedirectOverride string
}

// LinkSubscriberAccount binds an identity provider subject to the
// subscriber record, hands the subscription off to the client
// application's table and applies the validation policy. The handoff is
// best-effort; only the registry write can fail the flow.
func (s *Service) LinkSubscriberAccount(ctx context.Context, subscriptionID, auth0ID, email string) (*LinkResult, error) {
	subscriptionID = strings.TrimSpace(subscriptionID)
	auth0ID = strings.TrimSpace(auth0ID)
	if subscriptionID == "" || auth0ID == "" {
		return nil, errors.New("subscription_id and identity provider id are required")
	}

	if err := s.subscribers.LinkAccount(subscriptionID, auth0ID, strings.TrimSpace(email)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSubscriberNotFound, subscriptionID)
		}
		return nil, fmt.Errorf("link subscriber %s: %w", subscriptionID, err)
	}

	s.syncClientSubscription(ctx, subscriptionID, auth0ID, email)

	return &LinkResult{
		RedirectOverride: s.validationRedirect(ctx, subscriptionID, email),
	}, nil
}

// syncClientSubscription merges a subscriptions row for the client app so
// it sees the active subscription immediately after linking. Failures are
// logged and recorded, never propagated.
func (s *Service) syncClientSubscription(ctx context.Context, subscriptionID, auth0ID, email string) {
	start := time.Now()
	sub, err := s.gateway.GetSubscription(ctx, subscriptionID)
	s.recorder.RecordStripeAPICall("subscription_retrieve", elapsedMs(start), err)
	if err != nil {
		log.Error().Err(err).
			Str("subscription_id", subscriptionID).
			Msg("could not load subscription for client handoff")
		s.recorder.RecordError("subscription_handoff", err, email)
		return
	}

	row := &models.ClientSubscription{
		UserID:        auth0ID,
		PaymentMethod: subscriptionID,
		Status:        sub.Status,
		PaymentStatus: models.ClientSubscriptionPaymentStatusPaid,
		AutoRenew:     true,
		StartDate:     time.Now(),
	}
	if sub.StartDate > 0 {
		row.StartDate = time.Unix(sub.StartDate, 0)
	}
	if sub.CurrentPeriodEnd > 0 {
		end := time.Unix(sub.CurrentPeriodEnd, 0)
		row.EndDate = &end
	}
	if err := s.handoff.Upsert(row); err != nil {
		log.Error().Err(err).
			Str("subscription_id", subscriptionID).
			Msg("failed to sync subscription into the client application")
		s.recorder.RecordError("subscription_handoff", err, email)
	}
}

// validationRedirect applies the optional validation policy after linking.
// It returns the landing page URL when the policy is enabled, the
// subscription cannot be confirmed as active and a landing page is
// configured; empty otherwise.
func (s *Service) validationRedirect(ctx context.Context, subscriptionID, email string) string {
	setting, err := s.settings.Get()
	if err != nil {
		log.Warn().Err(err).Msg("could not load validation policy, skipping check")
		return ""
	}
	if !setting.SubscriptionValidationEnabled {
		return ""
	}

	start := time.Now()
	sub, err := s.gateway.GetSubscription(ctx, subscriptionID)
	s.recorder.RecordStripeAPICall("subscription_retrieve", elapsedMs(start), err)
	if err != nil {
		log.Warn().Err(err).
			Str("subscription_id", subscriptionID).
			Msg("validation check could not confirm subscription")
		s.recorder.RecordValidationCheck(email, false, "subscription lookup failed")
		return setting.SubscriptionLandingPageURL
	}

	valid := sub.Status == "active" || sub.Status == "trialing"
	s.recorder.RecordValidationCheck(email, valid, "subscription status "+sub.Status)
	if !valid {
		return setting.SubscriptionLandingPageURL
	}
	return ""
}

func (s *Service) fetchCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	start := time.Now()
	session, err := s.gateway.GetCheckoutSession(ctx, sessionID)
	s.recorder.RecordStripeAPICall("checkout_session_retrieve", elapsedMs(start), err)
	if err != nil {
		return nil, fmt.Errorf("retrieve checkout session %s: %w", sessionID, err)
	}
	return session, nil
}

// resolveAccountEmail picks the email the account should be registered
// under: the gift recipient when present, the purchaser otherwise.
func resolveAccountEmail(session *CheckoutSession) string {
	if session.IsGift() && session.RecipientEmail() != "" {
		return session.RecipientEmail()
	}
	return session.PurchaserEmail()
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
