package billing

import (
	"encoding/json"
	"strings"
)

// Checkout session modes as sent by the provider.
const (
	CheckoutModeSubscription = "subscription"
	CheckoutModePayment      = "payment"
)

// EventTypeCheckoutCompleted is the only event type that mutates state.
const EventTypeCheckoutCompleted = "checkout.session.completed"

// ExpandableID holds a field the provider serializes either as a bare ID
// string or, when expanded, as a full object. Only the ID is retained.
type ExpandableID string

func (e *ExpandableID) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*e = ""
		return nil
	}
	if data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*e = ExpandableID(id)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*e = ExpandableID(obj.ID)
	return nil
}

func (e ExpandableID) String() string {
	return string(e)
}

// SessionSubscription is the subscription attached to a checkout session.
// Unexpanded payloads carry only the ID string; expanded ones carry the
// fields we need for the downstream record.
type SessionSubscription struct {
	ID                string       `json:"id"`
	Status            string       `json:"status"`
	StartDate         int64        `json:"start_date"`
	CurrentPeriodEnd  int64        `json:"current_period_end"`
	CancelAtPeriodEnd bool         `json:"cancel_at_period_end"`
	Customer          ExpandableID `json:"customer"`
}

func (s *SessionSubscription) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		s.ID = id
		return nil
	}
	type alias SessionSubscription
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*s = SessionSubscription(a)
	return nil
}

// SessionShipping is the checkout session's shipping block. By product
// convention the name field carries the gift recipient's email address.
type SessionShipping struct {
	Name string `json:"name"`
}

// SessionCustomerDetails carries the paying customer's contact data.
type SessionCustomerDetails struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// CheckoutSession is the minimal representation of a provider checkout
// session: just the fields the subscription pipeline reads.
type CheckoutSession struct {
	ID              string                  `json:"id"`
	Mode            string                  `json:"mode"`
	Status          string                  `json:"status"`
	URL             string                  `json:"url"`
	PaymentIntent   ExpandableID            `json:"payment_intent"`
	Customer        ExpandableID            `json:"customer"`
	CustomerEmail   string                  `json:"customer_email"`
	CustomerDetails *SessionCustomerDetails `json:"customer_details"`
	Shipping        *SessionShipping        `json:"shipping"`
	Subscription    *SessionSubscription    `json:"subscription"`
	CreatedAt       int64                   `json:"created"`
}

// IsGift reports whether the session was marked as a gifted subscription.
// The shipping block doubles as the gift marker.
func (cs *CheckoutSession) IsGift() bool {
	return cs.Shipping != nil
}

// RecipientEmail returns the gift recipient's email from the shipping-name
// convention, or empty when the session is not a gift.
func (cs *CheckoutSession) RecipientEmail() string {
	if cs.Shipping == nil {
		return ""
	}
	return strings.TrimSpace(cs.Shipping.Name)
}

// PurchaserEmail returns the paying customer's email.
func (cs *CheckoutSession) PurchaserEmail() string {
	if cs.CustomerDetails != nil && strings.TrimSpace(cs.CustomerDetails.Email) != "" {
		return strings.TrimSpace(cs.CustomerDetails.Email)
	}
	return strings.TrimSpace(cs.CustomerEmail)
}

// SubscriptionID returns the attached subscription's ID or empty.
func (cs *CheckoutSession) SubscriptionID() string {
	if cs.Subscription == nil {
		return ""
	}
	return cs.Subscription.ID
}

// StripeSubscription is a provider subscription as returned by the
// subscriptions endpoint.
type StripeSubscription struct {
	ID                string       `json:"id"`
	Status            string       `json:"status"`
	StartDate         int64        `json:"start_date"`
	CurrentPeriodEnd  int64        `json:"current_period_end"`
	CancelAtPeriodEnd bool         `json:"cancel_at_period_end"`
	Customer          ExpandableID `json:"customer"`
}

// StripeCustomer is a provider customer row used by the cleanup tooling.
type StripeCustomer struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Created int64  `json:"created"`
	Deleted bool   `json:"deleted"`
}
