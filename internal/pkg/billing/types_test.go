package billing

import (
	"encoding/json"
	"testing"
)

func TestSessionSubscriptionUnmarshal_StringAndObject(t *testing.T) {
	var fromString CheckoutSession
	if err := json.Unmarshal([]byte(`{"id":"cs_1","subscription":"sub_123"}`), &fromString); err != nil {
		t.Fatalf("unexpected unmarshal error: %v", err)
	}
	if fromString.SubscriptionID() != "sub_123" {
		t.Fatalf("string subscription id = %q, want sub_123", fromString.SubscriptionID())
	}

	var fromObject CheckoutSession
	raw := `{"id":"cs_2","subscription":{"id":"sub_456","status":"active","start_date":1700000000,"current_period_end":1702592000,"customer":"cus_9"}}`
	if err := json.Unmarshal([]byte(raw), &fromObject); err != nil {
		t.Fatalf("unexpected unmarshal error: %v", err)
	}
	if fromObject.SubscriptionID() != "sub_456" {
		t.Fatalf("object subscription id = %q, want sub_456", fromObject.SubscriptionID())
	}
	if fromObject.Subscription.Status != "active" || fromObject.Subscription.Customer.String() != "cus_9" {
		t.Fatalf("expanded fields lost: %+v", fromObject.Subscription)
	}

	var fromNull CheckoutSession
	if err := json.Unmarshal([]byte(`{"id":"cs_3","subscription":null}`), &fromNull); err != nil {
		t.Fatalf("unexpected unmarshal error: %v", err)
	}
	if fromNull.SubscriptionID() != "" {
		t.Fatalf("null subscription should yield empty id, got %q", fromNull.SubscriptionID())
	}
}

func TestExpandableIDUnmarshal(t *testing.T) {
	var session CheckoutSession
	raw := `{"id":"cs_4","payment_intent":"pi_123","customer":{"id":"cus_7","email":"x@example.com"}}`
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		t.Fatalf("unexpected unmarshal error: %v", err)
	}
	if session.PaymentIntent.String() != "pi_123" {
		t.Fatalf("payment_intent = %q, want pi_123", session.PaymentIntent)
	}
	if session.Customer.String() != "cus_7" {
		t.Fatalf("customer = %q, want cus_7", session.Customer)
	}
}

func TestCheckoutSessionGiftFields(t *testing.T) {
	gift := CheckoutSession{
		Shipping:        &SessionShipping{Name: "  recipient@example.com  "},
		CustomerDetails: &SessionCustomerDetails{Email: "buyer@example.com"},
	}
	if !gift.IsGift() {
		t.Fatalf("session with shipping block should be a gift")
	}
	if gift.RecipientEmail() != "recipient@example.com" {
		t.Fatalf("recipient = %q, want trimmed shipping name", gift.RecipientEmail())
	}
	if gift.PurchaserEmail() != "buyer@example.com" {
		t.Fatalf("purchaser = %q, want buyer@example.com", gift.PurchaserEmail())
	}

	direct := CheckoutSession{CustomerEmail: "direct@example.com"}
	if direct.IsGift() {
		t.Fatalf("session without shipping block should not be a gift")
	}
	if direct.RecipientEmail() != "" {
		t.Fatalf("non-gift recipient should be empty, got %q", direct.RecipientEmail())
	}
	if direct.PurchaserEmail() != "direct@example.com" {
		t.Fatalf("purchaser should fall back to customer_email, got %q", direct.PurchaserEmail())
	}
}

func TestCheckoutSessionPurchaserEmailPrefersDetails(t *testing.T) {
	session := CheckoutSession{
		CustomerEmail:   "stale@example.com",
		CustomerDetails: &SessionCustomerDetails{Email: "current@example.com"},
	}
	if session.PurchaserEmail() != "current@example.com" {
		t.Fatalf("purchaser = %q, want customer_details email", session.PurchaserEmail())
	}

	blankDetails := CheckoutSession{
		CustomerEmail:   "fallback@example.com",
		CustomerDetails: &SessionCustomerDetails{Email: "   "},
	}
	if blankDetails.PurchaserEmail() != "fallback@example.com" {
		t.Fatalf("blank details email should fall back, got %q", blankDetails.PurchaserEmail())
	}
}
