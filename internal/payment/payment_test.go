package payment

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const testSecret = "whsec_test"

func signed(t *testing.T, payload string) ([]byte, string) {
	t.Helper()
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testSecret,
		Timestamp: time.Now(),
	})
	return sp.Payload, sp.Header
}

func event(eventType string, object string) string {
	return fmt.Sprintf(`{"id":"evt_1","object":"event","api_version":%q,"type":%q,"data":{"object":%s}}`,
		stripe.APIVersion, eventType, object)
}

func TestParseWebhook(t *testing.T) {
	s := NewStripe("sk_test", testSecret)

	tests := []struct {
		name    string
		payload string
		header  func(h string) string
		want    *Confirmation
		wantErr error
	}{
		{
			name:    "paid checkout",
			payload: event("checkout.session.completed", `{"id":"cs_1","object":"checkout.session","payment_status":"paid","amount_total":999,"currency":"usd","created":1700000000,"metadata":{"user_id":"u1"}}`),
			want:    &Confirmation{UserID: "u1", PaymentID: "cs_1", Amount: 999, Currency: "usd", PaidAt: time.Unix(1700000000, 0).UTC()},
		},
		{
			name:    "falls back to client reference id",
			payload: event("checkout.session.completed", `{"id":"cs_2","object":"checkout.session","payment_status":"paid","client_reference_id":"u2","created":1700000000}`),
			want:    &Confirmation{UserID: "u2", PaymentID: "cs_2", PaidAt: time.Unix(1700000000, 0).UTC()},
		},
		{
			name:    "unpaid checkout",
			payload: event("checkout.session.completed", `{"id":"cs_3","object":"checkout.session","payment_status":"unpaid"}`),
			wantErr: ErrPaymentNotCompleted,
		},
		{
			name:    "ignored event",
			payload: event("customer.created", `{"id":"cus_1","object":"customer"}`),
		},
		{
			name:    "bad signature",
			payload: event("checkout.session.completed", `{"id":"cs_1"}`),
			header:  func(string) string { return "t=1,v1=deadbeef" },
			wantErr: ErrInvalidSignature,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, header := signed(t, tt.payload)
			if tt.header != nil {
				header = tt.header(header)
			}

			got, err := s.ParseWebhook(payload, header)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "declined", err: &stripe.Error{Code: stripe.ErrorCodeCardDeclined}, want: "Your card was declined. Please try another card."},
		{name: "expired", err: fmt.Errorf("wrapped: %w", &stripe.Error{Code: stripe.ErrorCodeExpiredCard}), want: "Your card has expired. Please use a different card."},
		{name: "cvc", err: &stripe.Error{Code: stripe.ErrorCodeIncorrectCVC}, want: "Your card's security code is incorrect."},
		{name: "processing", err: &stripe.Error{Code: stripe.ErrorCodeProcessingError}, want: "An error occurred while processing your card. Please try again."},
		{name: "not completed", err: ErrPaymentNotCompleted, want: "Your payment was not completed. You have not been charged."},
		{name: "other stripe code", err: &stripe.Error{Code: stripe.ErrorCodeRateLimit}, want: "Payment failed. Please try again."},
		{name: "unknown", err: errors.New("boom"), want: "Payment failed. Please try again."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestWithSessionID(t *testing.T) {
	got, err := withSessionID("http://localhost:8080/api/v1/membership/confirm?from=checkout")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/api/v1/membership/confirm?from=checkout&session_id={CHECKOUT_SESSION_ID}", got)
}
