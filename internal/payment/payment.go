// Package payment wraps the hosted checkout used to buy memberships.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

var (
	ErrPaymentNotCompleted = errors.New("payment not completed")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
)

type CheckoutRequest struct {
	UserID     string
	Email      string
	Amount     int64
	Currency   string
	SuccessURL string
	CancelURL  string
}

type Checkout struct {
	ID  string
	URL string
}

// Confirmation is a captured payment. PaymentID is the checkout session id,
// shared by the redirect and webhook paths.
type Confirmation struct {
	UserID    string
	PaymentID string
	Amount    int64
	Currency  string
	PaidAt    time.Time
}

type Provider interface {
	NewCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
	Confirm(ctx context.Context, token string) (*Confirmation, error)
	// ParseWebhook returns nil without an error for events it does not handle.
	ParseWebhook(payload []byte, signature string) (*Confirmation, error)
}

type Stripe struct {
	webhookSecret string
}

func NewStripe(secretKey string, webhookSecret string) *Stripe {
	stripe.Key = secretKey
	return &Stripe{webhookSecret: webhookSecret}
}

func (s *Stripe) NewCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	successURL, err := withSessionID(req.SuccessURL)
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(req.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("NovelNest membership (1 year)"),
					},
					UnitAmount: stripe.Int64(req.Amount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.UserID),
		Metadata: map[string]string{
			"user_id": req.UserID,
		},
	}
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	params.Context = ctx

	sess, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("error creating stripe session: %w", err)
	}

	return &Checkout{ID: sess.ID, URL: sess.URL}, nil
}

// withSessionID appends the checkout session placeholder stripe fills in on
// redirect.
func withSessionID(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("error parsing success url: %w", err)
	}
	q := u.Query()
	q.Del("session_id")
	encoded := q.Encode()
	if encoded != "" {
		encoded += "&"
	}
	u.RawQuery = encoded + "session_id={CHECKOUT_SESSION_ID}"
	return u.String(), nil
}

func (s *Stripe) Confirm(ctx context.Context, token string) (*Confirmation, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := session.Get(token, params)
	if err != nil {
		return nil, fmt.Errorf("error retrieving stripe session: %w", err)
	}

	return confirmation(sess)
}

func (s *Stripe) ParseWebhook(payload []byte, signature string) (*Confirmation, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("error unmarshalling event data: %w", err)
		}
		return confirmation(&sess)
	}

	return nil, nil
}

func confirmation(sess *stripe.CheckoutSession) (*Confirmation, error) {
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return nil, ErrPaymentNotCompleted
	}

	userID := sess.Metadata["user_id"]
	if userID == "" {
		userID = sess.ClientReferenceID
	}

	paidAt := time.Now().UTC()
	if sess.Created > 0 {
		paidAt = time.Unix(sess.Created, 0).UTC()
	}

	return &Confirmation{
		UserID:    userID,
		PaymentID: sess.ID,
		Amount:    sess.AmountTotal,
		Currency:  string(sess.Currency),
		PaidAt:    paidAt,
	}, nil
}

// UserMessage turns a payment error into text that can be shown to a reader.
func UserMessage(err error) string {
	if errors.Is(err, ErrPaymentNotCompleted) {
		return "Your payment was not completed. You have not been charged."
	}

	var se *stripe.Error
	if errors.As(err, &se) {
		switch se.Code {
		case stripe.ErrorCodeCardDeclined:
			return "Your card was declined. Please try another card."
		case stripe.ErrorCodeExpiredCard:
			return "Your card has expired. Please use a different card."
		case stripe.ErrorCodeIncorrectCVC:
			return "Your card's security code is incorrect."
		case stripe.ErrorCodeProcessingError:
			return "An error occurred while processing your card. Please try again."
		}
	}

	return "Payment failed. Please try again."
}
