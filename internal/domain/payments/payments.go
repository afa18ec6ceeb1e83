// Package payments provides interfaces for payment processing
package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	"evmarket/internal/domain"
)

// ChargeRequest describes one payment to collect
type ChargeRequest struct {
	Amount         int64 // Amount in whole currency units (rupees)
	Currency       string
	Description    string
	PayerEmail     string
	PayerName      string
	PaymentMethod  string
	IdempotencyKey string
}

// Provider collects a payment and returns an opaque reference on success.
// A charge whose outcome cannot be confirmed returns domain.ErrPaymentOutcomeUnknown.
type Provider interface {
	Charge(ctx context.Context, req ChargeRequest) (string, error)
}

// Outcome selects how the mock provider answers
type Outcome string

const (
	OutcomeSucceed Outcome = "succeed"
	OutcomeDecline Outcome = "decline"
	OutcomeUnknown Outcome = "unknown"
)

// ErrDeclined is returned when a provider refuses the charge
var ErrDeclined = errors.New("payment declined")

// MockProvider is an in-process payment provider for development and tests
type MockProvider struct {
	mu      sync.Mutex
	outcome Outcome
	charges []ChargeRequest
}

func NewMockProvider() *MockProvider {
	return &MockProvider{outcome: OutcomeSucceed}
}

// SetOutcome changes the answer for subsequent charges
func (m *MockProvider) SetOutcome(o Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcome = o
}

// Charges returns the requests seen so far
func (m *MockProvider) Charges() []ChargeRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ChargeRequest, len(m.charges))
	copy(out, m.charges)
	return out
}

func (m *MockProvider) Charge(ctx context.Context, req ChargeRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.charges = append(m.charges, req)

	switch m.outcome {
	case OutcomeDecline:
		return "", ErrDeclined
	case OutcomeUnknown:
		return "", domain.ErrPaymentOutcomeUnknown
	}
	return "mock_pay_" + uuid.NewString(), nil
}

// StripeProvider charges through Stripe PaymentIntents
type StripeProvider struct {
	client *client.API
	log    *slog.Logger
}

func NewStripeProvider(secretKey string, log *slog.Logger) *StripeProvider {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &StripeProvider{client: sc, log: log}
}

func (s *StripeProvider) Charge(ctx context.Context, req ChargeRequest) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.Amount * 100),
		Currency:      stripe.String(strings.ToLower(req.Currency)),
		Description:   stripe.String(req.Description),
		ReceiptEmail:  stripe.String(req.PayerEmail),
		PaymentMethod: stripe.String(req.PaymentMethod),
		Confirm:       stripe.Bool(true),
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String(req.IdempotencyKey)
	}
	params.AddMetadata("payer_name", req.PayerName)

	pi, err := s.client.PaymentIntents.New(params)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) && serr.Type == stripe.ErrorTypeCard {
			s.log.Warn("stripe charge declined", "code", serr.Code, "amount", req.Amount)
			return "", fmt.Errorf("%w: %s", ErrDeclined, serr.Msg)
		}
		s.log.Error("stripe charge failed", "error", err, "amount", req.Amount)
		return "", fmt.Errorf("%w: %v", domain.ErrPaymentOutcomeUnknown, err)
	}

	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		s.log.Warn("stripe charge not settled", "payment_intent", pi.ID, "status", pi.Status)
		return "", fmt.Errorf("%w: payment intent %s is %s", domain.ErrPaymentOutcomeUnknown, pi.ID, pi.Status)
	}
	return pi.ID, nil
}
