package service

import (
	"context"
	"errors"
	"fmt"

	"evmarket/internal/domain"
	"evmarket/internal/domain/payments"
	"evmarket/internal/events"
	"evmarket/internal/repository"
)

// PlacementInput is a pay-per-placement purchase
type PlacementInput struct {
	AccountID      string
	Content        domain.AdContent
	PaymentMethod  string
	IdempotencyKey string
}

// Quote is the priced breakdown of a set of target pages
type Quote struct {
	Pages    map[string]int64 `json:"pages"`
	Total    int64            `json:"total"`
	Currency string           `json:"currency"`
}

// PlacementService sells single placements without a subscription
type PlacementService struct {
	accounts repository.AccountRepository
	ads      repository.AdRequestRepository
	provider payments.Provider
	pricing  Pricing
	opts     Options
}

func NewPlacementService(repos *repository.Repositories, provider payments.Provider, pricing Pricing, opts Options) *PlacementService {
	return &PlacementService{
		accounts: repos.Accounts,
		ads:      repos.AdRequests,
		provider: provider,
		pricing:  pricing,
		opts:     opts.withDefaults(),
	}
}

// Quote sums the per-page prices of pages
func (s *PlacementService) Quote(pages []string) (*Quote, error) {
	pages, err := domain.ValidateTargetPages(pages)
	if err != nil {
		return nil, err
	}
	q := &Quote{Pages: make(map[string]int64, len(pages)), Currency: s.pricing.Currency}
	for _, p := range pages {
		price, ok := s.pricing.Pages[p]
		if !ok {
			return nil, domain.NewValidationError("targetPages", "page "+p+" is not for sale")
		}
		q.Pages[p] = price
		q.Total += price
	}
	return q, nil
}

// Purchase charges the quote for the content's pages and appends a pending
// request. A ledger failure after a confirmed charge keeps the payment reference.
func (s *PlacementService) Purchase(ctx context.Context, in PlacementInput) (*domain.AdRequest, error) {
	content, err := domain.ValidateContent(in.Content)
	if err != nil {
		return nil, err
	}
	quote, err := s.Quote(content.TargetPages)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.GetByID(ctx, in.AccountID)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}

	ref, err := s.provider.Charge(ctx, payments.ChargeRequest{
		Amount:         quote.Total,
		Currency:       s.pricing.Currency,
		Description:    fmt.Sprintf("ad placement for %s", account.BrandOrEmail()),
		PayerEmail:     account.Email,
		PayerName:      account.Name,
		PaymentMethod:  in.PaymentMethod,
		IdempotencyKey: chargeKey("placement", in.AccountID, in.IdempotencyKey),
	})
	if err != nil {
		outcome := "failed"
		if errors.Is(err, domain.ErrPaymentOutcomeUnknown) {
			outcome = "unknown"
		} else if errors.Is(err, payments.ErrDeclined) {
			outcome = "declined"
		}
		s.opts.Metrics.Charge("placement", outcome)
		s.opts.Logger.WarnContext(ctx, "placement charge not confirmed",
			"module", "placement", "operation", "purchase", "outcome", outcome,
			"account_id", in.AccountID, "amount", quote.Total, "error", err)
		return nil, err
	}
	s.opts.Metrics.Charge("placement", "succeeded")

	req := &domain.AdRequest{
		AccountID:   in.AccountID,
		Brand:       account.BrandOrEmail(),
		Title:       content.Title,
		Description: content.Description,
		TargetLink:  content.TargetLink,
		ImageURL:    content.ImageURL,
		TargetPages: content.TargetPages,
		Plan:        domain.PlanPlacement,
		Amount:      quote.Total,
		PaymentRef:  ref,
		Status:      domain.AdStatusPending,
		SubmittedAt: s.opts.now(),
	}
	if err := s.ads.Create(ctx, req); err != nil {
		s.opts.Metrics.PaymentPersistFailure()
		s.opts.Logger.ErrorContext(ctx, "confirmed payment not recorded",
			"module", "placement", "operation", "purchase", "outcome", "persist_failed",
			"account_id", in.AccountID, "payment_ref", ref, "error", err)
		s.opts.emit(ctx, events.PaymentPersistFailed, in.AccountID, map[string]string{
			"accountId":  in.AccountID,
			"paymentRef": ref,
			"error":      err.Error(),
		})
		return nil, &domain.PaymentPersistError{PaymentRef: ref, Err: fmt.Errorf("create ad request: %w", err)}
	}

	s.opts.Metrics.Transition(string(domain.AdStatusPending))
	s.opts.Logger.InfoContext(ctx, "placement purchased",
		"module", "placement", "operation", "purchase", "outcome", "ok",
		"account_id", in.AccountID, "request_id", req.ID, "amount", req.Amount, "payment_ref", ref)
	s.opts.emit(ctx, events.PlacementPurchased, in.AccountID, req)
	return req, nil
}
