package service

import (
	"context"
	"fmt"

	"evmarket/internal/domain"
	"evmarket/internal/events"
	"evmarket/internal/repository"
)

// SubmissionService turns a business's ad content into a pending ledger row
type SubmissionService struct {
	accounts repository.AccountRepository
	ents     repository.EntitlementRepository
	ads      repository.AdRequestRepository
	opts     Options
}

func NewSubmissionService(repos *repository.Repositories, opts Options) *SubmissionService {
	return &SubmissionService{
		accounts: repos.Accounts,
		ents:     repos.Entitlements,
		ads:      repos.AdRequests,
		opts:     opts.withDefaults(),
	}
}

// Submit validates content, re-reads the account's entitlement and appends a
// pending request. Nothing is written when validation or the entitlement
// check fails.
func (s *SubmissionService) Submit(ctx context.Context, accountID string, content domain.AdContent) (*domain.AdRequest, error) {
	content, err := domain.ValidateContent(content)
	if err != nil {
		return nil, err
	}

	ent, err := s.ents.Get(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load entitlement: %w", err)
	}
	if !ent.IsActive(s.opts.now()) {
		s.opts.Logger.InfoContext(ctx, "submission refused",
			"module", "submission", "account_id", accountID, "outcome", "entitlement_required")
		return nil, domain.ErrEntitlementRequired
	}

	return s.create(ctx, accountID, ent, content)
}

// create writes the pending row for content that has already been validated
// against an active entitlement
func (s *SubmissionService) create(ctx context.Context, accountID string, ent *domain.Entitlement, content domain.AdContent) (*domain.AdRequest, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}

	s.warnOnLiveRequests(ctx, accountID)

	req := &domain.AdRequest{
		AccountID:   accountID,
		Brand:       account.BrandOrEmail(),
		Title:       content.Title,
		Description: content.Description,
		TargetLink:  content.TargetLink,
		ImageURL:    content.ImageURL,
		TargetPages: content.TargetPages,
		Plan:        string(ent.PlanTier),
		Status:      domain.AdStatusPending,
		SubmittedAt: s.opts.now(),
		ExpiresAt:   ent.ExpiresAt,
	}
	if err := s.ads.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("create ad request: %w", err)
	}

	s.opts.Metrics.Transition(string(domain.AdStatusPending))
	s.opts.Logger.InfoContext(ctx, "ad submitted",
		"module", "submission", "operation", "submit", "outcome", "ok",
		"account_id", accountID, "request_id", req.ID, "plan", req.Plan)
	s.opts.emit(ctx, events.AdSubmitted, accountID, req)
	return req, nil
}

// warnOnLiveRequests flags accounts that already have a pending or active
// request. The one-live-request convention is advisory.
func (s *SubmissionService) warnOnLiveRequests(ctx context.Context, accountID string) {
	existing, err := s.ads.ListByAccount(ctx, accountID)
	if err != nil {
		s.opts.Logger.WarnContext(ctx, "could not check existing requests", "account_id", accountID, "error", err)
		return
	}
	for _, r := range existing {
		if r.Status.IsLive() {
			s.opts.Logger.WarnContext(ctx, "account already has a live ad request",
				"module", "submission", "account_id", accountID, "request_id", r.ID, "status", r.Status)
			return
		}
	}
}
