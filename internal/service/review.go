package service

import (
	"context"
	"fmt"

	"evmarket/internal/domain"
	"evmarket/internal/events"
	"evmarket/internal/repository"
)

// PublishInput carries the admin's choices when approving a request
type PublishInput struct {
	Content      *domain.AdContent
	TargetPages  []string
	DurationDays int
}

// ReviewService approves and rejects pending requests
type ReviewService struct {
	accounts repository.AccountRepository
	ads      repository.AdRequestRepository
	slot     repository.AdSlotRepository
	maxDays  int
	opts     Options
}

// NewReviewService builds the review service. Publish durations longer than
// maxDays are shortened to maxDays.
func NewReviewService(repos *repository.Repositories, maxDays int, opts Options) *ReviewService {
	if maxDays <= 0 {
		maxDays = domain.MaxPublishDays
	}
	return &ReviewService{
		accounts: repos.Accounts,
		ads:      repos.AdRequests,
		slot:     repos.AdSlot,
		maxDays:  maxDays,
		opts:     opts.withDefaults(),
	}
}

// ListPending returns pending requests, newest first
func (s *ReviewService) ListPending(ctx context.Context) ([]domain.AdRequest, error) {
	reqs, err := s.ads.ListByStatus(ctx, domain.AdStatusPending)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	sortBySubmittedDesc(reqs)
	return reqs, nil
}

// Publish overwrites the global slot with the request's (possibly edited)
// content, then marks the request active. The two writes are not atomic: a
// failure of the second returns *domain.PartialWriteError with the slot
// already swapped.
func (s *ReviewService) Publish(ctx context.Context, requestID string, in PublishInput) (*domain.GlobalAdSlot, error) {
	req, err := s.ads.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := domain.Transition(req.ID, req.Status, domain.AdStatusActive); err != nil {
		return nil, err
	}

	content := req.Content()
	if in.Content != nil {
		content = *in.Content
	}
	if in.TargetPages != nil {
		content.TargetPages = in.TargetPages
	}
	content, err = domain.ValidateContent(content)
	if err != nil {
		return nil, err
	}

	days := domain.NormalizeDurationDays(in.DurationDays)
	if days > s.maxDays {
		days = s.maxDays
	}

	now := s.opts.now()
	slot := &domain.GlobalAdSlot{
		Brand:           req.Brand,
		Plan:            req.Plan,
		Title:           content.Title,
		Description:     content.Description,
		TargetLink:      content.TargetLink,
		ImageURL:        content.ImageURL,
		TargetPages:     content.TargetPages,
		ActivatedAt:     now,
		ExpiresAt:       now.AddDate(0, 0, days),
		SourceRequestID: req.ID,
	}
	if err := s.slot.Put(ctx, slot); err != nil {
		return nil, fmt.Errorf("write ad slot: %w", err)
	}

	if err := s.ads.MarkPublished(ctx, req.ID, content.TargetPages, now); err != nil {
		return slot, s.opts.partial(ctx, &domain.PartialWriteError{
			Operation: "publish",
			Completed: []string{"slot"},
			Failed:    "request",
			Err:       err,
		}, "request_id", req.ID, "slot_version", slot.Version)
	}

	s.opts.Metrics.Transition(string(domain.AdStatusActive))
	s.opts.Logger.InfoContext(ctx, "ad published",
		"module", "review", "operation", "publish", "outcome", "ok",
		"request_id", req.ID, "days", days, "pages", content.TargetPages, "slot_version", slot.Version)
	s.opts.emit(ctx, events.AdPublished, req.ID, slot)
	s.notify(ctx, req.AccountID, func(email string) error {
		return s.opts.Notifier.AdPublished(ctx, email, content.Title, days)
	})
	return slot, nil
}

// Reject moves a pending request to rejected. Rejecting twice is a no-op
// overwrite; the slot is never touched.
func (s *ReviewService) Reject(ctx context.Context, requestID string) (*domain.AdRequest, error) {
	req, err := s.ads.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := domain.Transition(req.ID, req.Status, domain.AdStatusRejected); err != nil {
		return nil, err
	}
	first := req.Status != domain.AdStatusRejected

	if err := s.ads.UpdateStatus(ctx, req.ID, domain.AdStatusRejected); err != nil {
		return nil, fmt.Errorf("reject ad request: %w", err)
	}
	req.Status = domain.AdStatusRejected

	if first {
		s.opts.Metrics.Transition(string(domain.AdStatusRejected))
		s.opts.emit(ctx, events.AdRejected, req.ID, req)
		s.notify(ctx, req.AccountID, func(email string) error {
			return s.opts.Notifier.AdRejected(ctx, email, req.Title)
		})
	}
	s.opts.Logger.InfoContext(ctx, "ad rejected",
		"module", "review", "operation", "reject", "outcome", "ok", "request_id", req.ID, "repeat", !first)
	return req, nil
}

func (s *ReviewService) notify(ctx context.Context, accountID string, send func(email string) error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		s.opts.Logger.WarnContext(ctx, "notification skipped", "account_id", accountID, "error", err)
		return
	}
	if err := send(account.Email); err != nil {
		s.opts.Logger.WarnContext(ctx, "notification failed", "account_id", accountID, "error", err)
	}
}
