package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"evmarket/internal/domain"
	"evmarket/internal/events"
	"evmarket/internal/repository"
)

// ExpiryReport lists what ExpireOverdue changed
type ExpiryReport struct {
	RanAt       time.Time `json:"ranAt"`
	Expired     []string  `json:"expired"`
	SlotCleared bool      `json:"slotCleared"`
}

// CancellationService cancels requests and stops the live promotion. The two
// are independent: cancelling never touches the slot and stopping never
// touches the ledger.
type CancellationService struct {
	accounts repository.AccountRepository
	ads      repository.AdRequestRepository
	slot     repository.AdSlotRepository
	settings repository.SettingsRepository
	opts     Options
}

func NewCancellationService(repos *repository.Repositories, opts Options) *CancellationService {
	return &CancellationService{
		accounts: repos.Accounts,
		ads:      repos.AdRequests,
		slot:     repos.AdSlot,
		settings: repos.Settings,
		opts:     opts.withDefaults(),
	}
}

// Cancel moves a pending or active request to cancelled
func (s *CancellationService) Cancel(ctx context.Context, requestID string) (*domain.AdRequest, error) {
	req, err := s.ads.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := domain.Transition(req.ID, req.Status, domain.AdStatusCancelled); err != nil {
		return nil, err
	}
	if err := s.ads.UpdateStatus(ctx, req.ID, domain.AdStatusCancelled); err != nil {
		return nil, fmt.Errorf("cancel ad request: %w", err)
	}
	req.Status = domain.AdStatusCancelled

	s.opts.Metrics.Transition(string(domain.AdStatusCancelled))
	s.opts.Logger.InfoContext(ctx, "ad cancelled",
		"module", "cancellation", "operation", "cancel", "outcome", "ok", "request_id", req.ID)
	s.opts.emit(ctx, events.AdCancelled, req.ID, req)

	if account, err := s.accounts.GetByID(ctx, req.AccountID); err == nil {
		if err := s.opts.Notifier.AdCancelled(ctx, account.Email, req.Title); err != nil {
			s.opts.Logger.WarnContext(ctx, "notification failed", "account_id", req.AccountID, "error", err)
		}
	}
	return req, nil
}

// StopActivePromotion deletes the global slot. Ledger rows are left as they are.
func (s *CancellationService) StopActivePromotion(ctx context.Context) error {
	if err := s.slot.Delete(ctx); err != nil {
		return fmt.Errorf("stop promotion: %w", err)
	}
	s.opts.Logger.InfoContext(ctx, "promotion stopped",
		"module", "cancellation", "operation", "stop", "outcome", "ok")
	s.opts.emit(ctx, events.SlotCleared, "slot", map[string]string{"reason": "stopped"})
	return nil
}

// CancelAndStop cancels a request and, when the slot is showing it, stops the
// promotion as well
func (s *CancellationService) CancelAndStop(ctx context.Context, requestID string) (*domain.AdRequest, error) {
	req, err := s.Cancel(ctx, requestID)
	if err != nil {
		return nil, err
	}

	slot, err := s.slot.Get(ctx)
	if err == nil && (slot == nil || slot.SourceRequestID != req.ID) {
		return req, nil
	}
	if err == nil {
		err = s.StopActivePromotion(ctx)
	}
	if err != nil {
		return req, s.opts.partial(ctx, &domain.PartialWriteError{
			Operation: "cancel_and_stop",
			Completed: []string{"request"},
			Failed:    "slot",
			Err:       err,
		}, "request_id", req.ID)
	}
	return req, nil
}

// ExpireOverdue cancels active requests whose expiry has passed and clears
// the slot once its own expiry has passed
func (s *CancellationService) ExpireOverdue(ctx context.Context) (*ExpiryReport, error) {
	now := s.opts.now()
	report := &ExpiryReport{RanAt: now, Expired: []string{}}

	slot, err := s.slot.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ad slot: %w", err)
	}
	slotExpired := slot != nil && !slot.ExpiresAt.After(now)

	active, err := s.ads.ListByStatus(ctx, domain.AdStatusActive)
	if err != nil {
		return nil, fmt.Errorf("list active requests: %w", err)
	}

	var errs []error
	for _, req := range active {
		overdue := req.ExpiresAt != nil && !req.ExpiresAt.After(now)
		if slotExpired && slot.SourceRequestID == req.ID {
			overdue = true
		}
		if !overdue {
			continue
		}
		if err := s.ads.UpdateStatus(ctx, req.ID, domain.AdStatusCancelled); err != nil {
			errs = append(errs, fmt.Errorf("expire %s: %w", req.ID, err))
			continue
		}
		report.Expired = append(report.Expired, req.ID)
		s.opts.Metrics.Transition(string(domain.AdStatusCancelled))
		s.opts.emit(ctx, events.AdExpired, req.ID, req)
	}

	if slotExpired {
		if err := s.slot.Delete(ctx); err != nil {
			errs = append(errs, fmt.Errorf("clear expired slot: %w", err))
		} else {
			report.SlotCleared = true
			s.opts.emit(ctx, events.SlotCleared, "slot", map[string]string{"reason": "expired", "sourceRequestId": slot.SourceRequestID})
		}
	}

	if err := s.settings.Set(ctx, SettingLastExpirySweep, now.Format(time.RFC3339)); err != nil {
		s.opts.Logger.WarnContext(ctx, "expiry sweep time not saved", "error", err)
	}

	s.opts.Logger.InfoContext(ctx, "expiry sweep finished",
		"module", "cancellation", "operation", "expire", "expired", len(report.Expired),
		"slot_cleared", report.SlotCleared, "errors", len(errs))
	return report, errors.Join(errs...)
}
