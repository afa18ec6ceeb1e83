package service

import (
	"context"
	"fmt"

	"evmarket/internal/domain"
	"evmarket/internal/repository"
)

// VisibilityService answers which ad, if any, a page should render
type VisibilityService struct {
	slot repository.AdSlotRepository
	opts Options
}

func NewVisibilityService(repos *repository.Repositories, opts Options) *VisibilityService {
	return &VisibilityService{slot: repos.AdSlot, opts: opts.withDefaults()}
}

// ActiveAdFor reads the slot fresh on every call and returns it only when it
// is unexpired and targets page. A nil slot with a nil error means show nothing.
func (s *VisibilityService) ActiveAdFor(ctx context.Context, page string) (*domain.GlobalAdSlot, error) {
	slot, err := s.slot.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ad slot: %w", err)
	}
	visible := slot.VisibleOn(page, s.opts.now())
	s.opts.Metrics.VisibilityCheck(page, visible)
	if !visible {
		return nil, nil
	}
	return slot, nil
}

// Live returns the slot while it is unexpired, whatever pages it targets
func (s *VisibilityService) Live(ctx context.Context) (*domain.GlobalAdSlot, error) {
	slot, err := s.slot.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ad slot: %w", err)
	}
	if slot == nil || !slot.ExpiresAt.After(s.opts.now()) {
		return nil, nil
	}
	return slot, nil
}
