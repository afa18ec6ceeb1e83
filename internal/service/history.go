package service

import (
	"context"
	"fmt"

	"evmarket/internal/domain"
	"evmarket/internal/repository"
)

const recentLimit = 20

// Overview is the admin dashboard summary
type Overview struct {
	Counts  map[domain.AdStatus]int `json:"counts"`
	Revenue int64                   `json:"revenue"`
	Pending []domain.AdRequest      `json:"pending"`
	Recent  []domain.AdRequest      `json:"recent"`
	Slot    *domain.GlobalAdSlot    `json:"slot"`
}

// HistoryService serves read-only ledger views
type HistoryService struct {
	ads  repository.AdRequestRepository
	slot repository.AdSlotRepository
}

func NewHistoryService(repos *repository.Repositories) *HistoryService {
	return &HistoryService{ads: repos.AdRequests, slot: repos.AdSlot}
}

// ForAccount returns every ledger row of an account, newest first
func (s *HistoryService) ForAccount(ctx context.Context, accountID string) ([]domain.AdRequest, error) {
	reqs, err := s.ads.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list account requests: %w", err)
	}
	sortBySubmittedDesc(reqs)
	return reqs, nil
}

// AdminOverview counts rows by status, sums paid amounts and returns the
// newest rows alongside the current slot
func (s *HistoryService) AdminOverview(ctx context.Context) (*Overview, error) {
	all, err := s.ads.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ad requests: %w", err)
	}
	slot, err := s.slot.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ad slot: %w", err)
	}

	sortBySubmittedDesc(all)
	ov := &Overview{
		Counts:  map[domain.AdStatus]int{},
		Pending: []domain.AdRequest{},
		Slot:    slot,
	}
	for _, r := range all {
		ov.Counts[r.Status]++
		ov.Revenue += r.Amount
		if r.Status == domain.AdStatusPending {
			ov.Pending = append(ov.Pending, r)
		}
	}
	ov.Recent = all
	if len(ov.Recent) > recentLimit {
		ov.Recent = ov.Recent[:recentLimit]
	}
	return ov, nil
}

// Slot returns the stored slot as-is, expired or not
func (s *HistoryService) Slot(ctx context.Context) (*domain.GlobalAdSlot, error) {
	slot, err := s.slot.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ad slot: %w", err)
	}
	return slot, nil
}
