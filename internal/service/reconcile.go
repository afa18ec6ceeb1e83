package service

import (
	"context"
	"fmt"
	"time"

	"evmarket/internal/domain"
	"evmarket/internal/repository"
)

// ReconcileReport describes drift between the ledger and the global slot
type ReconcileReport struct {
	GeneratedAt     time.Time           `json:"generatedAt"`
	SlotSourceID    string              `json:"slotSourceId,omitempty"`
	SlotExpired     bool                `json:"slotExpired"`
	SlotOrphaned    bool                `json:"slotOrphaned"`
	OrphanedActive  []string            `json:"orphanedActive"`
	DuplicateLive   map[string][]string `json:"duplicateLive"`
	LastExpirySweep string              `json:"lastExpirySweep,omitempty"`
}

// Clean reports whether no drift was found
func (r *ReconcileReport) Clean() bool {
	return !r.SlotOrphaned && len(r.OrphanedActive) == 0 && len(r.DuplicateLive) == 0
}

// Reconciler compares the ledger against the slot. It never repairs anything.
type Reconciler struct {
	ads      repository.AdRequestRepository
	slot     repository.AdSlotRepository
	settings repository.SettingsRepository
	opts     Options
}

func NewReconciler(repos *repository.Repositories, opts Options) *Reconciler {
	return &Reconciler{ads: repos.AdRequests, slot: repos.AdSlot, settings: repos.Settings, opts: opts.withDefaults()}
}

// Report lists active rows the slot is not showing, a slot whose source row
// is missing or not active, and accounts with more than one live request
func (r *Reconciler) Report(ctx context.Context) (*ReconcileReport, error) {
	now := r.opts.now()
	slot, err := r.slot.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ad slot: %w", err)
	}
	all, err := r.ads.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ad requests: %w", err)
	}

	report := &ReconcileReport{
		GeneratedAt:    now,
		OrphanedActive: []string{},
		DuplicateLive:  map[string][]string{},
	}
	if slot != nil {
		report.SlotSourceID = slot.SourceRequestID
		report.SlotExpired = !slot.ExpiresAt.After(now)
	}

	live := map[string][]string{}
	sourceActive := false
	for _, req := range all {
		if req.Status == domain.AdStatusActive {
			if slot != nil && req.ID == slot.SourceRequestID {
				sourceActive = true
			} else {
				report.OrphanedActive = append(report.OrphanedActive, req.ID)
			}
		}
		if req.Status.IsLive() {
			live[req.AccountID] = append(live[req.AccountID], req.ID)
		}
	}
	for account, ids := range live {
		if len(ids) > 1 {
			report.DuplicateLive[account] = ids
		}
	}
	report.SlotOrphaned = slot != nil && !sourceActive

	if r.settings != nil {
		if v, err := r.settings.Get(ctx, SettingLastExpirySweep); err == nil {
			report.LastExpirySweep = v
		}
	}

	if !report.Clean() {
		r.opts.Logger.WarnContext(ctx, "ledger and slot disagree",
			"module", "reconcile", "orphaned_active", len(report.OrphanedActive),
			"slot_orphaned", report.SlotOrphaned, "duplicate_accounts", len(report.DuplicateLive))
	}
	return report, nil
}
