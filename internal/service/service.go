// Package service implements the ad-placement lifecycle and the subscription
// entitlement engine on top of the repository boundary
package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"evmarket/internal/domain"
	"evmarket/internal/domain/notifications"
	"evmarket/internal/events"
	"evmarket/internal/metrics"
)

// ErrPaymentInProgress is returned when another caller holds the claim on a
// payment reference
var ErrPaymentInProgress = errors.New("payment is already being processed")

// SettingLastExpirySweep records when ExpireOverdue last ran
const SettingLastExpirySweep = "ads.last_expiry_sweep"

// Options carries the collaborators shared by every service
type Options struct {
	Logger   *slog.Logger
	Metrics  *metrics.Workflow
	Events   events.Publisher
	Notifier notifications.Notifier
	Now      func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Events == nil {
		o.Events = events.Nop{}
	}
	if o.Notifier == nil {
		o.Notifier = notifications.NewEmailNotifier(nil, "")
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

func (o Options) now() time.Time {
	return o.Now().UTC()
}

func (o Options) emit(ctx context.Context, eventType, key string, data any) {
	if err := events.Emit(ctx, o.Events, eventType, key, data); err != nil {
		o.Logger.WarnContext(ctx, "event not published", "event_type", eventType, "error", err)
	}
}

// partial logs, counts and alerts on a PartialWriteError before returning it
func (o Options) partial(ctx context.Context, perr *domain.PartialWriteError, attrs ...any) error {
	o.Metrics.PartialWrite(perr.Operation)
	o.Logger.WarnContext(ctx, "partial write",
		append([]any{"operation", perr.Operation, "completed", perr.Completed, "failed", perr.Failed, "error", perr.Err}, attrs...)...)
	o.emit(ctx, events.PartialWrite, perr.Operation, map[string]any{
		"operation": perr.Operation,
		"completed": perr.Completed,
		"failed":    perr.Failed,
		"error":     perr.Err.Error(),
	})
	if err := o.Notifier.OperatorAlert(ctx, "Partial write in "+perr.Operation, perr.Error()); err != nil {
		o.Logger.WarnContext(ctx, "operator alert failed", "error", err)
	}
	return perr
}

// chargeKey scopes a client idempotency key to the account and purpose of a
// charge. Without a client key every call gets a fresh one.
func chargeKey(purpose, accountID, clientKey string) string {
	clientKey = strings.TrimSpace(clientKey)
	if clientKey == "" {
		clientKey = uuid.NewString()
	}
	return purpose + ":" + accountID + ":" + clientKey
}

// Pricing holds plan and per-page placement prices in whole currency units
type Pricing struct {
	Currency string
	Plans    map[domain.PlanTier]int64
	Pages    map[string]int64
}

// PlanPrice returns the price of tier, or zero when unpriced
func (p Pricing) PlanPrice(tier domain.PlanTier) int64 {
	return p.Plans[tier]
}

// sortBySubmittedDesc orders requests newest first
func sortBySubmittedDesc(reqs []domain.AdRequest) {
	slices.SortStableFunc(reqs, func(a, b domain.AdRequest) int {
		return b.SubmittedAt.Compare(a.SubmittedAt)
	})
}
