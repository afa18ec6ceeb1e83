package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"evmarket/internal/domain"
	"evmarket/internal/domain/payments"
	"evmarket/internal/events"
	"evmarket/internal/repository"
)

// RenewInput is a confirmed plan payment to apply to an account
type RenewInput struct {
	AccountID  string
	PlanTier   domain.PlanTier
	PaymentRef string
	Ad         *domain.AdContent
}

// RenewResult is the outcome of a renewal
type RenewResult struct {
	Entitlement *domain.Entitlement `json:"entitlement"`
	Request     *domain.AdRequest   `json:"request,omitempty"`
	Replayed    bool                `json:"replayed"`
}

// PurchaseInput asks the engine to charge for a plan and then renew
type PurchaseInput struct {
	AccountID      string
	PlanTier       domain.PlanTier
	PaymentMethod  string
	Ad             *domain.AdContent
	IdempotencyKey string
}

// EntitlementView is an entitlement with its activity evaluated now
type EntitlementView struct {
	*domain.Entitlement
	Active bool `json:"active"`
}

// RenewalEngine applies plan purchases to account entitlements
type RenewalEngine struct {
	accounts   repository.AccountRepository
	ents       repository.EntitlementRepository
	ads        repository.AdRequestRepository
	guard      repository.PaymentRefGuard
	provider   payments.Provider
	submission *SubmissionService
	pricing    Pricing
	opts       Options
}

func NewRenewalEngine(repos *repository.Repositories, provider payments.Provider, submission *SubmissionService, pricing Pricing, opts Options) *RenewalEngine {
	return &RenewalEngine{
		accounts:   repos.Accounts,
		ents:       repos.Entitlements,
		ads:        repos.AdRequests,
		guard:      repos.PaymentGuard,
		provider:   provider,
		submission: submission,
		pricing:    pricing,
		opts:       opts.withDefaults(),
	}
}

// Current returns the stored entitlement with lazily evaluated activity
func (e *RenewalEngine) Current(ctx context.Context, accountID string) (*EntitlementView, error) {
	ent, err := e.ents.Get(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load entitlement: %w", err)
	}
	return &EntitlementView{Entitlement: ent, Active: ent.IsActive(e.opts.now())}, nil
}

// Purchase charges the plan price and renews on a confirmed payment. An
// unresolved charge returns domain.ErrPaymentOutcomeUnknown and mutates nothing.
func (e *RenewalEngine) Purchase(ctx context.Context, in PurchaseInput) (*RenewResult, error) {
	tier, err := domain.ParsePlanTier(string(in.PlanTier))
	if err != nil {
		return nil, err
	}
	if in.Ad != nil {
		content, err := domain.ValidateContent(*in.Ad)
		if err != nil {
			return nil, err
		}
		in.Ad = &content
	}
	price := e.pricing.PlanPrice(tier)
	if price <= 0 {
		return nil, domain.NewValidationError("planTier", "plan is not for sale")
	}

	account, err := e.accounts.GetByID(ctx, in.AccountID)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}

	ref, err := e.provider.Charge(ctx, payments.ChargeRequest{
		Amount:         price,
		Currency:       e.pricing.Currency,
		Description:    fmt.Sprintf("%s subscription for %s", tier, account.BrandOrEmail()),
		PayerEmail:     account.Email,
		PayerName:      account.Name,
		PaymentMethod:  in.PaymentMethod,
		IdempotencyKey: chargeKey("plan", in.AccountID, in.IdempotencyKey),
	})
	if err != nil {
		outcome := "failed"
		if errors.Is(err, domain.ErrPaymentOutcomeUnknown) {
			outcome = "unknown"
		} else if errors.Is(err, payments.ErrDeclined) {
			outcome = "declined"
		}
		e.opts.Metrics.Charge("plan", outcome)
		e.opts.Logger.WarnContext(ctx, "plan charge not confirmed",
			"module", "renewal", "operation", "purchase", "outcome", outcome,
			"account_id", in.AccountID, "plan", tier, "error", err)
		return nil, err
	}
	e.opts.Metrics.Charge("plan", "succeeded")

	return e.Renew(ctx, RenewInput{AccountID: in.AccountID, PlanTier: tier, PaymentRef: ref, Ad: in.Ad})
}

// Renew applies a confirmed payment: stack the expiry, merge the entitlement,
// append the ledger row and forward any pending ad content. A payment that
// was already applied returns the stored entitlement unchanged.
func (e *RenewalEngine) Renew(ctx context.Context, in RenewInput) (*RenewResult, error) {
	tier, err := domain.ParsePlanTier(string(in.PlanTier))
	if err != nil {
		return nil, err
	}
	ref := strings.TrimSpace(in.PaymentRef)
	if ref == "" {
		return nil, domain.NewValidationError("paymentRef", "is required")
	}
	var content *domain.AdContent
	if in.Ad != nil {
		c, err := domain.ValidateContent(*in.Ad)
		if err != nil {
			return nil, err
		}
		content = &c
	}

	claimed, err := e.guard.Claim(ctx, ref)
	if err != nil {
		return nil, e.persistFailed(ctx, in.AccountID, ref, fmt.Errorf("claim payment: %w", err))
	}
	if !claimed {
		return nil, ErrPaymentInProgress
	}
	defer func() {
		if err := e.guard.Release(context.WithoutCancel(ctx), ref); err != nil {
			e.opts.Logger.WarnContext(ctx, "payment claim not released", "payment_ref", ref, "error", err)
		}
	}()

	prior, err := e.ents.Get(ctx, in.AccountID)
	if err != nil {
		return nil, e.persistFailed(ctx, in.AccountID, ref, fmt.Errorf("load entitlement: %w", err))
	}
	applied, err := e.paymentApplied(ctx, prior, ref)
	if err != nil {
		return nil, e.persistFailed(ctx, in.AccountID, ref, fmt.Errorf("look up payment: %w", err))
	}
	if applied {
		e.opts.Logger.InfoContext(ctx, "renewal already applied",
			"module", "renewal", "operation", "renew", "outcome", "replayed",
			"account_id", in.AccountID, "payment_ref", ref)
		return &RenewResult{Entitlement: prior, Replayed: true}, nil
	}

	now := e.opts.now()
	expires := domain.StackExpiry(prior, tier, now)
	ent := &domain.Entitlement{
		AccountID:      in.AccountID,
		PlanTier:       tier,
		Status:         domain.EntitlementActive,
		ExpiresAt:      &expires,
		LastRenewalAt:  &now,
		LastPaymentRef: ref,
	}
	if err := e.ents.Merge(ctx, ent); err != nil {
		e.opts.Metrics.Renewal(string(tier), "persist_failed")
		return nil, e.persistFailed(ctx, in.AccountID, ref, fmt.Errorf("merge entitlement: %w", err))
	}

	e.opts.Metrics.Renewal(string(tier), "ok")
	e.opts.Logger.InfoContext(ctx, "entitlement renewed",
		"module", "renewal", "operation", "renew", "outcome", "ok",
		"account_id", in.AccountID, "plan", tier, "expires_at", expires, "payment_ref", ref)
	e.opts.emit(ctx, events.EntitlementRenewed, in.AccountID, ent)

	result := &RenewResult{Entitlement: ent}
	completed := []string{"entitlement"}
	var failed []string
	var errs []error

	if err := e.recordUpgrade(ctx, in.AccountID, tier, ref, now, ent.ExpiresAt); err != nil {
		failed = append(failed, "ledger")
		errs = append(errs, err)
	} else {
		completed = append(completed, "ledger")
	}

	if content != nil {
		req, err := e.submission.create(ctx, in.AccountID, ent, *content)
		if err != nil {
			failed = append(failed, "submission")
			errs = append(errs, err)
		} else {
			completed = append(completed, "submission")
			result.Request = req
		}
	}

	if len(errs) > 0 {
		return result, e.opts.partial(ctx, &domain.PartialWriteError{
			Operation: "renew",
			Completed: completed,
			Failed:    strings.Join(failed, ", "),
			Err:       errors.Join(errs...),
		}, "account_id", in.AccountID, "payment_ref", ref)
	}
	return result, nil
}

// paymentApplied reports whether ref was already consumed, either as the
// entitlement's latest payment or by any row in the ledger
func (e *RenewalEngine) paymentApplied(ctx context.Context, prior *domain.Entitlement, ref string) (bool, error) {
	if prior.LastPaymentRef == ref {
		return true, nil
	}
	_, err := e.ads.FindByPaymentRef(ctx, ref)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// recordUpgrade appends the subscription_upgrade ledger row for a plan purchase
func (e *RenewalEngine) recordUpgrade(ctx context.Context, accountID string, tier domain.PlanTier, ref string, now time.Time, expires *time.Time) error {
	account, err := e.accounts.GetByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	row := &domain.AdRequest{
		AccountID:   accountID,
		Brand:       account.BrandOrEmail(),
		Plan:        string(tier),
		Amount:      e.pricing.PlanPrice(tier),
		PaymentRef:  ref,
		Status:      domain.AdStatusSubscriptionUpgrade,
		SubmittedAt: now,
		ExpiresAt:   expires,
	}
	if err := e.ads.Create(ctx, row); err != nil {
		return fmt.Errorf("record plan purchase: %w", err)
	}
	return nil
}

// persistFailed keeps the payment reference visible when a confirmed payment
// cannot be recorded
func (e *RenewalEngine) persistFailed(ctx context.Context, accountID, ref string, err error) error {
	e.opts.Metrics.PaymentPersistFailure()
	e.opts.Logger.ErrorContext(ctx, "confirmed payment not recorded",
		"module", "renewal", "operation", "renew", "outcome", "persist_failed",
		"account_id", accountID, "payment_ref", ref, "error", err)
	e.opts.emit(ctx, events.PaymentPersistFailed, accountID, map[string]string{
		"accountId":  accountID,
		"paymentRef": ref,
		"error":      err.Error(),
	})
	return &domain.PaymentPersistError{PaymentRef: ref, Err: err}
}
