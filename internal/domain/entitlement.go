package domain

import (
	"fmt"
	"time"
)

// PlanTier is the subscription tier held by a business account
type PlanTier string

const (
	PlanNone      PlanTier = "none"
	PlanMonthly   PlanTier = "monthly"
	PlanQuarterly PlanTier = "quarterly"
	PlanYearly    PlanTier = "yearly"
)

// EntitlementStatus is the stored subscription status. It is never flipped
// on expiry; readers compare ExpiresAt with the current time instead.
type EntitlementStatus string

const (
	EntitlementInactive EntitlementStatus = "inactive"
	EntitlementActive   EntitlementStatus = "active"
)

// Entitlement is an account's current subscription and its validity window
type Entitlement struct {
	AccountID      string            `json:"accountId"`
	PlanTier       PlanTier          `json:"planTier"`
	Status         EntitlementStatus `json:"status"`
	ExpiresAt      *time.Time        `json:"expiresAt,omitempty"`
	LastRenewalAt  *time.Time        `json:"lastRenewalAt,omitempty"`
	LastPaymentRef string            `json:"lastPaymentRef,omitempty"`
}

// ParsePlanTier validates a purchasable tier name
func ParsePlanTier(raw string) (PlanTier, error) {
	switch tier := PlanTier(raw); tier {
	case PlanMonthly, PlanQuarterly, PlanYearly:
		return tier, nil
	}
	return "", &ValidationError{Fields: []FieldError{{Field: "planTier", Message: fmt.Sprintf("unknown plan %q", raw)}}}
}

// Months returns the number of calendar months a tier adds
func (p PlanTier) Months() int {
	switch p {
	case PlanMonthly:
		return 1
	case PlanQuarterly:
		return 3
	case PlanYearly:
		return 12
	}
	return 0
}

// IsActive evaluates the entitlement lazily against now
func (e *Entitlement) IsActive(now time.Time) bool {
	if e == nil {
		return false
	}
	return e.Status == EntitlementActive && e.ExpiresAt != nil && e.ExpiresAt.After(now)
}

// StackExpiry computes the expiry after renewing tier at now. Unused time on a
// still-valid prior entitlement rolls forward instead of being forfeited.
func StackExpiry(prior *Entitlement, tier PlanTier, now time.Time) time.Time {
	base := now
	if prior != nil && prior.ExpiresAt != nil && prior.ExpiresAt.After(base) {
		base = *prior.ExpiresAt
	}
	return base.AddDate(0, tier.Months(), 0)
}
