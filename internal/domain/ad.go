package domain

import (
	"encoding/json"
	"errors"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// AdStatus is the lifecycle state of an ad request
type AdStatus string

const (
	AdStatusPending             AdStatus = "pending"
	AdStatusActive              AdStatus = "active"
	AdStatusRejected            AdStatus = "rejected"
	AdStatusCancelled           AdStatus = "cancelled"
	AdStatusSubscriptionUpgrade AdStatus = "subscription_upgrade"
)

// TargetPage constants for the site locations an ad may be shown on
const (
	PageHome      = "Home"
	PageAbout     = "About"
	PagePricing   = "Pricing"
	PageDashboard = "Dashboard"
	PageStore     = "Store"
)

// TargetPages lists every page an ad may target, in display order
var TargetPages = []string{PageHome, PageAbout, PagePricing, PageDashboard, PageStore}

// PlanPlacement marks ledger rows paid per placement instead of under a subscription
const PlanPlacement = "placement"

// DefaultPublishDays is used when an admin gives no usable duration
const DefaultPublishDays = 30

// MaxPublishDays is the default upper bound on a publish duration
const MaxPublishDays = 3650

// IsTargetPage reports whether page is one of the enumerated site locations
func IsTargetPage(page string) bool {
	return slices.Contains(TargetPages, page)
}

// AdContent is the creative submitted by a business and editable by an admin
type AdContent struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description" validate:"required"`
	TargetLink  string   `json:"targetLink" validate:"required"`
	ImageURL    string   `json:"imageUrl" validate:"required"`
	TargetPages []string `json:"targetPages" validate:"required,min=1,unique,dive,targetpage"`
}

// Normalized returns a copy with surrounding whitespace removed
func (c AdContent) Normalized() AdContent {
	out := AdContent{
		Title:       strings.TrimSpace(c.Title),
		Description: strings.TrimSpace(c.Description),
		TargetLink:  strings.TrimSpace(c.TargetLink),
		ImageURL:    strings.TrimSpace(c.ImageURL),
	}
	for _, p := range c.TargetPages {
		out.TargetPages = append(out.TargetPages, strings.TrimSpace(p))
	}
	return out
}

// AdRequest is one submission attempt in the ad ledger
type AdRequest struct {
	ID          string     `json:"id"`
	AccountID   string     `json:"accountId"`
	Brand       string     `json:"brand"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	TargetLink  string     `json:"targetLink"`
	ImageURL    string     `json:"imageUrl"`
	TargetPages []string   `json:"targetPages"`
	Plan        string     `json:"plan"`
	Amount      int64      `json:"amount"`
	PaymentRef  string     `json:"paymentRef,omitempty"`
	Status      AdStatus   `json:"status"`
	SubmittedAt time.Time  `json:"submittedAt"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// Content returns the creative fields of the request
func (r *AdRequest) Content() AdContent {
	return AdContent{
		Title:       r.Title,
		Description: r.Description,
		TargetLink:  r.TargetLink,
		ImageURL:    r.ImageURL,
		TargetPages: slices.Clone(r.TargetPages),
	}
}

// GlobalAdSlot is the single currently-live advertisement
type GlobalAdSlot struct {
	Brand           string    `json:"brand"`
	Plan            string    `json:"plan"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	TargetLink      string    `json:"targetLink"`
	ImageURL        string    `json:"imageUrl"`
	TargetPages     []string  `json:"targetPages"`
	ActivatedAt     time.Time `json:"activatedAt"`
	ExpiresAt       time.Time `json:"expiresAt"`
	SourceRequestID string    `json:"sourceRequestId"`
	Version         int64     `json:"version"`
}

// VisibleOn reports whether the slot should be shown on page at now
func (s *GlobalAdSlot) VisibleOn(page string, now time.Time) bool {
	if s == nil {
		return false
	}
	return s.ExpiresAt.After(now) && slices.Contains(s.TargetPages, page)
}

// ParseDurationDays reads an admin-entered duration. Anything that is not a
// positive whole number falls back to DefaultPublishDays.
func ParseDurationDays(raw string) int {
	days, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return DefaultPublishDays
	}
	return durationFromFloat(days)
}

// DurationDaysFrom reads a duration decoded from JSON, which may arrive as a
// number or a string
func DurationDaysFrom(v any) int {
	switch d := v.(type) {
	case float64:
		return durationFromFloat(d)
	case json.Number:
		return ParseDurationDays(d.String())
	case string:
		return ParseDurationDays(d)
	}
	return DefaultPublishDays
}

func durationFromFloat(days float64) int {
	if math.IsNaN(days) || days <= 0 || days != math.Trunc(days) {
		return DefaultPublishDays
	}
	if days > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(days)
}

// NormalizeDurationDays replaces non-positive durations with DefaultPublishDays
func NormalizeDurationDays(days int) int {
	if days <= 0 {
		return DefaultPublishDays
	}
	return days
}
