// Package repository defines interfaces for data persistence
package repository

import (
	"context"
	"time"

	"evmarket/internal/domain"
)

// AccountRepository defines the interface for account data operations
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	Count(ctx context.Context, role string) (int, error)
}

// EntitlementRepository reads and merge-updates the entitlement fields of an
// account. Merge never touches any other account field.
type EntitlementRepository interface {
	Get(ctx context.Context, accountID string) (*domain.Entitlement, error)
	Merge(ctx context.Context, ent *domain.Entitlement) error
}

// AdRequestRepository defines the interface for the ad ledger
type AdRequestRepository interface {
	Create(ctx context.Context, req *domain.AdRequest) error
	GetByID(ctx context.Context, id string) (*domain.AdRequest, error)
	Update(ctx context.Context, req *domain.AdRequest) error
	UpdateStatus(ctx context.Context, id string, status domain.AdStatus) error
	MarkPublished(ctx context.Context, id string, targetPages []string, publishedAt time.Time) error
	ListByStatus(ctx context.Context, status domain.AdStatus) ([]domain.AdRequest, error)
	ListByAccount(ctx context.Context, accountID string) ([]domain.AdRequest, error)
	List(ctx context.Context) ([]domain.AdRequest, error)
	FindByPaymentRef(ctx context.Context, paymentRef string) (*domain.AdRequest, error)
}

// AdSlotRepository stores the singleton GlobalAdSlot. Put replaces the whole
// record and bumps its version; concurrent writers are last-write-wins.
type AdSlotRepository interface {
	Get(ctx context.Context) (*domain.GlobalAdSlot, error)
	Put(ctx context.Context, slot *domain.GlobalAdSlot) error
	Delete(ctx context.Context) error
}

// PaymentRefGuard makes sure one payment reference is processed by one caller
// at a time. Claim returns false when the reference is already held.
type PaymentRefGuard interface {
	Claim(ctx context.Context, paymentRef string) (bool, error)
	Release(ctx context.Context, paymentRef string) error
}

// SettingsRepository handles runtime key/value state
type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Repositories bundles all repository interfaces
type Repositories struct {
	Accounts     AccountRepository
	Entitlements EntitlementRepository
	AdRequests   AdRequestRepository
	AdSlot       AdSlotRepository
	PaymentGuard PaymentRefGuard
	Settings     SettingsRepository
}
