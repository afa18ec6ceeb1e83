package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evmarket/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return db
}

func createAccount(t *testing.T, db *DB, email string) *domain.Account {
	t.Helper()
	acc := &domain.Account{Email: email, PasswordHash: "x", Name: "Volt Motors", Brand: "Volt", Role: domain.RoleBusiness}
	require.NoError(t, NewAccountRepo(db).Create(context.Background(), acc))
	return acc
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Migrate())
}

func TestAccountRepo(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewAccountRepo(db)

	acc := createAccount(t, db, "ops@volt.example")
	assert.NotEmpty(t, acc.ID)

	got, err := repo.GetByEmail(ctx, "ops@volt.example")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, got.ID)
	assert.Equal(t, domain.PlanNone, got.Entitlement.PlanTier)
	assert.Equal(t, domain.EntitlementInactive, got.Entitlement.Status)
	assert.Nil(t, got.Entitlement.ExpiresAt)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = repo.Create(ctx, &domain.Account{Email: "ops@volt.example", PasswordHash: "x", Name: "dup", Role: domain.RoleUser})
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	n, err := repo.Count(ctx, domain.RoleBusiness)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEntitlementMergeLeavesAccountFields(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	acc := createAccount(t, db, "merge@volt.example")
	ents := NewEntitlementRepo(db)

	expires := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	renewed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, ents.Merge(ctx, &domain.Entitlement{
		AccountID:      acc.ID,
		PlanTier:       domain.PlanYearly,
		Status:         domain.EntitlementActive,
		ExpiresAt:      &expires,
		LastRenewalAt:  &renewed,
		LastPaymentRef: "pay_1",
	}))

	ent, err := ents.Get(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanYearly, ent.PlanTier)
	assert.True(t, ent.ExpiresAt.Equal(expires))
	assert.Equal(t, "pay_1", ent.LastPaymentRef)

	got, err := NewAccountRepo(db).GetByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Volt", got.Brand)
	assert.Equal(t, "merge@volt.example", got.Email)

	err = ents.Merge(ctx, &domain.Entitlement{AccountID: "nobody", PlanTier: domain.PlanMonthly})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAdRequestRepo(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	acc := createAccount(t, db, "ads@volt.example")
	repo := NewAdRequestRepo(db)

	submitted := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	req := &domain.AdRequest{
		AccountID:   acc.ID,
		Brand:       "Volt",
		Title:       "Charge faster",
		Description: "DC chargers",
		TargetLink:  "https://volt.example",
		ImageURL:    "https://volt.example/a.png",
		TargetPages: []string{domain.PageHome},
		Plan:        string(domain.PlanYearly),
		PaymentRef:  "pay_42",
		Status:      domain.AdStatusPending,
		SubmittedAt: submitted,
	}
	require.NoError(t, repo.Create(ctx, req))
	require.NotEmpty(t, req.ID)

	got, err := repo.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{domain.PageHome}, got.TargetPages)
	assert.True(t, got.SubmittedAt.Equal(submitted))
	assert.Nil(t, got.PublishedAt)

	published := submitted.Add(time.Hour)
	require.NoError(t, repo.MarkPublished(ctx, req.ID, []string{domain.PageHome, domain.PageStore}, published))
	got, err = repo.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AdStatusActive, got.Status)
	assert.Equal(t, []string{domain.PageHome, domain.PageStore}, got.TargetPages)
	require.NotNil(t, got.PublishedAt)
	assert.True(t, got.PublishedAt.Equal(published))
	assert.Equal(t, "Charge faster", got.Title)

	active, err := repo.ListByStatus(ctx, domain.AdStatusActive)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	pending, err := repo.ListByStatus(ctx, domain.AdStatusPending)
	require.NoError(t, err)
	assert.Empty(t, pending)

	byPay, err := repo.FindByPaymentRef(ctx, "pay_42")
	require.NoError(t, err)
	assert.Equal(t, req.ID, byPay.ID)

	require.NoError(t, repo.UpdateStatus(ctx, req.ID, domain.AdStatusCancelled))
	assert.ErrorIs(t, repo.UpdateStatus(ctx, "missing", domain.AdStatusCancelled), domain.ErrNotFound)

	mine, err := repo.ListByAccount(ctx, acc.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, domain.AdStatusCancelled, mine[0].Status)
}

func TestAdSlotRepoVersionsAndDelete(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewAdSlotRepo(db)

	slot, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, slot)

	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	first := &domain.GlobalAdSlot{Brand: "A", TargetPages: []string{domain.PageHome}, ActivatedAt: now, ExpiresAt: now.AddDate(0, 0, 30), SourceRequestID: "r1"}
	require.NoError(t, repo.Put(ctx, first))
	assert.Equal(t, int64(1), first.Version)

	second := &domain.GlobalAdSlot{Brand: "B", TargetPages: []string{domain.PageAbout}, ActivatedAt: now, ExpiresAt: now.AddDate(0, 0, 7), SourceRequestID: "r2"}
	require.NoError(t, repo.Put(ctx, second))
	assert.Equal(t, int64(2), second.Version)

	got, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "B", got.Brand)
	assert.Equal(t, "r2", got.SourceRequestID)
	assert.Equal(t, []string{domain.PageAbout}, got.TargetPages)

	require.NoError(t, repo.Delete(ctx))
	require.NoError(t, repo.Delete(ctx))
	got, err = repo.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	third := &domain.GlobalAdSlot{Brand: "C", ActivatedAt: now, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, repo.Put(ctx, third))
	assert.Equal(t, int64(3), third.Version)
}

func TestPaymentGuard(t *testing.T) {
	ctx := context.Background()
	guard := NewPaymentGuard(newTestDB(t))

	ok, err := guard.Claim(ctx, "pay_1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = guard.Claim(ctx, "pay_1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, guard.Release(ctx, "pay_1"))
	ok, err = guard.Claim(ctx, "pay_1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSettingsRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewSettingsRepo(newTestDB(t))

	v, err := repo.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, repo.Set(ctx, "k", "1"))
	require.NoError(t, repo.Set(ctx, "k", "2"))
	v, err = repo.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}
