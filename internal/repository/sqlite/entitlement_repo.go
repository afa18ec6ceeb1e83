package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"evmarket/internal/domain"
	"evmarket/internal/repository"
)

// EntitlementRepo implements repository.EntitlementRepository over the accounts table
type EntitlementRepo struct {
	db *DB
}

// NewEntitlementRepo creates a new EntitlementRepo
func NewEntitlementRepo(db *DB) repository.EntitlementRepository {
	return &EntitlementRepo{db: db}
}

func (r *EntitlementRepo) Get(ctx context.Context, accountID string) (*domain.Entitlement, error) {
	query := `SELECT plan_tier, subscription_status, expires_at, last_renewal_at, last_payment_ref
		FROM accounts WHERE id = ?`
	var (
		ent                  domain.Entitlement
		expiresAt, renewedAt sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(
		&ent.PlanTier, &ent.Status, &expiresAt, &renewedAt, &ent.LastPaymentRef)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: account %s", domain.ErrNotFound, accountID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entitlement: %w", err)
	}
	ent.AccountID = accountID
	ent.ExpiresAt = timePtr(expiresAt)
	ent.LastRenewalAt = timePtr(renewedAt)
	return &ent, nil
}

// Merge writes only the entitlement columns. Other account fields are untouched.
func (r *EntitlementRepo) Merge(ctx context.Context, ent *domain.Entitlement) error {
	query := `UPDATE accounts SET plan_tier = ?, subscription_status = ?, expires_at = ?,
		last_renewal_at = ?, last_payment_ref = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, ent.PlanTier, ent.Status,
		nullMillis(ent.ExpiresAt), nullMillis(ent.LastRenewalAt), ent.LastPaymentRef, ent.AccountID)
	if err != nil {
		return fmt.Errorf("failed to merge entitlement: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: account %s", domain.ErrNotFound, ent.AccountID)
	}
	return nil
}
