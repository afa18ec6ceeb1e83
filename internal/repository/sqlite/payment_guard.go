package sqlite

import (
	"context"
	"fmt"
	"time"

	"evmarket/internal/repository"
)

// PaymentGuard implements repository.PaymentRefGuard with a claims table
type PaymentGuard struct {
	db *DB
}

// NewPaymentGuard creates a new PaymentGuard
func NewPaymentGuard(db *DB) repository.PaymentRefGuard {
	return &PaymentGuard{db: db}
}

func (g *PaymentGuard) Claim(ctx context.Context, paymentRef string) (bool, error) {
	res, err := g.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO payment_claims (payment_ref, claimed_at) VALUES (?, ?)`,
		paymentRef, toMillis(time.Now()))
	if err != nil {
		return false, fmt.Errorf("failed to claim payment %s: %w", paymentRef, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to claim payment %s: %w", paymentRef, err)
	}
	return n == 1, nil
}

func (g *PaymentGuard) Release(ctx context.Context, paymentRef string) error {
	if _, err := g.db.ExecContext(ctx, `DELETE FROM payment_claims WHERE payment_ref = ?`, paymentRef); err != nil {
		return fmt.Errorf("failed to release payment %s: %w", paymentRef, err)
	}
	return nil
}
