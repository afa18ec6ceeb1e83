package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"evmarket/internal/domain"
	"evmarket/internal/repository"
)

const accountColumns = `id, email, password_hash, name, brand, role, created_at,
	plan_tier, subscription_status, expires_at, last_renewal_at, last_payment_ref`

// AccountRepo implements repository.AccountRepository
type AccountRepo struct {
	db *DB
}

// NewAccountRepo creates a new AccountRepo
func NewAccountRepo(db *DB) repository.AccountRepository {
	return &AccountRepo{db: db}
}

func (r *AccountRepo) Create(ctx context.Context, account *domain.Account) error {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	if account.Entitlement.PlanTier == "" {
		account.Entitlement.PlanTier = domain.PlanNone
	}
	if account.Entitlement.Status == "" {
		account.Entitlement.Status = domain.EntitlementInactive
	}
	account.Entitlement.AccountID = account.ID

	query := `
		INSERT INTO accounts (id, email, password_hash, name, brand, role, created_at,
			plan_tier, subscription_status, expires_at, last_renewal_at, last_payment_ref)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	ent := account.Entitlement
	_, err := r.db.ExecContext(ctx, query,
		account.ID, account.Email, account.PasswordHash, account.Name, account.Brand, account.Role,
		toMillis(account.CreatedAt), ent.PlanTier, ent.Status,
		nullMillis(ent.ExpiresAt), nullMillis(ent.LastRenewalAt), ent.LastPaymentRef)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: email %s", domain.ErrDuplicate, account.Email)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *AccountRepo) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`
	account, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: account %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = ?`
	account, err := scanAccount(r.db.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: account %s", domain.ErrNotFound, email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account by email: %w", err)
	}
	return account, nil
}

func (r *AccountRepo) Count(ctx context.Context, role string) (int, error) {
	var query string
	var args []interface{}

	if role != "" {
		query = `SELECT COUNT(*) FROM accounts WHERE role = ?`
		args = []interface{}{role}
	} else {
		query = `SELECT COUNT(*) FROM accounts`
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var (
		a                    domain.Account
		createdAt            int64
		expiresAt, renewedAt sql.NullInt64
	)
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Name, &a.Brand, &a.Role, &createdAt,
		&a.Entitlement.PlanTier, &a.Entitlement.Status, &expiresAt, &renewedAt, &a.Entitlement.LastPaymentRef)
	if err != nil {
		return nil, err
	}
	a.CreatedAt = fromMillis(createdAt)
	a.Entitlement.AccountID = a.ID
	a.Entitlement.ExpiresAt = timePtr(expiresAt)
	a.Entitlement.LastRenewalAt = timePtr(renewedAt)
	return &a, nil
}
