package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"evmarket/internal/domain"
	"evmarket/internal/repository"
)

const adRequestColumns = `id, account_id, brand, title, description, target_link, image_url,
	target_pages, plan, amount, payment_ref, status, submitted_at, published_at, expires_at`

// AdRequestRepo implements repository.AdRequestRepository
type AdRequestRepo struct {
	db *DB
}

// NewAdRequestRepo creates a new AdRequestRepo
func NewAdRequestRepo(db *DB) repository.AdRequestRepository {
	return &AdRequestRepo{db: db}
}

func (r *AdRequestRepo) Create(ctx context.Context, req *domain.AdRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	pages, err := encodePages(req.TargetPages)
	if err != nil {
		return err
	}

	query := `INSERT INTO ad_requests (` + adRequestColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		req.ID, req.AccountID, req.Brand, req.Title, req.Description, req.TargetLink, req.ImageURL,
		pages, req.Plan, req.Amount, req.PaymentRef, req.Status, toMillis(req.SubmittedAt),
		nullMillis(req.PublishedAt), nullMillis(req.ExpiresAt))
	if err != nil {
		return fmt.Errorf("failed to create ad request: %w", err)
	}
	return nil
}

func (r *AdRequestRepo) GetByID(ctx context.Context, id string) (*domain.AdRequest, error) {
	query := `SELECT ` + adRequestColumns + ` FROM ad_requests WHERE id = ?`
	req, err := scanAdRequest(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: ad request %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ad request: %w", err)
	}
	return req, nil
}

// Update replaces every mutable field of the request
func (r *AdRequestRepo) Update(ctx context.Context, req *domain.AdRequest) error {
	pages, err := encodePages(req.TargetPages)
	if err != nil {
		return err
	}
	query := `UPDATE ad_requests SET brand = ?, title = ?, description = ?, target_link = ?,
		image_url = ?, target_pages = ?, plan = ?, amount = ?, payment_ref = ?, status = ?,
		published_at = ?, expires_at = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query,
		req.Brand, req.Title, req.Description, req.TargetLink, req.ImageURL, pages, req.Plan,
		req.Amount, req.PaymentRef, req.Status, nullMillis(req.PublishedAt), nullMillis(req.ExpiresAt), req.ID)
	if err != nil {
		return fmt.Errorf("failed to update ad request: %w", err)
	}
	return expectRow(res, "ad request", req.ID)
}

func (r *AdRequestRepo) UpdateStatus(ctx context.Context, id string, status domain.AdStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE ad_requests SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update ad request status: %w", err)
	}
	return expectRow(res, "ad request", id)
}

// MarkPublished merges the fields set when an admin publishes a request
func (r *AdRequestRepo) MarkPublished(ctx context.Context, id string, targetPages []string, publishedAt time.Time) error {
	pages, err := encodePages(targetPages)
	if err != nil {
		return err
	}
	query := `UPDATE ad_requests SET status = ?, published_at = ?, target_pages = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, domain.AdStatusActive, toMillis(publishedAt), pages, id)
	if err != nil {
		return fmt.Errorf("failed to mark ad request published: %w", err)
	}
	return expectRow(res, "ad request", id)
}

func (r *AdRequestRepo) ListByStatus(ctx context.Context, status domain.AdStatus) ([]domain.AdRequest, error) {
	query := `SELECT ` + adRequestColumns + ` FROM ad_requests WHERE status = ?`
	return r.list(ctx, query, status)
}

func (r *AdRequestRepo) ListByAccount(ctx context.Context, accountID string) ([]domain.AdRequest, error) {
	query := `SELECT ` + adRequestColumns + ` FROM ad_requests WHERE account_id = ?`
	return r.list(ctx, query, accountID)
}

func (r *AdRequestRepo) List(ctx context.Context) ([]domain.AdRequest, error) {
	query := `SELECT ` + adRequestColumns + ` FROM ad_requests`
	return r.list(ctx, query)
}

func (r *AdRequestRepo) FindByPaymentRef(ctx context.Context, paymentRef string) (*domain.AdRequest, error) {
	query := `SELECT ` + adRequestColumns + ` FROM ad_requests WHERE payment_ref = ? LIMIT 1`
	req, err := scanAdRequest(r.db.QueryRowContext(ctx, query, paymentRef))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: payment %s", domain.ErrNotFound, paymentRef)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find ad request by payment: %w", err)
	}
	return req, nil
}

func (r *AdRequestRepo) list(ctx context.Context, query string, args ...any) ([]domain.AdRequest, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ad requests: %w", err)
	}
	defer rows.Close()

	var out []domain.AdRequest
	for rows.Next() {
		req, err := scanAdRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ad request: %w", err)
		}
		out = append(out, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list ad requests: %w", err)
	}
	return out, nil
}

func scanAdRequest(row rowScanner) (*domain.AdRequest, error) {
	var (
		req                    domain.AdRequest
		pages                  string
		submittedAt            int64
		publishedAt, expiresAt sql.NullInt64
	)
	err := row.Scan(&req.ID, &req.AccountID, &req.Brand, &req.Title, &req.Description, &req.TargetLink,
		&req.ImageURL, &pages, &req.Plan, &req.Amount, &req.PaymentRef, &req.Status, &submittedAt,
		&publishedAt, &expiresAt)
	if err != nil {
		return nil, err
	}
	if req.TargetPages, err = decodePages(pages); err != nil {
		return nil, err
	}
	req.SubmittedAt = fromMillis(submittedAt)
	req.PublishedAt = timePtr(publishedAt)
	req.ExpiresAt = timePtr(expiresAt)
	return &req, nil
}

func expectRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", domain.ErrNotFound, kind, id)
	}
	return nil
}
