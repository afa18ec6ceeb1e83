package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"evmarket/internal/domain"
	"evmarket/internal/repository"
)

// AdSlotRepo implements repository.AdSlotRepository
type AdSlotRepo struct {
	db *DB
}

// NewAdSlotRepo creates a new AdSlotRepo
func NewAdSlotRepo(db *DB) repository.AdSlotRepository {
	return &AdSlotRepo{db: db}
}

// Get returns the current slot, or nil when no ad is placed
func (r *AdSlotRepo) Get(ctx context.Context) (*domain.GlobalAdSlot, error) {
	query := `SELECT brand, plan, title, description, target_link, image_url, target_pages,
		activated_at, expires_at, source_request_id, version FROM global_ad_slot WHERE id = 1`
	var (
		s                      domain.GlobalAdSlot
		pages                  string
		activatedAt, expiresAt int64
	)
	err := r.db.QueryRowContext(ctx, query).Scan(&s.Brand, &s.Plan, &s.Title, &s.Description,
		&s.TargetLink, &s.ImageURL, &pages, &activatedAt, &expiresAt, &s.SourceRequestID, &s.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ad slot: %w", err)
	}
	if s.TargetPages, err = decodePages(pages); err != nil {
		return nil, err
	}
	s.ActivatedAt = fromMillis(activatedAt)
	s.ExpiresAt = fromMillis(expiresAt)
	return &s, nil
}

// Put overwrites the slot. slot.Version is set to the new version on success.
func (r *AdSlotRepo) Put(ctx context.Context, slot *domain.GlobalAdSlot) error {
	pages, err := encodePages(slot.TargetPages)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin slot write: %w", err)
	}
	defer tx.Rollback()

	var version int64
	err = tx.QueryRowContext(ctx,
		`UPDATE slot_version SET version = version + 1 WHERE id = 1 RETURNING version`).Scan(&version)
	if err != nil {
		return fmt.Errorf("failed to bump slot version: %w", err)
	}

	query := `INSERT OR REPLACE INTO global_ad_slot (id, brand, plan, title, description, target_link,
		image_url, target_pages, activated_at, expires_at, source_request_id, version)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, query, slot.Brand, slot.Plan, slot.Title, slot.Description,
		slot.TargetLink, slot.ImageURL, pages, toMillis(slot.ActivatedAt), toMillis(slot.ExpiresAt),
		slot.SourceRequestID, version)
	if err != nil {
		return fmt.Errorf("failed to write ad slot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ad slot: %w", err)
	}
	slot.Version = version
	return nil
}

// Delete removes the slot. Deleting an empty slot is not an error.
func (r *AdSlotRepo) Delete(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM global_ad_slot WHERE id = 1`); err != nil {
		return fmt.Errorf("failed to delete ad slot: %w", err)
	}
	return nil
}
