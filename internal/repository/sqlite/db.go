// Package sqlite provides SQLite implementation of repository interfaces
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"evmarket/internal/repository"
)

// DB wraps the sql.DB with SQLite-specific optimizations
type DB struct {
	*sql.DB
}

// New creates a new SQLite database connection
func New(dbPath string) (*DB, error) {
	cleanPath := filepath.Clean(dbPath)

	// Check if path tries to escape current directory
	if !filepath.IsLocal(cleanPath) && !filepath.IsAbs(cleanPath) {
		return nil, fmt.Errorf("invalid database path: potential path traversal detected")
	}

	dir := filepath.Dir(cleanPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// WAL for concurrent readers, busy_timeout for lock contention
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)", cleanPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &DB{db}, nil
}

// Migrate runs database migrations
func (db *DB) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			name TEXT NOT NULL,
			brand TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'user',
			created_at INTEGER NOT NULL
		)`,

		// Entitlement fields live on the account record
		`ALTER TABLE accounts ADD COLUMN plan_tier TEXT NOT NULL DEFAULT 'none'`,
		`ALTER TABLE accounts ADD COLUMN subscription_status TEXT NOT NULL DEFAULT 'inactive'`,
		`ALTER TABLE accounts ADD COLUMN expires_at INTEGER`,
		`ALTER TABLE accounts ADD COLUMN last_renewal_at INTEGER`,
		`ALTER TABLE accounts ADD COLUMN last_payment_ref TEXT NOT NULL DEFAULT ''`,

		`CREATE TABLE IF NOT EXISTS ad_requests (
			id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			brand TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			target_link TEXT NOT NULL DEFAULT '',
			image_url TEXT NOT NULL DEFAULT '',
			target_pages TEXT NOT NULL DEFAULT '[]',
			plan TEXT NOT NULL DEFAULT '',
			amount INTEGER NOT NULL DEFAULT 0,
			payment_ref TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			submitted_at INTEGER NOT NULL,
			published_at INTEGER,
			expires_at INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ad_requests_status ON ad_requests(status)`,
		`CREATE INDEX IF NOT EXISTS idx_ad_requests_account ON ad_requests(account_id)`,
		`CREATE INDEX IF NOT EXISTS idx_ad_requests_payment ON ad_requests(payment_ref)`,

		// Singleton row, id is always 1
		`CREATE TABLE IF NOT EXISTS global_ad_slot (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			brand TEXT NOT NULL DEFAULT '',
			plan TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			target_link TEXT NOT NULL DEFAULT '',
			image_url TEXT NOT NULL DEFAULT '',
			target_pages TEXT NOT NULL DEFAULT '[]',
			activated_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL,
			source_request_id TEXT NOT NULL DEFAULT '',
			version INTEGER NOT NULL DEFAULT 0
		)`,

		// Slot version survives deletes so it keeps increasing
		`CREATE TABLE IF NOT EXISTS slot_version (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			version INTEGER NOT NULL DEFAULT 0
		)`,
		`INSERT OR IGNORE INTO slot_version (id, version) VALUES (1, 0)`,

		`CREATE TABLE IF NOT EXISTS payment_claims (
			payment_ref TEXT PRIMARY KEY,
			claimed_at INTEGER NOT NULL
		)`,

		// Settings (Key-Value Store)
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			// Ignore "duplicate column name" error for idempotent migrations
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, migration)
		}
	}

	return nil
}

// NewRepositories wires every SQLite repository onto db
func NewRepositories(db *DB) *repository.Repositories {
	return &repository.Repositories{
		Accounts:     NewAccountRepo(db),
		Entitlements: NewEntitlementRepo(db),
		AdRequests:   NewAdRequestRepo(db),
		AdSlot:       NewAdSlotRepo(db),
		PaymentGuard: NewPaymentGuard(db),
		Settings:     NewSettingsRepo(db),
	}
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromMillis(n.Int64)
	return &t
}

func encodePages(pages []string) (string, error) {
	if pages == nil {
		pages = []string{}
	}
	b, err := json.Marshal(pages)
	if err != nil {
		return "", fmt.Errorf("failed to encode target pages: %w", err)
	}
	return string(b), nil
}

func decodePages(raw string) ([]string, error) {
	var pages []string
	if raw == "" {
		return pages, nil
	}
	if err := json.Unmarshal([]byte(raw), &pages); err != nil {
		return nil, fmt.Errorf("failed to decode target pages: %w", err)
	}
	return pages, nil
}
