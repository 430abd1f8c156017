package profiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/storyforge/storyforge/internal/logging"
	"github.com/storyforge/storyforge/pkg/entitlements"
)

const schemaVersion = 2

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	now    func() time.Time
	log    zerolog.Logger
}

// OpenSQLite opens (creating if needed) the profile database at dbPath.
func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("%w: database path is required", ErrInvalidInput)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create profile directory: %w", err)
	}

	// Pragmas go in the DSN so every pool connection gets them
	dsn := dbPath + "?" + url.Values{
		"_pragma": []string{
			"busy_timeout(30000)",
			"journal_mode(WAL)",
			"synchronous(NORMAL)",
			"foreign_keys(ON)",
		},
	}.Encode()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile database: %w", err)
	}

	// SQLite works best with a single writer connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{db: db, dbPath: dbPath, now: time.Now, log: logging.New("profiles")}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize profile schema: %w", err)
	}

	s.log.Info().Str("dbPath", dbPath).Msg("Profile store initialized")
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		tier TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS usage (
		profile_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
		capability TEXT NOT NULL,
		used INTEGER NOT NULL,
		period TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (profile_id, capability)
	);

	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	if err := s.migrateUsagePeriod(); err != nil {
		return fmt.Errorf("failed to add usage period: %w", err)
	}
	for v := 1; v <= schemaVersion; v++ {
		if _, err := s.db.Exec(`INSERT OR IGNORE INTO schema_version (version, applied_at) VALUES (?, ?)`, v, s.now().Unix()); err != nil {
			return err
		}
	}
	return nil
}

// migrateUsagePeriod adds the period column to databases created at schema
// version 1. Existing rows keep period '' and count as stale for monthly
// capabilities.
func (s *SQLiteStore) migrateUsagePeriod() error {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('usage') WHERE name = 'period'`).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	_, err := s.db.Exec(`ALTER TABLE usage ADD COLUMN period TEXT NOT NULL DEFAULT ''`)
	if err == nil {
		s.log.Info().Str("dbPath", s.dbPath).Msg("Migrated usage counters to schema version 2")
	}
	return err
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// Create inserts a new profile with a fresh ULID.
func (s *SQLiteStore) Create(ctx context.Context, email string, tier entitlements.Tier) (*Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email %q", ErrInvalidInput, email)
	}
	if !tier.Valid() {
		return nil, fmt.Errorf("%w: %w: %q", ErrInvalidInput, entitlements.ErrUnknownTier, tier)
	}

	now := s.now().UTC().Truncate(time.Second)
	p := &Profile{
		ID:        ulid.Make().String(),
		Email:     email,
		Tier:      tier,
		Usage:     map[entitlements.Capability]int64{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (id, email, tier, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Email, string(p.Tier), now.Unix(), now.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, email)
		}
		return nil, fmt.Errorf("failed to insert profile: %w", err)
	}

	s.log.Info().Str("profile_id", p.ID).Str("tier", string(tier)).Msg("Profile created")
	return p, nil
}

// Get loads a profile and its usage counters by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, tier, created_at, updated_at FROM profiles WHERE id = ?`, id)
	p, err := scanProfile(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadUsage(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetByEmail loads a profile by its (case-insensitive) email.
func (s *SQLiteStore) GetByEmail(ctx context.Context, email string) (*Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, tier, created_at, updated_at FROM profiles WHERE email = ?`, email)
	p, err := scanProfile(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadUsage(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// List returns every profile ordered by creation, without usage counters.
func (s *SQLiteStore) List(ctx context.Context) ([]*Profile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, email, tier, created_at, updated_at FROM profiles ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var out []*Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Usage returns the usage counters for a profile.
func (s *SQLiteStore) Usage(ctx context.Context, id string) (map[entitlements.Capability]int64, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return p.Usage, nil
}

// SetTier moves a profile to a different tier and returns the previous one.
// The read and the write share a transaction. Usage is kept.
func (s *SQLiteStore) SetTier(ctx context.Context, id string, tier entitlements.Tier) (entitlements.Tier, error) {
	if !tier.Valid() {
		return "", fmt.Errorf("%w: %w: %q", ErrInvalidInput, entitlements.ErrUnknownTier, tier)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin tier transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT tier FROM profiles WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read tier: %w", err)
	}
	previous, err := entitlements.ParseTier(raw)
	if err != nil {
		return "", fmt.Errorf("profile %s: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE profiles SET tier = ?, updated_at = ? WHERE id = ?`,
		string(tier), s.now().Unix(), id); err != nil {
		return "", fmt.Errorf("failed to update tier: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit tier: %w", err)
	}

	s.log.Info().Str("profile_id", id).Str("from", string(previous)).Str("tier", string(tier)).Msg("Profile tier changed")
	return previous, nil
}

// IncrementUsage adjusts a limit capability counter. Flag capabilities are
// rejected since there is nothing to count. A monthly counter last written in
// an earlier month starts again from zero.
func (s *SQLiteStore) IncrementUsage(ctx context.Context, id string, capability entitlements.Capability, delta int64) (int64, error) {
	if err := validateMetered(capability); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin usage transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := profileExists(ctx, tx, id); err != nil {
		return 0, err
	}

	now := s.now()
	var count int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO usage (profile_id, capability, used, period, updated_at)
		VALUES (?, ?, MAX(?, 0), ?, ?)
		ON CONFLICT(profile_id, capability)
		DO UPDATE SET
			used = MAX(CASE WHEN usage.period = excluded.period THEN usage.used ELSE 0 END + ?, 0),
			period = excluded.period,
			updated_at = excluded.updated_at
		RETURNING used`,
		id, string(capability), delta, entitlements.UsagePeriod(capability, now), now.Unix(), delta).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to record usage: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit usage: %w", err)
	}
	return count, nil
}

// ResetUsage zeroes a counter, or all counters when capability is empty.
func (s *SQLiteStore) ResetUsage(ctx context.Context, id string, capability entitlements.Capability) error {
	if capability != "" {
		if err := validateMetered(capability); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reset transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := profileExists(ctx, tx, id); err != nil {
		return err
	}

	if capability == "" {
		_, err = tx.ExecContext(ctx, `DELETE FROM usage WHERE profile_id = ?`, id)
	} else {
		_, err = tx.ExecContext(ctx, `DELETE FROM usage WHERE profile_id = ? AND capability = ?`, id, string(capability))
	}
	if err != nil {
		return fmt.Errorf("failed to reset usage: %w", err)
	}
	return tx.Commit()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// loadUsage fills p.Usage. Monthly counters from an earlier month are left
// out, so they read as zero until the next increment rewrites them.
func (s *SQLiteStore) loadUsage(ctx context.Context, p *Profile) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT capability, used, period FROM usage WHERE profile_id = ?`, p.ID)
	if err != nil {
		return fmt.Errorf("failed to load usage: %w", err)
	}
	defer rows.Close()

	now := s.now()
	for rows.Next() {
		var (
			raw, period string
			count       int64
		)
		if err := rows.Scan(&raw, &count, &period); err != nil {
			return fmt.Errorf("failed to scan usage: %w", err)
		}
		capability, err := entitlements.ParseCapability(raw)
		if err != nil {
			// Counters for retired capabilities are kept but not surfaced
			s.log.Debug().Str("profile_id", p.ID).Str("capability", raw).Msg("Skipping unknown usage counter")
			continue
		}
		if period != entitlements.UsagePeriod(capability, now) {
			continue
		}
		p.Usage[capability] = count
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*Profile, error) {
	var (
		p                Profile
		tier             string
		created, updated int64
	)
	if err := row.Scan(&p.ID, &p.Email, &tier, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan profile: %w", err)
	}
	parsed, err := entitlements.ParseTier(tier)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", p.ID, err)
	}
	p.Tier = parsed
	p.CreatedAt = time.Unix(created, 0).UTC()
	p.UpdatedAt = time.Unix(updated, 0).UTC()
	p.Usage = map[entitlements.Capability]int64{}
	return &p, nil
}

func profileExists(ctx context.Context, tx *sql.Tx, id string) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM profiles WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return err
}

func validateMetered(capability entitlements.Capability) error {
	if !capability.Valid() {
		return fmt.Errorf("%w: %w: %q", ErrInvalidInput, entitlements.ErrUnknownCapability, capability)
	}
	if entitlements.KindOf(capability) != entitlements.KindLimit {
		return fmt.Errorf("%w: %s is not a metered capability", ErrInvalidInput, capability)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
