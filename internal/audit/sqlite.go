package audit

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/storyforge/storyforge/internal/logging"
)

// SQLiteLogger implements Logger with persistent SQLite storage.
type SQLiteLogger struct {
	db     *sql.DB
	dbPath string
	log    zerolog.Logger
}

// OpenSQLite opens (creating if needed) the plan history database at dbPath.
func OpenSQLite(dbPath string) (*SQLiteLogger, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("audit database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	dsn := dbPath + "?" + url.Values{
		"_pragma": []string{
			"busy_timeout(30000)",
			"journal_mode(WAL)",
			"synchronous(NORMAL)",
		},
	}.Encode()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	l := &SQLiteLogger{db: db, dbPath: dbPath, log: logging.New("audit")}
	if err := l.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize audit schema: %w", err)
	}

	l.log.Info().Str("dbPath", dbPath).Msg("Plan history initialized")
	return l, nil
}

func (l *SQLiteLogger) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS plan_events (
		id TEXT PRIMARY KEY,
		timestamp INTEGER NOT NULL,
		event_type TEXT NOT NULL,
		profile_id TEXT NOT NULL,
		actor TEXT,
		details TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_plan_events_profile ON plan_events(profile_id, timestamp);

	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at INTEGER NOT NULL
	);
	`
	if _, err := l.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	_, err := l.db.Exec(`INSERT OR IGNORE INTO schema_version (version, applied_at) VALUES (1, ?)`,
		time.Now().Unix())
	return err
}

// Path returns the database file location.
func (l *SQLiteLogger) Path() string {
	return l.dbPath
}

// Log inserts event and mirrors it to zerolog.
func (l *SQLiteLogger) Log(ctx context.Context, event Event) error {
	if event.ID == "" || event.ProfileID == "" || event.Type == "" {
		return fmt.Errorf("audit event needs an id, a profile and a type")
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO plan_events (id, timestamp, event_type, profile_id, actor, details)
		VALUES (?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.Timestamp.UnixNano(),
		string(event.Type),
		event.ProfileID,
		event.Actor,
		event.Details,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}

	logEvent(l.log, event)
	return nil
}

// Query returns events matching filter, newest first.
func (l *SQLiteLogger) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	query := "SELECT id, timestamp, event_type, profile_id, actor, details FROM plan_events WHERE 1=1"
	args := []interface{}{}

	if filter.ProfileID != "" {
		query += " AND profile_id = ?"
		args = append(args, filter.ProfileID)
	}
	if filter.Type != "" {
		query += " AND event_type = ?"
		args = append(args, string(filter.Type))
	}
	if filter.Since != nil {
		query += " AND timestamp >= ?"
		args = append(args, filter.Since.UnixNano())
	}

	query += " ORDER BY timestamp DESC, id DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var (
			e         Event
			timestamp int64
			eventType string
			actor     sql.NullString
			details   sql.NullString
		)
		if err := rows.Scan(&e.ID, &timestamp, &eventType, &e.ProfileID, &actor, &details); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		e.Timestamp = time.Unix(0, timestamp).UTC()
		e.Type = EventType(eventType)
		e.Actor = actor.String
		e.Details = details.String
		events = append(events, e)
	}
	return events, rows.Err()
}

// Close closes the database.
func (l *SQLiteLogger) Close() error {
	if err := l.db.Close(); err != nil {
		return fmt.Errorf("failed to close audit database: %w", err)
	}
	return nil
}
