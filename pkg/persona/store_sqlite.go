package persona

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const defaultLogCap = 500

// SQLiteStore is the canonical durable storage: one profile document per
// user plus a capacity-capped per-user interaction log.
type SQLiteStore struct {
	db     *sql.DB
	logCap int
}

// NewSQLiteStore creates/opens the persona database at path. logCap bounds
// retained interactions per user (<=0 selects the default of 500).
func NewSQLiteStore(path string, logCap int) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create persona db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Single-process store. One shared connection avoids writer lock
	// contention with SQLite under concurrent goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if logCap <= 0 {
		logCap = defaultLogCap
	}

	store := &SQLiteStore{db: db, logCap: logCap}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA temp_store=MEMORY;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS profiles (
			user_id TEXT PRIMARY KEY,
			profile_json TEXT NOT NULL,
			revision INTEGER NOT NULL DEFAULT 1,
			created_at_ms INTEGER NOT NULL,
			updated_at_ms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS interactions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			user_message TEXT NOT NULL DEFAULT '',
			ai_response TEXT NOT NULL DEFAULT '',
			metadata_json TEXT NOT NULL DEFAULT '{}',
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS interactions_user_idx ON interactions(user_id, created_at_ms);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init sqlite schema failed on %q: %w", trimSQL(stmt), err)
		}
	}
	return nil
}

func trimSQL(sql string) string {
	line := strings.TrimSpace(sql)
	if len(line) > 96 {
		return line[:96] + "..."
	}
	return line
}

func nowMS() int64 { return time.Now().UnixMilli() }

func (s *SQLiteStore) GetProfile(ctx context.Context, userID string) (UserProfile, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT profile_json FROM profiles WHERE user_id = ?`, userID)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UserProfile{}, false, nil
		}
		return UserProfile{}, false, &PersistenceError{Op: "get profile", Err: err}
	}
	return profileFromJSON(raw, userID), true, nil
}

func (s *SQLiteStore) UpsertProfile(ctx context.Context, profile UserProfile) error {
	if strings.TrimSpace(profile.UserID) == "" {
		return &PersistenceError{Op: "upsert profile", Err: errors.New("empty user_id")}
	}
	now := nowMS()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO profiles(user_id, profile_json, revision, created_at_ms, updated_at_ms)
VALUES(?, ?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
	profile_json = excluded.profile_json,
	revision = excluded.revision,
	updated_at_ms = excluded.updated_at_ms`,
		profile.UserID, profileToJSON(profile), profile.Revision, now, now)
	if err != nil {
		return &PersistenceError{Op: "upsert profile", Err: err}
	}
	return nil
}

func (s *SQLiteStore) AppendInteraction(ctx context.Context, in Interaction) error {
	if strings.TrimSpace(in.UserID) == "" {
		return &PersistenceError{Op: "append interaction", Err: errors.New("empty user_id")}
	}
	if in.ID == "" {
		in.ID = "int-" + uuid.NewString()
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &PersistenceError{Op: "append interaction begin tx", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO interactions(id, user_id, user_message, ai_response, metadata_json, created_at_ms)
VALUES(?, ?, ?, ?, ?, ?)`,
		in.ID, in.UserID, in.UserMessage, in.AIResponse, encodeMetadata(in.Metadata), in.Timestamp.UnixMilli()); err != nil {
		return &PersistenceError{Op: "append interaction insert", Err: err}
	}

	// Truncate-from-front: drop the oldest rows beyond the retention cap.
	if _, err := tx.ExecContext(ctx, `
DELETE FROM interactions WHERE user_id = ? AND id NOT IN (
	SELECT id FROM interactions WHERE user_id = ?
	ORDER BY created_at_ms DESC, rowid DESC LIMIT ?)`,
		in.UserID, in.UserID, s.logCap); err != nil {
		return &PersistenceError{Op: "append interaction trim", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &PersistenceError{Op: "append interaction commit", Err: err}
	}
	return nil
}

func (s *SQLiteStore) RecentInteractions(ctx context.Context, userID string, limit int) ([]Interaction, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, user_id, user_message, ai_response, metadata_json, created_at_ms
FROM interactions WHERE user_id = ?
ORDER BY created_at_ms DESC, rowid DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, &PersistenceError{Op: "list interactions", Err: err}
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		var in Interaction
		var meta string
		var createdMS int64
		if err := rows.Scan(&in.ID, &in.UserID, &in.UserMessage, &in.AIResponse, &meta, &createdMS); err != nil {
			return nil, &PersistenceError{Op: "scan interaction", Err: err}
		}
		in.Metadata = decodeMetadata(meta)
		in.Timestamp = time.UnixMilli(createdMS)
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "iterate interactions", Err: err}
	}

	// Rows arrive newest-first; flip to append order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *SQLiteStore) InteractionCount(ctx context.Context, userID string) (int, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM interactions WHERE user_id = ?`, userID)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, &PersistenceError{Op: "count interactions", Err: err}
	}
	return count, nil
}

func encodeMetadata(meta InteractionMetadata) string {
	b, err := json.Marshal(meta)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func decodeMetadata(raw string) InteractionMetadata {
	var out InteractionMetadata
	if raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return InteractionMetadata{}
	}
	return out
}
