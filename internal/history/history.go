// Package history persists dispatched clipboard content to SQLite so it
// survives daemon restarts. The store owns on-disk deduplication and the
// optional encryption at rest; callers hand it plain content and get plain
// content back.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/pastemill/pastemill/internal/fingerprint"
	"github.com/pastemill/pastemill/internal/secrets"
)

// DefaultFilename is the database file created under the state directory.
const DefaultFilename = "history.db"

// Entry is one recorded clipboard observation.
type Entry struct {
	ID          string    `json:"id"`
	Fingerprint string    `json:"fingerprint"`
	Content     string    `json:"content"`
	Bytes       int       `json:"bytes"`
	Encrypted   bool      `json:"encrypted"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// Store records clipboard history in a SQLite database. Row ids are ULIDs,
// so id order is insertion order and "newest" is a plain ORDER BY.
type Store struct {
	db      *sql.DB
	entropy *ulid.MonotonicEntropy
	key     *[32]byte
}

// Open opens or creates the history database at path. A non-empty
// passphrase derives an encryption key and content written from then on is
// sealed before it reaches disk. Reading an encrypted entry with the wrong
// passphrase fails; with no passphrase configured encrypted entries come
// back with empty Content and the Encrypted flag set, so plain entries in
// the same store stay listable.
func Open(path, passphrase string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)&_pragma=synchronous(normal)")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	s := &Store{
		db:      db,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
	if passphrase != "" {
		key, err := secrets.DeriveKey(passphrase)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("derive history key: %w", err)
		}
		s.key = key
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		id            TEXT PRIMARY KEY,
		fingerprint   TEXT NOT NULL,
		content       BLOB NOT NULL,
		content_bytes INTEGER NOT NULL,
		encrypted     INTEGER NOT NULL DEFAULT 0,
		recorded_at   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_entries_fingerprint ON entries(fingerprint);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// Record stores content observed at capturedAt. When the fingerprint matches
// the newest entry, that entry's recorded_at is refreshed instead of
// inserting a duplicate row; the same content seen again after something
// else still gets its own row.
func (s *Store) Record(ctx context.Context, content string, capturedAt time.Time) error {
	fp := fingerprint.Sum(content)
	at := capturedAt.UTC().Format(time.RFC3339Nano)

	var lastID, lastFP string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, fingerprint FROM entries ORDER BY id DESC LIMIT 1`).Scan(&lastID, &lastFP)
	switch {
	case err == nil && lastFP == fp:
		if _, err := s.db.ExecContext(ctx,
			`UPDATE entries SET recorded_at = ? WHERE id = ?`, at, lastID); err != nil {
			return fmt.Errorf("refresh entry: %w", err)
		}
		return nil
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("query newest entry: %w", err)
	}

	blob := []byte(content)
	encrypted := 0
	if s.key != nil {
		sealed, err := secrets.Seal(blob, s.key)
		if err != nil {
			return fmt.Errorf("seal entry: %w", err)
		}
		blob = sealed
		encrypted = 1
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO entries (id, fingerprint, content, content_bytes, encrypted, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.newID(), fp, blob, len(content), encrypted, at); err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. limit <= 0 means 20.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, fingerprint, content, content_bytes, encrypted, recorded_at
		 FROM entries ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := s.scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count reports the number of stored entries.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// Clear deletes every entry and reports how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entries`)
	if err != nil {
		return 0, fmt.Errorf("clear entries: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanEntry(row scanner) (Entry, error) {
	var e Entry
	var blob []byte
	var encrypted int
	var at string
	if err := row.Scan(&e.ID, &e.Fingerprint, &blob, &e.Bytes, &encrypted, &at); err != nil {
		return e, fmt.Errorf("scan entry: %w", err)
	}
	e.Encrypted = encrypted != 0
	e.RecordedAt, _ = time.Parse(time.RFC3339Nano, at)

	switch {
	case !e.Encrypted:
		e.Content = string(blob)
	case s.key == nil:
		// No passphrase configured: the row stays listable, Content
		// stays empty and the Encrypted flag says why.
	default:
		plain, err := secrets.Open(blob, s.key)
		if err != nil {
			return e, fmt.Errorf("decrypt entry %s: %w", e.ID, err)
		}
		e.Content = string(plain)
	}
	return e, nil
}
