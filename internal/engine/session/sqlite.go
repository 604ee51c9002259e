package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"github.com/alemendo/intent-cli/internal/intent"
)

// SQLiteStore persists sessions across process invocations, which a CLI
// needs for simulate-then-execute conversations. It satisfies the same Store
// boundary as MemoryStore; errors degrade to "session not found" because the
// engine treats the store as infallible.
type SQLiteStore struct {
	db   *sql.DB
	lock *flock.Flock
	now  func() time.Time
}

func OpenSQLite(path, lockPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create session store directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create session lock directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open session sqlite: %w", err)
	}

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			network TEXT NOT NULL,
			endpoint TEXT NOT NULL,
			intent BLOB NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at DESC);",
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init session schema: %w", err)
		}
	}
	return &SQLiteStore{db: db, lock: flock.New(lockPath), now: time.Now}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Remember(sess Session) {
	if sess.ID == "" || sess.Intent == nil {
		return
	}
	locked, err := s.lock.TryLockContext(context.Background(), 5*time.Second)
	if err != nil || !locked {
		return
	}
	defer func() { _ = s.lock.Unlock() }()

	now := s.now().UTC().UnixNano()
	_, _ = s.db.Exec(`
		INSERT INTO sessions (session_id, network, endpoint, intent, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			network=excluded.network,
			endpoint=excluded.endpoint,
			intent=excluded.intent,
			updated_at=excluded.updated_at
	`, sess.ID, sess.Network, sess.Endpoint, intent.CanonicalJSON(sess.Intent), now, now)
}

func (s *SQLiteStore) Read(id string) (Session, bool) {
	row := s.db.QueryRow(
		"SELECT session_id, network, endpoint, intent, created_at, updated_at FROM sessions WHERE session_id = ?", id)
	return s.scan(row)
}

func (s *SQLiteStore) Latest() (Session, bool) {
	row := s.db.QueryRow(
		"SELECT session_id, network, endpoint, intent, created_at, updated_at FROM sessions ORDER BY updated_at DESC LIMIT 1")
	return s.scan(row)
}

func (s *SQLiteStore) scan(row *sql.Row) (Session, bool) {
	var (
		sess      Session
		payload   []byte
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(&sess.ID, &sess.Network, &sess.Endpoint, &payload, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) || err != nil {
		return Session{}, false
	}
	decoded, err := intent.Decode(payload)
	if err != nil {
		return Session{}, false
	}
	sess.Intent = decoded
	sess.CreatedAt = time.Unix(0, createdAt).UTC()
	sess.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return sess, true
}
