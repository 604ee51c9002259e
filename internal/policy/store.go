package policy

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	clierr "github.com/alemendo/intent-cli/internal/errors"
	"github.com/alemendo/intent-cli/internal/intent"
)

// Service owns the persisted policy record and its append-only audit log.
// All mutation goes through Set/ApplyTemplate; Check is the read path used by
// the safety gate.
type Service struct {
	mu   sync.Mutex
	db   *sql.DB
	lock *flock.Flock
	now  func() time.Time
}

func Open(path, lockPath string) (*Service, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create policy store directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create policy lock directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open policy sqlite: %w", err)
	}

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS policy (
			singleton INTEGER PRIMARY KEY CHECK (singleton = 1),
			version INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			payload BLOB NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS policy_audit (
			id TEXT PRIMARY KEY,
			action TEXT NOT NULL,
			actor TEXT NOT NULL,
			at INTEGER NOT NULL,
			payload BLOB NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_policy_audit_at ON policy_audit(at DESC);",
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init policy schema: %w", err)
		}
	}
	return &Service{db: db, lock: flock.New(lockPath), now: time.Now}, nil
}

func (s *Service) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the active policy, bootstrapping the default record on first
// use.
func (s *Service) Get() (Record, error) {
	var payload []byte
	err := s.db.QueryRow("SELECT payload FROM policy WHERE singleton = 1").Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return defaultRecord(), nil
	}
	if err != nil {
		return Record{}, fmt.Errorf("read policy: %w", err)
	}
	var record Record
	if err := json.Unmarshal(payload, &record); err != nil {
		return Record{}, fmt.Errorf("decode policy payload: %w", err)
	}
	return record, nil
}

// Set applies a partial update, persists the new record, and appends an audit
// entry. The version increments monotonically on every accepted update.
func (s *Service) Set(update Update, actor string) (Record, error) {
	return s.mutate("set", update, actor)
}

// ApplyTemplate applies a canned configuration by name.
func (s *Service) ApplyTemplate(name, actor string) (Record, error) {
	template, ok := templates[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Record{}, clierr.NewReason(clierr.CodeUsage, clierr.ReasonInvalidFormat,
			fmt.Sprintf("unknown policy template %q (available: %s)", name, strings.Join(TemplateNames(), ", ")))
	}
	return s.mutate("template:"+strings.ToLower(strings.TrimSpace(name)), template, actor)
}

func (s *Service) mutate(action string, update Update, actor string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	locked, err := s.lock.TryLockContext(context.Background(), 5*time.Second)
	if err != nil {
		return Record{}, fmt.Errorf("lock policy store: %w", err)
	}
	if !locked {
		return Record{}, fmt.Errorf("lock policy store: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	current, err := s.Get()
	if err != nil {
		return Record{}, err
	}

	next, err := normalizeUpdate(current, update)
	if err != nil {
		return Record{}, err
	}
	actor = strings.TrimSpace(actor)
	if actor == "" {
		actor = "unknown"
	}
	now := s.now().UTC()
	next.Version = current.Version + 1
	next.UpdatedAt = now
	next.UpdatedBy = actor

	payload, err := json.Marshal(next)
	if err != nil {
		return Record{}, fmt.Errorf("marshal policy: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO policy (singleton, version, updated_at, payload)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(singleton) DO UPDATE SET
			version=excluded.version,
			updated_at=excluded.updated_at,
			payload=excluded.payload
	`, next.Version, now.Unix(), payload)
	if err != nil {
		return Record{}, fmt.Errorf("save policy: %w", err)
	}

	before := current
	audit := AuditRecord{
		ID:     uuid.NewString(),
		Action: action,
		Before: &before,
		After:  next,
		Actor:  actor,
		At:     now,
	}
	auditPayload, err := json.Marshal(audit)
	if err != nil {
		return Record{}, fmt.Errorf("marshal audit record: %w", err)
	}
	_, err = s.db.Exec(
		"INSERT INTO policy_audit (id, action, actor, at, payload) VALUES (?, ?, ?, ?, ?)",
		audit.ID, audit.Action, audit.Actor, now.UnixNano(), auditPayload,
	)
	if err != nil {
		return Record{}, fmt.Errorf("append audit record: %w", err)
	}
	return next, nil
}

// AuditLog returns the newest audit entries first.
func (s *Service) AuditLog(limit int) ([]AuditRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query("SELECT payload FROM policy_audit ORDER BY at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	defer rows.Close()

	records := make([]AuditRecord, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		var record AuditRecord
		if err := json.Unmarshal(payload, &record); err != nil {
			return nil, fmt.Errorf("decode audit row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit rows: %w", err)
	}
	return records, nil
}

// Check implements the safety gate's policy oracle boundary.
func (s *Service) Check(network string, in intent.Intent) error {
	record, err := s.Get()
	if err != nil {
		return clierr.Wrap(clierr.CodeInternal, "load policy", err)
	}
	return record.check(network, in)
}
