// Package sqlstore persists conversations and leads in SQLite or PostgreSQL.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "embed"

	"github.com/aretw0/leadflow/pkg/domain"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

//go:embed migrations_postgres.sql
var postgresMigrations string

// Dialect names a supported database.
type Dialect string

const (
	SQLite   Dialect = "sqlite3"
	Postgres Dialect = "postgres"
)

// Opts holds configuration for the store.
type Opts struct {
	Dialect Dialect
	DSN     string
	Logger  *slog.Logger
}

// Option configures the store.
type Option func(*Opts)

// WithDSN sets the connection string. For SQLite it is a file path or ":memory:".
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithDialect selects the database. Defaults to SQLite.
func WithDialect(d Dialect) Option {
	return func(o *Opts) {
		o.Dialect = d
	}
}

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Opts) {
		o.Logger = l
	}
}

// DetectDialect picks Postgres for postgres:// URLs and SQLite otherwise.
func DetectDialect(dsn string) Dialect {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return Postgres
	}
	return SQLite
}

// Store implements ports.ConversationStore and ports.LeadUpdater over database/sql.
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

// Open connects, pings and runs the embedded migrations.
func Open(opts ...Option) (*Store, error) {
	cfg := Opts{Dialect: SQLite, Logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN not set")
	}

	var migrations string
	switch cfg.Dialect {
	case SQLite:
		migrations = sqliteMigrations
		if cfg.DSN != ":memory:" && !strings.HasPrefix(cfg.DSN, "file:") {
			dir := filepath.Dir(cfg.DSN)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	case Postgres:
		migrations = postgresMigrations
	default:
		return nil, fmt.Errorf("unsupported dialect %q", cfg.Dialect)
	}

	cfg.Logger.Debug("opening database", "dialect", cfg.Dialect)
	db, err := sql.Open(string(cfg.Dialect), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", cfg.Dialect, err)
	}
	if cfg.Dialect == SQLite {
		// A single connection keeps ":memory:" databases shared and avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", cfg.Dialect, err)
	}
	if _, err := db.Exec(migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	cfg.Logger.Debug("database migrations applied", "dialect", cfg.Dialect)

	return &Store{db: db, dialect: cfg.Dialect, logger: cfg.Logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) timestamp(t time.Time) any {
	if s.dialect == Postgres {
		return t.UTC()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// Save upserts the conversation.
func (s *Store) Save(ctx context.Context, conv *domain.Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}
	updated := conv.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO conversations (id, flow_id, status, data, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET flow_id = excluded.flow_id, status = excluded.status,
			data = excluded.data, updated_at = excluded.updated_at`),
		conv.ID, conv.FlowID, string(conv.Status), string(data), s.timestamp(updated))
	if err != nil {
		s.logger.Error("save conversation failed", "id", conv.ID, "err", err)
		return fmt.Errorf("failed to save conversation %s: %w", conv.ID, err)
	}
	return nil
}

// Load reads a conversation.
func (s *Store) Load(ctx context.Context, id string) (*domain.Conversation, error) {
	var data string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT data FROM conversations WHERE id = ?`), id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to load conversation %s: %w", id, err)
	}

	var conv domain.Conversation
	if err := json.Unmarshal([]byte(data), &conv); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation %s: %w", id, err)
	}
	return &conv, nil
}

// Delete removes a conversation.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM conversations WHERE id = ?`), id); err != nil {
		return fmt.Errorf("failed to delete conversation %s: %w", id, err)
	}
	return nil
}

// List returns every conversation ID, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM conversations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan conversation id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateLead merges fields into the lead row inside a transaction.
func (s *Store) UpdateLead(ctx context.Context, leadID string, fields map[string]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin lead update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current := make(map[string]any)
	var raw string
	err = tx.QueryRowContext(ctx, s.rebind(`SELECT fields FROM leads WHERE id = ?`), leadID).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("failed to read lead %s: %w", leadID, err)
	default:
		if err := json.Unmarshal([]byte(raw), &current); err != nil {
			return fmt.Errorf("failed to decode lead %s: %w", leadID, err)
		}
	}

	for k, v := range fields {
		current[k] = v
	}
	merged, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("failed to encode lead %s: %w", leadID, err)
	}

	_, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO leads (id, fields, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET fields = excluded.fields, updated_at = excluded.updated_at`),
		leadID, string(merged), s.timestamp(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to write lead %s: %w", leadID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit lead %s: %w", leadID, err)
	}
	s.logger.Debug("lead updated", "lead", leadID, "fields", sortedKeys(fields))
	return nil
}

// Lead returns the stored fields of a lead.
func (s *Store) Lead(ctx context.Context, leadID string) (map[string]any, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT fields FROM leads WHERE id = ?`), leadID).Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("failed to read lead %s: %w", leadID, err)
	}
	out := make(map[string]any)
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("failed to decode lead %s: %w", leadID, err)
	}
	return out, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
