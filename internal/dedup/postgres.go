package dedup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// PostgresStore persists records in a notification_dedup table, one row per
// key, namespaced by column. Membership tests run against an in-memory
// mirror populated by Load, so the hot path of a dispatch cycle does one
// INSERT per successful send and no reads.
//
// Schema:
//
//	CREATE TABLE notification_dedup (
//	    namespace TEXT        NOT NULL,
//	    key       TEXT        NOT NULL,
//	    sent_at   TIMESTAMPTZ NOT NULL,
//	    PRIMARY KEY (namespace, key)
//	);
type PostgresStore struct {
	db        DB
	namespace string
	logger    *slog.Logger

	mu      sync.RWMutex
	records map[string]time.Time
	now     func() time.Time
}

// DB is the slice of database/sql used by the store. *sql.DB satisfies it,
// as does the circuit-breaker wrapper in internal/resilience/circuitbreaker.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// NewPostgresStore creates a Postgres-backed store for one dedup namespace.
func NewPostgresStore(db DB, namespace string, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{
		db:        db,
		namespace: namespace,
		logger:    logger,
		records:   make(map[string]time.Time),
		now:       time.Now,
	}
}

// Load implements Store: prune aged rows, then mirror the survivors.
// An unreachable database degrades to an empty set, matching the file
// backend's failure semantics.
func (s *PostgresStore) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-Retention)

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM notification_dedup WHERE namespace = $1 AND sent_at < $2`,
		s.namespace, cutoff,
	); err != nil {
		s.logger.Warn("dedup prune failed, starting empty",
			slog.String("namespace", s.namespace),
			slog.Any("error", err))
		s.records = make(map[string]time.Time)
		return nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT key, sent_at FROM notification_dedup WHERE namespace = $1`,
		s.namespace,
	)
	if err != nil {
		s.logger.Warn("dedup load failed, starting empty",
			slog.String("namespace", s.namespace),
			slog.Any("error", err))
		s.records = make(map[string]time.Time)
		return nil
	}
	defer func() { _ = rows.Close() }()

	loaded := make(map[string]time.Time)
	for rows.Next() {
		var key string
		var sentAt time.Time
		if err := rows.Scan(&key, &sentAt); err != nil {
			return fmt.Errorf("scan dedup row: %w", err)
		}
		loaded[key] = sentAt
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate dedup rows: %w", err)
	}
	s.records = loaded

	s.logger.Info("dedup store loaded",
		slog.String("namespace", s.namespace),
		slog.Int("records", len(s.records)))
	return nil
}

// Contains implements Store.
func (s *PostgresStore) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[key]
	return ok
}

// Record implements Store. ON CONFLICT DO NOTHING makes repeated records
// for the same key harmless. The in-memory record is kept even when the
// INSERT fails (see package doc for the policy).
func (s *PostgresStore) Record(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[key]; ok {
		return nil
	}
	sentAt := s.now()
	s.records[key] = sentAt

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO notification_dedup (namespace, key, sent_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (namespace, key) DO NOTHING`,
		s.namespace, key, sentAt,
	); err != nil {
		s.logger.Warn("dedup record not durably persisted; duplicate possible after restart",
			slog.String("namespace", s.namespace),
			slog.String("key", key),
			slog.Any("error", err))
		return fmt.Errorf("persist dedup record: %w", err)
	}
	return nil
}

// Len implements Store.
func (s *PostgresStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
