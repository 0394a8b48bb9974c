package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/ds124wfegd/ewm/config"
	"github.com/ds124wfegd/ewm/internal/database"
	"github.com/ds124wfegd/ewm/internal/entity"

	"github.com/sirupsen/logrus"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store is the Postgres implementation of database.TxManager. The event
// critical section is the row lock on events.id taken with FOR UPDATE.
type Store struct {
	db          *sql.DB
	lockTimeout time.Duration
	maxAttempts int
	baseDelay   time.Duration
}

func NewStore(db *sql.DB, cfg *config.AdmissionConfig) *Store {
	s := &Store{db: db, maxAttempts: 1}
	if cfg != nil {
		s.lockTimeout = cfg.LockTimeout
		s.baseDelay = cfg.BaseDelay
		if cfg.MaxAttempts > 0 {
			s.maxAttempts = cfg.MaxAttempts
		}
	}
	return s
}

func newRepositories(q querier) *database.Repositories {
	return &database.Repositories{
		Events:       &eventRepository{db: q},
		Requests:     &requestRepository{db: q},
		Users:        &userRepository{db: q},
		Categories:   &categoryRepository{db: q},
		Locations:    &locationRepository{db: q},
		Compilations: &compilationRepository{db: q},
	}
}

func (s *Store) Repositories() *database.Repositories {
	return newRepositories(s.db)
}

// HealthCheck pings the database.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	return nil
}

func (s *Store) WithEventLock(ctx context.Context, eventID int64, fn database.EventScopeFunc) error {
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.runLocked(ctx, eventID, fn)
		if err == nil || !isRetryable(err) {
			return err
		}

		logrus.WithFields(logrus.Fields{
			"event_id": eventID,
			"attempt":  attempt,
			"error":    err,
		}).Warn("Event lock contention")

		if attempt == s.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", entity.ErrConcurrentUpdate, ctx.Err())
		case <-time.After(s.backoff(attempt)):
		}
	}
	return fmt.Errorf("%w: %v", entity.ErrConcurrentUpdate, err)
}

func (s *Store) runLocked(ctx context.Context, eventID int64, fn database.EventScopeFunc) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", entity.ErrConcurrentUpdate, err)
	}

	// The caller's cancellation stops the call before the lock is taken,
	// never in the middle of the unit of work.
	txCtx := context.WithoutCancel(ctx)

	tx, err := s.db.BeginTx(txCtx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if s.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = %d", s.lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(txCtx, stmt); err != nil {
			return fmt.Errorf("failed to set lock timeout: %w", err)
		}
	}

	events := &eventRepository{db: tx}
	event, err := events.getForUpdate(txCtx, eventID)
	if err != nil {
		return err
	}

	if err := fn(txCtx, newRepositories(tx), event); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// backoff is exponential with up to 50% jitter.
func (s *Store) backoff(attempt int) time.Duration {
	if s.baseDelay <= 0 {
		return 0
	}
	delay := s.baseDelay * time.Duration(1<<(attempt-1))
	return delay + time.Duration(rand.Int63n(int64(delay/2)+1))
}

// placeholders renders "$start, $start+1, ..." for n arguments.
func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}

func int64Args(ids []int64) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func pageClause(argPos, from, size int) (string, []interface{}) {
	if size <= 0 {
		return "", nil
	}
	if from < 0 {
		from = 0
	}
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", argPos, argPos+1), []interface{}{size, from}
}
