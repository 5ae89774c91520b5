// Copyright 2026 QueryTune
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/querytune/querytune/config"
	"github.com/querytune/querytune/shared/logger"
	"github.com/querytune/querytune/shared/metrics"
)

// Connection pool defaults, overridable through Pool options is deliberately
// not offered: this library opens one pool per settings object.
const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute
)

// TxState tracks the transaction state of a session. A transaction is begun
// lazily on the first statement, so a session that never executed anything
// stays TxIdle and triggers no commit or rollback on exit.
type TxState int

const (
	// TxIdle means no transaction has been started.
	TxIdle TxState = iota

	// TxActive means a transaction is open and all statements so far
	// succeeded.
	TxActive

	// TxFailed means a statement inside the transaction errored; the
	// transaction must be rolled back.
	TxFailed
)

func (s TxState) String() string {
	switch s {
	case TxIdle:
		return "idle"
	case TxActive:
		return "active"
	case TxFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Pool wraps the underlying connection pool and hands out single-connection
// sessions. Safe for concurrent use.
type Pool struct {
	db           *sql.DB
	log          *logger.Logger
	queryTimeout time.Duration
}

// Open connects to PostgreSQL using the given settings and verifies the
// connection. It returns ErrNotConfigured when no database URL is set and a
// connection Error when the database is unreachable.
func Open(ctx context.Context, settings *config.Settings) (*Pool, error) {
	log := logger.New("db")
	log.SetLevel(logger.ParseLevel(settingsLogLevel(settings)))

	if settings == nil || settings.DatabaseURL == "" {
		log.Error("", "database URL is not configured", nil)
		return nil, ErrNotConfigured
	}

	sqlDB, err := sql.Open("postgres", settings.DatabaseURL)
	if err != nil {
		log.ErrorWithCause("", "failed to open connection", err, nil)
		return nil, newError("connect", "failed to open connection", err)
	}

	sqlDB.SetMaxOpenConns(defaultMaxOpenConns)
	sqlDB.SetMaxIdleConns(defaultMaxIdleConns)
	sqlDB.SetConnMaxLifetime(defaultConnMaxLifetime)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		log.ErrorWithCause("", "failed to ping database", err, nil)
		return nil, newError("connect", "failed to ping database", err)
	}

	return &Pool{
		db:           sqlDB,
		log:          log,
		queryTimeout: settings.QueryTimeout,
	}, nil
}

// Close releases the underlying connection pool.
func (p *Pool) Close() error {
	if err := p.db.Close(); err != nil {
		return newError("close", "failed to close pool", err)
	}
	return nil
}

// Session owns exactly one database connection for its lifetime, plus the
// transaction state machine described by TxState. Sessions are not safe for
// concurrent use; each belongs to the scope that acquired it.
type Session struct {
	pool *Pool
	conn *sql.Conn
	tx   *sql.Tx

	// ctx is the session scope. The transaction is begun under it, not
	// under a per-statement timeout context: a tx bound to a statement
	// context would be auto-rolled-back once that statement's deadline
	// fires, poisoning the later commit.
	ctx context.Context

	state     TxState
	requestID string
	closed    bool
}

// Acquire checks a single connection out of the pool. The caller is
// responsible for Close; prefer WithSession unless the session must outlive
// a single function scope.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		p.log.ErrorWithCause("", "failed to acquire connection", err, nil)
		return nil, newError("acquire", "failed to acquire connection", err)
	}

	s := &Session{
		pool:      p,
		conn:      conn,
		ctx:       ctx,
		requestID: uuid.NewString(),
	}
	metrics.SessionsOpen.Inc()
	p.log.Debug(s.requestID, "session acquired", nil)
	return s, nil
}

// WithSession acquires a session, runs fn with it, and settles the
// transaction on exit:
//
//   - fn returned nil with an active transaction: commit; a failed commit is
//     followed by a best-effort rollback and the commit error is returned.
//   - fn returned an error, or a statement inside the scope failed: roll
//     back; rollback failures are logged and swallowed so they never mask
//     the original error.
//   - no statement ever ran: neither commit nor rollback.
//
// The connection is released in every path.
func (p *Pool) WithSession(ctx context.Context, fn func(*Session) error) error {
	s, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	if err := fn(s); err != nil {
		s.rollback()
		return err
	}

	switch s.state {
	case TxActive:
		if err := s.commit(); err != nil {
			s.rollback()
			return err
		}
	case TxFailed:
		s.rollback()
	}
	return nil
}

// State reports the session's current transaction state.
func (s *Session) State() TxState {
	return s.state
}

// RequestID returns the correlation ID attached to this session's log
// entries.
func (s *Session) RequestID() string {
	return s.requestID
}

// Close rolls back any unsettled transaction and releases the connection.
// Closing an already-closed session is a no-op.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	if s.tx != nil {
		s.rollback()
	}

	metrics.SessionsOpen.Dec()
	s.pool.log.Debug(s.requestID, "session released", nil)

	if err := s.conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return newError("close", "failed to release connection", err)
	}
	return nil
}

// begin starts the session transaction if none is open yet, under the
// session-scope context so it survives individual statement timeouts.
func (s *Session) begin() error {
	if s.tx != nil {
		return nil
	}
	tx, err := s.conn.BeginTx(s.ctx, nil)
	if err != nil {
		return newError("begin", "failed to begin transaction", err)
	}
	s.tx = tx
	s.state = TxActive
	return nil
}

// commit finalizes the open transaction. On failure the transaction is kept
// so the caller can attempt a rollback, and the commit error is returned.
func (s *Session) commit() error {
	if s.tx == nil {
		return nil
	}
	if err := s.tx.Commit(); err != nil {
		s.state = TxFailed
		s.pool.log.ErrorWithCause(s.requestID, "commit failed", err, nil)
		return newError("commit", "transaction commit failed", err)
	}
	s.tx = nil
	s.state = TxIdle
	return nil
}

// rollback aborts the open transaction, if any. Failures are logged and
// swallowed; rollback is always best-effort cleanup for an error that is
// already being propagated.
func (s *Session) rollback() {
	if s.tx == nil {
		return
	}
	if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		s.pool.log.Warn(s.requestID, "rollback failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	s.tx = nil
	s.state = TxIdle
}

// queryContext runs a statement inside the session transaction, beginning
// one if needed, and records statement failures in the state machine.
func (s *Session) queryContext(ctx context.Context, statement string, args ...interface{}) (*sql.Rows, error) {
	if s.closed {
		return nil, newError("query", "session is closed", nil)
	}
	if err := s.begin(); err != nil {
		return nil, err
	}
	rows, err := s.tx.QueryContext(ctx, statement, args...)
	if err != nil {
		s.state = TxFailed
		return nil, newError("query", "statement execution failed", err)
	}
	return rows, nil
}

// markFailed flags the session transaction after a row-iteration error
// surfaced from the server.
func (s *Session) markFailed() {
	if s.tx != nil {
		s.state = TxFailed
	}
}

// opContext bounds a statement with the configured query timeout.
func (s *Session) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.pool.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.pool.queryTimeout)
}

func settingsLogLevel(settings *config.Settings) string {
	if settings == nil {
		return ""
	}
	return settings.LogLevel
}
