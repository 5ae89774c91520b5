// Copyright 2026 QueryTune
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"context"
	"time"

	"github.com/querytune/querytune/shared/metrics"
)

// Row is a single result row keyed by column name.
type Row map[string]interface{}

// Run executes a statement with positional parameters inside the given
// session and returns all result rows. Statements that produce no result
// set (DDL, INSERT without RETURNING) and statements whose result set is
// empty both yield an empty, non-nil slice.
func Run(ctx context.Context, sess *Session, statement string, args ...interface{}) ([]Row, error) {
	start := time.Now()
	out, err := run(ctx, sess, statement, args...)
	metrics.ObserveQuery(metrics.OpRun, err, time.Since(start))
	if err != nil {
		sess.pool.log.ErrorWithCause(sess.requestID, "statement failed", err, map[string]interface{}{
			"statement": statement,
		})
		return nil, err
	}
	sess.pool.log.InfoWithDuration(sess.requestID, "statement executed",
		float64(time.Since(start).Milliseconds()), map[string]interface{}{
			"statement": statement,
			"rows":      len(out),
		})
	return out, nil
}

func run(ctx context.Context, sess *Session, statement string, args ...interface{}) ([]Row, error) {
	ctx, cancel := sess.opContext(ctx)
	defer cancel()

	rows, err := sess.queryContext(ctx, statement, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, newError("query", "failed to get columns", err)
	}

	// No result descriptor: the statement produced no result set at all,
	// which is distinct from a result set with zero rows.
	if len(columns) == 0 {
		return []Row{}, nil
	}

	results := make([]Row, 0)
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, newError("query", "failed to scan row", err)
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			val := values[i]
			// Convert []byte to string for text/varchar fields
			if b, ok := val.([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = val
			}
		}
		results = append(results, row)
	}

	if err := rows.Err(); err != nil {
		sess.markFailed()
		return nil, newError("query", "row iteration failed", err)
	}

	return results, nil
}

// Run executes a statement in a fresh scoped session. See Run for result
// semantics; the session is committed or rolled back per WithSession.
func (p *Pool) Run(ctx context.Context, statement string, args ...interface{}) ([]Row, error) {
	var out []Row
	err := p.WithSession(ctx, func(s *Session) error {
		var err error
		out, err = Run(ctx, s, statement, args...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
