// Copyright 2026 QueryTune
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/querytune/querytune/shared/metrics"
)

// explainPrefix requests the structured plan with runtime and buffer
// statistics, which is what the advisor feeds to the LLM.
const explainPrefix = "EXPLAIN (ANALYZE, VERBOSE, BUFFERS, FORMAT JSON) "

// PlanNode is one node of the nested plan tree, keyed by the field names
// PostgreSQL emits ("Node Type", "Total Cost", "Plans", ...).
type PlanNode map[string]interface{}

// PlanEnvelope is one entry of the JSON array PostgreSQL returns for
// EXPLAIN (FORMAT JSON).
type PlanEnvelope struct {
	Plan          PlanNode                 `json:"Plan"`
	PlanningTime  float64                  `json:"Planning Time"`
	ExecutionTime float64                  `json:"Execution Time"`
	Triggers      []map[string]interface{} `json:"Triggers"`
}

// Explain runs the statement under EXPLAIN (ANALYZE, VERBOSE, BUFFERS,
// FORMAT JSON) inside the given session and returns the parsed plan, a
// single-element slice for a single statement. A successful explain that
// yields no plan is reported as ErrNoPlan.
func Explain(ctx context.Context, sess *Session, statement string, args ...interface{}) ([]PlanEnvelope, error) {
	start := time.Now()
	plans, err := explain(ctx, sess, statement, args...)
	metrics.ObserveQuery(metrics.OpExplain, err, time.Since(start))
	if err != nil {
		sess.pool.log.ErrorWithCause(sess.requestID, "explain failed", err, map[string]interface{}{
			"statement": statement,
		})
		return nil, err
	}
	sess.pool.log.InfoWithDuration(sess.requestID, "explain executed",
		float64(time.Since(start).Milliseconds()), map[string]interface{}{
			"statement": statement,
		})
	return plans, nil
}

func explain(ctx context.Context, sess *Session, statement string, args ...interface{}) ([]PlanEnvelope, error) {
	ctx, cancel := sess.opContext(ctx)
	defer cancel()

	rows, err := sess.queryContext(ctx, explainPrefix+statement, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			sess.markFailed()
			return nil, newError("explain", "row iteration failed", err)
		}
		return nil, ErrNoPlan
	}

	var payload []byte
	if err := rows.Scan(&payload); err != nil {
		return nil, newError("explain", "failed to scan plan", err)
	}

	if len(payload) == 0 {
		return nil, ErrNoPlan
	}

	var plans []PlanEnvelope
	if err := json.Unmarshal(payload, &plans); err != nil {
		return nil, newError("explain", "failed to parse plan JSON", err)
	}
	if len(plans) == 0 || plans[0].Plan == nil {
		return nil, ErrNoPlan
	}

	return plans, nil
}

// Explain runs the statement under structured explain in a fresh scoped
// session.
func (p *Pool) Explain(ctx context.Context, statement string, args ...interface{}) ([]PlanEnvelope, error) {
	var plans []PlanEnvelope
	err := p.WithSession(ctx, func(s *Session) error {
		var err error
		plans, err = Explain(ctx, s, statement, args...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return plans, nil
}
