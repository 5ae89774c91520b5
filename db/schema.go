// Copyright 2026 QueryTune
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"context"
	"time"

	"github.com/querytune/querytune/shared/metrics"
)

// Catalog queries are restricted to the public schema; the advisor only
// reasons about user tables.
const (
	listTablesSQL = `SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
		ORDER BY table_name`

	tableSchemaSQL = `SELECT column_name, data_type FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position`

	tableIndexesSQL = `SELECT indexname FROM pg_indexes
		WHERE schemaname = 'public' AND tablename = $1
		ORDER BY indexname`
)

// ListTables returns the names of all base tables in the public schema.
func ListTables(ctx context.Context, sess *Session) ([]string, error) {
	start := time.Now()
	rows, err := run(ctx, sess, listTablesSQL)
	metrics.ObserveQuery(metrics.OpSchema, err, time.Since(start))
	if err != nil {
		sess.pool.log.ErrorWithCause(sess.requestID, "failed to list tables", err, nil)
		return nil, err
	}

	tables := make([]string, 0, len(rows))
	for _, row := range rows {
		if name, ok := row["table_name"].(string); ok {
			tables = append(tables, name)
		}
	}
	return tables, nil
}

// TableSchema returns the column name to data type mapping for a table in
// the public schema. An unknown table yields an empty map and a warning,
// not an error.
func TableSchema(ctx context.Context, sess *Session, table string) (map[string]string, error) {
	start := time.Now()
	rows, err := run(ctx, sess, tableSchemaSQL, table)
	metrics.ObserveQuery(metrics.OpSchema, err, time.Since(start))
	if err != nil {
		sess.pool.log.ErrorWithCause(sess.requestID, "failed to fetch table schema", err, map[string]interface{}{
			"table": table,
		})
		return nil, err
	}

	schema := make(map[string]string, len(rows))
	for _, row := range rows {
		name, _ := row["column_name"].(string)
		dataType, _ := row["data_type"].(string)
		if name != "" {
			schema[name] = dataType
		}
	}

	if len(schema) == 0 {
		sess.pool.log.Warn(sess.requestID, "table has no columns or does not exist", map[string]interface{}{
			"table": table,
		})
	}
	return schema, nil
}

// TableIndexes returns the index names defined on a table in the public
// schema, including the primary-key index. An unknown table yields an empty
// slice and a warning, not an error.
func TableIndexes(ctx context.Context, sess *Session, table string) ([]string, error) {
	start := time.Now()
	rows, err := run(ctx, sess, tableIndexesSQL, table)
	metrics.ObserveQuery(metrics.OpSchema, err, time.Since(start))
	if err != nil {
		sess.pool.log.ErrorWithCause(sess.requestID, "failed to fetch table indexes", err, map[string]interface{}{
			"table": table,
		})
		return nil, err
	}

	indexes := make([]string, 0, len(rows))
	for _, row := range rows {
		if name, ok := row["indexname"].(string); ok {
			indexes = append(indexes, name)
		}
	}

	if len(indexes) == 0 {
		sess.pool.log.Warn(sess.requestID, "table has no indexes or does not exist", map[string]interface{}{
			"table": table,
		})
	}
	return indexes, nil
}

// ListTables lists public-schema tables in a fresh scoped session.
func (p *Pool) ListTables(ctx context.Context) ([]string, error) {
	var tables []string
	err := p.WithSession(ctx, func(s *Session) error {
		var err error
		tables, err = ListTables(ctx, s)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tables, nil
}

// TableSchema fetches a table's schema in a fresh scoped session.
func (p *Pool) TableSchema(ctx context.Context, table string) (map[string]string, error) {
	var schema map[string]string
	err := p.WithSession(ctx, func(s *Session) error {
		var err error
		schema, err = TableSchema(ctx, s, table)
		return err
	})
	if err != nil {
		return nil, err
	}
	return schema, nil
}

// TableIndexes fetches a table's index names in a fresh scoped session.
func (p *Pool) TableIndexes(ctx context.Context, table string) ([]string, error) {
	var indexes []string
	err := p.WithSession(ctx, func(s *Session) error {
		var err error
		indexes, err = TableIndexes(ctx, s, table)
		return err
	})
	if err != nil {
		return nil, err
	}
	return indexes, nil
}
