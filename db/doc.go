// Copyright 2026 QueryTune
// SPDX-License-Identifier: Apache-2.0

/*
Package db provides single-connection PostgreSQL sessions with transactional
scope handling, thin query executors, structured EXPLAIN retrieval, and
schema introspection helpers.

# Sessions

A Session owns exactly one connection. A transaction begins lazily on the
first statement; the scoped helper settles it on exit:

	pool, err := db.Open(ctx, settings)
	if err != nil { ... }
	defer pool.Close()

	err = pool.WithSession(ctx, func(s *db.Session) error {
	    rows, err := db.Run(ctx, s, "SELECT 1 AS number")
	    if err != nil {
	        return err
	    }
	    _ = rows
	    return nil
	})

On a nil return with an active transaction the session commits; on any error
it rolls back; a session that never ran a statement does neither. The
connection is released in every path.

Callers that hold a session across scopes can Acquire and Close it
explicitly; plain Close never commits.

# Executors

Run returns all rows of a statement as []db.Row (column name to value).
Statements without a result set and empty result sets both return an empty
slice. Explain wraps the statement in EXPLAIN (ANALYZE, VERBOSE, BUFFERS,
FORMAT JSON) and returns the parsed plan; a plan-less success is db.ErrNoPlan.

# Introspection

ListTables, TableSchema and TableIndexes query the system catalogs for the
public schema. An unmatched table name returns an empty result with a
logged warning rather than an error.
*/
package db
