// Copyright 2026 QueryTune
// SPDX-License-Identifier: Apache-2.0

/*
Package logger provides structured JSON logging for querytune components.

# Overview

The logger outputs single-line JSON entries to stdout, making logs easily
consumable by log aggregation systems.

Each log entry includes:
  - Timestamp (RFC3339Nano format)
  - Log level (DEBUG, INFO, WARN, ERROR)
  - Component name (db, advisor, llm, ...)
  - Request ID (for operation correlation)
  - Custom fields

# Usage

Create a logger for your component:

	log := logger.New("db")

Log messages with request context:

	log.Info(requestID, "executing query", map[string]interface{}{
	    "statement": "SELECT 1",
	})

Attach an error to an entry:

	log.ErrorWithCause(requestID, "query failed", err, nil)

# Environment Variables

QUERYTUNE_LOG_LEVEL sets the minimum level (DEBUG, INFO, WARN, ERROR);
entries below it are dropped. The default is INFO.

# Thread Safety

Logger instances are safe for concurrent use from multiple goroutines.
*/
package logger
