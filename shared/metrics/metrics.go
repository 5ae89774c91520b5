// Copyright 2026 QueryTune
// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes Prometheus instrumentation for database and LLM
// operations. The library never starts a listener; embedding processes can
// serve these metrics through promhttp.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Statement operation labels.
const (
	OpRun     = "run"
	OpExplain = "explain"
	OpSchema  = "schema"
)

// Outcome labels.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

var (
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querytune_db_queries_total",
			Help: "Total number of database statements executed",
		},
		[]string{"operation", "status"},
	)
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "querytune_db_query_duration_milliseconds",
			Help:    "Statement duration in milliseconds",
			Buckets: []float64{1, 5, 10, 50, 100, 200, 500, 1000, 5000},
		},
		[]string{"operation"},
	)
	SessionsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "querytune_db_sessions_open",
			Help: "Number of currently open database sessions",
		},
	)
	LLMCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querytune_llm_calls_total",
			Help: "Total number of LLM API calls",
		},
		[]string{"provider", "status"},
	)
	LLMCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "querytune_llm_call_duration_milliseconds",
			Help:    "LLM call duration in milliseconds",
			Buckets: []float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000},
		},
		[]string{"provider"},
	)
)

func init() {
	prometheus.MustRegister(QueriesTotal)
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(SessionsOpen)
	prometheus.MustRegister(LLMCallsTotal)
	prometheus.MustRegister(LLMCallDuration)
}

// ObserveQuery records the outcome and duration of a database operation.
func ObserveQuery(operation string, err error, elapsed time.Duration) {
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	QueriesTotal.WithLabelValues(operation, status).Inc()
	QueryDuration.WithLabelValues(operation).Observe(float64(elapsed.Milliseconds()))
}

// ObserveLLMCall records the outcome and duration of an LLM API call.
func ObserveLLMCall(provider string, err error, elapsed time.Duration) {
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	LLMCallsTotal.WithLabelValues(provider, status).Inc()
	LLMCallDuration.WithLabelValues(provider).Observe(float64(elapsed.Milliseconds()))
}
