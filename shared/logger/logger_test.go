// Copyright 2026 QueryTune
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	l := New("test-component")
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	if l.Component != "test-component" {
		t.Errorf("Component = %q, want %q", l.Component, "test-component")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{"warn", WARN},
		{"WARNING", WARN},
		{"error", ERROR},
		{" Error ", ERROR},
		{"", INFO},
		{"bogus", INFO},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLog_OutputFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New("db")
	l.SetOutput(&buf)
	l.SetLevel(DEBUG)

	l.Info("req-123", "executing query", map[string]interface{}{
		"statement": "SELECT 1",
	})

	line := strings.TrimSpace(buf.String())
	var entry LogEntry
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v (%q)", err, line)
	}

	if entry.Level != INFO {
		t.Errorf("level = %q, want INFO", entry.Level)
	}
	if entry.Component != "db" {
		t.Errorf("component = %q, want db", entry.Component)
	}
	if entry.RequestID != "req-123" {
		t.Errorf("request_id = %q, want req-123", entry.RequestID)
	}
	if entry.Message != "executing query" {
		t.Errorf("message = %q", entry.Message)
	}
	if entry.Fields["statement"] != "SELECT 1" {
		t.Errorf("fields[statement] = %v", entry.Fields["statement"])
	}
	if _, err := time.Parse(time.RFC3339Nano, entry.Timestamp); err != nil {
		t.Errorf("timestamp not RFC3339Nano: %v", err)
	}
}

func TestLog_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New("db")
	l.SetOutput(&buf)
	l.SetLevel(WARN)

	l.Debug("", "dropped", nil)
	l.Info("", "dropped too", nil)
	l.Warn("", "kept", nil)
	l.Error("", "kept too", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %q", len(lines), buf.String())
	}
}

func TestErrorWithCause(t *testing.T) {
	var buf bytes.Buffer
	l := New("advisor")
	l.SetOutput(&buf)

	l.ErrorWithCause("req-1", "llm call failed", errTest, nil)

	var entry LogEntry
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry.Fields["error"] != "boom" {
		t.Errorf("fields[error] = %v, want boom", entry.Fields["error"])
	}
}

func TestInfoWithDuration(t *testing.T) {
	var buf bytes.Buffer
	l := New("db")
	l.SetOutput(&buf)

	l.InfoWithDuration("req-1", "query completed", 12.5, nil)

	var entry LogEntry
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry.Fields["duration_ms"] != 12.5 {
		t.Errorf("fields[duration_ms] = %v, want 12.5", entry.Fields["duration_ms"])
	}
}

var errTest = errBoom{}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }
