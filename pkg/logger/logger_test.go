package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func newTestLogger(buf *bytes.Buffer) *Logger {
	return New(Options{ServiceName: "test", Output: buf})
}

func TestLoggerWritesServiceField(t *testing.T) {
	var buf bytes.Buffer
	logg := newTestLogger(&buf)

	logg.Info(context.Background(), "hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid json log line: %v", err)
	}
	if entry["service"] != "test" {
		t.Fatalf("expected service field, got %v", entry["service"])
	}
	if entry["message"] != "hello" {
		t.Fatalf("expected message field, got %v", entry["message"])
	}
}

func TestLoggerFieldsFlowThroughContext(t *testing.T) {
	var buf bytes.Buffer
	logg := newTestLogger(&buf)

	ctx := logg.WithSubscriptionID(context.Background(), "sub-123")
	ctx = logg.WithFields(ctx, map[string]any{"job": "subscription-scan"})
	logg.Info(ctx, "scan start")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid json log line: %v", err)
	}
	if entry["subscription_id"] != "sub-123" {
		t.Fatalf("expected subscription_id, got %v", entry["subscription_id"])
	}
	if entry["job"] != "subscription-scan" {
		t.Fatalf("expected job field, got %v", entry["job"])
	}
}

func TestLoggerErrorIncludesStack(t *testing.T) {
	var buf bytes.Buffer
	logg := newTestLogger(&buf)

	logg.Error(context.Background(), "boom", errors.New("failed"))

	if !strings.Contains(buf.String(), "stack") {
		t.Fatalf("expected stack trace in error log: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	if got := ParseLevel("debug"); got.String() != "debug" {
		t.Fatalf("expected debug, got %s", got)
	}
	if got := ParseLevel(""); got.String() != "info" {
		t.Fatalf("expected info fallback, got %s", got)
	}
	if got := ParseLevel("nonsense"); got.String() != "info" {
		t.Fatalf("expected info fallback for junk, got %s", got)
	}
}
