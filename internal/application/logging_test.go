package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestDefaultLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(io.Discard, nil))
	if got := defaultLogger(custom); got != custom {
		t.Fatalf("expected custom logger to be returned")
	}

	if got := defaultLogger(nil); got != slog.Default() {
		t.Fatalf("expected default logger when none provided")
	}
}

func TestServiceLoggerTagsSampledSpans(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3},
		SpanID:     trace.SpanID{4, 5, 6},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	serviceLogger(ctx, base, "CellService", "Apply", "worker_id", "w1").Info("cell changed")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("log record is not JSON: %v (%q)", err, buf.String())
	}
	if record["service"] != "CellService" || record["operation"] != "Apply" || record["worker_id"] != "w1" {
		t.Fatalf("unexpected record %v", record)
	}
	if record["span_id"] != sc.SpanID().String() {
		t.Fatalf("span_id = %v, want %s", record["span_id"], sc.SpanID())
	}

	buf.Reset()
	serviceLogger(context.Background(), base, "CellService", "").Info("no span")
	record = nil
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("log record is not JSON: %v", err)
	}
	if _, ok := record["span_id"]; ok {
		t.Fatalf("span_id must be omitted without a span: %v", record)
	}
	if _, ok := record["operation"]; ok {
		t.Fatalf("empty operation must be omitted: %v", record)
	}
}

func TestErrorKind(t *testing.T) {
	t.Parallel()

	cases := map[string]error{
		"":                    nil,
		"unauthorized":        ErrUnauthorized,
		"not_found":           fmt.Errorf("lookup: %w", ErrNotFound),
		"conflict":            ErrConflict,
		"storage_unavailable": mapStoreError(errors.New("boom")),
		"canceled":            context.Canceled,
		"validation":          fieldError("day", "bad"),
		"unexpected":          errors.New("other"),
	}
	for want, err := range cases {
		if got := ErrorKind(err); got != want {
			t.Errorf("ErrorKind(%v) = %q, want %q", err, got, want)
		}
	}
}
