package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestSetLevelFromString(t *testing.T) {
	defer SetLevelFromString("info")

	for _, lvl := range []string{"debug", "INFO", "Warning", "error"} {
		if !SetLevelFromString(lvl) {
			t.Fatalf("expected %q to be accepted", lvl)
		}
	}
	if SetLevelFromString("verbose") {
		t.Fatal("expected unknown level to be rejected")
	}
}

func TestInitWriterJSON(t *testing.T) {
	prev := Op()
	defer SetLogger(prev)

	var buf bytes.Buffer
	InitWriter(&buf, "json", "debug")
	defer SetLevelFromString("info")

	Op().Debug("cache miss", "key", "art:1:info")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if rec["key"] != "art:1:info" {
		t.Fatalf("expected key attribute, got %v", rec)
	}
}

func TestCtxAddsTraceIDs(t *testing.T) {
	prev := Op()
	defer SetLogger(prev)

	var buf bytes.Buffer
	InitWriter(&buf, "text", "info")

	tid, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	sid, _ := trace.SpanIDFromHex("0102030405060708")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: tid, SpanID: sid})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	Ctx(ctx).Info("populated")
	if !strings.Contains(buf.String(), "trace_id=0102030405060708090a0b0c0d0e0f10") {
		t.Fatalf("expected trace id in %q", buf.String())
	}

	buf.Reset()
	Ctx(context.Background()).Info("plain")
	if strings.Contains(buf.String(), "trace_id") {
		t.Fatalf("expected no trace id in %q", buf.String())
	}
}
