package logger_test

import (
	"context"
	"testing"

	"github.com/logrelay/logrelay/internal/logger"
	"github.com/logrelay/logrelay/internal/shipper"

	"go.opentelemetry.io/otel/trace"
)

// ---------------------------------------------------------------------------
// Canonical entry point and sink fan-out
// ---------------------------------------------------------------------------

func TestLog_InvokesWriteLogSink(t *testing.T) {
	var entries []map[string]any
	l := logger.New(logger.WithWriteLog(func(entry map[string]any) {
		entries = append(entries, entry)
	}))

	l.Log(shipper.LevelInfo, "user created", logger.Fields{"user_id": "u1", "count": 3})

	if len(entries) != 1 {
		t.Fatalf("sink received %d entries, want 1", len(entries))
	}
	entry := entries[0]
	if entry["level"] != "info" || entry["msg"] != "user created" {
		t.Errorf("entry = %v, want level=info msg=user created", entry)
	}
	if entry["user_id"] != "u1" {
		t.Errorf("user_id = %v, want u1", entry["user_id"])
	}
	// Non-string field values pass through unflattened to the structured sink.
	if entry["count"] != 3 {
		t.Errorf("count = %v (%T), want 3", entry["count"], entry["count"])
	}
}

func TestLog_NoSinksConfiguredDoesNotPanic(t *testing.T) {
	l := logger.New()
	l.Info("console only", nil)
	l.Error("still console only", logger.Fields{"k": "v"})
}

func TestAdapters_SetLevel(t *testing.T) {
	var levels []string
	l := logger.New(logger.WithWriteLog(func(entry map[string]any) {
		levels = append(levels, entry["level"].(string))
	}))

	l.Debug("d", nil)
	l.Info("i", nil)
	l.Warn("w", nil)
	l.Error("e", nil)

	want := []string{"debug", "info", "warn", "error"}
	if len(levels) != len(want) {
		t.Fatalf("sink received %d entries, want %d", len(levels), len(want))
	}
	for i := range want {
		if levels[i] != want[i] {
			t.Errorf("call %d level = %q, want %q", i, levels[i], want[i])
		}
	}
}

// ---------------------------------------------------------------------------
// Audit sink
// ---------------------------------------------------------------------------

func TestAudit_InvokesAuditSinkAndLogs(t *testing.T) {
	type auditCall struct {
		action, actorID, sourceIP string
		metadata                  map[string]any
	}
	var calls []auditCall
	var entries []map[string]any
	l := logger.New(
		logger.WithWriteLog(func(entry map[string]any) { entries = append(entries, entry) }),
		logger.WithAuditWrite(func(action, actorID, sourceIP string, metadata map[string]any) {
			calls = append(calls, auditCall{action, actorID, sourceIP, metadata})
		}),
	)

	l.Audit("user.delete", "admin-1", "10.0.0.5", map[string]any{"target": "u9"})

	if len(calls) != 1 {
		t.Fatalf("audit sink received %d calls, want 1", len(calls))
	}
	if calls[0].action != "user.delete" || calls[0].actorID != "admin-1" || calls[0].sourceIP != "10.0.0.5" {
		t.Errorf("audit call = %+v", calls[0])
	}
	if calls[0].metadata["target"] != "u9" {
		t.Errorf("metadata = %v, want target=u9", calls[0].metadata)
	}
	if len(entries) != 1 || entries[0]["msg"] != "audit: user.delete" {
		t.Errorf("log entries = %v, want one audit entry", entries)
	}
}

func TestAudit_NoSinkStillLogs(t *testing.T) {
	var entries []map[string]any
	l := logger.New(logger.WithWriteLog(func(entry map[string]any) { entries = append(entries, entry) }))

	l.Audit("user.delete", "admin-1", "", nil)

	if len(entries) != 1 {
		t.Fatalf("got %d log entries, want 1", len(entries))
	}
	if entries[0]["actor_id"] != "admin-1" {
		t.Errorf("actor_id = %v, want admin-1", entries[0]["actor_id"])
	}
}

// ---------------------------------------------------------------------------
// Context-first adapters and trace enrichment
// ---------------------------------------------------------------------------

type staticTraceProvider struct {
	fields logger.Fields
}

func (p staticTraceProvider) TraceFields(context.Context) logger.Fields {
	out := logger.Fields{}
	for k, v := range p.fields {
		out[k] = v
	}
	return out
}

func TestLogCtx_MergesTraceFields(t *testing.T) {
	var entries []map[string]any
	l := logger.New(
		logger.WithWriteLog(func(entry map[string]any) { entries = append(entries, entry) }),
		logger.WithTraceProvider(staticTraceProvider{fields: logger.Fields{"trace_id": "abc123"}}),
	)

	l.InfoCtx(context.Background(), "traced", logger.Fields{"user_id": "u1"})

	if len(entries) != 1 {
		t.Fatalf("sink received %d entries, want 1", len(entries))
	}
	if entries[0]["trace_id"] != "abc123" {
		t.Errorf("trace_id = %v, want abc123", entries[0]["trace_id"])
	}
	if entries[0]["user_id"] != "u1" {
		t.Errorf("user_id = %v, want u1", entries[0]["user_id"])
	}
}

func TestLogCtx_CallerFieldsWinOverTraceFields(t *testing.T) {
	var entries []map[string]any
	l := logger.New(
		logger.WithWriteLog(func(entry map[string]any) { entries = append(entries, entry) }),
		logger.WithTraceProvider(staticTraceProvider{fields: logger.Fields{"trace_id": "from-provider"}}),
	)

	l.InfoCtx(context.Background(), "collision", logger.Fields{"trace_id": "from-caller"})

	if entries[0]["trace_id"] != "from-caller" {
		t.Errorf("trace_id = %v, want caller value to win", entries[0]["trace_id"])
	}
}

func TestLogCtx_DefaultProviderAddsNothing(t *testing.T) {
	var entries []map[string]any
	l := logger.New(logger.WithWriteLog(func(entry map[string]any) { entries = append(entries, entry) }))

	l.InfoCtx(context.Background(), "untraced", nil)

	if _, ok := entries[0]["trace_id"]; ok {
		t.Error("entry carries trace_id with the no-op provider, want none")
	}
}

// ---------------------------------------------------------------------------
// OTel trace provider
// ---------------------------------------------------------------------------

func TestOTelTraceProvider_NoSpanYieldsNoFields(t *testing.T) {
	var p logger.OTelTraceProvider
	if fields := p.TraceFields(context.Background()); len(fields) != 0 {
		t.Errorf("TraceFields on bare context = %v, want none", fields)
	}
}

func TestOTelTraceProvider_ValidSpanYieldsIdentifiers(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	var p logger.OTelTraceProvider
	fields := p.TraceFields(ctx)
	if fields["trace_id"] != traceID.String() {
		t.Errorf("trace_id = %v, want %s", fields["trace_id"], traceID)
	}
	if fields["span_id"] != spanID.String() {
		t.Errorf("span_id = %v, want %s", fields["span_id"], spanID)
	}
}

// ---------------------------------------------------------------------------
// Shipper integration
// ---------------------------------------------------------------------------

func TestLog_ShipperReceivesStringifiedLabels(t *testing.T) {
	// A disabled shipper still performs the console echo without buffering,
	// proving the logger→shipper path never blocks on configuration.
	s := shipper.New(shipper.Config{Enabled: false}, nil)
	l := logger.New(logger.WithShipper(s))

	l.Info("shipped", logger.Fields{"attempt": 2})

	if got := s.Pending(); got != 0 {
		t.Errorf("Pending() = %d, want 0 for disabled shipper", got)
	}
}
