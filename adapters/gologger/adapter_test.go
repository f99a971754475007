package gologger

import (
	"context"
	"testing"

	glog "github.com/goliatone/go-logger/glog"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestResolveDeterministicFallback(t *testing.T) {
	loggerOnly := &capturingLogger{id: "logger"}
	providerLogger := &capturingLogger{id: "provider"}
	provider := &capturingProvider{logger: providerLogger}

	var resolvedProvider glog.LoggerProvider
	_, resolved := Resolve("contracts", provider, loggerOnly)
	got := resolved.(*capturingLogger)
	if got.id != "provider" {
		t.Fatalf("expected provider logger precedence, got %q", got.id)
	}

	resolvedProvider, resolved = Resolve("contracts", nil, loggerOnly)
	got = resolved.(*capturingLogger)
	if got.id != "logger" {
		t.Fatalf("expected direct logger when provider is nil, got %q", got.id)
	}
	if resolvedProvider == nil {
		t.Fatalf("expected provider wrapper from logger")
	}

	_, resolved = Resolve("contracts", nil, nil)
	if resolved == nil {
		t.Fatalf("expected nop logger fallback")
	}
}

func TestLogger_WritesStructuredFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	provider := NewProvider(Wrap(zap.New(core)))

	logger := provider.GetLogger("negotiation")
	logger.Info("quote_event succeeded", "entity_id", "quote-1", "duration_ms", int64(4))
	logger.Trace("trace level maps to debug")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	first := entries[0]
	if first.LoggerName != "negotiation" || first.Message != "quote_event succeeded" {
		t.Fatalf("unexpected entry: %#v", first.Entry)
	}
	if first.ContextMap()["entity_id"] != "quote-1" {
		t.Fatalf("expected entity_id field, got %#v", first.ContextMap())
	}
	if entries[1].Level != zapcore.DebugLevel {
		t.Fatalf("expected trace to log at debug, got %s", entries[1].Level)
	}
}

func TestLogger_WithContextAddsTraceIDs(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := Wrap(zap.New(core))

	spanContext := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3},
		SpanID:     trace.SpanID{4, 5, 6},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), spanContext)

	logger.WithContext(ctx).Warn("downstream slow")
	logger.WithContext(context.Background()).Warn("no span")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["trace_id"] != spanContext.TraceID().String() || fields["span_id"] != spanContext.SpanID().String() {
		t.Fatalf("expected trace fields, got %#v", fields)
	}
	if _, ok := entries[1].ContextMap()["trace_id"]; ok {
		t.Fatalf("expected no trace id without a span")
	}
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	if _, err := New("dev", "loud"); err == nil {
		t.Fatalf("expected invalid level error")
	}
	logger, err := New("production", "warn")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	if logger == nil {
		t.Fatalf("expected logger")
	}
}

type capturingProvider struct {
	logger glog.Logger
}

func (p *capturingProvider) GetLogger(string) glog.Logger {
	return p.logger
}

type capturingLogger struct {
	id string
}

func (l *capturingLogger) Trace(string, ...any)                    {}
func (l *capturingLogger) Debug(string, ...any)                    {}
func (l *capturingLogger) Info(string, ...any)                     {}
func (l *capturingLogger) Warn(string, ...any)                     {}
func (l *capturingLogger) Error(string, ...any)                    {}
func (l *capturingLogger) Fatal(string, ...any)                    {}
func (l *capturingLogger) WithContext(context.Context) glog.Logger { return l }
