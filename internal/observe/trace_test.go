package observe

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestTracerProvider(t *testing.T) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter) {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, exp
}

func TestTraceID_EmptyByDefault(t *testing.T) {
	if got := TraceID(context.Background()); got != "" {
		t.Errorf("TraceID(background) = %q, want empty", got)
	}
}

func TestStartSpan_CreatesSpan(t *testing.T) {
	tp, exp := newTestTracerProvider(t)
	origTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(origTP) })

	ctx, span := StartSpan(context.Background(), "translator.handle")
	if TraceID(ctx) == "" {
		t.Error("StartSpan did not create a span with a trace ID")
	}
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Name != "translator.handle" {
		t.Errorf("spans = %+v", spans)
	}
}

func TestLogger(t *testing.T) {
	tp, _ := newTestTracerProvider(t)

	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(orig) })

	Logger(context.Background()).Info("plain")
	if strings.Contains(buf.String(), "trace_id") {
		t.Errorf("logger without span added trace_id: %s", buf.String())
	}

	ctx, span := tp.Tracer("test").Start(context.Background(), "log-test")
	defer span.End()
	buf.Reset()
	Logger(ctx).Info("traced")
	for _, want := range []string{"trace_id=", "span_id="} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("log output missing %s: %s", want, buf.String())
		}
	}
}

func TestDetach(t *testing.T) {
	tp, _ := newTestTracerProvider(t)
	parent, cancel := context.WithCancel(context.Background())
	parent, span := tp.Tracer("test").Start(parent, "ack")
	defer span.End()

	detached := Detach(parent)
	cancel()

	select {
	case <-detached.Done():
		t.Fatal("detached context was cancelled with its parent")
	case <-time.After(10 * time.Millisecond):
	}
	if TraceID(detached) != TraceID(parent) {
		t.Error("detached context lost the span")
	}
}
