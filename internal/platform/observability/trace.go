package observability

import (
	"context"
	"encoding/binary"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/hanko-field/variants/internal/platform/observability"

var tracer = otel.Tracer(instrumentationName)

// Tracer returns a named tracer from the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.GetMeterProvider().Meter(name)
}

// StartCommand starts the root span of a CLI command. When cloudTrace holds a valid
// X-Cloud-Trace-Context value ("TRACE_ID/SPAN_ID;o=1") the span joins that trace.
func StartCommand(ctx context.Context, command, cloudTrace string) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	if remote, ok := parseCloudTraceContext(cloudTrace); ok {
		ctx = trace.ContextWithRemoteSpanContext(ctx, remote)
	}
	command = strings.TrimSpace(command)
	if command == "" {
		command = "unknown"
	}
	return tracer.Start(ctx, "variantctl "+command,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("variantctl.command", command)),
	)
}

func parseCloudTraceContext(header string) (trace.SpanContext, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return trace.SpanContext{}, false
	}

	traceIDHex, spanPart, ok := strings.Cut(header, "/")
	if !ok {
		return trace.SpanContext{}, false
	}
	traceIDHex = strings.TrimSpace(traceIDHex)
	if len(traceIDHex) != 32 {
		return trace.SpanContext{}, false
	}
	traceID, err := trace.TraceIDFromHex(traceIDHex)
	if err != nil {
		return trace.SpanContext{}, false
	}

	spanPart, optionPart, _ := strings.Cut(spanPart, ";")
	spanID, ok := parseSpanID(spanPart)
	if !ok {
		return trace.SpanContext{}, false
	}

	flags := trace.TraceFlags(0)
	if parseTraceOptions(optionPart) {
		flags = trace.FlagsSampled
	}
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: flags,
		Remote:     true,
	}), true
}

// parseSpanID accepts the decimal span ids Cloud Trace emits, falling back to hex.
func parseSpanID(value string) (trace.SpanID, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return trace.SpanID{}, false
	}

	if num, err := strconv.ParseUint(value, 10, 64); err == nil {
		var spanID trace.SpanID
		binary.BigEndian.PutUint64(spanID[:], num)
		return spanID, spanID.IsValid()
	}

	if len(value) > 16 {
		return trace.SpanID{}, false
	}
	if len(value) < 16 {
		value = strings.Repeat("0", 16-len(value)) + value
	}
	spanID, err := trace.SpanIDFromHex(value)
	if err != nil {
		return trace.SpanID{}, false
	}
	return spanID, true
}

func parseTraceOptions(optionPart string) bool {
	for _, segment := range strings.Split(optionPart, ";") {
		segment = strings.TrimSpace(segment)
		if strings.HasPrefix(segment, "o=") {
			return segment == "o=1"
		}
	}
	return false
}
