package api

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName             = "taskflow/api"
	observabilityEventName = "observability.event"

	feedEventDomain     = "taskflow.feed"
	feedListEventName   = "feed.list"
	feedUploadEventName = "feed.upload"
	feedListSpanName    = "GET /api/feed"
	feedUploadSpanName  = "POST /api/feed"
)

type stageDuration struct {
	name     string
	duration time.Duration
}

// requestMetrics records stage timings for one request and emits them both
// as span attributes and as a structured log entry.
type requestMetrics struct {
	logger     *log.Logger
	span       trace.Span
	route      string
	eventName  string
	domain     string
	start      time.Time
	stages     []stageDuration
	attrs      []attribute.KeyValue
	errorStage string
}

func newRequestMetrics(ctx context.Context, logger *log.Logger, spanName, route, domain, eventName string) (*requestMetrics, context.Context) {
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("http.route", route)),
	)
	return &requestMetrics{
		logger:    logger,
		span:      span,
		route:     route,
		eventName: eventName,
		domain:    domain,
		start:     time.Now(),
	}, spanCtx
}

func (m *requestMetrics) key(name string) string {
	return m.domain + "." + name
}

func (m *requestMetrics) Observe(stage string, duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.stages = append(m.stages, stageDuration{name: stage, duration: duration})
}

func (m *requestMetrics) SetInt(name string, v int) {
	if v < 0 {
		v = 0
	}
	m.attrs = append(m.attrs, attribute.Int(m.key(name), v))
}

func (m *requestMetrics) SetBool(name string, v bool) {
	m.attrs = append(m.attrs, attribute.Bool(m.key(name), v))
}

func (m *requestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

func (m *requestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("http.route", m.route),
		attribute.Int("http.status_code", status),
		attribute.Float64(m.key("total_ms"), durationToMillis(time.Since(m.start))),
	}
	for _, s := range m.stages {
		attrs = append(attrs, attribute.Float64(m.key(s.name+"_ms"), durationToMillis(s.duration)))
	}
	attrs = append(attrs, m.attrs...)
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String(m.key("error_stage"), m.errorStage))
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error.message", err.Error()))
	}

	severityText, severityNumber := severityForStatus(status, err)
	eventAttrs := append([]attribute.KeyValue{
		attribute.String("event.name", m.eventName),
		attribute.String("event.domain", m.domain),
		attribute.String("severity_text", severityText),
		attribute.Int("severity_number", severityNumber),
	}, attrs...)

	if m.span != nil {
		m.span.SetAttributes(attrs...)
		m.span.AddEvent(observabilityEventName, trace.WithAttributes(eventAttrs...))
		if severityText == "ERROR" {
			desc := http.StatusText(status)
			if err != nil {
				m.span.RecordError(err)
				desc = err.Error()
			}
			m.span.SetStatus(codes.Error, desc)
		} else {
			m.span.SetStatus(codes.Ok, "")
		}
		m.span.End()
	}

	if m.logger == nil {
		return
	}
	attrMap := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		attrMap[string(kv.Key)] = kv.Value.AsInterface()
	}
	fields := log.Fields{
		"event.name":      m.eventName,
		"event.domain":    m.domain,
		"attributes":      attrMap,
		"severity_text":   severityText,
		"severity_number": severityNumber,
	}
	if m.span != nil {
		if sc := m.span.SpanContext(); sc.IsValid() {
			fields["trace_id"] = sc.TraceID().String()
			fields["span_id"] = sc.SpanID().String()
		}
	}

	entry := m.logger.WithFields(fields)
	switch severityText {
	case "ERROR":
		entry.Error(observabilityEventName)
	case "WARN":
		entry.Warn(observabilityEventName)
	default:
		entry.Info(observabilityEventName)
	}
}

// severityForStatus follows the OpenTelemetry log severity numbers.
func severityForStatus(status int, err error) (string, int) {
	switch {
	case status >= http.StatusInternalServerError:
		return "ERROR", 17
	case status >= http.StatusBadRequest:
		return "WARN", 13
	case err != nil:
		return "ERROR", 17
	default:
		return "INFO", 9
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
