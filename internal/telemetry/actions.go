package telemetry

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// ActionLogger emits one structured line per user action, API call outcome,
// system event, or error. Every line carries session_id, action, details,
// and user_agent alongside the handler's timestamp and level.
type ActionLogger struct {
	logger *slog.Logger
	meter  metric.Meter
}

// NewActionLogger wraps a logger and meter. meter may be nil when metrics
// are not wanted (tests).
func NewActionLogger(logger *slog.Logger, meter metric.Meter) *ActionLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActionLogger{logger: logger, meter: meter}
}

// UserAction logs an action taken by the user.
func (l *ActionLogger) UserAction(sessionID, userAgent, action string, details map[string]any) {
	l.logger.Info("user_action",
		"session_id", sessionID,
		"action", action,
		"details", details,
		"user_agent", userAgent,
	)
}

// SystemEvent logs an event not attributable to a single user.
func (l *ActionLogger) SystemEvent(event string, details map[string]any) {
	l.logger.Info("system_event",
		"session_id", "",
		"action", event,
		"details", details,
		"user_agent", "",
	)
}

// APICall logs the outcome and latency of one external API call, and records
// the duration histogram when a meter is configured.
func (l *ActionLogger) APICall(ctx context.Context, sessionID, service, model string, promptLength int, elapsed time.Duration, err error) {
	details := map[string]any{
		"service":               service,
		"model":                 model,
		"prompt_length":         promptLength,
		"response_time_seconds": elapsed.Seconds(),
		"success":               err == nil,
	}
	if err != nil {
		details["error"] = err.Error()
		l.logger.Error("api_call",
			"session_id", sessionID,
			"action", "api_call",
			"details", details,
			"user_agent", "",
		)
	} else {
		l.logger.Info("api_call",
			"session_id", sessionID,
			"action", "api_call",
			"details", details,
			"user_agent", "",
		)
	}

	if l.meter != nil {
		histogram, herr := l.meter.Float64Histogram(
			"http.client.request.duration",
			metric.WithDescription("External API request duration in milliseconds"),
		)
		if herr == nil {
			histogram.Record(ctx, float64(elapsed.Milliseconds()))
		}
	}
}

// Error logs an error with its context.
func (l *ActionLogger) Error(sessionID, errType, message string, details map[string]any) {
	if details == nil {
		details = map[string]any{}
	}
	details["error_type"] = errType
	details["error_message"] = message
	l.logger.Error("error",
		"session_id", sessionID,
		"action", "error",
		"details", details,
		"user_agent", "",
	)
}

// RecordUsage turns token usage into OTel counters, one per field.
func (l *ActionLogger) RecordUsage(ctx context.Context, usage map[string]int64) {
	if l.meter == nil {
		return
	}
	for key, value := range usage {
		counter, err := l.meter.Int64Counter(
			"llm.usage."+key,
			metric.WithDescription("LLM usage metric: "+key),
		)
		if err != nil {
			l.logger.Warn("failed to create counter", "key", key, "error", err)
			continue
		}
		counter.Add(ctx, value)
	}
}
