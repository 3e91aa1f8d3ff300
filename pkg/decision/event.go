package decision

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mercator-hq/saturn/pkg/pdl/ast"
)

// Event is the structured record of one decision, emitted once per
// evaluation for external audit and observability consumers.
type Event struct {
	EventID   string
	RequestID string
	Timestamp time.Time

	PolicyID      string
	PolicyVersion string
	AgentID       string
	Operation     string

	Verdict         ast.Verdict
	Reason          ReasonCode
	MatchedRuleIDs  []string
	FallbackApplied bool

	Latency time.Duration
}

// Sink consumes decision events. Implementations must not block the
// evaluation path; slow consumers should buffer internally.
type Sink interface {
	Emit(ctx context.Context, event *Event)
}

// newEvent builds the event for a finished response.
func newEvent(req *Request, resp *Response) *Event {
	return &Event{
		EventID:         uuid.NewString(),
		RequestID:       resp.RequestID,
		Timestamp:       time.Now().UTC(),
		PolicyID:        req.PolicyID,
		PolicyVersion:   resp.PolicyVersion,
		AgentID:         req.AgentID,
		Operation:       req.Operation,
		Verdict:         resp.Verdict,
		Reason:          resp.Reason,
		MatchedRuleIDs:  resp.MatchedRuleIDs,
		FallbackApplied: resp.FallbackApplied,
		Latency:         resp.Duration,
	}
}

// LogSink writes decision events to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink logging at info level. A nil logger uses
// slog.Default.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "decision.events")}
}

// Emit implements Sink.
func (s *LogSink) Emit(ctx context.Context, event *Event) {
	s.logger.InfoContext(ctx, "decision",
		"event_id", event.EventID,
		"request_id", event.RequestID,
		"policy_id", event.PolicyID,
		"policy_version", event.PolicyVersion,
		"agent_id", event.AgentID,
		"operation", event.Operation,
		"verdict", event.Verdict,
		"reason", event.Reason,
		"matched_rules", event.MatchedRuleIDs,
		"fallback", event.FallbackApplied,
		"latency", event.Latency,
	)
}

// NopSink discards events.
type NopSink struct{}

// Emit implements Sink.
func (NopSink) Emit(ctx context.Context, event *Event) {}
