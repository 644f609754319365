// Package audit provides audit event logging for runorg.
//
// Events follow the shape of the auditevent library from
// metal-toolbox/auditevent: a typed record with source, outcome, subjects
// and an optional target, serialized through a dedicated slog logger.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Event represents an audit event.
type Event struct {
	Metadata EventMetadata `json:"metadata"`
	// Type is a small identifier to quickly determine what happened,
	// e.g. user_created, user_login.
	Type string `json:"type"`
	// LoggedAt is when the event occurred, in UTC.
	LoggedAt time.Time `json:"loggedAt"`
	// Source is where the event came from, normally the client IP.
	Source EventSource `json:"source"`
	// Outcome is whether the event was successful, denied or an error.
	Outcome string `json:"outcome"`
	// Subjects identifies who triggered the event.
	Subjects map[string]string `json:"subjects"`
	// Component is where in the system the event occurred.
	Component string `json:"component"`
	// Target is what the event acted on, e.g. the created user.
	Target map[string]string `json:"target,omitempty"`
	// Data carries extra information useful for forensic analysis.
	Data *json.RawMessage `json:"data,omitempty"`
}

// EventMetadata contains metadata about the audit event.
type EventMetadata struct {
	// AuditID is a unique identifier for the audit event.
	AuditID string `json:"auditId"`
	// Extra allows for including additional information about the event.
	Extra map[string]any `json:"extra,omitempty"`
}

// EventSource represents the source of an audit event.
type EventSource struct {
	// Type indicates the source type, e.g. network or local.
	Type string `json:"type"`
	// Value indicates the source of the event, e.g. an IP address.
	Value string `json:"value"`
	// Extra allows for including additional source information.
	Extra map[string]any `json:"extra,omitempty"`
}

// NewEvent returns a new Event with an appropriately set AuditID and logging time.
func NewEvent(eventType string, source EventSource, outcome string, subjects map[string]string) *Event {
	return &Event{
		Metadata: EventMetadata{
			AuditID: uuid.New().String(),
		},
		Type:      eventType,
		LoggedAt:  time.Now().UTC(),
		Source:    source,
		Outcome:   outcome,
		Subjects:  subjects,
		Component: Component,
	}
}

// WithTarget sets the target of the event.
func (e *Event) WithTarget(target map[string]string) *Event {
	e.Target = target
	return e
}

// WithData sets the data of the event.
func (e *Event) WithData(data *json.RawMessage) *Event {
	e.Data = data
	return e
}

// LogTo logs the audit event to the provided slog.Logger using the audit level.
func (e *Event) LogTo(ctx context.Context, logger *slog.Logger) {
	attrs := []slog.Attr{
		slog.String("audit_id", e.Metadata.AuditID),
		slog.String("type", e.Type),
		slog.Time("logged_at", e.LoggedAt),
		slog.String("outcome", e.Outcome),
		slog.String("component", e.Component),
		slog.Group("source",
			slog.String("type", e.Source.Type),
			slog.String("value", e.Source.Value),
		),
		slog.Any("subjects", e.Subjects),
	}

	if e.Target != nil {
		attrs = append(attrs, slog.Any("target", e.Target))
	}
	if e.Metadata.Extra != nil {
		attrs = append(attrs, slog.Group("metadata", slog.Any("extra", e.Metadata.Extra)))
	}
	if e.Data != nil {
		attrs = append(attrs, slog.Any("data", e.Data))
	}

	logger.LogAttrs(ctx, LevelAudit, "audit_event", attrs...)
}

// Event types emitted by the auth boundary.
const (
	// EventTypeUserCreated records a local user being provisioned.
	EventTypeUserCreated = "user_created"
	// EventTypeUserLogin records a completed (or failed) login attempt.
	EventTypeUserLogin = "user_login"
)

// Common event outcomes.
const (
	// OutcomeSuccess indicates the event was successful.
	OutcomeSuccess = "success"
	// OutcomeFailure indicates the event failed.
	OutcomeFailure = "failure"
	// OutcomeDenied indicates the event was denied.
	OutcomeDenied = "denied"
)

// Common source types.
const (
	// SourceTypeNetwork indicates the event came from a network request.
	SourceTypeNetwork = "network"
	// SourceTypeLocal indicates the event came from a local source.
	SourceTypeLocal = "local"
)

// SubjectKeyUser is the key for the user email in the subjects map.
const SubjectKeyUser = "user"

// Component is the component name for runorg audit events.
const Component = "runorg-api"
