// Package audit records operator actions and lifecycle events that change
// shared state: log level changes, catalog reloads and proposal deletions.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventType represents the type of audit event.
type EventType string

// Audit event types.
const (
	// System events
	EventServiceStarted  EventType = "system.started"
	EventServiceStopping EventType = "system.stopping"

	// Admin operations
	EventLogLevelChanged  EventType = "admin.log_level.changed"
	EventCatalogRefreshed EventType = "admin.catalog.refreshed"

	// Data events
	EventProposalDeleted  EventType = "data.proposal.deleted"
	EventProposalsCleared EventType = "data.proposals.cleared"
)

// Severity represents the severity level of an audit event.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Source identifies where a request came from.
type Source struct {
	IP        string
	RequestID string
}

// Event represents an audit log entry.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Severity  Severity  `json:"severity"`

	// ActorType is "system" for lifecycle events and "operator" for API calls.
	ActorType string `json:"actor_type,omitempty"`
	SourceIP  string `json:"source_ip,omitempty"`
	RequestID string `json:"request_id,omitempty"`

	ResourceType string `json:"resource_type,omitempty"`
	ResourceID   string `json:"resource_id,omitempty"`

	Action  string `json:"action"`
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Logger writes audit events to a dedicated named logger. A nil *Logger
// discards events.
type Logger struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewLogger creates a new audit logger.
func NewLogger(baseLogger *zap.Logger) *Logger {
	return &Logger{
		logger: baseLogger.Named("audit"),
		now:    time.Now,
	}
}

// Log records an audit event.
func (l *Logger) Log(ctx context.Context, event *Event) {
	if l == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now().UTC()
	}

	level := zap.InfoLevel
	switch event.Severity {
	case SeverityWarning:
		level = zap.WarnLevel
	case SeverityError:
		level = zap.ErrorLevel
	}

	fields := []zap.Field{
		zap.String("audit_id", event.ID),
		zap.Time("audit_timestamp", event.Timestamp),
		zap.String("event_type", string(event.Type)),
		zap.String("severity", string(event.Severity)),
		zap.String("action", event.Action),
		zap.String("outcome", event.Outcome),
	}
	if event.ActorType != "" {
		fields = append(fields, zap.String("actor_type", event.ActorType))
	}
	if event.SourceIP != "" {
		fields = append(fields, zap.String("source_ip", event.SourceIP))
	}
	if event.RequestID != "" {
		fields = append(fields, zap.String("request_id", event.RequestID))
	}
	if event.ResourceType != "" {
		fields = append(fields, zap.String("resource_type", event.ResourceType))
	}
	if event.ResourceID != "" {
		fields = append(fields, zap.String("resource_id", event.ResourceID))
	}
	if event.Reason != "" {
		fields = append(fields, zap.String("reason", event.Reason))
	}
	if len(event.Metadata) > 0 {
		metadataJSON, err := json.Marshal(event.Metadata)
		if err != nil {
			metadataJSON = []byte(`{"error":"failed to marshal metadata"}`)
		}
		fields = append(fields, zap.ByteString("metadata", metadataJSON))
	}

	if ce := l.logger.Check(level, "audit event"); ce != nil {
		ce.Write(fields...)
	}
}

// ServiceStarted logs service startup.
func (l *Logger) ServiceStarted(ctx context.Context, version, environment, storage string) {
	l.Log(ctx, &Event{
		Type:      EventServiceStarted,
		Severity:  SeverityInfo,
		ActorType: "system",
		Action:    "service started",
		Outcome:   "success",
		Metadata: map[string]interface{}{
			"version":     version,
			"environment": environment,
			"storage":     storage,
		},
	})
}

// ServiceStopping logs service shutdown initiation.
func (l *Logger) ServiceStopping(ctx context.Context, reason string) {
	l.Log(ctx, &Event{
		Type:      EventServiceStopping,
		Severity:  SeverityInfo,
		ActorType: "system",
		Action:    "service stopping",
		Outcome:   "success",
		Reason:    reason,
	})
}

// LogLevelChanged logs a runtime log level change.
func (l *Logger) LogLevelChanged(ctx context.Context, src Source, from, to string) {
	l.Log(ctx, &Event{
		Type:         EventLogLevelChanged,
		Severity:     SeverityWarning,
		ActorType:    "operator",
		SourceIP:     src.IP,
		RequestID:    src.RequestID,
		ResourceType: "log_level",
		Action:       "log level changed",
		Outcome:      "success",
		Metadata: map[string]interface{}{
			"old_value": from,
			"new_value": to,
		},
	})
}

// CatalogRefreshed logs a forced catalog reload.
func (l *Logger) CatalogRefreshed(ctx context.Context, src Source, services, plans int) {
	outcome := "success"
	severity := SeverityInfo
	if services == 0 {
		outcome = "empty"
		severity = SeverityWarning
	}
	l.Log(ctx, &Event{
		Type:         EventCatalogRefreshed,
		Severity:     severity,
		ActorType:    "operator",
		SourceIP:     src.IP,
		RequestID:    src.RequestID,
		ResourceType: "catalog",
		Action:       "catalog refreshed",
		Outcome:      outcome,
		Metadata: map[string]interface{}{
			"services": services,
			"plans":    plans,
		},
	})
}

// ProposalDeleted logs the removal of one saved proposal.
func (l *Logger) ProposalDeleted(ctx context.Context, src Source, proposalID uuid.UUID, clientName string, index int) {
	l.Log(ctx, &Event{
		Type:         EventProposalDeleted,
		Severity:     SeverityInfo,
		ActorType:    "operator",
		SourceIP:     src.IP,
		RequestID:    src.RequestID,
		ResourceType: "proposal",
		ResourceID:   proposalID.String(),
		Action:       "proposal deleted",
		Outcome:      "success",
		Metadata: map[string]interface{}{
			"index":       index,
			"client_name": clientName,
		},
	})
}

// ProposalsCleared logs the removal of the whole proposal history.
func (l *Logger) ProposalsCleared(ctx context.Context, src Source, count int) {
	l.Log(ctx, &Event{
		Type:         EventProposalsCleared,
		Severity:     SeverityWarning,
		ActorType:    "operator",
		SourceIP:     src.IP,
		RequestID:    src.RequestID,
		ResourceType: "proposal",
		Action:       "proposal history cleared",
		Outcome:      "success",
		Metadata: map[string]interface{}{
			"count": count,
		},
	})
}
