package metrics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BusinessEventLogger writes structured logs for business events.
// It complements the Prometheus counters with searchable per-event detail.
type BusinessEventLogger struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewBusinessEventLogger creates a new business event logger.
func NewBusinessEventLogger(logger *zap.Logger) *BusinessEventLogger {
	return &BusinessEventLogger{
		logger: logger.Named("business_events"),
		now:    time.Now,
	}
}

// SessionStarted logs a new builder session.
func (l *BusinessEventLogger) SessionStarted(ctx context.Context, sessionID uuid.UUID) {
	l.logger.Info("session_started",
		zap.String("event_type", "session.started"),
		zap.String("session_id", sessionID.String()),
		zap.Time("timestamp", l.now().UTC()),
	)
}

// ProposalSaved logs a saved proposal with its totals.
func (l *BusinessEventLogger) ProposalSaved(ctx context.Context, proposalID uuid.UUID, serviceType string, totalDev, totalClient float64, margin int) {
	l.logger.Info("proposal_saved",
		zap.String("event_type", "proposal.saved"),
		zap.String("proposal_id", proposalID.String()),
		zap.String("service_type", serviceType),
		zap.Float64("total_dev", totalDev),
		zap.Float64("total_client", totalClient),
		zap.Int("margin", margin),
		zap.Time("timestamp", l.now().UTC()),
	)
}

// ProposalDeleted logs a proposal removed by position.
func (l *BusinessEventLogger) ProposalDeleted(ctx context.Context, proposalID uuid.UUID, index int) {
	l.logger.Info("proposal_deleted",
		zap.String("event_type", "proposal.deleted"),
		zap.String("proposal_id", proposalID.String()),
		zap.Int("index", index),
		zap.Time("timestamp", l.now().UTC()),
	)
}

// ProposalsCleared logs a confirmed wipe of the history.
func (l *BusinessEventLogger) ProposalsCleared(ctx context.Context, count int) {
	l.logger.Warn("proposals_cleared",
		zap.String("event_type", "proposal.cleared"),
		zap.Int("count", count),
		zap.Time("timestamp", l.now().UTC()),
	)
}

// AdvisorReplied logs the outcome of one advisor turn.
func (l *BusinessEventLogger) AdvisorReplied(ctx context.Context, sessionID uuid.UUID, intent, kind string, services int, duration time.Duration) {
	l.logger.Info("advisor_replied",
		zap.String("event_type", "advisor.replied"),
		zap.String("session_id", sessionID.String()),
		zap.String("intent", intent),
		zap.String("kind", kind),
		zap.Int("recommended_services", services),
		zap.Duration("duration", duration),
		zap.Time("timestamp", l.now().UTC()),
	)
}

// AdvisorFailed logs an advisor turn that ended with the apology reply.
func (l *BusinessEventLogger) AdvisorFailed(ctx context.Context, sessionID uuid.UUID, stage string, err error) {
	l.logger.Warn("advisor_failed",
		zap.String("event_type", "advisor.failed"),
		zap.String("session_id", sessionID.String()),
		zap.String("stage", stage),
		zap.Error(err),
		zap.Time("timestamp", l.now().UTC()),
	)
}

// CatalogLoaded logs a catalog refresh.
func (l *BusinessEventLogger) CatalogLoaded(ctx context.Context, source string, categories, services, plans, dropped int) {
	l.logger.Info("catalog_loaded",
		zap.String("event_type", "catalog.loaded"),
		zap.String("source", source),
		zap.Int("categories", categories),
		zap.Int("services", services),
		zap.Int("plans", plans),
		zap.Int("dropped_entries", dropped),
		zap.Time("timestamp", l.now().UTC()),
	)
}

// RateLimitExceeded logs when a rate limit is exceeded.
func (l *BusinessEventLogger) RateLimitExceeded(ctx context.Context, limiterType string, identifier string) {
	l.logger.Warn("rate_limit_exceeded",
		zap.String("event_type", "rate_limit.exceeded"),
		zap.String("limiter_type", limiterType),
		zap.String("identifier", maskIdentifier(identifier)),
		zap.Time("timestamp", l.now().UTC()),
	)
}

// maskIdentifier masks an identifier for privacy.
func maskIdentifier(id string) string {
	if len(id) <= 4 {
		return "****"
	}
	return id[:2] + "****" + id[len(id)-2:]
}
