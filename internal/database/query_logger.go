package database

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// QueryLoggerConfig configures query logging behavior.
type QueryLoggerConfig struct {
	// Queries at or above SlowQueryThreshold log at WARN.
	SlowQueryThreshold time.Duration
	// Queries at or above VerySlowQueryThreshold log at ERROR.
	VerySlowQueryThreshold time.Duration
	// LogAllQueries logs sampled fast queries at DEBUG.
	LogAllQueries bool
	// SampleRate is the fraction of fast queries logged when LogAllQueries is set.
	SampleRate float64
}

// DefaultQueryLoggerConfig returns the default thresholds.
func DefaultQueryLoggerConfig() *QueryLoggerConfig {
	return &QueryLoggerConfig{
		SlowQueryThreshold:     100 * time.Millisecond,
		VerySlowQueryThreshold: 500 * time.Millisecond,
		LogAllQueries:          false,
		SampleRate:             0.1,
	}
}

// QueryStats tracks query statistics.
type QueryStats struct {
	total    atomic.Int64
	slow     atomic.Int64
	verySlow atomic.Int64
	failed   atomic.Int64

	mu              sync.RWMutex
	totalDuration   time.Duration
	slowestQuery    string
	slowestDuration time.Duration
}

// QueryStatsSnapshot is a point-in-time copy of QueryStats.
type QueryStatsSnapshot struct {
	Total           int64
	Slow            int64
	VerySlow        int64
	Failed          int64
	AvgDuration     time.Duration
	SlowestQuery    string
	SlowestDuration time.Duration
}

// Snapshot returns a copy of the current stats.
func (qs *QueryStats) Snapshot() QueryStatsSnapshot {
	s := QueryStatsSnapshot{
		Total:    qs.total.Load(),
		Slow:     qs.slow.Load(),
		VerySlow: qs.verySlow.Load(),
		Failed:   qs.failed.Load(),
	}

	qs.mu.RLock()
	defer qs.mu.RUnlock()
	if s.Total > 0 {
		s.AvgDuration = qs.totalDuration / time.Duration(s.Total)
	}
	s.SlowestQuery = qs.slowestQuery
	s.SlowestDuration = qs.slowestDuration
	return s
}

func (qs *QueryStats) observe(sql string, duration time.Duration) {
	qs.total.Add(1)

	qs.mu.Lock()
	defer qs.mu.Unlock()
	qs.totalDuration += duration
	if duration > qs.slowestDuration {
		qs.slowestDuration = duration
		qs.slowestQuery = truncateSQL(sql, 200)
	}
}

func (qs *QueryStats) reset() {
	qs.total.Store(0)
	qs.slow.Store(0)
	qs.verySlow.Store(0)
	qs.failed.Store(0)

	qs.mu.Lock()
	defer qs.mu.Unlock()
	qs.totalDuration = 0
	qs.slowestQuery = ""
	qs.slowestDuration = 0
}

// QueryLogger is a pgx.QueryTracer that logs failed and slow queries.
type QueryLogger struct {
	config *QueryLoggerConfig
	logger *zap.Logger
	stats  *QueryStats
	sample atomic.Uint64
	now    func() time.Time
}

var _ pgx.QueryTracer = (*QueryLogger)(nil)

// NewQueryLogger creates a new query logger.
func NewQueryLogger(cfg *QueryLoggerConfig, logger *zap.Logger) *QueryLogger {
	if cfg == nil {
		cfg = DefaultQueryLoggerConfig()
	}
	return &QueryLogger{
		config: cfg,
		logger: logger.Named("query"),
		stats:  &QueryStats{},
		now:    time.Now,
	}
}

// Stats returns the query statistics.
func (ql *QueryLogger) Stats() *QueryStats {
	return ql.stats
}

type queryTraceData struct {
	startTime time.Time
	sql       string
}

type ctxKey struct{}

// TraceQueryStart implements pgx.QueryTracer.
func (ql *QueryLogger) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, ctxKey{}, &queryTraceData{
		startTime: ql.now(),
		sql:       data.SQL,
	})
}

// TraceQueryEnd implements pgx.QueryTracer.
func (ql *QueryLogger) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	trace, ok := ctx.Value(ctxKey{}).(*queryTraceData)
	if !ok {
		return
	}

	duration := ql.now().Sub(trace.startTime)
	ql.stats.observe(trace.sql, duration)

	if data.Err != nil {
		ql.stats.failed.Add(1)
		ql.logger.Error("query failed",
			zap.String("sql", truncateSQL(trace.sql, 500)),
			zap.Duration("duration", duration),
			zap.Error(data.Err),
		)
		return
	}

	switch {
	case duration >= ql.config.VerySlowQueryThreshold:
		ql.stats.verySlow.Add(1)
		ql.stats.slow.Add(1)
		ql.logger.Error("very slow query detected",
			zap.String("sql", truncateSQL(trace.sql, 500)),
			zap.Duration("duration", duration),
			zap.Duration("threshold", ql.config.VerySlowQueryThreshold),
			zap.String("command_tag", data.CommandTag.String()),
		)
	case duration >= ql.config.SlowQueryThreshold:
		ql.stats.slow.Add(1)
		ql.logger.Warn("slow query detected",
			zap.String("sql", truncateSQL(trace.sql, 500)),
			zap.Duration("duration", duration),
			zap.Duration("threshold", ql.config.SlowQueryThreshold),
			zap.String("command_tag", data.CommandTag.String()),
		)
	case ql.config.LogAllQueries && ql.shouldSample():
		ql.logger.Debug("query executed",
			zap.String("sql", truncateSQL(trace.sql, 200)),
			zap.Duration("duration", duration),
			zap.String("command_tag", data.CommandTag.String()),
		)
	}
}

func (ql *QueryLogger) shouldSample() bool {
	if ql.config.SampleRate >= 1.0 {
		return true
	}
	if ql.config.SampleRate <= 0 {
		return false
	}
	count := ql.sample.Add(1)
	every := uint64(1.0 / ql.config.SampleRate)
	return count%every == 0
}

func truncateSQL(sql string, maxLen int) string {
	if len(sql) <= maxLen {
		return sql
	}
	return sql[:maxLen-3] + "..."
}

// LogStats logs current query statistics.
func (ql *QueryLogger) LogStats() {
	s := ql.stats.Snapshot()
	ql.logger.Info("query statistics",
		zap.Int64("total_queries", s.Total),
		zap.Int64("slow_queries", s.Slow),
		zap.Int64("very_slow_queries", s.VerySlow),
		zap.Int64("failed_queries", s.Failed),
		zap.Duration("avg_duration", s.AvgDuration),
		zap.String("slowest_query", s.SlowestQuery),
		zap.Duration("slowest_duration", s.SlowestDuration),
	)
}

// ResetStats resets the query statistics.
func (ql *QueryLogger) ResetStats() {
	ql.stats.reset()
}
