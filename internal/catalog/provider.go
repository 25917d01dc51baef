package catalog

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/jkindrix/zenquote/internal/domain"
	apperrors "github.com/jkindrix/zenquote/internal/errors"
)

const (
	snapshotKey = "catalog"

	// DefaultTTL applies when a non-positive ttl is given.
	DefaultTTL = 5 * time.Minute

	// failureTTL is how long an empty fallback is served before retrying the source.
	failureTTL = 30 * time.Second
)

// LoadRecorder receives catalog load outcomes. *metrics.Metrics implements it.
type LoadRecorder interface {
	RecordCatalogLoad(success bool, services int)
}

// EventLogger receives catalog business events. *metrics.BusinessEventLogger implements it.
type EventLogger interface {
	CatalogLoaded(ctx context.Context, source string, categories, services, plans, dropped int)
}

// Provider serves the current catalog snapshot. Concurrent loads are
// collapsed into one fetch, and any failure degrades to an empty catalog.
type Provider struct {
	source     Source
	ttl        time.Duration
	failureTTL time.Duration
	cache      *cache.Cache
	group      singleflight.Group
	recorder   LoadRecorder
	events     EventLogger
	logger     *zap.Logger
}

// NewProvider creates a provider that caches snapshots for ttl. Every
// snapshot expires: a non-positive ttl falls back to DefaultTTL.
func NewProvider(source Source, ttl time.Duration, logger *zap.Logger) *Provider {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Provider{
		source:     source,
		ttl:        ttl,
		failureTTL: failureTTL,
		cache:      cache.New(ttl, 2*ttl),
		logger:     logger.Named("catalog"),
	}
}

// SetRecorder sets the metrics recorder.
func (p *Provider) SetRecorder(r LoadRecorder) {
	p.recorder = r
}

// SetEventLogger sets the business event logger.
func (p *Provider) SetEventLogger(e EventLogger) {
	p.events = e
}

// Current returns the cached snapshot, loading it when absent or expired.
// It never returns nil.
func (p *Provider) Current(ctx context.Context) *domain.Catalog {
	if x, found := p.cache.Get(snapshotKey); found {
		return x.(*domain.Catalog)
	}
	return p.load(ctx)
}

// Refresh drops the cached snapshot and loads a new one.
func (p *Provider) Refresh(ctx context.Context) *domain.Catalog {
	p.cache.Delete(snapshotKey)
	return p.load(ctx)
}

func (p *Provider) load(ctx context.Context) *domain.Catalog {
	// The shared fetch must not be cancelled by the first caller going away.
	loadCtx := context.WithoutCancel(ctx)

	v, _, _ := p.group.Do(snapshotKey, func() (interface{}, error) {
		if x, found := p.cache.Get(snapshotKey); found {
			return x, nil
		}

		cat, err := p.fetch(loadCtx)
		if err != nil {
			p.logger.Warn("catalog unavailable, serving empty catalog",
				zap.String("code", string(apperrors.CodeCatalogUnavailable)),
				zap.String("source", p.source.String()),
				zap.Error(err),
			)
			if p.recorder != nil {
				p.recorder.RecordCatalogLoad(false, 0)
			}
			cat = domain.EmptyCatalog()
			p.cache.Set(snapshotKey, cat, minDuration(p.ttl, p.failureTTL))
			return cat, nil
		}

		p.cache.Set(snapshotKey, cat, cache.DefaultExpiration)
		return cat, nil
	})
	return v.(*domain.Catalog)
}

func (p *Provider) fetch(ctx context.Context) (*domain.Catalog, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	raw, err := p.source.Fetch(ctx)
	if err != nil {
		return nil, apperrors.CatalogUnavailable(err)
	}

	cat, dropped, err := Parse(raw)
	if err != nil {
		return nil, apperrors.CatalogUnavailable(err)
	}

	for _, d := range dropped {
		p.logger.Warn("dropped malformed catalog entry",
			zap.String("path", d.Path),
			zap.String("reason", d.Reason),
		)
	}

	services := cat.ServiceCount()
	if p.recorder != nil {
		p.recorder.RecordCatalogLoad(true, services)
	}
	if p.events != nil {
		p.events.CatalogLoaded(ctx, p.source.String(), len(cat.Categories), services, len(cat.Plans), len(dropped))
	}
	return cat, nil
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
