package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jkindrix/zenquote/internal/domain"
	apperrors "github.com/jkindrix/zenquote/internal/errors"
	"github.com/jkindrix/zenquote/internal/metrics"
	"github.com/jkindrix/zenquote/internal/repository"
)

// CatalogProvider returns the current catalog snapshot. It never returns nil.
type CatalogProvider interface {
	Current(ctx context.Context) *domain.Catalog
}

// BuilderService manages builder sessions: selection transitions, pricing and saving.
type BuilderService struct {
	sessions  *repository.SessionCache[*Session]
	catalog   CatalogProvider
	proposals domain.ProposalStore
	logger    *zap.Logger
	metrics   *metrics.Metrics
	events    *metrics.BusinessEventLogger
	now       func() time.Time
	newID     func() string
}

// NewBuilderService creates a new BuilderService.
func NewBuilderService(
	sessions *repository.SessionCache[*Session],
	catalog CatalogProvider,
	proposals domain.ProposalStore,
	logger *zap.Logger,
) *BuilderService {
	return &BuilderService{
		sessions:  sessions,
		catalog:   catalog,
		proposals: proposals,
		logger:    logger,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// SetMetrics sets the metrics collector.
func (s *BuilderService) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// SetEventLogger sets the business event logger.
func (s *BuilderService) SetEventLogger(e *metrics.BusinessEventLogger) {
	s.events = e
}

// CreateSession starts a session with the initial selection and the welcome message.
func (s *BuilderService) CreateSession(ctx context.Context) *SessionState {
	session := newSession(s.now())
	s.sessions.Save(session.ID, session)

	if s.metrics != nil {
		s.metrics.RecordSessionCreated()
	}
	if s.events != nil {
		s.events.SessionStarted(ctx, session.ID)
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	return session.stateLocked()
}

// Session returns the live session for id.
func (s *BuilderService) Session(id uuid.UUID) (*Session, error) {
	session, ok := s.sessions.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// State returns the current selection and quote of a session.
func (s *BuilderService) State(ctx context.Context, id uuid.UUID) (*SessionState, error) {
	session, err := s.Session(id)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	return session.stateLocked(), nil
}

// DeleteSession discards a session.
func (s *BuilderService) DeleteSession(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Session(id); err != nil {
		return err
	}
	s.sessions.Delete(id)
	return nil
}

// Apply runs one selection transition. Rejected actions leave the session unchanged.
func (s *BuilderService) Apply(ctx context.Context, id uuid.UUID, action domain.Action) (*SessionState, error) {
	session, err := s.Session(id)
	if err != nil {
		return nil, err
	}

	reducer := domain.NewReducer(s.catalog.Current(ctx), s.newID)

	session.mu.Lock()
	defer session.mu.Unlock()

	next, err := reducer.Reduce(session.selection, action)
	if s.metrics != nil {
		s.metrics.RecordAction(string(action.Type), err)
	}
	if err != nil {
		s.logger.Debug("action rejected",
			zap.String("session_id", id.String()),
			zap.String("action", string(action.Type)),
			zap.Error(err),
		)
		return nil, toAppError("builder.Apply", err)
	}

	session.selection = next
	return session.stateLocked(), nil
}

// ApplySuggestion adds one recommended service to the selection.
func (s *BuilderService) ApplySuggestion(ctx context.Context, id uuid.UUID, rec domain.RecommendedService) (*SessionState, error) {
	session, err := s.Session(id)
	if err != nil {
		return nil, err
	}

	reducer := domain.NewReducer(s.catalog.Current(ctx), s.newID)

	session.mu.Lock()
	defer session.mu.Unlock()

	next, err := reducer.ApplySuggestion(session.selection, rec)
	if s.metrics != nil {
		s.metrics.RecordAction("apply_suggestion", err)
	}
	if err != nil {
		return nil, toAppError("builder.ApplySuggestion", err)
	}

	session.selection = next
	return session.stateLocked(), nil
}

// Quote prices the session's current selection.
func (s *BuilderService) Quote(ctx context.Context, id uuid.UUID) (domain.Quote, error) {
	state, err := s.State(ctx, id)
	if err != nil {
		return domain.Quote{}, err
	}
	return state.Quote, nil
}

// Save stores the current selection as a proposal and resets the builder.
// If the store rejects the write the selection is kept so the reseller can retry.
func (s *BuilderService) Save(ctx context.Context, id uuid.UUID) (*domain.Proposal, error) {
	session, err := s.Session(id)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	selection := session.selection
	proposal, err := domain.NewProposal(selection, domain.Price(selection), s.now().UTC())
	if err != nil {
		if errors.Is(err, domain.ErrMarginOutOfRange) {
			return nil, apperrors.InvalidMargin(err)
		}
		return nil, toAppError("builder.Save", err)
	}

	if err := s.proposals.Append(ctx, *proposal); err != nil {
		s.logger.Error("failed to save proposal",
			zap.String("session_id", id.String()),
			zap.Error(err),
		)
		return nil, toAppError("builder.Save", err)
	}

	session.selection = selection.Reset()

	if s.metrics != nil {
		s.metrics.RecordProposalSaved(string(proposal.Type))
	}
	if s.events != nil {
		s.events.ProposalSaved(ctx, proposal.ID, string(proposal.Type), proposal.TotalDev, proposal.TotalClient, proposal.Margin)
	}

	s.logger.Info("proposal saved",
		zap.String("session_id", id.String()),
		zap.String("proposal_id", proposal.ID.String()),
		zap.String("client_name", proposal.ClientName),
	)
	return proposal, nil
}
