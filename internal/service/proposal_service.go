package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/jkindrix/zenquote/internal/domain"
	apperrors "github.com/jkindrix/zenquote/internal/errors"
	"github.com/jkindrix/zenquote/internal/metrics"
)

// ProposalService exposes the saved proposal history.
type ProposalService struct {
	proposals domain.ProposalStore
	logger    *zap.Logger
	metrics   *metrics.Metrics
	events    *metrics.BusinessEventLogger
}

// NewProposalService creates a new ProposalService.
func NewProposalService(proposals domain.ProposalStore, logger *zap.Logger) *ProposalService {
	return &ProposalService{
		proposals: proposals,
		logger:    logger,
	}
}

// SetMetrics sets the metrics collector.
func (s *ProposalService) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// SetEventLogger sets the business event logger.
func (s *ProposalService) SetEventLogger(e *metrics.BusinessEventLogger) {
	s.events = e
}

// List returns every saved proposal in save order.
func (s *ProposalService) List(ctx context.Context) ([]domain.Proposal, error) {
	proposals, err := s.proposals.List(ctx)
	if err != nil {
		return nil, toAppError("proposals.List", err)
	}
	return proposals, nil
}

// Totals aggregates production cost, client price and profit over all proposals.
func (s *ProposalService) Totals(ctx context.Context) (domain.Totals, error) {
	proposals, err := s.List(ctx)
	if err != nil {
		return domain.Totals{}, err
	}
	return domain.Aggregate(proposals), nil
}

// Delete removes the proposal at index.
func (s *ProposalService) Delete(ctx context.Context, index int) (*domain.Proposal, error) {
	removed, err := s.proposals.Delete(ctx, index)
	if err != nil {
		return nil, toAppError("proposals.Delete", err)
	}

	if s.metrics != nil {
		s.metrics.RecordProposalDeleted()
	}
	if s.events != nil {
		s.events.ProposalDeleted(ctx, removed.ID, index)
	}
	return removed, nil
}

// Clear removes every proposal. It refuses to run unless confirmed.
func (s *ProposalService) Clear(ctx context.Context, confirmed bool) (int, error) {
	if !confirmed {
		return 0, apperrors.ErrConfirmationRequired
	}

	cleared, err := s.proposals.Clear(ctx)
	if err != nil {
		return 0, toAppError("proposals.Clear", err)
	}

	if s.metrics != nil {
		s.metrics.RecordProposalsCleared()
	}
	if s.events != nil {
		s.events.ProposalsCleared(ctx, cleared)
	}
	return cleared, nil
}

// Edit is not offered; proposals are deleted and recreated instead.
func (s *ProposalService) Edit(ctx context.Context, index int) error {
	return apperrors.Wrap(domain.ErrEditNotSupported, "proposals.Edit", apperrors.CodeNotImplemented, domain.EditGuidance)
}
