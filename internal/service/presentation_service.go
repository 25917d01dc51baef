package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/jkindrix/zenquote/internal/domain"
)

// PresentationService tracks whether the introductory presentation was completed.
type PresentationService struct {
	store  domain.PresentationStore
	logger *zap.Logger
}

// NewPresentationService creates a new PresentationService.
func NewPresentationService(store domain.PresentationStore, logger *zap.Logger) *PresentationService {
	return &PresentationService{store: store, logger: logger}
}

// Completed reports whether the presentation was already shown.
func (s *PresentationService) Completed(ctx context.Context) (bool, error) {
	done, err := s.store.HasCompletedPresentation(ctx)
	if err != nil {
		return false, toAppError("presentation.Completed", err)
	}
	return done, nil
}

// MarkCompleted records that the presentation was shown. Repeated calls are harmless.
func (s *PresentationService) MarkCompleted(ctx context.Context) error {
	if err := s.store.MarkPresentationCompleted(ctx); err != nil {
		return toAppError("presentation.MarkCompleted", err)
	}
	s.logger.Info("presentation completed")
	return nil
}
