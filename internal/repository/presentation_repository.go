package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jkindrix/zenquote/internal/domain"
)

// PresentationRepository stores the presentation flag under
// domain.StateKeyPresentation.
type PresentationRepository struct {
	store domain.StateStore
}

var _ domain.PresentationStore = (*PresentationRepository)(nil)

// NewPresentationRepository creates a presentation repository over store.
func NewPresentationRepository(store domain.StateStore) *PresentationRepository {
	return &PresentationRepository{store: store}
}

// HasCompletedPresentation reports whether the flag was set. An absent key is false.
func (r *PresentationRepository) HasCompletedPresentation(ctx context.Context) (bool, error) {
	raw, found, err := r.store.Get(ctx, domain.StateKeyPresentation)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	var done bool
	if err := json.Unmarshal(raw, &done); err != nil {
		return false, fmt.Errorf("stored presentation flag is corrupt: %w", err)
	}
	return done, nil
}

// MarkPresentationCompleted sets the flag. It is idempotent.
func (r *PresentationRepository) MarkPresentationCompleted(ctx context.Context) error {
	return r.store.Put(ctx, domain.StateKeyPresentation, []byte("true"))
}
