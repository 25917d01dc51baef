package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jkindrix/zenquote/internal/domain"
)

// ProposalRepository implements domain.ProposalStore as one JSON array
// stored under domain.StateKeyProposals.
type ProposalRepository struct {
	store domain.StateStore
}

var _ domain.ProposalStore = (*ProposalRepository)(nil)

// NewProposalRepository creates a proposal repository over store.
func NewProposalRepository(store domain.StateStore) *ProposalRepository {
	return &ProposalRepository{store: store}
}

// List returns all proposals in save order.
func (r *ProposalRepository) List(ctx context.Context) ([]domain.Proposal, error) {
	raw, _, err := r.store.Get(ctx, domain.StateKeyProposals)
	if err != nil {
		return nil, err
	}
	return decodeProposals(raw)
}

// Append adds p at the end of the list.
func (r *ProposalRepository) Append(ctx context.Context, p domain.Proposal) error {
	return r.store.Update(ctx, domain.StateKeyProposals, func(current []byte) ([]byte, error) {
		proposals, err := decodeProposals(current)
		if err != nil {
			return nil, err
		}
		return encodeProposals(append(proposals, p))
	})
}

// Delete removes the proposal at index. Later proposals shift down by one.
func (r *ProposalRepository) Delete(ctx context.Context, index int) (*domain.Proposal, error) {
	var removed *domain.Proposal
	err := r.store.Update(ctx, domain.StateKeyProposals, func(current []byte) ([]byte, error) {
		proposals, err := decodeProposals(current)
		if err != nil {
			return nil, err
		}
		if index < 0 || index >= len(proposals) {
			return nil, domain.ErrProposalNotFound
		}

		p := proposals[index]
		removed = &p
		proposals = append(proposals[:index], proposals[index+1:]...)
		return encodeProposals(proposals)
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// Clear removes every proposal and returns how many were removed. The count
// and the write happen in one update. A corrupt list is cleared and counts as zero.
func (r *ProposalRepository) Clear(ctx context.Context) (int, error) {
	var cleared int
	err := r.store.Update(ctx, domain.StateKeyProposals, func(current []byte) ([]byte, error) {
		if proposals, err := decodeProposals(current); err == nil {
			cleared = len(proposals)
		}
		return []byte("[]"), nil
	})
	if err != nil {
		return 0, err
	}
	return cleared, nil
}

func decodeProposals(raw []byte) ([]domain.Proposal, error) {
	proposals := []domain.Proposal{}
	if len(raw) == 0 {
		return proposals, nil
	}
	if err := json.Unmarshal(raw, &proposals); err != nil {
		return nil, fmt.Errorf("stored proposals are corrupt: %w", err)
	}
	if proposals == nil {
		proposals = []domain.Proposal{}
	}
	return proposals, nil
}

func encodeProposals(proposals []domain.Proposal) ([]byte, error) {
	raw, err := json.Marshal(proposals)
	if err != nil {
		return nil, fmt.Errorf("failed to encode proposals: %w", err)
	}
	return raw, nil
}
