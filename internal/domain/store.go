package domain

import "context"

// Keys used in the durable state store.
const (
	StateKeyProposals    = "proposals"
	StateKeyPresentation = "hasCompletedPresentation"
)

// StateStore is a durable key-value store of JSON blobs.
type StateStore interface {
	// Get returns the value stored under key. found is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Put replaces the value stored under key.
	Put(ctx context.Context, key string, value []byte) error

	// Update atomically replaces the value under key with fn(current).
	// current is nil when the key is absent. If fn fails nothing is written.
	Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}

// ProposalStore is an ordered, append-only list of saved proposals.
type ProposalStore interface {
	// List returns all proposals in save order.
	List(ctx context.Context) ([]Proposal, error)

	// Append adds p at the end. Either the write completes or nothing changes.
	Append(ctx context.Context, p Proposal) error

	// Delete removes the proposal at index and returns it.
	Delete(ctx context.Context, index int) (*Proposal, error)

	// Clear removes every proposal and returns how many were removed.
	Clear(ctx context.Context) (int, error)
}

// PresentationStore records whether the introductory presentation was shown.
type PresentationStore interface {
	HasCompletedPresentation(ctx context.Context) (bool, error)
	MarkPresentationCompleted(ctx context.Context) error
}
