package service

import (
	"context"
	"sync"

	"github.com/jkindrix/zenquote/internal/domain"
)

// MockProposalStore is a mock implementation of domain.ProposalStore for testing.
type MockProposalStore struct {
	mu        sync.RWMutex
	proposals []domain.Proposal

	// For tracking method calls
	ListCalls   int
	AppendCalls int
	DeleteCalls int
	ClearCalls  int

	// For injecting errors
	ListError   error
	AppendError error
	DeleteError error
	ClearError  error
}

func NewMockProposalStore() *MockProposalStore {
	return &MockProposalStore{proposals: []domain.Proposal{}}
}

func (m *MockProposalStore) List(ctx context.Context) ([]domain.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListCalls++
	if m.ListError != nil {
		return nil, m.ListError
	}
	out := make([]domain.Proposal, len(m.proposals))
	copy(out, m.proposals)
	return out, nil
}

func (m *MockProposalStore) Append(ctx context.Context, p domain.Proposal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AppendCalls++
	if m.AppendError != nil {
		return m.AppendError
	}
	m.proposals = append(m.proposals, p)
	return nil
}

func (m *MockProposalStore) Delete(ctx context.Context, index int) (*domain.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeleteCalls++
	if m.DeleteError != nil {
		return nil, m.DeleteError
	}
	if index < 0 || index >= len(m.proposals) {
		return nil, domain.ErrProposalNotFound
	}
	removed := m.proposals[index]
	m.proposals = append(m.proposals[:index:index], m.proposals[index+1:]...)
	return &removed, nil
}

func (m *MockProposalStore) Clear(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ClearCalls++
	if m.ClearError != nil {
		return 0, m.ClearError
	}
	cleared := len(m.proposals)
	m.proposals = []domain.Proposal{}
	return cleared, nil
}

// MockPresentationStore is a mock implementation of domain.PresentationStore for testing.
type MockPresentationStore struct {
	mu        sync.RWMutex
	completed bool

	MarkCalls int

	HasError  error
	MarkError error
}

func (m *MockPresentationStore) HasCompletedPresentation(ctx context.Context) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.HasError != nil {
		return false, m.HasError
	}
	return m.completed, nil
}

func (m *MockPresentationStore) MarkPresentationCompleted(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MarkCalls++
	if m.MarkError != nil {
		return m.MarkError
	}
	m.completed = true
	return nil
}

// MockAdvisor is a mock implementation of Advisor for testing.
type MockAdvisor struct {
	mu sync.Mutex

	Response domain.Reply
	Error    error

	// Block, when set, holds every call until it is closed.
	Block   chan struct{}
	Started chan struct{}

	Calls     int
	Histories [][]domain.ChatMessage
}

func (m *MockAdvisor) Reply(ctx context.Context, history []domain.ChatMessage, catalog *domain.Catalog) (domain.Reply, error) {
	m.mu.Lock()
	m.Calls++
	m.Histories = append(m.Histories, history)
	block, started := m.Block, m.Started
	m.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		<-block
	}
	return m.Response, m.Error
}

// staticCatalog always returns the same snapshot.
type staticCatalog struct {
	catalog *domain.Catalog
}

func (c staticCatalog) Current(context.Context) *domain.Catalog {
	return c.catalog
}

func testCatalog() *domain.Catalog {
	return &domain.Catalog{
		Categories: map[string]domain.ServiceCategory{
			"packages": {
				Name:        "Paquetes",
				IsExclusive: true,
				Items: []domain.Service{
					{ID: "pkg-basic", Name: "Web Básica", Price: 200},
				},
			},
			"design": {
				Name: "Diseño",
				Items: []domain.Service{
					{ID: "logo", Name: "Logo", Price: 50, PointCost: 2},
					{ID: "seo", Name: "SEO", Price: 80, PointCost: 3},
					{ID: "copy", Name: "Copywriting", Price: 30, PointCost: 1},
				},
			},
		},
		Plans: []domain.MonthlyPlan{
			{ID: "plan-start", Name: "Plan Inicial", Price: 150, Points: 4},
		},
	}
}
