// Package service contains business logic implementations.
package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/jkindrix/zenquote/internal/domain"
)

// Session is one reseller's in-progress proposal and advisor conversation.
type Session struct {
	ID        uuid.UUID
	CreatedAt time.Time

	mu        sync.Mutex
	selection domain.Selection
	history   []domain.ChatMessage

	// chat admits one advisor request at a time.
	chat *semaphore.Weighted
}

func newSession(now time.Time) *Session {
	return &Session{
		ID:        uuid.New(),
		CreatedAt: now,
		selection: domain.NewSelection(),
		history: []domain.ChatMessage{
			{Role: domain.ChatRoleModel, Text: domain.WelcomeMessage, CreatedAt: now},
		},
		chat: semaphore.NewWeighted(1),
	}
}

// SessionState is a consistent view of a session's selection and its price.
type SessionState struct {
	ID        uuid.UUID        `json:"id"`
	CreatedAt time.Time        `json:"createdAt"`
	Selection domain.Selection `json:"selection"`
	Quote     domain.Quote     `json:"quote"`
}

// stateLocked must be called with mu held.
func (s *Session) stateLocked() *SessionState {
	return &SessionState{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		Selection: s.selection,
		Quote:     domain.Price(s.selection),
	}
}

// History returns a copy of the conversation so far.
func (s *Session) History() []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.historyLocked()
}

func (s *Session) historyLocked() []domain.ChatMessage {
	out := make([]domain.ChatMessage, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Session) appendMessage(msg domain.ChatMessage) []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, msg)
	return s.historyLocked()
}
