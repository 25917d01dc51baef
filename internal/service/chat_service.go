package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jkindrix/zenquote/internal/ai"
	"github.com/jkindrix/zenquote/internal/domain"
	apperrors "github.com/jkindrix/zenquote/internal/errors"
	"github.com/jkindrix/zenquote/internal/metrics"
)

// maxChatMessageLength bounds a single reseller message.
const maxChatMessageLength = 4000

// Advisor answers the latest user message of a conversation.
type Advisor interface {
	Reply(ctx context.Context, history []domain.ChatMessage, catalog *domain.Catalog) (domain.Reply, error)
}

// CallLimiter bounds advisor calls across all sessions.
// *ratelimit.AdvisorLimiter implements it.
type CallLimiter interface {
	Acquire() (release func(), err error)
}

// ChatTurn is the result of one submitted message.
type ChatTurn struct {
	UserMessage  domain.ChatMessage `json:"userMessage"`
	ModelMessage domain.ChatMessage `json:"modelMessage"`
	Reply        domain.Reply       `json:"reply"`
}

// ChatService runs advisor conversations for builder sessions.
type ChatService struct {
	builder *BuilderService
	advisor Advisor
	catalog CatalogProvider
	limiter CallLimiter
	logger  *zap.Logger
	metrics *metrics.Metrics
	events  *metrics.BusinessEventLogger
	now     func() time.Time
}

// NewChatService creates a new ChatService.
func NewChatService(builder *BuilderService, advisor Advisor, catalog CatalogProvider, logger *zap.Logger) *ChatService {
	return &ChatService{
		builder: builder,
		advisor: advisor,
		catalog: catalog,
		logger:  logger,
		now:     time.Now,
	}
}

// SetMetrics sets the metrics collector.
func (s *ChatService) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// SetLimiter sets the advisor call budget. Without one calls are unbounded.
func (s *ChatService) SetLimiter(l CallLimiter) {
	s.limiter = l
}

// SetEventLogger sets the business event logger.
func (s *ChatService) SetEventLogger(e *metrics.BusinessEventLogger) {
	s.events = e
}

// History returns the conversation of a session, starting with the welcome message.
func (s *ChatService) History(ctx context.Context, id uuid.UUID) ([]domain.ChatMessage, error) {
	session, err := s.builder.Session(id)
	if err != nil {
		return nil, err
	}
	return session.History(), nil
}

// Submit appends text to the conversation and asks the advisor for a reply.
// Only one submission per session runs at a time; a concurrent one fails
// with CHAT_IN_FLIGHT. The user message stays in the history even when the
// advisor fails, in which case the reply is the apology text. A message over
// the advisor budget fails with RATE_LIMITED and is not recorded.
func (s *ChatService) Submit(ctx context.Context, id uuid.UUID, text string) (*ChatTurn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.ValidationFailed("message text is required")
	}
	if len(text) > maxChatMessageLength {
		return nil, apperrors.ValidationFailed("message text is too long")
	}

	session, err := s.builder.Session(id)
	if err != nil {
		return nil, err
	}

	if !session.chat.TryAcquire(1) {
		if s.metrics != nil {
			s.metrics.RecordChatRejected()
		}
		return nil, apperrors.ErrChatInFlight
	}
	defer session.chat.Release(1)

	if s.limiter != nil {
		release, err := s.limiter.Acquire()
		if err != nil {
			if s.metrics != nil {
				s.metrics.RecordRateLimitHit("advisor")
			}
			if s.events != nil {
				s.events.RateLimitExceeded(ctx, "advisor", id.String())
			}
			return nil, apperrors.Wrap(err, "ChatService.Submit", apperrors.CodeRateLimited, "advisor is busy, try again shortly")
		}
		defer release()
	}

	userMsg := domain.ChatMessage{Role: domain.ChatRoleUser, Text: text, CreatedAt: s.now()}
	history := session.appendMessage(userMsg)

	start := s.now()
	reply, err := s.advisor.Reply(ctx, history, s.catalog.Current(ctx))
	duration := s.now().Sub(start)

	if err != nil {
		stage := "unknown"
		var stageErr *ai.StageError
		if errors.As(err, &stageErr) {
			stage = stageErr.Stage
		}
		if s.events != nil {
			s.events.AdvisorFailed(ctx, id, stage, err)
		}
	} else if s.events != nil {
		services := 0
		if reply.Recommendation != nil {
			services = len(reply.Recommendation.Services)
		}
		s.events.AdvisorReplied(ctx, id, string(reply.Intent), string(reply.Kind), services, duration)
	}

	modelMsg := domain.ChatMessage{
		Role:      domain.ChatRoleModel,
		Text:      reply.Text,
		CreatedAt: s.now(),
		Reply:     &reply,
	}
	session.appendMessage(modelMsg)

	return &ChatTurn{
		UserMessage:  userMsg,
		ModelMessage: modelMsg,
		Reply:        reply,
	}, nil
}
