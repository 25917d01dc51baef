package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jkindrix/zenquote/internal/domain"
	"github.com/jkindrix/zenquote/internal/metrics"
)

// ApologyText is the reply given whenever the AI service fails.
const ApologyText = "Lo siento, hubo un error al contactar con el asistente de IA. Por favor, inténtalo de nuevo más tarde."

// ReplyRecorder receives advisor outcomes. *metrics.Metrics implements it.
type ReplyRecorder interface {
	RecordIntent(intent string)
	RecordReply(kind string)
}

// StageError reports which pipeline stage failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Advisor runs the classify-then-answer pipeline.
type Advisor struct {
	generator TextGenerator
	recorder  ReplyRecorder
	logger    *zap.Logger
}

// NewAdvisor creates an advisor over generator.
func NewAdvisor(generator TextGenerator, logger *zap.Logger) *Advisor {
	return &Advisor{
		generator: generator,
		logger:    logger,
	}
}

// SetRecorder sets the metrics recorder.
func (a *Advisor) SetRecorder(r ReplyRecorder) {
	a.recorder = r
}

// NormalizeIntent maps raw classifier output to an Intent. Anything that is
// not exactly RECOMENDACION after cleanup is treated as free text.
func NormalizeIntent(raw string) domain.Intent {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.NewReplacer("'", "", `"`, "").Replace(s)
	s = strings.TrimSpace(s)

	switch domain.Intent(s) {
	case domain.IntentRecommendation:
		return domain.IntentRecommendation
	case domain.IntentUnknown:
		return domain.IntentUnknown
	default:
		return domain.IntentText
	}
}

// Reply answers the latest user message in history. The returned Reply is
// always displayable: on failure it is the apology with Failed set, and the
// error names the failing stage.
func (a *Advisor) Reply(ctx context.Context, history []domain.ChatMessage, catalog *domain.Catalog) (domain.Reply, error) {
	last, ok := lastUserMessage(history)
	if !ok {
		return a.fail(&StageError{Stage: metrics.StageClassify, Err: ErrNoUserContent})
	}

	raw, err := a.generator.Generate(ctx, GenerateRequest{
		Stage:             metrics.StageClassify,
		SystemInstruction: ClassifierPrompt,
		Contents:          []domain.ChatMessage{last},
	})
	if err != nil {
		return a.fail(&StageError{Stage: metrics.StageClassify, Err: err})
	}

	intent := NormalizeIntent(raw)
	if a.recorder != nil {
		a.recorder.RecordIntent(string(intent))
	}
	a.logger.Debug("intent classified",
		zap.String("raw", raw),
		zap.String("intent", string(intent)),
	)

	req := GenerateRequest{
		Stage:             metrics.StageText,
		SystemInstruction: TextPrompt,
		Contents:          history,
	}
	if intent == domain.IntentRecommendation {
		req.Stage = metrics.StageRecommend
		req.SystemInstruction = RecommendationPrompt(catalog)
		req.ResponseSchema = RecommendationSchema()
	}

	text, err := a.generator.Generate(ctx, req)
	if err != nil {
		return a.fail(&StageError{Stage: req.Stage, Err: err})
	}

	reply := ParseReply(text, catalog)
	reply.Intent = intent
	if a.recorder != nil {
		a.recorder.RecordReply(string(reply.Kind))
	}
	return reply, nil
}

func (a *Advisor) fail(err *StageError) (domain.Reply, error) {
	if a.recorder != nil {
		a.recorder.RecordReply("failed")
	}
	if !errors.Is(err, context.Canceled) {
		a.logger.Warn("advisor pipeline failed",
			zap.String("stage", err.Stage),
			zap.Error(err.Err),
		)
	}
	return domain.Reply{
		Kind:   domain.ReplyText,
		Text:   ApologyText,
		Failed: true,
	}, err
}

func lastUserMessage(history []domain.ChatMessage) (domain.ChatMessage, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == domain.ChatRoleUser && strings.TrimSpace(history[i].Text) != "" {
			return history[i], true
		}
	}
	return domain.ChatMessage{}, false
}
