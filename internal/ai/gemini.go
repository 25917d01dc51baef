// Package ai provides the Zen Assistant advisor on top of the Gemini API.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jkindrix/zenquote/internal/circuitbreaker"
	"github.com/jkindrix/zenquote/internal/config"
	"github.com/jkindrix/zenquote/internal/domain"
	"github.com/jkindrix/zenquote/internal/ratelimit"
)

// Breaker name used in logs and metrics.
const BreakerName = "gemini-api"

// ErrNoUserContent is returned when a request has no user turn to answer.
var ErrNoUserContent = errors.New("gemini request has no user content")

// Schema is the subset of the OpenAPI schema object accepted as responseSchema.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// GenerateRequest is one model call.
type GenerateRequest struct {
	// Stage labels the call for metrics and logs.
	Stage             string
	SystemInstruction string
	Contents          []domain.ChatMessage
	// ResponseSchema, when set, requests a JSON response of that shape.
	ResponseSchema *Schema
}

// TextGenerator produces model text for a request.
type TextGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// CallRecorder receives per-call measurements. *metrics.Metrics implements it.
type CallRecorder interface {
	RecordAICall(stage string, success bool, duration time.Duration)
	RecordAICircuitOpen(stage string)
	SetCircuitBreakerState(service string, state int)
}

// APIError is a non-2xx response from the Gemini API.
type APIError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini api error: status %d: %s", e.StatusCode, e.Message)
}

// HTTPStatus returns the response status code.
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

// RetryDelay returns the delay requested by a Retry-After header.
func (e *APIError) RetryDelay() time.Duration {
	return e.RetryAfter
}

// GeminiClient calls the generateContent endpoint of the Gemini API.
type GeminiClient struct {
	apiKey         string
	model          string
	baseURL        string
	timeout        time.Duration
	httpClient     *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	backoff        *ratelimit.Backoff
	recorder       CallRecorder
	logger         *zap.Logger
}

// NewGeminiClient creates a new Gemini client.
func NewGeminiClient(cfg *config.GeminiConfig, logger *zap.Logger) *GeminiClient {
	c := &GeminiClient{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    cfg.Timeout,
		httpClient: &http.Client{},
		logger:     logger,
	}

	cbConfig := circuitbreaker.DefaultConfig()
	cbConfig.OnStateChange = func(name string, _, to circuitbreaker.State) {
		if c.recorder != nil {
			c.recorder.SetCircuitBreakerState(name, breakerGaugeValue(to))
		}
	}
	c.circuitBreaker = circuitbreaker.New(BreakerName, cbConfig, logger)

	backoffConfig := ratelimit.DefaultBackoffConfig()
	backoffConfig.MaxRetries = cfg.MaxRetries
	c.backoff = ratelimit.NewBackoff(backoffConfig, logger.Named("gemini-retry"))

	return c
}

// SetRecorder sets the metrics recorder.
func (c *GeminiClient) SetRecorder(r CallRecorder) {
	c.recorder = r
	if r != nil {
		r.SetCircuitBreakerState(BreakerName, breakerGaugeValue(c.circuitBreaker.State()))
	}
}

// SetHTTPClient replaces the HTTP client, typically for tests.
func (c *GeminiClient) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// CircuitBreakerStats returns the current circuit breaker statistics.
func (c *GeminiClient) CircuitBreakerStats() circuitbreaker.Stats {
	return c.circuitBreaker.Stats()
}

// IsCircuitOpen returns true if the circuit breaker is open.
func (c *GeminiClient) IsCircuitOpen() bool {
	return c.circuitBreaker.IsOpen()
}

// Generate sends req and returns the concatenated text of the first candidate.
// Rate limited, unavailable and network failures are retried within the
// timeout; the circuit breaker counts the call once, after the retries.
func (c *GeminiClient) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	body, err := c.buildRequest(req)
	if err != nil {
		return "", err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	var text string
	err = c.circuitBreaker.Execute(ctx, func(ctx context.Context) error {
		return c.backoff.Execute(ctx, func(ctx context.Context) error {
			var callErr error
			text, callErr = c.doGenerate(ctx, body)
			return callErr
		})
	})
	duration := time.Since(start)

	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		if c.recorder != nil {
			c.recorder.RecordAICircuitOpen(req.Stage)
		}
		return "", err
	}
	if c.recorder != nil {
		c.recorder.RecordAICall(req.Stage, err == nil, duration)
	}
	if err != nil {
		c.logger.Warn("gemini call failed",
			zap.String("stage", req.Stage),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return "", err
	}

	c.logger.Debug("gemini call completed",
		zap.String("stage", req.Stage),
		zap.Duration("duration", duration),
		zap.Int("response_length", len(text)),
	)
	return text, nil
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  *geminiConfig   `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiConfig struct {
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
	ResponseSchema   *Schema `json:"responseSchema,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// buildRequest maps the conversation to Gemini contents. The conversation must
// open with a user turn, so leading model turns such as the greeting are dropped.
func (c *GeminiClient) buildRequest(req GenerateRequest) ([]byte, error) {
	contents := make([]geminiContent, 0, len(req.Contents))
	for _, msg := range req.Contents {
		text := strings.TrimSpace(msg.Text)
		if text == "" {
			continue
		}
		role := string(domain.ChatRoleUser)
		if msg.Role == domain.ChatRoleModel {
			role = string(domain.ChatRoleModel)
		}
		if len(contents) == 0 && role != string(domain.ChatRoleUser) {
			continue
		}
		contents = append(contents, geminiContent{Role: role, Parts: []geminiPart{{Text: msg.Text}}})
	}
	if len(contents) == 0 {
		return nil, ErrNoUserContent
	}

	payload := geminiRequest{Contents: contents}
	if req.SystemInstruction != "" {
		payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.SystemInstruction}}}
	}
	if req.ResponseSchema != nil {
		payload.GenerationConfig = &geminiConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   req.ResponseSchema,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return body, nil
}

func (c *GeminiClient) doGenerate(ctx context.Context, body []byte) (string, error) {
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(respBody)),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
		var parsed geminiResponse
		if err := json.Unmarshal(respBody, &parsed); err == nil && parsed.Error != nil {
			apiErr.Message = parsed.Error.Message
		}
		return "", apiErr
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(parsed.Candidates) == 0 {
		return "", errors.New("gemini response missing candidates")
	}

	parts := parsed.Candidates[0].Content.Parts
	if len(parts) == 0 {
		return "", errors.New("gemini response missing content")
	}

	var sb strings.Builder
	for _, p := range parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

// parseRetryAfter reads the delay-seconds form of Retry-After.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func breakerGaugeValue(s circuitbreaker.State) int {
	switch s {
	case circuitbreaker.StateHalfOpen:
		return 1
	case circuitbreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
