package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/jkindrix/zenquote/internal/domain"
	apperrors "github.com/jkindrix/zenquote/internal/errors"
)

// mockHealthChecker implements HealthChecker for testing
type mockHealthChecker struct {
	pingErr error
}

func (m *mockHealthChecker) Ping(ctx context.Context) error {
	return m.pingErr
}

// mockAIHealthChecker implements AIHealthChecker for testing
type mockAIHealthChecker struct {
	circuitOpen bool
}

func (m *mockAIHealthChecker) IsCircuitOpen() bool {
	return m.circuitOpen
}

type mockReadiness struct {
	ready bool
}

func (m *mockReadiness) IsReady() bool {
	return m.ready
}

// fakeCatalog serves a fixed snapshot and counts refreshes.
type fakeCatalog struct {
	catalog   *domain.Catalog
	refreshes int
}

func (f *fakeCatalog) Current(context.Context) *domain.Catalog {
	return f.catalog
}

func (f *fakeCatalog) Refresh(context.Context) *domain.Catalog {
	f.refreshes++
	return f.catalog
}

func TestHealthHandler_HandleLiveness(t *testing.T) {
	h := NewHealthHandler(HealthHandlerConfig{Logger: zap.NewNop()})

	req := httptest.NewRequest(http.MethodGet, "/live", http.NoBody)
	rr := httptest.NewRecorder()

	h.HandleLiveness(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if rr.Body.String() != "alive" {
		t.Errorf("expected body 'alive', got %q", rr.Body.String())
	}
}

func TestHealthHandler_HandleReadiness(t *testing.T) {
	tests := []struct {
		name       string
		cfg        HealthHandlerConfig
		wantStatus int
	}{
		{
			name:       "no checkers",
			cfg:        HealthHandlerConfig{},
			wantStatus: http.StatusOK,
		},
		{
			name:       "healthy store",
			cfg:        HealthHandlerConfig{HealthChecker: &mockHealthChecker{}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "unhealthy store",
			cfg:        HealthHandlerConfig{HealthChecker: &mockHealthChecker{pingErr: errors.New("database error")}},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name: "shutting down",
			cfg: HealthHandlerConfig{
				HealthChecker: &mockHealthChecker{},
				Readiness:     &mockReadiness{ready: false},
			},
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Logger = zap.NewNop()
			h := NewHealthHandler(tt.cfg)

			req := httptest.NewRequest(http.MethodGet, "/ready", http.NoBody)
			rr := httptest.NewRecorder()

			h.HandleReadiness(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}
		})
	}
}

func TestHealthHandler_HandleHealth(t *testing.T) {
	populated := &fakeCatalog{catalog: testCatalog()}
	empty := &fakeCatalog{catalog: domain.EmptyCatalog()}

	tests := []struct {
		name        string
		cfg         HealthHandlerConfig
		wantStatus  int
		wantOverall string
		wantChecks  map[string]string
	}{
		{
			name: "all healthy",
			cfg: HealthHandlerConfig{
				HealthChecker:   &mockHealthChecker{},
				AIHealthChecker: &mockAIHealthChecker{},
				CatalogChecker:  populated,
			},
			wantStatus:  http.StatusOK,
			wantOverall: "ok",
			wantChecks:  map[string]string{"database": "healthy", "ai_service": "healthy", "catalog": "healthy"},
		},
		{
			name: "database unhealthy",
			cfg: HealthHandlerConfig{
				HealthChecker:  &mockHealthChecker{pingErr: errors.New("connection refused")},
				CatalogChecker: populated,
			},
			wantStatus:  http.StatusServiceUnavailable,
			wantOverall: "unhealthy",
			wantChecks:  map[string]string{"database": "unhealthy"},
		},
		{
			name: "ai circuit open",
			cfg: HealthHandlerConfig{
				HealthChecker:   &mockHealthChecker{},
				AIHealthChecker: &mockAIHealthChecker{circuitOpen: true},
			},
			wantStatus:  http.StatusOK,
			wantOverall: "degraded",
			wantChecks:  map[string]string{"ai_service": "degraded"},
		},
		{
			name:        "empty catalog",
			cfg:         HealthHandlerConfig{CatalogChecker: empty},
			wantStatus:  http.StatusOK,
			wantOverall: "degraded",
			wantChecks:  map[string]string{"catalog": "degraded"},
		},
		{
			name:        "no checkers",
			cfg:         HealthHandlerConfig{},
			wantStatus:  http.StatusOK,
			wantOverall: "ok",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Logger = zap.NewNop()
			tt.cfg.Version = "test"
			h := NewHealthHandler(tt.cfg)

			req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
			rr := httptest.NewRecorder()

			h.HandleHealth(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}

			var resp HealthResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Status != tt.wantOverall {
				t.Errorf("expected status %q, got %q", tt.wantOverall, resp.Status)
			}
			if resp.Version != "test" {
				t.Errorf("expected version 'test', got %q", resp.Version)
			}
			for name, want := range tt.wantChecks {
				if got := resp.Checks[name].Status; got != want {
					t.Errorf("expected %s %q, got %q", name, want, got)
				}
			}
		})
	}
}

func TestNewBaseHandler_NilLoggerPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for nil logger")
		}
	}()
	NewBaseHandler(nil)
}

func TestBaseHandler_WriteJSON(t *testing.T) {
	h := NewBaseHandler(zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	rr := httptest.NewRecorder()

	h.WriteJSON(rr, req, http.StatusOK, map[string]string{"foo": "bar"})

	if rr.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type 'application/json', got %q", ct)
	}

	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["foo"] != "bar" {
		t.Errorf("expected foo=bar, got %q", resp["foo"])
	}
}

func TestBaseHandler_WriteError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    apperrors.Code
		wantMessage string
	}{
		{
			name:        "app error",
			err:         apperrors.NotFound("session"),
			wantStatus:  http.StatusNotFound,
			wantCode:    apperrors.CodeNotFound,
			wantMessage: "session not found",
		},
		{
			name:        "conflict",
			err:         apperrors.ErrChatInFlight,
			wantStatus:  http.StatusConflict,
			wantCode:    apperrors.CodeChatInFlight,
			wantMessage: apperrors.ErrChatInFlight.Message,
		},
		{
			name:        "plain error is hidden",
			err:         errors.New("pq: secret detail"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    apperrors.CodeInternal,
			wantMessage: "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewBaseHandler(zap.NewNop())
			req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
			rr := httptest.NewRecorder()

			h.WriteError(rr, req, tt.err)

			if rr.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}
			var body ErrorBody
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if body.Error.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, body.Error.Code)
			}
			if body.Error.Message != tt.wantMessage {
				t.Errorf("expected message %q, got %q", tt.wantMessage, body.Error.Message)
			}
		})
	}
}

func TestBaseHandler_Bind(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantOK     bool
		wantStatus int
		wantField  string
	}{
		{name: "valid", body: `{"text":"hola"}`, wantOK: true},
		{name: "empty body", body: ``, wantStatus: http.StatusBadRequest},
		{name: "malformed", body: `{"text":`, wantStatus: http.StatusBadRequest},
		{name: "unknown field", body: `{"text":"hola","extra":1}`, wantStatus: http.StatusBadRequest},
		{name: "missing required", body: `{"text":""}`, wantStatus: http.StatusBadRequest, wantField: "text"},
		{name: "too long", body: `{"text":"` + strings.Repeat("a", 4001) + `"}`, wantStatus: http.StatusBadRequest, wantField: "text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewBaseHandler(zap.NewNop())
			req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()

			var dst ChatRequest
			ok := h.Bind(rr, req, &dst)

			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if ok {
				if dst.Text != "hola" {
					t.Errorf("expected text 'hola', got %q", dst.Text)
				}
				return
			}
			if rr.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}
			if tt.wantField == "" {
				return
			}
			var body ErrorBody
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if body.Error.Code != apperrors.CodeValidation {
				t.Errorf("expected code %s, got %s", apperrors.CodeValidation, body.Error.Code)
			}
			if len(body.Fields) != 1 || body.Fields[0].Field != tt.wantField {
				t.Errorf("expected field error on %q, got %+v", tt.wantField, body.Fields)
			}
		})
	}
}

func TestApplySuggestionRequest_PriceRequiredForNew(t *testing.T) {
	h := NewBaseHandler(zap.NewNop())
	req := httptest.NewRequest(http.MethodPost, "/test",
		strings.NewReader(`{"id":"custom-x","is_new":true,"name":"Chatbot"}`))
	rr := httptest.NewRecorder()

	var dst ApplySuggestionRequest
	if h.Bind(rr, req, &dst) {
		t.Fatal("expected bind to fail without price")
	}

	var body ErrorBody
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Fields) != 1 || body.Fields[0].Field != "price" {
		t.Errorf("expected field error on price, got %+v", body.Fields)
	}
}
