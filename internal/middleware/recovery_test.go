package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	apperrors "github.com/jkindrix/zenquote/internal/errors"
)

func TestRecovery_PassesThrough(t *testing.T) {
	handler := Recovery(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/catalog", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if rr.Body.String() != "OK" {
		t.Errorf("expected body OK, got %q", rr.Body.String())
	}
}

func TestRecovery_WritesErrorEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name:    "string panic",
			handler: func(w http.ResponseWriter, r *http.Request) { panic("pricing exploded") },
		},
		{
			name: "nil pointer dereference",
			handler: func(w http.ResponseWriter, r *http.Request) {
				var sel *struct{ Margin int }
				_ = sel.Margin
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.ErrorLevel)
			handler := Recovery(zap.New(core))(tt.handler)

			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/sessions/x/actions", nil))

			if rr.Code != http.StatusInternalServerError {
				t.Errorf("expected status %d, got %d", http.StatusInternalServerError, rr.Code)
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected application/json, got %q", ct)
			}

			var body apperrors.ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("expected JSON error envelope, got decode error %v", err)
			}
			if body.Error.Code != apperrors.CodeInternal {
				t.Errorf("expected code %s, got %s", apperrors.CodeInternal, body.Error.Code)
			}
			if body.Error.Message != "internal server error" {
				t.Errorf("expected generic message, got %q", body.Error.Message)
			}

			entries := logs.FilterMessage("panic recovered").All()
			if len(entries) != 1 {
				t.Fatalf("expected 1 panic log, got %d", len(entries))
			}
			if path := entries[0].ContextMap()["path"]; path != "/api/sessions/x/actions" {
				t.Errorf("expected logged path, got %v", path)
			}
		})
	}
}

func TestRecovery_RepanicsAbortHandler(t *testing.T) {
	handler := Recovery(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Errorf("expected http.ErrAbortHandler to propagate, got %v", rec)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}
