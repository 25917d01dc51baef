package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	apperrors "github.com/jkindrix/zenquote/internal/errors"
	"github.com/jkindrix/zenquote/internal/logging"
)

// LogLevelHandler handles runtime log level adjustment.
type LogLevelHandler struct {
	*BaseHandler
	level zap.AtomicLevel
}

// NewLogLevelHandler creates a handler for log level management.
func NewLogLevelHandler(base *BaseHandler, level zap.AtomicLevel) *LogLevelHandler {
	return &LogLevelHandler{
		BaseHandler: base,
		level:       level,
	}
}

// LogLevelResponse is the response for log level queries.
type LogLevelResponse struct {
	Level           string   `json:"level"`
	AvailableLevels []string `json:"available_levels,omitempty"`
	Message         string   `json:"message,omitempty"`
}

// LogLevelRequest is the request body for changing log level.
type LogLevelRequest struct {
	Level string `json:"level"`
}

// GetLevel handles GET requests to return current log level.
func (h *LogLevelHandler) GetLevel(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, r, http.StatusOK, LogLevelResponse{
		Level:           h.level.Level().String(),
		AvailableLevels: logging.AvailableLevels,
	})
}

// SetLevel handles PUT/POST requests to change log level. The level is read
// from the query string first, then from a JSON body.
func (h *LogLevelHandler) SetLevel(w http.ResponseWriter, r *http.Request) {
	levelStr := r.URL.Query().Get("level")
	if levelStr == "" {
		var req LogLevelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			levelStr = req.Level
		}
	}

	if levelStr == "" {
		h.WriteError(w, r, apperrors.InvalidInput("level parameter is required"))
		return
	}

	newLevel, err := logging.ParseLevel(levelStr)
	if err != nil {
		h.WriteError(w, r, apperrors.InvalidInput(err.Error()))
		return
	}

	previousLevel := h.level.Level()
	h.level.SetLevel(newLevel)

	h.Logger().Info("log level changed",
		zap.Stringer("previous_level", previousLevel),
		zap.Stringer("new_level", newLevel),
	)
	h.Audit().LogLevelChanged(r.Context(), auditSource(r), previousLevel.String(), newLevel.String())

	h.WriteJSON(w, r, http.StatusOK, LogLevelResponse{
		Level:   newLevel.String(),
		Message: fmt.Sprintf("log level changed from %s to %s", previousLevel, newLevel),
	})
}

// ServeHTTP implements http.Handler for the log level endpoint.
func (h *LogLevelHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.GetLevel(w, r)
	case http.MethodPut, http.MethodPost:
		h.SetLevel(w, r)
	default:
		w.Header().Set("Allow", "GET, PUT, POST")
		h.WriteJSON(w, r, http.StatusMethodNotAllowed, ErrorBody{
			Error: apperrors.ErrorDetail{Code: apperrors.CodeInvalidInput, Message: "method not allowed"},
		})
	}
}
