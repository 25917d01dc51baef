// Package handler provides HTTP handlers for the application.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jkindrix/zenquote/internal/audit"
	apperrors "github.com/jkindrix/zenquote/internal/errors"
	"github.com/jkindrix/zenquote/internal/middleware"
)

// BaseHandler provides shared functionality for all handlers.
type BaseHandler struct {
	validate *validator.Validate
	logger   *zap.Logger
	audit    *audit.Logger
}

// NewBaseHandler creates a new BaseHandler.
func NewBaseHandler(logger *zap.Logger) *BaseHandler {
	if logger == nil {
		panic("logger is required")
	}
	v := validator.New()
	// Report JSON field names rather than Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &BaseHandler{
		validate: v,
		logger:   logger,
	}
}

// Logger returns the handler's logger.
func (b *BaseHandler) Logger() *zap.Logger {
	return b.logger
}

// SetAuditLogger sets the audit logger used by admin and destructive routes.
func (b *BaseHandler) SetAuditLogger(a *audit.Logger) {
	b.audit = a
}

// Audit returns the audit logger. It may be nil, which discards events.
func (b *BaseHandler) Audit() *audit.Logger {
	return b.audit
}

// auditSource identifies the caller of r for audit events.
func auditSource(r *http.Request) audit.Source {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ip = host
	}
	return audit.Source{IP: ip, RequestID: middleware.GetRequestID(r.Context())}
}

// WriteJSON writes a JSON response with the appropriate headers.
func (b *BaseHandler) WriteJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	writeJSON(w, status, data, b.logger)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			logger.Debug("failed to write JSON response", zap.Error(err))
		}
	}
}

// ErrorBody is the JSON envelope of every API error.
type ErrorBody struct {
	Error     apperrors.ErrorDetail  `json:"error"`
	Fields    []ValidationFieldError `json:"fields,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// ValidationFieldError represents a single field validation error.
type ValidationFieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// WriteError maps err to its HTTP status and writes the error envelope.
// Errors that are not application errors are reported as internal errors
// without exposing their text.
func (b *BaseHandler) WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.GetHTTPStatus(err)
	log := middleware.LoggerWithCorrelation(r.Context(), b.logger)

	detail := apperrors.ErrorDetail{
		Code:    apperrors.CodeInternal,
		Message: "internal server error",
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		detail.Code = appErr.Code
		detail.Message = appErr.Message
	}

	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("code", string(detail.Code)),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	} else {
		log.Debug("request rejected",
			zap.String("code", string(detail.Code)),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}

	b.WriteJSON(w, r, status, ErrorBody{
		Error:     detail,
		RequestID: middleware.GetRequestID(r.Context()),
	})
}

// writeValidationError writes a 400 with field-level details.
func (b *BaseHandler) writeValidationError(w http.ResponseWriter, r *http.Request, fields []ValidationFieldError) {
	b.WriteJSON(w, r, http.StatusBadRequest, ErrorBody{
		Error: apperrors.ErrorDetail{
			Code:    apperrors.CodeValidation,
			Message: "validation failed",
		},
		Fields:    fields,
		RequestID: middleware.GetRequestID(r.Context()),
	})
}

// Bind decodes the JSON body into dst and validates it. On failure the
// error response is written and false is returned.
func (b *BaseHandler) Bind(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			b.WriteJSON(w, r, http.StatusRequestEntityTooLarge, ErrorBody{
				Error: apperrors.ErrorDetail{Code: apperrors.CodeInvalidInput, Message: "request body too large"},
			})
		case errors.Is(err, io.EOF):
			b.WriteError(w, r, apperrors.InvalidInput("request body is required"))
		default:
			b.WriteError(w, r, apperrors.InvalidInput(fmt.Sprintf("invalid JSON body: %v", err)))
		}
		return false
	}

	if err := b.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			b.WriteError(w, r, apperrors.InvalidInput(err.Error()))
			return false
		}
		fields := make([]ValidationFieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fieldError(fe))
		}
		b.writeValidationError(w, r, fields)
		return false
	}
	return true
}

func fieldError(fe validator.FieldError) ValidationFieldError {
	var msg string
	switch fe.Tag() {
	case "required", "required_if":
		msg = "is required"
	case "max":
		msg = fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte":
		msg = fmt.Sprintf("must be at least %s", fe.Param())
	case "oneof":
		msg = fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		msg = "is invalid"
	}
	return ValidationFieldError{
		Field:   fe.Field(),
		Message: msg,
		Code:    fe.Tag(),
	}
}

// sessionID parses the {id} URL parameter.
func sessionID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, apperrors.InvalidInput("session id must be a UUID")
	}
	return id, nil
}

// proposalIndex parses the {index} URL parameter. Range is checked by the store.
func proposalIndex(r *http.Request) (int, error) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		return 0, apperrors.InvalidInput("proposal index must be an integer")
	}
	return index, nil
}
