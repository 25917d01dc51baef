package service

import (
	"context"
	"errors"

	"github.com/jkindrix/zenquote/internal/domain"
	apperrors "github.com/jkindrix/zenquote/internal/errors"
)

// ErrSessionNotFound is returned for unknown or expired builder sessions.
var ErrSessionNotFound = apperrors.NotFound("session")

// toAppError converts domain and storage failures into application errors.
func toAppError(op string, err error) error {
	if err == nil {
		return nil
	}

	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return apperrors.WrapWithOp(err, op)
	}

	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		return apperrors.Wrap(err, op, apperrors.CodeValidation, validationErr.Message)
	}

	var notFoundErr *domain.NotFoundError
	if errors.As(err, &notFoundErr) {
		return apperrors.Wrap(err, op, apperrors.CodeNotFound, notFoundErr.Message)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(err, op, apperrors.CodeTimeout, "operation timed out")
	}

	return apperrors.DatabaseError(op, err)
}
