package domain

import "errors"

// Domain errors.
var (
	ErrMarginOutOfRange   = NewValidationError("margin", "margin must be at least 0 and below 100")
	ErrUnknownServiceType = NewValidationError("serviceType", "service type must be puntual or mensual")
	ErrCustomNameRequired = NewValidationError("name", "custom service name is required")
	ErrCustomPriceInvalid = NewValidationError("price", "custom service price must not be negative")
	ErrNotAPackage        = NewValidationError("id", "service does not belong to an exclusive category")
	ErrNotAStandard       = NewValidationError("id", "service belongs to an exclusive category")
	ErrUnknownAction      = NewValidationError("type", "unknown action type")
	ErrProposalNotFound   = NewNotFoundError("proposal", "proposal not found")
	ErrServiceNotFound    = NewNotFoundError("service", "service not found in catalog")
	ErrPlanNotFound       = NewNotFoundError("plan", "plan not found in catalog")

	// ErrEditNotSupported is returned for proposal edits; delete and recreate instead.
	ErrEditNotSupported = errors.New("proposal editing is not supported")
)

// EditGuidance is shown to the reseller when an edit is attempted.
const EditGuidance = "La edición de propuestas es una funcionalidad avanzada. Por ahora, borra la propuesta y créala de nuevo."

// ValidationError reports input that a transition or the pricing engine rejects.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NotFoundError reports a missing catalog entry or proposal.
type NotFoundError struct {
	Resource string `json:"resource"`
	Message  string `json:"message"`
}

func (e *NotFoundError) Error() string {
	return e.Message
}

// NewNotFoundError creates a new not found error.
func NewNotFoundError(resource, message string) *NotFoundError {
	return &NotFoundError{Resource: resource, Message: message}
}
