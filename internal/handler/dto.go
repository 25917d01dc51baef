package handler

import (
	"github.com/jkindrix/zenquote/internal/domain"
	"github.com/jkindrix/zenquote/internal/service"
)

// ActionRequest is the body of POST /api/sessions/{id}/actions.
type ActionRequest struct {
	Type        string  `json:"type" validate:"required,oneof=reset update_details set_service_type set_package set_plan toggle_standard_service toggle_plan_service add_custom_service remove_custom_service update_margin"`
	ClientName  string  `json:"clientName" validate:"max=200"`
	WebName     string  `json:"webName" validate:"max=200"`
	ServiceType string  `json:"serviceType" validate:"omitempty,oneof=puntual mensual"`
	ServiceID   string  `json:"serviceId" validate:"max=100"`
	PlanID      string  `json:"planId" validate:"max=100"`
	Name        string  `json:"name" validate:"max=200"`
	Price       float64 `json:"price"`
	Margin      *int    `json:"margin"`
}

// Action converts the request into a selection transition.
func (r ActionRequest) Action() domain.Action {
	return domain.Action{
		Type:        domain.ActionType(r.Type),
		ClientName:  r.ClientName,
		WebName:     r.WebName,
		ServiceType: domain.ServiceType(r.ServiceType),
		ServiceID:   r.ServiceID,
		PlanID:      r.PlanID,
		Name:        r.Name,
		Price:       r.Price,
		Margin:      r.Margin,
	}
}

// ChatRequest is the body of POST /api/sessions/{id}/chat.
type ChatRequest struct {
	Text string `json:"text" validate:"required,max=4000"`
}

// ApplySuggestionRequest is the body of POST /api/sessions/{id}/suggestions/apply.
// It mirrors one entry of a structured recommendation.
type ApplySuggestionRequest struct {
	ID          string   `json:"id" validate:"required,max=100"`
	IsNew       bool     `json:"is_new"`
	Name        string   `json:"name" validate:"required,max=200"`
	Description string   `json:"description" validate:"max=1000"`
	Price       *float64 `json:"price" validate:"required_if=IsNew true,omitempty,gte=0"`
}

// Service converts the request into a recommended service.
func (r ApplySuggestionRequest) Service() domain.RecommendedService {
	isNew := r.IsNew
	return domain.RecommendedService{
		ID:          r.ID,
		IsNew:       &isNew,
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
	}
}

// SaveResponse is returned after a proposal is saved.
type SaveResponse struct {
	Proposal *domain.Proposal      `json:"proposal"`
	Session  *service.SessionState `json:"session"`
}

// ClearResponse is returned after the proposal history is cleared.
type ClearResponse struct {
	Cleared int `json:"cleared"`
}

// PresentationResponse reports the presentation flag.
type PresentationResponse struct {
	HasCompletedPresentation bool `json:"hasCompletedPresentation"`
}
