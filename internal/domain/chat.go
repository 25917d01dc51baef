package domain

import "time"

// ChatRole identifies the author of a chat message.
type ChatRole string

const (
	ChatRoleUser  ChatRole = "user"
	ChatRoleModel ChatRole = "model"
)

// ChatMessage is one turn of the advisor conversation.
type ChatMessage struct {
	Role      ChatRole  `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	// Reply is the parsed advisor answer on model turns.
	Reply *Reply `json:"reply,omitempty"`
}

// WelcomeMessage opens every advisor conversation.
const WelcomeMessage = "¡Hola! Soy Zen Assistant. Describe el proyecto de tu cliente y te ayudaré a seleccionar los servicios."

// Intent is the stage-one classification of a reseller message.
type Intent string

const (
	IntentRecommendation Intent = "RECOMENDACION"
	IntentText           Intent = "TEXTO"
	IntentUnknown        Intent = "DESCONOCIDA"
)

// RecommendedService is one entry of a structured recommendation. Existing
// catalog services carry only id and name; new ones add description and price.
type RecommendedService struct {
	ID          string   `json:"id" validate:"required"`
	IsNew       *bool    `json:"is_new" validate:"required"`
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty"`
}

// New reports whether the advisor invented this service.
func (r RecommendedService) New() bool {
	return r.IsNew != nil && *r.IsNew
}

// Recommendation is the structured reply of the advisor.
type Recommendation struct {
	Introduction    string               `json:"introduction" validate:"required"`
	Services        []RecommendedService `json:"services" validate:"required,dive"`
	Closing         string               `json:"closing" validate:"required"`
	ClientQuestions []string             `json:"client_questions" validate:"required"`
	SalesPitch      string               `json:"sales_pitch" validate:"required"`
}

// ReplyKind discriminates the two advisor reply shapes.
type ReplyKind string

const (
	ReplyStructured ReplyKind = "structured"
	ReplyText       ReplyKind = "text"
)

// Reply is the advisor's answer: either a Recommendation or plain text.
type Reply struct {
	Kind           ReplyKind       `json:"kind"`
	Intent         Intent          `json:"intent,omitempty"`
	Recommendation *Recommendation `json:"recommendation,omitempty"`
	Text           string          `json:"text"`
	// Failed marks the fixed apology returned when the AI service errored.
	Failed bool `json:"failed,omitempty"`
}
