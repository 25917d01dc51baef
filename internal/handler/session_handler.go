package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jkindrix/zenquote/internal/service"
)

// SessionHandler serves the proposal builder and its advisor chat.
type SessionHandler struct {
	*BaseHandler
	builder *service.BuilderService
	chat    *service.ChatService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(base *BaseHandler, builder *service.BuilderService, chat *service.ChatService) *SessionHandler {
	return &SessionHandler{
		BaseHandler: base,
		builder:     builder,
		chat:        chat,
	}
}

// RegisterRoutes registers session routes on the router.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Delete("/", h.HandleDelete)
			r.Post("/actions", h.HandleAction)
			r.Get("/quote", h.HandleQuote)
			r.Post("/save", h.HandleSave)
			r.Get("/chat", h.HandleChatHistory)
			r.Post("/chat", h.HandleChat)
			r.Post("/suggestions/apply", h.HandleApplySuggestion)
		})
	})
}

// HandleCreate starts a new builder session.
func (h *SessionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, r, http.StatusCreated, h.builder.CreateSession(r.Context()))
}

// HandleGet returns the session's selection and quote.
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	state, err := h.builder.State(r.Context(), id)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, r, http.StatusOK, state)
}

// HandleDelete discards a session.
func (h *SessionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	if err := h.builder.DeleteSession(r.Context(), id); err != nil {
		h.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAction applies one selection transition.
func (h *SessionHandler) HandleAction(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	var req ActionRequest
	if !h.Bind(w, r, &req) {
		return
	}
	state, err := h.builder.Apply(r.Context(), id, req.Action())
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, r, http.StatusOK, state)
}

// HandleQuote prices the current selection.
func (h *SessionHandler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	quote, err := h.builder.Quote(r.Context(), id)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, r, http.StatusOK, quote)
}

// HandleSave stores the selection as a proposal and resets the builder.
func (h *SessionHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	proposal, err := h.builder.Save(r.Context(), id)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	state, err := h.builder.State(r.Context(), id)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, r, http.StatusCreated, SaveResponse{Proposal: proposal, Session: state})
}

// HandleChatHistory returns the advisor conversation.
func (h *SessionHandler) HandleChatHistory(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	history, err := h.chat.History(r.Context(), id)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, r, http.StatusOK, history)
}

// HandleChat submits a message to the advisor.
func (h *SessionHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	var req ChatRequest
	if !h.Bind(w, r, &req) {
		return
	}
	turn, err := h.chat.Submit(r.Context(), id, req.Text)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, r, http.StatusOK, turn)
}

// HandleApplySuggestion adds a recommended service to the selection.
func (h *SessionHandler) HandleApplySuggestion(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	var req ApplySuggestionRequest
	if !h.Bind(w, r, &req) {
		return
	}
	state, err := h.builder.ApplySuggestion(r.Context(), id, req.Service())
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, r, http.StatusOK, state)
}
