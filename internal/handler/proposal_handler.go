package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jkindrix/zenquote/internal/service"
)

// ProposalHandler serves the saved proposal history and the presentation flag.
type ProposalHandler struct {
	*BaseHandler
	proposals    *service.ProposalService
	presentation *service.PresentationService
}

// NewProposalHandler creates a new ProposalHandler.
func NewProposalHandler(base *BaseHandler, proposals *service.ProposalService, presentation *service.PresentationService) *ProposalHandler {
	return &ProposalHandler{
		BaseHandler:  base,
		proposals:    proposals,
		presentation: presentation,
	}
}

// RegisterRoutes registers proposal and presentation routes on the router.
func (h *ProposalHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/proposals", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Delete("/", h.HandleClear)
		r.Get("/totals", h.HandleTotals)
		r.Delete("/{index}", h.HandleDelete)
		r.Put("/{index}", h.HandleEdit)
	})

	r.Get("/api/presentation", h.HandlePresentation)
	r.Post("/api/presentation/complete", h.HandleCompletePresentation)
}

// HandleList returns every saved proposal in save order.
func (h *ProposalHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	proposals, err := h.proposals.List(r.Context())
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, r, http.StatusOK, proposals)
}

// HandleTotals returns the aggregate cost, price and profit.
func (h *ProposalHandler) HandleTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := h.proposals.Totals(r.Context())
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, r, http.StatusOK, totals)
}

// HandleDelete removes the proposal at {index}.
func (h *ProposalHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	index, err := proposalIndex(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	removed, err := h.proposals.Delete(r.Context(), index)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.Audit().ProposalDeleted(r.Context(), auditSource(r), removed.ID, removed.ClientName, index)
	h.WriteJSON(w, r, http.StatusOK, removed)
}

// HandleClear removes every proposal. It requires ?confirm=true.
func (h *ProposalHandler) HandleClear(w http.ResponseWriter, r *http.Request) {
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	cleared, err := h.proposals.Clear(r.Context(), confirmed)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.Audit().ProposalsCleared(r.Context(), auditSource(r), cleared)
	h.WriteJSON(w, r, http.StatusOK, ClearResponse{Cleared: cleared})
}

// HandleEdit always answers 501 with guidance to delete and recreate.
func (h *ProposalHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	index, err := proposalIndex(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteError(w, r, h.proposals.Edit(r.Context(), index))
}

// HandlePresentation reports whether the presentation was completed.
func (h *ProposalHandler) HandlePresentation(w http.ResponseWriter, r *http.Request) {
	done, err := h.presentation.Completed(r.Context())
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, r, http.StatusOK, PresentationResponse{HasCompletedPresentation: done})
}

// HandleCompletePresentation marks the presentation as completed.
func (h *ProposalHandler) HandleCompletePresentation(w http.ResponseWriter, r *http.Request) {
	if err := h.presentation.MarkCompleted(r.Context()); err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.WriteJSON(w, r, http.StatusOK, PresentationResponse{HasCompletedPresentation: true})
}
