package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jkindrix/zenquote/internal/domain"
)

// CatalogSource serves catalog snapshots. *catalog.Provider implements it.
type CatalogSource interface {
	Current(ctx context.Context) *domain.Catalog
	Refresh(ctx context.Context) *domain.Catalog
}

// CatalogHandler exposes the service catalog.
type CatalogHandler struct {
	*BaseHandler
	catalog CatalogSource
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(base *BaseHandler, catalog CatalogSource) *CatalogHandler {
	return &CatalogHandler{
		BaseHandler: base,
		catalog:     catalog,
	}
}

// RegisterRoutes registers catalog routes on the router.
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/catalog", h.HandleGet)
}

// RegisterAdminRoutes registers the catalog refresh route.
func (h *CatalogHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/catalog/refresh", h.HandleRefresh)
}

// HandleGet returns the current catalog snapshot.
func (h *CatalogHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, r, http.StatusOK, h.catalog.Current(r.Context()))
}

// HandleRefresh drops the cached snapshot and reloads it from the source.
func (h *CatalogHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	cat := h.catalog.Refresh(r.Context())
	h.Logger().Info("catalog refreshed",
		zap.Int("categories", len(cat.Categories)),
		zap.Int("services", cat.ServiceCount()),
		zap.Int("plans", len(cat.Plans)),
	)
	h.Audit().CatalogRefreshed(r.Context(), auditSource(r), cat.ServiceCount(), len(cat.Plans))
	h.WriteJSON(w, r, http.StatusOK, cat)
}
