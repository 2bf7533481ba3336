package handlers

import (
	"net/http"
	"strconv"

	"github.com/Dosada05/tournament-officiating/rules"
)

const defaultSuggestLimit = 5

type CatalogHandler struct {
	catalog *rules.Catalog
}

func NewCatalogHandler(catalog *rules.Catalog) *CatalogHandler {
	if catalog == nil {
		catalog = rules.DefaultCatalog()
	}
	return &CatalogHandler{catalog: catalog}
}

// GetHandler обрабатывает GET /catalog
func (h *CatalogHandler) GetHandler(w http.ResponseWriter, r *http.Request) {
	view := jsonResponse{
		"budget":   h.catalog.Budget,
		"items":    h.catalog.Names(),
		"ban_list": h.catalog.BanList,
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"catalog": view}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SuggestHandler обрабатывает GET /catalog/suggest?q=dran&limit=5
func (h *CatalogHandler) SuggestHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := defaultSuggestLimit
	if s := query.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 50 {
			errorResponse(w, r, http.StatusBadRequest, "limit must be between 1 and 50")
			return
		}
		limit = n
	}

	suggestions := h.catalog.Suggest(query.Get("q"), limit)
	if suggestions == nil {
		suggestions = []string{}
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"suggestions": suggestions}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
