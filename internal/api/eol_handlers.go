package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/martinsuchenak/lifecycled/internal/eol"
	"github.com/martinsuchenak/lifecycled/internal/pricing"
	"github.com/martinsuchenak/lifecycled/internal/storage"
)

// eolResponse is the stored EOL table with its provenance
type eolResponse struct {
	Info     *storage.EOLInfo `json:"info"`
	Fallback bool             `json:"fallback"`
	*eol.Document
}

// getEOL handles GET /api/eol
func (h *Handler) getEOL(w http.ResponseWriter, r *http.Request) {
	info, err := h.storage.EOLInfo()
	if err != nil {
		h.internalError(w, err)
		return
	}
	doc, err := h.service.EOLDocument()
	if err != nil {
		h.internalError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, eolResponse{Info: info, Fallback: info.Records == 0, Document: doc})
}

// putEOL handles PUT /api/eol, replacing the whole table
func (h *Handler) putEOL(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if source == "" {
		source = "api"
	}
	n, err := h.service.LoadEOL(http.MaxBytesReader(w, r.Body, maxBodyBytes), source)
	if err != nil {
		if errors.Is(err, storage.ErrEOLTableEmpty) || errors.Is(err, eol.ErrInvalidDocument) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.internalError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"records": n, "source": source})
}

// resolveEOL handles GET /api/eol/resolve?model=
func (h *Handler) resolveEOL(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("model"))
	if name == "" {
		h.writeError(w, http.StatusBadRequest, "model query parameter is required")
		return
	}
	res, err := h.service.Resolve(name)
	if err != nil {
		h.internalError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

// pricesResponse is the active price catalog with its cache state
type pricesResponse struct {
	State   pricing.CatalogState `json:"state"`
	Models  int                  `json:"models"`
	Catalog pricing.Catalog      `json:"catalog"`
}

// getPrices handles GET /api/prices
func (h *Handler) getPrices(w http.ResponseWriter, r *http.Request) {
	catalog, state, err := h.service.Catalog(r.Context())
	if err != nil {
		h.internalError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, pricesResponse{State: state, Models: catalog.Len(), Catalog: catalog})
}

// putPrices handles PUT /api/prices, replacing the cached catalog
func (h *Handler) putPrices(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.LoadPrices(r.Context(), http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		if errors.Is(err, pricing.ErrInvalidCatalog) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.internalError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"models": n})
}
