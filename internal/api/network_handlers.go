package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/martinsuchenak/lifecycled/internal/log"
	"github.com/martinsuchenak/lifecycled/internal/model"
	"github.com/martinsuchenak/lifecycled/internal/storage"
)

// listNetworks handles GET /api/networks
func (h *Handler) listNetworks(w http.ResponseWriter, r *http.Request) {
	networks, err := h.storage.ListNetworks()
	if err != nil {
		h.internalError(w, err)
		return
	}
	if networks == nil {
		networks = []model.Network{}
	}
	h.writeJSON(w, http.StatusOK, networks)
}

// getNetwork handles GET /api/networks/{id}
func (h *Handler) getNetwork(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	network, err := h.storage.GetNetwork(id)
	if err != nil {
		if errors.Is(err, storage.ErrNetworkNotFound) {
			h.writeError(w, http.StatusNotFound, "network not found")
			return
		}
		h.internalError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, network)
}

// createNetwork handles POST /api/networks. An existing id is renamed.
func (h *Handler) createNetwork(w http.ResponseWriter, r *http.Request) {
	var network model.Network
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&network); err != nil {
		log.Warn("Invalid network request body", "error", err)
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	network.ID = strings.TrimSpace(network.ID)
	if network.ID == "" {
		h.writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.storage.SaveNetwork(&network); err != nil {
		if errors.Is(err, storage.ErrInvalidID) {
			h.writeError(w, http.StatusBadRequest, "invalid network id")
			return
		}
		h.internalError(w, err)
		return
	}

	log.Info("Saved network", "id", network.ID, "name", network.Name)
	h.writeJSON(w, http.StatusCreated, network)
}
