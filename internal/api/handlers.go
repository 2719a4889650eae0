package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/martinsuchenak/lifecycled/internal/log"
	"github.com/martinsuchenak/lifecycled/internal/model"
	"github.com/martinsuchenak/lifecycled/internal/planner"
	"github.com/martinsuchenak/lifecycled/internal/refresh"
	"github.com/martinsuchenak/lifecycled/internal/storage"
)

// maxBodyBytes bounds request bodies, EOL tables and inventories included
const maxBodyBytes = 32 << 20

// Handler handles HTTP requests
type Handler struct {
	service *refresh.Service
	storage storage.Storage
}

// NewHandler creates a new API handler
func NewHandler(svc *refresh.Service) *Handler {
	return &Handler{service: svc, storage: svc.Store()}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Inventory
	mux.HandleFunc("GET /api/devices", h.listDevices)
	mux.HandleFunc("POST /api/devices", h.createDevice)
	mux.HandleFunc("GET /api/devices/{serial}", h.getDevice)
	mux.HandleFunc("DELETE /api/devices/{serial}", h.deleteDevice)
	mux.HandleFunc("GET /api/devices/{serial}/assessment", h.getDeviceAssessment)
	mux.HandleFunc("POST /api/inventory", h.importInventory)

	// Networks
	mux.HandleFunc("GET /api/networks", h.listNetworks)
	mux.HandleFunc("POST /api/networks", h.createNetwork)
	mux.HandleFunc("GET /api/networks/{id}", h.getNetwork)

	// Planning
	mux.HandleFunc("GET /api/assessments", h.listAssessments)
	mux.HandleFunc("GET /api/models/{model}/assessment", h.getModelAssessment)
	mux.HandleFunc("GET /api/forecast", h.getForecast)
	mux.HandleFunc("GET /api/forecasts", h.listForecasts)
	mux.HandleFunc("POST /api/forecasts", h.createForecast)
	mux.HandleFunc("GET /api/forecasts/{id}", h.getStoredForecast)
	mux.HandleFunc("GET /api/reports/{kind}", h.getReport)

	// Reference data
	mux.HandleFunc("GET /api/eol", h.getEOL)
	mux.HandleFunc("PUT /api/eol", h.putEOL)
	mux.HandleFunc("GET /api/eol/resolve", h.resolveEOL)
	mux.HandleFunc("GET /api/prices", h.getPrices)
	mux.HandleFunc("PUT /api/prices", h.putPrices)

	mux.HandleFunc("GET /healthz", h.healthz)
}

// healthz handles GET /healthz
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.Ping(); err != nil {
		log.Error("Health check failed", "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, data)
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	writeError(w, status, message)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// internalError logs the error and writes a generic 500 response
func (h *Handler) internalError(w http.ResponseWriter, err error) {
	log.Error("Internal Server Error", "error", err)
	h.writeError(w, http.StatusInternalServerError, "Internal Server Error")
}

// planningError maps errors raised by the planning core onto responses
func (h *Handler) planningError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidDeviceRecord), errors.Is(err, planner.ErrInvalidHorizon):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.internalError(w, err)
	}
}

// intQuery reads an optional non-negative integer query parameter
func intQuery(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New(name + " must be a non-negative integer")
	}
	return n, nil
}
