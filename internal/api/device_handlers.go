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

// deviceFilter reads the network_id and model query parameters
func deviceFilter(r *http.Request) *model.DeviceFilter {
	q := r.URL.Query()
	return &model.DeviceFilter{
		NetworkID: q.Get("network_id"),
		Model:     q.Get("model"),
	}
}

// listDevices handles GET /api/devices
func (h *Handler) listDevices(w http.ResponseWriter, r *http.Request) {
	filter := deviceFilter(r)

	log.Debug("Listing devices", "network_id", filter.NetworkID, "model", filter.Model)
	devices, err := h.storage.ListDevices(filter)
	if err != nil {
		h.internalError(w, err)
		return
	}
	if devices == nil {
		devices = []model.Device{}
	}

	h.writeJSON(w, http.StatusOK, devices)
}

// getDevice handles GET /api/devices/{serial}
func (h *Handler) getDevice(w http.ResponseWriter, r *http.Request) {
	serial := r.PathValue("serial")
	if serial == "" {
		h.writeError(w, http.StatusBadRequest, "device serial required")
		return
	}

	device, err := h.storage.GetDevice(serial)
	if err != nil {
		if errors.Is(err, storage.ErrDeviceNotFound) {
			log.Warn("Device not found", "serial", serial)
			h.writeError(w, http.StatusNotFound, "device not found")
			return
		}
		h.internalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, device)
}

// createDevice handles POST /api/devices. An existing serial is updated.
func (h *Handler) createDevice(w http.ResponseWriter, r *http.Request) {
	var device model.Device
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&device); err != nil {
		log.Warn("Invalid device request body", "error", err)
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	device.Serial = strings.TrimSpace(device.Serial)
	device.Model = strings.TrimSpace(device.Model)

	if err := device.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.storage.SaveDevice(&device); err != nil {
		if errors.Is(err, model.ErrInvalidDeviceRecord) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.internalError(w, err)
		return
	}

	log.Info("Saved device", "serial", device.Serial, "model", device.Model)
	h.writeJSON(w, http.StatusCreated, device)
}

// deleteDevice handles DELETE /api/devices/{serial}
func (h *Handler) deleteDevice(w http.ResponseWriter, r *http.Request) {
	serial := r.PathValue("serial")
	if serial == "" {
		h.writeError(w, http.StatusBadRequest, "device serial required")
		return
	}

	if err := h.storage.DeleteDevice(serial); err != nil {
		if errors.Is(err, storage.ErrDeviceNotFound) {
			h.writeError(w, http.StatusNotFound, "device not found")
			return
		}
		h.internalError(w, err)
		return
	}

	log.Info("Deleted device", "serial", serial)
	w.WriteHeader(http.StatusNoContent)
}

// importInventory handles POST /api/inventory. The body is an inventory
// envelope or a bare device array.
func (h *Handler) importInventory(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ImportInventory(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		if errors.Is(err, model.ErrInvalidDeviceRecord) || errors.Is(err, storage.ErrInvalidID) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
			h.writeError(w, http.StatusBadRequest, "invalid inventory document")
			return
		}
		h.internalError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// getDeviceAssessment handles GET /api/devices/{serial}/assessment
func (h *Handler) getDeviceAssessment(w http.ResponseWriter, r *http.Request) {
	serial := r.PathValue("serial")

	assessment, err := h.service.Assess(r.Context(), serial)
	if err != nil {
		if errors.Is(err, storage.ErrDeviceNotFound) {
			h.writeError(w, http.StatusNotFound, "device not found")
			return
		}
		h.planningError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, assessment)
}

// listAssessments handles GET /api/assessments
func (h *Handler) listAssessments(w http.ResponseWriter, r *http.Request) {
	assessments, err := h.service.AssessAll(r.Context(), deviceFilter(r))
	if err != nil {
		h.planningError(w, err)
		return
	}
	if assessments == nil {
		h.writeJSON(w, http.StatusOK, []any{})
		return
	}
	h.writeJSON(w, http.StatusOK, assessments)
}

// getModelAssessment handles GET /api/models/{model}/assessment. Optional
// throughput_mbps, client_count and wireless_clients hints raise the tier.
func (h *Handler) getModelAssessment(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PathValue("model"))
	if name == "" {
		h.writeError(w, http.StatusBadRequest, "model required")
		return
	}

	var usage model.Usage
	var err error
	if usage.ThroughputMbps, err = intQuery(r, "throughput_mbps"); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if usage.ClientCount, err = intQuery(r, "client_count"); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if usage.WirelessClients, err = intQuery(r, "wireless_clients"); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var hints *model.Usage
	if usage != (model.Usage{}) {
		hints = &usage
	}

	assessment, err := h.service.AssessModel(r.Context(), name, hints)
	if err != nil {
		h.planningError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, assessment)
}
