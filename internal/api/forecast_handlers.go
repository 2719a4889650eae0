package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"

	"github.com/martinsuchenak/lifecycled/internal/log"
	"github.com/martinsuchenak/lifecycled/internal/model"
	"github.com/martinsuchenak/lifecycled/internal/planner"
	"github.com/martinsuchenak/lifecycled/internal/storage"
)

// getForecast handles GET /api/forecast?years=&waves=
func (h *Handler) getForecast(w http.ResponseWriter, r *http.Request) {
	report, ok := h.forecast(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

// forecast computes a report using the optional years and waves parameters.
// It writes the error response itself and reports whether it succeeded.
func (h *Handler) forecast(w http.ResponseWriter, r *http.Request) (*planner.Report, bool) {
	years, err := intQuery(r, "years")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	waves, err := intQuery(r, "waves")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	report, err := h.service.Forecast(r.Context(), years, waves)
	if err != nil {
		h.planningError(w, err)
		return nil, false
	}
	return report, true
}

// getReport handles GET /api/reports/{kind}
func (h *Handler) getReport(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	if !slices.Contains(planner.ReportKinds(), kind) {
		h.writeError(w, http.StatusNotFound, "unknown report: "+kind)
		return
	}
	limit, err := intQuery(r, "limit")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, ok := h.forecast(w, r)
	if !ok {
		return
	}
	if kind == "high-risk" && limit > 0 && limit < len(report.HighRisk) {
		h.writeJSON(w, http.StatusOK, report.HighRisk[:limit])
		return
	}
	section, _ := report.Section(kind)
	h.writeJSON(w, http.StatusOK, section)
}

// listForecasts handles GET /api/forecasts
func (h *Handler) listForecasts(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	runs, err := h.storage.ListForecasts(limit)
	if err != nil {
		h.internalError(w, err)
		return
	}
	if runs == nil {
		runs = []model.ForecastRun{}
	}
	h.writeJSON(w, http.StatusOK, runs)
}

// createForecast handles POST /api/forecasts, storing a snapshot
func (h *Handler) createForecast(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.Snapshot(r.Context())
	if err != nil {
		h.planningError(w, err)
		return
	}
	log.Info("Forecast snapshot created via API", "id", run.ID)
	run.Payload = nil
	h.writeJSON(w, http.StatusCreated, run)
}

// storedForecast is a run with its report decoded
type storedForecast struct {
	model.ForecastRun
	Report json.RawMessage `json:"report"`
}

// getStoredForecast handles GET /api/forecasts/{id}
func (h *Handler) getStoredForecast(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	run, err := h.storage.GetForecast(id)
	if err != nil {
		if errors.Is(err, storage.ErrForecastNotFound) {
			h.writeError(w, http.StatusNotFound, "forecast not found")
			return
		}
		h.internalError(w, err)
		return
	}
	out := storedForecast{ForecastRun: *run, Report: run.Payload}
	out.Payload = nil
	h.writeJSON(w, http.StatusOK, out)
}
