package api

import (
	"errors"
	"net/http"

	"github.com/martinsuchenak/lifecycled/internal/log"
	"github.com/martinsuchenak/lifecycled/internal/worker"
)

// TaskRunner is the part of the scheduler the task endpoints use
type TaskRunner interface {
	Tasks() []worker.TaskInfo
	RunNow(id string) error
}

// TaskHandler serves the background task endpoints
type TaskHandler struct {
	runner TaskRunner
}

// NewTaskHandler creates a task handler over runner
func NewTaskHandler(runner TaskRunner) *TaskHandler {
	return &TaskHandler{runner: runner}
}

// RegisterRoutes registers the task routes
func (h *TaskHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/tasks", h.listTasks)
	mux.HandleFunc("POST /api/tasks/{id}/run", h.runTask)
}

// listTasks handles GET /api/tasks
func (h *TaskHandler) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks := h.runner.Tasks()
	if tasks == nil {
		tasks = []worker.TaskInfo{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// runTask handles POST /api/tasks/{id}/run. The task runs in the background.
func (h *TaskHandler) runTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.runner.RunNow(id); err != nil {
		if errors.Is(err, worker.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		log.Error("Failed to start task", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": worker.StatusRunning})
}
