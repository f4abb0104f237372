package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tasklane/apiserver/internal/services"
	"github.com/tasklane/apiserver/internal/store"
	"github.com/tasklane/apiserver/types"
)

// TaskHandler provides HTTP handlers for tasks.
type TaskHandler struct {
	taskService *services.TaskService
	log         *slog.Logger
}

func NewTaskHandler(taskService *services.TaskService, log *slog.Logger) *TaskHandler {
	return &TaskHandler{taskService: taskService, log: log}
}

// TaskRouter registers task routes on the given router.
func TaskRouter(r chi.Router, taskService *services.TaskService, log *slog.Logger) {
	handler := NewTaskHandler(taskService, log)

	r.Get("/", handler.ListTasks)
	r.Post("/", handler.CreateTask)
	r.Route("/{taskID}", func(r chi.Router) {
		r.Get("/", handler.GetTask)
		r.Put("/", handler.UpdateTask)
		r.Delete("/", handler.DeleteTask)
	})
}

func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.taskService.List(r.Context())
	if err != nil {
		h.fail(w, r, "failed to list tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseTaskID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.taskService.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, "failed to fetch task", err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.taskService.Create(r.Context(), req.Fields())
	if err != nil {
		h.fail(w, r, "failed to create task", err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseTaskID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req types.TaskUpdate
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.taskService.Update(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, "failed to update task", err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseTaskID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	removed, err := h.taskService.Delete(r.Context(), id)
	if err != nil {
		h.fail(w, r, "failed to delete task", err)
		return
	}
	writeJSON(w, http.StatusOK, removed)
}

func (h *TaskHandler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	h.log.ErrorContext(r.Context(), message, "error", err)
	writeError(w, http.StatusInternalServerError, message)
}

func parseTaskID(r *http.Request) (int, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "taskID"))
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid task id")
	}
	return id, nil
}

// CreateTaskRequest requires every field to be present. Empty strings are
// accepted.
type CreateTaskRequest struct {
	Title       *string `json:"title" validate:"required"`
	Description *string `json:"description" validate:"required"`
	Status      *string `json:"status" validate:"required"`
}

func (r CreateTaskRequest) Fields() types.TaskFields {
	return types.TaskFields{
		Title:       *r.Title,
		Description: *r.Description,
		Status:      *r.Status,
	}
}
