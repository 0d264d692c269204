package handlers

import (
	"context"
	"net/http"

	"github.com/St1cky1/tarefa-service/internal/entity"
	"github.com/St1cky1/tarefa-service/internal/usecase"
	"github.com/go-chi/chi/v5"
)

type TaskHandler struct {
	taskService *usecase.TaskService
}

func NewTaskHandler(taskService *usecase.TaskService) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
	}
}

// создаем новую задачу
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req entity.CreateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	task, err := h.taskService.CreateTask(r.Context(), &req)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.taskService.ListTasks(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeTasks(w, tasks)
}

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	task, err := h.taskService.GetTask(r.Context(), taskID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var req entity.UpdateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	task, err := h.taskService.UpdateTask(r.Context(), taskID, &req)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	if err := h.taskService.DeleteTask(r.Context(), taskID); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListByStatus - GET /tasks/status/{status}, токен без учета регистра
func (h *TaskHandler) ListByStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.taskService.ParseStatus(chi.URLParam(r, "status"))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	tasks, err := h.taskService.ListTasksByStatus(r.Context(), status)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeTasks(w, tasks)
}

// SearchByTitle - GET /tasks/search?titulo=
func (h *TaskHandler) SearchByTitle(w http.ResponseWriter, r *http.Request) {
	query, ok := r.URL.Query()["titulo"]
	if !ok {
		WriteError(w, r, &MissingParameterError{Parameter: "titulo", Type: "string"})
		return
	}

	tasks, err := h.taskService.SearchTasksByTitle(r.Context(), query[0])
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeTasks(w, tasks)
}

func (h *TaskHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.taskService.CompleteTask)
}

func (h *TaskHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.taskService.CancelTask)
}

func (h *TaskHandler) transition(
	w http.ResponseWriter,
	r *http.Request,
	apply func(ctx context.Context, taskID int64) (*entity.Task, error),
) {
	taskID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	task, err := apply(r.Context(), taskID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// GetHistory - журнал аудита задачи, новые записи первыми
func (h *TaskHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	taskID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	history, err := h.taskService.GetTaskHistory(r.Context(), taskID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if history == nil {
		history = []entity.TaskAudit{}
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *TaskHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.taskService.GetStatistics(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// writeTasks renders an empty result as [] rather than null.
func writeTasks(w http.ResponseWriter, tasks []entity.Task) {
	if tasks == nil {
		tasks = []entity.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}
