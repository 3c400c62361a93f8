package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/focusblock/internal/auth"
	"github.com/dukerupert/focusblock/internal/model"
	"github.com/dukerupert/focusblock/internal/store"
	ws "github.com/dukerupert/focusblock/internal/websocket"
)

type TaskHandler struct {
	store  *store.TaskStore
	hub    *ws.Hub
	logger *slog.Logger
}

func NewTaskHandler(s *store.TaskStore, hub *ws.Hub, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{store: s, hub: hub, logger: logger}
}

type createTaskRequest struct {
	Title    string   `json:"title"`
	Subtasks []string `json:"subtasks"`
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	userID := auth.UserID(r.Context())
	task, err := h.store.Create(r.Context(), userID, req.Title, req.Subtasks)
	if err != nil {
		h.logger.Error("create task", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create task")
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(ws.NewMessage("task", "created", task.ID, nil).ForUser(userID))
	}
	writeData(w, http.StatusCreated, task)
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.store.List(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("list tasks", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	writeData(w, http.StatusOK, tasks)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	task, err := h.store.GetByID(r.Context(), auth.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		h.logger.Error("get task", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get task")
		return
	}
	if task == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeData(w, http.StatusOK, task)
}
