package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/focusblock/internal/auth"
	"github.com/dukerupert/focusblock/internal/calendar"
	"github.com/dukerupert/focusblock/internal/icalfeed"
	"github.com/dukerupert/focusblock/internal/model"
	ws "github.com/dukerupert/focusblock/internal/websocket"
)

const entityCalendarEvent = "calendar_event"

type CalendarEventHandler struct {
	svc    *calendar.Service
	hub    *ws.Hub
	logger *slog.Logger
}

func NewCalendarEventHandler(svc *calendar.Service, hub *ws.Hub, logger *slog.Logger) *CalendarEventHandler {
	return &CalendarEventHandler{svc: svc, hub: hub, logger: logger}
}

type createEventRequest struct {
	Title             string     `json:"title"`
	Start             *time.Time `json:"start"`
	End               *time.Time `json:"end"`
	TaskID            *string    `json:"taskId"`
	Subtasks          []string   `json:"subtasks"`
	IsFocusSession    bool       `json:"isFocusSession"`
	RecurrenceRule    *string    `json:"recurrenceRule"`
	RecurrenceEndDate *time.Time `json:"recurrenceEndDate"`
}

// nullableString tells an explicit null apart from an absent field. An empty
// string counts as null.
type nullableString struct {
	Set   bool
	Value *string
}

func (n *nullableString) UnmarshalJSON(b []byte) error {
	n.Set = true
	if string(b) == "null" {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s != "" {
		n.Value = &s
	}
	return nil
}

type updateEventRequest struct {
	Title              *string        `json:"title"`
	Start              *time.Time     `json:"start"`
	End                *time.Time     `json:"end"`
	IsFocusSession     *bool          `json:"isFocusSession"`
	TaskID             nullableString `json:"taskId"`
	Subtasks           *[]string      `json:"subtasks"`
	UpdateAllInstances bool           `json:"updateAllInstances"`
}

func (h *CalendarEventHandler) notify(r *http.Request, action, id string, all bool) {
	if h.hub == nil {
		return
	}
	scope := "single"
	if all {
		scope = "all"
	}
	msg := ws.NewMessage(entityCalendarEvent, action, id, map[string]any{"scope": scope})
	h.hub.Broadcast(msg.ForUser(auth.UserID(r.Context())))
}

func (h *CalendarEventHandler) List(w http.ResponseWriter, r *http.Request) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")
	if startStr == "" || endStr == "" {
		writeError(w, http.StatusBadRequest, "start and end query parameters are required")
		return
	}

	start, err := parseFlexibleTime(startStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be RFC3339 or YYYY-MM-DD format")
		return
	}
	end, err := parseFlexibleTime(endStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "end must be RFC3339 or YYYY-MM-DD format")
		return
	}

	events, err := h.svc.QueryRange(r.Context(), auth.UserID(r.Context()), start, end)
	if err != nil {
		writeServiceError(w, h.logger, "list events", err)
		return
	}
	writeData(w, http.StatusOK, nonNil(events))
}

func (h *CalendarEventHandler) Day(w http.ResponseWriter, r *http.Request) {
	h.byDate(w, r, h.svc.Day)
}

func (h *CalendarEventHandler) Week(w http.ResponseWriter, r *http.Request) {
	h.byDate(w, r, h.svc.Week)
}

func (h *CalendarEventHandler) byDate(w http.ResponseWriter, r *http.Request, query func(context.Context, string, time.Time) ([]model.EventView, error)) {
	date, err := time.Parse("2006-01-02", r.PathValue("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD format")
		return
	}

	events, err := query(r.Context(), auth.UserID(r.Context()), date)
	if err != nil {
		writeServiceError(w, h.logger, "list events", err)
		return
	}
	writeData(w, http.StatusOK, nonNil(events))
}

func (h *CalendarEventHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Get(r.Context(), auth.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, h.logger, "get event", err)
		return
	}
	writeData(w, http.StatusOK, view)
}

func (h *CalendarEventHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	in := calendar.CreateInput{
		Title:             strings.TrimSpace(req.Title),
		TaskID:            req.TaskID,
		Subtasks:          req.Subtasks,
		IsFocusSession:    req.IsFocusSession,
		RecurrenceRule:    req.RecurrenceRule,
		RecurrenceEndDate: req.RecurrenceEndDate,
	}
	if req.Start != nil {
		in.Start = *req.Start
	}
	if req.End != nil {
		in.End = *req.End
	}

	view, err := h.svc.Create(r.Context(), auth.UserID(r.Context()), in)
	if err != nil {
		writeServiceError(w, h.logger, "create event", err)
		return
	}

	h.notify(r, "created", view.ID, view.Kind == model.KindSeries)
	writeData(w, http.StatusCreated, view)
}

func (h *CalendarEventHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if req.Title != nil {
		t := strings.TrimSpace(*req.Title)
		req.Title = &t
	}
	p := calendar.Patch{
		Title:          req.Title,
		Start:          req.Start,
		End:            req.End,
		IsFocusSession: req.IsFocusSession,
		SetTaskID:      req.TaskID.Set,
		TaskID:         req.TaskID.Value,
		Subtasks:       req.Subtasks,
	}
	all := req.UpdateAllInstances || queryBool(r, "updateAllInstances")

	view, err := h.svc.Update(r.Context(), auth.UserID(r.Context()), r.PathValue("id"), p, all)
	if err != nil {
		writeServiceError(w, h.logger, "update event", err)
		return
	}

	h.notify(r, "updated", view.ID, all)
	writeData(w, http.StatusOK, view)
}

func (h *CalendarEventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	all := queryBool(r, "deleteAllInstances")

	if err := h.svc.Delete(r.Context(), auth.UserID(r.Context()), id, all); err != nil {
		writeServiceError(w, h.logger, "delete event", err)
		return
	}

	h.notify(r, "deleted", id, all)
	writeMessage(w, http.StatusOK, "Event deleted successfully")
}

// Feed exports the caller's calendar as iCalendar. Without a window it
// covers the year either side of today.
func (h *CalendarEventHandler) Feed(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	start := now.AddDate(-1, 0, 0)
	end := now.AddDate(1, 0, 0)

	if s := r.URL.Query().Get("start"); s != "" {
		t, err := parseFlexibleTime(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start must be RFC3339 or YYYY-MM-DD format")
			return
		}
		start = t
	}
	if s := r.URL.Query().Get("end"); s != "" {
		t, err := parseFlexibleTime(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "end must be RFC3339 or YYYY-MM-DD format")
			return
		}
		end = t
	}

	feed, err := h.svc.Feed(r.Context(), auth.UserID(r.Context()), start, end)
	if err != nil {
		writeServiceError(w, h.logger, "build feed", err)
		return
	}

	var buf bytes.Buffer
	if err := icalfeed.Write(&buf, feed); err != nil {
		writeServiceError(w, h.logger, "build feed", err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="focusblock.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("write feed", "error", err)
	}
}

func nonNil(events []model.EventView) []model.EventView {
	if events == nil {
		return []model.EventView{}
	}
	return events
}
