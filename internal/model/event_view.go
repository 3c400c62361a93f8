package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EventView is what the calendar API returns. Views are built only through
// the New*View constructors so every variant fills the same field set.
type EventView struct {
	Kind                EventKind  `json:"kind"`
	ID                  string     `json:"id"`
	UserID              string     `json:"userId"`
	Title               string     `json:"title"`
	Start               time.Time  `json:"start"`
	End                 time.Time  `json:"end"`
	TaskID              *string    `json:"taskId"`
	Subtasks            []string   `json:"subtasks"`
	IsFocusSession      bool       `json:"isFocusSession"`
	RecurrenceRule      *string    `json:"recurrenceRule"`
	RecurrenceEndDate   *time.Time `json:"recurrenceEndDate"`
	ParentEventID       *string    `json:"parentEventId"`
	OriginalStart       *time.Time `json:"originalStart,omitempty"`
	IsRecurringInstance bool       `json:"isRecurringInstance"`
}

func baseView(kind EventKind, e *CalendarEvent) EventView {
	return EventView{
		Kind:                kind,
		ID:                  e.ID,
		UserID:              e.UserID,
		Title:               e.Title,
		Start:               e.Start,
		End:                 e.End,
		TaskID:              e.TaskID,
		Subtasks:            subtasksOrEmpty(e.Subtasks),
		IsFocusSession:      e.IsFocusSession,
		RecurrenceRule:      e.RecurrenceRule,
		RecurrenceEndDate:   e.RecurrenceEndDate,
		ParentEventID:       e.ParentEventID,
		OriginalStart:       e.OriginalStart,
		IsRecurringInstance: e.IsRecurringInstance,
	}
}

func NewPlainView(e *CalendarEvent) EventView {
	return baseView(KindPlain, e)
}

func NewSeriesView(e *CalendarEvent) EventView {
	return baseView(KindSeries, e)
}

func NewOverrideView(e *CalendarEvent) EventView {
	v := baseView(KindOverride, e)
	v.IsRecurringInstance = true
	return v
}

// NewVirtualInstanceView builds the view of a generated occurrence of parent
// that has no row of its own.
func NewVirtualInstanceView(parent *CalendarEvent, start, end time.Time) EventView {
	v := baseView(KindInstance, parent)
	parentID := parent.ID
	slot := start
	v.ID = InstanceID(parent.ID, start)
	v.Start = start
	v.End = end
	v.ParentEventID = &parentID
	v.OriginalStart = &slot
	v.IsRecurringInstance = true
	return v
}

// ViewOf picks the constructor matching the row's kind.
func ViewOf(e *CalendarEvent) EventView {
	switch e.Kind() {
	case KindOverride:
		return NewOverrideView(e)
	case KindSeries:
		return NewSeriesView(e)
	default:
		return NewPlainView(e)
	}
}

// InstanceID derives the identifier of a virtual instance:
// "{parentID}_{start in epoch milliseconds}".
func InstanceID(parentID string, start time.Time) string {
	return fmt.Sprintf("%s_%d", parentID, start.UnixMilli())
}

// ParseInstanceID splits a virtual instance identifier. It reports false for
// identifiers of stored rows.
func ParseInstanceID(id string) (parentID string, start time.Time, ok bool) {
	i := strings.LastIndexByte(id, '_')
	if i <= 0 || i == len(id)-1 {
		return "", time.Time{}, false
	}
	ms, err := strconv.ParseInt(id[i+1:], 10, 64)
	if err != nil {
		return "", time.Time{}, false
	}
	return id[:i], time.UnixMilli(ms).UTC(), true
}

func subtasksOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
