package model

import "time"

// EventKind classifies a calendar row or view.
type EventKind string

const (
	KindPlain    EventKind = "plain"
	KindSeries   EventKind = "series"
	KindInstance EventKind = "instance"
	KindOverride EventKind = "override"
)

// CalendarEvent is a persisted calendar row: a plain event, a series parent
// carrying a recurrence rule, or an override row pinned to one slot of a
// series via ParentEventID and OriginalStart.
type CalendarEvent struct {
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
	OriginalStart       *time.Time `json:"originalStart"`
	IsRecurringInstance bool       `json:"isRecurringInstance"`
	IsCancelled         bool       `json:"isCancelled"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// Kind reports how the row participates in recurrence.
func (e *CalendarEvent) Kind() EventKind {
	switch {
	case e.ParentEventID != nil:
		return KindOverride
	case e.RecurrenceRule != nil:
		return KindSeries
	default:
		return KindPlain
	}
}

// EventFilter selects rows for FindEvents. Zero window bounds are open.
//
//   - KindPlain: non-recurring rows with Start in [WindowStart, WindowEnd].
//   - KindSeries: series parents with Start <= WindowEnd whose recurrence end
//     is unset or >= WindowStart.
//   - KindOverride: override rows whose parent is in ParentIDs, cancelled
//     rows included.
type EventFilter struct {
	Kind        EventKind
	WindowStart time.Time
	WindowEnd   time.Time
	ParentIDs   []string
}
