package calendar

import (
	"context"
	"time"

	"github.com/dukerupert/focusblock/internal/model"
)

// Repository is the storage the calendar needs. Every method is scoped to
// the owning user, and lookups return nil with no error when a row is
// missing.
type Repository interface {
	FindEvents(ctx context.Context, userID string, f model.EventFilter) ([]model.CalendarEvent, error)
	GetEvent(ctx context.Context, userID, id string) (*model.CalendarEvent, error)
	GetOverride(ctx context.Context, userID, parentID string, slot time.Time) (*model.CalendarEvent, error)
	CreateEvent(ctx context.Context, e *model.CalendarEvent) (*model.CalendarEvent, error)
	UpdateEvent(ctx context.Context, e *model.CalendarEvent) (*model.CalendarEvent, error)
	UpdateSeries(ctx context.Context, e *model.CalendarEvent, delta time.Duration) (*model.CalendarEvent, error)
	DeleteEvent(ctx context.Context, userID, id string) error
	DeleteSeries(ctx context.Context, userID, parentID string) error
}

// TaskFinder looks up the task an event is scheduled for.
type TaskFinder interface {
	GetByID(ctx context.Context, userID, id string) (*model.Task, error)
}
