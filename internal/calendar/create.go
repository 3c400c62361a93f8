package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/focusblock/internal/model"
	"github.com/dukerupert/focusblock/internal/recurrence"
)

// CreateInput describes a new plain event or series parent.
type CreateInput struct {
	Title             string
	Start             time.Time
	End               time.Time
	TaskID            *string
	Subtasks          []string
	IsFocusSession    bool
	RecurrenceRule    *string
	RecurrenceEndDate *time.Time
}

// Create stores a plain event, or a series parent when a rule is given. A
// linked task fills in the title and subtasks the input leaves empty.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (model.EventView, error) {
	e := &model.CalendarEvent{
		UserID:         userID,
		Title:          strings.TrimSpace(in.Title),
		Start:          in.Start.UTC(),
		End:            in.End.UTC(),
		Subtasks:       in.Subtasks,
		IsFocusSession: in.IsFocusSession,
	}

	if in.TaskID != nil && *in.TaskID != "" {
		task, err := s.tasks.GetByID(ctx, userID, *in.TaskID)
		if err != nil {
			return model.EventView{}, fmt.Errorf("find task: %w", err)
		}
		if task == nil {
			return model.EventView{}, ErrTaskNotFound
		}
		e.TaskID = &task.ID
		if e.Title == "" {
			e.Title = task.Title
		}
		if len(e.Subtasks) == 0 {
			e.Subtasks = task.Subtasks
		}
	}

	if in.Start.IsZero() || in.End.IsZero() {
		return model.EventView{}, fmt.Errorf("%w: start and end are required", ErrValidation)
	}
	if err := validateSpan(e); err != nil {
		return model.EventView{}, err
	}

	if in.RecurrenceRule != nil && *in.RecurrenceRule != "" {
		if err := recurrence.Validate(*in.RecurrenceRule); err != nil {
			return model.EventView{}, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		rule := *in.RecurrenceRule
		e.RecurrenceRule = &rule
		if in.RecurrenceEndDate != nil {
			until := in.RecurrenceEndDate.UTC()
			if until.Before(e.Start) {
				return model.EventView{}, fmt.Errorf("%w: recurrence end date is before start", ErrValidation)
			}
			e.RecurrenceEndDate = &until
		}
	}

	created, err := s.repo.CreateEvent(ctx, e)
	if err != nil {
		return model.EventView{}, err
	}
	return model.ViewOf(created), nil
}

// Get returns the view of a stored event or of a virtual occurrence.
func (s *Service) Get(ctx context.Context, userID, id string) (model.EventView, error) {
	t, err := s.resolveTarget(ctx, userID, id)
	if err != nil {
		return model.EventView{}, err
	}
	if t.virtual() {
		return model.NewVirtualInstanceView(t.parent, t.slotStart, t.slotEnd), nil
	}
	return model.ViewOf(t.row), nil
}
