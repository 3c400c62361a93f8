package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/focusblock/internal/model"
)

// Patch is a partial update. Nil fields are left untouched. TaskID is only
// applied when SetTaskID is true, so a nil TaskID can clear the link.
type Patch struct {
	Title          *string
	Start          *time.Time
	End            *time.Time
	IsFocusSession *bool
	SetTaskID      bool
	TaskID         *string
	Subtasks       *[]string
}

func (p Patch) apply(e *model.CalendarEvent) {
	if p.Title != nil {
		e.Title = strings.TrimSpace(*p.Title)
	}
	if p.Start != nil {
		e.Start = p.Start.UTC()
	}
	if p.End != nil {
		e.End = p.End.UTC()
	}
	if p.IsFocusSession != nil {
		e.IsFocusSession = *p.IsFocusSession
	}
	if p.SetTaskID {
		e.TaskID = p.TaskID
	}
	if p.Subtasks != nil {
		e.Subtasks = append([]string{}, (*p.Subtasks)...)
	}
}

// shifted translates the start and end of p, expressed against an instance
// shown at [refStart, refEnd], onto the series anchor so every occurrence
// moves by the same amount.
func (p Patch) shifted(parent *model.CalendarEvent, refStart, refEnd time.Time) Patch {
	out := p
	if p.Start != nil {
		t := parent.Start.Add(p.Start.Sub(refStart))
		out.Start = &t
	}
	if p.End != nil {
		t := parent.End.Add(p.End.Sub(refEnd))
		out.End = &t
	}
	return out
}

// target is what an event id resolves to: a stored row, a generator slot
// of a series that has no row yet, or both when an override sits in a slot.
type target struct {
	row       *model.CalendarEvent
	parent    *model.CalendarEvent
	slotStart time.Time
	slotEnd   time.Time
}

func (t *target) virtual() bool { return t.row == nil }

// shown is the span a client sees for the target.
func (t *target) shown() (time.Time, time.Time) {
	if t.row != nil {
		return t.row.Start, t.row.End
	}
	return t.slotStart, t.slotEnd
}

func (s *Service) resolveTarget(ctx context.Context, userID, id string) (*target, error) {
	row, err := s.repo.GetEvent(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if row != nil {
		return s.resolveRow(ctx, userID, row)
	}

	parentID, slot, ok := model.ParseInstanceID(id)
	if !ok {
		return nil, ErrNotFound
	}
	parent, err := s.repo.GetEvent(ctx, userID, parentID)
	if err != nil {
		return nil, err
	}
	if parent == nil || parent.Kind() != model.KindSeries {
		return nil, ErrNotFound
	}

	occs, _ := s.occurrences(parent, slot, slot.Add(time.Millisecond), 1)
	if len(occs) == 0 || occs[0].Start.UnixMilli() != slot.UnixMilli() {
		return nil, ErrNotFound
	}
	occ := occs[0]

	override, err := s.repo.GetOverride(ctx, userID, parent.ID, occ.Start)
	if err != nil {
		return nil, err
	}
	if override != nil {
		if override.IsCancelled {
			return nil, ErrNotFound
		}
		return &target{row: override, parent: parent, slotStart: occ.Start, slotEnd: occ.End}, nil
	}
	return &target{parent: parent, slotStart: occ.Start, slotEnd: occ.End}, nil
}

func (s *Service) resolveRow(ctx context.Context, userID string, row *model.CalendarEvent) (*target, error) {
	switch row.Kind() {
	case model.KindSeries:
		return &target{row: row, parent: row, slotStart: row.Start, slotEnd: row.End}, nil
	case model.KindOverride:
		if row.IsCancelled {
			return nil, ErrNotFound
		}
		parent, err := s.repo.GetEvent(ctx, userID, *row.ParentEventID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, ErrNotFound
		}
		t := &target{row: row, parent: parent, slotStart: row.Start, slotEnd: row.End}
		if row.OriginalStart != nil {
			t.slotStart = *row.OriginalStart
			t.slotEnd = t.slotStart.Add(parent.End.Sub(parent.Start))
		}
		return t, nil
	default:
		return &target{row: row}, nil
	}
}

// materialize builds the override row for a slot of parent.
func materialize(parent *model.CalendarEvent, slotStart, slotEnd time.Time) *model.CalendarEvent {
	parentID := parent.ID
	slot := slotStart
	return &model.CalendarEvent{
		UserID:              parent.UserID,
		Title:               parent.Title,
		Start:               slotStart,
		End:                 slotEnd,
		TaskID:              parent.TaskID,
		Subtasks:            append([]string{}, parent.Subtasks...),
		IsFocusSession:      parent.IsFocusSession,
		ParentEventID:       &parentID,
		OriginalStart:       &slot,
		IsRecurringInstance: true,
	}
}

// Update applies p to the event named by id. With updateAll an instance edit
// is redirected to its series; otherwise only that occurrence changes, and a
// virtual occurrence gets an override row of its own.
func (s *Service) Update(ctx context.Context, userID, id string, p Patch, updateAll bool) (model.EventView, error) {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return model.EventView{}, fmt.Errorf("%w: title cannot be empty", ErrValidation)
	}
	if p.SetTaskID && p.TaskID != nil && *p.TaskID == "" {
		p.TaskID = nil
	}
	if p.SetTaskID && p.TaskID != nil {
		task, err := s.tasks.GetByID(ctx, userID, *p.TaskID)
		if err != nil {
			return model.EventView{}, fmt.Errorf("find task: %w", err)
		}
		if task == nil {
			return model.EventView{}, ErrTaskNotFound
		}
	}

	t, err := s.resolveTarget(ctx, userID, id)
	if err != nil {
		return model.EventView{}, err
	}

	switch {
	case updateAll && t.parent != nil:
		parent := *t.parent
		patch := p
		if t.row == nil || t.row.ID != parent.ID {
			refStart, refEnd := t.shown()
			patch = p.shifted(&parent, refStart, refEnd)
		}
		patch.apply(&parent)
		updated, err := s.save(ctx, &parent, parent.Start.Sub(t.parent.Start))
		if err != nil {
			return model.EventView{}, err
		}
		return model.NewSeriesView(updated), nil

	case t.virtual():
		override := materialize(t.parent, t.slotStart, t.slotEnd)
		p.apply(override)
		if err := validateSpan(override); err != nil {
			return model.EventView{}, err
		}
		created, err := s.repo.CreateEvent(ctx, override)
		if err != nil {
			return model.EventView{}, err
		}
		s.logger.Debug("materialized override", "event_id", created.ID, "parent_id", t.parent.ID)
		return model.NewOverrideView(created), nil

	default:
		row := *t.row
		p.apply(&row)
		updated, err := s.save(ctx, &row, row.Start.Sub(t.row.Start))
		if err != nil {
			return model.EventView{}, err
		}
		return model.ViewOf(updated), nil
	}
}

// save writes e back. A series parent whose start moved by delta takes its
// override and tombstone rows along so they keep matching their slots.
func (s *Service) save(ctx context.Context, e *model.CalendarEvent, delta time.Duration) (*model.CalendarEvent, error) {
	if err := validateSpan(e); err != nil {
		return nil, err
	}
	if e.RecurrenceEndDate != nil && e.RecurrenceEndDate.Before(e.Start) {
		return nil, fmt.Errorf("%w: recurrence end date is before start", ErrValidation)
	}
	var updated *model.CalendarEvent
	var err error
	if e.Kind() == model.KindSeries {
		updated, err = s.repo.UpdateSeries(ctx, e, delta)
	} else {
		updated, err = s.repo.UpdateEvent(ctx, e)
	}
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrNotFound
	}
	return updated, nil
}

// Delete removes the event named by id. With deleteAll the whole series goes;
// otherwise only that occurrence is hidden, using a cancelled override row.
func (s *Service) Delete(ctx context.Context, userID, id string, deleteAll bool) error {
	t, err := s.resolveTarget(ctx, userID, id)
	if err != nil {
		return err
	}

	switch {
	case deleteAll && t.parent != nil:
		return s.repo.DeleteSeries(ctx, userID, t.parent.ID)

	case t.virtual():
		tombstone := materialize(t.parent, t.slotStart, t.slotEnd)
		tombstone.IsCancelled = true
		_, err := s.repo.CreateEvent(ctx, tombstone)
		return err

	case t.row.Kind() == model.KindOverride:
		row := *t.row
		row.IsCancelled = true
		_, err := s.repo.UpdateEvent(ctx, &row)
		return err

	case t.row.Kind() == model.KindSeries:
		return s.repo.DeleteSeries(ctx, userID, t.row.ID)

	default:
		return s.repo.DeleteEvent(ctx, userID, t.row.ID)
	}
}

func validateSpan(e *model.CalendarEvent) error {
	if e.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if !e.End.After(e.Start) {
		return fmt.Errorf("%w: end must be after start", ErrValidation)
	}
	return nil
}
