package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/focusblock/internal/model"
)

type EventStore struct {
	db *sql.DB
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

const eventCols = `id, user_id, title, start_time, end_time, task_id, subtasks, is_focus_session,
	recurrence_rule, recurrence_end_date, parent_event_id, original_start,
	is_recurring_instance, is_cancelled, created_at, updated_at`

func scanEvent(scanner interface{ Scan(...any) error }) (*model.CalendarEvent, error) {
	var e model.CalendarEvent
	var taskID, subtasks, rule, parentID sql.NullString
	var recurrenceEnd, originalStart sql.NullTime
	var focusInt, instanceInt, cancelledInt int

	err := scanner.Scan(&e.ID, &e.UserID, &e.Title, &e.Start, &e.End, &taskID, &subtasks, &focusInt,
		&rule, &recurrenceEnd, &parentID, &originalStart,
		&instanceInt, &cancelledInt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}

	e.Start = e.Start.UTC()
	e.End = e.End.UTC()
	e.IsFocusSession = focusInt != 0
	e.IsRecurringInstance = instanceInt != 0
	e.IsCancelled = cancelledInt != 0
	if taskID.Valid {
		e.TaskID = &taskID.String
	}
	if rule.Valid {
		e.RecurrenceRule = &rule.String
	}
	if recurrenceEnd.Valid {
		t := recurrenceEnd.Time.UTC()
		e.RecurrenceEndDate = &t
	}
	if parentID.Valid {
		e.ParentEventID = &parentID.String
	}
	if originalStart.Valid {
		t := originalStart.Time.UTC()
		e.OriginalStart = &t
	}
	e.Subtasks, err = decodeSubtasks(subtasks)
	if err != nil {
		return nil, err
	}

	return &e, nil
}

// CreateEvent inserts e, assigning an ID when it has none.
func (s *EventStore) CreateEvent(ctx context.Context, e *model.CalendarEvent) (*model.CalendarEvent, error) {
	id := e.ID
	if id == "" {
		id = uuid.NewString()
	}

	subtasks, err := encodeSubtasks(e.Subtasks)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO calendar_events (id, user_id, title, start_time, end_time, task_id, subtasks, is_focus_session,
			recurrence_rule, recurrence_end_date, parent_event_id, original_start, is_recurring_instance, is_cancelled)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, e.UserID, e.Title, e.Start.UTC(), e.End.UTC(), nullString(e.TaskID), subtasks, boolInt(e.IsFocusSession),
		nullString(e.RecurrenceRule), nullTime(e.RecurrenceEndDate), nullString(e.ParentEventID), nullTime(e.OriginalStart),
		boolInt(e.IsRecurringInstance), boolInt(e.IsCancelled),
	)
	if err != nil {
		return nil, fmt.Errorf("insert calendar event: %w", err)
	}

	return s.GetEvent(ctx, e.UserID, id)
}

// GetEvent returns the user's row with the given id, or nil when none exists.
func (s *EventStore) GetEvent(ctx context.Context, userID, id string) (*model.CalendarEvent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+eventCols+` FROM calendar_events WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query calendar event: %w", err)
	}
	return e, nil
}

// GetOverride returns the override row occupying a series slot, or nil.
func (s *EventStore) GetOverride(ctx context.Context, userID, parentID string, slot time.Time) (*model.CalendarEvent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+eventCols+` FROM calendar_events
		 WHERE user_id = ? AND parent_event_id = ? AND original_start = ?`,
		userID, parentID, slot.UTC(),
	)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query override: %w", err)
	}
	return e, nil
}

// FindEvents returns the user's rows matching f, ordered by start.
func (s *EventStore) FindEvents(ctx context.Context, userID string, f model.EventFilter) ([]model.CalendarEvent, error) {
	where := []string{"user_id = ?"}
	args := []any{userID}

	switch f.Kind {
	case model.KindPlain:
		where = append(where, "recurrence_rule IS NULL", "parent_event_id IS NULL")
		if !f.WindowStart.IsZero() {
			where = append(where, "start_time >= ?")
			args = append(args, f.WindowStart.UTC())
		}
		if !f.WindowEnd.IsZero() {
			where = append(where, "start_time <= ?")
			args = append(args, f.WindowEnd.UTC())
		}
	case model.KindSeries:
		where = append(where, "recurrence_rule IS NOT NULL", "parent_event_id IS NULL")
		if !f.WindowEnd.IsZero() {
			where = append(where, "start_time <= ?")
			args = append(args, f.WindowEnd.UTC())
		}
		if !f.WindowStart.IsZero() {
			where = append(where, "(recurrence_end_date IS NULL OR recurrence_end_date >= ?)")
			args = append(args, f.WindowStart.UTC())
		}
	case model.KindOverride:
		if len(f.ParentIDs) == 0 {
			return nil, nil
		}
		where = append(where, "parent_event_id IN ("+placeholders(len(f.ParentIDs))+")")
		for _, id := range f.ParentIDs {
			args = append(args, id)
		}
	default:
		return nil, fmt.Errorf("find events: unsupported kind %q", f.Kind)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventCols+` FROM calendar_events
		 WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY start_time ASC, id ASC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query calendar events: %w", err)
	}
	defer rows.Close()

	var events []model.CalendarEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan calendar event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func updateRow(ctx context.Context, x execer, e *model.CalendarEvent) (int64, error) {
	subtasks, err := encodeSubtasks(e.Subtasks)
	if err != nil {
		return 0, err
	}

	result, err := x.ExecContext(ctx,
		`UPDATE calendar_events
		 SET title = ?, start_time = ?, end_time = ?, task_id = ?, subtasks = ?, is_focus_session = ?,
		     recurrence_rule = ?, recurrence_end_date = ?, is_cancelled = ?
		 WHERE id = ? AND user_id = ?`,
		e.Title, e.Start.UTC(), e.End.UTC(), nullString(e.TaskID), subtasks, boolInt(e.IsFocusSession),
		nullString(e.RecurrenceRule), nullTime(e.RecurrenceEndDate), boolInt(e.IsCancelled),
		e.ID, e.UserID,
	)
	if err != nil {
		return 0, fmt.Errorf("update calendar event: %w", err)
	}
	return result.RowsAffected()
}

// UpdateEvent writes every mutable column of e.
func (s *EventStore) UpdateEvent(ctx context.Context, e *model.CalendarEvent) (*model.CalendarEvent, error) {
	n, err := updateRow(ctx, s.db, e)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return s.GetEvent(ctx, e.UserID, e.ID)
}

// UpdateSeries writes the series parent e and, when its start moved by delta,
// moves the slot of every child row by the same amount in one transaction.
// Tombstones and overrides still sitting on their slot move with it; an
// override that was rescheduled keeps its own times.
func (s *EventStore) UpdateSeries(ctx context.Context, e *model.CalendarEvent, delta time.Duration) (*model.CalendarEvent, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	n, err := updateRow(ctx, tx, e)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}

	if delta != 0 {
		children, err := seriesChildren(ctx, tx, e.UserID, e.ID)
		if err != nil {
			return nil, err
		}
		for _, c := range children {
			if c.OriginalStart == nil {
				continue
			}
			onSlot := c.Start.Equal(*c.OriginalStart)
			slot := c.OriginalStart.Add(delta)
			start, end := c.Start, c.End
			if c.IsCancelled || onSlot {
				start, end = start.Add(delta), end.Add(delta)
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE calendar_events SET original_start = ?, start_time = ?, end_time = ?
				 WHERE id = ? AND user_id = ?`,
				slot.UTC(), start.UTC(), end.UTC(), c.ID, c.UserID,
			); err != nil {
				return nil, fmt.Errorf("shift series child: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetEvent(ctx, e.UserID, e.ID)
}

func seriesChildren(ctx context.Context, tx *sql.Tx, userID, parentID string) ([]model.CalendarEvent, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+eventCols+` FROM calendar_events WHERE parent_event_id = ? AND user_id = ?`,
		parentID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query series children: %w", err)
	}
	defer rows.Close()

	var children []model.CalendarEvent
	for rows.Next() {
		c, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan series child: %w", err)
		}
		children = append(children, *c)
	}
	return children, rows.Err()
}

func (s *EventStore) DeleteEvent(ctx context.Context, userID, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM calendar_events WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("delete calendar event: %w", err)
	}
	return nil
}

// DeleteSeries removes a series parent and every row pointing at it in one
// transaction.
func (s *EventStore) DeleteSeries(ctx context.Context, userID, parentID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM calendar_events WHERE parent_event_id = ? AND user_id = ?", parentID, userID,
	); err != nil {
		return fmt.Errorf("delete series instances: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM calendar_events WHERE id = ? AND user_id = ?", parentID, userID,
	); err != nil {
		return fmt.Errorf("delete series parent: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func encodeSubtasks(subtasks []string) (sql.NullString, error) {
	if len(subtasks) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(subtasks)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode subtasks: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeSubtasks(ns sql.NullString) ([]string, error) {
	if !ns.Valid || ns.String == "" {
		return []string{}, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(ns.String), &out); err != nil {
		return nil, fmt.Errorf("decode subtasks: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
