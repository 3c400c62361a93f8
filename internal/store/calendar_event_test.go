package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/dukerupert/focusblock/internal/database"
	"github.com/dukerupert/focusblock/internal/model"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func setupTestDB(t *testing.T) (*EventStore, string) {
	t.Helper()
	db := openTestDB(t)
	u, err := NewUserStore(db).Create(context.Background(), "alice@example.com", "Alice")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return NewEventStore(db), u.ID
}

func strPtr(s string) *string { return &s }

func createEvent(t *testing.T, s *EventStore, e model.CalendarEvent) *model.CalendarEvent {
	t.Helper()
	got, err := s.CreateEvent(context.Background(), &e)
	if err != nil {
		t.Fatalf("create event %q: %v", e.Title, err)
	}
	return got
}

func TestCreateAndGetEvent(t *testing.T) {
	s, userID := setupTestDB(t)
	ctx := context.Background()

	start := time.Date(2026, 2, 5, 10, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 5, 11, 0, 0, 0, time.UTC)

	event := createEvent(t, s, model.CalendarEvent{
		UserID:         userID,
		Title:          "Deep work",
		Start:          start,
		End:            end,
		Subtasks:       []string{"outline", "draft"},
		IsFocusSession: true,
	})
	if event.ID == "" {
		t.Fatal("expected generated id")
	}
	if !event.Start.Equal(start) || !event.End.Equal(end) {
		t.Errorf("times = %v-%v, want %v-%v", event.Start, event.End, start, end)
	}
	if !event.IsFocusSession {
		t.Error("is_focus_session should be true")
	}
	if len(event.Subtasks) != 2 || event.Subtasks[1] != "draft" {
		t.Errorf("subtasks = %v", event.Subtasks)
	}
	if event.Kind() != model.KindPlain {
		t.Errorf("kind = %q, want plain", event.Kind())
	}

	got, err := s.GetEvent(ctx, userID, event.ID)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if got == nil || got.Title != "Deep work" {
		t.Fatalf("got %+v", got)
	}
}

func TestEmptySubtasksStoredAsNull(t *testing.T) {
	s, userID := setupTestDB(t)

	event := createEvent(t, s, model.CalendarEvent{
		UserID: userID,
		Title:  "No subtasks",
		Start:  time.Date(2026, 2, 5, 10, 0, 0, 0, time.UTC),
		End:    time.Date(2026, 2, 5, 11, 0, 0, 0, time.UTC),
	})
	if event.Subtasks == nil || len(event.Subtasks) != 0 {
		t.Errorf("subtasks = %#v, want empty slice", event.Subtasks)
	}

	var raw sql.NullString
	if err := s.db.QueryRow(`SELECT subtasks FROM calendar_events WHERE id = ?`, event.ID).Scan(&raw); err != nil {
		t.Fatalf("query raw subtasks: %v", err)
	}
	if raw.Valid {
		t.Errorf("raw subtasks = %q, want NULL", raw.String)
	}
}

func TestGetEventScopedToUser(t *testing.T) {
	s, userID := setupTestDB(t)
	ctx := context.Background()

	other, err := NewUserStore(s.db).Create(ctx, "bob@example.com", "Bob")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	event := createEvent(t, s, model.CalendarEvent{
		UserID: userID,
		Title:  "Private",
		Start:  time.Date(2026, 2, 5, 10, 0, 0, 0, time.UTC),
		End:    time.Date(2026, 2, 5, 11, 0, 0, 0, time.UTC),
	})

	got, err := s.GetEvent(ctx, other.ID, event.ID)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if got != nil {
		t.Error("expected nil for another user's event")
	}

	missing, err := s.GetEvent(ctx, userID, "does-not-exist")
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for nonexistent event")
	}
}

func TestFindEventsByKind(t *testing.T) {
	s, userID := setupTestDB(t)
	ctx := context.Background()

	day := func(d int) time.Time { return time.Date(2026, 3, d, 9, 0, 0, 0, time.UTC) }

	createEvent(t, s, model.CalendarEvent{UserID: userID, Title: "Before", Start: day(1), End: day(1).Add(time.Hour)})
	createEvent(t, s, model.CalendarEvent{UserID: userID, Title: "Inside", Start: day(5), End: day(5).Add(time.Hour)})
	createEvent(t, s, model.CalendarEvent{UserID: userID, Title: "Edge", Start: day(10), End: day(10).Add(time.Hour)})

	endedEarly := day(2)
	createEvent(t, s, model.CalendarEvent{UserID: userID, Title: "Ended series", Start: day(1), End: day(1).Add(time.Hour),
		RecurrenceRule: strPtr("DAILY"), RecurrenceEndDate: &endedEarly})
	live := createEvent(t, s, model.CalendarEvent{UserID: userID, Title: "Live series", Start: day(1), End: day(1).Add(time.Hour),
		RecurrenceRule: strPtr("WEEKLY")})
	createEvent(t, s, model.CalendarEvent{UserID: userID, Title: "Future series", Start: day(20), End: day(20).Add(time.Hour),
		RecurrenceRule: strPtr("DAILY")})

	slot := day(8)
	createEvent(t, s, model.CalendarEvent{UserID: userID, Title: "Moved", Start: day(9), End: day(9).Add(time.Hour),
		ParentEventID: &live.ID, OriginalStart: &slot, IsRecurringInstance: true})

	plain, err := s.FindEvents(ctx, userID, model.EventFilter{Kind: model.KindPlain, WindowStart: day(4), WindowEnd: day(10)})
	if err != nil {
		t.Fatalf("find plain: %v", err)
	}
	if len(plain) != 2 || plain[0].Title != "Inside" || plain[1].Title != "Edge" {
		t.Errorf("plain = %v, want [Inside Edge]", titles(plain))
	}

	series, err := s.FindEvents(ctx, userID, model.EventFilter{Kind: model.KindSeries, WindowStart: day(4), WindowEnd: day(10)})
	if err != nil {
		t.Fatalf("find series: %v", err)
	}
	if len(series) != 1 || series[0].ID != live.ID {
		t.Errorf("series = %v, want [Live series]", titles(series))
	}

	overrides, err := s.FindEvents(ctx, userID, model.EventFilter{Kind: model.KindOverride, ParentIDs: []string{live.ID}})
	if err != nil {
		t.Fatalf("find overrides: %v", err)
	}
	if len(overrides) != 1 || overrides[0].Title != "Moved" {
		t.Fatalf("overrides = %v, want [Moved]", titles(overrides))
	}
	if overrides[0].OriginalStart == nil || !overrides[0].OriginalStart.Equal(slot) {
		t.Errorf("original_start = %v, want %v", overrides[0].OriginalStart, slot)
	}
	if overrides[0].Kind() != model.KindOverride {
		t.Errorf("kind = %q, want override", overrides[0].Kind())
	}

	none, err := s.FindEvents(ctx, userID, model.EventFilter{Kind: model.KindOverride})
	if err != nil {
		t.Fatalf("find overrides without parents: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no overrides without parent ids, got %d", len(none))
	}
}

func TestGetOverride(t *testing.T) {
	s, userID := setupTestDB(t)
	ctx := context.Background()

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	parent := createEvent(t, s, model.CalendarEvent{UserID: userID, Title: "Standup", Start: start, End: start.Add(15 * time.Minute),
		RecurrenceRule: strPtr("DAILY")})

	slot := start.AddDate(0, 0, 3)
	createEvent(t, s, model.CalendarEvent{UserID: userID, Title: "Standup (late)", Start: slot.Add(time.Hour), End: slot.Add(75 * time.Minute),
		ParentEventID: &parent.ID, OriginalStart: &slot, IsRecurringInstance: true})

	got, err := s.GetOverride(ctx, userID, parent.ID, slot)
	if err != nil {
		t.Fatalf("get override: %v", err)
	}
	if got == nil || got.Title != "Standup (late)" {
		t.Fatalf("got %+v", got)
	}

	missing, err := s.GetOverride(ctx, userID, parent.ID, slot.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("get override: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for an unmaterialized slot")
	}
}

func TestUpdateEvent(t *testing.T) {
	s, userID := setupTestDB(t)
	ctx := context.Background()

	start := time.Date(2026, 2, 5, 10, 0, 0, 0, time.UTC)
	event := createEvent(t, s, model.CalendarEvent{UserID: userID, Title: "Original", Start: start, End: start.Add(time.Hour)})

	event.Title = "Updated"
	event.Start = start.Add(time.Hour)
	event.End = start.Add(2 * time.Hour)
	event.Subtasks = []string{"one"}
	event.IsCancelled = true

	updated, err := s.UpdateEvent(ctx, event)
	if err != nil {
		t.Fatalf("update event: %v", err)
	}
	if updated.Title != "Updated" || !updated.Start.Equal(start.Add(time.Hour)) {
		t.Errorf("updated = %+v", updated)
	}
	if !updated.IsCancelled {
		t.Error("is_cancelled should be true")
	}
	if len(updated.Subtasks) != 1 {
		t.Errorf("subtasks = %v", updated.Subtasks)
	}

	ghost := *event
	ghost.ID = "missing"
	got, err := s.UpdateEvent(ctx, &ghost)
	if err != nil {
		t.Fatalf("update missing: %v", err)
	}
	if got != nil {
		t.Error("expected nil when updating a missing row")
	}
}

func TestUpdateSeriesShiftsChildren(t *testing.T) {
	s, userID := setupTestDB(t)
	ctx := context.Background()

	anchor := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	parent := createEvent(t, s, model.CalendarEvent{
		UserID: userID, Title: "Standup", Start: anchor, End: anchor.Add(30 * time.Minute),
		RecurrenceRule: strPtr("DAILY"),
	})

	slot := func(day int) *time.Time {
		t := anchor.AddDate(0, 0, day)
		return &t
	}
	tombstone := createEvent(t, s, model.CalendarEvent{
		UserID: userID, Title: "Standup", Start: *slot(1), End: slot(1).Add(30 * time.Minute),
		ParentEventID: &parent.ID, OriginalStart: slot(1), IsRecurringInstance: true, IsCancelled: true,
	})
	retitled := createEvent(t, s, model.CalendarEvent{
		UserID: userID, Title: "Standup (demo)", Start: *slot(2), End: slot(2).Add(30 * time.Minute),
		ParentEventID: &parent.ID, OriginalStart: slot(2), IsRecurringInstance: true,
	})
	moved := time.Date(2026, 3, 5, 15, 0, 0, 0, time.UTC)
	rescheduled := createEvent(t, s, model.CalendarEvent{
		UserID: userID, Title: "Standup", Start: moved, End: moved.Add(30 * time.Minute),
		ParentEventID: &parent.ID, OriginalStart: slot(3), IsRecurringInstance: true,
	})

	parent.Start = parent.Start.Add(time.Hour)
	parent.End = parent.End.Add(time.Hour)
	updated, err := s.UpdateSeries(ctx, parent, time.Hour)
	if err != nil {
		t.Fatalf("update series: %v", err)
	}
	if !updated.Start.Equal(anchor.Add(time.Hour)) {
		t.Errorf("parent start = %v", updated.Start)
	}

	tests := []struct {
		name      string
		id        string
		wantSlot  time.Time
		wantStart time.Time
	}{
		{"tombstone follows slot", tombstone.ID, slot(1).Add(time.Hour), slot(1).Add(time.Hour)},
		{"override on slot follows slot", retitled.ID, slot(2).Add(time.Hour), slot(2).Add(time.Hour)},
		{"rescheduled override keeps its time", rescheduled.ID, slot(3).Add(time.Hour), moved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.GetEvent(ctx, userID, tt.id)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.OriginalStart == nil || !got.OriginalStart.Equal(tt.wantSlot) {
				t.Errorf("original_start = %v, want %v", got.OriginalStart, tt.wantSlot)
			}
			if !got.Start.Equal(tt.wantStart) {
				t.Errorf("start = %v, want %v", got.Start, tt.wantStart)
			}
			if got.End.Sub(got.Start) != 30*time.Minute {
				t.Errorf("duration = %v", got.End.Sub(got.Start))
			}
		})
	}

	hit, err := s.GetOverride(ctx, userID, parent.ID, slot(1).Add(time.Hour))
	if err != nil {
		t.Fatalf("get override: %v", err)
	}
	if hit == nil || hit.ID != tombstone.ID {
		t.Errorf("shifted slot should resolve to the tombstone, got %+v", hit)
	}
}

func TestUpdateSeriesMissingParent(t *testing.T) {
	s, userID := setupTestDB(t)
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	ghost := model.CalendarEvent{ID: "missing", UserID: userID, Title: "Ghost", Start: start, End: start.Add(time.Hour), RecurrenceRule: strPtr("DAILY")}

	got, err := s.UpdateSeries(context.Background(), &ghost, time.Hour)
	if err != nil {
		t.Fatalf("update series: %v", err)
	}
	if got != nil {
		t.Error("expected nil when the parent is missing")
	}
}

func TestDeleteSeries(t *testing.T) {
	s, userID := setupTestDB(t)
	ctx := context.Background()

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	parent := createEvent(t, s, model.CalendarEvent{UserID: userID, Title: "Gym", Start: start, End: start.Add(time.Hour),
		RecurrenceRule: strPtr("WEEKLY:MO,TH")})
	other := createEvent(t, s, model.CalendarEvent{UserID: userID, Title: "Other", Start: start, End: start.Add(time.Hour)})

	for i := 1; i <= 2; i++ {
		slot := start.AddDate(0, 0, 7*i)
		createEvent(t, s, model.CalendarEvent{UserID: userID, Title: "Gym moved", Start: slot.Add(time.Hour), End: slot.Add(2 * time.Hour),
			ParentEventID: &parent.ID, OriginalStart: &slot, IsRecurringInstance: true})
	}

	if err := s.DeleteSeries(ctx, userID, parent.ID); err != nil {
		t.Fatalf("delete series: %v", err)
	}

	var count int
	s.db.QueryRow(`SELECT COUNT(*) FROM calendar_events WHERE id = ? OR parent_event_id = ?`, parent.ID, parent.ID).Scan(&count)
	if count != 0 {
		t.Errorf("expected series rows gone, %d remain", count)
	}

	got, _ := s.GetEvent(ctx, userID, other.ID)
	if got == nil {
		t.Error("unrelated event should survive")
	}
}

func TestDeleteEvent(t *testing.T) {
	s, userID := setupTestDB(t)
	ctx := context.Background()

	start := time.Date(2026, 2, 5, 10, 0, 0, 0, time.UTC)
	event := createEvent(t, s, model.CalendarEvent{UserID: userID, Title: "Doomed", Start: start, End: start.Add(time.Hour)})

	if err := s.DeleteEvent(ctx, userID, event.ID); err != nil {
		t.Fatalf("delete event: %v", err)
	}
	got, err := s.GetEvent(ctx, userID, event.ID)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestEndMustFollowStart(t *testing.T) {
	s, userID := setupTestDB(t)

	start := time.Date(2026, 2, 5, 10, 0, 0, 0, time.UTC)
	e := model.CalendarEvent{UserID: userID, Title: "Backwards", Start: start, End: start.Add(-time.Hour)}
	if _, err := s.CreateEvent(context.Background(), &e); err == nil {
		t.Error("expected check constraint failure")
	}
}

func titles(events []model.CalendarEvent) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Title
	}
	return out
}
