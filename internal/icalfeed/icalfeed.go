// Package icalfeed renders calendar rows as an iCalendar (RFC 5545) feed.
//
// Series parents become a VEVENT carrying an RRULE, cancelled occurrences
// become EXDATE entries on that VEVENT, and edited occurrences become extra
// VEVENTs sharing the parent UID with a RECURRENCE-ID naming their slot.
package icalfeed

import (
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/dukerupert/focusblock/internal/model"
	"github.com/dukerupert/focusblock/internal/recurrence"
)

const (
	ProductID   = "-//focusblock//calendar feed//EN"
	utcStamp    = "20060102T150405Z"
	uidSuffix   = "@focusblock"
	defaultName = "focusblock"
)

// Feed is the set of rows to export.
type Feed struct {
	Name        string
	GeneratedAt time.Time
	Events      []model.CalendarEvent // plain events
	Series      []model.CalendarEvent // series parents
	Overrides   []model.CalendarEvent // override rows of Series, cancelled ones included
}

// Write serializes f to w. A series whose rule does not parse is an error;
// callers filter those out beforehand.
func Write(w io.Writer, f Feed) error {
	cal, err := Build(f)
	if err != nil {
		return err
	}
	return cal.SerializeTo(w)
}

// Build assembles the calendar without serializing it.
func Build(f Feed) (*ical.Calendar, error) {
	stamp := f.GeneratedAt
	if stamp.IsZero() {
		stamp = time.Now()
	}
	name := f.Name
	if name == "" {
		name = defaultName
	}

	cal := ical.NewCalendar()
	cal.SetProductId(ProductID)
	cal.SetMethod(ical.MethodPublish)
	cal.SetXWRCalName(name)

	for i := range f.Events {
		addEvent(cal, &f.Events[i], stamp)
	}

	byParent := make(map[string][]*model.CalendarEvent)
	for i := range f.Overrides {
		o := &f.Overrides[i]
		if o.ParentEventID == nil || o.OriginalStart == nil {
			continue
		}
		byParent[*o.ParentEventID] = append(byParent[*o.ParentEventID], o)
	}

	for i := range f.Series {
		parent := &f.Series[i]
		rule, ok := recurrence.Parse(deref(parent.RecurrenceRule))
		if !ok {
			return nil, fmt.Errorf("series %s: unparsable recurrence rule %q", parent.ID, deref(parent.RecurrenceRule))
		}
		if parent.RecurrenceEndDate != nil {
			until := parent.RecurrenceEndDate.UTC()
			rule.EndDate = &until
		}
		rrule, err := rule.RRule()
		if err != nil {
			return nil, fmt.Errorf("series %s: %w", parent.ID, err)
		}

		ev := addEvent(cal, parent, stamp)
		ev.AddRrule(rrule)

		for _, o := range byParent[parent.ID] {
			if o.IsCancelled {
				ev.AddExdate(o.OriginalStart.UTC().Format(utcStamp))
				continue
			}
			moved := addEvent(cal, o, stamp)
			moved.SetProperty(ical.ComponentPropertyUniqueId, parent.ID+uidSuffix)
			moved.SetProperty(ical.ComponentPropertyRecurrenceId, o.OriginalStart.UTC().Format(utcStamp))
		}
	}

	return cal, nil
}

func addEvent(cal *ical.Calendar, e *model.CalendarEvent, stamp time.Time) *ical.VEvent {
	ev := cal.AddEvent(e.ID + uidSuffix)
	ev.SetDtStampTime(stamp)
	ev.SetStartAt(e.Start)
	ev.SetEndAt(e.End)
	ev.SetSummary(e.Title)
	if !e.UpdatedAt.IsZero() {
		ev.SetModifiedAt(e.UpdatedAt)
	}
	if e.IsFocusSession {
		ev.SetProperty(ical.ComponentPropertyCategories, "FOCUS")
	}
	return ev
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
