package calendar

import (
	"log/slog"
	"time"

	"github.com/dukerupert/focusblock/internal/model"
	"github.com/dukerupert/focusblock/internal/recurrence"
)

// MaxSeriesInstances caps the occurrences one series contributes to a query.
const MaxSeriesInstances = 200

// Service answers calendar queries and applies edits to events and series.
type Service struct {
	repo   Repository
	tasks  TaskFinder
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now, which bounds open-ended series.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, tasks TaskFinder, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:   repo,
		tasks:  tasks,
		logger: logger.With("component", "calendar"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// occurrences expands parent into the slots starting in [from, to]. It
// reports false when the stored rule cannot be parsed.
func (s *Service) occurrences(parent *model.CalendarEvent, from, to time.Time, max int) ([]recurrence.Occurrence, bool) {
	if parent.RecurrenceRule == nil {
		return nil, false
	}
	rule, ok := recurrence.Parse(*parent.RecurrenceRule)
	if !ok {
		s.logger.Warn("skipping series with unparsable recurrence rule",
			"event_id", parent.ID, "rule", *parent.RecurrenceRule)
		return nil, false
	}

	until := s.now().UTC().AddDate(1, 0, 0)
	if parent.RecurrenceEndDate != nil {
		until = parent.RecurrenceEndDate.UTC()
	}
	rule.EndDate = &until

	return recurrence.GenerateWindow(parent.Start, parent.End, rule, from, to, max), true
}
