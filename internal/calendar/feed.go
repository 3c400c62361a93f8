package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/focusblock/internal/icalfeed"
	"github.com/dukerupert/focusblock/internal/model"
	"github.com/dukerupert/focusblock/internal/recurrence"
)

// Feed gathers the rows an iCalendar export of the window needs. Series are
// exported whole, as a rule plus exceptions, rather than expanded.
func (s *Service) Feed(ctx context.Context, userID string, windowStart, windowEnd time.Time) (icalfeed.Feed, error) {
	ws, we := windowStart.UTC(), windowEnd.UTC()
	if !ws.IsZero() && !we.IsZero() && we.Before(ws) {
		return icalfeed.Feed{}, fmt.Errorf("%w: window end is before window start", ErrValidation)
	}

	plain, err := s.repo.FindEvents(ctx, userID, model.EventFilter{Kind: model.KindPlain, WindowStart: ws, WindowEnd: we})
	if err != nil {
		return icalfeed.Feed{}, fmt.Errorf("find plain events: %w", err)
	}
	found, err := s.repo.FindEvents(ctx, userID, model.EventFilter{Kind: model.KindSeries, WindowStart: ws, WindowEnd: we})
	if err != nil {
		return icalfeed.Feed{}, fmt.Errorf("find series: %w", err)
	}

	series := found[:0]
	for _, parent := range found {
		if _, ok := recurrence.Parse(*parent.RecurrenceRule); !ok {
			s.logger.Warn("leaving series out of feed", "event_id", parent.ID, "rule", *parent.RecurrenceRule)
			continue
		}
		series = append(series, parent)
	}

	parentIDs := make([]string, len(series))
	for i := range series {
		parentIDs[i] = series[i].ID
	}
	overrides, err := s.repo.FindEvents(ctx, userID, model.EventFilter{Kind: model.KindOverride, ParentIDs: parentIDs})
	if err != nil {
		return icalfeed.Feed{}, fmt.Errorf("find overrides: %w", err)
	}

	return icalfeed.Feed{
		GeneratedAt: s.now().UTC(),
		Events:      plain,
		Series:      series,
		Overrides:   overrides,
	}, nil
}
