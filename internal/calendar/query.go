package calendar

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dukerupert/focusblock/internal/model"
)

// QueryRange returns every event a user sees with a start inside the closed
// window [windowStart, windowEnd], series expanded into instances, ordered by
// start then id.
func (s *Service) QueryRange(ctx context.Context, userID string, windowStart, windowEnd time.Time) ([]model.EventView, error) {
	if windowStart.IsZero() || windowEnd.IsZero() {
		return nil, fmt.Errorf("%w: window start and end are required", ErrValidation)
	}
	ws, we := windowStart.UTC(), windowEnd.UTC()
	if we.Before(ws) {
		return nil, fmt.Errorf("%w: window end is before window start", ErrValidation)
	}

	plain, err := s.repo.FindEvents(ctx, userID, model.EventFilter{Kind: model.KindPlain, WindowStart: ws, WindowEnd: we})
	if err != nil {
		return nil, fmt.Errorf("find plain events: %w", err)
	}
	series, err := s.repo.FindEvents(ctx, userID, model.EventFilter{Kind: model.KindSeries, WindowStart: ws, WindowEnd: we})
	if err != nil {
		return nil, fmt.Errorf("find series: %w", err)
	}

	parentIDs := make([]string, len(series))
	for i := range series {
		parentIDs[i] = series[i].ID
	}
	overrides, err := s.repo.FindEvents(ctx, userID, model.EventFilter{Kind: model.KindOverride, ParentIDs: parentIDs})
	if err != nil {
		return nil, fmt.Errorf("find overrides: %w", err)
	}

	views := make([]model.EventView, 0, len(plain)+len(overrides))
	for i := range plain {
		views = append(views, model.NewPlainView(&plain[i]))
	}

	// An override occupies its original slot whether or not it moved.
	shadowed := make(map[string]struct{}, len(overrides))
	for i := range overrides {
		o := &overrides[i]
		if o.OriginalStart != nil {
			shadowed[model.InstanceID(*o.ParentEventID, *o.OriginalStart)] = struct{}{}
		}
		if o.IsCancelled || !inWindow(o.Start, ws, we) {
			continue
		}
		views = append(views, model.NewOverrideView(o))
	}

	for i := range series {
		parent := &series[i]
		occs, ok := s.occurrences(parent, ws, we, MaxSeriesInstances)
		if !ok {
			continue
		}
		for _, occ := range occs {
			if _, hit := shadowed[model.InstanceID(parent.ID, occ.Start)]; hit {
				continue
			}
			views = append(views, model.NewVirtualInstanceView(parent, occ.Start, occ.End))
		}
	}

	return dedupeAndSort(views), nil
}

// Day returns the events of the UTC calendar day containing date.
func (s *Service) Day(ctx context.Context, userID string, date time.Time) ([]model.EventView, error) {
	start := startOfDay(date)
	return s.QueryRange(ctx, userID, start, start.AddDate(0, 0, 1).Add(-time.Millisecond))
}

// Week returns the events of the Monday to Sunday week containing date.
func (s *Service) Week(ctx context.Context, userID string, date time.Time) ([]model.EventView, error) {
	day := startOfDay(date)
	offset := (int(day.Weekday()) + 6) % 7
	start := day.AddDate(0, 0, -offset)
	return s.QueryRange(ctx, userID, start, start.AddDate(0, 0, 7).Add(-time.Millisecond))
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func inWindow(t, from, to time.Time) bool {
	return !t.Before(from) && !t.After(to)
}

func dedupeAndSort(views []model.EventView) []model.EventView {
	seen := make(map[string]struct{}, len(views))
	out := views[:0]
	for _, v := range views {
		if _, dup := seen[v.ID]; dup {
			continue
		}
		seen[v.ID] = struct{}{}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
