package recurrence

import (
	"sort"
	"time"
)

const (
	// MaxIterations bounds the candidate walk regardless of the rule, so a
	// pathological rule can never spin a request handler.
	MaxIterations = 10000

	// DefaultHorizon is how far past the anchor an open-ended rule is walked.
	DefaultHorizon = 365 * 24 * time.Hour
)

// Occurrence represents a single generated occurrence of a recurring event.
type Occurrence struct {
	Start time.Time
	End   time.Time
}

// Generate expands rule from the anchor span and returns at most maxInstances
// occurrences in ascending order. Every occurrence keeps the anchor's duration.
func Generate(anchorStart, anchorEnd time.Time, rule Rule, maxInstances int) []Occurrence {
	return GenerateWindow(anchorStart, anchorEnd, rule, time.Time{}, time.Time{}, maxInstances)
}

// GenerateWindow is Generate restricted to occurrences starting in [from, to].
// A zero from or to leaves that side open. Only occurrences inside the window
// count toward maxInstances; rule.Count and MaxIterations are still counted
// from the anchor.
func GenerateWindow(anchorStart, anchorEnd time.Time, rule Rule, from, to time.Time, maxInstances int) []Occurrence {
	if maxInstances <= 0 {
		return nil
	}

	duration := anchorEnd.Sub(anchorStart)
	until := anchorStart.Add(DefaultHorizon)
	if rule.EndDate != nil {
		until = *rule.EndDate
	}
	if !to.IsZero() && to.Before(until) {
		until = to
	}

	w := newWalker(rule, anchorStart)
	var out []Occurrence
	matched := 0
	cur := anchorStart

	for step := 0; step < MaxIterations && len(out) < maxInstances; step++ {
		if cur.After(until) {
			break
		}
		if rule.Count > 0 && matched >= rule.Count {
			break
		}

		if w.includes(cur) {
			matched++
			if from.IsZero() || !cur.Before(from) {
				out = append(out, Occurrence{Start: cur, End: cur.Add(duration)})
			}
		}

		next, ok := w.next(cur)
		if !ok {
			break
		}
		cur = next
	}

	return out
}

// walker produces candidate dates for a rule. Index based frequencies derive
// the k-th candidate from the anchor so month and year rollover never drifts.
type walker struct {
	freq      Freq
	anchor    time.Time
	interval  int
	weekdays  []int // Monday-based offsets, sorted
	monthDays []int // sorted, within 1..31
	byDay     bool
	byMonth   bool
	k         int
}

func newWalker(rule Rule, anchor time.Time) *walker {
	w := &walker{
		freq:     rule.Freq,
		anchor:   anchor,
		interval: rule.Interval,
	}
	if w.interval < 1 {
		w.interval = 1
	}

	if rule.Freq == Weekly && len(rule.ByDay) > 0 {
		w.byDay = true
		seen := map[int]bool{}
		for _, code := range rule.ByDay {
			wd, ok := dayNames[code]
			if !ok {
				continue
			}
			off := mondayOffset(wd)
			if !seen[off] {
				seen[off] = true
				w.weekdays = append(w.weekdays, off)
			}
		}
		sort.Ints(w.weekdays)
	}

	if rule.Freq == Monthly && len(rule.ByMonthDay) > 0 {
		w.byMonth = true
		seen := map[int]bool{}
		for _, d := range rule.ByMonthDay {
			if d < 1 || d > 31 || seen[d] {
				continue
			}
			seen[d] = true
			w.monthDays = append(w.monthDays, d)
		}
		sort.Ints(w.monthDays)
	}

	return w
}

func (w *walker) includes(t time.Time) bool {
	switch w.freq {
	case Daily:
		return true
	case Weekly:
		if w.byDay {
			off := mondayOffset(t.Weekday())
			for _, o := range w.weekdays {
				if o == off {
					return true
				}
			}
			return false
		}
		return t.Weekday() == w.anchor.Weekday()
	case Monthly:
		if w.byMonth {
			for _, d := range w.monthDays {
				if d == t.Day() {
					return true
				}
			}
			return false
		}
		return t.Day() == w.anchor.Day()
	case Yearly:
		return t.Month() == w.anchor.Month() && t.Day() == w.anchor.Day()
	}
	return false
}

func (w *walker) next(cur time.Time) (time.Time, bool) {
	switch w.freq {
	case Daily:
		w.k++
		return w.anchor.AddDate(0, 0, w.k*w.interval), true
	case Weekly:
		if w.byDay {
			return w.nextWeekday(cur)
		}
		w.k++
		return w.anchor.AddDate(0, 0, 7*w.k*w.interval), true
	case Monthly:
		if w.byMonth {
			return w.nextMonthDay(cur)
		}
		w.k++
		return w.anchor.AddDate(0, w.k*w.interval, 0), true
	case Yearly:
		w.k++
		return w.anchor.AddDate(w.k*w.interval, 0, 0), true
	}
	return time.Time{}, false
}

// nextWeekday moves to the next listed weekday in cur's week, or to the first
// listed weekday interval weeks later.
func (w *walker) nextWeekday(cur time.Time) (time.Time, bool) {
	if len(w.weekdays) == 0 {
		return time.Time{}, false
	}
	off := mondayOffset(cur.Weekday())
	for _, o := range w.weekdays {
		if o > off {
			return cur.AddDate(0, 0, o-off), true
		}
	}
	monday := cur.AddDate(0, 0, -off)
	return monday.AddDate(0, 0, 7*w.interval+w.weekdays[0]), true
}

// nextMonthDay moves to the next listed day that exists in cur's month, or
// into the month interval months later. When the smallest listed day does not
// exist there the 1st is returned and fails the inclusion test, which keeps
// every step inside the iteration budget.
func (w *walker) nextMonthDay(cur time.Time) (time.Time, bool) {
	if len(w.monthDays) == 0 {
		return time.Time{}, false
	}
	year, month, day := cur.Date()
	last := daysInMonth(year, month)
	for _, d := range w.monthDays {
		if d > day && d <= last {
			return w.at(year, month, d), true
		}
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, cur.Location()).AddDate(0, w.interval, 0)
	year, month = first.Year(), first.Month()
	d := w.monthDays[0]
	if d > daysInMonth(year, month) {
		d = 1
	}
	return w.at(year, month, d), true
}

func (w *walker) at(year int, month time.Month, day int) time.Time {
	a := w.anchor
	return time.Date(year, month, day, a.Hour(), a.Minute(), a.Second(), a.Nanosecond(), a.Location())
}

func mondayOffset(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
