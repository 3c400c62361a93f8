package recurrence

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Freq int

const (
	Daily Freq = iota
	Weekly
	Monthly
	Yearly
)

var freqNames = map[Freq]string{
	Daily:   "DAILY",
	Weekly:  "WEEKLY",
	Monthly: "MONTHLY",
	Yearly:  "YEARLY",
}

var freqFromName = map[string]Freq{
	"DAILY":   Daily,
	"WEEKLY":  Weekly,
	"MONTHLY": Monthly,
	"YEARLY":  Yearly,
}

var dayNames = map[string]time.Weekday{
	"SU": time.Sunday,
	"MO": time.Monday,
	"TU": time.Tuesday,
	"WE": time.Wednesday,
	"TH": time.Thursday,
	"FR": time.Friday,
	"SA": time.Saturday,
}

func (f Freq) String() string {
	return freqNames[f]
}

// Rule is a decoded recurrence definition. Only Freq, ByDay and ByMonthDay
// travel in the stored string; EndDate comes from the event row and
// Interval/Count are set programmatically.
type Rule struct {
	Freq       Freq
	Interval   int        // default 1; values below 1 are treated as 1
	ByDay      []string   // WEEKLY: two-letter codes as written, unknown codes never match
	ByMonthDay []int      // MONTHLY: days of month, out of range values never match
	EndDate    *time.Time // inclusive upper bound (nil = one year past the anchor)
	Count      int        // max occurrences (0 = unlimited)
}

// Parse decodes "FREQUENCY" or "FREQUENCY:P1,P2,...". It reports false for an
// empty string or an unknown frequency and never returns an error: callers
// treat such rows as non-recurring.
func Parse(s string) (Rule, bool) {
	if s == "" {
		return Rule{}, false
	}

	name, params, _ := strings.Cut(s, ":")
	f, ok := freqFromName[name]
	if !ok {
		return Rule{}, false
	}

	r := Rule{Freq: f, Interval: 1}
	if params == "" {
		return r, true
	}

	switch f {
	case Weekly:
		r.ByDay = splitParams(params)
	case Monthly:
		for _, p := range splitParams(params) {
			n, err := strconv.Atoi(p)
			if err != nil {
				continue
			}
			r.ByMonthDay = append(r.ByMonthDay, n)
		}
	}

	return r, true
}

func splitParams(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate is the strict check applied to rules supplied by clients. Parse
// stays lenient for rows that are already stored.
func Validate(s string) error {
	r, ok := Parse(s)
	if !ok {
		return fmt.Errorf("unknown recurrence rule %q", s)
	}
	for _, d := range r.ByDay {
		if _, ok := dayNames[d]; !ok {
			return fmt.Errorf("unknown weekday %q", d)
		}
	}
	_, params, _ := strings.Cut(s, ":")
	if r.Freq == Monthly && params != "" && len(r.ByMonthDay) != len(splitParams(params)) {
		return fmt.Errorf("invalid day of month in %q", s)
	}
	for _, d := range r.ByMonthDay {
		if d < 1 || d > 31 {
			return fmt.Errorf("day of month %d out of range", d)
		}
	}
	return nil
}

// String serializes the rule back to its stored form.
func (r Rule) String() string {
	s := freqNames[r.Freq]
	switch {
	case r.Freq == Weekly && len(r.ByDay) > 0:
		s += ":" + strings.Join(r.ByDay, ",")
	case r.Freq == Monthly && len(r.ByMonthDay) > 0:
		days := make([]string, len(r.ByMonthDay))
		for i, d := range r.ByMonthDay {
			days[i] = strconv.Itoa(d)
		}
		s += ":" + strings.Join(days, ",")
	}
	return s
}

// Describe returns a human-readable description of the rule.
func (r Rule) Describe() string {
	switch r.Freq {
	case Daily:
		if r.Interval > 1 {
			return fmt.Sprintf("Repeats every %d days", r.Interval)
		}
		return "Repeats daily"
	case Weekly:
		prefix := "Repeats weekly"
		if r.Interval == 2 {
			prefix = "Repeats every 2 weeks"
		} else if r.Interval > 2 {
			prefix = fmt.Sprintf("Repeats every %d weeks", r.Interval)
		}
		var names []string
		for _, code := range r.ByDay {
			if d, ok := dayNames[code]; ok {
				names = append(names, d.String()[:3])
			}
		}
		if len(names) > 0 {
			return prefix + " on " + strings.Join(names, ", ")
		}
		return prefix
	case Monthly:
		prefix := "Repeats monthly"
		if r.Interval > 1 {
			prefix = fmt.Sprintf("Repeats every %d months", r.Interval)
		}
		if len(r.ByMonthDay) > 0 {
			days := make([]string, len(r.ByMonthDay))
			for i, d := range r.ByMonthDay {
				days[i] = ordinal(d)
			}
			return prefix + " on the " + strings.Join(days, ", ")
		}
		return prefix
	case Yearly:
		if r.Interval > 1 {
			return fmt.Sprintf("Repeats every %d years", r.Interval)
		}
		return "Repeats yearly"
	}
	return ""
}

func ordinal(n int) string {
	suffix := "th"
	switch {
	case n%100 >= 11 && n%100 <= 13:
	case n%10 == 1:
		suffix = "st"
	case n%10 == 2:
		suffix = "nd"
	case n%10 == 3:
		suffix = "rd"
	}
	return strconv.Itoa(n) + suffix
}
