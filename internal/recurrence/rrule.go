package recurrence

import (
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

var rruleFreq = map[Freq]rrule.Frequency{
	Daily:   rrule.DAILY,
	Weekly:  rrule.WEEKLY,
	Monthly: rrule.MONTHLY,
	Yearly:  rrule.YEARLY,
}

var rruleWeekday = map[time.Weekday]rrule.Weekday{
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
	time.Sunday:    rrule.SU,
}

// ROption maps the rule onto an RFC 5545 option set anchored at dtstart.
// Unknown weekday codes and out of range month days are dropped, matching
// what Generate would emit for them. A zero dtstart leaves DTSTART unset.
func (r Rule) ROption(dtstart time.Time) rrule.ROption {
	opt := rrule.ROption{
		Freq:     rruleFreq[r.Freq],
		Interval: r.Interval,
		Dtstart:  dtstart,
		Wkst:     rrule.MO,
		Count:    r.Count,
	}
	if opt.Interval < 1 {
		opt.Interval = 1
	}
	if r.EndDate != nil {
		opt.Until = r.EndDate.UTC()
	}

	switch r.Freq {
	case Weekly:
		for _, code := range r.ByDay {
			if wd, ok := dayNames[code]; ok {
				opt.Byweekday = append(opt.Byweekday, rruleWeekday[wd])
			}
		}
	case Monthly:
		for _, d := range r.ByMonthDay {
			if d >= 1 && d <= 31 {
				opt.Bymonthday = append(opt.Bymonthday, d)
			}
		}
	}

	return opt
}

// RRule renders the rule as an iCalendar RRULE value, e.g.
// "FREQ=WEEKLY;BYDAY=MO,WE,FR".
func (r Rule) RRule() (string, error) {
	rr, err := rrule.NewRRule(r.ROption(time.Time{}))
	if err != nil {
		return "", err
	}
	s := rr.String()
	if i := strings.LastIndex(s, "RRULE:"); i >= 0 {
		s = s[i+len("RRULE:"):]
	}
	return s, nil
}
