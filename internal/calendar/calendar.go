// Package calendar expands weekly recurring reminders into concrete
// occurrences. Each occurrence is scheduled like an ad-hoc reminder.
package calendar

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	robfigcron "github.com/robfig/cron/v3"

	"github.com/SlavaWebDeveloper/telegram-bot-reminder-Hypermarket-of-Health/internal/config"
)

// Entry is one weekly reminder: a weekday and wall-clock time in the
// recipient zone.
type Entry struct {
	Weekday time.Weekday
	Hour    int
	Minute  int
	Text    string
}

// Rule returns the entry as a standard 5-field cron rule.
func (e Entry) Rule() string {
	return fmt.Sprintf("%d %d * * %d", e.Minute, e.Hour, int(e.Weekday))
}

// Next returns the first activation strictly after t, in loc.
func (e Entry) Next(t time.Time, loc *time.Location) (time.Time, error) {
	schedule, err := robfigcron.ParseStandard(e.Rule())
	if err != nil {
		return time.Time{}, fmt.Errorf("calendar entry %s: %w", e.Rule(), err)
	}
	return schedule.Next(t.In(loc)), nil
}

// Occurrence is a concrete instance of an entry.
type Occurrence struct {
	At   time.Time
	Text string
}

// Calendar is an immutable set of weekly entries evaluated in one zone.
type Calendar struct {
	entries []Entry
	loc     *time.Location
}

// New creates a calendar. A nil loc means time.Local.
func New(entries []Entry, loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.Local
	}
	return &Calendar{entries: append([]Entry(nil), entries...), loc: loc}
}

// FromConfig parses the configured entries.
func FromConfig(entries []config.CalendarEntry, loc *time.Location) (*Calendar, error) {
	parsed := make([]Entry, 0, len(entries))
	for i, ce := range entries {
		wd, err := ParseWeekday(ce.Weekday)
		if err != nil {
			return nil, fmt.Errorf("calendar[%d]: %w", i, err)
		}
		if ce.Hour < 0 || ce.Hour > 23 || ce.Minute < 0 || ce.Minute > 59 {
			return nil, fmt.Errorf("calendar[%d]: time %02d:%02d out of range", i, ce.Hour, ce.Minute)
		}
		parsed = append(parsed, Entry{Weekday: wd, Hour: ce.Hour, Minute: ce.Minute, Text: ce.Text})
	}
	return New(parsed, loc), nil
}

// Len returns the number of entries.
func (c *Calendar) Len() int { return len(c.entries) }

// Location returns the zone entries are evaluated in.
func (c *Calendar) Location() *time.Location { return c.loc }

// Next returns the earliest occurrence of any entry strictly after t.
func (c *Calendar) Next(t time.Time) (Occurrence, bool) {
	var best Occurrence
	found := false
	for _, e := range c.entries {
		at, err := e.Next(t, c.loc)
		if err != nil || at.IsZero() {
			continue
		}
		if !found || at.Before(best.At) {
			best = Occurrence{At: at, Text: e.Text}
			found = true
		}
	}
	return best, found
}

// Occurrences returns every occurrence in (from, to], ordered by time.
func (c *Calendar) Occurrences(from, to time.Time) []Occurrence {
	var out []Occurrence
	for _, e := range c.entries {
		at := from
		for {
			next, err := e.Next(at, c.loc)
			if err != nil || next.IsZero() || next.After(to) {
				break
			}
			out = append(out, Occurrence{At: next, Text: e.Text})
			at = next
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday, "воскресенье": time.Sunday, "вс": time.Sunday,
	"monday": time.Monday, "mon": time.Monday, "понедельник": time.Monday, "пн": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "вторник": time.Tuesday, "вт": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday, "среда": time.Wednesday, "ср": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "четверг": time.Thursday, "чт": time.Thursday,
	"friday": time.Friday, "fri": time.Friday, "пятница": time.Friday, "пт": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday, "суббота": time.Saturday, "сб": time.Saturday,
}

// ParseWeekday accepts English or Russian names, their short forms, or a
// number 0-7 (0 and 7 are Sunday, as in cron).
func ParseWeekday(s string) (time.Weekday, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if wd, ok := weekdayNames[key]; ok {
		return wd, nil
	}
	if n, err := strconv.Atoi(key); err == nil && n >= 0 && n <= 7 {
		return time.Weekday(n % 7), nil
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}
