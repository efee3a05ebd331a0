// Package event describes calendar windows such as public holidays that are modelled as
// indicator regressors.
package event

import (
	"errors"
	"strings"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/us"
)

var (
	ErrStartAfterEnd = errors.New("event start time is after end time")
	ErrUnsetTime     = errors.New("unset event start or end time")
	ErrNoEventName   = errors.New("no event name")
)

// Event represents a named time span. Events sharing a name share a single regressor.
type Event struct {
	Name  string
	Start time.Time
	End   time.Time
}

func NewEvent(name string, start, end time.Time) Event {
	return Event{
		Name:  name,
		Start: start,
		End:   end,
	}
}

func (e *Event) Valid() error {
	if e.Start.IsZero() || e.End.IsZero() {
		return ErrUnsetTime
	}
	if e.Start.After(e.End) {
		return ErrStartAfterEnd
	}
	if e.Name == "" {
		return ErrNoEventName
	}
	return nil
}

// Active reports whether t falls within [Start, End).
func (e Event) Active(t time.Time) bool {
	return !t.Before(e.Start) && t.Before(e.End)
}

// USHolidays are the federal holidays modelled when holiday events are enabled.
func USHolidays() []*cal.Holiday {
	return []*cal.Holiday{
		us.NewYear,
		us.MemorialDay,
		us.IndependenceDay,
		us.LaborDay,
		us.ThanksgivingDay,
		us.ChristmasDay,
	}
}

// Name converts a holiday name into a feature friendly label.
func Name(hol *cal.Holiday) string {
	return strings.ReplaceAll(hol.Name, " ", "_")
}

// Holiday returns the observed occurrences of hol between start and end, inclusive, as day
// long events in the location of start padded by durBefore and durAfter.
func Holiday(hol *cal.Holiday, start, end time.Time, durBefore, durAfter time.Duration) []Event {
	startLoc := start.Location()
	name := Name(hol)

	events := []Event{}
	for i := start.Year(); i <= end.Year(); i++ {
		_, observed := hol.Calc(i)
		if observed.IsZero() {
			continue
		}
		y, m, d := observed.Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, startLoc)

		evt := Event{
			Name:  name,
			Start: day.Add(-durBefore),
			End:   day.Add(24 * time.Hour).Add(durAfter),
		}
		// keep any occurrence that overlaps the requested range
		if evt.End.After(start) && !evt.Start.After(end) {
			events = append(events, evt)
		}
	}
	return events
}
