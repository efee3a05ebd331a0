package options

import (
	"slices"
	"time"

	"github.com/aouyang1/forecastd/event"
	"github.com/aouyang1/forecastd/feature"
)

// EventOptions configures indicator regressors for explicit events and, optionally, the US
// federal holidays.
type EventOptions struct {
	Events         []event.Event `json:"events"`
	Holidays       bool          `json:"holidays"`
	HolidayPadding time.Duration `json:"holiday_padding"`
}

// occurrences returns every event window that overlaps [start, end].
func (e EventOptions) occurrences(start, end time.Time) []event.Event {
	events := make([]event.Event, 0, len(e.Events))
	for _, evt := range e.Events {
		if err := evt.Valid(); err != nil {
			continue
		}
		events = append(events, evt)
	}
	if e.Holidays {
		for _, hol := range event.USHolidays() {
			events = append(events, event.Holiday(hol, start, end, e.HolidayPadding, e.HolidayPadding)...)
		}
	}
	return events
}

// Resolve returns the sorted event names active for at least one training timestamp and
// inactive for at least one, so the regressor is identifiable next to the intercept.
func (e EventOptions) Resolve(t []time.Time) []string {
	if len(t) == 0 {
		return nil
	}
	active := make(map[string]int)
	for _, evt := range e.occurrences(t[0], t[len(t)-1]) {
		for _, tPnt := range t {
			if evt.Active(tPnt) {
				active[evt.Name]++
			}
		}
	}

	names := make([]string, 0, len(active))
	for name, cnt := range active {
		if cnt > 0 && cnt < len(t) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

func (e EventOptions) generateFeatures(t []time.Time, names []string) *feature.Set {
	feat := feature.NewSet()
	if len(t) == 0 || len(names) == 0 {
		return feat
	}
	columns := make(map[string][]float64, len(names))
	for _, name := range names {
		columns[name] = make([]float64, len(t))
	}

	for _, evt := range e.occurrences(t[0], t[len(t)-1]) {
		col, exists := columns[evt.Name]
		if !exists {
			continue
		}
		for i, tPnt := range t {
			if evt.Active(tPnt) {
				col[i] = 1.0
			}
		}
	}
	for _, name := range names {
		feat.Set(feature.NewEvent(name), columns[name])
	}
	return feat
}
