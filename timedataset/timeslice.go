package timedataset

import (
	"fmt"
	"math"
	"time"
)

// avgMonth approximates a calendar month when a monthly step must be compared to durations.
const avgMonth = time.Duration(30.436875 * 24 * float64(time.Hour))

// TimeSlice adds helpers over an ordered slice of timestamps.
type TimeSlice []time.Time

func (t TimeSlice) StartTime() time.Time {
	if len(t) == 0 {
		return time.Time{}
	}
	return t[0]
}

func (t TimeSlice) EndTime() time.Time {
	if len(t) == 0 {
		return time.Time{}
	}
	return t[len(t)-1]
}

// EstimateFreq returns the most common spacing between consecutive timestamps. Ties are
// broken by the smaller spacing.
func (t TimeSlice) EstimateFreq() (time.Duration, error) {
	if len(t) < 2 {
		return 0, ErrCannotInferFreq
	}

	counts := make(map[time.Duration]int)
	for i := 1; i < len(t); i++ {
		counts[t[i].Sub(t[i-1])]++
	}

	var maxCnt int
	freq := time.Duration(math.MaxInt64)
	for delta, cnt := range counts {
		if cnt > maxCnt || (cnt == maxCnt && delta < freq) {
			maxCnt = cnt
			freq = delta
		}
	}
	return freq, nil
}

// Step is the spacing used to extend a series. Calendar steps advance whole months so monthly,
// quarterly and yearly series keep their day of the month.
type Step struct {
	Months     int
	EndOfMonth bool
	Duration   time.Duration
}

// Approx returns the step as a duration.
func (s Step) Approx() time.Duration {
	if s.Months > 0 {
		return time.Duration(s.Months) * avgMonth
	}
	return s.Duration
}

// Add advances t by n steps.
func (s Step) Add(t time.Time, n int) time.Time {
	if s.Months == 0 {
		return t.Add(time.Duration(n) * s.Duration)
	}
	return addMonths(t, n*s.Months, s.EndOfMonth)
}

func (s Step) String() string {
	switch {
	case s.Months == 0:
		return s.Duration.String()
	case s.EndOfMonth:
		return fmt.Sprintf("%dmo (month end)", s.Months)
	}
	return fmt.Sprintf("%dmo", s.Months)
}

// EstimateStep prefers a calendar step when at least half of the gaps are the same whole
// number of months, otherwise it falls back to EstimateFreq.
func (t TimeSlice) EstimateStep() (Step, error) {
	if len(t) < 2 {
		return Step{}, ErrCannotInferFreq
	}

	allMonthEnd := isMonthEnd(t[0])
	counts := make(map[int]int)
	for i := 1; i < len(t); i++ {
		allMonthEnd = allMonthEnd && isMonthEnd(t[i])
		if m, ok := monthsBetween(t[i-1], t[i]); ok {
			counts[m]++
		}
	}

	var months, maxCnt int
	for m, cnt := range counts {
		if cnt > maxCnt || (cnt == maxCnt && m < months) {
			months = m
			maxCnt = cnt
		}
	}
	if maxCnt > 0 && 2*maxCnt >= len(t)-1 {
		return Step{Months: months, EndOfMonth: allMonthEnd}, nil
	}

	freq, err := t.EstimateFreq()
	if err != nil {
		return Step{}, err
	}
	return Step{Duration: freq}, nil
}

// monthsBetween reports the whole number of months from a to b when b lands on the same day
// and clock time, or both fall on the last day of their month.
func monthsBetween(a, b time.Time) (int, bool) {
	if a.Hour() != b.Hour() || a.Minute() != b.Minute() || a.Second() != b.Second() || a.Nanosecond() != b.Nanosecond() {
		return 0, false
	}
	months := (b.Year()-a.Year())*12 + int(b.Month()-a.Month())
	if months < 1 {
		return 0, false
	}
	if a.Day() == b.Day() || (isMonthEnd(a) && isMonthEnd(b)) {
		return months, true
	}
	return 0, false
}

func isMonthEnd(t time.Time) bool {
	return t.Day() == daysIn(t.Year(), t.Month(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// addMonths moves t by n months clamping the day to the target month. endOfMonth pins the
// result to the last day of the month.
func addMonths(t time.Time, n int, endOfMonth bool) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := daysIn(first.Year(), first.Month(), t.Location())
	day := min(t.Day(), last)
	if endOfMonth {
		day = last
	}
	return first.AddDate(0, 0, day-1)
}
