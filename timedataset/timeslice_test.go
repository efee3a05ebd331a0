package timedataset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestStartEndTime(t *testing.T) {
	testData := map[string]struct {
		tSlice TimeSlice
		start  time.Time
		end    time.Time
	}{
		"empty": {},
		"single": {
			tSlice: TimeSlice{day(2024, 1, 1)},
			start:  day(2024, 1, 1),
			end:    day(2024, 1, 1),
		},
		"ordered": {
			tSlice: TimeSlice{day(2024, 1, 1), day(2024, 1, 2), day(2024, 1, 5)},
			start:  day(2024, 1, 1),
			end:    day(2024, 1, 5),
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, td.start, td.tSlice.StartTime())
			assert.Equal(t, td.end, td.tSlice.EndTime())
		})
	}
}

func TestEstimateFreq(t *testing.T) {
	testData := map[string]struct {
		tSlice   TimeSlice
		expected time.Duration
		err      error
	}{
		"nil slice": {
			err: ErrCannotInferFreq,
		},
		"consistent frequencies": {
			tSlice:   TimeSlice{day(1970, 1, 1), day(1970, 1, 2), day(1970, 1, 3)},
			expected: 24 * time.Hour,
		},
		"most common gap wins": {
			tSlice: TimeSlice{
				day(1970, 1, 1), day(1970, 1, 2), day(1970, 1, 3),
				time.Date(1970, 1, 3, 1, 0, 0, 0, time.UTC),
			},
			expected: 24 * time.Hour,
		},
		"ties pick the smaller gap": {
			tSlice: TimeSlice{
				day(1970, 1, 1), day(1970, 1, 2), day(1970, 1, 3),
				time.Date(1970, 1, 3, 1, 0, 0, 0, time.UTC),
				time.Date(1970, 1, 3, 2, 0, 0, 0, time.UTC),
			},
			expected: time.Hour,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			freq, err := td.tSlice.EstimateFreq()
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, td.expected, freq)
		})
	}
}

func TestEstimateStep(t *testing.T) {
	testData := map[string]struct {
		tSlice   TimeSlice
		expected Step
		err      error
	}{
		"too short": {
			tSlice: TimeSlice{day(2024, 1, 1)},
			err:    ErrCannotInferFreq,
		},
		"daily": {
			tSlice:   TimeSlice{day(2024, 1, 30), day(2024, 1, 31), day(2024, 2, 1)},
			expected: Step{Duration: 24 * time.Hour},
		},
		"monthly": {
			tSlice:   TimeSlice{day(2024, 1, 1), day(2024, 2, 1), day(2024, 3, 1), day(2024, 4, 1)},
			expected: Step{Months: 1},
		},
		"monthly with a gap": {
			tSlice:   TimeSlice{day(2024, 1, 1), day(2024, 2, 1), day(2024, 3, 1), day(2024, 5, 1)},
			expected: Step{Months: 1},
		},
		"quarterly": {
			tSlice:   TimeSlice{day(2023, 1, 1), day(2023, 4, 1), day(2023, 7, 1), day(2023, 10, 1)},
			expected: Step{Months: 3},
		},
		"month end": {
			tSlice:   TimeSlice{day(2024, 1, 31), day(2024, 2, 29), day(2024, 3, 31)},
			expected: Step{Months: 1, EndOfMonth: true},
		},
		"weekly is not calendar": {
			tSlice:   TimeSlice{day(2024, 1, 1), day(2024, 1, 8), day(2024, 1, 15)},
			expected: Step{Duration: 7 * 24 * time.Hour},
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			step, err := td.tSlice.EstimateStep()
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, td.expected, step)
		})
	}
}

func TestStepAdd(t *testing.T) {
	testData := map[string]struct {
		step     Step
		start    time.Time
		n        int
		expected time.Time
	}{
		"duration": {
			step:     Step{Duration: time.Hour},
			start:    day(2024, 1, 1),
			n:        3,
			expected: time.Date(2024, 1, 1, 3, 0, 0, 0, time.UTC),
		},
		"month clamps the day": {
			step:     Step{Months: 1},
			start:    day(2024, 1, 31),
			n:        1,
			expected: day(2024, 2, 29),
		},
		"month crosses the year": {
			step:     Step{Months: 1},
			start:    day(2024, 11, 15),
			n:        3,
			expected: day(2025, 2, 15),
		},
		"month end": {
			step:     Step{Months: 1, EndOfMonth: true},
			start:    day(2024, 2, 29),
			n:        1,
			expected: day(2024, 3, 31),
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, td.expected, td.step.Add(td.start, td.n))
		})
	}
}
