// Package timedataset holds the univariate time series passed between pipeline stages.
package timedataset

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrNoTrainingData     = errors.New("no training data")
	ErrNonMontonic        = errors.New("time feature is not monotonic")
	ErrDatasetLenMismatch = errors.New("time feature has a different length than observations")
	ErrCannotInferFreq    = errors.New("cannot infer frequency from time slice")
	ErrInvalidHorizon     = errors.New("horizon must be at least one step")
)

// DefaultFreq is used when the spacing of a series cannot be inferred.
const DefaultFreq = 24 * time.Hour

// TimeDataset represents a time series storing a slice of time points and values.
// Both must be of the same length.
type TimeDataset struct {
	T []time.Time
	Y []float64
}

// NewUnivariateDataset returns an instance of a TimeDataset given a time and value slice.
// The inputs are copied so the caller's slices are never mutated downstream.
func NewUnivariateDataset(t []time.Time, y []float64) (*TimeDataset, error) {
	if len(y) == 0 {
		return nil, ErrNoTrainingData
	}
	if len(t) != len(y) {
		return nil, fmt.Errorf(
			"time feature has length of %d, but values has a length of %d, %w",
			len(t), len(y), ErrDatasetLenMismatch,
		)
	}

	for i := 1; i < len(t); i++ {
		if !t[i].After(t[i-1]) {
			return nil, fmt.Errorf("non-monotonic at %d, %w", i, ErrNonMontonic)
		}
	}

	tSeries := make([]time.Time, len(t))
	ySeries := make([]float64, len(t))
	copy(tSeries, t)
	copy(ySeries, y)
	td := &TimeDataset{
		T: tSeries,
		Y: ySeries,
	}

	return td, nil
}

// Len returns the number of observations including gaps.
func (td *TimeDataset) Len() int {
	if td == nil {
		return 0
	}
	return len(td.T)
}

func (td *TimeDataset) Copy() *TimeDataset {
	tSeries := make([]time.Time, len(td.T))
	ySeries := make([]float64, len(td.T))
	copy(tSeries, td.T)
	copy(ySeries, td.Y)
	return &TimeDataset{
		T: tSeries,
		Y: ySeries,
	}
}

// DropNan returns a copy of the dataset without the gap observations.
func (td *TimeDataset) DropNan() *TimeDataset {
	res := &TimeDataset{
		T: make([]time.Time, 0, len(td.T)),
		Y: make([]float64, 0, len(td.Y)),
	}
	for i := 0; i < len(td.T); i++ {
		if math.IsNaN(td.Y[i]) {
			continue
		}
		res.T = append(res.T, td.T[i])
		res.Y = append(res.Y, td.Y[i])
	}
	return res
}

// Values returns a copy of the observations.
func (td *TimeDataset) Values() []float64 {
	y := make([]float64, len(td.Y))
	copy(y, td.Y)
	return y
}

// Step estimates the spacing between observations falling back to DefaultFreq.
func (td *TimeDataset) Step() Step {
	step, err := TimeSlice(td.T).EstimateStep()
	if err != nil || step.Approx() <= 0 {
		return Step{Duration: DefaultFreq}
	}
	return step
}

// Freq is the estimated spacing as a duration.
func (td *TimeDataset) Freq() time.Duration {
	return td.Step().Approx()
}

// Future generates the horizon timestamps following the last observation spaced by the
// estimated step of the series.
func (td *TimeDataset) Future(horizon int) ([]time.Time, error) {
	if horizon < 1 {
		return nil, fmt.Errorf("got horizon of %d, %w", horizon, ErrInvalidHorizon)
	}
	if td.Len() == 0 {
		return nil, ErrNoTrainingData
	}
	step := td.Step()
	last := TimeSlice(td.T).EndTime()

	t := make([]time.Time, horizon)
	for i := 0; i < horizon; i++ {
		t[i] = step.Add(last, i+1)
	}
	return t, nil
}
