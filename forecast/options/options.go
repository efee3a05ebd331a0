// Package options configures the trend and seasonality features of a linear forecast fit.
package options

import (
	"log/slog"
	"time"

	"github.com/aouyang1/forecastd/feature"
)

const DefaultRegularization = 1e-4

// Options configures a forecast by specifying growth, changepoints, seasonality, events
// and a ridge regularization parameter where higher values shrink the coefficients harder.
type Options struct {
	Growth             string             `json:"growth"`
	ChangepointOptions ChangepointOptions `json:"changepoint_options"`
	SeasonalityOptions SeasonalityOptions `json:"seasonality_options"`
	EventOptions       EventOptions       `json:"event_options"`
	Regularization     float64            `json:"regularization"`
}

// NewDefaultOptions returns linear growth with automatic changepoints and daily, weekly and
// yearly seasonality.
func NewDefaultOptions() *Options {
	return &Options{
		Growth:             feature.GrowthLinear,
		ChangepointOptions: NewDefaultChangepointOptions(),
		SeasonalityOptions: NewDefaultSeasonalityOptions(),
		Regularization:     DefaultRegularization,
	}
}

// NewResidualOptions returns options for modelling the spread of residuals, which only
// varies seasonally around a constant.
func NewResidualOptions() *Options {
	return &Options{
		SeasonalityOptions: NewDefaultSeasonalityOptions(),
		Regularization:     DefaultRegularization,
	}
}

// Structure is the set of features chosen for a training window. It is fixed at fit time
// so predictions outside the window reuse the same columns.
type Structure struct {
	TrainStart   time.Time           `json:"train_start"`
	TrainEnd     time.Time           `json:"train_end"`
	Changepoints []Changepoint       `json:"changepoints"`
	Seasonality  []SeasonalityConfig `json:"seasonality"`
	Events       []string            `json:"events"`
}

// Resolve picks the features that the training timestamps can support. maxFeatures bounds
// the number of columns excluding the intercept.
func (o *Options) Resolve(t []time.Time, interval time.Duration, maxFeatures int) Structure {
	if o == nil {
		o = NewDefaultOptions()
	}
	s := Structure{}
	if len(t) == 0 {
		return s
	}
	s.TrainStart = t[0]
	s.TrainEnd = t[len(t)-1]

	budget := maxFeatures
	if o.Growth == feature.GrowthLinear && s.TrainEnd.After(s.TrainStart) {
		budget--
	}

	s.Changepoints = o.ChangepointOptions.Resolve(t)
	if len(s.Changepoints) > budget/2 {
		s.Changepoints = s.Changepoints[:max(budget/2, 0)]
	}
	budget -= len(s.Changepoints)

	s.Events = o.EventOptions.Resolve(t)
	if len(s.Events) > budget/2 {
		slog.Warn("dropping events beyond feature budget", "events", len(s.Events), "budget", budget/2)
		s.Events = s.Events[:max(budget/2, 0)]
	}
	budget -= len(s.Events)

	s.Seasonality = o.SeasonalityOptions.Resolve(s.TrainEnd.Sub(s.TrainStart), interval, budget)
	return s
}

// GenerateFeatures builds the design matrix columns for t using a resolved structure.
func (o *Options) GenerateFeatures(t []time.Time, s Structure) *feature.Set {
	if o == nil {
		o = NewDefaultOptions()
	}
	feat := feature.NewSet()

	window := s.TrainEnd.Sub(s.TrainStart).Seconds()
	if o.Growth == feature.GrowthLinear && window > 0 {
		linear := make([]float64, len(t))
		for i, tPnt := range t {
			linear[i] = tPnt.Sub(s.TrainStart).Seconds() / window
		}
		feat.Set(feature.Linear(), linear)
	}

	if window > 0 {
		feat.Update(generateChangepointFeatures(t, s.Changepoints, window))
	}
	feat.Update(generateSeasonalityFeatures(t, s.Seasonality))
	feat.Update(o.EventOptions.generateFeatures(t, s.Events))
	return feat
}
