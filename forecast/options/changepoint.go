package options

import (
	"fmt"
	"time"

	"github.com/aouyang1/forecastd/feature"
)

const (
	DefaultAutoNumChangepoints     = 25
	DefaultMinPointsPerChangepoint = 10
	DefaultAutoRange               = 0.8
)

// Changepoint describes a point in time after which the ongoing trend may change slope.
type Changepoint struct {
	T    time.Time `json:"time"`
	Name string    `json:"name"`
}

func NewChangepoint(name string, t time.Time) Changepoint {
	return Changepoint{t, name}
}

// ChangepointOptions configures the changepoint fit to either use auto-detection by evenly
// placing changepoints over the first AutoRange of the training window, or explicit
// changepoints.
type ChangepointOptions struct {
	Changepoints            []Changepoint `json:"changepoints"`
	Auto                    bool          `json:"auto"`
	AutoNumChangepoints     int           `json:"auto_num_changepoints"`
	MinPointsPerChangepoint int           `json:"min_points_per_changepoint"`
	AutoRange               float64       `json:"auto_range"`
}

// NewDefaultChangepointOptions generates a set of default changepoint options
func NewDefaultChangepointOptions() ChangepointOptions {
	return ChangepointOptions{
		Auto:                    true,
		AutoNumChangepoints:     DefaultAutoNumChangepoints,
		MinPointsPerChangepoint: DefaultMinPointsPerChangepoint,
		AutoRange:               DefaultAutoRange,
	}
}

// Resolve returns the changepoints strictly inside the training window. Automatic
// changepoints are limited to one per MinPointsPerChangepoint observations.
func (c ChangepointOptions) Resolve(t []time.Time) []Changepoint {
	if len(t) < 2 {
		return nil
	}
	start, end := t[0], t[len(t)-1]

	chpts := c.Changepoints
	if c.Auto {
		chpts = c.generateAuto(t)
	}

	res := make([]Changepoint, 0, len(chpts))
	for _, chpt := range chpts {
		if !chpt.T.After(start) || !chpt.T.Before(end) {
			continue
		}
		res = append(res, chpt)
	}
	return res
}

func (c ChangepointOptions) generateAuto(t []time.Time) []Changepoint {
	minPoints := c.MinPointsPerChangepoint
	if minPoints <= 0 {
		minPoints = DefaultMinPointsPerChangepoint
	}
	autoRange := c.AutoRange
	if autoRange <= 0 || autoRange > 1 {
		autoRange = DefaultAutoRange
	}
	n := min(c.AutoNumChangepoints, len(t)/minPoints)
	if n <= 0 {
		return nil
	}

	start, end := t[0], t[len(t)-1]
	window := float64(end.Sub(start)) * autoRange

	chpts := make([]Changepoint, 0, n)
	for i := 1; i <= n; i++ {
		offset := time.Duration(window * float64(i) / float64(n))
		chpts = append(chpts, NewChangepoint(fmt.Sprintf("auto_%02d", i), start.Add(offset)))
	}
	return chpts
}

// generateChangepointFeatures produces a hinge per changepoint that grows from zero at the
// changepoint with the same scale as linear growth.
func generateChangepointFeatures(t []time.Time, chpts []Changepoint, window float64) *feature.Set {
	feat := feature.NewSet()
	for i, chpt := range chpts {
		name := chpt.Name
		if name == "" {
			name = fmt.Sprintf("%02d", i)
		}
		hinge := make([]float64, len(t))
		for j, tPnt := range t {
			if tPnt.After(chpt.T) {
				hinge[j] = tPnt.Sub(chpt.T).Seconds() / window
			}
		}
		feat.Set(feature.NewChangepoint(name), hinge)
	}
	return feat
}
