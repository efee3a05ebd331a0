// Package feature labels and stores the regressors of a linear forecast model.
package feature

import "fmt"

type FeatureType int

const (
	FeatureTypeGrowth FeatureType = iota
	FeatureTypeChangepoint
	FeatureTypeSeasonality
	FeatureTypeEvent
)

var featureTypeNames = [...]string{"growth", "changepoint", "seasonality", "event"}

func (f FeatureType) String() string {
	if f < 0 || int(f) >= len(featureTypeNames) {
		return fmt.Sprintf("unknown(%d)", int(f))
	}
	return featureTypeNames[f]
}

// Feature identifies a single column of the design matrix. String must be unique across the
// features of one model since columns are keyed and ordered by it.
type Feature interface {
	String() string
	Type() FeatureType
}

const GrowthLinear = "linear"

// Growth is a trend feature spanning the whole training window.
type Growth struct {
	Name string `json:"name"`
}

func NewGrowth(name string) *Growth {
	return &Growth{Name: name}
}

func Linear() *Growth {
	return NewGrowth(GrowthLinear)
}

func (g Growth) String() string    { return "growth_" + g.Name }
func (g Growth) Type() FeatureType { return FeatureTypeGrowth }

// Changepoint is a hinge that lets the trend slope change after a point in time.
type Changepoint struct {
	Name string `json:"name"`
}

func NewChangepoint(name string) *Changepoint {
	return &Changepoint{Name: name}
}

func (c Changepoint) String() string    { return "chpnt_" + c.Name }
func (c Changepoint) Type() FeatureType { return FeatureTypeChangepoint }

type FourierComp string

const (
	FourierCompSin FourierComp = "sin"
	FourierCompCos FourierComp = "cos"
)

// Seasonality is one sine or cosine term of a Fourier series.
type Seasonality struct {
	Name        string      `json:"name"`
	FourierComp FourierComp `json:"fourier_component"`
	Order       int         `json:"order"`
}

func NewSeasonality(name string, fcomp FourierComp, order int) *Seasonality {
	return &Seasonality{Name: name, FourierComp: fcomp, Order: order}
}

func (s Seasonality) String() string {
	return fmt.Sprintf("seas_%s_%02d_%s", s.Name, s.Order, s.FourierComp)
}

func (s Seasonality) Type() FeatureType { return FeatureTypeSeasonality }

// Event is an indicator that is 1 while a holiday or other event window is active.
type Event struct {
	Name string `json:"name"`
}

func NewEvent(name string) *Event {
	return &Event{Name: name}
}

func (e Event) String() string    { return "event_" + e.Name }
func (e Event) Type() FeatureType { return FeatureTypeEvent }
