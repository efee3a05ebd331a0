package forecastd

import (
	"github.com/aouyang1/forecastd/history"
)

const (
	DefaultHorizon    = 30
	DefaultMaxHorizon = 365

	// MinObservations is the fewest non-gap values any variant can fit.
	MinObservations = 2
)

// Options bound the requests a Pipeline accepts.
type Options struct {
	Horizon      int
	MaxHorizon   int
	HistoryOrder history.Order
}

func NewDefaultOptions() *Options {
	return &Options{
		Horizon:      DefaultHorizon,
		MaxHorizon:   DefaultMaxHorizon,
		HistoryOrder: history.OrderDesc,
	}
}
