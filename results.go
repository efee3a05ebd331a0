package forecastd

import (
	"time"

	"github.com/aouyang1/forecastd/engine"
	"github.com/aouyang1/forecastd/report"
)

// Results of a successful invocation. NarrativeErr is set when the narrative fell back to
// its error marker.
type Results struct {
	Bundle       *report.Bundle
	Forecast     *engine.Result
	NarrativeErr error
	Timings      Timings
}

type Timings struct {
	Select   time.Duration
	Forecast time.Duration
	FanOut   time.Duration
	Assemble time.Duration
}
