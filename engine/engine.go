// Package engine runs registered forecasting model variants behind a single contract and
// decides how their results are charted.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aouyang1/forecastd/apperr"
	"github.com/aouyang1/forecastd/chart"
	"github.com/aouyang1/forecastd/stats"
	"github.com/aouyang1/forecastd/timedataset"
)

var (
	ErrDuplicateVariant = errors.New("variant already registered")
	ErrDuplicateAlias   = errors.New("alias already registered")
	ErrHorizonMismatch  = errors.New("model returned a different number of points than the horizon")
	ErrNonFinite        = errors.New("model produced a non-finite value")
)

// Variant names a concrete forecasting model.
type Variant string

const (
	VariantTrendSeasonal  Variant = "trend_seasonal"
	VariantAutoregressive Variant = "autoregressive"

	// ModeAuto lets the selector pick a variant from the series.
	ModeAuto = "auto"
)

// Title is the display name used in chart titles.
func (v Variant) Title() string {
	switch v {
	case VariantTrendSeasonal:
		return "Trend Seasonal"
	case VariantAutoregressive:
		return "ARIMA"
	}
	return string(v)
}

// Point is a single prediction. Lower and Upper are nil when the variant does not produce
// intervals.
type Point struct {
	T     time.Time `json:"ds"`
	Value float64   `json:"yhat"`
	Lower *float64  `json:"yhat_lower,omitempty"`
	Upper *float64  `json:"yhat_upper,omitempty"`
}

// NewPoint returns a point with an interval.
func NewPoint(t time.Time, value, lower, upper float64) Point {
	return Point{
		T:     t,
		Value: value,
		Lower: &lower,
		Upper: &upper,
	}
}

// HasInterval reports whether both bounds are set.
func (p Point) HasInterval() bool {
	return p.Lower != nil && p.Upper != nil
}

// Forecast is the output of a single model fit.
type Forecast struct {
	Points []Point
	Fitted []Point
}

// Model is a forecasting variant. Implementations must not mutate td.
type Model interface {
	Variant() Variant
	FitAndForecast(ctx context.Context, td *timedataset.TimeDataset, horizon int) (*Forecast, error)
}

// Result is a forecast with the chart decision for it. Scores are set when the model reports
// in-sample fitted values.
type Result struct {
	Variant Variant       `json:"variant"`
	Points  []Point       `json:"points"`
	Fitted  []Point       `json:"-"`
	Scores  *stats.Scores `json:"scores,omitempty"`
	Plot    chart.Plot    `json:"-"`
}

// HasInterval reports whether every forecast point carries bounds.
func (r *Result) HasInterval() bool {
	if r == nil || len(r.Points) == 0 {
		return false
	}
	for _, p := range r.Points {
		if !p.HasInterval() {
			return false
		}
	}
	return true
}

// Engine is a registry of model variants addressable by name or alias.
type Engine struct {
	mu      sync.RWMutex
	models  map[Variant]Model
	aliases map[string]Variant
	logger  *slog.Logger
}

func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		models:  make(map[Variant]Model),
		aliases: make(map[string]Variant),
		logger:  logger,
	}
}

// Register adds a model under its variant name and any extra aliases.
func (e *Engine) Register(m Model, aliases ...string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	v := m.Variant()
	if _, exists := e.models[v]; exists {
		return fmt.Errorf("%s, %w", v, ErrDuplicateVariant)
	}
	names := append([]string{string(v)}, aliases...)
	for _, name := range names {
		key := normalize(name)
		if existing, exists := e.aliases[key]; exists {
			return fmt.Errorf("%s is registered to %s, %w", name, existing, ErrDuplicateAlias)
		}
	}
	e.models[v] = m
	for _, name := range names {
		e.aliases[normalize(name)] = v
	}
	return nil
}

// Resolve maps a mode name or alias to a registered variant.
func (e *Engine) Resolve(mode string) (Variant, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, exists := e.aliases[normalize(mode)]
	return v, exists
}

// Variants returns the registered variants sorted by name.
func (e *Engine) Variants() []Variant {
	e.mu.RLock()
	defer e.mu.RUnlock()
	res := make([]Variant, 0, len(e.models))
	for v := range e.models {
		res = append(res, v)
	}
	slices.Sort(res)
	return res
}

// Run fits the variant to td and forecasts horizon steps past its last timestamp.
func (e *Engine) Run(ctx context.Context, v Variant, td *timedataset.TimeDataset, horizon int) (*Result, error) {
	e.mu.RLock()
	m, exists := e.models[v]
	e.mu.RUnlock()
	if !exists {
		return nil, apperr.UnsupportedMode(string(v))
	}
	if horizon < 1 {
		return nil, apperr.InvalidInput(fmt.Errorf("got horizon of %d, %w", horizon, timedataset.ErrInvalidHorizon))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	fc, err := m.FitAndForecast(ctx, td, horizon)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, apperr.ForecastingFailed(err)
	}
	if len(fc.Points) != horizon {
		return nil, apperr.ForecastingFailed(fmt.Errorf("got %d points for horizon %d, %w", len(fc.Points), horizon, ErrHorizonMismatch))
	}
	if err := checkFinite(fc); err != nil {
		return nil, apperr.ForecastingFailed(err)
	}
	e.logger.Debug("model fit", "variant", v, "observations", td.Len(), "horizon", horizon, "duration", time.Since(start))

	res := &Result{
		Variant: v,
		Points:  fc.Points,
		Fitted:  fc.Fitted,
	}
	if len(fc.Fitted) == td.Len() {
		fitted := make([]float64, len(fc.Fitted))
		for i, p := range fc.Fitted {
			fitted[i] = p.Value
		}
		scores, err := stats.NewScores(fitted, td.Y)
		switch {
		case err != nil:
			e.logger.Debug("fit not scored", "variant", v, "error", err)
		case !scores.Finite():
			e.logger.Debug("fit not scored", "variant", v, "error", ErrNonFinite)
			scores = nil
		}
		res.Scores = scores
	}
	res.Plot = buildPlot(v, td, res)
	return res, nil
}

// checkFinite rejects infinities anywhere and NaNs in forecast points. Fitted values may be
// NaN where a variant has no in-sample prediction.
func checkFinite(fc *Forecast) error {
	for i, p := range fc.Points {
		if !finite(p.Value) || (p.Lower != nil && !finite(*p.Lower)) || (p.Upper != nil && !finite(*p.Upper)) {
			return fmt.Errorf("forecast point %d at %s, %w", i, p.T.Format(time.RFC3339), ErrNonFinite)
		}
	}
	for i, p := range fc.Fitted {
		if math.IsInf(p.Value, 0) {
			return fmt.Errorf("fitted point %d at %s, %w", i, p.T.Format(time.RFC3339), ErrNonFinite)
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// buildPlot lays the observed history, fitted values and forecast on one time axis. The band
// is only drawn when every forecast point has an interval.
func buildPlot(v Variant, td *timedataset.TimeDataset, res *Result) chart.Plot {
	n := td.Len()
	total := n + len(res.Points)

	t := make([]time.Time, 0, total)
	t = append(t, td.T...)
	for _, p := range res.Points {
		t = append(t, p.T)
	}

	observed := nanSlice(total)
	copy(observed, td.Y)

	forecast := nanSlice(total)
	for i, p := range res.Points {
		forecast[n+i] = p.Value
	}

	plot := chart.Plot{
		Title:  v.Title() + " Forecast",
		T:      t,
		Series: []chart.Series{{Name: chart.SeriesObserved, Values: observed}},
	}

	if len(res.Fitted) == n && n > 0 {
		fitted := nanSlice(total)
		for i, p := range res.Fitted {
			fitted[i] = p.Value
		}
		plot.Series = append(plot.Series, chart.Series{Name: chart.SeriesFitted, Values: fitted})
	}
	plot.Series = append(plot.Series, chart.Series{Name: chart.SeriesForecast, Values: forecast})

	if res.HasInterval() {
		lower := nanSlice(total)
		upper := nanSlice(total)
		for i, p := range res.Points {
			lower[n+i] = *p.Lower
			upper[n+i] = *p.Upper
		}
		plot.Band = &chart.Band{Lower: lower, Upper: upper}
	}
	return plot
}

func nanSlice(n int) []float64 {
	res := make([]float64, n)
	for i := range res {
		res[i] = math.NaN()
	}
	return res
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
