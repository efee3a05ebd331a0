package engine

import (
	"context"
	"fmt"
	"math"

	"github.com/aouyang1/forecastd/arima"
	"github.com/aouyang1/forecastd/timedataset"
)

const (
	DefaultAROrder   = 5
	DefaultDiffOrder = 1
)

// AutoregressiveModel fits an ARIMA(p,d,0) to the observed values ignoring gaps.
type AutoregressiveModel struct {
	P      int
	D      int
	Zscore float64
}

func NewAutoregressiveModel() *AutoregressiveModel {
	return &AutoregressiveModel{
		P:      DefaultAROrder,
		D:      DefaultDiffOrder,
		Zscore: arima.DefaultZscore,
	}
}

func (m *AutoregressiveModel) Variant() Variant {
	return VariantAutoregressive
}

func (m *AutoregressiveModel) FitAndForecast(ctx context.Context, td *timedataset.TimeDataset, horizon int) (*Forecast, error) {
	model, err := arima.New(m.P, m.D)
	if err != nil {
		return nil, err
	}
	clean := td.DropNan()
	if err := model.Fit(clean.Y); err != nil {
		return nil, fmt.Errorf("unable to fit %s, %w", model.Order(), err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pred, err := model.Forecast(horizon, m.Zscore)
	if err != nil {
		return nil, err
	}
	future, err := td.Future(horizon)
	if err != nil {
		return nil, err
	}
	points := make([]Point, horizon)
	for i, t := range future {
		points[i] = NewPoint(t, pred.Mean[i], pred.Lower[i], pred.Upper[i])
	}

	inSample, err := model.Fitted()
	if err != nil {
		return nil, err
	}
	// gaps in the observations stay gaps in the fitted series
	fitted := make([]Point, td.Len())
	var j int
	for i, t := range td.T {
		fitted[i] = Point{T: t, Value: math.NaN()}
		if j < len(clean.T) && clean.T[j].Equal(t) {
			fitted[i].Value = inSample[j]
			j++
		}
	}
	return &Forecast{Points: points, Fitted: fitted}, nil
}
