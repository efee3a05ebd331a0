package engine

import (
	"context"
	"fmt"

	"github.com/aouyang1/forecastd/forecast"
	"github.com/aouyang1/forecastd/timedataset"
)

// TrendSeasonalModel fits the additive trend, seasonality and event model with residual
// uncertainty bands.
type TrendSeasonalModel struct {
	opt *forecast.ForecasterOptions
}

func NewTrendSeasonalModel(opt *forecast.ForecasterOptions) *TrendSeasonalModel {
	if opt == nil {
		opt = forecast.NewDefaultForecasterOptions()
	}
	return &TrendSeasonalModel{opt: opt}
}

func (m *TrendSeasonalModel) Variant() Variant {
	return VariantTrendSeasonal
}

func (m *TrendSeasonalModel) FitAndForecast(ctx context.Context, td *timedataset.TimeDataset, horizon int) (*Forecast, error) {
	f, err := forecast.NewForecaster(m.opt)
	if err != nil {
		return nil, err
	}
	if err := f.Fit(td.T, td.Y); err != nil {
		return nil, fmt.Errorf("unable to fit trend seasonal model, %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	future, err := td.Future(horizon)
	if err != nil {
		return nil, err
	}
	res, err := f.Predict(future)
	if err != nil {
		return nil, err
	}

	return &Forecast{
		Points: toPoints(res),
		Fitted: toPoints(f.FitResults()),
	}, nil
}

func toPoints(res *forecast.Results) []Point {
	if res == nil {
		return nil
	}
	points := make([]Point, len(res.T))
	for i, t := range res.T {
		points[i] = NewPoint(t, res.Forecast[i], res.Lower[i], res.Upper[i])
	}
	return points
}
