package forecast

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/aouyang1/forecastd/forecast/options"
	"github.com/aouyang1/forecastd/stats"
	"github.com/aouyang1/forecastd/timedataset"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var ErrInsufficientResidual = errors.New("insufficient samples from residual after outlier removal")

const (
	MinResidualWindow       = 2
	MinResidualSize         = 2
	MinResidualWindowFactor = 4

	// DefaultResidualZscore spans roughly 80% of a gaussian residual.
	DefaultResidualZscore = 1.2816
	DefaultResidualWindow = 100
)

// OutlierOptions removes training points whose residual falls outside tukey fences before
// refitting.
type OutlierOptions struct {
	NumPasses       int     `json:"num_passes"`
	UpperPercentile float64 `json:"upper_percentile"`
	LowerPercentile float64 `json:"lower_percentile"`
	TukeyFactor     float64 `json:"tukey_factor"`
}

func NewOutlierOptions() *OutlierOptions {
	return &OutlierOptions{
		NumPasses:       3,
		UpperPercentile: 0.9,
		LowerPercentile: 0.1,
		TukeyFactor:     1.0,
	}
}

// ForecasterOptions configures the series model, the residual spread model and the band.
type ForecasterOptions struct {
	SeriesOptions   *options.Options `json:"series_options"`
	ResidualOptions *options.Options `json:"residual_options"`

	OutlierOptions *OutlierOptions `json:"outlier_options"`
	ResidualWindow int             `json:"residual_window"`
	ResidualZscore float64         `json:"residual_zscore"`
}

func NewDefaultForecasterOptions() *ForecasterOptions {
	return &ForecasterOptions{
		SeriesOptions:   options.NewDefaultOptions(),
		ResidualOptions: options.NewResidualOptions(),
		ResidualWindow:  DefaultResidualWindow,
		ResidualZscore:  DefaultResidualZscore,
	}
}

// Results holds the forecast with its band for each requested timestamp.
type Results struct {
	T                []time.Time `json:"time"`
	Forecast         []float64   `json:"forecast"`
	Upper            []float64   `json:"upper"`
	Lower            []float64   `json:"lower"`
	SeriesComponents Components  `json:"series_components"`
}

// Forecaster fits a series model and a model of the rolling residual spread which together
// produce forecasts with upper and lower bounds.
type Forecaster struct {
	opt *ForecasterOptions

	seriesForecast   *Forecast
	residualForecast *Forecast
	constantSpread   float64

	fitResults *Results
	residual   []float64
}

// NewForecaster creates a new instance of a Forecaster using the provided options. If no
// options are provided a default is used.
func NewForecaster(opt *ForecasterOptions) (*Forecaster, error) {
	if opt == nil {
		opt = NewDefaultForecasterOptions()
	}
	if opt.ResidualZscore < 0 {
		return nil, fmt.Errorf("residual zscore of %f must be non-negative", opt.ResidualZscore)
	}

	f := &Forecaster{
		opt: opt,
	}

	seriesForecast, err := New(f.opt.SeriesOptions)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize forecast series, %w", err)
	}
	f.seriesForecast = seriesForecast

	residualOpt := f.opt.ResidualOptions
	if residualOpt == nil {
		residualOpt = options.NewResidualOptions()
	}
	residualForecast, err := New(residualOpt)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize forecast residual, %w", err)
	}
	f.residualForecast = residualForecast
	return f, nil
}

// Fit uses the input time dataset and fits the forecast model
func (f *Forecaster) Fit(t []time.Time, y []float64) error {
	td, err := timedataset.NewUnivariateDataset(t, y)
	if err != nil {
		return fmt.Errorf("unable to create training dataset, %w", err)
	}

	residual, err := f.fitSeriesWithOutliers(td.T, td.Y)
	if err != nil {
		return err
	}
	f.residual = residual

	if err := f.fitResidual(td.T, residual); err != nil {
		return err
	}

	f.fitResults, err = f.Predict(td.T)
	if err != nil {
		return fmt.Errorf("unable to get predicted values from training set, %w", err)
	}

	return nil
}

func (f *Forecaster) fitSeriesWithOutliers(t []time.Time, y []float64) ([]float64, error) {
	// iterate to remove outliers
	numPasses := 0
	if f.opt.OutlierOptions != nil {
		numPasses = f.opt.OutlierOptions.NumPasses
	}

	var residual []float64
	for i := 0; i <= numPasses; i++ {
		if err := f.seriesForecast.Fit(t, y); err != nil {
			return nil, fmt.Errorf("unable to forecast series, %w", err)
		}

		residual = f.seriesForecast.Residuals()

		// break out if no outlier options provided
		if f.opt.OutlierOptions == nil || i == numPasses {
			break
		}

		outlierIdxs := stats.DetectOutliers(
			residual,
			f.opt.OutlierOptions.LowerPercentile,
			f.opt.OutlierOptions.UpperPercentile,
			f.opt.OutlierOptions.TukeyFactor,
		)

		// no more outliers detected with outlier options so break early
		if len(outlierIdxs) == 0 {
			break
		}

		for _, idx := range outlierIdxs {
			y[idx] = math.NaN()
		}
	}
	return residual, nil
}

func (f *Forecaster) fitResidual(t []time.Time, residual []float64) error {
	resT := make([]time.Time, 0, len(residual))
	resY := make([]float64, 0, len(residual))
	for i, r := range residual {
		if math.IsNaN(r) {
			continue
		}
		resT = append(resT, t[i])
		resY = append(resY, r)
	}
	if len(resY) < MinResidualSize {
		return ErrInsufficientResidual
	}

	// compute rolling window standard deviation of residual for uncertainty bands
	// the window is not necessarily a block of continuous time but could jump across
	// outlier points

	// limit residual window to a quarter of the resulting residual output
	window := f.opt.ResidualWindow
	if len(resY)/MinResidualWindowFactor < window {
		window = len(resY) / MinResidualWindowFactor
	}
	if window < MinResidualWindow {
		window = MinResidualWindow
	}

	numWindows := len(resY) - window + 1
	if numWindows < MinResidualSize {
		_, stddev := stat.MeanStdDev(resY, nil)
		f.constantSpread = f.opt.ResidualZscore * stddev
		f.residualForecast = nil
		return nil
	}

	stddevSeries := make([]float64, numWindows)
	for i := 0; i < numWindows; i++ {
		_, stddev := stat.MeanStdDev(resY[i:i+window], nil)
		stddevSeries[i] = f.opt.ResidualZscore * stddev
	}

	// shifting by half the residual window since computing the residual series is similar to a
	// finite impulse response filtering having a group delay of window/2.
	start := window / 2
	end := len(resT) - window/2 - window%2 + 1

	if err := f.residualForecast.Fit(resT[start:end], stddevSeries); err != nil {
		return fmt.Errorf("unable to forecast residual, %w", err)
	}

	return nil
}

// Predict takes in any set of time samples and generates a forecast, upper, lower values per time point
func (f *Forecaster) Predict(t []time.Time) (*Results, error) {
	seriesRes, seriesComp, err := f.seriesForecast.Predict(t)
	if err != nil {
		return nil, fmt.Errorf("unable to predict series forecasts, %w", err)
	}

	spread := make([]float64, len(t))
	if f.residualForecast != nil {
		spread, _, err = f.residualForecast.Predict(t)
		if err != nil {
			return nil, fmt.Errorf("unable to predict residual forecasts, %w", err)
		}
	} else {
		floats.AddConst(f.constantSpread, spread)
	}

	// cap residual predictions to be greater than or equal to 0
	for i := 0; i < len(spread); i++ {
		if spread[i] < 0.0 || math.IsNaN(spread[i]) {
			spread[i] = 0.0
		}
	}

	upper := make([]float64, len(seriesRes))
	lower := make([]float64, len(seriesRes))

	copy(upper, seriesRes)
	copy(lower, seriesRes)

	floats.Add(upper, spread)
	floats.Sub(lower, spread)

	return &Results{
		T:                t,
		Forecast:         seriesRes,
		Upper:            upper,
		Lower:            lower,
		SeriesComponents: seriesComp,
	}, nil
}

// Residuals returns the difference between the final series fit against the training data
func (f *Forecaster) Residuals() []float64 {
	res := make([]float64, len(f.residual))
	copy(res, f.residual)
	return res
}

// FitResults returns the results of the fit which includes the forecast, upper, and lower values
func (f *Forecaster) FitResults() *Results {
	return f.fitResults
}
