// Package forecast fits additive trend, seasonality and event models to a univariate time
// series and produces forecasts with uncertainty bands.
package forecast

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/aouyang1/forecastd/feature"
	"github.com/aouyang1/forecastd/forecast/options"
	"github.com/aouyang1/forecastd/linearmodel"
	"github.com/aouyang1/forecastd/stats"
	"github.com/aouyang1/forecastd/timedataset"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrUninitializedForecast    = errors.New("uninitialized forecast")
	ErrInsufficientTrainingData = errors.New("insufficient training data after removing Nans")
	ErrNoModelCoefficients      = errors.New("no model coefficients from fit")
	ErrUntrainedForecast        = errors.New("forecast has not been trained yet")
)

// maxFeatureFraction bounds the number of regressors relative to the training size.
const maxFeatureFraction = 0.5

// Components splits a prediction into its additive parts. Trend includes the intercept.
type Components struct {
	Trend       []float64 `json:"trend"`
	Seasonality []float64 `json:"seasonality"`
	Event       []float64 `json:"event"`
}

// Forecast represents a single linear model of a time series. It decomposes the series into
// an intercept, a trend built from linear growth and changepoints, seasonal components and
// events.
type Forecast struct {
	opt    *options.Options
	scores *stats.Scores

	structure options.Structure
	fLabels   *feature.Labels

	residual        []float64
	trainComponents Components

	coef      []float64
	intercept float64
	trained   bool
}

// New creates a new forecast instance with the given options. If none are provided, a default
// is used
func New(opt *options.Options) (*Forecast, error) {
	if opt == nil {
		opt = options.NewDefaultOptions()
	}

	return &Forecast{opt: opt}, nil
}

// Fit takes the input training data and fits a forecast model for the trend, seasonal
// components, events and intercept
func (f *Forecast) Fit(t []time.Time, y []float64) error {
	if f == nil {
		return ErrUninitializedForecast
	}

	trainingData, err := timedataset.NewUnivariateDataset(t, y)
	if err != nil {
		return err
	}

	// remove any NaNs from training set
	cleaned := trainingData.DropNan()
	if len(cleaned.T) <= 1 {
		return ErrInsufficientTrainingData
	}

	maxFeatures := int(float64(len(cleaned.T))*maxFeatureFraction) - 1
	f.structure = f.opt.Resolve(cleaned.T, cleaned.Freq(), maxFeatures)

	x := f.opt.GenerateFeatures(cleaned.T, f.structure)
	f.fLabels = x.Labels()

	if x.Len() == 0 {
		// intercept only model
		f.intercept = stat.Mean(cleaned.Y, nil)
		f.coef = nil
	} else {
		model, err := linearmodel.NewOLSRegression(&linearmodel.OLSOptions{
			FitIntercept: true,
			Ridge:        f.opt.Regularization,
		})
		if err != nil {
			return err
		}
		if err := model.Fit(x.Matrix(), mat.NewDense(len(cleaned.Y), 1, cleaned.Y)); err != nil {
			return fmt.Errorf("unable to fit linear model, %w", err)
		}
		f.intercept = model.Intercept()
		f.coef = model.Coef()
	}
	f.trained = true

	// use input training to include NaNs
	predicted, comp, err := f.Predict(trainingData.T)
	if err != nil {
		return err
	}
	f.trainComponents = comp

	scores, err := stats.NewScores(predicted, trainingData.Y)
	if err != nil {
		return err
	}
	f.scores = scores

	residual := make([]float64, len(trainingData.T))
	floats.Add(residual, trainingData.Y)
	floats.Sub(residual, predicted)
	f.residual = residual

	return nil
}

// Predict takes a slice of times in any order and produces the predicted value for those
// times given a pre-trained model.
func (f *Forecast) Predict(t []time.Time) ([]float64, Components, error) {
	if f == nil {
		return nil, Components{}, ErrUninitializedForecast
	}

	if !f.trained {
		return nil, Components{}, ErrUntrainedForecast
	}

	x := f.opt.GenerateFeatures(t, f.structure)

	trend := f.runInference(x.FilterByType(feature.FeatureTypeGrowth, feature.FeatureTypeChangepoint), len(t), true)
	comp := Components{
		Trend:       trend,
		Seasonality: f.runInference(x.FilterByType(feature.FeatureTypeSeasonality), len(t), false),
		Event:       f.runInference(x.FilterByType(feature.FeatureTypeEvent), len(t), false),
	}

	res := make([]float64, len(t))
	floats.Add(res, comp.Trend)
	floats.Add(res, comp.Seasonality)
	floats.Add(res, comp.Event)
	return res, comp, nil
}

// runInference multiplies the features in x by their fitted weights. Features the model was
// not trained on are ignored.
func (f *Forecast) runInference(x *feature.Set, n int, withIntercept bool) []float64 {
	res := make([]float64, n)
	if withIntercept {
		floats.AddConst(f.intercept, res)
	}

	for _, feat := range x.Labels().Labels() {
		wIdx, exists := f.fLabels.Index(feat)
		if !exists {
			continue
		}
		data, _ := x.Get(feat)
		floats.AddScaled(res, f.coef[wIdx], data)
	}
	return res
}

// Structure returns the features resolved for the training window.
func (f *Forecast) Structure() options.Structure {
	if f == nil {
		return options.Structure{}
	}
	return f.structure
}

// FeatureLabels returns the slice of feature labels in the order of the coefficients
func (f *Forecast) FeatureLabels() []feature.Feature {
	if f == nil {
		return nil
	}

	return f.fLabels.Labels()
}

// Coefficients returns a forecast model map of coefficients keyed by the string
// representation of each feature label
func (f *Forecast) Coefficients() (map[string]float64, error) {
	if f == nil {
		return nil, ErrUninitializedForecast
	}

	labels := f.fLabels.Labels()
	if len(labels) == 0 || len(f.coef) == 0 {
		return nil, ErrNoModelCoefficients
	}
	coef := make(map[string]float64)
	for i := 0; i < len(f.coef); i++ {
		coef[labels[i].String()] = f.coef[i]
	}
	return coef, nil
}

// Intercept returns the intercept of the forecast model
func (f *Forecast) Intercept() float64 {
	if f == nil {
		return 0
	}
	return f.intercept
}

// ModelEq returns a string representation of the model linear equation in the format of
// y ~ b + m1x1 + m2x2 + ...
func (f *Forecast) ModelEq() (string, error) {
	if f == nil {
		return "", ErrUninitializedForecast
	}
	if !f.trained {
		return "", ErrUntrainedForecast
	}

	var eq strings.Builder
	eq.WriteString(fmt.Sprintf("y ~ %.2f", f.Intercept()))
	labels := f.fLabels.Labels()
	for i := 0; i < len(f.coef); i++ {
		w := f.coef[i]
		if w == 0 || math.IsNaN(w) {
			continue
		}
		eq.WriteString(fmt.Sprintf("+%.2f*%s", w, labels[i]))
	}
	return eq.String(), nil
}

// Scores returns the fit scores for evaluating how well the resulting model
// fit the training data
func (f *Forecast) Scores() stats.Scores {
	if f == nil || f.scores == nil {
		return stats.Scores{}
	}
	return *f.scores
}

// Residuals returns a slice of values representing the difference between the
// training data and the fit data
func (f *Forecast) Residuals() []float64 {
	if f == nil {
		return nil
	}
	res := make([]float64, len(f.residual))
	copy(res, f.residual)
	return res
}

// TrendComponent represents the overall trend component of the model which is determined
// by the intercept, growth and changepoints.
func (f *Forecast) TrendComponent() []float64 {
	if f == nil {
		return nil
	}
	res := make([]float64, len(f.trainComponents.Trend))
	copy(res, f.trainComponents.Trend)
	return res
}

// SeasonalityComponent represents the overall seasonal component of the model
func (f *Forecast) SeasonalityComponent() []float64 {
	if f == nil {
		return nil
	}
	res := make([]float64, len(f.trainComponents.Seasonality))
	copy(res, f.trainComponents.Seasonality)
	return res
}
