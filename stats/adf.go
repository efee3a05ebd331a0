package stats

import (
	"errors"
	"fmt"
	"math"

	mat_ "github.com/aouyang1/forecastd/mat"
	"github.com/aouyang1/forecastd/linearmodel"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// DefaultSignificance is the p-value below which a series is judged stationary.
	DefaultSignificance = 0.05

	// MinADFObservations is the fewest non-NaN values the unit-root regression accepts.
	MinADFObservations = 6

	degenerateVarTol = 1e-12
	perfectFitTol    = 1e-10
)

var ErrInsufficientObservations = errors.New("insufficient observations for unit-root test")

// MacKinnon (1994) response surface for the constant-only regression with one variable.
var (
	tauMaxC    = 2.74
	tauMinC    = -18.83
	tauStarC   = -1.61
	tauSmallPC = []float64{2.1659, 1.4412, 0.038269}
	tauLargePC = []float64{1.7339, 0.93202, -0.12745, -0.010368}
)

// ADFResult describes an augmented Dickey-Fuller test with a constant and AIC lag selection.
type ADFResult struct {
	Statistic float64
	PValue    float64
	UsedLag   int
	NObs      int
}

// ADF runs the augmented Dickey-Fuller unit-root test on y. NaNs are dropped before testing.
// Series whose first difference has no variance, such as constants or perfectly linear
// trends, cannot reject the unit root and report a p-value of 1.
func ADF(y []float64) (ADFResult, error) {
	x := make([]float64, 0, len(y))
	for _, v := range y {
		if !math.IsNaN(v) {
			x = append(x, v)
		}
	}
	n := len(x)
	if n < MinADFObservations {
		return ADFResult{}, fmt.Errorf("got %d observations, need %d, %w", n, MinADFObservations, ErrInsufficientObservations)
	}

	xdiff := make([]float64, n-1)
	for i := 1; i < n; i++ {
		xdiff[i-1] = x[i] - x[i-1]
	}

	if isDegenerate(xdiff) {
		return ADFResult{PValue: 1.0, NObs: len(xdiff)}, nil
	}

	maxLag := int(math.Ceil(12.0 * math.Pow(float64(n)/100.0, 0.25)))
	maxLag = min(maxLag, n/2-2)
	if maxLag < 0 {
		return ADFResult{}, fmt.Errorf("sample size %d too short for lag selection, %w", n, ErrInsufficientObservations)
	}

	bestLag, ok := selectLagAIC(x, xdiff, maxLag)
	if !ok {
		return ADFResult{PValue: 1.0, NObs: len(xdiff)}, nil
	}

	model, err := fitADFRegression(x, xdiff, bestLag, bestLag)
	if err != nil {
		return ADFResult{PValue: 1.0, UsedLag: bestLag, NObs: len(xdiff) - bestLag}, nil
	}

	sample := xdiff[bestLag:]
	if model.SSR() <= perfectFitTol*floats.Dot(sample, sample) {
		return ADFResult{PValue: 1.0, UsedLag: bestLag, NObs: model.NumObservations()}, nil
	}

	// intercept is first in the standard errors, the lagged level is the first regressor
	stdErr := model.StdErrors()
	tStat := model.Coef()[0] / stdErr[1]
	if math.IsNaN(tStat) || math.IsInf(tStat, 0) {
		return ADFResult{PValue: 1.0, UsedLag: bestLag, NObs: model.NumObservations()}, nil
	}

	return ADFResult{
		Statistic: tStat,
		PValue:    MacKinnonPValue(tStat),
		UsedLag:   bestLag,
		NObs:      model.NumObservations(),
	}, nil
}

func isDegenerate(xdiff []float64) bool {
	if len(xdiff) < 2 {
		return true
	}
	mean, variance := stat.MeanVariance(xdiff, nil)
	scale := math.Max(1.0, mean*mean)
	return variance <= degenerateVarTol*scale
}

// selectLagAIC fits every lag up to maxLag on the same trimmed sample and returns the lag
// with the smallest AIC. Lags that interpolate the sample exactly carry no information
// about the unit root and are skipped.
func selectLagAIC(x, xdiff []float64, maxLag int) (int, bool) {
	tss := floats.Dot(xdiff[maxLag:], xdiff[maxLag:])

	bestLag := -1
	bestAIC := math.Inf(1)
	for lag := 0; lag <= maxLag; lag++ {
		model, err := fitADFRegression(x, xdiff, lag, maxLag)
		if err != nil {
			continue
		}
		if model.SSR() <= perfectFitTol*tss {
			continue
		}
		aic := model.AIC()
		if aic < bestAIC {
			bestAIC = aic
			bestLag = lag
		}
	}
	return bestLag, bestLag >= 0
}

// fitADFRegression regresses the differenced series on a constant, the lagged level and lag
// lagged differences. trim drops the first trim differences so competing lags share a sample.
func fitADFRegression(x, xdiff []float64, lag, trim int) (*linearmodel.OLSRegression, error) {
	nobs := len(xdiff) - trim
	if nobs <= lag+2 {
		return nil, ErrInsufficientObservations
	}

	cols := make([][]float64, lag+1)
	for j := range cols {
		cols[j] = make([]float64, nobs)
	}
	target := make([]float64, nobs)
	for i := 0; i < nobs; i++ {
		t := i + trim
		target[i] = xdiff[t]
		cols[0][i] = x[t]
		for j := 1; j <= lag; j++ {
			cols[j][i] = xdiff[t-j]
		}
	}

	design, err := mat_.NewDenseFromColumns(cols...)
	if err != nil {
		return nil, err
	}
	model, err := linearmodel.NewOLSRegression(linearmodel.NewDefaultOLSOptions())
	if err != nil {
		return nil, err
	}
	if err := model.Fit(design, mat.NewDense(nobs, 1, target)); err != nil {
		return nil, err
	}
	return model, nil
}

// MacKinnonPValue approximates the p-value of a Dickey-Fuller statistic for the regression
// with a constant term.
func MacKinnonPValue(tStat float64) float64 {
	switch {
	case tStat > tauMaxC:
		return 1.0
	case tStat < tauMinC:
		return 0.0
	}
	coef := tauLargePC
	if tStat <= tauStarC {
		coef = tauSmallPC
	}
	return distuv.UnitNormal.CDF(polyval(coef, tStat))
}

// polyval evaluates c[0] + c[1]x + c[2]x^2 + ...
func polyval(c []float64, x float64) float64 {
	powers := make([]float64, len(c))
	p := 1.0
	for i := range powers {
		powers[i] = p
		p *= x
	}
	return floats.Dot(c, powers)
}

// ADFClassifier judges stationarity by comparing the ADF p-value against a significance
// level.
type ADFClassifier struct {
	Significance float64
}

// NewADFClassifier returns a classifier using the given significance, falling back to
// DefaultSignificance when it is outside (0, 1).
func NewADFClassifier(significance float64) *ADFClassifier {
	if significance <= 0 || significance >= 1 {
		significance = DefaultSignificance
	}
	return &ADFClassifier{Significance: significance}
}

// IsStationary reports whether the unit root is rejected, i.e. the p-value is strictly below
// the significance level.
func (c *ADFClassifier) IsStationary(y []float64) (bool, error) {
	res, err := ADF(y)
	if err != nil {
		return false, err
	}
	return res.PValue < c.Significance, nil
}
