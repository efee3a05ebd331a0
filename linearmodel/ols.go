package linearmodel

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// rankTol is the relative size of a diagonal element of R below which the design matrix
// is treated as rank deficient.
const rankTol = 1e-10

// OLSOptions represents input options to run the OLS Regression
type OLSOptions struct {
	// FitIntercept adds a constant 1.0 feature as the first column if set to true
	FitIntercept bool

	// Ridge applies an L2 penalty to every coefficient except the intercept. A value of 0
	// is plain least squares.
	Ridge float64
}

// Validate runs basic validation on OLS options
func (o *OLSOptions) Validate() (*OLSOptions, error) {
	if o == nil {
		o = NewDefaultOLSOptions()
	}
	if o.Ridge < 0 || math.IsNaN(o.Ridge) {
		return nil, fmt.Errorf("ridge penalty of %f, %w", o.Ridge, ErrNegativeRidge)
	}

	return o, nil
}

// NewDefaultOLSOptions returns a default set of OLS Regression options
func NewDefaultOLSOptions() *OLSOptions {
	return &OLSOptions{
		FitIntercept: true,
	}
}

// OLSRegression computes ordinary least squares using QR factorization
type OLSRegression struct {
	opt       *OLSOptions
	coef      []float64
	intercept float64

	// fit diagnostics in the order [intercept, coef...]
	stdErr []float64
	ssr    float64
	nobs   int
}

// NewOLSRegression initializes an ordinary least squares model ready for fitting
func NewOLSRegression(opt *OLSOptions) (*OLSRegression, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}
	return &OLSRegression{
		opt: opt,
	}, nil
}

func (o *OLSRegression) withIntercept(x mat.Matrix) mat.Matrix {
	if !o.opt.FitIntercept {
		return x
	}
	m, _ := x.Dims()
	ones := make([]float64, m)
	floats.AddConst(1.0, ones)
	onesMx := mat.NewDense(1, m, ones)

	var xWithOnes mat.Dense
	xWithOnes.Stack(onesMx, x.T())
	return xWithOnes.T()
}

// Fit the model according to the given training data
func (o *OLSRegression) Fit(x, y mat.Matrix) error {
	if o.opt == nil {
		return ErrNoOptions
	}
	if x == nil {
		return ErrNoTrainingMatrix
	}
	if y == nil {
		return ErrNoTargetMatrix
	}
	m, _ := x.Dims()

	ym, _ := y.Dims()
	if ym != m {
		return fmt.Errorf("training data has %d rows and target has %d row, %w", m, ym, ErrTargetLenMismatch)
	}

	x = o.withIntercept(x)
	_, n := x.Dims()

	design, target := x, y
	if o.opt.Ridge > 0 {
		design, target = o.augment(x, y)
	}
	rows, _ := design.Dims()
	if rows < n {
		return fmt.Errorf("%d observations for %d features, %w", rows, n, ErrUnderdetermined)
	}

	qr := new(mat.QR)
	qr.Factorize(design)

	q := new(mat.Dense)
	r := new(mat.Dense)

	qr.QTo(q)
	qr.RTo(r)

	maxDiag := 0.0
	for i := 0; i < n; i++ {
		maxDiag = math.Max(maxDiag, math.Abs(r.At(i, i)))
	}
	for i := 0; i < n; i++ {
		if maxDiag == 0 || math.Abs(r.At(i, i)) <= rankTol*maxDiag {
			return fmt.Errorf("column %d is linearly dependent, %w", i, ErrSingularMatrix)
		}
	}

	yq := new(mat.Dense)
	yq.Mul(target.T(), q)

	c := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		c[i] = yq.At(0, i)
		for j := i + 1; j < n; j++ {
			c[i] -= c[j] * r.At(i, j)
		}
		c[i] /= r.At(i, i)
	}

	if o.opt.FitIntercept {
		o.intercept = c[0]
		o.coef = c[1:]
	} else {
		o.coef = c
	}

	o.nobs = m
	o.ssr = residualSumSquares(x, y, c)
	o.stdErr = standardErrors(r, n, o.ssr, m)

	return nil
}

// augment stacks sqrt(ridge) rows under the design matrix so the QR solve minimizes the
// penalized objective. The intercept column is left unpenalized.
func (o *OLSRegression) augment(x, y mat.Matrix) (mat.Matrix, mat.Matrix) {
	m, n := x.Dims()
	penalty := mat.NewDense(n, n, nil)
	w := math.Sqrt(o.opt.Ridge)
	for i := 0; i < n; i++ {
		if i == 0 && o.opt.FitIntercept {
			continue
		}
		penalty.Set(i, i, w)
	}

	var design mat.Dense
	design.Stack(x, penalty)

	target := mat.NewDense(m+n, 1, nil)
	for i := 0; i < m; i++ {
		target.Set(i, 0, y.At(i, 0))
	}
	return &design, target
}

func residualSumSquares(x, y mat.Matrix, c []float64) float64 {
	m, n := x.Dims()
	var ssr float64
	for i := 0; i < m; i++ {
		var pred float64
		for j := 0; j < n; j++ {
			pred += x.At(i, j) * c[j]
		}
		diff := y.At(i, 0) - pred
		ssr += diff * diff
	}
	return ssr
}

// standardErrors computes sqrt(diag(sigma^2 * (R'R)^-1)) by inverting the upper triangular
// factor with back substitution.
func standardErrors(r mat.Matrix, n int, ssr float64, nobs int) []float64 {
	stdErr := make([]float64, n)
	dof := nobs - n
	if dof <= 0 {
		for i := range stdErr {
			stdErr[i] = math.NaN()
		}
		return stdErr
	}
	sigma2 := ssr / float64(dof)

	rInv := mat.NewDense(n, n, nil)
	for col := 0; col < n; col++ {
		for i := col; i >= 0; i-- {
			var val float64
			if i == col {
				val = 1.0
			}
			for j := i + 1; j <= col; j++ {
				val -= r.At(i, j) * rInv.At(j, col)
			}
			rInv.Set(i, col, val/r.At(i, i))
		}
	}

	for i := 0; i < n; i++ {
		var sum float64
		for j := i; j < n; j++ {
			v := rInv.At(i, j)
			sum += v * v
		}
		stdErr[i] = math.Sqrt(sigma2 * sum)
	}
	return stdErr
}

// Predict using the OLS model
func (o *OLSRegression) Predict(x mat.Matrix) ([]float64, error) {
	if o.opt == nil {
		return nil, ErrNoOptions
	}
	if x == nil {
		return nil, ErrNoDesignMatrix
	}

	coef := o.coef
	if o.opt.FitIntercept {
		coef = append([]float64{o.intercept}, o.coef...)
		x = o.withIntercept(x)
	}
	n := len(coef)

	xT := x.T()
	xn, _ := xT.Dims()
	if xn != n {
		return nil, fmt.Errorf("got %d features in design matrix, but expected %d, %w", xn, n, ErrFeatureLenMismatch)
	}
	coefMx := mat.NewDense(1, n, coef)

	var res mat.Dense
	res.Mul(coefMx, xT)
	return res.RawRowView(0), nil
}

// Score computes the coefficient of determination of the prediction
func (o *OLSRegression) Score(x, y mat.Matrix) (float64, error) {
	if o.opt == nil {
		return 0.0, ErrNoOptions
	}
	if x == nil {
		return 0.0, ErrNoDesignMatrix
	}
	if y == nil {
		return 0.0, ErrNoTargetMatrix
	}

	m, _ := x.Dims()

	ym, _ := y.Dims()
	if m != ym {
		return 0.0, fmt.Errorf("design matrix has %d rows and target has %d rows, %w", m, ym, ErrTargetLenMismatch)
	}

	res, err := o.Predict(x)
	if err != nil {
		return 0.0, err
	}

	ySlice := mat.Col(nil, 0, y)

	return stat.RSquaredFrom(res, ySlice, nil), nil
}

// Intercept returns the computed intercept if FitIntercept is set to true. Defaults to 0.0 if not set.
func (o *OLSRegression) Intercept() float64 {
	return o.intercept
}

// Coef returns a slice of the trained coefficients in the same order of the training feature Matrix by column.
func (o *OLSRegression) Coef() []float64 {
	c := make([]float64, len(o.coef))
	copy(c, o.coef)
	return c
}

// StdErrors returns the coefficient standard errors with the intercept first when fit.
func (o *OLSRegression) StdErrors() []float64 {
	s := make([]float64, len(o.stdErr))
	copy(s, o.stdErr)
	return s
}

// SSR returns the residual sum of squares over the training rows.
func (o *OLSRegression) SSR() float64 {
	return o.ssr
}

// NumObservations returns the number of training rows excluding any penalty rows.
func (o *OLSRegression) NumObservations() int {
	return o.nobs
}

// NumParams returns the number of fitted parameters including the intercept.
func (o *OLSRegression) NumParams() int {
	n := len(o.coef)
	if o.opt != nil && o.opt.FitIntercept {
		n++
	}
	return n
}

// AIC returns the gaussian Akaike information criterion of the fit.
func (o *OLSRegression) AIC() float64 {
	nobs := float64(o.nobs)
	llf := -nobs / 2.0 * (math.Log(2*math.Pi) + math.Log(o.ssr/nobs) + 1)
	return -2*llf + 2*float64(o.NumParams())
}
