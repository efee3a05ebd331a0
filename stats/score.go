package stats

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

var (
	ErrScoreLenMismatch = errors.New("predicted and actual have different lengths")
	ErrNoScoredPairs    = errors.New("no pairs without NaN to score")
)

// Scores summarize how closely fitted values track the observations. Pairs with a NaN on
// either side are skipped and MAPE also skips zero observations.
type Scores struct {
	MSE  float64 `json:"mse"`
	MAE  float64 `json:"mae"`
	MAPE float64 `json:"mape"`
	R2   float64 `json:"r_squared"`
	N    int     `json:"n"`
}

// NewScores scores predicted against actual.
func NewScores(predicted, actual []float64) (*Scores, error) {
	if len(predicted) != len(actual) {
		return nil, fmt.Errorf("expected %d, but got %d, %w", len(actual), len(predicted), ErrScoreLenMismatch)
	}

	p := make([]float64, 0, len(actual))
	a := make([]float64, 0, len(actual))
	for i := range actual {
		if math.IsNaN(actual[i]) || math.IsNaN(predicted[i]) {
			continue
		}
		p = append(p, predicted[i])
		a = append(a, actual[i])
	}
	if len(a) == 0 {
		return nil, ErrNoScoredPairs
	}

	s := &Scores{N: len(a)}
	var pctCnt int
	for i := range a {
		diff := a[i] - p[i]
		s.MSE += diff * diff
		s.MAE += math.Abs(diff)
		if a[i] != 0 {
			s.MAPE += math.Abs(diff / a[i])
			pctCnt++
		}
	}
	s.MSE /= float64(len(a))
	s.MAE /= float64(len(a))
	if pctCnt > 0 {
		s.MAPE /= float64(pctCnt)
	}

	// a constant series fit exactly has no variance to explain
	s.R2 = stat.RSquaredFrom(p, a, nil)
	if math.IsNaN(s.R2) || math.IsInf(s.R2, 0) {
		s.R2 = 0
		if s.MSE == 0 {
			s.R2 = 1
		}
	}
	return s, nil
}

// Finite reports whether every score is a finite number.
func (s *Scores) Finite() bool {
	if s == nil {
		return false
	}
	for _, v := range []float64{s.MSE, s.MAE, s.MAPE, s.R2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
