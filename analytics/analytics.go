// Package analytics derives descriptive statistics from an observed series.
package analytics

import (
	"math"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
)

// Places is the number of decimal places reported statistics are rounded to.
const Places = 2

type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
)

// SummaryStats describes the central tendency and direction of a series.
type SummaryStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Trend  Trend   `json:"trend"`
}

// PeriodComparison contrasts the average of the second half of a series against the first.
type PeriodComparison struct {
	CurrentAverage  float64 `json:"current_avg"`
	PreviousAverage float64 `json:"previous_avg"`
	PercentChange   float64 `json:"yoy_change"`
}

// Summarize returns the mean and median of the non-NaN values and whether the last value is
// strictly above the first. A series without valid values has NaN statistics.
func Summarize(y []float64) SummaryStats {
	valid := dropNaN(y)

	trend := TrendDecreasing
	if len(y) > 0 && y[len(y)-1] > y[0] {
		trend = TrendIncreasing
	}

	return SummaryStats{
		Mean:   Round(mean(valid)),
		Median: Round(median(valid)),
		Trend:  trend,
	}
}

// Compare splits y at len(y)/2 by index. The percent change uses the unrounded averages and
// is 0 when the previous average is exactly 0. A half without valid values averages to 0.
func Compare(y []float64) PeriodComparison {
	mid := len(y) / 2
	previous := meanOrZero(y[:mid])
	current := meanOrZero(y[mid:])

	var change float64
	if previous != 0 {
		change = (current - previous) / previous * 100
	}

	return PeriodComparison{
		CurrentAverage:  Round(current),
		PreviousAverage: Round(previous),
		PercentChange:   Round(change),
	}
}

// exactDigits is enough fractional digits to print any float64 without rounding.
const exactDigits = 1074

// Round rounds the exact binary value of v to Places decimals, breaking exact ties to even.
// 2.675 is stored just below the tie and so rounds down to 2.67. NaN and infinities are
// returned as is.
func Round(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	d, err := decimal.NewFromString(strconv.FormatFloat(v, 'f', exactDigits, 64))
	if err != nil {
		d = decimal.NewFromFloat(v)
	}
	f, _ := d.RoundBank(Places).Float64()
	return f
}

func dropNaN(y []float64) []float64 {
	res := make([]float64, 0, len(y))
	for _, v := range y {
		if !math.IsNaN(v) {
			res = append(res, v)
		}
	}
	return res
}

func mean(valid []float64) float64 {
	if len(valid) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range valid {
		sum += v
	}
	return sum / float64(len(valid))
}

func meanOrZero(y []float64) float64 {
	m := mean(dropNaN(y))
	if math.IsNaN(m) {
		return 0
	}
	return m
}

// median averages the two middle values of an even length sample.
func median(valid []float64) float64 {
	n := len(valid)
	if n == 0 {
		return math.NaN()
	}
	sorted := make([]float64, n)
	copy(sorted, valid)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
