package options

import (
	"math"
	"sort"
	"time"

	"github.com/aouyang1/forecastd/feature"
)

const (
	LabelSeasDaily  = "daily"
	LabelSeasWeekly = "weekly"
	LabelSeasYearly = "yearly"

	// minPeriodsCovered is the number of full periods the training window must span for a
	// seasonality to be fit.
	minPeriodsCovered = 2
)

// SeasonalityOptions configures the number of seasonality components to fit for.
type SeasonalityOptions struct {
	SeasonalityConfigs []SeasonalityConfig `json:"seasonality_configs"`
}

// NewDefaultSeasonalityOptions generates daily, weekly and yearly seasonality configs.
func NewDefaultSeasonalityOptions() SeasonalityOptions {
	return SeasonalityOptions{
		SeasonalityConfigs: []SeasonalityConfig{
			NewDailySeasonalityConfig(4),
			NewWeeklySeasonalityConfig(3),
			NewYearlySeasonalityConfig(10),
		},
	}
}

// SeasonalityConfig represents a single seasonality configuration to model. This will generate
// Fourier series of the specified period and number of orders. E.g. a period of 24*time.Hour
// with 3 orders will create 6 Fourier series of order 1, 2, 3 and for the sine/cosine components
// where order 1 will have a period of 1 day and order 2 will have a period of 12 hours.
type SeasonalityConfig struct {
	Name   string        `json:"name"`
	Orders int           `json:"orders"`
	Period time.Duration `json:"period"`
}

// NewSeasonalityConfig creates a new seasonality config given a name, period and orders
func NewSeasonalityConfig(name string, period time.Duration, orders int) SeasonalityConfig {
	if orders < 0 {
		orders = 0
	}

	return SeasonalityConfig{
		Name:   name,
		Orders: orders,
		Period: period,
	}
}

func NewDailySeasonalityConfig(orders int) SeasonalityConfig {
	return NewSeasonalityConfig(LabelSeasDaily, 24*time.Hour, orders)
}

func NewWeeklySeasonalityConfig(orders int) SeasonalityConfig {
	return NewSeasonalityConfig(LabelSeasWeekly, 7*24*time.Hour, orders)
}

func NewYearlySeasonalityConfig(orders int) SeasonalityConfig {
	return NewSeasonalityConfig(LabelSeasYearly, time.Duration(365.25*24*float64(time.Hour)), orders)
}

// Resolve keeps the configs the training window can identify. A config needs the window
// to cover two periods, and each order must be resolvable by the sampling interval. Orders
// are then trimmed, highest first, until at most budget columns remain.
func (s SeasonalityOptions) Resolve(span, interval time.Duration, budget int) []SeasonalityConfig {
	res := make([]SeasonalityConfig, 0, len(s.SeasonalityConfigs))
	for _, cfg := range s.SeasonalityConfigs {
		if cfg.Name == "" || cfg.Period <= 0 || cfg.Orders <= 0 {
			continue
		}
		if span < minPeriodsCovered*cfg.Period {
			continue
		}
		orders := cfg.Orders
		if interval > 0 {
			// period/order must exceed twice the interval
			nyquist := int(math.Ceil(float64(cfg.Period)/(2*float64(interval)))) - 1
			orders = min(orders, nyquist)
		}
		if orders <= 0 {
			continue
		}
		res = append(res, NewSeasonalityConfig(cfg.Name, cfg.Period, orders))
	}

	budget = max(budget, 0)
	for numSeasonalityFeatures(res) > budget {
		sort.SliceStable(res, func(i, j int) bool { return res[i].Orders > res[j].Orders })
		res[0].Orders--
		if res[0].Orders == 0 {
			res = res[1:]
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].Period < res[j].Period })
	return res
}

func numSeasonalityFeatures(cfgs []SeasonalityConfig) int {
	var n int
	for _, cfg := range cfgs {
		n += 2 * cfg.Orders
	}
	return n
}

func generateSeasonalityFeatures(t []time.Time, cfgs []SeasonalityConfig) *feature.Set {
	feat := feature.NewSet()
	if len(cfgs) == 0 {
		return feat
	}
	epoch := make([]float64, len(t))
	for i, tPnt := range t {
		epoch[i] = float64(tPnt.UnixNano()) / 1e9
	}

	for _, cfg := range cfgs {
		periodSec := cfg.Period.Seconds()
		for order := 1; order <= cfg.Orders; order++ {
			sinFeat, cosFeat := generateFourierComponent(epoch, order, periodSec)
			feat.Set(feature.NewSeasonality(cfg.Name, feature.FourierCompSin, order), sinFeat)
			feat.Set(feature.NewSeasonality(cfg.Name, feature.FourierCompCos, order), cosFeat)
		}
	}
	return feat
}

func generateFourierComponent(epoch []float64, order int, period float64) ([]float64, []float64) {
	omega := 2.0 * math.Pi * float64(order) / period
	sinFeat := make([]float64, len(epoch))
	cosFeat := make([]float64, len(epoch))
	for i, tFeat := range epoch {
		rad := omega * tFeat
		sinFeat[i] = math.Sin(rad)
		cosFeat[i] = math.Cos(rad)
	}
	return sinFeat, cosFeat
}
