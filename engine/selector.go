package engine

import (
	"errors"
	"log/slog"

	"github.com/aouyang1/forecastd/apperr"
	"github.com/aouyang1/forecastd/stats"
)

// Classifier judges whether a series is stationary.
type Classifier interface {
	IsStationary(y []float64) (bool, error)
}

// Selector maps a requested mode to a variant. Explicit modes never consult the classifier.
type Selector struct {
	engine     *Engine
	classifier Classifier
	logger     *slog.Logger
}

func NewSelector(e *Engine, c Classifier, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{
		engine:     e,
		classifier: c,
		logger:     logger,
	}
}

// Select resolves mode to a variant. In auto mode a stationary series goes to the
// autoregressive variant and anything else to the trend seasonal one. Series too short for
// the stationarity test are treated as non-stationary.
func (s *Selector) Select(mode string, y []float64) (Variant, error) {
	if normalize(mode) != ModeAuto {
		v, exists := s.engine.Resolve(mode)
		if !exists {
			return "", apperr.UnsupportedMode(mode)
		}
		return v, nil
	}

	stationary, err := s.classifier.IsStationary(y)
	if err != nil {
		if !errors.Is(err, stats.ErrInsufficientObservations) {
			return "", apperr.ForecastingFailed(err)
		}
		s.logger.Warn("series too short for stationarity test, assuming non-stationary",
			"observations", len(y), "error", err)
		return VariantTrendSeasonal, nil
	}

	s.logger.Debug("classified series", "stationary", stationary, "observations", len(y))
	if stationary {
		return VariantAutoregressive, nil
	}
	return VariantTrendSeasonal, nil
}
