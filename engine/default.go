package engine

import "log/slog"

// NewDefaultEngine registers the trend seasonal variant, also addressable as prophet, and
// the autoregressive variant, also addressable as arima.
func NewDefaultEngine(logger *slog.Logger) *Engine {
	e := New(logger)
	// registration of distinct built in variants cannot collide
	_ = e.Register(NewTrendSeasonalModel(nil), "prophet")
	_ = e.Register(NewAutoregressiveModel(), "arima")
	return e
}
