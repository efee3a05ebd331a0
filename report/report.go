// Package report assembles forecast results into a persisted bundle with a rendered document.
package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aouyang1/forecastd/analytics"
	"github.com/aouyang1/forecastd/apperr"
	"github.com/aouyang1/forecastd/artifact"
	"github.com/aouyang1/forecastd/engine"
	"github.com/aouyang1/forecastd/stats"
	"github.com/google/uuid"
)

var ErrNoResult = errors.New("no forecast result to report")

// Bundle is the durable record of one pipeline invocation.
type Bundle struct {
	ID              string                     `json:"id"`
	Owner           string                     `json:"owner"`
	Filename        string                     `json:"filename"`
	TargetColumn    string                     `json:"target_column"`
	RequestedMode   string                     `json:"requested_mode"`
	Variant         engine.Variant             `json:"model_used"`
	CreatedAt       time.Time                  `json:"timestamp"`
	Forecast        []engine.Point             `json:"forecast"`
	Summary         analytics.SummaryStats     `json:"summary_stats"`
	Comparison      analytics.PeriodComparison `json:"comparison"`
	FitScores       *stats.Scores              `json:"fit_scores,omitempty"`
	Narrative       string                     `json:"summary"`
	ChartLocator    string                     `json:"plot"`
	DocumentLocator string                     `json:"pdf_report"`
}

// Input gathers the stage outputs of an invocation.
type Input struct {
	Owner         string
	Filename      string
	TargetColumn  string
	RequestedMode string
	Result        *engine.Result
	Summary       analytics.SummaryStats
	Comparison    analytics.PeriodComparison
	Narrative     string
	ChartLocator  string
}

// Saver commits a bundle to the owner's history.
type Saver interface {
	Save(ctx context.Context, b *Bundle) error
}

// Assembler builds bundles, stores their document and saves them.
type Assembler struct {
	renderer DocumentRenderer
	store    artifact.Store
	saver    Saver
	logger   *slog.Logger
	now      func() time.Time
}

func NewAssembler(renderer DocumentRenderer, store artifact.Store, saver Saver, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		renderer: renderer,
		store:    store,
		saver:    saver,
		logger:   logger,
		now:      time.Now,
	}
}

// Assemble returns the saved bundle. Any failure to render, store or save is a persistence
// error and leaves no stored document behind.
func (a *Assembler) Assemble(ctx context.Context, in Input) (*Bundle, error) {
	if in.Result == nil {
		return nil, ErrNoResult
	}

	b := &Bundle{
		ID:            uuid.NewString(),
		Owner:         in.Owner,
		Filename:      in.Filename,
		TargetColumn:  in.TargetColumn,
		RequestedMode: in.RequestedMode,
		Variant:       in.Result.Variant,
		CreatedAt:     a.now().UTC(),
		Forecast:      in.Result.Points,
		Summary:       in.Summary,
		Comparison:    in.Comparison,
		FitScores:     in.Result.Scores,
		Narrative:     in.Narrative,
		ChartLocator:  in.ChartLocator,
	}

	var buf bytes.Buffer
	if err := a.renderer.Render(&buf, b); err != nil {
		return nil, apperr.Persistence(fmt.Errorf("unable to render report document, %w", err))
	}

	key := artifact.NewKey("report", a.renderer.Extension())
	loc, err := a.store.Put(ctx, key, a.renderer.ContentType(), &buf)
	if err != nil {
		return nil, apperr.Persistence(fmt.Errorf("unable to store report document, %w", err))
	}
	b.DocumentLocator = loc

	if err := a.saver.Save(ctx, b); err != nil {
		// the request context may already be done
		if delErr := a.store.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			a.logger.Error("unable to remove report document after failed save", "key", key, "error", delErr)
		}
		return nil, apperr.Persistence(err)
	}

	a.logger.Info("report saved", "id", b.ID, "owner", b.Owner, "variant", b.Variant)
	return b, nil
}
