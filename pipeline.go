// Package forecastd orchestrates a forecast request from an uploaded table to a saved report:
// model selection, forecasting, analytics, chart and narrative generation and report
// persistence.
package forecastd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/aouyang1/forecastd/analytics"
	"github.com/aouyang1/forecastd/apperr"
	"github.com/aouyang1/forecastd/artifact"
	"github.com/aouyang1/forecastd/chart"
	"github.com/aouyang1/forecastd/engine"
	"github.com/aouyang1/forecastd/history"
	"github.com/aouyang1/forecastd/ingest"
	"github.com/aouyang1/forecastd/report"
	"github.com/aouyang1/forecastd/timedataset"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNoOwner                  = errors.New("request has no owner")
	ErrNoData                   = errors.New("request has no data")
	ErrInsufficientObservations = errors.New("series has too few observations")
	ErrHorizonOutOfRange        = errors.New("horizon out of range")
)

// Narrator explains a forecast in prose. On failure it still returns text to show in place
// of the narrative along with the error.
type Narrator interface {
	Explain(ctx context.Context, points []engine.Point) (string, error)
}

// HistoryLister lists an owner's saved bundles.
type HistoryLister interface {
	List(ctx context.Context, owner string, order history.Order) ([]report.Bundle, error)
}

// Request is one uploaded table to forecast. Horizon of 0 uses the configured default.
type Request struct {
	Owner        string
	Filename     string
	Data         io.Reader
	TargetColumn string
	Mode         string
	Horizon      int
}

type Pipeline struct {
	opt       *Options
	selector  *engine.Selector
	engine    *engine.Engine
	charts    chart.Renderer
	store     artifact.Store
	narrator  Narrator
	assembler *report.Assembler
	history   HistoryLister
	logger    *slog.Logger
}

// Deps are the collaborators of a Pipeline.
type Deps struct {
	Selector  *engine.Selector
	Engine    *engine.Engine
	Charts    chart.Renderer
	Store     artifact.Store
	Narrator  Narrator
	Assembler *report.Assembler
	History   HistoryLister
	Logger    *slog.Logger
}

func New(opt *Options, deps Deps) *Pipeline {
	if opt == nil {
		opt = NewDefaultOptions()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		opt:       opt,
		selector:  deps.Selector,
		engine:    deps.Engine,
		charts:    deps.Charts,
		store:     deps.Store,
		narrator:  deps.Narrator,
		assembler: deps.Assembler,
		history:   deps.History,
		logger:    logger,
	}
}

// Run parses the upload, forecasts it and saves the report. Invalid input and unsupported
// modes fail before any model runs. A failed forecast stops the pipeline before charts,
// narrative or persistence. A failed narrative is carried as marker text. Failures after
// the chart is stored remove it.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Results, error) {
	td, horizon, err := p.validate(req)
	if err != nil {
		return nil, err
	}
	logger := p.logger.With("owner", req.Owner, "filename", req.Filename, "mode", req.Mode)

	var timings Timings
	start := time.Now()
	variant, err := p.selector.Select(req.Mode, td.Values())
	if err != nil {
		logger.Info("unable to select model", "error", err)
		return nil, err
	}
	timings.Select = time.Since(start)

	start = time.Now()
	res, err := p.engine.Run(ctx, variant, td, horizon)
	if err != nil {
		logger.Warn("forecast failed", "variant", variant, "error", err)
		return nil, err
	}
	timings.Forecast = time.Since(start)

	start = time.Now()
	out, err := p.fanOut(ctx, td, res)
	if err != nil {
		logger.Warn("report stages failed", "variant", variant, "error", err)
		return nil, err
	}
	timings.FanOut = time.Since(start)
	if out.narrativeErr != nil {
		logger.Warn("narrative unavailable, continuing with marker", "error", out.narrativeErr)
	}

	start = time.Now()
	bundle, err := p.assembler.Assemble(ctx, report.Input{
		Owner:         req.Owner,
		Filename:      req.Filename,
		TargetColumn:  req.TargetColumn,
		RequestedMode: req.Mode,
		Result:        res,
		Summary:       out.summary,
		Comparison:    out.comparison,
		Narrative:     out.narrative,
		ChartLocator:  out.chartLocator,
	})
	if err != nil {
		p.removeArtifact(ctx, out.chartKey)
		if apperr.KindOf(err) == apperr.KindInternal {
			err = apperr.Persistence(err)
		}
		logger.Error("unable to save report", "error", err)
		return nil, err
	}
	timings.Assemble = time.Since(start)

	logger.Info("forecast report created",
		"id", bundle.ID,
		"variant", variant,
		"horizon", horizon,
		"observations", td.Len(),
		"select", timings.Select,
		"forecast", timings.Forecast,
		"fan_out", timings.FanOut,
		"assemble", timings.Assemble,
	)
	return &Results{
		Bundle:       bundle,
		Forecast:     res,
		NarrativeErr: out.narrativeErr,
		Timings:      timings,
	}, nil
}

func (p *Pipeline) validate(req Request) (*timedataset.TimeDataset, int, error) {
	if req.Owner == "" {
		return nil, 0, apperr.InvalidInput(ErrNoOwner)
	}
	if req.Data == nil {
		return nil, 0, apperr.InvalidInput(ErrNoData)
	}

	horizon := req.Horizon
	if horizon == 0 {
		horizon = p.opt.Horizon
	}
	if horizon < 1 || horizon > p.opt.MaxHorizon {
		return nil, 0, apperr.InvalidInput(fmt.Errorf("got %d, need [1, %d], %w", horizon, p.opt.MaxHorizon, ErrHorizonOutOfRange))
	}

	td, err := ingest.Load(req.Data, req.Filename, req.TargetColumn)
	if err != nil {
		return nil, 0, apperr.InvalidInput(err)
	}
	if valid := countValid(td.Y); valid < MinObservations {
		return nil, 0, apperr.InvalidInput(fmt.Errorf("got %d, need %d, %w", valid, MinObservations, ErrInsufficientObservations))
	}
	return td, horizon, nil
}

func countValid(y []float64) int {
	var n int
	for _, v := range y {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

type stageOutputs struct {
	summary      analytics.SummaryStats
	comparison   analytics.PeriodComparison
	chartKey     string
	chartLocator string
	narrative    string
	narrativeErr error
}

// fanOut runs analytics, chart storage and the narrative concurrently. Only chart storage can
// fail the group.
func (p *Pipeline) fanOut(ctx context.Context, td *timedataset.TimeDataset, res *engine.Result) (*stageOutputs, error) {
	out := &stageOutputs{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		y := td.Values()
		summary := analytics.Summarize(y)
		comparison := analytics.Compare(y)

		mu.Lock()
		out.summary, out.comparison = summary, comparison
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		key, loc, err := p.storeChart(gctx, res.Plot)

		mu.Lock()
		out.chartKey, out.chartLocator = key, loc
		mu.Unlock()
		return err
	})
	g.Go(func() error {
		text, err := p.narrator.Explain(gctx, res.Points)

		mu.Lock()
		out.narrative, out.narrativeErr = text, err
		mu.Unlock()
		return nil
	})

	if err := g.Wait(); err != nil {
		p.removeArtifact(ctx, out.chartKey)
		return nil, err
	}
	return out, nil
}

func (p *Pipeline) storeChart(ctx context.Context, plot chart.Plot) (string, string, error) {
	var buf bytes.Buffer
	if err := p.charts.Render(&buf, plot); err != nil {
		return "", "", apperr.Persistence(fmt.Errorf("unable to render chart, %w", err))
	}
	key := artifact.NewKey("plot", p.charts.Extension())
	loc, err := p.store.Put(ctx, key, p.charts.ContentType(), &buf)
	if err != nil {
		return "", "", apperr.Persistence(fmt.Errorf("unable to store chart, %w", err))
	}
	return key, loc, nil
}

func (p *Pipeline) removeArtifact(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := p.store.Delete(context.WithoutCancel(ctx), key); err != nil {
		p.logger.Error("unable to remove artifact", "key", key, "error", err)
	}
}

// Models returns the registered model variants sorted by name.
func (p *Pipeline) Models() []string {
	variants := p.engine.Variants()
	res := make([]string, len(variants))
	for i, v := range variants {
		res[i] = string(v)
	}
	return res
}

// History lists the owner's reports. An empty order uses the configured default.
func (p *Pipeline) History(ctx context.Context, owner, order string) ([]report.Bundle, error) {
	if owner == "" {
		return nil, apperr.InvalidInput(ErrNoOwner)
	}
	o, err := history.ParseOrder(order, p.opt.HistoryOrder)
	if err != nil {
		return nil, apperr.InvalidInput(err)
	}
	bundles, err := p.history.List(ctx, owner, o)
	if err != nil {
		return nil, apperr.Persistence(err)
	}
	return bundles, nil
}
