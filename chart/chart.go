// Package chart describes forecast plots and renders them as interactive HTML pages.
package chart

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

var (
	ErrEmptyPlot         = errors.New("plot has no time axis")
	ErrSeriesLenMismatch = errors.New("series length does not match time axis")
)

const (
	SeriesObserved = "Observed"
	SeriesFitted   = "Fitted"
	SeriesForecast = "Forecast"

	bandStack  = "band"
	bandColor  = "rgba(84, 112, 198, 0.25)"
	gapValue   = "-"
	dateLayout = "2006-01-02"
	timeLayout = "2006-01-02 15:04"
)

// Series is a named line aligned to the plot time axis. NaN values are drawn as gaps.
type Series struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// Band is a shaded interval aligned to the plot time axis.
type Band struct {
	Lower []float64 `json:"lower"`
	Upper []float64 `json:"upper"`
}

// Plot is a renderer independent description of a forecast chart.
type Plot struct {
	Title  string      `json:"title"`
	T      []time.Time `json:"time"`
	Series []Series    `json:"series"`
	Band   *Band       `json:"band,omitempty"`
}

// HasBand reports whether the plot shades an interval.
func (p Plot) HasBand() bool {
	return p.Band != nil
}

// Validate checks that every series and the band share the length of the time axis.
func (p Plot) Validate() error {
	if len(p.T) == 0 {
		return ErrEmptyPlot
	}
	for _, s := range p.Series {
		if len(s.Values) != len(p.T) {
			return fmt.Errorf("series %s has %d values for %d timestamps, %w", s.Name, len(s.Values), len(p.T), ErrSeriesLenMismatch)
		}
	}
	if p.Band != nil && (len(p.Band.Lower) != len(p.T) || len(p.Band.Upper) != len(p.T)) {
		return fmt.Errorf("band, %w", ErrSeriesLenMismatch)
	}
	return nil
}

// Renderer writes a plot in some output format.
type Renderer interface {
	Render(w io.Writer, p Plot) error
	ContentType() string
	Extension() string
}

// EchartsRenderer renders plots as standalone Apache ECharts HTML pages.
type EchartsRenderer struct{}

func NewEchartsRenderer() *EchartsRenderer {
	return &EchartsRenderer{}
}

func (r *EchartsRenderer) ContentType() string {
	return "text/html; charset=utf-8"
}

func (r *EchartsRenderer) Extension() string {
	return ".html"
}

// Render draws each series as a line. The band is drawn as an invisible lower line with the
// upper minus lower width stacked on top of it and filled.
func (r *EchartsRenderer) Render(w io.Writer, p Plot) error {
	if err := p.Validate(); err != nil {
		return err
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: p.Title,
		}),
		charts.WithTitleOpts(opts.Title{
			Title: p.Title,
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Trigger: "axis",
		}),
	)

	line.SetXAxis(axisLabels(p.T))
	for _, s := range p.Series {
		line.AddSeries(s.Name, lineData(s.Values))
	}

	if p.Band != nil {
		width := make([]float64, len(p.T))
		for i := range width {
			width[i] = p.Band.Upper[i] - p.Band.Lower[i]
		}
		line.AddSeries("Lower", lineData(p.Band.Lower),
			charts.WithLineChartOpts(opts.LineChart{Stack: bandStack}),
		)
		line.AddSeries("Interval", lineData(width),
			charts.WithLineChartOpts(opts.LineChart{Stack: bandStack}),
			charts.WithAreaStyleOpts(opts.AreaStyle{Color: bandColor}),
		)
	}

	return line.Render(w)
}

func lineData(y []float64) []opts.LineData {
	data := make([]opts.LineData, 0, len(y))
	for _, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			data = append(data, opts.LineData{Value: gapValue})
			continue
		}
		data = append(data, opts.LineData{Value: v})
	}
	return data
}

// axisLabels formats timestamps as dates unless any of them carries a time of day.
func axisLabels(t []time.Time) []string {
	layout := dateLayout
	for _, tPnt := range t {
		if tPnt.Hour() != 0 || tPnt.Minute() != 0 {
			layout = timeLayout
			break
		}
	}
	labels := make([]string, len(t))
	for i, tPnt := range t {
		labels[i] = tPnt.Format(layout)
	}
	return labels
}
