package report

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"math"
	"time"

	"github.com/aouyang1/forecastd/engine"
)

//go:embed templates/*.html
var templateFS embed.FS

// DocumentRenderer writes the human readable report of a bundle.
type DocumentRenderer interface {
	Render(w io.Writer, b *Bundle) error
	ContentType() string
	Extension() string
}

// HTMLRenderer renders the report as a standalone HTML page.
type HTMLRenderer struct {
	tmpl *template.Template
}

func NewHTMLRenderer() (*HTMLRenderer, error) {
	tmpl, err := template.New("report.html").Funcs(template.FuncMap{
		"num":      formatNumber,
		"ts":       formatTime,
		"interval": formatInterval,
	}).ParseFS(templateFS, "templates/report.html")
	if err != nil {
		return nil, fmt.Errorf("unable to parse report template, %w", err)
	}
	return &HTMLRenderer{tmpl: tmpl}, nil
}

func (r *HTMLRenderer) Render(w io.Writer, b *Bundle) error {
	return r.tmpl.Execute(w, b)
}

func (r *HTMLRenderer) ContentType() string {
	return "text/html; charset=utf-8"
}

func (r *HTMLRenderer) Extension() string {
	return ".html"
}

func formatNumber(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v)
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

func formatInterval(p engine.Point) string {
	if !p.HasInterval() {
		return ""
	}
	return fmt.Sprintf("%.2f to %.2f", *p.Lower, *p.Upper)
}
