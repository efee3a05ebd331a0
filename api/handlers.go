package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aouyang1/forecastd"
	"github.com/aouyang1/forecastd/analytics"
	"github.com/aouyang1/forecastd/apperr"
	"github.com/aouyang1/forecastd/auth"
	"github.com/aouyang1/forecastd/engine"
	"github.com/aouyang1/forecastd/report"
	"github.com/aouyang1/forecastd/stats"
	"github.com/gin-gonic/gin"
)

const (
	kindUnauthorized apperr.Kind = "unauthorized"
	kindConflict     apperr.Kind = "conflict"

	defaultModelType = engine.ModeAuto
)

type errorBody struct {
	Error apperr.Error `json:"error"`
}

func abortWithError(c *gin.Context, status int, kind apperr.Kind, message string) {
	c.AbortWithStatusJSON(status, errorBody{Error: apperr.Error{Kind: kind, Message: message}})
}

// writeError maps a classified pipeline error to its status and body.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	kind := apperr.KindOf(err)
	abortWithError(c, apperr.HTTPStatus(kind), kind, apperr.Message(err))
}

type registerResponse struct {
	Msg string `json:"msg"`
	ID  string `json:"id"`
}

func (s *Server) register(c *gin.Context) {
	email, password := c.PostForm("email"), c.PostForm("password")
	u, err := s.auth.Register(c.Request.Context(), email, password)
	switch {
	case errors.Is(err, auth.ErrUserExists):
		abortWithError(c, http.StatusConflict, kindConflict, "email already registered")
		return
	case errors.Is(err, auth.ErrInvalidEmail), errors.Is(err, auth.ErrWeakPassword):
		abortWithError(c, http.StatusBadRequest, apperr.KindInvalidInput, err.Error())
		return
	case err != nil:
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, registerResponse{Msg: "Registered successfully", ID: u.ID})
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (s *Server) token(c *gin.Context) {
	token, err := s.auth.Login(c.Request.Context(), c.PostForm("email"), c.PostForm("password"))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			abortWithError(c, http.StatusUnauthorized, kindUnauthorized, "invalid credentials")
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

type comparisonResponse struct {
	CurrentAverage  float64 `json:"current_avg"`
	PreviousAverage float64 `json:"previous_avg"`
	PercentChange   float64 `json:"yoy_change"`
}

type uploadResponse struct {
	Msg        string             `json:"msg"`
	ReportID   string             `json:"report_id"`
	ModelUsed  engine.Variant     `json:"model_used"`
	Forecast   []engine.Point     `json:"forecast"`
	Plot       string             `json:"plot"`
	Summary    string             `json:"summary"`
	Mean       float64            `json:"mean"`
	Median     float64            `json:"median"`
	Trend      analytics.Trend    `json:"trend"`
	Comparison comparisonResponse `json:"comparison"`
	FitScores  *stats.Scores      `json:"fit_scores,omitempty"`
	PDFReport  string             `json:"pdf_report"`
}

func newUploadResponse(b *report.Bundle) uploadResponse {
	return uploadResponse{
		Msg:       "Forecast complete",
		ReportID:  b.ID,
		ModelUsed: b.Variant,
		Forecast:  b.Forecast,
		Plot:      b.ChartLocator,
		Summary:   b.Narrative,
		Mean:      b.Summary.Mean,
		Median:    b.Summary.Median,
		Trend:     b.Summary.Trend,
		Comparison: comparisonResponse{
			CurrentAverage:  b.Comparison.CurrentAverage,
			PreviousAverage: b.Comparison.PreviousAverage,
			PercentChange:   b.Comparison.PercentChange,
		},
		FitScores: b.FitScores,
		PDFReport: b.DocumentLocator,
	}
}

func (s *Server) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opt.MaxUploadBytes)

	fh, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			abortWithError(c, http.StatusRequestEntityTooLarge, apperr.KindInvalidInput, "upload exceeds size limit")
			return
		}
		writeError(c, apperr.InvalidInput(err))
		return
	}
	target := strings.TrimSpace(c.PostForm("target_column"))
	if target == "" {
		abortWithError(c, http.StatusBadRequest, apperr.KindInvalidInput, "target_column is required")
		return
	}
	mode := c.DefaultPostForm("model_type", defaultModelType)

	var horizon int
	if raw := strings.TrimSpace(c.PostForm("horizon")); raw != "" {
		horizon, err = strconv.Atoi(raw)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, apperr.KindInvalidInput, "horizon must be an integer")
			return
		}
	}

	f, err := fh.Open()
	if err != nil {
		writeError(c, apperr.InvalidInput(err))
		return
	}
	defer f.Close()

	res, err := s.forecaster.Run(c.Request.Context(), forecastd.Request{
		Owner:        c.GetString(ctxUserID),
		Filename:     fh.Filename,
		Data:         f,
		TargetColumn: target,
		Mode:         mode,
		Horizon:      horizon,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newUploadResponse(res.Bundle))
}

// historyEntry keeps the keys of the original history listing next to the full report.
type historyEntry struct {
	Filename  string         `json:"filename"`
	Model     engine.Variant `json:"model"`
	Timestamp time.Time      `json:"timestamp"`
	Plot      string         `json:"plot"`
	Summary   string         `json:"summary"`
	Report    report.Bundle  `json:"report"`
}

func (s *Server) history(c *gin.Context) {
	bundles, err := s.forecaster.History(c.Request.Context(), c.GetString(ctxUserID), c.Query("order"))
	if err != nil {
		writeError(c, err)
		return
	}
	entries := make([]historyEntry, 0, len(bundles))
	for _, b := range bundles {
		entries = append(entries, historyEntry{
			Filename:  b.Filename,
			Model:     b.Variant,
			Timestamp: b.CreatedAt,
			Plot:      b.ChartLocator,
			Summary:   b.Narrative,
			Report:    b,
		})
	}
	c.JSON(http.StatusOK, entries)
}
