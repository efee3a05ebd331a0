// Package narrative asks a chat-completions service to explain the trend changes of a
// forecast. Failures never abort the caller: they are reported as marker text together with
// an error wrapping apperr.ErrNarrativeUnavailable.
package narrative

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/aouyang1/forecastd/apperr"
	"github.com/aouyang1/forecastd/engine"
	"github.com/goccy/go-json"
)

const (
	DefaultURL          = "https://api.together.xyz/v1/chat/completions"
	DefaultModel        = "mistralai/Mistral-7B-Instruct-v0.2"
	DefaultTemperature  = 0.7
	DefaultTimeout      = 30 * time.Second
	DefaultTailSize     = 10
	DefaultSystemPrompt = "You are a helpful assistant that summarizes changepoints in time series."

	promptHeader    = "Explain the trend changes in this forecast data:"
	errorMarker     = "[LLM Error]"
	maxErrorBodyLen = 64 << 10
)

var (
	ErrNoAPIKey      = errors.New("no narrative api key configured")
	ErrEmptyResponse = errors.New("response has no choices")
)

// Config of the chat-completions endpoint. APIKey is injected from the environment.
type Config struct {
	URL          string        `mapstructure:"url"`
	APIKey       string        `mapstructure:"api_key"`
	Model        string        `mapstructure:"model"`
	Temperature  float64       `mapstructure:"temperature"`
	Timeout      time.Duration `mapstructure:"timeout"`
	TailSize     int           `mapstructure:"tail_size"`
	SystemPrompt string        `mapstructure:"system_prompt"`
}

func NewDefaultConfig() Config {
	return Config{
		URL:          DefaultURL,
		Model:        DefaultModel,
		Temperature:  DefaultTemperature,
		Timeout:      DefaultTimeout,
		TailSize:     DefaultTailSize,
		SystemPrompt: DefaultSystemPrompt,
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// Requester generates narratives with a bounded timeout per call.
type Requester struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

// NewRequester returns a requester. A nil client gets one with the configured timeout.
func NewRequester(cfg Config, client *http.Client, logger *slog.Logger) *Requester {
	def := NewDefaultConfig()
	if cfg.URL == "" {
		cfg.URL = def.URL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.TailSize <= 0 {
		cfg.TailSize = def.TailSize
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = def.SystemPrompt
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Requester{
		cfg:    cfg,
		client: client,
		logger: logger,
	}
}

// Explain returns the generated narrative for the tail of points. On failure the returned
// text carries an error marker and the error wraps apperr.ErrNarrativeUnavailable.
func (r *Requester) Explain(ctx context.Context, points []engine.Point) (string, error) {
	text, err := r.explain(ctx, Prompt(points, r.cfg.TailSize))
	if err != nil {
		r.logger.Warn("narrative unavailable", "error", err)
		return text, fmt.Errorf("%w, %w", apperr.ErrNarrativeUnavailable, err)
	}
	return text, nil
}

func (r *Requester) explain(ctx context.Context, prompt string) (string, error) {
	if r.cfg.APIKey == "" {
		return unavailable(ErrNoAPIKey), ErrNoAPIKey
	}

	body, err := json.Marshal(chatRequest{
		Model: r.cfg.Model,
		Messages: []message{
			{Role: "system", Content: r.cfg.SystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: r.cfg.Temperature,
	})
	if err != nil {
		return unavailable(err), err
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return unavailable(err), err
	}
	req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return unavailable(err), err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		err := fmt.Errorf("narrative service returned status %d", resp.StatusCode)
		return fmt.Sprintf("%s %d: %s", errorMarker, resp.StatusCode, string(errBody)), err
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		err = fmt.Errorf("unable to decode narrative response, %w", err)
		return unavailable(err), err
	}
	if len(chat.Choices) == 0 {
		return unavailable(ErrEmptyResponse), ErrEmptyResponse
	}
	return chat.Choices[0].Message.Content, nil
}

func unavailable(err error) string {
	return fmt.Sprintf("%s unavailable: %v", errorMarker, err)
}

// IsErrorText reports whether a narrative is an error marker rather than generated text.
func IsErrorText(text string) bool {
	return strings.HasPrefix(text, errorMarker)
}

// Prompt formats the last tail points as a ds/yhat table under the instruction line.
func Prompt(points []engine.Point, tail int) string {
	if tail > 0 && len(points) > tail {
		points = points[len(points)-tail:]
	}

	var sb strings.Builder
	sb.WriteString(promptHeader)
	sb.WriteString("\n")

	tw := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprint(tw, "ds\tyhat\t\n")
	for _, p := range points {
		fmt.Fprintf(tw, "%s\t%.6f\t\n", formatTime(p.T), p.Value)
	}
	tw.Flush()
	return strings.TrimRight(sb.String(), "\n")
}

func formatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}
