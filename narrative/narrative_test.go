package narrative

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aouyang1/forecastd/apperr"
	"github.com/aouyang1/forecastd/engine"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPoints(n int) []engine.Point {
	start := time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC)
	points := make([]engine.Point, n)
	for i := range points {
		points[i] = engine.NewPoint(start.AddDate(0, 0, i), 20+float64(i), 19, 21+float64(i))
	}
	return points
}

func TestPrompt(t *testing.T) {
	prompt := Prompt(testPoints(30), 10)
	lines := strings.Split(prompt, "\n")
	require.Len(t, lines, 12)
	assert.Equal(t, promptHeader, lines[0])
	assert.Contains(t, lines[1], "ds")
	assert.Contains(t, lines[1], "yhat")
	assert.Contains(t, lines[2], "2024-01-31")
	assert.Contains(t, lines[2], "40.000000")
	assert.Contains(t, lines[11], "2024-02-09")
	assert.NotContains(t, prompt, "2024-01-30")

	short := Prompt(testPoints(3), 10)
	assert.Len(t, strings.Split(short, "\n"), 5)
}

func TestExplain(t *testing.T) {
	testData := map[string]struct {
		handler   http.HandlerFunc
		apiKey    string
		timeout   time.Duration
		expected  string
		prefix    string
		expectErr bool
	}{
		"success": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Authorization") != "Bearer test-key" {
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
				var req chatRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Model != DefaultModel ||
					req.Temperature != DefaultTemperature || len(req.Messages) != 2 ||
					!strings.HasPrefix(req.Messages[1].Content, promptHeader) {
					w.WriteHeader(http.StatusBadRequest)
					return
				}
				io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"Values rise steadily."}}]}`)
			},
			apiKey:   "test-key",
			expected: "Values rise steadily.",
		},
		"server error": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				io.WriteString(w, "boom")
			},
			apiKey:    "test-key",
			expected:  "[LLM Error] 500: boom",
			expectErr: true,
		},
		"timeout": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
			apiKey:    "test-key",
			timeout:   50 * time.Millisecond,
			prefix:    "[LLM Error] unavailable: ",
			expectErr: true,
		},
		"no choices": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, `{"choices":[]}`)
			},
			apiKey:    "test-key",
			expected:  "[LLM Error] unavailable: " + ErrEmptyResponse.Error(),
			expectErr: true,
		},
		"missing key": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, `{"choices":[{"message":{"content":"unexpected"}}]}`)
			},
			expected:  "[LLM Error] unavailable: " + ErrNoAPIKey.Error(),
			expectErr: true,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(td.handler)
			defer srv.Close()

			cfg := NewDefaultConfig()
			cfg.URL = srv.URL
			cfg.APIKey = td.apiKey
			if td.timeout > 0 {
				cfg.Timeout = td.timeout
			}

			r := NewRequester(cfg, nil, nil)
			text, err := r.Explain(context.Background(), testPoints(15))
			if td.expectErr {
				assert.ErrorIs(t, err, apperr.ErrNarrativeUnavailable)
				assert.True(t, IsErrorText(text))
			} else {
				assert.NoError(t, err)
				assert.False(t, IsErrorText(text))
			}
			if td.prefix != "" {
				assert.True(t, strings.HasPrefix(text, td.prefix), text)
				return
			}
			assert.Equal(t, td.expected, text)
		})
	}
}
