package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aouyang1/forecastd"
	"github.com/aouyang1/forecastd/artifact"
	"github.com/aouyang1/forecastd/auth"
	"github.com/aouyang1/forecastd/chart"
	"github.com/aouyang1/forecastd/engine"
	"github.com/aouyang1/forecastd/history"
	"github.com/aouyang1/forecastd/narrative"
	"github.com/aouyang1/forecastd/report"
	"github.com/aouyang1/forecastd/stats"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var scenarioA = []float64{10, 12, 11, 13, 15, 14, 16, 18, 17, 19}

func scenarioCSV(y []float64) string {
	var sb strings.Builder
	sb.WriteString("date,sales\n")
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, v := range y {
		fmt.Fprintf(&sb, "%s,%g\n", start.AddDate(0, 0, i).Format("2006-01-02"), v)
	}
	return sb.String()
}

type pinger struct {
	err error
}

func (p pinger) Ping(ctx context.Context) error {
	return p.err
}

type testEnv struct {
	router *gin.Engine
	token  string
}

// newTestEnv wires the full stack with in-memory stores. narrativeStatus of 0 serves a
// successful completion.
func newTestEnv(t *testing.T, narrativeStatus int, opt Options, checks map[string]Pinger) *testEnv {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if narrativeStatus != 0 {
			http.Error(w, "upstream exploded", narrativeStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"Sales rise steadily."}}]}`)
	}))
	t.Cleanup(srv.Close)

	cfg := narrative.NewDefaultConfig()
	cfg.URL = srv.URL
	cfg.APIKey = "test-key"

	store, err := artifact.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	docs, err := report.NewHTMLRenderer()
	require.NoError(t, err)
	hist := history.NewMemoryStore()

	e := engine.NewDefaultEngine(nil)
	p := forecastd.New(nil, forecastd.Deps{
		Selector:  engine.NewSelector(e, stats.NewADFClassifier(stats.DefaultSignificance), nil),
		Engine:    e,
		Charts:    chart.NewEchartsRenderer(),
		Store:     store,
		Narrator:  narrative.NewRequester(cfg, nil, nil),
		Assembler: report.NewAssembler(docs, store, hist, nil),
		History:   hist,
	})

	authSvc, err := auth.NewService(auth.NewMemoryUserStore(), auth.Options{
		Secret:     "0123456789abcdef0123456789abcdef",
		BcryptCost: bcrypt.MinCost,
	})
	require.NoError(t, err)

	if checks == nil {
		checks = map[string]Pinger{"history": hist}
	}
	router := NewServer(p, authSvc, checks, opt, nil).Router()
	env := &testEnv{router: router}

	w := env.postForm("/api/v1/register", url.Values{"email": {"alice@example.com"}, "password": {"secret123"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = env.postForm("/api/v1/token", url.Values{"email": {"alice@example.com"}, "password": {"secret123"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var tok tokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tok))
	env.token = tok.AccessToken
	return env
}

func (env *testEnv) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func (env *testEnv) upload(t *testing.T, filename, content string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+env.token)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func (env *testEnv) get(path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var body struct {
		Error struct {
			Kind    string `json:"kind"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body.Error.Kind, body.Error.Message
}

func TestRegisterAndToken(t *testing.T) {
	env := newTestEnv(t, 0, Options{}, nil)

	testData := map[string]struct {
		path   string
		form   url.Values
		status int
		kind   string
	}{
		"duplicate registration": {
			path:   "/api/v1/register",
			form:   url.Values{"email": {"ALICE@example.com"}, "password": {"secret123"}},
			status: http.StatusConflict,
			kind:   "conflict",
		},
		"invalid email": {
			path:   "/api/v1/register",
			form:   url.Values{"email": {"alice"}, "password": {"secret123"}},
			status: http.StatusBadRequest,
			kind:   "invalid_input",
		},
		"short password": {
			path:   "/api/v1/register",
			form:   url.Values{"email": {"bob@example.com"}, "password": {"abc"}},
			status: http.StatusBadRequest,
			kind:   "invalid_input",
		},
		"wrong password": {
			path:   "/api/v1/token",
			form:   url.Values{"email": {"alice@example.com"}, "password": {"secret999"}},
			status: http.StatusUnauthorized,
			kind:   "unauthorized",
		},
		"unknown user": {
			path:   "/api/v1/token",
			form:   url.Values{"email": {"bob@example.com"}, "password": {"secret123"}},
			status: http.StatusUnauthorized,
			kind:   "unauthorized",
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			w := env.postForm(td.path, td.form)
			assert.Equal(t, td.status, w.Code)
			kind, _ := decodeError(t, w)
			assert.Equal(t, td.kind, kind)
		})
	}
}

func TestRequireAuth(t *testing.T) {
	env := newTestEnv(t, 0, Options{}, nil)

	testData := map[string]struct {
		header string
	}{
		"missing":      {header: ""},
		"wrong scheme": {header: "Basic " + env.token},
		"bad token":    {header: "Bearer not.a.token"},
		"empty token":  {header: "Bearer "},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/history", nil)
			if td.header != "" {
				req.Header.Set("Authorization", td.header)
			}
			w := httptest.NewRecorder()
			env.router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			kind, _ := decodeError(t, w)
			assert.Equal(t, "unauthorized", kind)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/history", nil)
	req.Header.Set("Authorization", "bearer "+env.token)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUploadScenarioA(t *testing.T) {
	env := newTestEnv(t, 0, Options{}, nil)

	w := env.upload(t, "sales.csv", scenarioCSV(scenarioA), map[string]string{"target_column": "sales", "model_type": "auto"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	for _, key := range []string{"msg", "report_id", "model_used", "forecast", "plot", "summary", "mean", "median", "trend", "comparison", "fit_scores", "pdf_report"} {
		assert.Contains(t, body, key)
	}
	assert.Equal(t, "Forecast complete", body["msg"])
	assert.Len(t, body["forecast"], forecastd.DefaultHorizon)
	assert.Equal(t, 14.5, body["mean"])
	assert.Equal(t, 14.5, body["median"])
	assert.Equal(t, "increasing", body["trend"])
	assert.Equal(t, "Sales rise steadily.", body["summary"])
	assert.Equal(t, map[string]interface{}{"current_avg": 16.8, "previous_avg": 12.2, "yoy_change": 37.7}, body["comparison"])

	first := body["forecast"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "2024-01-11T00:00:00Z", first["ds"])
	assert.Contains(t, first, "yhat")

	w = env.get("/api/v1/history", env.token)
	require.Equal(t, http.StatusOK, w.Code)
	var entries []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	for _, key := range []string{"filename", "model", "timestamp", "plot", "summary", "report"} {
		assert.Contains(t, entries[0], key)
	}
	assert.Equal(t, "sales.csv", entries[0]["filename"])
	assert.Equal(t, body["model_used"], entries[0]["model"])
	assert.Equal(t, body["report_id"], entries[0]["report"].(map[string]interface{})["id"])
}

func TestUploadErrors(t *testing.T) {
	env := newTestEnv(t, 0, Options{}, nil)

	testData := map[string]struct {
		filename string
		content  string
		fields   map[string]string
		status   int
		kind     string
		message  string
	}{
		"scenario b missing column": {
			filename: "sales.csv",
			content:  scenarioCSV(scenarioA),
			fields:   map[string]string{"target_column": "revenue"},
			status:   http.StatusBadRequest,
			kind:     "invalid_input",
			message:  "target column not found",
		},
		"scenario c unknown model": {
			filename: "sales.csv",
			content:  scenarioCSV(scenarioA),
			fields:   map[string]string{"target_column": "sales", "model_type": "unknown_model"},
			status:   http.StatusBadRequest,
			kind:     "unsupported_mode",
			message:  "unknown_model",
		},
		"forecast failure": {
			filename: "sales.csv",
			content:  scenarioCSV([]float64{1, 2, 3, 4}),
			fields:   map[string]string{"target_column": "sales", "model_type": "arima"},
			status:   http.StatusUnprocessableEntity,
			kind:     "forecasting_failed",
		},
		"no target column": {
			filename: "sales.csv",
			content:  scenarioCSV(scenarioA),
			fields:   map[string]string{},
			status:   http.StatusBadRequest,
			kind:     "invalid_input",
			message:  "target_column",
		},
		"bad horizon": {
			filename: "sales.csv",
			content:  scenarioCSV(scenarioA),
			fields:   map[string]string{"target_column": "sales", "horizon": "ten"},
			status:   http.StatusBadRequest,
			kind:     "invalid_input",
			message:  "horizon",
		},
		"unsupported file": {
			filename: "sales.txt",
			content:  scenarioCSV(scenarioA),
			fields:   map[string]string{"target_column": "sales"},
			status:   http.StatusBadRequest,
			kind:     "invalid_input",
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			w := env.upload(t, td.filename, td.content, td.fields)
			assert.Equal(t, td.status, w.Code, w.Body.String())
			kind, message := decodeError(t, w)
			assert.Equal(t, td.kind, kind)
			assert.Contains(t, message, td.message)
		})
	}

	w := env.get("/api/v1/history", env.token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestUploadScenarioDNarrativeFailure(t *testing.T) {
	env := newTestEnv(t, http.StatusInternalServerError, Options{}, nil)

	w := env.upload(t, "sales.csv", scenarioCSV(scenarioA), map[string]string{"target_column": "sales", "horizon": "5"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body uploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, strings.HasPrefix(body.Summary, "[LLM Error] 500"), body.Summary)
	assert.Len(t, body.Forecast, 5)
	assert.NotEmpty(t, body.PDFReport)

	w = env.get("/api/v1/history", env.token)
	require.Equal(t, http.StatusOK, w.Code)
	var entries []historyEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, body.Summary, entries[0].Summary)
}

func TestUploadTooLarge(t *testing.T) {
	env := newTestEnv(t, 0, Options{MaxUploadBytes: 128}, nil)

	w := env.upload(t, "sales.csv", scenarioCSV(append(scenarioA, scenarioA...)), map[string]string{"target_column": "sales"})
	assert.Contains(t, []int{http.StatusRequestEntityTooLarge, http.StatusBadRequest}, w.Code)
	kind, _ := decodeError(t, w)
	assert.Equal(t, "invalid_input", kind)
}

func TestHistoryInvalidOrder(t *testing.T) {
	env := newTestEnv(t, 0, Options{}, nil)
	w := env.get("/api/v1/history?order=sideways", env.token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	kind, _ := decodeError(t, w)
	assert.Equal(t, "invalid_input", kind)
}

func TestHealth(t *testing.T) {
	testData := map[string]struct {
		checks   map[string]Pinger
		status   int
		expected map[string]string
	}{
		"all up": {
			checks:   map[string]Pinger{"database": pinger{}, "cache": pinger{}},
			status:   http.StatusOK,
			expected: map[string]string{"database": "up", "cache": "up"},
		},
		"cache down": {
			checks:   map[string]Pinger{"database": pinger{}, "cache": pinger{err: errors.New("refused")}},
			status:   http.StatusServiceUnavailable,
			expected: map[string]string{"database": "up", "cache": "down"},
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t, 0, Options{Version: "test"}, td.checks)
			w := env.get("/health", "")
			assert.Equal(t, td.status, w.Code)

			var body healthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, td.expected, body.Services)
			assert.Equal(t, "test", body.Version)
			assert.Equal(t, []string{"autoregressive", "trend_seasonal"}, body.Models)
		})
	}
}

func TestRequestLoggerUser(t *testing.T) {
	testData := map[string]struct {
		user     string
		expected string
	}{
		"authenticated": {user: "3f1c2a9e", expected: "user=3f1c2a9e"},
		"anonymous":     {},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			router := gin.New()
			router.Use(requestLogger(slog.New(slog.NewTextHandler(&buf, nil))))
			router.GET("/ping", func(c *gin.Context) {
				if td.user != "" {
					c.Set(ctxUserID, td.user)
				}
				c.Status(http.StatusNoContent)
			})

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
			assert.Equal(t, http.StatusNoContent, w.Code)
			assert.Contains(t, buf.String(), "status=204")
			if td.expected == "" {
				assert.NotContains(t, buf.String(), "user=")
				return
			}
			assert.Contains(t, buf.String(), td.expected)
		})
	}
}
