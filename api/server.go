// Package api serves the forecast pipeline over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aouyang1/forecastd"
	"github.com/aouyang1/forecastd/auth"
	"github.com/aouyang1/forecastd/report"
	"github.com/gin-gonic/gin"
)

const (
	DefaultMaxUploadBytes = 32 << 20
	healthTimeout         = 2 * time.Second
)

// Forecaster runs uploads through the pipeline, lists saved reports and names the models it
// can run.
type Forecaster interface {
	Run(ctx context.Context, req forecastd.Request) (*forecastd.Results, error)
	History(ctx context.Context, owner, order string) ([]report.Bundle, error)
	Models() []string
}

// Authenticator registers users and issues and verifies bearer tokens.
type Authenticator interface {
	Register(ctx context.Context, email, password string) (*auth.User, error)
	Login(ctx context.Context, email, password string) (string, error)
	ParseToken(token string) (*auth.Claims, error)
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	MaxUploadBytes int64
	Version        string
}

type Server struct {
	forecaster Forecaster
	auth       Authenticator
	checks     map[string]Pinger
	opt        Options
	logger     *slog.Logger
}

func NewServer(f Forecaster, a Authenticator, checks map[string]Pinger, opt Options, logger *slog.Logger) *Server {
	if opt.MaxUploadBytes <= 0 {
		opt.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		forecaster: f,
		auth:       a,
		checks:     checks,
		opt:        opt,
		logger:     logger,
	}
}

// Router returns the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(s.logger))
	router.MaxMultipartMemory = s.opt.MaxUploadBytes

	router.GET("/health", s.health)
	router.HEAD("/health", s.health)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/register", s.register)
		v1.POST("/token", s.token)

		authed := v1.Group("")
		authed.Use(requireAuth(s.auth))
		{
			authed.POST("/upload", s.upload)
			authed.GET("/history", s.history)
		}
	}
	return router
}

type healthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version,omitempty"`
	Services  map[string]string `json:"services"`
	Models    []string          `json:"models"`
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   s.opt.Version,
		Services:  make(map[string]string, len(s.checks)),
		Models:    s.forecaster.Models(),
	}
	status := http.StatusOK
	for name, check := range s.checks {
		if err := check.Ping(ctx); err != nil {
			s.logger.Warn("health check failed", "service", name, "error", err)
			resp.Services[name] = "down"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Services[name] = "up"
	}
	c.JSON(status, resp)
}
