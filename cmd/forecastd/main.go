// Command forecastd serves the forecast pipeline over HTTP.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aouyang1/forecastd"
	"github.com/aouyang1/forecastd/api"
	"github.com/aouyang1/forecastd/artifact"
	"github.com/aouyang1/forecastd/auth"
	"github.com/aouyang1/forecastd/chart"
	"github.com/aouyang1/forecastd/config"
	"github.com/aouyang1/forecastd/engine"
	"github.com/aouyang1/forecastd/history"
	"github.com/aouyang1/forecastd/narrative"
	"github.com/aouyang1/forecastd/report"
	"github.com/aouyang1/forecastd/stats"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/profile"
	"github.com/redis/go-redis/v9"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to a config file")
	profileMode := flag.String("profile", "", "enable profiling, one of cpu or mem")
	flag.Parse()

	var prof interface{ Stop() }
	switch *profileMode {
	case "":
	case "cpu":
		prof = profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook)
	case "mem":
		prof = profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.NoShutdownHook)
	default:
		fmt.Fprintf(os.Stderr, "unknown profile mode %q\n", *profileMode)
		os.Exit(2)
	}

	err := run(*configPath)
	if prof != nil {
		prof.Stop()
	}
	if err != nil {
		slog.Error("forecastd exited", "error", err)
		os.Exit(1)
	}
}

type stores struct {
	history history.Store
	users   auth.UserStore
	close   func()
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := config.NewLogger(cfg.LogLevel, cfg.Environment)
	slog.SetDefault(logger)

	if cfg.Environment != config.EnvDevelopment {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	store, err := openArtifacts(ctx, cfg.Artifacts)
	if err != nil {
		return err
	}
	sweeper := artifact.NewSweeper(store, cfg.Artifacts.Retention, logger)
	if err := sweeper.Start(cfg.Artifacts.SweepSchedule); err != nil {
		return err
	}
	defer sweeper.Stop()

	docs, err := report.NewHTMLRenderer()
	if err != nil {
		return err
	}

	order, err := history.ParseOrder(cfg.Forecast.HistoryOrder, history.OrderDesc)
	if err != nil {
		return err
	}

	e := engine.NewDefaultEngine(logger)
	pipeline := forecastd.New(&forecastd.Options{
		Horizon:      cfg.Forecast.Horizon,
		MaxHorizon:   cfg.Forecast.MaxHorizon,
		HistoryOrder: order,
	}, forecastd.Deps{
		Selector:  engine.NewSelector(e, stats.NewADFClassifier(cfg.Forecast.Significance), logger),
		Engine:    e,
		Charts:    chart.NewEchartsRenderer(),
		Store:     store,
		Narrator:  narrative.NewRequester(cfg.Narrative, nil, logger),
		Assembler: report.NewAssembler(docs, store, st.history, logger),
		History:   st.history,
		Logger:    logger,
	})
	if cfg.Narrative.APIKey == "" {
		logger.Warn("NARRATIVE_API_KEY is not set, reports will carry an error narrative")
	}

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret, err = randomSecret()
		if err != nil {
			return err
		}
		logger.Warn("JWT_SECRET is not set, using an ephemeral secret")
	}
	authSvc, err := auth.NewService(st.users, auth.Options{
		Secret:     secret,
		Issuer:     cfg.Auth.Issuer,
		TokenTTL:   cfg.Auth.TokenTTL,
		BcryptCost: cfg.Auth.BcryptCost,
	})
	if err != nil {
		return err
	}

	srv := api.NewServer(pipeline, authSvc, map[string]api.Pinger{
		"history": st.history,
		"users":   st.users,
	}, api.Options{
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Version:        version,
	}, logger)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr, "version", version)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("unable to shut down cleanly, %w", err)
	}
	return <-errCh
}

// openStores connects PostgreSQL when a database URL is configured and falls back to memory.
// History reads go through redis when an address is configured.
func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	st := &stores{close: func() {}}

	if cfg.Database.URL == "" {
		logger.Warn("DATABASE_URL is not set, using in-memory stores")
		st.history = history.NewMemoryStore()
		st.users = auth.NewMemoryUserStore()
	} else {
		poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid database url, %w", err)
		}
		if cfg.Database.MaxConns > 0 {
			poolCfg.MaxConns = cfg.Database.MaxConns
		}
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, fmt.Errorf("unable to connect to database, %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("unable to reach database, %w", err)
		}

		hist := history.NewPostgresStore(pool)
		users := auth.NewPostgresUserStore(pool)
		if cfg.Database.Migrate {
			if err := users.Migrate(ctx); err != nil {
				pool.Close()
				return nil, err
			}
			if err := hist.Migrate(ctx); err != nil {
				pool.Close()
				return nil, err
			}
		}
		st.history = hist
		st.users = users
		st.close = pool.Close
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		st.history = history.NewCachedStore(st.history, client, cfg.Redis.CacheTTL, logger)

		closeDB := st.close
		st.close = func() {
			if err := client.Close(); err != nil {
				logger.Warn("unable to close redis client", "error", err)
			}
			closeDB()
		}
	}
	return st, nil
}

func openArtifacts(ctx context.Context, cfg config.ArtifactConfig) (artifact.Store, error) {
	switch cfg.Backend {
	case "s3":
		return artifact.NewS3StoreFromConfig(ctx, cfg.S3)
	default:
		return artifact.NewLocalStore(cfg.Dir)
	}
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("unable to generate secret, %w", err)
	}
	return hex.EncodeToString(b), nil
}
