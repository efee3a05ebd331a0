package artifact

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSweepSchedule runs the retention sweep once an hour.
const DefaultSweepSchedule = "@hourly"

// Sweeper deletes artifacts older than the retention on a cron schedule.
type Sweeper struct {
	store     Store
	retention time.Duration
	cron      *cron.Cron
	logger    *slog.Logger
	now       func() time.Time
}

func NewSweeper(store Store, retention time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:     store,
		retention: retention,
		cron:      cron.New(),
		logger:    logger,
		now:       time.Now,
	}
}

// Sweep deletes every artifact last modified before now minus the retention and returns the
// number deleted.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	objects, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := s.now().Add(-s.retention)

	var deleted int
	for _, obj := range objects {
		if !obj.ModTime.Before(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, obj.Key); err != nil {
			return deleted, fmt.Errorf("unable to sweep %s, %w", obj.Key, err)
		}
		deleted++
	}
	return deleted, nil
}

// Start schedules the sweep. A non-positive retention disables it.
func (s *Sweeper) Start(schedule string) error {
	if s.retention <= 0 {
		s.logger.Info("artifact retention disabled")
		return nil
	}
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		start := time.Now()
		deleted, err := s.Sweep(ctx)
		if err != nil {
			s.logger.Error("artifact sweep failed", "deleted", deleted, "duration", time.Since(start), "error", err)
			return
		}
		s.logger.Info("artifact sweep completed", "deleted", deleted, "duration", time.Since(start))
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q, %w", schedule, err)
	}
	s.cron.Start()
	s.logger.Info("artifact sweeper started", "schedule", schedule, "retention", s.retention)
	return nil
}

// Stop waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}
