package maintenance

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/vitotech/website-api/internal/services"
	"github.com/vitotech/website-api/internal/storage"
	"github.com/vitotech/website-api/pkg/logger"
)

const (
	defaultSweepSchedule = "0 3 * * *"
	defaultGracePeriod   = time.Hour
)

// Sweeper removes attachment files no message references anymore. A
// delete removes the record first and the file second, so a crash in
// between leaves an orphan on disk; the sweep reclaims it.
type Sweeper struct {
	store    *storage.Store
	messages *services.NotificationService
	cron     *cron.Cron
	now      func() time.Time
	log      *zap.Logger
	schedule string
	grace    time.Duration
}

// Option customises the Sweeper.
type Option func(*Sweeper)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Sweeper) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithNow overrides the clock used for the grace-period comparison.
func WithNow(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSchedule overrides the cron specification for the sweep.
func WithSchedule(spec string) Option {
	return func(s *Sweeper) {
		if spec != "" {
			s.schedule = spec
		}
	}
}

// WithGracePeriod sets how recently a file must have been written to be
// left alone. Protects uploads racing an in-flight submission.
func WithGracePeriod(grace time.Duration) Option {
	return func(s *Sweeper) {
		if grace >= 0 {
			s.grace = grace
		}
	}
}

// NewSweeper constructs a Sweeper with sensible defaults.
func NewSweeper(store *storage.Store, messages *services.NotificationService, opts ...Option) (*Sweeper, error) {
	if store == nil {
		return nil, errors.New("maintenance: store is required")
	}
	if messages == nil {
		return nil, errors.New("maintenance: notification service is required")
	}

	sweeper := &Sweeper{
		store:    store,
		messages: messages,
		now:      time.Now,
		schedule: defaultSweepSchedule,
		grace:    defaultGracePeriod,
		log:      logger.WithModule("maintenance"),
	}
	for _, opt := range opts {
		opt(sweeper)
	}
	if sweeper.cron == nil {
		sweeper.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return sweeper, nil
}

// Start registers the sweep with the cron scheduler and launches it.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, func() {
		stats, err := s.RunOnce(context.Background())
		if err != nil {
			s.log.Warn("attachment sweep failed", zap.Error(err))
			return
		}
		if stats.Removed > 0 {
			s.log.Info("attachment sweep removed orphans",
				zap.Int("scanned", stats.Scanned), zap.Int("removed", stats.Removed))
		}
	}); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for a running sweep to complete.
func (s *Sweeper) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// SweepStats summarises a single sweep run.
type SweepStats struct {
	Scanned int
	Removed int
}

// RunOnce scans the attachment directory and removes files that no
// record references and that are older than the grace period.
func (s *Sweeper) RunOnce(ctx context.Context) (SweepStats, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	stats := SweepStats{}

	referenced, err := s.messages.ReferencedAttachments(ctx)
	if err != nil {
		return stats, err
	}

	files, err := s.store.ListAttachments()
	if err != nil {
		return stats, err
	}
	stats.Scanned = len(files)

	cutoff := s.now().Add(-s.grace)

	var errs error
	for _, file := range files {
		if _, ok := referenced[file]; ok {
			continue
		}

		info, err := os.Stat(s.store.FilePath(file))
		if err != nil {
			if !os.IsNotExist(err) {
				errs = multierr.Append(errs, err)
			}
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		if err := s.store.Remove(file); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		stats.Removed++
	}

	return stats, errs
}
