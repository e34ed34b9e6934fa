package worker

import (
	"context"
	"time"

	"github.com/wmo-raf/adl-collector-app-sub000/internal/config"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/logger"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/refdata"

	"github.com/rs/zerolog"
)

// PullWorker refreshes the local station and mapping cache from each
// tenant's server once per interval, plus optionally on startup so a
// fresh install has reference data before the first submission.
type PullWorker struct {
	cfg         *config.Config
	pullService *refdata.Service
	timer       *time.Timer
	log         zerolog.Logger
}

func NewPullWorker(
	cfg *config.Config,
	pullService *refdata.Service,
) *PullWorker {
	return &PullWorker{
		cfg:         cfg,
		pullService: pullService,
		log:         logger.Get(),
	}
}

func (w *PullWorker) Start(ctx context.Context) error {
	w.log.Info().Msg("Starting pull worker")

	if w.cfg.Workers.Pull.RunOnStart {
		w.log.Info().Msg("Running initial pull on startup")
		if err := w.pullAll(ctx); err != nil {
			w.log.Error().Err(err).Msg("Initial pull failed")
		}
	}

	nextRun := w.getNextRunTime()
	w.log.Info().Time("next_run", nextRun).Msg("Scheduled next pull")
	w.timer = time.NewTimer(time.Until(nextRun))

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Pull worker context cancelled")
			return ctx.Err()
		case <-w.timer.C:
			w.log.Info().Msg("Starting scheduled pull")
			if err := w.pullAll(ctx); err != nil {
				w.log.Error().Err(err).Msg("Scheduled pull failed")
			}

			nextRun = w.getNextRunTime()
			w.log.Info().Time("next_run", nextRun).Msg("Scheduled next pull")
			w.timer.Reset(time.Until(nextRun))
		}
	}
}

func (w *PullWorker) Stop() {
	w.log.Info().Msg("Stopping pull worker")
	if w.timer != nil {
		w.timer.Stop()
	}
}

// getNextRunTime returns the next pull instant: end of the current day,
// or now plus the configured interval when one is set.
func (w *PullWorker) getNextRunTime() time.Time {
	now := time.Now()

	if w.cfg.Workers.Pull.Interval > 0 {
		return now.Add(w.cfg.Workers.Pull.Interval)
	}

	endOfDay := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, now.Location())
	if now.After(endOfDay) {
		endOfDay = endOfDay.Add(24 * time.Hour)
	}
	return endOfDay
}

func (w *PullWorker) pullAll(ctx context.Context) error {
	startTime := time.Now()

	err := w.pullService.PullAll(ctx)

	w.log.Info().
		Dur("duration", time.Since(startTime)).
		Bool("has_errors", err != nil).
		Msg("Reference data pull completed")

	return err
}
