package worker

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/wmo-raf/adl-collector-app-sub000/internal/config"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/logger"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/model"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/queue"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/store"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/sync"
	"github.com/wmo-raf/adl-collector-app-sub000/pkg/errors"

	"github.com/rs/zerolog"
)

// DrainWorker uploads queued observations. Passes are triggered two ways:
// drain jobs arriving on the Redis queue (pushed by the API after each
// submission) and a periodic per-tenant tick that also sweeps stale
// UPLOADING records left behind by a crash.
type DrainWorker struct {
	cfg          *config.Config
	store        *store.Store
	orchestrator *sync.Orchestrator
	consumer     *queue.Consumer
	workerPool   *WorkerPool
	probeClient  *http.Client
	log          zerolog.Logger
}

func NewDrainWorker(
	cfg *config.Config,
	st *store.Store,
	orchestrator *sync.Orchestrator,
	redisClient *queue.RedisClient,
) *DrainWorker {
	return &DrainWorker{
		cfg:          cfg,
		store:        st,
		orchestrator: orchestrator,
		consumer:     queue.NewConsumer(redisClient, cfg),
		workerPool:   NewWorkerPool("drain", cfg.Workers.Drain.Count),
		probeClient:  &http.Client{Timeout: 5 * time.Second},
		log:          logger.Get(),
	}
}

func (w *DrainWorker) Start(ctx context.Context) error {
	w.log.Info().Msg("Starting drain worker")

	w.workerPool.Start(ctx)

	if w.cfg.Workers.Drain.Interval > 0 {
		go w.runPeriodic(ctx)
	}

	return w.consumer.ConsumeDrainQueue(ctx, w.handleMessage)
}

func (w *DrainWorker) Stop() {
	w.log.Info().Msg("Stopping drain worker")
	w.workerPool.Stop()
}

func (w *DrainWorker) handleMessage(ctx context.Context, data []byte) error {
	var job model.DrainJob
	if err := json.Unmarshal(data, &job); err != nil {
		w.log.Error().Err(err).Msg("Failed to unmarshal drain job")
		return err
	}

	w.log.Info().
		Str("tenant", job.Tenant).
		Str("endpoint", job.Endpoint).
		Msg("Processing drain job")

	if !w.workerPool.Submit(func(ctx context.Context) error {
		return w.runPass(ctx, job.Tenant, job.Endpoint, false)
	}) {
		return stderrors.New("drain pool saturated")
	}

	return nil
}

func (w *DrainWorker) runPeriodic(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Workers.Drain.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, tc := range w.cfg.Tenants {
				tenant := tc.ID
				w.workerPool.Submit(func(ctx context.Context) error {
					return w.runPass(ctx, tenant, "", true)
				})
			}
		}
	}
}

// runPass drains one tenant's queue until a batch makes no progress.
// Scheduled passes additionally requeue records stuck in UPLOADING.
// Offline tenants and tenants without credentials are deferred, not
// failed: their records stay QUEUED for the next pass.
func (w *DrainWorker) runPass(ctx context.Context, tenant, endpoint string, scheduled bool) error {
	log := logger.ForTenant(tenant)

	if scheduled {
		requeued, err := w.store.RequeueStale(ctx, tenant, w.cfg.Workers.Drain.StaleAfter, time.Now().UTC())
		if err != nil {
			return err
		}
		if requeued > 0 {
			log.Warn().Int("count", requeued).Msg("Requeued stale uploading records")
		}
	}

	if !w.online(ctx, tenant) {
		log.Info().Msg("Server unreachable, deferring drain pass")
		return nil
	}

	for {
		progressed, err := w.orchestrator.DrainBatch(ctx, tenant, endpoint, w.cfg.Workers.Drain.BatchSize)
		if err != nil {
			if errors.IsAuthError(err) {
				log.Warn().Err(err).Msg("Credentials unavailable, deferring drain pass")
				return nil
			}
			return err
		}
		if !progressed {
			return nil
		}
	}
}

func (w *DrainWorker) online(ctx context.Context, tenant string) bool {
	tc, ok := w.cfg.Tenant(tenant)
	if !ok {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, tc.BaseURL, nil)
	if err != nil {
		return false
	}

	resp, err := w.probeClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}
