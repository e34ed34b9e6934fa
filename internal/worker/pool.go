package worker

import (
	"context"
	"sync"

	"github.com/wmo-raf/adl-collector-app-sub000/internal/logger"

	"github.com/rs/zerolog"
)

// WorkerPool runs drain and ingestion passes on a bounded set of goroutines.
// Submitted jobs carry their own tenant scoping; the pool only bounds
// concurrency.
type WorkerPool struct {
	name        string
	workerCount int
	jobChan     chan func(context.Context) error
	wg          sync.WaitGroup
	log         zerolog.Logger
}

func NewWorkerPool(name string, workerCount int) *WorkerPool {
	return &WorkerPool{
		name:        name,
		workerCount: workerCount,
		jobChan:     make(chan func(context.Context) error, workerCount*2),
		log:         logger.Get().With().Str("pool", name).Logger(),
	}
}

func (wp *WorkerPool) Start(ctx context.Context) {
	wp.log.Info().Int("worker_count", wp.workerCount).Msg("Starting worker pool")

	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) Stop() {
	wp.log.Info().Msg("Stopping worker pool")
	close(wp.jobChan)
	wp.wg.Wait()
	wp.log.Info().Msg("Worker pool stopped")
}

// Submit hands a job to the pool. It reports false when the queue is full
// and the job was dropped; callers that must not lose the job surface the
// drop as an error so the message lands in the dead-letter queue.
func (wp *WorkerPool) Submit(job func(context.Context) error) bool {
	select {
	case wp.jobChan <- job:
		return true
	default:
		wp.log.Warn().Msg("Worker pool job queue full, job dropped")
		return false
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()

	log := wp.log.With().Int("worker_id", id).Logger()
	log.Debug().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("Worker stopping due to context cancellation")
			return
		case job, ok := <-wp.jobChan:
			if !ok {
				log.Debug().Msg("Worker stopping due to closed job channel")
				return
			}

			if err := job(ctx); err != nil {
				log.Error().Err(err).Msg("Job execution failed")
			}
		}
	}
}
