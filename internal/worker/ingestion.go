package worker

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"time"

	"github.com/wmo-raf/adl-collector-app-sub000/internal/config"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/excel"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/intake"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/logger"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/model"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/queue"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/storage"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/store"
	"github.com/wmo-raf/adl-collector-app-sub000/pkg/errors"

	"github.com/rs/zerolog"
)

type IngestionWorker struct {
	cfg        *config.Config
	store      *store.Store
	storage    storage.Storage
	intake     *intake.Service
	parser     excel.ParsingStrategy
	consumer   *queue.Consumer
	workerPool *WorkerPool
	log        zerolog.Logger
}

func NewIngestionWorker(
	cfg *config.Config,
	st *store.Store,
	storage storage.Storage,
	redisClient *queue.RedisClient,
) *IngestionWorker {
	return &IngestionWorker{
		cfg:        cfg,
		store:      st,
		storage:    storage,
		intake:     intake.NewService(cfg, st),
		parser:     excel.NewExcelStrategy(),
		consumer:   queue.NewConsumer(redisClient, cfg),
		workerPool: NewWorkerPool("ingestion", cfg.Workers.Ingestion.Count),
		log:        logger.Get(),
	}
}

func (w *IngestionWorker) Start(ctx context.Context) error {
	w.log.Info().Msg("Starting ingestion worker")

	w.workerPool.Start(ctx)

	return w.consumer.ConsumeIngestionQueue(ctx, w.handleMessage)
}

func (w *IngestionWorker) Stop() {
	w.log.Info().Msg("Stopping ingestion worker")
	w.workerPool.Stop()
}

func (w *IngestionWorker) handleMessage(ctx context.Context, data []byte) error {
	var job model.IngestionJob
	if err := json.Unmarshal(data, &job); err != nil {
		w.log.Error().Err(err).Msg("Failed to unmarshal ingestion job")
		return err
	}

	w.log.Info().
		Str("import_id", job.ImportID).
		Str("tenant", job.Tenant).
		Str("object_key", job.ObjectKey).
		Msg("Processing ingestion job")

	if !w.workerPool.Submit(func(ctx context.Context) error {
		return w.processFile(ctx, job)
	}) {
		return stderrors.New("ingestion pool saturated")
	}

	return nil
}

func (w *IngestionWorker) processFile(ctx context.Context, job model.IngestionJob) error {
	log := logger.ForTenant(job.Tenant).With().Str("import_id", job.ImportID).Logger()

	reader, err := w.storage.Download(ctx, job.ObjectKey)
	if err != nil {
		log.Error().Err(err).Msg("Failed to download file")
		return w.fail(ctx, job, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read file data")
		return w.fail(ctx, job, err)
	}

	log.Debug().Msg("Parsing workbook")
	rows, err := w.parser.Parse(ctx, data)
	if err != nil {
		log.Error().Err(err).Msg("Failed to parse workbook")
		return w.fail(ctx, job, err)
	}

	if len(rows) == 0 {
		log.Error().Msg("Workbook has no data rows")
		return w.fail(ctx, job, errors.ErrSchemaValidation)
	}

	// Each row is validated and queued through the same path as an
	// interactive submission. A row the validator or the schedule rejects
	// is a bad row, not a broken import, unless skipping is disabled.
	var queued, skipped int
	for i, row := range rows {
		err := w.parser.ValidateRow(ctx, row)
		if err == nil {
			_, err = w.intake.QueueSubmit(ctx, intake.SubmitInput{
				Tenant:         job.Tenant,
				StationName:    row.StationName,
				RequestedLocal: row.LocalTime,
				NamedValues:    row.Values,
			})
		}
		if err != nil {
			if w.cfg.Workers.Ingestion.SkipBadRows && rowRejected(err) {
				log.Warn().Err(err).Int("row", i+1).Msg("Skipping rejected row")
				skipped++
				continue
			}
			log.Error().Err(err).Int("row", i+1).Msg("Failed to queue row")
			return w.fail(ctx, job, err)
		}
		queued++
	}

	err = w.store.FinishImport(ctx, job.ImportID, model.ImportStatusParsedOK, queued, skipped, nil, time.Now().UTC())
	if err != nil {
		log.Error().Err(err).Msg("Failed to update import status")
		return err
	}

	log.Info().Int("queued", queued).Int("skipped", skipped).Msg("Import processed successfully")
	return nil
}

func (w *IngestionWorker) fail(ctx context.Context, job model.IngestionJob, cause error) error {
	errMsg := cause.Error()
	if err := w.store.FinishImport(ctx, job.ImportID, model.ImportStatusParsedFail, 0, 0, &errMsg, time.Now().UTC()); err != nil {
		w.log.Error().Err(err).Str("import_id", job.ImportID).Msg("Failed to record import failure")
	}
	return cause
}

// rowRejected reports whether the error concerns only the one row,
// as opposed to infrastructure failures that doom the whole import.
func rowRejected(err error) bool {
	var schedErr errors.ScheduleError
	var valErr errors.ValidationError
	return stderrors.As(err, &schedErr) || stderrors.As(err, &valErr) || stderrors.Is(err, errors.ErrUnknownStation)
}
