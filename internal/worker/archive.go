package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"path"
	"strconv"
	"time"

	"github.com/wmo-raf/adl-collector-app-sub000/internal/config"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/logger"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/model"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/storage"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/store"

	"github.com/rs/zerolog"
)

// ArchiveWorker mirrors every record that reaches SYNCED to object storage
// as JSON, one object per observation. It rides the store's change stream,
// so archiving is best effort and never blocks the upload path.
type ArchiveWorker struct {
	cfg     *config.Config
	store   *store.Store
	storage storage.Storage
	log     zerolog.Logger
}

func NewArchiveWorker(
	cfg *config.Config,
	st *store.Store,
	storage storage.Storage,
) *ArchiveWorker {
	return &ArchiveWorker{
		cfg:     cfg,
		store:   st,
		storage: storage,
		log:     logger.Get(),
	}
}

func (w *ArchiveWorker) Start(ctx context.Context) error {
	w.log.Info().Msg("Starting archive worker")

	for _, tc := range w.cfg.Tenants {
		sub, err := w.store.StreamAll(ctx, tc.ID)
		if err != nil {
			return err
		}
		go w.run(ctx, tc.ID, sub)
	}

	<-ctx.Done()
	return ctx.Err()
}

func (w *ArchiveWorker) run(ctx context.Context, tenant string, sub *store.Subscription) {
	defer sub.Cancel()

	log := logger.ForTenant(tenant)
	archived := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			return
		case snapshot, ok := <-sub.C:
			if !ok {
				return
			}
			for _, obs := range snapshot {
				if obs.Status != model.StatusSynced {
					continue
				}
				key := obs.Key().String()
				if _, done := archived[key]; done {
					continue
				}
				if err := w.upload(ctx, obs); err != nil {
					log.Warn().Err(err).Str("key", key).Msg("Failed to archive record, will retry on next change")
					continue
				}
				archived[key] = struct{}{}
			}
		}
	}
}

func (w *ArchiveWorker) upload(ctx context.Context, obs *model.Observation) error {
	data, err := json.Marshal(obs)
	if err != nil {
		return err
	}

	objectKey := path.Join(
		w.cfg.Storage.S3.ArchivePrefix,
		obs.Tenant,
		strconv.FormatInt(obs.StationID, 10),
		obs.ScheduledUTC.UTC().Format(time.RFC3339)+".json",
	)
	return w.storage.Upload(ctx, objectKey, bytes.NewReader(data))
}
