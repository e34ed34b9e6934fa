package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wmo-raf/adl-collector-app-sub000/internal/auth"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/config"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/logger"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/model"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/store"
	"github.com/wmo-raf/adl-collector-app-sub000/pkg/errors"
)

// DefaultBatchSize bounds one drain pass.
const DefaultBatchSize = 10

// Orchestrator drains the observation queue for a tenant in bounded batches.
// Records are processed strictly sequentially so status transitions stay
// observably ordered for queue stream watchers, and one record's failure
// never aborts the batch.
type Orchestrator struct {
	cfg    *config.Config
	store  *store.Store
	tokens *auth.Manager
	now    func() time.Time
	log    zerolog.Logger
}

func NewOrchestrator(cfg *config.Config, st *store.Store, tokens *auth.Manager) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		store:  st,
		tokens: tokens,
		now:    time.Now,
		log:    logger.Get(),
	}
}

// DrainBatch uploads up to maxItems pending records, oldest first. It
// returns progressed=false when the queue had nothing to attempt. A missing
// or unrefreshable credential fails the whole pass before any record is
// touched, so the scheduled pass can defer rather than burn records.
func (o *Orchestrator) DrainBatch(ctx context.Context, tenant, endpoint string, maxItems int) (bool, error) {
	if maxItems <= 0 {
		maxItems = DefaultBatchSize
	}
	log := logger.ForTenant(tenant)

	pending, err := o.store.QueryPending(ctx, tenant, maxItems)
	if err != nil {
		return false, err
	}
	if len(pending) == 0 {
		return false, nil
	}

	tc, ok := o.cfg.Tenant(tenant)
	if !ok {
		return false, fmt.Errorf("unknown tenant: %s", tenant)
	}

	// Batch-level credential check. Zero network calls happen when no
	// refresh token is stored.
	if _, err := o.tokens.AccessToken(ctx, tenant); err != nil {
		return false, err
	}

	client := NewClient(tc, o.tokens)

	log.Info().Int("batch_size", len(pending)).Msg("Draining observation batch")

	for _, obs := range pending {
		o.processRecord(ctx, client, tc, endpoint, obs, log)
	}

	return true, nil
}

func (o *Orchestrator) processRecord(ctx context.Context, client *Client, tc *config.TenantConfig, endpoint string, obs *model.Observation, log zerolog.Logger) {
	key := obs.Key()
	recLog := log.With().
		Int64("station_id", obs.StationID).
		Time("scheduled_utc", obs.ScheduledUTC).
		Logger()

	if err := o.store.UpdateStatus(ctx, key, model.StatusUploading, nil, o.now()); err != nil {
		recLog.Error().Err(err).Msg("Failed to mark observation uploading")
		return
	}

	request, err := buildSubmitRequest(obs, tc.AppVersion)
	if err != nil {
		// Malformed stored payload: permanent failure, no network attempt.
		msg := errors.ErrMalformedPayload.Error()
		recLog.Error().Err(err).Msg("Stored payload failed to parse")
		if err := o.store.UpdateStatus(ctx, key, model.StatusFailed, &msg, o.now()); err != nil {
			recLog.Error().Err(err).Msg("Failed to mark observation failed")
		}
		return
	}

	resp, err := client.Submit(ctx, endpoint, request)
	if err != nil {
		msg := err.Error()
		recLog.Warn().Err(err).Msg("Observation submission failed")
		if err := o.store.UpdateStatus(ctx, key, model.StatusFailed, &msg, o.now()); err != nil {
			recLog.Error().Err(err).Msg("Failed to mark observation failed")
		}
		return
	}

	if err := o.store.MarkSynced(ctx, key, resp.ID, o.now()); err != nil {
		recLog.Error().Err(err).Msg("Failed to mark observation synced")
		return
	}
	recLog.Debug().Int64("remote_id", resp.ID).Msg("Observation synced")
}

// buildSubmitRequest parses the stored payload into the wire submission.
func buildSubmitRequest(obs *model.Observation, appVersion string) (*model.SubmitRequest, error) {
	var payload model.ObservationPayload
	if err := json.Unmarshal(obs.Payload, &payload); err != nil {
		return nil, errors.PayloadError{Err: err}
	}
	if len(payload.Records) == 0 {
		return nil, errors.PayloadError{Err: fmt.Errorf("no measured values")}
	}

	return &model.SubmitRequest{
		IdempotencyKey:  obs.Key().IdempotencyKey(),
		SubmissionTime:  payload.SubmissionTime.UTC().Format(time.RFC3339),
		ObservationTime: obs.ScheduledUTC.UTC().Format(time.RFC3339),
		StationLinkID:   obs.StationID,
		Records:         payload.Records,
		Metadata: model.SubmissionMetadata{
			Late:            obs.Late,
			DuplicatePolicy: payload.DuplicatePolicy,
			Reason:          payload.Reason,
			AppVersion:      appVersion,
		},
	}, nil
}
