package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wmo-raf/adl-collector-app-sub000/internal/config"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/logger"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/model"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/schedule"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/store"
	"github.com/wmo-raf/adl-collector-app-sub000/pkg/errors"
)

// LocalTimeLayout is how explicit observation times are written by users,
// interpreted in the station's timezone.
const LocalTimeLayout = "2006-01-02 15:04"

// Service turns submission requests into queued observations. The schedule
// policy runs before anything is persisted; a rejected submission leaves no
// trace in the queue.
type Service struct {
	cfg   *config.Config
	store *store.Store
	now   func() time.Time
	log   zerolog.Logger
}

func NewService(cfg *config.Config, st *store.Store) *Service {
	return &Service{
		cfg:   cfg,
		store: st,
		now:   time.Now,
		log:   logger.Get(),
	}
}

// SubmitInput is one observation to validate and queue. Exactly one of
// StationID or StationName must be set, and one of Records (mapping ids,
// from the API) or NamedValues (variable names, from spreadsheet imports).
// RequestedLocal is optional, LocalTimeLayout in station-local time.
type SubmitInput struct {
	Tenant          string
	StationID       int64
	StationName     string
	RequestedLocal  string
	Records         []model.MeasuredValue
	NamedValues     []model.NamedValue
	DuplicatePolicy string
	Reason          string
}

// QueueSubmit validates the submission window and persists the observation
// as QUEUED. The late/locked flags are computed here, once, and stored
// immutably on the record.
func (s *Service) QueueSubmit(ctx context.Context, in SubmitInput) (*model.Observation, error) {
	if len(in.Records) == 0 && len(in.NamedValues) == 0 {
		return nil, errors.ValidationError{Field: "records", Value: in.Records, Message: "at least one measured value is required"}
	}

	station, err := s.lookupStation(ctx, in)
	if err != nil {
		return nil, err
	}

	records := in.Records
	for _, nv := range in.NamedValues {
		mappingID, ok := station.MappingFor(nv.Variable)
		if !ok {
			return nil, errors.ValidationError{Field: "variable", Value: nv.Variable, Message: "not mapped for station " + station.Name}
		}
		records = append(records, model.MeasuredValue{VariableMappingID: mappingID, Value: nv.Value})
	}

	spec := station.Schedule
	if spec.Mode == "" {
		tc, ok := s.cfg.Tenant(in.Tenant)
		if !ok {
			return nil, fmt.Errorf("unknown tenant: %s", in.Tenant)
		}
		spec = tc.DefaultSchedule
	}
	mode, err := spec.Compile()
	if err != nil {
		return nil, fmt.Errorf("invalid schedule for station %d: %w", station.StationID, err)
	}

	loc, err := station.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid station timezone %q: %w", station.Timezone, err)
	}

	var requested *time.Time
	if in.RequestedLocal != "" {
		t, err := time.ParseInLocation(LocalTimeLayout, in.RequestedLocal, loc)
		if err != nil {
			return nil, errors.ValidationError{Field: "observation_time", Value: in.RequestedLocal, Message: "expected format " + LocalTimeLayout}
		}
		requested = &t
	}

	now := s.now()
	result := schedule.Validate(mode, loc, now.UTC(), requested)
	if !result.OK {
		return nil, errors.ScheduleError{Reason: result.Reason}
	}

	payload, err := json.Marshal(model.ObservationPayload{
		Records:         records,
		SubmissionTime:  now.UTC(),
		DuplicatePolicy: in.DuplicatePolicy,
		Reason:          in.Reason,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	obs := &model.Observation{
		Tenant:       in.Tenant,
		StationID:    station.StationID,
		StationName:  station.Name,
		Timezone:     station.Timezone,
		ScheduledUTC: schedule.LocalToUTC(result.NormalizedLocal),
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
		Late:         result.Late,
		Locked:       result.Locked,
		ScheduleMode: mode.Tag(),
		Payload:      payload,
		Status:       model.StatusQueued,
	}

	if err := s.store.Upsert(ctx, obs); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("tenant", obs.Tenant).
		Int64("station_id", obs.StationID).
		Time("scheduled_utc", obs.ScheduledUTC).
		Bool("late", obs.Late).
		Msg("Observation queued")

	return obs, nil
}

func (s *Service) lookupStation(ctx context.Context, in SubmitInput) (*model.Station, error) {
	if in.StationID != 0 {
		return s.store.GetStation(ctx, in.Tenant, in.StationID)
	}
	if in.StationName != "" {
		return s.store.GetStationByName(ctx, in.Tenant, in.StationName)
	}
	return nil, errors.ValidationError{Field: "station", Value: nil, Message: "station id or name is required"}
}
