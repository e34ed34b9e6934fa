package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

type ObservationStatus string

const (
	StatusQueued    ObservationStatus = "QUEUED"
	StatusUploading ObservationStatus = "UPLOADING"
	StatusSynced    ObservationStatus = "SYNCED"
	StatusFailed    ObservationStatus = "FAILED"
)

// Status transitions: QUEUED → UPLOADING → {SYNCED | FAILED}, plus manual
// FAILED → QUEUED for operator-initiated retry. SYNCED is terminal.
var validObservationTransitions = map[ObservationStatus]map[ObservationStatus]bool{
	StatusQueued: {
		StatusUploading: true,
	},
	StatusUploading: {
		StatusSynced: true,
		StatusFailed: true,
		StatusQueued: true, // stale-sweep requeue only
	},
	StatusFailed: {
		StatusQueued: true,
	},
}

func IsTerminal(s ObservationStatus) bool {
	return s == StatusSynced
}

func ValidTransition(from, to ObservationStatus) bool {
	return validObservationTransitions[from][to]
}

// ObservationKey identifies an observation globally: one record per tenant,
// station and scheduled instant.
type ObservationKey struct {
	Tenant       string    `json:"tenant"`
	StationID    int64     `json:"station_id"`
	ScheduledUTC time.Time `json:"scheduled_utc"`
}

func (k ObservationKey) String() string {
	return fmt.Sprintf("%s|%d|%s", k.Tenant, k.StationID, k.ScheduledUTC.UTC().Format(time.RFC3339))
}

// IdempotencyKey derives the stable server-side deduplication key from the
// record identity, so re-submitting the same record after a retry is safe.
func (k ObservationKey) IdempotencyKey() string {
	sum := sha256.Sum256([]byte(k.String()))
	return hex.EncodeToString(sum[:])
}

// Observation is one queued submission. Late and Locked are snapshotted at
// validation time and never recomputed from wall-clock time afterwards.
type Observation struct {
	Tenant       string            `json:"tenant" db:"tenant"`
	StationID    int64             `json:"station_id" db:"station_id"`
	StationName  string            `json:"station_name" db:"station_name"`
	Timezone     string            `json:"timezone" db:"timezone"`
	ScheduledUTC time.Time         `json:"scheduled_utc" db:"scheduled_utc"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at" db:"updated_at"`
	Late         bool              `json:"late" db:"late"`
	Locked       bool              `json:"locked" db:"locked"`
	ScheduleMode string            `json:"schedule_mode" db:"schedule_mode"`
	Payload      json.RawMessage   `json:"payload" db:"payload"`
	Status       ObservationStatus `json:"status" db:"status"`
	RemoteID     *int64            `json:"remote_id,omitempty" db:"remote_id"`
	LastError    *string           `json:"last_error,omitempty" db:"last_error"`
}

func (o *Observation) Key() ObservationKey {
	return ObservationKey{Tenant: o.Tenant, StationID: o.StationID, ScheduledUTC: o.ScheduledUTC}
}

// ObservationPayload is the stored shape of Observation.Payload: the measured
// values plus the submission metadata captured at validation time.
type ObservationPayload struct {
	Records         []MeasuredValue `json:"records"`
	SubmissionTime  time.Time       `json:"submission_time"`
	DuplicatePolicy string          `json:"duplicate_policy,omitempty"`
	Reason          string          `json:"reason,omitempty"`
}

type MeasuredValue struct {
	VariableMappingID int64   `json:"variable_mapping_id"`
	Value             float64 `json:"value"`
}
