package model

import "time"

// DrainJob asks the drain worker to run upload passes for one tenant.
type DrainJob struct {
	Tenant   string `json:"tenant"`
	Endpoint string `json:"endpoint"`
}

// IngestionJob asks the ingestion worker to parse one import file.
type IngestionJob struct {
	ImportID  string `json:"import_id"`
	Tenant    string `json:"tenant"`
	ObjectKey string `json:"object_key"`
}

// SubmitRequest is the wire payload sent to the tenant service for one
// observation.
type SubmitRequest struct {
	IdempotencyKey  string             `json:"idempotency_key"`
	SubmissionTime  string             `json:"submission_time"`
	ObservationTime string             `json:"observation_time"`
	StationLinkID   int64              `json:"station_link_id"`
	Records         []MeasuredValue    `json:"records"`
	Metadata        SubmissionMetadata `json:"metadata"`
}

type SubmissionMetadata struct {
	Late            bool   `json:"late"`
	DuplicatePolicy string `json:"duplicate_policy,omitempty"`
	Reason          string `json:"reason,omitempty"`
	AppVersion      string `json:"app_version"`
}

// SubmitResponse is the tenant service's acknowledgement.
type SubmitResponse struct {
	ID              int64  `json:"id"`
	StationLinkID   int64  `json:"station_link_id"`
	ObservationTime string `json:"observation_time"`
	Status          string `json:"status"`
}

// RefreshResponse is the token endpoint's reply to a refresh call.
type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
}

// QueueStatus summarises a tenant's queue for the status endpoint.
type QueueStatus struct {
	Tenant         string    `json:"tenant"`
	QueuedCount    int       `json:"queued_count"`
	UploadingCount int       `json:"uploading_count"`
	SyncedCount    int       `json:"synced_count"`
	FailedCount    int       `json:"failed_count"`
	Errors         []string  `json:"errors,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}
