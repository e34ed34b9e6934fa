package model

import "time"

type ImportStatus string

const (
	ImportStatusUploaded   ImportStatus = "UPLOADED"
	ImportStatusParsedOK   ImportStatus = "PARSED_OK"
	ImportStatusParsedFail ImportStatus = "PARSED_FAIL"
)

// ImportFile tracks one bulk spreadsheet import. The file itself lives in
// object storage; this record carries its parse lifecycle.
type ImportFile struct {
	ID           string       `json:"id" db:"id"`
	Tenant       string       `json:"tenant" db:"tenant"`
	ObjectKey    string       `json:"object_key" db:"object_key"`
	Status       ImportStatus `json:"status" db:"status"`
	RowCount     int          `json:"row_count" db:"row_count"`
	SkippedRows  int          `json:"skipped_rows" db:"skipped_rows"`
	ErrorMessage *string      `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}

// ImportRow is one parsed spreadsheet row before schedule validation.
// LocalTime stays a raw string until the station's timezone is known.
type ImportRow struct {
	StationName string       `json:"station_name"`
	LocalTime   string       `json:"local_time"`
	Values      []NamedValue `json:"values"`
}

// NamedValue is a measured value keyed by variable name; the ingestion
// worker resolves names to variable mapping ids from station reference data.
type NamedValue struct {
	Variable string  `json:"variable"`
	Value    float64 `json:"value"`
}
