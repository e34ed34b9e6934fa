package model

import (
	"time"

	"github.com/wmo-raf/adl-collector-app-sub000/internal/schedule"
)

// Station is the locally cached reference record for one measurement site.
// The whole set for a tenant is replaced atomically by the pull worker.
type Station struct {
	Tenant    string            `json:"tenant" db:"tenant"`
	StationID int64             `json:"station_id" db:"station_id"` // remote station_link_id
	Name      string            `json:"name" db:"name"`
	Timezone  string            `json:"timezone" db:"timezone"`
	Schedule  schedule.Spec     `json:"schedule" db:"schedule"`
	Mappings  []VariableMapping `json:"mappings" db:"mappings"`
	PulledAt  time.Time         `json:"pulled_at" db:"pulled_at"`
}

// VariableMapping links a local variable name to the id the tenant service
// expects in submission records.
type VariableMapping struct {
	Variable          string `json:"variable"`
	VariableMappingID int64  `json:"variable_mapping_id"`
}

// MappingFor resolves a variable name, case-sensitively.
func (s *Station) MappingFor(variable string) (int64, bool) {
	for _, m := range s.Mappings {
		if m.Variable == variable {
			return m.VariableMappingID, true
		}
	}
	return 0, false
}

// Location loads the station's IANA timezone.
func (s *Station) Location() (*time.Location, error) {
	return time.LoadLocation(s.Timezone)
}
