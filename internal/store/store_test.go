package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wmo-raf/adl-collector-app-sub000/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	st, err := Open(filepath.Join(t.TempDir(), "collector.db"), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func testObservation(tenant string, stationID int64, scheduled time.Time) *model.Observation {
	payload, _ := json.Marshal(model.ObservationPayload{
		Records:        []model.MeasuredValue{{VariableMappingID: 1, Value: 21.5}},
		SubmissionTime: scheduled,
	})

	return &model.Observation{
		Tenant:       tenant,
		StationID:    stationID,
		StationName:  "Dodoma",
		Timezone:     "Africa/Dar_es_Salaam",
		ScheduledUTC: scheduled,
		CreatedAt:    scheduled,
		UpdatedAt:    scheduled,
		ScheduleMode: "fixed_local",
		Payload:      payload,
		Status:       model.StatusQueued,
	}
}

func mustUpsert(t *testing.T, st *Store, obs *model.Observation) {
	t.Helper()
	require.NoError(t, st.Upsert(context.Background(), obs))
}
