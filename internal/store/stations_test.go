package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wmo-raf/adl-collector-app-sub000/internal/model"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/schedule"
	"github.com/wmo-raf/adl-collector-app-sub000/pkg/errors"
)

func testStation(tenant string, id int64, name string) *model.Station {
	return &model.Station{
		Tenant:    tenant,
		StationID: id,
		Name:      name,
		Timezone:  "Africa/Dar_es_Salaam",
		Schedule: schedule.Spec{
			Mode:              "fixed_local",
			Slots:             []string{"06:00", "18:00"},
			WindowBefore:      30,
			WindowAfter:       30,
			GraceLate:         60,
			RoundingIncrement: 15,
		},
		Mappings: []model.VariableMapping{
			{Variable: "air_temperature", VariableMappingID: 11},
			{Variable: "precipitation", VariableMappingID: 12},
		},
		PulledAt: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}
}

func TestReplaceStationsRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	stations := []*model.Station{
		testStation("tz-mets", 1, "Dodoma"),
		testStation("tz-mets", 2, "Arusha"),
	}
	require.NoError(t, st.ReplaceStations(ctx, "tz-mets", stations))

	got, err := st.GetStation(ctx, "tz-mets", 1)
	require.NoError(t, err)
	assert.Equal(t, "Dodoma", got.Name)
	assert.Equal(t, "fixed_local", got.Schedule.Mode)
	assert.Len(t, got.Mappings, 2)

	id, ok := got.MappingFor("precipitation")
	require.True(t, ok)
	assert.Equal(t, int64(12), id)

	byName, err := st.GetStationByName(ctx, "tz-mets", "Arusha")
	require.NoError(t, err)
	assert.Equal(t, int64(2), byName.StationID)

	listed, err := st.ListStations(ctx, "tz-mets")
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestReplaceStationsSwapsWholeSet(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.ReplaceStations(ctx, "tz-mets", []*model.Station{
		testStation("tz-mets", 1, "Dodoma"),
	}))
	require.NoError(t, st.ReplaceStations(ctx, "ke-mets", []*model.Station{
		testStation("ke-mets", 5, "Nairobi"),
	}))

	require.NoError(t, st.ReplaceStations(ctx, "tz-mets", []*model.Station{
		testStation("tz-mets", 2, "Arusha"),
	}))

	_, err := st.GetStation(ctx, "tz-mets", 1)
	assert.ErrorIs(t, err, errors.ErrUnknownStation)

	got, err := st.GetStation(ctx, "tz-mets", 2)
	require.NoError(t, err)
	assert.Equal(t, "Arusha", got.Name)

	// Other tenants are untouched.
	other, err := st.GetStation(ctx, "ke-mets", 5)
	require.NoError(t, err)
	assert.Equal(t, "Nairobi", other.Name)
}

func TestGetStationUnknown(t *testing.T) {
	st := newTestStore(t)

	_, err := st.GetStation(context.Background(), "tz-mets", 99)
	assert.ErrorIs(t, err, errors.ErrUnknownStation)

	_, err = st.GetStationByName(context.Background(), "tz-mets", "Nowhere")
	assert.ErrorIs(t, err, errors.ErrUnknownStation)
}
