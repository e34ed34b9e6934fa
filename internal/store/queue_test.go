package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wmo-raf/adl-collector-app-sub000/internal/model"
	"github.com/wmo-raf/adl-collector-app-sub000/pkg/errors"
)

var baseTime = time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)

func TestUpsertIdempotent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	first := testObservation("tz-mets", 1, baseTime)
	mustUpsert(t, st, first)

	second := testObservation("tz-mets", 1, baseTime)
	second.Payload = []byte(`{"records":[{"variable_mapping_id":1,"value":99.9}]}`)
	second.Late = true
	mustUpsert(t, st, second)

	all, err := st.ListAll(ctx, "tz-mets")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.JSONEq(t, string(second.Payload), string(all[0].Payload))
	assert.True(t, all[0].Late)
}

func TestUpsertPreservesCreatedAt(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	first := testObservation("tz-mets", 1, baseTime)
	mustUpsert(t, st, first)

	second := testObservation("tz-mets", 1, baseTime)
	second.CreatedAt = baseTime.Add(time.Hour)
	mustUpsert(t, st, second)

	got, err := st.Get(ctx, first.Key())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.CreatedAt.Equal(baseTime))
}

func TestUpsertMany(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	batch := []*model.Observation{
		testObservation("tz-mets", 1, baseTime),
		testObservation("tz-mets", 2, baseTime),
		testObservation("tz-mets", 3, baseTime.Add(time.Hour)),
	}
	require.NoError(t, st.UpsertMany(ctx, batch))

	all, err := st.ListAll(ctx, "tz-mets")
	require.NoError(t, err)
	require.Len(t, all, 3)
	for _, obs := range all {
		assert.Equal(t, model.StatusQueued, obs.Status)
	}

	// Re-running the same batch must not duplicate rows.
	require.NoError(t, st.UpsertMany(ctx, batch))
	all, err = st.ListAll(ctx, "tz-mets")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestUpdateStatusEnforcesTransitions(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	obs := testObservation("tz-mets", 1, baseTime)
	mustUpsert(t, st, obs)
	key := obs.Key()

	// QUEUED cannot jump straight to SYNCED.
	err := st.UpdateStatus(ctx, key, model.StatusSynced, nil, baseTime)
	require.ErrorIs(t, err, errors.ErrInvalidTransition)

	require.NoError(t, st.UpdateStatus(ctx, key, model.StatusUploading, nil, baseTime))

	msg := "server rejected record"
	require.NoError(t, st.UpdateStatus(ctx, key, model.StatusFailed, &msg, baseTime))

	got, err := st.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got.LastError)
	assert.Equal(t, msg, *got.LastError)

	// Operator retry goes back to QUEUED.
	require.NoError(t, st.Retry(ctx, key))
	got, err = st.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, model.StatusQueued, got.Status)
}

func TestMarkSyncedIsTerminal(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	obs := testObservation("tz-mets", 1, baseTime)
	mustUpsert(t, st, obs)
	key := obs.Key()

	require.NoError(t, st.UpdateStatus(ctx, key, model.StatusUploading, nil, baseTime))

	msg := "transient"
	require.NoError(t, st.UpdateStatus(ctx, key, model.StatusFailed, &msg, baseTime))
	require.NoError(t, st.Retry(ctx, key))
	require.NoError(t, st.UpdateStatus(ctx, key, model.StatusUploading, nil, baseTime))
	require.NoError(t, st.MarkSynced(ctx, key, 7001, baseTime))

	got, err := st.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSynced, got.Status)
	require.NotNil(t, got.RemoteID)
	assert.Equal(t, int64(7001), *got.RemoteID)
	assert.Nil(t, got.LastError)

	// No way out of SYNCED.
	require.Error(t, st.Retry(ctx, key))
	require.ErrorIs(t, st.UpdateStatus(ctx, key, model.StatusUploading, nil, baseTime), errors.ErrInvalidTransition)
}

func TestQueryPending(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	newest := testObservation("tz-mets", 1, baseTime.Add(2*time.Hour))
	newest.CreatedAt = baseTime.Add(2 * time.Hour)
	oldest := testObservation("tz-mets", 1, baseTime)
	oldest.CreatedAt = baseTime
	failed := testObservation("tz-mets", 2, baseTime.Add(time.Hour))
	failed.CreatedAt = baseTime.Add(time.Hour)
	failed.Status = model.StatusFailed
	uploading := testObservation("tz-mets", 3, baseTime)
	uploading.Status = model.StatusUploading
	synced := testObservation("tz-mets", 4, baseTime)
	synced.Status = model.StatusSynced
	other := testObservation("ke-mets", 1, baseTime)

	for _, obs := range []*model.Observation{newest, oldest, failed, uploading, synced, other} {
		mustUpsert(t, st, obs)
	}

	pending, err := st.QueryPending(ctx, "tz-mets", 10)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.True(t, pending[0].ScheduledUTC.Equal(oldest.ScheduledUTC))
	assert.True(t, pending[1].ScheduledUTC.Equal(failed.ScheduledUTC))
	assert.True(t, pending[2].ScheduledUTC.Equal(newest.ScheduledUTC))

	limited, err := st.QueryPending(ctx, "tz-mets", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestRequeueStale(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := baseTime.Add(time.Hour)

	stale := testObservation("tz-mets", 1, baseTime)
	stale.Status = model.StatusUploading
	stale.UpdatedAt = now.Add(-30 * time.Minute)
	fresh := testObservation("tz-mets", 2, baseTime)
	fresh.Status = model.StatusUploading
	fresh.UpdatedAt = now.Add(-time.Minute)
	queued := testObservation("tz-mets", 3, baseTime)
	queued.UpdatedAt = now.Add(-30 * time.Minute)

	for _, obs := range []*model.Observation{stale, fresh, queued} {
		mustUpsert(t, st, obs)
	}

	n, err := st.RequeueStale(ctx, "tz-mets", 15*time.Minute, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := st.Get(ctx, stale.Key())
	require.NoError(t, err)
	assert.Equal(t, model.StatusQueued, got.Status)

	got, err = st.Get(ctx, fresh.Key())
	require.NoError(t, err)
	assert.Equal(t, model.StatusUploading, got.Status)
}

func TestQueueStatus(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	queued := testObservation("tz-mets", 1, baseTime)
	failedA := testObservation("tz-mets", 2, baseTime)
	failedA.Status = model.StatusFailed
	errA := "timeout"
	failedA.LastError = &errA
	failedB := testObservation("tz-mets", 3, baseTime)
	failedB.Status = model.StatusFailed
	failedB.LastError = &errA
	synced := testObservation("tz-mets", 4, baseTime)
	synced.Status = model.StatusSynced

	for _, obs := range []*model.Observation{queued, failedA, failedB, synced} {
		mustUpsert(t, st, obs)
	}

	status, err := st.QueueStatus(ctx, "tz-mets")
	require.NoError(t, err)
	assert.Equal(t, 1, status.QueuedCount)
	assert.Equal(t, 2, status.FailedCount)
	assert.Equal(t, 1, status.SyncedCount)
	assert.Equal(t, 0, status.UploadingCount)
	assert.Equal(t, []string{"timeout"}, status.Errors)
}
