package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wmo-raf/adl-collector-app-sub000/internal/model"
)

func receiveSnapshot(t *testing.T, sub *Subscription) []*model.Observation {
	t.Helper()
	select {
	case snapshot, ok := <-sub.C:
		require.True(t, ok, "subscription closed unexpectedly")
		return snapshot
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestStreamDeliversSnapshotImmediately(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	mustUpsert(t, st, testObservation("tz-mets", 1, baseTime))

	sub, err := st.StreamAll(ctx, "tz-mets")
	require.NoError(t, err)
	defer sub.Cancel()

	snapshot := receiveSnapshot(t, sub)
	require.Len(t, snapshot, 1)
	assert.Equal(t, int64(1), snapshot[0].StationID)
}

func TestStreamEmitsAfterMutation(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	sub, err := st.StreamAll(ctx, "tz-mets")
	require.NoError(t, err)
	defer sub.Cancel()

	assert.Empty(t, receiveSnapshot(t, sub))

	mustUpsert(t, st, testObservation("tz-mets", 1, baseTime))
	snapshot := receiveSnapshot(t, sub)
	require.Len(t, snapshot, 1)

	require.NoError(t, st.UpdateStatus(ctx, snapshot[0].Key(), model.StatusUploading, nil, baseTime))
	snapshot = receiveSnapshot(t, sub)
	require.Len(t, snapshot, 1)
	assert.Equal(t, model.StatusUploading, snapshot[0].Status)
}

func TestStreamByStationScoping(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	sub, err := st.StreamByStation(ctx, "tz-mets", 1)
	require.NoError(t, err)
	defer sub.Cancel()

	assert.Empty(t, receiveSnapshot(t, sub))

	// A different station's record never reaches this subscription.
	mustUpsert(t, st, testObservation("tz-mets", 2, baseTime))
	mustUpsert(t, st, testObservation("tz-mets", 1, baseTime))

	snapshot := receiveSnapshot(t, sub)
	require.Len(t, snapshot, 1)
	assert.Equal(t, int64(1), snapshot[0].StationID)
}

func TestStreamLatestWins(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	sub, err := st.StreamAll(ctx, "tz-mets")
	require.NoError(t, err)
	defer sub.Cancel()

	// Not draining the channel: each mutation replaces the pending snapshot.
	for i := 1; i <= 5; i++ {
		mustUpsert(t, st, testObservation("tz-mets", int64(i), baseTime))
	}

	var last []*model.Observation
	for {
		select {
		case snapshot := <-sub.C:
			last = snapshot
			if len(last) == 5 {
				return
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("never saw the final snapshot, last had %d records", len(last))
		}
	}
}

func TestStreamCancel(t *testing.T) {
	st := newTestStore(t)

	sub, err := st.StreamAll(context.Background(), "tz-mets")
	require.NoError(t, err)

	sub.Cancel()
	sub.Cancel() // idempotent

	// Channel drains its snapshot and then closes.
	for range sub.C {
	}

	// Mutations after cancel must not panic.
	mustUpsert(t, st, testObservation("tz-mets", 1, baseTime))
}
