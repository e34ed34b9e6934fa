package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidTransition(t *testing.T) {
	tests := []struct {
		from, to ObservationStatus
		want     bool
	}{
		{StatusQueued, StatusUploading, true},
		{StatusUploading, StatusSynced, true},
		{StatusUploading, StatusFailed, true},
		{StatusUploading, StatusQueued, true},
		{StatusFailed, StatusQueued, true},
		{StatusQueued, StatusSynced, false},
		{StatusQueued, StatusFailed, false},
		{StatusSynced, StatusQueued, false},
		{StatusSynced, StatusFailed, false},
		{StatusFailed, StatusSynced, false},
		{StatusFailed, StatusUploading, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(StatusSynced))
	assert.False(t, IsTerminal(StatusQueued))
	assert.False(t, IsTerminal(StatusUploading))
	assert.False(t, IsTerminal(StatusFailed))
}

func TestIdempotencyKey(t *testing.T) {
	scheduled := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)
	key := ObservationKey{Tenant: "tz-mets", StationID: 42, ScheduledUTC: scheduled}

	assert.Equal(t, "tz-mets|42|2026-03-10T03:00:00Z", key.String())

	// Stable across calls and across equivalent representations of the
	// same instant.
	again := ObservationKey{
		Tenant:       "tz-mets",
		StationID:    42,
		ScheduledUTC: scheduled.In(time.FixedZone("EAT", 3*60*60)),
	}
	assert.Equal(t, key.IdempotencyKey(), again.IdempotencyKey())
	assert.Len(t, key.IdempotencyKey(), 64)

	other := ObservationKey{Tenant: "tz-mets", StationID: 43, ScheduledUTC: scheduled}
	assert.NotEqual(t, key.IdempotencyKey(), other.IdempotencyKey())
}
