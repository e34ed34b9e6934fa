package worker

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wmo-raf/adl-collector-app-sub000/internal/logger"
	"github.com/wmo-raf/adl-collector-app-sub000/internal/model"
)

func TestWorkerPoolSubmitReportsDrop(t *testing.T) {
	// Not started, so submitted jobs sit in the channel. Capacity is
	// twice the worker count.
	pool := NewWorkerPool("test", 1)
	noop := func(context.Context) error { return nil }

	assert.True(t, pool.Submit(noop))
	assert.True(t, pool.Submit(noop))
	assert.False(t, pool.Submit(noop))
}

func TestDrainHandleMessageSurfacesDrops(t *testing.T) {
	w := &DrainWorker{
		workerPool: NewWorkerPool("drain", 1),
		log:        logger.Get(),
	}

	job, err := json.Marshal(model.DrainJob{Tenant: "tz-mets"})
	require.NoError(t, err)

	require.NoError(t, w.handleMessage(context.Background(), job))
	require.NoError(t, w.handleMessage(context.Background(), job))

	// Queue full: the error must reach the consumer so the message is
	// dead-lettered instead of silently acknowledged.
	require.Error(t, w.handleMessage(context.Background(), job))
}
