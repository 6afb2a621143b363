package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avelar/docindex/internal/domain"
)

func TestEventLogTimelineOrder(t *testing.T) {
	db := newTestDB(t)
	jobs := NewJobRepository(db)
	events := NewJobEventRepository(db)
	ctx := context.Background()

	job, err := jobs.Create(ctx, "", "proj-1", "file-1", "", false)
	require.NoError(t, err)

	phase := domain.PhaseConvert
	_, err = events.LogEvent(ctx, job.ID, domain.EventJobQueued, nil, 0, "queued", nil)
	require.NoError(t, err)
	_, err = events.LogEvent(ctx, job.ID, domain.EventJobStarted, nil, 15, "started", nil)
	require.NoError(t, err)
	_, err = events.LogEvent(ctx, job.ID, domain.EventPhaseStarted, &phase, 15, "convert started", nil)
	require.NoError(t, err)

	timeline, err := events.GetTimeline(ctx, job.ID, 0)
	require.NoError(t, err)
	require.Len(t, timeline, 3)
	assert.Equal(t, domain.EventJobQueued, timeline[0].EventType)
	assert.Equal(t, domain.EventJobStarted, timeline[1].EventType)
	assert.Equal(t, domain.EventPhaseStarted, timeline[2].EventType)
	assert.Nil(t, timeline[0].Phase)
	require.NotNil(t, timeline[2].Phase)
	assert.Equal(t, domain.PhaseConvert, *timeline[2].Phase)

	// Sequence IDs increase with emission, so the order holds even when
	// consecutive events land on the same timestamp.
	assert.Less(t, timeline[0].ID, timeline[1].ID)
	assert.Less(t, timeline[1].ID, timeline[2].ID)

	limited, err := events.GetTimeline(ctx, job.ID, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestEventLogStructuredPayload(t *testing.T) {
	db := newTestDB(t)
	jobs := NewJobRepository(db)
	events := NewJobEventRepository(db)
	ctx := context.Background()

	job, err := jobs.Create(ctx, "", "proj-1", "file-1", "", false)
	require.NoError(t, err)

	phase := domain.PhaseChunk
	_, err = events.LogEvent(ctx, job.ID, domain.EventPhaseCompleted, &phase, 55, "chunk completed", domain.JSONMap{
		"total_chunks": 12,
		"total_tokens": 4810,
	})
	require.NoError(t, err)

	latest, err := events.GetLatestEvent(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)

	// Payload survives as structured data, not a doubly encoded string.
	assert.EqualValues(t, 12, latest.Payload["total_chunks"])
	assert.EqualValues(t, 4810, latest.Payload["total_tokens"])
}

func TestEventLogLatestEmptyTimeline(t *testing.T) {
	events := NewJobEventRepository(newTestDB(t))

	latest, err := events.GetLatestEvent(context.Background(), "no-such-job")
	require.NoError(t, err)
	assert.Nil(t, latest)

	count, err := events.CountByJob(context.Background(), "no-such-job")
	require.NoError(t, err)
	assert.Zero(t, count)
}
