package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/avelar/docindex/internal/config"
	"github.com/avelar/docindex/internal/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := InitDB(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxIdleConns: 1,
		MaxOpenConns: 1,
		AutoMigrate:  true,
	})
	require.NoError(t, err)
	return db
}

func TestJobCreateAndGet(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	ctx := context.Background()

	job, err := repo.Create(ctx, "", "proj-1", "file-1", "tester", true)
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, domain.JobStatusQueued, job.Status)
	assert.Equal(t, domain.PhaseConvert, job.PhaseCurrent)
	assert.True(t, job.NeedsOCR)

	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, "proj-1", got.ProjectID)
	assert.Nil(t, got.StartedAt)
}

func TestJobCreateWithExplicitID(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	ctx := context.Background()

	job, err := repo.Create(ctx, "job-fixed", "proj-1", "file-1", "", false)
	require.NoError(t, err)
	assert.Equal(t, "job-fixed", job.ID)
}

func TestJobGetByIDNotFound(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))

	_, err := repo.GetByID(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
}

func TestJobStatusTransitionsStampTimes(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	ctx := context.Background()

	job, err := repo.Create(ctx, "", "proj-1", "file-1", "", false)
	require.NoError(t, err)

	require.NoError(t, repo.UpdateStatus(ctx, job.ID, domain.JobStatusRunning))
	running, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.NotNil(t, running.StartedAt)
	assert.Nil(t, running.FinishedAt)

	require.NoError(t, repo.UpdatePhaseAndStatus(ctx, job.ID, domain.PhaseReady, domain.JobStatusCompleted))
	done, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, done.Status)
	assert.Equal(t, domain.PhaseReady, done.PhaseCurrent)
	assert.NotNil(t, done.FinishedAt)
}

func TestJobRequestCancelSetsFlag(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	ctx := context.Background()

	job, err := repo.Create(ctx, "", "proj-1", "file-1", "", false)
	require.NoError(t, err)

	require.NoError(t, repo.RequestCancel(ctx, job.ID))
	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, got.CancelRequested)

	err = repo.RequestCancel(ctx, "missing")
	assert.True(t, domain.IsNotFound(err))
}

func TestJobListByProjectPagination(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := repo.Create(ctx, "", "proj-1", "file-1", "", false)
		require.NoError(t, err)
	}
	_, err := repo.Create(ctx, "", "proj-2", "file-9", "", false)
	require.NoError(t, err)

	page, err := repo.ListByProject(ctx, "proj-1", 3, 0)
	require.NoError(t, err)
	assert.Len(t, page, 3)

	rest, err := repo.ListByProject(ctx, "proj-1", 3, 3)
	require.NoError(t, err)
	assert.Len(t, rest, 2)
}

func TestJobListTerminalBefore(t *testing.T) {
	repo := NewJobRepository(newTestDB(t))
	ctx := context.Background()

	oldJob, err := repo.Create(ctx, "", "proj-1", "file-1", "", false)
	require.NoError(t, err)
	require.NoError(t, repo.UpdateStatus(ctx, oldJob.ID, domain.JobStatusCompleted))

	fresh, err := repo.Create(ctx, "", "proj-1", "file-2", "", false)
	require.NoError(t, err)
	require.NoError(t, repo.UpdateStatus(ctx, fresh.ID, domain.JobStatusRunning))

	// Cutoff in the future: only terminal jobs qualify regardless of age.
	expired, err := repo.ListTerminalBefore(ctx, time.Now().UTC().Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, oldJob.ID, expired[0].ID)

	// Cutoff in the past: nothing is old enough.
	none, err := repo.ListTerminalBefore(ctx, time.Now().UTC().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}
