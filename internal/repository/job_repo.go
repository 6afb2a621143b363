package repository

import (
	"context"
	"errors"
	"time"

	"github.com/avelar/docindex/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobRepository handles indexing job persistence. It is the single source
// of truth for pipeline progress.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *JobRepository: repository instance bound to db.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new job in status queued, phase convert.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID; empty generates a fresh UUID. Callers that reserve
//     credits before the insert pass the pre-generated ID so the
//     reservation's operation key matches the job.
//   - projectID: owning project ID.
//   - fileID: file to index.
//   - createdBy: user who initiated the job.
//   - needsOCR: whether the OCR phase will run.
// Returns:
//   - *domain.Job: persisted job.
//   - error: non-nil if the insert fails.
func (r *JobRepository) Create(ctx context.Context, id, projectID, fileID, createdBy string, needsOCR bool) (*domain.Job, error) {
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()
	job := &domain.Job{
		ID:           id,
		ProjectID:    projectID,
		FileID:       fileID,
		CreatedBy:    createdBy,
		Status:       domain.JobStatusQueued,
		PhaseCurrent: domain.PhaseConvert,
		ProgressPct:  0,
		NeedsOCR:     needsOCR,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, err
	}
	return job, nil
}

// GetByID retrieves a job by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
// Returns:
//   - *domain.Job: job record if found.
//   - error: domain.NotFoundError if the job does not exist.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &domain.NotFoundError{Resource: "job", ID: id}
		}
		return nil, err
	}
	return &job, nil
}

// ListByProject retrieves jobs for a project with pagination, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - projectID: project to filter by.
//   - limit: maximum number of records to return.
//   - offset: number of records to skip.
// Returns:
//   - []domain.Job: matching job records.
//   - error: non-nil if the query fails.
func (r *JobRepository) ListByProject(ctx context.Context, projectID string, limit, offset int) ([]domain.Job, error) {
	var jobs []domain.Job
	if err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// UpdatePhase advances the pipeline phase of a job.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
//   - phase: new pipeline phase.
// Returns:
//   - error: non-nil if the update fails.
func (r *JobRepository) UpdatePhase(ctx context.Context, id string, phase domain.Phase) error {
	return r.updateColumns(ctx, id, map[string]interface{}{
		"phase_current": phase,
	})
}

// UpdateStatus transitions the lifecycle status of a job, stamping the
// matching lifecycle timestamp.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
//   - status: new lifecycle status.
// Returns:
//   - error: non-nil if the update fails.
func (r *JobRepository) UpdateStatus(ctx context.Context, id string, status domain.JobStatus) error {
	return r.updateColumns(ctx, id, statusColumns(status))
}

// UpdatePhaseAndStatus updates phase and status in a single row write.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
//   - phase: new pipeline phase.
//   - status: new lifecycle status.
// Returns:
//   - error: non-nil if the update fails.
func (r *JobRepository) UpdatePhaseAndStatus(ctx context.Context, id string, phase domain.Phase, status domain.JobStatus) error {
	cols := statusColumns(status)
	cols["phase_current"] = phase
	return r.updateColumns(ctx, id, cols)
}

// SetMessage records a human-readable message on the job.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
//   - message: message text.
// Returns:
//   - error: non-nil if the update fails.
func (r *JobRepository) SetMessage(ctx context.Context, id, message string) error {
	return r.updateColumns(ctx, id, map[string]interface{}{
		"message": message,
	})
}

// RequestCancel sets the cooperative cancellation flag. The orchestrator
// observes it between stage boundaries.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: job ID.
// Returns:
//   - error: domain.NotFoundError if the job does not exist.
func (r *JobRepository) RequestCancel(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&domain.Job{}).
		Where("id = ?", id).
		Update("cancel_requested", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &domain.NotFoundError{Resource: "job", ID: id}
	}
	return nil
}

// ListTerminalBefore retrieves jobs in a terminal status whose last update
// predates the cutoff. Used by cache cleanup.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - cutoff: only jobs updated before this time are returned.
//   - limit: maximum number of records to return.
// Returns:
//   - []domain.Job: matching job records.
//   - error: non-nil if the query fails.
func (r *JobRepository) ListTerminalBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Job, error) {
	var jobs []domain.Job
	if err := r.db.WithContext(ctx).
		Where("status IN ?", []domain.JobStatus{
			domain.JobStatusCompleted,
			domain.JobStatusFailed,
			domain.JobStatusCancelled,
		}).
		Where("updated_at < ?", cutoff).
		Limit(limit).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *JobRepository) updateColumns(ctx context.Context, id string, cols map[string]interface{}) error {
	cols["updated_at"] = time.Now().UTC()
	return r.db.WithContext(ctx).Model(&domain.Job{}).
		Where("id = ?", id).
		Updates(cols).Error
}

// statusColumns maps a status transition to the columns it touches.
func statusColumns(status domain.JobStatus) map[string]interface{} {
	now := time.Now().UTC()
	cols := map[string]interface{}{"status": status}
	switch status {
	case domain.JobStatusRunning:
		cols["started_at"] = now
	case domain.JobStatusCompleted, domain.JobStatusFailed:
		cols["finished_at"] = now
	case domain.JobStatusCancelled:
		cols["finished_at"] = now
		cols["cancelled_at"] = now
	}
	return cols
}
