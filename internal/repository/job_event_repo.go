package repository

import (
	"context"
	"errors"
	"time"

	"github.com/avelar/docindex/internal/domain"
	"gorm.io/gorm"
)

// JobEventRepository handles the append-only job event log.
type JobEventRepository struct {
	db *gorm.DB
}

// NewJobEventRepository creates a new JobEventRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *JobEventRepository: repository instance bound to db.
func NewJobEventRepository(db *gorm.DB) *JobEventRepository {
	return &JobEventRepository{db: db}
}

// LogEvent appends an event to a job's timeline.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - jobID: owning job ID.
//   - eventType: event tag (job_queued, phase_completed, job_failed, ...).
//   - phase: pipeline phase active when the event fired; nil for lifecycle events.
//   - progressPct: progress snapshot at the time of the event.
//   - message: human-readable description.
//   - payload: structured detail; stored as a JSON document, never a string.
// Returns:
//   - *domain.JobEvent: persisted event.
//   - error: non-nil if the insert fails.
func (r *JobEventRepository) LogEvent(ctx context.Context, jobID, eventType string, phase *domain.Phase, progressPct int, message string, payload domain.JSONMap) (*domain.JobEvent, error) {
	if payload == nil {
		payload = domain.JSONMap{}
	}
	event := &domain.JobEvent{
		JobID:       jobID,
		EventType:   eventType,
		Phase:       phase,
		ProgressPct: progressPct,
		Message:     message,
		Payload:     payload,
		CreatedAt:   time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return nil, err
	}
	return event, nil
}

// GetTimeline retrieves a job's events in emission order, oldest-first.
// The sequence ID breaks ties between events sharing a timestamp.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - jobID: job whose timeline to load.
//   - limit: maximum number of events to return; 0 means no limit.
// Returns:
//   - []domain.JobEvent: ordered events.
//   - error: non-nil if the query fails.
func (r *JobEventRepository) GetTimeline(ctx context.Context, jobID string, limit int) ([]domain.JobEvent, error) {
	var events []domain.JobEvent
	query := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// GetLatestEvent retrieves the most recent event for a job.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - jobID: job to inspect.
// Returns:
//   - *domain.JobEvent: latest event, or nil if the job has none.
//   - error: non-nil if the query fails.
func (r *JobEventRepository) GetLatestEvent(ctx context.Context, jobID string) (*domain.JobEvent, error) {
	var event domain.JobEvent
	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at DESC, id DESC").
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

// CountByJob counts events for a job.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - jobID: job to count events for.
// Returns:
//   - int64: number of events.
//   - error: non-nil if the query fails.
func (r *JobEventRepository) CountByJob(ctx context.Context, jobID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.JobEvent{}).
		Where("job_id = ?", jobID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
