package service

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/avelar/docindex/internal/domain"
	"github.com/avelar/docindex/internal/logger"
	"github.com/avelar/docindex/internal/repository"
)

// IndexingService is the thin façade callers use: create a job (the
// pipeline runs in its own goroutine), read progress, list, cancel.
type IndexingService struct {
	orchestrator *Orchestrator
	jobs         *repository.JobRepository
	events       *repository.JobEventRepository
	logger       *logger.Logger

	// sem caps the number of pipelines running at once; each job's
	// stages stay strictly sequential inside its own goroutine.
	sem    *semaphore.Weighted
	runCtx context.Context
}

// NewIndexingService creates the indexing façade.
// Parameters:
//   - orchestrator: pipeline runner.
//   - jobs: job store.
//   - events: event log.
//   - log: base logger for detached pipeline goroutines.
//   - maxConcurrent: cap on simultaneously running pipelines; values < 1
//     fall back to 4.
// Returns:
//   - *IndexingService: configured service.
func NewIndexingService(orchestrator *Orchestrator, jobs *repository.JobRepository, events *repository.JobEventRepository, log *logger.Logger, maxConcurrent int) *IndexingService {
	if maxConcurrent < 1 {
		maxConcurrent = 4
	}
	return &IndexingService{
		orchestrator: orchestrator,
		jobs:         jobs,
		events:       events,
		logger:       log,
		sem:          semaphore.NewWeighted(int64(maxConcurrent)),
		runCtx:       log.WithContext(context.Background()),
	}
}

// CreateJob validates and registers a job, then runs its pipeline in
// the background. Validation and reservation failures surface directly;
// once a job is returned, later failures are visible through progress.
// Parameters:
//   - ctx: request context; only the synchronous part uses it.
//   - req: job parameters.
// Returns:
//   - *domain.Job: the queued job.
//   - error: ValidationError or reservation failure.
func (s *IndexingService) CreateJob(ctx context.Context, req *CreateJobRequest) (*domain.Job, error) {
	prepared, err := s.orchestrator.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	go func() {
		// Detached from the request context: the pipeline outlives
		// the HTTP call that started it.
		runCtx := logger.SetJobID(s.runCtx, prepared.Job.ID)
		if err := s.sem.Acquire(runCtx, 1); err != nil {
			logger.FromContext(runCtx).WithError(err).Error("Failed to acquire pipeline slot")
			return
		}
		defer s.sem.Release(1)

		s.orchestrator.Execute(runCtx, prepared)
	}()

	return prepared.Job, nil
}

// Progress is a job's externally visible state.
type Progress struct {
	JobID       string            `json:"job_id"`
	Status      domain.JobStatus  `json:"status"`
	Phase       domain.Phase      `json:"phase"`
	ProgressPct int               `json:"progress_pct"`
	Message     string            `json:"message,omitempty"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	FinishedAt  *time.Time        `json:"finished_at,omitempty"`
	// EventCount is the full timeline length, even when Timeline itself
	// was truncated by the caller's limit.
	EventCount int64             `json:"event_count"`
	Timeline   []domain.JobEvent `json:"timeline"`
}

// GetProgress reports a job's status, derived percentage and timeline.
// Parameters:
//   - ctx: request context.
//   - jobID: job to inspect.
//   - timelineLimit: max events returned; 0 means all.
// Returns:
//   - *Progress: current state.
//   - error: NotFoundError when the job does not exist.
func (s *IndexingService) GetProgress(ctx context.Context, jobID string, timelineLimit int) (*Progress, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	timeline, err := s.events.GetTimeline(ctx, jobID, timelineLimit)
	if err != nil {
		return nil, err
	}

	total, err := s.events.CountByJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	return &Progress{
		JobID:       job.ID,
		Status:      job.Status,
		Phase:       job.PhaseCurrent,
		ProgressPct: ProgressPercent(job.Status, job.PhaseCurrent),
		Message:     job.Message,
		StartedAt:   job.StartedAt,
		FinishedAt:  job.FinishedAt,
		EventCount:  total,
		Timeline:    timeline,
	}, nil
}

// ListJobs pages through a project's jobs, newest first.
func (s *IndexingService) ListJobs(ctx context.Context, projectID string, limit, offset int) ([]domain.Job, error) {
	if projectID == "" {
		return nil, domain.NewValidationError("project ID is required")
	}
	return s.jobs.ListByProject(ctx, projectID, limit, offset)
}

// Cancel requests cooperative cancellation. The running pipeline
// observes the flag at its next stage boundary; a stage already in
// flight finishes first.
// Parameters:
//   - ctx: request context.
//   - jobID: job to cancel.
// Returns:
//   - error: NotFoundError for unknown jobs, ValidationError for jobs
//     already in a terminal state.
func (s *IndexingService) Cancel(ctx context.Context, jobID string) error {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return domain.NewValidationError("job %s is already %s", jobID, job.Status)
	}
	return s.jobs.RequestCancel(ctx, jobID)
}
