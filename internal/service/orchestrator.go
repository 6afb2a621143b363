package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/avelar/docindex/internal/billing"
	"github.com/avelar/docindex/internal/domain"
	"github.com/avelar/docindex/internal/logger"
	"github.com/avelar/docindex/internal/registry"
	"github.com/avelar/docindex/internal/repository"
	"github.com/avelar/docindex/internal/storage"
)

// Orchestrator drives one job through the pipeline: validate, reserve
// credits, create the job record, run the stages in sequence, then
// settle the reservation. A job is owned by exactly one orchestrator
// run for its lifetime.
type Orchestrator struct {
	jobs      *repository.JobRepository
	events    *repository.JobEventRepository
	projects  registry.Client
	ledger    billing.Ledger
	pricing   billing.Pricing
	store     storage.BlobStore
	convert   *ConvertStage
	ocr       *OCRStage
	chunk     *ChunkStage
	embed     *EmbedStage
	integrate *IntegrateStage

	chunkTokens int
}

// OrchestratorDeps bundles the orchestrator's collaborators.
type OrchestratorDeps struct {
	Jobs      *repository.JobRepository
	Events    *repository.JobEventRepository
	Projects  registry.Client
	Ledger    billing.Ledger
	Pricing   billing.Pricing
	Store     storage.BlobStore
	Convert   *ConvertStage
	OCR       *OCRStage
	Chunk     *ChunkStage
	Embed     *EmbedStage
	Integrate *IntegrateStage

	// ChunkTokens is the chunker's token budget, used to estimate the
	// chunk count for upfront pricing.
	ChunkTokens int
}

// NewOrchestrator creates a pipeline orchestrator.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	chunkTokens := deps.ChunkTokens
	if chunkTokens < 1 {
		chunkTokens = 400
	}
	return &Orchestrator{
		jobs:        deps.Jobs,
		events:      deps.Events,
		projects:    deps.Projects,
		ledger:      deps.Ledger,
		pricing:     deps.Pricing,
		store:       deps.Store,
		convert:     deps.Convert,
		ocr:         deps.OCR,
		chunk:       deps.Chunk,
		embed:       deps.Embed,
		integrate:   deps.Integrate,
		chunkTokens: chunkTokens,
	}
}

// CreateJobRequest is the input to start indexing a file.
type CreateJobRequest struct {
	ProjectID string
	FileID    string
	CreatedBy string
	MimeType  string // optional; defaults to the registry's record
	NeedsOCR  bool
}

// PreparedJob is a validated, credit-backed job ready to execute.
type PreparedJob struct {
	Job           *domain.Job
	File          *registry.FileInfo
	Reservation   *billing.Reservation
	MimeType      string
	EstimatedCost int64
}

// RunSummary reports the outcome of one pipeline run.
type RunSummary struct {
	JobID           string
	Status          domain.JobStatus
	Phase           domain.Phase
	PhasesCompleted []string
	OCRExecuted     bool
	OCRPages        int
	TotalChunks     int
	TotalEmbeddings int
	EstimatedCost   int64
	ActualCost      int64
	Error           string
}

// Prepare validates the request, reserves credits and creates the job
// record. Until Prepare returns successfully no job exists, so every
// failure here surfaces as a direct error with nothing to compensate.
// Parameters:
//   - ctx: request context.
//   - req: job parameters.
// Returns:
//   - *PreparedJob: job record plus its credit reservation.
//   - error: ValidationError for unknown project/file or bad input.
func (o *Orchestrator) Prepare(ctx context.Context, req *CreateJobRequest) (*PreparedJob, error) {
	if req.ProjectID == "" || req.FileID == "" {
		return nil, domain.NewValidationError("project ID and file ID are required")
	}
	if o.store == nil {
		return nil, domain.NewValidationError("no storage client configured")
	}

	exists, err := o.projects.ProjectExists(ctx, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to validate project: %w", err)
	}
	if !exists {
		return nil, domain.NewValidationError("project %s does not exist", req.ProjectID)
	}

	file, err := o.projects.GetFile(ctx, req.ProjectID, req.FileID)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.NewValidationError("file %s does not exist in project %s", req.FileID, req.ProjectID)
		}
		return nil, fmt.Errorf("failed to validate file: %w", err)
	}

	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = file.MimeType
	}

	estimatedChunks := o.estimateChunkCount(file.SizeBytes)
	estimated := o.pricing.Estimate(req.NeedsOCR, file.EstimatedPages, estimatedChunks)

	// The job ID doubles as the reservation's operation key, so it is
	// generated before either record exists.
	jobID := uuid.New().String()
	reservation, err := o.ledger.Reserve(ctx, req.ProjectID, estimated, "index:"+jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve %d credits: %w", estimated, err)
	}

	job, err := o.jobs.Create(ctx, jobID, req.ProjectID, req.FileID, req.CreatedBy, req.NeedsOCR)
	if err != nil {
		if relErr := o.ledger.Release(ctx, reservation.ID); relErr != nil {
			logger.FromContext(ctx).WithError(relErr).WithField(logger.FieldReservationID, reservation.ID).
				Error("Failed to release reservation after job creation failure")
		}
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	o.logEvent(ctx, job.ID, domain.EventJobQueued, nil, ProgressPercent(job.Status, job.PhaseCurrent), "job queued", domain.JSONMap{
		"needs_ocr":      req.NeedsOCR,
		"mime_type":      mimeType,
		"estimated_cost": estimated,
		"reservation_id": reservation.ID,
	})

	return &PreparedJob{
		Job:           job,
		File:          file,
		Reservation:   reservation,
		MimeType:      mimeType,
		EstimatedCost: estimated,
	}, nil
}

// Execute runs the prepared job through the pipeline. Stage failures
// after this point are job outcomes, not call errors: the job is marked
// failed, compensations run, and the summary carries the error text.
// Parameters:
//   - ctx: run context; cancelling it aborts the in-flight stage.
//   - prepared: output of Prepare.
// Returns:
//   - *RunSummary: terminal state of the job.
func (o *Orchestrator) Execute(ctx context.Context, prepared *PreparedJob) *RunSummary {
	job := prepared.Job
	ctx = logger.SetJobID(ctx, job.ID)
	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldProjectID: job.ProjectID,
		logger.FieldFileID:    job.FileID,
	})
	log := logger.FromContext(ctx)

	summary := &RunSummary{
		JobID:         job.ID,
		EstimatedCost: prepared.EstimatedCost,
	}

	if err := o.jobs.UpdateStatus(ctx, job.ID, domain.JobStatusRunning); err != nil {
		return o.failJob(ctx, prepared, summary, domain.PhaseConvert, fmt.Errorf("failed to start job: %w", err))
	}
	o.logEvent(ctx, job.ID, domain.EventJobStarted, nil, ProgressPercent(domain.JobStatusRunning, domain.PhaseConvert), "job started", domain.JSONMap{
		"needs_ocr": job.NeedsOCR,
	})
	log.Info("Pipeline started")

	state := struct {
		textURI    string
		ocrPages   int
		chunkCount int
	}{}

	// Convert
	if cancelled := o.checkCancelled(ctx, prepared, summary); cancelled != nil {
		return cancelled
	}
	convertOut, err := o.runConvert(ctx, prepared)
	if err != nil {
		return o.failJob(ctx, prepared, summary, domain.PhaseConvert, err)
	}
	state.textURI = convertOut.TextURI
	summary.PhasesCompleted = append(summary.PhasesCompleted, string(domain.PhaseConvert))

	// OCR, only when requested
	if job.NeedsOCR {
		if cancelled := o.checkCancelled(ctx, prepared, summary); cancelled != nil {
			return cancelled
		}
		ocrOut, err := o.runOCR(ctx, prepared)
		if err != nil {
			return o.failJob(ctx, prepared, summary, domain.PhaseOCR, err)
		}
		state.textURI = ocrOut.TextURI
		state.ocrPages = ocrOut.TotalPages
		summary.OCRExecuted = true
		summary.OCRPages = ocrOut.TotalPages
		summary.PhasesCompleted = append(summary.PhasesCompleted, string(domain.PhaseOCR))
	}

	// Chunk
	if cancelled := o.checkCancelled(ctx, prepared, summary); cancelled != nil {
		return cancelled
	}
	chunkOut, err := o.runChunk(ctx, prepared, state.textURI, state.ocrPages)
	if err != nil {
		return o.failJob(ctx, prepared, summary, domain.PhaseChunk, err)
	}
	state.chunkCount = len(chunkOut.Chunks)
	summary.TotalChunks = state.chunkCount
	summary.PhasesCompleted = append(summary.PhasesCompleted, string(domain.PhaseChunk))

	// Embed
	if cancelled := o.checkCancelled(ctx, prepared, summary); cancelled != nil {
		return cancelled
	}
	embedOut, err := o.runEmbed(ctx, prepared)
	if err != nil {
		return o.failJob(ctx, prepared, summary, domain.PhaseEmbed, err)
	}
	summary.TotalEmbeddings = embedOut.Embedded + embedOut.Skipped
	summary.PhasesCompleted = append(summary.PhasesCompleted, string(domain.PhaseEmbed))

	// Integrate
	if cancelled := o.checkCancelled(ctx, prepared, summary); cancelled != nil {
		return cancelled
	}
	integrateOut, err := o.runIntegrate(ctx, prepared)
	if err != nil {
		return o.failJob(ctx, prepared, summary, domain.PhaseIntegrate, err)
	}
	summary.TotalChunks = int(integrateOut.ChunkCount)
	summary.TotalEmbeddings = int(integrateOut.EmbeddingCount)
	summary.PhasesCompleted = append(summary.PhasesCompleted, string(domain.PhaseIntegrate))

	return o.completeJob(ctx, prepared, summary)
}

// RunSync prepares and executes a job in the calling goroutine.
// Parameters:
//   - ctx: run context.
//   - req: job parameters.
// Returns:
//   - *RunSummary: terminal state of the job.
//   - error: pre-creation failure only; post-creation failures are
//     reported inside the summary.
func (o *Orchestrator) RunSync(ctx context.Context, req *CreateJobRequest) (*RunSummary, error) {
	prepared, err := o.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return o.Execute(ctx, prepared), nil
}

func (o *Orchestrator) runConvert(ctx context.Context, prepared *PreparedJob) (*ConvertOutput, error) {
	phase := domain.PhaseConvert
	o.beginPhase(ctx, prepared.Job, phase)
	out, err := o.convert.Run(ctx, prepared.Job, &ConvertInput{
		SourceURI: prepared.File.StorageURI,
		MimeType:  prepared.MimeType,
	})
	if err != nil {
		return nil, &domain.PipelineError{Phase: phase, Err: err}
	}
	o.endPhase(ctx, prepared.Job, phase, domain.JSONMap{
		"text_uri": out.TextURI,
		"bytes":    out.Bytes,
		"checksum": out.Checksum,
	})
	return out, nil
}

func (o *Orchestrator) runOCR(ctx context.Context, prepared *PreparedJob) (*OCROutput, error) {
	phase := domain.PhaseOCR
	o.beginPhase(ctx, prepared.Job, phase)
	out, err := o.ocr.Run(ctx, prepared.Job, &OCRInput{SourceURI: prepared.File.StorageURI})
	if err != nil {
		return nil, &domain.PipelineError{Phase: phase, Err: err}
	}
	o.endPhase(ctx, prepared.Job, phase, domain.JSONMap{
		"text_uri":    out.TextURI,
		"total_pages": out.TotalPages,
		"language":    out.Language,
		"confidence":  out.Confidence,
		"model":       out.ModelUsed,
	})
	return out, nil
}

func (o *Orchestrator) runChunk(ctx context.Context, prepared *PreparedJob, textURI string, totalPages int) (*ChunkOutput, error) {
	phase := domain.PhaseChunk
	o.beginPhase(ctx, prepared.Job, phase)
	out, err := o.chunk.Run(ctx, prepared.Job, &ChunkInput{TextURI: textURI, TotalPages: totalPages})
	if err != nil {
		return nil, &domain.PipelineError{Phase: phase, Err: err}
	}
	o.endPhase(ctx, prepared.Job, phase, domain.JSONMap{
		"total_chunks": len(out.Chunks),
		"total_tokens": out.TotalTokens,
		"deactivated":  out.Deactivated,
	})
	return out, nil
}

func (o *Orchestrator) runEmbed(ctx context.Context, prepared *PreparedJob) (*EmbedOutput, error) {
	phase := domain.PhaseEmbed
	o.beginPhase(ctx, prepared.Job, phase)
	out, err := o.embed.Run(ctx, prepared.Job, &EmbedInput{FileID: prepared.Job.FileID})
	if err != nil {
		return nil, &domain.PipelineError{Phase: phase, Err: err}
	}
	o.endPhase(ctx, prepared.Job, phase, domain.JSONMap{
		"total":    out.Total,
		"embedded": out.Embedded,
		"skipped":  out.Skipped,
	})
	return out, nil
}

func (o *Orchestrator) runIntegrate(ctx context.Context, prepared *PreparedJob) (*IntegrateOutput, error) {
	phase := domain.PhaseIntegrate
	o.beginPhase(ctx, prepared.Job, phase)
	out, err := o.integrate.Run(ctx, prepared.Job)
	if err != nil {
		return nil, &domain.PipelineError{Phase: phase, Err: err}
	}
	o.endPhase(ctx, prepared.Job, phase, domain.JSONMap{
		"chunks":     out.ChunkCount,
		"embeddings": out.EmbeddingCount,
		"upserted":   out.Upserted,
	})
	return out, nil
}

// beginPhase advances the job record to the phase and logs the event.
func (o *Orchestrator) beginPhase(ctx context.Context, job *domain.Job, phase domain.Phase) {
	if err := o.jobs.UpdatePhase(ctx, job.ID, phase); err != nil {
		logger.FromContext(ctx).WithError(err).WithField(logger.FieldPhase, string(phase)).
			Warn("Failed to advance job phase")
	}
	o.logEvent(ctx, job.ID, domain.EventPhaseStarted, &phase,
		ProgressPercent(domain.JobStatusRunning, phase), string(phase)+" started", nil)
}

func (o *Orchestrator) endPhase(ctx context.Context, job *domain.Job, phase domain.Phase, payload domain.JSONMap) {
	o.logEvent(ctx, job.ID, domain.EventPhaseCompleted, &phase,
		ProgressPercent(domain.JobStatusRunning, phase), string(phase)+" completed", payload)
}

// checkCancelled observes a cooperative cancellation request at a stage
// boundary. A non-nil return is the terminal summary for the run.
func (o *Orchestrator) checkCancelled(ctx context.Context, prepared *PreparedJob, summary *RunSummary) *RunSummary {
	current, err := o.jobs.GetByID(ctx, prepared.Job.ID)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Failed to observe cancellation flag")
		return nil
	}
	if !current.CancelRequested {
		return nil
	}

	log := logger.FromContext(ctx)
	log.Info("Cancellation requested, stopping between stages")

	if err := o.jobs.UpdateStatus(ctx, prepared.Job.ID, domain.JobStatusCancelled); err != nil {
		log.WithError(err).Error("Failed to mark job cancelled")
	}
	o.logEvent(ctx, prepared.Job.ID, domain.EventJobCancelled, nil,
		ProgressPercent(domain.JobStatusCancelled, current.PhaseCurrent), "job cancelled", domain.JSONMap{
			"phases_completed": summary.PhasesCompleted,
		})
	if err := o.ledger.Release(ctx, prepared.Reservation.ID); err != nil {
		log.WithError(err).WithField(logger.FieldReservationID, prepared.Reservation.ID).
			Error("Failed to release reservation for cancelled job")
	}

	summary.Status = domain.JobStatusCancelled
	summary.Phase = current.PhaseCurrent
	return summary
}

// completeJob settles the run: terminal state, actual cost, consume.
func (o *Orchestrator) completeJob(ctx context.Context, prepared *PreparedJob, summary *RunSummary) *RunSummary {
	log := logger.FromContext(ctx)
	jobID := prepared.Job.ID

	if err := o.jobs.UpdatePhaseAndStatus(ctx, jobID, domain.PhaseReady, domain.JobStatusCompleted); err != nil {
		return o.failJob(ctx, prepared, summary, domain.PhaseIntegrate, fmt.Errorf("failed to finalize job: %w", err))
	}

	actual := o.pricing.Actual(summary.OCRExecuted, summary.OCRPages, summary.TotalChunks, summary.TotalEmbeddings)
	summary.ActualCost = actual

	if err := o.ledger.Consume(ctx, prepared.Reservation.ID, actual); err != nil {
		// The job itself succeeded; settlement failure is an ops
		// problem, not a pipeline outcome.
		log.WithError(err).WithField(logger.FieldReservationID, prepared.Reservation.ID).
			Error("Failed to consume reservation for completed job")
	}

	o.logEvent(ctx, jobID, domain.EventJobCompleted, nil,
		ProgressPercent(domain.JobStatusCompleted, domain.PhaseReady), "job completed", domain.JSONMap{
			"estimated_cost":   summary.EstimatedCost,
			"actual_cost":      actual,
			"total_chunks":     summary.TotalChunks,
			"total_embeddings": summary.TotalEmbeddings,
			"ocr_pages":        summary.OCRPages,
		})

	summary.Status = domain.JobStatusCompleted
	summary.Phase = domain.PhaseReady
	log.WithFields(logger.Fields{
		"actual_cost": actual,
		"chunks":      summary.TotalChunks,
	}).Info("Pipeline completed")
	return summary
}

// failJob runs the compensation sequence for a job that failed after
// creation. Every step is wrapped independently: a failing compensation
// is logged and never hides the original error or stops the remaining
// steps.
func (o *Orchestrator) failJob(ctx context.Context, prepared *PreparedJob, summary *RunSummary, phase domain.Phase, cause error) *RunSummary {
	log := logger.FromContext(ctx).WithField(logger.FieldPhase, string(phase))
	log.WithError(cause).Error("Pipeline failed")

	jobID := prepared.Job.ID

	if err := o.jobs.UpdateStatus(ctx, jobID, domain.JobStatusFailed); err != nil {
		log.WithError(err).Error("Compensation: failed to mark job failed")
	}
	if err := o.jobs.SetMessage(ctx, jobID, cause.Error()); err != nil {
		log.WithError(err).Error("Compensation: failed to record failure message")
	}
	o.logEvent(ctx, jobID, domain.EventJobFailed, &phase,
		ProgressPercent(domain.JobStatusFailed, phase), "job failed", domain.JSONMap{
			"error":            cause.Error(),
			"phases_completed": summary.PhasesCompleted,
		})
	if err := o.ledger.Release(ctx, prepared.Reservation.ID); err != nil {
		log.WithError(err).WithField(logger.FieldReservationID, prepared.Reservation.ID).
			Error("Compensation: failed to release reservation")
	}

	summary.Status = domain.JobStatusFailed
	summary.Phase = phase
	summary.Error = cause.Error()
	return summary
}

// logEvent appends to the job timeline; event-log failures are logged
// and swallowed so they never mask pipeline outcomes.
func (o *Orchestrator) logEvent(ctx context.Context, jobID, eventType string, phase *domain.Phase, progressPct int, message string, payload domain.JSONMap) {
	if _, err := o.events.LogEvent(ctx, jobID, eventType, phase, progressPct, message, payload); err != nil {
		logger.FromContext(ctx).WithError(err).WithFields(logger.Fields{
			logger.FieldJobID: jobID,
			"event_type":      eventType,
		}).Warn("Failed to append job event")
	}
}

// estimateChunkCount guesses the chunk count from the file size for
// upfront pricing. Roughly five bytes per token of extractable text.
func (o *Orchestrator) estimateChunkCount(sizeBytes int64) int {
	bytesPerChunk := int64(o.chunkTokens) * 5
	if bytesPerChunk < 1 {
		bytesPerChunk = 2000
	}
	count := int(sizeBytes / bytesPerChunk)
	if count < 1 {
		count = 1
	}
	return count
}
