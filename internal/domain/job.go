package domain

import "time"

// JobStatus represents the lifecycle state of an indexing job.
// Values include JobStatusQueued, JobStatusRunning, JobStatusCompleted,
// JobStatusFailed, and JobStatusCancelled.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status is a terminal state.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Phase represents a step in the document indexing pipeline.
// Status and Phase are orthogonal: status tracks the job lifecycle,
// phase tracks the pipeline position.
type Phase string

const (
	PhaseConvert   Phase = "convert"
	PhaseOCR       Phase = "ocr"
	PhaseChunk     Phase = "chunk"
	PhaseEmbed     Phase = "embed"
	PhaseIntegrate Phase = "integrate"
	PhaseReady     Phase = "ready"
)

// phaseOrder fixes the pipeline ordering convert < ocr < chunk < embed < integrate < ready.
var phaseOrder = map[Phase]int{
	PhaseConvert:   0,
	PhaseOCR:       1,
	PhaseChunk:     2,
	PhaseEmbed:     3,
	PhaseIntegrate: 4,
	PhaseReady:     5,
}

// Before reports whether p comes before other in the pipeline ordering.
func (p Phase) Before(other Phase) bool {
	return phaseOrder[p] < phaseOrder[other]
}

// Valid reports whether p is a known pipeline phase.
func (p Phase) Valid() bool {
	_, ok := phaseOrder[p]
	return ok
}

// Job represents one indexing attempt for a (project, file) pair.
// A running job always has PhaseCurrent in convert..integrate; a completed
// job always has PhaseCurrent ready.
type Job struct {
	ID              string     `gorm:"type:text;primaryKey" json:"job_id"`
	ProjectID       string     `gorm:"type:text;not null;index:idx_jobs_project" json:"project_id"`
	FileID          string     `gorm:"type:text;not null;index:idx_jobs_file" json:"file_id"`
	CreatedBy       string     `gorm:"type:text;not null" json:"created_by"`
	Status          JobStatus  `gorm:"type:text;not null;index:idx_jobs_status" json:"status"`
	PhaseCurrent    Phase      `gorm:"type:text;not null" json:"phase_current"`
	ProgressPct     int        `gorm:"not null;default:0" json:"progress_pct"`
	NeedsOCR        bool       `gorm:"not null;default:false" json:"needs_ocr"`
	CancelRequested bool       `gorm:"not null;default:false" json:"cancel_requested"`
	Message         string     `gorm:"type:text" json:"message,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Job.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Job) TableName() string {
	return "indexing_jobs"
}
