package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Well-known event types emitted by the orchestrator. The column is
// free-form; these constants cover the transitions the pipeline produces.
const (
	EventJobQueued      = "job_queued"
	EventJobStarted     = "job_started"
	EventPhaseStarted   = "phase_started"
	EventPhaseCompleted = "phase_completed"
	EventJobCompleted   = "job_completed"
	EventJobFailed      = "job_failed"
	EventJobCancelled   = "job_cancelled"
)

// JSONMap is a custom type for storing structured event payloads as JSON
// in the database. Payloads are persisted as documents, never as strings
// requiring re-parsing.
type JSONMap map[string]interface{}

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: JSON-encoded representation of the map.
//   - error: non-nil if marshaling fails.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
// Parameters:
//   - value: raw database value to decode.
// Returns:
//   - error: non-nil if decoding fails or the type is unexpected.
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan JSONMap")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, m)
}

// JobEvent is an immutable audit record in a job's timeline.
// Events are append-only; the auto-incremented ID preserves emission
// order even when two events share a CreatedAt timestamp.
type JobEvent struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"event_id"`
	JobID       string    `gorm:"type:text;not null;index:idx_job_events_job" json:"job_id"`
	EventType   string    `gorm:"type:text;not null" json:"event_type"`
	Phase       *Phase    `gorm:"type:text" json:"phase,omitempty"`
	ProgressPct int       `gorm:"not null;default:0" json:"progress_pct"`
	Message     string    `gorm:"type:text" json:"message,omitempty"`
	Payload     JSONMap   `gorm:"type:text" json:"payload"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the database table name for JobEvent.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (JobEvent) TableName() string {
	return "indexing_job_events"
}
