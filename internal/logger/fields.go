package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Standard tracing fields, propagated through the call chain via context.
const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldJobID is the indexing job ID
	FieldJobID = "job_id"

	// FieldProjectID is the owning project ID
	FieldProjectID = "project_id"

	// FieldFileID is the document file ID
	FieldFileID = "file_id"

	// FieldPhase is the pipeline phase in flight
	FieldPhase = "phase"

	// FieldReservationID is the credit reservation ID
	FieldReservationID = "reservation_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"
)

// Standard metric fields, used for aggregation and alerting.
const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldSize is the data size in bytes
	FieldSize = "size"

	// FieldStatus is the operation status
	FieldStatus = "status"
)
