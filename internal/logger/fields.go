package logger

// Fields is a set of structured log fields.
type Fields map[string]interface{}

// Tracing fields, propagated through ctx.
const (
	FieldRequestID = "request_id"
	FieldJobID     = "job_id"
	FieldJobType   = "job_type"
	FieldOwnerID   = "owner_id"
	FieldWorkerID  = "worker_id"
	FieldComponent = "component"
)

// Metric fields, attached per entry.
const (
	FieldDurationMs = "duration_ms"
	FieldAttempt    = "attempt"
	FieldCount      = "count"
	FieldSize       = "size"
	FieldStatus     = "status"
)
