package logger

// Fields is the structured field set attached to log lines.
type Fields map[string]interface{}

// Tracing fields propagated through the call chain.
const (
	// FieldThoughtID is the thought being created, voted on or promoted.
	FieldThoughtID = "thought_id"

	// FieldPersonaID is the acting persona.
	FieldPersonaID = "persona_id"

	// FieldMovementID is the movement a mutation applies to.
	FieldMovementID = "movement_id"

	// FieldMindsetID is the mindset container being read or written.
	FieldMindsetID = "mindset_id"

	// FieldComponent tags every line emitted under a subsystem.
	FieldComponent = "component"

	// FieldView is the memoized view name for cache operations.
	FieldView = "view"
)

// Measurement fields for aggregation.
const (
	// FieldDurationMs is the elapsed time in milliseconds.
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic result count.
	FieldCount = "count"
)
