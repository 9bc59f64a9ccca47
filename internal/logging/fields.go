package logging

// Standardized attribute keys shared across components. Keeping these in one
// place makes log filtering predictable for the CLI and the web layer.
const (
	FieldComponent = "component"
	FieldEventType = "event_type"
	FieldErrorHint = "error_hint"
	FieldImpact    = "impact"

	FieldSessionID = "session_id"
	FieldLabel     = "label"
	FieldDevice    = "device"
	FieldFile      = "file"
	FieldSequence  = "sequence"
)
