package logging

// Standard attribute keys.
const (
	FieldComponent     = "component"
	FieldEventType     = "event_type"
	FieldErrorHint     = "error_hint"
	FieldImpact        = "impact"
	FieldDecisionType  = "decision_type"
	FieldSessionID     = "session_id"
	FieldCorrelationID = "correlation_id"
	// FieldProcessID identifies the improvement process a record concerns.
	FieldProcessID = "process_id"
	// FieldLeg is "before" or "after".
	FieldLeg = "leg"
)
