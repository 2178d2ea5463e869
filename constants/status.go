package constants

// OutcomeStatus is the per-image result of a pipeline run.
type OutcomeStatus string

const (
	OutcomeOK      OutcomeStatus = "OK"      // at least one record extracted
	OutcomeEmpty   OutcomeStatus = "EMPTY"   // recognized, but no records found
	OutcomeFailed  OutcomeStatus = "FAILED"  // preparation or recognition failed
	OutcomeSkipped OutcomeStatus = "SKIPPED" // batch cancelled before the image started
)
