package pipeline

import (
	"time"

	"github.com/joseph-ayodele/register-extractor/constants"
	"github.com/joseph-ayodele/register-extractor/internal/extract"
	"github.com/joseph-ayodele/register-extractor/internal/register"
)

// Outcome is what happened to one image.
type Outcome struct {
	Source      string
	Digest      string
	Status      constants.OutcomeStatus
	Records     []register.Record // normalized, before SourceFile stamping
	Keys        []string          // field order from the response
	Strategy    string
	Diagnostics []extract.Diagnostic
	Err         error // set only when Status is FAILED or SKIPPED
	Elapsed     time.Duration
}

// Result is the outcome of one batch run.
type Result struct {
	BatchID  string
	Table    register.Table
	Outcomes []Outcome
}

// Succeeded counts images that reached the extractor, with or without rows.
func (r Result) Succeeded() int {
	return r.count(constants.OutcomeOK) + r.count(constants.OutcomeEmpty)
}

func (r Result) Failed() int  { return r.count(constants.OutcomeFailed) }
func (r Result) Skipped() int { return r.count(constants.OutcomeSkipped) }
func (r Result) Rows() int    { return r.Table.Len() }

// AllFailed reports a batch where no image produced a usable response.
func (r Result) AllFailed() bool {
	return len(r.Outcomes) > 0 && r.Succeeded() == 0
}

func (r Result) count(s constants.OutcomeStatus) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}
