package core

import (
	"errors"
	"fmt"
)

// Outcome is the structured result of one sync call. Callers always get
// one, including on fatal errors.
type Outcome struct {
	Success      bool     `json:"success"`
	Message      string   `json:"message"`
	AddedCount   int      `json:"addedCount"`
	UpdatedCount int      `json:"updatedCount"`
	SkippedCount int      `json:"skippedCount"`
	Errors       []string `json:"errors"`
	Warnings     []string `json:"warnings,omitempty"`
	RunID        string   `json:"runId,omitempty"`

	// Err is the fatal error when Success is false.
	Err error `json:"-"`
}

// FailedCount is the number of entity-level write errors.
func (o Outcome) FailedCount() int {
	return len(o.Errors)
}

// Aggregate folds write results into an Outcome. Counts only include
// writes that succeeded; every failure contributes one error string
// naming its id, in result order. The run is successful even when
// individual writes failed.
func Aggregate(results []WriteResult) Outcome {
	out := Outcome{Success: true, Errors: []string{}}

	for _, r := range results {
		if r.Err != nil {
			var we *WriteError
			if errors.As(r.Err, &we) {
				out.Errors = append(out.Errors, we.Error())
			} else {
				out.Errors = append(out.Errors, fmt.Sprintf("%s %s: %v", r.Action, r.ID, r.Err))
			}
			continue
		}
		switch r.Action {
		case ActionInsert:
			out.AddedCount++
		case ActionUpdate:
			out.UpdatedCount++
		case ActionSkip:
			out.SkippedCount++
		}
	}

	out.Message = fmt.Sprintf("Sync complete: %d added, %d updated, %d skipped, %d failed",
		out.AddedCount, out.UpdatedCount, out.SkippedCount, len(out.Errors))
	return out
}

// failedOutcome reports a run that stopped before or during writes.
func failedOutcome(message string, err error) Outcome {
	return Outcome{
		Success: false,
		Message: message,
		Errors:  []string{},
		Err:     err,
	}
}
