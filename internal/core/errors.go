package core

import (
	"errors"
	"fmt"
)

var (
	// ErrVehicleNotFound is returned by Classify in single mode when the
	// requested id is not among the assembled vehicles.
	ErrVehicleNotFound = errors.New("vehicle not found in source data")

	// ErrUnknownCommand is returned when a trigger names no known action.
	ErrUnknownCommand = errors.New("unknown sync action")

	// ErrUnknownMode is returned by Classify for an unrecognised mode.
	ErrUnknownMode = errors.New("unknown sync mode")
)

// ParseError reports a cell that did not fit its field's type.
// The value that produced it has already fallen back to text.
type ParseError struct {
	Field  string
	Header string
	Raw    string
	Want   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: cannot read %q as %s", e.Field, e.Raw, e.Want)
}

// ValidationError describes a primary row that was dropped before assembly.
type ValidationError struct {
	Line   int
	ID     string
	Reason string
}

func (e ValidationError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("row %d (%s): %s", e.Line, e.ID, e.Reason)
	}
	return fmt.Sprintf("row %d: %s", e.Line, e.Reason)
}

// WriteError is the store's rejection of one vehicle.
type WriteError struct {
	ID     string
	Action Action
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Action, e.ID, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// FatalError aborts a sync run. Stage names the pipeline step that failed.
type FatalError struct {
	Stage Stage
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err is a pipeline-fatal error.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// ErrMissingID is returned when sync-vehicle is requested without an id.
var ErrMissingID = errors.New("id is required for sync-vehicle")
