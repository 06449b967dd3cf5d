package section

import (
	"errors"
	"fmt"
)

// Preconditions rejected by the store.
var (
	ErrNoReport       = errors.New("no report selected")
	ErrLoadInProgress = errors.New("section is still loading")
	ErrSaveInProgress = errors.New("section save already in progress")
)

// LoadError reports a failed fetch. The store state is left as it was.
type LoadError struct {
	Collection string
	ReportID   string
	Err        error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s for report %s: %v", e.Collection, e.ReportID, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// SaveError reports a rejected write. Current values and the dirty flag are kept
// so the save can be retried.
type SaveError struct {
	Collection string
	ReportID   string
	Err        error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("save %s for report %s: %v", e.Collection, e.ReportID, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }
