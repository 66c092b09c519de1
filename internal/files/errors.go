package files

import "fmt"

// ResolutionError reports that a resolution could not be computed. It is
// fatal to a run: a partial or empty change set is never substituted.
type ResolutionError struct {
	// Op names the failing operation, e.g. "git diff" or "glob".
	Op  string
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve files: %s: %v", e.Op, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }
