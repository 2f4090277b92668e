package merge

import (
	"errors"
	"fmt"
)

// Fatal errors abort a run before any group is processed.
var (
	ErrInvalidConfig = errors.New("invalid run configuration")
	ErrTooFewClips   = errors.New("at least two clips are required")
)

// Failure kinds recorded in RunResult.Failures.
var (
	// ErrProbeFailure: the clip could not be probed and is excluded.
	ErrProbeFailure = errors.New("probe failed")
	// ErrComposeFailure: the clip could not be normalized and is excluded.
	ErrComposeFailure = errors.New("compose failed")
	// ErrConcatFailure: the group's final assembly failed.
	ErrConcatFailure = errors.New("concat failed")
	// ErrIncompleteGroup: trailing clips did not fill a group and were skipped.
	ErrIncompleteGroup = errors.New("incomplete group")
	// ErrNoUsableClips: every clip of a group was excluded.
	ErrNoUsableClips = errors.New("no usable clips in group")
)

// Failure is a per-clip or per-group failure recorded during a run.
type Failure struct {
	Kind  error
	Clip  string
	Group int
	Err   error
}

func (f Failure) Error() string {
	var subject string
	switch {
	case f.Group > 0 && f.Clip != "":
		subject = fmt.Sprintf("group %d: %s: ", f.Group, f.Clip)
	case f.Group > 0:
		subject = fmt.Sprintf("group %d: ", f.Group)
	case f.Clip != "":
		subject = f.Clip + ": "
	}
	if f.Err == nil {
		return subject + f.Kind.Error()
	}
	return fmt.Sprintf("%s%v: %v", subject, f.Kind, f.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (f Failure) Unwrap() []error {
	return []error{f.Kind, f.Err}
}

// unwrapKind strips kind from an error built as fmt.Errorf("%w: %w", kind, cause).
func unwrapKind(err, kind error) error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			if e != kind {
				return e
			}
		}
	}
	return err
}
