package episodes

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrEpisodeNotFound = errors.New("episode not found")
	ErrCommitFailed    = errors.New("batch commit failed")
)

// NotFoundError represents a lookup miss for a specific resource.
type NotFoundError struct {
	Resource string
	ID       interface{}
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s with identifier %v not found", e.Resource, e.ID)
}

func (e NotFoundError) Is(target error) bool {
	return target == ErrEpisodeNotFound
}

// NewNotFoundError creates a NotFoundError for the given resource
func NewNotFoundError(resource string, id interface{}) NotFoundError {
	return NotFoundError{Resource: resource, ID: id}
}

// CommitError wraps a persistence failure from a batch commit. From the
// engine's point of view nothing was applied; the caller retries the whole
// batch.
type CommitError struct {
	ShowID uint
	Err    error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("committing batch for show %d: %v", e.ShowID, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

func (e *CommitError) Is(target error) bool { return target == ErrCommitFailed }
