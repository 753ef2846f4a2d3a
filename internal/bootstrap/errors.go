package bootstrap

import (
	"fmt"
	"time"
)

// ApplyError means the cluster collaborator rejected or failed an apply call.
type ApplyError struct {
	Resource string
	Cause    error
}

func (e ApplyError) Error() string {
	return fmt.Sprintf("apply %s: %v", e.Resource, e.Cause)
}

func (e ApplyError) Unwrap() error {
	return e.Cause
}

// ReadinessTimeoutError means a resource was applied but never reported ready
// within its budget.
type ReadinessTimeoutError struct {
	Resource string
	Waited   time.Duration
}

func (e ReadinessTimeoutError) Error() string {
	return fmt.Sprintf("%s not ready after %v", e.Resource, e.Waited.Round(time.Millisecond))
}

// SkippedError records why a resource was never attempted: one of its
// dependencies ended in a non-ready terminal state.
type SkippedError struct {
	Resource  string
	BlockedBy string
}

func (e SkippedError) Error() string {
	return fmt.Sprintf("%s skipped: blocked by %s", e.Resource, e.BlockedBy)
}

// CancelledError means the run was aborted before the resource resolved.
type CancelledError struct {
	Resource string
	Cause    error
}

func (e CancelledError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s cancelled: %v", e.Resource, e.Cause)
	}
	return fmt.Sprintf("%s cancelled", e.Resource)
}

func (e CancelledError) Unwrap() error {
	return e.Cause
}
