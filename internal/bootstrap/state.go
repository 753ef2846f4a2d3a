package bootstrap

// State is the lifecycle state of one resource during a run.
type State string

const (
	// StatePending means the resource has not been dispatched yet.
	StatePending State = "Pending"
	// StateApplying means the apply call is in flight.
	StateApplying State = "Applying"
	// StateAppliedWaitingReady means the apply succeeded and the readiness
	// barrier is being polled.
	StateAppliedWaitingReady State = "AppliedWaitingReady"

	// StateReady is the successful terminal state.
	StateReady State = "Ready"
	// StateFailed means the apply call was rejected or failed.
	StateFailed State = "Failed"
	// StateReadinessTimedOut means the resource was applied but never became
	// ready within its budget.
	StateReadinessTimedOut State = "ReadinessTimedOut"
	// StateSkipped means a transitive dependency ended in a non-ready
	// terminal state, so the resource was never attempted.
	StateSkipped State = "Skipped"
	// StateCancelled means the run was aborted before the resource resolved.
	StateCancelled State = "Cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	switch s {
	case StateReady, StateFailed, StateReadinessTimedOut, StateSkipped, StateCancelled:
		return true
	}
	return false
}

// Succeeded reports whether the state is the successful terminal state.
func (s State) Succeeded() bool {
	return s == StateReady
}
