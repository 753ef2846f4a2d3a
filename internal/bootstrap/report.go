package bootstrap

import (
	"time"

	"github.com/obstack/obstack/internal/plan"
)

// Outcome is the terminal result of one resource.
type Outcome struct {
	Name     string
	Kind     plan.Kind
	State    State
	Err      error
	Duration time.Duration
}

// Report is the aggregate result of one bootstrap run. Outcomes follow the
// planned apply order, and every input resource appears exactly once.
type Report struct {
	Outcomes []Outcome
	Started  time.Time
	Finished time.Time
}

// Succeeded reports whether every resource reached Ready.
func (r *Report) Succeeded() bool {
	for _, o := range r.Outcomes {
		if !o.State.Succeeded() {
			return false
		}
	}
	return true
}

// Counts returns the number of resources per terminal state.
func (r *Report) Counts() map[State]int {
	counts := make(map[State]int)
	for _, o := range r.Outcomes {
		counts[o.State]++
	}
	return counts
}

// Failures returns every outcome whose state is not Ready, in plan order.
func (r *Report) Failures() []Outcome {
	var failures []Outcome
	for _, o := range r.Outcomes {
		if !o.State.Succeeded() {
			failures = append(failures, o)
		}
	}
	return failures
}

// Outcome returns the outcome for a named resource, if present.
func (r *Report) Outcome(name string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Name == name {
			return o, true
		}
	}
	return Outcome{}, false
}

// Duration is the wall-clock length of the run.
func (r *Report) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}
