// Package bootstrap orchestrates one cluster bootstrap run: it derives the
// apply order from the declared dependency graph, applies each resource
// through the cluster collaborator, enforces readiness barriers, and
// aggregates every terminal outcome into a report.
//
// Failure semantics are fail-independent-branches: an error in one dependency
// subtree blocks only its own dependents. Unrelated subtrees continue, so a
// broken logging pipeline does not prevent the metrics pipeline from coming
// up. FailFast switches to a global abort.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/obstack/obstack/internal/plan"
	"github.com/obstack/obstack/internal/util/retry"
)

// Cluster is the collaborator the bootstrapper drives. Apply must have upsert
// semantics so that re-running against a partially bootstrapped cluster
// converges instead of erroring on existing objects.
type Cluster interface {
	Apply(ctx context.Context, manifest []byte) error
	CheckReady(ctx context.Context, readiness plan.Readiness) (bool, error)
}

// Defaults used when Options leaves a knob zero.
const (
	DefaultTimeout       = 5 * time.Minute
	DefaultPollInterval  = 5 * time.Second
	DefaultParallelism   = 1
	DefaultApplyAttempts = 3
)

// Options configures one bootstrap run.
type Options struct {
	// Timeout is the default per-resource readiness budget.
	Timeout time.Duration
	// PollInterval is the default sleep between readiness polls.
	PollInterval time.Duration
	// Parallelism bounds concurrent applies. Resources only ever run after
	// their dependencies are Ready, so this is purely a throughput knob.
	Parallelism int
	// ApplyAttempts is the retry budget per apply call.
	ApplyAttempts int
	// FailFast aborts the whole run on the first failure instead of
	// continuing with independent branches.
	FailFast bool
	// DryRun applies in validation-only mode and skips readiness barriers.
	DryRun bool
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.Parallelism <= 0 {
		o.Parallelism = DefaultParallelism
	}
	if o.ApplyAttempts <= 0 {
		o.ApplyAttempts = DefaultApplyAttempts
	}
	return o
}

// Bootstrapper executes bootstrap runs against one cluster.
type Bootstrapper struct {
	cluster  Cluster
	observer Observer
	opts     Options
}

// New creates a Bootstrapper. A nil observer disables event output.
func New(cluster Cluster, observer Observer, opts Options) *Bootstrapper {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Bootstrapper{
		cluster:  cluster,
		observer: observer,
		opts:     opts.withDefaults(),
	}
}

// node tracks one resource through the run. Its terminal fields are written
// exactly once by the owning goroutine before done is closed; everyone else
// reads them only after done.
type node struct {
	resource plan.Resource
	deps     []*node

	state    State
	err      error
	duration time.Duration
	done     chan struct{}
}

// Run validates and orders the plan, then drives every resource to a terminal
// state. Plan validation errors abort before any apply and are the only
// errors returned; per-resource failures are captured in the report.
func (b *Bootstrapper) Run(ctx context.Context, resources []plan.Resource) (*Report, error) {
	ordered, err := plan.Order(resources)
	if err != nil {
		return nil, err
	}

	runCtx, abort := context.WithCancel(ctx)
	defer abort()

	nodes := make(map[string]*node, len(ordered))
	for _, r := range ordered {
		nodes[r.Name] = &node{
			resource: r,
			state:    StatePending,
			done:     make(chan struct{}),
		}
	}
	for _, n := range nodes {
		for _, dep := range n.resource.DependsOn {
			n.deps = append(n.deps, nodes[dep])
		}
	}

	started := time.Now()
	b.observer.Event(Event{
		Type:    EventRunStarted,
		Message: "plan validated",
		Fields:  map[string]string{"resources": strconv.Itoa(len(ordered))},
	})

	exec := &execution{
		bootstrapper: b,
		abort:        abort,
		sem:          semaphore.NewWeighted(int64(b.opts.Parallelism)),
		dependents:   plan.Dependents(ordered),
	}

	if b.opts.Parallelism == 1 {
		// Sequential mode walks the planned order directly, so independent
		// resources keep their declaration order.
		for _, r := range ordered {
			exec.runResource(runCtx, nodes[r.Name])
		}
	} else {
		var wg sync.WaitGroup
		for _, r := range ordered {
			n := nodes[r.Name]
			wg.Add(1)
			go func() {
				defer wg.Done()
				exec.runResource(runCtx, n)
			}()
		}
		wg.Wait()
	}

	finished := time.Now()
	report := &Report{
		Started:  started,
		Finished: finished,
		Outcomes: make([]Outcome, 0, len(ordered)),
	}
	for _, r := range ordered {
		n := nodes[r.Name]
		report.Outcomes = append(report.Outcomes, Outcome{
			Name:     r.Name,
			Kind:     r.Kind,
			State:    n.state,
			Err:      n.err,
			Duration: n.duration,
		})
		resourcesTotal.WithLabelValues(string(n.state)).Inc()
	}
	runDuration.Observe(finished.Sub(started).Seconds())

	b.observer.Event(Event{
		Type:    EventRunCompleted,
		Message: "run finished",
		Fields: map[string]string{
			"duration": finished.Sub(started).Round(time.Millisecond).String(),
			"ready":    strconv.Itoa(report.Counts()[StateReady]),
			"total":    strconv.Itoa(len(ordered)),
		},
	})
	return report, nil
}

// execution holds the per-run shared pieces the resource goroutines need.
type execution struct {
	bootstrapper *Bootstrapper
	abort        context.CancelFunc
	sem          *semaphore.Weighted
	dependents   map[string][]string
}

func (e *execution) runResource(ctx context.Context, n *node) {
	defer close(n.done)

	b := e.bootstrapper
	name := n.resource.Name
	start := time.Now()

	finish := func(state State, err error, eventType EventType) {
		n.state = state
		n.err = err
		n.duration = time.Since(start)
		msg := string(state)
		if err != nil {
			msg = err.Error()
		}
		ev := Event{Type: eventType, Resource: name, Message: msg}
		// A non-ready terminal state blocks every direct dependent.
		if blocked := e.dependents[name]; state != StateReady && len(blocked) > 0 {
			ev.Fields = map[string]string{"blocks": strconv.Itoa(len(blocked))}
		}
		b.observer.Event(ev)
	}

	// Dependency barrier: wait for every dependency to reach a terminal
	// state, then propagate anything that is not Ready.
	for _, dep := range n.deps {
		select {
		case <-dep.done:
		case <-ctx.Done():
			finish(StateCancelled, CancelledError{Resource: name, Cause: ctx.Err()}, EventResourceCancelled)
			return
		}
		switch dep.state {
		case StateReady:
		case StateCancelled:
			finish(StateCancelled, CancelledError{Resource: name}, EventResourceCancelled)
			return
		default:
			finish(StateSkipped, SkippedError{Resource: name, BlockedBy: dep.resource.Name}, EventResourceSkipped)
			return
		}
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		finish(StateCancelled, CancelledError{Resource: name, Cause: ctx.Err()}, EventResourceCancelled)
		return
	}
	defer e.sem.Release(1)

	n.state = StateApplying
	b.observer.Event(Event{Type: EventResourceApplying, Resource: name,
		Message: "applying " + string(n.resource.Kind)})

	applyStart := time.Now()
	err := retry.Do(ctx, func() error {
		return b.cluster.Apply(ctx, n.resource.Manifest)
	}, retry.WithAttempts(b.opts.ApplyAttempts))
	applyDuration.Observe(time.Since(applyStart).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			finish(StateCancelled, CancelledError{Resource: name, Cause: ctx.Err()}, EventResourceCancelled)
			return
		}
		finish(StateFailed, ApplyError{Resource: name, Cause: err}, EventResourceFailed)
		if b.opts.FailFast {
			e.abort()
		}
		return
	}

	readiness := n.resource.Readiness
	if b.opts.DryRun || readiness.Type == "" || readiness.Type == plan.ReadinessNone {
		finish(StateReady, nil, EventResourceReady)
		return
	}

	timeout := readiness.Timeout
	if timeout <= 0 {
		timeout = b.opts.Timeout
	}
	interval := readiness.PollInterval
	if interval <= 0 {
		interval = b.opts.PollInterval
	}

	n.state = StateAppliedWaitingReady
	b.observer.Event(Event{Type: EventResourceWaiting, Resource: name,
		Message: "waiting for " + string(readiness.Type),
		Fields:  map[string]string{"timeout": timeout.String()}})

	waitStart := time.Now()
	err = wait.PollUntilContextTimeout(ctx, interval, timeout, true,
		func(ctx context.Context) (bool, error) {
			return b.cluster.CheckReady(ctx, readiness)
		})
	readinessWaitDuration.Observe(time.Since(waitStart).Seconds())

	switch {
	case err == nil:
		finish(StateReady, nil, EventResourceReady)
	case ctx.Err() != nil:
		finish(StateCancelled, CancelledError{Resource: name, Cause: ctx.Err()}, EventResourceCancelled)
	case errors.Is(err, context.DeadlineExceeded):
		finish(StateReadinessTimedOut,
			ReadinessTimeoutError{Resource: name, Waited: time.Since(waitStart)},
			EventResourceTimedOut)
		if b.opts.FailFast {
			e.abort()
		}
	default:
		// The readiness predicate itself errored (e.g. a malformed selector).
		finish(StateFailed, fmt.Errorf("readiness check for %s: %w", name, err), EventResourceFailed)
		if b.opts.FailFast {
			e.abort()
		}
	}
}
