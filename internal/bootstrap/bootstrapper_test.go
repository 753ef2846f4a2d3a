package bootstrap

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obstack/obstack/internal/plan"
)

// fakeCluster is an in-memory upsert collaborator. Manifests carry the
// resource name as their payload so applies can be correlated.
type fakeCluster struct {
	mu      sync.Mutex
	applied []string
	calls   map[string]int

	applyErrs  map[string]error  // name -> error for every apply attempt
	applyFlaky map[string]int    // name -> number of failing attempts before success
	readyAfter map[string]int    // readiness name -> polls needed before ready
	neverReady map[string]bool   // readiness name -> poll never succeeds
	polls      map[string]int
	blockApply bool // when set, Apply blocks until ctx is done

	readinessCalls atomic.Int32
	inFlight       atomic.Int32
	maxInFlight    atomic.Int32
}

func newFakeCluster() *fakeCluster {
	return &fakeCluster{
		calls:      make(map[string]int),
		applyErrs:  make(map[string]error),
		applyFlaky: make(map[string]int),
		readyAfter: make(map[string]int),
		neverReady: make(map[string]bool),
		polls:      make(map[string]int),
	}
}

func (f *fakeCluster) Apply(ctx context.Context, manifest []byte) error {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		max := f.maxInFlight.Load()
		if cur <= max || f.maxInFlight.CompareAndSwap(max, cur) {
			break
		}
	}

	if f.blockApply {
		<-ctx.Done()
		return ctx.Err()
	}

	name := string(manifest)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	if remaining, ok := f.applyFlaky[name]; ok && remaining > 0 {
		f.applyFlaky[name] = remaining - 1
		return errors.New("transient apply error")
	}
	if err, ok := f.applyErrs[name]; ok {
		return err
	}
	f.applied = append(f.applied, name)
	return nil
}

func (f *fakeCluster) CheckReady(_ context.Context, r plan.Readiness) (bool, error) {
	f.readinessCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.neverReady[r.Name] {
		return false, nil
	}
	f.polls[r.Name]++
	return f.polls[r.Name] > f.readyAfter[r.Name], nil
}

func (f *fakeCluster) appliedNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.applied...)
}

func testResource(name string, kind plan.Kind, readiness plan.ReadinessType, deps ...string) plan.Resource {
	return plan.Resource{
		Name:      name,
		Kind:      kind,
		DependsOn: deps,
		Manifest:  []byte(name),
		Readiness: plan.Readiness{
			Type:         readiness,
			Name:         name,
			Timeout:      2 * time.Second,
			PollInterval: 5 * time.Millisecond,
		},
	}
}

// recordingObserver captures every event for assertions.
type recordingObserver struct {
	mu     sync.Mutex
	events []Event
}

func (o *recordingObserver) Event(event Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
}

func (o *recordingObserver) find(eventType EventType, resource string) (Event, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, ev := range o.events {
		if ev.Type == eventType && ev.Resource == resource {
			return ev, true
		}
	}
	return Event{}, false
}

func fastOptions() Options {
	return Options{
		Timeout:       time.Second,
		PollInterval:  5 * time.Millisecond,
		ApplyAttempts: 1,
	}
}

func TestRun_LinearChainAllReady(t *testing.T) {
	t.Parallel()
	cluster := newFakeCluster()
	resources := []plan.Resource{
		testResource("ns", plan.KindNamespace, plan.ReadinessNamespaceExists),
		testResource("cfg", plan.KindConfigMap, plan.ReadinessNone, "ns"),
		testResource("dep", plan.KindDeployment, plan.ReadinessDeploymentAvailable, "cfg"),
		testResource("svc", plan.KindService, plan.ReadinessServiceEndpoints, "dep"),
	}

	b := New(cluster, NopObserver{}, fastOptions())
	report, err := b.Run(context.Background(), resources)
	require.NoError(t, err)

	assert.True(t, report.Succeeded())
	assert.Equal(t, []string{"ns", "cfg", "dep", "svc"}, cluster.appliedNames())
	for _, o := range report.Outcomes {
		assert.Equal(t, StateReady, o.State, "resource %s", o.Name)
		assert.NoError(t, o.Err)
	}
}

func TestRun_EveryResourceGetsExactlyOneTerminalState(t *testing.T) {
	t.Parallel()
	cluster := newFakeCluster()
	cluster.applyErrs["bad"] = errors.New("rejected")
	resources := []plan.Resource{
		testResource("ns", plan.KindNamespace, plan.ReadinessNone),
		testResource("bad", plan.KindDeployment, plan.ReadinessNone, "ns"),
		testResource("child", plan.KindService, plan.ReadinessNone, "bad"),
		testResource("other", plan.KindConfigMap, plan.ReadinessNone),
	}

	b := New(cluster, NopObserver{}, fastOptions())
	report, err := b.Run(context.Background(), resources)
	require.NoError(t, err)

	require.Len(t, report.Outcomes, len(resources))
	seen := make(map[string]State)
	for _, o := range report.Outcomes {
		assert.True(t, o.State.Terminal(), "resource %s ended non-terminal: %s", o.Name, o.State)
		seen[o.Name] = o.State
	}
	assert.Len(t, seen, len(resources))
}

func TestRun_FaultIsolationBetweenIndependentChains(t *testing.T) {
	t.Parallel()
	cluster := newFakeCluster()
	cluster.applyErrs["x"] = errors.New("admission webhook denied")

	// Two chains with no cross edges: a -> b and x -> y.
	resources := []plan.Resource{
		testResource("a", plan.KindNamespace, plan.ReadinessNone),
		testResource("b", plan.KindDeployment, plan.ReadinessNone, "a"),
		testResource("x", plan.KindNamespace, plan.ReadinessNone),
		testResource("y", plan.KindDeployment, plan.ReadinessNone, "x"),
	}

	b := New(cluster, NopObserver{}, fastOptions())
	report, err := b.Run(context.Background(), resources)
	require.NoError(t, err)

	outcome := func(name string) Outcome {
		o, ok := report.Outcome(name)
		require.True(t, ok, "missing outcome for %s", name)
		return o
	}

	assert.Equal(t, StateReady, outcome("a").State)
	assert.Equal(t, StateReady, outcome("b").State)

	assert.Equal(t, StateFailed, outcome("x").State)
	var applyErr ApplyError
	require.ErrorAs(t, outcome("x").Err, &applyErr)
	assert.Equal(t, "x", applyErr.Resource)
	assert.Contains(t, applyErr.Error(), "admission webhook denied")

	assert.Equal(t, StateSkipped, outcome("y").State)
	var skipErr SkippedError
	require.ErrorAs(t, outcome("y").Err, &skipErr)
	assert.Equal(t, "x", skipErr.BlockedBy)
}

func TestRun_ReadinessTimeoutBlocksOnlyDependents(t *testing.T) {
	t.Parallel()
	cluster := newFakeCluster()
	cluster.neverReady["dep"] = true

	resources := []plan.Resource{
		testResource("ns", plan.KindNamespace, plan.ReadinessNone),
		testResource("cfg", plan.KindConfigMap, plan.ReadinessNone, "ns"),
		{
			Name:      "dep",
			Kind:      plan.KindDeployment,
			DependsOn: []string{"cfg"},
			Manifest:  []byte("dep"),
			Readiness: plan.Readiness{
				Type:         plan.ReadinessDeploymentAvailable,
				Name:         "dep",
				Timeout:      50 * time.Millisecond,
				PollInterval: 10 * time.Millisecond,
			},
		},
		testResource("svc", plan.KindService, plan.ReadinessNone, "dep"),
	}

	b := New(cluster, NopObserver{}, fastOptions())
	start := time.Now()
	report, err := b.Run(context.Background(), resources)
	require.NoError(t, err)

	// The run must not hang past timeout + poll interval for the stuck resource.
	assert.Less(t, time.Since(start), 2*time.Second)

	ns, _ := report.Outcome("ns")
	cfg, _ := report.Outcome("cfg")
	dep, _ := report.Outcome("dep")
	svc, _ := report.Outcome("svc")

	assert.Equal(t, StateReady, ns.State)
	assert.Equal(t, StateReady, cfg.State)

	assert.Equal(t, StateReadinessTimedOut, dep.State)
	var timeoutErr ReadinessTimeoutError
	require.ErrorAs(t, dep.Err, &timeoutErr)
	assert.Equal(t, "dep", timeoutErr.Resource)
	assert.Greater(t, timeoutErr.Waited, time.Duration(0))

	assert.Equal(t, StateSkipped, svc.State)
	var skipErr SkippedError
	require.ErrorAs(t, svc.Err, &skipErr)
	assert.Equal(t, "dep", skipErr.BlockedBy)
}

func TestRun_SkipPropagatesTransitively(t *testing.T) {
	t.Parallel()
	cluster := newFakeCluster()
	cluster.applyErrs["root"] = errors.New("boom")

	resources := []plan.Resource{
		testResource("root", plan.KindNamespace, plan.ReadinessNone),
		testResource("mid", plan.KindConfigMap, plan.ReadinessNone, "root"),
		testResource("leaf", plan.KindDeployment, plan.ReadinessNone, "mid"),
	}

	b := New(cluster, NopObserver{}, fastOptions())
	report, err := b.Run(context.Background(), resources)
	require.NoError(t, err)

	mid, _ := report.Outcome("mid")
	leaf, _ := report.Outcome("leaf")
	assert.Equal(t, StateSkipped, mid.State)
	assert.Equal(t, StateSkipped, leaf.State)

	var skipErr SkippedError
	require.ErrorAs(t, leaf.Err, &skipErr)
	assert.Equal(t, "mid", skipErr.BlockedBy)
}

func TestRun_CycleAbortsBeforeAnyApply(t *testing.T) {
	t.Parallel()
	cluster := newFakeCluster()
	resources := []plan.Resource{
		testResource("a", plan.KindConfigMap, plan.ReadinessNone, "b"),
		testResource("b", plan.KindConfigMap, plan.ReadinessNone, "a"),
	}

	b := New(cluster, NopObserver{}, fastOptions())
	report, err := b.Run(context.Background(), resources)

	var cycleErr plan.CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Nil(t, report)
	assert.Empty(t, cluster.appliedNames(), "no apply may happen on plan errors")
}

func TestRun_UnknownDependencyAbortsBeforeAnyApply(t *testing.T) {
	t.Parallel()
	cluster := newFakeCluster()
	resources := []plan.Resource{
		testResource("a", plan.KindConfigMap, plan.ReadinessNone, "ghost"),
	}

	b := New(cluster, NopObserver{}, fastOptions())
	report, err := b.Run(context.Background(), resources)

	var unknownErr plan.UnknownDependencyError
	require.ErrorAs(t, err, &unknownErr)
	assert.Nil(t, report)
	assert.Empty(t, cluster.appliedNames())
}

func TestRun_RerunConvergesIdempotently(t *testing.T) {
	t.Parallel()
	cluster := newFakeCluster()
	resources := []plan.Resource{
		testResource("ns", plan.KindNamespace, plan.ReadinessNone),
		testResource("dep", plan.KindDeployment, plan.ReadinessNone, "ns"),
	}

	b := New(cluster, NopObserver{}, fastOptions())

	first, err := b.Run(context.Background(), resources)
	require.NoError(t, err)
	second, err := b.Run(context.Background(), resources)
	require.NoError(t, err)

	assert.True(t, first.Succeeded())
	assert.True(t, second.Succeeded())
	assert.Empty(t, second.Failures(), "upsert re-run must not produce already-exists failures")
	assert.Equal(t, first.Counts()[StateReady], second.Counts()[StateReady])
}

func TestRun_ApplyRetriesTransientErrors(t *testing.T) {
	t.Parallel()
	cluster := newFakeCluster()
	cluster.applyFlaky["flaky"] = 2

	resources := []plan.Resource{
		testResource("flaky", plan.KindDeployment, plan.ReadinessNone),
	}

	opts := fastOptions()
	opts.ApplyAttempts = 3
	b := New(cluster, NopObserver{}, opts)

	report, err := b.Run(context.Background(), resources)
	require.NoError(t, err)
	assert.True(t, report.Succeeded())

	cluster.mu.Lock()
	defer cluster.mu.Unlock()
	assert.Equal(t, 3, cluster.calls["flaky"])
}

func TestRun_CancellationMarksUnresolvedResources(t *testing.T) {
	t.Parallel()
	cluster := newFakeCluster()
	cluster.blockApply = true

	resources := []plan.Resource{
		testResource("a", plan.KindNamespace, plan.ReadinessNone),
		testResource("b", plan.KindDeployment, plan.ReadinessNone, "a"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	b := New(cluster, NopObserver{}, fastOptions())
	report, err := b.Run(ctx, resources)
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 2)
	for _, o := range report.Outcomes {
		assert.Equal(t, StateCancelled, o.State, "resource %s", o.Name)
		var cancelErr CancelledError
		assert.ErrorAs(t, o.Err, &cancelErr)
	}
	assert.False(t, report.Succeeded())
}

func TestRun_FailFastAbortsIndependentBranches(t *testing.T) {
	t.Parallel()
	cluster := newFakeCluster()
	cluster.applyErrs["a"] = errors.New("boom")
	cluster.neverReady["slow"] = true

	resources := []plan.Resource{
		testResource("a", plan.KindNamespace, plan.ReadinessNone),
		{
			Name:     "slow",
			Kind:     plan.KindDeployment,
			Manifest: []byte("slow"),
			Readiness: plan.Readiness{
				Type:         plan.ReadinessDeploymentAvailable,
				Name:         "slow",
				Timeout:      30 * time.Second,
				PollInterval: 10 * time.Millisecond,
			},
		},
	}

	opts := fastOptions()
	opts.FailFast = true
	opts.Parallelism = 2
	b := New(cluster, NopObserver{}, opts)

	start := time.Now()
	report, err := b.Run(context.Background(), resources)
	require.NoError(t, err)

	// Without the abort, "slow" would poll for 30s.
	assert.Less(t, time.Since(start), 5*time.Second)

	a, _ := report.Outcome("a")
	slow, _ := report.Outcome("slow")
	assert.Equal(t, StateFailed, a.State)
	assert.Equal(t, StateCancelled, slow.State)
}

func TestRun_ParallelismAppliesIndependentResourcesConcurrently(t *testing.T) {
	t.Parallel()
	cluster := newFakeCluster()
	resources := []plan.Resource{
		testResource("a", plan.KindConfigMap, plan.ReadinessNone),
		testResource("b", plan.KindConfigMap, plan.ReadinessNone),
		testResource("c", plan.KindConfigMap, plan.ReadinessNone),
	}
	for i := range resources {
		resources[i].Readiness = plan.Readiness{
			Type:         plan.ReadinessServiceEndpoints,
			Name:         resources[i].Name,
			Timeout:      time.Second,
			PollInterval: 20 * time.Millisecond,
		}
		cluster.readyAfter[resources[i].Name] = 2
	}

	opts := fastOptions()
	opts.Parallelism = 3
	b := New(cluster, NopObserver{}, opts)

	report, err := b.Run(context.Background(), resources)
	require.NoError(t, err)
	assert.True(t, report.Succeeded())
}

func TestRun_SequentialNeverOverlapsApplies(t *testing.T) {
	t.Parallel()
	cluster := newFakeCluster()
	resources := []plan.Resource{
		testResource("a", plan.KindConfigMap, plan.ReadinessNone),
		testResource("b", plan.KindConfigMap, plan.ReadinessNone),
		testResource("c", plan.KindConfigMap, plan.ReadinessNone),
	}

	b := New(cluster, NopObserver{}, fastOptions()) // Parallelism defaults to 1
	report, err := b.Run(context.Background(), resources)
	require.NoError(t, err)

	assert.True(t, report.Succeeded())
	assert.LessOrEqual(t, cluster.maxInFlight.Load(), int32(1))
	// Declaration order is preserved for independent resources.
	assert.Equal(t, []string{"a", "b", "c"}, cluster.appliedNames())
}

func TestRun_DryRunSkipsReadinessBarriers(t *testing.T) {
	t.Parallel()
	cluster := newFakeCluster()
	cluster.neverReady["dep"] = true

	resources := []plan.Resource{
		testResource("ns", plan.KindNamespace, plan.ReadinessNamespaceExists),
		testResource("dep", plan.KindDeployment, plan.ReadinessDeploymentAvailable, "ns"),
	}

	opts := fastOptions()
	opts.DryRun = true
	b := New(cluster, NopObserver{}, opts)

	report, err := b.Run(context.Background(), resources)
	require.NoError(t, err)
	assert.True(t, report.Succeeded())
	assert.Zero(t, cluster.readinessCalls.Load(), "dry-run must not poll readiness")
}

func TestRun_FailureEventReportsBlockedDependents(t *testing.T) {
	t.Parallel()
	cluster := newFakeCluster()
	cluster.applyErrs["root"] = errors.New("rejected")

	resources := []plan.Resource{
		testResource("root", plan.KindNamespace, plan.ReadinessNone),
		testResource("mid", plan.KindConfigMap, plan.ReadinessNone, "root"),
		testResource("leaf", plan.KindDeployment, plan.ReadinessNone, "mid"),
	}

	observer := &recordingObserver{}
	b := New(cluster, observer, fastOptions())
	report, err := b.Run(context.Background(), resources)
	require.NoError(t, err)
	assert.False(t, report.Succeeded())

	failed, ok := observer.find(EventResourceFailed, "root")
	require.True(t, ok, "missing failed event for root")
	assert.Equal(t, "1", failed.Fields["blocks"])

	skipped, ok := observer.find(EventResourceSkipped, "mid")
	require.True(t, ok, "missing skipped event for mid")
	assert.Equal(t, "1", skipped.Fields["blocks"])

	// leaf blocks nothing, so its event carries no blocked count.
	skipped, ok = observer.find(EventResourceSkipped, "leaf")
	require.True(t, ok, "missing skipped event for leaf")
	assert.Empty(t, skipped.Fields)
}
