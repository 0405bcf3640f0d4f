// internal/core/usecases/fanout_test.go
package usecases

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"redtrace/internal/core/ports"
	"redtrace/internal/platform/errors"
	"redtrace/internal/testutil"
)

func newTestNotifier(obs ...ports.Observer) *notifier {
	n := newNotifier(testutil.NewTestLogger())
	for _, o := range obs {
		n.Attach(o)
	}
	return n
}

func TestFanout_RunsAllUnits(t *testing.T) {
	runner := newFanoutRunner(4, newTestNotifier(), testutil.NewTestLogger())

	var ran atomic.Int64
	units := make([]unit, 10)
	for i := range units {
		units[i] = unit{
			name: "unit",
			run: func(ctx context.Context) error {
				ran.Add(1)
				return nil
			},
		}
	}

	failed, err := runner.execute(context.Background(), "Test", units)
	testutil.AssertNoError(t, err, "execute")
	testutil.AssertEqual(t, failed, 0, "no failures")
	testutil.AssertEqual(t, int(ran.Load()), 10, "all units ran")
}

func TestFanout_EmptyUnits(t *testing.T) {
	runner := newFanoutRunner(4, newTestNotifier(), testutil.NewTestLogger())

	failed, err := runner.execute(context.Background(), "Test", nil)
	testutil.AssertNoError(t, err, "empty execute")
	testutil.AssertEqual(t, failed, 0, "nothing failed")
}

// Un error de unidad se reporta como warning y no frena a sus hermanas.
func TestFanout_UnitFailureIsolated(t *testing.T) {
	obs := &testutil.RecordingObserver{}
	runner := newFanoutRunner(2, newTestNotifier(obs), testutil.NewTestLogger())

	var ran atomic.Int64
	units := []unit{
		{name: "bad", run: func(ctx context.Context) error { return errors.New("unit error") }},
		{name: "good-1", run: func(ctx context.Context) error { ran.Add(1); return nil }},
		{name: "good-2", run: func(ctx context.Context) error { ran.Add(1); return nil }},
	}

	failed, err := runner.execute(context.Background(), "Test", units)
	testutil.AssertNoError(t, err, "stage-level execution succeeds")
	testutil.AssertEqual(t, failed, 1, "one unit failed")
	testutil.AssertEqual(t, int(ran.Load()), 2, "siblings unaffected")
	testutil.AssertEqual(t, obs.CountKind(ports.EventWarning), 1, "failure surfaced as warning event")
}

func TestFanout_PanicConvertedToFailure(t *testing.T) {
	obs := &testutil.RecordingObserver{}
	runner := newFanoutRunner(2, newTestNotifier(obs), testutil.NewTestLogger())

	units := []unit{
		{name: "panicky", run: func(ctx context.Context) error { panic("collaborator bug") }},
		{name: "calm", run: func(ctx context.Context) error { return nil }},
	}

	failed, err := runner.execute(context.Background(), "Test", units)
	testutil.AssertNoError(t, err, "panic does not take down the pool")
	testutil.AssertEqual(t, failed, 1, "panic counted as failure")
}

// Con el contexto cancelado no se someten unidades nuevas; las en vuelo
// terminan y el progreso parcial se conserva.
func TestFanout_CancellationStopsSubmissions(t *testing.T) {
	runner := newFanoutRunner(1, newTestNotifier(), testutil.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ran atomic.Int64
	var once sync.Once
	units := make([]unit, 20)
	for i := range units {
		units[i] = unit{
			name: "unit",
			run: func(c context.Context) error {
				ran.Add(1)
				once.Do(cancel)
				return nil
			},
		}
	}

	_, err := runner.execute(ctx, "Test", units)
	testutil.AssertNoError(t, err, "cancellation is not a setup error")
	testutil.AssertTrue(t, int(ran.Load()) < 20, "not all units were submitted")
	testutil.AssertTrue(t, int(ran.Load()) >= 1, "in-flight unit drained")
}

func TestFanout_BoundedConcurrency(t *testing.T) {
	const workers = 3
	runner := newFanoutRunner(workers, newTestNotifier(), testutil.NewTestLogger())

	var current, peak atomic.Int64
	units := make([]unit, 12)
	for i := range units {
		units[i] = unit{
			name: "unit",
			run: func(ctx context.Context) error {
				n := current.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				testutil.Sleep(5)
				current.Add(-1)
				return nil
			},
		}
	}

	_, err := runner.execute(context.Background(), "Test", units)
	testutil.AssertNoError(t, err, "execute")
	testutil.AssertTrue(t, int(peak.Load()) <= workers, "concurrency stayed within the pool size")
}

func TestNotifier_AttachmentOrder(t *testing.T) {
	var order []string
	var mu sync.Mutex

	n := newNotifier(testutil.NewTestLogger())
	for _, name := range []string{"a", "b", "c"} {
		name := name
		n.Attach(ports.ObserverFunc(func(stage string, kind ports.EventKind, data any) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}))
	}

	n.Emit("Test", ports.EventInfo, "hello")

	testutil.AssertLen(t, order, 3, "all observers notified")
	testutil.AssertEqual(t, order[0], "a", "first attached, first notified")
	testutil.AssertEqual(t, order[1], "b", "attachment order preserved")
	testutil.AssertEqual(t, order[2], "c", "attachment order preserved")
}

func TestNotifier_NilObserverIgnored(t *testing.T) {
	n := newNotifier(testutil.NewTestLogger())
	n.Attach(nil)
	// No debe entrar en pánico al emitir.
	n.Emit("Test", ports.EventInfo, "hello")
}
