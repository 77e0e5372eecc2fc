package quota

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeGov returns a governor with a frozen clock and a recording sleep
func fakeGov(opt Options) (*Governor, *[]time.Duration) {
	g := New(opt)
	var slept []time.Duration
	var mu sync.Mutex
	now := t0
	g.now = func() time.Time { return now }
	g.sleep = func(_ context.Context, d time.Duration) error {
		mu.Lock()
		slept = append(slept, d)
		mu.Unlock()
		return nil
	}
	return g, &slept
}

func TestNew_Defaults(t *testing.T) {
	g := New(Options{})
	if g.lowWater != DefaultLowWater || g.minBackoff != DefaultMinBackoff {
		t.Fatalf("defaults = %d/%v", g.lowWater, g.minBackoff)
	}
	if g.pace != nil {
		t.Fatalf("pacing should be off by default")
	}
	if New(Options{RPS: 5}).pace == nil {
		t.Fatalf("RPS > 0 should enable pacing")
	}
}

func TestAdmit_UnknownProceeds(t *testing.T) {
	g, _ := fakeGov(Options{})
	if d := g.Admit(); !d.Proceed || d.Wait != 0 {
		t.Fatalf("Admit with no snapshot = %+v, want proceed", d)
	}
}

func TestAdmit_Policy(t *testing.T) {
	cases := []struct {
		name      string
		remaining int
		reset     time.Duration
		want      Decision
	}{
		{"above mark", 11, 30 * time.Second, Decision{Proceed: true}},
		{"at mark waits for reset", 10, 30 * time.Second, Decision{Wait: 31 * time.Second}},
		{"empty waits for reset", 0, 2 * time.Minute, Decision{Wait: 2*time.Minute + time.Second}},
		{"reset soon uses floor", 3, 2 * time.Second, Decision{Wait: 10 * time.Second}},
		{"reset in the past uses floor", 0, -time.Minute, Decision{Wait: 10 * time.Second}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			g, _ := fakeGov(Options{})
			g.Observe(c.remaining, t0.Add(c.reset))
			if got := g.Admit(); got != c.want {
				t.Fatalf("Admit = %+v, want %+v", got, c.want)
			}
		})
	}
}

func TestAdmit_FreshSnapshotIsNotReplayed(t *testing.T) {
	g, _ := fakeGov(Options{})
	g.Observe(2, t0.Add(time.Hour))
	if g.Admit().Proceed {
		t.Fatalf("expected wait at remaining=2")
	}
	g.Observe(4999, t0.Add(time.Hour))
	if d := g.Admit(); !d.Proceed {
		t.Fatalf("fresh budget should proceed, got %+v", d)
	}
}

func TestAcquire_WaitsOnceThenClears(t *testing.T) {
	g, slept := fakeGov(Options{})
	g.Observe(0, t0.Add(20*time.Second))

	if err := g.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if len(*slept) != 1 || (*slept)[0] != 21*time.Second {
		t.Fatalf("slept = %v, want [21s]", *slept)
	}
	// snapshot is stale after the wait; the next call goes straight out
	if err := g.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if len(*slept) != 1 {
		t.Fatalf("second Acquire should not wait, slept = %v", *slept)
	}
	s := g.Snapshot()
	if s.Known || s.Waits != 1 || s.Waited != 21*time.Second {
		t.Fatalf("snapshot = %+v", s)
	}
}

func TestObserve_DropsSnapshotFromWindowWaitedOut(t *testing.T) {
	g, slept := fakeGov(Options{})
	reset := t0.Add(20 * time.Second)
	g.Observe(0, reset)

	if err := g.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	// a response issued before the wait lands after it
	g.Observe(3, reset)
	if s := g.Snapshot(); s.Known {
		t.Fatalf("stale snapshot kept: %+v", s)
	}
	if err := g.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if len(*slept) != 1 {
		t.Fatalf("stale snapshot forced another wait, slept = %v", *slept)
	}

	// the next window is taken as usual
	g.Observe(4999, reset.Add(time.Hour))
	if s := g.Snapshot(); !s.Known || s.Remaining != 4999 {
		t.Fatalf("fresh snapshot dropped: %+v", s)
	}
}

func TestAcquire_ReservesBudget(t *testing.T) {
	g, slept := fakeGov(Options{})
	g.Observe(11, t0.Add(time.Minute))

	_ = g.Acquire(context.Background())
	if len(*slept) != 0 {
		t.Fatalf("first Acquire should proceed")
	}
	if g.Snapshot().Remaining != 10 {
		t.Fatalf("remaining after reservation = %d, want 10", g.Snapshot().Remaining)
	}
	_ = g.Acquire(context.Background())
	if len(*slept) != 1 {
		t.Fatalf("second Acquire should wait once the reservation hits the mark")
	}
}

func TestAcquire_CanceledWhileWaiting(t *testing.T) {
	g := New(Options{MinBackoff: time.Hour})
	g.Observe(0, time.Now().Add(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := g.Acquire(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Acquire err = %v, want context.Canceled", err)
	}
	if !g.Snapshot().Known {
		t.Fatalf("an interrupted wait must not clear the snapshot")
	}
}

func TestObserveThrottle_RetryAfterExtendsWait(t *testing.T) {
	g, _ := fakeGov(Options{})
	g.ObserveThrottle(t0.Add(5*time.Second), 90*time.Second)
	if d := g.Admit(); d.Wait != 90*time.Second {
		t.Fatalf("Admit wait = %v, want 90s", d.Wait)
	}

	g2, _ := fakeGov(Options{})
	g2.ObserveThrottle(t0.Add(40*time.Second), 0)
	if d := g2.Admit(); d.Wait != 41*time.Second {
		t.Fatalf("Admit wait = %v, want 41s", d.Wait)
	}
}

func TestAcquire_ConcurrentCallersShareOneWait(t *testing.T) {
	g, slept := fakeGov(Options{})
	g.Observe(0, t0.Add(30*time.Second))

	var wg sync.WaitGroup
	var ok atomic.Int32
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := g.Acquire(context.Background()); err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	if ok.Load() != 8 {
		t.Fatalf("admitted %d callers, want 8", ok.Load())
	}
	if len(*slept) != 1 {
		t.Fatalf("callers slept %d times, want exactly 1", len(*slept))
	}
}

func TestSleepCtx(t *testing.T) {
	if err := sleepCtx(context.Background(), 0); err != nil {
		t.Fatalf("zero sleep: %v", err)
	}
	if err := sleepCtx(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("short sleep: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepCtx(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("canceled sleep err = %v", err)
	}
}
