package debounce

import (
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	calls []int
	fired chan int
}

func newRecorder() *recorder {
	return &recorder{fired: make(chan int, 16)}
}

func (r *recorder) fn(v int) {
	r.mu.Lock()
	r.calls = append(r.calls, v)
	r.mu.Unlock()
	r.fired <- v
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func waitFired(t *testing.T, r *recorder) int {
	t.Helper()
	select {
	case v := <-r.fired:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for debounced call")
		return 0
	}
}

func TestSchedule_BurstCollapsesToLastArg(t *testing.T) {
	t.Parallel()

	r := newRecorder()
	d := New(100*time.Millisecond, r.fn)

	for i := 1; i <= 10; i++ {
		d.Schedule(i)
		time.Sleep(5 * time.Millisecond)
	}

	if got := waitFired(t, r); got != 10 {
		t.Errorf("fired with %d, want 10 (last arg of burst)", got)
	}

	// no second call for the same burst
	time.Sleep(300 * time.Millisecond)
	if n := r.count(); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestSchedule_SpacedTriggersFireEach(t *testing.T) {
	t.Parallel()

	r := newRecorder()
	d := New(20*time.Millisecond, r.fn)

	for i := 1; i <= 3; i++ {
		d.Schedule(i)
		if got := waitFired(t, r); got != i {
			t.Errorf("call %d fired with %d", i, got)
		}
	}

	if n := r.count(); n != 3 {
		t.Errorf("calls = %d, want 3", n)
	}
}

func TestSchedule_FiresAfterQuietPeriod(t *testing.T) {
	t.Parallel()

	r := newRecorder()
	quiet := 80 * time.Millisecond
	d := New(quiet, r.fn)

	start := time.Now()
	d.Schedule(1)
	waitFired(t, r)

	if elapsed := time.Since(start); elapsed < quiet {
		t.Errorf("fired after %v, want >= %v", elapsed, quiet)
	}
}

func TestStop_CancelsPending(t *testing.T) {
	t.Parallel()

	r := newRecorder()
	d := New(50*time.Millisecond, r.fn)

	d.Schedule(1)
	if !d.Pending() {
		t.Fatal("expected pending call after Schedule")
	}
	if !d.Stop() {
		t.Error("Stop should report a pending call")
	}
	if d.Pending() {
		t.Error("expected no pending call after Stop")
	}

	time.Sleep(200 * time.Millisecond)
	if n := r.count(); n != 0 {
		t.Errorf("calls = %d, want 0 after Stop", n)
	}
	if d.Stop() {
		t.Error("second Stop should report nothing pending")
	}
}

func TestSchedule_HandlerMayReschedule(t *testing.T) {
	t.Parallel()

	done := make(chan int, 4)
	var d *Debouncer[int]
	d = New(10*time.Millisecond, func(v int) {
		done <- v
		if v < 3 {
			d.Schedule(v + 1)
		}
	})
	d.Schedule(1)

	for want := 1; want <= 3; want++ {
		select {
		case got := <-done:
			if got != want {
				t.Errorf("got %d, want %d", got, want)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for call %d", want)
		}
	}
}

func TestNew_DefaultQuietPeriod(t *testing.T) {
	t.Parallel()

	d := New(0, func(string) {})
	if d.quiet != DefaultQuietPeriod {
		t.Errorf("quiet = %v, want %v", d.quiet, DefaultQuietPeriod)
	}
}
