package debounce

import (
	"sync"
	"testing"
	"time"
)

// recorder collects commits from a Debouncer in order.
type recorder struct {
	mu      sync.Mutex
	values  []string
	at      []time.Time
	changed chan struct{}
}

func newRecorder() *recorder {
	return &recorder{changed: make(chan struct{}, 16)}
}

func (r *recorder) commit(v string) {
	r.mu.Lock()
	r.values = append(r.values, v)
	r.at = append(r.at, time.Now())
	r.mu.Unlock()
	r.changed <- struct{}{}
}

func (r *recorder) snapshot() ([]string, []time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.values...), append([]time.Time(nil), r.at...)
}

func TestDebouncer_OnlyFinalValueCommits(t *testing.T) {
	const delay = 100 * time.Millisecond
	rec := newRecorder()
	d := New("", delay, rec.commit)
	defer d.Stop()

	start := time.Now()
	d.Set("a")
	time.Sleep(20 * time.Millisecond)
	d.Set("ab")
	time.Sleep(10 * time.Millisecond)
	d.Set("abc")

	select {
	case <-rec.changed:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for commit")
	}

	// Leave room for a (wrong) second commit to show up.
	time.Sleep(2 * delay)

	values, at := rec.snapshot()
	if len(values) != 1 {
		t.Fatalf("expected exactly one commit, got %v", values)
	}
	if values[0] != "abc" {
		t.Errorf("expected commit %q, got %q", "abc", values[0])
	}
	// The last Set happened ~30ms in, so the commit lands at ~130ms.
	if elapsed := at[0].Sub(start); elapsed < 30*time.Millisecond+delay {
		t.Errorf("commit fired too early: %v", elapsed)
	}
	if got := d.Value(); got != "abc" {
		t.Errorf("expected Value() = %q, got %q", "abc", got)
	}
}

func TestDebouncer_NoLeadingEdge(t *testing.T) {
	rec := newRecorder()
	d := New("", 50*time.Millisecond, rec.commit)
	defer d.Stop()

	d.Set("x")
	if got := d.Value(); got != "" {
		t.Errorf("expected committed value to stay empty before the delay, got %q", got)
	}
	if got := d.Input(); got != "x" {
		t.Errorf("expected input %q, got %q", "x", got)
	}

	values, _ := rec.snapshot()
	if len(values) != 0 {
		t.Errorf("expected no commit yet, got %v", values)
	}
}

func TestDebouncer_StopPreventsCommit(t *testing.T) {
	rec := newRecorder()
	d := New("", 30*time.Millisecond, rec.commit)

	d.Set("pending")
	d.Stop()

	time.Sleep(100 * time.Millisecond)

	values, _ := rec.snapshot()
	if len(values) != 0 {
		t.Errorf("expected no commit after Stop, got %v", values)
	}

	// Set after Stop is ignored.
	h := d.Set("later")
	if h.Pending() {
		t.Error("expected handle from a stopped debouncer to not be pending")
	}
	time.Sleep(100 * time.Millisecond)
	if values, _ := rec.snapshot(); len(values) != 0 {
		t.Errorf("expected no commit after Set on stopped debouncer, got %v", values)
	}
}

func TestDebouncer_StopWaitsForRunningCommit(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var finished bool
	var mu sync.Mutex

	d := New("", 10*time.Millisecond, func(string) {
		close(entered)
		<-release
		mu.Lock()
		finished = true
		mu.Unlock()
	})
	d.Set("go")
	<-entered

	stopped := make(chan struct{})
	go func() {
		d.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while onCommit was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-stopped

	mu.Lock()
	defer mu.Unlock()
	if !finished {
		t.Error("expected onCommit to finish before Stop returned")
	}
}

func TestHandle_CancelOnlyLatest(t *testing.T) {
	rec := newRecorder()
	d := New("", 50*time.Millisecond, rec.commit)
	defer d.Stop()

	first := d.Set("one")
	second := d.Set("two")

	if first.Pending() {
		t.Error("expected superseded handle to not be pending")
	}
	if first.Cancel() {
		t.Error("expected Cancel on a superseded handle to return false")
	}
	if !second.Pending() {
		t.Fatal("expected latest handle to be pending")
	}
	if !second.Cancel() {
		t.Error("expected Cancel on the latest handle to return true")
	}

	time.Sleep(150 * time.Millisecond)
	if values, _ := rec.snapshot(); len(values) != 0 {
		t.Errorf("expected no commit after cancel, got %v", values)
	}
	if got := d.Value(); got != "" {
		t.Errorf("expected committed value to stay empty, got %q", got)
	}
}

func TestDebouncer_SameInputKeepsSchedule(t *testing.T) {
	d := New("", time.Hour, nil)
	defer d.Stop()

	h1 := d.Set("same")
	h2 := d.Set("same")
	if !h1.Pending() || !h2.Pending() {
		t.Error("expected repeated identical input to keep the pending schedule")
	}

	// Setting the committed value again with nothing pending schedules nothing.
	d2 := New("x", time.Hour, nil)
	defer d2.Stop()
	if h := d2.Set("x"); h.Pending() {
		t.Error("expected no schedule when input equals the committed value")
	}
}

func TestDebouncer_RevertToCommittedDoesNotCommit(t *testing.T) {
	rec := newRecorder()
	d := New("a", 30*time.Millisecond, rec.commit)
	defer d.Stop()

	d.Set("ab")
	d.Set("a")

	time.Sleep(120 * time.Millisecond)
	if values, _ := rec.snapshot(); len(values) != 0 {
		t.Errorf("expected no commit when the input returns to the committed value, got %v", values)
	}
}

func TestDebouncer_SetDelayAppliesToNextSchedule(t *testing.T) {
	rec := newRecorder()
	d := New("", time.Hour, rec.commit)
	defer d.Stop()

	d.SetDelay(20 * time.Millisecond)
	d.Set("fast")

	select {
	case <-rec.changed:
	case <-time.After(2 * time.Second):
		t.Fatal("expected the shorter delay to apply to the next schedule")
	}
	if values, _ := rec.snapshot(); len(values) != 1 || values[0] != "fast" {
		t.Errorf("expected [fast], got %v", values)
	}
}
