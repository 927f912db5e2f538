package timedqueue

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStartedQueue(t *testing.T) *Queue {
	t.Helper()
	q := New()
	q.Start()
	t.Cleanup(q.Shutdown)
	return q
}

func waitSignal(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for task to run")
		return ""
	}
}

func TestRunsTaskAfterDelay(t *testing.T) {
	q := newStartedQueue(t)

	ran := make(chan string, 1)
	start := time.Now()
	q.AddTaskIn("tick", 20*time.Millisecond, func() {
		ran <- "tick"
	})

	assert.Equal(t, "tick", waitSignal(t, ran))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Equal(t, 0, q.Pending())
}

func TestRunsInDueOrder(t *testing.T) {
	q := newStartedQueue(t)

	ran := make(chan string, 3)
	q.AddTaskIn("third", 60*time.Millisecond, func() { ran <- "third" })
	q.AddTaskIn("first", 10*time.Millisecond, func() { ran <- "first" })
	q.AddTaskIn("second", 35*time.Millisecond, func() { ran <- "second" })

	assert.Equal(t, "first", waitSignal(t, ran))
	assert.Equal(t, "second", waitSignal(t, ran))
	assert.Equal(t, "third", waitSignal(t, ran))
}

func TestReplaceByID(t *testing.T) {
	q := newStartedQueue(t)

	ran := make(chan string, 2)
	q.AddTaskIn("job", time.Minute, func() { ran <- "old" })
	q.AddTaskIn("job", 10*time.Millisecond, func() { ran <- "new" })

	require.Equal(t, 1, q.Pending())
	assert.Equal(t, "new", waitSignal(t, ran))

	// the replaced closure must never fire
	select {
	case v := <-ran:
		t.Fatalf("unexpected extra run: %q", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHurry(t *testing.T) {
	q := newStartedQueue(t)

	ran := make(chan string, 1)
	q.AddTaskIn("slow", time.Hour, func() { ran <- "slow" })

	require.NoError(t, q.Hurry("slow"))
	assert.Equal(t, "slow", waitSignal(t, ran))
}

func TestHurryUnknownTask(t *testing.T) {
	q := newStartedQueue(t)

	err := q.Hurry("missing")
	assert.ErrorIs(t, err, ErrNoTask)
}

func TestTasksRunSerially(t *testing.T) {
	q := newStartedQueue(t)

	release := make(chan struct{})
	firstRunning := make(chan struct{})
	var secondRan atomic.Bool

	q.AddTaskIn("first", 0, func() {
		close(firstRunning)
		<-release
	})
	q.AddTaskIn("second", 5*time.Millisecond, func() {
		secondRan.Store(true)
	})

	select {
	case <-firstRunning:
	case <-time.After(2 * time.Second):
		t.Fatal("first task never started")
	}

	// second stays queued while first occupies the worker
	time.Sleep(50 * time.Millisecond)
	assert.False(t, secondRan.Load())

	close(release)
	assert.Eventually(t, secondRan.Load, 2*time.Second, 5*time.Millisecond)
}

func TestTaskRequeuesItself(t *testing.T) {
	q := newStartedQueue(t)

	var runs atomic.Int32
	done := make(chan struct{})

	var loop func()
	loop = func() {
		if runs.Add(1) == 3 {
			close(done)
			return
		}
		q.AddTaskIn("loop", time.Millisecond, loop)
	}
	q.AddTaskIn("loop", 0, loop)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not re-queue itself")
	}
	assert.Equal(t, int32(3), runs.Load())
}

func TestShutdownDropsQueuedTasks(t *testing.T) {
	q := New()
	q.Start()

	var ran atomic.Bool
	q.AddTaskIn("late", time.Hour, func() { ran.Store(true) })
	require.Equal(t, 1, q.Pending())

	q.Shutdown()

	assert.False(t, ran.Load())
	assert.Equal(t, 0, q.Pending())
}

func TestShutdownTwice(t *testing.T) {
	q := New()
	q.Start()
	q.Shutdown()
	q.Shutdown()
}

func TestAddAfterShutdownIsDropped(t *testing.T) {
	q := New()
	q.Start()
	q.Shutdown()

	q.AddTaskIn("ghost", 0, func() { t.Error("task ran after shutdown") })
	assert.Equal(t, 0, q.Pending())

	time.Sleep(20 * time.Millisecond)
}

func TestShutdownWaitsForRunningTask(t *testing.T) {
	q := New()
	q.Start()

	started := make(chan struct{})
	var finished atomic.Bool
	q.AddTaskIn("busy", 0, func() {
		close(started)
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
	})

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("task never started")
	}

	q.Shutdown()
	assert.True(t, finished.Load())
}
