package timedqueue

import (
	"container/heap"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/mastermind/pkg/log"
)

// ErrNoTask is returned by Hurry when no task is queued under the id.
var ErrNoTask = errors.New("no queued task with this id")

// Task is a unit of deferred work. Tasks run serially on the queue
// worker; a task may call AddTaskIn to re-queue itself.
type Task func()

// entry is one queued task. index is the heap slot, maintained by the
// heap interface methods.
type entry struct {
	id    string
	due   time.Time
	seq   uint64
	fn    Task
	index int
}

// taskHeap orders entries by due time; ties resolve in insertion
// order so replaced tasks never jump ahead of older peers.
type taskHeap []*entry

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].seq < h[j].seq
	}
	return h[i].due.Before(h[j].due)
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x interface{}) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Queue is a single-worker timed task queue. Tasks are one-shot,
// keyed by a string id, and run serially in due-time order on one
// worker goroutine. Installing a task under an id that is already
// queued replaces the old entry; a task that is already executing is
// not affected by a replacement, so the executing task and its
// replacement both run.
type Queue struct {
	mu   sync.Mutex
	heap taskHeap
	byID map[string]*entry
	seq  uint64

	stopped bool

	wake   chan struct{}
	stopCh chan struct{}
	done   chan struct{}

	now    func() time.Time
	logger zerolog.Logger
}

// New creates a stopped queue. Call Start before adding tasks.
func New() *Queue {
	return &Queue{
		byID:   make(map[string]*entry),
		wake:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
		now:    time.Now,
		logger: log.WithComponent("timedqueue"),
	}
}

// Start launches the worker goroutine.
func (q *Queue) Start() {
	go q.run()
}

// Shutdown drops every queued task and stops the worker. A task that
// is already executing runs to completion; Shutdown returns once the
// worker has exited. Calling Shutdown twice is safe.
func (q *Queue) Shutdown() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.stopped = true
	dropped := len(q.heap)
	q.heap = nil
	q.byID = make(map[string]*entry)
	q.mu.Unlock()

	close(q.stopCh)
	<-q.done

	if dropped > 0 {
		q.logger.Info().Int("dropped", dropped).Msg("dropped queued tasks on shutdown")
	}
}

// AddTaskIn schedules fn to run after delay. If a task is already
// queued under id it is replaced: the new function and due time win,
// the old ones are forgotten. Adds after Shutdown are dropped.
func (q *Queue) AddTaskIn(id string, delay time.Duration, fn Task) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return
	}

	due := q.now().Add(delay)
	q.seq++

	if e, ok := q.byID[id]; ok {
		e.due = due
		e.fn = fn
		e.seq = q.seq
		heap.Fix(&q.heap, e.index)
		q.logger.Debug().Str("task_id", id).Dur("delay", delay).Msg("replaced queued task")
	} else {
		e := &entry{id: id, due: due, fn: fn, seq: q.seq}
		q.byID[id] = e
		heap.Push(&q.heap, e)
		q.logger.Debug().Str("task_id", id).Dur("delay", delay).Msg("queued task")
	}
	q.notify()
}

// Hurry moves a queued task forward so it runs as soon as the worker
// is free. Hurrying an id that is not queued (never added, already
// running, or already done) returns ErrNoTask.
func (q *Queue) Hurry(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.byID[id]
	if !ok {
		return ErrNoTask
	}
	e.due = q.now()
	heap.Fix(&q.heap, e.index)
	q.notify()

	q.logger.Debug().Str("task_id", id).Msg("hurried task")
	return nil
}

// Pending reports the number of queued tasks. A task currently
// executing is not counted.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}

// notify nudges the worker; the buffer of one collapses bursts.
func (q *Queue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// run is the worker loop. It pops due tasks one at a time, sleeping
// until the earliest due time otherwise. The task id is removed from
// the queue before the function runs, which is what lets a task
// re-queue itself under its own id.
func (q *Queue) run() {
	defer close(q.done)

	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		q.mu.Lock()
		var fn Task
		var id string
		wait := time.Duration(-1)
		if len(q.heap) > 0 {
			next := q.heap[0]
			now := q.now()
			if !next.due.After(now) {
				heap.Pop(&q.heap)
				delete(q.byID, next.id)
				fn, id = next.fn, next.id
			} else {
				wait = next.due.Sub(now)
			}
		}
		q.mu.Unlock()

		if fn != nil {
			q.logger.Debug().Str("task_id", id).Msg("running task")
			fn()
			continue
		}

		if wait < 0 {
			select {
			case <-q.wake:
			case <-q.stopCh:
				return
			}
			continue
		}

		timer.Reset(wait)
		select {
		case <-timer.C:
		case <-q.wake:
			stopTimer(timer)
		case <-q.stopCh:
			stopTimer(timer)
			return
		}
	}
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
