/*
Package timedqueue provides the single-worker timed task queue driving
Mastermind's periodic work.

The timedqueue package implements a small cooperative scheduler: one-shot
tasks keyed by string ids, executed serially on a single worker goroutine in
due-time order. The reconciler runs its whole life on this queue: the
load-nodes loop re-queues itself under its own id, and the metadata sweeps
are queued as delayed follow-ups of each reload.

# Architecture

	┌───────────────────── TIMED QUEUE ─────────────────────┐
	│                                                        │
	│  AddTaskIn(id, delay, fn) ──┐                          │
	│  Hurry(id) ─────────────────┤                          │
	│                             ▼                          │
	│  ┌──────────────────────────────────────────┐          │
	│  │  min-heap of (due, seq, id, fn)          │          │
	│  │  + id → entry map                        │          │
	│  │                                          │          │
	│  │  same id    → replace queued entry       │          │
	│  │  hurry      → re-heap entry to now       │          │
	│  └──────────────────┬───────────────────────┘          │
	│                     │ pop earliest due                 │
	│                     ▼                                  │
	│  ┌──────────────────────────────────────────┐          │
	│  │  worker goroutine                        │          │
	│  │  - sleeps until the next due time        │          │
	│  │  - runs tasks one at a time              │          │
	│  │  - removes the id before invoking fn     │          │
	│  └──────────────────────────────────────────┘          │
	│                                                        │
	└────────────────────────────────────────────────────────┘

# Core Components

Queue:
  - Min-heap ordered by due time, ties broken by insertion sequence
  - Id map for replacement and hurry lookups
  - One worker goroutine; tasks never run concurrently
  - Start/Shutdown lifecycle

Task:
  - Plain func() closure
  - Runs on the worker goroutine
  - May call AddTaskIn, including under its own id

# Task Lifecycle

 1. AddTaskIn(id, delay, fn) heaps an entry due at now+delay
 2. If id is already queued, the entry is replaced in place
 3. The worker sleeps until the earliest due time
 4. The due entry is popped and its id removed from the map
 5. fn runs to completion on the worker
 6. A task that re-queued itself shows up as a fresh entry

The id is removed before fn is invoked. That ordering is what makes the
self-re-queue idiom work: while load-nodes executes, "load_nodes" is free,
so the task can schedule its next run under the same id.

# Usage

Running a periodic task:

	q := timedqueue.New()
	q.Start()
	defer q.Shutdown()

	var reload func()
	reload = func() {
		doWork()
		q.AddTaskIn("reload", time.Minute, reload)
	}
	q.AddTaskIn("reload", 0, reload)

Forcing a queued task to run now:

	// replace wins whether or not the task is queued
	q.AddTaskIn("reload", 0, reload)

	// hurry only advances an entry that is still queued
	if err := q.Hurry("reload"); errors.Is(err, timedqueue.ErrNoTask) {
		// task is executing right now or was never queued
	}

# Semantics

Replacement:
  - AddTaskIn under a queued id replaces due time and function
  - The replaced closure is forgotten and never runs
  - An executing task is not queued, so it cannot be replaced;
    adding its id during execution schedules an additional run

Hurry:
  - Re-heaps the queued entry with due = now
  - Returns ErrNoTask when the id is not queued
  - Never interrupts an executing task

Shutdown:
  - Drops every queued task
  - Waits for the executing task, if any, to finish
  - Subsequent AddTaskIn calls are silently dropped
  - Safe to call more than once

# Integration Points

This package integrates with:

  - pkg/reconciler: load-nodes loop and metadata sweep scheduling
  - cmd/mastermind: queue lifecycle inside the agent's run group

# Limitations

  - One worker: a long task delays everything behind it
  - No persistence: queued tasks vanish on restart
  - No per-task cancellation: replace with a no-op instead
*/
package timedqueue
