/*
Package events provides an in-memory event broker for Mastermind's pub/sub
messaging.

The events package implements a lightweight event bus for broadcasting
coordinator events to interested subscribers. It supports asynchronous event
delivery with bounded buffers, enabling loose coupling between the
reconciler, the balancer handlers and the observers (logging, metrics)
without any of them blocking the others.

# Architecture

Mastermind's event system provides non-blocking pub/sub messaging with
buffered channels:

	┌──────────────────── EVENT BROKER ────────────────────────┐
	│                                                          │
	│  ┌────────────────────────────────────────────┐          │
	│  │              Event Broker                  │          │
	│  │  - In-memory message bus                   │          │
	│  │  - Topic-agnostic (all events broadcast)   │          │
	│  │  - Non-blocking publish                    │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                    │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          Event Distribution                │          │
	│  │                                            │          │
	│  │  Publisher → Event Channel (buffer: 100)   │          │
	│  │       ↓                                    │          │
	│  │  Broadcast Loop                            │          │
	│  │       ↓                                    │          │
	│  │  Subscriber Channels (buffer: 50 each)     │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                    │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Event Types                      │          │
	│  │                                            │          │
	│  │  Couple Events:                            │          │
	│  │    - couple.created                        │          │
	│  │    - couple.destroyed                      │          │
	│  │    - couple.frozen                         │          │
	│  │    - couple.unfrozen                       │          │
	│  │                                            │          │
	│  │  Group/Node Events:                        │          │
	│  │    - group.bad                             │          │
	│  │    - node.detached                         │          │
	│  │                                            │          │
	│  │  Reconciler Events:                        │          │
	│  │    - reconcile.completed                   │          │
	│  └────────────────────────────────────────────┘          │
	│                                                          │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Subscribers                     │          │
	│  │                                            │          │
	│  │  Agent: log events at info level           │          │
	│  │  Metrics: count events by type             │          │
	│  └────────────────────────────────────────────┘          │
	└──────────────────────────────────────────────────────────┘

# Core Components

Event Broker:
  - Central message bus for event distribution
  - Manages subscriber lifecycle
  - Non-blocking publish (buffered channel)
  - Graceful shutdown via stop channel

Event:
  - ID: Unique event identifier (UUID, minted on publish when empty)
  - Type: Event type (couple.created, group.bad, etc.)
  - Timestamp: When event occurred
  - Message: Human-readable description
  - Metadata: Key-value pairs for additional context

Subscriber:
  - Channel that receives Event pointers
  - Buffered (50 events) to handle bursts
  - Created via broker.Subscribe()
  - Closed via broker.Unsubscribe()

# Event Flow

Publish Flow:
 1. Publisher calls broker.Publish(event)
 2. Missing id/timestamp filled in
 3. Event added to main event channel (non-blocking)
 4. Broadcast loop receives event
 5. Event sent to all subscriber channels
 6. Full subscriber buffers skip (no blocking)

Subscribe Flow:
 1. Subscriber calls broker.Subscribe()
 2. New buffered channel created and registered
 3. Subscriber receives events via channel in its own goroutine

# Usage

Creating and Starting Broker:

	import "github.com/cuemby/mastermind/pkg/events"

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

Subscribing to Events:

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for event := range sub {
			fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
		}
	}()

Publishing Events:

	broker.Publish(&events.Event{
		Type:    events.EventCoupleCreated,
		Message: "Couple 1:2:3 assembled",
		Metadata: map[string]string{
			"couple":    "1:2:3",
			"namespace": "default",
		},
	})

# Event Types Catalog

Couple Events:

EventCoupleCreated:
  - Published when: a couple is assembled, by the reconciler discovering
    it in group metadata or by the couple_groups handler building it
  - Metadata: couple, namespace
  - Subscribers: agent log, metrics

EventCoupleDestroyed:
  - Published when: break_couple dismantles a couple
  - Metadata: couple
  - Subscribers: agent log, metrics

EventCoupleFrozen / EventCoupleUnfrozen:
  - Published when: freeze_couple / unfreeze_couple flip the couple
    metakey
  - Metadata: couple
  - Subscribers: agent log, metrics

Group/Node Events:

EventGroupBad:
  - Published when: a reconciliation sweep moves a group into BAD
  - Metadata: group, status_text
  - Subscribers: agent log (operators watch for these), metrics

EventNodeDetached:
  - Published when: group_detach_node removes a node from its group
  - Metadata: group, node
  - Subscribers: agent log, metrics

Reconciler Events:

EventReconcileDone:
  - Published when: a load-nodes cycle finishes
  - Metadata: groups, couples (entity counts)
  - Subscribers: metrics

# Design Patterns

Non-Blocking Publish:
  - Publish sends to buffered channel
  - Returns immediately (no waiting)
  - Events may be dropped if buffer full
  - Trade-off: the reconciler's sweep cadence must never depend on
    observer speed

Fan-Out Pattern:
  - Single event broadcast to all subscribers
  - Each subscriber gets own channel
  - Independent processing rates
  - Full buffers skip to prevent blocking

Fire-and-Forget:
  - No acknowledgment from subscribers
  - No retry on delivery failure
  - Suitable for monitoring, not for state the model depends on

# Limitations

Current Limitations:
  - In-memory only (no persistence)
  - No event replay or history
  - No guaranteed delivery (best effort)
  - No topic-based filtering (all events broadcast)

Workarounds:
  - Filtering: switch on event.Type at the subscriber
  - Persistence: subscribe and append to the infrastructure store

# Best Practices

Do:
  - Always defer broker.Unsubscribe(sub)
  - Process events asynchronously in goroutine
  - Filter events by type at subscriber
  - Include relevant metadata in events

Don't:
  - Block in subscriber event loop
  - Publish events before broker.Start()
  - Rely on event delivery for topology decisions

# See Also

  - pkg/reconciler for sweep-driven events
  - pkg/balancer for operator-driven events
  - pkg/metrics for event counters
*/
package events
