package relaytest

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/haldor/relay/internal/baselib/relay"
)

// Default quiet-window and overall bound for Settle: small enough that
// tests stay fast, long enough to absorb a goroutine-scheduling hiccup.
const (
	defaultSettleWindow = time.Millisecond
	defaultSettleMax    = 10 * time.Millisecond
)

// Harness wraps a relay.Supervisor with a recording monitor, giving tests a
// single entry point to register actors, drive events, and assert on what
// happened: which actors saw which events, in what order, and whether a
// chain of correlated events branched the way the test expects.
type Harness[E relay.Event, T relay.Topic] struct {
	supervisor *relay.Supervisor[E, T]
	recorder   *recorder[E, T]
}

// New builds a Harness around a fresh supervisor configured with config and
// topicFunc. The harness's recording monitor is registered before the
// caller adds any actors, so it observes every event from the start.
func New[E relay.Event, T relay.Topic](config relay.Config, topicFunc relay.TopicFunc[E, T]) *Harness[E, T] {
	supervisor := relay.NewSupervisor(config, topicFunc)
	rec := newRecorder[E, T]()
	supervisor.Monitors().Add(context.Background(), rec)

	return &Harness[E, T]{supervisor: supervisor, recorder: rec}
}

// Supervisor returns the underlying supervisor, for registering actors via
// its fluent BuildActor chain or reading its Introspection table.
func (h *Harness[E, T]) Supervisor() *relay.Supervisor[E, T] {
	return h.supervisor
}

// AddActor registers an actor, subscribed to topics. Shorthand for
// Supervisor().AddActor.
func (h *Harness[E, T]) AddActor(
	name string, factory func(relay.Context[E]) relay.Actor[E], topics ...T,
) error {
	return h.supervisor.AddActor(name, factory, topics...)
}

// Start launches the supervisor's broker. Registered actors are already
// running from the moment they were added (see relay.Supervisor.Start).
func (h *Harness[E, T]) Start() {
	h.supervisor.Start()
}

// Stop performs a graceful shutdown of the supervisor, returning the first
// error any actor controller reported.
func (h *Harness[E, T]) Stop() error {
	return h.supervisor.Stop()
}

// Settle blocks until the event flow has gone quiet or the default overall
// bound elapses, whichever comes first; events still in flight at that
// bound are not waited for. It is equivalent to SettleWithin using this
// package's default quiet window and overall bound.
func (h *Harness[E, T]) Settle(ctx context.Context) {
	h.SettleWithin(ctx, defaultSettleWindow, defaultSettleMax)
}

// SettleWithin blocks until the event flow has gone quiet: first it flushes
// the monitor dispatcher with the given settleWindow (see
// MonitorRegistry.Flush), then it polls the recorder's entry count,
// returning as soon as a full settleWindow passes with no new entries.
// Either phase can run up to max in total; Settle never waits longer than
// that even under sustained event flow.
func (h *Harness[E, T]) SettleWithin(ctx context.Context, settleWindow, max time.Duration) {
	deadline := time.Now().Add(max)

	flushCtx, cancel := context.WithDeadline(ctx, deadline)
	h.supervisor.Monitors().Flush(flushCtx, settleWindow)
	cancel()

	last := h.recorder.count()
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(settleWindow):
		}

		cur := h.recorder.count()
		if cur == last {
			return
		}
		last = cur
	}
}

// SendAs injects event into the broker as if sent by actorName, waits for
// it to settle, and returns a spy over its recorded delivery.
func (h *Harness[E, T]) SendAs(ctx context.Context, actorName string, event E) (EventSpy[E, T], error) {
	id, err := h.supervisor.SendAs(ctx, relay.ActorID(actorName), event)
	if err != nil {
		return EventSpy[E, T]{}, err
	}
	h.Settle(ctx)

	return h.Event(id), nil
}

// Event returns a spy over the recorded deliveries of the event with id.
func (h *Harness[E, T]) Event(id uuid.UUID) EventSpy[E, T] {
	return newEventSpy(h.recorder.snapshot(), id)
}

// Topic returns a spy over the recorded deliveries on topic.
func (h *Harness[E, T]) Topic(topic T) TopicSpy[E, T] {
	return newTopicSpy(h.recorder.snapshot(), topic)
}

// Actor returns a spy over the recorded sends and receives of actorName.
func (h *Harness[E, T]) Actor(actorName string) ActorSpy[E, T] {
	return newActorSpy(h.recorder.snapshot(), relay.ActorID(actorName))
}

// Chain builds a Chain tracing every event correlated to rootID.
func (h *Harness[E, T]) Chain(rootID uuid.UUID) *Chain[E, T] {
	return NewChain(h.recorder.snapshot(), rootID)
}

// Events returns a query over every event recorded so far.
func (h *Harness[E, T]) Events() Query[E, T] {
	return newQuery(h.recorder.snapshot())
}
