package relay

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
)

// Context is the runtime-provided handle an actor uses to interact with the
// system: emitting events into the broker, checking or requesting its own
// liveness, and yielding a never-completing channel for purely reactive
// actors.
type Context[E Event] struct {
	actorID ActorID
	inbound chan<- *Envelope[E]
	alive   *atomic.Bool
}

func newContext[E Event](actorID ActorID, inbound chan<- *Envelope[E]) Context[E] {
	alive := &atomic.Bool{}
	alive.Store(true)
	return Context[E]{
		actorID: actorID,
		inbound: inbound,
		alive:   alive,
	}
}

// ActorID returns this actor's registered identity.
func (c Context[E]) ActorID() ActorID {
	return c.actorID
}

// Send emits event into the broker, tagged with this actor's identity and
// no correlation id. It blocks until the broker's inbound channel accepts
// it or ctx is cancelled, applying backpressure rather than silently
// dropping the event.
func (c Context[E]) Send(ctx context.Context, event E) error {
	return c.sendEnvelope(ctx, NewEnvelope(event, c.actorID))
}

// SendWithCorrelation emits event with an explicit correlation id.
func (c Context[E]) SendWithCorrelation(
	ctx context.Context, event E, correlationID uuid.UUID,
) error {
	return c.sendEnvelope(ctx, NewEnvelopeWithCorrelation(event, c.actorID, correlationID))
}

// SendChildEvent emits event correlated to parent's id, the common case of
// an actor reacting to one event by producing another.
func (c Context[E]) SendChildEvent(
	ctx context.Context, event E, parent Meta,
) error {
	return c.sendEnvelope(ctx, NewEnvelopeWithCorrelation(event, c.actorID, parent.ID()))
}

func (c Context[E]) sendEnvelope(ctx context.Context, env *Envelope[E]) error {
	select {
	case c.inbound <- env:
		log.TraceS(ctx, "Context send succeeded",
			"actor_id", c.actorID, "event", env.Event.Name())
		return nil
	case <-ctx.Done():
		log.TraceS(ctx, "Context send cancelled",
			"actor_id", c.actorID, "event", env.Event.Name())
		return ctx.Err()
	}
}

// Stop requests this actor to stop; the controller observes it on its next
// loop iteration.
func (c Context[E]) Stop() {
	c.alive.Store(false)
}

// IsAlive reports whether the controller should keep running this actor.
func (c Context[E]) IsAlive() bool {
	return c.alive.Load()
}

// Pending returns a channel that never becomes ready, letting a purely
// event-driven actor's Step block forever without busy-looping. A nil
// channel blocks forever in a select, which is the idiomatic Go substitute
// for a never-completing future.
func (c Context[E]) Pending() <-chan struct{} {
	return nil
}
