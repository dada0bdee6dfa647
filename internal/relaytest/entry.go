// Package relaytest provides an in-process harness for driving and
// inspecting a relay.Supervisor from tests: a Monitor that records every
// dispatched event, a fluent query builder over those records, and spy and
// chain views that answer "did X reach Y, in what order" questions without
// a single sleep-and-hope.
package relaytest

import (
	"github.com/google/uuid"

	"github.com/haldor/relay/internal/baselib/relay"
)

// Entry is one recorded delivery: a single event dispatched from its
// envelope to one specific receiving actor. An event fanned out to three
// subscribers produces three entries sharing the same envelope.
type Entry[E relay.Event, T relay.Topic] struct {
	Envelope *relay.Envelope[E]
	Topic    T
	Receiver relay.ActorID
}

// ID returns the envelope's event identifier.
func (e Entry[E, T]) ID() uuid.UUID {
	return e.Envelope.Meta.ID()
}

// Sender returns the actor that sent the underlying event.
func (e Entry[E, T]) Sender() relay.ActorID {
	return e.Envelope.Meta.SenderActorID()
}

// Payload returns the recorded event value.
func (e Entry[E, T]) Payload() E {
	return e.Envelope.Event
}

// CorrelationID returns the parent event id this entry's event was sent in
// response to, if any.
func (e Entry[E, T]) CorrelationID() (uuid.UUID, bool) {
	opt := e.Envelope.Meta.CorrelationID()
	return opt.UnwrapOr(uuid.Nil), opt.IsSome()
}
