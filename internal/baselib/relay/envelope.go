package relay

import (
	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// Envelope pairs an event payload with the Meta the broker uses for routing
// and the test harness uses for observability. Envelopes are immutable once
// constructed and shared by pointer; Go's garbage collector is the natural
// reference-counting mechanism for this, so no manual refcount wrapper is
// needed around *Envelope[E].
type Envelope[E Event] struct {
	Meta  Meta
	Event E
}

// NewEnvelope creates a new envelope tagging event with the given sender
// identity and no correlation id.
func NewEnvelope[E Event](event E, sender ActorID) *Envelope[E] {
	return &Envelope[E]{
		Meta:  NewMeta(sender, fn.None[uuid.UUID]()),
		Event: event,
	}
}

// NewEnvelopeWithCorrelation creates a new envelope with an explicit
// correlation id, linking it to some parent event for the test harness's
// chain-tracing tools.
func NewEnvelopeWithCorrelation[E Event](
	event E, sender ActorID, correlationID uuid.UUID,
) *Envelope[E] {
	return &Envelope[E]{
		Meta:  NewMeta(sender, fn.Some(correlationID)),
		Event: event,
	}
}
