package relay

import (
	"time"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// Meta carries the metadata attached to every event envelope: a unique id,
// creation time, the emitting actor's identity, and an optional correlation
// id linking related events together.
//
// There is no logic in this runtime built around CorrelationID; it is up to
// the caller to set and interpret it. An actor may, for instance, set the
// correlation id of every event it emits in response to some other event,
// but the runtime itself assigns it no special meaning beyond what the test
// harness's chain-tracing tools use it for.
type Meta struct {
	id            uuid.UUID
	timestamp     time.Time
	senderActorID ActorID
	correlationID fn.Option[uuid.UUID]
}

// NewMeta constructs metadata for an event emitted by senderActorID, with an
// optional correlation id.
func NewMeta(senderActorID ActorID, correlationID fn.Option[uuid.UUID]) Meta {
	return Meta{
		id:            uuid.New(),
		timestamp:     time.Now(),
		senderActorID: senderActorID,
		correlationID: correlationID,
	}
}

// ID returns the unique identifier of the envelope this Meta belongs to.
func (m Meta) ID() uuid.UUID {
	return m.id
}

// Timestamp returns the creation time of the envelope.
func (m Meta) Timestamp() time.Time {
	return m.timestamp
}

// SenderActorID returns the identity of the actor that emitted the event.
func (m Meta) SenderActorID() ActorID {
	return m.senderActorID
}

// CorrelationID returns the optional correlation id, typically a parent
// event's id, though its meaning is entirely caller-defined.
func (m Meta) CorrelationID() fn.Option[uuid.UUID] {
	return m.correlationID
}
