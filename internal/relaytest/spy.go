package relaytest

import (
	"github.com/google/uuid"

	"github.com/haldor/relay/internal/baselib/relay"
)

// EventSpy inspects the delivery and effects of one specific event,
// identified by its id.
type EventSpy[E relay.Event, T relay.Topic] struct {
	id      uuid.UUID
	entries []Entry[E, T]
	query   Query[E, T]
}

func newEventSpy[E relay.Event, T relay.Topic](entries []Entry[E, T], id uuid.UUID) EventSpy[E, T] {
	return EventSpy[E, T]{id: id, entries: entries, query: newQuery(entries).WithID(id)}
}

// WasDelivered reports whether the event reached at least one subscriber.
func (s EventSpy[E, T]) WasDelivered() bool {
	return !s.query.IsEmpty()
}

// WasDeliveredTo reports whether the event was delivered to actor.
func (s EventSpy[E, T]) WasDeliveredTo(actor relay.ActorID) bool {
	return s.query.ReceivedBy(actor).Count() > 0
}

// Sender returns the actor that emitted this event. Panics if the event was
// never recorded, mirroring a test precondition failure rather than a
// recoverable runtime error.
func (s EventSpy[E, T]) Sender() relay.ActorID {
	entry, ok := s.query.First()
	if !ok {
		panic("relaytest: EventSpy has no delivery record for this event")
	}
	return entry.Sender()
}

// ReceiversCount returns the number of distinct actors that received this
// event.
func (s EventSpy[E, T]) ReceiversCount() int {
	return len(s.Receivers())
}

// Receivers returns the distinct actors that received this event.
func (s EventSpy[E, T]) Receivers() []relay.ActorID {
	seen := map[relay.ActorID]struct{}{}
	var out []relay.ActorID
	for _, e := range s.query.Collect() {
		if _, ok := seen[e.Receiver]; !ok {
			seen[e.Receiver] = struct{}{}
			out = append(out, e.Receiver)
		}
	}
	return out
}

// Children returns a query over events correlated to this one, i.e. events
// emitted in response to it.
func (s EventSpy[E, T]) Children() Query[E, T] {
	return newQuery(s.entries).CorrelatedWith(s.id)
}

// TopicSpy inspects which events were published under, and which actors
// received events on, a specific topic.
type TopicSpy[E relay.Event, T relay.Topic] struct {
	query Query[E, T]
}

func newTopicSpy[E relay.Event, T relay.Topic](entries []Entry[E, T], topic T) TopicSpy[E, T] {
	return TopicSpy[E, T]{query: newQuery(entries).WithTopic(topic)}
}

// WasPublished reports whether any event was dispatched under this topic.
func (s TopicSpy[E, T]) WasPublished() bool {
	return !s.query.IsEmpty()
}

// EventCount returns the number of deliveries on this topic. A single event
// fanned out to three subscribers counts as three.
func (s TopicSpy[E, T]) EventCount() int {
	return s.query.Count()
}

// Receivers returns the distinct actors that received events on this topic.
func (s TopicSpy[E, T]) Receivers() []relay.ActorID {
	seen := map[relay.ActorID]struct{}{}
	var out []relay.ActorID
	for _, e := range s.query.Collect() {
		if _, ok := seen[e.Receiver]; !ok {
			seen[e.Receiver] = struct{}{}
			out = append(out, e.Receiver)
		}
	}
	return out
}

// ReceiversCount returns the number of distinct actors that received events
// on this topic.
func (s TopicSpy[E, T]) ReceiversCount() int {
	return len(s.Receivers())
}

// Events returns a query over this topic's entries, for further filtering.
func (s TopicSpy[E, T]) Events() Query[E, T] {
	return s.query
}

// ActorSpy inspects one actor's participation: what it sent and received.
type ActorSpy[E relay.Event, T relay.Topic] struct {
	actor     relay.ActorID
	receivers Query[E, T]
	senders   Query[E, T]
}

func newActorSpy[E relay.Event, T relay.Topic](entries []Entry[E, T], actor relay.ActorID) ActorSpy[E, T] {
	return ActorSpy[E, T]{
		actor:     actor,
		receivers: newQuery(entries).ReceivedBy(actor),
		senders:   newQuery(entries).SentBy(actor),
	}
}

// ReceivedEventsCount returns the number of events delivered to this actor.
func (s ActorSpy[E, T]) ReceivedEventsCount() int {
	return s.receivers.Count()
}

// SentEventsCount returns the number of distinct events sent by this actor,
// counting a fanned-out event once regardless of how many subscribers
// received it.
func (s ActorSpy[E, T]) SentEventsCount() int {
	return len(distinctIDs(s.senders.Collect()))
}

// Senders returns the distinct actors whose events this actor received.
func (s ActorSpy[E, T]) Senders() []relay.ActorID {
	seen := map[relay.ActorID]struct{}{}
	var out []relay.ActorID
	for _, e := range s.receivers.Collect() {
		if _, ok := seen[e.Sender()]; !ok {
			seen[e.Sender()] = struct{}{}
			out = append(out, e.Sender())
		}
	}
	return out
}

// Receivers returns the distinct actors that received events sent by this
// actor.
func (s ActorSpy[E, T]) Receivers() []relay.ActorID {
	seen := map[relay.ActorID]struct{}{}
	var out []relay.ActorID
	for _, e := range s.senders.Collect() {
		if _, ok := seen[e.Receiver]; !ok {
			seen[e.Receiver] = struct{}{}
			out = append(out, e.Receiver)
		}
	}
	return out
}

func distinctIDs[E relay.Event, T relay.Topic](entries []Entry[E, T]) map[uuid.UUID]struct{} {
	ids := make(map[uuid.UUID]struct{}, len(entries))
	for _, e := range entries {
		ids[e.ID()] = struct{}{}
	}
	return ids
}
