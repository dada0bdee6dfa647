package relaytest

import (
	"time"

	"github.com/google/uuid"

	"github.com/haldor/relay/internal/baselib/relay"
)

// Query is a composable, fluent filter over a fixed snapshot of recorded
// entries. Each filtering method returns a new Query so that call chains
// read naturally; terminal methods (Count, Collect, First, ...) evaluate
// the accumulated filters against the snapshot.
type Query[E relay.Event, T relay.Topic] struct {
	entries []Entry[E, T]
	filters []func(Entry[E, T]) bool
}

func newQuery[E relay.Event, T relay.Topic](entries []Entry[E, T]) Query[E, T] {
	return Query[E, T]{entries: entries}
}

func (q Query[E, T]) with(filter func(Entry[E, T]) bool) Query[E, T] {
	filters := make([]func(Entry[E, T]) bool, len(q.filters), len(q.filters)+1)
	copy(filters, q.filters)
	filters = append(filters, filter)
	return Query[E, T]{entries: q.entries, filters: filters}
}

func (q Query[E, T]) apply() []Entry[E, T] {
	out := make([]Entry[E, T], 0, len(q.entries))
outer:
	for _, e := range q.entries {
		for _, f := range q.filters {
			if !f(e) {
				continue outer
			}
		}
		out = append(out, e)
	}
	return out
}

// SentBy restricts the query to events sent by actor.
func (q Query[E, T]) SentBy(actor relay.ActorID) Query[E, T] {
	return q.with(func(e Entry[E, T]) bool { return e.Sender() == actor })
}

// ReceivedBy restricts the query to events delivered to actor.
func (q Query[E, T]) ReceivedBy(actor relay.ActorID) Query[E, T] {
	return q.with(func(e Entry[E, T]) bool { return e.Receiver == actor })
}

// WithTopic restricts the query to entries dispatched under topic.
func (q Query[E, T]) WithTopic(topic T) Query[E, T] {
	return q.with(func(e Entry[E, T]) bool { return e.Topic == topic })
}

// WithID restricts the query to the single event with the given id.
func (q Query[E, T]) WithID(id uuid.UUID) Query[E, T] {
	return q.with(func(e Entry[E, T]) bool { return e.ID() == id })
}

// Matching restricts the query to entries accepted by m.
func (q Query[E, T]) Matching(m Matcher[E, T]) Query[E, T] {
	return q.with(m.Matches)
}

// MatchingPredicate restricts the query using a raw predicate over the
// entry, for one-off filters not worth naming as a Matcher.
func (q Query[E, T]) MatchingPredicate(predicate func(Entry[E, T]) bool) Query[E, T] {
	return q.with(predicate)
}

// After restricts the query to entries whose event was created strictly
// after the given timestamp.
func (q Query[E, T]) After(t time.Time) Query[E, T] {
	return q.with(func(e Entry[E, T]) bool { return e.Envelope.Meta.Timestamp().After(t) })
}

// Before restricts the query to entries whose event was created strictly
// before the given timestamp.
func (q Query[E, T]) Before(t time.Time) Query[E, T] {
	return q.with(func(e Entry[E, T]) bool { return e.Envelope.Meta.Timestamp().Before(t) })
}

// CorrelatedWith restricts the query to entries correlated to parentID,
// i.e. direct children of the event with that id.
func (q Query[E, T]) CorrelatedWith(parentID uuid.UUID) Query[E, T] {
	return q.with(func(e Entry[E, T]) bool {
		id, ok := e.CorrelationID()
		return ok && id == parentID
	})
}

// Count returns the number of entries matching every accumulated filter.
func (q Query[E, T]) Count() int {
	return len(q.apply())
}

// IsEmpty reports whether no entries match the accumulated filters.
func (q Query[E, T]) IsEmpty() bool {
	return q.Count() == 0
}

// First returns the first matching entry, in recording order.
func (q Query[E, T]) First() (Entry[E, T], bool) {
	matches := q.apply()
	if len(matches) == 0 {
		return Entry[E, T]{}, false
	}
	return matches[0], true
}

// Last returns the last matching entry, in recording order.
func (q Query[E, T]) Last() (Entry[E, T], bool) {
	matches := q.apply()
	if len(matches) == 0 {
		return Entry[E, T]{}, false
	}
	return matches[len(matches)-1], true
}

// Nth returns the index-th matching entry (0-indexed), in recording order.
func (q Query[E, T]) Nth(index int) (Entry[E, T], bool) {
	matches := q.apply()
	if index < 0 || index >= len(matches) {
		return Entry[E, T]{}, false
	}
	return matches[index], true
}

// Collect returns every matching entry, in recording order.
func (q Query[E, T]) Collect() []Entry[E, T] {
	return q.apply()
}

// All reports whether every matching entry satisfies predicate.
func (q Query[E, T]) All(predicate func(Entry[E, T]) bool) bool {
	for _, e := range q.apply() {
		if !predicate(e) {
			return false
		}
	}
	return true
}

// Any reports whether at least one matching entry satisfies predicate.
func (q Query[E, T]) Any(predicate func(Entry[E, T]) bool) bool {
	for _, e := range q.apply() {
		if predicate(e) {
			return true
		}
	}
	return false
}
