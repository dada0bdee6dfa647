package relaytest

import "github.com/haldor/relay/internal/baselib/relay"

// Matcher selects Entry records for Query filters and chain queries.
// Construct one with ByName, Matching or MatchingEvent, or use Name, which
// is shorthand for ByName.
type Matcher[E relay.Event, T relay.Topic] struct {
	predicate func(Entry[E, T]) bool
}

// ByName matches entries whose event reports the given Name().
func ByName[E relay.Event, T relay.Topic](name string) Matcher[E, T] {
	return Matcher[E, T]{predicate: func(e Entry[E, T]) bool {
		return e.Payload().Name() == name
	}}
}

// Matching builds a matcher from an arbitrary predicate over the entry.
func Matching[E relay.Event, T relay.Topic](predicate func(Entry[E, T]) bool) Matcher[E, T] {
	return Matcher[E, T]{predicate: predicate}
}

// MatchingEvent builds a matcher from a predicate over the event payload
// alone, for callers that don't care about sender/receiver/topic.
func MatchingEvent[E relay.Event, T relay.Topic](predicate func(E) bool) Matcher[E, T] {
	return Matcher[E, T]{predicate: func(e Entry[E, T]) bool {
		return predicate(e.Payload())
	}}
}

// Matches reports whether entry satisfies this matcher.
func (m Matcher[E, T]) Matches(entry Entry[E, T]) bool {
	return m.predicate(entry)
}

// Name is a convenience constructor equivalent to ByName, used where call
// sites read more naturally passing a bare label string.
func Name[E relay.Event, T relay.Topic](name string) Matcher[E, T] {
	return ByName[E, T](name)
}
