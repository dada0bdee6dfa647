package relaytest

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/haldor/relay/internal/baselib/relay"
)

// Chain is the tree of events spawned from a single root event, traced via
// CorrelationID. Build one with Harness.Chain, then inspect it through
// Actors (actor-visitation queries) or Events (event-sequence queries).
type Chain[E relay.Event, T relay.Topic] struct {
	rootID     uuid.UUID
	entries    []Entry[E, T]
	chainIDs   map[uuid.UUID]struct{}
	children   map[uuid.UUID][]uuid.UUID
}

// NewChain builds a Chain tracing every descendant of rootID within entries,
// by following CorrelationID parent/child links breadth-first.
func NewChain[E relay.Event, T relay.Topic](entries []Entry[E, T], rootID uuid.UUID) *Chain[E, T] {
	correlationOf := make(map[uuid.UUID]uuid.UUID)
	hasCorrelation := make(map[uuid.UUID]bool)
	for _, e := range entries {
		if _, seen := hasCorrelation[e.ID()]; seen {
			continue
		}
		if parent, ok := e.CorrelationID(); ok {
			correlationOf[e.ID()] = parent
			hasCorrelation[e.ID()] = true
		} else {
			hasCorrelation[e.ID()] = false
		}
	}

	chainIDs := map[uuid.UUID]struct{}{rootID: {}}
	children := make(map[uuid.UUID][]uuid.UUID)

	queue := []uuid.UUID{rootID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for id, parent := range correlationOf {
			if parent != current {
				continue
			}
			if _, already := chainIDs[id]; already {
				continue
			}
			chainIDs[id] = struct{}{}
			queue = append(queue, id)
			children[current] = append(children[current], id)
		}
	}

	return &Chain[E, T]{rootID: rootID, entries: entries, chainIDs: chainIDs, children: children}
}

// rootSender returns the sender of the root event itself, so ActorFlow can
// synthesize it as the chain's first participant: the root event has no
// CorrelationID parent of its own, so it never otherwise appears as
// anyone's receiver.
func (c *Chain[E, T]) rootSender() (relay.ActorID, bool) {
	for _, e := range c.entries {
		if e.ID() == c.rootID {
			return e.Sender(), true
		}
	}
	return "", false
}

func (c *Chain[E, T]) chainEntries() []Entry[E, T] {
	out := make([]Entry[E, T], 0, len(c.chainIDs))
	for _, e := range c.entries {
		if _, ok := c.chainIDs[e.ID()]; ok {
			out = append(out, e)
		}
	}
	return out
}

// orderedEntries returns every entry in the chain in breadth-first order
// from the root, preserving multiple deliveries of the same event.
func (c *Chain[E, T]) orderedEntries() []Entry[E, T] {
	byID := make(map[uuid.UUID][]Entry[E, T])
	for _, e := range c.chainEntries() {
		byID[e.ID()] = append(byID[e.ID()], e)
	}

	var result []Entry[E, T]
	visited := map[uuid.UUID]struct{}{}
	queue := []uuid.UUID{c.rootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, ok := visited[id]; ok {
			continue
		}
		visited[id] = struct{}{}
		result = append(result, byID[id]...)
		queue = append(queue, c.children[id]...)
	}
	return result
}

// Actors returns a view for querying which actors the chain visited.
func (c *Chain[E, T]) Actors() ActorFlow[E, T] {
	return ActorFlow[E, T]{chain: c}
}

// Events returns a view for querying the sequence of events in the chain.
func (c *Chain[E, T]) Events() EventFlow[E, T] {
	return EventFlow[E, T]{chain: c}
}

// DivergesAfter reports whether the first chain event matching m has more
// than one child event, i.e. the chain fans out at that point.
func (c *Chain[E, T]) DivergesAfter(m Matcher[E, T]) bool {
	return c.BranchesAfter(m) > 1
}

// BranchesAfter returns the number of direct child events of the first
// chain event matching m.
func (c *Chain[E, T]) BranchesAfter(m Matcher[E, T]) int {
	for _, e := range c.chainEntries() {
		if m.Matches(e) {
			return len(c.children[e.ID()])
		}
	}
	return 0
}

// PathTo returns the sub-chain of every event on a path from the root to an
// event received by actor, i.e. the slice of the chain relevant to that
// actor's involvement.
func (c *Chain[E, T]) PathTo(actor relay.ActorID) *Chain[E, T] {
	targets := map[uuid.UUID]struct{}{}
	for _, e := range c.chainEntries() {
		if e.Receiver == actor {
			targets[e.ID()] = struct{}{}
		}
	}
	if len(targets) == 0 {
		return &Chain[E, T]{rootID: c.rootID, chainIDs: map[uuid.UUID]struct{}{}, children: map[uuid.UUID][]uuid.UUID{}}
	}

	parentOf := make(map[uuid.UUID]uuid.UUID)
	for parent, kids := range c.children {
		for _, kid := range kids {
			parentOf[kid] = parent
		}
	}

	pathIDs := map[uuid.UUID]struct{}{}
	toProcess := make([]uuid.UUID, 0, len(targets))
	for id := range targets {
		toProcess = append(toProcess, id)
	}
	for len(toProcess) > 0 {
		id := toProcess[len(toProcess)-1]
		toProcess = toProcess[:len(toProcess)-1]
		if _, ok := pathIDs[id]; ok {
			continue
		}
		pathIDs[id] = struct{}{}
		if parent, ok := parentOf[id]; ok {
			toProcess = append(toProcess, parent)
		}
	}

	var pathEntries []Entry[E, T]
	for _, e := range c.entries {
		if _, ok := pathIDs[e.ID()]; ok {
			pathEntries = append(pathEntries, e)
		}
	}

	pathChildren := make(map[uuid.UUID][]uuid.UUID)
	for parent, kids := range c.children {
		if _, ok := pathIDs[parent]; !ok {
			continue
		}
		for _, kid := range kids {
			if _, ok := pathIDs[kid]; ok {
				pathChildren[parent] = append(pathChildren[parent], kid)
			}
		}
	}

	return &Chain[E, T]{rootID: c.rootID, entries: pathEntries, chainIDs: pathIDs, children: pathChildren}
}

// ToMermaid renders the chain as a Mermaid sequence diagram, actors as
// participants and events as messages between them in delivery order.
func (c *Chain[E, T]) ToMermaid() string {
	var b strings.Builder
	b.WriteString("sequenceDiagram\n")

	seen := map[uuid.UUID]struct{}{}
	for _, e := range c.orderedEntries() {
		if _, ok := seen[e.ID()]; ok {
			continue
		}
		seen[e.ID()] = struct{}{}
		fmt.Fprintf(&b, "    %s->>%s: %s\n",
			sanitizeMermaidID(string(e.Sender())), sanitizeMermaidID(string(e.Receiver)), e.Payload().Name())
	}
	return b.String()
}

func sanitizeMermaidID(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

// ActorFlow answers questions about which actors an event chain visited,
// and in what order.
type ActorFlow[E relay.Event, T relay.Topic] struct {
	chain *Chain[E, T]
}

// participants returns every chain participant in BFS visitation order,
// starting with the root event's sender (synthesized via rootSender, since
// it never appears as anyone's receiver) followed by each event's receiver
// in BFS order. Only immediately-repeating entries are collapsed, so a
// participant that legitimately recurs later in the chain — a reply routed
// back to the original sender, say — still appears each time it recurs,
// rather than being erased by a global seen-set.
func (f ActorFlow[E, T]) participants() []relay.ActorID {
	var out []relay.ActorID
	if sender, ok := f.chain.rootSender(); ok {
		out = append(out, sender)
	}
	for _, e := range f.chain.orderedEntries() {
		out = append(out, e.Receiver)
	}
	return dedupConsecutive(out)
}

func dedupConsecutive(ids []relay.ActorID) []relay.ActorID {
	if len(ids) == 0 {
		return ids
	}
	out := make([]relay.ActorID, 0, len(ids))
	out = append(out, ids[0])
	for _, id := range ids[1:] {
		if id != out[len(out)-1] {
			out = append(out, id)
		}
	}
	return out
}

// All returns every actor that participated in this chain — the root
// event's sender plus every receiver — each listed once, regardless of
// order.
func (f ActorFlow[E, T]) All() []relay.ActorID {
	seen := map[relay.ActorID]struct{}{}
	var out []relay.ActorID
	for _, id := range f.participants() {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Ordered returns every chain participant in BFS visitation order,
// including the root event's sender first, preserving a participant that
// recurs later in the chain. See participants for the exact semantics.
func (f ActorFlow[E, T]) Ordered() []relay.ActorID {
	return f.participants()
}

// VisitedAll reports whether every given actor participated in this chain
// at least once, regardless of order.
func (f ActorFlow[E, T]) VisitedAll(actors []relay.ActorID) bool {
	visited := map[relay.ActorID]struct{}{}
	for _, id := range f.participants() {
		visited[id] = struct{}{}
	}
	for _, a := range actors {
		if _, ok := visited[a]; !ok {
			return false
		}
	}
	return true
}

// Through reports whether the chain visited actors in the given order,
// allowing other actors to appear between them.
func (f ActorFlow[E, T]) Through(actors []relay.ActorID) bool {
	if len(actors) == 0 {
		return true
	}
	idx := 0
	for _, participant := range f.participants() {
		if idx < len(actors) && participant == actors[idx] {
			idx++
		}
	}
	return idx == len(actors)
}

// Exactly reports whether the chain visited precisely these actors, in
// precisely this order, with no extras — including the root event's
// sender as the first entry.
func (f ActorFlow[E, T]) Exactly(actors []relay.ActorID) bool {
	ordered := f.participants()
	if len(ordered) != len(actors) {
		return false
	}
	for i, a := range actors {
		if ordered[i] != a {
			return false
		}
	}
	return true
}

// EventFlow answers questions about the sequence of events within a chain.
type EventFlow[E relay.Event, T relay.Topic] struct {
	chain *Chain[E, T]
}

func (f EventFlow[E, T]) orderedUnique() []Entry[E, T] {
	seen := map[uuid.UUID]struct{}{}
	var out []Entry[E, T]
	for _, e := range f.chain.orderedEntries() {
		if _, ok := seen[e.ID()]; ok {
			continue
		}
		seen[e.ID()] = struct{}{}
		out = append(out, e)
	}
	return out
}

// All returns every unique event in the chain, in BFS delivery order.
func (f EventFlow[E, T]) All() []Entry[E, T] {
	return f.orderedUnique()
}

// Ordered is an alias for All: the BFS delivery order of every unique event
// in the chain, named to mirror ActorFlow.Ordered.
func (f EventFlow[E, T]) Ordered() []Entry[E, T] {
	return f.orderedUnique()
}

// Contains reports whether any event in the chain matches m.
func (f EventFlow[E, T]) Contains(m Matcher[E, T]) bool {
	for _, e := range f.chain.chainEntries() {
		if m.Matches(e) {
			return true
		}
	}
	return false
}

// Through reports whether events matching the given matchers, in order,
// appear in the chain, allowing other events between them.
func (f EventFlow[E, T]) Through(matchers []Matcher[E, T]) bool {
	if len(matchers) == 0 {
		return true
	}
	idx := 0
	for _, e := range f.orderedUnique() {
		if idx >= len(matchers) {
			break
		}
		if matchers[idx].Matches(e) {
			idx++
		}
	}
	return idx == len(matchers)
}

// Sequence reports whether events matching the given matchers appear
// consecutively, with no other events between them.
func (f EventFlow[E, T]) Sequence(matchers []Matcher[E, T]) bool {
	if len(matchers) == 0 {
		return true
	}
	ordered := f.orderedUnique()

outer:
	for start := range ordered {
		if !matchers[0].Matches(ordered[start]) {
			continue
		}
		matchIdx := 1
		for _, e := range ordered[start+1:] {
			if matchIdx >= len(matchers) {
				return true
			}
			if matchers[matchIdx].Matches(e) {
				matchIdx++
			} else {
				continue outer
			}
		}
		if matchIdx == len(matchers) {
			return true
		}
	}
	return false
}
