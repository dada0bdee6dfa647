package relaytest

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/haldor/relay/internal/baselib/relay"
)

// recorder is a relay.Monitor that appends every dispatched event to an
// in-memory, mutex-protected log. It is the harness's single source of
// truth: every query, spy and chain view in this package reads a copy
// taken with the recorder's snapshot method.
type recorder[E relay.Event, T relay.Topic] struct {
	mu      sync.Mutex
	entries []Entry[E, T]
}

func newRecorder[E relay.Event, T relay.Topic]() *recorder[E, T] {
	return &recorder[E, T]{}
}

// OnEventDispatched records one delivery. It is the only hook this recorder
// cares about: dispatch already reflects the broker's routing decision,
// which is what chain and flow queries reason about.
func (r *recorder[E, T]) OnEventDispatched(env *relay.Envelope[E], topic T, receiver relay.ActorID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry[E, T]{Envelope: env, Topic: topic, Receiver: receiver})
}

func (r *recorder[E, T]) OnEventDelivered(env *relay.Envelope[E], receiver relay.ActorID)   {}
func (r *recorder[E, T]) OnEventHandled(env *relay.Envelope[E], receiver relay.ActorID)     {}
func (r *recorder[E, T]) OnOverflow(env *relay.Envelope[E], topic T, receiver relay.ActorID, policy relay.OverflowPolicy) {
}
func (r *recorder[E, T]) OnError(err error, actorID relay.ActorID)                {}
func (r *recorder[E, T]) OnStepEnter(actorID relay.ActorID)                       {}
func (r *recorder[E, T]) OnStepExit(action relay.StepAction, actorID relay.ActorID) {}
func (r *recorder[E, T]) OnActorStop(actorID relay.ActorID)                        {}

// snapshot returns a stable copy of every entry recorded so far.
func (r *recorder[E, T]) snapshot() []Entry[E, T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry[E, T], len(r.entries))
	copy(out, r.entries)
	return out
}

// count returns the number of entries recorded so far, without the copy a
// full snapshot pays for. Settle polls this to detect quiescence.
func (r *recorder[E, T]) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// jsonEntry is the on-disk shape written by WriteJSONL, flattening the
// envelope's metadata alongside the receiver the way the source runtime's
// file recorder flattens Envelope's serde fields.
type jsonEntry struct {
	ID          string `json:"id"`
	Sender      string `json:"sender"`
	Receiver    string `json:"receiver"`
	Topic       string `json:"topic"`
	Event       string `json:"event"`
	Correlation string `json:"correlation_id,omitempty"`
}

// WriteJSONL dumps every recorded entry as newline-delimited JSON to path,
// one object per delivery, for offline inspection of a failed test run.
func WriteJSONL[E relay.Event, T relay.Topic](entries []Entry[E, T], path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, e := range entries {
		rec := jsonEntry{
			ID:       e.ID().String(),
			Sender:   string(e.Sender()),
			Receiver: string(e.Receiver),
			Topic:    anyToString(e.Topic),
			Event:    e.Payload().Name(),
		}
		if corr, ok := e.CorrelationID(); ok {
			rec.Correlation = corr.String()
		}
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}

func anyToString(v any) string {
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	return ""
}
