// Package relay implements an in-process, event-driven actor runtime with
// topic-based publish/subscribe routing.
//
// Actors never address one another directly. Instead, each actor emits
// events through its Context, which forwards them to a central Broker. The
// broker derives a routing topic for every event and fans it out to the
// mailboxes of actors subscribed to that topic, applying a per-topic
// overflow policy when a mailbox is full. A Supervisor owns the broker and
// the actor goroutines, coordinating startup and a three-phase graceful
// shutdown. A monitoring substation observes dispatch, delivery and error
// events without being on the hot path when no monitor is registered.
package relay
