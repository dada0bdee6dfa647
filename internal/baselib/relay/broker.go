package relay

import (
	"context"
	"sync"
	"time"
)

// Broker owns the routing table of subscribers and the single shared
// inbound channel every registered actor's Context sends events into. It
// derives a topic for each event and fans it out to every subscriber whose
// Subscription matches, applying each topic's OverflowPolicy when a
// subscriber's mailbox is full.
//
// Unlike the source runtime, which gives the broker one Receiver per
// registered actor and fans them in with a polling recv helper, this
// implementation collapses that into a single multi-producer Go channel:
// every Context.Send call writes directly onto one chan, which Go's runtime
// already serializes safely across goroutines, so there is nothing left for
// a per-actor receiver map to buy.
type Broker[E Event, T Topic] struct {
	inbound   <-chan *Envelope[E]
	topicFunc TopicFunc[E, T]
	config    Config

	subscribers []*subscriber[E, T]

	monitoring *monitoringSink[E, T]
}

func newBroker[E Event, T Topic](
	inbound <-chan *Envelope[E],
	topicFunc TopicFunc[E, T],
	config Config,
	monitoring *monitoringSink[E, T],
) *Broker[E, T] {
	return &Broker[E, T]{
		inbound:    inbound,
		topicFunc:  topicFunc,
		config:     config,
		monitoring: monitoring,
	}
}

// addSubscriber registers sub with the broker. Must only be called before
// Run begins, or while holding whatever external lock the caller uses to
// serialize registration against startup (see Supervisor.registerActor).
func (b *Broker[E, T]) addSubscriber(sub *subscriber[E, T]) error {
	for _, existing := range b.subscribers {
		if existing.actorID == sub.actorID {
			return &SubscriberExistsError{ActorID: sub.actorID}
		}
	}
	b.subscribers = append(b.subscribers, sub)
	return nil
}

// Run drives the broker's routing loop until ctx is cancelled, at which
// point it attempts a best-effort drain of any events still queued before
// returning.
func (b *Broker[E, T]) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.config.MaintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Route what was already queued when cancellation arrived.
			for n := len(b.inbound); n > 0; n-- {
				b.dispatchOne(ctx, <-b.inbound)
			}
			b.shutdown()
			return nil

		case <-ticker.C:
			b.cleanup()

		case env := <-b.inbound:
			b.dispatchOne(ctx, env)
			b.drainBurst(ctx)
		}
	}
}

// drainBurst opportunistically routes any further events already queued on
// the inbound channel without blocking, so a burst of sends gets processed
// in one loop iteration instead of one tick at a time.
func (b *Broker[E, T]) drainBurst(ctx context.Context) {
	for {
		select {
		case env := <-b.inbound:
			b.dispatchOne(ctx, env)
		default:
			return
		}
	}
}

// dispatchOne routes a single envelope to every matching, open subscriber
// other than the sender, applying each topic's overflow policy when a
// mailbox is full. Subscribers closed by OverflowPolicyFail during this
// pass are removed only after the full subscriber list has been walked, so
// a slow early subscriber never causes a later one to be skipped.
func (b *Broker[E, T]) dispatchOne(ctx context.Context, env *Envelope[E]) {
	topic := b.topicFunc(env.Event)
	policy := topic.OverflowPolicy()

	recording := b.monitoring != nil && b.monitoring.isActive()

	var toClose []ActorID
	var blocked []*subscriber[E, T]

	for _, sub := range b.subscribers {
		if !sub.subscription.Contains(topic) {
			continue
		}
		if sub.isClosed() {
			continue
		}
		if sub.actorID == env.Meta.SenderActorID() {
			continue
		}

		if sub.mailbox.trySend(env) {
			if recording {
				b.monitoring.eventDispatched(env, topic, sub.actorID)
			}
			continue
		}

		if sub.isClosed() {
			log.WarnS(ctx, "Subscriber mailbox closed, will be removed in cleanup",
				"actor_id", sub.actorID)
			continue
		}

		if recording {
			b.monitoring.overflow(env, topic, sub.actorID, policy)
		}

		switch {
		case policy.IsFail():
			log.ErrorS(ctx, "Closing subscriber mailbox due to OverflowPolicy Fail",
				"actor_id", sub.actorID, "event", env.Event.Name())
			toClose = append(toClose, sub.actorID)

		case policy.IsDrop():
			continue

		case policy.IsBlock():
			blocked = append(blocked, sub)
		}
	}

	if len(blocked) > 0 {
		b.sendBlocked(ctx, env, topic, blocked, recording)
	}

	if len(toClose) > 0 {
		b.closeSubscribers(toClose)
	}
}

// sendBlocked awaits every deferred OverflowPolicyBlock send concurrently,
// joining on a WaitGroup so one slow blocked subscriber cannot delay
// delivery to another, mirroring the source runtime's join_all over the
// deferred sends. Each send that completes successfully is reported to
// monitoring as a dispatch, since it was merely deferred, not dropped.
func (b *Broker[E, T]) sendBlocked(
	ctx context.Context, env *Envelope[E], topic T,
	blocked []*subscriber[E, T], recording bool,
) {
	var wg sync.WaitGroup
	wg.Add(len(blocked))
	for _, sub := range blocked {
		go func(sub *subscriber[E, T]) {
			defer wg.Done()
			if sub.mailbox.send(ctx, env) && recording {
				b.monitoring.eventDispatched(env, topic, sub.actorID)
			}
		}(sub)
	}
	wg.Wait()
}

func (b *Broker[E, T]) closeSubscribers(ids []ActorID) {
	shouldClose := make(map[ActorID]struct{}, len(ids))
	for _, id := range ids {
		shouldClose[id] = struct{}{}
	}

	kept := b.subscribers[:0]
	for _, sub := range b.subscribers {
		if _, closeIt := shouldClose[sub.actorID]; closeIt {
			sub.mailbox.close()
			continue
		}
		kept = append(kept, sub)
	}
	b.subscribers = kept
}

// cleanup removes subscribers whose mailboxes have already closed, e.g.
// because the owning actor stopped on its own.
func (b *Broker[E, T]) cleanup() {
	kept := b.subscribers[:0]
	for _, sub := range b.subscribers {
		if sub.isClosed() {
			continue
		}
		kept = append(kept, sub)
	}
	b.subscribers = kept
}

// shutdown waits, up to config.SleepOnShutdown, for subscriber mailboxes to
// drain before the broker's Run returns.
func (b *Broker[E, T]) shutdown() {
	deadline := time.Now().Add(b.config.SleepOnShutdown)
	for time.Now().Before(deadline) {
		if b.isEmpty() {
			return
		}
		time.Sleep(100 * time.Microsecond)
	}
}

// isEmpty reports whether every subscriber's mailbox is closed or empty.
func (b *Broker[E, T]) isEmpty() bool {
	for _, sub := range b.subscribers {
		if !sub.mailbox.isEmpty() {
			return false
		}
	}
	return true
}
