package relay

// subscriber is the broker's routing record for one registered actor: its
// identity, which topics it wants to receive, and the mailbox the broker
// delivers matching events into.
type subscriber[E Event, T Topic] struct {
	actorID      ActorID
	subscription Subscription[T]
	mailbox      *subscriberMailbox[E]
}

func newSubscriber[E Event, T Topic](
	actorID ActorID, subscription Subscription[T], capacity int,
) *subscriber[E, T] {
	return &subscriber[E, T]{
		actorID:      actorID,
		subscription: subscription,
		mailbox:      newSubscriberMailbox[E](capacity),
	}
}

func (s *subscriber[E, T]) isClosed() bool {
	return s.mailbox.isClosed()
}
