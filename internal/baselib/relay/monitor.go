package relay

// Monitor observes the event flow without participating in it. Every
// method has a no-op default via BaseMonitor, so implementations only
// override the hooks they care about — the Go analogue of the source
// runtime's default trait methods.
type Monitor[E Event, T Topic] interface {
	// OnEventDispatched fires once per subscriber the broker routed
	// envelope to, before delivery.
	OnEventDispatched(envelope *Envelope[E], topic T, receiver ActorID)

	// OnEventDelivered fires when a subscriber's controller actually
	// pulls envelope off its mailbox.
	OnEventDelivered(envelope *Envelope[E], receiver ActorID)

	// OnEventHandled fires after HandleEnvelope returns for envelope.
	OnEventHandled(envelope *Envelope[E], receiver ActorID)

	// OnOverflow fires when a subscriber's mailbox was full and the
	// topic's OverflowPolicy had to be applied.
	OnOverflow(envelope *Envelope[E], topic T, receiver ActorID, policy OverflowPolicy)

	// OnError fires when an actor's HandleEnvelope or Step returned an
	// error that propagated past OnError.
	OnError(err error, actorID ActorID)

	// OnStepEnter fires immediately before an actor's Step is invoked.
	OnStepEnter(actorID ActorID)

	// OnStepExit fires immediately after an actor's Step returns.
	OnStepExit(action StepAction, actorID ActorID)

	// OnActorStop fires once, when an actor's controller loop exits.
	OnActorStop(actorID ActorID)
}

// BaseMonitor supplies no-op implementations of every Monitor hook, so
// embedding types only need to override the ones they use.
type BaseMonitor[E Event, T Topic] struct{}

func (BaseMonitor[E, T]) OnEventDispatched(*Envelope[E], T, ActorID)       {}
func (BaseMonitor[E, T]) OnEventDelivered(*Envelope[E], ActorID)          {}
func (BaseMonitor[E, T]) OnEventHandled(*Envelope[E], ActorID)            {}
func (BaseMonitor[E, T]) OnOverflow(*Envelope[E], T, ActorID, OverflowPolicy) {}
func (BaseMonitor[E, T]) OnError(error, ActorID)                          {}
func (BaseMonitor[E, T]) OnStepEnter(ActorID)                             {}
func (BaseMonitor[E, T]) OnStepExit(StepAction, ActorID)                  {}
func (BaseMonitor[E, T]) OnActorStop(ActorID)                             {}
