package relay

// ActorBuilder is a fluent registration chain for adding an actor to a
// Supervisor. Obtain one via Supervisor.BuildActor.
type ActorBuilder[E Event, T Topic] struct {
	supervisor   *Supervisor[E, T]
	name         string
	factory      func(Context[E]) Actor[E]
	subscription Subscription[T]
}

func newActorBuilder[E Event, T Topic](supervisor *Supervisor[E, T], name string) *ActorBuilder[E, T] {
	return &ActorBuilder[E, T]{
		supervisor:   supervisor,
		name:         name,
		subscription: SubscribeNone[T](),
	}
}

// Actor sets the factory used to construct the actor's behavior. The
// factory receives the Context this actor will use to emit events.
func (b *ActorBuilder[E, T]) Actor(factory func(Context[E]) Actor[E]) *ActorBuilder[E, T] {
	b.factory = factory
	return b
}

// Topics subscribes the actor to exactly the given topics, replacing any
// prior subscription set on this builder.
func (b *ActorBuilder[E, T]) Topics(topics ...T) *ActorBuilder[E, T] {
	b.subscription = SubscribeTopics(topics...)
	return b
}

// AllTopics subscribes the actor to every topic, e.g. for a monitoring or
// logging actor that observes the full event stream.
func (b *ActorBuilder[E, T]) AllTopics() *ActorBuilder[E, T] {
	b.subscription = SubscribeAll[T]()
	return b
}

// Build constructs the actor via the configured factory and registers it
// with the supervisor. It returns ErrActorBuilder if no factory was
// configured, ErrSubscriberExists if the name is already registered, or
// ErrBrokerAlreadyStarted if the supervisor has already been started.
func (b *ActorBuilder[E, T]) Build() error {
	if b.factory == nil {
		return ErrActorBuilder
	}

	ctx := newContext[E](ActorID(b.name), b.supervisor.inbound)
	actor := b.factory(ctx)

	return b.supervisor.registerActor(b.name, ctx, actor, b.subscription)
}
