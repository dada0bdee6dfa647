package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Supervisor coordinates the broker and every registered actor's
// controller goroutine, and owns the top-level runtime lifecycle:
//
//   - Register actors with BuildActor or AddActor before calling Start.
//   - Start spawns the broker loop and returns immediately.
//   - Join blocks until every actor goroutine has exited.
//   - Run combines Start and Join.
//   - Stop performs a graceful, three-phase shutdown.
//   - Send emits an event into the broker from outside any actor.
type Supervisor[E Event, T Topic] struct {
	config    Config
	topicFunc TopicFunc[E, T]

	inbound chan *Envelope[E]
	broker  *Broker[E, T]

	// brokerMu is held for the entire duration of the broker's Run call.
	// Registering an actor takes it with TryLock for the short window of
	// adding a subscriber, so registration after Start reliably reports
	// ErrBrokerAlreadyStarted instead of racing the broker's routing
	// loop.
	brokerMu sync.Mutex

	monitorRegistry *MonitorRegistry[E, T]
	introspection   *Introspection[E, T]

	wg         sync.WaitGroup
	cancel     chan struct{}
	cancelOnce sync.Once

	// firstErr and firstErrOnce capture the first non-nil error returned
	// by any actor controller, so Join/Stop can propagate it instead of
	// only logging it.
	firstErr     error
	firstErrOnce sync.Once

	// firstDone closes the instant any single controller goroutine
	// completes, or Stop is called directly — whichever happens first.
	// Join waits on it so it reacts to the first controller finishing
	// rather than blocking until every actor has exited on its own.
	firstDone     chan struct{}
	firstDoneOnce sync.Once

	brokerCancel context.CancelFunc
	brokerCtx    context.Context

	started bool
	mu      sync.Mutex // guards started and brokerCtx/brokerCancel assignment
}

// NewSupervisor creates a supervisor wired with the given config and topic
// derivation function.
func NewSupervisor[E Event, T Topic](config Config, topicFunc TopicFunc[E, T]) *Supervisor[E, T] {
	inbound := make(chan *Envelope[E], config.ChannelSize)

	registry := newMonitorRegistry[E, T](config)
	introspection := newIntrospection[E, T]()

	brokerCtx, brokerCancel := context.WithCancel(context.Background())

	s := &Supervisor[E, T]{
		config:          config,
		topicFunc:       topicFunc,
		inbound:         inbound,
		monitorRegistry: registry,
		introspection:   introspection,
		cancel:          make(chan struct{}),
		firstDone:       make(chan struct{}),
		brokerCtx:       brokerCtx,
		brokerCancel:    brokerCancel,
	}
	s.broker = newBroker(inbound, topicFunc, config, registry.sink())

	// Introspection tracks actor lifecycle by observing the event flow like
	// any other Monitor, rather than having the supervisor push status
	// changes into it directly: it's always registered so the status/
	// counter fields on ActorInfo are meaningful from the first actor
	// registration on.
	registry.Add(context.Background(), introspection)

	return s
}

func (s *Supervisor[E, T]) closeFirstDone() {
	s.firstDoneOnce.Do(func() {
		close(s.firstDone)
	})
}

// Config returns the runtime configuration this supervisor was built with.
func (s *Supervisor[E, T]) Config() Config {
	return s.config
}

// Monitors returns the monitor registry, used to add or remove observers of
// the event flow.
func (s *Supervisor[E, T]) Monitors() *MonitorRegistry[E, T] {
	return s.monitorRegistry
}

// Introspection returns the live actor/mailbox state table.
func (s *Supervisor[E, T]) Introspection() *Introspection[E, T] {
	return s.introspection
}

// BuildActor starts a fluent registration chain for name.
func (s *Supervisor[E, T]) BuildActor(name string) *ActorBuilder[E, T] {
	return newActorBuilder(s, name)
}

// AddActor registers an actor built by factory, subscribed to topics. It is
// shorthand for BuildActor(name).Actor(factory).Topics(topics...).Build().
func (s *Supervisor[E, T]) AddActor(
	name string, factory func(Context[E]) Actor[E], topics ...T,
) error {
	return s.BuildActor(name).Actor(factory).Topics(topics...).Build()
}

func (s *Supervisor[E, T]) registerActor(
	name string, ctx Context[E], actor Actor[E], subscription Subscription[T],
) error {
	if !s.brokerMu.TryLock() {
		return ErrBrokerAlreadyStarted
	}
	defer s.brokerMu.Unlock()

	actorID := ActorID(name)
	sub := newSubscriber[E, T](actorID, subscription, s.config.ChannelSize)
	if err := s.broker.addSubscriber(sub); err != nil {
		return err
	}

	ctrl := newController[E, T](actor, sub, ctx, s.config.MaxEventsPerTick, s.monitorRegistry.sink())

	s.introspection.register(actorID, sub.mailbox)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.closeFirstDone()
		if err := ctrl.run(context.Background(), s.cancel); err != nil {
			log.ErrorS(context.Background(), "Actor terminated with error",
				"actor_id", actorID, "error", err)
			s.firstErrOnce.Do(func() {
				s.firstErr = fmt.Errorf("actor %q: %w", actorID, err)
			})
		}
	}()

	return nil
}

// Start launches the broker's routing loop in the background and returns
// immediately. Actor controller goroutines are spawned during registration
// and run OnStart and their event loop from that moment on; Start does not
// gate them. Events an actor emits before Start stay buffered in the shared
// inbound channel until the broker begins routing.
func (s *Supervisor[E, T]) Start() {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()

	s.brokerMu.Lock()
	go func() {
		defer s.brokerMu.Unlock()
		_ = s.broker.Run(s.brokerCtx)
	}()
}

// Join awaits the first controller goroutine to complete — whether an
// actor stopped itself, errored, or Stop was already called directly —
// then triggers a full Stop if one is not already underway, and returns
// the first non-nil error any controller returned, wrapped in
// ErrActorJoin.
func (s *Supervisor[E, T]) Join() error {
	<-s.firstDone
	return s.Stop()
}

// Run starts the supervisor and blocks until every actor has stopped,
// either on its own or via Stop, returning the first propagated
// controller error, if any.
func (s *Supervisor[E, T]) Run() error {
	s.Start()
	return s.Join()
}

// Send emits event into the broker on behalf of an external caller (e.g. a
// test harness or a CLI command), tagged as coming from the supervisor
// itself.
func (s *Supervisor[E, T]) Send(ctx context.Context, event E) error {
	_, err := s.SendAs(ctx, ActorID("supervisor"), event)
	return err
}

// SendAs emits event into the broker tagged as coming from senderID, as if
// an actor with that identity had sent it, and returns the id assigned to
// the new envelope. This lets an external caller (typically a test harness)
// impersonate an arbitrary sender without registering an actor for it, and
// then look up the resulting delivery records by id.
func (s *Supervisor[E, T]) SendAs(ctx context.Context, senderID ActorID, event E) (uuid.UUID, error) {
	env := NewEnvelope(event, senderID)
	select {
	case s.inbound <- env:
		return env.Meta.ID(), nil
	case <-ctx.Done():
		return uuid.Nil, ctx.Err()
	}
}

// Stop performs a graceful shutdown in three phases:
//
//  1. Best-effort cancel of monitoring, before anything else, so no
//     shutdown-path event (a controller error, ActorStopped) is dispatched
//     to observers after they should already be gone.
//  2. Best-effort wait, up to SleepOnShutdown, for the shared inbound
//     channel to drain so in-flight Sends are not silently lost, then
//     cancel the broker and wait for its Run call to return, which itself
//     waits for subscriber mailboxes to drain.
//  3. Cancel every actor controller and wait for all of them to exit.
//
// Stop is idempotent and safe to call more than once (directly, and again
// from Join); every step it performs tolerates repetition. It returns the
// first non-nil error any controller returned, wrapped in ErrActorJoin.
func (s *Supervisor[E, T]) Stop() error {
	s.monitorRegistry.stop()
	s.closeFirstDone()

	deadline := time.Now().Add(s.config.SleepOnShutdown)
	for time.Now().Before(deadline) {
		if len(s.inbound) == 0 {
			break
		}
		time.Sleep(100 * time.Microsecond)
	}

	// Cancel the broker, then acquire and immediately release its mutex:
	// since Start holds the lock for the entire Run call, this blocks
	// until the broker's routing loop has actually returned.
	s.brokerCancel()
	s.brokerMu.Lock()
	s.brokerMu.Unlock()

	s.cancelOnce.Do(func() {
		close(s.cancel)
	})
	s.wg.Wait()

	if s.firstErr != nil {
		return fmt.Errorf("%w: %v", ErrActorJoin, s.firstErr)
	}
	return nil
}
