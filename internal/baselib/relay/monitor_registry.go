package relay

import (
	"context"
	"sync/atomic"
	"time"
)

// MonitorRegistry owns the monitor dispatcher and is the public entry point
// for adding, removing, pausing and flushing observers of the event flow.
type MonitorRegistry[E Event, T Topic] struct {
	cmdCh      chan monitorCommand[E, T]
	dispatcher *monitorDispatcher[E, T]

	ctx    context.Context
	cancel context.CancelFunc

	isActive *atomic.Bool
}

// newMonitorRegistry constructs a registry and immediately launches its
// dispatcher goroutine. The dispatcher must be running before construction
// returns: Add/Remove/Pause/Resume/Flush all round-trip through its command
// channel synchronously, and a caller is entitled to register a monitor
// before the supervisor's broker has started.
func newMonitorRegistry[E Event, T Topic](config Config) *MonitorRegistry[E, T] {
	cmdCh := make(chan monitorCommand[E, T], config.MonitoringChannelSize)
	ctx, cancel := context.WithCancel(context.Background())

	r := &MonitorRegistry[E, T]{
		cmdCh:      cmdCh,
		dispatcher: newMonitorDispatcher[E, T](cmdCh),
		ctx:        ctx,
		cancel:     cancel,
		isActive:   &atomic.Bool{},
	}
	go r.dispatcher.run(r.ctx)
	return r
}

// stop cancels the dispatcher goroutine.
func (r *MonitorRegistry[E, T]) stop() {
	r.cancel()
}

// sink returns the hot-path handle the broker and every actor controller
// use to report events, gated by the isActive flag so that an unmonitored
// run pays only an atomic load per event.
func (r *MonitorRegistry[E, T]) sink() *monitoringSink[E, T] {
	return &monitoringSink[E, T]{cmdCh: r.cmdCh, isActive: r.isActive}
}

// Add registers monitor and returns a handle for later Remove/Pause/Resume.
// Once any monitor has been added, the registry is permanently active: the
// broker and controllers no longer skip their monitoring hooks.
func (r *MonitorRegistry[E, T]) Add(ctx context.Context, monitor Monitor[E, T]) *MonitorHandle[E, T] {
	idCh := make(chan MonitorID, 1)
	cmd := monitorCommand[E, T]{kind: commandAddMonitor, monitor: monitor, addedID: idCh}

	select {
	case r.cmdCh <- cmd:
	case <-ctx.Done():
		return nil
	}

	r.isActive.Store(true)

	select {
	case id := <-idCh:
		return newMonitorHandle(id, r.cmdCh)
	case <-ctx.Done():
		return nil
	}
}

// Remove unregisters the monitor with the given id.
func (r *MonitorRegistry[E, T]) Remove(ctx context.Context, id MonitorID) {
	r.send(ctx, monitorCommand[E, T]{kind: commandRemoveMonitor, id: id})
}

// PauseAll suspends delivery to every registered monitor.
func (r *MonitorRegistry[E, T]) PauseAll(ctx context.Context) {
	r.send(ctx, monitorCommand[E, T]{kind: commandPauseAll})
}

// ResumeAll re-enables delivery to every registered monitor after PauseAll.
func (r *MonitorRegistry[E, T]) ResumeAll(ctx context.Context) {
	r.send(ctx, monitorCommand[E, T]{kind: commandResumeAll})
}

// Flush blocks until the dispatcher's command channel has carried no new
// work for a full settleWindow, giving callers a deterministic quiet-window
// barrier instead of a fixed sleep or a simple FIFO round-trip. A FIFO
// round-trip alone is not enough: a Block-overflow send that is still
// in-flight on its own goroutine (see Broker.sendBlocked) can report to
// monitoring after a flush command already queued ahead of it, so the
// dispatcher instead waits for actual silence.
func (r *MonitorRegistry[E, T]) Flush(ctx context.Context, settleWindow time.Duration) {
	done := make(chan struct{})
	cmd := monitorCommand[E, T]{kind: commandFlush, done: done, settleWindow: settleWindow}

	select {
	case r.cmdCh <- cmd:
	case <-ctx.Done():
		return
	}

	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (r *MonitorRegistry[E, T]) send(ctx context.Context, cmd monitorCommand[E, T]) {
	select {
	case r.cmdCh <- cmd:
	case <-ctx.Done():
	}
}

// monitoringSink is the narrow, hot-path-safe handle the broker and actor
// controllers hold to report dispatch, delivery, error and lifecycle
// events without importing the full MonitorRegistry API.
type monitoringSink[E Event, T Topic] struct {
	cmdCh    chan monitorCommand[E, T]
	isActive *atomic.Bool
}

// isActive reports whether any monitor has ever been registered. Callers
// should check this before constructing a monitoringEvent to avoid the
// allocation entirely when nothing is observing.
func (s *monitoringSink[E, T]) isActive() bool { return s.isActive.Load() }

func (s *monitoringSink[E, T]) dispatch(evt monitoringEvent[E, T]) {
	select {
	case s.cmdCh <- monitorCommand[E, T]{kind: commandDispatch, event: evt}:
	default:
		log.WarnS(context.Background(), "Monitoring channel full, dropping event")
	}
}

func (s *monitoringSink[E, T]) eventDispatched(env *Envelope[E], topic T, receiver ActorID) {
	s.dispatch(monitoringEvent[E, T]{
		kind: monitoringEventDispatched, envelope: env, topic: topic, actorID: receiver,
	})
}

func (s *monitoringSink[E, T]) overflow(env *Envelope[E], topic T, receiver ActorID, policy OverflowPolicy) {
	s.dispatch(monitoringEvent[E, T]{
		kind: monitoringEventOverflow, envelope: env, topic: topic, actorID: receiver, policy: policy,
	})
}

func (s *monitoringSink[E, T]) eventDelivered(env *Envelope[E], receiver ActorID) {
	s.dispatch(monitoringEvent[E, T]{kind: monitoringEventDelivered, envelope: env, actorID: receiver})
}

func (s *monitoringSink[E, T]) eventHandled(env *Envelope[E], receiver ActorID) {
	s.dispatch(monitoringEvent[E, T]{kind: monitoringEventHandled, envelope: env, actorID: receiver})
}

func (s *monitoringSink[E, T]) reportError(err error, actorID ActorID) {
	s.dispatch(monitoringEvent[E, T]{kind: monitoringEventError, actorID: actorID, err: err})
}

func (s *monitoringSink[E, T]) actorStopped(actorID ActorID) {
	s.dispatch(monitoringEvent[E, T]{kind: monitoringEventActorStopped, actorID: actorID})
}

func (s *monitoringSink[E, T]) stepEnter(actorID ActorID) {
	s.dispatch(monitoringEvent[E, T]{kind: monitoringEventStepEnter, actorID: actorID})
}

func (s *monitoringSink[E, T]) stepExit(action StepAction, actorID ActorID) {
	s.dispatch(monitoringEvent[E, T]{kind: monitoringEventStepExit, actorID: actorID, stepAction: action})
}
