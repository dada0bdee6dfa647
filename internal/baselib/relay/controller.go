package relay

import (
	"context"
	"runtime"
	"time"
)

// stepPause enumerates why periodic stepping might not be eligible to run
// right now, mirroring the source runtime's StepPause state machine.
type stepPause int

const (
	stepPauseNone stepPause = iota
	stepPauseAwaitEvent
	stepPauseSuppressed
)

// stepScheduler tracks the controller's periodic-stepping state across
// iterations of the select loop: an in-flight backoff timer, or a pause
// that defers stepping until the next mailbox event or forever.
type stepScheduler struct {
	backoff *time.Timer
	pause   stepPause
}

func (s *stepScheduler) isDelayed() bool {
	return s.backoff != nil && s.pause == stepPauseNone
}

func (s *stepScheduler) canStep() bool {
	return s.backoff == nil && s.pause == stepPauseNone
}

func (s *stepScheduler) stopBackoff() {
	if s.backoff != nil {
		s.backoff.Stop()
		s.backoff = nil
	}
}

// controller drives one actor's lifecycle: OnStart, a biased select loop
// that prioritizes cancellation over mailbox drain over backoff-gated step
// over plain step, and finally OnShutdown. It is the Go counterpart of the
// source runtime's ActorHandler.
type controller[E Event, T Topic] struct {
	actor            Actor[E]
	sub              *subscriber[E, T]
	ctx              Context[E]
	maxEventsPerTick int
	monitoring       *monitoringSink[E, T]
}

func newController[E Event, T Topic](
	actor Actor[E], sub *subscriber[E, T], ctx Context[E],
	maxEventsPerTick int, monitoring *monitoringSink[E, T],
) *controller[E, T] {
	return &controller[E, T]{
		actor:            actor,
		sub:              sub,
		ctx:              ctx,
		maxEventsPerTick: maxEventsPerTick,
		monitoring:       monitoring,
	}
}

// run executes the controller loop until the actor stops itself via
// Context.Stop or cancel is cancelled. It always calls OnShutdown before
// returning, even when OnStart or the loop itself errors.
func (c *controller[E, T]) run(ctx context.Context, cancel <-chan struct{}) error {
	if err := c.actor.OnStart(ctx); err != nil {
		if handled := c.actor.OnError(err); handled != nil {
			return c.shutdown(ctx, handled)
		}
	}

	scheduler := &stepScheduler{}
	defer scheduler.stopBackoff()

	for c.ctx.IsAlive() {
		// Go's select has no "biased" mode: when multiple cases are
		// simultaneously ready it picks one pseudo-randomly. Cancellation
		// must always win, so it gets a non-blocking pre-check ahead of
		// the main select below.
		select {
		case <-cancel:
			c.ctx.Stop()
			continue
		default:
		}

		// A nil channel blocks forever in a select, so branches that
		// should not be considered this iteration are simply left nil
		// — the idiomatic Go stand-in for tokio::select!'s per-branch
		// "if" guards.
		var backoffFired <-chan time.Time
		if scheduler.isDelayed() {
			backoffFired = scheduler.backoff.C
		}

		var stepReady <-chan struct{}
		if scheduler.canStep() {
			stepReady = readyNow
		}

		// A queued mailbox event takes precedence over stepping, so the
		// step branches are left out of this iteration's select.
		if c.sub.mailbox.len() > 0 {
			backoffFired = nil
			stepReady = nil
		}

		select {
		case <-cancel:
			c.ctx.Stop()

		case env, ok := <-c.sub.mailbox.ch:
			if !ok {
				c.ctx.Stop()
				continue
			}
			if err := c.handleOne(ctx, env); err != nil {
				return c.shutdown(ctx, err)
			}

			drained := 1
			for drained < c.maxEventsPerTick {
				next, ok := c.sub.mailbox.tryReceive()
				if !ok {
					break
				}
				if err := c.handleOne(ctx, next); err != nil {
					return c.shutdown(ctx, err)
				}
				drained++
			}

			if scheduler.pause == stepPauseAwaitEvent {
				scheduler.pause = stepPauseNone
			}

		case <-backoffFired:
			scheduler.stopBackoff()
			if err := c.runStep(ctx, scheduler); err != nil {
				return c.shutdown(ctx, err)
			}

		case <-stepReady:
			if err := c.runStep(ctx, scheduler); err != nil {
				return c.shutdown(ctx, err)
			}
		}
	}

	return c.shutdown(ctx, nil)
}

// readyNow is always closed, so receiving from it never blocks. It backs
// the stepReady select branch: when stepping is allowed but no backoff or
// mailbox event is pending, the select should proceed to Step immediately
// rather than block.
var readyNow = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

func (c *controller[E, T]) handleOne(ctx context.Context, env *Envelope[E]) error {
	if c.monitoring != nil && c.monitoring.isActive() {
		c.monitoring.eventDelivered(env, c.ctx.ActorID())
	}

	err := c.actor.HandleEnvelope(ctx, env)

	if c.monitoring != nil && c.monitoring.isActive() {
		c.monitoring.eventHandled(env, c.ctx.ActorID())
	}

	if err != nil {
		if handled := c.actor.OnError(err); handled != nil {
			if c.monitoring != nil {
				c.monitoring.reportError(handled, c.ctx.ActorID())
			}
			return handled
		}
	}
	return nil
}

func (c *controller[E, T]) runStep(ctx context.Context, scheduler *stepScheduler) error {
	if c.monitoring != nil && c.monitoring.isActive() {
		c.monitoring.stepEnter(c.ctx.ActorID())
	}

	action, err := c.actor.Step(ctx)
	if err != nil {
		if handled := c.actor.OnError(err); handled != nil {
			if c.monitoring != nil {
				c.monitoring.reportError(handled, c.ctx.ActorID())
			}
			return handled
		}
		return nil
	}

	if c.monitoring != nil && c.monitoring.isActive() {
		c.monitoring.stepExit(action, c.ctx.ActorID())
	}

	switch action.Kind() {
	case StepContinue:
		scheduler.pause = stepPauseNone
	case StepYield:
		// Unlike Continue, Yield actually cedes the scheduler before the
		// loop reselects, mirroring the source runtime's
		// tokio::task::yield_now().await in its Yield handling.
		runtime.Gosched()
		scheduler.pause = stepPauseNone
	case StepAwaitEvent:
		scheduler.pause = stepPauseAwaitEvent
	case StepBackoff:
		scheduler.stopBackoff()
		scheduler.backoff = time.NewTimer(action.BackoffDuration())
	case StepNever:
		scheduler.pause = stepPauseSuppressed
	}
	return nil
}

func (c *controller[E, T]) shutdown(ctx context.Context, pending error) error {
	if err := c.actor.OnShutdown(ctx); err != nil && pending == nil {
		pending = err
	}
	c.sub.mailbox.close()
	if c.monitoring != nil {
		c.monitoring.actorStopped(c.ctx.ActorID())
	}
	return pending
}
