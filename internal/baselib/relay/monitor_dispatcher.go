package relay

import (
	"context"
	"fmt"
	"time"
)

// monitorDispatcher is the single consumer that owns every registered
// Monitor and fans dispatched/delivered/handled/overflow/error/stop events
// out to them. Running it on one goroutine means monitors never need their
// own synchronization.
type monitorDispatcher[E Event, T Topic] struct {
	cmdCh chan monitorCommand[E, T]

	monitors  map[MonitorID]Monitor[E, T]
	pausedOn  map[MonitorID]bool
	pausedAll bool
	lastID    MonitorID

	// pendingFlushes holds the reply channels of every in-flight flush
	// command, and flushTimer the quiet-window timer backing them: any
	// command this dispatcher processes restarts the window, so the reply
	// only fires once the command channel has carried no work for a full
	// settleWindow.
	pendingFlushes []chan<- struct{}
	flushWindow    time.Duration
	flushTimer     *time.Timer
}

func newMonitorDispatcher[E Event, T Topic](cmdCh chan monitorCommand[E, T]) *monitorDispatcher[E, T] {
	return &monitorDispatcher[E, T]{
		cmdCh:    cmdCh,
		monitors: make(map[MonitorID]Monitor[E, T]),
		pausedOn: make(map[MonitorID]bool),
	}
}

// run drains the command channel until ctx is cancelled.
func (d *monitorDispatcher[E, T]) run(ctx context.Context) {
	for {
		var timerC <-chan time.Time
		if d.flushTimer != nil {
			timerC = d.flushTimer.C
		}

		select {
		case <-ctx.Done():
			return

		case cmd := <-d.cmdCh:
			d.handleCommand(cmd)
			if len(d.pendingFlushes) > 0 {
				d.armFlushTimer()
			}

		case <-timerC:
			d.completeFlush()
		}
	}
}

// armFlushTimer (re)starts the quiet-window timer backing every pending
// flush. Called after every command this dispatcher processes while a
// flush is pending, so a steady stream of dispatches keeps deferring the
// reply instead of the dispatcher signaling quiescence mid-burst.
func (d *monitorDispatcher[E, T]) armFlushTimer() {
	if d.flushTimer != nil {
		d.flushTimer.Stop()
	}
	d.flushTimer = time.NewTimer(d.flushWindow)
}

func (d *monitorDispatcher[E, T]) completeFlush() {
	for _, done := range d.pendingFlushes {
		close(done)
	}
	d.pendingFlushes = nil
	d.flushTimer = nil
}

func (d *monitorDispatcher[E, T]) handleCommand(cmd monitorCommand[E, T]) {
	switch cmd.kind {
	case commandAddMonitor:
		id := d.lastID
		d.monitors[id] = cmd.monitor
		d.lastID++
		if cmd.addedID != nil {
			cmd.addedID <- id
		}

	case commandRemoveMonitor:
		delete(d.monitors, cmd.id)
		delete(d.pausedOn, cmd.id)

	case commandPauseAll:
		d.pausedAll = true

	case commandResumeAll:
		d.pausedAll = false

	case commandPauseOne:
		d.pausedOn[cmd.id] = true

	case commandResumeOne:
		delete(d.pausedOn, cmd.id)

	case commandDispatch:
		if !d.pausedAll {
			d.fanOut(cmd.event)
		}

	case commandFlush:
		if cmd.done != nil {
			d.pendingFlushes = append(d.pendingFlushes, cmd.done)
		}
		d.flushWindow = cmd.settleWindow
	}
}

func (d *monitorDispatcher[E, T]) fanOut(evt monitoringEvent[E, T]) {
	for id, m := range d.monitors {
		if d.pausedOn[id] {
			continue
		}
		d.callMonitor(id, m, evt)
	}
}

// callMonitor isolates a misbehaving monitor: a panic in one observer's hook
// is recovered and logged, and the monitor is permanently removed from the
// registry so it cannot panic again on a later event. Delivery to every
// other registered monitor is unaffected.
func (d *monitorDispatcher[E, T]) callMonitor(id MonitorID, m Monitor[E, T], evt monitoringEvent[E, T]) {
	defer func() {
		if r := recover(); r != nil {
			log.ErrorS(context.Background(), "Monitor panicked, quarantining permanently",
				"monitor_id", id, "panic", fmt.Sprint(r))
			delete(d.monitors, id)
			delete(d.pausedOn, id)
		}
	}()

	switch evt.kind {
	case monitoringEventDispatched:
		m.OnEventDispatched(evt.envelope, evt.topic, evt.actorID)
	case monitoringEventDelivered:
		m.OnEventDelivered(evt.envelope, evt.actorID)
	case monitoringEventHandled:
		m.OnEventHandled(evt.envelope, evt.actorID)
	case monitoringEventOverflow:
		m.OnOverflow(evt.envelope, evt.topic, evt.actorID, evt.policy)
	case monitoringEventActorStopped:
		m.OnActorStop(evt.actorID)
	case monitoringEventError:
		m.OnError(evt.err, evt.actorID)
	case monitoringEventStepEnter:
		m.OnStepEnter(evt.actorID)
	case monitoringEventStepExit:
		m.OnStepExit(evt.stepAction, evt.actorID)
	}
}
