package relay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testEvent is the concrete Event used across this package's tests.
type testEvent struct {
	BaseEvent
	kind    string
	payload int
}

func (e testEvent) Name() string { return e.kind }

// testTopic is a two-value topic with a configurable overflow policy, so
// tests can exercise Drop, Fail and Block without three separate types.
type testTopic struct {
	name   string
	policy OverflowPolicy
}

func (t testTopic) OverflowPolicy() OverflowPolicy { return t.policy }
func (t testTopic) String() string                 { return t.name }

var (
	topicAlpha = testTopic{name: "alpha", policy: OverflowPolicyDrop}
	topicBeta  = testTopic{name: "beta", policy: OverflowPolicyDrop}
)

func testTopicFunc(e testEvent) testTopic {
	if e.kind == "beta" {
		return topicBeta
	}
	return topicAlpha
}

// recordingActor sends every event it handles into a buffered channel,
// which tests read from (or check the length of) while the supervisor runs.
type recordingActor struct {
	BaseActor[testEvent]
	received chan testEvent
}

func newRecordingActor(buf int) *recordingActor {
	return &recordingActor{received: make(chan testEvent, buf)}
}

func (a *recordingActor) HandleEnvelope(ctx context.Context, env *Envelope[testEvent]) error {
	a.received <- env.Event
	return nil
}

func newTestSupervisor(t *testing.T) *Supervisor[testEvent, testTopic] {
	t.Helper()
	sup := NewSupervisor(DefaultConfig(), testTopicFunc)
	t.Cleanup(func() { _ = sup.Stop() })
	return sup
}

func TestSupervisorDeliversMatchingTopic(t *testing.T) {
	sup := newTestSupervisor(t)

	receiver := newRecordingActor(4)
	err := sup.AddActor("receiver", func(Context[testEvent]) Actor[testEvent] {
		return receiver
	}, topicAlpha)
	require.NoError(t, err)

	sup.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = sup.SendAs(ctx, ActorID("sender"), testEvent{kind: "alpha", payload: 1})
	require.NoError(t, err)

	select {
	case got := <-receiver.received:
		require.Equal(t, "alpha", got.kind)
		require.Equal(t, 1, got.payload)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestSupervisorDoesNotDeliverUnmatchedTopic(t *testing.T) {
	sup := newTestSupervisor(t)

	receiver := newRecordingActor(4)
	err := sup.AddActor("receiver", func(Context[testEvent]) Actor[testEvent] {
		return receiver
	}, topicBeta)
	require.NoError(t, err)

	sup.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = sup.SendAs(ctx, ActorID("sender"), testEvent{kind: "alpha"})
	require.NoError(t, err)

	select {
	case got := <-receiver.received:
		t.Fatalf("unexpected delivery: %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSupervisorNeverDeliversSendersOwnEvent(t *testing.T) {
	sup := newTestSupervisor(t)

	selfSender := newRecordingActor(4)
	err := sup.AddActor("self", func(Context[testEvent]) Actor[testEvent] {
		return selfSender
	}, topicAlpha)
	require.NoError(t, err)

	sup.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = sup.SendAs(ctx, ActorID("self"), testEvent{kind: "alpha"})
	require.NoError(t, err)

	select {
	case got := <-selfSender.received:
		t.Fatalf("actor received its own event: %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestAddActorAfterStartFails(t *testing.T) {
	sup := newTestSupervisor(t)
	sup.Start()

	err := sup.AddActor("late", func(Context[testEvent]) Actor[testEvent] {
		return newRecordingActor(1)
	}, topicAlpha)
	require.ErrorIs(t, err, ErrBrokerAlreadyStarted)
}

func TestAddActorDuplicateNameFails(t *testing.T) {
	sup := newTestSupervisor(t)

	err := sup.AddActor("dup", func(Context[testEvent]) Actor[testEvent] {
		return newRecordingActor(1)
	}, topicAlpha)
	require.NoError(t, err)

	err = sup.AddActor("dup", func(Context[testEvent]) Actor[testEvent] {
		return newRecordingActor(1)
	}, topicAlpha)
	require.ErrorIs(t, err, ErrSubscriberExists)
}

func TestDropOverflowPolicySilentlyDiscards(t *testing.T) {
	config := DefaultConfig().WithChannelSize(1)
	sup := NewSupervisor(config, testTopicFunc)
	t.Cleanup(func() { _ = sup.Stop() })

	blocker := &blockingActor{unblock: make(chan struct{})}
	err := sup.AddActor("blocker", func(Context[testEvent]) Actor[testEvent] {
		return blocker
	}, topicAlpha)
	require.NoError(t, err)
	sup.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// The blocker's mailbox holds capacity 1 and HandleEnvelope never
	// returns until unblocked, so by the time a handful of sends land the
	// mailbox is certainly full. Every SendAs call must still return
	// promptly without error: Drop discards the overflow rather than
	// propagating backpressure to the sender.
	for i := 0; i < 5; i++ {
		_, err = sup.SendAs(ctx, ActorID("sender"), testEvent{kind: "alpha", payload: i})
		require.NoError(t, err)
	}

	close(blocker.unblock)
}

// blockingActor blocks inside HandleEnvelope until unblock is closed, used
// to force a subscriber's mailbox to stay full for overflow-policy tests.
type blockingActor struct {
	BaseActor[testEvent]
	unblock chan struct{}
}

func (a *blockingActor) HandleEnvelope(ctx context.Context, env *Envelope[testEvent]) error {
	<-a.unblock
	return nil
}

func TestActorStopMarksContextNotAlive(t *testing.T) {
	sup := newTestSupervisor(t)

	stopper := &stoppingActor{}
	err := sup.AddActor("stopper", func(c Context[testEvent]) Actor[testEvent] {
		stopper.ctx = c
		return stopper
	}, topicAlpha)
	require.NoError(t, err)
	sup.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = sup.SendAs(ctx, ActorID("sender"), testEvent{kind: "alpha"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return !stopper.ctx.IsAlive()
	}, time.Second, time.Millisecond)
}

// stoppingActor stops itself as soon as it handles one envelope.
type stoppingActor struct {
	BaseActor[testEvent]
	ctx Context[testEvent]
}

func (a *stoppingActor) HandleEnvelope(ctx context.Context, env *Envelope[testEvent]) error {
	a.ctx.Stop()
	return nil
}

func TestIntrospectionReflectsRegisteredActors(t *testing.T) {
	sup := newTestSupervisor(t)

	err := sup.AddActor("watched", func(Context[testEvent]) Actor[testEvent] {
		return newRecordingActor(4)
	}, topicAlpha)
	require.NoError(t, err)
	sup.Start()

	info, ok := sup.Introspection().Actor(ActorID("watched"))
	require.True(t, ok)
	require.Equal(t, ActorID("watched"), info.ActorID)
	require.Equal(t, ActorStatusRegistered, info.Status)
}

func TestIntrospectionMarksStoppedAfterShutdown(t *testing.T) {
	sup := NewSupervisor(DefaultConfig(), testTopicFunc)

	err := sup.AddActor("watched", func(Context[testEvent]) Actor[testEvent] {
		return newRecordingActor(4)
	}, topicAlpha)
	require.NoError(t, err)
	sup.Start()
	sup.Stop()

	info, ok := sup.Introspection().Actor(ActorID("watched"))
	require.True(t, ok)
	require.Equal(t, ActorStatusStopped, info.Status)
}

func TestSendAsReturnsUsableID(t *testing.T) {
	sup := newTestSupervisor(t)
	sup.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	id, err := sup.SendAs(ctx, ActorID("sender"), testEvent{kind: "alpha"})
	require.NoError(t, err)
	require.NotEmpty(t, id.String())
}
