package relaytest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/haldor/relay/internal/baselib/relay"
)

type demoEvent struct {
	relay.BaseEvent
	kind string
}

func (e demoEvent) Name() string { return e.kind }

type demoTopic string

func (t demoTopic) OverflowPolicy() relay.OverflowPolicy { return relay.OverflowPolicyDrop }

const (
	topicPing demoTopic = "ping"
	topicPong demoTopic = "pong"
)

func demoTopicFunc(e demoEvent) demoTopic {
	if e.kind == "pong" {
		return topicPong
	}
	return topicPing
}

// pongReplier answers every Ping it receives with a Pong correlated to the
// triggering event, the shape every chain-tracing test below relies on.
type pongReplier struct {
	relay.BaseActor[demoEvent]
	ctx relay.Context[demoEvent]
}

func (a *pongReplier) HandleEnvelope(ctx context.Context, env *relay.Envelope[demoEvent]) error {
	return a.ctx.SendChildEvent(ctx, demoEvent{kind: "pong"}, env.Meta)
}

type silentReceiver struct {
	relay.BaseActor[demoEvent]
}

func newTestHarness(t *testing.T) *Harness[demoEvent, demoTopic] {
	t.Helper()
	h := New(relay.DefaultConfig(), demoTopicFunc)

	replier := &pongReplier{}
	err := h.AddActor("pong-actor", func(c relay.Context[demoEvent]) relay.Actor[demoEvent] {
		replier.ctx = c
		return replier
	}, topicPing)
	require.NoError(t, err)

	err = h.AddActor("ping-actor", func(relay.Context[demoEvent]) relay.Actor[demoEvent] {
		return &silentReceiver{}
	}, topicPong)
	require.NoError(t, err)

	h.Start()
	t.Cleanup(func() { _ = h.Stop() })
	return h
}

func TestHarnessSendAsRecordsDelivery(t *testing.T) {
	h := newTestHarness(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	spy, err := h.SendAs(ctx, "ping-actor", demoEvent{kind: "ping"})
	require.NoError(t, err)

	require.True(t, spy.WasDelivered())
	require.True(t, spy.WasDeliveredTo(relay.ActorID("pong-actor")))
	require.Equal(t, relay.ActorID("ping-actor"), spy.Sender())
}

func TestHarnessChainTracesPongReply(t *testing.T) {
	h := newTestHarness(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	spy, err := h.SendAs(ctx, "ping-actor", demoEvent{kind: "ping"})
	require.NoError(t, err)

	rootID := spy.id
	h.Settle(ctx)
	chain := h.Chain(rootID)

	require.True(t, chain.Events().Contains(MatchingEvent[demoEvent, demoTopic](func(e demoEvent) bool {
		return e.kind == "pong"
	})))
	require.True(t, chain.Actors().VisitedAll([]relay.ActorID{
		relay.ActorID("pong-actor"), relay.ActorID("ping-actor"),
	}))
}

func TestHarnessTopicSpyCountsReceivers(t *testing.T) {
	h := newTestHarness(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := h.SendAs(ctx, "ping-actor", demoEvent{kind: "ping"})
	require.NoError(t, err)
	h.Settle(ctx)

	pingTopic := h.Topic(topicPing)
	require.True(t, pingTopic.WasPublished())
	require.Equal(t, 1, pingTopic.EventCount())
	require.Contains(t, pingTopic.Receivers(), relay.ActorID("pong-actor"))
}

func TestHarnessActorSpyTracksSendAndReceive(t *testing.T) {
	h := newTestHarness(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := h.SendAs(ctx, "ping-actor", demoEvent{kind: "ping"})
	require.NoError(t, err)
	h.Settle(ctx)

	pongActor := h.Actor("pong-actor")
	require.Equal(t, 1, pongActor.ReceivedEventsCount())
	require.Equal(t, 1, pongActor.SentEventsCount())
	require.Contains(t, pongActor.Senders(), relay.ActorID("ping-actor"))
}

func TestQueryFiltersComposeConjunctively(t *testing.T) {
	h := newTestHarness(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := h.SendAs(ctx, "ping-actor", demoEvent{kind: "ping"})
	require.NoError(t, err)
	h.Settle(ctx)

	matches := h.Events().
		SentBy(relay.ActorID("ping-actor")).
		WithTopic(topicPing).
		Collect()
	require.Len(t, matches, 1)

	none := h.Events().
		SentBy(relay.ActorID("ping-actor")).
		WithTopic(topicPong).
		Collect()
	require.Empty(t, none)
}

const (
	topicStart    demoTopic = "start"
	topicProcess  demoTopic = "process"
	topicComplete demoTopic = "complete"
)

func loopTopicFunc(e demoEvent) demoTopic {
	switch e.kind {
	case "process":
		return topicProcess
	case "complete":
		return topicComplete
	default:
		return topicStart
	}
}

// startToProcessActor and processToCompleteActor replay the same
// child-correlated reply shape as pongReplier, strung across three actors
// so the resulting chain loops back through its root sender.
type startToProcessActor struct {
	relay.BaseActor[demoEvent]
	ctx relay.Context[demoEvent]
}

func (a *startToProcessActor) HandleEnvelope(ctx context.Context, env *relay.Envelope[demoEvent]) error {
	return a.ctx.SendChildEvent(ctx, demoEvent{kind: "process"}, env.Meta)
}

type processToCompleteActor struct {
	relay.BaseActor[demoEvent]
	ctx relay.Context[demoEvent]
}

func (a *processToCompleteActor) HandleEnvelope(ctx context.Context, env *relay.Envelope[demoEvent]) error {
	return a.ctx.SendChildEvent(ctx, demoEvent{kind: "complete"}, env.Meta)
}

// TestChainActorsExactlyMatchesLoopingParticipation mirrors a correlation
// chain that loops back through its originator: alpha emits Start, beta
// replies with Process, gamma replies with Complete routed back to alpha.
// The chain's actor participation is exactly [alpha, beta, gamma, alpha] —
// the repeated alpha must survive Exactly's ordering check rather than
// being collapsed by a global dedup.
func TestChainActorsExactlyMatchesLoopingParticipation(t *testing.T) {
	h := New(relay.DefaultConfig(), loopTopicFunc)

	beta := &startToProcessActor{}
	err := h.AddActor("beta", func(c relay.Context[demoEvent]) relay.Actor[demoEvent] {
		beta.ctx = c
		return beta
	}, topicStart)
	require.NoError(t, err)

	gamma := &processToCompleteActor{}
	err = h.AddActor("gamma", func(c relay.Context[demoEvent]) relay.Actor[demoEvent] {
		gamma.ctx = c
		return gamma
	}, topicProcess)
	require.NoError(t, err)

	err = h.AddActor("alpha", func(relay.Context[demoEvent]) relay.Actor[demoEvent] {
		return &silentReceiver{}
	}, topicComplete)
	require.NoError(t, err)

	h.Start()
	t.Cleanup(func() { _ = h.Stop() })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	spy, err := h.SendAs(ctx, "alpha", demoEvent{kind: "start"})
	require.NoError(t, err)
	h.Settle(ctx)

	chain := h.Chain(spy.id)

	require.True(t, chain.Actors().Exactly([]relay.ActorID{
		relay.ActorID("alpha"), relay.ActorID("beta"), relay.ActorID("gamma"), relay.ActorID("alpha"),
	}))

	isKind := func(kind string) Matcher[demoEvent, demoTopic] {
		return MatchingEvent[demoEvent, demoTopic](func(e demoEvent) bool { return e.kind == kind })
	}
	require.True(t, chain.Events().Sequence([]Matcher[demoEvent, demoTopic]{
		isKind("start"), isKind("process"), isKind("complete"),
	}))
	require.False(t, chain.DivergesAfter(isKind("start")))
}

func TestChainToMermaidIncludesParticipants(t *testing.T) {
	h := newTestHarness(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	spy, err := h.SendAs(ctx, "ping-actor", demoEvent{kind: "ping"})
	require.NoError(t, err)
	h.Settle(ctx)

	diagram := h.Chain(spy.id).ToMermaid()
	require.Contains(t, diagram, "sequenceDiagram")
	require.Contains(t, diagram, "ping_actor")
	require.Contains(t, diagram, "pong_actor")
}
