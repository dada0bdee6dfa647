package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIntrospectionTracksEventsHandledAndIdlesAfter(t *testing.T) {
	sup := newTestSupervisor(t)

	receiver := newRecordingActor(4)
	err := sup.AddActor("receiver", func(Context[testEvent]) Actor[testEvent] {
		return receiver
	}, topicAlpha)
	require.NoError(t, err)
	sup.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = sup.SendAs(ctx, ActorID("sender"), testEvent{kind: "alpha"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		info, ok := sup.Introspection().Actor(ActorID("receiver"))
		return ok && info.EventsHandled == 1
	}, time.Second, time.Millisecond)

	info, ok := sup.Introspection().Actor(ActorID("receiver"))
	require.True(t, ok)
	require.Equal(t, ActorStatusIdle, info.Status)
	require.EqualValues(t, 0, info.ErrorCount)
}

// erroringActor always returns an error from HandleEnvelope.
type erroringActor struct {
	BaseActor[testEvent]
}

func (a *erroringActor) HandleEnvelope(ctx context.Context, env *Envelope[testEvent]) error {
	return errors.New("boom")
}

func TestIntrospectionCountsErrors(t *testing.T) {
	sup := newTestSupervisor(t)

	err := sup.AddActor("erroring", func(Context[testEvent]) Actor[testEvent] {
		return &erroringActor{}
	}, topicAlpha)
	require.NoError(t, err)
	sup.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = sup.SendAs(ctx, ActorID("sender"), testEvent{kind: "alpha"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		info, ok := sup.Introspection().Actor(ActorID("erroring"))
		return ok && info.ErrorCount == 1
	}, time.Second, time.Millisecond)
}
