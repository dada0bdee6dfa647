package relay

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestBrokerRoutesOnlyToSubscribedTopic is a property-based check that, for
// any mix of actors subscribed to topicAlpha or topicBeta and any sequence
// of alpha/beta events, every actor receives exactly the events posted to
// the topic it subscribed to and none posted to the other.
func TestBrokerRoutesOnlyToSubscribedTopic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		numAlpha := rapid.IntRange(0, 4).Draw(rt, "numAlpha")
		numBeta := rapid.IntRange(0, 4).Draw(rt, "numBeta")
		numEvents := rapid.IntRange(0, 20).Draw(rt, "numEvents")

		// A channel size comfortably larger than any single actor's worst
		// case (every event landing on it) keeps this a routing-correctness
		// check rather than an overflow-policy check.
		config := DefaultConfig().WithChannelSize(numEvents + 1)
		sup := NewSupervisor(config, testTopicFunc)
		defer sup.Stop()

		var alphaActors, betaActors []*recordingActor
		for i := 0; i < numAlpha; i++ {
			a := newRecordingActor(numEvents + 1)
			name := fmt.Sprintf("alpha-%d", i)
			require.NoError(t, sup.AddActor(name, func(Context[testEvent]) Actor[testEvent] {
				return a
			}, topicAlpha))
			alphaActors = append(alphaActors, a)
		}
		for i := 0; i < numBeta; i++ {
			a := newRecordingActor(numEvents + 1)
			name := fmt.Sprintf("beta-%d", i)
			require.NoError(t, sup.AddActor(name, func(Context[testEvent]) Actor[testEvent] {
				return a
			}, topicBeta))
			betaActors = append(betaActors, a)
		}

		sup.Start()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		wantAlpha, wantBeta := 0, 0
		for i := 0; i < numEvents; i++ {
			isBeta := rapid.Bool().Draw(rt, fmt.Sprintf("isBeta-%d", i))
			kind := "alpha"
			if isBeta {
				kind = "beta"
				wantBeta++
			} else {
				wantAlpha++
			}
			_, err := sup.SendAs(ctx, ActorID("driver"), testEvent{kind: kind, payload: i})
			require.NoError(t, err)
		}

		for _, a := range alphaActors {
			require.Eventually(t, func() bool {
				return len(a.received) == wantAlpha
			}, 2*time.Second, time.Millisecond)
		}
		for _, a := range betaActors {
			require.Eventually(t, func() bool {
				return len(a.received) == wantBeta
			}, 2*time.Second, time.Millisecond)
		}
	})
}
