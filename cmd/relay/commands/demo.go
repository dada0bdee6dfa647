package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/haldor/relay/internal/baselib/relay"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the ping/pong walkthrough scenario",
	Long: `Registers two actors, "ping" and "pong", subscribed to each other's
topic, sends one Ping on ping's behalf so pong answers it with one Pong,
then reports how many events each side handled.`,
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)
}

// demoEventKind discriminates the two event shapes the demo actors
// exchange.
type demoEventKind int

const (
	demoEventPing demoEventKind = iota
	demoEventPong
)

func (k demoEventKind) String() string {
	if k == demoEventPong {
		return "Pong"
	}
	return "Ping"
}

// demoEvent is the single concrete Event type the demo's Supervisor is
// instantiated over; Kind distinguishes a ping from a pong the way a sum
// type would in a language with native variant support.
type demoEvent struct {
	relay.BaseEvent
	Kind demoEventKind
}

func (e demoEvent) Name() string { return e.Kind.String() }

// demoTopic routes ping events to the "pong" actor's subscription and pong
// events to the "ping" actor's, mirroring the mutual-subscription shape of
// the walkthrough scenario.
type demoTopic demoEventKind

func (t demoTopic) OverflowPolicy() relay.OverflowPolicy { return relay.OverflowPolicyDrop }
func (t demoTopic) String() string                       { return demoEventKind(t).String() }

func demoTopicFunc(e demoEvent) demoTopic {
	return demoTopic(e.Kind)
}

// pingActor counts every Pong it receives. It sends nothing itself: runDemo
// injects the opening Ping on its behalf via Supervisor.SendAs.
type pingActor struct {
	relay.BaseActor[demoEvent]
	handled int
}

func (a *pingActor) OnStart(ctx context.Context) error {
	return nil
}

func (a *pingActor) HandleEnvelope(ctx context.Context, env *relay.Envelope[demoEvent]) error {
	a.handled++
	fmt.Printf("ping actor received %s #%d from %s\n", env.Event.Name(), a.handled, env.Meta.SenderActorID())
	return nil
}

// pongActor replies to every Ping it receives with a Pong, and counts what
// it handled.
type pongActor struct {
	relay.BaseActor[demoEvent]
	relayCtx relay.Context[demoEvent]
	handled  int
}

func (a *pongActor) HandleEnvelope(ctx context.Context, env *relay.Envelope[demoEvent]) error {
	a.handled++
	fmt.Printf("pong actor received %s #%d from %s\n", env.Event.Name(), a.handled, env.Meta.SenderActorID())
	return a.relayCtx.Send(ctx, demoEvent{Kind: demoEventPong})
}

func runDemo(cmd *cobra.Command, args []string) error {
	config := relay.DefaultConfig()
	supervisor := relay.NewSupervisor(config, demoTopicFunc)

	ping := &pingActor{}
	pong := &pongActor{}

	if err := supervisor.BuildActor("ping").
		Actor(func(relay.Context[demoEvent]) relay.Actor[demoEvent] { return ping }).
		Topics(demoTopic(demoEventPong)).
		Build(); err != nil {
		return fmt.Errorf("registering ping actor: %w", err)
	}

	if err := supervisor.BuildActor("pong").
		Actor(func(c relay.Context[demoEvent]) relay.Actor[demoEvent] {
			pong.relayCtx = c
			return pong
		}).
		Topics(demoTopic(demoEventPing)).
		Build(); err != nil {
		return fmt.Errorf("registering pong actor: %w", err)
	}

	supervisor.Start()

	ctx := context.Background()
	if _, err := supervisor.SendAs(ctx, relay.ActorID("ping"), demoEvent{Kind: demoEventPing}); err != nil {
		return fmt.Errorf("sending initial ping: %w", err)
	}

	time.Sleep(50 * time.Millisecond)
	if err := supervisor.Stop(); err != nil {
		return fmt.Errorf("stopping supervisor: %w", err)
	}

	fmt.Printf("ping handled %d event(s), pong handled %d event(s)\n", ping.handled, pong.handled)
	return nil
}
