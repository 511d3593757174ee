package network

import (
	"errors"
	"testing"

	"github.com/automoto/doomerang-authority/shared/messages"
	"github.com/go-gl/mathgl/mgl64"
)

func TestRequestDamageNeedsConnection(t *testing.T) {
	c := NewClient(nil)
	err := c.RequestDamage(2, 10, mgl64.Vec3{1, 0, 0})
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
}

func TestJoinAcceptedUpdatesState(t *testing.T) {
	c := NewClient(nil)
	c.onJoinAccepted(messages.JoinAccepted{NetworkID: 4, ServerID: "srv", TickRate: 30, Authority: true})

	if c.State() != StateJoinedGame || c.NetworkID() != 4 || c.ServerID() != "srv" || c.TickRate() != 30 || !c.Authoritative() {
		t.Errorf("client after join: state=%s id=%d", c.State(), c.NetworkID())
	}
}

func TestBroadcastsDrainInArrivalOrder(t *testing.T) {
	c := NewClient(nil)
	hit := messages.BroadcastDamage{FactID: "a"}
	death := messages.BroadcastDeath{FactID: "b"}
	c.onBroadcast(hit, hit.FactID)
	c.onBroadcast(death, death.FactID)

	got := c.DrainBroadcasts()
	if len(got) != 2 {
		t.Fatalf("drained %d broadcasts, want 2", len(got))
	}
	if _, ok := got[0].(messages.BroadcastDamage); !ok {
		t.Errorf("first broadcast is %T", got[0])
	}
	if _, ok := got[1].(messages.BroadcastDeath); !ok {
		t.Errorf("second broadcast is %T", got[1])
	}
	if len(c.DrainBroadcasts()) != 0 {
		t.Error("queue not empty after drain")
	}
}

func TestFullBroadcastQueueDropsNewest(t *testing.T) {
	c := NewClient(nil)
	for i := 0; i < broadcastBuffer+5; i++ {
		c.onBroadcast(messages.BroadcastDamage{Health: i}, "")
	}
	got := c.DrainBroadcasts()
	if len(got) != broadcastBuffer {
		t.Fatalf("drained %d, want %d", len(got), broadcastBuffer)
	}
	if last := got[len(got)-1].(messages.BroadcastDamage); last.Health != broadcastBuffer-1 {
		t.Errorf("last kept broadcast = %d", last.Health)
	}
}
