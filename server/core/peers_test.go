package core

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"
)

type blockingPeer struct {
	id      string
	entered chan struct{}
	release chan struct{}
}

func (p *blockingPeer) Id() string { return p.id }

func (p *blockingPeer) SendMessage(any) error {
	p.entered <- struct{}{}
	<-p.release
	return nil
}

type failingPeer struct{ id string }

func (p failingPeer) Id() string { return p.id }
func (p failingPeer) SendMessage(any) error { return errors.New("connection reset") }

func TestFullQueueDropsWithoutBlocking(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	peers := NewPeers(1, 0, zap.New(core))
	slow := &blockingPeer{id: "slow", entered: make(chan struct{}, 1), release: make(chan struct{})}
	peers.Add(slow)
	defer func() {
		close(slow.release)
		peers.Close()
	}()

	peers.Send("slow", 1)
	<-slow.entered

	if !peers.Send("slow", 2) {
		t.Fatal("second message should fit the queue")
	}
	done := make(chan bool)
	go func() { done <- peers.Send("slow", 3) }()
	select {
	case ok := <-done:
		if ok {
			t.Fatal("third message should be dropped")
		}
	case <-time.After(time.Second):
		t.Fatal("Send blocked on a full queue")
	}

	if peers.Dropped() != 1 {
		t.Errorf("Dropped = %d, want 1", peers.Dropped())
	}
	if n := logs.FilterMessage("outbound queue full, message dropped").Len(); n != 1 {
		t.Errorf("logged %d drops, want 1", n)
	}
}

func TestBroadcastReachesEveryPeer(t *testing.T) {
	peers := NewPeers(8, time.Second, nil)
	defer peers.Close()
	a, b := newFakePeer("a"), newFakePeer("b")
	peers.Add(a)
	peers.Add(b)

	if n := peers.Broadcast("hello"); n != 2 {
		t.Fatalf("Broadcast queued for %d peers, want 2", n)
	}
	for _, p := range []*fakePeer{a, b} {
		if got := expect[string](t, p); got != "hello" {
			t.Errorf("peer %s got %q", p.id, got)
		}
	}
}

func TestSendFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	peers := NewPeers(8, 0, zap.New(core))
	peers.Add(failingPeer{id: "gone"})
	peers.Send("gone", "x")

	deadline := time.Now().Add(2 * time.Second)
	for logs.FilterMessage("send failed").Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("send failure was not logged")
		}
		time.Sleep(5 * time.Millisecond)
	}
	peers.Close()
}

func TestSendToUnknownPeer(t *testing.T) {
	peers := NewPeers(8, 0, nil)
	defer peers.Close()
	if peers.Send("nobody", 1) {
		t.Error("Send to unknown peer reported success")
	}
}

func TestAddAfterCloseIsRefused(t *testing.T) {
	peers := NewPeers(8, 0, nil)
	peers.Close()

	if peers.Add(failingPeer{id: "late"}) {
		t.Fatal("Add succeeded after Close")
	}
	if peers.Len() != 0 {
		t.Errorf("Len = %d after refused Add", peers.Len())
	}
	peers.Close()
}
