package core

import (
	"sync"

	"github.com/automoto/doomerang-authority/shared/messages"
)

type requestKind uint8

const (
	requestJoin requestKind = iota
	requestLeave
	requestDamage
)

type request struct {
	kind   requestKind
	peer   Peer
	damage messages.RequestDamage
}

// intake buffers work arriving on network goroutines until the next tick
// picks it up. Only the tick goroutine touches the world.
type intake struct {
	mu      sync.Mutex
	pending []request
}

func (in *intake) push(r request) {
	in.mu.Lock()
	in.pending = append(in.pending, r)
	in.mu.Unlock()
}

func (in *intake) take() []request {
	in.mu.Lock()
	out := in.pending
	in.pending = nil
	in.mu.Unlock()
	return out
}
