package core

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/automoto/doomerang-authority/logging"
	"go.uber.org/zap"
)

// Peer is a connected client as seen by the server. *router.NetworkClient
// satisfies it.
type Peer interface {
	Id() string
	SendMessage(msg any) error
}

// Peers keeps one outbound queue per connected peer. Sending never blocks
// the caller: a full queue drops the message and logs it.
type Peers struct {
	mu     sync.RWMutex
	queues map[string]*peerQueue
	closed bool

	size    int
	timeout time.Duration
	dropped atomic.Uint64
	wg      sync.WaitGroup
	logger  *zap.Logger
}

type peerQueue struct {
	peer      Peer
	ch        chan any
	done      chan struct{}
	closeOnce sync.Once
}

func (q *peerQueue) close() {
	q.closeOnce.Do(func() { close(q.done) })
}

func NewPeers(size int, timeout time.Duration, logger *zap.Logger) *Peers {
	if size <= 0 {
		size = 64
	}
	logger = logging.OrNop(logger)
	return &Peers{
		queues:  make(map[string]*peerQueue),
		size:    size,
		timeout: timeout,
		logger:  logger.Named("peers"),
	}
}

// Add registers p and starts its sender. Adding an id twice replaces the
// previous peer. It returns false once Close has been called.
func (p *Peers) Add(peer Peer) bool {
	q := &peerQueue{
		peer: peer,
		ch:   make(chan any, p.size),
		done: make(chan struct{}),
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	if old, ok := p.queues[peer.Id()]; ok {
		old.close()
	}
	p.queues[peer.Id()] = q

	p.wg.Add(1)
	go p.run(q)
	return true
}

// Remove stops the sender for id. Queued messages are discarded.
func (p *Peers) Remove(id string) {
	p.mu.Lock()
	q, ok := p.queues[id]
	delete(p.queues, id)
	p.mu.Unlock()

	if ok {
		q.close()
	}
}

// Send queues msg for one peer.
func (p *Peers) Send(id string, msg any) bool {
	p.mu.RLock()
	q, ok := p.queues[id]
	p.mu.RUnlock()
	if !ok {
		return false
	}
	return p.enqueue(q, msg)
}

// Broadcast queues msg for every peer and returns how many accepted it.
func (p *Peers) Broadcast(msg any) int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	n := 0
	for _, q := range p.queues {
		if p.enqueue(q, msg) {
			n++
		}
	}
	return n
}

func (p *Peers) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.queues)
}

// Dropped returns the number of messages lost to full queues.
func (p *Peers) Dropped() uint64 {
	return p.dropped.Load()
}

// Close stops every sender and waits for them to exit. Peers added after
// Close are refused.
func (p *Peers) Close() {
	p.mu.Lock()
	p.closed = true
	for id, q := range p.queues {
		q.close()
		delete(p.queues, id)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Peers) enqueue(q *peerQueue, msg any) bool {
	select {
	case q.ch <- msg:
		return true
	default:
		p.dropped.Add(1)
		p.logger.Warn("outbound queue full, message dropped",
			zap.String("peer", q.peer.Id()),
			zap.String("type", typeName(msg)),
		)
		return false
	}
}

func (p *Peers) run(q *peerQueue) {
	defer p.wg.Done()
	for {
		select {
		case <-q.done:
			return
		case msg := <-q.ch:
			p.deliver(q.peer, msg)
		}
	}
}

func (p *Peers) deliver(peer Peer, msg any) {
	if p.timeout <= 0 {
		if err := peer.SendMessage(msg); err != nil {
			p.logger.Warn("send failed", zap.String("peer", peer.Id()), zap.Error(err))
		}
		return
	}

	errCh := make(chan error, 1)
	go func() { errCh <- peer.SendMessage(msg) }()

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()
	select {
	case err := <-errCh:
		if err != nil {
			p.logger.Warn("send failed", zap.String("peer", peer.Id()), zap.Error(err))
		}
	case <-timer.C:
		p.logger.Warn("send timed out",
			zap.String("peer", peer.Id()),
			zap.Duration("timeout", p.timeout),
		)
	}
}
