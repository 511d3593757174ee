package bus

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/automoto/doomerang-authority/logging"
	"go.uber.org/zap"
)

// Handler processes one fact. A returned error is logged; it never stops
// delivery to other handlers or of later facts.
type Handler func(Fact) error

type subscriber struct {
	name string
	fn   Handler
}

// Bus carries facts from the authoritative pipeline to any number of
// independent subscribers.
//
// Architecture:
//   - Publish appends to a single ordered buffer; safe for concurrent producers
//   - Drain hands the buffer to the caller and clears it; the bus keeps no history
//   - Dispatch delivers every fact to every subscriber of its kind, in publish
//     order, with each call isolated from the others
//
// Usage:
//  1. Create the bus: New(logger)
//  2. Register subscribers: Subscribe or On
//  3. Each tick, after the pipeline ran: Pump()
type Bus struct {
	mu      sync.Mutex
	pending []Fact

	subsMu sync.RWMutex
	subs   map[Kind][]subscriber

	failures atomic.Uint64
	logger   *zap.Logger
}

// New creates an empty bus.
func New(logger *zap.Logger) *Bus {
	logger = logging.OrNop(logger)
	return &Bus{
		subs:   make(map[Kind][]subscriber),
		logger: logger.Named("bus"),
	}
}

// Publish appends f to the current tick's buffer.
func (b *Bus) Publish(f Fact) {
	b.mu.Lock()
	b.pending = append(b.pending, f)
	b.mu.Unlock()
}

// Drain returns all facts published since the previous drain, in publish
// order, and empties the buffer.
func (b *Bus) Drain() []Fact {
	b.mu.Lock()
	facts := b.pending
	b.pending = nil
	b.mu.Unlock()
	return facts
}

// Len returns the number of facts waiting for the next drain.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Subscribe registers h for facts of the given kind. Handlers for the same
// kind run in registration order. name identifies the subscriber in logs.
func (b *Bus) Subscribe(kind Kind, name string, h Handler) {
	b.subsMu.Lock()
	b.subs[kind] = append(b.subs[kind], subscriber{name: name, fn: h})
	b.subsMu.Unlock()
}

// On registers a typed handler. The kind is taken from T.
func On[T Fact](b *Bus, name string, fn func(T) error) {
	var zero T
	b.Subscribe(zero.Kind(), name, func(f Fact) error {
		typed, ok := f.(T)
		if !ok {
			return fmt.Errorf("fact %s has type %T", f.Kind(), f)
		}
		return fn(typed)
	})
}

// SubscriberCount returns the number of subscribers for kind.
func (b *Bus) SubscriberCount(kind Kind) int {
	b.subsMu.RLock()
	defer b.subsMu.RUnlock()
	return len(b.subs[kind])
}

// Dispatch delivers facts to subscribers. All subscribers see a fact before
// the next fact is delivered.
func (b *Bus) Dispatch(facts []Fact) {
	for _, f := range facts {
		b.subsMu.RLock()
		subs := b.subs[f.Kind()]
		b.subsMu.RUnlock()

		for _, s := range subs {
			if err := b.call(s, f); err != nil {
				b.failures.Add(1)
				b.logger.Warn("subscriber failed",
					zap.String("subscriber", s.name),
					zap.Stringer("kind", f.Kind()),
					zap.String("fact", f.FactID().String()),
					zap.Error(err),
				)
			}
		}
	}
}

// Pump drains the buffer and dispatches it. Call it once per tick.
func (b *Bus) Pump() int {
	facts := b.Drain()
	b.Dispatch(facts)
	return len(facts)
}

// Failures returns the number of failed subscriber calls so far.
func (b *Bus) Failures() uint64 {
	return b.failures.Load()
}

func (b *Bus) call(s subscriber, f Fact) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.fn(f)
}
