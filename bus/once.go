package bus

import (
	"sync"

	"github.com/oklog/ulid/v2"
)

// Once remembers recently seen fact ids so that a fact delivered more than
// once triggers its one-shot effect only the first time. It keeps at most
// capacity ids and forgets the oldest first.
type Once struct {
	mu       sync.Mutex
	seen     map[ulid.ULID]struct{}
	order    []ulid.ULID
	next     int
	capacity int
}

// NewOnce returns a Once that remembers up to capacity ids.
func NewOnce(capacity int) *Once {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Once{
		seen:     make(map[ulid.ULID]struct{}, capacity),
		order:    make([]ulid.ULID, 0, capacity),
		capacity: capacity,
	}
}

// Trigger reports whether id has not been seen yet, and marks it seen.
func (o *Once) Trigger(id ulid.ULID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.seen[id]; ok {
		return false
	}
	if len(o.order) < o.capacity {
		o.order = append(o.order, id)
	} else {
		delete(o.seen, o.order[o.next])
		o.order[o.next] = id
		o.next = (o.next + 1) % o.capacity
	}
	o.seen[id] = struct{}{}
	return true
}

// Len returns the number of remembered ids.
func (o *Once) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.seen)
}
