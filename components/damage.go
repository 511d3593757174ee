package components

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/yohamta/donburi"
)

// Origin tells where a damage command came from.
type Origin uint8

const (
	OriginLocal  Origin = iota // server-side simulation (hazards, scripted damage)
	OriginRemote               // validated RequestDamage from a peer
)

// DamageCommand asks the engine to hurt Target. It is single use: once taken
// from a queue it no longer exists anywhere the engine can find it again.
type DamageCommand struct {
	Seq       uint64 // arrival order, assigned on enqueue
	Target    donburi.Entity
	Attacker  donburi.Entity // donburi.Null for environment damage
	Amount    float64
	Direction mgl64.Vec3
	Origin    Origin
}

// SelfInflicted reports whether the attacker is the target.
func (c DamageCommand) SelfInflicted() bool {
	return c.Attacker != donburi.Null && c.Attacker == c.Target
}

// MaxHitPoints bounds the integral magnitude of a single hit.
const MaxHitPoints = math.MaxInt32

// HitPoints converts a validated positive amount to whole health points,
// rounding up so any accepted hit removes at least one point. Amounts beyond
// MaxHitPoints are saturated before conversion.
func HitPoints(amount float64) int {
	if amount >= MaxHitPoints {
		return MaxHitPoints
	}
	return int(math.Ceil(amount))
}

// DamageQueueData holds the commands waiting for the next damage pass, in
// arrival order. It is owned by exactly one worker while a tick runs.
type DamageQueueData struct {
	pending []DamageCommand
}

// Push appends cmd to the queue.
func (q *DamageQueueData) Push(cmd DamageCommand) {
	q.pending = append(q.pending, cmd)
}

// Take removes and returns every pending command in one step. A command
// returned here is never returned again.
func (q *DamageQueueData) Take() []DamageCommand {
	cmds := q.pending
	q.pending = nil
	return cmds
}

// Len returns the number of pending commands.
func (q *DamageQueueData) Len() int {
	return len(q.pending)
}

var DamageQueue = donburi.NewComponentType[DamageQueueData]()
