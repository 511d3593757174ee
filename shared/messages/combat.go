package messages

import "github.com/go-gl/mathgl/mgl64"

// RequestDamage is sent by a client asking the authority to damage a target.
// The server treats every field as untrusted and re-validates it.
type RequestDamage struct {
	TargetID   uint // NetworkId of target
	AttackerID uint // NetworkId the client claims to attack as
	Amount     float32
	Direction  mgl64.Vec3
}

// BroadcastDamage is sent to every peer, the requester included, after the
// authority applied a hit. FactID is unique per applied command; receivers
// use it to run one-shot effects at most once.
type BroadcastDamage struct {
	FactID     string
	TargetID   uint
	AttackerID uint // netconfig.EnvironmentID for world damage
	Amount     float32
	Direction  mgl64.Vec3
	Position   mgl64.Vec3 // target position when hit, for indicators
	Health     int        // target health after the hit
	Lethal     bool
}

// BroadcastDeath is sent to every peer when a target transitions to dead.
type BroadcastDeath struct {
	FactID   string
	VictimID uint
	KillerID uint // netconfig.EnvironmentID if environmental
	Position mgl64.Vec3
	Respawn  float64 // seconds until respawn
}
