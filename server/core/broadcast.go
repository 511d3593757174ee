package core

import (
	"fmt"

	"github.com/automoto/doomerang-authority/bus"
	"github.com/automoto/doomerang-authority/shared/messages"
)

// RegisterBroadcasts forwards every damage and death fact to all peers,
// the peer that requested the hit included.
func RegisterBroadcasts(b *bus.Bus, peers *Peers) {
	bus.On(b, "broadcast", func(f bus.DamageFact) error {
		peers.Broadcast(DamageMessage(f))
		return nil
	})
	bus.On(b, "broadcast", func(f bus.DeathFact) error {
		peers.Broadcast(DeathMessage(f))
		return nil
	})
}

// DamageMessage converts a fact into its wire form.
func DamageMessage(f bus.DamageFact) messages.BroadcastDamage {
	return messages.BroadcastDamage{
		FactID:     f.ID.String(),
		TargetID:   f.TargetNetID,
		AttackerID: f.AttackerNetID,
		Amount:     float32(f.Amount),
		Direction:  f.Direction,
		Position:   f.Position,
		Health:     f.HealthAfter,
		Lethal:     f.Lethal(),
	}
}

// DeathMessage converts a fact into its wire form.
func DeathMessage(f bus.DeathFact) messages.BroadcastDeath {
	return messages.BroadcastDeath{
		FactID:   f.ID.String(),
		VictimID: f.VictimNetID,
		KillerID: f.KillerNetID,
		Position: f.Position,
		Respawn:  f.RespawnIn,
	}
}

func typeName(msg any) string {
	return fmt.Sprintf("%T", msg)
}
