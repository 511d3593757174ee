package network

import (
	"fmt"

	"github.com/automoto/doomerang-authority/bus"
	"github.com/automoto/doomerang-authority/components"
	"github.com/automoto/doomerang-authority/logging"
	"github.com/automoto/doomerang-authority/shared/messages"
	"github.com/automoto/doomerang-authority/shared/netconfig"
	"github.com/oklog/ulid/v2"
	"github.com/yohamta/donburi"
	"go.uber.org/zap"
)

// BroadcastFilter turns server broadcasts into facts on the client's local
// bus. A broadcast carrying a fact id that was already seen is dropped, so a
// resent or duplicated message never replays an effect.
type BroadcastFilter struct {
	bus     *bus.Bus
	replica *Replica
	once    *bus.Once
	logger  *zap.Logger
}

// NewBroadcastFilter publishes to b. replica may be nil; it is used to
// resolve network ids to local entities.
func NewBroadcastFilter(b *bus.Bus, replica *Replica, logger *zap.Logger) *BroadcastFilter {
	logger = logging.OrNop(logger)
	return &BroadcastFilter{
		bus:     b,
		replica: replica,
		once:    bus.NewOnce(0),
		logger:  logger.Named("broadcast"),
	}
}

// Damage publishes msg as a DamageFact. It returns false for duplicates and
// malformed messages.
func (f *BroadcastFilter) Damage(msg messages.BroadcastDamage) bool {
	id, ok := f.accept(msg.FactID)
	if !ok {
		return false
	}

	amount := components.HitPoints(float64(msg.Amount))
	before := msg.Health + amount
	if msg.Lethal {
		before = max(1, before)
	}
	f.bus.Publish(bus.DamageFact{
		ID:            id,
		Target:        f.entity(msg.TargetID),
		Attacker:      f.entity(msg.AttackerID),
		TargetNetID:   msg.TargetID,
		AttackerNetID: msg.AttackerID,
		Requested:     float64(msg.Amount),
		Amount:        amount,
		Direction:     msg.Direction,
		Position:      msg.Position,
		HealthBefore:  before,
		HealthAfter:   msg.Health,
		SelfInflicted: msg.AttackerID != netconfig.EnvironmentID && msg.AttackerID == msg.TargetID,
	})
	return true
}

// Death publishes msg as a DeathFact. It returns false for duplicates and
// malformed messages.
func (f *BroadcastFilter) Death(msg messages.BroadcastDeath) bool {
	id, ok := f.accept(msg.FactID)
	if !ok {
		return false
	}
	f.bus.Publish(bus.DeathFact{
		ID:          id,
		Victim:      f.entity(msg.VictimID),
		Killer:      f.entity(msg.KillerID),
		VictimNetID: msg.VictimID,
		KillerNetID: msg.KillerID,
		Position:    msg.Position,
		RespawnIn:   msg.Respawn,
	})
	return true
}

func (f *BroadcastFilter) accept(factID string) (ulid.ULID, bool) {
	id, err := ulid.Parse(factID)
	if err != nil {
		f.logger.Warn("broadcast with invalid fact id dropped",
			zap.String("fact", factID),
			zap.Error(fmt.Errorf("parse fact id: %w", err)),
		)
		return ulid.ULID{}, false
	}
	if !f.once.Trigger(id) {
		f.logger.Debug("duplicate broadcast dropped", zap.String("fact", factID))
		return ulid.ULID{}, false
	}
	return id, true
}

func (f *BroadcastFilter) entity(id uint) donburi.Entity {
	if f.replica == nil {
		return donburi.Null
	}
	return f.replica.Entity(id)
}

// Feed passes drained broadcasts through the filter in order and returns
// how many were published.
func (f *BroadcastFilter) Feed(msgs []any) int {
	n := 0
	for _, m := range msgs {
		var ok bool
		switch v := m.(type) {
		case messages.BroadcastDamage:
			ok = f.Damage(v)
		case messages.BroadcastDeath:
			ok = f.Death(v)
		default:
			f.logger.Debug("ignoring unknown broadcast", zap.String("type", fmt.Sprintf("%T", m)))
		}
		if ok {
			n++
		}
	}
	return n
}
