package systems

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/automoto/doomerang-authority/bus"
	"github.com/automoto/doomerang-authority/components"
	"github.com/automoto/doomerang-authority/config"
	"github.com/automoto/doomerang-authority/logging"
	"github.com/automoto/doomerang-authority/shared/netconfig"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/leap-fish/necs/esync"
	"github.com/yohamta/donburi"
	"go.uber.org/zap"
)

// AppliedResult describes one damage command that changed the ledger.
type AppliedResult struct {
	Command components.DamageCommand
	Fact    bus.DamageFact
}

// DamageEngine validates damage commands and applies them to the health
// ledger. Every command is consumed by the same step that reads it.
type DamageEngine struct {
	cfg    config.CombatConfig
	role   Role
	bus    *bus.Bus
	logger *zap.Logger

	seq      atomic.Uint64
	applied  atomic.Uint64
	rejected atomic.Uint64
}

func NewDamageEngine(cfg config.CombatConfig, role Role, b *bus.Bus, logger *zap.Logger) *DamageEngine {
	return &DamageEngine{
		cfg:    cfg,
		role:   role,
		bus:    b,
		logger: logging.OrNop(logger).Named("damage"),
	}
}

// Validate checks the amount of cmd. It does not look at the world.
func (e *DamageEngine) Validate(cmd components.DamageCommand) error {
	a := cmd.Amount
	if math.IsNaN(a) || math.IsInf(a, 0) || a <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidAmount, a)
	}
	if e.cfg.MaxDamagePerHit > 0 && a > e.cfg.MaxDamagePerHit {
		return fmt.Errorf("%w: %v > %v", ErrAmountTooLarge, a, e.cfg.MaxDamagePerHit)
	}
	return nil
}

// Enqueue validates cmd and queues it on its target for the next damage
// pass. Rejected commands are never queued. Call it from the tick goroutine.
func (e *DamageEngine) Enqueue(w donburi.World, cmd components.DamageCommand) error {
	if e.role != Authority {
		return ErrNotAuthority
	}
	if err := e.Validate(cmd); err != nil {
		e.reject(cmd, err)
		return err
	}
	if !w.Valid(cmd.Target) {
		e.reject(cmd, ErrTargetMissing)
		return ErrTargetMissing
	}
	entry := w.Entry(cmd.Target)
	if !hasLedger(entry) {
		e.reject(cmd, ErrTargetMissing)
		return fmt.Errorf("%w: entity has no health ledger", ErrTargetMissing)
	}

	cmd.Seq = e.seq.Add(1)
	components.DamageQueue.Get(entry).Push(cmd)
	return nil
}

// Apply applies a single command to entry and publishes its DamageFact.
// A non-nil error means nothing changed and nothing was published.
func (e *DamageEngine) Apply(entry *donburi.Entry, cmd components.DamageCommand, tick uint64) (AppliedResult, error) {
	if e.role != Authority {
		return AppliedResult{}, ErrNotAuthority
	}
	if entry.Entity() != cmd.Target || !hasLedger(entry) {
		e.reject(cmd, ErrTargetMissing)
		return AppliedResult{}, ErrTargetMissing
	}
	res, err := e.apply(entry, cmd, tick)
	if err != nil {
		return AppliedResult{}, err
	}
	e.finish(entry.World, &res)
	e.bus.Publish(res.Fact)
	return res, nil
}

// Process runs one damage pass over every entity with queued commands.
// Each entity's queue is taken and applied by exactly one worker; facts are
// published afterwards in entity order, and in arrival order per entity.
func (e *DamageEngine) Process(w donburi.World, tick uint64) ([]AppliedResult, error) {
	if e.role != Authority {
		return nil, ErrNotAuthority
	}

	var entries []*donburi.Entry
	components.DamageQueue.Each(w, func(entry *donburi.Entry) {
		if components.DamageQueue.Get(entry).Len() > 0 {
			entries = append(entries, entry)
		}
	})
	if len(entries) == 0 {
		return nil, nil
	}

	batches := make([][]AppliedResult, len(entries))
	err := forEach(e.cfg.Workers, len(entries), func(i int) error {
		entry := entries[i]
		for _, cmd := range components.DamageQueue.Get(entry).Take() {
			res, err := e.apply(entry, cmd, tick)
			if err != nil {
				continue
			}
			batches[i] = append(batches[i], res)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("damage pass: %w", err)
	}

	var out []AppliedResult
	for _, batch := range batches {
		for i := range batch {
			e.finish(w, &batch[i])
			e.bus.Publish(batch[i].Fact)
			out = append(out, batch[i])
		}
	}
	return out, nil
}

// Stats returns the number of applied and rejected commands so far.
func (e *DamageEngine) Stats() (applied, rejected uint64) {
	return e.applied.Load(), e.rejected.Load()
}

// apply mutates only the health and life data of entry; it never changes
// the archetype, so it can run on a per-entity worker.
func (e *DamageEngine) apply(entry *donburi.Entry, cmd components.DamageCommand, tick uint64) (AppliedResult, error) {
	if err := e.Validate(cmd); err != nil {
		e.reject(cmd, err)
		return AppliedResult{}, err
	}

	hp := components.Health.Get(entry)
	life := components.Life.Get(entry)
	if life.State == netconfig.Dead || hp.Current <= 0 {
		e.reject(cmd, ErrTargetDead)
		return AppliedResult{}, ErrTargetDead
	}

	amount := components.HitPoints(cmd.Amount)
	before := hp.Current
	hp.Current = before - amount
	hp.Clamp()
	life.LastAttacker = cmd.Attacker

	self := cmd.SelfInflicted()
	if self {
		e.logger.Warn("self-inflicted damage",
			zap.Uint64("seq", cmd.Seq),
			zap.Float64("amount", cmd.Amount),
		)
	}

	var pos mgl64.Vec3
	if entry.HasComponent(components.Position) {
		pos = *components.Position.Get(entry)
	}
	e.applied.Add(1)
	return AppliedResult{
		Command: cmd,
		Fact: bus.DamageFact{
			Tick:          tick,
			Target:        cmd.Target,
			Attacker:      cmd.Attacker,
			Requested:     cmd.Amount,
			Amount:        amount,
			Direction:     cmd.Direction,
			Position:      pos,
			HealthBefore:  before,
			HealthAfter:   hp.Current,
			SelfInflicted: self,
		},
	}, nil
}

// finish stamps the fact id and network ids. It runs on the tick goroutine
// because resolving the attacker touches another entity.
func (e *DamageEngine) finish(w donburi.World, res *AppliedResult) {
	res.Fact.ID = bus.NewFactID()
	res.Fact.TargetNetID = networkID(w, res.Fact.Target)
	res.Fact.AttackerNetID = networkID(w, res.Fact.Attacker)
}

func (e *DamageEngine) reject(cmd components.DamageCommand, err error) {
	e.rejected.Add(1)

	// Hits landing on a corpse are routine; everything else is worth a look.
	level := zap.WarnLevel
	if errors.Is(err, ErrTargetDead) {
		level = zap.DebugLevel
	}
	e.logger.Log(level, "damage command rejected",
		zap.Uint64("seq", cmd.Seq),
		zap.Float64("amount", cmd.Amount),
		zap.Uint8("origin", uint8(cmd.Origin)),
		zap.Error(err),
	)
}

func hasLedger(entry *donburi.Entry) bool {
	return entry.HasComponent(components.DamageQueue) &&
		entry.HasComponent(components.Health) &&
		entry.HasComponent(components.Life)
}

// networkID returns the necs network id of entity, or
// netconfig.EnvironmentID when it has none or no longer exists.
func networkID(w donburi.World, entity donburi.Entity) uint {
	if entity == donburi.Null || !w.Valid(entity) {
		return netconfig.EnvironmentID
	}
	if nid := esync.GetNetworkId(w.Entry(entity)); nid != nil {
		return uint(*nid)
	}
	return netconfig.EnvironmentID
}
