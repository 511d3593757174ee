package systems

import (
	"fmt"

	"github.com/automoto/doomerang-authority/bus"
	"github.com/automoto/doomerang-authority/config"
	"github.com/yohamta/donburi"
	"go.uber.org/zap"
)

// TickReport summarizes one authoritative tick.
type TickReport struct {
	Tick      uint64
	Applied   []AppliedResult
	Deaths    []bus.DeathFact
	Respawned []donburi.Entity
}

// Pipeline runs the authoritative combat passes in their fixed order:
// damage, then death, then respawn, then mirroring. Draining the bus is left
// to the caller so that it runs as its own stage.
type Pipeline struct {
	Engine  *DamageEngine
	Life    *LifeController
	Respawn *RespawnScheduler
	Bus     *bus.Bus

	role Role
	tick uint64
}

func NewPipeline(combat config.CombatConfig, respawn config.RespawnConfig, role Role, b *bus.Bus, spawns SpawnPointProvider, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		Engine:  NewDamageEngine(combat, role, b, logger),
		Life:    NewLifeController(respawn, role, combat.Workers, b, logger),
		Respawn: NewRespawnScheduler(respawn, role, combat.Workers, spawns, logger),
		Bus:     b,
		role:    role,
	}
}

// Role returns the role the pipeline was built with.
func (p *Pipeline) Role() Role {
	return p.role
}

// Tick advances the simulation by dt seconds.
func (p *Pipeline) Tick(w donburi.World, dt float64) (TickReport, error) {
	if p.role != Authority {
		return TickReport{}, ErrNotAuthority
	}
	p.tick++
	report := TickReport{Tick: p.tick}

	applied, err := p.Engine.Process(w, p.tick)
	if err != nil {
		return report, fmt.Errorf("tick %d: %w", p.tick, err)
	}
	report.Applied = applied

	deaths, err := p.Life.Evaluate(w, p.tick)
	if err != nil {
		return report, fmt.Errorf("tick %d: %w", p.tick, err)
	}
	report.Deaths = deaths

	respawned, err := p.Respawn.Advance(w, dt, p.tick)
	if err != nil {
		return report, fmt.Errorf("tick %d: %w", p.tick, err)
	}
	report.Respawned = respawned

	ReplicateAll(w)
	return report, nil
}
