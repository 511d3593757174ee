package systems

import (
	"fmt"

	"github.com/automoto/doomerang-authority/bus"
	"github.com/automoto/doomerang-authority/components"
	"github.com/automoto/doomerang-authority/config"
	"github.com/automoto/doomerang-authority/logging"
	"github.com/automoto/doomerang-authority/shared/netconfig"
	"github.com/automoto/doomerang-authority/tags"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/filter"
	"go.uber.org/zap"
)

var livingQuery = donburi.NewQuery(filter.And(
	filter.Contains(components.Health, components.Life),
	filter.Not(filter.Contains(tags.Dead)),
))

// LifeController drives the Alive -> Dead transition. The way back is owned
// by RespawnScheduler.
type LifeController struct {
	cfg     config.RespawnConfig
	role    Role
	workers int
	bus     *bus.Bus
	logger  *zap.Logger
}

func NewLifeController(cfg config.RespawnConfig, role Role, workers int, b *bus.Bus, logger *zap.Logger) *LifeController {
	logger = logging.OrNop(logger)
	return &LifeController{
		cfg:     cfg,
		role:    role,
		workers: workers,
		bus:     b,
		logger:  logger.Named("life"),
	}
}

// Evaluate kills every living entity whose health reached zero. Evaluating
// an entity that is already dead does nothing, so repeated or late health
// observations never produce a second death.
func (c *LifeController) Evaluate(w donburi.World, tick uint64) ([]bus.DeathFact, error) {
	if c.role != Authority {
		return nil, ErrNotAuthority
	}

	var entries []*donburi.Entry
	livingQuery.Each(w, func(entry *donburi.Entry) {
		entries = append(entries, entry)
	})

	dying := make([]bool, len(entries))
	err := forEach(c.workers, len(entries), func(i int) error {
		dying[i] = shouldDie(entries[i])
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("life pass: %w", err)
	}

	var victims []donburi.Entity
	for i, d := range dying {
		if d {
			victims = append(victims, entries[i].Entity())
		}
	}

	facts := make([]bus.DeathFact, 0, len(victims))
	for _, victim := range victims {
		facts = append(facts, c.kill(w, w.Entry(victim), tick))
	}
	return facts, nil
}

func shouldDie(entry *donburi.Entry) bool {
	hp := components.Health.Get(entry)
	life := components.Life.Get(entry)
	switch life.State {
	case netconfig.Alive:
		return hp.Current <= 0
	case netconfig.Dead:
		return false
	}
	return false
}

func (c *LifeController) kill(w donburi.World, entry *donburi.Entry, tick uint64) bus.DeathFact {
	life := components.Life.Get(entry)
	life.State = netconfig.Dead
	killer := life.LastAttacker

	entry.AddComponent(tags.Dead)
	donburi.Add(entry, components.RespawnTimer, &components.RespawnTimerData{
		Remaining: c.cfg.Duration,
	})
	donburi.Add(entry, components.Death, &components.DeathData{
		Tick:   tick,
		Killer: killer,
	})
	MirrorEntry(entry)

	var pos mgl64.Vec3
	if entry.HasComponent(components.Position) {
		pos = *components.Position.Get(entry)
	}

	fact := bus.DeathFact{
		ID:          bus.NewFactID(),
		Tick:        tick,
		Victim:      entry.Entity(),
		Killer:      killer,
		VictimNetID: networkID(w, entry.Entity()),
		KillerNetID: networkID(w, killer),
		Position:    pos,
		RespawnIn:   c.cfg.Duration,
	}
	c.bus.Publish(fact)

	c.logger.Info("entity died",
		zap.Uint("victim", fact.VictimNetID),
		zap.Uint("killer", fact.KillerNetID),
		zap.Uint64("tick", tick),
		zap.Float64("respawn_in", c.cfg.Duration),
	)
	return fact
}
