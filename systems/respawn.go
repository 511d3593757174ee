package systems

import (
	"fmt"
	"math"

	"github.com/automoto/doomerang-authority/components"
	"github.com/automoto/doomerang-authority/config"
	"github.com/automoto/doomerang-authority/logging"
	"github.com/automoto/doomerang-authority/shared/netconfig"
	"github.com/automoto/doomerang-authority/tags"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/yohamta/donburi"
	"go.uber.org/zap"
)

// respawnEpsilon absorbs the rounding error of repeated float subtraction so
// that a timer of R seconds expires after ceil(R/dt) ticks.
const respawnEpsilon = 1e-9

// SpawnPointProvider chooses where a respawning entity reappears.
type SpawnPointProvider interface {
	SelectSpawnPosition() mgl64.Vec3
}

// FixedSpawn always returns the same position.
type FixedSpawn mgl64.Vec3

func (f FixedSpawn) SelectSpawnPosition() mgl64.Vec3 {
	return mgl64.Vec3(f)
}

// RespawnScheduler counts down respawn timers and brings dead entities back.
type RespawnScheduler struct {
	cfg     config.RespawnConfig
	role    Role
	workers int
	spawns  SpawnPointProvider
	logger  *zap.Logger
}

func NewRespawnScheduler(cfg config.RespawnConfig, role Role, workers int, spawns SpawnPointProvider, logger *zap.Logger) *RespawnScheduler {
	logger = logging.OrNop(logger)
	return &RespawnScheduler{
		cfg:     cfg,
		role:    role,
		workers: workers,
		spawns:  spawns,
		logger:  logger.Named("respawn"),
	}
}

// SanitizeDelta returns dt, or 0 when dt is NaN, infinite, negative or above
// the configured maximum.
func (s *RespawnScheduler) SanitizeDelta(dt float64) float64 {
	if math.IsNaN(dt) || math.IsInf(dt, 0) || dt < 0 || (s.cfg.MaxDelta > 0 && dt > s.cfg.MaxDelta) {
		s.logger.Warn("invalid tick delta treated as zero", zap.Float64("dt", dt))
		return 0
	}
	return dt
}

// Advance decrements every respawn timer by dt and respawns the entities
// whose timer ran out. Timers created during this tick are not decremented.
// It returns the respawned entities.
func (s *RespawnScheduler) Advance(w donburi.World, dt float64, tick uint64) ([]donburi.Entity, error) {
	if s.role != Authority {
		return nil, ErrNotAuthority
	}
	dt = s.SanitizeDelta(dt)

	var entries []*donburi.Entry
	components.RespawnTimer.Each(w, func(entry *donburi.Entry) {
		entries = append(entries, entry)
	})

	ready := make([]bool, len(entries))
	err := forEach(s.workers, len(entries), func(i int) error {
		entry := entries[i]
		if entry.HasComponent(components.Death) && components.Death.Get(entry).Tick == tick {
			return nil
		}
		timer := components.RespawnTimer.Get(entry)
		timer.Remaining = max(0, timer.Remaining-dt)
		if timer.Remaining <= respawnEpsilon {
			timer.Remaining = 0
			ready[i] = true
		}
		MirrorEntry(entry)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("respawn pass: %w", err)
	}

	var due []donburi.Entity
	for i, r := range ready {
		if r {
			due = append(due, entries[i].Entity())
		}
	}
	for _, entity := range due {
		s.respawn(w.Entry(entity))
	}
	return due, nil
}

func (s *RespawnScheduler) respawn(entry *donburi.Entry) {
	hp := components.Health.Get(entry)
	hp.Current = hp.Max

	life := components.Life.Get(entry)
	life.State = netconfig.Alive
	life.LastAttacker = donburi.Null

	donburi.Remove[components.RespawnTimerData](entry, components.RespawnTimer)
	if entry.HasComponent(components.Death) {
		donburi.Remove[components.DeathData](entry, components.Death)
	}
	if entry.HasComponent(tags.Dead) {
		entry.RemoveComponent(tags.Dead)
	}

	if s.spawns != nil && entry.HasComponent(components.Position) {
		components.Position.SetValue(entry, s.spawns.SelectSpawnPosition())
	}
	MirrorEntry(entry)

	pos := mgl64.Vec3{}
	if entry.HasComponent(components.Position) {
		pos = *components.Position.Get(entry)
	}
	s.logger.Debug("entity respawned",
		zap.Float64("x", pos.X()),
		zap.Float64("y", pos.Y()),
		zap.Float64("z", pos.Z()),
	)
}
