package core

import (
	"fmt"
	"os"
	"sync"

	"github.com/automoto/doomerang-authority/logging"
	"github.com/automoto/doomerang-authority/shared/leveldata"
	"github.com/automoto/doomerang-authority/systems"
	"github.com/automoto/doomerang-authority/tags"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/solarlune/resolv"
	"go.uber.org/zap"
)

// Probe size used when checking that a spawn point stands on solid ground.
const (
	probeWidth  = 16.0
	probeHeight = 32.0

	searchStep    = 32.0
	maxSearchDist = 512.0
)

// Level is the server's collision space for one map. It picks respawn
// positions that stand on ground and avoid dead zones.
type Level struct {
	Name   string
	Space  *resolv.Space
	Spawns []mgl64.Vec3

	mu       sync.Mutex
	next     int
	fallback mgl64.Vec3
	logger   *zap.Logger
}

// NewLevel builds a resolv space from parsed level data.
func NewLevel(data *leveldata.CollisionData, fallback mgl64.Vec3, logger *zap.Logger) *Level {
	logger = logging.OrNop(logger)
	space := resolv.NewSpace(data.MapWidth, data.MapHeight, 16, 16)

	for _, r := range data.Solids {
		var obj *resolv.Object
		switch r.Slope {
		case tags.Slope45UpRight, tags.Slope45UpLeft:
			obj = resolv.NewObject(r.X, r.Y, r.W, r.H, tags.ResolvRamp, r.Slope)
		default:
			obj = resolv.NewObject(r.X, r.Y, r.W, r.H, tags.ResolvSolid)
		}
		obj.SetShape(resolv.NewRectangle(0, 0, r.W, r.H))
		space.Add(obj)
	}
	for _, r := range data.DeadZones {
		space.Add(resolv.NewObject(r.X, r.Y, r.W, r.H, tags.ResolvDeadZone))
	}

	spawns := make([]mgl64.Vec3, 0, len(data.SpawnPoints))
	for _, sp := range data.SpawnPoints {
		spawns = append(spawns, mgl64.Vec3{sp.X, sp.Y, 0})
	}

	l := &Level{
		Name:     data.Name,
		Space:    space,
		Spawns:   spawns,
		fallback: fallback,
		logger:   logger.Named("level"),
	}
	l.logger.Info("level loaded",
		zap.String("name", data.Name),
		zap.Int("solids", len(data.Solids)),
		zap.Int("dead_zones", len(data.DeadZones)),
		zap.Int("spawns", len(spawns)),
	)
	return l
}

// LoadSpawns returns the spawn provider for the configured level. With no
// levels directory every entity respawns at fallback.
func LoadSpawns(dir, name string, fallback mgl64.Vec3, logger *zap.Logger) (systems.SpawnPointProvider, error) {
	if dir == "" {
		return systems.FixedSpawn(fallback), nil
	}
	levels, names, err := leveldata.LoadDir(os.DirFS(dir), ".")
	if err != nil {
		return nil, fmt.Errorf("load levels from %s: %w", dir, err)
	}
	data, err := leveldata.Pick(levels, names, name)
	if err != nil {
		return nil, err
	}
	return NewLevel(data, fallback, logger), nil
}

// SelectSpawnPosition cycles through the level's spawn points and returns
// the first safe one. If none is safe it searches near the first spawn, and
// as a last resort returns the fallback position.
func (l *Level) SelectSpawnPosition() mgl64.Vec3 {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.Spawns) == 0 {
		return l.fallback
	}
	for i := range l.Spawns {
		sp := l.Spawns[(l.next+i)%len(l.Spawns)]
		if l.isSafe(sp.X(), sp.Y()) {
			l.next = (l.next + i + 1) % len(l.Spawns)
			return sp
		}
	}

	first := l.Spawns[0]
	if x, y, ok := l.nearestSafeGround(first.X(), first.Y()); ok {
		return mgl64.Vec3{x, y, 0}
	}
	l.logger.Warn("no safe spawn found, using fallback",
		zap.Float64("x", l.fallback.X()),
		zap.Float64("y", l.fallback.Y()),
	)
	return l.fallback
}

func (l *Level) isSafe(x, y float64) bool {
	probe := resolv.NewObject(x, y, probeWidth, probeHeight)
	l.Space.Add(probe)
	defer l.Space.Remove(probe)
	return l.standsOnGround(probe)
}

func (l *Level) standsOnGround(probe *resolv.Object) bool {
	if probe.Check(0, 0, tags.ResolvDeadZone) != nil {
		return false
	}
	return probe.Check(0, 2, tags.ResolvSolid, tags.ResolvRamp) != nil
}

func (l *Level) nearestSafeGround(startX, startY float64) (x, y float64, found bool) {
	probe := resolv.NewObject(startX, startY, probeWidth, probeHeight)
	l.Space.Add(probe)
	defer l.Space.Remove(probe)

	for _, dir := range []float64{-1, 1} {
		for dist := searchStep; dist <= maxSearchDist; dist += searchStep {
			cx := startX + dist*dir
			for cy := startY - 64; cy <= startY+128; cy += 16 {
				probe.X, probe.Y = cx, cy
				probe.Update()
				if l.standsOnGround(probe) {
					return cx, cy, true
				}
			}
		}
	}
	return 0, 0, false
}
