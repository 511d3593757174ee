// Package presentation holds the bus subscribers that turn combat facts into
// player-facing effects. None of them can reach authoritative state: they
// only see the facts they are handed.
package presentation

import (
	"fmt"

	"github.com/automoto/doomerang-authority/bus"
	"github.com/go-gl/mathgl/mgl64"
)

// IndicatorKind selects the look of a floating combat indicator.
type IndicatorKind uint8

const (
	IndicatorHit IndicatorKind = iota
	IndicatorLethal
	IndicatorSelf
	IndicatorDeath
)

func (k IndicatorKind) String() string {
	switch k {
	case IndicatorHit:
		return "hit"
	case IndicatorLethal:
		return "lethal"
	case IndicatorSelf:
		return "self"
	case IndicatorDeath:
		return "death"
	}
	return fmt.Sprintf("IndicatorKind(%d)", uint8(k))
}

// Presenter draws indicators. It is provided by the UI layer.
type Presenter interface {
	SpawnIndicator(pos mgl64.Vec3, amount float64, kind IndicatorKind) error
}

// IndicatorSpawner shows one indicator per damage or death fact.
type IndicatorSpawner struct {
	presenter Presenter
	once      *bus.Once
}

func NewIndicatorSpawner(p Presenter) *IndicatorSpawner {
	return &IndicatorSpawner{
		presenter: p,
		once:      bus.NewOnce(0),
	}
}

// Register subscribes the spawner to b.
func (s *IndicatorSpawner) Register(b *bus.Bus) {
	bus.On(b, "indicator", s.onDamage)
	bus.On(b, "indicator", s.onDeath)
}

func (s *IndicatorSpawner) onDamage(f bus.DamageFact) error {
	if !s.once.Trigger(f.ID) {
		return nil
	}
	kind := IndicatorHit
	switch {
	case f.SelfInflicted:
		kind = IndicatorSelf
	case f.Lethal():
		kind = IndicatorLethal
	}
	if err := s.presenter.SpawnIndicator(f.Position, float64(f.Amount), kind); err != nil {
		return fmt.Errorf("spawn %s indicator: %w", kind, err)
	}
	return nil
}

func (s *IndicatorSpawner) onDeath(f bus.DeathFact) error {
	if !s.once.Trigger(f.ID) {
		return nil
	}
	if err := s.presenter.SpawnIndicator(f.Position, 0, IndicatorDeath); err != nil {
		return fmt.Errorf("spawn death indicator: %w", err)
	}
	return nil
}
