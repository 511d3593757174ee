package archetypes

import (
	"github.com/automoto/doomerang-authority/components"
	"github.com/automoto/doomerang-authority/shared/netcomponents"
	"github.com/automoto/doomerang-authority/shared/netconfig"
	"github.com/automoto/doomerang-authority/tags"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/yohamta/donburi"
)

var (
	Combatant = newArchetype(
		tags.Damageable,
		components.Health,
		components.Life,
		components.DamageQueue,
		components.Position,
		netcomponents.NetHealth,
		netcomponents.NetLifeState,
		netcomponents.NetPosition,
	)
	Player = newArchetype(
		tags.Player,
		tags.Damageable,
		components.Health,
		components.Life,
		components.DamageQueue,
		components.Position,
		netcomponents.NetHealth,
		netcomponents.NetLifeState,
		netcomponents.NetPosition,
	)
)

type archetype struct {
	components []donburi.IComponentType
}

func newArchetype(cs ...donburi.IComponentType) *archetype {
	return &archetype{
		components: cs,
	}
}

// Spawn creates an alive entity with full health at pos.
func (a *archetype) Spawn(w donburi.World, maxHealth int, pos mgl64.Vec3, cs ...donburi.IComponentType) *donburi.Entry {
	e := w.Entry(w.Create(append(a.components, cs...)...))

	components.Health.SetValue(e, components.HealthData{Current: maxHealth, Max: maxHealth})
	components.Life.SetValue(e, components.LifeData{State: netconfig.Alive, LastAttacker: donburi.Null})
	components.Position.SetValue(e, pos)

	netcomponents.NetHealth.SetValue(e, netcomponents.NetHealthData{Current: maxHealth, Max: maxHealth})
	netcomponents.NetLifeState.SetValue(e, netcomponents.NetLifeStateData{State: netconfig.Alive})
	netcomponents.NetPosition.SetValue(e, netcomponents.NetPositionData{X: pos.X(), Y: pos.Y(), Z: pos.Z()})
	return e
}
