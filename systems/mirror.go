package systems

import (
	"github.com/automoto/doomerang-authority/components"
	"github.com/automoto/doomerang-authority/shared/netcomponents"
	"github.com/automoto/doomerang-authority/tags"
	"github.com/yohamta/donburi"
)

// MirrorEntry copies the authoritative state of entry into the replicated
// components that necs sends to clients. Entries without a replicated
// component are left alone. It never changes the entry's archetype, so it is
// safe to call from a per-entity worker.
func MirrorEntry(entry *donburi.Entry) {
	if entry.HasComponent(netcomponents.NetLifeState) && entry.HasComponent(components.Life) {
		m := netcomponents.NetLifeState.Get(entry)
		m.State = components.Life.Get(entry).State
		m.RespawnRemaining = 0
		if entry.HasComponent(components.RespawnTimer) {
			m.RespawnRemaining = components.RespawnTimer.Get(entry).Remaining
		}
	}

	if entry.HasComponent(netcomponents.NetHealth) && entry.HasComponent(components.Health) {
		hp := components.Health.Get(entry)
		netcomponents.NetHealth.SetValue(entry, netcomponents.NetHealthData{
			Current: hp.Current,
			Max:     hp.Max,
		})
	}

	if entry.HasComponent(netcomponents.NetPosition) && entry.HasComponent(components.Position) {
		pos := components.Position.Get(entry)
		netcomponents.NetPosition.SetValue(entry, netcomponents.NetPositionData{
			X: pos.X(),
			Y: pos.Y(),
			Z: pos.Z(),
		})
	}
}

// ReplicateAll mirrors every damageable entity.
func ReplicateAll(w donburi.World) {
	tags.Damageable.Each(w, MirrorEntry)
}
