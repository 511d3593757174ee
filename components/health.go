package components

import "github.com/yohamta/donburi"

// HealthData is the health ledger entry of a combatant. The damage engine is
// its only writer during a tick; respawn restores Current to Max.
type HealthData struct {
	Current int
	Max     int
}

// Clamp pulls Current back into [0, Max].
func (h *HealthData) Clamp() {
	if h.Current < 0 {
		h.Current = 0
	}
	if h.Current > h.Max {
		h.Current = h.Max
	}
}

var Health = donburi.NewComponentType[HealthData]()
