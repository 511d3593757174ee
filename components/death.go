package components

import "github.com/yohamta/donburi"

// DeathData marks an entity that died and records when and to whom. It is
// removed together with the respawn timer when the entity comes back.
type DeathData struct {
	Tick   uint64
	Killer donburi.Entity
}

var Death = donburi.NewComponentType[DeathData]()
