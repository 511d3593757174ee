package netcomponents

import (
	"github.com/automoto/doomerang-authority/shared/netconfig"
	"github.com/yohamta/donburi"
)

// NetLifeStateData is the replicated mirror of an entity's life state. Only
// the authority writes it; clients receive it through snapshots.
type NetLifeStateData struct {
	State            netconfig.LifeState
	RespawnRemaining float64 // seconds, 0 while alive
}

var NetLifeState = donburi.NewComponentType[NetLifeStateData]()
