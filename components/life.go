package components

import (
	"github.com/automoto/doomerang-authority/shared/netconfig"
	"github.com/yohamta/donburi"
)

// LifeData holds the authoritative life state. LastAttacker is the attacker
// of the most recent applied hit and is used for kill credit.
type LifeData struct {
	State        netconfig.LifeState
	LastAttacker donburi.Entity
}

var Life = donburi.NewComponentType[LifeData]()
