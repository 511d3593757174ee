package tags

import "github.com/yohamta/donburi"

var (
	Player     = donburi.NewTag().SetName("Player")
	Damageable = donburi.NewTag().SetName("Damageable")
	Dead       = donburi.NewTag().SetName("Dead")
)

// Resolv tags for spawn safety probes
const (
	ResolvSolid    = "solid"
	ResolvRamp     = "ramp"
	ResolvDeadZone = "deadzone"

	// Slope type tags
	Slope45UpRight = "45_up_right"
	Slope45UpLeft  = "45_up_left"
)
