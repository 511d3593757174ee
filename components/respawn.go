package components

import "github.com/yohamta/donburi"

// RespawnTimerData exists only while an entity is dead. Its presence is the
// sole signal that the entity is awaiting respawn.
type RespawnTimerData struct {
	Remaining float64 // seconds
}

var RespawnTimer = donburi.NewComponentType[RespawnTimerData]()
