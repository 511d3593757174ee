// Package netconfig defines lightweight types shared between client and server
// for network serialization. It must have zero dependencies on donburi, necs or
// any other library so both binaries can import it freely.
package netconfig

import "fmt"

// LifeState is the authoritative life state of a combatant. It is a closed
// set: every switch over it must handle Alive and Dead and nothing else.
type LifeState uint8

const (
	Alive LifeState = iota
	Dead
)

func (s LifeState) String() string {
	switch s {
	case Alive:
		return "alive"
	case Dead:
		return "dead"
	}
	return fmt.Sprintf("LifeState(%d)", uint8(s))
}

// Valid reports whether s is one of the declared states.
func (s LifeState) Valid() bool {
	switch s {
	case Alive, Dead:
		return true
	}
	return false
}

// EnvironmentID is the network id used for damage without an attacking
// entity (hazards, world damage). NetworkId 0 is never assigned by necs.
const EnvironmentID uint = 0
