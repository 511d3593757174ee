package bus

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/oklog/ulid/v2"
	"github.com/yohamta/donburi"
)

// Kind identifies the type of a fact for subscription routing.
type Kind uint8

const (
	KindDamage Kind = iota + 1
	KindDeath
)

func (k Kind) String() string {
	switch k {
	case KindDamage:
		return "damage"
	case KindDeath:
		return "death"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Fact is an immutable record of something the authority already did.
// The set of facts is closed: DamageFact and DeathFact.
type Fact interface {
	Kind() Kind
	FactID() ulid.ULID
	fact()
}

// NewFactID returns a fresh, time-ordered fact id.
func NewFactID() ulid.ULID {
	return ulid.Make()
}

// DamageFact is produced once per applied damage command.
type DamageFact struct {
	ID   ulid.ULID
	Tick uint64

	Target        donburi.Entity
	Attacker      donburi.Entity // donburi.Null for environment damage
	TargetNetID   uint
	AttackerNetID uint

	Requested float64 // amount carried by the command
	Amount    int     // health actually removed from the ledger input
	Direction mgl64.Vec3
	Position  mgl64.Vec3

	HealthBefore  int
	HealthAfter   int
	SelfInflicted bool
}

func (DamageFact) Kind() Kind { return KindDamage }
func (f DamageFact) FactID() ulid.ULID { return f.ID }
func (DamageFact) fact() {}

// Lethal reports whether this hit brought health to zero.
func (f DamageFact) Lethal() bool {
	return f.HealthAfter == 0 && f.HealthBefore > 0
}

// DeathFact is produced once per Alive->Dead transition.
type DeathFact struct {
	ID   ulid.ULID
	Tick uint64

	Victim      donburi.Entity
	Killer      donburi.Entity // donburi.Null if environmental
	VictimNetID uint
	KillerNetID uint

	Position  mgl64.Vec3
	RespawnIn float64 // seconds
}

func (DeathFact) Kind() Kind { return KindDeath }
func (f DeathFact) FactID() ulid.ULID { return f.ID }
func (DeathFact) fact() {}
