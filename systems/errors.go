package systems

import "errors"

var (
	ErrInvalidAmount  = errors.New("damage amount must be finite and positive")
	ErrAmountTooLarge = errors.New("damage amount exceeds per-hit cap")
	ErrTargetMissing  = errors.New("damage target does not exist")
	ErrTargetDead     = errors.New("damage target is dead")
	ErrNotAuthority   = errors.New("not the authoritative process")
)

// Role says whether this process owns the authoritative state.
type Role uint8

const (
	Replica Role = iota
	Authority
)

func (r Role) String() string {
	switch r {
	case Replica:
		return "replica"
	case Authority:
		return "authority"
	}
	return "unknown"
}
