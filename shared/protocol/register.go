package protocol

import (
	"fmt"

	"github.com/automoto/doomerang-authority/shared/netcomponents"
	"github.com/leap-fish/necs/esync"
)

// Sync ID constants - ID 1 is reserved by necs for NetworkId
const (
	SyncIDNetPosition  uint = 10
	SyncIDNetHealth    uint = 11
	SyncIDNetLifeState uint = 12
)

// Interpolation IDs (uint8 for WithInterpFn)
const (
	InterpIDNetPosition uint8 = 10
)

// RegisterComponents registers all replicated components with necs for
// serialization. Both the server and the client must call it before any
// network operation, and the IDs above must never be reused for another type.
func RegisterComponents() error {
	if err := esync.RegisterComponent(
		SyncIDNetPosition,
		netcomponents.NetPositionData{},
		netcomponents.NetPosition,
		esync.WithInterpFn(InterpIDNetPosition, netcomponents.LerpNetPosition),
	); err != nil {
		return fmt.Errorf("register NetPosition: %w", err)
	}

	// Health and life state are discrete; interpolating them would show
	// values the authority never produced.
	if err := esync.RegisterComponent(
		SyncIDNetHealth,
		netcomponents.NetHealthData{},
		netcomponents.NetHealth,
	); err != nil {
		return fmt.Errorf("register NetHealth: %w", err)
	}

	if err := esync.RegisterComponent(
		SyncIDNetLifeState,
		netcomponents.NetLifeStateData{},
		netcomponents.NetLifeState,
	); err != nil {
		return fmt.Errorf("register NetLifeState: %w", err)
	}

	return nil
}
