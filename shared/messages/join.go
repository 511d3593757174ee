package messages

import "github.com/leap-fish/necs/esync"

// JoinAccepted is sent by the server right after a client connects and its
// combatant entity has been spawned.
type JoinAccepted struct {
	NetworkID  esync.NetworkId
	ServerID   string
	ServerName string
	TickRate   int
	Authority  bool
}

// JoinRejected is sent by the server when it cannot take another client.
type JoinRejected struct {
	Reason string
}
