package network

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/automoto/doomerang-authority/logging"
	"github.com/automoto/doomerang-authority/shared/messages"
	"github.com/coder/websocket"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/leap-fish/necs/esync"
	"github.com/leap-fish/necs/router"
	"github.com/leap-fish/necs/transports"
	"go.uber.org/zap"
)

type ClientState int

const (
	StateDisconnected ClientState = iota
	StateConnecting
	StateConnected
	StateJoinedGame
	StateError
)

func (s ClientState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateJoinedGame:
		return "joined"
	case StateError:
		return "error"
	}
	return fmt.Sprintf("ClientState(%d)", int(s))
}

var ErrNotConnected = errors.New("not connected")

const broadcastBuffer = 64

// Client manages the WebSocket connection to the authority.
// All shared fields are protected by mu (router callbacks run on necs goroutines).
type Client struct {
	mu sync.RWMutex

	state      ClientState
	lastError  error
	networkID  esync.NetworkId
	serverID   string
	serverName string
	tickRate   int
	authority  bool
	conn       *websocket.Conn

	snapshotCh chan esync.WorldSnapshot // size-1 buffered; latest wins
	combatCh   chan any // BroadcastDamage and BroadcastDeath, in arrival order

	logger *zap.Logger
}

func NewClient(logger *zap.Logger) *Client {
	logger = logging.OrNop(logger)
	return &Client{
		state:      StateDisconnected,
		snapshotCh: make(chan esync.WorldSnapshot, 1),
		combatCh:   make(chan any, broadcastBuffer),
		logger:     logger.Named("client"),
	}
}

// Connect dials the server in a background goroutine. The server spawns the
// player on connect and answers with JoinAccepted or JoinRejected.
func (c *Client) Connect(address string) {
	c.mu.Lock()
	c.state = StateConnecting
	c.lastError = nil
	c.mu.Unlock()

	router.OnConnect(func(_ *router.NetworkClient) {
		c.logger.Info("connected to server", zap.String("address", address))
		c.mu.Lock()
		c.state = StateConnected
		c.mu.Unlock()
	})

	router.On(func(_ *router.NetworkClient, msg messages.JoinAccepted) {
		c.onJoinAccepted(msg)
	})

	router.On(func(_ *router.NetworkClient, msg messages.JoinRejected) {
		c.logger.Warn("join rejected", zap.String("reason", msg.Reason))
		c.setError(fmt.Errorf("join rejected: %s", msg.Reason))
	})

	router.On(func(_ *router.NetworkClient, snapshot esync.WorldSnapshot) {
		select { // drain stale, push latest
		case <-c.snapshotCh:
		default:
		}
		c.snapshotCh <- snapshot
	})

	router.On(func(_ *router.NetworkClient, msg messages.BroadcastDamage) {
		c.onBroadcast(msg, msg.FactID)
	})

	router.On(func(_ *router.NetworkClient, msg messages.BroadcastDeath) {
		c.onBroadcast(msg, msg.FactID)
	})

	router.OnDisconnect(func(_ *router.NetworkClient, err error) {
		c.logger.Info("disconnected", zap.Error(err))
		c.mu.Lock()
		if c.state != StateError {
			c.state = StateDisconnected
		}
		c.conn = nil
		c.mu.Unlock()
	})

	router.OnError(func(_ *router.NetworkClient, err error) {
		c.logger.Warn("router error", zap.Error(err))
	})

	go func() {
		transport := transports.NewWsClientTransport("ws://" + address)
		err := transport.Start(func(conn *websocket.Conn) {
			c.mu.Lock()
			c.conn = conn
			c.mu.Unlock()
		})
		if err != nil {
			c.setError(fmt.Errorf("connection failed: %w", err))
		}
	}()
}

func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.state = StateDisconnected
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.CloseNow()
	}

	router.ResetRouter()
}

func (c *Client) onJoinAccepted(msg messages.JoinAccepted) {
	c.logger.Info("join accepted",
		zap.Uint("network_id", uint(msg.NetworkID)),
		zap.String("server", msg.ServerName),
		zap.String("server_id", msg.ServerID),
		zap.Int("tick_rate", msg.TickRate),
	)
	c.mu.Lock()
	c.networkID = msg.NetworkID
	c.serverID = msg.ServerID
	c.serverName = msg.ServerName
	c.tickRate = msg.TickRate
	c.authority = msg.Authority
	c.state = StateJoinedGame
	c.mu.Unlock()
}

// Broadcasts are queued for the game loop. A full queue drops the newest
// message; the replicated health still converges through snapshots.
func (c *Client) onBroadcast(msg any, factID string) {
	select {
	case c.combatCh <- msg:
	default:
		c.logger.Warn("combat broadcast dropped", zap.String("fact", factID))
	}
}

func (c *Client) State() ClientState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastError
}

func (c *Client) NetworkID() esync.NetworkId {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.networkID
}

func (c *Client) ServerID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverID
}

func (c *Client) TickRate() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tickRate
}

// Authoritative reports whether the joined server applies damage requests.
func (c *Client) Authoritative() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authority
}

// LatestSnapshot returns the most recent WorldSnapshot, or nil. Non-blocking.
func (c *Client) LatestSnapshot() *esync.WorldSnapshot {
	select {
	case snap := <-c.snapshotCh:
		return &snap
	default:
		return nil
	}
}

// RequestDamage asks the server to damage target. The client changes no
// state of its own; the outcome arrives as a broadcast.
func (c *Client) RequestDamage(target uint, amount float32, direction mgl64.Vec3) error {
	return c.SendMessage(messages.RequestDamage{
		TargetID:   target,
		AttackerID: uint(c.NetworkID()),
		Amount:     amount,
		Direction:  direction,
	})
}

func (c *Client) SendMessage(msg any) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}

	payload, err := router.Serialize(msg)
	if err != nil {
		return fmt.Errorf("serialize: %w", err)
	}

	return conn.Write(context.Background(), websocket.MessageBinary, payload)
}

func (c *Client) setError(err error) {
	c.mu.Lock()
	c.state = StateError
	c.lastError = err
	c.mu.Unlock()
}

// DrainBroadcasts returns all pending combat broadcasts in arrival order,
// non-blocking. Pass them to BroadcastFilter.Feed.
func (c *Client) DrainBroadcasts() []any {
	return drainChan(c.combatCh)
}

func drainChan[T any](ch chan T) []T {
	var out []T
	for {
		select {
		case v := <-ch:
			out = append(out, v)
		default:
			return out
		}
	}
}
