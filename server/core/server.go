package core

import (
	"fmt"
	"sync/atomic"

	"github.com/automoto/doomerang-authority/archetypes"
	"github.com/automoto/doomerang-authority/bus"
	"github.com/automoto/doomerang-authority/components"
	"github.com/automoto/doomerang-authority/config"
	"github.com/automoto/doomerang-authority/logging"
	"github.com/automoto/doomerang-authority/shared/messages"
	"github.com/automoto/doomerang-authority/shared/netcomponents"
	"github.com/automoto/doomerang-authority/systems"
	"github.com/google/uuid"
	"github.com/leap-fish/necs/esync"
	"github.com/leap-fish/necs/esync/srvsync"
	"github.com/leap-fish/necs/router"
	"github.com/leap-fish/necs/transports"
	"github.com/yohamta/donburi"
	"go.uber.org/zap"
)

// Server owns the authoritative world. Network callbacks only queue work;
// the game loop applies it at the start of the next tick.
type Server struct {
	cfg    config.ServerConfig
	combat config.CombatConfig
	id     uuid.UUID

	world    donburi.World
	pipeline *systems.Pipeline
	bus      *bus.Bus
	spawns   systems.SpawnPointProvider
	peers    *Peers
	intake   intake
	loop     *GameLoop

	transport *transports.WsServerTransport

	// Owned by the tick goroutine.
	players     map[string]donburi.Entity
	playerCount atomic.Int32

	track  func(entity *donburi.Entity) error
	doSync func() error

	logger *zap.Logger
}

// NewServer creates a server and its world. spawns decides where players
// appear on join and after respawn.
func NewServer(cfg config.ServerConfig, combat config.CombatConfig, respawn config.RespawnConfig, spawns systems.SpawnPointProvider, logger *zap.Logger) *Server {
	logger = logging.OrNop(logger)
	role := systems.Replica
	if cfg.Authority {
		role = systems.Authority
	}

	world := donburi.NewWorld()
	srvsync.UseEsync(world)

	b := bus.New(logger)
	s := &Server{
		cfg:      cfg,
		combat:   combat,
		id:       uuid.New(),
		world:    world,
		pipeline: systems.NewPipeline(combat, respawn, role, b, spawns, logger),
		bus:      b,
		spawns:   spawns,
		peers:    NewPeers(cfg.OutboxSize, cfg.SendTimeout, logger),
		players:  make(map[string]donburi.Entity),
		doSync:   srvsync.DoSync,
		logger:   logger.Named("server"),
	}
	s.track = func(entity *donburi.Entity) error {
		return srvsync.NetworkSync(s.world, entity,
			srvsync.WithInterp(netcomponents.NetPosition),
			netcomponents.NetHealth,
			netcomponents.NetLifeState,
		)
	}
	s.loop = NewGameLoop(s, cfg.TickInterval(), logger)

	RegisterBroadcasts(b, s.peers)
	return s
}

// Start runs the game loop and serves websocket clients until the
// transport fails.
func (s *Server) Start() error {
	s.routes()
	go s.loop.Run()

	s.logger.Info("server starting",
		zap.String("id", s.id.String()),
		zap.String("name", s.cfg.Name),
		zap.Uint("port", s.cfg.Port),
		zap.Int("tick_rate", s.cfg.TickRate),
		zap.Stringer("role", s.pipeline.Role()),
	)
	s.transport = transports.NewWsServerTransport(s.cfg.Port, "", nil)
	if err := s.transport.Start(); err != nil {
		return fmt.Errorf("websocket transport: %w", err)
	}
	return nil
}

// Stop halts the game loop and the outbound queues.
func (s *Server) Stop() {
	s.loop.Stop()
	s.peers.Close()
}

func (s *Server) routes() {
	router.OnConnect(func(c *router.NetworkClient) {
		s.onConnect(c)
	})
	router.OnDisconnect(func(c *router.NetworkClient, err error) {
		s.onDisconnect(c, err)
	})
	router.On(func(c *router.NetworkClient, req messages.RequestDamage) {
		s.onRequestDamage(c, req)
	})
	router.OnError(func(c *router.NetworkClient, err error) {
		s.logger.Warn("client error", zap.String("client", c.Id()), zap.Error(err))
	})
}

func (s *Server) onConnect(p Peer) {
	s.logger.Info("client connected", zap.String("client", p.Id()))
	s.intake.push(request{kind: requestJoin, peer: p})
}

func (s *Server) onDisconnect(p Peer, err error) {
	s.logger.Info("client disconnected", zap.String("client", p.Id()), zap.Error(err))
	s.intake.push(request{kind: requestLeave, peer: p})
}

func (s *Server) onRequestDamage(p Peer, req messages.RequestDamage) {
	if s.pipeline.Role() != systems.Authority {
		s.logger.Warn("damage request on non-authoritative server dropped",
			zap.String("client", p.Id()),
			zap.Uint("target", req.TargetID),
		)
		return
	}
	s.intake.push(request{kind: requestDamage, peer: p, damage: req})
}

// Step runs one tick: queued joins, leaves and damage requests first, then
// the combat pipeline, then fact delivery, then replication.
func (s *Server) Step(dt float64) (systems.TickReport, error) {
	for _, r := range s.intake.take() {
		switch r.kind {
		case requestJoin:
			s.join(r.peer)
		case requestLeave:
			s.leave(r.peer)
		case requestDamage:
			s.requestDamage(r.peer, r.damage)
		}
	}

	var report systems.TickReport
	var err error
	if s.pipeline.Role() == systems.Authority {
		report, err = s.pipeline.Tick(s.world, dt)
	}
	s.bus.Pump()

	if syncErr := s.doSync(); syncErr != nil {
		s.logger.Warn("sync failed", zap.Error(syncErr))
	}
	return report, err
}

func (s *Server) join(p Peer) {
	if _, ok := s.players[p.Id()]; ok {
		return
	}
	if s.cfg.MaxPlayers > 0 && len(s.players) >= s.cfg.MaxPlayers {
		s.logger.Warn("server full, join rejected", zap.String("client", p.Id()))
		go func() {
			if err := p.SendMessage(messages.JoinRejected{Reason: "server full"}); err != nil {
				s.logger.Debug("join rejection not delivered", zap.Error(err))
			}
		}()
		return
	}

	entry := archetypes.Player.Spawn(s.world, s.combat.DefaultHealth, s.spawns.SelectSpawnPosition())
	entity := entry.Entity()
	if err := s.track(&entity); err != nil {
		s.logger.Error("network sync setup failed", zap.String("client", p.Id()), zap.Error(err))
		s.world.Remove(entity)
		return
	}

	s.players[p.Id()] = entity
	s.playerCount.Store(int32(len(s.players)))
	if !s.peers.Add(p) {
		s.logger.Debug("server stopping, join dropped", zap.String("client", p.Id()))
		s.leave(p)
		return
	}

	var nid esync.NetworkId
	if id := esync.GetNetworkId(s.world.Entry(entity)); id != nil {
		nid = *id
	}
	s.peers.Send(p.Id(), messages.JoinAccepted{
		NetworkID:  nid,
		ServerID:   s.id.String(),
		ServerName: s.cfg.Name,
		TickRate:   s.cfg.TickRate,
		Authority:  s.pipeline.Role() == systems.Authority,
	})
	s.logger.Info("player spawned", zap.String("client", p.Id()), zap.Uint("network_id", uint(nid)))
}

func (s *Server) leave(p Peer) {
	s.peers.Remove(p.Id())

	entity, ok := s.players[p.Id()]
	if !ok {
		return
	}
	delete(s.players, p.Id())
	s.playerCount.Store(int32(len(s.players)))

	if s.world.Valid(entity) {
		s.world.Remove(entity)
		s.logger.Info("player removed", zap.String("client", p.Id()))
	}
}

// requestDamage turns a client request into a command. The attacker is
// always the sender's own entity, whatever the request claims.
func (s *Server) requestDamage(p Peer, req messages.RequestDamage) {
	attacker, ok := s.players[p.Id()]
	if !ok {
		s.logger.Debug("damage request from unknown client", zap.String("client", p.Id()))
		return
	}
	if own := esync.GetNetworkId(s.world.Entry(attacker)); own != nil && req.AttackerID != uint(*own) {
		s.logger.Warn("attacker id does not match sender",
			zap.String("client", p.Id()),
			zap.Uint("claimed", req.AttackerID),
			zap.Uint("actual", uint(*own)),
		)
	}

	cmd := components.DamageCommand{
		Target:    esync.FindByNetworkId(s.world, esync.NetworkId(req.TargetID)),
		Attacker:  attacker,
		Amount:    float64(req.Amount),
		Direction: req.Direction,
		Origin:    components.OriginRemote,
	}
	// Rejections are logged by the engine.
	_ = s.pipeline.Engine.Enqueue(s.world, cmd)
}

// Bus returns the fact bus so that local subscribers can be attached.
func (s *Server) Bus() *bus.Bus {
	return s.bus
}

func (s *Server) ID() uuid.UUID {
	return s.id
}

// PlayerCount returns the number of joined players.
func (s *Server) PlayerCount() int {
	return int(s.playerCount.Load())
}
