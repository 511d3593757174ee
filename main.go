package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/automoto/doomerang-authority/bus"
	"github.com/automoto/doomerang-authority/config"
	"github.com/automoto/doomerang-authority/logging"
	"github.com/automoto/doomerang-authority/network"
	"github.com/automoto/doomerang-authority/presentation"
	"github.com/automoto/doomerang-authority/shared/netconfig"
	"github.com/automoto/doomerang-authority/shared/protocol"
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

const frameInterval = time.Second / 20

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "client: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Client
	logCfg := config.Log

	flag.StringVar(&cfg.Address, "addr", cfg.Address, "Server address (host:port)")
	flag.DurationVar(&cfg.AttackInterval, "attack", cfg.AttackInterval, "Interval between damage requests (0 = never)")
	flag.Float64Var(&cfg.AttackAmount, "amount", cfg.AttackAmount, "Damage per request")
	flag.StringVar(&logCfg.Level, "loglevel", logCfg.Level, "Log level (debug, info, warn, error)")
	flag.BoolVar(&logCfg.Development, "dev", true, "Human readable logs")
	flag.Parse()

	logger, err := logging.New(logCfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if err := protocol.RegisterComponents(); err != nil {
		return fmt.Errorf("register components: %w", err)
	}

	local := bus.New(logger)
	presenter := presentation.NewLogPresenter(logger)
	presentation.NewIndicatorSpawner(presenter).Register(local)
	presentation.NewAudioTrigger(presenter).Register(local)

	replica := network.NewReplica(logger)
	filter := network.NewBroadcastFilter(local, replica, logger)
	client := network.NewClient(logger)
	client.Connect(cfg.Address)
	defer client.Disconnect()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	frames := time.NewTicker(frameInterval)
	defer frames.Stop()
	var attacks <-chan time.Time
	if cfg.AttackInterval > 0 {
		t := time.NewTicker(cfg.AttackInterval)
		defer t.Stop()
		attacks = t.C
	}

	for {
		select {
		case <-sigChan:
			logger.Info("shutting down")
			return nil
		case <-frames.C:
			if client.State() == network.StateError {
				return client.LastError()
			}
			if snap := client.LatestSnapshot(); snap != nil {
				replica.Apply(*snap)
			}
			filter.Feed(client.DrainBroadcasts())
			local.Pump()
		case <-attacks:
			attack(client, replica, cfg.AttackAmount, logger)
		}
	}
}

// attack requests damage on the first other living player in the replica.
func attack(client *network.Client, replica *network.Replica, amount float64, logger *zap.Logger) {
	if client.State() != network.StateJoinedGame {
		return
	}
	self := uint(client.NetworkID())
	for _, id := range replica.IDs() {
		if id == self {
			continue
		}
		if ls, ok := replica.LifeState(id); ok && ls.State != netconfig.Alive {
			continue
		}
		if err := client.RequestDamage(id, float32(amount), aim(replica, self, id)); err != nil {
			logger.Warn("damage request failed", zap.Uint("target", id), zap.Error(err))
		}
		return
	}
}

// aim returns the unit vector from self to target, or +X when either
// position is unknown or they overlap.
func aim(replica *network.Replica, self, target uint) mgl64.Vec3 {
	from, ok1 := replica.Position(self)
	to, ok2 := replica.Position(target)
	d := mgl64.Vec3{to.X - from.X, to.Y - from.Y, to.Z - from.Z}
	if !ok1 || !ok2 || d.Len() < 1e-9 {
		return mgl64.Vec3{1, 0, 0}
	}
	return d.Normalize()
}
