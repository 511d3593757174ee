package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/automoto/doomerang-authority/config"
	"github.com/automoto/doomerang-authority/logging"
	"github.com/automoto/doomerang-authority/presentation"
	"github.com/automoto/doomerang-authority/server/core"
	"github.com/automoto/doomerang-authority/shared/protocol"
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	srv := config.Server
	combat := config.Combat
	respawn := config.Respawn
	logCfg := config.Log
	telemetry := config.Telemetry

	flag.UintVar(&srv.Port, "port", srv.Port, "Server port")
	flag.IntVar(&srv.TickRate, "tickrate", srv.TickRate, "Server tick rate (updates per second)")
	flag.StringVar(&srv.Name, "name", srv.Name, "Server display name")
	flag.IntVar(&srv.MaxPlayers, "maxplayers", srv.MaxPlayers, "Maximum connected players (0 = unlimited)")
	flag.StringVar(&srv.LevelsDir, "levels", srv.LevelsDir, "Directory of .tmx levels used for spawn points")
	flag.StringVar(&srv.Level, "level", srv.Level, "Level name (default: first level found)")
	flag.IntVar(&combat.DefaultHealth, "health", combat.DefaultHealth, "Maximum health of a player")
	flag.Float64Var(&combat.MaxDamagePerHit, "maxdamage", combat.MaxDamagePerHit, "Largest accepted damage per hit (0 = no cap)")
	flag.IntVar(&combat.Workers, "workers", combat.Workers, "Per-entity workers (0 = GOMAXPROCS)")
	flag.Float64Var(&respawn.Duration, "respawn", respawn.Duration, "Seconds from death to respawn")
	flag.StringVar(&logCfg.Level, "loglevel", logCfg.Level, "Log level (debug, info, warn, error)")
	flag.BoolVar(&logCfg.Development, "dev", logCfg.Development, "Human readable logs")
	flag.BoolVar(&telemetry.Enabled, "telemetry", telemetry.Enabled, "Record combat telemetry on shutdown")
	flag.Parse()

	logger, err := logging.New(logCfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if err := protocol.RegisterComponents(); err != nil {
		return fmt.Errorf("register components: %w", err)
	}

	spawns, err := core.LoadSpawns(srv.LevelsDir, srv.Level, mgl64.Vec3{srv.SpawnX, srv.SpawnY, 0}, logger)
	if err != nil {
		return err
	}

	server := core.NewServer(srv, combat, respawn, spawns, logger)

	var recorder *presentation.Telemetry
	if telemetry.Enabled {
		store, err := presentation.OpenStore(telemetry.AppName)
		if err != nil {
			logger.Warn("telemetry disabled", zap.Error(err))
		} else {
			recorder = presentation.NewTelemetry(store, logger)
			recorder.Register(server.Bus())
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutting down")
		server.Stop()
		if recorder != nil {
			if err := recorder.Flush(); err != nil {
				logger.Warn("telemetry flush failed", zap.Error(err))
			}
		}
		_ = logger.Sync()
		os.Exit(0)
	}()

	return server.Start()
}
