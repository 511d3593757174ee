package core

import (
	"sync"
	"time"

	"github.com/automoto/doomerang-authority/logging"
	"go.uber.org/zap"
)

// GameLoop drives Server.Step at a fixed rate. Every tick advances the
// simulation by exactly one interval.
type GameLoop struct {
	server   *Server
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

func NewGameLoop(server *Server, interval time.Duration, logger *zap.Logger) *GameLoop {
	logger = logging.OrNop(logger)
	return &GameLoop{
		server:   server,
		interval: interval,
		stopChan: make(chan struct{}),
		logger:   logger.Named("loop"),
	}
}

func (g *GameLoop) Run() {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	dt := g.interval.Seconds()
	g.logger.Info("game loop started", zap.Duration("interval", g.interval))

	for {
		select {
		case <-g.stopChan:
			g.logger.Info("game loop stopped")
			return
		case <-ticker.C:
			report, err := g.server.Step(dt)
			if err != nil {
				g.logger.Error("tick failed", zap.Uint64("tick", report.Tick), zap.Error(err))
			}
		}
	}
}

func (g *GameLoop) Stop() {
	g.stopOnce.Do(func() { close(g.stopChan) })
}
