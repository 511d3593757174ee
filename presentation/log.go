package presentation

import (
	"github.com/automoto/doomerang-authority/logging"
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

// LogPresenter stands in for the UI and audio layers in headless binaries.
type LogPresenter struct {
	logger *zap.Logger
}

func NewLogPresenter(logger *zap.Logger) *LogPresenter {
	logger = logging.OrNop(logger)
	return &LogPresenter{logger: logger.Named("presentation")}
}

func (p *LogPresenter) SpawnIndicator(pos mgl64.Vec3, amount float64, kind IndicatorKind) error {
	p.logger.Info("indicator",
		zap.Stringer("kind", kind),
		zap.Float64("amount", amount),
		zap.Float64("x", pos.X()),
		zap.Float64("y", pos.Y()),
	)
	return nil
}

func (p *LogPresenter) Play(sound Sound) error {
	p.logger.Debug("sound", zap.String("sound", string(sound)))
	return nil
}
