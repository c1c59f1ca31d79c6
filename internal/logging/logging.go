package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// New builds the process logger. local gets a console encoder at debug,
// dev and prod get JSON; verbose forces debug level everywhere.
func New(env string, verbose bool) (*zap.Logger, error) {
	var config zap.Config
	switch strings.ToLower(strings.TrimSpace(env)) {
	case EnvLocal:
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	case EnvDev:
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case EnvProd, "":
		config = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("logging: unknown env %q", env)
	}
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
