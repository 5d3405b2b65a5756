package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerConfig controls logger construction.
type LoggerConfig struct {
	// Debug enables debug-level logging and development-friendly output
	Debug bool
}

// NewLogger creates a zap logger configured for the service.
// Production config by default; Debug switches to development config
// with debug level enabled.
func NewLogger(cfg *LoggerConfig) (*zap.Logger, error) {
	if cfg == nil {
		cfg = &LoggerConfig{}
	}

	var zapCfg zap.Config
	if cfg.Debug {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		zapCfg = zap.NewProductionConfig()
		zapCfg.EncoderConfig.TimeKey = "timestamp"
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	return zapCfg.Build()
}
