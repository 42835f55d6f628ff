package config

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// setLogger builds the zap logger for the given environment. local logs at
// debug with a console encoder, development at info, production as json at warn.
func setLogger(env string) (*zap.Logger, error) {
	switch env {
	case "local":
		c := zap.NewDevelopmentConfig()
		c.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		return c.Build()
	case "development", "dev", "test":
		c := zap.NewDevelopmentConfig()
		c.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		return c.Build()
	case "production", "prod":
		c := zap.NewProductionConfig()
		c.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		return c.Build()
	}
	return nil, fmt.Errorf("unknown environment %q", env)
}
