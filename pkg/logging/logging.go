// Package logging initializes spotlake's global zap logger from a
// pkg/config.LogConfig, the same level/format-driven setup
// sells-group-research-cli uses for its CLI commands.
package logging

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kb9wtx/spotlake/pkg/config"
)

// Init builds a zap logger from cfg and installs it as the global logger,
// so every package that calls zap.L() picks it up. Format "console" gets
// zap's human-readable development encoder; anything else (including the
// default "json") gets the production encoder.
func Init(cfg config.LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "logging: parse level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "logging: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
