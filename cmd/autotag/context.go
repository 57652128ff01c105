package main

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/hejijunhao/autotag/internal/config"
	"github.com/hejijunhao/autotag/internal/logging"
)

const defaultConfigPath = "config.json"

type commandContext struct {
	configFlag    *string
	logLevelFlag  *string
	logFormatFlag *string
	logOutput     io.Writer

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag, logFormatFlag *string) *commandContext {
	return &commandContext{
		configFlag:    configFlag,
		logLevelFlag:  logLevelFlag,
		logFormatFlag: logFormatFlag,
		logOutput:     os.Stderr,
	}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil || strings.TrimSpace(*c.configFlag) == "" {
		return defaultConfigPath
	}
	return strings.TrimSpace(*c.configFlag)
}

// ensureConfig loads the configuration once. Loading itself logs through a
// bootstrap logger built from the flags and environment only.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		c.config, c.configErr = config.Load(c.configPath(), c.newLogger(config.LoggingConfig{
			Level:  os.Getenv("AUTOTAG_LOG_LEVEL"),
			Format: os.Getenv("AUTOTAG_LOG_FORMAT"),
		}))
	})
	return c.config, c.configErr
}

// logger returns the logger for cfg. Flags win over the configuration file.
func (c *commandContext) logger(cfg *config.Config) *slog.Logger {
	return c.newLogger(cfg.Logging)
}

func (c *commandContext) newLogger(lc config.LoggingConfig) *slog.Logger {
	level, format := lc.Level, lc.Format
	if c.logLevelFlag != nil && *c.logLevelFlag != "" {
		level = *c.logLevelFlag
	}
	if c.logFormatFlag != nil && *c.logFormatFlag != "" {
		format = *c.logFormatFlag
	}
	return logging.New(c.logOutput, format, logging.ParseLevel(level))
}
