package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"captioner/internal/config"
	"captioner/internal/ledger"
	"captioner/internal/logging"
	"captioner/internal/task"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// newLogger writes structured logs to the configured log directory, keeping
// stdout free for CLI output and progress.
func (c *commandContext) newLogger(cfg *config.Config) (*slog.Logger, error) {
	return logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{filepath.Join(cfg.Paths.LogDir, "captioner.log")},
	})
}

// lockData takes an exclusive lock on the data directory so concurrent
// captioner processes do not share the SQLite files. The returned release
// function is safe to call once.
func (c *commandContext) lockData(cfg *config.Config) (func(), error) {
	lockPath := filepath.Join(cfg.Paths.DataDir, "captioner.lock")
	fl := flock.New(lockPath)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", lockPath, err)
	}
	if !ok {
		return nil, fmt.Errorf("another captioner process holds %s", lockPath)
	}
	return func() { _ = fl.Unlock() }, nil
}

func (c *commandContext) openStore(cfg *config.Config) (*task.Store, error) {
	return task.Open(cfg.DatabasePath())
}

func (c *commandContext) openLedger(cfg *config.Config) (*ledger.Ledger, error) {
	return ledger.Open(cfg.DatabasePath(), cfg.Quota.DailyLimit, cfg.Quota.RetentionDays)
}
