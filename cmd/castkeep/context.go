package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"castkeep/internal/config"
	"castkeep/internal/feed"
	"castkeep/internal/lock"
	"castkeep/internal/logging"
	"castkeep/internal/netclient"
	"castkeep/internal/store"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
	runID      string
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

// ensureLogger builds the invocation logger and prunes expired log files.
func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.loggerErr = err
			return
		}
		c.runID = uuid.NewString()
		c.logger = logging.WithContext(logging.WithRunID(context.Background(), c.runID), logger)
		logging.CleanupOldLogs(c.logger, cfg.Paths.LogDir, "castkeep*.log", cfg.Logging.RetentionDays)
	})
	return c.logger, c.loggerErr
}

// session carries what a command needs once config, logger, and store are
// ready.
type session struct {
	ctx    context.Context
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store
}

func (s *session) httpClient() *netclient.Client {
	return netclient.New(netclient.OptionsFromConfig(s.cfg))
}

func (s *session) feedFetcher() *feed.Fetcher {
	return feed.NewFetcher(s.httpClient(), s.cfg.Paths.FeedCacheDir, s.logger)
}

// withStore opens the store for a read-only command.
func (c *commandContext) withStore(cmd *cobra.Command, fn func(*session) error) error {
	return c.run(cmd, false, fn)
}

// withLockedStore holds the process lock while fn runs. SIGINT and SIGTERM
// cancel the session context.
func (c *commandContext) withLockedStore(cmd *cobra.Command, fn func(*session) error) error {
	return c.run(cmd, true, fn)
}

func (c *commandContext) run(cmd *cobra.Command, locked bool, fn func(*session) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithRunID(ctx, c.runID)

	if locked {
		held, err := lock.Acquire(cfg.LockPath())
		if err != nil {
			return err
		}
		defer func() {
			if err := held.Release(); err != nil {
				logger.Warn("failed to release lock", logging.String("lock", held.Path()), logging.Error(err))
			}
		}()
	}

	st, err := store.Open(ctx, cfg.Paths.DatabasePath,
		store.WithScratchDir(cfg.Paths.ScratchDir),
		store.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	return fn(&session{ctx: ctx, cfg: cfg, logger: logger, store: st})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
