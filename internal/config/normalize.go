package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeDefaults(); err != nil {
		return err
	}
	if err := c.normalizeOverrides(); err != nil {
		return err
	}
	c.normalizeNetwork()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv(dataDirEnv); ok && strings.TrimSpace(value) != "" {
		c.Paths.DataDir = value
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}

	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}

	derived := []struct {
		key   string
		value *string
		name  string
	}{
		{"paths.database_path", &c.Paths.DatabasePath, defaultDatabaseName},
		{"paths.scratch_dir", &c.Paths.ScratchDir, defaultScratchDirName},
		{"paths.feed_cache_dir", &c.Paths.FeedCacheDir, defaultFeedCacheDirName},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDirName},
	}
	for _, d := range derived {
		if strings.TrimSpace(*d.value) == "" {
			*d.value = filepath.Join(c.Paths.DataDir, d.name)
		}
		if *d.value, err = expandPath(*d.value); err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
	}
	return nil
}

func (c *Config) normalizeDefaults() error {
	d := &c.Defaults
	if strings.TrimSpace(d.DownloadDir) == "" {
		d.DownloadDir = defaultDownloadDir
	}
	var err error
	if d.DownloadDir, err = expandPath(d.DownloadDir); err != nil {
		return fmt.Errorf("defaults.download_dir: %w", err)
	}
	d.NamingPattern = strings.TrimSpace(d.NamingPattern)
	d.ClassifyCommand = strings.TrimSpace(d.ClassifyCommand)
	d.PostProcessCommand = strings.TrimSpace(d.PostProcessCommand)
	d.PostHook = strings.TrimSpace(d.PostHook)
	return nil
}

func (c *Config) normalizeOverrides() error {
	if len(c.Subscriptions) == 0 {
		return nil
	}
	normalized := make(map[string]Overrides, len(c.Subscriptions))
	for key, o := range c.Subscriptions {
		if o.DownloadDir != nil {
			expanded, err := expandPath(strings.TrimSpace(*o.DownloadDir))
			if err != nil {
				return fmt.Errorf("subscriptions.%s.download_dir: %w", key, err)
			}
			o.DownloadDir = &expanded
		}
		normalized[strings.TrimSpace(key)] = o
	}
	c.Subscriptions = normalized
	return nil
}

func (c *Config) normalizeNetwork() {
	if c.Network.TimeoutSeconds <= 0 {
		c.Network.TimeoutSeconds = defaultNetworkTimeoutSeconds
	}
	if c.Network.StallTimeoutSeconds <= 0 {
		c.Network.StallTimeoutSeconds = defaultStallTimeoutSeconds
	}
	c.Network.UserAgent = strings.TrimSpace(c.Network.UserAgent)
	if c.Network.UserAgent == "" {
		c.Network.UserAgent = defaultUserAgent
	}
	if c.Commands.TimeoutSeconds <= 0 {
		c.Commands.TimeoutSeconds = defaultCommandTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
