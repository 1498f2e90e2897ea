package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the locations castkeep keeps its own state in.
type Paths struct {
	DataDir      string `toml:"data_dir"`
	DatabasePath string `toml:"database_path"`
	ScratchDir   string `toml:"scratch_dir"`
	FeedCacheDir string `toml:"feed_cache_dir"`
	LogDir       string `toml:"log_dir"`
}

// Defaults holds the subscription-level settings applied when no override
// exists for a subscription.
type Defaults struct {
	DownloadDir              string `toml:"download_dir"`
	NamingPattern            string `toml:"naming_pattern"`
	SubscriptionFailDays     int    `toml:"subscription_fail_days"`
	SubscriptionFailAttempts int    `toml:"subscription_fail_attempts"`
	EpisodeFailDays          int    `toml:"episode_fail_days"`
	EpisodeFailAttempts      int    `toml:"episode_fail_attempts"`
	// RenameTypes maps a MIME type to a filename suffix: "type:suffix,type:suffix".
	RenameTypes string `toml:"rename_types"`
	// PostProcessTypes is a comma-separated allow-list, or "ALL".
	PostProcessTypes   string `toml:"postprocess_types"`
	ClassifyCommand    string `toml:"classify_command"`
	PostProcessCommand string `toml:"postprocess_command"`
	PostHook           string `toml:"post_hook"`
}

// Overrides mirrors Defaults for a single subscription. Nil fields fall back
// to the default value.
type Overrides struct {
	DownloadDir              *string `toml:"download_dir"`
	NamingPattern            *string `toml:"naming_pattern"`
	SubscriptionFailDays     *int    `toml:"subscription_fail_days"`
	SubscriptionFailAttempts *int    `toml:"subscription_fail_attempts"`
	EpisodeFailDays          *int    `toml:"episode_fail_days"`
	EpisodeFailAttempts      *int    `toml:"episode_fail_attempts"`
	RenameTypes              *string `toml:"rename_types"`
	PostProcessTypes         *string `toml:"postprocess_types"`
	ClassifyCommand          *string `toml:"classify_command"`
	PostProcessCommand       *string `toml:"postprocess_command"`
	PostHook                 *string `toml:"post_hook"`
}

// Network contains settings for feed and enclosure HTTP requests.
type Network struct {
	TimeoutSeconds        int    `toml:"timeout_seconds"`
	StallTimeoutSeconds   int    `toml:"stall_timeout_seconds"`
	UserAgent             string `toml:"user_agent"`
	BlockPrivateAddresses bool   `toml:"block_private_addresses"`
	RequestsPerMinute     int    `toml:"requests_per_minute"`
}

// Commands contains settings for external classify/post-process commands.
type Commands struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for castkeep.
type Config struct {
	Paths         Paths                `toml:"paths"`
	Defaults      Defaults             `toml:"defaults"`
	Subscriptions map[string]Overrides `toml:"subscriptions"`
	Network       Network              `toml:"network"`
	Commands      Commands             `toml:"commands"`
	Logging       Logging              `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("castkeep.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the state directories castkeep writes to. The
// download directory is created lazily by the download pipeline, so removable
// storage that is offline does not block read-only commands.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.DataDir,
		filepath.Dir(c.Paths.DatabasePath),
		c.Paths.ScratchDir,
		c.Paths.FeedCacheDir,
		c.Paths.LogDir,
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath returns the process lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "castkeep.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
