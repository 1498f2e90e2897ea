package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"castkeep/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("CASTKEEP_DATA_DIR", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	dataDir := filepath.Join(tempHome, ".local", "share", "castkeep")
	if cfg.Paths.DataDir != dataDir {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, dataDir)
	}
	if cfg.Paths.DatabasePath != filepath.Join(dataDir, "castkeep.db") {
		t.Fatalf("unexpected database path: %q", cfg.Paths.DatabasePath)
	}
	if cfg.Paths.ScratchDir != filepath.Join(dataDir, "enclosures") {
		t.Fatalf("unexpected scratch dir: %q", cfg.Paths.ScratchDir)
	}
	if cfg.Defaults.DownloadDir != filepath.Join(tempHome, "podcasts") {
		t.Fatalf("unexpected download dir: %q", cfg.Defaults.DownloadDir)
	}
	if cfg.Defaults.NamingPattern != "%(safecasttitle)s/%(safefilename)s" {
		t.Fatalf("unexpected naming pattern: %q", cfg.Defaults.NamingPattern)
	}
	if cfg.Defaults.EpisodeFailAttempts != 15 || cfg.Defaults.SubscriptionFailDays != 21 {
		t.Fatalf("unexpected failure defaults: %+v", cfg.Defaults)
	}
	if cfg.Network.BlockPrivateAddresses {
		t.Fatal("expected private address blocking off by default")
	}
	if cfg.StallTimeout() != 120*time.Second {
		t.Fatalf("unexpected default stall timeout: %s", cfg.StallTimeout())
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.ScratchDir, cfg.Paths.FeedCacheDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadHonoursDataDirEnv(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "state")
	t.Setenv("CASTKEEP_DATA_DIR", dataDir)

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.DataDir != dataDir {
		t.Fatalf("data dir = %q, want %q", cfg.Paths.DataDir, dataDir)
	}
	if cfg.LockPath() != filepath.Join(dataDir, "castkeep.lock") {
		t.Fatalf("lock path = %q", cfg.LockPath())
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "castkeep.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadCustomPathWithOverrides(t *testing.T) {
	t.Setenv("CASTKEEP_DATA_DIR", "")
	base := t.TempDir()
	path := writeConfig(t, `
[paths]
data_dir = "`+filepath.Join(base, "data")+`"

[defaults]
download_dir = "`+filepath.Join(base, "pods")+`"
episode_fail_attempts = 4

[subscriptions."7"]
download_dir = "`+filepath.Join(base, "books")+`"
episode_fail_attempts = 9
postprocess_types = "ALL"

[network]
timeout_seconds = 5
stall_timeout_seconds = 45
requests_per_minute = 30

[logging]
format = "JSON"
`)

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected existing config at %q, got %q (exists=%v)", path, resolved, exists)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected normalized log format, got %q", cfg.Logging.Format)
	}
	if cfg.NetworkTimeout() != 5*time.Second {
		t.Fatalf("unexpected network timeout: %s", cfg.NetworkTimeout())
	}
	if cfg.StallTimeout() != 45*time.Second {
		t.Fatalf("unexpected stall timeout: %s", cfg.StallTimeout())
	}

	plain := cfg.ForSubscription(1)
	if plain.DownloadDir != filepath.Join(base, "pods") || plain.EpisodeFailAttempts != 4 {
		t.Fatalf("unexpected default settings: %+v", plain)
	}
	if plain.PostProcessAll() {
		t.Fatal("default post-process list should not be wildcard")
	}

	override := cfg.ForSubscription(7)
	if override.DownloadDir != filepath.Join(base, "books") {
		t.Fatalf("override download dir = %q", override.DownloadDir)
	}
	if override.EpisodeLimits().Attempts != 9 {
		t.Fatalf("override attempts = %d", override.EpisodeLimits().Attempts)
	}
	if override.EpisodeLimits().Window != 21*24*time.Hour {
		t.Fatalf("override should inherit window, got %s", override.EpisodeLimits().Window)
	}
	if !override.PostProcessAll() {
		t.Fatal("expected ALL wildcard to apply")
	}
	if override.NamingPattern != plain.NamingPattern {
		t.Fatalf("naming pattern should be inherited, got %q", override.NamingPattern)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("CASTKEEP_DATA_DIR", t.TempDir())
	cases := []struct {
		name string
		body string
		want string
	}{
		{"bad format", "[logging]\nformat = \"xml\"\n", "logging.format"},
		{"bad override key", "[subscriptions.abc]\nepisode_fail_days = 1\n", "positive subscription id"},
		{"negative days", "[defaults]\nepisode_fail_days = -1\n", "fail days"},
		{"bad rename", "[defaults]\nrename_types = \"audio/mpeg\"\n", "rename_types"},
		{"override rename", "[subscriptions.\"2\"]\nrename_types = \":.mp3\"\n", "subscriptions.2.rename_types"},
		{"empty pattern", "[defaults]\nnaming_pattern = \" \"\n", "naming_pattern"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, _, err := config.Load(writeConfig(t, tc.body))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestParseRenameTypes(t *testing.T) {
	got, err := config.ParseRenameTypes("audio/mpeg:.mp3, video/mp4:.m4v ,,")
	if err != nil {
		t.Fatalf("ParseRenameTypes: %v", err)
	}
	if got["audio/mpeg"] != ".mp3" || got["video/mp4"] != ".m4v" || len(got) != 2 {
		t.Fatalf("unexpected map: %#v", got)
	}
	if _, err := config.ParseRenameTypes("nocolon"); err == nil {
		t.Fatal("expected error for entry without colon")
	}
}

func TestCreateSampleLoads(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CASTKEEP_DATA_DIR", "")
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Defaults.ClassifyCommand == "" {
		t.Fatal("expected sample to set classify_command")
	}
}
