package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"castkeep/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.DatabasePath = filepath.Join(base, "data", "castkeep.db")
	cfgVal.Paths.ScratchDir = filepath.Join(base, "data", "enclosures")
	cfgVal.Paths.FeedCacheDir = filepath.Join(base, "data", "feeds")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Defaults.DownloadDir = filepath.Join(base, "podcasts")
	cfgVal.Defaults.ClassifyCommand = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithClassifyCommand sets the default classify command on the test config.
func WithClassifyCommand(command string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Defaults.ClassifyCommand = command
	}
}

// WithNamingPattern sets the default naming pattern on the test config.
func WithNamingPattern(pattern string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Defaults.NamingPattern = pattern
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default classify tool is
// stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"file"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
