package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"castkeep/internal/config"
	"castkeep/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	server     *httptest.Server
	feedURL    string
}

const testFeed = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Test Cast</title>
    <item>
      <title>Episode One</title>
      <guid>ep-1</guid>
      <enclosure url="%[1]s/media/one.mp3" type="audio/mpeg" length="5"/>
    </item>
    <item>
      <title>Episode Two</title>
      <guid>ep-2</guid>
      <enclosure url="%[1]s/media/two.mp3" type="audio/mpeg" length="5"/>
    </item>
  </channel>
</rss>`

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	cfg := testsupport.NewConfig(t)

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, testFeed, srv.URL)
	})
	mux.HandleFunc("/media/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		fmt.Fprint(w, "audio")
	})
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><link rel="alternate" type="application/rss+xml" href="/feed.xml"></head><body>hi</body></html>`)
	})

	configPath := filepath.Join(testsupport.BaseDir(cfg), "castkeep.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		server:     srv,
		feedURL:    srv.URL + "/feed.xml",
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
data_dir = %q
database_path = %q
scratch_dir = %q
feed_cache_dir = %q
log_dir = %q

[defaults]
download_dir = %q
classify_command = ""

[logging]
level = "error"
`,
		cfg.Paths.DataDir,
		cfg.Paths.DatabasePath,
		cfg.Paths.ScratchDir,
		cfg.Paths.FeedCacheDir,
		cfg.Paths.LogDir,
		cfg.Defaults.DownloadDir,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func (env *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return env.runWithInput(t, "", args...)
}

func (env *cliTestEnv) runWithInput(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(input))
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func (env *cliTestEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := env.run(t, args...)
	if err != nil {
		t.Fatalf("castkeep %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
