package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"castkeep/internal/netclient"
	"castkeep/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckCreatableDirectory(t *testing.T) {
	base := t.TempDir()
	result := CheckCreatableDirectory("downloads", filepath.Join(base, "a", "b"))
	if !result.Passed {
		t.Fatalf("expected missing directory under a writable parent to pass: %s", result.Detail)
	}
	if _, err := os.Stat(filepath.Join(base, "a")); !os.IsNotExist(err) {
		t.Fatal("check must not create directories")
	}

	f := filepath.Join(base, "file")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if CheckCreatableDirectory("downloads", f).Passed {
		t.Fatal("expected failure for an existing file")
	}
}

func TestCheckSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	result := CheckSchema(context.Background(), st)
	if !result.Passed {
		t.Fatalf("expected fresh store to pass: %s", result.Detail)
	}
	if CheckSchema(context.Background(), nil).Passed {
		t.Fatal("expected failure without a store")
	}
}

func TestCheckFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := netclient.New(netclient.Options{Timeout: 5 * time.Second})
	if result := CheckFeed(context.Background(), client, "feed", srv.URL+"/feed"); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	result := CheckFeed(context.Background(), client, "feed", srv.URL+"/missing")
	if result.Passed || result.Detail != "HTTP 404" {
		t.Fatalf("unexpected result for missing feed: %#v", result)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunAll(context.Background(), cfg)
	// data, scratch, feed cache and download directory checks
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %#v", failed)
	}

	cfg.Defaults.DownloadDir = filepath.Join(testsupport.BaseDir(cfg), "%(safecasttitle)s")
	if got := len(RunAll(context.Background(), cfg)); got != 3 {
		t.Fatalf("expected patterned download dir to be skipped, got %d results", got)
	}

	if err := os.RemoveAll(cfg.Paths.ScratchDir); err != nil {
		t.Fatal(err)
	}
	failed := Failed(RunAll(context.Background(), cfg))
	if len(failed) != 1 || failed[0].Name != "Scratch directory" {
		t.Fatalf("expected only the scratch check to fail, got %#v", failed)
	}
}
