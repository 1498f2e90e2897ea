package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"castkeep/internal/config"
	"castkeep/internal/deps"
	"castkeep/internal/netclient"
	"castkeep/internal/store"
)

// feedCheckTimeout bounds CheckFeed regardless of the configured network timeout.
const feedCheckTimeout = 15 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckCreatableDirectory passes when path is a usable directory or when its
// nearest existing ancestor would let castkeep create it.
func CheckCreatableDirectory(name, path string) Result {
	if _, err := os.Stat(path); err == nil || !os.IsNotExist(err) {
		return CheckDirectoryAccess(name, path)
	}
	parent := filepath.Dir(path)
	for {
		if _, err := os.Stat(parent); err == nil {
			break
		}
		next := filepath.Dir(parent)
		if next == parent {
			break
		}
		parent = next
	}
	if err := unix.Access(parent, unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: cannot create under %s: %v)", path, parent, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (created on first download)", path)}
}

// CheckSchema reports whether the open store is at the current schema version.
func CheckSchema(ctx context.Context, st *store.Store) Result {
	const name = "Database schema"
	if st == nil {
		return Result{Name: name, Detail: "store not open"}
	}
	version, err := st.CurrentVersion(ctx)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if version != store.CurrentSchemaVersion {
		return Result{Name: name, Detail: fmt.Sprintf("version %d (want %d)", version, store.CurrentSchemaVersion)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("version %d", version)}
}

// CheckFeed fetches url once and reports whether it answered successfully.
func CheckFeed(ctx context.Context, client *netclient.Client, name, url string) Result {
	checkCtx, cancel := context.WithTimeout(ctx, feedCheckTimeout)
	defer cancel()

	resp, err := client.Get(checkCtx, url, nil)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return Result{Name: name, Passed: true, Detail: "Reachable"}
	case resp.StatusCode == http.StatusNotModified:
		return Result{Name: name, Passed: true, Detail: "Not modified"}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}
}

// CheckCommands evaluates every external command the config names.
func CheckCommands(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.Requirements(cfg))
}

func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timed out"
	}
	return err.Error()
}
