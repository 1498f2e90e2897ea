package preflight

import (
	"context"
	"strings"

	"castkeep/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll checks the directories castkeep writes to. The download directory
// only needs to be creatable.
func RunAll(_ context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Scratch directory", cfg.Paths.ScratchDir),
		CheckDirectoryAccess("Feed cache directory", cfg.Paths.FeedCacheDir),
	}
	if dir := strings.TrimSpace(cfg.Defaults.DownloadDir); dir != "" && !strings.ContainsAny(dir, "%{") {
		results = append(results, CheckCreatableDirectory("Download directory", dir))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
