package staging

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"castkeep/internal/logging"
)

// MessageSuffix marks the sidecar holding an enclosure's response headers.
const MessageSuffix = ".msg"

// ScratchName returns the scratch file name used for an enclosure URL.
func ScratchName(url string) string {
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}

// ScratchPath returns the scratch file location for an enclosure URL.
func ScratchPath(dir, url string) string {
	return filepath.Join(dir, ScratchName(url))
}

// CleanResult contains the outcome of a scratch cleanup.
type CleanResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanScratch removes every entry in scratchDir that does not belong to one
// of pendingURLs. A pending URL owns its scratch file and the file's .msg
// sidecar.
func CleanScratch(ctx context.Context, scratchDir string, pendingURLs []string, logger *slog.Logger) CleanResult {
	result := CleanResult{}

	scratchDir = strings.TrimSpace(scratchDir)
	if scratchDir == "" {
		return result
	}

	entries, err := os.ReadDir(scratchDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: scratchDir, Error: err})
		}
		return result
	}

	keep := make(map[string]struct{}, len(pendingURLs)*2)
	for _, url := range pendingURLs {
		name := ScratchName(url)
		keep[name] = struct{}{}
		keep[name+MessageSuffix] = struct{}{}
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if _, pending := keep[entry.Name()]; pending {
			continue
		}

		path := filepath.Join(scratchDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			if logger != nil {
				logger.Warn("failed to remove scratch file",
					logging.String("path", path),
					logging.Error(err),
					logging.String(logging.FieldEventType, "scratch_cleanup_failed"),
					logging.String(logging.FieldErrorHint, "check scratch_dir permissions"),
					logging.String(logging.FieldImpact, "disk space not reclaimed"),
				)
			}
			continue
		}
		result.Removed = append(result.Removed, path)
		if logger != nil {
			logger.Debug("removed scratch file",
				logging.String("path", path),
				logging.String(logging.FieldEventType, "scratch_cleanup"),
			)
		}
	}

	return result
}

// FileInfo contains metadata about a scratch file.
type FileInfo struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
}

// ListFiles returns the partial downloads in scratchDir, skipping sidecars.
func ListFiles(scratchDir string) ([]FileInfo, error) {
	scratchDir = strings.TrimSpace(scratchDir)
	if scratchDir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(scratchDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), MessageSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Name:    entry.Name(),
			Path:    filepath.Join(scratchDir, entry.Name()),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}
	return files, nil
}
