package fileutil

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// PartialSuffix marks a copy that has not yet been linked into place.
const PartialSuffix = ".partial"

// maxCandidates bounds the sibling names tried by MoveNoClobber.
const maxCandidates = 1000

// ErrNoFreeName is returned when every candidate name is already taken.
var ErrNoFreeName = errors.New("no free destination name")

// CopyFile streams src to dst using io.Copy with default permissions (0o644).
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// CopyFileVerified streams src to dst with SHA256 + size integrity verification.
// Removes dst on mismatch.
func CopyFileVerified(src, dst string) error {
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := copyVerified(src, out); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return nil
}

// copyVerified writes src into out and closes out. The caller removes out
// on error.
func copyVerified(src string, out *os.File) error {
	defer func() {
		_ = out.Close()
	}()

	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	srcHasher := sha256.New()
	dstHasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(out, dstHasher), io.TeeReader(in, srcHasher))
	if err != nil {
		return err
	}
	if err := out.Sync(); err != nil {
		return fmt.Errorf("sync copy: %w", err)
	}
	if err := out.Close(); err != nil {
		return err
	}

	if written != srcInfo.Size() {
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcInfo.Size(), written)
	}
	if !bytes.Equal(srcHasher.Sum(nil), dstHasher.Sum(nil)) {
		return fmt.Errorf("copy hash mismatch: file corrupted during copy")
	}
	return nil
}

// MoveNoClobber moves src to dst without ever replacing an existing file.
// When dst is taken, sibling names (name-1.ext, name-2.ext, ...) are tried.
// The source is copied to a uniquely named hidden ".<candidate>.*.partial"
// file next to the candidate and hard-linked into place;
// the link fails if the candidate appeared in the meantime, so the link is
// the authority on whether a name is free. The source is removed last, so an
// interrupted move always leaves at least one complete copy. It returns the
// path the file ended up at. A non-nil error with a non-empty path means the
// file is in place but the source could not be removed.
func MoveNoClobber(src, dst string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create destination directory: %w", err)
	}

	for i := 0; i < maxCandidates; i++ {
		candidate := siblingName(dst, i)
		if _, err := os.Lstat(candidate); err == nil {
			continue
		}

		placed, err := placeCopy(src, candidate)
		if err != nil {
			return "", err
		}
		if !placed {
			continue
		}

		if err := os.Remove(src); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return candidate, fmt.Errorf("remove source %s: %w", src, err)
		}
		return candidate, nil
	}
	return "", fmt.Errorf("%w for %s", ErrNoFreeName, dst)
}

// placeCopy copies src next to candidate and publishes it under candidate.
// It reports false when candidate was claimed by someone else first.
func placeCopy(src, candidate string) (bool, error) {
	out, err := os.CreateTemp(filepath.Dir(candidate), "."+filepath.Base(candidate)+".*"+PartialSuffix)
	if err != nil {
		return false, fmt.Errorf("create partial copy: %w", err)
	}
	partial := out.Name()
	defer func() {
		_ = os.Remove(partial)
	}()
	if err := out.Chmod(0o644); err != nil {
		_ = out.Close()
		return false, fmt.Errorf("chmod %s: %w", partial, err)
	}
	if err := copyVerified(src, out); err != nil {
		return false, fmt.Errorf("copy to %s: %w", partial, err)
	}

	err = os.Link(partial, candidate)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrExist):
		return false, nil
	}

	// Filesystems without hard links: reserve the name exclusively, then
	// rename the finished copy over the reservation.
	reservation, rerr := os.OpenFile(candidate, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if rerr != nil {
		if errors.Is(rerr, fs.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("link %s: %w", candidate, err)
	}
	_ = reservation.Close()
	if err := os.Rename(partial, candidate); err != nil {
		_ = os.Remove(candidate)
		return false, fmt.Errorf("rename into %s: %w", candidate, err)
	}
	return true, nil
}

// siblingName returns dst for n == 0 and "base-n.ext" otherwise.
func siblingName(dst string, n int) string {
	if n == 0 {
		return dst
	}
	dir, file := filepath.Split(dst)
	ext := filepath.Ext(file)
	stem := strings.TrimSuffix(file, ext)
	return filepath.Join(dir, stem+"-"+strconv.Itoa(n)+ext)
}
