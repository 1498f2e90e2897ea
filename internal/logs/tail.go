package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultPoll = 250 * time.Millisecond

// Options controls Tail.
type Options struct {
	// Lines is how many existing lines to print before following.
	Lines  int
	Follow bool
	// Poll is the follow interval. Zero means 250ms.
	Poll time.Duration
	// Match selects lines to print. Nil prints every line.
	Match func(line string) bool
}

// Tail writes the selected lines of path to emit. Without Follow it returns
// once the existing lines are printed. With Follow it returns ctx.Err() when
// ctx is done. A missing file is treated as empty.
func Tail(ctx context.Context, path string, opts Options, emit func(line string)) error {
	match := opts.Match
	if match == nil {
		match = func(string) bool { return true }
	}

	lines, offset, err := lastLines(path, opts.Lines, match)
	if err != nil {
		return err
	}
	for _, line := range lines {
		emit(line)
	}
	if !opts.Follow {
		return nil
	}

	poll := opts.Poll
	if poll <= 0 {
		poll = defaultPoll
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		info, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			offset = 0
			continue
		}
		if err != nil {
			return fmt.Errorf("stat log file: %w", err)
		}
		if info.Size() < offset {
			offset = 0
		}
		if info.Size() == offset {
			continue
		}

		fresh, next, err := readComplete(path, offset)
		if err != nil {
			return err
		}
		offset = next
		for _, line := range fresh {
			if match(line) {
				emit(line)
			}
		}
	}
}

// lastLines returns up to limit matching lines and the offset just past the
// last complete line.
func lastLines(path string, limit int, match func(string) bool) ([]string, int64, error) {
	all, offset, err := readComplete(path, 0)
	if err != nil || limit <= 0 {
		return nil, offset, err
	}
	ring := make([]string, 0, limit)
	for _, line := range all {
		if !match(line) {
			continue
		}
		if len(ring) == limit {
			ring = append(ring[:0], ring[1:]...)
		}
		ring = append(ring, line)
	}
	return ring, offset, nil
}

// readComplete reads newline-terminated lines starting at offset. A trailing
// partial line is left for the next read.
func readComplete(path string, offset int64) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReaderSize(file, 64*1024)
	var lines []string
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return lines, offset, nil
			}
			return lines, offset, fmt.Errorf("read log file: %w", err)
		}
		offset += int64(len(line))
		lines = append(lines, strings.TrimRight(line, "\r\n"))
	}
}

// SubscriptionFilter matches lines logged for one subscription in either the
// console or the JSON format.
func SubscriptionFilter(id int64) func(string) bool {
	value := strconv.FormatInt(id, 10)
	console := "subscription_id=" + value
	json := `"subscription_id":` + value
	return func(line string) bool {
		return containsField(line, console) || containsField(line, json)
	}
}

func containsField(line, field string) bool {
	for rest := line; ; {
		idx := strings.Index(rest, field)
		if idx < 0 {
			return false
		}
		end := idx + len(field)
		if end == len(rest) || !isDigit(rest[end]) {
			return true
		}
		rest = rest[end:]
	}
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
