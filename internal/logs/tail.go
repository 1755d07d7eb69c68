package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const (
	maxLineBytes = 1 << 20
	pollInterval = 250 * time.Millisecond
)

// TailOptions selects what Tail reads. A negative Offset means "the last
// Limit lines"; otherwise reading starts at Offset bytes. With Follow, Tail
// polls for up to Wait when nothing new is available.
type TailOptions struct {
	Offset int64
	Limit  int
	Follow bool
	Wait   time.Duration
}

// TailResult holds the lines read and the byte offset to resume from.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail reads lines from a log file. A missing file yields no lines and a
// zero offset so callers can keep polling until the server creates it.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return TailResult{}, nil
	}
	if err != nil {
		return TailResult{Offset: opts.Offset}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return TailResult{Offset: opts.Offset}, fmt.Errorf("log path %q is a directory", path)
	}

	var result TailResult
	if opts.Offset < 0 {
		keep := opts.Limit
		if keep <= 0 {
			keep = -1
		}
		result, err = readLines(path, 0, keep)
	} else {
		start := opts.Offset
		if start > info.Size() {
			start = info.Size()
		}
		result, err = readLines(path, start, 0)
	}
	if err != nil || len(result.Lines) > 0 || !opts.Follow || opts.Wait <= 0 {
		return result, err
	}
	return poll(ctx, path, result.Offset, opts.Wait)
}

// readLines reads from offset to EOF. A positive keep retains only the last
// keep lines; keep < 0 retains none.
func readLines(path string, offset int64, keep int) (TailResult, error) {
	result := TailResult{Offset: offset}
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return TailResult{}, nil
	}
	if err != nil {
		return result, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return result, fmt.Errorf("seek log file: %w", err)
	}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	var lines []string
	for scanner.Scan() {
		if keep < 0 {
			continue
		}
		lines = append(lines, scanner.Text())
		if keep > 0 && len(lines) > keep {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("read log file: %w", err)
	}
	end, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return result, fmt.Errorf("determine log offset: %w", err)
	}
	result.Lines = lines
	result.Offset = end
	return result, nil
}

func poll(ctx context.Context, path string, offset int64, wait time.Duration) (TailResult, error) {
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return TailResult{Offset: offset}, ctx.Err()
		case <-ticker.C:
		}
		result, err := readLines(path, offset, 0)
		if err != nil || len(result.Lines) > 0 || time.Now().After(deadline) {
			return result, err
		}
		offset = result.Offset
	}
}
