package logstream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kaizen/internal/logging"
	"kaizen/internal/logs"
)

var ErrFiltersRequireAPI = errors.New("log filters require API access")

const followWait = time.Second

// Filters contains optional predicates supported by API log streaming.
type Filters struct {
	Component string
	ProcessID int64
	SessionID string
}

func (f Filters) empty() bool {
	return strings.TrimSpace(f.Component) == "" &&
		strings.TrimSpace(f.SessionID) == "" &&
		f.ProcessID == 0
}

// Options controls stream behavior.
type Options struct {
	Lines   int
	Follow  bool
	Filters Filters
	// LogPath is tailed when no server answers.
	LogPath string
}

// Stream emits events from the server API when available and falls back to
// tailing the log file. It returns true when anything was emitted.
func Stream(
	ctx context.Context,
	client *logs.StreamClient,
	opts Options,
	onEvent func(logging.LogEvent),
	onLine func(string),
) (bool, error) {
	printed, err := streamAPI(ctx, client, opts, onEvent)
	if err == nil || errors.Is(err, context.Canceled) {
		return printed, nil
	}
	if !logs.IsAPIUnavailable(err) {
		return printed, err
	}
	if !opts.Filters.empty() {
		return false, fmt.Errorf("%w: %w", ErrFiltersRequireAPI, logs.ErrAPIUnavailable)
	}
	if strings.TrimSpace(opts.LogPath) == "" {
		return false, logs.ErrAPIUnavailable
	}
	return streamFile(ctx, opts, onLine)
}

func streamAPI(ctx context.Context, client *logs.StreamClient, opts Options, onEvent func(logging.LogEvent)) (bool, error) {
	query := logs.StreamQuery{
		Limit:     opts.Lines,
		Tail:      true,
		Component: opts.Filters.Component,
		ProcessID: opts.Filters.ProcessID,
		SessionID: opts.Filters.SessionID,
	}
	if query.Limit <= 0 {
		query.Limit = 200
	}

	printed := false
	for {
		resp, err := client.Fetch(ctx, query)
		if err != nil {
			return printed, err
		}
		for _, evt := range resp.Events {
			if onEvent != nil {
				onEvent(evt)
			}
			printed = true
		}
		if !opts.Follow {
			return printed, nil
		}
		query.Since = resp.Next
		query.Limit = 200
		query.Tail = false
		query.Follow = true
	}
}

func streamFile(ctx context.Context, opts Options, onLine func(string)) (bool, error) {
	tail := logs.TailOptions{Offset: -1, Limit: max(opts.Lines, 0)}
	if tail.Limit == 0 {
		tail.Offset = 0
	}
	printed := false
	for {
		if opts.Follow {
			tail.Follow = true
			tail.Wait = followWait
		}
		result, err := logs.Tail(ctx, opts.LogPath, tail)
		if errors.Is(err, context.Canceled) {
			return printed, nil
		}
		if err != nil {
			return printed, fmt.Errorf("tail logs: %w", err)
		}
		for _, line := range result.Lines {
			if onLine != nil {
				onLine(line)
			}
			printed = true
		}
		if !opts.Follow {
			return printed, nil
		}
		tail.Offset = result.Offset
		tail.Limit = 0
		if ctx.Err() != nil {
			return printed, nil
		}
	}
}
