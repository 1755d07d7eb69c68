package daemonctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"kaizen/internal/api"
	"kaizen/internal/catalog"
	"kaizen/internal/config"
	"kaizen/internal/logs"
	"kaizen/internal/playback"
	"kaizen/internal/preflight"
)

// ErrServerNotRunning indicates no server answered on the API address.
var ErrServerNotRunning = errors.New("kaizen server not running")

const requestTimeout = 10 * time.Second

// Client issues player commands to a running server.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// NewClient targets the configured API address.
func NewClient(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	base, err := logs.BaseURL(cfg.Paths.APIBind)
	if err != nil {
		return nil, fmt.Errorf("parse api bind: %w", err)
	}
	if base == nil {
		return nil, errors.New("api_bind is not configured")
	}
	return &Client{
		base:  base,
		token: strings.TrimSpace(cfg.Paths.APIToken),
		http:  &http.Client{Timeout: requestTimeout},
	}, nil
}

// Status fetches /api/status.
func (c *Client) Status(ctx context.Context) (api.StatusResponse, error) {
	var resp api.StatusResponse
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &resp)
	return resp, err
}

// Player fetches the current player state.
func (c *Client) Player(ctx context.Context) (api.PlayerResponse, error) {
	var resp api.PlayerResponse
	err := c.do(ctx, http.MethodGet, "/api/player", nil, &resp)
	return resp, err
}

// Command posts a bodiless player command such as "play" or "next".
func (c *Client) Command(ctx context.Context, name string) (api.PlayerResponse, error) {
	var resp api.PlayerResponse
	err := c.do(ctx, http.MethodPost, "/api/player/"+strings.Trim(name, "/"), nil, &resp)
	return resp, err
}

// LoadStage makes a stage's processes the playlist.
func (c *Client) LoadStage(ctx context.Context, stageID int64) (api.PlayerResponse, error) {
	var resp api.PlayerResponse
	err := c.do(ctx, http.MethodPost, "/api/player/stage", api.LoadStageRequest{StageID: stageID}, &resp)
	return resp, err
}

// PlayIndex selects and plays the process at index.
func (c *Client) PlayIndex(ctx context.Context, index int) (api.PlayerResponse, error) {
	var resp api.PlayerResponse
	err := c.do(ctx, http.MethodPost, "/api/player/select", api.SelectRequest{Index: &index}, &resp)
	return resp, err
}

// Toggle sets one of the boolean player settings: muted, looping, global,
// or narrator.
func (c *Client) Toggle(ctx context.Context, name string, enabled bool) (api.PlayerResponse, error) {
	var resp api.PlayerResponse
	err := c.do(ctx, http.MethodPost, "/api/player/"+name, api.ToggleRequest{Enabled: enabled}, &resp)
	return resp, err
}

// SetRate changes the video playback rate.
func (c *Client) SetRate(ctx context.Context, rate float64) (api.PlayerResponse, error) {
	var resp api.PlayerResponse
	err := c.do(ctx, http.MethodPost, "/api/player/rate", api.RateRequest{Rate: rate}, &resp)
	return resp, err
}

// Preview fetches the preview player state.
func (c *Client) Preview(ctx context.Context) (api.PlayerResponse, error) {
	var resp api.PlayerResponse
	err := c.do(ctx, http.MethodGet, "/api/preview", nil, &resp)
	return resp, err
}

// LoadPreview shows one recording of a process in the preview player.
func (c *Client) LoadPreview(ctx context.Context, processID int64, view playback.Leg) (api.PlayerResponse, error) {
	var resp api.PlayerResponse
	err := c.do(ctx, http.MethodPost, "/api/preview/load", api.PreviewLoadRequest{ProcessID: processID, View: view}, &resp)
	return resp, err
}

// PreviewCommand posts a bodiless preview command: "play" or "pause".
func (c *Client) PreviewCommand(ctx context.Context, name string) (api.PlayerResponse, error) {
	var resp api.PlayerResponse
	err := c.do(ctx, http.MethodPost, "/api/preview/"+strings.Trim(name, "/"), nil, &resp)
	return resp, err
}

// SetPreviewView switches the preview between recordings.
func (c *Client) SetPreviewView(ctx context.Context, view playback.Leg) (api.PlayerResponse, error) {
	var resp api.PlayerResponse
	err := c.do(ctx, http.MethodPost, "/api/preview/view", api.ViewRequest{View: view}, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isServerUnavailable(err) {
			return ErrServerNotRunning
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr api.ErrorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s returned status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// PIDPath is where the server records its process id.
func PIDPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, "kaizen.pid")
}

// WritePIDFile records the current process id.
func WritePIDFile(path string) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}

// ReadPID returns the recorded server pid, or 0 when none is recorded.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read pid file %q: %w", path, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("pid file %q is malformed", path)
	}
	return pid, nil
}

// StopResult captures server stop outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// Stop signals the server recorded in the pid file with SIGTERM and waits up
// to gracePeriod for it to exit before sending SIGKILL.
func Stop(cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	pidPath := PIDPath(cfg)
	pid, err := ReadPID(pidPath)
	if err != nil {
		return StopResult{}, err
	}
	if pid == 0 || !processAlive(pid) {
		_ = os.Remove(pidPath)
		return StopResult{}, ErrServerNotRunning
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return StopResult{}, fmt.Errorf("signal server process %d: %w", pid, err)
	}

	result := StopResult{PID: pid}
	deadline := time.Now().Add(gracePeriod)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			return result, nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return result, fmt.Errorf("kill server process %d: %w", pid, err)
	}
	_ = os.Remove(pidPath)
	_ = os.Remove(cfg.LockPath())
	result.ForcedKill = true
	return result, nil
}

func processAlive(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

// BuildStatusSnapshot asks the running server for its status and falls back
// to local checks when none answers.
func BuildStatusSnapshot(ctx context.Context, cfg *config.Config) (api.StatusResponse, error) {
	if cfg == nil {
		return api.StatusResponse{}, errors.New("configuration not available")
	}
	if client, err := NewClient(cfg); err == nil {
		status, statusErr := client.Status(ctx)
		if statusErr == nil {
			return status, nil
		}
		if !errors.Is(statusErr, ErrServerNotRunning) {
			return api.StatusResponse{}, statusErr
		}
	}

	status := api.StatusResponse{
		DatabasePath: cfg.DatabasePath(),
		LockFilePath: cfg.LockPath(),
		CacheDir:     cfg.Paths.CacheDir,
		Checks:       preflight.RunAll(ctx, cfg),
		Dependencies: preflight.CheckSystemDeps(cfg),
	}
	if _, err := os.Stat(cfg.DatabasePath()); err == nil {
		if store, openErr := catalog.Open(cfg); openErr == nil {
			if version, versionErr := store.SchemaVersion(ctx); versionErr == nil {
				status.SchemaVersion = version
			}
			_ = store.Close()
		}
	}
	return status, nil
}

func isServerUnavailable(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) || errors.Is(err, syscall.ECONNREFUSED)
}
