package daemon_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"kaizen/internal/api"
	"kaizen/internal/config"
	"kaizen/internal/daemon"
	"kaizen/internal/logging"
	"kaizen/internal/media"
	"kaizen/internal/playback"
	"kaizen/internal/testsupport"
)

func newDaemon(t *testing.T, cfg *config.Config) *daemon.Daemon {
	t.Helper()
	store := testsupport.MustOpenStore(t, cfg)
	clock := media.NewManualClock(time.Unix(0, 0))
	controller := playback.New(playback.Tracks{
		Before:    media.NewSimTrack(clock, 30),
		After:     media.NewSimTrack(clock, 30),
		Narration: media.NewSimTrack(clock, 0),
	}, nil, playback.Options{Clock: clock}, logging.NewNop())
	d, err := daemon.New(cfg, store, controller, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithNarration(false))
	d := newDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if d.Addr() == "" {
		t.Fatal("expected api listener address")
	}

	resp, err := http.Get("http://" + d.Addr() + "/api/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	var status api.StatusResponse
	err = json.NewDecoder(resp.Body).Decode(&status)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Running || status.LockFilePath != cfg.LockPath() || status.SchemaVersion == "" {
		t.Fatalf("unexpected status %+v", status)
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second Start to fail")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon stopped")
	}
	if d.Addr() != "" {
		t.Fatal("expected listener closed after Stop")
	}

	if err := d.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	d.Stop()
}

func TestDaemonSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithNarration(false))
	first := newDaemon(t, cfg)

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer first.Stop()

	second := newDaemon(t, cfg)
	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("expected lock contention error")
	}
}

func TestDaemonLoadStageAndPlayer(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithNarration(false))
	d := newDaemon(t, cfg)
	ctx := context.Background()

	if _, err := d.LoadStage(ctx, 42); err == nil {
		t.Fatal("expected unknown stage error")
	}

	resp, err := d.Player(ctx, api.Viewport{})
	if err != nil {
		t.Fatalf("Player: %v", err)
	}
	if resp.Player.ProcessCount != 0 || resp.Subtitle.Visible {
		t.Fatalf("expected empty player, got %+v", resp)
	}
	if resp.Annotations == nil {
		t.Fatal("expected annotation map")
	}
}
