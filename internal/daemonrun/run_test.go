package daemonrun

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"kaizen/internal/daemonctl"
	"kaizen/internal/logging"
	"kaizen/internal/media"
	"kaizen/internal/speech"
	"kaizen/internal/testsupport"
)

func TestProbeCacheReadsFFprobeOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFFprobeStub(
		`{"format":{"duration":"42.5"},"streams":[{"codec_type":"video","width":1280,"height":720}]}`))
	probes := NewProbeCache(cfg)

	src := media.Locator("/videos/before.mp4")
	for i := 0; i < 2; i++ {
		if err := probes.Warm(context.Background(), src); err != nil {
			t.Fatalf("Warm: %v", err)
		}
	}
	calls, err := os.ReadFile(cfg.Speech.FFprobeBinary + ".calls")
	if err != nil {
		t.Fatalf("read calls: %v", err)
	}
	if string(calls) != "x\n" {
		t.Fatalf("expected one ffprobe call, got %q", calls)
	}

	info, ok := probes.Lookup(src)
	if !ok || info.Width != 1280 || info.Height != 720 || !info.HasVideo {
		t.Fatalf("unexpected info %+v", info)
	}
	track := newTrack(probes)
	track.SetSource(src)
	if track.Duration() != 42.5 {
		t.Fatalf("expected 42.5s, got %v", track.Duration())
	}
}

func TestProbeCacheFailureLeavesLengthUnknown(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithFFprobeStub(`{"format":{}}`))
	probes := NewProbeCache(cfg)
	src := media.Locator("/videos/broken.mp4")
	if err := probes.Warm(context.Background(), src); err == nil {
		t.Fatal("expected probe failure")
	}
	if got := probes.Duration(src); got != 0 {
		t.Fatalf("expected unknown length, got %v", got)
	}
}

func TestRecordingNarratorFilesDurations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	probes := media.NewProbeCache(nil, 0)
	narrator := recordingNarrator{Narrator: NewNarrator(cfg, logging.NewNop(), nil), probes: probes}

	track, err := narrator.Prepare(context.Background(), "   ")
	if err != nil || !track.Empty() {
		t.Fatalf("expected placeholder, got %+v, %v", track, err)
	}
	if _, err := narrator.record(speech.AudioTrack{Src: media.Locator("/cache/a.mp3"), Duration: 3}, nil); err != nil {
		t.Fatalf("record: %v", err)
	}
	if got := probes.Duration(media.Locator("/cache/a.mp3")); got != 3 {
		t.Fatalf("expected recorded 3s, got %v", got)
	}
}

func TestEnsureCurrentLogPointer(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "kaizen-1.log")
	second := filepath.Join(dir, "kaizen-2.log")
	testsupport.WriteVideo(t, first, 1)
	testsupport.WriteVideo(t, second, 2)

	if err := ensureCurrentLogPointer(dir, first); err != nil {
		t.Fatalf("first pointer: %v", err)
	}
	if err := ensureCurrentLogPointer(dir, second); err != nil {
		t.Fatalf("second pointer: %v", err)
	}
	info, err := os.Stat(filepath.Join(dir, "kaizen.log"))
	if err != nil {
		t.Fatalf("stat pointer: %v", err)
	}
	if info.Size() != 2 {
		t.Fatalf("expected pointer to latest log, got size %d", info.Size())
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithNarration(false))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg, Options{LogLevel: "error"}) }()

	pidPath := daemonctl.PIDPath(cfg)
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(pidPath); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("server did not write pid file")
		}
		time.Sleep(20 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not stop")
	}
	if _, err := os.Stat(pidPath); !os.IsNotExist(err) {
		t.Fatalf("expected pid file removed, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.LogDir, "kaizen.log")); err != nil {
		t.Fatalf("expected kaizen.log pointer: %v", err)
	}
}
