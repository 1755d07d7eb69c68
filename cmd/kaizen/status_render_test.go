package main

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"kaizen/internal/api"
	"kaizen/internal/deps"
	"kaizen/internal/logging"
	"kaizen/internal/preflight"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Server", statusError, "not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Server:", "[ERROR] not running")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Server", statusOK, "running", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestRenderStatusSections(t *testing.T) {
	lines := renderStatus(api.StatusResponse{
		Running:       true,
		PID:           4242,
		DatabasePath:  "/data/kaizen.db",
		SchemaVersion: "3",
		CacheDir:      "/cache",
		Checks: []preflight.Result{
			{Name: "Speech service", Passed: false, Detail: "connection refused"},
		},
		Dependencies: []deps.Status{
			{Name: "FFprobe", Command: "ffprobe", Available: true},
			{Name: "Player", Optional: true},
		},
	}, false)
	output := strings.Join(lines, "\n")

	requireContains(t, output, "== Server ==")
	requireContains(t, output, "[OK] running (pid 4242)")
	requireContains(t, output, "[INFO] 3")
	requireContains(t, output, "== Checks ==")
	requireContains(t, output, "[ERROR] connection refused")
	requireContains(t, output, "[OK] ffprobe")
	requireContains(t, output, "[WARN] not found")
}

func TestRenderStatusOffline(t *testing.T) {
	lines := renderStatus(api.StatusResponse{DatabasePath: "/data/kaizen.db"}, false)
	output := strings.Join(lines, "\n")
	requireContains(t, output, "[WARN] not running")
	if strings.Contains(output, "== Checks ==") || strings.Contains(output, "Schema") {
		t.Fatalf("expected empty sections omitted, got:\n%s", output)
	}
}

func TestFormatLogEvent(t *testing.T) {
	evt := logging.LogEvent{
		Timestamp: time.Date(2024, 5, 1, 9, 30, 0, 0, time.Local),
		Level:     "warn",
		Message:   "drift corrected",
		Component: "playback",
		ProcessID: 7,
		Fields:    map[string]string{"track": "after", "drift": "0.4"},
	}
	got := formatLogEvent(evt)
	want := "2024-05-01 09:30:00 WARN  [playback] process=7 drift corrected drift=0.4 track=after"
	if got != want {
		t.Fatalf("formatLogEvent mismatch\n got: %q\nwant: %q", got, want)
	}
}
