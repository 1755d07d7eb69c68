package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogsCommandFallsBackToLogFile(t *testing.T) {
	env := setupCLITestEnv(t)
	logPath := filepath.Join(env.cfg.Paths.LogDir, "kaizen.log")
	if err := os.MkdirAll(env.cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir log dir: %v", err)
	}
	if err := os.WriteFile(logPath, []byte("alpha\nbeta\ngamma\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "-n", "2"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Contains(out, "alpha") {
		t.Fatalf("expected only the last two lines, got %q", out)
	}
	requireContains(t, out, "beta\ngamma\n")

	out, _, err = runCLI(t, []string{"logs", "-n", "0"}, env.configPath)
	if err != nil {
		t.Fatalf("logs -n 0: %v", err)
	}
	requireContains(t, out, "alpha\nbeta\ngamma\n")
}

func TestLogsCommandFiltersNeedServer(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"logs", "--component", "playback"}, env.configPath); err == nil {
		t.Fatal("expected filters to require a running server")
	}
}

func TestLogsCommandEmpty(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"logs"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "No log entries available")
}
