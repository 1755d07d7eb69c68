package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"kaizen/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckSpeechService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer srv.Close()

	tests := []struct {
		name   string
		url    string
		key    string
		passed bool
	}{
		{name: "reachable", url: srv.URL, key: "good-key", passed: true},
		{name: "bad key", url: srv.URL, key: "bad-key"},
		{name: "missing url", url: "", key: "good-key"},
		{name: "missing key", url: srv.URL, key: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := CheckSpeechService(context.Background(), tc.url, tc.key)
			if result.Passed != tc.passed {
				t.Fatalf("expected passed=%v, got %+v", tc.passed, result)
			}
		})
	}
}

func TestCheckSpeechService_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if result := CheckSpeechService(context.Background(), srv.URL, "key"); result.Passed {
		t.Fatal("expected failure for 5xx response")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_NarrationDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.CacheDir = t.TempDir()
	cfg.Narration.Enabled = false

	results := RunAll(context.Background(), &cfg)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

func TestRunAll_IncludesSpeechWhenNarrationEnabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.CacheDir = filepath.Join(t.TempDir(), "missing")
	cfg.Narration.Enabled = true
	cfg.Speech.BaseURL = srv.URL
	cfg.Speech.APIKey = "test"

	results := RunAll(context.Background(), &cfg)
	if len(results) != 3 || results[2].Name != "Speech service" || !results[2].Passed {
		t.Fatalf("expected passing speech check, got %+v", results)
	}
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "Speech cache" {
		t.Fatalf("expected only the missing cache dir to fail, got %+v", failed)
	}
}

func TestCheckSystemDeps(t *testing.T) {
	cfg := config.Default()
	cfg.Speech.FFprobeBinary = "clearly-not-present-ffprobe"
	cfg.Narration.Enabled = false
	statuses := CheckSystemDeps(&cfg)
	if len(statuses) != 1 || statuses[0].Available || !statuses[0].Optional {
		t.Fatalf("expected optional unavailable ffprobe, got %+v", statuses)
	}
}
