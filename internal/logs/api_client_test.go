package logs_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"kaizen/internal/api"
	"kaizen/internal/logging"
	"kaizen/internal/logs"
)

func TestNewStreamClientEmptyBind(t *testing.T) {
	client, err := logs.NewStreamClient("", "")
	if err != nil {
		t.Fatalf("NewStreamClient error: %v", err)
	}
	if client != nil {
		t.Fatal("expected nil client for empty bind")
	}
}

func TestStreamClientFetchBuildsQueryAndDecodes(t *testing.T) {
	var (
		gotQuery url.Values
		gotAuth  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.LogStreamResponse{
			Events: []logging.LogEvent{{
				Timestamp: time.Now().UTC(),
				Level:     "INFO",
				Message:   "segment complete",
			}},
			Next: 42,
		})
	}))
	defer srv.Close()

	client, err := logs.NewStreamClient(srv.URL, "secret")
	if err != nil {
		t.Fatalf("NewStreamClient error: %v", err)
	}

	resp, err := client.Fetch(context.Background(), logs.StreamQuery{
		Since:     3,
		Limit:     50,
		Follow:    true,
		Tail:      true,
		Component: "playback",
		ProcessID: 99,
		SessionID: "abc",
	})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(resp.Events) != 1 || resp.Next != 42 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("expected bearer token, got %q", gotAuth)
	}

	for key, want := range map[string]string{
		"since":     "3",
		"limit":     "50",
		"follow":    "1",
		"tail":      "1",
		"component": "playback",
		"process":   "99",
		"session":   "abc",
	} {
		if got := gotQuery.Get(key); got != want {
			t.Fatalf("query[%s]: expected %q, got %q", key, want, got)
		}
	}
}

func TestStreamClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, _ := logs.NewStreamClient(srv.URL, "")
	if _, err := client.Fetch(context.Background(), logs.StreamQuery{}); err == nil {
		t.Fatal("expected error for 401 response")
	}
}

func TestIsAPIUnavailable(t *testing.T) {
	if !logs.IsAPIUnavailable(logs.ErrAPIUnavailable) {
		t.Fatal("expected ErrAPIUnavailable to be unavailable")
	}
	if logs.IsAPIUnavailable(errors.New("other")) {
		t.Fatal("did not expect generic error to be unavailable")
	}

	client, _ := logs.NewStreamClient("127.0.0.1:1", "")
	_, err := client.Fetch(context.Background(), logs.StreamQuery{})
	if !logs.IsAPIUnavailable(err) {
		t.Fatalf("expected refused connection to be unavailable, got %v", err)
	}
}
