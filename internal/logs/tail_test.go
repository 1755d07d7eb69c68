package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"kaizen/internal/logs"
)

func TestTailLastLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kaizen.log")
	if err := os.WriteFile(path, []byte("a\nb\nc\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("tail returned error: %v", err)
	}
	if len(result.Lines) != 2 || result.Lines[0] != "b" || result.Lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", result.Lines)
	}
	if result.Offset != 6 {
		t.Fatalf("expected offset at end of file, got %d", result.Offset)
	}

	none, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1})
	if err != nil || len(none.Lines) != 0 || none.Offset != 6 {
		t.Fatalf("expected zero-limit tail to skip to end, got %+v err=%v", none, err)
	}

	fromOffset, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: 2})
	if err != nil || len(fromOffset.Lines) != 2 || fromOffset.Lines[0] != "b" {
		t.Fatalf("unexpected offset read %+v err=%v", fromOffset, err)
	}
}

func TestTailMissingFile(t *testing.T) {
	result, err := logs.Tail(context.Background(), filepath.Join(t.TempDir(), "absent.log"), logs.TailOptions{Offset: -1, Limit: 10})
	if err != nil || len(result.Lines) != 0 || result.Offset != 0 {
		t.Fatalf("expected empty result for missing file, got %+v err=%v", result, err)
	}
}

func TestTailFollowWaits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kaizen.log")
	if err := os.WriteFile(path, []byte("start\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	result, err := logs.Tail(ctx, path, logs.TailOptions{Offset: -1, Limit: 1})
	if err != nil {
		t.Fatalf("initial tail: %v", err)
	}
	if len(result.Lines) != 1 {
		t.Fatalf("expected initial line, got %#v", result.Lines)
	}

	type outcome struct {
		res logs.TailResult
		err error
	}
	done := make(chan outcome, 1)
	go func(offset int64) {
		res, err := logs.Tail(ctx, path, logs.TailOptions{Offset: offset, Follow: true, Wait: 5 * time.Second})
		done <- outcome{res, err}
	}(result.Offset)

	time.Sleep(200 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("later\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
	_ = f.Close()

	select {
	case got := <-done:
		if got.err != nil {
			t.Fatalf("follow tail error: %v", got.err)
		}
		if len(got.res.Lines) != 1 || got.res.Lines[0] != "later" {
			t.Fatalf("unexpected follow lines: %#v", got.res.Lines)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("tail follow did not return")
	}
}
