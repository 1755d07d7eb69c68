package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kaizen/internal/catalog"
	"kaizen/internal/timing"
)

func TestTimingCommandWithDuration(t *testing.T) {
	out, _, err := runCLI(t, []string{"timing", "--duration", "2", "Hello, world."}, "")
	if err != nil {
		t.Fatalf("timing: %v", err)
	}
	requireContains(t, out, "over 2.00s")
	requireContains(t, out, "Hello, world.")
}

func TestTimingCommandJSONUsesSpeed(t *testing.T) {
	out, _, err := runCLI(t, []string{"timing", "--speed", "5", "--json", "abcde"}, "")
	if err != nil {
		t.Fatalf("timing: %v", err)
	}
	var segments []timing.Segment
	if err := json.Unmarshal([]byte(out), &segments); err != nil {
		t.Fatalf("decode segments: %v\n%s", err, out)
	}
	if got := timing.Duration(segments); got != 1 {
		t.Fatalf("expected 1s at 5 chars/s, got %v", got)
	}
}

func TestTimingCommandTokens(t *testing.T) {
	out, _, err := runCLI(t, []string{"timing", "--duration", "1", "--tokens", "Go"}, "")
	if err != nil {
		t.Fatalf("timing: %v", err)
	}
	requireContains(t, out, `"Go"`)
	requireContains(t, out, string(timing.KindWord))
}

func TestTimingCommandBlankText(t *testing.T) {
	if _, _, err := runCLI(t, []string{"timing", "--duration", "1", ""}, ""); err == nil {
		t.Fatal("expected error for text without timing data")
	}
}

func TestSubtitleExportEstimated(t *testing.T) {
	env := setupCLITestEnv(t)
	seedStage(t, env,
		catalog.Process{
			Name: "Pick", BeforeEnd: 8, AfterEnd: 4,
			SubtitleMode: catalog.SubtitleSeparate,
			SubtitleText: "Walk to the rack.", SubtitleAfter: "Parts are at hand.",
		},
		catalog.Process{Name: "Silent", BeforeEnd: 2, AfterEnd: 1},
	)
	target := filepath.Join(t.TempDir(), "pick.ass")

	_, errOut, err := runCLI(t, []string{"subtitle", "export", "1", "--estimate", "-o", target}, env.configPath)
	if err != nil {
		t.Fatalf("subtitle export: %v", err)
	}
	requireContains(t, errOut, "Wrote 2 segments")

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	script := string(data)
	requireContains(t, script, "Title: Pick")
	if got := strings.Count(script, "Dialogue:"); got != 2 {
		t.Fatalf("expected 2 dialogue lines, got %d:\n%s", got, script)
	}
	requireContains(t, script, `{\kf`)

	if _, _, err := runCLI(t, []string{"subtitle", "export", "2", "--estimate"}, env.configPath); err == nil {
		t.Fatal("expected error for process without narration")
	}
}

func TestShiftSegments(t *testing.T) {
	segments := timing.Map("Hi.", 1)
	shifted := shiftSegments(segments, 2.5)
	if shifted[0].Start != 2.5 || timing.Duration(shifted) != 3.5 {
		t.Fatalf("unexpected shifted segment %+v", shifted[0])
	}
	if shifted[0].Tokens[0].Start != 2.5 {
		t.Fatalf("expected tokens shifted, got %+v", shifted[0].Tokens[0])
	}
	if segments[0].Start != 0 {
		t.Fatal("expected input segments untouched")
	}
}
