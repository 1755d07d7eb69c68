package ffprobe

import (
	"errors"
	"testing"
)

func TestDecodeAudioResult(t *testing.T) {
	payload := []byte(`{
		"streams": [{"index": 0, "codec_name": "mp3", "codec_type": "audio", "duration": "4.176", "sample_rate": "24000", "channels": 1}],
		"format": {"filename": "a.mp3", "nb_streams": 1, "duration": "4.200000", "format_name": "mp3"}
	}`)
	result, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if result.AudioStreamCount() != 1 || result.VideoStreamCount() != 0 {
		t.Fatalf("unexpected stream counts: %+v", result.Streams)
	}
	got, err := result.DurationSeconds()
	if err != nil || got != 4.2 {
		t.Fatalf("DurationSeconds = %v, %v", got, err)
	}
}

func TestDurationFallsBackToStreams(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "audio", Duration: "2.5"}, {CodecType: "audio", Duration: "3.1"}},
		Format:  Format{Duration: "N/A"},
	}
	got, err := result.DurationSeconds()
	if err != nil || got != 3.1 {
		t.Fatalf("DurationSeconds = %v, %v", got, err)
	}
}

func TestDurationMissing(t *testing.T) {
	result := Result{Format: Format{Duration: "bad"}, Streams: []Stream{{CodecType: "audio", Duration: "0"}}}
	if _, err := result.DurationSeconds(); !errors.Is(err, ErrNoDuration) {
		t.Fatalf("expected ErrNoDuration, got %v", err)
	}
}

func TestVideoDimensions(t *testing.T) {
	result := Result{Streams: []Stream{{CodecType: "audio"}, {CodecType: "video", Width: 1920, Height: 1080}}}
	w, h, ok := result.VideoDimensions()
	if !ok || w != 1920 || h != 1080 {
		t.Fatalf("VideoDimensions = %d,%d,%v", w, h, ok)
	}
	if _, _, ok := (Result{}).VideoDimensions(); ok {
		t.Fatal("expected no dimensions for empty result")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte("not json")); err == nil {
		t.Fatal("expected parse error")
	}
}
