package playback

import (
	"sort"

	"kaizen/internal/catalog"
)

// MarkerColors cycles across markers in timeline order.
var MarkerColors = []string{"#4A90E2", "#50C878", "#F39C12", "#9B59B6", "#E74C3C", "#1ABC9C", "#F1C40F", "#E67E22"}

// Marker places one process window on a video's timeline.
type Marker struct {
	ProcessID int64   `json:"process_id"`
	Label     int     `json:"label"`
	Name      string  `json:"name"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	// Left and Width are percentages of the video duration.
	Left    float64 `json:"left"`
	Width   float64 `json:"width"`
	Color   string  `json:"color"`
	Current bool    `json:"current"`
	// SeekTo is where clicking the marker moves the video.
	SeekTo float64 `json:"seek_to"`
}

// Markers lays out the processes present in leg's recording, ordered by
// start time and labelled from 1. Processes without a recording in leg and
// empty windows are skipped. A non-positive duration yields no markers.
func Markers(processes []catalog.Process, leg Leg, duration float64, currentID int64) []Marker {
	if !finite(duration) || duration <= 0 || len(processes) == 0 {
		return nil
	}
	sorted := append([]catalog.Process(nil), processes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		si, _ := window(sorted[i], leg)
		sj, _ := window(sorted[j], leg)
		return si < sj
	})

	var out []Marker
	for i, p := range sorted {
		if !hasLeg(p, leg) {
			continue
		}
		start, end := window(p, leg)
		if start >= end {
			continue
		}
		seek := end
		if !finite(seek) {
			seek = 0
		}
		out = append(out, Marker{
			ProcessID: p.ID,
			Label:     i + 1,
			Name:      p.Name,
			Start:     start,
			End:       end,
			Left:      start / duration * 100,
			Width:     (end - start) / duration * 100,
			Color:     MarkerColors[i%len(MarkerColors)],
			Current:   p.ID == currentID,
			SeekTo:    seek,
		})
	}
	return out
}

// TotalTimeSaved sums time saved across processes.
func TotalTimeSaved(processes []catalog.Process) float64 {
	var total float64
	for _, p := range processes {
		total += p.ComputeTimeSaved()
	}
	return total
}
