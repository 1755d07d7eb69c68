package playback

import (
	"context"

	"kaizen/internal/catalog"
	"kaizen/internal/logging"
)

// Tick applies one time update: progress, the narration clock, drift
// correction, completion detection, and the segment decision. It is safe to
// call redundantly and does nothing unless a segment is playing.
func (c *Controller) Tick(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.processes) == 0 {
		return
	}
	p := c.processes[c.state.Index]
	c.updateProgressLocked(p)
	if c.state.Phase != PhasePlaying {
		return
	}
	c.state = Transition(c.state, Event{Kind: EventProgress, Elapsed: c.measureElapsedLocked()})
	if p.Separate() {
		c.tickSeparateLocked(ctx, p)
		return
	}
	c.tickCombinedLocked(ctx, p)
}

// tickCombinedLocked runs both videos under one narration. A video that
// reaches its window end replays while narration is still speaking and
// holds otherwise; the segment completes once every video has finished at
// least once and the narration is done.
func (c *Controller) tickCombinedLocked(ctx context.Context, p catalog.Process) {
	if p.Type == catalog.ProcessNormal && !c.seg.videoDone[LegBefore] && !c.seg.videoDone[LegAfter] {
		c.correctDriftLocked(p)
	}

	audioDone := c.narrationDoneLocked()
	legs := c.playingLegsLocked(p)
	for _, leg := range legs {
		if !c.videoFinishedLocked(p, leg) {
			continue
		}
		c.seg.videoDone[leg] = true
		if audioDone {
			c.video(leg).Pause()
			continue
		}
		c.replayLocked(ctx, p, leg)
	}

	for _, leg := range legs {
		if !c.seg.videoDone[leg] {
			return
		}
	}
	if audioDone {
		c.completeSegmentLocked(ctx, p)
	}
}

// tickSeparateLocked gates each leg on both its video and its narration.
// Video waits for narration by replaying; narration waits for video by
// pausing.
func (c *Controller) tickSeparateLocked(ctx context.Context, p catalog.Process) {
	leg := c.state.Leg
	finished := c.videoFinishedLocked(p, leg)
	if finished {
		c.seg.videoDone[leg] = true
	}
	audioDone := c.narrationDoneLocked()

	switch {
	case c.seg.videoDone[leg] && audioDone:
		c.video(leg).Pause()
		if next, ok := nextLeg(p, leg); ok {
			c.logger.Debug("leg complete",
				logging.String(logging.FieldSessionID, c.sessionID),
				logging.Int64(logging.FieldProcessID, p.ID),
				logging.String(logging.FieldLeg, string(leg)),
			)
			c.state = Transition(c.state, Event{Kind: EventLegComplete})
			if c.state.Leg == next {
				c.beginLegLocked(ctx, p)
			}
			return
		}
		c.completeSegmentLocked(ctx, p)
	case finished:
		c.replayLocked(ctx, p, leg)
	case audioDone:
		c.tracks.Narration.Pause()
	}
}

// narrationDoneLocked reports whether the active leg's narration has
// finished; a leg without narration audio is always done. Finished audio is
// paused so it waits for the video.
func (c *Controller) narrationDoneLocked() bool {
	if !c.audioLiveLocked() {
		return true
	}
	if c.audioFinishedLocked() {
		c.tracks.Narration.Pause()
		return true
	}
	return false
}

// correctDriftLocked re-seeks the after video to the before video's elapsed
// position once they differ by more than the threshold.
func (c *Controller) correctDriftLocked(p catalog.Process) {
	beforeElapsed := c.tracks.Before.Position() - p.BeforeStart
	afterElapsed := c.tracks.After.Position() - p.AfterStart
	target, ok := DriftCorrection(beforeElapsed, afterElapsed, c.opts.DriftThreshold)
	if !ok || target >= p.AfterDuration() {
		return
	}
	c.seekLocked(c.tracks.After, string(LegAfter), p.AfterStart+target)
	c.metrics.DriftCorrections.Inc()
	c.logger.Debug("after video re-synced",
		logging.String(logging.FieldSessionID, c.sessionID),
		logging.Float64("before_elapsed", beforeElapsed),
		logging.Float64("after_elapsed", afterElapsed),
	)
}

// replayLocked rewinds a video to its window start and plays it again.
func (c *Controller) replayLocked(ctx context.Context, p catalog.Process, leg Leg) {
	start, _ := window(p, leg)
	track := c.video(leg)
	c.seekLocked(track, string(leg), start)
	if err := track.Play(ctx); err != nil {
		c.metrics.PlayFailures.WithLabelValues(string(leg)).Inc()
		logging.WarnWithContext(c.logger, "video replay rejected", "replay_rejected",
			logging.String(logging.FieldSessionID, c.sessionID),
			logging.Int64(logging.FieldProcessID, p.ID),
			logging.String(logging.FieldLeg, string(leg)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "video holds while narration finishes"),
		)
		return
	}
	track.SetRate(c.opts.Rate)
}

// completeSegmentLocked applies the segment-completion decision.
func (c *Controller) completeSegmentLocked(ctx context.Context, p catalog.Process) {
	d := Decide(c.opts.Looping, c.opts.GlobalMode, c.state.Index, len(c.processes))
	c.metrics.Segments.WithLabelValues(string(d.Action)).Inc()
	c.logger.Info("segment complete", logging.Args(append(
		logging.DecisionAttrs("segment_complete", string(d.Action), "narration and videos finished"),
		logging.String(logging.FieldSessionID, c.sessionID),
		logging.Int64(logging.FieldProcessID, p.ID),
		logging.Int("next_index", d.Index),
	)...)...)

	next := Transition(c.state, Event{Kind: EventSegmentComplete, Decision: d, Leg: firstLeg(c.processes[d.Index])})
	if d.Action == ActionStop {
		c.pauseTracksLocked()
		c.state = next
		return
	}
	if d.Index != c.state.Index {
		c.selectLocked(d.Index)
	}
	c.state = next
	c.beginSegmentLocked(ctx)
}
