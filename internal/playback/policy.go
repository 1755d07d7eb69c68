package playback

// Action is what happens once a segment completes.
type Action string

const (
	// ActionAdvance plays the next process.
	ActionAdvance Action = "advance"
	// ActionRestartList plays the first process again.
	ActionRestartList Action = "restart_list"
	// ActionReplay plays the same process from its start.
	ActionReplay Action = "replay"
	// ActionStop pauses everything and clears the playing state.
	ActionStop Action = "stop"
)

// Decision is the outcome of Decide. Index is the process to play next; for
// ActionStop it is the process that just finished.
type Decision struct {
	Action Action `json:"action"`
	Index  int    `json:"index"`
}

// Decide applies the segment-completion table. Looping takes priority:
// global mode advances and wraps to the first process, single-process mode
// replays. Without looping, global mode advances until the list runs out.
func Decide(looping, global bool, index, count int) Decision {
	remaining := global && index+1 < count
	switch {
	case looping && remaining:
		return Decision{Action: ActionAdvance, Index: index + 1}
	case looping && global:
		return Decision{Action: ActionRestartList, Index: 0}
	case looping:
		return Decision{Action: ActionReplay, Index: index}
	case remaining:
		return Decision{Action: ActionAdvance, Index: index + 1}
	default:
		return Decision{Action: ActionStop, Index: index}
	}
}
