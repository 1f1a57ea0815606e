// Package playback provides the transport: queue ownership, play/pause/stop,
// seeking and the supervised decode worker.
package playback

// State represents the transport state.
type State int

const (
	StateStopped State = iota // No current track
	StatePlaying              // Worker is decoding the current track
	StatePaused               // Current track is held at a frame
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}
