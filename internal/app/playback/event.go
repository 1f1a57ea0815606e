package playback

import "github.com/osa030/19deck/internal/domain/track"

// EventType represents a playback event type.
type EventType int

const (
	EventTrackStarted  EventType = iota // A track became current
	EventTrackEnded                     // The current track ran out of frames
	EventTrackSkipped                   // The current track was left via next/previous/remove
	EventStateChanged                   // Transport state changed (pause/resume/stop)
	EventQueueChanged                   // Queue contents or modes changed
	EventQueueEmpty                     // Playback stopped because nothing is left to play
	EventSeeked                         // A seek completed
	EventProgress                       // Published position crossed a second boundary
	EventPlaybackError                  // Decode or device failure stopped playback
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackStarted:
		return "track_started"
	case EventTrackEnded:
		return "track_ended"
	case EventTrackSkipped:
		return "track_skipped"
	case EventStateChanged:
		return "state_changed"
	case EventQueueChanged:
		return "queue_changed"
	case EventQueueEmpty:
		return "queue_empty"
	case EventSeeked:
		return "seeked"
	case EventProgress:
		return "progress"
	case EventPlaybackError:
		return "playback_error"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type  EventType
	Track *track.Track // Track the event refers to (nil for some events)
	State State        // Transport state after the event
	Frame int          // Frame index after the event
	Err   error        // Set for EventPlaybackError
}
