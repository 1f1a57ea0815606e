package playback

import (
	"time"

	"github.com/osa030/19deck/internal/domain/queue"
	"github.com/osa030/19deck/internal/domain/track"
)

// Status is the set of facts the presentation layer renders after each
// state change. Every flag is derived from transport and queue state.
type Status struct {
	State         State
	CurrentTrack  *track.Track
	Frame         int
	Elapsed       time.Duration // Published position, or the drag position while seeking
	Total         time.Duration
	Seeking       bool
	Shuffle       bool
	Loop          bool
	CanGoNext     bool
	CanGoPrevious bool
	CanShuffle    bool
	CanLoop       bool
	QueueSize     int
	Queue         []track.Track
}

// TransportEnabled reports whether play/pause, stop and the position
// control apply to a track.
func (s Status) TransportEnabled() bool {
	return s.CurrentTrack != nil
}

// ShowPause reports whether the play/pause control should offer "pause".
func (s Status) ShowPause() bool {
	return s.State == StatePlaying
}

// Status returns a snapshot of the transport.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// statusLocked builds the snapshot.
// Must be called with mu held.
func (c *Controller) statusLocked() Status {
	s := Status{
		State:      c.state,
		Frame:      c.frame,
		Elapsed:    c.position,
		Seeking:    c.seeking,
		Shuffle:    c.queue.Shuffled(),
		Loop:       c.queue.Looping(),
		CanShuffle: c.queue.CanShuffle(),
		CanLoop:    c.queue.CanLoop(),
		QueueSize:  c.queue.Len(),
		Queue:      c.queue.Tracks(),
	}
	if c.current != nil {
		t := *c.current
		s.CurrentTrack = &t
		s.Total = t.Length
		s.CanGoPrevious, s.CanGoNext = queue.Navigability(
			c.queue.IsFirst(t.ID), c.queue.IsLast(t.ID), c.queue.Looping(), c.queue.Len())
	}
	if c.seeking {
		s.Elapsed = time.Duration(c.previewMs) * time.Millisecond
	}
	return s
}
