// Package queue provides the play queue with shuffle and loop modes.
package queue

import (
	"math/rand/v2"
	"time"

	"github.com/samber/lo"

	"github.com/osa030/19deck/internal/domain/track"
)

// Queue is the ordered playlist. It keeps the active order and, while shuffle
// is enabled, a snapshot of the order from before shuffling.
// Queue is not safe for concurrent use; the playback controller guards it.
type Queue struct {
	tracks     []track.Track // Active order
	unshuffled []track.Track // Pre-shuffle order (only while shuffled)
	shuffled   bool
	loop       bool
	rng        *rand.Rand
}

// Option configures a Queue.
type Option func(*Queue)

// WithRand sets the random source used for shuffling.
func WithRand(r *rand.Rand) Option {
	return func(q *Queue) {
		q.rng = r
	}
}

// New creates an empty queue.
func New(opts ...Option) *Queue {
	q := &Queue{
		tracks: make([]track.Track, 0),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.rng == nil {
		q.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return q
}

// Add appends a track. While shuffled, the track is appended to the
// pre-shuffle order as well.
func (q *Queue) Add(t track.Track) {
	q.tracks = append(q.tracks, t)
	if q.shuffled {
		q.unshuffled = append(q.unshuffled, t)
	}
}

// Remove removes the track with the given ID from both orders.
func (q *Queue) Remove(id string) (track.Track, bool) {
	idx := q.IndexOf(id)
	if idx < 0 {
		return track.Track{}, false
	}
	removed := q.tracks[idx]
	q.tracks = append(q.tracks[:idx], q.tracks[idx+1:]...)
	if q.shuffled {
		q.unshuffled = lo.Reject(q.unshuffled, func(t track.Track, _ int) bool {
			return t.ID == id
		})
	}
	return removed, true
}

// Get returns the track with the given ID.
func (q *Queue) Get(id string) (track.Track, bool) {
	return lo.Find(q.tracks, func(t track.Track) bool {
		return t.ID == id
	})
}

// IndexOf returns the position of the track in the active order, or -1.
func (q *Queue) IndexOf(id string) int {
	_, idx, ok := lo.FindIndexOf(q.tracks, func(t track.Track) bool {
		return t.ID == id
	})
	if !ok {
		return -1
	}
	return idx
}

// Contains reports whether a track with the given ID is queued.
func (q *Queue) Contains(id string) bool {
	return q.IndexOf(id) >= 0
}

// At returns the track at the given position of the active order.
func (q *Queue) At(i int) (track.Track, bool) {
	if i < 0 || i >= len(q.tracks) {
		return track.Track{}, false
	}
	return q.tracks[i], true
}

// Len returns the number of queued tracks.
func (q *Queue) Len() int {
	return len(q.tracks)
}

// Tracks returns a copy of the active order.
func (q *Queue) Tracks() []track.Track {
	result := make([]track.Track, len(q.tracks))
	copy(result, q.tracks)
	return result
}

// Unshuffled returns a copy of the pre-shuffle order, or nil when not shuffled.
func (q *Queue) Unshuffled() []track.Track {
	if !q.shuffled {
		return nil
	}
	result := make([]track.Track, len(q.unshuffled))
	copy(result, q.unshuffled)
	return result
}

// TrackIDs returns the IDs of the active order.
func (q *Queue) TrackIDs() []string {
	return lo.Map(q.tracks, func(t track.Track, _ int) string {
		return t.ID
	})
}

// TotalDuration returns the summed length of all queued tracks.
func (q *Queue) TotalDuration() time.Duration {
	return lo.SumBy(q.tracks, func(t track.Track) time.Duration {
		return t.Length
	})
}

// Shuffled reports whether shuffle mode is enabled.
func (q *Queue) Shuffled() bool {
	return q.shuffled
}

// Looping reports whether loop mode is enabled.
func (q *Queue) Looping() bool {
	return q.loop
}

// ToggleShuffle flips shuffle mode and returns the new mode.
// On enable, currentID (if queued) is moved to the head of the shuffled order.
// On disable, the pre-shuffle order is restored.
func (q *Queue) ToggleShuffle(currentID string) bool {
	if q.shuffled {
		q.tracks = q.unshuffled
		q.unshuffled = nil
		q.shuffled = false
		return false
	}

	q.unshuffled = make([]track.Track, len(q.tracks))
	copy(q.unshuffled, q.tracks)

	// Fisher–Yates
	for i := len(q.tracks) - 1; i > 0; i-- {
		j := q.rng.IntN(i + 1)
		q.tracks[i], q.tracks[j] = q.tracks[j], q.tracks[i]
	}

	if idx := q.IndexOf(currentID); idx > 0 {
		q.tracks[0], q.tracks[idx] = q.tracks[idx], q.tracks[0]
	}

	q.shuffled = true
	return true
}

// ToggleLoop flips loop mode and returns the new mode.
func (q *Queue) ToggleLoop() bool {
	q.loop = !q.loop
	return q.loop
}

// SetLoop sets loop mode.
func (q *Queue) SetLoop(enabled bool) {
	q.loop = enabled
}

// IsFirst reports whether the track is at the head of the active order.
func (q *Queue) IsFirst(id string) bool {
	return len(q.tracks) > 0 && q.tracks[0].ID == id
}

// IsLast reports whether the track is at the tail of the active order.
func (q *Queue) IsLast(id string) bool {
	return len(q.tracks) > 0 && q.tracks[len(q.tracks)-1].ID == id
}

// Next returns the track after id, wrapping to the head when looping.
func (q *Queue) Next(id string) (track.Track, bool) {
	idx := q.IndexOf(id)
	if idx < 0 {
		return track.Track{}, false
	}
	if idx == len(q.tracks)-1 {
		if !q.loop {
			return track.Track{}, false
		}
		return q.tracks[0], true
	}
	return q.tracks[idx+1], true
}

// Previous returns the track before id, wrapping to the tail when looping.
func (q *Queue) Previous(id string) (track.Track, bool) {
	idx := q.IndexOf(id)
	if idx < 0 {
		return track.Track{}, false
	}
	if idx == 0 {
		if !q.loop {
			return track.Track{}, false
		}
		return q.tracks[len(q.tracks)-1], true
	}
	return q.tracks[idx-1], true
}

// CanGoNext reports whether "next" is available while id is current.
func (q *Queue) CanGoNext(id string) bool {
	if !q.Contains(id) {
		return false
	}
	_, next := Navigability(q.IsFirst(id), q.IsLast(id), q.loop, len(q.tracks))
	return next
}

// CanGoPrevious reports whether "previous" is available while id is current.
func (q *Queue) CanGoPrevious(id string) bool {
	if !q.Contains(id) {
		return false
	}
	prev, _ := Navigability(q.IsFirst(id), q.IsLast(id), q.loop, len(q.tracks))
	return prev
}

// CanShuffle reports whether shuffling would change anything.
func (q *Queue) CanShuffle() bool {
	return len(q.tracks) > 1
}

// CanLoop reports whether loop mode can be toggled.
func (q *Queue) CanLoop() bool {
	return len(q.tracks) > 0
}

// Navigability decides which of previous/next are allowed for the current
// track's position.
func Navigability(isFirst, isLast, loop bool, length int) (prev, next bool) {
	if length < 1 {
		return false, false
	}
	if loop {
		return true, true
	}
	return !isFirst, !isLast
}
