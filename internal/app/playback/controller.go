package playback

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19deck/internal/domain/queue"
	"github.com/osa030/19deck/internal/domain/track"
)

// Errors
var (
	ErrNoTrack        = errors.New("no track playing")
	ErrQueueEmpty     = errors.New("queue is empty")
	ErrNotPlaying     = errors.New("not playing")
	ErrNotPaused      = errors.New("not paused")
	ErrNotSeeking     = errors.New("no seek in progress")
	ErrTrackNotFound  = errors.New("track not found")
	ErrDuplicateTrack = errors.New("track already queued")
	ErrInvalidTrack   = errors.New("track has no identity")
	ErrClosed         = errors.New("controller is closed")
)

// Config holds controller configuration.
type Config struct {
	EventBuffer int        // Capacity of the event channel
	Loop        bool       // Initial loop mode
	Rand        *rand.Rand // Random source for shuffling (nil for a seeded default)
}

// Controller is the transport. It owns the queue, the current track and its
// frame position, and supervises at most one decode worker.
//
// cmdMu serialises commands, including the wait for a superseded worker.
// mu guards the shared fields and is held only for short sections; it is
// never held while waiting for a worker or opening a source or device.
type Controller struct {
	cmdMu sync.Mutex
	mu    sync.Mutex

	queue   *queue.Queue
	decoder Decoder
	output  Output

	// Transport state
	current    *track.Track
	state      State
	frame      int           // Frames consumed from the current source
	position   time.Duration // Last published elapsed time
	lastSecond int64         // Last whole second reported by EventProgress
	seeking    bool
	previewMs  int64 // Position shown while seeking

	// Worker supervision
	generation uint64
	reader     FrameReader
	worker     *worker

	// Events
	eventCh chan Event
	closed  bool
}

// NewController creates a new playback controller.
func NewController(config Config, decoder Decoder, output Output) *Controller {
	if config.EventBuffer <= 0 {
		config.EventBuffer = 32
	}
	var opts []queue.Option
	if config.Rand != nil {
		opts = append(opts, queue.WithRand(config.Rand))
	}
	q := queue.New(opts...)
	q.SetLoop(config.Loop)

	return &Controller{
		queue:   q,
		decoder: decoder,
		output:  output,
		state:   StateStopped,
		eventCh: make(chan Event, config.EventBuffer),
	}
}

// Events returns the event channel.
func (c *Controller) Events() <-chan Event {
	return c.eventCh
}

// Add appends a track to the queue.
func (c *Controller) Add(t track.Track) error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if t.ID == "" {
		return ErrInvalidTrack
	}
	if c.queue.Contains(t.ID) {
		return errors.Wrapf(ErrDuplicateTrack, "track %s", t.ID)
	}

	c.queue.Add(t)
	zlog.Debug().Msgf("playback: track added: id=%s title=%s queue_size=%d", t.ID, t.Title, c.queue.Len())
	c.sendEventLocked(Event{Type: EventQueueChanged})
	return nil
}

// Remove removes a track from the queue. If it is the current track, the
// transport first moves off it the same way the end of the track would.
func (c *Controller) Remove(id string) error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.queue.Contains(id) {
		c.mu.Unlock()
		return errors.Wrapf(ErrTrackNotFound, "track %s", id)
	}
	isCurrent := c.current != nil && c.current.ID == id
	var (
		leaving   track.Track
		target    track.Track
		hasTarget bool
		mode      = c.state
	)
	if isCurrent {
		leaving = *c.current
		target, hasTarget = c.queue.Next(id)
		if hasTarget && target.ID == id {
			hasTarget = false
		}
	}
	c.mu.Unlock()

	// The track is removed even when advancing fails; the failure is still
	// returned to the caller.
	var advanceErr error
	if isCurrent {
		if !hasTarget {
			c.stopPlayback(EventQueueEmpty)
		} else if err := c.switchTo(target, mode, &leaving); err != nil {
			zlog.Error().Msgf("playback: failed to advance off removed track: %v", err)
			c.failPlayback(err)
			advanceErr = errors.Wrapf(err, "removed %q but could not advance", leaving.Title)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	removed, _ := c.queue.Remove(id)
	zlog.Debug().Msgf("playback: track removed: id=%s title=%s queue_size=%d", removed.ID, removed.Title, c.queue.Len())
	c.sendEventLocked(Event{Type: EventQueueChanged, Track: &removed})
	return advanceErr
}

// ClearQueue stops playback and removes all tracks.
func (c *Controller) ClearQueue() []track.Track {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	c.stopPlayback(EventStateChanged)

	c.mu.Lock()
	defer c.mu.Unlock()
	removed := c.queue.Tracks()
	for _, t := range removed {
		c.queue.Remove(t.ID)
	}
	c.sendEventLocked(Event{Type: EventQueueChanged})
	return removed
}

// PlayTrack starts playing the given track from frame 0.
func (c *Controller) PlayTrack(id string) error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	t, ok := c.queue.Get(id)
	var leaving *track.Track
	if c.current != nil {
		prev := *c.current
		leaving = &prev
	}
	c.mu.Unlock()

	if !ok {
		return errors.Wrapf(ErrTrackNotFound, "track %s", id)
	}
	return c.switchTo(t, StatePlaying, leaving)
}

// PlayPause toggles between playing and paused. When stopped it starts the
// first track of the queue.
func (c *Controller) PlayPause() error {
	c.mu.Lock()
	state := c.state
	first, ok := c.queue.At(0)
	c.mu.Unlock()

	switch state {
	case StatePlaying:
		return c.Pause()
	case StatePaused:
		return c.Resume()
	default:
		if !ok {
			return ErrQueueEmpty
		}
		return c.PlayTrack(first.ID)
	}
}

// Pause stops the worker after its current frame and keeps the position.
func (c *Controller) Pause() error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.current == nil {
		c.mu.Unlock()
		return ErrNoTrack
	}
	if c.state != StatePlaying {
		c.mu.Unlock()
		return ErrNotPlaying
	}
	c.mu.Unlock()

	c.haltWorker()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StatePaused
	zlog.Debug().Msgf("playback: paused: track=%s frame=%d", c.current.Title, c.frame)
	c.sendEventLocked(Event{Type: EventStateChanged, Track: c.current})
	return nil
}

// Resume starts a new worker continuing from the stored frame.
func (c *Controller) Resume() error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.current == nil {
		c.mu.Unlock()
		return ErrNoTrack
	}
	if c.state != StatePaused {
		c.mu.Unlock()
		return ErrNotPaused
	}
	c.mu.Unlock()

	device, err := c.output.Open()
	if err != nil {
		return errors.Wrap(err, "failed to open output device")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StatePlaying
	c.startWorkerLocked(device)
	zlog.Debug().Msgf("playback: resumed: track=%s frame=%d", c.current.Title, c.frame)
	c.sendEventLocked(Event{Type: EventStateChanged, Track: c.current})
	return nil
}

// Stop stops playback and clears the current track.
func (c *Controller) Stop() error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}

	c.stopPlayback(EventStateChanged)
	return nil
}

// Next moves to the following track, keeping the playing/paused mode.
// On the last track without loop it behaves as Stop.
func (c *Controller) Next() error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.current == nil {
		c.mu.Unlock()
		return ErrNoTrack
	}
	leaving := *c.current
	mode := c.state
	target, ok := c.queue.Next(leaving.ID)
	c.mu.Unlock()

	if !ok {
		c.stopPlayback(EventStateChanged)
		return nil
	}
	return c.switchTo(target, mode, &leaving)
}

// Previous moves to the preceding track, keeping the playing/paused mode.
// On the first track without loop it does nothing.
func (c *Controller) Previous() error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.current == nil {
		c.mu.Unlock()
		return ErrNoTrack
	}
	leaving := *c.current
	mode := c.state
	target, ok := c.queue.Previous(leaving.ID)
	c.mu.Unlock()

	if !ok {
		return nil
	}
	return c.switchTo(target, mode, &leaving)
}

// SeekBegin marks the start of a position drag. Published elapsed time is
// frozen until SeekEnd; the worker keeps decoding.
// Without a current track there is nothing to drag and the call does nothing.
func (c *Controller) SeekBegin() error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.current == nil {
		return nil
	}
	c.seeking = true
	c.previewMs = c.position.Milliseconds()
	return nil
}

// SeekPreview updates the position shown while a drag is in progress.
func (c *Controller) SeekPreview(targetMs int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.seeking || c.current == nil {
		return ErrNotSeeking
	}
	c.previewMs = clampMs(targetMs, c.current.LengthMs())
	return nil
}

// SeekEnd re-opens the current track, skips to the frame at targetMs and
// continues in the mode that was active before the seek.
func (c *Controller) SeekEnd(targetMs int64) error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.seeking {
		c.mu.Unlock()
		return ErrNotSeeking
	}
	if c.current == nil {
		c.seeking = false
		c.mu.Unlock()
		return ErrNoTrack
	}
	cur := *c.current
	mode := c.state
	c.mu.Unlock()

	targetFrame := cur.FrameAt(targetMs)

	reader, device, err := c.openSession(cur, mode == StatePlaying)
	if err != nil {
		c.mu.Lock()
		c.seeking = false
		c.mu.Unlock()
		return err
	}

	c.haltWorker()

	skipped := 0
	for skipped < targetFrame {
		if err := reader.SkipFrame(); err != nil {
			if isEOF(err) {
				break
			}
			_ = reader.Close()
			if device != nil {
				_ = device.Close()
			}
			err = errors.Wrapf(err, "failed to skip to frame %d of %q", targetFrame, cur.Title)
			c.failPlayback(err)
			return err
		}
		skipped++
	}

	c.mu.Lock()
	old := c.reader
	c.reader = reader
	c.frame = skipped
	c.position = cur.Elapsed(skipped)
	c.lastSecond = int64(c.position / time.Second)
	c.seeking = false
	c.previewMs = 0
	if mode == StatePlaying {
		c.startWorkerLocked(device)
	}
	zlog.Debug().Msgf("playback: seeked: track=%s target_ms=%d frame=%d", cur.Title, targetMs, skipped)
	c.sendEventLocked(Event{Type: EventSeeked, Track: c.current})
	c.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	return nil
}

// ToggleShuffle flips shuffle mode; the current track stays current and moves
// to the head of the shuffled order.
func (c *Controller) ToggleShuffle() bool {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()

	var currentID string
	if c.current != nil {
		currentID = c.current.ID
	}
	enabled := c.queue.ToggleShuffle(currentID)
	zlog.Debug().Msgf("playback: shuffle=%t", enabled)
	c.sendEventLocked(Event{Type: EventQueueChanged, Track: c.current})
	return enabled
}

// ToggleLoop flips loop mode.
func (c *Controller) ToggleLoop() bool {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()

	enabled := c.queue.ToggleLoop()
	zlog.Debug().Msgf("playback: loop=%t", enabled)
	c.sendEventLocked(Event{Type: EventQueueChanged, Track: c.current})
	return enabled
}

// GetState returns the current transport state.
func (c *Controller) GetState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// GetCurrentTrack returns the current track.
func (c *Controller) GetCurrentTrack() (*track.Track, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return nil, false
	}
	t := *c.current
	return &t, true
}

// GetFrame returns the current frame index.
func (c *Controller) GetFrame() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame
}

// GetQueuedTracks returns a copy of the queue in active order.
func (c *Controller) GetQueuedTracks() []track.Track {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.Tracks()
}

// GetAllTracks returns a copy of the queue in active order.
// Implements filter.QueueReader.
func (c *Controller) GetAllTracks() []track.Track {
	return c.GetQueuedTracks()
}

// GetQueueSize returns the number of queued tracks.
func (c *Controller) GetQueueSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.Len()
}

// IsInQueue checks if a track is queued.
func (c *Controller) IsInQueue(trackID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.Contains(trackID)
}

// Close stops playback and closes the event channel.
func (c *Controller) Close() {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.stopPlayback(EventStateChanged)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	close(c.eventCh)
}

// switchTo makes target the current track at frame 0 in the given mode.
// The new source (and device, when playing) is opened before the live worker
// is halted, so a failed open leaves the transport untouched.
// Must be called with cmdMu held.
func (c *Controller) switchTo(target track.Track, mode State, leaving *track.Track) error {
	reader, device, err := c.openSession(target, mode == StatePlaying)
	if err != nil {
		return err
	}

	c.haltWorker()

	c.mu.Lock()
	old := c.reader
	if leaving != nil && leaving.ID != target.ID {
		c.sendEventLocked(Event{Type: EventTrackSkipped, Track: leaving, Frame: c.frame})
	}
	t := target
	c.current = &t
	c.reader = reader
	c.frame = 0
	c.position = 0
	c.lastSecond = 0
	c.seeking = false
	c.previewMs = 0
	c.state = mode
	if mode == StatePlaying {
		c.startWorkerLocked(device)
	}
	zlog.Debug().Msgf("playback: track started: id=%s title=%s state=%s", t.ID, t.Title, mode)
	c.sendEventLocked(Event{Type: EventTrackStarted, Track: c.current})
	c.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	return nil
}

// openSession opens a fresh reader for t and, if requested, a device handle.
func (c *Controller) openSession(t track.Track, withDevice bool) (FrameReader, Device, error) {
	reader, err := c.decoder.Open(t)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open %q", t.Title)
	}
	if !withDevice {
		return reader, nil, nil
	}
	device, err := c.output.Open()
	if err != nil {
		_ = reader.Close()
		return nil, nil, errors.Wrap(err, "failed to open output device")
	}
	return reader, device, nil
}

// stopPlayback halts the worker, releases the source and enters StateStopped.
// Must be called with cmdMu held.
func (c *Controller) stopPlayback(eventType EventType) {
	c.haltWorker()

	c.mu.Lock()
	old := c.reader
	wasActive := c.current != nil
	c.reader = nil
	c.current = nil
	c.frame = 0
	c.position = 0
	c.lastSecond = 0
	c.seeking = false
	c.previewMs = 0
	c.state = StateStopped
	if wasActive {
		zlog.Debug().Msg("playback: stopped")
		c.sendEventLocked(Event{Type: eventType})
	}
	c.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
}

// failPlayback stops playback and reports err.
// Must be called with cmdMu held.
func (c *Controller) failPlayback(err error) {
	c.stopPlayback(EventStateChanged)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendEventLocked(Event{Type: EventPlaybackError, Err: err})
}

// startWorkerLocked starts a worker on the current reader.
// Must be called with mu held.
func (c *Controller) startWorkerLocked(device Device) {
	c.generation++
	w := newWorker(c, c.generation, c.reader, device)
	c.worker = w
	go w.run()
}

// haltWorker invalidates the live worker and waits until it has exited.
// Must be called with cmdMu held and mu not held.
func (c *Controller) haltWorker() {
	c.mu.Lock()
	w := c.worker
	c.worker = nil
	c.generation++
	c.mu.Unlock()

	if w != nil {
		w.halt()
	}
}

// handleTrackEnd applies the end-of-track policy for the worker of gen.
func (c *Controller) handleTrackEnd(gen uint64) {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	c.mu.Lock()
	if c.closed || gen != c.generation || c.current == nil {
		c.mu.Unlock()
		return
	}
	ended := *c.current
	target, ok := c.queue.Next(ended.ID)
	zlog.Debug().Msgf("playback: track ended: title=%s frames=%d", ended.Title, c.frame)
	c.sendEventLocked(Event{Type: EventTrackEnded, Track: &ended, Frame: c.frame})
	c.mu.Unlock()

	if !ok {
		c.stopPlayback(EventQueueEmpty)
		return
	}
	if err := c.switchTo(target, StatePlaying, nil); err != nil {
		zlog.Error().Msgf("playback: failed to start next track: %v", err)
		c.failPlayback(err)
	}
}

// handleTrackFailure stops playback after a decode or device error in the
// worker of gen.
func (c *Controller) handleTrackFailure(gen uint64, err error) {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	c.mu.Lock()
	stale := c.closed || gen != c.generation
	c.mu.Unlock()
	if stale {
		return
	}

	zlog.Error().Msgf("playback: decode failure: %v", err)
	c.failPlayback(err)
}

// sendEventLocked sends an event without blocking.
// Must be called with mu held.
func (c *Controller) sendEventLocked(e Event) {
	if c.closed {
		return
	}
	if e.Track == nil && c.current != nil && e.Type != EventQueueEmpty {
		e.Track = c.current
	}
	if e.Track != nil {
		t := *e.Track
		e.Track = &t
	}
	e.State = c.state
	if e.Type != EventTrackSkipped && e.Type != EventTrackEnded {
		e.Frame = c.frame
	}
	select {
	case c.eventCh <- e:
	default:
		// Channel full, drop event
	}
}

func clampMs(ms, length int64) int64 {
	if ms < 0 {
		return 0
	}
	if length > 0 && ms > length {
		return length
	}
	return ms
}
