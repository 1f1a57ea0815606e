package playback

import (
	"io"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// worker decodes frames from the current reader into its device until the
// source runs out, it fails, or it is halted.
type worker struct {
	c      *Controller
	gen    uint64
	reader FrameReader
	device Device

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func newWorker(c *Controller, gen uint64, reader FrameReader, device Device) *worker {
	return &worker{
		c:      c,
		gen:    gen,
		reader: reader,
		device: device,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (w *worker) run() {
	defer close(w.done)
	defer func() { _ = w.device.Close() }()

	for {
		if w.stopped() {
			return
		}

		frame, err := w.reader.ReadFrame()
		if err != nil {
			if isEOF(err) {
				w.c.reportFinished(w.gen)
			} else {
				w.c.reportFailure(w.gen, errors.Wrap(err, "failed to decode frame"))
			}
			return
		}

		// A frame read here counts as consumed even if the write below is
		// cut short by halt, so the stored position always matches the reader.
		if !w.c.advance(w.gen) || w.stopped() {
			return
		}
		if err := w.device.Write(frame); err != nil {
			if !w.stopped() {
				w.c.reportFailure(w.gen, errors.Wrap(err, "failed to write samples"))
			}
			return
		}
	}
}

// halt signals the worker, closes its device so a blocked or in-flight write
// plays nothing, and waits for the loop to exit.
func (w *worker) halt() {
	w.stopOnce.Do(func() {
		close(w.stop)
		_ = w.device.Close()
	})
	<-w.done
}

func (w *worker) stopped() bool {
	select {
	case <-w.stop:
		return true
	default:
		return false
	}
}

// advance counts one consumed frame for gen and publishes the elapsed time
// unless a seek drag is in progress.
func (c *Controller) advance(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation || c.closed || c.current == nil {
		return false
	}
	c.frame++
	if c.seeking {
		return true
	}
	c.position = c.current.Elapsed(c.frame)
	if sec := int64(c.position / time.Second); sec != c.lastSecond {
		c.lastSecond = sec
		c.sendEventLocked(Event{Type: EventProgress})
	}
	return true
}

// reportFinished hands the end-of-track decision for gen to the controller.
func (c *Controller) reportFinished(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation || c.closed {
		return
	}
	go c.handleTrackEnd(gen)
}

// reportFailure hands a decode or device failure for gen to the controller.
func (c *Controller) reportFailure(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation || c.closed {
		return
	}
	go c.handleTrackFailure(gen, err)
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
