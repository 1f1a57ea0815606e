package audio

import (
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/osa030/19deck/internal/app/playback"
)

// ErrDeviceClosed is returned by Write once the device handle is closed.
var ErrDeviceClosed = errors.New("audio device closed")

// mixer hands samples from the attached device handle to the sink. Only one
// handle is attached at a time; opening a new one detaches the previous.
type mixer struct {
	mu     sync.Mutex
	active *device
	queue  int
}

func newMixer(queueFrames int) *mixer {
	if queueFrames <= 0 {
		queueFrames = 4
	}
	return &mixer{queue: queueFrames}
}

// open attaches a new device handle.
func (m *mixer) open() *device {
	d := &device{
		mixer:  m,
		frames: make(chan playback.Frame, m.queue),
		closed: make(chan struct{}),
	}
	m.mu.Lock()
	m.active = d
	m.mu.Unlock()
	return d
}

func (m *mixer) detach(d *device) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == d {
		m.active = nil
	}
}

// Stream fills samples from the attached handle and pads with silence.
// It never ends.
func (m *mixer) Stream(samples [][2]float64) (int, bool) {
	m.mu.Lock()
	d := m.active
	m.mu.Unlock()

	filled := 0
	if d != nil {
		filled = d.drain(samples)
	}
	for i := filled; i < len(samples); i++ {
		samples[i] = [2]float64{}
	}
	return len(samples), true
}

func (m *mixer) Err() error {
	return nil
}

// device is one Write/Close handle on the mixer.
type device struct {
	mixer   *mixer
	frames  chan playback.Frame
	closed  chan struct{}
	once    sync.Once
	pending playback.Frame // Unplayed rest of the frame being drained
}

// Write queues f, blocking while the queue is full.
func (d *device) Write(f playback.Frame) error {
	select {
	case <-d.closed:
		return ErrDeviceClosed
	default:
	}
	select {
	case d.frames <- f:
		return nil
	case <-d.closed:
		return ErrDeviceClosed
	}
}

// Close detaches the handle; queued frames are dropped.
func (d *device) Close() error {
	d.once.Do(func() {
		close(d.closed)
		d.mixer.detach(d)
	})
	return nil
}

// drain copies queued samples into out. Called from the sink goroutine only.
func (d *device) drain(out [][2]float64) int {
	filled := 0
	for filled < len(out) {
		select {
		case <-d.closed:
			return filled
		default:
		}
		if len(d.pending) == 0 {
			select {
			case f := <-d.frames:
				d.pending = f
			default:
				return filled
			}
		}
		n := copy(out[filled:], d.pending)
		d.pending = d.pending[n:]
		filled += n
	}
	return filled
}
