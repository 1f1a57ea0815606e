package playback

import (
	"io"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/19deck/internal/domain/track"
)

var errDeviceClosed = errors.New("device closed")

// fakeTrack describes the frames a fake source produces.
type fakeTrack struct {
	frames   int
	failOpen bool
	failAt   int // ReadFrame fails at this index (0 disables)
}

// fakeDecoder yields frames whose first sample encodes (track number, frame index).
type fakeDecoder struct {
	mu     sync.Mutex
	tracks map[string]fakeTrack
	number map[string]int
	delay  time.Duration
	opens  int
}

func newFakeDecoder(delay time.Duration) *fakeDecoder {
	return &fakeDecoder{
		tracks: make(map[string]fakeTrack),
		number: make(map[string]int),
		delay:  delay,
	}
}

func (d *fakeDecoder) register(t track.Track, n int, ft fakeTrack) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tracks[t.ID] = ft
	d.number[t.ID] = n
}

func (d *fakeDecoder) setFailOpen(id string, fail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ft := d.tracks[id]
	ft.failOpen = fail
	d.tracks[id] = ft
}

func (d *fakeDecoder) Open(t track.Track) (FrameReader, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opens++
	ft, ok := d.tracks[t.ID]
	if !ok || ft.failOpen {
		return nil, errors.Newf("cannot open %s", t.Title)
	}
	return &fakeReader{track: d.number[t.ID], def: ft, delay: d.delay}, nil
}

type fakeReader struct {
	track int
	def   fakeTrack
	delay time.Duration
	next  int
}

func (r *fakeReader) ReadFrame() (Frame, error) {
	if r.next >= r.def.frames {
		return nil, io.EOF
	}
	if r.def.failAt > 0 && r.next == r.def.failAt {
		return nil, errors.New("corrupt frame")
	}
	time.Sleep(r.delay)
	f := Frame{{float64(r.track), float64(r.next)}}
	r.next++
	return f, nil
}

func (r *fakeReader) SkipFrame() error {
	if r.next >= r.def.frames {
		return io.EOF
	}
	r.next++
	return nil
}

func (r *fakeReader) Close() error { return nil }

// written is one frame that reached a device.
type written struct {
	track int
	frame int
}

// fakeOutput records every frame written to any of its devices.
type fakeOutput struct {
	mu        sync.Mutex
	writes    []written
	active    int
	maxActive int
	failOpen  bool
}

func (o *fakeOutput) Open() (Device, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failOpen {
		return nil, errors.New("no output")
	}
	return &fakeDevice{out: o}, nil
}

func (o *fakeOutput) snapshot() []written {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]written, len(o.writes))
	copy(out, o.writes)
	return out
}

func (o *fakeOutput) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.writes)
}

func (o *fakeOutput) concurrency() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.maxActive
}

type fakeDevice struct {
	out    *fakeOutput
	mu     sync.Mutex
	closed bool
}

func (d *fakeDevice) Write(f Frame) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errDeviceClosed
	}

	o := d.out
	o.mu.Lock()
	o.active++
	if o.active > o.maxActive {
		o.maxActive = o.active
	}
	o.writes = append(o.writes, written{track: int(f[0][0]), frame: int(f[0][1])})
	o.mu.Unlock()

	time.Sleep(100 * time.Microsecond)

	o.mu.Lock()
	o.active--
	o.mu.Unlock()
	return nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}
