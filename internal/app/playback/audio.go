package playback

import "github.com/osa030/19deck/internal/domain/track"

// Frame is one decoded frame of stereo samples.
type Frame [][2]float64

// FrameReader pulls frames from an opened track source.
// ReadFrame and SkipFrame return io.EOF once the source is exhausted and keep
// returning it on subsequent calls.
type FrameReader interface {
	// ReadFrame decodes the next frame.
	ReadFrame() (Frame, error)
	// SkipFrame advances past the next frame without producing samples.
	SkipFrame() error
	// Close releases the underlying stream.
	Close() error
}

// Decoder opens tracks for frame-by-frame decoding.
type Decoder interface {
	Open(t track.Track) (FrameReader, error)
}

// Device receives decoded samples.
// Close must be idempotent and safe to call while Write is blocked; once Close
// has been called no further samples from this device may be played.
type Device interface {
	Write(f Frame) error
	Close() error
}

// Output opens device handles on the audio output.
type Output interface {
	Open() (Device, error)
}
