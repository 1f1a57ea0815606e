// Package track provides the Track domain entity.
package track

import (
	"io"
	"math"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// ErrNoSource is returned by Open when the track has no audio source attached.
var ErrNoSource = errors.New("track has no audio source")

// Source opens a fresh, independently positioned stream over a track's audio data.
type Source func() (io.ReadCloser, error)

// Info carries the values produced by the metadata collaborator.
type Info struct {
	Title      string
	Artist     string
	Album      string
	Path       string
	Format     string  // Container/codec name ("mp3", "wav", ...)
	SampleRate int     // Native sample rate of the file
	FrameCount int     // Total number of frames
	MsPerFrame float64 // Milliseconds covered by one frame
}

// Track represents one playable audio item.
// Tracks are compared by ID only.
type Track struct {
	ID         string        // Stable identity (UUID)
	Title      string        // Display title
	Artist     string        // Display artist
	Album      string        // Display album
	Path       string        // File the track was loaded from
	Format     string        // Container/codec name
	SampleRate int           // Native sample rate
	FrameCount int           // Total number of frames
	MsPerFrame float64       // Milliseconds per frame
	Length     time.Duration // FrameCount × MsPerFrame
	AddedAt    time.Time     // Time when created

	source Source
}

// New creates a track with a fresh identity.
func New(info Info, source Source) Track {
	return Track{
		ID:         uuid.New().String(),
		Title:      info.Title,
		Artist:     info.Artist,
		Album:      info.Album,
		Path:       info.Path,
		Format:     info.Format,
		SampleRate: info.SampleRate,
		FrameCount: info.FrameCount,
		MsPerFrame: info.MsPerFrame,
		Length:     frameDuration(info.FrameCount, info.MsPerFrame),
		AddedAt:    time.Now(),
		source:     source,
	}
}

// Open returns a new byte stream positioned at the start of the audio data.
func (t Track) Open() (io.ReadCloser, error) {
	if t.source == nil {
		return nil, errors.Wrapf(ErrNoSource, "track %s", t.ID)
	}
	rc, err := t.source()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open source for %q", t.Title)
	}
	return rc, nil
}

// HasSource reports whether the track can be opened.
func (t Track) HasSource() bool {
	return t.source != nil
}

// LengthMs returns the total length in milliseconds.
func (t Track) LengthMs() int64 {
	return t.Length.Milliseconds()
}

// FrameAt converts a position in milliseconds into a frame index.
func (t Track) FrameAt(ms int64) int {
	if ms <= 0 || t.MsPerFrame <= 0 {
		return 0
	}
	frame := int(math.Floor(float64(ms) / t.MsPerFrame))
	if t.FrameCount > 0 && frame > t.FrameCount {
		return t.FrameCount
	}
	return frame
}

// Elapsed returns the playback position reached after the given number of frames.
func (t Track) Elapsed(frame int) time.Duration {
	return frameDuration(frame, t.MsPerFrame)
}

// DisplayInfo returns title, artist and album for presentation.
func (t Track) DisplayInfo() [3]string {
	return [3]string{t.Title, t.Artist, t.Album}
}

func frameDuration(frames int, msPerFrame float64) time.Duration {
	if frames <= 0 || msPerFrame <= 0 {
		return 0
	}
	return time.Duration(float64(frames) * msPerFrame * float64(time.Millisecond))
}
