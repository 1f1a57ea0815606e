package audio

import (
	"io"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"

	"github.com/osa030/19deck/internal/app/playback"
	"github.com/osa030/19deck/internal/domain/track"
)

// Decoder opens tracks as frame readers at the output sample rate.
type Decoder struct {
	sampleRate beep.SampleRate
	quality    int
}

// NewDecoder creates a decoder resampling to sampleRate with the given
// beep resample quality.
func NewDecoder(sampleRate, quality int) *Decoder {
	if quality <= 0 {
		quality = 4
	}
	return &Decoder{
		sampleRate: beep.SampleRate(sampleRate),
		quality:    quality,
	}
}

// Open implements playback.Decoder.
func (d *Decoder) Open(t track.Track) (playback.FrameReader, error) {
	format := t.Format
	if format == "" {
		f, err := FormatOf(t.Path)
		if err != nil {
			return nil, err
		}
		format = f
	}

	rc, err := t.Open()
	if err != nil {
		return nil, err
	}
	s, f, err := decode(format, rc)
	if err != nil {
		return nil, err
	}
	return newFrameReader(s, f.SampleRate, d.sampleRate, d.quality), nil
}

// frameReader cuts a beep stream into frames of SamplesPerFrame source
// samples, resampled to the output rate.
type frameReader struct {
	source  beep.StreamSeekCloser
	out     beep.Streamer // Resampled view of source, created on first read
	srcRate beep.SampleRate
	dstRate beep.SampleRate
	quality int

	frame   int // Index of the next frame
	emitted int // Output samples produced so far
	eof     bool
	scratch [][2]float64
}

func newFrameReader(s beep.StreamSeekCloser, srcRate, dstRate beep.SampleRate, quality int) *frameReader {
	return &frameReader{
		source:  s,
		srcRate: srcRate,
		dstRate: dstRate,
		quality: quality,
	}
}

// outputEnd returns the number of output samples produced once frame k is done.
func (r *frameReader) outputEnd(k int) int {
	if r.srcRate == r.dstRate || r.srcRate <= 0 {
		return k * SamplesPerFrame
	}
	return int(math.Floor(float64(k) * SamplesPerFrame * float64(r.dstRate) / float64(r.srcRate)))
}

func (r *frameReader) ReadFrame() (playback.Frame, error) {
	if r.eof {
		return nil, io.EOF
	}
	if r.out == nil {
		r.out = r.source
		if r.srcRate != r.dstRate && r.srcRate > 0 {
			r.out = beep.Resample(r.quality, r.srcRate, r.dstRate, r.source)
		}
	}

	n := r.outputEnd(r.frame+1) - r.emitted
	buf := make([][2]float64, n)
	filled, err := fill(r.out, buf)
	if err != nil {
		return nil, err
	}
	if filled == 0 {
		r.eof = true
		return nil, io.EOF
	}
	if filled < n {
		r.eof = true
	}
	r.frame++
	r.emitted += filled
	return playback.Frame(buf[:filled]), nil
}

// SkipFrame drops one frame. Before the first read it consumes source samples
// directly; afterwards it decodes and discards one output frame.
func (r *frameReader) SkipFrame() error {
	if r.eof {
		return io.EOF
	}
	if r.out != nil {
		_, err := r.ReadFrame()
		return err
	}

	if r.scratch == nil {
		r.scratch = make([][2]float64, SamplesPerFrame)
	}
	filled, err := fill(r.source, r.scratch)
	if err != nil {
		return err
	}
	if filled == 0 {
		r.eof = true
		return io.EOF
	}
	if filled < SamplesPerFrame {
		r.eof = true
	}
	r.frame++
	r.emitted = r.outputEnd(r.frame)
	return nil
}

func (r *frameReader) Close() error {
	return r.source.Close()
}

// fill streams into buf until it is full or s is drained.
func fill(s beep.Streamer, buf [][2]float64) (int, error) {
	filled := 0
	for filled < len(buf) {
		n, ok := s.Stream(buf[filled:])
		filled += n
		if !ok {
			if err := s.Err(); err != nil {
				return filled, errors.Wrap(err, "decoder stream failed")
			}
			break
		}
		if n == 0 {
			break
		}
	}
	return filled, nil
}
