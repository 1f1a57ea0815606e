// Package audio decodes local audio files into frames and plays them on the
// system audio device.
package audio

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// SamplesPerFrame is the number of source samples in one frame.
const SamplesPerFrame = 1152

// ErrUnsupportedFormat is returned for files no decoder handles.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// FormatOf returns the format name for a file path ("mp3", "wav", "flac", "ogg").
func FormatOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return "mp3", nil
	case ".wav", ".wave":
		return "wav", nil
	case ".flac":
		return "flac", nil
	case ".ogg", ".oga":
		return "ogg", nil
	default:
		return "", errors.Wrapf(ErrUnsupportedFormat, "%s", filepath.Base(path))
	}
}

// decode wraps rc in the beep decoder for format. The returned streamer owns rc.
func decode(format string, rc io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) {
	var (
		s   beep.StreamSeekCloser
		f   beep.Format
		err error
	)
	switch format {
	case "mp3":
		s, f, err = mp3.Decode(rc)
	case "wav":
		s, f, err = wav.Decode(rc)
	case "flac":
		s, f, err = flac.Decode(rc)
	case "ogg":
		s, f, err = vorbis.Decode(rc)
	default:
		_ = rc.Close()
		return nil, beep.Format{}, errors.Wrapf(ErrUnsupportedFormat, "%s", format)
	}
	if err != nil {
		_ = rc.Close()
		return nil, beep.Format{}, errors.Wrapf(err, "failed to decode %s stream", format)
	}
	return s, f, nil
}

// msPerFrame returns the milliseconds covered by one frame at rate.
func msPerFrame(rate beep.SampleRate) float64 {
	if rate <= 0 {
		return 0
	}
	return float64(SamplesPerFrame) * 1000 / float64(rate)
}

// frameCount returns the number of frames needed for samples.
func frameCount(samples int) int {
	if samples <= 0 {
		return 0
	}
	return (samples + SamplesPerFrame - 1) / SamplesPerFrame
}
