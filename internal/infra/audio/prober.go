package audio

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19deck/internal/domain/track"
)

// Prober reads format and length information from audio files.
type Prober struct{}

// NewProber creates a prober.
func NewProber() *Prober {
	return &Prober{}
}

// Probe inspects the file at path and returns a track that re-opens the file
// on every Open.
func (p *Prober) Probe(path string) (track.Track, error) {
	format, err := FormatOf(path)
	if err != nil {
		return track.Track{}, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return track.Track{}, errors.Wrapf(err, "failed to resolve %s", path)
	}

	source := func() (io.ReadCloser, error) {
		return os.Open(abs)
	}

	rc, err := source()
	if err != nil {
		return track.Track{}, errors.Wrapf(err, "failed to open %s", abs)
	}
	s, f, err := decode(format, rc)
	if err != nil {
		return track.Track{}, errors.Wrapf(err, "failed to probe %s", abs)
	}
	samples := s.Len()
	_ = s.Close()

	title, artist, album := displayFields(abs)
	info := track.Info{
		Title:      title,
		Artist:     artist,
		Album:      album,
		Path:       abs,
		Format:     format,
		SampleRate: int(f.SampleRate),
		FrameCount: frameCount(samples),
		MsPerFrame: msPerFrame(f.SampleRate),
	}
	zlog.Debug().Msgf("audio: probed: path=%s format=%s rate=%d frames=%d", abs, format, info.SampleRate, info.FrameCount)
	return track.New(info, source), nil
}

// displayFields derives title and artist from "Artist - Title.ext" and the
// album from the parent directory.
func displayFields(path string) (title, artist, album string) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	title = strings.TrimSpace(base)
	if a, t, ok := strings.Cut(base, " - "); ok && strings.TrimSpace(a) != "" && strings.TrimSpace(t) != "" {
		artist = strings.TrimSpace(a)
		title = strings.TrimSpace(t)
	}

	dir := filepath.Base(filepath.Dir(path))
	if dir != "." && dir != string(filepath.Separator) {
		album = dir
	}
	return title, artist, album
}
