package audio

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeWav writes a silent stereo wav of n samples at rate.
func writeWav(t *testing.T, dir, name string, rate, n int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	format := beep.Format{SampleRate: beep.SampleRate(rate), NumChannels: 2, Precision: 2}
	require.NoError(t, wav.Encode(f, beep.Silence(n), format))
	return path
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		path     string
		expected string
		wantErr  bool
	}{
		{path: "a.mp3", expected: "mp3"},
		{path: "A.MP3", expected: "mp3"},
		{path: "b.wav", expected: "wav"},
		{path: "c.flac", expected: "flac"},
		{path: "d.ogg", expected: "ogg"},
		{path: "e.m4a", wantErr: true},
		{path: "noext", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FormatOf(tt.path)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrUnsupportedFormat))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestDisplayFields(t *testing.T) {
	tests := []struct {
		path   string
		title  string
		artist string
		album  string
	}{
		{path: "/music/Abbey Road/The Beatles - Come Together.mp3", title: "Come Together", artist: "The Beatles", album: "Abbey Road"},
		{path: "/music/Intro.flac", title: "Intro", artist: "", album: "music"},
		{path: "/music/x/ - Untitled.wav", title: "- Untitled", artist: "", album: "x"},
		{path: "/music/x/AC - DC - Thunder.mp3", title: "DC - Thunder", artist: "AC", album: "x"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			title, artist, album := displayFields(filepath.FromSlash(tt.path))
			assert.Equal(t, tt.title, title)
			assert.Equal(t, tt.artist, artist)
			assert.Equal(t, tt.album, album)
		})
	}
}

func TestProber_Probe(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Demo Album")
	require.NoError(t, os.Mkdir(dir, 0o755))
	path := writeWav(t, dir, "Tester - Tone.wav", 8000, 8000)

	tr, err := NewProber().Probe(path)
	require.NoError(t, err)

	assert.NotEmpty(t, tr.ID)
	assert.Equal(t, "Tone", tr.Title)
	assert.Equal(t, "Tester", tr.Artist)
	assert.Equal(t, "Demo Album", tr.Album)
	assert.Equal(t, "wav", tr.Format)
	assert.Equal(t, 8000, tr.SampleRate)
	assert.Equal(t, 7, tr.FrameCount)
	assert.InDelta(t, 144.0, tr.MsPerFrame, 1e-9)
	assert.True(t, tr.HasSource())
}

func TestProber_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewProber().Probe(filepath.Join(dir, "cover.jpg"))
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))

	_, err = NewProber().Probe(filepath.Join(dir, "missing.mp3"))
	assert.Error(t, err)

	garbage := filepath.Join(dir, "broken.wav")
	require.NoError(t, os.WriteFile(garbage, []byte("not a wav file"), 0o644))
	_, err = NewProber().Probe(garbage)
	assert.Error(t, err)
}

func TestDecoder_Frames(t *testing.T) {
	path := writeWav(t, t.TempDir(), "tone.wav", 8000, 8000)
	tr, err := NewProber().Probe(path)
	require.NoError(t, err)

	r, err := NewDecoder(8000, 4).Open(tr)
	require.NoError(t, err)
	defer r.Close()

	var sizes []int
	for {
		f, err := r.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		sizes = append(sizes, len(f))
	}
	assert.Equal(t, []int{1152, 1152, 1152, 1152, 1152, 1152, 1088}, sizes)

	_, err = r.ReadFrame()
	assert.True(t, errors.Is(err, io.EOF), "end of stream is sticky")
	assert.True(t, errors.Is(r.SkipFrame(), io.EOF))
}

func TestDecoder_SkipFrames(t *testing.T) {
	path := writeWav(t, t.TempDir(), "tone.wav", 8000, 8000)
	tr, err := NewProber().Probe(path)
	require.NoError(t, err)

	r, err := NewDecoder(8000, 4).Open(tr)
	require.NoError(t, err)
	defer r.Close()

	for i := 0; i < 6; i++ {
		require.NoError(t, r.SkipFrame())
	}
	f, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Len(t, f, 1088)

	_, err = r.ReadFrame()
	assert.True(t, errors.Is(err, io.EOF))
}

func TestDecoder_Resamples(t *testing.T) {
	path := writeWav(t, t.TempDir(), "tone.wav", 8000, 8000)
	tr, err := NewProber().Probe(path)
	require.NoError(t, err)

	r, err := NewDecoder(16000, 4).Open(tr)
	require.NoError(t, err)
	defer r.Close()

	f, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Len(t, f, 2304)
}

func TestDecoder_NoSource(t *testing.T) {
	path := writeWav(t, t.TempDir(), "tone.wav", 8000, 100)
	tr, err := NewProber().Probe(path)
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	_, err = NewDecoder(8000, 4).Open(tr)
	assert.Error(t, err)
}
