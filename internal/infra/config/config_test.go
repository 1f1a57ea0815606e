package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "stderr", cfg.Log.Output)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 44100, cfg.Audio.SampleRate)
	assert.Equal(t, 100, cfg.Audio.BufferMs)
	assert.Equal(t, 4, cfg.Audio.ResampleQuality)
	assert.Equal(t, 64, cfg.Playback.EventBuffer)
	assert.Equal(t, []string{"mp3", "wav", "flac", "ogg"}, cfg.Library.Extensions)
	assert.False(t, cfg.Playback.Loop)
}

func TestLoad_File(t *testing.T) {
	music := t.TempDir()
	path := writeConfig(t, `
log:
  level: debug
audio:
  sample_rate: 48000
playback:
  loop: true
  shuffle: true
library:
  paths: [`+music+`]
  extensions: [mp3]
  watch: true
filters:
  duration_limit_filter:
    enabled: true
    settings:
      min_seconds: 30
  format_filter:
    enabled: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 48000, cfg.Audio.SampleRate)
	assert.True(t, cfg.Playback.Loop)
	assert.True(t, cfg.Playback.Shuffle)
	assert.Equal(t, []string{music}, cfg.Library.Paths)
	assert.Equal(t, []string{"mp3"}, cfg.Library.Extensions)
	assert.True(t, cfg.IsFilterEnabled("duration_limit_filter"))
	assert.False(t, cfg.IsFilterEnabled("format_filter"))
	assert.False(t, cfg.IsFilterEnabled("missing"))
	assert.Equal(t, 30, cfg.GetFilterSettings("duration_limit_filter")["min_seconds"])
	assert.Nil(t, cfg.GetFilterSettings("missing"))
}

func TestLoad_EnvOverride(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	t.Setenv("DECK_LIBRARY_PATHS", a+string(os.PathListSeparator)+b)
	t.Setenv("DECK_LOG_LEVEL", "WARN")

	cfg, err := Load(writeConfig(t, "library:\n  paths: [/does/not/matter]\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{a, b}, cfg.Library.Paths)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_Errors(t *testing.T) {
	file := filepath.Join(t.TempDir(), "song.mp3")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	tests := []struct {
		name string
		body string
	}{
		{name: "invalid yaml", body: "audio: [unclosed"},
		{name: "unsupported sample rate", body: "audio:\n  sample_rate: 12345\n"},
		{name: "buffer too small", body: "audio:\n  buffer_ms: 1\n"},
		{name: "unknown log level", body: "log:\n  level: chatty\n"},
		{name: "missing library path", body: "library:\n  paths: [/no/such/dir]\n"},
		{name: "watching a file", body: "library:\n  watch: true\n  paths: [" + file + "]\n"},
		{name: "blank extension", body: "library:\n  extensions: [mp3, \"\"]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestDefault(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	lc := cfg.LoggerConfig()
	assert.Equal(t, "stderr", lc.Output)
	assert.Equal(t, "19deck.log", lc.File)
}
