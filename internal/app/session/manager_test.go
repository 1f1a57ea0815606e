package session

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/19deck/internal/app/filter"
	"github.com/osa030/19deck/internal/app/notification"
	"github.com/osa030/19deck/internal/app/playback"
	"github.com/osa030/19deck/internal/domain/track"
	"github.com/osa030/19deck/internal/infra/config"
)

var errProbe = errors.New("not an audio file")

type fakeProber struct {
	fail map[string]bool
}

func (p *fakeProber) Probe(path string) (track.Track, error) {
	if p.fail[filepath.Base(path)] {
		return track.Track{}, errProbe
	}
	return track.New(track.Info{
		Title:      filepath.Base(path),
		Path:       path,
		Format:     filepath.Ext(path)[1:],
		FrameCount: 50,
		MsPerFrame: 26,
	}, nil), nil
}

type fakeReader struct {
	left int
}

func (r *fakeReader) ReadFrame() (playback.Frame, error) {
	if r.left <= 0 {
		return nil, io.EOF
	}
	r.left--
	time.Sleep(time.Millisecond)
	return playback.Frame{{0, 0}}, nil
}

func (r *fakeReader) SkipFrame() error {
	if r.left <= 0 {
		return io.EOF
	}
	r.left--
	return nil
}

func (r *fakeReader) Close() error { return nil }

type fakeDecoder struct{}

func (fakeDecoder) Open(t track.Track) (playback.FrameReader, error) {
	return &fakeReader{left: t.FrameCount}, nil
}

type fakeDevice struct {
	once   sync.Once
	closed chan struct{}
}

func (d *fakeDevice) Write(playback.Frame) error {
	select {
	case <-d.closed:
		return errors.New("device closed")
	default:
		return nil
	}
}

func (d *fakeDevice) Close() error {
	d.once.Do(func() { close(d.closed) })
	return nil
}

type fakeOutput struct{}

func (fakeOutput) Open() (playback.Device, error) {
	return &fakeDevice{closed: make(chan struct{})}, nil
}

func writeFiles(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	return dir
}

func newManager(t *testing.T, cfg *config.Config, prober *fakeProber) *Manager {
	t.Helper()
	if prober == nil {
		prober = &fakeProber{}
	}
	m, err := NewManager(cfg, prober, fakeDecoder{}, fakeOutput{})
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func defaultConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	return cfg
}

func TestManager_AddBeforeStart(t *testing.T) {
	m := newManager(t, defaultConfig(t), nil)

	_, err := m.Add(context.Background(), "/music/a.mp3")
	assert.True(t, errors.Is(err, ErrNotRunning))
	assert.Equal(t, PhaseIdle, m.Phase())
}

func TestManager_StartSeedsLibrary(t *testing.T) {
	dir := writeFiles(t, "a.mp3", "b.wav", "broken.mp3", "notes.txt")
	cfg := defaultConfig(t)
	cfg.Library.Paths = []string{dir}

	m := newManager(t, cfg, &fakeProber{fail: map[string]bool{"broken.mp3": true}})
	require.NoError(t, m.Start(context.Background()))

	st := m.Status()
	require.Equal(t, 2, st.QueueSize)
	assert.Equal(t, "a.mp3", st.Queue[0].Title)
	assert.Equal(t, "b.wav", st.Queue[1].Title)
	assert.Equal(t, playback.StateStopped, st.State)
	assert.Equal(t, PhaseActive, m.Phase())

	assert.True(t, errors.Is(m.Start(context.Background()), ErrAlreadyStarted))
}

func TestManager_Add(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Filters = map[string]config.FilterConfig{
		"format_filter": {
			Enabled:  true,
			Settings: map[string]any{"formats": []any{"mp3"}},
		},
		"duplicate_track_filter": {Enabled: true},
	}
	m := newManager(t, cfg, &fakeProber{fail: map[string]bool{"bad.mp3": true}})
	require.NoError(t, m.Start(context.Background()))
	require.Len(t, m.Filters(), 2)

	tests := []struct {
		name     string
		path     string
		wantCode string
		wantErr  error
	}{
		{name: "accepted", path: "/music/a.mp3"},
		{name: "duplicate path", path: "/music/a.mp3", wantCode: "duplicate_track"},
		{name: "unsupported format", path: "/music/b.wav", wantCode: "unsupported_format"},
		{name: "probe failure", path: "/music/bad.mp3", wantErr: errProbe},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := m.Add(context.Background(), tt.path)
			switch {
			case tt.wantErr != nil:
				assert.True(t, errors.Is(err, tt.wantErr))
			case tt.wantCode != "":
				var rejected *filter.RejectedError
				require.True(t, errors.As(err, &rejected))
				assert.Equal(t, tt.wantCode, rejected.Code)
			default:
				require.NoError(t, err)
				assert.True(t, m.Status().QueueSize > 0)
				assert.Equal(t, tt.path, tr.Path)
			}
		})
	}
	assert.Equal(t, 1, m.Status().QueueSize)
}

func TestManager_NotifiesSubscribers(t *testing.T) {
	m := newManager(t, defaultConfig(t), nil)
	require.NoError(t, m.Start(context.Background()))

	got := make(chan *notification.Notification, 256)
	id := m.Subscribe(notification.StreamFunc(func(n *notification.Notification) error {
		got <- n
		return nil
	}))
	defer m.Unsubscribe(id)

	_, err := m.Add(context.Background(), "/music/a.mp3")
	require.NoError(t, err)
	require.NoError(t, m.PlayPause())

	deadline := time.After(2 * time.Second)
	for {
		select {
		case n := <-got:
			if n.Type == playback.EventTrackStarted {
				assert.Equal(t, 1, n.Status.QueueSize)
				assert.NotZero(t, n.SequenceNo)
				return
			}
		case <-deadline:
			t.Fatal("no track_started notification")
		}
	}
}

func TestManager_Autoplay(t *testing.T) {
	dir := writeFiles(t, "a.mp3", "b.mp3")
	cfg := defaultConfig(t)
	cfg.Library.Paths = []string{dir}
	cfg.Playback.Autoplay = true
	cfg.Playback.Loop = true

	m := newManager(t, cfg, nil)
	require.NoError(t, m.Start(context.Background()))

	st := m.Status()
	assert.Equal(t, playback.StatePlaying, st.State)
	require.NotNil(t, st.CurrentTrack)
	assert.True(t, st.Loop)
}

func TestManager_StartFailureCloses(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, cfg *config.Config) context.Context
	}{
		{
			name: "context cancelled while loading",
			setup: func(t *testing.T, cfg *config.Config) context.Context {
				cfg.Library.Paths = []string{writeFiles(t, "a.mp3", "b.mp3")}
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			},
		},
		{
			name: "watcher cannot start",
			setup: func(t *testing.T, cfg *config.Config) context.Context {
				cfg.Library.Paths = []string{filepath.Join(t.TempDir(), "missing")}
				cfg.Library.Watch = true
				return context.Background()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig(t)
			ctx := tt.setup(t, cfg)
			m := newManager(t, cfg, nil)

			require.Error(t, m.Start(ctx))

			assert.Equal(t, PhaseTerminated, m.Phase())
			select {
			case <-m.Done():
			case <-time.After(2 * time.Second):
				t.Fatal("done not closed")
			}
			_, err := m.Add(context.Background(), "/music/c.mp3")
			assert.True(t, errors.Is(err, ErrNotRunning))
		})
	}
}

func TestManager_Close(t *testing.T) {
	t.Run("after start", func(t *testing.T) {
		m := newManager(t, defaultConfig(t), nil)
		require.NoError(t, m.Start(context.Background()))
		_, err := m.Add(context.Background(), "/music/a.mp3")
		require.NoError(t, err)
		require.NoError(t, m.PlayPause())

		m.Close()
		m.Close()

		select {
		case <-m.Done():
		default:
			t.Fatal("done not closed")
		}
		assert.Equal(t, PhaseTerminated, m.Phase())
		_, err = m.Add(context.Background(), "/music/b.mp3")
		assert.True(t, errors.Is(err, ErrNotRunning))
	})

	t.Run("never started", func(t *testing.T) {
		m := newManager(t, defaultConfig(t), nil)
		m.Close()

		select {
		case <-m.Done():
		default:
			t.Fatal("done not closed")
		}
	})
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "idle", PhaseIdle.String())
	assert.Equal(t, "loading", PhaseLoading.String())
	assert.Equal(t, "active", PhaseActive.String())
	assert.Equal(t, "terminated", PhaseTerminated.String())
	assert.Equal(t, "unknown", Phase(99).String())
}
