// Package session wires the library, the admission filters and the transport
// together for the presentation layer.
package session

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19deck/internal/app/filter"
	"github.com/osa030/19deck/internal/app/notification"
	"github.com/osa030/19deck/internal/app/playback"
	"github.com/osa030/19deck/internal/domain/track"
	"github.com/osa030/19deck/internal/infra/config"
	"github.com/osa030/19deck/internal/infra/library"
)

var (
	ErrNotRunning     = errors.New("session is not running")
	ErrAlreadyStarted = errors.New("session already started")
)

// Prober turns a file path into a playable track.
type Prober interface {
	Probe(path string) (track.Track, error)
}

// Manager is the facade the presentation layer drives.
type Manager struct {
	mu sync.RWMutex

	config *config.Config
	phase  Phase

	// Components
	playback     *playback.Controller
	filterChain  *filter.Chain
	notification *notification.Manager
	prober       Prober
	watcher      *library.Watcher

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewManager creates a new session manager.
func NewManager(
	cfg *config.Config,
	prober Prober,
	decoder playback.Decoder,
	output playback.Output,
) (*Manager, error) {
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		config: cfg,
		phase:  PhaseIdle,
		playback: playback.NewController(playback.Config{
			EventBuffer: cfg.Playback.EventBuffer,
			Loop:        cfg.Playback.Loop,
		}, decoder, output),
		notification: notification.NewManager(),
		prober:       prober,
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}

	chain, err := filter.Build(filterConfigs(cfg), filter.Deps{Queue: m.playback})
	if err != nil {
		cancel()
		m.playback.Close()
		return nil, errors.Wrap(err, "failed to set up filters")
	}
	m.filterChain = chain

	return m, nil
}

func filterConfigs(cfg *config.Config) map[string]filter.Config {
	out := make(map[string]filter.Config, len(cfg.Filters))
	for name, f := range cfg.Filters {
		out[name] = filter.Config{Enabled: f.Enabled, Settings: f.Settings}
	}
	return out
}

// Start seeds the queue from the library, starts the folder watcher and the
// event loop, and begins playback when autoplay is set.
// If Start fails after loading began, the session is closed.
func (m *Manager) Start(ctx context.Context) (err error) {
	m.mu.Lock()
	if m.phase != PhaseIdle {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.phase = PhaseLoading
	m.mu.Unlock()

	go m.playbackLoop()

	defer func() {
		if err != nil {
			zlog.Error().Msgf("session start failed: %v", err)
			m.Close()
		}
	}()

	added := 0
	for _, root := range m.config.Library.Paths {
		files, err := library.FindFiles(root, m.config.Library.Extensions)
		if err != nil {
			zlog.Error().Msgf("failed to scan library path: path=%s err=%v", root, err)
			continue
		}
		for _, path := range files {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := m.add(ctx, path, filter.OriginLibrary); err != nil {
				zlog.Warn().Msgf("skipped library file: path=%s err=%v", path, err)
				continue
			}
			added++
		}
	}
	zlog.Info().Msgf("library loaded: tracks=%d", added)

	if m.config.Playback.Shuffle && m.playback.GetQueueSize() > 1 {
		m.playback.ToggleShuffle()
	}

	if m.config.Library.Watch && len(m.config.Library.Paths) > 0 {
		w, err := library.NewWatcher(m.config.Library.Paths, m.config.Library.Extensions)
		if err != nil {
			return errors.Wrap(err, "failed to start library watcher")
		}
		m.mu.Lock()
		m.watcher = w
		m.mu.Unlock()
		go w.Run(m.ctx, func(path string) {
			if _, err := m.add(m.ctx, path, filter.OriginLibrary); err != nil {
				zlog.Warn().Msgf("skipped new file: path=%s err=%v", path, err)
			}
		})
	}

	m.mu.Lock()
	m.phase = PhaseActive
	m.mu.Unlock()
	zlog.Info().Msg("phase changed: phase=ACTIVE")

	if m.config.Playback.Autoplay && m.playback.GetQueueSize() > 0 {
		if err := m.playback.PlayPause(); err != nil {
			zlog.Error().Msgf("autoplay failed: %v", err)
		}
	}

	m.broadcast(playback.EventStateChanged, nil)
	return nil
}

// Add probes path, runs the admission filters and queues the track.
// Probe failures are returned unchanged.
func (m *Manager) Add(ctx context.Context, path string) (track.Track, error) {
	if err := m.checkRunning(); err != nil {
		return track.Track{}, err
	}
	return m.add(ctx, path, filter.OriginUser)
}

func (m *Manager) add(ctx context.Context, path string, origin filter.Origin) (track.Track, error) {
	t, err := m.prober.Probe(path)
	if err != nil {
		return track.Track{}, err
	}

	if err := m.filterChain.Admit(ctx, t, origin); err != nil {
		zlog.Info().Msgf("track rejected: path=%s origin=%s err=%v", path, origin, err)
		return track.Track{}, err
	}

	if err := m.playback.Add(t); err != nil {
		return track.Track{}, err
	}
	zlog.Info().Msgf("track added: title=%s origin=%s", t.Title, origin)
	return t, nil
}

func (m *Manager) checkRunning() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.phase == PhaseIdle || m.phase == PhaseTerminated {
		return ErrNotRunning
	}
	return nil
}

// Remove removes a track from the queue.
func (m *Manager) Remove(id string) error {
	return m.playback.Remove(id)
}

// PlayTrack starts the given queued track.
func (m *Manager) PlayTrack(id string) error {
	return m.playback.PlayTrack(id)
}

// PlayPause toggles playback.
func (m *Manager) PlayPause() error {
	return m.playback.PlayPause()
}

// Pause pauses playback.
func (m *Manager) Pause() error {
	return m.playback.Pause()
}

// Resume resumes playback.
func (m *Manager) Resume() error {
	return m.playback.Resume()
}

// Stop stops playback.
func (m *Manager) Stop() error {
	return m.playback.Stop()
}

// Next moves to the following track.
func (m *Manager) Next() error {
	return m.playback.Next()
}

// Previous moves to the preceding track.
func (m *Manager) Previous() error {
	return m.playback.Previous()
}

// SeekBegin starts a position drag.
func (m *Manager) SeekBegin() error {
	return m.playback.SeekBegin()
}

// SeekPreview updates the dragged position and broadcasts it.
func (m *Manager) SeekPreview(ms int64) error {
	if err := m.playback.SeekPreview(ms); err != nil {
		return err
	}
	m.broadcast(playback.EventProgress, nil)
	return nil
}

// SeekEnd finishes a position drag at ms.
func (m *Manager) SeekEnd(ms int64) error {
	return m.playback.SeekEnd(ms)
}

// ToggleShuffle flips shuffle mode.
func (m *Manager) ToggleShuffle() bool {
	return m.playback.ToggleShuffle()
}

// ToggleLoop flips loop mode.
func (m *Manager) ToggleLoop() bool {
	return m.playback.ToggleLoop()
}

// Status returns the current transport snapshot.
func (m *Manager) Status() playback.Status {
	return m.playback.Status()
}

// Phase returns the lifecycle phase.
func (m *Manager) Phase() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase
}

// Filters returns the active admission filters.
func (m *Manager) Filters() []filter.Filter {
	return m.filterChain.Filters()
}

// Subscribe registers a status stream.
func (m *Manager) Subscribe(stream notification.Stream) string {
	return m.notification.Subscribe(stream)
}

// Unsubscribe removes a status stream.
func (m *Manager) Unsubscribe(id string) {
	m.notification.Unsubscribe(id)
}

// Done returns a channel that is closed when the session has shut down.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Close stops playback, the watcher and the event loop.
func (m *Manager) Close() {
	m.once.Do(func() {
		m.mu.Lock()
		started := m.phase != PhaseIdle
		m.phase = PhaseTerminated
		w := m.watcher
		m.mu.Unlock()

		m.cancel()
		if w != nil {
			if err := w.Close(); err != nil {
				zlog.Warn().Msgf("failed to close library watcher: %v", err)
			}
		}
		m.playback.Close()
		if !started {
			close(m.done)
		}
		<-m.done
		m.notification.Close()
		zlog.Info().Msg("phase changed: phase=TERMINATED")
	})
}

// playbackLoop turns playback events into status notifications until the
// controller's event channel is closed.
func (m *Manager) playbackLoop() {
	defer close(m.done)
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("playback loop panicked: %v", r)
		}
	}()

	for e := range m.playback.Events() {
		switch e.Type {
		case playback.EventPlaybackError:
			zlog.Error().Msgf("playback error: %v", e.Err)
		case playback.EventTrackStarted:
			if e.Track != nil {
				zlog.Info().Msgf("now playing: title=%s artist=%s", e.Track.Title, e.Track.Artist)
			}
		case playback.EventQueueEmpty:
			zlog.Info().Msg("end of queue")
		}
		m.broadcast(e.Type, e.Err)
	}
}

func (m *Manager) broadcast(eventType playback.EventType, err error) {
	m.notification.Broadcast(&notification.Notification{
		Type:   eventType,
		Status: m.playback.Status(),
		Err:    err,
	})
}
