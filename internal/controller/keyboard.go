// Package controller drives the session from the terminal keyboard and
// renders a one-line status display.
package controller

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/term"

	"github.com/osa030/19deck/internal/app/notification"
	"github.com/osa030/19deck/internal/app/playback"
)

// SeekStep is how far the seek keys move the position.
const SeekStep = 5 * time.Second

const helpLine = "Controls: space=play/pause  s=stop  n/p=next/prev  ,/.=seek  r=shuffle  l=loop  x=remove  q=quit"

// Player is the part of the session the keyboard drives.
type Player interface {
	PlayPause() error
	Stop() error
	Next() error
	Previous() error
	Remove(id string) error
	SeekBegin() error
	SeekEnd(ms int64) error
	ToggleShuffle() bool
	ToggleLoop() bool
	Status() playback.Status
	Subscribe(stream notification.Stream) string
	Unsubscribe(id string)
}

// Keyboard reads commands from a terminal.
type Keyboard struct {
	in  io.Reader
	out io.Writer
	fd  int // -1 when in is not a terminal

	mu       sync.Mutex
	oldState *term.State
}

// NewKeyboard creates a keyboard controller on stdin/stdout.
func NewKeyboard() *Keyboard {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		fd = -1
	}
	return &Keyboard{in: os.Stdin, out: os.Stdout, fd: fd}
}

// NewKeyboardWith creates a keyboard controller on arbitrary streams. Raw
// mode is not used.
func NewKeyboardWith(in io.Reader, out io.Writer) *Keyboard {
	return &Keyboard{in: in, out: out, fd: -1}
}

// Run dispatches key presses to p until quit, end of input or ctx is done.
func (k *Keyboard) Run(ctx context.Context, p Player) error {
	if k.fd >= 0 {
		state, err := term.MakeRaw(k.fd)
		if err != nil {
			return errors.Wrap(err, "failed to enter raw mode")
		}
		k.mu.Lock()
		k.oldState = state
		k.mu.Unlock()
		defer k.Stop()
	}

	k.println(helpLine)
	k.render(p.Status())

	subID := p.Subscribe(notification.StreamFunc(func(n *notification.Notification) error {
		if n.Type == playback.EventPlaybackError && n.Err != nil {
			k.println(fmt.Sprintf("error: %v", n.Err))
		}
		k.render(n.Status)
		return nil
	}))
	defer p.Unsubscribe(subID)

	input := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		buf := make([]byte, 16)
		for {
			n, err := k.in.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case input <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return errors.Wrap(err, "failed to read input")
		case chunk := <-input:
			for _, cmd := range ParseKeys(chunk) {
				if cmd == CmdQuit {
					return nil
				}
				if err := Execute(p, cmd); err != nil {
					zlog.Debug().Msgf("controller: command ignored: cmd=%s err=%v", cmd, err)
				}
			}
		}
	}
}

// Stop restores the terminal state.
func (k *Keyboard) Stop() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.oldState == nil {
		return nil
	}
	err := term.Restore(k.fd, k.oldState)
	k.oldState = nil
	return err
}

// Execute runs one command against p.
func Execute(p Player, cmd Command) error {
	switch cmd {
	case CmdPlayPause:
		return p.PlayPause()
	case CmdStop:
		return p.Stop()
	case CmdNext:
		return p.Next()
	case CmdPrevious:
		return p.Previous()
	case CmdSeekBack:
		return seekBy(p, -SeekStep)
	case CmdSeekForward:
		return seekBy(p, SeekStep)
	case CmdToggleShuffle:
		p.ToggleShuffle()
		return nil
	case CmdToggleLoop:
		p.ToggleLoop()
		return nil
	case CmdRemoveCurrent:
		st := p.Status()
		if st.CurrentTrack == nil {
			return playback.ErrNoTrack
		}
		return p.Remove(st.CurrentTrack.ID)
	default:
		return nil
	}
}

// seekBy performs a complete begin/end drag relative to the current position.
func seekBy(p Player, d time.Duration) error {
	st := p.Status()
	if !st.TransportEnabled() {
		return playback.ErrNoTrack
	}
	if err := p.SeekBegin(); err != nil {
		return err
	}
	target := max(st.Elapsed+d, 0)
	return p.SeekEnd(target.Milliseconds())
}

// RenderStatus formats the status as a single display line.
func RenderStatus(st playback.Status) string {
	var b strings.Builder

	switch st.State {
	case playback.StatePlaying:
		b.WriteString("▶ ")
	case playback.StatePaused:
		b.WriteString("⏸ ")
	default:
		b.WriteString("⏹ ")
	}

	if st.CurrentTrack == nil {
		b.WriteString("-")
	} else {
		t := st.CurrentTrack
		if t.Artist != "" {
			fmt.Fprintf(&b, "%s - ", t.Artist)
		}
		b.WriteString(t.Title)
		fmt.Fprintf(&b, "  %s / %s", formatDuration(st.Elapsed), formatDuration(st.Total))
	}

	var flags []string
	if st.Shuffle {
		flags = append(flags, "shuffle")
	}
	if st.Loop {
		flags = append(flags, "loop")
	}
	if len(flags) > 0 {
		fmt.Fprintf(&b, "  [%s]", strings.Join(flags, " "))
	}
	fmt.Fprintf(&b, "  (%d queued)", st.QueueSize)
	return b.String()
}

func formatDuration(d time.Duration) string {
	s := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}

func (k *Keyboard) render(st playback.Status) {
	k.mu.Lock()
	defer k.mu.Unlock()
	fmt.Fprintf(k.out, "\r\x1b[2K%s", RenderStatus(st))
}

func (k *Keyboard) println(line string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	// Raw mode does not translate \n into \r\n.
	fmt.Fprintf(k.out, "\r\x1b[2K%s\r\n", line)
}
