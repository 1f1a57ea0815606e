//go:build (linux && cgo) || windows || darwin

package audio

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19deck/internal/app/playback"
)

// Available indicates whether this build plays through the sound card.
const Available = true

// Output plays device handles through the beep speaker.
type Output struct {
	mixer *mixer
	once  sync.Once
}

// NewOutput initialises the speaker at sampleRate with a buffer of bufferMs.
func NewOutput(sampleRate, bufferMs, queueFrames int) (*Output, error) {
	sr := beep.SampleRate(sampleRate)
	if err := speaker.Init(sr, sr.N(time.Duration(bufferMs)*time.Millisecond)); err != nil {
		return nil, errors.Wrap(err, "failed to initialise speaker")
	}

	o := &Output{mixer: newMixer(queueFrames)}
	speaker.Play(o.mixer)
	zlog.Debug().Msgf("audio: speaker ready: rate=%d buffer_ms=%d", sampleRate, bufferMs)
	return o, nil
}

// Open implements playback.Output.
func (o *Output) Open() (playback.Device, error) {
	speaker.Lock()
	defer speaker.Unlock()
	return o.mixer.open(), nil
}

// Close stops the speaker stream.
func (o *Output) Close() error {
	o.once.Do(speaker.Clear)
	return nil
}
