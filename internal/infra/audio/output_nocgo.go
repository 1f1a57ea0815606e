//go:build !((linux && cgo) || windows || darwin)

package audio

import (
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19deck/internal/app/playback"
)

// Available indicates whether this build plays through the sound card.
const Available = false

// Output consumes device handles in real time without a sound card, so
// playback timing matches a real device.
type Output struct {
	mixer *mixer
	stop  chan struct{}
	once  sync.Once
}

// NewOutput starts a sink pulling bufferMs of samples per tick.
func NewOutput(sampleRate, bufferMs, queueFrames int) (*Output, error) {
	zlog.Warn().Msg("audio: built without cgo, output is silent")
	o := &Output{
		mixer: newMixer(queueFrames),
		stop:  make(chan struct{}),
	}
	go o.run(sampleRate, bufferMs)
	return o, nil
}

func (o *Output) run(sampleRate, bufferMs int) {
	if bufferMs <= 0 {
		bufferMs = 100
	}
	period := time.Duration(bufferMs) * time.Millisecond
	buf := make([][2]float64, sampleRate*bufferMs/1000)

	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-o.stop:
			return
		case <-ticker.C:
			o.mixer.Stream(buf)
		}
	}
}

// Open implements playback.Output.
func (o *Output) Open() (playback.Device, error) {
	return o.mixer.open(), nil
}

// Close stops the sink.
func (o *Output) Close() error {
	o.once.Do(func() { close(o.stop) })
	return nil
}
