package audio

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/19deck/internal/app/playback"
)

func frameOf(v float64, n int) playback.Frame {
	f := make(playback.Frame, n)
	for i := range f {
		f[i] = [2]float64{v, v}
	}
	return f
}

func TestMixer_StreamsAttachedDevice(t *testing.T) {
	m := newMixer(4)
	d := m.open()

	require.NoError(t, d.Write(frameOf(1, 3)))
	require.NoError(t, d.Write(frameOf(2, 3)))

	out := make([][2]float64, 4)
	n, ok := m.Stream(out)
	assert.Equal(t, 4, n)
	assert.True(t, ok)
	assert.Equal(t, [][2]float64{{1, 1}, {1, 1}, {1, 1}, {2, 2}}, out)

	n, ok = m.Stream(out)
	assert.Equal(t, 4, n)
	assert.True(t, ok)
	assert.Equal(t, [][2]float64{{2, 2}, {2, 2}, {0, 0}, {0, 0}}, out, "underrun is padded with silence")
}

func TestMixer_ClosedDeviceIsSilent(t *testing.T) {
	m := newMixer(4)
	d := m.open()
	require.NoError(t, d.Write(frameOf(1, 8)))

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	assert.True(t, errors.Is(d.Write(frameOf(1, 1)), ErrDeviceClosed))

	out := make([][2]float64, 4)
	m.Stream(out)
	assert.Equal(t, make([][2]float64, 4), out)
}

func TestMixer_NewDeviceDetachesOld(t *testing.T) {
	m := newMixer(4)
	old := m.open()
	require.NoError(t, old.Write(frameOf(1, 4)))

	cur := m.open()
	require.NoError(t, cur.Write(frameOf(2, 4)))

	out := make([][2]float64, 4)
	m.Stream(out)
	assert.Equal(t, [][2]float64{{2, 2}, {2, 2}, {2, 2}, {2, 2}}, out)

	// Closing the detached handle leaves the current one attached
	require.NoError(t, old.Close())
	require.NoError(t, cur.Write(frameOf(3, 1)))
	m.Stream(out[:1])
	assert.Equal(t, [2]float64{3, 3}, out[0])
}

func TestDevice_CloseUnblocksWrite(t *testing.T) {
	m := newMixer(1)
	d := m.open()
	require.NoError(t, d.Write(frameOf(1, 1)))

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.Write(frameOf(1, 1))
	}()

	select {
	case <-errCh:
		t.Fatal("write should block while the queue is full")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, d.Close())
	select {
	case err := <-errCh:
		assert.True(t, errors.Is(err, ErrDeviceClosed))
	case <-time.After(time.Second):
		t.Fatal("close did not unblock write")
	}
}

func TestOutput_OpenClose(t *testing.T) {
	if Available {
		t.Skip("needs a sound card")
	}
	o, err := NewOutput(8000, 10, 2)
	require.NoError(t, err)
	defer o.Close()

	d, err := o.Open()
	require.NoError(t, err)
	require.NoError(t, d.Write(frameOf(1, 80)))
	require.NoError(t, d.Close())
}
