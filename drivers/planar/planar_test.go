package planar

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"displayctl/display"
	"displayctl/port"
	"displayctl/protocol"
)

func TestSerialize(t *testing.T) {
	data, err := PowerCommand(true).Serialize()
	require.NoError(t, err)
	assert.Equal(t, "DISPLAY.POWER=ON\r", string(data))

	data, err = QueryCommand(keyVolume).Serialize()
	require.NoError(t, err)
	assert.Equal(t, "AUDIO.VOLUME?\r", string(data))

	_, err = (&Command{}).Serialize()
	assert.True(t, errors.Is(err, protocol.ErrIncompleteCommand))
}

func TestParse(t *testing.T) {
	r, err := Parse(protocol.Frame("SOURCE.SELECT:HDMI.2"))
	require.NoError(t, err)
	resp := r.(*Response)
	assert.Equal(t, keyInput, resp.Key)
	assert.Equal(t, "HDMI.2", resp.Value)
	assert.NoError(t, resp.Err())

	r, err = Parse(protocol.Frame("ERR:3"))
	require.NoError(t, err)
	var devErr *protocol.DeviceError
	require.True(t, errors.As(r.(*Response).Err(), &devErr))
	assert.Equal(t, "3", devErr.Code)

	_, err = Parse(protocol.Frame("garbage"))
	assert.True(t, errors.Is(err, protocol.ErrUnknownFrame))
}

func TestUnsolicitedChange(t *testing.T) {
	st := display.State{Online: true, Power: display.PowerOn, Volume: 3}
	r, _ := Parse(protocol.Frame("AUDIO.VOLUME:44"))
	tr := Protocol{}.Handle(st, nil, r)
	assert.Equal(t, 44, tr.State.Volume)

	r, _ = Parse(protocol.Frame("ERR:1"))
	tr = Protocol{}.Handle(st, nil, r)
	assert.False(t, tr.Retry)
	tr = Protocol{}.Handle(st, MuteCommand(true), r)
	assert.True(t, tr.Retry)
	tr = Protocol{}.Handle(st, QueryCommand(keyMute), r)
	assert.False(t, tr.Retry)
}

// monitor simulates a Planar display.
type monitor struct {
	mu     sync.Mutex
	values map[string]string
}

func (m *monitor) respond(w []byte) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	line := strings.TrimSuffix(string(w), "\r")
	if key, ok := strings.CutSuffix(line, "?"); ok {
		return []byte(key + ":" + m.values[key] + "\r\n")
	}
	key, value, _ := strings.Cut(line, "=")
	if key == keyScaling && value == "ZOOM" {
		return []byte("ERR:4\r\n")
	}
	m.values[key] = value
	return []byte(key + ":" + value + "\r\n")
}

func TestDriver(t *testing.T) {
	mon := &monitor{values: map[string]string{
		keyPower:   "STANDBY",
		keyInput:   "DVI.1",
		keyVolume:  "50",
		keyMute:    "OFF",
		keyScaling: "NATIVE",
	}}
	lb := port.NewLoopback(mon.respond)
	d := New(lb, display.WithPollInterval(0), display.WithMaxRetries(1))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	require.Eventually(t, func() bool { return d.State().Power == display.PowerOff }, 2*time.Second, 5*time.Millisecond)
	d.PowerOn()
	require.Eventually(t, func() bool {
		return d.State() == display.State{
			Online:  true,
			Power:   display.PowerOn,
			Input:   display.InputDVI,
			Volume:  50,
			Mute:    display.Unmuted,
			Scaling: display.ScalingNative,
		}
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, d.SetScaling(display.ScalingWide))
	require.NoError(t, d.SetScaling(display.ScalingNormal))
	require.Eventually(t, func() bool { return d.State().Scaling == display.ScalingNormal }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, d.SetScaling(display.ScalingZoom))
	require.Eventually(t, func() bool {
		n := 0
		for _, w := range lb.Writes() {
			if string(w) == "ASPECT=ZOOM\r" {
				n++
			}
		}
		return n == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, display.ScalingNormal, d.State().Scaling)
}
