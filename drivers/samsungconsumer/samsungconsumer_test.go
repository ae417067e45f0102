package samsungconsumer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"displayctl/display"
	"displayctl/port"
	"displayctl/protocol"
	"displayctl/serialbuffer"
)

var ackFrame = []byte{ackStart, ackMid, ackOK}

func TestSerialize(t *testing.T) {
	data, err := PowerCommand(true).Serialize()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x08, 0x22, 0x00, 0x00, 0x00, 0x02, 0xd4}, data)

	data, err = PowerCommand(false).Serialize()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x08, 0x22, 0x00, 0x00, 0x00, 0x01, 0xd5}, data)

	_, err = (&Command{}).Serialize()
	assert.True(t, errors.Is(err, protocol.ErrIncompleteCommand))
}

func TestChecksumRoundTrip(t *testing.T) {
	cmds := []*Command{PowerCommand(true), PowerCommand(false), MuteToggleCommand(true)}
	for _, in := range inputs.Keys() {
		cmd, err := InputCommand(in)
		require.NoError(t, err)
		cmds = append(cmds, cmd)
	}
	for _, level := range []int{0, 17, 100} {
		cmd, err := VolumeCommand(level)
		require.NoError(t, err)
		cmds = append(cmds, cmd)
	}
	for _, cmd := range cmds {
		data, err := cmd.Serialize()
		require.NoError(t, err)
		// The checksum makes the sum of the whole command zero
		assert.Equal(t, uint8(0), protocol.Sum8(protocol.NewSumChecksum(), data), cmd.String())
	}
}

func TestSplitReportsJunk(t *testing.T) {
	var frames []protocol.Frame
	var junk [][]byte
	buf := serialbuffer.New(Split)
	buf.SetFrameHandler(func(f protocol.Frame) { frames = append(frames, f) })
	buf.SetJunkHandler(func(b []byte) { junk = append(junk, b) })

	buf.Feed([]byte{0xab, 0xcd, 0x03, 0x0c})
	assert.Empty(t, frames)
	buf.Feed([]byte{0xf1, 0x03, 0x0c, 0xff, 0x03, 0x99})

	require.Len(t, frames, 2)
	assert.Equal(t, protocol.Frame(ackFrame), frames[0])
	assert.Equal(t, protocol.Frame{0x03, 0x0c, 0xff}, frames[1])
	assert.Equal(t, [][]byte{{0xab, 0xcd}, {0x03, 0x99}}, junk)
}

func TestHandle(t *testing.T) {
	ok, err := Parse(ackFrame)
	require.NoError(t, err)
	nak, err := Parse([]byte{0x03, 0x0c, 0xff})
	require.NoError(t, err)

	st := display.UnknownState()
	vol, _ := VolumeCommand(20)
	tr := Protocol{}.Handle(st, vol, ok)
	assert.Equal(t, 20, tr.State.Volume)
	assert.False(t, tr.Retry)

	tr = Protocol{}.Handle(st, vol, nak)
	assert.Equal(t, st, tr.State)
	assert.True(t, tr.Retry)

	tr = Protocol{}.Handle(st, nil, ok)
	assert.Equal(t, st, tr.State)
}

func TestJunkMeansPoweredOn(t *testing.T) {
	tr := Protocol{}.Junk(display.State{Power: display.PowerOff}, []byte{0x42})
	assert.Equal(t, display.PowerOn, tr.State.Power)
	assert.Empty(t, tr.FollowUps)
}

func TestDriver(t *testing.T) {
	lb := port.NewLoopback(func([]byte) []byte { return ackFrame })
	d := New(lb, display.WithPollInterval(0), display.WithCommandDelay(0))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	require.NoError(t, d.SetVolume(12))
	require.NoError(t, d.SetInput(display.InputHDMI3))
	d.SetMute(true)
	assert.Equal(t, display.Muted, d.State().Mute)
	require.Eventually(t, func() bool {
		st := d.State()
		return st.Volume == 12 && st.Input == display.InputHDMI3 && st.Mute == display.Muted
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, display.PowerUnknown, d.State().Power)

	lb.Inject([]byte{0x55, 0xaa})
	require.Eventually(t, func() bool { return d.State().Power == display.PowerOn }, 2*time.Second, 5*time.Millisecond)
}

func TestSetMuteToggles(t *testing.T) {
	lb := port.NewLoopback(nil)
	d := New(lb, display.WithPollInterval(0))

	d.SetMute(true)
	d.SetMute(true)
	d.SetMute(false)
	assert.Equal(t, 2, d.Queue().Len())
	assert.Equal(t, display.Unmuted, d.State().Mute)
}

func TestMuteToggleIsNotResent(t *testing.T) {
	// The TV executes everything but its acknowledgements get lost
	lb := port.NewLoopback(nil)
	d := New(lb,
		display.WithPollInterval(0),
		display.WithCommandDelay(0),
		display.WithTimeout(20*time.Millisecond),
		display.WithMaxRetries(3))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	toggle, err := MuteToggleCommand(true).Serialize()
	require.NoError(t, err)
	toggles := func() int {
		n := 0
		for _, w := range lb.Writes() {
			if string(w) == string(toggle) {
				n++
			}
		}
		return n
	}

	d.SetMute(true)
	require.Eventually(t, func() bool { return toggles() == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, d.Idle, 2*time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, toggles())
	assert.Equal(t, display.Muted, d.State().Mute)

	// Volume commands are still retried
	require.NoError(t, d.SetVolume(5))
	vol, err := VolumeCommand(5)
	require.NoError(t, err)
	volData, err := vol.Serialize()
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		n := 0
		for _, w := range lb.Writes() {
			if string(w) == string(volData) {
				n++
			}
		}
		return n == 4
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRejectedMuteToggleRestoresState(t *testing.T) {
	nak, err := Parse([]byte{0x03, 0x0c, 0xff})
	require.NoError(t, err)

	st := display.UnknownState()
	st.Mute = display.Muted
	tr := Protocol{}.Handle(st, MuteToggleCommand(true), nak)
	assert.Equal(t, display.Unmuted, tr.State.Mute)
	assert.False(t, tr.Retry)

	st.Mute = display.Unmuted
	tr = Protocol{}.Handle(st, MuteToggleCommand(false), nak)
	assert.Equal(t, display.Muted, tr.State.Mute)
}

func TestUnmuteWithUnknownStateSendsNothing(t *testing.T) {
	lb := port.NewLoopback(nil)
	d := New(lb, display.WithPollInterval(0))
	require.Equal(t, display.MuteUnknown, d.State().Mute)

	d.SetMute(false)
	assert.Equal(t, 0, d.Queue().Len())
	assert.Equal(t, display.Unmuted, d.State().Mute)

	d.SetMute(true)
	assert.Equal(t, 1, d.Queue().Len())
	assert.Equal(t, display.Muted, d.State().Mute)
}

func TestMuteCommandIsToggle(t *testing.T) {
	assert.True(t, protocol.IsToggle(MuteToggleCommand(true)))
	assert.False(t, protocol.IsToggle(PowerCommand(true)))
	assert.False(t, protocol.IsToggle(protocol.StringCommand{Data: "x"}))
}
