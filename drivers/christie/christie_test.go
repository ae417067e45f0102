package christie

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
	"displayctl/serialbuffer"
)

func TestSerialize(t *testing.T) {
	data, err := PowerCommand(true).Serialize()
	require.NoError(t, err)
	assert.Equal(t, "(PWR1)", string(data))

	cmd, err := InputCommand(display.InputHDMI2)
	require.NoError(t, err)
	data, err = cmd.Serialize()
	require.NoError(t, err)
	assert.Equal(t, "(SIN4)", string(data))

	data, err = QueryCommand(codeShutter).Serialize()
	require.NoError(t, err)
	assert.Equal(t, "(SHU?)", string(data))

	_, err = (&Command{Code: codePower}).Serialize()
	assert.True(t, errors.Is(err, protocol.ErrIncompleteCommand))
}

func TestFraming(t *testing.T) {
	var frames []string
	buf := serialbuffer.New(Protocol{}.Split())
	buf.SetFrameHandler(func(f protocol.Frame) { frames = append(frames, string(f)) })

	buf.Feed([]byte(`ghfghf(CON500)fghfg`))
	buf.Feed([]byte(`(PWR!001 "Power \(On\)")`))
	buf.Feed([]byte(`(65535 00000 ERR00008 "Invalid `))
	buf.Feed([]byte(`parameter")`))

	assert.Equal(t, []string{
		`(CON500)`,
		`(PWR!001 "Power \(On\)")`,
		`(65535 00000 ERR00008 "Invalid parameter")`,
	}, frames)
}

func TestParse(t *testing.T) {
	r, err := Parse(protocol.Frame(`(PWR!001 "Power \(On\)")`))
	require.NoError(t, err)
	resp := r.(*Response)
	assert.Equal(t, codePower, resp.Code)
	assert.Equal(t, 1, resp.Value)
	assert.Equal(t, "Power (On)", resp.Description)
	assert.NoError(t, resp.Err())

	r, err = Parse(protocol.Frame(`(65535 00000 ERR00008 "Invalid parameter")`))
	require.NoError(t, err)
	var devErr *protocol.DeviceError
	require.True(t, errors.As(r.(*Response).Err(), &devErr))
	assert.Equal(t, "00008", devErr.Code)
	assert.Equal(t, "Invalid parameter", r.(*Response).Description)

	_, err = Parse(protocol.Frame(`(CON500)`))
	assert.True(t, errors.Is(err, protocol.ErrUnknownFrame))
	_, err = Parse(protocol.Frame(`(PWR!abc)`))
	assert.True(t, errors.Is(err, protocol.ErrUnknownFrame))
	_, err = Parse(protocol.Frame(`PWR!001`))
	assert.True(t, errors.Is(err, protocol.ErrUnknownFrame))
}

func TestHandle(t *testing.T) {
	st := display.UnknownState()
	for _, tc := range []struct {
		frame string
		power display.PowerState
	}{
		{"(PWR!000)", display.PowerOff},
		{"(PWR!011)", display.PowerWarming},
		{"(PWR!010)", display.PowerCooling},
		{"(PWR!001)", display.PowerOn},
	} {
		r, err := Parse(protocol.Frame(tc.frame))
		require.NoError(t, err)
		tr := Protocol{}.Handle(st, nil, r)
		assert.Equal(t, tc.power, tr.State.Power, tc.frame)
	}

	r, _ := Parse(protocol.Frame(`(65535 00000 ERR00008 "Invalid parameter")`))
	tr := Protocol{}.Handle(st, PowerCommand(true), r)
	assert.True(t, tr.Retry)
	tr = Protocol{}.Handle(st, QueryCommand(codePower), r)
	assert.False(t, tr.Retry)
}

// projector simulates a Christie projector, answering every command
// with the resulting status.
type projector struct {
	mu     sync.Mutex
	values map[string]string
}

func (p *projector) respond(w []byte) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	text := strings.Trim(string(w), "()")
	code, param := text[:3], text[3:]
	if param != query {
		p.values[code] = param
	}
	v := p.values[code]
	return []byte("(" + code + "!" + strings.Repeat("0", 3-len(v)) + v + ` "\(ok\)")`)
}

func TestDriver(t *testing.T) {
	proj := &projector{values: map[string]string{
		codePower:   "0",
		codeInput:   "3",
		codeShutter: "0",
	}}
	lb := port.NewLoopback(proj.respond)
	d := New(lb, display.WithPollInterval(0))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	require.Eventually(t, func() bool { return d.State().Power == display.PowerOff }, 2*time.Second, 5*time.Millisecond)
	d.PowerOn()
	d.SetMute(true)
	require.NoError(t, d.SetInput(display.InputDisplayPort))
	require.Eventually(t, func() bool {
		return d.State() == display.State{
			Online: true,
			Power:  display.PowerOn,
			Input:  display.InputDisplayPort,
			Volume: display.VolumeUnknown,
			Mute:   display.Muted,
		}
	}, 2*time.Second, 5*time.Millisecond)
}
