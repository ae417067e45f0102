package publish

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"displayctl/display"
)

func TestNewMessage(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	st := display.UnknownState()
	st.Online = true
	st.Power = display.PowerOn
	st.Input = display.InputHDMI1
	st.Volume = 0
	st.Mute = display.Muted

	data, err := json.Marshal(NewMessage("lobby", st, at))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"display": "lobby",
		"time": "2024-03-01T12:00:00Z",
		"online": true,
		"power": "`+display.PowerOn.String()+`",
		"input": "`+string(display.InputHDMI1)+`",
		"volume": 0,
		"mute": "`+display.Muted.String()+`"
	}`, string(data))
}

func TestNewMessageUnknownVolume(t *testing.T) {
	msg := NewMessage("lobby", display.UnknownState(), time.Now())
	assert.Nil(t, msg.Volume)
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "volume")
}

func TestHistoryKey(t *testing.T) {
	assert.Equal(t, "displayctl:lobby:state", HistoryKey("lobby"))
}

func TestStateChangedDoesNotBlock(t *testing.T) {
	p := newPublisher(nil, "displayctl_state", 10)
	for i := 0; i < pendingMessages+10; i++ {
		p.StateChanged("lobby", display.UnknownState())
	}
	assert.Len(t, p.pending, pendingMessages)
}
