package display

import (
	"displayctl/protocol"
	"displayctl/serialbuffer"
	"displayctl/serialqueue"
)

// Priorities used by the drivers. Lower values are sent sooner.
const (
	PriorityRetry   = 0
	PriorityCommand = 10
	PriorityQuery   = 50
	PriorityPoll    = serialqueue.DefaultPriority
)

// Request is a command together with how it should be queued.
type Request struct {
	Command  protocol.Command
	Priority int
	// Comparer collapses the request with an equivalent queued
	// one. Nil never collapses.
	Comparer protocol.Comparer
}

// Transition is the outcome of handling a response: the new state and
// the commands to send because of it.
type Transition struct {
	State     State
	FollowUps []Request
	// Retry asks the controller to resend the command, e.g. because
	// the display answered with an error.
	Retry bool
}

// Stay returns a Transition keeping st without follow ups.
func Stay(st State) Transition {
	return Transition{State: st}
}

// Protocol describes the wire protocol of a display family. Methods
// must not have side effects, the Controller owns the state.
type Protocol interface {
	// Name is the driver name, e.g. "nec".
	Name() string
	// Split extracts frames from the received bytes.
	Split() serialbuffer.SplitFunc
	// Parse validates a frame and returns the vendor response.
	Parse(f protocol.Frame) (protocol.Response, error)
	// Handle applies resp, received for cmd, to st. cmd is nil for
	// unsolicited responses.
	Handle(st State, cmd protocol.Command, resp protocol.Response) Transition
	// Poll returns the queries to send periodically.
	Poll(st State) []Request
}

// JunkHandler is implemented by protocols that infer something from
// data the Split function rejected.
type JunkHandler interface {
	Junk(st State, data []byte) Transition
}
