package serialqueue

import (
	"fmt"
	"time"

	"displayctl/protocol"
)

// EventKind identifies the variant of an Event.
type EventKind int

const (
	// EventResponse carries the in-flight Command and its Response.
	EventResponse EventKind = iota + 1
	// EventUnsolicited carries a Response received while no
	// command was in flight. Command is nil.
	EventUnsolicited
	// EventTimeout carries the Command that got no response.
	EventTimeout
	// EventSendFailed carries the Command that couldn't be
	// serialized or written, and the error.
	EventSendFailed
)

func (k EventKind) String() string {
	switch k {
	case EventResponse:
		return "response"
	case EventUnsolicited:
		return "unsolicited"
	case EventTimeout:
		return "timeout"
	case EventSendFailed:
		return "send failed"
	}
	return fmt.Sprintf("unknown EventKind %d", int(k))
}

// Event is sent by the Queue to its owner for every response,
// unsolicited response, timeout or send failure.
type Event struct {
	Kind     EventKind
	Command  protocol.Command
	Response protocol.Response
	Err      error
	// Elapsed is the time between transmission and the response
	// or timeout.
	Elapsed time.Duration
}

// PendingRequest is the bookkeeping for the in-flight command.
type PendingRequest struct {
	Command  protocol.Command
	Priority int
	Sent     time.Time
}

// Observer is notified of queue activity. Used for metrics.
type Observer interface {
	CommandSent()
	ResponseReceived(elapsed time.Duration)
	Unsolicited()
	Timeout()
	SendFailed()
	FrameDropped()
	Collapsed()
}

type nopObserver struct{}

func (nopObserver) CommandSent()                   {}
func (nopObserver) ResponseReceived(time.Duration) {}
func (nopObserver) Unsolicited()                   {}
func (nopObserver) Timeout()                       {}
func (nopObserver) SendFailed()                    {}
func (nopObserver) FrameDropped()                  {}
func (nopObserver) Collapsed()                     {}
