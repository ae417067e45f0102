package serialqueue

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"displayctl/protocol"
)

const (
	// DefaultPriority is used by Enqueue. Lower values are sent
	// sooner.
	DefaultPriority = 100

	frameBacklog = 16
)

// FrameBuffer extracts frames from the received data. It's
// implemented by *serialbuffer.Buffer.
type FrameBuffer interface {
	Feed(data []byte)
	Clear()
	SetFrameHandler(h func(protocol.Frame))
}

type entry struct {
	cmd      protocol.Command
	priority int
	seq      int64
}

func (e *entry) before(o *entry) bool {
	if e.priority != o.priority {
		return e.priority < o.priority
	}
	return e.seq < o.seq
}

// Queue sends one command at a time, in priority order, and
// correlates the next valid frame to it. Use New to create one and
// Run to start its send loop.
//
// Enqueue, Clear and the port callbacks are safe for concurrent use.
type Queue struct {
	port   io.Writer
	buffer FrameBuffer
	cfg    Config

	mu       sync.Mutex
	entries  []*entry
	nextSeq  int64
	frontSeq int64
	inFlight *PendingRequest
	lastSent time.Time
	// commands dequeued whose event hasn't been marked Done
	active int

	wake   chan struct{}
	frames chan protocol.Frame
	events chan Event
	done   chan struct{}
}

// New returns a Queue writing to port and reading frames from buf.
// The Queue becomes the frame handler of buf.
func New(port io.Writer, buf FrameBuffer, opts ...Option) *Queue {
	if port == nil {
		panic(errors.New("port cannot be nil"))
	}
	if buf == nil {
		panic(errors.New("buffer cannot be nil"))
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	q := &Queue{
		port:     port,
		buffer:   buf,
		cfg:      cfg,
		frontSeq: -1,
		wake:     make(chan struct{}, 1),
		frames:   make(chan protocol.Frame, frameBacklog),
		events:   make(chan Event, cfg.EventBuffer),
		done:     make(chan struct{}),
	}
	buf.SetFrameHandler(q.frameReceived)
	return q
}

// Events returns the channel the queue sends its events to. It must
// be drained by the owner while Run is active.
func (q *Queue) Events() <-chan Event {
	return q.events
}

// Enqueue queues cmd with DefaultPriority.
func (q *Queue) Enqueue(cmd protocol.Command) {
	q.EnqueueWithPriority(cmd, DefaultPriority, nil)
}

// EnqueueWithComparer queues cmd with DefaultPriority, replacing the
// first queued command for which comparer returns true.
func (q *Queue) EnqueueWithComparer(cmd protocol.Command, comparer protocol.Comparer) {
	q.EnqueueWithPriority(cmd, DefaultPriority, comparer)
}

// EnqueueWithPriority queues cmd after every queued command with a
// lower or equal priority. If comparer is not nil and matches a
// queued command (never the in-flight one), that command is replaced
// in place. A replacement with a lower priority value moves forward.
func (q *Queue) EnqueueWithPriority(cmd protocol.Command, priority int, comparer protocol.Comparer) {
	q.mu.Lock()
	if comparer != nil {
		for ii, e := range q.entries {
			if !comparer(e.cmd, cmd) {
				continue
			}
			e.cmd = cmd
			if priority < e.priority {
				e.priority = priority
				q.entries = append(q.entries[:ii], q.entries[ii+1:]...)
				q.insert(e)
			}
			q.mu.Unlock()
			q.cfg.Logger.Tracef("collapsed %v", cmd)
			q.cfg.Observer.Collapsed()
			q.notify()
			return
		}
	}
	q.insert(&entry{cmd: cmd, priority: priority, seq: q.nextSeq})
	q.nextSeq++
	q.mu.Unlock()
	q.notify()
}

// EnqueuePriority queues cmd in front of every queued command with
// the same priority. Used for retries and queries that must preempt
// routine traffic.
func (q *Queue) EnqueuePriority(cmd protocol.Command, priority int) {
	q.mu.Lock()
	q.insert(&entry{cmd: cmd, priority: priority, seq: q.frontSeq})
	q.frontSeq--
	q.mu.Unlock()
	q.notify()
}

// must be called with q.mu held
func (q *Queue) insert(e *entry) {
	idx := sort.Search(len(q.entries), func(i int) bool {
		return e.before(q.entries[i])
	})
	q.entries = append(q.entries, nil)
	copy(q.entries[idx+1:], q.entries[idx:])
	q.entries[idx] = e
}

// Clear drops every queued command, forgets the in-flight one and
// discards partially received data. Nobody is notified.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.entries = nil
	if q.inFlight != nil {
		// its event will never be emitted
		q.inFlight = nil
		q.active--
	}
	q.mu.Unlock()
	q.buffer.Clear()
	q.notify()
}

// Len returns the number of queued commands, excluding the in-flight
// one.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Idle reports whether nothing is queued or in flight and the events
// of every sent command have been marked with Done.
func (q *Queue) Idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries) == 0 && q.active == 0
}

// Done marks ev, received from Events, as handled. Owners using Idle
// must call it for every event once they've acted on it.
func (q *Queue) Done(ev Event) {
	if ev.Kind == EventUnsolicited {
		return
	}
	q.mu.Lock()
	if q.active > 0 {
		q.active--
	}
	q.mu.Unlock()
}

// Queued returns the queued commands in the order they'll be sent.
func (q *Queue) Queued() []protocol.Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	cmds := make([]protocol.Command, len(q.entries))
	for ii, e := range q.entries {
		cmds[ii] = e.cmd
	}
	return cmds
}

// InFlight returns the command awaiting a response, if any.
func (q *Queue) InFlight() *PendingRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.inFlight == nil {
		return nil
	}
	req := *q.inFlight
	return &req
}

// DataReceived feeds data read from the port to the frame buffer.
func (q *Queue) DataReceived(data []byte) {
	q.buffer.Feed(data)
}

// OnlineChanged clears the queue when the port goes offline.
func (q *Queue) OnlineChanged(online bool) {
	if !online {
		q.Clear()
	}
}

func (q *Queue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) frameReceived(f protocol.Frame) {
	select {
	case q.frames <- f:
	case <-q.done:
	}
}

// Run sends the queued commands until ctx is cancelled. It must be
// called only once.
func (q *Queue) Run(ctx context.Context) error {
	defer close(q.done)
	var current *PendingRequest
	var timeout *time.Timer
	var timeoutC <-chan time.Time
	var gapC <-chan time.Time

	release := func() {
		current = nil
		if timeout != nil {
			timeout.Stop()
			timeout = nil
		}
		timeoutC = nil
	}

	for {
		if current == nil && gapC == nil {
			if wait := q.gapRemaining(); wait > 0 {
				gapC = time.After(wait)
			} else if req := q.sendNext(ctx); req != nil {
				current = req
				timeout = time.NewTimer(q.cfg.Timeout)
				timeoutC = timeout.C
			}
		}
		select {
		case <-ctx.Done():
			release()
			return ctx.Err()
		case <-q.wake:
			if current != nil && !q.isInFlight(current) {
				// Dropped by Clear
				release()
			}
		case f := <-q.frames:
			if q.handleFrame(ctx, current, f) {
				release()
			}
		case <-timeoutC:
			req := current
			release()
			if q.complete(req) {
				elapsed := time.Since(req.Sent)
				q.cfg.Logger.Warnf("timeout waiting for response to %v after %v", req.Command, elapsed)
				q.cfg.Observer.Timeout()
				q.emit(ctx, Event{Kind: EventTimeout, Command: req.Command, Elapsed: elapsed})
			}
		case <-gapC:
			gapC = nil
		}
	}
}

func (q *Queue) gapRemaining() time.Duration {
	if q.cfg.CommandDelay <= 0 {
		return 0
	}
	q.mu.Lock()
	last := q.lastSent
	q.mu.Unlock()
	if last.IsZero() {
		return 0
	}
	return q.cfg.CommandDelay - time.Since(last)
}

// sendNext transmits the first queued command that can be sent and
// returns its request, or nil when the queue is empty.
func (q *Queue) sendNext(ctx context.Context) *PendingRequest {
	for {
		q.mu.Lock()
		if len(q.entries) == 0 {
			q.mu.Unlock()
			return nil
		}
		e := q.entries[0]
		q.entries[0] = nil
		q.entries = q.entries[1:]
		q.active++
		q.mu.Unlock()

		data, err := e.cmd.Serialize()
		if err != nil {
			q.sendFailed(ctx, e.cmd, fmt.Errorf("serializing %v: %w", e.cmd, err))
			continue
		}

		req := &PendingRequest{
			Command:  e.cmd,
			Priority: e.priority,
			Sent:     time.Now(),
		}
		q.mu.Lock()
		q.inFlight = req
		q.lastSent = req.Sent
		q.mu.Unlock()

		q.cfg.Logger.Debugf("=> %s (%v)", hex.EncodeToString(data), e.cmd)
		if _, err := q.port.Write(data); err != nil {
			if q.complete(req) {
				q.sendFailed(ctx, e.cmd, fmt.Errorf("writing %v: %w", e.cmd, err))
			}
			if q.cfg.CommandDelay > 0 {
				// Let Run wait for the gap before the next one
				q.notify()
				return nil
			}
			continue
		}
		q.cfg.Observer.CommandSent()
		return req
	}
}

func (q *Queue) sendFailed(ctx context.Context, cmd protocol.Command, err error) {
	q.cfg.Logger.Errorf("send failed: %v", err)
	q.cfg.Observer.SendFailed()
	q.emit(ctx, Event{Kind: EventSendFailed, Command: cmd, Err: err})
}

// handleFrame returns true when current is no longer pending.
func (q *Queue) handleFrame(ctx context.Context, current *PendingRequest, f protocol.Frame) bool {
	resp, err := q.cfg.Parser(f)
	if err != nil {
		// Leave the command pending, it'll time out on its own
		q.cfg.Logger.Warnf("dropping invalid frame %s: %v", f, err)
		q.cfg.Observer.FrameDropped()
		return false
	}
	q.cfg.Logger.Debugf("<= %s", f)
	if current == nil || !q.complete(current) {
		q.cfg.Observer.Unsolicited()
		q.emit(ctx, Event{Kind: EventUnsolicited, Response: resp})
		return current != nil
	}
	elapsed := time.Since(current.Sent)
	q.cfg.Observer.ResponseReceived(elapsed)
	q.emit(ctx, Event{
		Kind:     EventResponse,
		Command:  current.Command,
		Response: resp,
		Elapsed:  elapsed,
	})
	return true
}

func (q *Queue) isInFlight(req *PendingRequest) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inFlight == req
}

// complete clears req if it's still the in-flight request.
func (q *Queue) complete(req *PendingRequest) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if req == nil || q.inFlight != req {
		return false
	}
	q.inFlight = nil
	return true
}

func (q *Queue) emit(ctx context.Context, ev Event) {
	select {
	case q.events <- ev:
	case <-ctx.Done():
	}
}
