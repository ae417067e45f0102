package serialqueue

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"displayctl/port"
	"displayctl/protocol"
	"displayctl/serialbuffer"
)

func cmd(s string) protocol.StringCommand {
	return protocol.StringCommand{Data: s, Terminator: "\r"}
}

func echo(written []byte) []byte {
	return written
}

func sameVerb(queued, incoming protocol.Command) bool {
	a, okA := queued.(protocol.StringCommand)
	b, okB := incoming.(protocol.StringCommand)
	return okA && okB && a.Data[:3] == b.Data[:3]
}

type harness struct {
	q   *Queue
	lb  *port.Loopback
	ctx context.Context
}

func newHarness(t *testing.T, respond func([]byte) []byte, opts ...Option) *harness {
	lb := port.NewLoopback(respond)
	q := New(lb, serialbuffer.New(serialbuffer.Delimiter('\r')), opts...)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go lb.Run(ctx, q)
	return &harness{q: q, lb: lb, ctx: ctx}
}

func (h *harness) run() {
	go h.q.Run(h.ctx)
}

func nextEvent(t *testing.T, q *Queue) Event {
	t.Helper()
	select {
	case ev := <-q.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a queue event")
	}
	return Event{}
}

func noEvent(t *testing.T, q *Queue, wait time.Duration) {
	t.Helper()
	select {
	case ev := <-q.Events():
		t.Fatalf("unexpected event %v for %v", ev.Kind, ev.Command)
	case <-time.After(wait):
	}
}

func queuedData(q *Queue) []string {
	var out []string
	for _, c := range q.Queued() {
		out = append(out, c.(protocol.StringCommand).Data)
	}
	return out
}

type countingObserver struct {
	sent, responses, unsolicited, timeouts, failed, dropped, collapsed int32
}

func (o *countingObserver) CommandSent()                   { atomic.AddInt32(&o.sent, 1) }
func (o *countingObserver) ResponseReceived(time.Duration) { atomic.AddInt32(&o.responses, 1) }
func (o *countingObserver) Unsolicited()                   { atomic.AddInt32(&o.unsolicited, 1) }
func (o *countingObserver) Timeout()                       { atomic.AddInt32(&o.timeouts, 1) }
func (o *countingObserver) SendFailed()                    { atomic.AddInt32(&o.failed, 1) }
func (o *countingObserver) FrameDropped()                  { atomic.AddInt32(&o.dropped, 1) }
func (o *countingObserver) Collapsed()                     { atomic.AddInt32(&o.collapsed, 1) }

func TestPriorityOrdering(t *testing.T) {
	h := newHarness(t, echo)
	h.q.EnqueueWithPriority(cmd("P5"), 5, nil)
	h.q.EnqueueWithPriority(cmd("P1"), 1, nil)
	h.q.EnqueueWithPriority(cmd("P3"), 3, nil)
	h.q.EnqueueWithPriority(cmd("P3b"), 3, nil)
	assert.Equal(t, []string{"P1", "P3", "P3b", "P5"}, queuedData(h.q))

	h.run()
	var got []string
	for ii := 0; ii < 4; ii++ {
		ev := nextEvent(t, h.q)
		require.Equal(t, EventResponse, ev.Kind)
		got = append(got, ev.Command.(protocol.StringCommand).Data)
		assert.Equal(t, got[ii], string(ev.Response.Frame()))
	}
	assert.Equal(t, []string{"P1", "P3", "P3b", "P5"}, got)
}

func TestCollapsing(t *testing.T) {
	obs := &countingObserver{}
	h := newHarness(t, echo, WithObserver(obs))
	h.q.EnqueueWithComparer(cmd("VOL10"), sameVerb)
	h.q.EnqueueWithComparer(cmd("VOL20"), sameVerb)
	assert.Equal(t, 1, h.q.Len())
	assert.Equal(t, []string{"VOL20"}, queuedData(h.q))
	assert.Equal(t, int32(1), atomic.LoadInt32(&obs.collapsed))

	h.q.EnqueueWithComparer(cmd("INP1"), sameVerb)
	h.q.Enqueue(cmd("VOL30"))
	assert.Equal(t, []string{"VOL20", "INP1", "VOL30"}, queuedData(h.q))
}

func TestCollapsingMovesForwardOnHigherPriority(t *testing.T) {
	h := newHarness(t, echo)
	h.q.Enqueue(cmd("AAA"))
	h.q.Enqueue(cmd("VOL1"))
	h.q.EnqueueWithPriority(cmd("VOL2"), 1, sameVerb)
	assert.Equal(t, []string{"VOL2", "AAA"}, queuedData(h.q))
}

func TestInFlightIsNeverCollapsed(t *testing.T) {
	h := newHarness(t, nil, WithTimeout(100*time.Millisecond))
	h.run()
	h.q.EnqueueWithComparer(cmd("VOL10"), sameVerb)
	require.Eventually(t, func() bool { return h.q.InFlight() != nil }, time.Second, time.Millisecond)

	h.q.EnqueueWithComparer(cmd("VOL20"), sameVerb)
	assert.Equal(t, 1, h.q.Len())

	ev := nextEvent(t, h.q)
	assert.Equal(t, EventTimeout, ev.Kind)
	assert.Equal(t, "VOL10", ev.Command.(protocol.StringCommand).Data)
	ev = nextEvent(t, h.q)
	assert.Equal(t, EventTimeout, ev.Kind)
	assert.Equal(t, "VOL20", ev.Command.(protocol.StringCommand).Data)
}

func TestEnqueuePriorityGoesToFrontOfBand(t *testing.T) {
	h := newHarness(t, echo)
	h.q.EnqueueWithPriority(cmd("A"), 5, nil)
	h.q.EnqueueWithPriority(cmd("B"), 5, nil)
	h.q.EnqueueWithPriority(cmd("C"), 1, nil)
	h.q.EnqueuePriority(cmd("R1"), 5)
	h.q.EnqueuePriority(cmd("R2"), 5)
	assert.Equal(t, []string{"C", "R2", "R1", "A", "B"}, queuedData(h.q))
}

func TestTimeoutFiresOnceAndQueueMovesOn(t *testing.T) {
	obs := &countingObserver{}
	h := newHarness(t, nil, WithTimeout(30*time.Millisecond), WithObserver(obs))
	h.q.Enqueue(cmd("A"))
	h.q.Enqueue(cmd("B"))
	h.run()

	ev := nextEvent(t, h.q)
	assert.Equal(t, EventTimeout, ev.Kind)
	assert.Equal(t, "A", ev.Command.(protocol.StringCommand).Data)
	assert.True(t, ev.Elapsed >= 30*time.Millisecond)

	ev = nextEvent(t, h.q)
	assert.Equal(t, EventTimeout, ev.Kind)
	assert.Equal(t, "B", ev.Command.(protocol.StringCommand).Data)

	noEvent(t, h.q, 100*time.Millisecond)
	assert.Nil(t, h.q.InFlight())
	assert.Equal(t, int32(2), atomic.LoadInt32(&obs.timeouts))
	assert.Len(t, h.lb.Writes(), 2)
}

func TestRetryAfterTimeout(t *testing.T) {
	var attempts int32
	respond := func(w []byte) []byte {
		if atomic.AddInt32(&attempts, 1) == 1 {
			return nil
		}
		return w
	}
	h := newHarness(t, respond, WithTimeout(30*time.Millisecond))
	h.run()
	h.q.Enqueue(cmd("QPW"))

	ev := nextEvent(t, h.q)
	require.Equal(t, EventTimeout, ev.Kind)
	h.q.EnqueuePriority(ev.Command, 0)

	ev = nextEvent(t, h.q)
	assert.Equal(t, EventResponse, ev.Kind)
	assert.Equal(t, "QPW", string(ev.Response.Frame()))
}

func TestUnsolicited(t *testing.T) {
	h := newHarness(t, nil)
	h.run()
	h.lb.Inject([]byte("HELLO\r"))
	ev := nextEvent(t, h.q)
	assert.Equal(t, EventUnsolicited, ev.Kind)
	assert.Nil(t, ev.Command)
	assert.Equal(t, "HELLO", string(ev.Response.Frame()))
}

func TestInvalidFrameKeepsCommandPending(t *testing.T) {
	obs := &countingObserver{}
	parse := func(f protocol.Frame) (protocol.Response, error) {
		if string(f) == "BAD" {
			return nil, protocol.ErrShortFrame
		}
		return protocol.ParseRaw(f)
	}
	respond := func([]byte) []byte { return []byte("BAD\r") }
	h := newHarness(t, respond,
		WithParser(parse),
		WithTimeout(50*time.Millisecond),
		WithObserver(obs))
	h.run()
	h.q.Enqueue(cmd("A"))

	ev := nextEvent(t, h.q)
	assert.Equal(t, EventTimeout, ev.Kind)
	assert.Equal(t, int32(1), atomic.LoadInt32(&obs.dropped))
	assert.Equal(t, int32(0), atomic.LoadInt32(&obs.responses))
}

func TestSendFailed(t *testing.T) {
	boom := errors.New("boom")
	h := newHarness(t, echo)
	h.lb.SetWriteError(boom)
	h.run()
	h.q.Enqueue(cmd("A"))

	ev := nextEvent(t, h.q)
	assert.Equal(t, EventSendFailed, ev.Kind)
	assert.True(t, errors.Is(ev.Err, boom))
	assert.Equal(t, "A", ev.Command.(protocol.StringCommand).Data)
	assert.Nil(t, h.q.InFlight())

	h.lb.SetWriteError(nil)
	h.q.Enqueue(cmd("B"))
	ev = nextEvent(t, h.q)
	assert.Equal(t, EventResponse, ev.Kind)
	assert.Equal(t, "B", string(ev.Response.Frame()))
}

func TestSerializeFailure(t *testing.T) {
	h := newHarness(t, echo)
	h.run()
	h.q.Enqueue(protocol.StringCommand{})
	h.q.Enqueue(cmd("OK"))

	ev := nextEvent(t, h.q)
	assert.Equal(t, EventSendFailed, ev.Kind)
	assert.True(t, errors.Is(ev.Err, protocol.ErrIncompleteCommand))
	ev = nextEvent(t, h.q)
	assert.Equal(t, EventResponse, ev.Kind)
}

func TestCommandDelay(t *testing.T) {
	var mu sync.Mutex
	var sent []time.Time
	respond := func(w []byte) []byte {
		mu.Lock()
		sent = append(sent, time.Now())
		mu.Unlock()
		return w
	}
	const delay = 50 * time.Millisecond
	h := newHarness(t, respond, WithCommandDelay(delay))
	h.q.Enqueue(cmd("A"))
	h.q.Enqueue(cmd("B"))
	h.q.Enqueue(cmd("C"))
	h.run()
	for ii := 0; ii < 3; ii++ {
		assert.Equal(t, EventResponse, nextEvent(t, h.q).Kind)
	}
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, sent, 3)
	for ii := 1; ii < len(sent); ii++ {
		assert.True(t, sent[ii].Sub(sent[ii-1]) >= delay-5*time.Millisecond,
			"gap %v is shorter than %v", sent[ii].Sub(sent[ii-1]), delay)
	}
}

func TestClearDropsQueueAndInFlight(t *testing.T) {
	respond := func(w []byte) []byte {
		if strings.HasPrefix(string(w), "D") {
			return w
		}
		return nil
	}
	h := newHarness(t, respond, WithTimeout(5*time.Second))
	h.q.Enqueue(cmd("A"))
	h.q.Enqueue(cmd("B"))
	h.q.Enqueue(cmd("C"))
	h.run()
	require.Eventually(t, func() bool { return h.q.InFlight() != nil }, time.Second, time.Millisecond)

	h.q.Clear()
	assert.Equal(t, 0, h.q.Len())
	assert.Nil(t, h.q.InFlight())

	start := time.Now()
	h.q.Enqueue(cmd("D"))
	ev := nextEvent(t, h.q)
	assert.Equal(t, EventResponse, ev.Kind)
	assert.Equal(t, "D", string(ev.Response.Frame()))
	assert.True(t, time.Since(start) < time.Second, "D must not wait for the cleared request")
}

func TestOfflineClearsQueue(t *testing.T) {
	h := newHarness(t, nil)
	h.q.Enqueue(cmd("A"))
	h.q.Enqueue(cmd("B"))
	h.lb.SetOnline(false)
	require.Eventually(t, func() bool { return h.q.Len() == 0 }, time.Second, time.Millisecond)
}

func TestIdleUntilEventDone(t *testing.T) {
	h := newHarness(t, echo)
	assert.True(t, h.q.Idle())
	h.q.Enqueue(cmd("A"))
	assert.False(t, h.q.Idle())
	h.run()

	ev := nextEvent(t, h.q)
	require.Equal(t, EventResponse, ev.Kind)
	assert.Nil(t, h.q.InFlight())
	assert.Equal(t, 0, h.q.Len())
	assert.False(t, h.q.Idle(), "the response has not been handled yet")

	h.q.Done(ev)
	assert.True(t, h.q.Idle())

	h.lb.Inject([]byte("HELLO\r"))
	ev = nextEvent(t, h.q)
	require.Equal(t, EventUnsolicited, ev.Kind)
	h.q.Done(ev)
	assert.True(t, h.q.Idle())
}

func TestIdleAfterTimeoutAndSendFailure(t *testing.T) {
	h := newHarness(t, nil, WithTimeout(20*time.Millisecond))
	h.run()
	h.q.Enqueue(cmd("A"))
	ev := nextEvent(t, h.q)
	require.Equal(t, EventTimeout, ev.Kind)
	assert.False(t, h.q.Idle())
	h.q.Done(ev)
	assert.True(t, h.q.Idle())

	h.lb.SetWriteError(errors.New("boom"))
	h.q.Enqueue(cmd("B"))
	ev = nextEvent(t, h.q)
	require.Equal(t, EventSendFailed, ev.Kind)
	assert.False(t, h.q.Idle())
	h.q.Done(ev)
	assert.True(t, h.q.Idle())
}

func TestClearReleasesIdle(t *testing.T) {
	h := newHarness(t, nil, WithTimeout(5*time.Second))
	h.q.Enqueue(cmd("A"))
	h.q.Enqueue(cmd("B"))
	h.run()
	require.Eventually(t, func() bool { return h.q.InFlight() != nil }, time.Second, time.Millisecond)
	assert.False(t, h.q.Idle())

	h.q.Clear()
	assert.True(t, h.q.Idle())
	noEvent(t, h.q, 50*time.Millisecond)
}
