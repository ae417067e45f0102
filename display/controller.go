package display

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"displayctl/port"
	"displayctl/protocol"
	"displayctl/serialbuffer"
	"displayctl/serialqueue"
)

var (
	_ port.Handler = (*Controller)(nil)
	_ Display      = (*Controller)(nil)
)

// Controller drives one display: it owns the port, the frame buffer
// and the command queue, applies the Protocol transitions to the
// display State and takes care of retries and polling.
//
// Vendor drivers embed a Controller and add the capability methods.
type Controller struct {
	proto  Protocol
	port   port.Port
	cfg    Config
	log    *log.Entry
	buffer *serialbuffer.Buffer
	queue  *serialqueue.Queue

	mu      sync.Mutex
	state   State
	retries map[string]int
}

// NewController returns a Controller talking to p with proto. Call
// Run to start it.
func NewController(p port.Port, proto Protocol, opts ...Option) *Controller {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Name == "" {
		cfg.Name = proto.Name()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.WithField("display", cfg.Name)
	}
	c := &Controller{
		proto:   proto,
		port:    p,
		cfg:     cfg,
		log:     logger,
		buffer:  serialbuffer.New(proto.Split()),
		state:   UnknownState(),
		retries: make(map[string]int),
	}
	queueOpts := []serialqueue.Option{
		serialqueue.WithTimeout(cfg.Timeout),
		serialqueue.WithCommandDelay(cfg.CommandDelay),
		serialqueue.WithParser(proto.Parse),
		serialqueue.WithLogger(logger),
		serialqueue.WithObserver(cfg.Observer),
	}
	c.queue = serialqueue.New(p, c.buffer, queueOpts...)
	if jh, ok := proto.(JunkHandler); ok {
		c.buffer.SetJunkHandler(func(data []byte) {
			c.log.Debugf("junk % x", data)
			c.apply(nil, func(st State) Transition {
				return jh.Junk(st, data)
			})
		})
	}
	return c
}

// Name returns the display name.
func (c *Controller) Name() string {
	return c.cfg.Name
}

// Driver returns the protocol name.
func (c *Controller) Driver() string {
	return c.proto.Name()
}

// State returns the last known state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Queue returns the command queue.
func (c *Controller) Queue() *serialqueue.Queue {
	return c.queue
}

// Issue queues req. If optimistic is not nil it's applied to the state
// right away, e.g. Warming for a power on command.
func (c *Controller) Issue(req Request, optimistic func(State) State) {
	c.enqueue(req)
	if optimistic != nil {
		c.update(optimistic)
	}
}

// Idle reports whether every issued command has been answered, has
// timed out or failed, and its outcome applied to the state.
func (c *Controller) Idle() bool {
	return c.queue.Idle()
}

// Update applies f to the state, for changes a driver knows about
// without a response.
func (c *Controller) Update(f func(State) State) {
	c.update(f)
}

// Logger returns the logger of the display.
func (c *Controller) Logger() *log.Entry {
	return c.log
}

// Poll queues the protocol poll queries. Nothing is sent while the
// port is offline.
func (c *Controller) Poll() {
	st := c.State()
	if !st.Online {
		c.log.Trace("offline, not polling")
		return
	}
	for _, req := range c.proto.Poll(st) {
		c.enqueue(req)
	}
}

// DataReceived implements port.Handler.
func (c *Controller) DataReceived(data []byte) {
	c.queue.DataReceived(data)
}

// OnlineChanged implements port.Handler. Going offline forgets
// everything known about the display, coming back polls it.
func (c *Controller) OnlineChanged(online bool) {
	c.queue.OnlineChanged(online)
	if online {
		c.log.Info("online")
		c.update(func(st State) State {
			st.Online = true
			return st
		})
		c.Poll()
		return
	}
	c.log.Warn("offline")
	c.mu.Lock()
	c.retries = make(map[string]int)
	c.mu.Unlock()
	c.update(func(State) State {
		return UnknownState()
	})
}

// Run runs the port, the queue and the event loop until ctx is
// cancelled. It must be called only once.
func (c *Controller) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.queue.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := c.port.Run(ctx, c); err != nil && !errors.Is(err, context.Canceled) {
			c.log.Errorf("port stopped: %v", err)
		}
	}()
	err := c.loop(ctx)
	cancel()
	wg.Wait()
	return err
}

func (c *Controller) loop(ctx context.Context) error {
	var tick <-chan time.Time
	if c.cfg.PollInterval > 0 {
		ticker := time.NewTicker(c.cfg.PollInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-c.queue.Events():
			c.handleEvent(ev)
			c.queue.Done(ev)
		case <-tick:
			c.Poll()
		}
	}
}

func (c *Controller) handleEvent(ev serialqueue.Event) {
	switch ev.Kind {
	case serialqueue.EventResponse:
		c.log.Tracef("response to %v after %v", ev.Command, ev.Elapsed)
		c.apply(ev.Command, func(st State) Transition {
			return c.proto.Handle(st, ev.Command, ev.Response)
		})
	case serialqueue.EventUnsolicited:
		c.apply(nil, func(st State) Transition {
			return c.proto.Handle(st, nil, ev.Response)
		})
	case serialqueue.EventTimeout:
		c.retry(ev.Command, "timeout")
	case serialqueue.EventSendFailed:
		c.forget(ev.Command)
		c.log.Warnf("not retrying %v: %v", ev.Command, ev.Err)
	}
}

func (c *Controller) enqueue(req Request) {
	c.queue.EnqueueWithPriority(req.Command, req.Priority, req.Comparer)
}

func (c *Controller) update(f func(State) State) {
	c.mu.Lock()
	prev := c.state
	next := f(prev)
	c.state = next
	c.mu.Unlock()
	if next == prev {
		return
	}
	c.log.Debugf("state %v", next)
	if c.cfg.OnStateChanged != nil {
		c.cfg.OnStateChanged(c.cfg.Name, next)
	}
}

// apply runs a protocol transition. The online flag is owned by the
// port and never changed by the protocol.
func (c *Controller) apply(cmd protocol.Command, handle func(State) Transition) {
	var tr Transition
	c.update(func(st State) State {
		tr = handle(st)
		tr.State.Online = st.Online
		return tr.State
	})
	for _, req := range tr.FollowUps {
		c.enqueue(req)
	}
	if cmd == nil {
		return
	}
	if tr.Retry {
		c.retry(cmd, "error response")
	} else {
		c.forget(cmd)
	}
}

func retryKey(cmd protocol.Command) (string, bool) {
	data, err := cmd.Serialize()
	if err != nil {
		return "", false
	}
	return string(data), true
}

func (c *Controller) retry(cmd protocol.Command, reason string) {
	if protocol.IsToggle(cmd) {
		c.log.Warnf("not resending toggle %v after %s, the display may have executed it", cmd, reason)
		return
	}
	key, ok := retryKey(cmd)
	if !ok {
		return
	}
	c.mu.Lock()
	c.retries[key]++
	n := c.retries[key]
	if n > c.cfg.MaxRetries {
		delete(c.retries, key)
	}
	c.mu.Unlock()
	if n > c.cfg.MaxRetries {
		c.log.Warnf("giving up on %v after %d retries (%s)", cmd, c.cfg.MaxRetries, reason)
		return
	}
	c.log.Debugf("retrying %v (%d/%d) after %s", cmd, n, c.cfg.MaxRetries, reason)
	c.queue.EnqueuePriority(cmd, PriorityRetry)
}

func (c *Controller) forget(cmd protocol.Command) {
	if key, ok := retryKey(cmd); ok {
		c.mu.Lock()
		delete(c.retries, key)
		c.mu.Unlock()
	}
}
