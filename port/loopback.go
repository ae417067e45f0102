package port

import (
	"context"
	"sync"
)

// Loopback is an in-memory Port for tests and simulations. Every
// write is passed to Respond, and whatever it returns is delivered
// back as received data, in order, from the Run goroutine.
type Loopback struct {
	// Respond simulates the device. It may be nil.
	Respond func(written []byte) []byte

	mu       sync.Mutex
	writes   [][]byte
	writeErr error
	rx       chan []byte
	online   chan bool
}

// NewLoopback returns a Loopback calling respond for every write.
func NewLoopback(respond func(written []byte) []byte) *Loopback {
	return &Loopback{
		Respond: respond,
		rx:      make(chan []byte, 64),
		online:  make(chan bool, 4),
	}
}

// Write implements io.Writer.
func (l *Loopback) Write(p []byte) (int, error) {
	l.mu.Lock()
	if l.writeErr != nil {
		err := l.writeErr
		l.mu.Unlock()
		return 0, err
	}
	l.writes = append(l.writes, append([]byte(nil), p...))
	respond := l.Respond
	l.mu.Unlock()
	if respond != nil {
		if resp := respond(p); resp != nil {
			l.rx <- resp
		}
	}
	return len(p), nil
}

// Inject delivers data as if the device had sent it on its own.
func (l *Loopback) Inject(data []byte) {
	l.rx <- append([]byte(nil), data...)
}

// SetWriteError makes every subsequent Write fail with err, or
// succeed again when err is nil.
func (l *Loopback) SetWriteError(err error) {
	l.mu.Lock()
	l.writeErr = err
	l.mu.Unlock()
}

// SetOnline simulates the port going online or offline.
func (l *Loopback) SetOnline(online bool) {
	l.online <- online
}

// Writes returns a copy of everything written so far.
func (l *Loopback) Writes() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([][]byte(nil), l.writes...)
}

// Run reports the port online and delivers the simulated data to h
// until ctx is cancelled.
func (l *Loopback) Run(ctx context.Context, h Handler) error {
	h.OnlineChanged(true)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data := <-l.rx:
			h.DataReceived(data)
		case online := <-l.online:
			h.OnlineChanged(online)
		}
	}
}

// Close implements Port.
func (l *Loopback) Close() error {
	return nil
}
