package serialbuffer

import (
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"

	"displayctl/protocol"
)

// ErrJunk can be returned by a SplitFunc together with a positive
// advance to report the advanced bytes as junk. The buffer hands them
// to the junk handler and keeps parsing.
var ErrJunk = errors.New("junk data")

// SplitFunc extracts the next frame from the front of data. It's
// shaped like bufio.SplitFunc:
//
//   - (0, nil, nil) asks for more data.
//   - (n, nil, nil) discards n leading bytes (resynchronization).
//   - (n, frame, nil) consumes n bytes and emits frame.
//   - (n, nil, err) consumes n bytes and reports them as junk.
//
// A SplitFunc must be pure: all of its state lives in data.
type SplitFunc func(data []byte) (advance int, frame []byte, err error)

// Buffer accumulates incoming bytes and emits complete frames.
// Feed and Clear may be called from multiple goroutines. Handlers
// run without any lock held, so they may call Feed or Clear.
type Buffer struct {
	split SplitFunc

	mu      sync.Mutex
	data    []byte
	parsing bool
	onFrame func(protocol.Frame)
	onJunk  func([]byte)
}

// New returns a Buffer using the given framing rule.
func New(split SplitFunc) *Buffer {
	if split == nil {
		panic(errors.New("split cannot be nil"))
	}
	return &Buffer{split: split}
}

// SetFrameHandler sets the function called with every complete frame.
func (b *Buffer) SetFrameHandler(h func(protocol.Frame)) {
	b.mu.Lock()
	b.onFrame = h
	b.mu.Unlock()
}

// SetJunkHandler sets the function called with data a SplitFunc
// reported as junk.
func (b *Buffer) SetJunkHandler(h func([]byte)) {
	b.mu.Lock()
	b.onJunk = h
	b.mu.Unlock()
}

// Feed appends chunk to the accumulated data and emits every frame
// that became complete. If another call is already parsing, the data
// is appended and that call emits the frames instead.
func (b *Buffer) Feed(chunk []byte) {
	b.mu.Lock()
	b.data = append(b.data, chunk...)
	if b.parsing {
		b.mu.Unlock()
		return
	}
	b.parsing = true
	for {
		advance, frame, err := b.split(b.data)
		if advance <= 0 {
			break
		}
		if advance > len(b.data) {
			advance = len(b.data)
		}
		var out protocol.Frame
		var junk []byte
		if err != nil {
			junk = append([]byte(nil), b.data[:advance]...)
		} else if frame != nil {
			out = protocol.Frame(frame).Clone()
		}
		b.data = b.data[advance:]
		if len(b.data) == 0 {
			b.data = nil
		}
		onFrame, onJunk := b.onFrame, b.onJunk
		b.mu.Unlock()

		if junk != nil {
			log.Debugf("serial buffer junk: % x (%v)", junk, err)
			if onJunk != nil {
				onJunk(junk)
			}
		} else if out != nil && onFrame != nil {
			onFrame(out)
		}

		b.mu.Lock()
	}
	b.parsing = false
	b.mu.Unlock()
}

// Clear discards any partially accumulated data.
func (b *Buffer) Clear() {
	b.mu.Lock()
	b.data = nil
	b.mu.Unlock()
}

// Len returns the number of buffered bytes not yet part of a frame.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}
