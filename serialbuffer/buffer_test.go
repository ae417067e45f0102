package serialbuffer

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"displayctl/protocol"
)

type collector struct {
	mu     sync.Mutex
	frames []string
	junk   [][]byte
}

func (c *collector) frame(f protocol.Frame) {
	c.mu.Lock()
	c.frames = append(c.frames, string(f))
	c.mu.Unlock()
}

func (c *collector) addJunk(b []byte) {
	c.mu.Lock()
	c.junk = append(c.junk, b)
	c.mu.Unlock()
}

func (c *collector) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.frames...)
}

func newCollecting(split SplitFunc) (*Buffer, *collector) {
	c := &collector{}
	b := New(split)
	b.SetFrameHandler(c.frame)
	b.SetJunkHandler(c.addJunk)
	return b, c
}

func TestBoundedNestedFixtures(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"garbage around a frame", "ghfghf(CON500)fghfg", []string{"(CON500)"}},
		{"two frames", "(CON500)(CON500)", []string{"(CON500)", "(CON500)"}},
		{"escaped markers", `(CON\(\)500)`, []string{`(CON\(\)500)`}},
		{"nested", "(PWR!001 (Power On))", []string{"(PWR!001 (Power On))"}},
		{"unterminated", "(CON5", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b, c := newCollecting(BoundedNested('(', ')', '\\'))
			b.Feed([]byte(tc.input))
			assert.Equal(t, tc.want, c.all())
		})
	}
}

func TestFeedByteByByteIsIdempotent(t *testing.T) {
	splits := map[string]struct {
		split SplitFunc
		input string
	}{
		"delimiter": {Delimiter('\r'), "POWR1   \rOK\r"},
		"bounded":   {Bounded(0x02, 0x03), "\x02PON\x03\x02QPW\x03"},
		"nested":    {BoundedNested('(', ')', '\\'), `xx(CON\(\)500)(PWR1)`},
	}
	for name, tc := range splits {
		t.Run(name, func(t *testing.T) {
			whole, wc := newCollecting(tc.split)
			whole.Feed([]byte(tc.input))

			bytewise, bc := newCollecting(tc.split)
			for ii := 0; ii < len(tc.input); ii++ {
				bytewise.Feed([]byte{tc.input[ii]})
			}
			require.NotEmpty(t, wc.all())
			assert.Equal(t, wc.all(), bc.all())
		})
	}
}

func TestResynchronization(t *testing.T) {
	b, c := newCollecting(Bounded(0x02, 0x03))
	b.Feed([]byte("garbage\x03\x03zz"))
	assert.Empty(t, c.all())
	b.Feed([]byte("\x02PON\x03"))
	assert.Equal(t, []string{"\x02PON\x03"}, c.all())
	assert.Equal(t, 0, b.Len())
}

func TestBoundedRestartsOnNewStart(t *testing.T) {
	b, c := newCollecting(Bounded(0x02, 0x03))
	b.Feed([]byte("\x02PO\x02QPW\x03"))
	assert.Equal(t, []string{"\x02QPW\x03"}, c.all())
}

func TestDelimiterSkipsEmptyFrames(t *testing.T) {
	b, c := newCollecting(Delimiter('\r', '\n'))
	b.Feed([]byte("OK\r\nERR\r\n\r\n1\r"))
	assert.Equal(t, []string{"OK", "ERR", "1"}, c.all())
}

func TestNoFrameFromPartialData(t *testing.T) {
	b, c := newCollecting(Delimiter('\r'))
	b.Feed([]byte("PARTIAL"))
	assert.Empty(t, c.all())
	assert.Equal(t, 7, b.Len())
	b.Clear()
	assert.Equal(t, 0, b.Len())
	b.Feed([]byte("\r"))
	assert.Empty(t, c.all(), "cleared data must not form a frame")
}

func TestJunkHandler(t *testing.T) {
	split := func(data []byte) (int, []byte, error) {
		if len(data) == 0 {
			return 0, nil, nil
		}
		if data[0] == 'x' {
			return 1, nil, ErrJunk
		}
		return 1, data[:1], nil
	}
	b, c := newCollecting(split)
	b.Feed([]byte("axb"))
	assert.Equal(t, []string{"a", "b"}, c.all())
	assert.Equal(t, [][]byte{[]byte("x")}, c.junk)
}

func TestReentrantFeed(t *testing.T) {
	b := New(Delimiter('\r'))
	var frames []string
	b.SetFrameHandler(func(f protocol.Frame) {
		frames = append(frames, string(f))
		if string(f) == "first" {
			// Must not recurse, the outer call picks it up
			b.Feed([]byte("second\r"))
			assert.Equal(t, []string{"first"}, frames)
		}
	})
	b.Feed([]byte("first\r"))
	assert.Equal(t, []string{"first", "second"}, frames)
}

func TestConcurrentFeed(t *testing.T) {
	b, c := newCollecting(Delimiter('\n'))
	const writers = 8
	const perWriter = 100
	var wg sync.WaitGroup
	for ii := 0; ii < writers; ii++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for jj := 0; jj < perWriter; jj++ {
				// Whole frames per call so they can't interleave
				b.Feed([]byte("frame\n"))
			}
		}()
	}
	wg.Wait()
	frames := c.all()
	assert.Len(t, frames, writers*perWriter)
	for _, f := range frames {
		assert.Equal(t, "frame", f)
	}
}

// lengthFrame matches 'S' len payload sum, sum being the byte sum of
// the payload.
func lengthFrame(data []byte) int {
	if data[0] != 'S' {
		return NoMatch
	}
	if len(data) < 2 {
		return NeedMore
	}
	total := 3 + int(data[1])
	if len(data) < total {
		return NeedMore
	}
	var sum byte
	for _, b := range data[2 : total-1] {
		sum += b
	}
	if sum != data[total-1] {
		return NoMatch
	}
	return total
}

func makeLengthFrame(payload string) []byte {
	var sum byte
	for _, b := range []byte(payload) {
		sum += b
	}
	f := append([]byte{'S', byte(len(payload))}, payload...)
	return append(f, sum)
}

func TestResync(t *testing.T) {
	good := makeLengthFrame("hi")
	bad := makeLengthFrame("no")
	bad[len(bad)-1]++
	tests := []struct {
		name  string
		noise []byte
	}{
		{"garbage", []byte("xyz")},
		{"large length", []byte{'S', 0xf0, 'a'}},
		{"bad checksum", bad},
		{"start marker only", []byte{'S'}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for _, chunk := range []int{1, 2, 64} {
				b, c := newCollecting(Resync(lengthFrame))
				stream := append(append([]byte(nil), tc.noise...), good...)
				stream = append(stream, good...)
				for ii := 0; ii < len(stream); ii += chunk {
					b.Feed(stream[ii:min(ii+chunk, len(stream))])
				}
				assert.Equal(t, []string{string(good), string(good)}, c.all(), "chunk %d", chunk)
				assert.Equal(t, 0, b.Len())
			}
		})
	}
}

func TestResyncWaitsForPartialFrame(t *testing.T) {
	b, c := newCollecting(Resync(lengthFrame))
	good := makeLengthFrame("hello")
	b.Feed(good[:4])
	assert.Empty(t, c.all())
	assert.Equal(t, 4, b.Len())
	b.Feed(good[4:])
	assert.Equal(t, []string{string(good)}, c.all())
}

func TestUnterminatedFramesAreBounded(t *testing.T) {
	long := bytes.Repeat([]byte{'x'}, MaxFrameSize+1)
	tests := []struct {
		name  string
		split SplitFunc
		input []byte
		after string
		want  string
	}{
		{"delimiter", Delimiter('\r'), long, "OK\r", "OK"},
		{"bounded", Bounded(0x02, 0x03), append([]byte{0x02}, long...), "\x02OK\x03", "\x02OK\x03"},
		{"nested", BoundedNested('(', ')', '\\'), append([]byte{'('}, long...), "(OK)", "(OK)"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b, c := newCollecting(tc.split)
			b.Feed(tc.input)
			assert.Equal(t, 0, b.Len())
			c.mu.Lock()
			require.NotEmpty(t, c.junk)
			c.mu.Unlock()

			b.Feed([]byte(tc.after))
			assert.Equal(t, []string{tc.want}, c.all())
		})
	}
}

func TestNestedOverflowKeepsLaterStart(t *testing.T) {
	input := append([]byte{'('}, bytes.Repeat([]byte{'x'}, MaxFrameSize)...)
	input = append(input, "(OK"...)
	advance, frame, err := BoundedNested('(', ')', '\\')(input)
	assert.True(t, errors.Is(err, ErrFrameTooLong))
	assert.Nil(t, frame)
	assert.Equal(t, MaxFrameSize+1, advance)
}
