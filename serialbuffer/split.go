package serialbuffer

import (
	"bytes"
	"errors"
)

// MaxFrameSize bounds the frames of Delimiter, Bounded and
// BoundedNested. Unterminated data growing past it is reported with
// ErrFrameTooLong.
const MaxFrameSize = 1024

// ErrFrameTooLong reports data dropped because no terminator arrived
// within MaxFrameSize bytes.
var ErrFrameTooLong = errors.New("frame too long")

// Delimiter returns a SplitFunc emitting everything before any of the
// given delimiters, exclusive. Empty frames, like the one between the
// \r and \n of a CRLF pair, are skipped.
func Delimiter(delims ...byte) SplitFunc {
	isDelim := func(c byte) bool {
		for _, d := range delims {
			if c == d {
				return true
			}
		}
		return false
	}
	return func(data []byte) (int, []byte, error) {
		for ii, c := range data {
			if !isDelim(c) {
				continue
			}
			if ii == 0 {
				return 1, nil, nil
			}
			return ii + 1, data[:ii], nil
		}
		if len(data) > MaxFrameSize {
			return len(data), nil, ErrFrameTooLong
		}
		return 0, nil, nil
	}
}

// discardUntil drops the bytes before the first start marker. The
// second return value is false when data doesn't begin with start.
func discardUntil(data []byte, start byte) (int, bool) {
	s := bytes.IndexByte(data, start)
	switch {
	case s < 0:
		return len(data), false
	case s > 0:
		return s, false
	}
	return 0, true
}

// Bounded returns a SplitFunc for frames enclosed by a start and an
// end marker, like STX/ETX. Frames include both markers. A start
// marker seen before the end one drops the unterminated frame.
func Bounded(start, end byte) SplitFunc {
	return func(data []byte) (int, []byte, error) {
		if n, ok := discardUntil(data, start); !ok {
			return n, nil, nil
		}
		for ii := 1; ii < len(data); ii++ {
			switch data[ii] {
			case end:
				return ii + 1, data[:ii+1], nil
			case start:
				return ii, nil, nil
			}
		}
		if len(data) > MaxFrameSize {
			return len(data), nil, ErrFrameTooLong
		}
		return 0, nil, nil
	}
}

// BoundedNested returns a SplitFunc for frames enclosed by start and
// end markers which may nest, with escape making the following byte
// literal. A frame ends when the depth of unescaped markers returns
// to zero and includes both outer markers.
func BoundedNested(start, end, escape byte) SplitFunc {
	return func(data []byte) (int, []byte, error) {
		if n, ok := discardUntil(data, start); !ok {
			return n, nil, nil
		}
		depth := 0
		for ii := 0; ii < len(data); ii++ {
			switch data[ii] {
			case escape:
				ii++
			case start:
				depth++
			case end:
				depth--
				if depth == 0 {
					return ii + 1, data[:ii+1], nil
				}
			}
		}
		if len(data) > MaxFrameSize {
			// Drop the unterminated frame, a later start marker
			// may begin a good one.
			if next := bytes.IndexByte(data[1:], start); next >= 0 {
				return next + 1, nil, ErrFrameTooLong
			}
			return len(data), nil, ErrFrameTooLong
		}
		return 0, nil, nil
	}
}

// Results of a MatchFunc besides a frame length.
const (
	NeedMore = 0
	NoMatch  = -1
)

// MatchFunc returns the length of the complete and valid frame at the
// start of data, NeedMore when data may still become one, or NoMatch.
// A valid frame is one whose checksum has been checked.
type MatchFunc func(data []byte) int

// Resync returns a SplitFunc for binary frames recognized by match,
// like header plus length protocols. Data is dropped one byte at a
// time until a frame matches. A partial candidate is abandoned as soon
// as a complete frame starts further on, so noise that looks like a
// header with a large length doesn't hold back the frames after it.
func Resync(match MatchFunc) SplitFunc {
	return func(data []byte) (int, []byte, error) {
		pending := -1
		for ii := 0; ii < len(data); ii++ {
			n := match(data[ii:])
			switch {
			case n > 0 && ii > 0:
				return ii, nil, nil
			case n > 0:
				return n, data[:n], nil
			case n == NeedMore && pending < 0:
				pending = ii
			}
		}
		if pending < 0 {
			return len(data), nil, nil
		}
		return pending, nil, nil
	}
}
