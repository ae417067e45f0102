/*
Package serialbuffer turns an arbitrarily chunked byte stream into
complete protocol frames.

A Buffer accumulates the data passed to Feed and repeatedly applies a
SplitFunc to the front of it. The SplitFunc decides the framing rule:
a delimiter, a pair of bracket markers, or a vendor specific header
followed by an implied length. Vendor drivers provide their own
SplitFunc when the generic ones don't fit.

Frames are never emitted from partial data. Garbage in front of a
frame is discarded by the SplitFunc, which resynchronizes on the next
recognizable header. Nothing in this package returns an error to the
caller: unrecognized data is dropped (optionally reported to a junk
handler) and the buffer waits for more input.
*/
package serialbuffer
