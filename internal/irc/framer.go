package irc

import "bytes"

// lineTerminator ends every protocol line on the wire.
var lineTerminator = []byte("\r\n")

// Framer accumulates raw bytes from one connection and hands out complete
// protocol lines in arrival order. Anything after the last terminator is
// kept for the next Feed.
type Framer struct {
	buf []byte
}

// Feed appends a chunk read from the transport.
func (f *Framer) Feed(p []byte) {
	f.buf = append(f.buf, p...)
}

// NextLine returns the first complete line without its terminator. The
// second return value is false when no terminator has been seen yet.
func (f *Framer) NextLine() (string, bool) {
	i := bytes.Index(f.buf, lineTerminator)
	if i < 0 {
		return "", false
	}

	line := string(f.buf[:i])
	rest := f.buf[i+len(lineTerminator):]

	// Compact so a long-lived connection does not pin its largest burst.
	if len(rest) == 0 {
		f.buf = f.buf[:0]
	} else {
		f.buf = append(f.buf[:0], rest...)
	}

	return line, true
}

// Buffered reports how many bytes of an incomplete line are held.
func (f *Framer) Buffered() int {
	return len(f.buf)
}

// Reset drops any partial line, used when the transport is replaced.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
}
