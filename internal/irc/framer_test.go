package irc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func drain(f *Framer) []string {
	var lines []string
	for {
		line, ok := f.NextLine()
		if !ok {
			return lines
		}
		lines = append(lines, line)
	}
}

func TestFramerChunkBoundaries(t *testing.T) {
	stream := ":a!b@c PRIVMSG #x :hello there\r\nPING :123\r\n:srv 001 bot :Welcome\r\n"
	want := []string{
		":a!b@c PRIVMSG #x :hello there",
		"PING :123",
		":srv 001 bot :Welcome",
	}

	for size := 1; size <= len(stream); size++ {
		var f Framer
		var got []string
		for i := 0; i < len(stream); i += size {
			end := i + size
			if end > len(stream) {
				end = len(stream)
			}
			f.Feed([]byte(stream[i:end]))
			got = append(got, drain(&f)...)
		}

		assert.Equal(t, want, got, "chunk size %d", size)
		assert.Zero(t, f.Buffered(), "chunk size %d", size)
	}
}

func TestFramerSplitTerminator(t *testing.T) {
	var f Framer

	f.Feed([]byte("PING :abc\r"))
	_, ok := f.NextLine()
	assert.False(t, ok)
	assert.Equal(t, 10, f.Buffered())

	f.Feed([]byte("\nPART #x"))
	line, ok := f.NextLine()
	assert.True(t, ok)
	assert.Equal(t, "PING :abc", line)

	_, ok = f.NextLine()
	assert.False(t, ok)
	assert.Equal(t, len("PART #x"), f.Buffered())
}

func TestFramerEmpty(t *testing.T) {
	var f Framer

	_, ok := f.NextLine()
	assert.False(t, ok)

	f.Feed(nil)
	_, ok = f.NextLine()
	assert.False(t, ok)
	assert.Zero(t, f.Buffered())
}

func TestFramerBareLFIsNotTerminator(t *testing.T) {
	var f Framer
	f.Feed([]byte("one\ntwo\r\n"))

	assert.Equal(t, []string{"one\ntwo"}, drain(&f))
}

func TestFramerEmptyLines(t *testing.T) {
	var f Framer
	f.Feed([]byte("\r\n\r\nPING :x\r\n"))

	assert.Equal(t, []string{"", "", "PING :x"}, drain(&f))
}

func TestFramerReset(t *testing.T) {
	var f Framer
	f.Feed([]byte("partial line"))
	f.Reset()
	f.Feed([]byte("PING :y\r\n"))

	assert.Equal(t, []string{"PING :y"}, drain(&f))
}
