// Package irctest provides a scripted fake server for connection tests.
package irctest

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

const stepTimeout = 2 * time.Second

// An Interaction is a scripted server that accepts one client and plays
// its lines in order. The connection is closed when the script ends.
type Interaction struct {
	wg sync.WaitGroup
	mu sync.Mutex

	// Strict fails on the first unexpected client line. Otherwise lines
	// that don't match are skipped until one does.
	Strict bool
	Lines  []InteractionLine

	log     []string
	failure *InteractionFailure
}

// InteractionLine is one step of the script. Exactly one field should be set.
type InteractionLine struct {
	// Client is a line expected from the client. A trailing '*' matches
	// any line with that prefix.
	Client string
	// Server is a line sent to the client. CRLF is appended.
	Server string
	// Raw is written to the client as-is, for partial lines.
	Raw string
	// Pause delays the next step.
	Pause time.Duration
	// Callback runs in the server goroutine.
	Callback func() error
}

// InteractionFailure describes where the script broke.
type InteractionFailure struct {
	Index  int
	Result string
	NetErr error
	CBErr  error
}

func (f *InteractionFailure) Error() string {
	switch {
	case f.NetErr != nil:
		return fmt.Sprintf("step %d: network: %v", f.Index, f.NetErr)
	case f.CBErr != nil:
		return fmt.Sprintf("step %d: callback: %v", f.Index, f.CBErr)
	default:
		return fmt.Sprintf("step %d: unexpected line %q", f.Index, f.Result)
	}
}

// Listen starts the server on a loopback port and returns its address.
func (interaction *Interaction) Listen() (addr string, err error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}

	lines := make([]InteractionLine, len(interaction.Lines))
	copy(lines, interaction.Lines)

	interaction.wg.Add(1)
	go func() {
		defer interaction.wg.Done()
		defer listener.Close()

		conn, err := listener.Accept()
		if err != nil {
			interaction.fail(&InteractionFailure{Index: -1, NetErr: err})
			return
		}
		defer conn.Close()

		interaction.play(conn, lines)
	}()

	return listener.Addr().String(), nil
}

func (interaction *Interaction) play(conn net.Conn, lines []InteractionLine) {
	reader := bufio.NewReader(conn)

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		switch {
		case line.Server != "" || line.Raw != "":
			data := line.Raw
			if line.Server != "" {
				data = line.Server + "\r\n"
			}

			_ = conn.SetWriteDeadline(time.Now().Add(stepTimeout))
			if _, err := conn.Write([]byte(data)); err != nil {
				interaction.fail(&InteractionFailure{Index: i, NetErr: err})
				return
			}
		case line.Client != "":
			_ = conn.SetReadDeadline(time.Now().Add(stepTimeout))
			input, err := reader.ReadString('\n')
			if err != nil {
				interaction.fail(&InteractionFailure{Index: i, NetErr: err})
				return
			}
			input = strings.TrimRight(input, "\r\n")

			interaction.mu.Lock()
			interaction.log = append(interaction.log, input)
			interaction.mu.Unlock()

			if !matches(line.Client, input) {
				if !interaction.Strict {
					i--
					continue
				}

				interaction.fail(&InteractionFailure{Index: i, Result: input})
				return
			}
		case line.Pause > 0:
			time.Sleep(line.Pause)
		case line.Callback != nil:
			if err := line.Callback(); err != nil {
				interaction.fail(&InteractionFailure{Index: i, CBErr: err})
				return
			}
		}
	}
}

func matches(pattern, input string) bool {
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(input, pattern[:len(pattern)-1])
	}
	return pattern == input
}

func (interaction *Interaction) fail(f *InteractionFailure) {
	interaction.mu.Lock()
	interaction.failure = f
	interaction.mu.Unlock()
}

// Wait blocks until the script has finished or failed.
func (interaction *Interaction) Wait() {
	interaction.wg.Wait()
}

// Failure returns the failure, if any. Call it after Wait.
func (interaction *Interaction) Failure() *InteractionFailure {
	interaction.mu.Lock()
	defer interaction.mu.Unlock()
	return interaction.failure
}

// Log returns every line received from the client so far.
func (interaction *Interaction) Log() []string {
	interaction.mu.Lock()
	defer interaction.mu.Unlock()

	log := make([]string, len(interaction.log))
	copy(log, interaction.log)
	return log
}
