package irc

import (
	"bufio"
	"io"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/dalnet/ircbot/internal/config"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// newTestConnection returns a connection with no transport. Lines fed to
// it go through the full pipeline; anything sent fails with ErrNoConnection.
func newTestConnection(t *testing.T, cfg config.ServerConfig) (*Bot, *Connection) {
	t.Helper()
	if cfg.Name == "" {
		cfg.Name = "test"
	}
	cfg.SendRate = -1

	b := New("bot", quietLogger())
	c, err := b.AddConnection(cfg, nil)
	require.NoError(t, err)
	return b, c
}

// pipeConnection attaches an in-memory transport and returns the lines the
// connection writes to it.
func pipeConnection(t *testing.T, c *Connection) <-chan string {
	t.Helper()

	server, client := net.Pipe()
	c.attach(client)

	sent := make(chan string, 64)
	go func() {
		defer close(sent)
		scanner := bufio.NewScanner(server)
		for scanner.Scan() {
			sent <- scanner.Text()
		}
	}()

	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	return sent
}

func expectSent(t *testing.T, sent <-chan string, want string) {
	t.Helper()
	select {
	case line := <-sent:
		require.Equal(t, want, line)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func feed(c *Connection, lines ...string) {
	for _, line := range lines {
		c.handleLine(line)
	}
}

func memberNicks(ch *Channel) []string {
	var nicks []string
	for _, m := range ch.Members() {
		nicks = append(nicks, m.Nick)
	}
	return nicks
}
