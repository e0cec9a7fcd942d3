package status

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dalnet/ircbot/internal/config"
	"github.com/dalnet/ircbot/internal/irc"
)

func newTestServer(t *testing.T) (*irc.Bot, *httptest.Server) {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	bot := irc.New("bot", logger)
	_, err := bot.AddConnection(config.ServerConfig{Name: "libera", Host: "irc.libera.example", Port: 6697}, nil)
	require.NoError(t, err)

	srv := New("127.0.0.1:0", bot, logger.WithField("component", "status"))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return bot, ts
}

func TestServers(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/servers")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var servers []ServerStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&servers))
	require.Len(t, servers, 1)
	assert.Equal(t, ServerStatus{
		Name:    "libera",
		Address: "irc.libera.example:6697",
		Nick:    "bot",
	}, servers[0])
}

func TestChannels(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/servers/libera/channels")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var channels []ChannelStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&channels))
	assert.Empty(t, channels)

	resp, err = http.Get(ts.URL + "/servers/nowhere/channels")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetrics(t *testing.T) {
	bot, ts := newTestServer(t)

	// Touch a labelled metric so the registry has something to report.
	_ = bot.Say("libera", "#chan", "hi")
	bot.Emit(&irc.Event{Command: "PRIVMSG"})

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "ircbot_events_dispatched_total")
}

func TestMethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/servers", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
