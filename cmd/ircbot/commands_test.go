package main

import (
	"context"
	"io"
	"net"
	"strconv"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/dalnet/ircbot/internal/config"
	"github.com/dalnet/ircbot/internal/irc"
	"github.com/dalnet/ircbot/internal/irctest"
)

func TestOwnerCommands(t *testing.T) {
	interaction := irctest.Interaction{
		Strict: true,
		Lines: []irctest.InteractionLine{
			{Client: "NICK bot"},
			{Client: "USER bot 0 * :bot"},
			{Server: ":irc.example.net 001 bot :Welcome"},
			{Server: ":alice!a@h PRIVMSG bot :!version"},
			{Client: "PRIVMSG alice :ircbot version dev"},
			{Client: "PRIVMSG alice :Built: unknown"},
			{Client: "PRIVMSG alice :Commit: unknown"},
			{Server: ":mallory!m@h PRIVMSG bot :!join #evil"},
			{Server: ":alice!a@h PRIVMSG #chan :!join #evil"},
			{Server: ":alice!a@h PRIVMSG bot :!join #ok"},
			{Client: "JOIN #ok"},
			{Server: ":alice!a@h PRIVMSG bot :!channels"},
			{Client: "PRIVMSG alice :Not in any channels"},
			{Server: ":bob!b@h PRIVMSG bot :\x01VERSION\x01"},
			{Client: "NOTICE bob :\x01VERSION ircbot dev (built unknown, commit unknown)\x01"},
		},
	}

	addr, err := interaction.Listen()
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	bot := irc.New("bot", logger)
	_, err = bot.AddConnection(config.ServerConfig{
		Name:     "fake",
		Host:     host,
		Port:     port,
		Owner:    "alice",
		SendRate: -1,
	}, nil)
	require.NoError(t, err)
	registerCommands(bot, logger.WithField("component", "commands"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, bot.Connect(ctx, "fake"))

	interaction.Wait()
	if f := interaction.Failure(); f != nil {
		t.Fatalf("%v (log: %q)", f, interaction.Log())
	}
}
