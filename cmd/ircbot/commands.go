package main

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dalnet/ircbot/internal/irc"
)

// registerCommands installs the owner commands and the CTCP VERSION reply.
func registerCommands(bot *irc.Bot, log *logrus.Entry) {
	bot.On("PRIVMSG", "owner-commands", func(e *irc.Event) error {
		if !e.IsDirect() || !strings.HasPrefix(e.Message, "!") {
			return nil
		}
		if owner := e.Connection().Owner(); owner == "" || e.Nick != owner {
			return nil
		}
		return handleCommand(e, log)
	})

	bot.On("PRIVMSG", "ctcp-version", func(e *irc.Event) error {
		if !e.IsDirect() || e.Message != "\x01VERSION\x01" {
			return nil
		}
		reply := fmt.Sprintf("ircbot %s (built %s, commit %s)", version, buildDate, gitCommit)
		return e.ReplyNotice("\x01VERSION " + reply + "\x01")
	})
}

// handleCommand processes a command from the connection's owner
func handleCommand(e *irc.Event, log *logrus.Entry) error {
	fields := strings.Fields(e.Message)
	if len(fields) == 0 {
		return nil
	}
	cmd := strings.ToLower(fields[0])
	args := fields[1:]
	c := e.Connection()

	log.WithFields(logrus.Fields{"server": e.Server, "nick": e.Nick}).Infof("command %s", e.Message)

	switch cmd {
	case "!help":
		return replyLines(e,
			"Available commands:",
			"!channels - lists the channels I am tracking and their member counts",
			"!join <channel> - joins a channel",
			"!part <channel> - leaves a channel",
			"!nick <nick> - changes my nick on this network",
			"!resync - refreshes every channel's member list",
			"!version - displays bot version information",
		)
	case "!version":
		return replyLines(e,
			fmt.Sprintf("ircbot version %s", version),
			fmt.Sprintf("Built: %s", buildDate),
			fmt.Sprintf("Commit: %s", gitCommit),
		)
	case "!channels":
		channels := c.State().Channels()
		if len(channels) == 0 {
			return e.Reply("Not in any channels")
		}
		lines := make([]string, 0, len(channels))
		for _, ch := range channels {
			lines = append(lines, fmt.Sprintf("%s (%d members)", ch.Name, ch.Len()))
		}
		return replyLines(e, lines...)
	case "!join":
		if len(args) < 1 {
			return e.Reply("Usage: !join <channel>")
		}
		return c.Join(args[0])
	case "!part":
		if len(args) < 1 {
			return e.Reply("Usage: !part <channel>")
		}
		return c.Part(args[0])
	case "!nick":
		if len(args) < 1 {
			return e.Reply("Usage: !nick <nick>")
		}
		return c.SetNick(args[0])
	case "!resync":
		return c.Resync()
	}
	return nil
}

func replyLines(e *irc.Event, lines ...string) error {
	for _, line := range lines {
		if err := e.Reply(line); err != nil {
			return err
		}
	}
	return nil
}
