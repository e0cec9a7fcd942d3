package irc

import (
	"strings"

	"github.com/ergochat/irc-go/ircmsg"
)

// Message is one protocol line split into its parts. Params never contains
// the trailing free-text part; that lives in Message with HasMessage set.
type Message struct {
	// Raw prefix without the leading ':'.
	Prefix string

	// Set when the prefix has the nick!ident@host form.
	Nick  string
	Ident string

	// Hostname of a user prefix, or the whole prefix when it is a bare
	// server name.
	Host string

	Command    string
	Params     []string
	Message    string
	HasMessage bool
}

// ParseMessage splits a line (terminator already stripped) into a Message.
// It never fails loudly: the boolean is false only when no command token
// can be found, and the caller is expected to drop such lines.
func ParseMessage(line string) (*Message, bool) {
	msg := &Message{}
	rest := line

	if strings.HasPrefix(rest, ":") {
		end := strings.IndexByte(rest, ' ')
		if end < 0 {
			return nil, false
		}
		msg.Prefix = rest[1:end]
		rest = rest[end+1:]

		nuh, err := ircmsg.ParseNUH(msg.Prefix)
		if err == nil && nuh.User != "" && nuh.Host != "" {
			msg.Nick = nuh.Name
			msg.Ident = nuh.User
			msg.Host = nuh.Host
		} else {
			msg.Host = msg.Prefix
		}
	}

	paramStr := rest
	if i := strings.Index(rest, " :"); i >= 0 {
		paramStr = rest[:i]
		msg.Message = rest[i+2:]
		msg.HasMessage = true
	}

	tokens := splitTokens(paramStr)
	if len(tokens) == 0 {
		return nil, false
	}

	msg.Command = strings.ToUpper(tokens[0])
	msg.Params = tokens[1:]

	return msg, true
}

// splitTokens splits on single spaces and drops the empty tokens produced
// by doubled or trailing spaces.
func splitTokens(s string) []string {
	parts := strings.Split(s, " ")
	tokens := parts[:0]
	for _, p := range parts {
		if p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}

// IsNumeric reports whether the command is a numeric reply code.
func (m *Message) IsNumeric() bool {
	return isNumeric(m.Command)
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// String reassembles the line without the terminator.
func (m *Message) String() string {
	var b strings.Builder

	if m.Prefix != "" {
		b.WriteString(":")
		b.WriteString(m.Prefix)
		b.WriteString(" ")
	}

	b.WriteString(m.Command)
	for _, p := range m.Params {
		b.WriteString(" ")
		b.WriteString(p)
	}

	if m.HasMessage {
		b.WriteString(" :")
		b.WriteString(m.Message)
	}

	return b.String()
}
