package irc

import (
	"strings"
	"time"
)

// An Event is a classified inbound message. It is built and dispatched on
// the reading goroutine of its connection and should not be retained by
// listeners past their return.
type Event struct {
	// Name of the connection the line arrived on.
	Server string
	Time   time.Time

	// Sender. Nick and Ident are empty for server prefixes.
	Prefix string
	Nick   string
	Ident  string
	Host   string

	Command    string
	Params     []string
	Message    string
	HasMessage bool

	// Message split on spaces.
	Words []string

	// ChannelName is the channel the line refers to, if any. Channel is the
	// tracked channel by that name, or an ephemeral one for direct
	// messages, or nil.
	ChannelName string
	Channel     *Channel

	// Channels is set for multi-channel commands (NICK, QUIT): every channel
	// the sender occupied when the event was classified.
	MultiChannel bool
	Channels     []*Channel

	// Command specific fields.
	TargetUser  string
	NewNick     string
	ModeChanges string
	TargetUsers []string

	conn *Connection
}

func newEvent(msg *Message) *Event {
	e := &Event{
		Time:       time.Now(),
		Prefix:     msg.Prefix,
		Nick:       msg.Nick,
		Ident:      msg.Ident,
		Host:       msg.Host,
		Command:    msg.Command,
		Params:     msg.Params,
		Message:    msg.Message,
		HasMessage: msg.HasMessage,
		Words:      []string{},
	}
	if msg.HasMessage {
		e.Words = strings.Split(msg.Message, " ")
	}
	return e
}

// Classify turns a parsed message into an event and resolves its channel
// references against the connection's state.
func Classify(msg *Message, state *State) *Event {
	e := newEvent(msg)

	if msg.IsNumeric() {
		ClassifyNumeric(e)
	} else {
		classifyCommand(e)
	}

	switch {
	case e.MultiChannel:
		e.Channels = state.ChannelsWith(e.Nick)
	case e.ChannelName != "":
		e.Channel = state.Channel(e.ChannelName)
	case e.Command == "PRIVMSG" || e.Command == "NOTICE":
		e.Channel = newEphemeralChannel(e.Sender())
	}

	return e
}

func classifyCommand(e *Event) {
	switch e.Command {
	case "PRIVMSG", "NOTICE":
		if target := param(e.Params, 0); IsChannelName(target) {
			e.ChannelName = target
		}
	case "JOIN", "PART", "TOPIC":
		e.ChannelName = e.firstParamOrMessage()
	case "KICK":
		e.ChannelName = param(e.Params, 0)
		e.TargetUser = param(e.Params, 1)
	case "NICK":
		e.NewNick = e.firstParamOrMessage()
		e.MultiChannel = true
	case "MODE":
		e.ChannelName = param(e.Params, 0)
		e.ModeChanges = param(e.Params, 1)
		if e.ModeChanges == "" && e.HasMessage {
			e.ModeChanges = e.Message
		}
		if len(e.Params) > 2 {
			e.TargetUsers = e.Params[2:]
		}
	case "QUIT":
		e.MultiChannel = true
	}
}

// firstParamOrMessage covers servers that send the only argument with the
// trailing marker, e.g. "JOIN :#chan" or "NICK :newnick".
func (e *Event) firstParamOrMessage() string {
	if len(e.Params) > 0 {
		return e.Params[0]
	}
	return e.Message
}

// Sender returns the sender's nick, or the server host for server lines.
func (e *Event) Sender() string {
	if e.Nick != "" {
		return e.Nick
	}
	return e.Host
}

// IsDirect reports whether the event is a one-to-one message.
func (e *Event) IsDirect() bool {
	return e.Channel != nil && e.Channel.Ephemeral
}

// ReplyTarget is where a reply to this event should go.
func (e *Event) ReplyTarget() string {
	if e.Channel != nil {
		return e.Channel.Name
	}
	if e.ChannelName != "" {
		return e.ChannelName
	}
	return e.Sender()
}

// Reply sends a PRIVMSG to the event's channel or, for direct messages,
// back to the sender.
func (e *Event) Reply(msg string) error {
	if e.conn == nil {
		return ErrNoConnection
	}
	return e.conn.Privmsg(e.ReplyTarget(), msg)
}

// ReplyNotice sends a NOTICE to the sender.
func (e *Event) ReplyNotice(msg string) error {
	if e.conn == nil {
		return ErrNoConnection
	}
	return e.conn.Notice(e.Sender(), msg)
}

// Act sends a CTCP ACTION to the event's reply target.
func (e *Event) Act(msg string) error {
	if e.conn == nil {
		return ErrNoConnection
	}
	return e.conn.Privmsg(e.ReplyTarget(), "\x01ACTION "+msg+"\x01")
}

// Connection returns the connection the event arrived on.
func (e *Event) Connection() *Connection {
	return e.conn
}
