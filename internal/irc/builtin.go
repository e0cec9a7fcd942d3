package irc

import (
	"regexp"
)

var ctcpPing = regexp.MustCompile("\x01PING .+\x01")

// installStateTracking registers the listeners that keep each connection's
// channel model current and answer keepalives. They are installed before
// any user listener and so always run first.
func installStateTracking(d *Dispatcher) {
	d.addBuiltin("PING", "ping-core", onPing)
	d.addBuiltin("PRIVMSG", "notice-ping-core", onCTCPPing)
	d.addBuiltin("001", "ready-core", onWelcome)
	d.addBuiltin("JOIN", "join-core", onJoin)
	d.addBuiltin("PART", "part-core", onPart)
	d.addBuiltin("KICK", "kick-core", onKick)
	d.addBuiltin("QUIT", "quit-core", onQuit)
	d.addBuiltin("NICK", "nick-core", onNick)
	d.addBuiltin("MODE", "mode-core", onMode)
	d.addBuiltin("353", "names-core", onNames)
	d.addBuiltin("433", "nick-in-use-core", onNickInUse)
	for _, code := range cannotJoinNumerics {
		d.addBuiltin(code, "cannot-join-core", onCannotJoin)
	}
}

func onPing(e *Event) error {
	token := e.Message
	if !e.HasMessage {
		token = param(e.Params, 0)
	}
	return e.conn.Pong(token)
}

func onCTCPPing(e *Event) error {
	if !e.IsDirect() || !ctcpPing.MatchString(e.Message) {
		return nil
	}
	return e.ReplyNotice(e.Message)
}

// onWelcome identifies to the nick service and then hands control to the
// connection's ready callback.
func onWelcome(e *Event) error {
	c := e.conn
	if nick := param(e.Params, 0); nick != "" {
		c.setNick(nick)
	}

	if c.cfg.NickServ != "" && c.cfg.Password != "" {
		if err := c.Privmsg(c.cfg.NickServ, "IDENTIFY "+c.Nick()+" "+c.cfg.Password); err != nil {
			return err
		}
	}

	if c.onReady != nil {
		return c.onReady(e)
	}
	return nil
}

func onJoin(e *Event) error {
	if e.ChannelName == "" {
		return nil
	}

	ch := e.conn.state.ensure(e.ChannelName)
	ch.put(Member{Nick: e.Nick})
	e.Channel = ch

	e.conn.logger().Debugf(">> JOIN [%s] %s", ch.Name, e.Nick)
	return nil
}

func onPart(e *Event) error {
	c := e.conn
	if e.Nick == c.Nick() {
		c.state.remove(e.ChannelName)
	} else if ch := c.state.Channel(e.ChannelName); ch != nil {
		ch.remove(e.Nick)
	}

	c.logger().Debugf(">> PART [%s] %s", e.ChannelName, e.Nick)
	return nil
}

func onKick(e *Event) error {
	c := e.conn
	if e.TargetUser == c.Nick() {
		c.state.remove(e.ChannelName)
	} else if ch := c.state.Channel(e.ChannelName); ch != nil {
		ch.remove(e.TargetUser)
	}

	c.logger().Debugf(">> KICK [%s] %s by %s", e.ChannelName, e.TargetUser, e.Nick)
	return nil
}

func onQuit(e *Event) error {
	for _, ch := range e.conn.state.Channels() {
		ch.remove(e.Nick)
	}

	e.conn.logger().Debugf(">> QUIT %s", e.Nick)
	return nil
}

// onNick migrates the member record in every channel. The bot's own rename
// also updates the connection's current nick.
func onNick(e *Event) error {
	c := e.conn
	if e.NewNick == "" {
		return nil
	}

	if e.Nick == c.Nick() {
		c.setNick(e.NewNick)
	}
	for _, ch := range c.state.Channels() {
		ch.rename(e.Nick, e.NewNick)
	}

	c.logger().Debugf(">> NICK %s -> %s", e.Nick, e.NewNick)
	return nil
}

// onMode pairs each +/- group of the mode string with the target at the
// same position and applies the o and v letters of that group.
func onMode(e *Event) error {
	if e.Channel == nil || e.Channel.Ephemeral || e.ModeChanges == "" || len(e.TargetUsers) == 0 {
		return nil
	}

	groups := ParseModeGroups(e.ModeChanges)
	n := len(groups)
	if len(e.TargetUsers) < n {
		n = len(e.TargetUsers)
	}

	for i := 0; i < n; i++ {
		nick := e.TargetUsers[i]
		for _, letter := range groups[i].Letters {
			e.Channel.setMode(nick, letter, groups[i].Add)
		}

		if m, ok := e.Channel.Member(nick); ok {
			e.conn.logger().Debugf(">> MODE [%s] %s [op:%t voice:%t]", e.Channel.Name, nick, m.Operator, m.Voice)
		}
	}
	return nil
}

func onNames(e *Event) error {
	if e.ChannelName == "" {
		return nil
	}

	ch := e.conn.state.ensure(e.ChannelName)
	for _, token := range e.Words {
		if token == "" {
			continue
		}
		m := parseNamesToken(token)
		if m.Nick == "" {
			continue
		}
		ch.put(m)
	}
	e.Channel = ch

	e.conn.logger().Debugf(">> 353 [%s] %d members", ch.Name, ch.Len())
	return nil
}

// onNickInUse picks an alternate nick when the one being registered with is
// taken. Rejections of a later nick change leave the current nick alone.
func onNickInUse(e *Event) error {
	c := e.conn
	rejected := param(e.Params, 1)
	if rejected == "" || rejected != c.Nick() {
		return nil
	}

	alt := rejected + "_"
	c.setNick(alt)
	c.logger().Warnf("nick %s in use, trying %s", rejected, alt)
	return c.SetNick(alt)
}

func onCannotJoin(e *Event) error {
	if e.conn.state.remove(e.ChannelName) {
		e.conn.logger().Debugf(">> %s dropped [%s]", e.Command, e.ChannelName)
	}
	return nil
}

// A ModeGroup is one run of mode letters sharing a sign, e.g. "+ov".
type ModeGroup struct {
	Add     bool
	Letters []rune
}

// ParseModeGroups splits a mode string like "+o-v+b" into its signed runs.
// Letters before the first sign are dropped.
func ParseModeGroups(modes string) []ModeGroup {
	var groups []ModeGroup
	for _, r := range modes {
		switch {
		case r == '+' || r == '-':
			groups = append(groups, ModeGroup{Add: r == '+'})
		case len(groups) > 0 && isLetter(r):
			g := &groups[len(groups)-1]
			g.Letters = append(g.Letters, r)
		}
	}

	// A sign with no letters after it is not a group.
	result := groups[:0]
	for _, g := range groups {
		if len(g.Letters) > 0 {
			result = append(result, g)
		}
	}
	return result
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
