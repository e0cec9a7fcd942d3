package irc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func classifyLine(t *testing.T, line string, state *State) *Event {
	t.Helper()
	msg, ok := ParseMessage(line)
	require.True(t, ok, line)
	if state == nil {
		state = NewState()
	}
	return Classify(msg, state)
}

func TestClassifyNumericTable(t *testing.T) {
	tests := []struct {
		line    string
		user    string
		channel string
	}{
		{":srv 311 bot alice al host * :Alice", "bot", ""},
		{":srv 433 * bot :Nickname is already in use", "*", ""},
		{":srv 332 #chan :the topic", "", "#chan"},
		{":srv 366 #chan :End of /NAMES list.", "", "#chan"},
		{":srv 474 #chan :Cannot join channel (+b)", "", "#chan"},
		{":srv 322 #chan 12 :topic", "#chan", "#chan"},
		{":srv 341 #chan alice", "alice", "#chan"},
		{":srv 352 #chan al host srv alice H :0 Alice", "alice", "#chan"},
		{":srv 441 alice #chan :They aren't on that channel", "alice", "#chan"},
		{":srv 407 #chan :Duplicate recipients", "", "#chan"},
		{":srv 437 alice :Nick temporarily unavailable", "alice", ""},
		{":srv 372 bot :- motd line", "", ""},
	}

	for _, tt := range tests {
		e := classifyLine(t, tt.line, nil)
		assert.Equal(t, tt.user, e.TargetUser, tt.line)
		assert.Equal(t, tt.channel, e.ChannelName, tt.line)
	}
}

func TestClassifyNamesReply(t *testing.T) {
	e := classifyLine(t, ":srv 353 bot = #chan :@alice +bob carol", nil)
	assert.Equal(t, "#chan", e.ChannelName)
	assert.Equal(t, []string{"@alice", "+bob", "carol"}, e.Words)

	e = classifyLine(t, ":srv 353 bot #old :dave", nil)
	assert.Equal(t, "#old", e.ChannelName)
}

func TestClassifyChannelMessage(t *testing.T) {
	state := NewState()
	ch := state.ensure("#chan")

	e := classifyLine(t, ":alice!al@h PRIVMSG #chan :hello there bot", state)
	assert.Equal(t, "#chan", e.ChannelName)
	assert.Same(t, ch, e.Channel)
	assert.False(t, e.IsDirect())
	assert.Equal(t, []string{"hello", "there", "bot"}, e.Words)
	assert.Equal(t, "#chan", e.ReplyTarget())
}

func TestClassifyDirectMessage(t *testing.T) {
	e := classifyLine(t, ":carol!c@h PRIVMSG bot :hi", nil)

	require.NotNil(t, e.Channel)
	assert.True(t, e.IsDirect())
	assert.Equal(t, "carol", e.Channel.Name)
	assert.Empty(t, e.ChannelName)
	assert.Equal(t, "carol", e.ReplyTarget())
}

func TestClassifyUntrackedChannel(t *testing.T) {
	e := classifyLine(t, ":alice!al@h TOPIC #other :new topic", nil)
	assert.Equal(t, "#other", e.ChannelName)
	assert.Nil(t, e.Channel)
	assert.Equal(t, "#other", e.ReplyTarget())
}

func TestClassifyCommands(t *testing.T) {
	e := classifyLine(t, ":op!o@h KICK #chan carol :bye", nil)
	assert.Equal(t, "#chan", e.ChannelName)
	assert.Equal(t, "carol", e.TargetUser)

	e = classifyLine(t, ":op!o@h MODE #chan +o-v alice bob", nil)
	assert.Equal(t, "#chan", e.ChannelName)
	assert.Equal(t, "+o-v", e.ModeChanges)
	assert.Equal(t, []string{"alice", "bob"}, e.TargetUsers)

	e = classifyLine(t, ":alice!al@h JOIN :#chan", nil)
	assert.Equal(t, "#chan", e.ChannelName)

	e = classifyLine(t, ":alice!al@h NICK alicia", nil)
	assert.Equal(t, "alicia", e.NewNick)
	assert.True(t, e.MultiChannel)

	e = classifyLine(t, ":alice!al@h NICK :alicia", nil)
	assert.Equal(t, "alicia", e.NewNick)

	e = classifyLine(t, ":srv WALLOPS :unknown to the classifier", nil)
	assert.Empty(t, e.ChannelName)
	assert.Empty(t, e.TargetUser)
	assert.Nil(t, e.Channel)
}

func TestClassifyMultiChannel(t *testing.T) {
	state := NewState()
	a := state.ensure("#a")
	b := state.ensure("#b")
	c := state.ensure("#c")
	a.put(Member{Nick: "alice"})
	c.put(Member{Nick: "alice"})
	b.put(Member{Nick: "bob"})

	e := classifyLine(t, ":alice!al@h QUIT :gone", state)
	assert.True(t, e.MultiChannel)
	assert.Equal(t, []*Channel{a, c}, e.Channels)

	e = classifyLine(t, ":nobody!n@h NICK someone", state)
	assert.Empty(t, e.Channels)
}

func TestIsChannelName(t *testing.T) {
	for _, name := range []string{"#chan", "&local", "!safe", "+modeless", ".dot", "~tilde"} {
		assert.True(t, IsChannelName(name), name)
	}
	for _, name := range []string{"", "alice", "bot#1"} {
		assert.False(t, IsChannelName(name), name)
	}
}
