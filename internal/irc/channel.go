package irc

import (
	"sort"
	"sync"
)

// A Member is a tracked occupant of a channel.
type Member struct {
	Nick     string `json:"nick"`
	Operator bool   `json:"operator"`
	Voice    bool   `json:"voice"`
	HalfOp   bool   `json:"halfop,omitempty"`
	Admin    bool   `json:"admin,omitempty"`
	Owner    bool   `json:"owner,omitempty"`
}

// statusGlyphs maps NAMES prefixes to the flag they grant.
var statusGlyphs = map[byte]func(m *Member){
	'~': func(m *Member) { m.Owner = true },
	'&': func(m *Member) { m.Admin = true },
	'@': func(m *Member) { m.Operator = true },
	'%': func(m *Member) { m.HalfOp = true },
	'+': func(m *Member) { m.Voice = true },
}

// parseNamesToken turns "@+nick" into a Member with the flags set and the
// glyphs stripped from the name.
func parseNamesToken(token string) Member {
	m := Member{}
	i := 0
	for ; i < len(token); i++ {
		grant, ok := statusGlyphs[token[i]]
		if !ok {
			break
		}
		grant(&m)
	}
	m.Nick = token[i:]
	return m
}

// A Channel holds the member list of one channel on one connection. An
// ephemeral channel stands in for a one-to-one conversation and is never
// part of the tracked state.
type Channel struct {
	Name      string
	Ephemeral bool

	mu      sync.RWMutex
	members map[string]*Member
}

func newChannel(name string) *Channel {
	return &Channel{Name: name, members: make(map[string]*Member)}
}

func newEphemeralChannel(name string) *Channel {
	ch := newChannel(name)
	ch.Ephemeral = true
	return ch
}

// String returns the channel name.
func (ch *Channel) String() string {
	return ch.Name
}

// Member returns a copy of the member record for nick.
func (ch *Channel) Member(nick string) (Member, bool) {
	ch.mu.RLock()
	defer ch.mu.RUnlock()

	m, ok := ch.members[nick]
	if !ok {
		return Member{}, false
	}
	return *m, true
}

// HasMember reports whether nick is tracked in the channel.
func (ch *Channel) HasMember(nick string) bool {
	ch.mu.RLock()
	_, ok := ch.members[nick]
	ch.mu.RUnlock()
	return ok
}

// Members returns copies of all members sorted by nick.
func (ch *Channel) Members() []Member {
	ch.mu.RLock()
	result := make([]Member, 0, len(ch.members))
	for _, m := range ch.members {
		result = append(result, *m)
	}
	ch.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].Nick < result[j].Nick })
	return result
}

// Len returns the number of tracked members.
func (ch *Channel) Len() int {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return len(ch.members)
}

// put inserts or replaces the member under its nick.
func (ch *Channel) put(m Member) {
	ch.mu.Lock()
	ch.members[m.Nick] = &m
	ch.mu.Unlock()
}

func (ch *Channel) remove(nick string) bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if _, ok := ch.members[nick]; !ok {
		return false
	}
	delete(ch.members, nick)
	return true
}

// rename moves the member to a new key in place.
func (ch *Channel) rename(from, to string) bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	m, ok := ch.members[from]
	if !ok {
		return false
	}
	delete(ch.members, from)
	m.Nick = to
	ch.members[to] = m
	return true
}

// setMode applies a single mode letter. Only o and v are tracked; anything
// else, or an unknown nick, is a no-op.
func (ch *Channel) setMode(nick string, letter rune, on bool) bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	m, ok := ch.members[nick]
	if !ok {
		return false
	}

	switch letter {
	case 'o':
		m.Operator = on
	case 'v':
		m.Voice = on
	default:
		return false
	}
	return true
}

func (ch *Channel) clear() {
	ch.mu.Lock()
	ch.members = make(map[string]*Member)
	ch.mu.Unlock()
}

// State is the channel model of one connection. Channels keep the order
// in which they were first tracked.
type State struct {
	mu       sync.RWMutex
	order    []string
	channels map[string]*Channel
}

// NewState creates an empty channel model.
func NewState() *State {
	return &State{channels: make(map[string]*Channel)}
}

// Channel returns the tracked channel or nil.
func (s *State) Channel(name string) *Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channels[name]
}

// Channels returns all tracked channels in tracking order.
func (s *State) Channels() []*Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Channel, 0, len(s.order))
	for _, name := range s.order {
		result = append(result, s.channels[name])
	}
	return result
}

// ChannelsWith returns, in tracking order, every channel that currently
// lists nick as a member.
func (s *State) ChannelsWith(nick string) []*Channel {
	var result []*Channel
	for _, ch := range s.Channels() {
		if ch.HasMember(nick) {
			result = append(result, ch)
		}
	}
	return result
}

// Len returns the number of tracked channels.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// ensure returns the tracked channel, creating it when absent.
func (s *State) ensure(name string) *Channel {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch, ok := s.channels[name]; ok {
		return ch
	}

	ch := newChannel(name)
	s.channels[name] = ch
	s.order = append(s.order, name)
	return ch
}

func (s *State) remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.channels[name]; !ok {
		return false
	}
	delete(s.channels, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Reset forgets every channel. Used when the transport goes away.
func (s *State) Reset() {
	s.mu.Lock()
	s.order = nil
	s.channels = make(map[string]*Channel)
	s.mu.Unlock()
}
