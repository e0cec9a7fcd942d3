package irc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dalnet/ircbot/internal/config"
)

// ErrUnknownServer is returned for operations naming an unregistered server.
var ErrUnknownServer = errors.New("irc: unknown server")

// ErrServerExists is returned when registering a server name twice.
var ErrServerExists = errors.New("irc: server already registered")

// Bot owns the connections and the dispatcher shared between them. All
// listeners, hooks and ignores are per bot; channel state is per connection.
type Bot struct {
	*Dispatcher

	mu          sync.RWMutex
	nick        string
	connections map[string]*Connection
	order       []string

	log *logrus.Entry
}

// New creates a bot that registers with nick on every server. A nil logger
// uses the logrus standard logger.
func New(nick string, logger *logrus.Logger) *Bot {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	log := logger.WithField("bot", nick)

	return &Bot{
		Dispatcher:  NewDispatcher(log, installStateTracking),
		nick:        nick,
		connections: make(map[string]*Connection),
		log:         log,
	}
}

// NewFromConfig creates a bot and registers every configured server. Each
// server joins its configured channels once registration completes.
func NewFromConfig(cfg *config.Config, logger *logrus.Logger) (*Bot, error) {
	b := New(cfg.Nick, logger)

	for _, sc := range cfg.Servers {
		channels := sc.Channels
		onReady := func(e *Event) error {
			for _, ch := range channels {
				if err := e.Connection().Join(ch); err != nil {
					return err
				}
			}
			return nil
		}

		if _, err := b.AddConnection(sc, onReady); err != nil {
			return nil, err
		}
	}

	return b, nil
}

// Nick returns the nick the bot registers with.
func (b *Bot) Nick() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nick
}

// AddConnection registers a server. The transport is not opened until
// Connect, ConnectAll or Run. onReady runs after the server's welcome reply
// and the optional NickServ identification.
func (b *Bot) AddConnection(cfg config.ServerConfig, onReady ListenerFunc) (*Connection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.connections[cfg.Name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrServerExists, cfg.Name)
	}

	c := newConnection(b, cfg, onReady)
	b.connections[cfg.Name] = c
	b.order = append(b.order, cfg.Name)
	return c, nil
}

// Connection returns the named connection or nil.
func (b *Bot) Connection(name string) *Connection {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.connections[name]
}

// Connections returns every registered connection in registration order.
func (b *Bot) Connections() []*Connection {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]*Connection, 0, len(b.order))
	for _, name := range b.order {
		result = append(result, b.connections[name])
	}
	return result
}

func (b *Bot) lookup(name string) (*Connection, error) {
	c := b.Connection(name)
	if c == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownServer, name)
	}
	return c, nil
}

// Connect opens the named connection and starts reading from it. It does
// not reconnect; use Run for that.
func (b *Bot) Connect(ctx context.Context, name string) error {
	c, err := b.lookup(name)
	if err != nil {
		return err
	}

	if err := c.Activate(ctx); err != nil {
		return err
	}

	go func() {
		if err := c.Serve(ctx); err != nil && ctx.Err() == nil {
			c.logger().Warn(err)
		}
	}()
	return nil
}

// ConnectAll opens every registered connection.
func (b *Bot) ConnectAll(ctx context.Context) error {
	var errs []error
	for _, c := range b.Connections() {
		if err := b.Connect(ctx, c.Name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run keeps every registered connection alive, reconnecting on failure,
// until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, c := range b.Connections() {
		wg.Add(1)
		go func(c *Connection) {
			defer wg.Done()
			_ = c.Run(ctx)
		}(c)
	}

	wg.Wait()
	return ctx.Err()
}

// Quit sends QUIT with a message on every active connection and closes them.
func (b *Bot) Quit(message string) {
	for _, c := range b.Connections() {
		if !c.Connected() {
			continue
		}
		if err := c.Send("QUIT", ":"+message); err != nil {
			c.logger().Warnf("quit failed: %v", err)
		}
		c.Close()
	}
}

// Say sends a PRIVMSG to target on the named server.
func (b *Bot) Say(server, target, msg string) error {
	c, err := b.lookup(server)
	if err != nil {
		return err
	}
	return c.Privmsg(target, msg)
}

// Reply answers an event in its channel, or privately for direct messages.
func (b *Bot) Reply(e *Event, msg string) error {
	return e.Reply(msg)
}

// ReplyNotice answers an event with a NOTICE to its sender.
func (b *Bot) ReplyNotice(e *Event, msg string) error {
	return e.ReplyNotice(msg)
}

// Act sends a CTCP ACTION in reply to an event.
func (b *Bot) Act(e *Event, msg string) error {
	return e.Act(msg)
}

// Join joins channel on the named server.
func (b *Bot) Join(server, channel string) error {
	c, err := b.lookup(server)
	if err != nil {
		return err
	}
	return c.Join(channel)
}

// Part leaves channel on the named server.
func (b *Bot) Part(server, channel string) error {
	c, err := b.lookup(server)
	if err != nil {
		return err
	}
	return c.Part(channel)
}

// Mode sends a MODE change for channel on the named server.
func (b *Bot) Mode(server, channel string, args ...string) error {
	c, err := b.lookup(server)
	if err != nil {
		return err
	}
	return c.Mode(channel, args...)
}

// SetNick requests a nick change on the named server.
func (b *Bot) SetNick(server, nick string) error {
	c, err := b.lookup(server)
	if err != nil {
		return err
	}
	return c.SetNick(nick)
}

// Send writes a raw, pre-formatted command on the named server.
func (b *Bot) Send(server string, tokens ...string) error {
	c, err := b.lookup(server)
	if err != nil {
		return err
	}
	return c.Send(tokens...)
}
