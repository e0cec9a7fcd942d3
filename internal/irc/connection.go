package irc

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/dalnet/ircbot/internal/config"
)

// ErrNoConnection is returned when sending on a connection whose transport
// is not active.
var ErrNoConnection = errors.New("irc: no connection")

// ErrBadLine is returned when an outbound token contains a line break.
var ErrBadLine = errors.New("irc: outbound line contains CR or LF")

const (
	readBufferSize = 4096
	dialTimeout    = 30 * time.Second
	idleTimeout    = time.Hour
)

// A Connection is one named server the bot talks to. It owns the transport,
// the framer and the channel model for that server.
type Connection struct {
	Name string

	cfg     config.ServerConfig
	bot     *Bot
	onReady ListenerFunc
	state   *State
	framer  Framer
	limiter *rate.Limiter

	mu       sync.RWMutex
	conn     net.Conn
	nick     string
	session  string
	lastSent time.Time

	writeMu sync.Mutex
	log     *logrus.Entry
}

func newConnection(bot *Bot, cfg config.ServerConfig, onReady ListenerFunc) *Connection {
	c := &Connection{
		Name:    cfg.Name,
		cfg:     cfg,
		bot:     bot,
		onReady: onReady,
		state:   NewState(),
		nick:    bot.nick,
		log:     bot.log.WithField("server", cfg.Name),
	}
	if cfg.SendRate > 0 {
		burst := cfg.SendBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.SendRate), burst)
	}
	return c
}

// Config returns the server configuration the connection was registered with.
func (c *Connection) Config() config.ServerConfig {
	return c.cfg
}

// Owner returns the configured owner nick for this server.
func (c *Connection) Owner() string {
	return c.cfg.Owner
}

// State returns the channel model.
func (c *Connection) State() *State {
	return c.state
}

// Nick returns the bot's current nick on this server.
func (c *Connection) Nick() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nick
}

func (c *Connection) setNick(nick string) {
	c.mu.Lock()
	c.nick = nick
	c.mu.Unlock()
}

// Session returns the ID of the current transport session, or "" when the
// connection is not active.
func (c *Connection) Session() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// LastSent returns the time of the last successful write.
func (c *Connection) LastSent() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSent
}

// Connected reports whether the transport is active.
func (c *Connection) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// Activate dials the server and sends the registration handshake. Any
// previous channel model is discarded.
func (c *Connection) Activate(ctx context.Context) error {
	if c.Connected() {
		c.Close()
	}

	dialer := &net.Dialer{Timeout: dialTimeout, KeepAlive: 10 * time.Second}

	var conn net.Conn
	var err error
	if c.cfg.TLS {
		conn, err = (&tls.Dialer{
			NetDialer: dialer,
			Config: &tls.Config{
				ServerName:         c.cfg.Host,
				InsecureSkipVerify: c.cfg.SkipVerify,
			},
		}).DialContext(ctx, "tcp", c.cfg.Address())
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", c.cfg.Address())
	}
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.cfg.Address(), err)
	}

	c.attach(conn)

	nick := c.bot.Nick()
	c.setNick(nick)
	if err := c.Send("NICK", nick); err != nil {
		return err
	}
	return c.Send("USER", nick, "0", "*", ":"+nick)
}

// attach installs a transport and starts a fresh session.
func (c *Connection) attach(conn net.Conn) {
	c.state.Reset()
	c.framer.Reset()

	c.mu.Lock()
	c.conn = conn
	c.session = uuid.NewString()
	c.log = c.bot.log.WithFields(logrus.Fields{"server": c.Name, "session": c.session})
	c.mu.Unlock()

	connected.WithLabelValues(c.Name).Set(1)
	c.logger().Info("connected")
}

func (c *Connection) logger() *logrus.Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.log
}

// Serve reads from the transport until it fails, running every complete
// line through the pipeline in order. The channel model is cleared when
// it returns.
func (c *Connection) Serve(ctx context.Context) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNoConnection
	}

	stop := make(chan struct{})
	defer close(stop)
	go c.resyncLoop(stop)

	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	buf := make([]byte, readBufferSize)
	var err error
	for {
		_ = conn.SetReadDeadline(time.Now().Add(idleTimeout))

		var n int
		n, err = conn.Read(buf)
		if n > 0 {
			c.framer.Feed(buf[:n])
			for {
				line, ok := c.framer.NextLine()
				if !ok {
					break
				}
				c.handleLine(line)
			}
		}
		if err != nil {
			break
		}
	}

	c.detach(conn)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("connection to %s lost: %w", c.Name, err)
}

func (c *Connection) detach(conn net.Conn) {
	conn.Close()

	// A newer transport may already be attached; its state stays.
	c.mu.Lock()
	if c.conn == conn {
		c.state.Reset()
		c.conn = nil
		c.session = ""
	}
	c.mu.Unlock()

	connected.WithLabelValues(c.Name).Set(0)
	c.logger().Info("disconnected")
}

// handleLine runs one framed line through parse, classify and dispatch.
func (c *Connection) handleLine(line string) {
	linesReceived.WithLabelValues(c.Name).Inc()
	log := c.logger()
	log.Debug(line)

	msg, ok := ParseMessage(line)
	if !ok {
		linesDropped.WithLabelValues(c.Name).Inc()
		log.Warnf("dropping line without command: %q", line)
		return
	}

	e := Classify(msg, c.state)
	e.Server = c.Name
	e.conn = c

	c.bot.Emit(e)
}

// Run keeps the connection alive until ctx is done, reconnecting after the
// configured delay whenever the transport fails.
func (c *Connection) Run(ctx context.Context) error {
	delay := time.Duration(c.cfg.ReconnectDelay)

	for {
		err := c.Activate(ctx)
		if err == nil {
			err = c.Serve(ctx)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger().Warnf("%v; reconnecting in %s", err, delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// Close shuts the transport down. Serve returns once the read fails.
func (c *Connection) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.session = ""
	c.mu.Unlock()

	if conn == nil {
		return ErrNoConnection
	}
	c.state.Reset()
	connected.WithLabelValues(c.Name).Set(0)
	return conn.Close()
}

// Send joins the tokens with spaces and writes them as one line. A free-text
// last argument must carry its own ':' marker.
func (c *Connection) Send(tokens ...string) error {
	line := strings.Join(tokens, " ")
	if strings.ContainsAny(line, "\r\n") {
		return ErrBadLine
	}

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNoConnection
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(context.Background()); err != nil {
			return err
		}
	}

	c.writeMu.Lock()
	_, err := conn.Write([]byte(line + "\r\n"))
	c.writeMu.Unlock()
	if err != nil {
		c.logger().Errorf("write failed: %v", err)
		return err
	}

	c.mu.Lock()
	c.lastSent = time.Now()
	c.mu.Unlock()
	linesSent.WithLabelValues(c.Name).Inc()

	return nil
}

// Privmsg sends a message to a channel or nick.
func (c *Connection) Privmsg(target, msg string) error {
	return c.Send("PRIVMSG", target, ":"+msg)
}

// Notice sends a notice to a channel or nick.
func (c *Connection) Notice(target, msg string) error {
	return c.Send("NOTICE", target, ":"+msg)
}

// Join joins a channel.
func (c *Connection) Join(channel string) error {
	return c.Send("JOIN", channel)
}

// Part leaves a channel.
func (c *Connection) Part(channel string) error {
	return c.Send("PART", channel)
}

// Mode changes channel or user modes. args are appended as-is.
func (c *Connection) Mode(target string, args ...string) error {
	return c.Send(append([]string{"MODE", target}, args...)...)
}

// SetNick asks the server for a new nick. The tracked nick changes when the
// server confirms with NICK.
func (c *Connection) SetNick(nick string) error {
	return c.Send("NICK", nick)
}

// Pong answers a keepalive probe.
func (c *Connection) Pong(token string) error {
	return c.Send("PONG", ":"+token)
}

// Resync clears every tracked channel's member list and asks the server
// for a fresh NAMES listing. Replies repopulate the lists as they arrive.
func (c *Connection) Resync() error {
	for _, ch := range c.state.Channels() {
		ch.clear()
		if err := c.Send("NAMES", ch.Name); err != nil {
			return err
		}
	}
	return nil
}

func (c *Connection) resyncLoop(stop <-chan struct{}) {
	interval := time.Duration(c.cfg.ResyncInterval)
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := c.Resync(); err != nil {
				c.logger().Warnf("resync failed: %v", err)
			}
		}
	}
}
