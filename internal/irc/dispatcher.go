package irc

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// A ListenerFunc handles one event. A returned error or a panic is reported
// and does not stop delivery to the remaining listeners.
type ListenerFunc func(e *Event) error

// A PreEmitHook runs on every inbound event before any listener. Hooks run
// one at a time in registration order and may modify the event.
type PreEmitHook func(e *Event) error

type listener struct {
	types   []string
	tag     string
	fn      ListenerFunc
	name    string
	site    string
	builtin bool
}

func (l *listener) handles(command string) bool {
	for _, t := range l.types {
		if t == command {
			return true
		}
	}
	return false
}

// ListenerError describes a listener that failed while handling an event.
type ListenerError struct {
	Tag      string
	Func     string
	Site     string
	Command  string
	Server   string
	Panicked bool
	Err      error
}

func (le *ListenerError) Error() string {
	kind := "error"
	if le.Panicked {
		kind = "panic"
	}
	return fmt.Sprintf("listener %s (%s, registered at %s) %s on %s: %v",
		le.Tag, le.Func, le.Site, kind, le.Command, le.Err)
}

func (le *ListenerError) Unwrap() error {
	return le.Err
}

// Dispatcher owns the listener registry, the ignore table and the pre-emit
// hook chain. It is shared by every connection of a bot.
type Dispatcher struct {
	mu        sync.RWMutex
	listeners []*listener
	hooks     []PreEmitHook
	ignores   map[string]map[string]bool
	defaults  func(d *Dispatcher)

	// OnListenerError is called for every failed listener. The default logs
	// the failure.
	OnListenerError func(err *ListenerError)

	log *logrus.Entry
}

// NewDispatcher creates a dispatcher. defaults, when set, installs the
// built-in listeners now and after every RemoveAllListeners.
func NewDispatcher(log *logrus.Entry, defaults func(d *Dispatcher)) *Dispatcher {
	d := &Dispatcher{
		ignores:  make(map[string]map[string]bool),
		defaults: defaults,
		log:      log,
	}
	d.OnListenerError = func(err *ListenerError) {
		d.log.WithFields(logrus.Fields{
			"tag":     err.Tag,
			"func":    err.Func,
			"site":    err.Site,
			"command": err.Command,
			"server":  err.Server,
		}).Errorf("listener failed: %v", err.Err)
	}

	d.installDefaults()
	return d
}

func (d *Dispatcher) installDefaults() {
	if d.defaults != nil {
		d.defaults(d)
	}
}

// AddListener registers fn for every command or numeric in types. Listeners
// for the same type run in registration order.
func (d *Dispatcher) AddListener(types []string, tag string, fn ListenerFunc) {
	d.add(types, tag, fn, false, 2)
}

// On registers fn for a single command or numeric.
func (d *Dispatcher) On(eventType, tag string, fn ListenerFunc) {
	d.add([]string{eventType}, tag, fn, false, 2)
}

func (d *Dispatcher) addBuiltin(eventType, tag string, fn ListenerFunc) {
	d.add([]string{eventType}, tag, fn, true, 2)
}

func (d *Dispatcher) add(types []string, tag string, fn ListenerFunc, builtin bool, skip int) {
	if fn == nil || len(types) == 0 {
		return
	}

	normalized := make([]string, len(types))
	for i, t := range types {
		normalized[i] = strings.ToUpper(t)
	}

	l := &listener{
		types:   normalized,
		tag:     tag,
		fn:      fn,
		name:    funcName(fn),
		site:    callSite(skip),
		builtin: builtin,
	}

	d.mu.Lock()
	d.listeners = append(d.listeners, l)
	d.mu.Unlock()
}

// RemoveAllListeners drops every registered listener and reinstalls the
// built-in ones.
func (d *Dispatcher) RemoveAllListeners() {
	d.mu.Lock()
	d.listeners = nil
	d.mu.Unlock()

	d.installDefaults()
}

// ListenerCount returns the number of registered listeners, built-ins
// included.
func (d *Dispatcher) ListenerCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.listeners)
}

// AddPreEmitHook appends fn to the hook chain.
func (d *Dispatcher) AddPreEmitHook(fn PreEmitHook) {
	if fn == nil {
		return
	}
	d.mu.Lock()
	d.hooks = append(d.hooks, fn)
	d.mu.Unlock()
}

// ClearHooks empties the hook chain.
func (d *Dispatcher) ClearHooks() {
	d.mu.Lock()
	d.hooks = nil
	d.mu.Unlock()
}

// Ignore suppresses listeners tagged tag for events whose sender or channel
// is target.
func (d *Dispatcher) Ignore(target, tag string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	tags, ok := d.ignores[target]
	if !ok {
		tags = make(map[string]bool)
		d.ignores[target] = tags
	}
	tags[tag] = true
}

// Unignore removes one ignore entry.
func (d *Dispatcher) Unignore(target, tag string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	tags, ok := d.ignores[target]
	if !ok {
		return
	}
	delete(tags, tag)
	if len(tags) == 0 {
		delete(d.ignores, target)
	}
}

// ClearIgnores removes every ignore entry.
func (d *Dispatcher) ClearIgnores() {
	d.mu.Lock()
	d.ignores = make(map[string]map[string]bool)
	d.mu.Unlock()
}

// IsIgnored reports whether an ignore entry exists for target and tag.
func (d *Dispatcher) IsIgnored(target, tag string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.ignores[target][tag]
}

func (d *Dispatcher) suppressed(e *Event, tag string) bool {
	if e.Nick != "" && d.IsIgnored(e.Nick, tag) {
		return true
	}

	channel := e.ChannelName
	if e.Channel != nil {
		channel = e.Channel.Name
	}
	return channel != "" && d.IsIgnored(channel, tag)
}

// Emit runs the hook chain and then every listener registered for the
// event's command.
func (d *Dispatcher) Emit(e *Event) {
	d.mu.RLock()
	hooks := make([]PreEmitHook, len(d.hooks))
	copy(hooks, d.hooks)
	d.mu.RUnlock()

	for _, hook := range hooks {
		if err := d.runHook(hook, e); err != nil {
			hookFailures.Inc()
			d.log.WithField("hook", funcName(hook)).Errorf("pre-emit hook failed: %v", err)
		}
	}

	d.mu.RLock()
	listeners := make([]*listener, len(d.listeners))
	copy(listeners, d.listeners)
	d.mu.RUnlock()

	eventsDispatched.WithLabelValues(e.Command).Inc()

	for _, l := range listeners {
		if !l.handles(e.Command) || d.suppressed(e, l.tag) {
			continue
		}

		if err := d.invoke(l, e); err != nil {
			listenerFailures.WithLabelValues(l.tag).Inc()
			if d.OnListenerError != nil {
				d.OnListenerError(err)
			}
		}
	}
}

func (d *Dispatcher) runHook(hook PreEmitHook, e *Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return hook(e)
}

func (d *Dispatcher) invoke(l *listener, e *Event) (lerr *ListenerError) {
	defer func() {
		if r := recover(); r != nil {
			lerr = &ListenerError{
				Tag:      l.tag,
				Func:     l.name,
				Site:     l.site,
				Command:  e.Command,
				Server:   e.Server,
				Panicked: true,
				Err:      fmt.Errorf("%v", r),
			}
		}
	}()

	if err := l.fn(e); err != nil {
		return &ListenerError{
			Tag:     l.tag,
			Func:    l.name,
			Site:    l.site,
			Command: e.Command,
			Server:  e.Server,
			Err:     err,
		}
	}
	return nil
}

func funcName(fn interface{}) string {
	f := runtime.FuncForPC(reflect.ValueOf(fn).Pointer())
	if f == nil {
		return "unknown"
	}
	return f.Name()
}

func callSite(skip int) string {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", file, line)
}
