// Package listener runs user callbacks on notifications pushed by the aria2 daemon.
package listener

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/ariatop/api"
	"github.com/cenkalti/ariatop/ariarpc"
	"github.com/cenkalti/ariatop/internal/logger"
	"github.com/cenkalti/backoff/v3"
)

// Event is the short tag of a notification type.
type Event string

const (
	Start      Event = "start"
	Pause      Event = "pause"
	Stop       Event = "stop"
	Error      Event = "error"
	Complete   Event = "complete"
	BtComplete Event = "btcomplete"
)

var eventMethods = map[Event]string{
	Start:      ariarpc.OnDownloadStart,
	Pause:      ariarpc.OnDownloadPause,
	Stop:       ariarpc.OnDownloadStop,
	Error:      ariarpc.OnDownloadError,
	Complete:   ariarpc.OnDownloadComplete,
	BtComplete: ariarpc.OnBtDownloadComplete,
}

// Events returns all event tags.
func Events() []Event {
	return []Event{Start, Pause, Stop, Error, Complete, BtComplete}
}

// Method returns the daemon method name of the notification.
func (e Event) Method() string { return eventMethods[e] }

func ParseEvent(s string) (Event, error) {
	e := Event(s)
	if _, ok := eventMethods[e]; !ok {
		return "", fmt.Errorf("unknown event: %q", s)
	}
	return e, nil
}

func eventForMethod(method string) (Event, bool) {
	for e, m := range eventMethods {
		if m == method {
			return e, true
		}
	}
	return "", false
}

// Callback handles one notification. Returned errors and panics are logged and do not stop the listener.
type Callback func(ctx context.Context, a *api.API, gid string) error

type Config struct {
	Callbacks map[Event]Callback
	// Events limits processing to these events. Empty means all events.
	Events []Event
	// Timeout is the longest a single receive blocks. It bounds the time Run takes to notice a stop.
	Timeout time.Duration
	// Backoff paces reconnection attempts. Defaults to an exponential backoff that never gives up.
	Backoff backoff.BackOff
}

const DefaultTimeout = 5 * time.Second

type Listener struct {
	client  *ariarpc.Client
	api     *api.API
	config  Config
	events  map[Event]bool
	backoff backoff.BackOff
	log     logger.Logger

	stopC    chan struct{}
	stopOnce sync.Once
}

func New(clt *ariarpc.Client, a *api.API, cfg Config) (*Listener, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	events := cfg.Events
	if len(events) == 0 {
		events = Events()
	}
	l := &Listener{
		client:  clt,
		api:     a,
		config:  cfg,
		events:  make(map[Event]bool, len(events)),
		backoff: cfg.Backoff,
		log:     logger.New("listener"),
		stopC:   make(chan struct{}),
	}
	for _, e := range events {
		if _, ok := eventMethods[e]; !ok {
			return nil, fmt.Errorf("unknown event: %q", e)
		}
		l.events[e] = true
	}
	for e := range cfg.Callbacks {
		if _, ok := eventMethods[e]; !ok {
			return nil, fmt.Errorf("callback for unknown event: %q", e)
		}
	}
	if l.backoff == nil {
		l.backoff = &backoff.ExponentialBackOff{
			InitialInterval:     500 * time.Millisecond,
			RandomizationFactor: 0.5,
			Multiplier:          2,
			MaxInterval:         30 * time.Second,
			MaxElapsedTime:      0, // never stop
			Clock:               backoff.SystemClock,
		}
	}
	l.backoff.Reset()
	return l, nil
}

// Stop asks Run to return after the receive or callback in progress.
func (l *Listener) Stop() {
	l.stopOnce.Do(func() { close(l.stopC) })
}

func (l *Listener) stopping(ctx context.Context) bool {
	select {
	case <-l.stopC:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// Run processes notifications until Stop is called or ctx is cancelled.
// Connection failures are retried forever, so Run only returns nil.
func (l *Listener) Run(ctx context.Context) error {
	for !l.stopping(ctx) {
		conn, err := ariarpc.DialNotifications(ctx, l.client)
		if err != nil {
			l.log.Warningln("cannot connect:", err)
			l.wait(ctx)
			continue
		}
		l.log.Infoln("listening for notifications on", l.client)
		l.backoff.Reset()
		err = l.receive(ctx, conn)
		_ = conn.Close()
		if err != nil {
			l.log.Warningln("connection lost:", err)
			l.wait(ctx)
		}
	}
	l.log.Infoln("stopped")
	return nil
}

func (l *Listener) wait(ctx context.Context) {
	d := l.backoff.NextBackOff()
	if d == backoff.Stop {
		d = l.config.Timeout
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-l.stopC:
	case <-ctx.Done():
	}
}

// receive returns nil when stopped and the transport error when the connection dies.
func (l *Listener) receive(ctx context.Context, conn *ariarpc.NotificationConn) error {
	for !l.stopping(ctx) {
		n, ok, err := conn.Receive(l.config.Timeout)
		if ariarpc.IsTransport(err) {
			return err
		}
		if err != nil {
			l.log.Errorln("invalid notification:", err)
			continue
		}
		if !ok {
			continue
		}
		l.dispatch(ctx, n)
	}
	return nil
}

func (l *Listener) dispatch(ctx context.Context, n ariarpc.Notification) {
	e, ok := eventForMethod(n.Event)
	if !ok {
		l.log.Debugln("ignoring unknown notification:", n.Event)
		return
	}
	if !l.events[e] {
		return
	}
	cb := l.config.Callbacks[e]
	if cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			l.log.Errorf("callback for %s %s panicked: %v", e, n.GID, r)
		}
	}()
	// A stop must not abort a callback half way.
	if err := cb(context.WithoutCancel(ctx), l.api, n.GID); err != nil {
		l.log.Errorf("callback for %s %s failed: %s", e, n.GID, err)
	}
}
