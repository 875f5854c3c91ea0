// Package bridge connects a local tracker to a remote experiment host.
//
// The bridge streams the local clock, gaze and button presses to the host's
// relay and applies the host's start/stop/message/code/flush commands to
// the local tracker, so the session log is written next to the hardware.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nede-neuro/go-nede/pkg/relay/wire"
	"github.com/nede-neuro/go-nede/pkg/tracker"
)

// Defaults.
const (
	DefaultInterval  = 10 * time.Millisecond
	HandshakeTimeout = 10 * time.Second
	PingInterval     = 30 * time.Second
)

// ErrClosed is returned when the host closes the connection.
var ErrClosed = errors.New("bridge connection closed")

// Config configures a Bridge.
type Config struct {
	URL      string // e.g. ws://host:8080/ws/bridge
	ID       string
	Kind     string // reported in the hello, e.g. "file"
	Interval time.Duration
	Logger   *slog.Logger
}

// Option configures a Bridge.
type Option func(*Config)

// WithID sets the bridge ID sent to the host.
func WithID(id string) Option {
	return func(c *Config) { c.ID = id }
}

// WithKind sets the tracker kind reported to the host.
func WithKind(kind string) Option {
	return func(c *Config) { c.Kind = kind }
}

// WithInterval sets how often clock and gaze are sent.
func WithInterval(d time.Duration) Option {
	return func(c *Config) { c.Interval = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// Bridge forwards a local tracker to a host.
type Bridge struct {
	cfg   Config
	local tracker.Tracker

	ws   *websocket.Conn
	wsMu sync.Mutex

	closed   atomic.Bool
	commands atomic.Uint64
}

// New creates a bridge for local that will connect to url.
func New(url string, local tracker.Tracker, opts ...Option) *Bridge {
	cfg := Config{
		URL:      url,
		Kind:     "file",
		Interval: DefaultInterval,
		Logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Bridge{cfg: cfg, local: local}
}

// Run connects and forwards until ctx is done or the host goes away.
func (b *Bridge) Run(ctx context.Context) error {
	url := b.cfg.URL
	if b.cfg.ID != "" {
		url += "/" + b.cfg.ID
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: HandshakeTimeout,
	}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial host: %w", err)
	}
	b.ws = ws
	defer ws.Close()

	log := b.cfg.Logger.With("component", "bridge", "url", url)
	log.Info("connected")

	if err := b.send(wire.NewHelloMessage(b.cfg.ID, b.cfg.Kind)); err != nil {
		return err
	}

	readErr := make(chan error, 1)
	go func() { readErr <- b.handleMessages(ctx, log) }()

	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()
	ping := time.NewTicker(PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			b.close()
			return nil

		case err := <-readErr:
			b.closed.Store(true)
			return err

		case <-ping.C:
			b.wsMu.Lock()
			err := ws.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(HandshakeTimeout))
			b.wsMu.Unlock()
			if err != nil {
				return fmt.Errorf("ping host: %w", err)
			}

		case <-ticker.C:
			if err := b.forward(); err != nil {
				return err
			}
		}
	}
}

// Commands returns how many host commands were applied.
func (b *Bridge) Commands() uint64 {
	return b.commands.Load()
}

// forward sends the clock, the latest gaze sample and queued presses.
func (b *Bridge) forward() error {
	now := b.local.Now()
	if g, ok := b.local.Gaze(); ok {
		if err := b.send(wire.NewGazeMessage(g.X, g.Y, now, true)); err != nil {
			return err
		}
	} else if err := b.send(wire.NewClockMessage(now)); err != nil {
		return err
	}
	for btn := b.local.Button(); btn != tracker.ButtonNone; btn = b.local.Button() {
		if err := b.send(wire.NewButtonMessage(btn, true, now)); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bridge) handleMessages(ctx context.Context, log *slog.Logger) error {
	for {
		_, data, err := b.ws.ReadMessage()
		if err != nil {
			if b.closed.Load() {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return ErrClosed
			}
			return fmt.Errorf("read host: %w", err)
		}

		msg, err := wire.ParseMessage(data)
		if err != nil {
			log.Debug("parse error", "error", err)
			continue
		}
		if err := b.apply(ctx, msg); err != nil {
			log.Warn("command failed", "type", msg.Type, "error", err)
			continue
		}
		b.commands.Add(1)
	}
}

func (b *Bridge) apply(ctx context.Context, msg *wire.Message) error {
	switch msg.Type {
	case wire.TypeStart:
		d, err := msg.GetStartData()
		if err != nil {
			return err
		}
		return b.local.Start(ctx, d.Filename)

	case wire.TypeStop:
		return b.local.Stop()

	case wire.TypeMessage:
		d, err := msg.GetTextData()
		if err != nil {
			return err
		}
		return b.local.Message(d.Text)

	case wire.TypeCode:
		d, err := msg.GetCodeData()
		if err != nil {
			return err
		}
		return b.local.SendCode(tracker.Code(d.Code))

	case wire.TypeFlush:
		b.local.Flush()
		return nil

	case wire.TypePong:
		var p wire.PongData
		if err := msg.ParseData(&p); err != nil {
			return err
		}
		b.cfg.Logger.Debug("pong", "id", p.ID, "latency_ms", p.LatencyMs)
		return nil
	}
	return fmt.Errorf("unexpected message type %q", msg.Type)
}

func (b *Bridge) send(msg *wire.Message, err error) error {
	if err != nil {
		return err
	}
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	b.wsMu.Lock()
	defer b.wsMu.Unlock()
	if err := b.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write host: %w", err)
	}
	return nil
}

func (b *Bridge) close() {
	b.closed.Store(true)
	b.wsMu.Lock()
	defer b.wsMu.Unlock()
	_ = b.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}
