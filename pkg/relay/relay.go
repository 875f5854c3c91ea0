// Package relay accepts tracker bridges over websocket and exposes the
// active one as a tracker.Tracker, so an experiment can run on a host with
// no eye tracker attached.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/nede-neuro/go-nede/pkg/geom"
	"github.com/nede-neuro/go-nede/pkg/relay/wire"
	"github.com/nede-neuro/go-nede/pkg/tracker"
)

var (
	// ErrNoBridge is returned when no bridge is connected.
	ErrNoBridge = errors.New("no tracker bridge connected")
)

// BridgeConnection is one connected bridge.
type BridgeConnection struct {
	ID        string
	Tracker   string
	Conn      *websocket.Conn
	Connected time.Time
	LastSeen  time.Time

	mu sync.Mutex
}

// Send writes a message to the bridge.
func (b *BridgeConnection) Send(msg *wire.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	return b.Conn.WriteMessage(websocket.TextMessage, data)
}

type clockSample struct {
	t  int64
	at time.Time
	ok bool
}

// Relay manages bridge connections. The most recently connected bridge is
// the active one.
type Relay struct {
	mu      sync.RWMutex
	bridges map[string]*BridgeConnection
	active  string
	log     *slog.Logger

	clock   clockSample
	gaze    geom.Vec2
	hasGaze bool
	buttons []int

	onGaze   func(bridgeID string, g *wire.GazeData)
	onButton func(bridgeID string, b *wire.ButtonData)

	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	gazeReceived     atomic.Uint64
}

// New creates a relay.
func New(logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		bridges: make(map[string]*BridgeConnection),
		log:     logger.With("component", "relay"),
	}
}

// OnGaze sets the callback for incoming gaze samples.
func (r *Relay) OnGaze(callback func(bridgeID string, g *wire.GazeData)) {
	r.mu.Lock()
	r.onGaze = callback
	r.mu.Unlock()
}

// OnButton sets the callback for incoming button events.
func (r *Relay) OnButton(callback func(bridgeID string, b *wire.ButtonData)) {
	r.mu.Lock()
	r.onButton = callback
	r.mu.Unlock()
}

// RegisterRoutes registers the bridge websocket endpoint.
func (r *Relay) RegisterRoutes(app *fiber.App) {
	app.Use("/ws/bridge", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/bridge", websocket.New(r.handleBridge))
	app.Get("/ws/bridge/:id", websocket.New(r.handleBridge))
}

func (r *Relay) handleBridge(c *websocket.Conn) {
	id := c.Params("id")
	if id == "" {
		id = uuid.NewString()
	}

	b := &BridgeConnection{
		ID:        id,
		Conn:      c,
		Connected: time.Now(),
		LastSeen:  time.Now(),
	}

	r.mu.Lock()
	r.bridges[id] = b
	r.active = id
	count := len(r.bridges)
	r.mu.Unlock()
	r.log.Info("bridge connected", "bridge", id, "total", count)

	defer func() {
		r.mu.Lock()
		delete(r.bridges, id)
		if r.active == id {
			r.active = ""
			for other := range r.bridges {
				r.active = other
				break
			}
		}
		count := len(r.bridges)
		r.mu.Unlock()
		r.log.Info("bridge disconnected", "bridge", id, "total", count)
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			r.log.Debug("bridge read error", "bridge", id, "error", err)
			return
		}
		b.mu.Lock()
		b.LastSeen = time.Now()
		b.mu.Unlock()

		r.messagesReceived.Add(1)
		r.handleMessage(b, data)
	}
}

func (r *Relay) handleMessage(b *BridgeConnection, data []byte) {
	msg, err := wire.ParseMessage(data)
	if err != nil {
		r.log.Debug("parse error", "bridge", b.ID, "error", err)
		return
	}

	r.mu.RLock()
	gazeCb, buttonCb := r.onGaze, r.onButton
	active := r.active == b.ID
	r.mu.RUnlock()

	switch msg.Type {
	case wire.TypeHello:
		if h, err := msg.GetHelloData(); err == nil {
			b.mu.Lock()
			b.Tracker = h.Tracker
			b.mu.Unlock()
		}

	case wire.TypeClock:
		if c, err := msg.GetClockData(); err == nil && active {
			r.setClock(c.T)
		}

	case wire.TypeGaze:
		r.gazeReceived.Add(1)
		g, err := msg.GetGazeData()
		if err != nil {
			return
		}
		if active {
			r.mu.Lock()
			r.gaze, r.hasGaze = geom.V2(g.X, g.Y), g.Valid
			r.mu.Unlock()
			r.setClock(g.T)
		}
		if gazeCb != nil {
			gazeCb(b.ID, g)
		}

	case wire.TypeButton:
		bd, err := msg.GetButtonData()
		if err != nil {
			return
		}
		if active && bd.Pressed {
			r.mu.Lock()
			r.buttons = append(r.buttons, bd.Button)
			r.mu.Unlock()
		}
		if buttonCb != nil {
			buttonCb(b.ID, bd)
		}

	case wire.TypePing:
		var p wire.PingData
		_ = msg.ParseData(&p)
		if pong, err := wire.NewPongMessage(p.ID, msg.Timestamp, time.Now().UnixMilli()); err == nil {
			_ = r.send(b, pong)
		}
	}
}

func (r *Relay) setClock(t int64) {
	r.mu.Lock()
	if !r.clock.ok || t >= r.clock.t {
		r.clock = clockSample{t: t, at: time.Now(), ok: true}
	}
	r.mu.Unlock()
}

func (r *Relay) send(b *BridgeConnection, msg *wire.Message) error {
	r.messagesSent.Add(1)
	if err := b.Send(msg); err != nil {
		return fmt.Errorf("send to bridge %s: %w", b.ID, err)
	}
	return nil
}

// sendActive sends to the active bridge.
func (r *Relay) sendActive(msg *wire.Message, err error) error {
	if err != nil {
		return err
	}
	r.mu.RLock()
	b, ok := r.bridges[r.active]
	r.mu.RUnlock()
	if !ok {
		return ErrNoBridge
	}
	return r.send(b, msg)
}

// WaitForBridge blocks until a bridge is connected.
func (r *Relay) WaitForBridge(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if r.BridgeCount() > 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Start implements tracker.Tracker. It waits for a bridge, then asks it to
// open the session log.
func (r *Relay) Start(ctx context.Context, filename string) error {
	if err := r.WaitForBridge(ctx); err != nil {
		return fmt.Errorf("wait for bridge: %w", err)
	}
	return r.sendActive(wire.NewStartMessage(filename))
}

// Stop implements tracker.Tracker.
func (r *Relay) Stop() error {
	return r.sendActive(wire.NewStopMessage())
}

// Now implements tracker.Tracker: the last clock reading plus the time
// elapsed since it arrived.
func (r *Relay) Now() int64 {
	r.mu.RLock()
	c := r.clock
	r.mu.RUnlock()
	if !c.ok {
		return 0
	}
	return c.t + time.Since(c.at).Milliseconds()
}

// Message implements tracker.Tracker.
func (r *Relay) Message(text string) error {
	return r.sendActive(wire.NewTextMessage(text))
}

// SendCode implements tracker.Tracker.
func (r *Relay) SendCode(code tracker.Code) error {
	return r.sendActive(wire.NewCodeMessage(int(code)))
}

// Gaze implements tracker.Tracker.
func (r *Relay) Gaze() (geom.Vec2, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gaze, r.hasGaze
}

// Button implements tracker.Tracker.
func (r *Relay) Button() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.buttons) == 0 {
		return tracker.ButtonNone
	}
	b := r.buttons[0]
	r.buttons = r.buttons[1:]
	return b
}

// Flush implements tracker.Tracker.
func (r *Relay) Flush() {
	r.mu.Lock()
	r.buttons = nil
	r.mu.Unlock()
	if err := r.sendActive(wire.NewFlushMessage()); err != nil {
		r.log.Warn("flush", "error", err)
	}
}

// GetBridge returns a bridge by ID.
func (r *Relay) GetBridge(id string) *BridgeConnection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bridges[id]
}

// BridgeCount returns the number of connected bridges.
func (r *Relay) BridgeCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bridges)
}

// Stats contains relay statistics.
type Stats struct {
	BridgeCount      int    `json:"bridge_count"`
	Active           string `json:"active"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	GazeReceived     uint64 `json:"gaze_received"`
}

// GetStats returns relay statistics.
func (r *Relay) GetStats() Stats {
	r.mu.RLock()
	active := r.active
	r.mu.RUnlock()
	return Stats{
		BridgeCount:      r.BridgeCount(),
		Active:           active,
		MessagesReceived: r.messagesReceived.Load(),
		MessagesSent:     r.messagesSent.Load(),
		GazeReceived:     r.gazeReceived.Load(),
	}
}

// BridgeInfo describes a connected bridge.
type BridgeInfo struct {
	ID        string    `json:"id"`
	Tracker   string    `json:"tracker"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
}

// GetBridgeInfos returns info about every connected bridge.
func (r *Relay) GetBridgeInfos() []BridgeInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]BridgeInfo, 0, len(r.bridges))
	for _, b := range r.bridges {
		b.mu.Lock()
		infos = append(infos, BridgeInfo{
			ID:        b.ID,
			Tracker:   b.Tracker,
			Connected: b.Connected,
			LastSeen:  b.LastSeen,
		})
		b.mu.Unlock()
	}
	return infos
}

// RegisterAPIRoutes registers bridge management routes.
func (r *Relay) RegisterAPIRoutes(api fiber.Router) {
	bridges := api.Group("/bridges")

	bridges.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"bridges": r.GetBridgeInfos(),
			"count":   r.BridgeCount(),
		})
	})

	bridges.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(r.GetStats())
	})

	bridges.Post("/message", func(c *fiber.Ctx) error {
		var body wire.TextData
		if err := c.BodyParser(&body); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		}
		if err := r.Message(body.Text); err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"status": "sent"})
	})
}

var _ tracker.Tracker = (*Relay)(nil)
