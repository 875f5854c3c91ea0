// Package web serves the experimenter monitor: session status, the live
// object list, speed controls and websocket streams of logged events.
package web

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/nede-neuro/go-nede/pkg/geom"
	"github.com/nede-neuro/go-nede/pkg/hub"
	"github.com/nede-neuro/go-nede/pkg/protocol"
	"github.com/nede-neuro/go-nede/pkg/scene"
)

// Source is what the monitor shows. Implementations must be safe to call
// from any goroutine.
type Source interface {
	Status() any
	Objects() []scene.Object
}

// CommandKind names a monitor command.
type CommandKind string

// Monitor commands.
const (
	CmdTimeScale CommandKind = "timescale"
	CmdPause     CommandKind = "pause"
	CmdRun       CommandKind = "run"
	CmdStep      CommandKind = "step"
	CmdQuit      CommandKind = "quit"
)

// Command is queued for the frame loop, which applies it between ticks.
type Command struct {
	Kind  CommandKind `json:"kind"`
	Value float64     `json:"value,omitempty"`
}

// Stream topics.
const (
	TopicEvent      = "event"
	TopicVisibility = "visibility"
	TopicStatus     = "status"
)

// EventView is a logged entry as sent to monitors.
type EventView struct {
	Kind    string `json:"kind"`
	Time    int64  `json:"time"`
	Payload string `json:"payload"`
}

// VisibleView is one visibility annotation as sent to monitors.
type VisibleView struct {
	Number   int       `json:"number"`
	Time     int64     `json:"time"`
	Rect     geom.Rect `json:"rect"`
	Fraction float64   `json:"fraction"`
	GazeHit  bool      `json:"gaze_hit"`
}

// Config configures a Server.
type Config struct {
	Port      string
	StaticDir string // optional monitor frontend
	Logger    *slog.Logger
}

// Server is the monitor.
type Server struct {
	cfg      Config
	app      *fiber.App
	src      Source
	log      *slog.Logger
	commands chan Command

	statusHub     *hub.Hub
	eventHub      *hub.Hub
	visibilityHub *hub.Hub
}

// NewServer creates a monitor for src.
func NewServer(cfg Config, src Source) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Server{
		cfg:           cfg,
		src:           src,
		log:           cfg.Logger.With("component", "web"),
		commands:      make(chan Command, 64),
		statusHub:     hub.New(TopicStatus, cfg.Logger),
		eventHub:      hub.New(TopicEvent, cfg.Logger),
		visibilityHub: hub.New(TopicVisibility, cfg.Logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "nede monitor",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())
	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/objects", s.handleObjects)
	api.Post("/timescale", s.handleTimeScale)
	api.Post("/pause", s.handleSimple(CmdPause))
	api.Post("/run", s.handleSimple(CmdRun))
	api.Post("/step", s.handleSimple(CmdStep))
	api.Post("/quit", s.handleSimple(CmdQuit))

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(s.handleEventsWS))
	app.Get("/ws/visibility", websocket.New(s.handleVisibilityWS))
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// App returns the fiber app so other routes can share the port.
func (s *Server) App() *fiber.App { return s.app }

// Commands returns the queue of monitor commands.
func (s *Server) Commands() <-chan Command { return s.commands }

// Start runs the hubs and serves until the listener fails or Shutdown is
// called. The hubs stop when ctx is done.
func (s *Server) Start(ctx context.Context) error {
	go s.statusHub.Run(ctx)
	go s.eventHub.Run(ctx)
	go s.visibilityHub.Run(ctx)

	s.log.Info("monitor listening", "url", fmt.Sprintf("http://localhost:%s", s.cfg.Port))
	return s.app.Listen(":" + s.cfg.Port)
}

// StartAsync runs Start in a goroutine.
func (s *Server) StartAsync(ctx context.Context) {
	go func() {
		if err := s.Start(ctx); err != nil {
			s.log.Warn("monitor stopped", "error", err)
		}
	}()
}

// Shutdown stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// PublishEntry streams a logged entry. Visible entries also go to the
// visibility stream.
func (s *Server) PublishEntry(e protocol.Entry) {
	v := EventView{Kind: e.Kind.String(), Time: e.Time, Payload: e.Payload()}
	if e.Kind == protocol.KindVisible {
		if e.HasAt {
			v.Time = e.At
		}
		s.publish(s.visibilityHub, TopicVisibility, VisibleView{
			Number:   e.Number,
			Time:     v.Time,
			Rect:     e.Rect,
			Fraction: e.Fraction,
			GazeHit:  e.GazeHit,
		})
	}
	s.publish(s.eventHub, TopicEvent, v)
}

// PublishStatus streams the current status of the source.
func (s *Server) PublishStatus() {
	s.publish(s.statusHub, TopicStatus, s.src.Status())
}

func (s *Server) publish(h *hub.Hub, topic string, v any) {
	if err := h.Publish(topic, v); err != nil {
		s.log.Debug("publish", "topic", topic, "error", err)
	}
}

func (s *Server) enqueue(cmd Command) bool {
	select {
	case s.commands <- cmd:
		return true
	default:
		return false
	}
}
