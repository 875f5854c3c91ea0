package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/nede-neuro/go-nede/pkg/hub"
)

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.src.Status())
}

func (s *Server) handleObjects(c *fiber.Ctx) error {
	return c.JSON(s.src.Objects())
}

// TimeScaleRequest is the body of POST /api/timescale.
type TimeScaleRequest struct {
	Scale float64 `json:"scale"`
}

func (s *Server) handleTimeScale(c *fiber.Ctx) error {
	var req TimeScaleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}
	if req.Scale < 0 {
		return c.Status(400).JSON(fiber.Map{"error": "scale must not be negative"})
	}
	return s.queued(c, Command{Kind: CmdTimeScale, Value: req.Scale})
}

func (s *Server) handleSimple(kind CommandKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return s.queued(c, Command{Kind: kind})
	}
}

func (s *Server) queued(c *fiber.Ctx, cmd Command) error {
	if !s.enqueue(cmd) {
		return c.Status(503).JSON(fiber.Map{"error": "command queue full"})
	}
	return c.Status(202).JSON(fiber.Map{"queued": cmd})
}

func (s *Server) handleEventsWS(c *websocket.Conn) {
	s.eventHub.Serve(c)
}

func (s *Server) handleVisibilityWS(c *websocket.Conn) {
	s.visibilityHub.Serve(c)
}

// handleStatusWS greets new subscribers with the current status.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	greet, err := hub.NewEvent(TopicStatus, s.src.Status())
	if err != nil {
		s.statusHub.Serve(c)
		return
	}
	s.statusHub.Serve(c, greet)
}
