// Package session wires one experiment or replay together and runs it on
// a single frame loop.
package session

import (
	"log/slog"

	"github.com/nede-neuro/go-nede/pkg/geom"
	"github.com/nede-neuro/go-nede/pkg/navigation"
	"github.com/nede-neuro/go-nede/pkg/replay"
	"github.com/nede-neuro/go-nede/pkg/scene"
	"github.com/nede-neuro/go-nede/pkg/trial"
	"github.com/nede-neuro/go-nede/pkg/web"
)

// Context carries the collaborators of a session. Exactly one of
// Scheduler, Replayer or Walker is set.
type Context struct {
	Scheduler *trial.Scheduler
	Replayer  *replay.Engine
	Walker    *navigation.Navigator

	Monitor *web.Server // optional
	Logger  *slog.Logger
}

// Camera returns the camera of whichever component drives the session.
func (c *Context) Camera() geom.Camera {
	switch {
	case c.Scheduler != nil:
		return c.Scheduler.Camera()
	case c.Replayer != nil:
		return c.Replayer.Camera()
	case c.Walker != nil:
		cam := geom.NewCamera(0, 0)
		cam.Position, cam.Rotation = c.Walker.Position(), c.Walker.Rotation()
		return cam
	}
	return geom.Camera{}
}

// Driver returns the frame driver for the session.
func (c *Context) Driver() (Driver, error) {
	switch {
	case c.Scheduler != nil:
		return &LiveDriver{Scheduler: c.Scheduler}, nil
	case c.Replayer != nil:
		return NewReplayDriver(c.Replayer), nil
	case c.Walker != nil:
		return &WalkDriver{Nav: c.Walker}, nil
	}
	return nil, ErrNoDriver
}

// Status implements web.Source.
func (c *Context) Status() any {
	switch {
	case c.Scheduler != nil:
		return c.Scheduler.Status()
	case c.Replayer != nil:
		return c.Replayer.Status()
	case c.Walker != nil:
		return c.Walker.State()
	}
	return nil
}

// Objects implements web.Source.
func (c *Context) Objects() []scene.Object {
	switch {
	case c.Scheduler != nil:
		return c.Scheduler.Objects()
	case c.Replayer != nil:
		return c.Replayer.Objects()
	}
	return nil
}

// Commands returns the monitor command queue, or nil without a monitor.
func (c *Context) Commands() <-chan web.Command {
	if c.Monitor == nil {
		return nil
	}
	return c.Monitor.Commands()
}

var _ web.Source = (*Context)(nil)
