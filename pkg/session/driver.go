package session

import (
	"errors"

	"github.com/nede-neuro/go-nede/pkg/geom"
	"github.com/nede-neuro/go-nede/pkg/navigation"
	"github.com/nede-neuro/go-nede/pkg/replay"
	"github.com/nede-neuro/go-nede/pkg/trial"
	"github.com/nede-neuro/go-nede/pkg/web"
)

// Driver advances a session by one frame at a time. All methods are
// called from the loop goroutine.
type Driver interface {
	// Frame runs one frame of dt seconds and reports whether the session
	// is still running.
	Frame(dt float64) (bool, error)

	// Apply executes a monitor command between frames. It reports whether
	// the session should stop.
	Apply(cmd web.Command) (bool, error)

	// Close ends the session and releases its logs.
	Close() error
}

// LiveDriver runs a trial scheduler. Step loads the next trial; speed
// commands do not apply to a live session.
type LiveDriver struct {
	Scheduler *trial.Scheduler
}

// Frame implements Driver.
func (d *LiveDriver) Frame(dt float64) (bool, error) {
	return d.Scheduler.Tick(dt)
}

// Apply implements Driver.
func (d *LiveDriver) Apply(cmd web.Command) (bool, error) {
	switch cmd.Kind {
	case web.CmdQuit:
		return true, nil
	case web.CmdStep:
		d.Scheduler.Reset()
	}
	return false, nil
}

// Close implements Driver.
func (d *LiveDriver) Close() error {
	return d.Scheduler.EndLevel()
}

// ReplayDriver runs a replay engine and maps the speed controls onto it.
type ReplayDriver struct {
	Engine *replay.Engine
	resume float64 // time scale restored by run
}

// NewReplayDriver wraps e.
func NewReplayDriver(e *replay.Engine) *ReplayDriver {
	return &ReplayDriver{Engine: e, resume: e.TimeScale()}
}

// Frame implements Driver.
func (d *ReplayDriver) Frame(dt float64) (bool, error) {
	return d.Engine.Tick(dt) != replay.Finished, nil
}

// Apply implements Driver.
func (d *ReplayDriver) Apply(cmd web.Command) (bool, error) {
	switch cmd.Kind {
	case web.CmdQuit:
		return true, nil
	case web.CmdTimeScale:
		d.Engine.SetTimeScale(cmd.Value)
		if cmd.Value > 0 {
			d.resume = cmd.Value
		}
	case web.CmdPause:
		if s := d.Engine.TimeScale(); s > 0 {
			d.resume = s
		}
		d.Engine.SetTimeScale(0)
	case web.CmdRun:
		if d.resume <= 0 {
			d.resume = 1
		}
		d.Engine.SetTimeScale(d.resume)
	case web.CmdStep:
		if _, err := d.Engine.Step(); err != nil && !errors.Is(err, replay.ErrFinished) {
			return false, err
		}
	}
	return false, nil
}

// Close implements Driver.
func (d *ReplayDriver) Close() error {
	return d.Engine.Close()
}

// WalkDriver walks a navigator along its route. OnPose, if set, sees the
// viewpoint after every frame.
type WalkDriver struct {
	Nav    *navigation.Navigator
	OnPose func(pos geom.Vec3, rot geom.Quat)
}

// Frame implements Driver.
func (d *WalkDriver) Frame(dt float64) (bool, error) {
	walking := d.Nav.Tick(dt)
	if d.OnPose != nil {
		d.OnPose(d.Nav.Position(), d.Nav.Rotation())
	}
	return walking, nil
}

// Apply implements Driver.
func (d *WalkDriver) Apply(cmd web.Command) (bool, error) {
	switch cmd.Kind {
	case web.CmdQuit:
		return true, nil
	case web.CmdTimeScale:
		d.Nav.SetSpeed(cmd.Value)
	}
	return false, nil
}

// Close implements Driver.
func (d *WalkDriver) Close() error { return nil }
