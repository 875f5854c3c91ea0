package trial

import (
	"math"

	"github.com/nede-neuro/go-nede/pkg/geom"
	"github.com/nede-neuro/go-nede/pkg/navigation"
	"github.com/nede-neuro/go-nede/pkg/protocol"
	"github.com/nede-neuro/go-nede/pkg/tracker"
)

// Leader speed factors.
const (
	BrakeFactor = 0.2
	ZoomFactor  = 1.5
)

// BrakeState is where the leader is in its brake cycle.
type BrakeState int

const (
	Cruising BrakeState = iota
	Braking
	CatchingUp
)

// String returns the state name.
func (b BrakeState) String() string {
	switch b {
	case Braking:
		return "braking"
	case CatchingUp:
		return "catching_up"
	default:
		return "cruising"
	}
}

// Leader is the vehicle the subject follows in a Follow session.
type Leader struct {
	Nav    *navigation.Navigator
	Lights bool
	State  BrakeState
}

// startLeader puts the leader on the route one leg ahead of the camera.
func (s *Scheduler) startLeader(start int) error {
	nav := navigation.New(*s.cfg.Route, s.navConfig())
	end := navigation.EndIndex(*s.cfg.Route, start, math.MaxInt)
	if err := nav.Begin(start, end); err != nil {
		return err
	}
	pos := s.cam.Position.Add(s.cam.Forward().Scale(s.hdr.DistanceToLeader))
	pos.Y = 0
	nav.SetPosition(pos)
	s.leader = &Leader{Nav: nav}
	return nil
}

// scheduleBrake draws the next brake time.
func (s *Scheduler) scheduleBrake(t float64) {
	s.nextBrake = t + s.uniform(s.hdr.MinBrakeDelay, s.hdr.MaxBrakeDelay)
}

// updateFollow runs the brake cycle for time t (seconds).
func (s *Scheduler) updateFollow(t float64) {
	l := s.leader
	if l == nil {
		return
	}
	if t > s.nextBrake {
		s.nextBrake = math.Inf(1)
		l.Lights = true
		l.State = Braking
		l.Nav.SetSpeed(s.hdr.MoveSpeed * BrakeFactor)
		s.emit(protocol.Entry{Kind: protocol.KindLeader, Leader: protocol.LeaderSlow})
	}
	if s.tr.Button() == tracker.ButtonBrake && l.State == Braking {
		l.Lights = false
		l.State = CatchingUp
		l.Nav.SetSpeed(s.hdr.MoveSpeed * ZoomFactor)
		s.emit(protocol.Entry{Kind: protocol.KindLeader, Leader: protocol.LeaderFast})
	}
	if l.State == CatchingUp && l.Nav.Distance() >= s.follower.Distance() {
		l.State = Cruising
		l.Nav.SetSpeed(s.hdr.MoveSpeed)
		s.emit(protocol.Entry{Kind: protocol.KindLeader, Leader: protocol.LeaderNormal})
		s.scheduleBrake(t)
	}
}

// LeaderPosition returns where the leader is, if there is one.
func (s *Scheduler) LeaderPosition() (geom.Vec3, bool) {
	if s.leader == nil {
		return geom.Vec3{}, false
	}
	return s.leader.Nav.Position(), true
}
