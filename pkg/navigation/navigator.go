package navigation

import (
	"fmt"
	"math"
	"sync"

	"github.com/nede-neuro/go-nede/pkg/geom"
)

// Config holds navigator settings.
type Config struct {
	// MoveSpeed is the forward speed in units per second.
	MoveSpeed float64

	// TurnRadius is the radius of every 90 degree turn.
	TurnRadius float64

	// StartDelay is how long the navigator waits, in seconds, before it
	// starts moving.
	StartDelay float64

	// Height is the y coordinate the viewpoint travels at.
	Height float64
}

// DefaultConfig returns the standard walking settings.
func DefaultConfig() Config {
	return Config{
		MoveSpeed:  3.0,
		TurnRadius: 5.0,
		StartDelay: 1.5,
		Height:     1.0,
	}
}

// Navigator walks a Route. It is driven by Tick from a single frame loop;
// the mutex only guards reads from status endpoints.
type Navigator struct {
	mu sync.RWMutex

	cfg   Config
	route Route
	speed float64

	pos      geom.Vec3
	yaw      float64
	target   geom.Vec3
	index    int
	end      int
	move     Move
	next     Move
	distance float64
	elapsed  float64
	done     bool
}

// New creates a navigator at the start of r. Call Begin before Tick.
func New(r Route, cfg Config) *Navigator {
	return &Navigator{cfg: cfg, route: r, speed: cfg.MoveSpeed}
}

// Begin places the viewpoint on point start, facing point start+1, and
// arranges for the walk to finish on reaching index end. An end past the
// route is clamped.
func (n *Navigator) Begin(start, end int) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.route.Len() < 2 {
		return ErrShortRoute
	}
	if start < 0 || start >= n.route.Len()-1 {
		return fmt.Errorf("%w: %d of %d", ErrStartOutOfRange, start, n.route.Len())
	}
	p := n.route.Points[start]
	n.pos = geom.V3(p.X, n.cfg.Height, p.Y)
	n.index = start + 1
	n.end = end
	n.target = n.pointAt(n.index)
	n.yaw = yawTo(n.pos, n.target)
	n.move = Straight
	n.next = n.moveAt(n.index)
	n.distance = 0
	n.elapsed = 0
	n.done = false
	return nil
}

func (n *Navigator) pointAt(i int) geom.Vec3 {
	p := n.route.Points[i]
	return geom.V3(p.X, n.pos.Y, p.Y)
}

// moveAt classifies the move at point i. The last point has nothing after
// it and counts as straight.
func (n *Navigator) moveAt(i int) Move {
	if i < 1 || i+1 >= n.route.Len() {
		return Straight
	}
	m, _ := FindNextMove(n.route.Points[i-1], n.route.Points[i], n.route.Points[i+1])
	return m
}

func yawTo(from, to geom.Vec3) float64 {
	d := to.Sub(from)
	if d.X == 0 && d.Z == 0 {
		return 0
	}
	return geom.Rad2Deg(math.Atan2(d.X, d.Z))
}

// angleTo returns the unsigned angle in degrees between forward and the
// direction from pos to target.
func angleTo(forward, pos, target geom.Vec3) float64 {
	d := target.Sub(pos)
	l := d.Len()
	if l == 0 {
		return 0
	}
	c := geom.Clamp(forward.Dot(d)/(forward.Len()*l), -1, 1)
	return geom.Rad2Deg(math.Acos(c))
}

// Tick advances the walk by dt seconds. It reports whether the walk is
// still in progress.
func (n *Navigator) Tick(dt float64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.done {
		return false
	}
	n.elapsed += dt
	if n.elapsed < n.cfg.StartDelay {
		return true
	}

	step := n.speed * dt
	n.pos = n.pos.Add(geom.FromYaw(n.yaw).Forward().Scale(step))
	n.distance += step

	if n.move == Straight {
		reach := step
		if n.next != Straight {
			reach = n.cfg.TurnRadius
		}
		if n.pos.Dist(n.target) < reach {
			n.advance()
		}
		return !n.done
	}

	spin := n.spinSpeed()
	if angleTo(geom.FromYaw(n.yaw).Forward(), n.pos, n.target) < dt*spin {
		prev := n.route.Points[n.index-1]
		switch {
		case prev.X == n.target.X:
			n.pos.X = n.target.X
		case prev.Y == n.target.Z:
			n.pos.Z = n.target.Z
		}
		n.yaw = yawTo(n.pos, n.target)
		n.move = Straight
	} else if n.move == TurnRight {
		n.yaw += dt * spin
	} else {
		n.yaw -= dt * spin
	}
	return true
}

func (n *Navigator) advance() {
	n.index++
	if n.index == n.end || n.index >= n.route.Len()-1 {
		n.done = true
		if n.index >= n.route.Len() {
			n.index = n.route.Len() - 1
		}
		return
	}
	n.move = n.next
	n.next = n.moveAt(n.index)
	n.target = n.pointAt(n.index)
}

// spinSpeed is recomputed from the current speed so a speed change keeps
// the turn radius.
func (n *Navigator) spinSpeed() float64 {
	return 180 * n.speed / (math.Pi * n.cfg.TurnRadius)
}

// SetSpeed changes the forward speed.
func (n *Navigator) SetSpeed(s float64) {
	n.mu.Lock()
	n.speed = s
	n.mu.Unlock()
}

// Speed returns the forward speed.
func (n *Navigator) Speed() float64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.speed
}

// SetPosition moves the viewpoint without changing its route progress.
func (n *Navigator) SetPosition(p geom.Vec3) {
	n.mu.Lock()
	n.pos = p
	n.target.Y = p.Y
	n.mu.Unlock()
}

// Position returns the viewpoint position.
func (n *Navigator) Position() geom.Vec3 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.pos
}

// Rotation returns the viewpoint orientation.
func (n *Navigator) Rotation() geom.Quat {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return geom.FromYaw(n.yaw)
}

// Yaw returns the heading in degrees.
func (n *Navigator) Yaw() float64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.yaw
}

// State is a snapshot of navigator progress.
type State struct {
	Move     Move      `json:"move"`
	Next     Move      `json:"next"`
	Index    int       `json:"index"`
	End      int       `json:"end"`
	Distance float64   `json:"distance"`
	Position geom.Vec3 `json:"position"`
	Yaw      float64   `json:"yaw"`
	Done     bool      `json:"done"`
}

// State returns a snapshot.
func (n *Navigator) State() State {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return State{
		Move:     n.move,
		Next:     n.next,
		Index:    n.index,
		End:      n.end,
		Distance: n.distance,
		Position: n.pos,
		Yaw:      n.yaw,
		Done:     n.done,
	}
}

// Distance returns how far the viewpoint has traveled.
func (n *Navigator) Distance() float64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.distance
}

// Done reports whether the walk has finished.
func (n *Navigator) Done() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.done
}

// Route returns the route being walked.
func (n *Navigator) Route() Route { return n.route }
