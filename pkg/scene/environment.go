package scene

import (
	"math"

	"github.com/nede-neuro/go-nede/pkg/geom"
	"github.com/nede-neuro/go-nede/pkg/visibility"
)

// Cubby is a square placement cell off a hallway.
type Cubby struct {
	Name      string      `yaml:"name" json:"name"`
	Position  geom.Vec3   `yaml:"-" json:"position"` // floor center
	Yaw       float64     `yaml:"yaw" json:"yaw"`    // degrees
	Locations []geom.Vec3 `yaml:"-" json:"locations"`
}

// Rotation returns the cubby's orientation.
func (c Cubby) Rotation() geom.Quat { return geom.FromYaw(c.Yaw) }

// Contains reports whether p lies over the cubby floor.
func (c Cubby) Contains(p geom.Vec3, cellSize float64) bool {
	rot := c.Rotation()
	d := p.Sub(c.Position)
	half := cellSize / 2
	return math.Abs(d.Dot(rot.Right())) <= half && math.Abs(d.Dot(rot.Forward())) <= half
}

// Topology returns the wall reference points for an object centered at
// center in this cubby.
func (c Cubby) Topology(center geom.Vec3, cellSize float64) visibility.Topology {
	rot := c.Rotation()
	return visibility.NewTopology(c.Position, rot.Forward(), rot.Right(), center, cellSize)
}

// Wall is a vertical wall standing on the segment A-B of the ground plane.
type Wall struct {
	A, B geom.Vec2 // x, z
}

// Environment is the static geometry of a level.
type Environment struct {
	Name     string
	CellSize float64
	Cubbies  []Cubby
	Walls    []Wall
}

// NewEnvironment returns an empty level with the standard cell size.
func NewEnvironment(name string) *Environment {
	return &Environment{Name: name, CellSize: visibility.CellSize}
}

// FloorAt casts a ray straight down from p and returns the index of the
// cubby whose floor it hits.
func (e *Environment) FloorAt(p geom.Vec3) (int, bool) {
	for i, c := range e.Cubbies {
		if p.Y >= c.Position.Y && c.Contains(p, e.CellSize) {
			return i, true
		}
	}
	return -1, false
}

// Obstructed reports whether a wall crosses the ray from origin along dir
// within dist. Walls are infinitely tall, so only the ground-plane
// projection of the ray matters.
func (e *Environment) Obstructed(origin, dir geom.Vec3, dist float64) bool {
	if dist <= 0 {
		return false
	}
	o := origin.XZ()
	end := origin.Add(dir.Normalize().Scale(dist)).XZ()
	for _, w := range e.Walls {
		if segmentsCross(o, end, w.A, w.B) {
			return true
		}
	}
	return false
}

var _ visibility.Occluder = (*Environment)(nil)

func cross2(a, b geom.Vec2) float64 { return a.X*b.Y - a.Y*b.X }

// segmentsCross reports whether segments p1-p2 and q1-q2 intersect,
// endpoints included.
func segmentsCross(p1, p2, q1, q2 geom.Vec2) bool {
	r := p2.Sub(p1)
	s := q2.Sub(q1)
	denom := cross2(r, s)
	qp := q1.Sub(p1)
	if denom == 0 {
		// Parallel; collinear overlap does not count as blocking.
		return false
	}
	t := cross2(qp, s) / denom
	u := cross2(qp, r) / denom
	return t >= 0 && t <= 1 && u >= 0 && u <= 1
}

// Attach finds the cubby under o and fixes its wall topology. Objects
// outside every cubby are left untracked and never counted visible.
func (e *Environment) Attach(o *Object) bool {
	i, ok := e.FloorAt(o.Position())
	if !ok {
		o.Cubby, o.Tracked = -1, false
		return false
	}
	e.AttachTo(o, i)
	return true
}

// AttachTo ties o to cubby i.
func (e *Environment) AttachTo(o *Object, i int) {
	o.Cubby = i
	o.Topology = e.Cubbies[i].Topology(o.Position(), e.CellSize)
	o.Tracked = true
}
