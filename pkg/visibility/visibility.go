// Package visibility computes how much of an object in a hallway cubby is
// on screen, and where.
//
// The same Compute call runs in the live scheduler and in replay, so gaze
// to object correspondence in both paths comes from identical arithmetic.
package visibility

import (
	"math"

	"github.com/nede-neuro/go-nede/pkg/geom"
)

const (
	// CellSize is the side length of a cubby in world units.
	CellSize = 5.0

	// Padding is added on every side of a reported rectangle, in pixels.
	Padding = 50.0

	// GazeMargin is how far outside a padded rectangle gaze still counts
	// as a hit, in pixels.
	GazeMargin = 50.0
)

// Occluder answers the forward raycast of the hallway test.
type Occluder interface {
	// Obstructed reports whether anything blocks the ray from origin along
	// dir within dist.
	Obstructed(origin, dir geom.Vec3, dist float64) bool
}

// OccluderFunc adapts a function to Occluder.
type OccluderFunc func(origin, dir geom.Vec3, dist float64) bool

// Obstructed calls f.
func (f OccluderFunc) Obstructed(origin, dir geom.Vec3, dist float64) bool {
	return f(origin, dir, dist)
}

// NoWalls never obstructs.
var NoWalls Occluder = OccluderFunc(func(geom.Vec3, geom.Vec3, float64) bool { return false })

// Topology holds the two reference points of the cubby wall on the
// object's side. It is fixed once the object is placed.
type Topology struct {
	Wall1    geom.Vec3 // entrance corner, facing the hallway
	Wall2    geom.Vec3 // back corner
	CellSize float64
}

// NewTopology derives the wall points for an object centered at center in
// a cubby at cubbyPos with the given forward and right axes.
func NewTopology(cubbyPos, forward, right, center geom.Vec3, cellSize float64) Topology {
	if cellSize <= 0 {
		cellSize = CellSize
	}
	side := right
	if center.Sub(cubbyPos).Dot(right) <= 0 {
		side = right.Neg()
	}
	half := cellSize / 2
	return Topology{
		Wall1:    cubbyPos.Add(forward.Scale(half)).Add(side.Scale(half)),
		Wall2:    cubbyPos.Sub(forward.Scale(half)).Add(side.Scale(half)),
		CellSize: cellSize,
	}
}

// Result is the visible fraction and on-screen rectangle of one object.
// Rect uses a top-left origin and includes Padding; it is empty whenever
// Fraction is 0.
type Result struct {
	Fraction float64
	Rect     geom.Rect
}

// Visible reports whether any part of the object is on screen.
func (r Result) Visible() bool { return r.Fraction > 0 }

// InHallway reports whether the object's cubby opens onto the hallway the
// camera faces: wall1 lies ahead, within one cell of the view axis, and no
// wall stands between the camera and it.
func InHallway(cam geom.Camera, topo Topology, occ Occluder) bool {
	fwd := cam.Forward()
	d := topo.Wall1.Sub(cam.Position)
	fwdDist := d.Dot(fwd)
	rightDist := d.Dot(cam.Right())

	size := topo.CellSize
	if size <= 0 {
		size = CellSize
	}
	if !(fwdDist > 0 && math.Abs(rightDist) < size) {
		return false
	}
	if occ == nil {
		return true
	}
	return !occ.Obstructed(cam.Position, fwd, fwdDist)
}

// OrderWalls projects both wall points and returns them left first, by
// screen x. The order depends on the viewing direction, so it is decided
// again every frame.
func OrderWalls(cam geom.Camera, topo Topology) (left, right geom.Vec3) {
	a := cam.WorldToScreen(topo.Wall1)
	b := cam.WorldToScreen(topo.Wall2)
	if b.X < a.X {
		return b, a
	}
	return a, b
}

// Compute returns the visible fraction and rectangle of a box with the
// given world corners.
//
// Fraction is the clipped width over the unclipped width, clamped to
// [0, 1]. A box whose projected width is zero, or whose width is not a
// finite number, is reported as not visible.
func Compute(cam geom.Camera, corners [8]geom.Vec3, topo Topology, occ Occluder) Result {
	if !InHallway(cam, topo, occ) {
		return Result{}
	}

	left, right := math.Inf(1), math.Inf(-1)
	bottom, top := math.Inf(1), math.Inf(-1)
	for _, c := range corners {
		p := cam.WorldToScreen(c)
		left = math.Min(left, p.X)
		right = math.Max(right, p.X)
		bottom = math.Min(bottom, p.Y)
		top = math.Max(top, p.Y)
	}

	leftWall, rightWall := OrderWalls(cam, topo)
	if left > cam.Width || right < 0 || left > rightWall.X || right < leftWall.X {
		return Result{}
	}

	visLeft := math.Max(math.Max(left, leftWall.X), 0)
	visRight := math.Min(math.Min(right, rightWall.X), cam.Width)

	frac := (visRight - visLeft) / (right - left)
	if math.IsNaN(frac) || math.IsInf(frac, 0) {
		return Result{}
	}
	frac = geom.Clamp(frac, 0, 1)
	if frac == 0 {
		return Result{}
	}

	return Result{
		Fraction: frac,
		Rect: geom.Rect{
			X: visLeft - Padding,
			Y: cam.Height - top - Padding,
			W: visRight - visLeft + 2*Padding,
			H: top - bottom + 2*Padding,
		},
	}
}

// GazeHit reports whether gaze (top-left origin pixels) falls strictly
// inside r's rectangle grown by margin.
func GazeHit(r Result, gaze geom.Vec2, margin float64) bool {
	if !r.Visible() {
		return false
	}
	return gaze.X > r.Rect.X-margin && gaze.X < r.Rect.X+r.Rect.W+margin &&
		gaze.Y > r.Rect.Y-margin && gaze.Y < r.Rect.Y+r.Rect.H+margin
}
