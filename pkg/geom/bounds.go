package geom

import "math"

// Bounds is a world-space axis-aligned bounding box.
type Bounds struct {
	Center  Vec3
	Extents Vec3 // half size
}

// BoundsFromSize returns a box centered on c with full size s.
func BoundsFromSize(c, s Vec3) Bounds {
	return Bounds{Center: c, Extents: s.Scale(0.5)}
}

// Size returns the full size of the box.
func (b Bounds) Size() Vec3 { return b.Extents.Scale(2) }

// Min returns the lowest corner.
func (b Bounds) Min() Vec3 { return b.Center.Sub(b.Extents) }

// Max returns the highest corner.
func (b Bounds) Max() Vec3 { return b.Center.Add(b.Extents) }

// Corners returns the eight corners of the box.
func (b Bounds) Corners() [8]Vec3 {
	c, e := b.Center, b.Extents
	return [8]Vec3{
		{c.X - e.X, c.Y - e.Y, c.Z - e.Z},
		{c.X + e.X, c.Y - e.Y, c.Z - e.Z},
		{c.X - e.X, c.Y + e.Y, c.Z - e.Z},
		{c.X + e.X, c.Y + e.Y, c.Z - e.Z},
		{c.X - e.X, c.Y - e.Y, c.Z + e.Z},
		{c.X + e.X, c.Y - e.Y, c.Z + e.Z},
		{c.X - e.X, c.Y + e.Y, c.Z + e.Z},
		{c.X + e.X, c.Y + e.Y, c.Z + e.Z},
	}
}

// Rotated returns the axis-aligned box enclosing b after rotating it by q
// about its own center.
func (b Bounds) Rotated(q Quat) Bounds {
	var ext Vec3
	for _, axis := range [3]Vec3{Right, Up, Forward} {
		r := q.Rotate(axis)
		w := axis.Dot(b.Extents)
		ext.X += math.Abs(r.X) * w
		ext.Y += math.Abs(r.Y) * w
		ext.Z += math.Abs(r.Z) * w
	}
	return Bounds{Center: b.Center, Extents: ext}
}

// Rect is a screen-space rectangle in pixels. X, Y is the top-left corner
// with Y growing downward.
type Rect struct {
	X, Y, W, H float64
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Vec2) bool {
	return p.X >= r.X && p.X <= r.X+r.W && p.Y >= r.Y && p.Y <= r.Y+r.H
}

// Expand grows r by m on every side.
func (r Rect) Expand(m float64) Rect {
	return Rect{r.X - m, r.Y - m, r.W + 2*m, r.H + 2*m}
}
