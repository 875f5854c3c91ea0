package geom

import "math"

// Quat is a unit rotation quaternion.
type Quat struct {
	X, Y, Z, W float64
}

// Identity is the no-op rotation.
var Identity = Quat{0, 0, 0, 1}

// AngleAxis returns a rotation of deg degrees about axis.
// A positive angle about Up turns Forward toward Right.
func AngleAxis(deg float64, axis Vec3) Quat {
	axis = axis.Normalize()
	half := Deg2Rad(deg) / 2
	s := math.Sin(half)
	return Quat{axis.X * s, axis.Y * s, axis.Z * s, math.Cos(half)}
}

// FromYaw returns a rotation of deg degrees about Up.
func FromYaw(deg float64) Quat { return AngleAxis(deg, Up) }

// Mul composes rotations: the result applies b first, then q.
func (q Quat) Mul(b Quat) Quat {
	return Quat{
		q.W*b.X + q.X*b.W + q.Y*b.Z - q.Z*b.Y,
		q.W*b.Y - q.X*b.Z + q.Y*b.W + q.Z*b.X,
		q.W*b.Z + q.X*b.Y - q.Y*b.X + q.Z*b.W,
		q.W*b.W - q.X*b.X - q.Y*b.Y - q.Z*b.Z,
	}
}

// Inverse returns the inverse of a unit quaternion.
func (q Quat) Inverse() Quat { return Quat{-q.X, -q.Y, -q.Z, q.W} }

// Normalize rescales q to unit length. The zero quaternion becomes Identity.
func (q Quat) Normalize() Quat {
	l := math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
	if l == 0 {
		return Identity
	}
	return Quat{q.X / l, q.Y / l, q.Z / l, q.W / l}
}

// Rotate applies q to v.
func (q Quat) Rotate(v Vec3) Vec3 {
	u := Vec3{q.X, q.Y, q.Z}
	t := u.Cross(v).Scale(2)
	return v.Add(t.Scale(q.W)).Add(u.Cross(t))
}

// Forward returns the rotated +Z axis.
func (q Quat) Forward() Vec3 { return q.Rotate(Forward) }

// Right returns the rotated +X axis.
func (q Quat) Right() Vec3 { return q.Rotate(Right) }

// Up returns the rotated +Y axis.
func (q Quat) Up() Vec3 { return q.Rotate(Up) }

// Yaw returns the heading of the forward axis in degrees, in (-180, 180].
func (q Quat) Yaw() float64 {
	f := q.Forward()
	return Rad2Deg(math.Atan2(f.X, f.Z))
}

// ApproxEqual reports whether q and b describe the same rotation within eps.
func (q Quat) ApproxEqual(b Quat, eps float64) bool {
	d := math.Abs(q.X*b.X + q.Y*b.Y + q.Z*b.Z + q.W*b.W)
	return 1-d <= eps
}
