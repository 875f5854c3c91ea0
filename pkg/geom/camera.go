package geom

import "math"

// DefaultFOV is the vertical field of view in degrees used when none is set.
const DefaultFOV = 60.0

// Camera is a pinhole camera with a vertical field of view.
type Camera struct {
	Position Vec3
	Rotation Quat
	FOV      float64 // vertical, degrees
	Width    float64 // pixels
	Height   float64 // pixels
}

// NewCamera returns a camera at the origin facing +Z.
func NewCamera(width, height float64) Camera {
	return Camera{
		Rotation: Identity,
		FOV:      DefaultFOV,
		Width:    width,
		Height:   height,
	}
}

// Forward returns the viewing direction.
func (c Camera) Forward() Vec3 { return c.Rotation.Forward() }

// Right returns the camera's right axis.
func (c Camera) Right() Vec3 { return c.Rotation.Right() }

// focal returns the focal length in pixels.
func (c Camera) focal() float64 {
	fov := c.FOV
	if fov <= 0 {
		fov = DefaultFOV
	}
	return (c.Height / 2) / math.Tan(Deg2Rad(fov)/2)
}

// WorldToScreen projects p to screen pixels with a bottom-left origin.
// The returned Z is the depth along the viewing direction; points behind
// the camera have negative Z and mirrored X, Y.
func (c Camera) WorldToScreen(p Vec3) Vec3 {
	local := c.Rotation.Inverse().Rotate(p.Sub(c.Position))
	f := c.focal()
	return Vec3{
		X: c.Width/2 + local.X*f/local.Z,
		Y: c.Height/2 + local.Y*f/local.Z,
		Z: local.Z,
	}
}
