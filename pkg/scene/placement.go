package scene

import "github.com/nede-neuro/go-nede/pkg/geom"

// PanelDepth is the thickness of the panel an image is shown on.
const PanelDepth = 0.1

// FitModel scales a model so the longest side of its rotated world bounds
// equals size and centers those bounds on center. A model with no extent
// is treated as a unit cube.
func FitModel(a Asset, rot geom.Quat, size float64, center geom.Vec3) (float64, geom.Bounds) {
	raw := a.Size
	if raw.MaxComponent() <= 0 {
		raw = geom.V3(1, 1, 1)
	}
	longest := geom.BoundsFromSize(center, raw).Rotated(rot).Size().MaxComponent()
	scale := size / longest
	return scale, geom.BoundsFromSize(center, raw.Scale(scale)).Rotated(rot)
}

// PlaceModel fits a model at loc and then lifts or lowers it so the bottom
// of its bounds rests on floorY.
func PlaceModel(a Asset, rot geom.Quat, size float64, loc geom.Vec3, floorY float64) (float64, geom.Bounds) {
	scale, b := FitModel(a, rot, size, loc)
	b.Center.Y = floorY + b.Extents.Y
	return scale, b
}

// ImageRotation turns a panel a quarter turn from its cubby so the picture
// faces along the cubby's right axis and reads the right way up from
// either side.
func ImageRotation(cubbyRot geom.Quat) geom.Quat {
	return cubbyRot.Mul(geom.AngleAxis(90, geom.Up))
}

// ImageBounds returns the world bounds of a size x size image panel.
func ImageBounds(size float64, rot geom.Quat, center geom.Vec3) geom.Bounds {
	return geom.BoundsFromSize(center, geom.V3(PanelDepth, size, size)).Rotated(rot)
}
