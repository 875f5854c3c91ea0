package tracker

import (
	"math"

	"github.com/nede-neuro/go-nede/pkg/geom"
)

// SweepGaze returns a GazeSource that traces a slow figure-eight across a
// width x height screen, driven by clock. It stands in for a subject when
// no tracker or mouse is attached.
func SweepGaze(clock Clock, width, height float64) GazeSource {
	return func() (geom.Vec2, bool) {
		s := float64(clock.Now()) / 1000
		x := width/2 + width/3*math.Sin(0.5*s)
		y := height/2 + height/4*math.Sin(1.0*s)
		return geom.V2(x, y), true
	}
}

// FixedGaze always reports p.
func FixedGaze(p geom.Vec2) GazeSource {
	return func() (geom.Vec2, bool) { return p, true }
}
