// Package navigation moves a viewpoint along a grid-constrained waypoint
// route, turning only in 90 degree arcs.
package navigation

import "github.com/nede-neuro/go-nede/pkg/geom"

// Move is the motion mode of a navigator.
type Move int

const (
	Straight Move = iota
	TurnRight
	TurnLeft
)

// String returns the move name.
func (m Move) String() string {
	switch m {
	case TurnRight:
		return "right"
	case TurnLeft:
		return "left"
	default:
		return "straight"
	}
}

// FindNextMove classifies travel from prev through cur to next. Grid Y
// maps to world +Z (north) and X to world +X (east), so heading north and
// then east is a right turn.
//
// ok is false when prev and cur share neither axis; such diagonal legs are
// removed by InsertCorners before a route is walked.
func FindNextMove(prev, cur, next geom.Vec2) (m Move, ok bool) {
	switch {
	case prev.X == cur.X:
		if next.X == cur.X {
			return Straight, true
		}
		if (cur.Y > prev.Y && next.X > cur.X) || (cur.Y < prev.Y && next.X < cur.X) {
			return TurnRight, true
		}
		return TurnLeft, true
	case prev.Y == cur.Y:
		if next.Y == cur.Y {
			return Straight, true
		}
		if (cur.X > prev.X && next.Y < cur.Y) || (cur.X < prev.X && next.Y > cur.Y) {
			return TurnRight, true
		}
		return TurnLeft, true
	}
	return Straight, false
}
