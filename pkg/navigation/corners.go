package navigation

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/nede-neuro/go-nede/pkg/geom"
)

// Corner insertion geometry, in world units.
const (
	// Shoulder is the offset of a lane from the cubby row it serves.
	Shoulder = 10.0
	// LaneGrid is the spacing of cubby rows along Y.
	LaneGrid = 20.0
	// UTurnWidth is the sideways step of a U-turn detour.
	UTurnWidth = 15.0
	// UTurnDepth is how far past the turning point a U-turn runs.
	UTurnDepth = 10.0
)

// Raw waypoint list markers.
const (
	RouteBegin = "----- ROUTE -----"
	RouteEnd   = "----- END ROUTE -----"
)

// InsertCorners splices synthetic waypoints into pts so every leg runs
// along one axis and east-west travel stays in the lanes between cubby
// rows. The input slice is not modified.
//
// Lists of fewer than two points, and a first leg that already runs along
// one axis, pass through unchanged. On a list that is already grid legal
// only reversals get detours; east-west legs stay on their rows.
func InsertCorners(pts []geom.Vec2) []geom.Vec2 {
	c := &corners{pts: append([]geom.Vec2(nil), pts...), legal: GridLegal(pts)}
	// Spliced points are visited in turn, so a corner can itself get
	// corners.
	for i := 0; i < len(c.pts)-1; i++ {
		if i == 0 {
			if c.pts[0].X != c.pts[1].X && c.pts[0].Y != c.pts[1].Y {
				c.forward(0)
			}
			continue
		}
		if movingForward(c.pts[i], c.pts[i+1], c.pts[i-1]) {
			if c.pts[i].X != c.pts[i+1].X {
				c.forward(i)
			}
		} else {
			c.reverse(i)
		}
	}
	return c.pts
}

type corners struct {
	pts   []geom.Vec2
	north bool // last lane change went north
	legal bool // input was grid legal
}

func (c *corners) splice(i int, add ...geom.Vec2) {
	out := make([]geom.Vec2, 0, len(c.pts)+len(add))
	out = append(out, c.pts[:i+1]...)
	out = append(out, add...)
	c.pts = append(out, c.pts[i+1:]...)
}

// lane inserts the two points that carry travel from i to i+1 along a
// lane at y.
func (c *corners) lane(i int, y float64) {
	c.splice(i, geom.V2(c.pts[i].X, y), geom.V2(c.pts[i+1].X, y))
}

func onRow(y float64) bool { return math.Mod(y, LaneGrid) == 0 }

func (c *corners) forward(i int) {
	a, b := c.pts[i], c.pts[i+1]
	switch {
	case a.Y > b.Y:
		c.lane(i, a.Y-Shoulder)
	case a.Y < b.Y:
		c.north = true
		c.lane(i, a.Y+Shoulder)
	default:
		// East-west along a cubby row: step off into the lane on the side
		// we came from, or alternate when coming straight along the row.
		if c.legal || i == 0 || !onRow(a.Y) {
			return
		}
		prev := c.pts[i-1]
		switch {
		case a.Y > prev.Y || (!c.north && !(a.Y < prev.Y)):
			c.north = true
			c.lane(i, a.Y+Shoulder)
		case a.Y < prev.Y || c.north:
			c.north = false
			c.lane(i, a.Y-Shoulder)
		}
	}
}

func (c *corners) reverse(i int) {
	prev, a, b := c.pts[i-1], c.pts[i], c.pts[i+1]
	vertical := a.X == prev.X
	horizontal := a.X != prev.X && a.Y == prev.Y
	switch {
	case vertical && a.Y > prev.Y && a.X == b.X:
		c.splice(i,
			geom.V2(a.X, a.Y+UTurnDepth),
			geom.V2(a.X+UTurnWidth, a.Y+UTurnDepth),
			geom.V2(a.X+UTurnWidth, a.Y-UTurnDepth),
			geom.V2(a.X, a.Y-UTurnDepth))
	case vertical && a.Y < prev.Y && a.X == b.X:
		c.splice(i,
			geom.V2(a.X, a.Y-UTurnDepth),
			geom.V2(a.X-UTurnWidth, a.Y-UTurnDepth),
			geom.V2(a.X-UTurnWidth, a.Y+UTurnDepth),
			geom.V2(a.X, a.Y+UTurnDepth))
	case vertical && a.Y > prev.Y:
		c.lane(i, a.Y+UTurnDepth)
	case vertical && a.Y < prev.Y:
		c.lane(i, a.Y-UTurnDepth)
	case horizontal && a.Y == b.Y && c.north:
		c.north = false
		c.lane(i, a.Y-Shoulder)
	case horizontal && a.Y == b.Y:
		c.north = true
		c.lane(i, a.Y+Shoulder)
	case horizontal && a.Y < b.Y:
		c.north = true
		c.lane(i, b.Y+Shoulder)
	case horizontal && a.Y > b.Y:
		c.north = false
		c.lane(i, b.Y-Shoulder)
	}
}

// movingForward reports whether the path through a keeps going away from
// pre. Doubling back along either axis is not forward.
func movingForward(a, post, pre geom.Vec2) bool {
	return !((pre.X > a.X && post.X > a.X) ||
		(pre.X < a.X && post.X < a.X) ||
		(pre.Y > a.Y && post.Y > a.Y) ||
		(pre.Y < a.Y && post.Y < a.Y))
}

// GridLegal reports whether every leg of pts runs along exactly one axis.
func GridLegal(pts []geom.Vec2) bool {
	for i := 1; i < len(pts); i++ {
		dx := pts[i].X != pts[i-1].X
		dy := pts[i].Y != pts[i-1].Y
		if dx == dy {
			return false
		}
	}
	return true
}

// ParseWaypointList reads the "(x, y)" lines between RouteBegin and
// RouteEnd.
func ParseWaypointList(r io.Reader) ([]geom.Vec2, error) {
	var (
		pts    []geom.Vec2
		inside bool
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		switch {
		case line == RouteEnd:
			inside = false
			continue
		case line == RouteBegin:
			inside = true
			continue
		case !inside:
			continue
		}
		p, ok := parsePair(line)
		if !ok {
			continue
		}
		pts = append(pts, p)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read waypoint list: %w", err)
	}
	if len(pts) == 0 {
		return nil, ErrEmptyRoute
	}
	return pts, nil
}

func parsePair(line string) (geom.Vec2, bool) {
	_, rest, ok := strings.Cut(line, "(")
	if !ok {
		return geom.Vec2{}, false
	}
	rest, _, _ = strings.Cut(rest, ")")
	xs, ys, ok := strings.Cut(rest, ",")
	if !ok {
		return geom.Vec2{}, false
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return geom.Vec2{}, false
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return geom.Vec2{}, false
	}
	return geom.V2(x, y), true
}
