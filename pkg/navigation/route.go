package navigation

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/nede-neuro/go-nede/pkg/geom"
)

// Route is an ordered list of grid points. ObjectPoints[i] is true when
// reaching Points[i] brings an object into view.
type Route struct {
	Points       []geom.Vec2
	ObjectPoints []bool
}

// NewRoute builds a route with no object points.
func NewRoute(pts []geom.Vec2) Route {
	return Route{Points: pts, ObjectPoints: make([]bool, len(pts))}
}

// Len returns the number of points.
func (r Route) Len() int { return len(r.Points) }

// Objects returns how many points are object points.
func (r Route) Objects() int {
	n := 0
	for _, ok := range r.ObjectPoints {
		if ok {
			n++
		}
	}
	return n
}

func (r Route) isObject(i int) bool {
	return i >= 0 && i < len(r.ObjectPoints) && r.ObjectPoints[i]
}

// LoadRoute reads a route file.
func LoadRoute(path string) (Route, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Route{}, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return Route{}, fmt.Errorf("open route: %w", err)
	}
	defer f.Close()
	return ParseRoute(f)
}

// ParseRoute reads "x,z,flag" lines. Blank and malformed lines are
// skipped; a nonzero flag marks an object point.
func ParseRoute(r io.Reader) (Route, error) {
	var route Route
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		parts := strings.Split(strings.TrimSpace(sc.Text()), ",")
		if len(parts) < 2 {
			continue
		}
		x, errX := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		z, errZ := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if errX != nil || errZ != nil {
			continue
		}
		flag := false
		if len(parts) > 2 {
			v, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
			flag = err == nil && v != 0
		}
		route.Points = append(route.Points, geom.V2(x, z))
		route.ObjectPoints = append(route.ObjectPoints, flag)
	}
	if err := sc.Err(); err != nil {
		return Route{}, fmt.Errorf("read route: %w", err)
	}
	if route.Len() == 0 {
		return Route{}, ErrEmptyRoute
	}
	return route, nil
}

// WriteRoute writes r in the format ParseRoute reads.
func WriteRoute(w io.Writer, r Route) error {
	bw := bufio.NewWriter(w)
	for i, p := range r.Points {
		flag := 0
		if r.isObject(i) {
			flag = 1
		}
		fmt.Fprintf(bw, "%s,%s,%d\n",
			strconv.FormatFloat(p.X, 'f', -1, 64),
			strconv.FormatFloat(p.Y, 'f', -1, 64), flag)
	}
	return bw.Flush()
}

// LastOkStartPoint returns the latest index a walk can start from and
// still pass nObjToSee object points before the route ends. It returns 0
// when the whole route holds fewer.
func LastOkStartPoint(r Route, nObjToSee int) int {
	seen := 0
	for i := r.Len() - 1; i >= 0; i-- {
		if r.isObject(i) {
			seen++
		}
		if seen == nObjToSee {
			return i
		}
	}
	return 0
}

// EndIndex returns the index one past the point where a walk from start
// has passed nObjToSee object points, or one past the last point.
func EndIndex(r Route, start, nObjToSee int) int {
	end, seen := start, 0
	for seen < nObjToSee && end < r.Len()-1 {
		end++
		if r.isObject(end) {
			seen++
		}
	}
	return end + 1
}
