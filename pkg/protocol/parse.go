package protocol

import (
	"strconv"
	"strings"

	"github.com/nede-neuro/go-nede/pkg/category"
	"github.com/nede-neuro/go-nede/pkg/geom"
)

// Parse reads one log line. Lines that are empty, short, or whose payload
// does not match its prefix report ok=false and should be skipped.
func Parse(line string) (e Entry, ok bool) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return Entry{}, false
	}

	rec := line
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		rec = line[:i]
	}
	switch rec {
	case RecordMSG:
		return parseMsg(line)
	case RecordSacc, RecordBlink, RecordButton:
		return parseHardware(line)
	}
	return Entry{}, false
}

func parseMsg(line string) (Entry, bool) {
	tokens := strings.SplitN(line, "\t", 3)
	if len(tokens) == 2 {
		// Converted tracker files separate the time from the text with a space.
		if ts, rest, found := strings.Cut(tokens[1], " "); found {
			tokens = []string{tokens[0], ts, rest}
		}
	}
	if len(tokens) < 3 {
		return Entry{}, false
	}
	t, err := strconv.ParseInt(strings.TrimSpace(tokens[1]), 10, 64)
	if err != nil {
		return Entry{}, false
	}
	e, ok := ParsePayload(tokens[2])
	e.Time = t
	return e, ok
}

func parseHardware(line string) (Entry, bool) {
	f := strings.Fields(line)
	if len(f) < 4 {
		return Entry{}, false
	}

	var e Entry
	var err error
	switch f[0] {
	case RecordSacc, RecordBlink:
		e.Kind = KindSaccade
		if f[0] == RecordBlink {
			e.Kind = KindBlink
		}
		if e.Time, err = strconv.ParseInt(f[2], 10, 64); err != nil {
			return Entry{}, false
		}
		if e.End, err = strconv.ParseInt(f[3], 10, 64); err != nil {
			return Entry{}, false
		}
		if e.Kind == KindSaccade && len(f) >= 9 {
			x, errX := strconv.ParseFloat(f[7], 64)
			y, errY := strconv.ParseFloat(f[8], 64)
			if errX == nil && errY == nil {
				e.Gaze = geom.V2(x, y)
				e.HasGaze = true
			}
		}
	case RecordButton:
		e.Kind = KindButton
		if e.Time, err = strconv.ParseInt(f[1], 10, 64); err != nil {
			return Entry{}, false
		}
		if e.Button, err = strconv.Atoi(f[2]); err != nil {
			return Entry{}, false
		}
		if e.Pressed, err = ParseBool(f[3]); err != nil {
			return Entry{}, false
		}
	}
	return e, true
}

// ParsePayload classifies an MSG payload. Unknown text is returned as
// KindText; a known prefix with a malformed body reports ok=false.
func ParsePayload(p string) (Entry, bool) {
	p = strings.TrimRight(p, "\r\n")

	switch p {
	case MarkerHeaderBegin:
		return Entry{Kind: KindHeaderBegin}, true
	case MarkerHeaderEnd:
		return Entry{Kind: KindHeaderEnd}, true
	case MarkerLoadTrial:
		return Entry{Kind: KindBoundary, Boundary: BoundaryLoad}, true
	case MarkerStartTrial:
		return Entry{Kind: KindBoundary, Boundary: BoundaryStart}, true
	case MarkerEndTrial:
		return Entry{Kind: KindBoundary, Boundary: BoundaryEnd}, true
	case payloadDestroyedAll:
		return Entry{Kind: KindDestroyedAll}, true
	}

	switch {
	case strings.HasPrefix(p, "Created Object #"):
		return parseCreated(p)
	case strings.HasPrefix(p, "Destroyed Object #"):
		return parseDestroyed(p)
	case strings.HasPrefix(p, "Object #"):
		return parseMoved(p)
	case strings.HasPrefix(p, "Object\t"):
		return parseVisible(p)
	case strings.HasPrefix(p, "Camera at"):
		return parseCamera(p)
	case strings.HasPrefix(p, "Eye at"):
		return parseEye(p)
	case strings.HasPrefix(p, "Leader "):
		switch l := Leader(strings.TrimSpace(p[len("Leader "):])); l {
		case LeaderSlow, LeaderFast, LeaderNormal:
			return Entry{Kind: KindLeader, Leader: l}, true
		}
		return Entry{}, false
	case strings.HasPrefix(p, portCommand):
		code, err := strconv.Atoi(strings.TrimSpace(p[len(portCommand):]))
		if err != nil {
			return Entry{}, false
		}
		return Entry{Kind: KindSync, Code: code}, true
	case strings.HasPrefix(p, "category:"):
		return parseCategory(p)
	}

	if key, value, ok := cutHeader(p); ok {
		return Entry{Kind: KindHeader, Key: key, Value: value}, true
	}
	return Entry{Kind: KindText, Text: p}, true
}

// cutHeader splits "key: value" when key is a single token.
func cutHeader(p string) (key, value string, ok bool) {
	key, value, ok = strings.Cut(p, ": ")
	if !ok || key == "" || strings.ContainsAny(key, " \t") {
		return "", "", false
	}
	return key, value, true
}

func parseCreated(p string) (Entry, bool) {
	f, rest, ok := cutFields(p, 7)
	if !ok {
		return Entry{}, false
	}
	n, err := strconv.Atoi(f[3])
	if err != nil {
		return Entry{}, false
	}
	tup, ok := tuples(rest)
	if !ok || len(tup) < 1 || len(tup[0]) != 3 {
		return Entry{}, false
	}

	e := Entry{
		Kind:     KindCreated,
		Number:   n,
		Name:     f[4],
		Tag:      f[5],
		Motion:   Motion(f[6]),
		Position: geom.V3(tup[0][0], tup[0][1], tup[0][2]),
		Rotation: geom.Identity,
	}
	if len(tup) >= 2 && len(tup[1]) == 4 {
		e.Rotation = geom.Quat{X: tup[1][0], Y: tup[1][1], Z: tup[1][2], W: tup[1][3]}
		e.HasRot = true
	}
	return e, true
}

func parseDestroyed(p string) (Entry, bool) {
	f := strings.Fields(p)
	if len(f) < 4 {
		return Entry{}, false
	}
	n, err := strconv.Atoi(f[3])
	if err != nil {
		return Entry{}, false
	}
	e := Entry{Kind: KindDestroyed, Number: n}
	if len(f) > 4 {
		e.Name = f[4]
	}
	if len(f) > 5 {
		e.Tag = f[5]
	}
	if len(f) > 6 {
		e.Motion = Motion(f[6])
	}
	return e, true
}

func parseMoved(p string) (Entry, bool) {
	f, rest, ok := cutFields(p, 4)
	if !ok || f[3] != "at" {
		return Entry{}, false
	}
	n, err := strconv.Atoi(f[2])
	if err != nil {
		return Entry{}, false
	}
	tup, ok := tuples(rest)
	if !ok || len(tup) < 1 || len(tup[0]) != 3 {
		return Entry{}, false
	}
	return Entry{Kind: KindMoved, Number: n, Position: geom.V3(tup[0][0], tup[0][1], tup[0][2])}, true
}

func parseCamera(p string) (Entry, bool) {
	tup, ok := tuples(p)
	if !ok || len(tup) < 2 || len(tup[0]) != 3 || len(tup[1]) != 4 {
		return Entry{}, false
	}
	return Entry{
		Kind:     KindCamera,
		Position: geom.V3(tup[0][0], tup[0][1], tup[0][2]),
		Rotation: geom.Quat{X: tup[1][0], Y: tup[1][1], Z: tup[1][2], W: tup[1][3]},
		HasRot:   true,
	}, true
}

func parseEye(p string) (Entry, bool) {
	tup, ok := tuples(p)
	if !ok || len(tup) < 1 || len(tup[0]) != 2 {
		return Entry{}, false
	}
	return Entry{Kind: KindEye, Gaze: geom.V2(tup[0][0], tup[0][1]), HasGaze: true}, true
}

func parseVisible(p string) (Entry, bool) {
	f := strings.Split(p, "\t")
	if len(f) < 4 {
		return Entry{}, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(f[1]))
	if err != nil {
		return Entry{}, false
	}
	r, ok := parseRect(f[3])
	if !ok {
		return Entry{}, false
	}

	e := Entry{Kind: KindVisible, Number: n, Rect: r}
	seenFrac := false
	for i := 4; i+1 < len(f); i += 2 {
		v := strings.TrimSpace(f[i+1])
		switch strings.TrimSpace(f[i]) {
		case "at time":
			if e.At, err = strconv.ParseInt(v, 10, 64); err != nil {
				return Entry{}, false
			}
			e.HasAt = true
		case "fracVisible":
			if e.Fraction, err = strconv.ParseFloat(v, 64); err != nil {
				return Entry{}, false
			}
			seenFrac = true
		case "gazeHit":
			e.GazeHit, _ = ParseBool(v)
		}
	}
	if !seenFrac {
		return Entry{}, false
	}
	return e, true
}

// parseRect reads (x:<x>, y:<y>, width:<w>, height:<h>).
func parseRect(s string) (geom.Rect, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		return geom.Rect{}, false
	}
	var r geom.Rect
	seen := 0
	for _, part := range strings.Split(s[1:len(s)-1], ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return geom.Rect{}, false
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return geom.Rect{}, false
		}
		switch k {
		case "x":
			r.X = f
		case "y":
			r.Y = f
		case "width":
			r.W = f
		case "height":
			r.H = f
		default:
			return geom.Rect{}, false
		}
		seen++
	}
	return r, seen == 4
}

func parseCategory(p string) (Entry, bool) {
	f := strings.FieldsFunc(p, isCategorySep)
	if len(f) < 6 || f[0] != "category" || f[2] != "state" || f[4] != "prevalence" {
		return Entry{}, false
	}
	role, err := category.ParseRole(f[3])
	if err != nil {
		return Entry{}, false
	}
	prev, err := strconv.ParseFloat(f[5], 64)
	if err != nil {
		return Entry{}, false
	}
	return Entry{
		Kind:     KindCategory,
		Category: category.Entry{Name: f[1], Role: role, Prevalence: prev},
	}, true
}

func isCategorySep(r rune) bool {
	return r == ':' || r == ' ' || r == '\t'
}

// lineToken returns token i of a full log line split on colon, space and
// tab, or "" when the line is shorter. Token 2 of a category declaration is
// the word "category".
func lineToken(line string, i int) string {
	f := strings.FieldsFunc(line, isCategorySep)
	if i < len(f) {
		return f[i]
	}
	return ""
}

// ParseBool accepts True/true/1 and False/false/0.
func ParseBool(s string) (bool, error) {
	switch strings.TrimSpace(s) {
	case "True", "true", "TRUE", "1":
		return true, nil
	case "False", "false", "FALSE", "0":
		return false, nil
	}
	return false, strconv.ErrSyntax
}

// cutFields returns the first n whitespace-separated fields of s and the
// remainder after them.
func cutFields(s string, n int) ([]string, string, bool) {
	fields := make([]string, 0, n)
	rest := s
	for len(fields) < n {
		rest = strings.TrimLeft(rest, " \t")
		if rest == "" {
			return nil, "", false
		}
		end := strings.IndexAny(rest, " \t")
		if end < 0 {
			end = len(rest)
		}
		fields = append(fields, rest[:end])
		rest = rest[end:]
	}
	return fields, rest, true
}

// tuples extracts every parenthesized, comma-separated number group in s.
func tuples(s string) ([][]float64, bool) {
	var out [][]float64
	for {
		open := strings.IndexByte(s, '(')
		if open < 0 {
			return out, true
		}
		end := strings.IndexByte(s[open:], ')')
		if end < 0 {
			return nil, false
		}
		body := s[open+1 : open+end]
		s = s[open+end+1:]

		parts := strings.Split(body, ",")
		vals := make([]float64, len(parts))
		for i, part := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil {
				return nil, false
			}
			vals[i] = v
		}
		out = append(out, vals)
	}
}
