// Package protocol implements the line-oriented session log shared by the
// live scheduler and the replay engine.
//
// Every data line starts with a record type. MSG lines carry a tracker
// timestamp in milliseconds and a free-form payload; ESACC, EBLINK and
// BUTTON lines are passed through from the tracker with fixed columns.
//
//	MSG	10234	Created Object # 1 teapot TargetObject Stationary (1, 0.5, 12) (0, 0, 0, 1)
//	ESACC	R	10240	10262	24	512.3	380.1	700.2	390.0	4.10	310
//	EBLINK	R	10300	10410	112
//	BUTTON	10500	4	1
package protocol

import (
	"github.com/nede-neuro/go-nede/pkg/category"
	"github.com/nede-neuro/go-nede/pkg/geom"
)

// Record type tokens.
const (
	RecordMSG    = "MSG"
	RecordSacc   = "ESACC"
	RecordBlink  = "EBLINK"
	RecordButton = "BUTTON"
)

// Fixed payloads.
const (
	MarkerHeaderBegin = "----- SESSION PARAMETERS -----"
	MarkerHeaderEnd   = "----- END SESSION PARAMETERS -----"
	MarkerLoadTrial   = "----- LOAD TRIAL -----"
	MarkerStartTrial  = "----- START TRIAL -----"
	MarkerEndTrial    = "----- END TRIAL -----"

	LineStartLog = "START LOG"
	LineEndLog   = "END LOG"

	payloadDestroyedAll = "Destroyed All Objects"
	portCommand         = "!CMD 0 write_ioport 0x378 "
)

// Kind identifies the variant held by an Entry.
type Kind int

const (
	KindText Kind = iota
	KindHeaderBegin
	KindHeaderEnd
	KindHeader
	KindCategory
	KindCreated
	KindDestroyed
	KindDestroyedAll
	KindMoved
	KindCamera
	KindEye
	KindSync
	KindBoundary
	KindLeader
	KindVisible
	KindSaccade
	KindBlink
	KindButton
)

var kindNames = [...]string{
	KindText:         "text",
	KindHeaderBegin:  "header_begin",
	KindHeaderEnd:    "header_end",
	KindHeader:       "header",
	KindCategory:     "category",
	KindCreated:      "created",
	KindDestroyed:    "destroyed",
	KindDestroyedAll: "destroyed_all",
	KindMoved:        "moved",
	KindCamera:       "camera",
	KindEye:          "eye",
	KindSync:         "sync",
	KindBoundary:     "boundary",
	KindLeader:       "leader",
	KindVisible:      "visible",
	KindSaccade:      "saccade",
	KindBlink:        "blink",
	KindButton:       "button",
}

// String returns a short lowercase name.
func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsHardware reports whether the kind comes from a tracker passthrough line.
func (k Kind) IsHardware() bool {
	return k == KindSaccade || k == KindBlink || k == KindButton
}

// Boundary is a trial lifecycle marker.
type Boundary int

const (
	BoundaryLoad Boundary = iota
	BoundaryStart
	BoundaryEnd
)

// Marker returns the payload written for b.
func (b Boundary) Marker() string {
	switch b {
	case BoundaryStart:
		return MarkerStartTrial
	case BoundaryEnd:
		return MarkerEndTrial
	default:
		return MarkerLoadTrial
	}
}

// Leader is the speed state announced for the Follow leader.
type Leader string

const (
	LeaderSlow   Leader = "Slow"
	LeaderFast   Leader = "Fast"
	LeaderNormal Leader = "Normal"
)

// Motion is the object motion type written on Created lines.
type Motion string

const (
	Stationary Motion = "Stationary"
	Moving     Motion = "Moving"
)

// Entry is one parsed log line. Kind selects which fields are meaningful.
type Entry struct {
	Kind Kind
	Time int64 // tracker ms

	// Object events
	Number   int
	Name     string
	Tag      string
	Motion   Motion
	Position geom.Vec3
	Rotation geom.Quat
	HasRot   bool

	// Header
	Key      string
	Value    string
	Category category.Entry

	// Gaze and hardware
	Gaze     geom.Vec2
	HasGaze  bool
	End      int64 // saccade/blink end time
	Button   int
	Pressed  bool
	Code     int
	Boundary Boundary
	Leader   Leader

	// Visibility annotation
	Rect     geom.Rect
	Fraction float64
	At       int64 // virtual ms, replay annotations only
	HasAt    bool
	GazeHit  bool

	Text string
}
