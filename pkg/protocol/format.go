package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nede-neuro/go-nede/pkg/geom"
)

// FormatFloat writes v as plain decimal text with the fewest digits that
// parse back to the same value.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatBool writes True or False.
func FormatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func formatVec2(v geom.Vec2) string {
	return "(" + FormatFloat(v.X) + ", " + FormatFloat(v.Y) + ")"
}

func formatVec3(v geom.Vec3) string {
	return "(" + FormatFloat(v.X) + ", " + FormatFloat(v.Y) + ", " + FormatFloat(v.Z) + ")"
}

func formatQuat(q geom.Quat) string {
	return "(" + FormatFloat(q.X) + ", " + FormatFloat(q.Y) + ", " + FormatFloat(q.Z) + ", " + FormatFloat(q.W) + ")"
}

// FormatRect writes r as (x:<x>, y:<y>, width:<w>, height:<h>).
func FormatRect(r geom.Rect) string {
	return "(x:" + FormatFloat(r.X) + ", y:" + FormatFloat(r.Y) +
		", width:" + FormatFloat(r.W) + ", height:" + FormatFloat(r.H) + ")"
}

// Payload returns the MSG payload for e. Hardware kinds have no payload.
func (e Entry) Payload() string {
	switch e.Kind {
	case KindHeaderBegin:
		return MarkerHeaderBegin
	case KindHeaderEnd:
		return MarkerHeaderEnd
	case KindHeader:
		return e.Key + ": " + e.Value
	case KindCategory:
		return "category: " + e.Category.Name + " state: " + e.Category.Role.String() +
			" prevalence: " + FormatFloat(e.Category.Prevalence)
	case KindCreated:
		s := fmt.Sprintf("Created Object # %d %s %s %s %s", e.Number, e.Name, e.Tag, e.Motion, formatVec3(e.Position))
		if e.HasRot {
			s += " " + formatQuat(e.Rotation)
		}
		return s
	case KindDestroyed:
		return strings.TrimRight(fmt.Sprintf("Destroyed Object # %d %s %s %s", e.Number, e.Name, e.Tag, e.Motion), " ")
	case KindDestroyedAll:
		return payloadDestroyedAll
	case KindMoved:
		return fmt.Sprintf("Object # %d at %s", e.Number, formatVec3(e.Position))
	case KindCamera:
		return "Camera at " + formatVec3(e.Position) + "  rotation " + formatQuat(e.Rotation)
	case KindEye:
		return "Eye at " + formatVec2(e.Gaze)
	case KindSync:
		return portCommand + strconv.Itoa(e.Code)
	case KindBoundary:
		return e.Boundary.Marker()
	case KindLeader:
		return "Leader " + string(e.Leader)
	case KindVisible:
		var b strings.Builder
		fmt.Fprintf(&b, "Object\t%d\tvisible at \t%s", e.Number, FormatRect(e.Rect))
		if e.HasAt {
			fmt.Fprintf(&b, "\t at time\t%d", e.At)
		}
		b.WriteString("\tfracVisible\t" + FormatFloat(e.Fraction))
		if e.GazeHit {
			b.WriteString("\tgazeHit\tTrue")
		}
		return b.String()
	case KindSaccade, KindBlink, KindButton:
		return ""
	default:
		return e.Text
	}
}

// Line returns the complete log line for e, without a newline.
func (e Entry) Line() string {
	switch e.Kind {
	case KindSaccade:
		ex, ey := "   .", "   ."
		if e.HasGaze {
			ex, ey = FormatFloat(e.Gaze.X), FormatFloat(e.Gaze.Y)
		}
		return fmt.Sprintf("%s\tR\t%d\t%d\t%d\t   .\t   .\t%s\t%s", RecordSacc, e.Time, e.End, e.End-e.Time, ex, ey)
	case KindBlink:
		return fmt.Sprintf("%s\tR\t%d\t%d\t%d", RecordBlink, e.Time, e.End, e.End-e.Time)
	case KindButton:
		state := 0
		if e.Pressed {
			state = 1
		}
		return fmt.Sprintf("%s\t%d\t%d\t%d", RecordButton, e.Time, e.Button, state)
	default:
		return Msg(e.Time, e.Payload())
	}
}

// Msg frames a payload as an MSG line.
func Msg(t int64, payload string) string {
	return RecordMSG + "\t" + strconv.FormatInt(t, 10) + "\t" + payload
}
