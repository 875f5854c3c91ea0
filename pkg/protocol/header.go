package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nede-neuro/go-nede/pkg/category"
	"github.com/nede-neuro/go-nede/pkg/geom"
)

// Presentation is how objects are presented during a trial.
type Presentation int

const (
	PresentStationary Presentation = 0
	PresentFollow     Presentation = 1
)

// String returns the presentation name.
func (p Presentation) String() string {
	if p == PresentFollow {
		return "Follow"
	}
	return "Stationary"
}

// Calibration maps raw tracker coordinates to screen pixels.
type Calibration struct {
	OffsetX float64 `yaml:"offset_x" json:"offset_x"`
	OffsetY float64 `yaml:"offset_y" json:"offset_y"`
	GainX   float64 `yaml:"gain_x" json:"gain_x"`
	GainY   float64 `yaml:"gain_y" json:"gain_y"`
}

// IdentityCalibration leaves raw coordinates unchanged.
func IdentityCalibration() Calibration {
	return Calibration{GainX: 1, GainY: 1}
}

// Apply returns (raw - offset) * gain.
func (c Calibration) Apply(raw geom.Vec2) geom.Vec2 {
	return geom.V2((raw.X-c.OffsetX)*c.GainX, (raw.Y-c.OffsetY)*c.GainY)
}

// Header is the session parameter block written before any event line.
type Header struct {
	Subject          string
	Session          string
	Run              string
	Date             string
	ActiveSession    bool
	EDFFilename      string
	Level            string
	TrialTime        float64 // seconds
	Presentation     Presentation
	Locations        string
	ObjectSize       float64
	DistanceToLeader float64
	ObjectPrevalence float64
	MinBrakeDelay    float64
	MaxBrakeDelay    float64
	ObjectMoveTime   float64
	RecordObjBox     bool
	PhotodiodeUsed   bool
	PhotodiodeSize   float64
	SyncDelay        float64
	Categories       []category.Entry
	StartPoint       int
	ObjToSee         int
	MoveSpeed        float64
	SpinSpeed        float64
	ScreenWidth      float64
	ScreenHeight     float64
	Calibration      Calibration
}

// Header keys in the order they are written.
const (
	KeySubject          = "subject"
	KeySession          = "session"
	KeyRun              = "run"
	KeyDate             = "Date"
	KeyActiveSession    = "isActiveSession"
	KeyEDFFilename      = "EDF_filename"
	KeyLevel            = "level"
	KeyTrialTime        = "trialTime"
	KeyPresentation     = "presentationType"
	KeyLocations        = "locations"
	KeyObjectSize       = "objectSize"
	KeyDistanceToLeader = "distanceToLeader"
	KeyObjectPrevalence = "objectPrevalence"
	KeyMinBrakeDelay    = "minBrakeDelay"
	KeyMaxBrakeDelay    = "maxBrakeDelay"
	KeyObjectMoveTime   = "objectMoveTime"
	KeyRecordObjBox     = "recordObjBox"
	KeyPhotodiodeUsed   = "isPhotodiodeUsed"
	KeyPhotodiodeSize   = "photodiodeSize"
	KeySyncDelay        = "syncDelay"
	KeyNCategories      = "nCategories"
	KeyStartPoint       = "startPoint"
	KeyObjToSee         = "nObjToSee"
	KeyMoveSpeed        = "moveSpeed"
	KeySpinSpeed        = "spinSpeed"
	KeyScreenWidth      = "screen.width"
	KeyScreenHeight     = "screen.height"
	KeyOffsetX          = "eyelink.offset_x"
	KeyOffsetY          = "eyelink.offset_y"
	KeyGainX            = "eyelink.gain_x"
	KeyGainY            = "eyelink.gain_y"
)

// CalibrationEntries returns the four calibration header lines.
func CalibrationEntries(c Calibration) []Entry {
	return []Entry{
		{Kind: KindHeader, Key: KeyOffsetX, Value: FormatFloat(c.OffsetX)},
		{Kind: KindHeader, Key: KeyOffsetY, Value: FormatFloat(c.OffsetY)},
		{Kind: KindHeader, Key: KeyGainX, Value: FormatFloat(c.GainX)},
		{Kind: KindHeader, Key: KeyGainY, Value: FormatFloat(c.GainY)},
	}
}

// Entries returns the header block as entries, markers included.
func (h Header) Entries() []Entry {
	kv := func(k, v string) Entry { return Entry{Kind: KindHeader, Key: k, Value: v} }
	f := FormatFloat

	out := []Entry{
		{Kind: KindHeaderBegin},
		kv(KeySubject, h.Subject),
		kv(KeySession, h.Session),
	}
	if h.Run != "" {
		out = append(out, kv(KeyRun, h.Run))
	}
	out = append(out,
		kv(KeyDate, h.Date),
		kv(KeyActiveSession, FormatBool(h.ActiveSession)),
		kv(KeyEDFFilename, h.EDFFilename),
		kv(KeyLevel, h.Level),
		kv(KeyTrialTime, f(h.TrialTime)),
		kv(KeyPresentation, strconv.Itoa(int(h.Presentation))),
		kv(KeyLocations, h.Locations),
		kv(KeyObjectSize, f(h.ObjectSize)),
		kv(KeyDistanceToLeader, f(h.DistanceToLeader)),
		kv(KeyObjectPrevalence, f(h.ObjectPrevalence)),
		kv(KeyMinBrakeDelay, f(h.MinBrakeDelay)),
		kv(KeyMaxBrakeDelay, f(h.MaxBrakeDelay)),
		kv(KeyObjectMoveTime, f(h.ObjectMoveTime)),
		kv(KeyRecordObjBox, FormatBool(h.RecordObjBox)),
		kv(KeyPhotodiodeUsed, FormatBool(h.PhotodiodeUsed)),
		kv(KeyPhotodiodeSize, f(h.PhotodiodeSize)),
		kv(KeySyncDelay, f(h.SyncDelay)),
		kv(KeyNCategories, strconv.Itoa(len(h.Categories))),
	)
	for _, c := range h.Categories {
		out = append(out, Entry{Kind: KindCategory, Category: c})
	}
	out = append(out,
		kv(KeyStartPoint, strconv.Itoa(h.StartPoint)),
		kv(KeyObjToSee, strconv.Itoa(h.ObjToSee)),
		kv(KeyMoveSpeed, f(h.MoveSpeed)),
		kv(KeySpinSpeed, f(h.SpinSpeed)),
		kv(KeyScreenWidth, f(h.ScreenWidth)),
		kv(KeyScreenHeight, f(h.ScreenHeight)),
	)
	out = append(out, CalibrationEntries(h.Calibration)...)
	return append(out, Entry{Kind: KindHeaderEnd})
}

// WriteHeader writes the header block stamped with tracker time t.
func WriteHeader(w *Writer, t int64, h Header) error {
	for _, e := range h.Entries() {
		e.Time = t
		if err := w.Write(e); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	return nil
}

// ReadHeader reads the session parameter block starting at the reader's
// current position.
//
// The block ends at the end marker, at the first trial boundary or at end
// of stream; a line past the block is pushed back. Keys are then found in
// written order, each search starting after the previous match. A missing
// required key (level, objectSize or a calibration value) closes r and
// returns ErrKeyNotFound. Other keys fall back to zero values.
func ReadHeader(r *Reader) (Header, error) {
	var block []string
	for {
		line, ok := r.ReadLine()
		if !ok {
			break
		}
		e, parsed := Parse(line)
		if parsed && e.Kind == KindHeaderEnd {
			break
		}
		if parsed && (e.Kind == KindBoundary || e.Kind.IsHardware()) {
			r.Unread(line)
			break
		}
		block = append(block, line)
	}

	s := &headerScan{lines: block}
	var h Header
	var err error

	h.Subject, _ = s.find(KeySubject)
	h.Session, _ = s.find(KeySession)
	h.Run, _ = s.find(KeyRun)
	h.Date, _ = s.find(KeyDate)
	h.ActiveSession = s.boolean(KeyActiveSession)
	h.EDFFilename, _ = s.find(KeyEDFFilename)

	if h.Level, err = s.required(r, KeyLevel); err != nil {
		return Header{}, err
	}
	h.TrialTime = s.float(KeyTrialTime)
	h.Presentation = Presentation(s.integer(KeyPresentation))
	h.Locations, _ = s.find(KeyLocations)
	if h.ObjectSize, err = s.requiredFloat(r, KeyObjectSize); err != nil {
		return Header{}, err
	}
	h.DistanceToLeader = s.float(KeyDistanceToLeader)
	h.ObjectPrevalence = s.float(KeyObjectPrevalence)
	h.MinBrakeDelay = s.float(KeyMinBrakeDelay)
	h.MaxBrakeDelay = s.float(KeyMaxBrakeDelay)
	h.ObjectMoveTime = s.float(KeyObjectMoveTime)
	h.RecordObjBox = s.boolean(KeyRecordObjBox)
	h.PhotodiodeUsed = s.boolean(KeyPhotodiodeUsed)
	h.PhotodiodeSize = s.float(KeyPhotodiodeSize)
	h.SyncDelay = s.float(KeySyncDelay)
	s.find(KeyNCategories)
	h.Categories = s.categories()
	h.StartPoint = s.integer(KeyStartPoint)
	h.ObjToSee = s.integer(KeyObjToSee)
	h.MoveSpeed = s.float(KeyMoveSpeed)
	h.SpinSpeed = s.float(KeySpinSpeed)
	h.ScreenWidth = s.float(KeyScreenWidth)
	h.ScreenHeight = s.float(KeyScreenHeight)

	cal := []*float64{&h.Calibration.OffsetX, &h.Calibration.OffsetY, &h.Calibration.GainX, &h.Calibration.GainY}
	for i, key := range []string{KeyOffsetX, KeyOffsetY, KeyGainX, KeyGainY} {
		if *cal[i], err = s.requiredFloat(r, key); err != nil {
			return Header{}, err
		}
	}
	return h, nil
}

// headerScan finds keys in a header block. A successful find moves the
// cursor past the match; a miss leaves it in place.
type headerScan struct {
	lines  []string
	cursor int
}

func (s *headerScan) find(key string) (string, bool) {
	needle := key + ": "
	for i := s.cursor; i < len(s.lines); i++ {
		if j := strings.Index(s.lines[i], needle); j >= 0 {
			s.cursor = i + 1
			return strings.TrimSpace(s.lines[i][j+len(needle):]), true
		}
	}
	return "", false
}

func (s *headerScan) required(r *Reader, key string) (string, error) {
	v, ok := s.find(key)
	if !ok {
		r.Close()
		return "", fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	return v, nil
}

func (s *headerScan) requiredFloat(r *Reader, key string) (float64, error) {
	v, err := s.required(r, key)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidHeader, key, v)
	}
	return f, nil
}

func (s *headerScan) float(key string) float64 {
	v, _ := s.find(key)
	f, _ := strconv.ParseFloat(v, 64)
	return f
}

func (s *headerScan) integer(key string) int {
	v, _ := s.find(key)
	n, _ := strconv.Atoi(v)
	return n
}

func (s *headerScan) boolean(key string) bool {
	v, _ := s.find(key)
	b, _ := ParseBool(v)
	return b
}

// categories reads the declaration block: from the first category line,
// consecutive lines are consumed while token 2 is "category". The line that
// ends the block stays unread.
func (s *headerScan) categories() []category.Entry {
	start := -1
	for i := s.cursor; i < len(s.lines); i++ {
		if lineToken(s.lines[i], 2) == "category" {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}

	var out []category.Entry
	i := start
	for ; i < len(s.lines) && lineToken(s.lines[i], 2) == "category"; i++ {
		e, ok := Parse(s.lines[i])
		if ok && e.Kind == KindCategory {
			out = append(out, e.Category)
		}
	}
	s.cursor = i
	return out
}
