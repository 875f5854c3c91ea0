package protocol

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nede-neuro/go-nede/pkg/category"
	"github.com/nede-neuro/go-nede/pkg/geom"
)

func testHeader() Header {
	return Header{
		Subject:          "7",
		Session:          "2",
		Run:              "0b8f1c2e-1111-4222-8333-944455556666",
		Date:             "10/19/2026 9:00:00 AM",
		EDFFilename:      "NEDE-7-2.edf",
		Level:            "Warehouse",
		TrialTime:        60,
		Presentation:     PresentFollow,
		Locations:        "Cubbies",
		ObjectSize:       1.5,
		DistanceToLeader: 8,
		ObjectPrevalence: 0.6,
		MinBrakeDelay:    3,
		MaxBrakeDelay:    9,
		RecordObjBox:     true,
		SyncDelay:        1,
		Categories: []category.Entry{
			{Name: "cars", Role: category.Target, Prevalence: 0.25},
			{Name: "chairs", Role: category.Distractor, Prevalence: 0.75},
			{Name: "dogs", Role: category.Unused, Prevalence: 0},
		},
		StartPoint:   3,
		ObjToSee:     20,
		MoveSpeed:    4,
		SpinSpeed:    50,
		ScreenWidth:  1024,
		ScreenHeight: 768,
		Calibration:  Calibration{OffsetX: 12, OffsetY: -3.5, GainX: 1.1, GainY: 0.9},
	}
}

func writeLog(t *testing.T, fn func(w *Writer)) string {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewWriter(&buf, time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	fn(w)
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return buf.String()
}

func TestWriterFraming(t *testing.T) {
	out := writeLog(t, func(w *Writer) {
		w.Msg(10, "Leader Slow")
	})
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	want := []string{"10/19/2026 9:00:00 AM", "START LOG", "MSG\t10\tLeader Slow", "END LOG"}
	if len(lines) != len(want) {
		t.Fatalf("lines = %q", lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestWriterNotRecording(t *testing.T) {
	w, err := Create("")
	if err != nil {
		t.Fatalf("Create(\"\") error = %v", err)
	}
	if w.Recording() {
		t.Error("Recording() = true for empty path")
	}
	if err := w.Msg(1, "dropped"); err != nil {
		t.Errorf("Msg() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestWriterCloseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.txt")
	w, err := Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w.Msg(1, "hello")
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := w.Msg(2, "late"); !errors.Is(err, ErrClosed) {
		t.Errorf("Msg after Close error = %v, want ErrClosed", err)
	}

	data, _ := os.ReadFile(path)
	if strings.Count(string(data), LineEndLog) != 1 {
		t.Errorf("END LOG written %d times", strings.Count(string(data), LineEndLog))
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.asc"))
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Open() error = %v, want ErrFileNotFound", err)
	}
}

func TestReaderFindValueAndRewind(t *testing.T) {
	src := "MSG\t100\tsubject: 7\nMSG\t101\tlevel: Hall\nMSG\t102\tlevel: Other\n"
	r := NewReader(strings.NewReader(src))

	first, err := r.FindValue("MSG\t")
	if err != nil || first != "100\tsubject: 7" {
		t.Fatalf("FindValue(MSG) = %q, %v", first, err)
	}
	lvl, err := r.FindValue("level: ")
	if err != nil || lvl != "Hall" {
		t.Fatalf("FindValue(level) = %q, %v", lvl, err)
	}
	// First match from the current position.
	lvl, _ = r.FindValue("level: ")
	if lvl != "Other" {
		t.Errorf("second FindValue(level) = %q, want Other", lvl)
	}

	if err := r.Rewind(); err != nil {
		t.Fatalf("Rewind() error = %v", err)
	}
	line, ok := r.ReadLine()
	if !ok || line != "MSG\t100\tsubject: 7" {
		t.Errorf("ReadLine after Rewind = %q, %v", line, ok)
	}

	_, err = r.FindValue("missing: ")
	if !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("FindValue(missing) error = %v", err)
	}
	if !r.Closed() {
		t.Error("reader should be closed after a failed search")
	}
	if _, ok := r.ReadLine(); ok {
		t.Error("ReadLine() on closed reader returned a line")
	}
}

func TestReaderUnreadAndTruncated(t *testing.T) {
	r := NewReader(strings.NewReader("MSG\t1\tLeader Slow\r\nMSG\t2\tCamera at (1, 2"))

	line, _ := r.ReadLine()
	if line != "MSG\t1\tLeader Slow" {
		t.Errorf("CRLF not trimmed: %q", line)
	}
	r.Unread(line)
	e, ok := r.Next()
	if !ok || e.Kind != KindLeader {
		t.Errorf("Next() after Unread = %+v, %v", e, ok)
	}
	// The truncated final line is skipped, then the stream ends.
	if e, ok := r.Next(); ok {
		t.Errorf("Next() on truncated line = %+v", e)
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	want := testHeader()
	out := writeLog(t, func(w *Writer) {
		if err := WriteHeader(w, 1000, want); err != nil {
			t.Fatal(err)
		}
		w.Write(Entry{Kind: KindBoundary, Boundary: BoundaryLoad, Time: 1001})
	})

	r := NewReader(strings.NewReader(out))
	got, err := ReadHeader(r)
	if err != nil {
		t.Fatalf("ReadHeader() error = %v", err)
	}
	if got.Level != want.Level || got.ObjectSize != want.ObjectSize || got.Calibration != want.Calibration {
		t.Errorf("ReadHeader() = %+v", got)
	}
	if got.Subject != "7" || got.Session != "2" || got.Run != want.Run || got.Presentation != PresentFollow {
		t.Errorf("identity fields = %q %q %q %v", got.Subject, got.Session, got.Run, got.Presentation)
	}
	if !got.RecordObjBox || got.ActiveSession || got.ObjToSee != 20 || got.StartPoint != 3 || got.ScreenWidth != 1024 {
		t.Errorf("scalar fields = %+v", got)
	}
	if len(got.Categories) != 3 {
		t.Fatalf("categories = %v", got.Categories)
	}
	for i := range want.Categories {
		if got.Categories[i] != want.Categories[i] {
			t.Errorf("category %d = %+v, want %+v", i, got.Categories[i], want.Categories[i])
		}
	}
}

func TestHeaderCategoryCounts(t *testing.T) {
	for _, n := range []int{0, 1, 4} {
		h := testHeader()
		h.Categories = nil
		for i := 0; i < n; i++ {
			h.Categories = append(h.Categories, category.Entry{Name: "c" + string(rune('a'+i)), Prevalence: 1})
		}
		out := writeLog(t, func(w *Writer) { WriteHeader(w, 1, h) })

		got, err := ReadHeader(NewReader(strings.NewReader(out)))
		if err != nil {
			t.Fatalf("%d categories: ReadHeader() error = %v", n, err)
		}
		if len(got.Categories) != n {
			t.Errorf("%d categories: got %d", n, len(got.Categories))
		}
		// The line after the block is still read.
		if got.ObjToSee != h.ObjToSee {
			t.Errorf("%d categories: nObjToSee = %d, want %d", n, got.ObjToSee, h.ObjToSee)
		}
	}
}

func TestHeaderMissingRequiredKey(t *testing.T) {
	out := writeLog(t, func(w *Writer) {
		for _, e := range testHeader().Entries() {
			if e.Key == KeyGainY {
				continue
			}
			w.Write(e)
		}
	})

	r := NewReader(strings.NewReader(out))
	_, err := ReadHeader(r)
	if !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("ReadHeader() error = %v, want ErrKeyNotFound", err)
	}
	if !r.Closed() {
		t.Error("reader not closed after missing key")
	}
}

func TestHeaderStopsAtBoundary(t *testing.T) {
	src := strings.Join([]string{
		"MSG\t1\tlevel: Hall",
		"MSG\t1\tobjectSize: 2",
		"MSG\t1\teyelink.offset_x: 0",
		"MSG\t1\teyelink.offset_y: 0",
		"MSG\t1\teyelink.gain_x: 1",
		"MSG\t1\teyelink.gain_y: 1",
		"MSG\t2\t----- LOAD TRIAL -----",
		"MSG\t3\tlevel: Later",
	}, "\n")

	r := NewReader(strings.NewReader(src))
	h, err := ReadHeader(r)
	if err != nil || h.Level != "Hall" || h.ObjectSize != 2 {
		t.Fatalf("ReadHeader() = %+v, %v", h, err)
	}
	e, ok := r.Next()
	if !ok || e.Kind != KindBoundary {
		t.Errorf("boundary line was not pushed back: %+v", e)
	}
}

func TestCalibrationApply(t *testing.T) {
	c := Calibration{OffsetX: 10, OffsetY: 20, GainX: 2, GainY: 0.5}
	got := c.Apply(geom.V2(110, 220))
	if got.X != 200 || got.Y != 100 {
		t.Errorf("Apply() = %v, want (200, 100)", got)
	}
	if got := IdentityCalibration().Apply(geom.V2(3, 4)); got.X != 3 || got.Y != 4 {
		t.Errorf("identity Apply() = %v", got)
	}
}
