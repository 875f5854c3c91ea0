package trial

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nede-neuro/go-nede/pkg/category"
	"github.com/nede-neuro/go-nede/pkg/geom"
	"github.com/nede-neuro/go-nede/pkg/navigation"
	"github.com/nede-neuro/go-nede/pkg/protocol"
	"github.com/nede-neuro/go-nede/pkg/scene"
	"github.com/nede-neuro/go-nede/pkg/tracker"
)

var testDate = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func testCategories() []category.Entry {
	return []category.Entry{
		{Name: "cars", Role: category.Target, Prevalence: 0.5},
		{Name: "faces", Role: category.Distractor, Prevalence: 0.5},
	}
}

func testHeader() protocol.Header {
	return protocol.Header{
		Subject:          "7",
		Session:          "1",
		Level:            "hall",
		TrialTime:        math.Inf(1),
		ObjectSize:       1,
		DistanceToLeader: 10,
		ObjectPrevalence: 1,
		MinBrakeDelay:    1,
		MaxBrakeDelay:    1,
		RecordObjBox:     true,
		SyncDelay:        1,
		Categories:       testCategories(),
		ObjToSee:         100,
		MoveSpeed:        3,
		ScreenWidth:      800,
		ScreenHeight:     600,
		Calibration:      protocol.IdentityCalibration(),
	}
}

// testWorld is a straight hallway along +z with cubbies on both sides.
func testWorld(t *testing.T) (*category.Table, *scene.Environment, *scene.Catalog) {
	t.Helper()
	table, err := category.New(testCategories())
	require.NoError(t, err)

	env := scene.NewEnvironment("hall")
	for i := 0; i < 3; i++ {
		z := 20 + 20*float64(i)
		env.Cubbies = append(env.Cubbies,
			scene.Cubby{Position: geom.V3(-5, 0, z), Yaw: 90, Locations: []geom.Vec3{geom.V3(-5, 0, z), geom.V3(-6, 0, z)}},
			scene.Cubby{Position: geom.V3(5, 0, z), Yaw: -90, Locations: []geom.Vec3{geom.V3(5, 0, z)}},
		)
	}

	cat := scene.NewCatalog()
	cat.Add(scene.Asset{Category: "cars", Name: "sedan", Size: geom.V3(4, 1.5, 2)})
	cat.Add(scene.Asset{Category: "cars", Name: "truck", Size: geom.V3(6, 3, 2.5)})
	cat.Add(scene.Asset{Category: "faces", Name: "face01", Kind: scene.Image})
	return table, env, cat
}

type harness struct {
	s     *Scheduler
	clock *tracker.ManualClock
	ft    *tracker.FileTracker
	buf   *bytes.Buffer
}

func newHarness(t *testing.T, h protocol.Header, route *navigation.Route, seed uint64) *harness {
	t.Helper()
	table, env, cat := testWorld(t)
	buf := &bytes.Buffer{}
	w, err := protocol.NewWriter(buf, testDate)
	require.NoError(t, err)
	clock := &tracker.ManualClock{}
	clock.Set(1000)
	ft := tracker.NewFileTracker(tracker.WithWriter(w), tracker.WithClock(clock))

	nav := navigation.DefaultConfig()
	nav.StartDelay = 0
	s, err := New(Config{Header: h, Seed: seed, Route: route, Nav: nav}, table, env, cat, ft)
	require.NoError(t, err)
	require.NoError(t, s.Begin(context.Background(), ""))
	return &harness{s: s, clock: clock, ft: ft, buf: buf}
}

func (h *harness) tick(t *testing.T) bool {
	t.Helper()
	running, err := h.s.Tick(0.1)
	require.NoError(t, err)
	h.clock.Advance(100 * time.Millisecond)
	return running
}

func payloads(t *testing.T, log string) []protocol.Entry {
	t.Helper()
	var out []protocol.Entry
	for _, line := range strings.Split(log, "\n") {
		if e, ok := protocol.Parse(line); ok {
			out = append(out, e)
		}
	}
	return out
}

func countKind(entries []protocol.Entry, k protocol.Kind) int {
	n := 0
	for _, e := range entries {
		if e.Kind == k {
			n++
		}
	}
	return n
}

func TestNewValidates(t *testing.T) {
	table, env, cat := testWorld(t)
	tr := tracker.NewMock()

	h := testHeader()
	h.ObjectSize = 0
	_, err := New(Config{Header: h}, table, env, cat, tr)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	h = testHeader()
	h.Presentation = protocol.PresentFollow
	_, err = New(Config{Header: h}, table, env, cat, tr)
	assert.ErrorIs(t, err, ErrFollowNeedsRoute)

	h = testHeader()
	h.MinBrakeDelay = 5
	h.MaxBrakeDelay = 2
	_, err = New(Config{Header: h}, table, env, cat, tr)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestTickBeforeBegin(t *testing.T) {
	table, env, cat := testWorld(t)
	s, err := New(Config{Header: testHeader()}, table, env, cat, tracker.NewMock())
	require.NoError(t, err)
	_, err = s.Tick(0.1)
	assert.ErrorIs(t, err, ErrNotBegun)
}

func TestFirstTrial(t *testing.T) {
	h := newHarness(t, testHeader(), nil, 1)
	require.True(t, h.tick(t))
	require.NoError(t, h.s.EndLevel())

	entries := payloads(t, h.buf.String())
	assert.Equal(t, protocol.KindSync, entries[0].Kind)
	assert.Equal(t, int(tracker.CodeStartRecording), entries[0].Code)
	assert.Equal(t, protocol.KindHeaderBegin, entries[1].Kind)

	// Prevalence 1 fills all six cubbies.
	assert.Equal(t, 6, countKind(entries, protocol.KindCreated))
	assert.Equal(t, 1, countKind(entries, protocol.KindCamera))
	assert.Equal(t, 1, countKind(entries, protocol.KindEye))

	var order []string
	for _, e := range entries {
		switch e.Kind {
		case protocol.KindBoundary:
			order = append(order, e.Boundary.Marker())
		case protocol.KindDestroyedAll:
			order = append(order, "destroyed all")
		case protocol.KindSync:
			if e.Code == int(tracker.CodeEndRecording) {
				order = append(order, "end recording")
			}
		}
	}
	assert.Equal(t, []string{
		protocol.MarkerLoadTrial,
		protocol.MarkerStartTrial,
		protocol.MarkerEndTrial,
		"end recording",
		"destroyed all",
	}, order)
	assert.True(t, strings.HasSuffix(h.buf.String(), "END LOG\n"))
	assert.Equal(t, 0, h.s.Registry().Len())
}

func TestPlacementRule(t *testing.T) {
	h := newHarness(t, testHeader(), nil, 3)
	h.tick(t)
	for _, o := range h.s.Registry().Live() {
		b := o.Bounds
		switch o.Kind {
		case scene.Model:
			assert.InDelta(t, 1.0, b.Size().MaxComponent(), 1e-9, "object %d longest side", o.Number)
			assert.InDelta(t, 0.0, b.Min().Y, 1e-9, "object %d bottom", o.Number)
		case scene.Image:
			assert.InDelta(t, 0.5, b.Center.Y, 1e-9, "image %d center height", o.Number)
			assert.InDelta(t, 1.0, b.Size().Y, 1e-9)
		}
		assert.True(t, o.Tracked)
		assert.Equal(t, o.Role == category.Target, o.Category == "cars")
	}
}

func TestSameSeedSameLog(t *testing.T) {
	run := func(seed uint64) string {
		h := newHarness(t, testHeader(), nil, seed)
		for i := 0; i < 5; i++ {
			h.tick(t)
		}
		h.s.Reset()
		for i := 0; i < 5; i++ {
			h.tick(t)
		}
		require.NoError(t, h.s.EndLevel())
		return h.buf.String()
	}
	assert.Equal(t, run(42), run(42))

	hp := testHeader()
	hp.ObjectPrevalence = 0.5
	a := newHarness(t, hp, nil, 1)
	b := newHarness(t, hp, nil, 2)
	for i := 0; i < 3; i++ {
		a.s.Reset()
		a.tick(t)
		b.s.Reset()
		b.tick(t)
	}
	assert.NotEqual(t, a.buf.String(), b.buf.String())
}

func TestResetRestartsNumbering(t *testing.T) {
	h := newHarness(t, testHeader(), nil, 5)
	h.tick(t)
	h.s.Reset()
	h.tick(t)

	entries := payloads(t, h.buf.String())
	var firsts int
	for _, e := range entries {
		if e.Kind == protocol.KindCreated && e.Number == 1 {
			firsts++
		}
	}
	assert.Equal(t, 2, firsts)
	assert.Equal(t, 1, countKind(entries, protocol.KindDestroyedAll))
	assert.Equal(t, 2, h.s.Status().Trials)
}

func TestSyncToggles(t *testing.T) {
	h := newHarness(t, testHeader(), nil, 1)
	var lit []bool
	for i := 0; i < 25; i++ {
		h.tick(t)
		lit = append(lit, h.s.Photodiode())
	}
	entries := payloads(t, h.buf.String())
	var codes []int
	for _, e := range entries {
		if e.Kind == protocol.KindSync && e.Code != int(tracker.CodeStartRecording) {
			codes = append(codes, e.Code)
		}
	}
	// One toggle per second of tracker time.
	assert.Equal(t, []int{211, 0, 211}, codes)
	assert.True(t, lit[0])
}

func TestTrialTimeEndsSession(t *testing.T) {
	hp := testHeader()
	hp.TrialTime = 0.5
	h := newHarness(t, hp, nil, 1)
	ticks := 0
	for h.tick(t) {
		ticks++
		require.Less(t, ticks, 100)
	}
	assert.True(t, h.s.Ended())
	assert.Equal(t, 6, ticks)
	assert.NoError(t, h.s.EndLevel())
}

func TestEndOfSessionReportsStopError(t *testing.T) {
	errOffline := errors.New("tracker offline")

	run := func(t *testing.T, hp protocol.Header, route *navigation.Route) error {
		t.Helper()
		table, env, cat := testWorld(t)
		tr := tracker.NewMock()
		clock := tr.Clock.(*tracker.ManualClock)
		clock.Set(1000)
		tr.StopFunc = func() error { return errOffline }

		nav := navigation.DefaultConfig()
		nav.StartDelay = 0
		s, err := New(Config{Header: hp, Seed: 1, Route: route, Nav: nav}, table, env, cat, tr)
		require.NoError(t, err)
		require.NoError(t, s.Begin(context.Background(), ""))

		for i := 0; i < 1000; i++ {
			running, err := s.Tick(0.1)
			if !running {
				assert.True(t, s.Ended())
				assert.Equal(t, 1, tr.CallCount("Stop"))
				return err
			}
			require.NoError(t, err)
			clock.Advance(100 * time.Millisecond)
		}
		t.Fatal("session did not end")
		return nil
	}

	t.Run("trial time", func(t *testing.T) {
		hp := testHeader()
		hp.TrialTime = 0.5
		assert.ErrorIs(t, run(t, hp, nil), errOffline)
	})

	t.Run("walk done", func(t *testing.T) {
		assert.ErrorIs(t, run(t, testHeader(), straightRoute(4)), errOffline)
	})
}

func straightRoute(n int) *navigation.Route {
	pts := make([]geom.Vec2, n)
	for i := range pts {
		pts[i] = geom.V2(0, float64(20*i))
	}
	r := navigation.NewRoute(pts)
	return &r
}

func TestFollowBrakeCycle(t *testing.T) {
	hp := testHeader()
	hp.Presentation = protocol.PresentFollow
	h := newHarness(t, hp, straightRoute(30), 9)

	lead, ok := h.s.LeaderPosition()
	require.True(t, ok)
	assert.InDelta(t, 10, lead.Z, 1e-9)
	assert.Equal(t, 0.0, lead.Y)

	h.tick(t) // loads the trial at t=1s; brake due after t=2s
	for i := 0; i < 11; i++ {
		h.tick(t)
	}
	st := h.s.Status()
	require.Equal(t, Braking.String(), st.Leader)
	assert.True(t, st.Lights)

	h.ft.Press(tracker.ButtonBrake)
	h.tick(t)
	st = h.s.Status()
	require.Equal(t, CatchingUp.String(), st.Leader)
	assert.False(t, st.Lights)

	for i := 0; i < 200 && h.s.Status().Leader != Cruising.String(); i++ {
		require.True(t, h.tick(t))
	}
	require.Equal(t, Cruising.String(), h.s.Status().Leader)

	var leader []protocol.Leader
	for _, e := range payloads(t, h.buf.String()) {
		if e.Kind == protocol.KindLeader {
			leader = append(leader, e.Leader)
		}
	}
	assert.Equal(t, []protocol.Leader{protocol.LeaderSlow, protocol.LeaderFast, protocol.LeaderNormal}, leader)

	require.NoError(t, h.s.EndLevel())
	_, ok = h.s.LeaderPosition()
	assert.False(t, ok)
}

func TestPassiveWalkEndsSession(t *testing.T) {
	h := newHarness(t, testHeader(), straightRoute(4), 1)
	assert.Equal(t, 0, h.s.Header().StartPoint)
	for i := 0; i < 1000 && h.tick(t); i++ {
	}
	assert.True(t, h.s.Ended())
	nav := h.s.Status().Navigation
	require.NotNil(t, nav)
	assert.True(t, nav.Done)
}
