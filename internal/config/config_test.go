package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nede-neuro/go-nede/pkg/category"
	"github.com/nede-neuro/go-nede/pkg/geom"
	"github.com/nede-neuro/go-nede/pkg/navigation"
	"github.com/nede-neuro/go-nede/pkg/protocol"
)

func TestLoadSettingsDefaults(t *testing.T) {
	s, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, "info", s.LogLevel)
	assert.Equal(t, 60, s.FrameRate)
	assert.Equal(t, time.Second/60, s.FrameInterval())
	assert.Equal(t, filepath.Join(".", "levels", "hallway.yaml"), s.LevelPath("hallway"))
}

func TestLoadSettingsFromEnv(t *testing.T) {
	t.Setenv("NEDE_FRAME_RATE", "120")
	t.Setenv("NEDE_MONITOR_PORT", "9000")
	t.Setenv("NEDE_DATA_DIR", "/data")

	s, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, 120, s.FrameRate)
	assert.Equal(t, "9000", s.MonitorPort)
	assert.Equal(t, "/data/assets.yaml", s.CatalogPath())
}

func TestLoadSettingsInvalid(t *testing.T) {
	t.Setenv("NEDE_FRAME_RATE", "0")
	_, err := LoadSettings()
	assert.True(t, errors.Is(err, ErrInvalidSettings), "err = %v", err)

	t.Setenv("NEDE_FRAME_RATE", "fast")
	_, err = LoadSettings()
	assert.Error(t, err)
}

const experimentYAML = `
subject: s07
session: "2"
level: hallway
presentation: follow
trial_time: 30
object_prevalence: 0.25
categories:
  - name: cars
    role: target
    prevalence: 1
  - name: faces
    role: distractor
    prevalence: 3
calibration:
  offset_x: 12
  offset_y: -4
  gain_x: 1.1
  gain_y: 0.9
`

func TestParseExperiment(t *testing.T) {
	e, err := ParseExperiment([]byte(experimentYAML))
	require.NoError(t, err)

	assert.Equal(t, "s07", e.Subject)
	assert.Equal(t, "1", e.Run, "unset fields keep defaults")
	assert.Equal(t, category.Target, e.Categories[0].Role)

	h := e.Header(800, 600, time.Date(2026, 3, 1, 14, 5, 0, 0, time.UTC))
	assert.Equal(t, protocol.PresentFollow, h.Presentation)
	assert.Equal(t, "3/1/2026 2:05:00 PM", h.Date)
	assert.Equal(t, 800.0, h.ScreenWidth)
	assert.Equal(t, 12.0, h.Calibration.OffsetX)
	assert.Equal(t, "s07_2_1.log", e.LogName())

	table, err := e.Table()
	require.NoError(t, err)
	assert.NotNil(t, table)
}

func TestExperimentValidate(t *testing.T) {
	valid := func() Experiment {
		e := DefaultExperiment()
		e.Categories = []category.Entry{{Name: "cars", Role: category.Target, Prevalence: 1}}
		return e
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		modify func(*Experiment)
	}{
		{"no level", func(e *Experiment) { e.Level = " " }},
		{"zero trial time", func(e *Experiment) { e.TrialTime = 0 }},
		{"zero object size", func(e *Experiment) { e.ObjectSize = 0 }},
		{"prevalence above one", func(e *Experiment) { e.ObjectPrevalence = 1.5 }},
		{"brake range inverted", func(e *Experiment) { e.MinBrakeDelay, e.MaxBrakeDelay = 5, 2 }},
		{"zero sync delay", func(e *Experiment) { e.SyncDelay = 0 }},
		{"unknown presentation", func(e *Experiment) { e.Presentation = "orbit" }},
		{"no categories", func(e *Experiment) { e.Categories = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid()
			tt.modify(&e)
			err := e.Validate()
			assert.True(t, errors.Is(err, ErrInvalidExperiment), "err = %v", err)
		})
	}
}

func TestLoadExperimentMissing(t *testing.T) {
	_, err := LoadExperiment(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

const levelYAML = `
name: hallway
route: hallway_route.txt
cubbies:
  - name: L1
    position: [-5, 0, 20]
    yaw: 90
    locations: [[-5, 0, 19], [-5, 0, 21]]
  - name: R1
    position: [5, 0, 20]
    yaw: -90
walls:
  - [[-2.5, 0], [-2.5, 100]]
`

func TestLoadLevel(t *testing.T) {
	dir := t.TempDir()
	levelPath := filepath.Join(dir, "hallway.yaml")
	require.NoError(t, os.WriteFile(levelPath, []byte(levelYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hallway_route.txt"), []byte("0,0,0\n0,20,1\n0,40,0\n"), 0o644))

	l, err := LoadLevel(levelPath)
	require.NoError(t, err)

	env := l.Environment()
	assert.Equal(t, "hallway", env.Name)
	assert.Equal(t, 5.0, env.CellSize)
	require.Len(t, env.Cubbies, 2)
	assert.Equal(t, geom.V3(-5, 0, 20), env.Cubbies[0].Position)
	assert.Equal(t, 90.0, env.Cubbies[0].Yaw)
	assert.Equal(t, []geom.Vec3{geom.V3(-5, 0, 19), geom.V3(-5, 0, 21)}, env.Cubbies[0].Locations)
	assert.Empty(t, env.Cubbies[1].Locations)
	require.Len(t, env.Walls, 1)
	assert.Equal(t, geom.V2(-2.5, 100), env.Walls[0].B)

	route, err := l.LoadRoute()
	require.NoError(t, err)
	require.NotNil(t, route)
	assert.Equal(t, 3, route.Len())
	assert.Equal(t, 1, route.Objects())
}

func TestLevelWithoutRoute(t *testing.T) {
	l, err := ParseLevel([]byte("name: empty\n"), "/levels")
	require.NoError(t, err)
	route, err := l.LoadRoute()
	require.NoError(t, err)
	assert.Nil(t, route)
}

func TestLevelMissingRoute(t *testing.T) {
	l, err := ParseLevel([]byte("name: x\nroute: gone.txt\n"), t.TempDir())
	require.NoError(t, err)
	_, err = l.LoadRoute()
	assert.True(t, errors.Is(err, navigation.ErrFileNotFound), "err = %v", err)
}

func TestParseLevelInvalid(t *testing.T) {
	_, err := ParseLevel([]byte("cubbies: []\n"), ".")
	assert.True(t, errors.Is(err, ErrInvalidLevel))

	_, err = ParseLevel([]byte("name: [unclosed"), ".")
	assert.Error(t, err)
}
