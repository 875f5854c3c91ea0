package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nede-neuro/go-nede/pkg/category"
	"github.com/nede-neuro/go-nede/pkg/protocol"
)

// Experiment holds the parameters of one session, as set by the
// experimenter before it starts.
type Experiment struct {
	Subject     string `yaml:"subject"`
	Session     string `yaml:"session"`
	Run         string `yaml:"run"`
	Active      bool   `yaml:"active"`
	EDFFilename string `yaml:"edf_filename"`
	Level       string `yaml:"level"`

	TrialTime        float64 `yaml:"trial_time"` // seconds
	Presentation     string  `yaml:"presentation"`
	Locations        string  `yaml:"locations"`
	ObjectSize       float64 `yaml:"object_size"`
	DistanceToLeader float64 `yaml:"distance_to_leader"`
	ObjectPrevalence float64 `yaml:"object_prevalence"`
	MinBrakeDelay    float64 `yaml:"min_brake_delay"`
	MaxBrakeDelay    float64 `yaml:"max_brake_delay"`
	ObjectMoveTime   float64 `yaml:"object_move_time"`
	RecordObjBox     bool    `yaml:"record_obj_box"`
	PhotodiodeUsed   bool    `yaml:"photodiode_used"`
	PhotodiodeSize   float64 `yaml:"photodiode_size"`
	SyncDelay        float64 `yaml:"sync_delay"`
	ObjToSee         int     `yaml:"obj_to_see"`
	MoveSpeed        float64 `yaml:"move_speed"`
	SpinSpeed        float64 `yaml:"spin_speed"`
	Seed             uint64  `yaml:"seed"`

	Categories  []category.Entry     `yaml:"categories"`
	Calibration protocol.Calibration `yaml:"calibration"`
}

// DefaultExperiment returns a passive stationary session.
func DefaultExperiment() Experiment {
	return Experiment{
		Subject:          "test",
		Session:          "1",
		Run:              "1",
		Level:            "hallway",
		TrialTime:        60,
		Presentation:     "stationary",
		Locations:        "all",
		ObjectSize:       1.5,
		DistanceToLeader: 10,
		ObjectPrevalence: 0.5,
		MinBrakeDelay:    3,
		MaxBrakeDelay:    8,
		ObjectMoveTime:   1,
		RecordObjBox:     true,
		PhotodiodeSize:   50,
		SyncDelay:        1,
		ObjToSee:         10,
		MoveSpeed:        3,
		SpinSpeed:        90,
		Calibration:      protocol.IdentityCalibration(),
	}
}

// ParseExperiment decodes YAML over the defaults and validates the result.
func ParseExperiment(data []byte) (Experiment, error) {
	e := DefaultExperiment()
	if err := yaml.Unmarshal(data, &e); err != nil {
		return Experiment{}, fmt.Errorf("parse experiment: %w", err)
	}
	if err := e.Validate(); err != nil {
		return Experiment{}, err
	}
	return e, nil
}

// LoadExperiment reads an experiment file.
func LoadExperiment(path string) (Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Experiment{}, fmt.Errorf("read experiment: %w", err)
	}
	return ParseExperiment(data)
}

// Validate checks the experiment.
func (e Experiment) Validate() error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: "+format, append([]any{ErrInvalidExperiment}, args...)...)
	}
	switch {
	case strings.TrimSpace(e.Level) == "":
		return bad("level is required")
	case e.TrialTime <= 0:
		return bad("trial_time %v", e.TrialTime)
	case e.ObjectSize <= 0:
		return bad("object_size %v", e.ObjectSize)
	case e.ObjectPrevalence < 0 || e.ObjectPrevalence > 1:
		return bad("object_prevalence %v", e.ObjectPrevalence)
	case e.MinBrakeDelay > e.MaxBrakeDelay:
		return bad("brake delay range [%v, %v]", e.MinBrakeDelay, e.MaxBrakeDelay)
	case e.SyncDelay <= 0:
		return bad("sync_delay %v", e.SyncDelay)
	case e.MoveSpeed < 0:
		return bad("move_speed %v", e.MoveSpeed)
	case e.ObjToSee < 0:
		return bad("obj_to_see %d", e.ObjToSee)
	}
	if _, err := e.presentation(); err != nil {
		return err
	}
	if _, err := e.Table(); err != nil {
		return bad("%v", err)
	}
	return nil
}

func (e Experiment) presentation() (protocol.Presentation, error) {
	switch strings.ToLower(strings.TrimSpace(e.Presentation)) {
	case "", "stationary":
		return protocol.PresentStationary, nil
	case "follow":
		return protocol.PresentFollow, nil
	}
	return 0, fmt.Errorf("%w: presentation %q", ErrInvalidExperiment, e.Presentation)
}

// Table builds the category table.
func (e Experiment) Table() (*category.Table, error) {
	return category.New(e.Categories)
}

// Header returns the session header for a screen of the given size,
// dated now.
func (e Experiment) Header(width, height float64, now time.Time) protocol.Header {
	p, _ := e.presentation()
	return protocol.Header{
		Subject:          e.Subject,
		Session:          e.Session,
		Run:              e.Run,
		Date:             now.Format("1/2/2006 3:04:05 PM"),
		ActiveSession:    e.Active,
		EDFFilename:      e.EDFFilename,
		Level:            e.Level,
		TrialTime:        e.TrialTime,
		Presentation:     p,
		Locations:        e.Locations,
		ObjectSize:       e.ObjectSize,
		DistanceToLeader: e.DistanceToLeader,
		ObjectPrevalence: e.ObjectPrevalence,
		MinBrakeDelay:    e.MinBrakeDelay,
		MaxBrakeDelay:    e.MaxBrakeDelay,
		ObjectMoveTime:   e.ObjectMoveTime,
		RecordObjBox:     e.RecordObjBox,
		PhotodiodeUsed:   e.PhotodiodeUsed,
		PhotodiodeSize:   e.PhotodiodeSize,
		SyncDelay:        e.SyncDelay,
		Categories:       append([]category.Entry(nil), e.Categories...),
		ObjToSee:         e.ObjToSee,
		MoveSpeed:        e.MoveSpeed,
		SpinSpeed:        e.SpinSpeed,
		ScreenWidth:      width,
		ScreenHeight:     height,
		Calibration:      e.Calibration,
	}
}

// LogName returns the session log file name.
func (e Experiment) LogName() string {
	return fmt.Sprintf("%s_%s_%s.log", e.Subject, e.Session, e.Run)
}
