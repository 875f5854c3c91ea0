// Package trial generates live trials: it places targets and distractors
// in cubbies, keeps the tracker in sync, runs the Follow brake cycle and
// logs the scene every frame.
package trial

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/nede-neuro/go-nede/pkg/category"
	"github.com/nede-neuro/go-nede/pkg/geom"
	"github.com/nede-neuro/go-nede/pkg/navigation"
	"github.com/nede-neuro/go-nede/pkg/protocol"
	"github.com/nede-neuro/go-nede/pkg/scene"
	"github.com/nede-neuro/go-nede/pkg/tracker"
	"github.com/nede-neuro/go-nede/pkg/visibility"
)

// Config configures a Scheduler.
type Config struct {
	// Header holds the session parameters. StartPoint is filled in by
	// Begin for passive sessions.
	Header protocol.Header

	// Seed makes placement and timing reproducible.
	Seed uint64

	// Route drives the camera in a passive session. Nil means the camera
	// is steered from outside with SetPose.
	Route *navigation.Route

	// Nav holds walking settings; MoveSpeed is taken from the header.
	Nav navigation.Config

	// Observer, if set, sees every entry the scheduler logs.
	Observer func(protocol.Entry)

	Logger *slog.Logger
}

// Scheduler runs one live session. All methods except Status and Objects
// must be called from the frame loop.
type Scheduler struct {
	cfg    Config
	hdr    protocol.Header
	table  *category.Table
	env    *scene.Environment
	assets scene.AssetStore
	tr     tracker.Tracker
	rng    *rand.Rand
	log    *slog.Logger
	reg    *scene.Registry

	cam      geom.Camera
	raw      geom.Vec2 // as the tracker reports it
	gaze     geom.Vec2 // calibrated
	slots    []slot
	follower *navigation.Navigator
	leader   *Leader

	syncOn    bool
	syncTime  float64
	nextBrake float64
	trialEnd  float64
	reset     bool
	trials    int
	begun     bool
	ended     bool

	mu      sync.RWMutex
	status  Status
	objects []scene.Object
}

// Status is a snapshot for monitors.
type Status struct {
	Time       int64             `json:"time"`
	Trials     int               `json:"trials"`
	Objects    int               `json:"objects"`
	Photodiode bool              `json:"photodiode"`
	Leader     string            `json:"leader,omitempty"`
	Lights     bool              `json:"lights"`
	Camera     geom.Vec3         `json:"camera"`
	Gaze       geom.Vec2         `json:"gaze"`
	Navigation *navigation.State `json:"navigation,omitempty"`
	Ended      bool              `json:"ended"`
}

// New validates cfg and creates a scheduler. The category table must
// describe the same categories as cfg.Header.
func New(cfg Config, table *category.Table, env *scene.Environment, assets scene.AssetStore, tr tracker.Tracker) (*Scheduler, error) {
	h := cfg.Header
	switch {
	case h.ObjectSize <= 0:
		return nil, fmt.Errorf("%w: objectSize %v", ErrInvalidConfig, h.ObjectSize)
	case h.SyncDelay <= 0:
		return nil, fmt.Errorf("%w: syncDelay %v", ErrInvalidConfig, h.SyncDelay)
	case h.ObjectPrevalence < 0 || h.ObjectPrevalence > 1:
		return nil, fmt.Errorf("%w: objectPrevalence %v", ErrInvalidConfig, h.ObjectPrevalence)
	case h.MinBrakeDelay > h.MaxBrakeDelay:
		return nil, fmt.Errorf("%w: brake delay range [%v, %v]", ErrInvalidConfig, h.MinBrakeDelay, h.MaxBrakeDelay)
	case h.Presentation == protocol.PresentFollow && cfg.Route == nil:
		return nil, ErrFollowNeedsRoute
	case table == nil || env == nil || assets == nil || tr == nil:
		return nil, fmt.Errorf("%w: missing collaborator", ErrInvalidConfig)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	cam := geom.NewCamera(h.ScreenWidth, h.ScreenHeight)
	cam.Position.Y = cfg.Nav.Height
	return &Scheduler{
		cfg:       cfg,
		hdr:       h,
		table:     table,
		env:       env,
		assets:    assets,
		tr:        tr,
		rng:       rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		log:       cfg.Logger.With("component", "trial"),
		reg:       scene.NewRegistry(),
		cam:       cam,
		nextBrake: math.Inf(1),
		trialEnd:  math.Inf(1),
	}, nil
}

func (s *Scheduler) navConfig() navigation.Config {
	c := s.cfg.Nav
	c.MoveSpeed = s.hdr.MoveSpeed
	return c
}

func (s *Scheduler) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

// emit logs e through the tracker, which stamps it with tracker time.
func (s *Scheduler) emit(e protocol.Entry) {
	e.Time = s.tr.Now()
	if err := s.tr.Message(e.Payload()); err != nil {
		s.log.Warn("log message", "kind", e.Kind, "error", err)
	}
	if s.cfg.Observer != nil {
		s.cfg.Observer(e)
	}
}

func (s *Scheduler) sendCode(c tracker.Code) {
	if err := s.tr.SendCode(c); err != nil {
		s.log.Warn("send code", "code", int(c), "error", err)
	}
	if s.cfg.Observer != nil {
		s.cfg.Observer(protocol.Entry{Kind: protocol.KindSync, Time: s.tr.Now(), Code: int(c)})
	}
}

// Begin sets up the session: starts the walk (and leader), opens the
// tracker log, writes the header and picks a location in every cubby. The
// first trial is loaded on the next Tick.
func (s *Scheduler) Begin(ctx context.Context, filename string) error {
	if s.cfg.Route != nil {
		route := *s.cfg.Route
		start := 0
		if last := navigation.LastOkStartPoint(route, s.hdr.ObjToSee); last > 0 {
			start = s.rng.IntN(last)
		}
		s.hdr.StartPoint = start
		s.follower = navigation.New(route, s.navConfig())
		if err := s.follower.Begin(start, navigation.EndIndex(route, start, s.hdr.ObjToSee)); err != nil {
			return fmt.Errorf("start route: %w", err)
		}
		s.cam.Position = s.follower.Position()
		s.cam.Rotation = s.follower.Rotation()
		if s.hdr.Presentation == protocol.PresentFollow {
			if err := s.startLeader(start); err != nil {
				return fmt.Errorf("start leader: %w", err)
			}
		}
	}

	if err := s.tr.Start(ctx, filename); err != nil {
		return fmt.Errorf("start tracker: %w", err)
	}
	s.sendCode(tracker.CodeStartRecording)
	for _, e := range s.hdr.Entries() {
		s.emit(e)
	}

	s.slots = s.pickSlots()
	if len(s.slots) == 0 {
		s.emit(protocol.Entry{Kind: protocol.KindText, Text: "WARNING: No cubbies found!"})
	}
	s.begun = true
	s.reset = true
	s.publish()
	return nil
}

// Reset asks for a new trial on the next Tick.
func (s *Scheduler) Reset() { s.reset = true }

// SetPose moves the camera in an active session.
func (s *Scheduler) SetPose(pos geom.Vec3, rot geom.Quat) {
	s.cam.Position, s.cam.Rotation = pos, rot
}

// Tick runs one frame of dt seconds. It reports whether the session is
// still running.
func (s *Scheduler) Tick(dt float64) (bool, error) {
	if !s.begun {
		return false, ErrNotBegun
	}
	if s.ended {
		return false, nil
	}
	t := float64(s.tr.Now()) / 1000

	if t > s.trialEnd {
		return false, s.EndLevel()
	}

	if t > s.syncTime {
		s.syncOn = !s.syncOn
		if s.syncOn {
			s.sendCode(tracker.CodeSync)
		} else {
			s.sendCode(tracker.CodeNone)
		}
		s.syncTime = t + s.hdr.SyncDelay
	}

	if s.reset {
		s.reset = false
		s.loadTrial(t)
	}

	if s.hdr.Presentation == protocol.PresentFollow {
		s.updateFollow(t)
	}

	if s.follower != nil {
		walking := s.follower.Tick(dt)
		s.cam.Position = s.follower.Position()
		s.cam.Rotation = s.follower.Rotation()
		if s.leader != nil {
			s.leader.Nav.Tick(dt)
		}
		if !walking {
			return false, s.EndLevel()
		}
	}

	s.lateUpdate()
	s.publish()
	return true, nil
}

// loadTrial clears the previous trial and places a new one.
func (s *Scheduler) loadTrial(t float64) {
	if s.reg.Len() > 0 {
		s.emit(protocol.Entry{Kind: protocol.KindBoundary, Boundary: protocol.BoundaryEnd})
		s.destroyAll()
	}
	s.emit(protocol.Entry{Kind: protocol.KindBoundary, Boundary: protocol.BoundaryLoad})
	s.placeObjects()

	s.nextBrake = math.Inf(1)
	if s.hdr.Presentation == protocol.PresentFollow {
		s.scheduleBrake(t)
	}

	s.tr.Flush()
	s.emit(protocol.Entry{Kind: protocol.KindBoundary, Boundary: protocol.BoundaryStart})
	s.trialEnd = t + s.hdr.TrialTime
	s.trials++
	s.log.Info("trial loaded", "trial", s.trials, "objects", s.reg.Len())
}

// lateUpdate logs what is on screen, then the camera, then the raw eye
// position. Consumers apply the calibration logged in the header.
func (s *Scheduler) lateUpdate() {
	if raw, ok := s.tr.Gaze(); ok {
		s.raw = raw
		s.gaze = s.hdr.Calibration.Apply(raw)
	}
	if s.hdr.RecordObjBox {
		for _, o := range s.reg.Live() {
			if !o.Tracked {
				continue
			}
			r := visibility.Compute(s.cam, o.Bounds.Corners(), o.Topology, s.env)
			if !r.Visible() {
				continue
			}
			s.emit(protocol.Entry{
				Kind:     protocol.KindVisible,
				Number:   o.Number,
				Rect:     r.Rect,
				Fraction: r.Fraction,
				GazeHit:  visibility.GazeHit(r, s.gaze, visibility.GazeMargin),
			})
		}
	}
	s.emit(protocol.Entry{Kind: protocol.KindCamera, Position: s.cam.Position, Rotation: s.cam.Rotation, HasRot: true})
	s.emit(protocol.Entry{Kind: protocol.KindEye, Gaze: s.raw, HasGaze: true})
}

// EndLevel ends the session: closes the trial, destroys every object and
// the leader, and stops the tracker. It is safe to call more than once.
func (s *Scheduler) EndLevel() error {
	if !s.begun || s.ended {
		return nil
	}
	s.ended = true
	s.emit(protocol.Entry{Kind: protocol.KindBoundary, Boundary: protocol.BoundaryEnd})
	s.sendCode(tracker.CodeEndRecording)
	s.destroyAll()
	s.leader = nil
	s.publish()
	s.log.Info("session ended", "trials", s.trials)
	if err := s.tr.Stop(); err != nil {
		return fmt.Errorf("stop tracker: %w", err)
	}
	return nil
}

// Ended reports whether EndLevel has run.
func (s *Scheduler) Ended() bool { return s.ended }

// Camera returns the current camera.
func (s *Scheduler) Camera() geom.Camera { return s.cam }

// Registry returns the live objects.
func (s *Scheduler) Registry() *scene.Registry { return s.reg }

// Header returns the session parameters as logged.
func (s *Scheduler) Header() protocol.Header { return s.hdr }

// Photodiode reports whether the sync square is lit.
func (s *Scheduler) Photodiode() bool { return s.syncOn }

func (s *Scheduler) publish() {
	st := Status{
		Time:       s.tr.Now(),
		Trials:     s.trials,
		Objects:    s.reg.Len(),
		Photodiode: s.syncOn,
		Camera:     s.cam.Position,
		Gaze:       s.gaze,
		Ended:      s.ended,
	}
	if s.leader != nil {
		st.Leader = s.leader.State.String()
		st.Lights = s.leader.Lights
	}
	if s.follower != nil {
		ns := s.follower.State()
		st.Navigation = &ns
	}
	objs := s.reg.Snapshot()
	s.mu.Lock()
	s.status = st
	s.objects = objs
	s.mu.Unlock()
}

// Status returns the latest snapshot. It is safe from any goroutine.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Objects returns the live objects as of the last Tick. It is safe from
// any goroutine.
func (s *Scheduler) Objects() []scene.Object {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]scene.Object(nil), s.objects...)
}
