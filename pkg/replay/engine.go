// Package replay plays a recorded session log back in virtual time,
// rebuilds the scene it describes and derives which objects were visible
// and which were under the subject's gaze.
package replay

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nede-neuro/go-nede/pkg/category"
	"github.com/nede-neuro/go-nede/pkg/geom"
	"github.com/nede-neuro/go-nede/pkg/protocol"
	"github.com/nede-neuro/go-nede/pkg/scene"
	"github.com/nede-neuro/go-nede/pkg/visibility"
)

// State is where a replay is in its life.
type State int

const (
	Running State = iota
	Draining
	Finished
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Draining:
		return "draining"
	case Finished:
		return "finished"
	default:
		return "running"
	}
}

// DefaultGrace is how long a replay lingers after the last line.
const DefaultGrace = 2 * time.Second

// Config configures an Engine.
type Config struct {
	// TimeScale multiplies wall time into virtual time. Zero pauses.
	TimeScale float64

	// Grace is the wall time spent Draining after end of stream.
	Grace time.Duration

	// ScreenWidth and ScreenHeight are used when the header has no
	// screen size.
	ScreenWidth  float64
	ScreenHeight float64

	Sinks    []Sink
	Observer func(protocol.Entry)
	Logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Config)

// DefaultConfig returns real-time playback on an 800x600 screen.
func DefaultConfig() Config {
	return Config{
		TimeScale:    1,
		Grace:        DefaultGrace,
		ScreenWidth:  800,
		ScreenHeight: 600,
	}
}

// WithTimeScale sets the starting time scale.
func WithTimeScale(s float64) Option {
	return func(c *Config) { c.TimeScale = s }
}

// WithGrace sets the drain time.
func WithGrace(d time.Duration) Option {
	return func(c *Config) { c.Grace = d }
}

// WithScreen sets the fallback screen size.
func WithScreen(w, h float64) Option {
	return func(c *Config) { c.ScreenWidth, c.ScreenHeight = w, h }
}

// WithSink adds an annotation sink.
func WithSink(s Sink) Option {
	return func(c *Config) { c.Sinks = append(c.Sinks, s) }
}

// WithObserver sets a function that sees every applied entry.
func WithObserver(fn func(protocol.Entry)) Option {
	return func(c *Config) { c.Observer = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// Indicators are the transient hardware flags shown to the experimenter.
type Indicators struct {
	Button  bool `json:"button"`
	Saccade bool `json:"saccade"`
	Blink   bool `json:"blink"`
}

// Status is a snapshot for monitors.
type Status struct {
	State          string     `json:"state"`
	Clock          float64    `json:"clock"`   // virtual ms
	Tracker        int64      `json:"tracker"` // tracker ms of the last applied line
	TimeScale      float64    `json:"time_scale"`
	Objects        int        `json:"objects"`
	Lines          int        `json:"lines"`
	Indicators     Indicators `json:"indicators"`
	LastSaccadeEnd int64      `json:"last_saccade_end"`
	Gaze           geom.Vec2  `json:"gaze"`
	Camera         geom.Vec3  `json:"camera"`
}

// Engine replays one log. Tick, Step and Close must be called from one
// goroutine; Status, Objects and Visibility are safe from any.
type Engine struct {
	cfg        Config
	hdr        protocol.Header
	categories []string
	env        *scene.Environment
	assets     scene.AssetStore
	r          *protocol.Reader
	w          *protocol.Writer
	log        *slog.Logger
	reg        *scene.Registry

	cam   geom.Camera
	gaze  geom.Vec2
	start int64   // tracker ms of the first MSG
	clock float64 // virtual ms
	last  int64   // tracker ms of the last applied line

	ind       Indicators
	endSacc   int64
	endBlink  int64
	state     State
	drainLeft float64

	mu      sync.RWMutex
	status  Status
	objects []scene.Object
	visible map[int]visibility.Result
}

// New prepares a replay of r, which must be positioned at the start of the
// log. hdr is the header already read from it. The derived log w gets the
// calibration values first; it may be a non-recording writer.
func New(hdr protocol.Header, r *protocol.Reader, w *protocol.Writer, env *scene.Environment, assets scene.AssetStore, opts ...Option) (*Engine, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.TimeScale < 0 {
		cfg.TimeScale = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	start, err := FirstMessageTime(r)
	if err != nil {
		return nil, err
	}

	sw, sh := hdr.ScreenWidth, hdr.ScreenHeight
	if sw <= 0 || sh <= 0 {
		sw, sh = cfg.ScreenWidth, cfg.ScreenHeight
	}

	e := &Engine{
		cfg:     cfg,
		hdr:     hdr,
		env:     env,
		assets:  assets,
		r:       r,
		w:       w,
		log:     cfg.Logger.With("component", "replay"),
		reg:     scene.NewRegistry(),
		cam:     geom.NewCamera(sw, sh),
		start:   start,
		last:    start,
		visible: make(map[int]visibility.Result),
	}
	for _, c := range hdr.Categories {
		e.categories = append(e.categories, c.Name)
	}
	for _, ce := range protocol.CalibrationEntries(hdr.Calibration) {
		if err := w.WriteLine(ce.Payload()); err != nil {
			return nil, fmt.Errorf("write calibration: %w", err)
		}
	}
	e.publish()
	return e, nil
}

// FirstMessageTime returns the tracker time of the first MSG line and
// rewinds r.
func FirstMessageTime(r *protocol.Reader) (int64, error) {
	if err := r.Rewind(); err != nil {
		return 0, err
	}
	for {
		line, ok := r.ReadLine()
		if !ok {
			return 0, ErrNoMessages
		}
		rest, found := strings.CutPrefix(line, protocol.RecordMSG+"\t")
		if !found {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		t, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			continue
		}
		if err := r.Rewind(); err != nil {
			return 0, err
		}
		return t, nil
	}
}

// Tick advances wall time by dt seconds and applies every line whose
// virtual time has been reached.
func (e *Engine) Tick(dt float64) State {
	switch e.state {
	case Finished:
		return Finished
	case Draining:
		e.drainLeft -= dt
		if e.drainLeft <= 0 {
			e.finish()
		}
		e.publish()
		return e.state
	}

	e.clock += dt * 1000 * e.cfg.TimeScale
	for e.state == Running {
		line, ok := e.r.ReadLine()
		if !ok {
			e.drain()
			break
		}
		entry, ok := protocol.Parse(line)
		if !ok {
			e.log.Debug("skip line", "line", e.r.LineNumber())
			continue
		}
		if float64(entry.Time-e.start) > e.clock {
			e.r.Unread(line)
			break
		}
		e.apply(entry)
	}
	e.publish()
	return e.state
}

// Step applies the next entry regardless of the clock, which jumps to
// the entry's time if that is later.
func (e *Engine) Step() (protocol.Entry, error) {
	if e.state != Running {
		return protocol.Entry{}, ErrFinished
	}
	defer e.publish()
	entry, ok := e.r.Next()
	if !ok {
		e.drain()
		return protocol.Entry{}, ErrFinished
	}
	if v := float64(entry.Time - e.start); v > e.clock {
		e.clock = v
	}
	e.apply(entry)
	return entry, nil
}

// SetTimeScale changes playback speed. Negative values are treated as 0.
func (e *Engine) SetTimeScale(s float64) {
	if s < 0 {
		s = 0
	}
	e.cfg.TimeScale = s
	e.publish()
}

// TimeScale returns the playback speed.
func (e *Engine) TimeScale() float64 { return e.cfg.TimeScale }

// State returns where the replay is.
func (e *Engine) State() State { return e.state }

// Registry returns the live objects.
func (e *Engine) Registry() *scene.Registry { return e.reg }

// Camera returns the replayed camera.
func (e *Engine) Camera() geom.Camera { return e.cam }

// Gaze returns the calibrated gaze.
func (e *Engine) Gaze() geom.Vec2 { return e.gaze }

// Indicators returns the hardware flags.
func (e *Engine) Indicators() Indicators { return e.ind }

// Close stops the replay at once: both logs are closed and every object
// is destroyed. It is safe to call more than once.
func (e *Engine) Close() error {
	if e.state == Finished {
		return nil
	}
	err := e.finish()
	e.publish()
	return err
}

func (e *Engine) drain() {
	e.state = Draining
	e.drainLeft = e.cfg.Grace.Seconds()
	e.log.Info("end of log", "clock_ms", int64(e.clock))
	if e.drainLeft <= 0 {
		e.finish()
	}
}

func (e *Engine) finish() error {
	e.state = Finished
	e.reg.DestroyAll()
	e.mu.Lock()
	clear(e.visible)
	e.mu.Unlock()
	rerr := e.r.Close()
	werr := e.w.Close()
	if werr != nil {
		return fmt.Errorf("close derived log: %w", werr)
	}
	return rerr
}

// apply executes one entry.
func (e *Engine) apply(entry protocol.Entry) {
	switch entry.Kind {
	case protocol.KindCreated:
		e.create(entry)
	case protocol.KindDestroyed:
		e.reg.Destroy(entry.Number)
		e.forget(entry.Number)
	case protocol.KindDestroyedAll:
		e.reg.DestroyAll()
		e.mu.Lock()
		clear(e.visible)
		e.mu.Unlock()
	case protocol.KindMoved:
		if !e.reg.Move(entry.Number, entry.Position) {
			e.log.Debug("move of absent object", "object", entry.Number)
		}
	case protocol.KindCamera:
		e.cam.Position = entry.Position
		e.cam.Rotation = entry.Rotation
		e.checkAll(entry.Time)
	case protocol.KindEye:
		e.gaze = e.hdr.Calibration.Apply(entry.Gaze)
	case protocol.KindBoundary, protocol.KindLeader:
		e.annotate(entry)
	case protocol.KindSaccade:
		e.ind.Saccade = true
		e.endSacc = entry.End
	case protocol.KindBlink:
		e.ind.Blink = true
		e.endBlink = entry.End
	case protocol.KindButton:
		e.ind.Button = entry.Pressed
	}

	if entry.Time > e.endBlink {
		e.ind.Blink = false
	}
	if entry.Time > e.endSacc {
		e.ind.Saccade = false
	}
	e.last = entry.Time

	if e.cfg.Observer != nil {
		e.cfg.Observer(entry)
	}
}

// create rebuilds a logged object. A name no category holds becomes a
// unit cube so the numbering stays intact.
func (e *Engine) create(entry protocol.Entry) {
	a, ok := scene.Resolve(e.assets, e.categories, entry.Name)
	if !ok {
		e.log.Warn("asset not found", "object", entry.Number, "name", entry.Name)
		a = scene.Asset{Name: entry.Name, Kind: scene.Model, Size: geom.V3(1, 1, 1)}
	}
	rot := geom.Identity
	if entry.HasRot {
		rot = entry.Rotation
	}

	o := scene.Object{
		Number:   entry.Number,
		Name:     entry.Name,
		Role:     category.RoleFromTag(entry.Tag),
		Motion:   entry.Motion,
		Kind:     a.Kind,
		Category: a.Category,
		Rotation: rot,
	}
	if a.Kind == scene.Image {
		o.Scale = 1
		o.Bounds = scene.ImageBounds(e.hdr.ObjectSize, rot, entry.Position)
	} else {
		o.Scale, o.Bounds = scene.FitModel(a, rot, e.hdr.ObjectSize, entry.Position)
	}
	placed := e.reg.Insert(o)
	if !e.env.Attach(placed) {
		e.log.Warn("object has no cubby floor", "object", placed.Number, "position", entry.Position)
	}
}

// checkAll runs a visibility pass over the live objects for a camera line
// logged at tracker time t.
func (e *Engine) checkAll(t int64) {
	for _, o := range e.reg.Live() {
		if !o.Tracked {
			continue
		}
		r := visibility.Compute(e.cam, o.Bounds.Corners(), o.Topology, e.env)
		e.mu.Lock()
		e.visible[o.Number] = r
		e.mu.Unlock()
		if !r.Visible() {
			continue
		}
		e.annotate(protocol.Entry{
			Kind:     protocol.KindVisible,
			Time:     t,
			Number:   o.Number,
			Rect:     r.Rect,
			Fraction: r.Fraction,
			At:       t,
			HasAt:    true,
			GazeHit:  visibility.GazeHit(r, e.gaze, visibility.GazeMargin),
		})
	}
}

func (e *Engine) forget(n int) {
	e.mu.Lock()
	delete(e.visible, n)
	e.mu.Unlock()
}

// annotate writes entry to the derived log and every sink.
func (e *Engine) annotate(entry protocol.Entry) {
	if err := e.w.WriteLine(entry.Payload()); err != nil {
		e.log.Warn("write derived log", "error", err)
	}
	for _, s := range e.cfg.Sinks {
		if err := s.Annotate(entry); err != nil {
			e.log.Warn("annotation sink", "error", err)
		}
	}
}

func (e *Engine) publish() {
	st := Status{
		State:          e.state.String(),
		Clock:          e.clock,
		Tracker:        e.last,
		TimeScale:      e.cfg.TimeScale,
		Objects:        e.reg.Len(),
		Lines:          e.r.LineNumber(),
		Indicators:     e.ind,
		LastSaccadeEnd: e.endSacc,
		Gaze:           e.gaze,
		Camera:         e.cam.Position,
	}
	objs := e.reg.Snapshot()
	e.mu.Lock()
	e.status = st
	e.objects = objs
	e.mu.Unlock()
}

// Status returns the latest snapshot.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

// Objects returns the live objects as of the last Tick.
func (e *Engine) Objects() []scene.Object {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]scene.Object(nil), e.objects...)
}

// Visibility returns the last visibility result of each live object.
func (e *Engine) Visibility() map[int]visibility.Result {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[int]visibility.Result, len(e.visible))
	for n, r := range e.visible {
		out[n] = r
	}
	return out
}
