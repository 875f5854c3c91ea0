package tracker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nede-neuro/go-nede/pkg/geom"
	"github.com/nede-neuro/go-nede/pkg/protocol"
)

// GazeSource returns a raw gaze sample.
type GazeSource func() (geom.Vec2, bool)

// Config configures a FileTracker.
type Config struct {
	Clock  Clock
	Gaze   GazeSource
	Writer *protocol.Writer // used instead of creating a file
	Logger *slog.Logger
}

// Option configures a FileTracker.
type Option func(*Config)

// WithClock sets the time source.
func WithClock(c Clock) Option {
	return func(cfg *Config) { cfg.Clock = c }
}

// WithGaze sets where gaze samples come from.
func WithGaze(g GazeSource) Option {
	return func(cfg *Config) { cfg.Gaze = g }
}

// WithWriter logs to w instead of a file named at Start.
func WithWriter(w *protocol.Writer) Option {
	return func(cfg *Config) { cfg.Writer = w }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *Config) { cfg.Logger = l }
}

// FileTracker is a software tracker that writes the session log itself.
// Gaze and buttons are fed in from outside: a simulated source, a relay,
// or a test.
type FileTracker struct {
	cfg Config

	mu      sync.Mutex
	w       *protocol.Writer
	started bool
	gaze    geom.Vec2
	hasGaze bool
	buttons []int
}

// NewFileTracker creates a stopped tracker.
func NewFileTracker(opts ...Option) *FileTracker {
	cfg := Config{Logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Clock == nil {
		cfg.Clock = NewWallClock()
	}
	return &FileTracker{cfg: cfg}
}

// Start implements Tracker.
func (f *FileTracker) Start(_ context.Context, filename string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.started {
		return ErrAlreadyStarted
	}
	w := f.cfg.Writer
	if w == nil {
		var err error
		if w, err = protocol.Create(filename); err != nil {
			return err
		}
	}
	f.w = w
	f.started = true
	f.cfg.Logger.Debug("tracker started", "file", filename, "recording", w.Recording())
	return nil
}

// Stop implements Tracker.
func (f *FileTracker) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.started {
		return nil
	}
	f.started = false
	return f.w.Close()
}

// Now implements Tracker.
func (f *FileTracker) Now() int64 { return f.cfg.Clock.Now() }

// Message implements Tracker.
func (f *FileTracker) Message(text string) error {
	return f.writeLine(protocol.Msg(f.Now(), text))
}

// SendCode implements Tracker.
func (f *FileTracker) SendCode(code Code) error {
	return f.Record(protocol.Entry{Kind: protocol.KindSync, Time: f.Now(), Code: int(code)})
}

// Record writes a pre-built entry, such as a saccade passed through from
// hardware.
func (f *FileTracker) Record(e protocol.Entry) error {
	return f.writeLine(e.Line())
}

func (f *FileTracker) writeLine(line string) error {
	f.mu.Lock()
	w, ok := f.w, f.started
	f.mu.Unlock()
	if !ok {
		return ErrNotStarted
	}
	if !w.Recording() {
		f.cfg.Logger.Debug("tracker message", "line", line)
		return nil
	}
	return w.WriteLine(line)
}

// Gaze implements Tracker. A configured GazeSource wins over samples fed
// with SetGaze.
func (f *FileTracker) Gaze() (geom.Vec2, bool) {
	if f.cfg.Gaze != nil {
		return f.cfg.Gaze()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gaze, f.hasGaze
}

// SetGaze stores the latest raw gaze sample.
func (f *FileTracker) SetGaze(p geom.Vec2) {
	f.mu.Lock()
	f.gaze, f.hasGaze = p, true
	f.mu.Unlock()
}

// Press queues a button press.
func (f *FileTracker) Press(button int) {
	f.mu.Lock()
	f.buttons = append(f.buttons, button)
	f.mu.Unlock()
}

// Button implements Tracker.
func (f *FileTracker) Button() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.buttons) == 0 {
		return ButtonNone
	}
	b := f.buttons[0]
	f.buttons = f.buttons[1:]
	return b
}

// Flush implements Tracker.
func (f *FileTracker) Flush() {
	f.mu.Lock()
	f.buttons = nil
	f.mu.Unlock()
	if w := f.writer(); w != nil {
		if err := w.Flush(); err != nil {
			f.cfg.Logger.Warn("flush log", "error", err)
		}
	}
}

func (f *FileTracker) writer() *protocol.Writer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.w
}

var _ Tracker = (*FileTracker)(nil)
