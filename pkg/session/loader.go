package session

import (
	"fmt"
	"log/slog"

	"github.com/nede-neuro/go-nede/pkg/protocol"
	"github.com/nede-neuro/go-nede/pkg/replay"
	"github.com/nede-neuro/go-nede/pkg/scene"
)

// Stage is where a Loader is in setting up a replay.
type Stage int

const (
	StageIdle Stage = iota
	StageOpen
	StageHeader
	StageRewind
	StageReady
	StageRunning
	StageFinished
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageOpen:
		return "open"
	case StageHeader:
		return "header"
	case StageRewind:
		return "rewind"
	case StageReady:
		return "ready"
	case StageRunning:
		return "running"
	case StageFinished:
		return "finished"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// LevelFunc returns the geometry of the level a log names.
type LevelFunc func(name string) (*scene.Environment, error)

// Loader sets up a replay one step at a time, so a frame loop or a monitor
// can show progress between steps.
type Loader struct {
	path   string
	out    string
	levels LevelFunc
	assets scene.AssetStore
	opts   []replay.Option
	log    *slog.Logger

	stage  Stage
	err    error
	r      *protocol.Reader
	hdr    protocol.Header
	env    *scene.Environment
	engine *replay.Engine
}

// NewLoader prepares to replay the log at path into the derived log out.
// An empty out replays without writing.
func NewLoader(path, out string, levels LevelFunc, assets scene.AssetStore, logger *slog.Logger, opts ...replay.Option) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		path:   path,
		out:    out,
		levels: levels,
		assets: assets,
		opts:   opts,
		log:    logger.With("component", "loader", "log", path),
	}
}

// Stage returns the current stage.
func (l *Loader) Stage() Stage { return l.stage }

// Err returns the error that stopped the load, if any.
func (l *Loader) Err() error { return l.err }

// Header returns the parsed header once past StageHeader.
func (l *Loader) Header() protocol.Header { return l.hdr }

// Step performs the work of the next stage and returns the stage reached.
func (l *Loader) Step() (Stage, error) {
	if l.err != nil {
		return l.stage, fmt.Errorf("%w: %v", ErrLoadFailed, l.err)
	}
	var err error
	switch l.stage {
	case StageIdle:
		l.r, err = protocol.Open(l.path)
		if err == nil {
			l.stage = StageOpen
		}

	case StageOpen:
		l.hdr, err = protocol.ReadHeader(l.r)
		if err == nil {
			l.stage = StageHeader
		}

	case StageHeader:
		l.env, err = l.levels(l.hdr.Level)
		if err == nil {
			err = l.r.Rewind()
		}
		if err == nil {
			l.stage = StageRewind
		}

	case StageRewind:
		var w *protocol.Writer
		w, err = protocol.Create(l.out)
		if err == nil {
			l.engine, err = replay.New(l.hdr, l.r, w, l.env, l.assets, l.opts...)
			if err != nil {
				w.Close()
			}
		}
		if err == nil {
			l.stage = StageReady
		}

	case StageReady:
		l.stage = StageRunning

	case StageRunning:
		if l.engine.State() == replay.Finished {
			l.stage = StageFinished
		}
	}

	if err != nil {
		l.fail(err)
		return l.stage, err
	}
	l.log.Debug("load step", "stage", l.stage)
	return l.stage, nil
}

// Load steps until the replay is ready to run.
func (l *Loader) Load() (*replay.Engine, error) {
	for l.stage < StageReady {
		if _, err := l.Step(); err != nil {
			return nil, err
		}
	}
	return l.Engine()
}

// Engine returns the replay engine once the loader is Ready.
func (l *Loader) Engine() (*replay.Engine, error) {
	if l.engine == nil {
		return nil, ErrNotReady
	}
	return l.engine, nil
}

// Close releases whatever the loader has opened: the engine once Ready,
// otherwise the log reader. It is safe to call more than once.
func (l *Loader) Close() error {
	if l.engine != nil {
		return l.engine.Close()
	}
	if l.r != nil {
		return l.r.Close()
	}
	return nil
}

func (l *Loader) fail(err error) {
	l.err = err
	if l.r != nil && !l.r.Closed() {
		l.r.Close()
	}
	l.log.Warn("load failed", "stage", l.stage, "error", err)
}
