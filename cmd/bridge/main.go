// bridge: relay a local tracker to a remote experiment host
//
// The session log is written here, next to the tracker, when the host
// starts a session. Gaze comes from a simulated sweep until a hardware
// source is attached.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nede-neuro/go-nede/internal/config"
	"github.com/nede-neuro/go-nede/internal/log"
	"github.com/nede-neuro/go-nede/pkg/tracker"
	"github.com/nede-neuro/go-nede/pkg/tracker/bridge"
)

var (
	host     = flag.String("host", "ws://localhost:8090/ws/bridge", "Relay websocket URL")
	id       = flag.String("id", "", "Bridge ID (default: hostname)")
	dir      = flag.String("dir", ".", "Directory the session log is written to")
	interval = flag.Duration("interval", bridge.DefaultInterval, "Sample interval")
	retry    = flag.Duration("retry", 2*time.Second, "Delay before reconnecting (0 exits on disconnect)")
)

func main() {
	flag.Parse()

	settings, err := config.LoadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log.Init(settings.LogLevel)

	bridgeID := *id
	if bridgeID == "" {
		bridgeID, _ = os.Hostname()
	}

	clock := tracker.NewWallClock()
	local := &dirTracker{
		FileTracker: tracker.NewFileTracker(
			tracker.WithClock(clock),
			tracker.WithGaze(tracker.SweepGaze(clock, settings.ScreenWidth, settings.ScreenHeight)),
			tracker.WithLogger(log.L()),
		),
		dir: *dir,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b := bridge.New(*host, local,
		bridge.WithID(bridgeID),
		bridge.WithKind("sim"),
		bridge.WithInterval(*interval),
		bridge.WithLogger(log.L()),
	)
	for {
		err := b.Run(ctx)
		if ctx.Err() != nil {
			break
		}
		if *retry <= 0 {
			if err != nil && !errors.Is(err, bridge.ErrClosed) {
				log.Error("bridge stopped", "error", err)
				os.Exit(1)
			}
			break
		}
		log.Warn("bridge disconnected, retrying", "error", err, "in", *retry)
		select {
		case <-ctx.Done():
		case <-time.After(*retry):
		}
	}
	if err := local.Stop(); err != nil {
		log.Warn("close session log", "error", err)
	}
}

// dirTracker writes session logs under dir.
type dirTracker struct {
	*tracker.FileTracker
	dir string
}

func (t *dirTracker) Start(ctx context.Context, filename string) error {
	if filename != "" {
		filename = filepath.Join(t.dir, filepath.Base(filename))
	}
	return t.FileTracker.Start(ctx, filename)
}
