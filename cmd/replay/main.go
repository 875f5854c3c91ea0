// replay: replay a recorded session log and annotate visibility
//
// Every camera line of the log is replayed against the level geometry; the
// objects on screen are written to a derived log and, with -db, to an
// SQLite annotation store.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/nede-neuro/go-nede/internal/config"
	"github.com/nede-neuro/go-nede/internal/log"
	"github.com/nede-neuro/go-nede/pkg/protocol"
	"github.com/nede-neuro/go-nede/pkg/replay"
	"github.com/nede-neuro/go-nede/pkg/scene"
	"github.com/nede-neuro/go-nede/pkg/session"
	"github.com/nede-neuro/go-nede/pkg/store"
	"github.com/nede-neuro/go-nede/pkg/web"
)

var (
	logFile = flag.String("log", "", "Session log to replay (required)")
	outFile = flag.String("out", "", "Derived log (default: <log>_visible.log)")
	dbFile  = flag.String("db", "", "SQLite annotation store (optional)")
	speed   = flag.Float64("speed", 1, "Playback speed")
	grace   = flag.Duration("grace", replay.DefaultGrace, "Wait after the last line before finishing")
	monitor = flag.Bool("monitor", false, "Serve the experimenter monitor")
)

func main() {
	flag.Parse()
	if *logFile == "" {
		fmt.Fprintln(os.Stderr, "Error: -log is required")
		flag.Usage()
		os.Exit(2)
	}

	settings, err := config.LoadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log.Init(settings.LogLevel)

	if err := run(settings); err != nil {
		log.Error("replay failed", "error", err)
		os.Exit(1)
	}
}

func run(settings config.Settings) error {
	out := *outFile
	if out == "" {
		out = strings.TrimSuffix(*logFile, ".log") + "_visible.log"
	}

	assets, err := scene.LoadCatalog(settings.CatalogPath())
	if err != nil {
		return err
	}
	levels := func(name string) (*scene.Environment, error) {
		l, err := config.LoadLevel(settings.LevelPath(name))
		if err != nil {
			return nil, err
		}
		return l.Environment(), nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sctx := &session.Context{Logger: log.L()}
	if *monitor {
		sctx.Monitor = web.NewServer(web.Config{Port: settings.MonitorPort, Logger: log.L()}, sctx)
	}

	opts := []replay.Option{
		replay.WithTimeScale(*speed),
		replay.WithGrace(*grace),
		replay.WithScreen(settings.ScreenWidth, settings.ScreenHeight),
		replay.WithLogger(log.L()),
	}
	if sctx.Monitor != nil {
		opts = append(opts, replay.WithSink(replay.SinkFunc(func(e protocol.Entry) error {
			sctx.Monitor.PublishEntry(e)
			return nil
		})))
	}

	var (
		db    *store.Store
		runID = uuid.NewString()
	)
	if *dbFile != "" {
		if db, err = store.Open(*dbFile); err != nil {
			return err
		}
		defer db.Close()
		opts = append(opts, replay.WithSink(db.Sink(ctx, runID)))
	}

	loader := session.NewLoader(*logFile, out, levels, assets, log.L(), opts...)
	defer loader.Close()
	for loader.Stage() < session.StageHeader {
		if _, err := loader.Step(); err != nil {
			return err
		}
	}
	hdr := loader.Header()
	if db != nil {
		if _, err := db.BeginRun(ctx, store.Run{
			ID:      runID,
			LogPath: *logFile,
			Subject: hdr.Subject,
			Session: hdr.Session,
			Level:   hdr.Level,
		}); err != nil {
			return err
		}
	}
	eng, err := loader.Load()
	if err != nil {
		return err
	}
	sctx.Replayer = eng

	if sctx.Monitor != nil {
		sctx.Monitor.StartAsync(ctx)
		defer sctx.Monitor.Shutdown()
	}

	log.Info("replaying", "log", *logFile, "out", out, "subject", hdr.Subject, "level", hdr.Level, "speed", *speed)
	driver, err := sctx.Driver()
	if err != nil {
		return err
	}
	loop := session.Loop{
		Interval: settings.FrameInterval(),
		Commands: sctx.Commands(),
		Logger:   log.L(),
	}
	if sctx.Monitor != nil {
		loop.OnFrame = sctx.Monitor.PublishStatus
	}
	if err := loop.Run(ctx, driver); err != nil && ctx.Err() == nil {
		return err
	}

	if db != nil {
		return summarize(db, runID)
	}
	return nil
}

func summarize(db *store.Store, runID string) error {
	ctx := context.Background()
	if err := db.FinishRun(ctx, runID, time.Now()); err != nil {
		return err
	}
	sum, err := db.Summary(ctx, runID)
	if err != nil {
		return err
	}
	fmt.Printf("\nRun %s\n", runID)
	fmt.Printf("%-6s %-8s %8s %8s %8s\n", "trial", "object", "frames", "gazed", "max")
	for _, o := range sum {
		fmt.Printf("%-6d %-8d %8d %8d %8.3f\n", o.Trial, o.Object, o.Frames, o.GazeHits, o.MaxFraction)
	}
	return nil
}
