// experiment: run a live gaze-contingent session
//
// Objects are placed in the level's cubbies trial after trial while the
// tracker log records every scene event. The session ends when the trial
// time runs out, the route ends or the experimenter quits from the
// monitor.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/nede-neuro/go-nede/internal/config"
	"github.com/nede-neuro/go-nede/internal/log"
	"github.com/nede-neuro/go-nede/pkg/navigation"
	"github.com/nede-neuro/go-nede/pkg/protocol"
	"github.com/nede-neuro/go-nede/pkg/relay"
	"github.com/nede-neuro/go-nede/pkg/scene"
	"github.com/nede-neuro/go-nede/pkg/session"
	"github.com/nede-neuro/go-nede/pkg/tracker"
	"github.com/nede-neuro/go-nede/pkg/trial"
	"github.com/nede-neuro/go-nede/pkg/web"
)

var (
	experimentFile = flag.String("experiment", "experiment.yaml", "Experiment file")
	trackerKind    = flag.String("tracker", "sim", "Tracker: sim (local, simulated gaze) or relay (remote bridge)")
	outDir         = flag.String("out", ".", "Directory for the session log")
	noRecord       = flag.Bool("norecord", false, "Run without writing a session log")
	monitor        = flag.Bool("monitor", true, "Serve the experimenter monitor")
	seed           = flag.Uint64("seed", 0, "Override the experiment seed (0 keeps it)")
)

func main() {
	flag.Parse()

	settings, err := config.LoadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log.Init(settings.LogLevel)

	if err := run(settings); err != nil {
		log.Error("experiment failed", "error", err)
		os.Exit(1)
	}
}

func run(settings config.Settings) error {
	exp, err := config.LoadExperiment(*experimentFile)
	if err != nil {
		return err
	}
	if *seed != 0 {
		exp.Seed = *seed
	}
	table, err := exp.Table()
	if err != nil {
		return err
	}

	level, err := config.LoadLevel(settings.LevelPath(exp.Level))
	if err != nil {
		return err
	}
	route, err := level.LoadRoute()
	if err != nil {
		return err
	}
	assets, err := scene.LoadCatalog(settings.CatalogPath())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tr, cleanup, err := openTracker(ctx, settings)
	if err != nil {
		return err
	}
	defer cleanup()

	sctx := &session.Context{Logger: log.L()}
	if *monitor {
		sctx.Monitor = web.NewServer(web.Config{Port: settings.MonitorPort, Logger: log.L()}, sctx)
	}

	sched, err := trial.New(trial.Config{
		Header:   exp.Header(settings.ScreenWidth, settings.ScreenHeight, time.Now()),
		Seed:     exp.Seed,
		Route:    route,
		Nav:      navigation.DefaultConfig(),
		Observer: observer(sctx.Monitor),
		Logger:   log.L(),
	}, table, level.Environment(), assets, tr)
	if err != nil {
		return err
	}
	sctx.Scheduler = sched

	if sctx.Monitor != nil {
		sctx.Monitor.StartAsync(ctx)
		defer sctx.Monitor.Shutdown()
	}

	filename := ""
	if !*noRecord {
		filename = filepath.Join(*outDir, exp.LogName())
	}
	log.Info("starting session", "subject", exp.Subject, "level", exp.Level, "log", filename, "tracker", *trackerKind)
	if err := sched.Begin(ctx, filename); err != nil {
		return err
	}

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
	st := sched.Status()
	log.Info("session done", "trials", st.Trials, "log", filename)
	return nil
}

func observer(m *web.Server) func(protocol.Entry) {
	if m == nil {
		return nil
	}
	return m.PublishEntry
}

// openTracker returns the tracker for -tracker and a cleanup func.
func openTracker(ctx context.Context, settings config.Settings) (tracker.Tracker, func(), error) {
	switch *trackerKind {
	case "sim":
		clock := tracker.NewWallClock()
		tr := tracker.NewFileTracker(
			tracker.WithClock(clock),
			tracker.WithGaze(tracker.SweepGaze(clock, settings.ScreenWidth, settings.ScreenHeight)),
			tracker.WithLogger(log.L()),
		)
		return tr, func() {}, nil

	case "relay":
		r := relay.New(log.L())
		app := fiber.New(fiber.Config{
			AppName:               "nede-relay",
			DisableStartupMessage: true,
		})
		app.Use(recover.New())
		r.RegisterRoutes(app)
		r.RegisterAPIRoutes(app.Group("/api"))
		app.Get("/health", func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{"status": "ok", "bridges": r.BridgeCount()})
		})
		go func() {
			if err := app.Listen(":" + settings.RelayPort); err != nil {
				log.Warn("relay stopped", "error", err)
			}
		}()
		log.Info("waiting for tracker bridge", "url", fmt.Sprintf("ws://localhost:%s/ws/bridge", settings.RelayPort))

		wait, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		if err := r.WaitForBridge(wait); err != nil {
			app.Shutdown()
			return nil, nil, fmt.Errorf("no tracker bridge: %w", err)
		}
		return r, func() { app.Shutdown() }, nil
	}
	return nil, nil, fmt.Errorf("unknown tracker %q", *trackerKind)
}
