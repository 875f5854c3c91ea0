// waypoints: turn a raw waypoint list into a grid-legal route
//
// The list is read from the ROUTE block of -in, corners are inserted so
// every leg runs along one axis, and the route is written as x,z,flag
// lines. With -walk the route is also walked frame by frame and the
// viewpoint logged, as a check that the navigator can follow it.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nede-neuro/go-nede/internal/log"
	"github.com/nede-neuro/go-nede/pkg/geom"
	"github.com/nede-neuro/go-nede/pkg/navigation"
	"github.com/nede-neuro/go-nede/pkg/session"
)

var (
	inFile   = flag.String("in", "", "Raw waypoint list (default: stdin)")
	outFile  = flag.String("out", "", "Route file to write (default: stdout)")
	walk     = flag.Bool("walk", false, "Walk the route after writing it")
	speed    = flag.Float64("speed", 3, "Walking speed in units per second")
	fps      = flag.Int("fps", 60, "Frames per second while walking")
	logLevel = flag.String("log-level", "info", "Log level")
)

func main() {
	flag.Parse()
	log.Init(*logLevel)

	if err := run(); err != nil {
		log.Error("waypoints failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var in io.Reader = os.Stdin
	if *inFile != "" {
		f, err := os.Open(*inFile)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	raw, err := navigation.ParseWaypointList(in)
	if err != nil {
		return err
	}

	pts := navigation.InsertCorners(raw)
	if !navigation.GridLegal(pts) {
		log.Warn("route still has diagonal legs", "points", len(pts))
	}
	route := navigation.NewRoute(pts)
	log.Info("corners inserted", "raw", len(raw), "route", len(pts))

	var out io.Writer = os.Stdout
	if *outFile != "" {
		f, err := os.Create(*outFile)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	if err := navigation.WriteRoute(out, route); err != nil {
		return fmt.Errorf("write route: %w", err)
	}

	if !*walk {
		return nil
	}
	return walkRoute(route)
}

func walkRoute(route navigation.Route) error {
	cfg := navigation.DefaultConfig()
	cfg.MoveSpeed = *speed
	nav := navigation.New(route, cfg)
	if err := nav.Begin(0, route.Len()); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sctx := &session.Context{Walker: nav, Logger: log.L()}
	driver, err := sctx.Driver()
	if err != nil {
		return err
	}
	lastIndex := -1
	driver.(*session.WalkDriver).OnPose = func(pos geom.Vec3, _ geom.Quat) {
		st := nav.State()
		if st.Index != lastIndex {
			lastIndex = st.Index
			log.Info("waypoint", "index", st.Index, "move", st.Move, "x", pos.X, "z", pos.Z, "yaw", st.Yaw)
		}
	}

	loop := session.Loop{
		Interval: time.Second / time.Duration(max(*fps, 1)),
		Logger:   log.L(),
	}
	if err := loop.Run(ctx, driver); err != nil && ctx.Err() == nil {
		return err
	}
	log.Info("walk done", "distance", nav.Distance())
	return nil
}
