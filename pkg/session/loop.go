package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nede-neuro/go-nede/pkg/web"
)

// Loop drives a session from a ticker.
type Loop struct {
	Interval time.Duration
	Commands <-chan web.Command

	// OnFrame, if set, runs after every frame, e.g. to publish status.
	OnFrame func()

	Logger *slog.Logger
}

// Run ticks d until it stops, a quit command arrives or ctx is done. The
// driver is closed in every case. Cancellation returns ctx.Err().
func (l Loop) Run(ctx context.Context, d Driver) (err error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "loop")

	interval := l.Interval
	if interval <= 0 {
		interval = time.Second / 60
	}

	defer func() {
		if cerr := d.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close session: %w", cerr)
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	frames := 0
	for {
		select {
		case <-ctx.Done():
			logger.Info("session cancelled", "frames", frames)
			return ctx.Err()

		case cmd := <-l.Commands:
			quit, err := d.Apply(cmd)
			if err != nil {
				logger.Warn("command failed", "kind", cmd.Kind, "error", err)
			}
			if l.OnFrame != nil {
				l.OnFrame()
			}
			if quit {
				logger.Info("session quit", "frames", frames)
				return nil
			}

		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			running, err := d.Frame(dt)
			frames++
			if l.OnFrame != nil {
				l.OnFrame()
			}
			if err != nil {
				return fmt.Errorf("frame %d: %w", frames, err)
			}
			if !running {
				logger.Info("session finished", "frames", frames)
				return nil
			}
		}
	}
}
