package bridge

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nede-neuro/go-nede/pkg/geom"
	"github.com/nede-neuro/go-nede/pkg/protocol"
	"github.com/nede-neuro/go-nede/pkg/relay"
	"github.com/nede-neuro/go-nede/pkg/relay/wire"
	"github.com/nede-neuro/go-nede/pkg/tracker"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestBridgeThroughRelay(t *testing.T) {
	r := relay.New(nil)
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	r.RegisterRoutes(app)
	go app.Listen(":18190")
	defer app.Shutdown()
	time.Sleep(100 * time.Millisecond)

	out := &syncBuffer{}
	w, err := protocol.NewWriter(out, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	clock := &tracker.ManualClock{}
	clock.Set(7000)
	local := tracker.NewFileTracker(tracker.WithWriter(w), tracker.WithClock(clock))
	local.SetGaze(geom.V2(400, 300))
	local.Press(tracker.ButtonBrake)

	b := New("ws://localhost:18190/ws/bridge", local, WithID("rig-1"), WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	assert.Eventually(t, func() bool { return r.BridgeCount() == 1 }, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		g, ok := r.Gaze()
		return ok && g == geom.V2(400, 300)
	}, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return r.Button() == tracker.ButtonBrake }, time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, r.Now(), int64(7000))

	require.NoError(t, r.Start(context.Background(), ""))
	require.NoError(t, r.Message("LOADING TRIAL 1"))
	require.NoError(t, r.SendCode(tracker.CodeStartTrial))

	assert.Eventually(t, func() bool { return b.Commands() == 3 }, time.Second, 10*time.Millisecond)

	r.Flush()
	require.NoError(t, r.Stop())
	assert.Eventually(t, func() bool { return b.Commands() == 5 }, time.Second, 10*time.Millisecond)

	log := out.String()
	assert.Contains(t, log, protocol.Msg(7000, "LOADING TRIAL 1"))
	assert.True(t, strings.HasSuffix(strings.TrimSpace(log), protocol.LineEndLog), "log should be closed by stop")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Eventually(t, func() bool { return r.BridgeCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestRunDialError(t *testing.T) {
	local := tracker.NewFileTracker()
	b := New("ws://localhost:18199/ws/bridge", local)

	err := b.Run(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "dial host")
}

func TestUnknownCommand(t *testing.T) {
	b := New("ws://unused", tracker.NewFileTracker())
	msg, err := wire.NewMessage(wire.MessageType("bogus"), nil)
	require.NoError(t, err)
	assert.Error(t, b.apply(context.Background(), msg))
}
