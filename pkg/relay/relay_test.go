package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"

	"github.com/nede-neuro/go-nede/pkg/geom"
	"github.com/nede-neuro/go-nede/pkg/relay/wire"
	"github.com/nede-neuro/go-nede/pkg/tracker"
)

func serve(t *testing.T, r *Relay, port string) *fiber.App {
	t.Helper()
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	r.RegisterRoutes(app)
	r.RegisterAPIRoutes(app.Group("/api"))

	go app.Listen(":" + port)
	time.Sleep(100 * time.Millisecond)
	return app
}

func dial(t *testing.T, port, id string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial("ws://localhost:"+port+"/ws/bridge/"+id, nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	return ws
}

func write(t *testing.T, ws *websocket.Conn) func(msg *wire.Message, err error) {
	return func(msg *wire.Message, err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("build message: %v", err)
		}
		data, _ := msg.Bytes()
		if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
}

func read(t *testing.T, ws *websocket.Conn) *wire.Message {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	msg, err := wire.ParseMessage(data)
	if err != nil {
		t.Fatalf("ParseMessage error: %v", err)
	}
	return msg
}

func TestNew(t *testing.T) {
	r := New(nil)

	if r.BridgeCount() != 0 {
		t.Error("BridgeCount should be 0 initially")
	}
	if r.Now() != 0 {
		t.Errorf("Now() = %d, want 0 before any clock sample", r.Now())
	}
	if _, ok := r.Gaze(); ok {
		t.Error("Gaze() should report no sample initially")
	}
	if b := r.Button(); b != tracker.ButtonNone {
		t.Errorf("Button() = %d, want ButtonNone", b)
	}
}

func TestNoBridge(t *testing.T) {
	r := New(nil)

	if err := r.Message("hello"); !errors.Is(err, ErrNoBridge) {
		t.Errorf("Message() error = %v, want ErrNoBridge", err)
	}
	if err := r.SendCode(tracker.CodeSync); !errors.Is(err, ErrNoBridge) {
		t.Errorf("SendCode() error = %v, want ErrNoBridge", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	if err := r.Start(ctx, "s1.log"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Start() error = %v, want deadline exceeded", err)
	}
}

func TestBridgeConnection(t *testing.T) {
	r := New(nil)
	app := serve(t, r, "18180")
	defer app.Shutdown()

	ws := dial(t, "18180", "lab-a")
	defer ws.Close()

	if r.BridgeCount() != 1 {
		t.Errorf("BridgeCount = %d, want 1", r.BridgeCount())
	}
	if r.GetBridge("lab-a") == nil {
		t.Error("GetBridge should return the connected bridge")
	}
	if got := r.GetStats().Active; got != "lab-a" {
		t.Errorf("Active = %q, want lab-a", got)
	}

	ws.Close()
	time.Sleep(100 * time.Millisecond)

	if r.BridgeCount() != 0 {
		t.Errorf("BridgeCount = %d, want 0 after disconnect", r.BridgeCount())
	}
	if got := r.GetStats().Active; got != "" {
		t.Errorf("Active = %q, want empty after disconnect", got)
	}
}

func TestSamplesFromBridge(t *testing.T) {
	r := New(nil)
	app := serve(t, r, "18181")
	defer app.Shutdown()

	var gazeCalls atomic.Int32
	r.OnGaze(func(string, *wire.GazeData) { gazeCalls.Add(1) })

	ws := dial(t, "18181", "lab-b")
	defer ws.Close()

	write(t, ws)(wire.NewHelloMessage("lab-b", "file"))
	write(t, ws)(wire.NewGazeMessage(320, 240, 5000, true))
	write(t, ws)(wire.NewButtonMessage(tracker.ButtonBrake, true, 5001))
	write(t, ws)(wire.NewButtonMessage(tracker.ButtonBrake, false, 5002))
	write(t, ws)(wire.NewButtonMessage(tracker.ButtonTarget, true, 5003))
	time.Sleep(100 * time.Millisecond)

	g, ok := r.Gaze()
	if !ok || g != geom.V2(320, 240) {
		t.Errorf("Gaze() = %v, %v, want (320,240), true", g, ok)
	}
	if gazeCalls.Load() != 1 {
		t.Errorf("gaze callback calls = %d, want 1", gazeCalls.Load())
	}
	if now := r.Now(); now < 5000 || now > 6000 {
		t.Errorf("Now() = %d, want about 5000", now)
	}

	if b := r.Button(); b != tracker.ButtonBrake {
		t.Errorf("first Button() = %d, want %d", b, tracker.ButtonBrake)
	}
	if b := r.Button(); b != tracker.ButtonTarget {
		t.Errorf("second Button() = %d, want %d", b, tracker.ButtonTarget)
	}
	if b := r.Button(); b != tracker.ButtonNone {
		t.Errorf("third Button() = %d, want ButtonNone", b)
	}

	infos := r.GetBridgeInfos()
	if len(infos) != 1 || infos[0].Tracker != "file" {
		t.Errorf("GetBridgeInfos() = %+v, want one file bridge", infos)
	}
}

func TestCommandsToBridge(t *testing.T) {
	r := New(nil)
	app := serve(t, r, "18182")
	defer app.Shutdown()

	ws := dial(t, "18182", "lab-c")
	defer ws.Close()

	if err := r.Start(context.Background(), "s1.log"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	msg := read(t, ws)
	if msg.Type != wire.TypeStart {
		t.Fatalf("Type = %s, want start", msg.Type)
	}
	start, _ := msg.GetStartData()
	if start.Filename != "s1.log" {
		t.Errorf("Filename = %q, want s1.log", start.Filename)
	}

	if err := r.Message("LOADING TRIAL 1"); err != nil {
		t.Fatalf("Message() error = %v", err)
	}
	text, _ := read(t, ws).GetTextData()
	if text.Text != "LOADING TRIAL 1" {
		t.Errorf("Text = %q", text.Text)
	}

	if err := r.SendCode(tracker.CodeSync); err != nil {
		t.Fatalf("SendCode() error = %v", err)
	}
	code, _ := read(t, ws).GetCodeData()
	if code.Code != int(tracker.CodeSync) {
		t.Errorf("Code = %d, want %d", code.Code, tracker.CodeSync)
	}

	r.Flush()
	if msg := read(t, ws); msg.Type != wire.TypeFlush {
		t.Errorf("Type = %s, want flush", msg.Type)
	}

	if err := r.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if msg := read(t, ws); msg.Type != wire.TypeStop {
		t.Errorf("Type = %s, want stop", msg.Type)
	}
}

func TestPing(t *testing.T) {
	r := New(nil)
	app := serve(t, r, "18183")
	defer app.Shutdown()

	ws := dial(t, "18183", "lab-d")
	defer ws.Close()

	write(t, ws)(wire.NewMessage(wire.TypePing, wire.PingData{ID: "p1"}))
	msg := read(t, ws)
	if msg.Type != wire.TypePong {
		t.Fatalf("Type = %s, want pong", msg.Type)
	}
	var pong wire.PongData
	if err := msg.ParseData(&pong); err != nil {
		t.Fatal(err)
	}
	if pong.ID != "p1" {
		t.Errorf("ID = %q, want p1", pong.ID)
	}
}

func TestAPIListBridges(t *testing.T) {
	r := New(nil)
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	r.RegisterAPIRoutes(app.Group("/api"))

	req := httptest.NewRequest("GET", "/api/bridges/", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("Status = %d, want 200", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var result map[string]any
	json.Unmarshal(body, &result)
	if result["count"].(float64) != 0 {
		t.Error("count should be 0")
	}
}

func TestAPIMessageWithoutBridge(t *testing.T) {
	r := New(nil)
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	r.RegisterAPIRoutes(app.Group("/api"))

	req := httptest.NewRequest("POST", "/api/bridges/message", strings.NewReader(`{"text":"note"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	if resp.StatusCode != 500 {
		t.Errorf("Status = %d, want 500", resp.StatusCode)
	}

	req = httptest.NewRequest("POST", "/api/bridges/message", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")
	resp, _ = app.Test(req)
	if resp.StatusCode != 400 {
		t.Errorf("Status = %d, want 400", resp.StatusCode)
	}
}
