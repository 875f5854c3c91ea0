package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"

	"github.com/nede-neuro/go-nede/pkg/geom"
	"github.com/nede-neuro/go-nede/pkg/hub"
	"github.com/nede-neuro/go-nede/pkg/protocol"
	"github.com/nede-neuro/go-nede/pkg/scene"
)

type fakeSource struct {
	status  map[string]any
	objects []scene.Object
}

func (f *fakeSource) Status() any              { return f.status }
func (f *fakeSource) Objects() []scene.Object { return f.objects }

func newTestServer() *Server {
	src := &fakeSource{
		status:  map[string]any{"state": "running"},
		objects: []scene.Object{{Number: 1, Name: "sedan"}, {Number: 2, Name: "face01"}},
	}
	return NewServer(Config{Port: "0"}, src)
}

func do(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request error: %v", err)
	}
	data, _ := io.ReadAll(resp.Body)
	var out map[string]any
	json.Unmarshal(data, &out)
	return resp.StatusCode, out
}

func TestStatusAndObjects(t *testing.T) {
	s := newTestServer()

	code, body := do(t, s.App(), "GET", "/api/status", "")
	if code != 200 {
		t.Errorf("Status = %d, want 200", code)
	}
	if body["state"] != "running" {
		t.Errorf("state = %v, want running", body["state"])
	}

	resp, err := s.App().Test(httptest.NewRequest("GET", "/api/objects", nil))
	if err != nil {
		t.Fatal(err)
	}
	var objs []map[string]any
	data, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(data, &objs); err != nil {
		t.Fatalf("decode objects: %v", err)
	}
	if len(objs) != 2 || objs[1]["name"] != "face01" {
		t.Errorf("objects = %+v", objs)
	}
}

func TestCommands(t *testing.T) {
	tests := []struct {
		path string
		body string
		want Command
	}{
		{"/api/timescale", `{"scale":2.5}`, Command{Kind: CmdTimeScale, Value: 2.5}},
		{"/api/timescale", `{"scale":0}`, Command{Kind: CmdTimeScale}},
		{"/api/pause", "", Command{Kind: CmdPause}},
		{"/api/run", "", Command{Kind: CmdRun}},
		{"/api/step", "", Command{Kind: CmdStep}},
		{"/api/quit", "", Command{Kind: CmdQuit}},
	}

	s := newTestServer()
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			code, _ := do(t, s.App(), "POST", tt.path, tt.body)
			if code != 202 {
				t.Fatalf("Status = %d, want 202", code)
			}
			select {
			case got := <-s.Commands():
				if got != tt.want {
					t.Errorf("command = %+v, want %+v", got, tt.want)
				}
			default:
				t.Fatal("no command queued")
			}
		})
	}
}

func TestTimeScaleRejected(t *testing.T) {
	s := newTestServer()

	if code, _ := do(t, s.App(), "POST", "/api/timescale", `{"scale":-1}`); code != 400 {
		t.Errorf("negative scale: Status = %d, want 400", code)
	}
	if code, _ := do(t, s.App(), "POST", "/api/timescale", `not json`); code != 400 {
		t.Errorf("bad body: Status = %d, want 400", code)
	}
	select {
	case cmd := <-s.Commands():
		t.Errorf("unexpected command %+v", cmd)
	default:
	}
}

func TestQueueFull(t *testing.T) {
	s := newTestServer()
	for i := 0; i < cap(s.commands); i++ {
		s.enqueue(Command{Kind: CmdStep})
	}
	if code, _ := do(t, s.App(), "POST", "/api/step", ""); code != 503 {
		t.Errorf("Status = %d, want 503", code)
	}
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	s := newTestServer()
	resp, err := s.App().Test(httptest.NewRequest("GET", "/ws/events", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusUpgradeRequired {
		t.Errorf("Status = %d, want 426", resp.StatusCode)
	}
}

func TestVisibilityStream(t *testing.T) {
	s := newTestServer()
	s.cfg.Port = "18290"
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.StartAsync(ctx)
	defer s.Shutdown()
	time.Sleep(100 * time.Millisecond)

	ws, _, err := websocket.DefaultDialer.Dial("ws://localhost:18290/ws/visibility", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()
	time.Sleep(50 * time.Millisecond)

	s.PublishEntry(protocol.Entry{Kind: protocol.KindCamera, Time: 1200})
	s.PublishEntry(protocol.Entry{
		Kind:     protocol.KindVisible,
		Time:     1200,
		At:       1200,
		HasAt:    true,
		Number:   3,
		Rect:     geom.Rect{X: 10, Y: 20, W: 30, H: 40},
		Fraction: 0.5,
		GazeHit:  true,
	})

	ws.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	var e hub.Event
	if err := json.Unmarshal(data, &e); err != nil {
		t.Fatal(err)
	}
	if e.Topic != TopicVisibility {
		t.Fatalf("Topic = %q, want %q", e.Topic, TopicVisibility)
	}
	var v VisibleView
	if err := json.Unmarshal(e.Data, &v); err != nil {
		t.Fatal(err)
	}
	if v.Number != 3 || v.Time != 1200 || !v.GazeHit || v.Fraction != 0.5 {
		t.Errorf("view = %+v", v)
	}
}

func TestStatusStreamGreets(t *testing.T) {
	s := newTestServer()
	s.cfg.Port = "18291"
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.StartAsync(ctx)
	defer s.Shutdown()
	time.Sleep(100 * time.Millisecond)

	ws, _, err := websocket.DefaultDialer.Dial("ws://localhost:18291/ws/status", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()

	ws.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if !strings.Contains(string(data), `"running"`) {
		t.Errorf("greeting = %s", data)
	}
}
