package hub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	fws "github.com/gofiber/websocket/v2"
	"github.com/gorilla/websocket"
)

func TestNewEvent(t *testing.T) {
	e, err := NewEvent("status", map[string]int{"objects": 3})
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}
	if e.Topic != "status" {
		t.Errorf("Topic = %q, want status", e.Topic)
	}
	if string(e.Data) != `{"objects":3}` {
		t.Errorf("Data = %s", e.Data)
	}

	if _, err := NewEvent("bad", func() {}); err == nil {
		t.Error("NewEvent() should fail for unencodable data")
	}
}

func TestPublishDropsWhenFull(t *testing.T) {
	h := New("test", nil)

	for i := 0; i < cap(h.broadcast)+5; i++ {
		if err := h.Publish("tick", i); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}
	if h.Dropped() != 5 {
		t.Errorf("Dropped() = %d, want 5", h.Dropped())
	}
}

func TestBroadcast(t *testing.T) {
	h := New("events", nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws", fws.New(func(c *fws.Conn) {
		greet, _ := NewEvent("hello", "monitor")
		h.Serve(c, greet)
	}))
	go app.Listen(":18280")
	defer app.Shutdown()
	time.Sleep(100 * time.Millisecond)

	ws, _, err := websocket.DefaultDialer.Dial("ws://localhost:18280/ws", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()
	time.Sleep(50 * time.Millisecond)

	if !h.IsRunning() {
		t.Error("IsRunning() = false, want true")
	}
	if h.ClientCount() != 1 {
		t.Fatalf("ClientCount() = %d, want 1", h.ClientCount())
	}

	if err := h.Publish("visible", map[string]int{"number": 4}); err != nil {
		t.Fatal(err)
	}

	var got []Event
	ws.SetReadDeadline(time.Now().Add(time.Second))
	for len(got) < 2 {
		_, data, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("Read error: %v", err)
		}
		var e Event
		if err := json.Unmarshal(data, &e); err != nil {
			t.Fatal(err)
		}
		got = append(got, e)
	}
	if got[0].Topic != "hello" || got[1].Topic != "visible" {
		t.Errorf("topics = %q, %q, want hello, visible", got[0].Topic, got[1].Topic)
	}

	ws.Close()
	time.Sleep(100 * time.Millisecond)
	if h.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0 after disconnect", h.ClientCount())
	}
}
