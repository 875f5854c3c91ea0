package tracker

import (
	"context"
	"sync"

	"github.com/nede-neuro/go-nede/pkg/geom"
)

// Mock implements Tracker for testing.
// All methods can be customized via function fields.
type Mock struct {
	// StartFunc is called when Start is invoked. If nil, returns nil.
	StartFunc func(ctx context.Context, filename string) error

	// StopFunc is called when Stop is invoked. If nil, returns nil.
	StopFunc func() error

	// GazeFunc is called when Gaze is invoked. If nil, returns no sample.
	GazeFunc func() (geom.Vec2, bool)

	// ButtonFunc is called when Button is invoked. If nil, pops from
	// Buttons.
	ButtonFunc func() int

	// Clock supplies Now. If nil, time stays at zero.
	Clock Clock

	// Buttons are returned by Button in order.
	Buttons []int

	// Tracking
	mu       sync.Mutex
	calls    []MockCall
	messages []string
	codes    []Code
}

// MockCall records a method invocation for verification.
type MockCall struct {
	Method string
	Arg    string
	Time   int64
}

// NewMock creates a mock driven by a manual clock.
func NewMock() *Mock {
	return &Mock{Clock: &ManualClock{}}
}

// Start records the call.
func (m *Mock) Start(ctx context.Context, filename string) error {
	m.record("Start", filename)
	if m.StartFunc != nil {
		return m.StartFunc(ctx, filename)
	}
	return nil
}

// Stop records the call.
func (m *Mock) Stop() error {
	m.record("Stop", "")
	if m.StopFunc != nil {
		return m.StopFunc()
	}
	return nil
}

// Now returns the mock clock time.
func (m *Mock) Now() int64 {
	if m.Clock == nil {
		return 0
	}
	return m.Clock.Now()
}

// Message records text.
func (m *Mock) Message(text string) error {
	m.record("Message", text)
	m.mu.Lock()
	m.messages = append(m.messages, text)
	m.mu.Unlock()
	return nil
}

// SendCode records code.
func (m *Mock) SendCode(code Code) error {
	m.record("SendCode", "")
	m.mu.Lock()
	m.codes = append(m.codes, code)
	m.mu.Unlock()
	return nil
}

// Gaze calls GazeFunc.
func (m *Mock) Gaze() (geom.Vec2, bool) {
	if m.GazeFunc != nil {
		return m.GazeFunc()
	}
	return geom.Vec2{}, false
}

// Button calls ButtonFunc or pops Buttons.
func (m *Mock) Button() int {
	if m.ButtonFunc != nil {
		return m.ButtonFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Buttons) == 0 {
		return ButtonNone
	}
	b := m.Buttons[0]
	m.Buttons = m.Buttons[1:]
	return b
}

// Flush records the call.
func (m *Mock) Flush() { m.record("Flush", "") }

func (m *Mock) record(method, arg string) {
	t := m.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: method, Arg: arg, Time: t})
}

// Calls returns all recorded method calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// CallCount returns the number of times a method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Messages returns every logged message in order.
func (m *Mock) Messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.messages...)
}

// Codes returns every event code sent, in order.
func (m *Mock) Codes() []Code {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Code(nil), m.codes...)
}

// Reset clears all recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls, m.messages, m.codes = nil, nil, nil
}

// Verify Mock implements Tracker at compile time.
var _ Tracker = (*Mock)(nil)
