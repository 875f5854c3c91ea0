package replay

import (
	"sync"

	"github.com/nede-neuro/go-nede/pkg/protocol"
)

// Sink receives the annotations a replay derives: visibility lines, trial
// boundaries and leader lines, in log order.
type Sink interface {
	Annotate(e protocol.Entry) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(e protocol.Entry) error

// Annotate implements Sink.
func (f SinkFunc) Annotate(e protocol.Entry) error { return f(e) }

// Collector keeps every annotation in memory.
type Collector struct {
	mu      sync.Mutex
	entries []protocol.Entry
}

// Annotate implements Sink.
func (c *Collector) Annotate(e protocol.Entry) error {
	c.mu.Lock()
	c.entries = append(c.entries, e)
	c.mu.Unlock()
	return nil
}

// Entries returns a copy of what has been collected.
func (c *Collector) Entries() []protocol.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.Entry(nil), c.entries...)
}

var _ Sink = (*Collector)(nil)
