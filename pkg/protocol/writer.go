package protocol

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Writer appends lines to a session log. A Writer created with an empty
// path records nothing.
type Writer struct {
	mu     sync.Mutex
	bw     *bufio.Writer
	closer io.Closer
	closed bool
}

// Create creates the log at path and writes the opening lines. An empty
// path returns a Writer that drops everything.
func Create(path string) (*Writer, error) {
	if path == "" {
		return &Writer{}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create log: %w", err)
	}
	w, err := NewWriter(f, time.Now())
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// NewWriter writes the opening lines to dst, stamped with now.
// Close does not close dst.
func NewWriter(dst io.Writer, now time.Time) (*Writer, error) {
	w := &Writer{bw: bufio.NewWriter(dst)}
	if err := w.WriteLine(now.Format("1/2/2006 3:04:05 PM")); err != nil {
		return nil, err
	}
	if err := w.WriteLine(LineStartLog); err != nil {
		return nil, err
	}
	return w, nil
}

// Recording reports whether lines are kept.
func (w *Writer) Recording() bool { return w.bw != nil }

// WriteLine appends one raw line.
func (w *Writer) WriteLine(line string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.bw == nil {
		return nil
	}
	if w.closed {
		return ErrClosed
	}
	if _, err := w.bw.WriteString(line); err != nil {
		return err
	}
	return w.bw.WriteByte('\n')
}

// Msg appends an MSG line with the given payload.
func (w *Writer) Msg(t int64, payload string) error {
	return w.WriteLine(Msg(t, payload))
}

// Write appends e.
func (w *Writer) Write(e Entry) error {
	return w.WriteLine(e.Line())
}

// Flush pushes buffered lines to the destination.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.bw == nil || w.closed {
		return nil
	}
	return w.bw.Flush()
}

// Close writes the closing line and releases the file. It is safe to call
// more than once.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.bw == nil || w.closed {
		return nil
	}
	w.closed = true

	w.bw.WriteString(LineEndLog + "\n")
	err := w.bw.Flush()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
