package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

// Reader reads a session log line by line. It supports pushing lines back,
// searching for a key and rewinding to the start.
type Reader struct {
	src     io.ReadSeeker
	closer  io.Closer
	br      *bufio.Reader
	pending []string
	closed  bool
	lineNo  int
}

// Open opens the log at path.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	r := NewReader(f)
	r.closer = f
	return r, nil
}

// NewReader reads from src. Close does not close src.
func NewReader(src io.ReadSeeker) *Reader {
	return &Reader{
		src: src,
		br:  bufio.NewReaderSize(src, 64*1024),
	}
}

// ReadLine returns the next line without its terminator. It reports false
// at end of stream or after Close. A final line with no newline is still
// returned.
func (r *Reader) ReadLine() (string, bool) {
	if r.closed {
		return "", false
	}
	if n := len(r.pending); n > 0 {
		line := r.pending[n-1]
		r.pending = r.pending[:n-1]
		r.lineNo++
		return line, true
	}

	line, err := r.br.ReadString('\n')
	if line == "" && err != nil {
		return "", false
	}
	r.lineNo++
	return strings.TrimRight(line, "\r\n"), true
}

// Unread pushes line back so the next ReadLine returns it.
func (r *Reader) Unread(line string) {
	r.pending = append(r.pending, line)
	r.lineNo--
}

// LineNumber returns the number of lines consumed so far.
func (r *Reader) LineNumber() int { return r.lineNo }

// Next returns the next parseable entry, skipping lines Parse rejects.
func (r *Reader) Next() (Entry, bool) {
	for {
		line, ok := r.ReadLine()
		if !ok {
			return Entry{}, false
		}
		if e, ok := Parse(line); ok {
			return e, true
		}
	}
}

// FindValue scans forward from the current position for the first line
// containing key and returns the text after it. If the stream runs out the
// reader is closed and ErrKeyNotFound is returned.
func (r *Reader) FindValue(key string) (string, error) {
	if r.closed {
		return "", ErrClosed
	}
	for {
		line, ok := r.ReadLine()
		if !ok {
			r.Close()
			return "", fmt.Errorf("%w: %q", ErrKeyNotFound, strings.TrimSpace(key))
		}
		if i := strings.Index(line, key); i >= 0 {
			return line[i+len(key):], nil
		}
	}
}

// Rewind moves back to the first line.
func (r *Reader) Rewind() error {
	if r.closed {
		return ErrClosed
	}
	if _, err := r.src.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind log: %w", err)
	}
	r.br.Reset(r.src)
	r.pending = r.pending[:0]
	r.lineNo = 0
	return nil
}

// Closed reports whether Close has been called.
func (r *Reader) Closed() bool { return r.closed }

// Close releases the underlying file. It is safe to call more than once.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.pending = nil
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
