package prompt

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

type chunk struct {
	data []byte
	err  error
}

// LineReader shares one input between line reads and the short-lived readers
// handed to terminal widgets by Conn. Reads happen in a background goroutine
// so a blocked read can be abandoned when a context is cancelled. Input is
// only consumed while someone is waiting for it, and input that arrives after
// its reader gave up is kept for the next one.
type LineReader struct {
	r        io.Reader
	requests chan struct{}
	chunks   chan chunk

	mu      sync.Mutex
	pending bool
	buf     []byte
	err     error
}

func NewLineReader(r io.Reader) *LineReader {
	lr := &LineReader{
		r:        r,
		requests: make(chan struct{}, 1),
		chunks:   make(chan chunk),
	}
	go lr.pump()
	return lr
}

func (lr *LineReader) pump() {
	b := make([]byte, 4096)
	for range lr.requests {
		n, err := lr.r.Read(b)
		lr.chunks <- chunk{data: append([]byte(nil), b[:n]...), err: err}
		if err != nil {
			return
		}
	}
}

// wait asks for more input and blocks until it arrives or done is closed,
// returning false in the latter case. lr.mu must be held.
func (lr *LineReader) wait(done <-chan struct{}) bool {
	if !lr.pending {
		lr.requests <- struct{}{}
		lr.pending = true
	}

	select {
	case <-done:
		return false
	case c := <-lr.chunks:
		lr.pending = false
		lr.buf = append(lr.buf, c.data...)
		if c.err != nil {
			lr.err = c.err
		}
		return true
	}
}

// ReadLine returns the next line with surrounding whitespace removed. It
// returns ctx.Err() if ctx is done first, and io.EOF once input is exhausted.
func (lr *LineReader) ReadLine(ctx context.Context) (string, error) {
	lr.mu.Lock()
	defer lr.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if i := bytes.IndexByte(lr.buf, '\n'); i >= 0 {
			text := string(lr.buf[:i])
			lr.buf = lr.buf[i+1:]
			return strings.TrimSpace(text), nil
		}
		if lr.err != nil {
			if len(lr.buf) > 0 {
				text := string(lr.buf)
				lr.buf = nil
				return strings.TrimSpace(text), nil
			}
			return "", lr.err
		}
		if !lr.wait(ctx.Done()) {
			return "", ctx.Err()
		}
	}
}

// Conn returns a reader over the same input. Closing it makes a blocked Read
// return io.EOF without losing the input it was waiting for.
func (lr *LineReader) Conn() io.ReadCloser {
	return &conn{lr: lr, done: make(chan struct{})}
}

type conn struct {
	lr   *LineReader
	done chan struct{}
	once sync.Once
}

func (c *conn) Read(p []byte) (int, error) {
	lr := c.lr
	lr.mu.Lock()
	defer lr.mu.Unlock()

	select {
	case <-c.done:
		return 0, io.EOF
	default:
	}

	for len(lr.buf) == 0 {
		if lr.err != nil {
			return 0, lr.err
		}
		if !lr.wait(c.done) {
			return 0, io.EOF
		}
	}

	n := copy(p, lr.buf)
	lr.buf = lr.buf[n:]
	return n, nil
}

func (c *conn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

var (
	stdin     *LineReader
	stdinOnce sync.Once
)

// Stdin returns the process-wide reader over os.Stdin
func Stdin() *LineReader {
	stdinOnce.Do(func() {
		stdin = NewLineReader(os.Stdin)
	})
	return stdin
}

func TerminalPrompt(ctx context.Context, message string) (string, error) {
	fmt.Fprint(os.Stderr, message)
	return Stdin().ReadLine(ctx)
}

// IsTerminal reports whether w is connected to a terminal
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Width returns the number of columns of the terminal w is connected to, or
// zero if that isn't known
func Width(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}

func init() {
	Methods["terminal"] = TerminalPrompt
}
