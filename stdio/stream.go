package stdio

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	// ErrClosed is returned by WriteMessage after Close.
	ErrClosed = errors.New("stdio: stream closed")
	// ErrMessageTooLarge is returned by ReadMessage for a line longer than
	// the configured limit. The line is discarded and the stream stays
	// usable.
	ErrMessageTooLarge = errors.New("stdio: message too large")
)

const defaultMaxMessageSize = 4 << 20

// Stream is a newline-delimited JSON-RPC message stream over an io.Reader
// and an io.Writer. One JSON object per line; blank lines are skipped.
//
// ReadMessage is meant for a single consumer. WriteMessage is safe for
// concurrent use; each message is written and flushed atomically.
type Stream struct {
	r      io.Reader
	w      io.Writer
	l      *slog.Logger
	maxMsg int

	mux *writeMux

	startOnce sync.Once
	items     chan item
	readErr   error // set before items is closed

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

// NewStream constructs a Stream reading from r and writing to w. If r or w
// implement io.Closer they are closed by Close.
func NewStream(r io.Reader, w io.Writer, opts ...Option) *Stream {
	s := &Stream{
		r:      r,
		w:      w,
		l:      slog.Default(),
		maxMsg: defaultMaxMessageSize,
		items:  make(chan item),
		closed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mux = &writeMux{w: bufio.NewWriter(w)}
	return s
}

// ReadMessage returns the next message. It returns io.EOF when the
// underlying reader is exhausted or the stream was closed, and
// ErrMessageTooLarge for an oversized line, after which reading may go on.
func (s *Stream) ReadMessage(ctx context.Context) ([]byte, error) {
	s.startOnce.Do(func() { go s.readLoop() })

	select {
	case it, ok := <-s.items:
		if !ok {
			select {
			case <-s.closed:
				return nil, io.EOF
			default:
			}
			return nil, s.readErr
		}
		return it.msg, it.err
	case <-s.closed:
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// WriteMessage writes msg followed by a newline and flushes.
func (s *Stream) WriteMessage(ctx context.Context, msg []byte) error {
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if bytes.IndexByte(msg, '\n') >= 0 {
		return errors.New("stdio: message contains a newline")
	}
	return s.mux.writeLine(msg)
}

// Close closes the underlying reader and writer when they are closers.
// Safe to call more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		var errs []error
		if c, ok := s.w.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
		if c, ok := s.r.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

type item struct {
	msg []byte
	err error
}

func (s *Stream) readLoop() {
	defer close(s.items)

	br := bufio.NewReaderSize(s.r, min(64*1024, s.maxMsg))
	for {
		line, err := s.readLine(br)
		if errors.Is(err, ErrMessageTooLarge) {
			s.l.Warn("stdio.read.too_large", slog.Int("limit", s.maxMsg))
			if !s.deliver(item{err: err}) {
				return
			}
			continue
		}
		if len(line) > 0 {
			if !s.deliver(item{msg: line}) {
				return
			}
		}
		if err == nil {
			continue
		}
		// A pipe closed by exec.Cmd.Wait after the server exits is end of input.
		if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
			s.readErr = io.EOF
			return
		}
		s.l.Debug("stdio.read.fail", slog.String("err", err.Error()))
		s.readErr = fmt.Errorf("stdio: read: %w", err)
		return
	}
}

func (s *Stream) deliver(it item) bool {
	select {
	case s.items <- it:
		return true
	case <-s.closed:
		s.readErr = io.EOF
		return false
	}
}

// readLine returns the next non-blank line, trimmed. A line over maxMsg
// bytes is consumed through its newline and reported as ErrMessageTooLarge.
// A final unterminated line is returned together with the read error.
func (s *Stream) readLine(br *bufio.Reader) ([]byte, error) {
	var buf []byte
	tooLarge := false
	for {
		chunk, err := br.ReadSlice('\n')
		if !tooLarge {
			// The limit excludes the line terminator.
			if len(bytes.TrimRight(buf, "\r\n"))+len(bytes.TrimRight(chunk, "\r\n")) > s.maxMsg {
				tooLarge = true
				buf = nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if tooLarge {
			if err != nil {
				return nil, err
			}
			return nil, ErrMessageTooLarge
		}
		line := bytes.TrimSpace(buf)
		if err != nil || len(line) > 0 {
			return line, err
		}
		buf = buf[:0]
	}
}

// writeMux serializes writes so concurrent writers never interleave partial
// lines.
type writeMux struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func (m *writeMux) writeLine(b []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.w.Write(b); err != nil {
		return err
	}
	if err := m.w.WriteByte('\n'); err != nil {
		return err
	}
	return m.w.Flush()
}
