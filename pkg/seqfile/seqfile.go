// Package seqfile drives lazily produced, resumable text reports.
//
// A report is described by an Iterator that yields items one at a time
// from a cursor. A Session pages the rendered records out through
// io.Reader, holding at most one rendered record in memory.
package seqfile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/looplab/fsm"
)

// Session states.
const (
	StateNotStarted = "not_started"
	StateIterating  = "iterating"
	StateExhausted  = "exhausted"
	StateStopped    = "stopped"
)

const (
	eventStart   = "start"
	eventExhaust = "exhaust"
	eventResume  = "resume"
	eventStop    = "stop"
)

var (
	// ErrStopped is returned by any operation on a stopped session.
	ErrStopped = errors.New("seqfile: session stopped")
	// ErrInvalidSeek is returned for unsupported repositioning requests.
	ErrInvalidSeek = errors.New("seqfile: invalid seek")
)

// Iterator produces the items of one report session.
//
// Start returns the first item at or after *pos and moves *pos onto it.
// It may be called again when a session is rewound. Next advances from
// prev and updates *pos the same way. Both report the end of the
// sequence with ok == false. Show renders one item and must not change
// iteration state. Stop is called exactly once, when the session closes.
type Iterator[T any] interface {
	Start(pos *int64) (item T, ok bool, err error)
	Next(prev T, pos *int64) (item T, ok bool)
	Show(w io.Writer, item T) error
	Stop()
}

// Session pages the output of an Iterator. It is not safe for
// concurrent use.
type Session[T any] struct {
	iter  Iterator[T]
	state *fsm.FSM

	item   T
	pos    int64
	buf    bytes.Buffer
	offset int64
}

var _ io.ReadSeekCloser = (*Session[int])(nil)

// Open starts a session at cursor zero.
func Open[T any](iter Iterator[T]) (*Session[T], error) {
	return OpenAt(iter, 0)
}

// OpenAt starts a session at the given cursor. If the iterator cannot
// start, no session is created and Stop is never called. A failure after
// a successful start stops the iterator before returning.
func OpenAt[T any](iter Iterator[T], pos int64) (*Session[T], error) {
	if pos < 0 {
		pos = 0
	}
	s := &Session[T]{iter: iter}
	s.state = fsm.NewFSM(
		StateNotStarted,
		fsm.Events{
			{Name: eventStart, Src: []string{StateNotStarted}, Dst: StateIterating},
			{Name: eventExhaust, Src: []string{StateIterating}, Dst: StateExhausted},
			{Name: eventResume, Src: []string{StateExhausted}, Dst: StateIterating},
			{Name: eventStop, Src: []string{StateNotStarted, StateIterating, StateExhausted}, Dst: StateStopped},
		},
		fsm.Callbacks{
			"enter_" + StateStopped: func(_ context.Context, _ *fsm.Event) {
				s.iter.Stop()
				s.buf.Reset()
			},
		},
	)

	started, err := s.begin(pos)
	if err != nil {
		if started {
			_ = s.transition(eventStop)
		}
		return nil, err
	}
	return s, nil
}

// State reports the lifecycle state.
func (s *Session[T]) State() string {
	return s.state.Current()
}

// Offset returns the number of bytes delivered since the last restart.
func (s *Session[T]) Offset() int64 {
	return s.offset
}

// Cursor returns the cursor a new session would resume from without
// repeating records that were already delivered in full.
func (s *Session[T]) Cursor() int64 {
	if s.state.Is(StateIterating) && s.buf.Len() == 0 {
		return s.pos + 1
	}
	return s.pos
}

// begin reports whether the iterator started, so a later failure can
// still be paired with Stop.
func (s *Session[T]) begin(pos int64) (bool, error) {
	item, ok, err := s.iter.Start(&pos)
	if err != nil {
		return false, fmt.Errorf("starting report: %w", err)
	}
	if err := s.transition(eventStart); err != nil {
		return true, err
	}
	s.pos = pos
	s.offset = 0
	if !ok {
		s.buf.Reset()
		return true, s.transition(eventExhaust)
	}
	return true, s.render(item)
}

func (s *Session[T]) render(item T) error {
	s.item = item
	s.buf.Reset()
	if err := s.iter.Show(&s.buf, item); err != nil {
		return fmt.Errorf("rendering record at %d: %w", s.pos, err)
	}
	return nil
}

func (s *Session[T]) advance() error {
	item, ok := s.iter.Next(s.item, &s.pos)
	if !ok {
		return s.transition(eventExhaust)
	}
	return s.render(item)
}

// transition fires an event. Events are only fired from states that
// accept them, so an error means the session was misused.
func (s *Session[T]) transition(event string) error {
	if err := s.state.Event(context.Background(), event); err != nil {
		return fmt.Errorf("seqfile: %s from %s: %w", event, s.state.Current(), err)
	}
	return nil
}

// Read copies rendered records into p, producing further records as
// the buffered one drains. It returns io.EOF once the iterator is
// exhausted and everything has been delivered.
func (s *Session[T]) Read(p []byte) (int, error) {
	if s.state.Is(StateStopped) {
		return 0, ErrStopped
	}

	n := 0
	for n < len(p) {
		if s.buf.Len() > 0 {
			m, _ := s.buf.Read(p[n:])
			n += m
			s.offset += int64(m)
			continue
		}
		if s.state.Is(StateExhausted) {
			break
		}
		if err := s.advance(); err != nil {
			return n, err
		}
	}

	if n == 0 && len(p) > 0 && s.state.Is(StateExhausted) {
		return 0, io.EOF
	}
	return n, nil
}

// Seek repositions the session. Only absolute offsets are supported;
// the report is regenerated from cursor zero and the first offset bytes
// are discarded. Seek(0, io.SeekCurrent) reports the current offset.
func (s *Session[T]) Seek(offset int64, whence int) (int64, error) {
	if s.state.Is(StateStopped) {
		return 0, ErrStopped
	}

	switch whence {
	case io.SeekCurrent:
		if offset != 0 {
			return s.offset, ErrInvalidSeek
		}
		return s.offset, nil
	case io.SeekStart:
	default:
		return s.offset, ErrInvalidSeek
	}
	if offset < 0 {
		return s.offset, ErrInvalidSeek
	}
	if offset == s.offset {
		return s.offset, nil
	}

	if err := s.rewind(); err != nil {
		return 0, err
	}
	if _, err := io.CopyN(io.Discard, s, offset); err != nil && !errors.Is(err, io.EOF) {
		return s.offset, err
	}
	return s.offset, nil
}

func (s *Session[T]) rewind() error {
	pos := int64(0)
	item, ok, err := s.iter.Start(&pos)
	if err != nil {
		return fmt.Errorf("restarting report: %w", err)
	}
	if s.state.Is(StateExhausted) {
		if err := s.transition(eventResume); err != nil {
			return err
		}
	}
	s.pos = pos
	s.offset = 0
	if !ok {
		s.buf.Reset()
		return s.transition(eventExhaust)
	}
	return s.render(item)
}

// Close stops the session and releases the iterator's resources.
func (s *Session[T]) Close() error {
	if s.state.Is(StateStopped) {
		return ErrStopped
	}
	return s.transition(eventStop)
}
