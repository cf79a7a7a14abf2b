//go:build linux

package main

import (
	"io"
	"log/slog"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

const (
	altScreenOn  = "\033[?1049h\033[?25l"
	altScreenOff = "\033[?25h\033[?1049l"
	clearHome    = "\033[H\033[2J"
)

// screen redraws watch frames. On a terminal it draws on the alternate
// buffer with the cursor hidden and input echo off; elsewhere frames are
// appended to out as plain text.
type screen struct {
	out      io.Writer
	terminal bool
	inFD     int
	inState  *term.State
}

func newScreen(out io.Writer, outFD, inFD int, logger *slog.Logger) *screen {
	s := &screen{out: out, inFD: inFD, terminal: term.IsTerminal(outFD)}
	if !s.terminal {
		return s
	}

	io.WriteString(s.out, altScreenOn)
	if term.IsTerminal(inFD) {
		if err := s.muteInput(); err != nil {
			logger.Warn("unable to suppress stdin echo", "error", err)
		}
	}
	return s
}

// muteInput clears ECHO only, leaving canonical mode and signals alone
// so Ctrl-C still interrupts the watch loop.
func (s *screen) muteInput() error {
	state, err := term.GetState(s.inFD)
	if err != nil {
		return err
	}
	tio, err := unix.IoctlGetTermios(s.inFD, unix.TCGETS)
	if err != nil {
		return err
	}
	tio.Lflag &^= unix.ECHO
	if err := unix.IoctlSetTermios(s.inFD, unix.TCSETS, tio); err != nil {
		return err
	}
	s.inState = state
	return nil
}

func (s *screen) draw(frame string) error {
	if s.terminal {
		frame = clearHome + frame
	}
	_, err := io.WriteString(s.out, frame)
	return err
}

// close restores the terminal. It is safe to call more than once.
func (s *screen) close() {
	if s.inState != nil {
		_ = term.Restore(s.inFD, s.inState)
		s.inState = nil
	}
	if s.terminal {
		io.WriteString(s.out, altScreenOff)
		s.terminal = false
	}
}
