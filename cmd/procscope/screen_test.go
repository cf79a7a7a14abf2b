//go:build linux

package main

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScreenWithoutTerminalWritesPlainFrames(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	var out bytes.Buffer
	scr := newScreen(&out, int(w.Fd()), int(r.Fd()), slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.False(t, scr.terminal)

	require.NoError(t, scr.draw("frame 1\n"))
	require.NoError(t, scr.draw("frame 2\n"))
	scr.close()
	scr.close()

	assert.Equal(t, "frame 1\nframe 2\n", out.String())
}

func TestScreenOnTerminalClearsAndRestores(t *testing.T) {
	var out bytes.Buffer
	scr := &screen{out: &out, terminal: true, inFD: -1}

	require.NoError(t, scr.draw("frame\n"))
	scr.close()
	scr.close()

	assert.Equal(t, clearHome+"frame\n"+altScreenOff, out.String())
}
