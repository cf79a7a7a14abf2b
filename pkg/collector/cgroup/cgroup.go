// Package cgroup locates processes in the unified cgroup hierarchy.
package cgroup

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/srodi/procscope/pkg/types"
)

// readFile allows tests to stub reads under /proc.
var readFile = os.ReadFile

// Path returns the unified (v2) cgroup of pid relative to the hierarchy
// root, e.g. "/kubepods/pod1". A pid without a proc entry reports
// types.ErrContextGone.
func Path(procRoot string, id types.Identity) (string, error) {
	data, err := readFile(filepath.Join(procRoot, id.String(), "cgroup"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("pid %d: %w", id, types.ErrContextGone)
		}
		return "", fmt.Errorf("reading cgroup of pid %d: %w", id, err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if rel, ok := strings.CutPrefix(scanner.Text(), "0::"); ok {
			return path.Clean("/" + rel), nil
		}
	}
	return "", fmt.Errorf("pid %d has no unified cgroup", id)
}
