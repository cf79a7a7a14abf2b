// Package report binds the cpuinfo and meminfo reports to their endpoint
// names and opens sessions on behalf of a requesting process.
package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/srodi/procscope/pkg/cpuinfo"
	"github.com/srodi/procscope/pkg/meminfo"
	"github.com/srodi/procscope/pkg/types"
)

// ErrUnknownReport is returned for names that are not registered.
var ErrUnknownReport = errors.New("unknown report")

// Stream is an open report session.
type Stream interface {
	io.ReadSeekCloser
	// Cursor is the position a new session would resume from.
	Cursor() int64
}

// Reporter opens the registered reports. A nil component leaves its
// report unregistered.
type Reporter struct {
	CPU    *cpuinfo.Enumerator
	Memory *meminfo.Aggregator
}

// Names lists the registered reports in endpoint order.
func (r *Reporter) Names() []types.Report {
	names := make([]types.Report, 0, len(types.Reports))
	for _, name := range types.Reports {
		if r.has(name) {
			names = append(names, name)
		}
	}
	return names
}

func (r *Reporter) has(name types.Report) bool {
	switch name {
	case types.CPUInfo:
		return r.CPU != nil
	case types.MemInfo:
		return r.Memory != nil
	}
	return false
}

// Open starts a session of the named report for id.
func (r *Reporter) Open(name types.Report, id types.Identity) (Stream, error) {
	if !r.has(name) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownReport, name)
	}
	var (
		s   Stream
		err error
	)
	switch name {
	case types.CPUInfo:
		s, err = r.CPU.Open(id)
	default:
		s, err = r.Memory.Open(id)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// WriteTo renders the whole named report for id into w.
func (r *Reporter) WriteTo(w io.Writer, name types.Report, id types.Identity) (int64, error) {
	s, err := r.Open(name, id)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(w, s)
	if err != nil {
		err = fmt.Errorf("reading %s: %w", name, err)
	}
	return n, errors.Join(err, s.Close())
}
