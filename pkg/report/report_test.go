package report

import (
	"bytes"
	"errors"
	"io"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/srodi/procscope/pkg/cpuinfo"
	"github.com/srodi/procscope/pkg/meminfo"
	"github.com/srodi/procscope/pkg/types"
)

type staticSource struct {
	info   meminfo.SysInfo
	values map[meminfo.Item]int64
}

func (s staticSource) SysInfo() meminfo.SysInfo { return s.info }
func (s staticSource) Read(item meminfo.Item) int64 { return s.values[item] }

type unitSet map[int]bool

func (u unitSet) Contains(unit int) bool { return u[unit] }
func (u unitSet) Release() {}

type resolver map[types.Identity]unitSet

func (r resolver) Resolve(id types.Identity) (cpuinfo.Scope, error) {
	set, ok := r[id]
	if !ok {
		return nil, types.ErrContextGone
	}
	return set, nil
}

func newReporter() *Reporter {
	return &Reporter{
		CPU: &cpuinfo.Enumerator{
			Units:    4,
			Scoped:   true,
			Resolver: resolver{7: {0: true, 2: true}},
		},
		Memory: &meminfo.Aggregator{
			System: staticSource{
				info: meminfo.SysInfo{TotalRAM: 1000, FreeRAM: 100, TotalSwap: 100, FreeSwap: 20},
			},
			PageShift: 12,
		},
	}
}

func TestNames(t *testing.T) {
	r := newReporter()
	if got := r.Names(); !reflect.DeepEqual(got, []types.Report{types.CPUInfo, types.MemInfo}) {
		t.Fatalf("unexpected names %v", got)
	}

	partial := &Reporter{Memory: r.Memory}
	if got := partial.Names(); !reflect.DeepEqual(got, []types.Report{types.MemInfo}) {
		t.Fatalf("expected only meminfo, got %v", got)
	}
}

func TestOpenUnknownReport(t *testing.T) {
	r := &Reporter{Memory: newReporter().Memory}
	if _, err := r.Open(types.CPUInfo, 7); !errors.Is(err, ErrUnknownReport) {
		t.Fatalf("expected ErrUnknownReport for unregistered cpuinfo, got %v", err)
	}
	if _, err := r.Open("stat", 7); !errors.Is(err, ErrUnknownReport) {
		t.Fatalf("expected ErrUnknownReport, got %v", err)
	}
}

func TestOpenStreamsReport(t *testing.T) {
	r := newReporter()
	s, err := r.Open(types.CPUInfo, 7)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	out, err := io.ReadAll(s)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(out) != "processor\t: 0\n\nprocessor\t: 2\n\n" {
		t.Fatalf("unexpected cpuinfo %q", out)
	}
	if s.Cursor() != 4 {
		t.Fatalf("expected cursor at the unit count, got %d", s.Cursor())
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestWriteToMeminfo(t *testing.T) {
	var b bytes.Buffer
	n, err := newReporter().WriteTo(&b, types.MemInfo, 7)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != int64(b.Len()) {
		t.Fatalf("reported %d bytes, wrote %d", n, b.Len())
	}
	if !strings.HasPrefix(b.String(), "MemTotal:           4000 kB\n") {
		t.Fatalf("unexpected meminfo head %q", b.String()[:40])
	}
}

func TestWriteToGoneProcessIsEmpty(t *testing.T) {
	var b bytes.Buffer
	if _, err := newReporter().WriteTo(&b, types.CPUInfo, 99); err != nil {
		t.Fatalf("write: %v", err)
	}
	if b.Len() != 0 {
		t.Fatalf("expected empty report, got %q", b.String())
	}
}

func TestSummarize(t *testing.T) {
	sum, err := newReporter().Summarize(7)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if sum.VisibleCPUs != 2 || sum.TotalCPUs != 4 {
		t.Fatalf("expected 2/4 cpus, got %d/%d", sum.VisibleCPUs, sum.TotalCPUs)
	}
	if sum.TotalBytes != 1000<<12 {
		t.Fatalf("unexpected total %d", sum.TotalBytes)
	}
	if sum.AvailableBytes != 100<<12 {
		t.Fatalf("unexpected available %d", sum.AvailableBytes)
	}
	if math.Abs(sum.UsedRatio-0.9) > 1e-9 {
		t.Fatalf("unexpected used ratio %.3f", sum.UsedRatio)
	}
	if sum.SwapUsedBytes != 80<<12 {
		t.Fatalf("unexpected swap used %d", sum.SwapUsedBytes)
	}
	if sum.Pressure != "tight" {
		t.Fatalf("expected tight, got %q", sum.Pressure)
	}
}

func TestClassifyPressure(t *testing.T) {
	cases := []struct {
		sum  Summary
		want string
	}{
		{Summary{}, "unknown"},
		{Summary{TotalBytes: 100, UsedRatio: 0.5}, "ok"},
		{Summary{TotalBytes: 100, UsedRatio: 0.85}, "tight"},
		{Summary{TotalBytes: 100, UsedRatio: 0.2, SwapTotalBytes: 10, SwapUsedBytes: 9}, "tight"},
		{Summary{TotalBytes: 100, UsedRatio: 0.99}, "critical"},
	}
	for _, tc := range cases {
		if got := classifyPressure(&tc.sum); got != tc.want {
			t.Fatalf("%+v: expected %q, got %q", tc.sum, tc.want, got)
		}
	}
}
