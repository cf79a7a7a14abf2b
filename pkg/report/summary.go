package report

import (
	"fmt"

	"github.com/srodi/procscope/pkg/meminfo"
	"github.com/srodi/procscope/pkg/types"
)

// Summary condenses both reports for one process into a few figures.
type Summary struct {
	ID types.Identity

	VisibleCPUs int
	TotalCPUs   int

	Scope          meminfo.Scope
	TotalBytes     uint64
	AvailableBytes uint64
	UsedBytes      uint64
	SwapTotalBytes uint64
	SwapUsedBytes  uint64
	UsedRatio      float64
	Pressure       string
}

// Summarize counts the CPUs visible to id and derives memory headroom
// from a fresh snapshot. A report that is not registered leaves its
// figures at zero.
func (r *Reporter) Summarize(id types.Identity) (Summary, error) {
	sum := Summary{ID: id}

	if r.CPU != nil {
		visible, err := r.visibleCPUs(id)
		if err != nil {
			return sum, err
		}
		sum.VisibleCPUs = visible
		sum.TotalCPUs = r.CPU.Units
	}

	if r.Memory != nil {
		if snap, ok := r.Memory.Snapshot(id); ok {
			fillMemory(&sum, snap, r.Memory.Shift())
		}
	}
	return sum, nil
}

func (r *Reporter) visibleCPUs(id types.Identity) (int, error) {
	it := r.CPU.Iterator(id)
	var pos int64
	unit, ok, err := it.Start(&pos)
	if err != nil {
		return 0, fmt.Errorf("counting cpus for pid %d: %w", id, err)
	}
	defer it.Stop()

	n := 0
	for ok {
		n++
		unit, ok = it.Next(unit, &pos)
	}
	return n, nil
}

func fillMemory(sum *Summary, snap *meminfo.Snapshot, shift uint) {
	bytes := func(pages uint64) uint64 { return pages << shift }

	sum.Scope = snap.Scope
	sum.TotalBytes = bytes(snap.Info.TotalRAM)
	sum.AvailableBytes = min(bytes(snap.Available), sum.TotalBytes)
	sum.UsedBytes = sum.TotalBytes - sum.AvailableBytes
	sum.SwapTotalBytes = bytes(snap.Info.TotalSwap)
	if snap.Info.FreeSwap < snap.Info.TotalSwap {
		sum.SwapUsedBytes = bytes(snap.Info.TotalSwap - snap.Info.FreeSwap)
	}
	if sum.TotalBytes > 0 {
		sum.UsedRatio = float64(sum.UsedBytes) / float64(sum.TotalBytes)
	}
	sum.Pressure = classifyPressure(sum)
}

func classifyPressure(sum *Summary) string {
	swapping := sum.SwapTotalBytes > 0 && float64(sum.SwapUsedBytes)/float64(sum.SwapTotalBytes) > 0.5

	switch {
	case sum.TotalBytes == 0:
		return "unknown"
	case sum.UsedRatio > 0.95:
		return "critical"
	case sum.UsedRatio > 0.8 || swapping:
		return "tight"
	default:
		return "ok"
	}
}
