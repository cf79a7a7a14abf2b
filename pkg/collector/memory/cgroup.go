package memory

import (
	"path/filepath"

	"github.com/srodi/procscope/pkg/collector/cgroup"
	"github.com/srodi/procscope/pkg/meminfo"
	"github.com/srodi/procscope/pkg/types"
)

// groupStatKeys maps items to memory.stat keys. memory.stat reports bytes.
var groupStatKeys = map[meminfo.Item]string{
	meminfo.FilePages:         "file",
	meminfo.SwapCache:         "swapcached",
	meminfo.ActiveAnon:        "active_anon",
	meminfo.InactiveAnon:      "inactive_anon",
	meminfo.ActiveFile:        "active_file",
	meminfo.InactiveFile:      "inactive_file",
	meminfo.Unevictable:       "unevictable",
	meminfo.SlabReclaimable:   "slab_reclaimable",
	meminfo.SlabUnreclaimable: "slab_unreclaimable",
	meminfo.AnonMapped:        "anon",
	meminfo.FileMapped:        "file_mapped",
	meminfo.PageTables:        "pagetables",
	meminfo.SecPageTables:     "sec_pagetables",
	meminfo.FileDirty:         "file_dirty",
	meminfo.Writeback:         "file_writeback",
}

// groupZeroItems have no per-group equivalent and read as zero.
var groupZeroItems = map[meminfo.Item]bool{
	meminfo.KernelMiscReclaimable: true,
	meminfo.LowWatermark:          true,
	meminfo.TotalReserve:          true,
}

// CgroupSource reads the counters of one cgroup v2 directory. Items
// without a group equivalent (huge page pools, the direct map) come
// from Host.
type CgroupSource struct {
	Dir  string
	Host *HostSource
}

func (c *CgroupSource) file(name string) string {
	return filepath.Join(c.Dir, name)
}

// SysInfo implements meminfo.Source. Totals are the group's limits,
// capped by the host's.
func (c *CgroupSource) SysInfo() meminfo.SysInfo {
	host := c.Host.SysInfo()
	pageSize := c.Host.pageSize()
	toPg := func(b uint64) uint64 { return b / pageSize }

	info := meminfo.SysInfo{TotalRAM: host.TotalRAM, TotalSwap: host.TotalSwap}
	if limit, ok := readLimit(c.file("memory.max")); ok {
		info.TotalRAM = min(info.TotalRAM, toPg(limit))
	}
	if limit, ok := readLimit(c.file("memory.swap.max")); ok {
		info.TotalSwap = min(info.TotalSwap, toPg(limit))
	}
	info.FreeRAM = info.TotalRAM
	if used, ok := readLimit(c.file("memory.current")); ok {
		info.FreeRAM -= min(info.TotalRAM, toPg(used))
	}
	info.FreeSwap = info.TotalSwap
	if used, ok := readLimit(c.file("memory.swap.current")); ok {
		info.FreeSwap -= min(info.TotalSwap, toPg(used))
	}
	info.SharedRAM = toPg(readKeyValues(c.file("memory.stat"))["shmem"])
	return info
}

// Read implements meminfo.Source.
func (c *CgroupSource) Read(item meminfo.Item) int64 {
	if groupZeroItems[item] {
		return 0
	}
	key, ok := groupStatKeys[item]
	if !ok {
		return c.Host.Read(item)
	}
	v, ok := readKeyValues(c.file("memory.stat"))[key]
	if !ok {
		return 0
	}
	return int64(v / c.Host.pageSize())
}

// GroupResolver maps a process to the memory accounting of its cgroup.
// Processes in the root cgroup, or in a cgroup without the memory
// controller, get the host counters.
type GroupResolver struct {
	ProcRoot   string
	CgroupRoot string
	Host       *HostSource
}

// Group implements meminfo.GroupResolver.
func (r *GroupResolver) Group(id types.Identity) (meminfo.Source, meminfo.Scope, error) {
	rel, err := cgroup.Path(r.ProcRoot, id)
	if err != nil {
		return nil, meminfo.System, err
	}
	if rel == "/" {
		return r.Host, meminfo.System, nil
	}

	dir := filepath.Join(r.CgroupRoot, rel)
	if _, err := procReadFile(filepath.Join(dir, "memory.stat")); err != nil {
		return r.Host, meminfo.System, nil
	}
	return &CgroupSource{Dir: dir, Host: r.Host}, meminfo.Group, nil
}
