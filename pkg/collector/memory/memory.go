package memory

import (
	"path/filepath"

	"github.com/srodi/procscope/pkg/meminfo"
)

type unit int

const (
	pages     unit = iota // already in pages
	kbToPages             // kilobytes, converted to pages
	kilobytes             // kilobytes, reported as is
	count                 // a plain number (huge page counts)
)

type counter struct {
	file string
	key  string
	unit unit
}

// hostCounters maps each item to the host file and key it is read from.
var hostCounters = map[meminfo.Item]counter{
	meminfo.FilePages:             {"vmstat", "nr_file_pages", pages},
	meminfo.SwapCache:             {"vmstat", "nr_swapcached", pages},
	meminfo.ActiveAnon:            {"vmstat", "nr_active_anon", pages},
	meminfo.InactiveAnon:          {"vmstat", "nr_inactive_anon", pages},
	meminfo.ActiveFile:            {"vmstat", "nr_active_file", pages},
	meminfo.InactiveFile:          {"vmstat", "nr_inactive_file", pages},
	meminfo.Unevictable:           {"vmstat", "nr_unevictable", pages},
	meminfo.SlabReclaimable:       {"vmstat", "nr_slab_reclaimable", pages},
	meminfo.SlabUnreclaimable:     {"vmstat", "nr_slab_unreclaimable", pages},
	meminfo.AnonMapped:            {"vmstat", "nr_anon_pages", pages},
	meminfo.FileMapped:            {"vmstat", "nr_mapped", pages},
	meminfo.PageTables:            {"vmstat", "nr_page_table_pages", pages},
	meminfo.SecPageTables:         {"vmstat", "nr_sec_page_table_pages", pages},
	meminfo.FileDirty:             {"vmstat", "nr_dirty", pages},
	meminfo.Writeback:             {"vmstat", "nr_writeback", pages},
	meminfo.KernelMiscReclaimable: {"vmstat", "nr_kernel_misc_reclaimable", pages},
	meminfo.Mlocked:               {"vmstat", "nr_mlock", pages},
	meminfo.KernelStackKB:         {"vmstat", "nr_kernel_stack", kilobytes},
	meminfo.ShadowCallStackKB:     {"vmstat", "nr_shadow_call_stack", kilobytes},
	meminfo.Bounce:                {"vmstat", "nr_bounce", pages},
	meminfo.WritebackTemp:         {"vmstat", "nr_writeback_temp", pages},

	meminfo.MmapCopy:          {"meminfo", "MmapCopy", kbToPages},
	meminfo.Zswap:             {"meminfo", "Zswap", kbToPages},
	meminfo.Zswapped:          {"meminfo", "Zswapped", kbToPages},
	meminfo.CommitLimit:       {"meminfo", "CommitLimit", kbToPages},
	meminfo.CommittedAS:       {"meminfo", "Committed_AS", kbToPages},
	meminfo.VmallocTotalKB:    {"meminfo", "VmallocTotal", kilobytes},
	meminfo.VmallocUsed:       {"meminfo", "VmallocUsed", kbToPages},
	meminfo.Percpu:            {"meminfo", "Percpu", kbToPages},
	meminfo.HardwareCorrupted: {"meminfo", "HardwareCorrupted", kbToPages},
	meminfo.AnonHugePages:     {"meminfo", "AnonHugePages", kbToPages},
	meminfo.ShmemHugePages:    {"meminfo", "ShmemHugePages", kbToPages},
	meminfo.ShmemPmdMapped:    {"meminfo", "ShmemPmdMapped", kbToPages},
	meminfo.FileHugePages:     {"meminfo", "FileHugePages", kbToPages},
	meminfo.FilePmdMapped:     {"meminfo", "FilePmdMapped", kbToPages},
	meminfo.CmaTotal:          {"meminfo", "CmaTotal", kbToPages},
	meminfo.CmaFree:           {"meminfo", "CmaFree", kbToPages},
	meminfo.Unaccepted:        {"meminfo", "Unaccepted", kbToPages},
	meminfo.HugePagesTotal:    {"meminfo", "HugePages_Total", count},
	meminfo.HugePagesFree:     {"meminfo", "HugePages_Free", count},
	meminfo.HugePagesRsvd:     {"meminfo", "HugePages_Rsvd", count},
	meminfo.HugePagesSurp:     {"meminfo", "HugePages_Surp", count},
	meminfo.HugepagesizeKB:    {"meminfo", "Hugepagesize", kilobytes},
	meminfo.HugetlbKB:         {"meminfo", "Hugetlb", kilobytes},
	meminfo.DirectMap4kKB:     {"meminfo", "DirectMap4k", kilobytes},
	meminfo.DirectMap2MKB:     {"meminfo", "DirectMap2M", kilobytes},
	meminfo.DirectMap1GKB:     {"meminfo", "DirectMap1G", kilobytes},

	meminfo.LowWatermark: {"zoneinfo", "low", pages},
	meminfo.TotalReserve: {"zoneinfo", "high", pages},
}

// HostSource reads machine-wide counters from procfs. Every Read
// re-reads its file, so consecutive reads may see different moments.
type HostSource struct {
	ProcRoot string
	PageSize uint64

	// sysinfo returns the sysinfo(2) totals in pages. When nil or
	// failing, the totals are taken from the meminfo file.
	sysinfo func(pageSize uint64) (meminfo.SysInfo, error)
}

func (h *HostSource) pageSize() uint64 {
	if h.PageSize == 0 {
		return 1 << meminfo.DefaultPageShift
	}
	return h.PageSize
}

func (h *HostSource) path(name string) string {
	return filepath.Join(h.ProcRoot, name)
}

// SysInfo implements meminfo.Source.
func (h *HostSource) SysInfo() meminfo.SysInfo {
	if h.sysinfo != nil {
		if info, err := h.sysinfo(h.pageSize()); err == nil {
			return info
		}
	}

	values := readKeyValues(h.path("meminfo"))
	kb := func(key string) uint64 {
		return toPages(values[key], kbToPages, h.pageSize())
	}
	return meminfo.SysInfo{
		TotalRAM:  kb("MemTotal"),
		FreeRAM:   kb("MemFree"),
		SharedRAM: kb("Shmem"),
		BufferRAM: kb("Buffers"),
		TotalHigh: kb("HighTotal"),
		FreeHigh:  kb("HighFree"),
		TotalSwap: kb("SwapTotal"),
		FreeSwap:  kb("SwapFree"),
	}
}

// Read implements meminfo.Source.
func (h *HostSource) Read(item meminfo.Item) int64 {
	c, ok := hostCounters[item]
	if !ok {
		return 0
	}
	if c.file == "zoneinfo" {
		return int64(sumZoneField(h.path("zoneinfo"), c.key))
	}
	values := readKeyValues(h.path(c.file))
	v, ok := values[c.key]
	if !ok {
		return 0
	}
	return int64(toPages(v, c.unit, h.pageSize()))
}

func toPages(v uint64, u unit, pageSize uint64) uint64 {
	if u == kbToPages {
		return v * 1024 / pageSize
	}
	return v
}

// capabilityKeys maps meminfo keys to the optional block they reveal.
var capabilityKeys = map[string]meminfo.Capability{
	"HighTotal":         meminfo.CapHighMem,
	"MmapCopy":          meminfo.CapNoMMU,
	"Zswap":             meminfo.CapZswap,
	"ShadowCallStack":   meminfo.CapShadowCallStack,
	"HardwareCorrupted": meminfo.CapMemoryFailure,
	"AnonHugePages":     meminfo.CapTransparentHugePage,
	"CmaTotal":          meminfo.CapCMA,
	"Unaccepted":        meminfo.CapUnaccepted,
	"HugePages_Total":   meminfo.CapHugeTLB,
	"DirectMap4k":       meminfo.CapDirectMap,
}

// DetectCapabilities derives the optional blocks from the keys present
// in the host's meminfo file.
func DetectCapabilities(procRoot string) meminfo.Capabilities {
	var caps meminfo.Capabilities
	for key := range readKeyValues(filepath.Join(procRoot, "meminfo")) {
		if c, ok := capabilityKeys[key]; ok {
			caps = caps.With(c)
		}
	}
	return caps
}
