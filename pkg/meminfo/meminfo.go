// Package meminfo captures memory accounting counters into a snapshot
// and renders it as the fixed-layout meminfo report.
//
// Counters are read one accessor call at a time from a Source. Nothing
// locks the counters across reads, so a snapshot is a composite of
// individually consistent values; every derived field is floored at
// zero instead of exposing transient skew.
package meminfo

// Item identifies one counter read from a Source. Counters are in pages
// unless the name ends in KB (kilobytes) or they count huge pages.
type Item int

const (
	FilePages Item = iota
	SwapCache
	ActiveAnon
	InactiveAnon
	ActiveFile
	InactiveFile
	Unevictable
	SlabReclaimable
	SlabUnreclaimable
	AnonMapped
	FileMapped
	PageTables
	SecPageTables
	FileDirty
	Writeback
	KernelMiscReclaimable
	LowWatermark
	TotalReserve
	Mlocked
	MmapCopy
	Zswap
	Zswapped
	KernelStackKB
	ShadowCallStackKB
	Bounce
	WritebackTemp
	CommitLimit
	CommittedAS
	VmallocTotalKB
	VmallocUsed
	Percpu
	HardwareCorrupted
	AnonHugePages
	ShmemHugePages
	ShmemPmdMapped
	FileHugePages
	FilePmdMapped
	CmaTotal
	CmaFree
	Unaccepted
	HugePagesTotal
	HugePagesFree
	HugePagesRsvd
	HugePagesSurp
	HugepagesizeKB
	HugetlbKB
	DirectMap4kKB
	DirectMap2MKB
	DirectMap1GKB

	numItems
)

// SysInfo holds the totals reported by sysinfo(2), in pages.
type SysInfo struct {
	TotalRAM  uint64
	FreeRAM   uint64
	SharedRAM uint64
	BufferRAM uint64
	TotalHigh uint64
	FreeHigh  uint64
	TotalSwap uint64
	FreeSwap  uint64
}

// Source reads live counters. Each call is an independent read; no
// call may fail, unreadable counters read as zero.
type Source interface {
	SysInfo() SysInfo
	Read(item Item) int64
}

// Scope selects which accounting domain a snapshot describes.
type Scope int

const (
	// System is the whole machine.
	System Scope = iota
	// Group is a resource-controlled group of processes.
	Group
)

func (s Scope) String() string {
	if s == Group {
		return "group"
	}
	return "system"
}

// Snapshot is one best-effort reading of the memory counters.
type Snapshot struct {
	Scope Scope
	Info  SysInfo

	// Available estimates memory obtainable without swapping.
	Available uint64
	// Cached is file pages not counted as swap cache or buffers.
	Cached uint64

	counters [numItems]uint64
}

// Pages returns a captured counter. Items that were not captured read
// as zero.
func (s *Snapshot) Pages(item Item) uint64 {
	if item < 0 || item >= numItems {
		return 0
	}
	return s.counters[item]
}

// Active returns the active LRU total.
func (s *Snapshot) Active() uint64 {
	return s.counters[ActiveAnon] + s.counters[ActiveFile]
}

// Inactive returns the inactive LRU total.
func (s *Snapshot) Inactive() uint64 {
	return s.counters[InactiveAnon] + s.counters[InactiveFile]
}

// LowTotal returns memory outside the high memory split.
func (s *Snapshot) LowTotal() uint64 {
	return sub(s.Info.TotalRAM, s.Info.TotalHigh)
}

// LowFree returns free memory outside the high memory split.
func (s *Snapshot) LowFree() uint64 {
	return sub(s.Info.FreeRAM, s.Info.FreeHigh)
}

// Slab returns reclaimable plus unreclaimable slab.
func (s *Snapshot) Slab() uint64 {
	return s.counters[SlabReclaimable] + s.counters[SlabUnreclaimable]
}

// KReclaimable returns slab and other kernel memory the kernel can reclaim.
func (s *Snapshot) KReclaimable() uint64 {
	return s.counters[SlabReclaimable] + s.counters[KernelMiscReclaimable]
}

// sharedItems are read at every scope, in this order.
var sharedItems = []Item{
	ActiveAnon, InactiveAnon, ActiveFile, InactiveFile, Unevictable,
	FilePages, SwapCache,
	SlabReclaimable, SlabUnreclaimable,
	AnonMapped, FileMapped,
	PageTables, SecPageTables,
	FileDirty, Writeback,
	KernelMiscReclaimable, LowWatermark, TotalReserve,
}

// systemItems are read only for system-wide snapshots.
var systemItems = []Item{
	Mlocked, KernelStackKB, Bounce, WritebackTemp,
	CommitLimit, CommittedAS, VmallocTotalKB, VmallocUsed, Percpu,
}

// optionalItems are read when their capability is present.
var optionalItems = []struct {
	cap   Capability
	scope Scope
	items []Item
}{
	{CapNoMMU, System, []Item{MmapCopy}},
	{CapZswap, System, []Item{Zswap, Zswapped}},
	{CapShadowCallStack, System, []Item{ShadowCallStackKB}},
	{CapMemoryFailure, System, []Item{HardwareCorrupted}},
	{CapTransparentHugePage, System, []Item{AnonHugePages, ShmemHugePages, ShmemPmdMapped, FileHugePages, FilePmdMapped}},
	{CapCMA, System, []Item{CmaTotal, CmaFree}},
	{CapUnaccepted, System, []Item{Unaccepted}},
	{CapHugeTLB, Group, []Item{HugePagesTotal, HugePagesFree, HugePagesRsvd, HugePagesSurp, HugepagesizeKB, HugetlbKB}},
	{CapDirectMap, Group, []Item{DirectMap4kKB, DirectMap2MKB, DirectMap1GKB}},
}

// Capture reads the counters relevant to scope from src, once each and
// in a fixed order, and derives the composite fields.
func Capture(src Source, scope Scope, caps Capabilities) *Snapshot {
	s := &Snapshot{Scope: scope, Info: src.SysInfo()}

	read := func(items []Item) {
		for _, item := range items {
			s.counters[item] = floor(src.Read(item))
		}
	}

	read(sharedItems)
	if scope == System {
		read(systemItems)
	}
	for _, opt := range optionalItems {
		// group-visible blocks are read at any scope, system-only
		// blocks only for System
		if !caps.Has(opt.cap) || (opt.scope == System && scope != System) {
			continue
		}
		read(opt.items)
	}

	s.Cached = floor(int64(s.counters[FilePages]) - int64(s.counters[SwapCache]) - int64(s.Info.BufferRAM))
	s.Available = available(s)
	return s
}

// available follows the kernel's MemAvailable estimate: free memory
// above the reserve, plus the page cache and reclaimable kernel memory
// that can be dropped without going below the low watermark.
func available(s *Snapshot) uint64 {
	low := int64(s.counters[LowWatermark])
	avail := int64(s.Info.FreeRAM) - int64(s.counters[TotalReserve])

	pagecache := int64(s.counters[ActiveFile] + s.counters[InactiveFile])
	avail += pagecache - min(pagecache/2, low)

	reclaimable := int64(s.counters[SlabReclaimable] + s.counters[KernelMiscReclaimable])
	avail += reclaimable - min(reclaimable/2, low)

	return floor(avail)
}

func floor(v int64) uint64 {
	if v < 0 {
		return 0
	}
	return uint64(v)
}

func sub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
