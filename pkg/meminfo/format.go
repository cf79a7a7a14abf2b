package meminfo

import (
	"fmt"
	"io"
)

// Every line is lineWidth columns wide before the unit suffix: the
// label is left-aligned and the value right-aligned. Consumers parse
// these columns, so widths and order never change.
const (
	lineWidth   = 24
	valueWidth  = 8
	narrowWidth = 5
)

// DefaultPageShift is used when no page size is configured.
const DefaultPageShift = 12

// Field is one rendered line of the report.
type Field struct {
	Label string
	Value uint64
	// Width is the minimum width of the value column.
	Width int
	// KB appends the " kB" unit suffix.
	KB bool
}

func (f Field) String() string {
	suffix := ""
	if f.KB {
		suffix = " kB"
	}
	return fmt.Sprintf("%-*s%*d%s\n", lineWidth-f.Width, f.Label, f.Width, f.Value, suffix)
}

// Fields lays out a snapshot in report order. Optional blocks appear
// only when caps has them and the snapshot's scope shows them.
func Fields(s *Snapshot, caps Capabilities, pageShift uint) []Field {
	if pageShift < 10 {
		pageShift = DefaultPageShift
	}
	shift := pageShift - 10

	fields := make([]Field, 0, 64)
	kb := func(label string, pages uint64) {
		fields = append(fields, Field{Label: label, Value: pages << shift, Width: valueWidth, KB: true})
	}
	raw := func(label string, kilobytes uint64) {
		fields = append(fields, Field{Label: label, Value: kilobytes, Width: valueWidth, KB: true})
	}
	narrow := func(label string, value uint64, unit bool) {
		fields = append(fields, Field{Label: label, Value: value, Width: narrowWidth, KB: unit})
	}
	system := s.Scope == System

	kb("MemTotal:", s.Info.TotalRAM)
	kb("MemFree:", s.Info.FreeRAM)
	kb("MemAvailable:", s.Available)
	kb("Buffers:", s.Info.BufferRAM)
	kb("Cached:", s.Cached)
	kb("SwapCached:", s.Pages(SwapCache))
	kb("Active:", s.Active())
	kb("Inactive:", s.Inactive())
	kb("Active(anon):", s.Pages(ActiveAnon))
	kb("Inactive(anon):", s.Pages(InactiveAnon))
	kb("Active(file):", s.Pages(ActiveFile))
	kb("Inactive(file):", s.Pages(InactiveFile))
	kb("Unevictable:", s.Pages(Unevictable))

	if system && caps.Has(CapHighMem) {
		kb("HighTotal:", s.Info.TotalHigh)
		kb("HighFree:", s.Info.FreeHigh)
		kb("LowTotal:", s.LowTotal())
		kb("LowFree:", s.LowFree())
	}

	kb("SwapTotal:", s.Info.TotalSwap)
	kb("SwapFree:", s.Info.FreeSwap)
	kb("Dirty:", s.Pages(FileDirty))
	kb("Writeback:", s.Pages(Writeback))
	kb("AnonPages:", s.Pages(AnonMapped))
	kb("Mapped:", s.Pages(FileMapped))
	kb("Shmem:", s.Info.SharedRAM)
	kb("Slab:", s.Slab())
	kb("SReclaimable:", s.Pages(SlabReclaimable))
	kb("SUnreclaim:", s.Pages(SlabUnreclaimable))
	kb("PageTables:", s.Pages(PageTables))
	kb("SecPageTables:", s.Pages(SecPageTables))

	if system {
		kb("Mlocked:", s.Pages(Mlocked))
		if caps.Has(CapNoMMU) {
			kb("MmapCopy:", s.Pages(MmapCopy))
		}
		if caps.Has(CapZswap) {
			kb("Zswap:", s.Pages(Zswap))
			kb("Zswapped:", s.Pages(Zswapped))
		}
		kb("KReclaimable:", s.KReclaimable())
		raw("KernelStack:", s.Pages(KernelStackKB))
		if caps.Has(CapShadowCallStack) {
			raw("ShadowCallStack:", s.Pages(ShadowCallStackKB))
		}
		kb("NFS_Unstable:", 0)
		kb("Bounce:", s.Pages(Bounce))
		kb("WritebackTmp:", s.Pages(WritebackTemp))
		kb("CommitLimit:", s.Pages(CommitLimit))
		kb("Committed_AS:", s.Pages(CommittedAS))
		raw("VmallocTotal:", s.Pages(VmallocTotalKB))
		kb("VmallocUsed:", s.Pages(VmallocUsed))
		kb("VmallocChunk:", 0)
		kb("Percpu:", s.Pages(Percpu))
		if caps.Has(CapMemoryFailure) {
			narrow("HardwareCorrupted:", s.Pages(HardwareCorrupted)<<shift, true)
		}
		if caps.Has(CapTransparentHugePage) {
			kb("AnonHugePages:", s.Pages(AnonHugePages))
			kb("ShmemHugePages:", s.Pages(ShmemHugePages))
			kb("ShmemPmdMapped:", s.Pages(ShmemPmdMapped))
			kb("FileHugePages:", s.Pages(FileHugePages))
			kb("FilePmdMapped:", s.Pages(FilePmdMapped))
		}
		if caps.Has(CapCMA) {
			kb("CmaTotal:", s.Pages(CmaTotal))
			kb("CmaFree:", s.Pages(CmaFree))
		}
		if caps.Has(CapUnaccepted) {
			kb("Unaccepted:", s.Pages(Unaccepted))
		}
	}

	if caps.Has(CapHugeTLB) {
		narrow("HugePages_Total:", s.Pages(HugePagesTotal), false)
		narrow("HugePages_Free:", s.Pages(HugePagesFree), false)
		narrow("HugePages_Rsvd:", s.Pages(HugePagesRsvd), false)
		narrow("HugePages_Surp:", s.Pages(HugePagesSurp), false)
		raw("Hugepagesize:", s.Pages(HugepagesizeKB))
		raw("Hugetlb:", s.Pages(HugetlbKB))
	}
	if caps.Has(CapDirectMap) {
		raw("DirectMap4k:", s.Pages(DirectMap4kKB))
		raw("DirectMap2M:", s.Pages(DirectMap2MKB))
		raw("DirectMap1G:", s.Pages(DirectMap1GKB))
	}

	return fields
}

// Render writes the whole report for s.
func Render(w io.Writer, s *Snapshot, caps Capabilities, pageShift uint) error {
	for _, f := range Fields(s, caps, pageShift) {
		if _, err := io.WriteString(w, f.String()); err != nil {
			return err
		}
	}
	return nil
}
