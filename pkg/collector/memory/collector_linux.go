//go:build linux
// +build linux

package memory

import (
	"fmt"
	"math/bits"

	"golang.org/x/sys/unix"

	"github.com/srodi/procscope/pkg/meminfo"
)

// sysinfoCall allows tests to stub sysinfo(2).
var sysinfoCall = unix.Sysinfo

// NewHostSource returns a source for the running machine.
func NewHostSource(procRoot string) (*HostSource, error) {
	return &HostSource{
		ProcRoot: procRoot,
		PageSize: uint64(unix.Getpagesize()),
		sysinfo:  readSysinfo,
	}, nil
}

// PageShift returns log2 of the system page size.
func PageShift() uint {
	return uint(bits.TrailingZeros(uint(unix.Getpagesize())))
}

func readSysinfo(pageSize uint64) (meminfo.SysInfo, error) {
	var si unix.Sysinfo_t
	if err := sysinfoCall(&si); err != nil {
		return meminfo.SysInfo{}, fmt.Errorf("sysinfo: %w", err)
	}

	unit := uint64(si.Unit)
	if unit == 0 {
		unit = 1
	}
	toPages := func(v uint64) uint64 { return v * unit / pageSize }

	return meminfo.SysInfo{
		TotalRAM:  toPages(uint64(si.Totalram)),
		FreeRAM:   toPages(uint64(si.Freeram)),
		SharedRAM: toPages(uint64(si.Sharedram)),
		BufferRAM: toPages(uint64(si.Bufferram)),
		TotalHigh: toPages(uint64(si.Totalhigh)),
		FreeHigh:  toPages(uint64(si.Freehigh)),
		TotalSwap: toPages(uint64(si.Totalswap)),
		FreeSwap:  toPages(uint64(si.Freeswap)),
	}, nil
}
