//go:build linux

package memory

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestReadSysinfoScalesUnits(t *testing.T) {
	t.Cleanup(func() { sysinfoCall = unix.Sysinfo })
	sysinfoCall = func(si *unix.Sysinfo_t) error {
		si.Unit = 4
		si.Totalram = 4096
		si.Freeram = 1024
		si.Totalswap = 2048
		return nil
	}

	info, err := readSysinfo(4096)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), info.TotalRAM)
	assert.Equal(t, uint64(1), info.FreeRAM)
	assert.Equal(t, uint64(2), info.TotalSwap)

	sysinfoCall = func(*unix.Sysinfo_t) error { return errors.New("denied") }
	_, err = readSysinfo(4096)
	assert.Error(t, err)
}

func TestPageShiftMatchesPageSize(t *testing.T) {
	assert.Equal(t, os.Getpagesize(), 1<<PageShift())
}

func TestNewHostSource(t *testing.T) {
	host, err := NewHostSource("/proc")
	require.NoError(t, err)
	assert.Equal(t, uint64(os.Getpagesize()), host.PageSize)
	assert.NotZero(t, host.SysInfo().TotalRAM)
}
