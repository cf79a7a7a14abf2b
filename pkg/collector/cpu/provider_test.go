package cpu

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/cpuid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderShow(t *testing.T) {
	sys := t.TempDir()
	cpuDir := filepath.Join(sys, "devices", "system", "cpu", "cpu2")
	writeFile(t, filepath.Join(cpuDir, "cpufreq", "scaling_cur_freq"), "2400000\n")
	writeFile(t, filepath.Join(cpuDir, "topology", "physical_package_id"), "1\n")
	writeFile(t, filepath.Join(cpuDir, "topology", "core_id"), "5\n")

	p := &Provider{SysRoot: sys, Info: cpuid.CPUInfo{
		BrandName:     "Test CPU @ 2.40GHz ",
		VendorString:  "GenuineTest",
		Family:        6,
		Model:         85,
		PhysicalCores: 4,
		LogicalCores:  8,
	}}
	p.Info.Cache.L3 = 8 << 20

	var b bytes.Buffer
	require.NoError(t, p.Show(&b, 2))
	out := b.String()

	assert.True(t, strings.HasPrefix(out, "processor\t: 2\nvendor_id\t: GenuineTest\n"))
	assert.Contains(t, out, "model name\t: Test CPU @ 2.40GHz\n")
	assert.Contains(t, out, "cpu MHz\t\t: 2400.000\n")
	assert.Contains(t, out, "cache size\t: 8192 KB\n")
	assert.Contains(t, out, "physical id\t: 1\n")
	assert.Contains(t, out, "core id\t\t: 5\n")
	assert.Contains(t, out, "siblings\t: 8\ncore id")
	assert.True(t, strings.HasSuffix(out, "\n\n"), "record ends with a blank line")
}

func TestProviderFallsBackToNominalClock(t *testing.T) {
	p := &Provider{SysRoot: t.TempDir(), Info: cpuid.CPUInfo{Hz: 3_000_000_000}}

	var b bytes.Buffer
	require.NoError(t, p.Show(&b, 0))
	assert.Contains(t, b.String(), "vendor_id\t: unknown\n")
	assert.Contains(t, b.String(), "cpu MHz\t\t: 3000.000\n")
	assert.NotContains(t, b.String(), "cache size")
}
