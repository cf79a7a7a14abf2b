package cpu

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/cpuid/v2"
)

// Provider renders the attribute block of one CPU. Package-wide
// attributes come from cpuid; per-CPU topology and frequency from sysfs.
type Provider struct {
	SysRoot string
	Info    cpuid.CPUInfo
}

// NewProvider returns a provider for the running machine.
func NewProvider(sysRoot string) *Provider {
	return &Provider{SysRoot: sysRoot, Info: cpuid.CPU}
}

func (p *Provider) cpuDir(unit int) string {
	return filepath.Join(p.SysRoot, "devices", "system", "cpu", "cpu"+strconv.Itoa(unit))
}

// mhz prefers the current scaling frequency and falls back to the
// nominal clock.
func (p *Provider) mhz(unit int) float64 {
	if khz, ok := readSysInt(filepath.Join(p.cpuDir(unit), "cpufreq", "scaling_cur_freq")); ok {
		return float64(khz) / 1000
	}
	return float64(p.Info.Hz) / 1e6
}

func (p *Provider) topology(unit int, name string) int64 {
	v, ok := readSysInt(filepath.Join(p.cpuDir(unit), "topology", name))
	if !ok {
		return 0
	}
	return v
}

func (p *Provider) cacheKB() int {
	size := p.Info.Cache.L3
	if size <= 0 {
		size = p.Info.Cache.L2
	}
	if size <= 0 {
		return 0
	}
	return size / 1024
}

func (p *Provider) flags() string {
	set := p.Info.FeatureSet()
	flags := make([]string, len(set))
	for i, f := range set {
		flags[i] = strings.ToLower(f)
	}
	return strings.Join(flags, " ")
}

// Show implements cpuinfo.UnitProvider.
func (p *Provider) Show(w io.Writer, unit int) error {
	vendor := p.Info.VendorString
	if vendor == "" {
		vendor = "unknown"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "processor\t: %d\n", unit)
	fmt.Fprintf(&b, "vendor_id\t: %s\n", vendor)
	fmt.Fprintf(&b, "cpu family\t: %d\n", p.Info.Family)
	fmt.Fprintf(&b, "model\t\t: %d\n", p.Info.Model)
	fmt.Fprintf(&b, "model name\t: %s\n", strings.TrimSpace(p.Info.BrandName))
	fmt.Fprintf(&b, "cpu MHz\t\t: %.3f\n", p.mhz(unit))
	if kb := p.cacheKB(); kb > 0 {
		fmt.Fprintf(&b, "cache size\t: %d KB\n", kb)
	}
	fmt.Fprintf(&b, "physical id\t: %d\n", p.topology(unit, "physical_package_id"))
	fmt.Fprintf(&b, "siblings\t: %d\n", p.Info.LogicalCores)
	fmt.Fprintf(&b, "core id\t\t: %d\n", p.topology(unit, "core_id"))
	fmt.Fprintf(&b, "cpu cores\t: %d\n", p.Info.PhysicalCores)
	fmt.Fprintf(&b, "flags\t\t: %s\n", p.flags())
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}
