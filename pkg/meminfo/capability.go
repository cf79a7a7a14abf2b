package meminfo

import (
	"fmt"
	"sort"
	"strings"
)

// Capability marks an optional accounting subsystem whose lines appear
// in the report only when it is present.
type Capability uint32

const (
	CapHighMem Capability = 1 << iota
	CapNoMMU
	CapZswap
	CapShadowCallStack
	CapMemoryFailure
	CapTransparentHugePage
	CapCMA
	CapUnaccepted
	CapHugeTLB
	CapDirectMap
)

var capabilityNames = map[Capability]string{
	CapHighMem:             "highmem",
	CapNoMMU:               "nommu",
	CapZswap:               "zswap",
	CapShadowCallStack:     "shadow-call-stack",
	CapMemoryFailure:       "memory-failure",
	CapTransparentHugePage: "transparent-hugepage",
	CapCMA:                 "cma",
	CapUnaccepted:          "unaccepted-memory",
	CapHugeTLB:             "hugetlb",
	CapDirectMap:           "directmap",
}

func (c Capability) String() string {
	if name, ok := capabilityNames[c]; ok {
		return name
	}
	return fmt.Sprintf("capability(%#x)", uint32(c))
}

// Capabilities is the static set of subsystems a report covers. It is
// resolved once at configuration time.
type Capabilities uint32

// NewCapabilities builds a set from individual capabilities.
func NewCapabilities(caps ...Capability) Capabilities {
	var set Capabilities
	for _, c := range caps {
		set |= Capabilities(c)
	}
	return set
}

// Has reports whether c is in the set.
func (s Capabilities) Has(c Capability) bool {
	return s&Capabilities(c) != 0
}

// With returns the set plus c.
func (s Capabilities) With(c Capability) Capabilities {
	return s | Capabilities(c)
}

// Names lists the set's capability names, sorted.
func (s Capabilities) Names() []string {
	var names []string
	for c, name := range capabilityNames {
		if s.Has(c) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (s Capabilities) String() string {
	return strings.Join(s.Names(), ",")
}

// ParseCapabilities parses capability names as written in configuration.
func ParseCapabilities(names []string) (Capabilities, error) {
	var set Capabilities
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		found := false
		for c, known := range capabilityNames {
			if known == name {
				set = set.With(c)
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown meminfo capability %q", raw)
		}
	}
	return set, nil
}
