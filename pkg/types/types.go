package types

import (
	"errors"
	"strconv"
)

// Identity names the process a report session is opened on behalf of.
type Identity int

// String returns the decimal pid.
func (id Identity) String() string {
	return strconv.Itoa(int(id))
}

// Report names one of the read-only endpoints.
type Report string

const (
	// CPUInfo lists the logical CPUs visible to the requesting process.
	CPUInfo Report = "cpuinfo"
	// MemInfo renders the memory accounting snapshot.
	MemInfo Report = "meminfo"
)

// Reports lists the endpoints in registration order.
var Reports = []Report{CPUInfo, MemInfo}

// ErrContextGone means the requesting process could not be resolved.
// Resolvers return it so reports fail closed instead of erroring.
var ErrContextGone = errors.New("requesting process no longer exists")
