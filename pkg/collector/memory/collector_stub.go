//go:build !linux
// +build !linux

package memory

import (
	"errors"

	"github.com/srodi/procscope/pkg/meminfo"
)

var errUnsupported = errors.New("memory collector requires linux")

// NewHostSource fails on unsupported platforms.
func NewHostSource(procRoot string) (*HostSource, error) {
	return nil, errUnsupported
}

// PageShift returns the default page shift.
func PageShift() uint {
	return meminfo.DefaultPageShift
}
