//go:build !linux
// +build !linux

package cpu

import (
	"errors"

	"github.com/srodi/procscope/pkg/cpuinfo"
	"github.com/srodi/procscope/pkg/types"
)

var errUnsupported = errors.New("cpu collector requires linux")

// DefaultMaskLimit caps the CPU masks held by concurrent report requests.
const DefaultMaskLimit = 256

// PossibleUnits always fails on unsupported platforms.
func PossibleUnits() (int, error) {
	return 0, errUnsupported
}

// MaskPool is a placeholder on non-Linux platforms.
type MaskPool struct{}

// NewMaskPool returns an empty pool.
func NewMaskPool(limit int64) *MaskPool {
	return &MaskPool{}
}

// InUse is always zero.
func (p *MaskPool) InUse() int64 {
	return 0
}

type unsupportedResolver struct{}

func (unsupportedResolver) Resolve(types.Identity) (cpuinfo.Scope, error) {
	return nil, errUnsupported
}

// NewResolver returns a resolver that hides every CPU.
func NewResolver(procRoot, cgroupRoot string, pool *MaskPool) cpuinfo.ScopeResolver {
	return unsupportedResolver{}
}
