//go:build linux
// +build linux

package cpu

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cilium/ebpf"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sys/unix"

	"github.com/srodi/procscope/pkg/collector/cgroup"
	"github.com/srodi/procscope/pkg/cpuinfo"
	"github.com/srodi/procscope/pkg/types"
)

// DefaultMaskLimit caps the CPU masks held by concurrent report requests.
const DefaultMaskLimit = 256

// PossibleUnits returns the number of CPUs the system may ever bring online.
func PossibleUnits() (int, error) {
	n, err := ebpf.PossibleCPU()
	if err != nil {
		return 0, fmt.Errorf("reading possible cpus: %w", err)
	}
	return n, nil
}

// MaskPool hands out CPU masks, at most limit at a time. Callers that
// cannot get one fail instead of waiting.
type MaskPool struct {
	sem   *semaphore.Weighted
	sets  sync.Pool
	inUse atomic.Int64
}

// NewMaskPool returns a pool of at most limit outstanding masks.
func NewMaskPool(limit int64) *MaskPool {
	if limit <= 0 {
		limit = DefaultMaskLimit
	}
	return &MaskPool{
		sem:  semaphore.NewWeighted(limit),
		sets: sync.Pool{New: func() any { return new(unix.CPUSet) }},
	}
}

// Get acquires an empty mask or returns cpuinfo.ErrScopeExhausted.
func (p *MaskPool) Get() (*Mask, error) {
	if !p.sem.TryAcquire(1) {
		return nil, cpuinfo.ErrScopeExhausted
	}
	p.inUse.Add(1)
	set := p.sets.Get().(*unix.CPUSet)
	set.Zero()
	return &Mask{pool: p, set: set}, nil
}

// InUse returns the number of masks not yet released.
func (p *MaskPool) InUse() int64 {
	return p.inUse.Load()
}

// Mask is a CPU set borrowed from a MaskPool.
type Mask struct {
	pool *MaskPool
	set  *unix.CPUSet
}

// Contains reports whether unit is in the mask.
func (m *Mask) Contains(unit int) bool {
	return m.set != nil && m.set.IsSet(unit)
}

// Release returns the mask to its pool. Calling it again is a no-op.
func (m *Mask) Release() {
	if m.set == nil {
		return
	}
	m.pool.sets.Put(m.set)
	m.set = nil
	m.pool.inUse.Add(-1)
	m.pool.sem.Release(1)
}

// schedGetaffinity allows tests to stub the affinity syscall.
var schedGetaffinity = unix.SchedGetaffinity

// AffinityResolver scopes a process to its scheduler affinity mask.
type AffinityResolver struct {
	Pool *MaskPool
}

// Resolve implements cpuinfo.ScopeResolver.
func (r *AffinityResolver) Resolve(id types.Identity) (cpuinfo.Scope, error) {
	mask, err := r.Pool.Get()
	if err != nil {
		return nil, err
	}
	if err := affinity(id, mask); err != nil {
		mask.Release()
		return nil, err
	}
	return mask, nil
}

func affinity(id types.Identity, mask *Mask) error {
	if err := schedGetaffinity(int(id), mask.set); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return fmt.Errorf("pid %d: %w", id, types.ErrContextGone)
		}
		return fmt.Errorf("sched_getaffinity(%d): %w", id, err)
	}
	return nil
}

// CpusetResolver scopes a process to the effective cpuset of its
// cgroup, falling back to its affinity mask when no cpuset is found.
type CpusetResolver struct {
	ProcRoot   string
	CgroupRoot string
	Pool       *MaskPool
}

// Resolve implements cpuinfo.ScopeResolver.
func (r *CpusetResolver) Resolve(id types.Identity) (cpuinfo.Scope, error) {
	rel, err := cgroup.Path(r.ProcRoot, id)
	if err != nil {
		return nil, err
	}

	mask, err := r.Pool.Get()
	if err != nil {
		return nil, err
	}

	list, ok := effectiveCPUs(r.CgroupRoot, rel)
	if !ok {
		if err := affinity(id, mask); err != nil {
			mask.Release()
			return nil, err
		}
		return mask, nil
	}

	cpus, err := parseCPUList(list)
	if err != nil {
		mask.Release()
		return nil, fmt.Errorf("cgroup %s: %w", rel, err)
	}
	for _, cpu := range cpus {
		mask.set.Set(cpu)
	}
	return mask, nil
}

// NewResolver picks the cpuset resolver when the cpuset controller is
// delegated and the affinity resolver otherwise.
func NewResolver(procRoot, cgroupRoot string, pool *MaskPool) cpuinfo.ScopeResolver {
	if CpusetsEnabled(cgroupRoot) {
		return &CpusetResolver{ProcRoot: procRoot, CgroupRoot: cgroupRoot, Pool: pool}
	}
	return &AffinityResolver{Pool: pool}
}
