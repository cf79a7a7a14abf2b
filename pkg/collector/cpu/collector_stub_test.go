//go:build !linux

package cpu

import (
	"errors"
	"testing"
)

func TestStubCollectorBehavior(t *testing.T) {
	if n, err := PossibleUnits(); !errors.Is(err, errUnsupported) || n != 0 {
		t.Fatalf("expected errUnsupported, got n=%d err=%v", n, err)
	}

	pool := NewMaskPool(1)
	if pool.InUse() != 0 {
		t.Fatalf("stub pool should be empty")
	}

	scope, err := NewResolver("/proc", "/sys/fs/cgroup", pool).Resolve(1)
	if !errors.Is(err, errUnsupported) || scope != nil {
		t.Fatalf("resolve should fail with errUnsupported, got scope=%v err=%v", scope, err)
	}
}
