//go:build !linux

package memory

import (
	"errors"
	"testing"

	"github.com/srodi/procscope/pkg/meminfo"
)

func TestStubCollectorBehavior(t *testing.T) {
	if src, err := NewHostSource("/proc"); !errors.Is(err, errUnsupported) || src != nil {
		t.Fatalf("expected errUnsupported, got src=%v err=%v", src, err)
	}
	if shift := PageShift(); shift != meminfo.DefaultPageShift {
		t.Fatalf("expected default page shift, got %d", shift)
	}
}
