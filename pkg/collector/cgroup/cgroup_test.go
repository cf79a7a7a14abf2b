package cgroup

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/srodi/procscope/pkg/types"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestPath(t *testing.T) {
	proc := t.TempDir()
	writeFile(t, filepath.Join(proc, "10", "cgroup"), "0::/kubepods/pod1/\n")
	writeFile(t, filepath.Join(proc, "11", "cgroup"), "12:cpuset:/legacy\n")
	writeFile(t, filepath.Join(proc, "12", "cgroup"), "0::\n")
	writeFile(t, filepath.Join(proc, "13", "cgroup"), "1:name=systemd:/x\n0::/system.slice/db.service\n")

	rel, err := Path(proc, 10)
	if err != nil || rel != "/kubepods/pod1" {
		t.Fatalf("expected /kubepods/pod1, got %q err=%v", rel, err)
	}
	if rel, err := Path(proc, 12); err != nil || rel != "/" {
		t.Fatalf("expected root cgroup, got %q err=%v", rel, err)
	}
	if rel, err := Path(proc, 13); err != nil || rel != "/system.slice/db.service" {
		t.Fatalf("expected unified entry among legacy ones, got %q err=%v", rel, err)
	}
	if _, err := Path(proc, 11); err == nil {
		t.Fatalf("expected error without a unified hierarchy")
	}
	if _, err := Path(proc, 99); !errors.Is(err, types.ErrContextGone) {
		t.Fatalf("expected ErrContextGone for a missing pid, got %v", err)
	}
}

func TestPathReadFailureIsNotContextGone(t *testing.T) {
	t.Cleanup(func() { readFile = os.ReadFile })
	readFile = func(string) ([]byte, error) { return nil, errors.New("permission denied") }

	_, err := Path("/proc", 1)
	if err == nil || errors.Is(err, types.ErrContextGone) {
		t.Fatalf("expected a plain read error, got %v", err)
	}
}
