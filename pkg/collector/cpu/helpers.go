package cpu

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/srodi/procscope/pkg/types"
)

// procReadFile allows tests to stub reads under /proc and /sys.
var procReadFile = os.ReadFile

// ProcessName returns the comm of pid, or "pid-N" when it cannot be read.
func ProcessName(procRoot string, id types.Identity) string {
	if id == 0 {
		return "idle"
	}
	data, err := procReadFile(filepath.Join(procRoot, id.String(), "comm"))
	if err != nil {
		return fmt.Sprintf("pid-%d", id)
	}
	comm := strings.TrimSpace(string(data))
	if comm == "" {
		return fmt.Sprintf("pid-%d", id)
	}
	return comm
}

// effectiveCPUs walks from rel towards the root and returns the first
// non-empty cpuset.cpus.effective.
func effectiveCPUs(cgroupRoot, rel string) (string, bool) {
	for dir := path.Clean("/" + rel); ; dir = path.Dir(dir) {
		data, err := procReadFile(filepath.Join(cgroupRoot, dir, "cpuset.cpus.effective"))
		if err == nil {
			if list := strings.TrimSpace(string(data)); list != "" {
				return list, true
			}
		}
		if dir == "/" {
			return "", false
		}
	}
}

// parseCPUList parses the kernel list format ("0-3,8,10-11").
func parseCPUList(list string) ([]int, error) {
	list = strings.TrimSpace(list)
	if list == "" {
		return nil, nil
	}

	var cpus []int
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		lo, hi, isRange := strings.Cut(part, "-")
		first, err := strconv.Atoi(lo)
		if err != nil || first < 0 {
			return nil, fmt.Errorf("invalid cpu list entry %q", part)
		}
		last := first
		if isRange {
			last, err = strconv.Atoi(hi)
			if err != nil || last < first {
				return nil, fmt.Errorf("invalid cpu range %q", part)
			}
		}
		for cpu := first; cpu <= last; cpu++ {
			cpus = append(cpus, cpu)
		}
	}
	return cpus, nil
}

// CpusetsEnabled reports whether the cpuset controller is delegated
// below the cgroup root, i.e. whether per-group CPU sets can differ
// from the machine's.
func CpusetsEnabled(cgroupRoot string) bool {
	data, err := procReadFile(filepath.Join(cgroupRoot, "cgroup.subtree_control"))
	if err != nil {
		return false
	}
	for _, controller := range strings.Fields(string(data)) {
		if controller == "cpuset" {
			return true
		}
	}
	return false
}

func readSysString(file string) string {
	data, err := procReadFile(file)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func readSysInt(file string) (int64, bool) {
	v, err := strconv.ParseInt(readSysString(file), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
