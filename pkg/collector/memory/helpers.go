package memory

import (
	"bufio"
	"bytes"
	"os"
	"strconv"
	"strings"
)

// procReadFile allows tests to stub reads under /proc and the cgroup tree.
var procReadFile = os.ReadFile

// readKeyValues parses "key value [unit]" or "key: value [unit]" lines,
// the layout shared by meminfo, vmstat and memory.stat. Unparsable
// lines are skipped and a missing file yields an empty map.
func readKeyValues(file string) map[string]uint64 {
	values := make(map[string]uint64)
	data, err := procReadFile(file)
	if err != nil {
		return values
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		v, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			continue
		}
		values[strings.TrimSuffix(fields[0], ":")] = v
	}
	return values
}

// sumZoneField adds up a per-zone watermark ("low", "high") across all
// zones in a zoneinfo file.
func sumZoneField(file, field string) uint64 {
	data, err := procReadFile(file)
	if err != nil {
		return 0
	}

	var total uint64
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 || fields[0] != field {
			continue
		}
		if v, err := strconv.ParseUint(fields[1], 10, 64); err == nil {
			total += v
		}
	}
	return total
}

// readLimit parses a cgroup limit file. "max" and missing files report
// ok=false.
func readLimit(file string) (uint64, bool) {
	data, err := procReadFile(file)
	if err != nil {
		return 0, false
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
