package ui

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

// TestBannerPreview prints the banner so `go test ./pkg/ui -run TestBannerPreview` shows it.
func TestBannerPreview(t *testing.T) {
	fmt.Println(Header(Status{Report: "meminfo", PID: 1, Comm: "init", Updated: time.Now(), Interval: time.Second}))
}

func TestBannerIncludesWordmark(t *testing.T) {
	banner := Banner()
	plain := stripColors(banner)
	if !strings.HasPrefix(plain, "procscope") {
		t.Fatalf("banner missing procscope wordmark: %q", plain)
	}
	if !strings.Contains(banner, "scoped cpuinfo and meminfo") {
		t.Fatalf("banner missing tagline")
	}
}

func TestBannerUsesGradientColors(t *testing.T) {
	banner := Banner()
	for _, color := range append([]string{bold}, wordmarkGradient...) {
		if !strings.Contains(banner, color) {
			t.Fatalf("banner missing color code %q", color)
		}
	}
}

func TestHeader(t *testing.T) {
	updated := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	header := stripColors(Header(Status{
		Report:   "cpuinfo",
		PID:      42,
		Comm:     "worker",
		Scope:    "group",
		Updated:  updated,
		Interval: 2 * time.Second,
	}))

	if !strings.Contains(header, "cpuinfo for worker (pid 42) [group]\n") {
		t.Fatalf("header missing status line: %q", header)
	}
	if !strings.Contains(header, "Updated: 2025-01-02T03:04:05Z | Interval: 2s") {
		t.Fatalf("header missing update line: %q", header)
	}

	noScope := stripColors(Header(Status{Report: "cpuinfo", PID: 1, Comm: "init", Updated: updated}))
	if strings.Contains(noScope, "[") {
		t.Fatalf("scope should be omitted when empty: %q", noScope)
	}
}

func stripColors(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\033' {
			for i < len(s) && s[i] != 'm' {
				i++
			}
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
