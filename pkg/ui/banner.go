package ui

import (
	"fmt"
	"strings"
	"time"
)

const (
	reset       = "\033[0m"
	bold        = "\033[1m"
	dim         = "\033[2m"
	outlineGray = "\033[38;5;244m"
	beeYellow   = "\033[38;5;226m"
	honeyOrange = "\033[38;5;214m"
	mint        = "\033[38;5;121m"
	seafoam     = "\033[38;5;49m"
	cobalt      = "\033[38;5;33m"
	deepIndigo  = "\033[38;5;61m"
	fuchsia     = "\033[38;5;177m"
	scopeFlame  = "\033[38;5;208m"
)

var wordmarkGradient = []string{scopeFlame, honeyOrange, beeYellow, mint, seafoam, cobalt, deepIndigo, fuchsia}

// Banner renders the colored procscope wordmark and tagline.
func Banner() string {
	var b strings.Builder

	b.WriteString(bold)
	for i, r := range "procscope" {
		b.WriteString(wordmarkGradient[i%len(wordmarkGradient)])
		b.WriteRune(r)
	}
	b.WriteString(reset)
	b.WriteString("  " + outlineGray + "•" + reset + "  scoped cpuinfo and meminfo\n")

	return b.String()
}

// Status describes one redraw of the watch view.
type Status struct {
	Report   string
	PID      int
	Comm     string
	Scope    string
	Updated  time.Time
	Interval time.Duration
}

// Header renders the banner and the status lines above a report.
func Header(s Status) string {
	var b strings.Builder
	b.WriteString(Banner())
	b.WriteString("\n")

	fmt.Fprintf(&b, "%s%s%s for %s (pid %d)", bold, s.Report, reset, s.Comm, s.PID)
	if s.Scope != "" {
		fmt.Fprintf(&b, " [%s]", s.Scope)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%sUpdated: %s | Interval: %v | Ctrl+C to exit%s\n",
		dim, s.Updated.Format(time.RFC3339), s.Interval, reset)
	b.WriteString(outlineGray + strings.Repeat("─", 40) + reset + "\n")

	return b.String()
}
