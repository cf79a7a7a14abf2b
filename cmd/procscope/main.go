//go:build linux

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	flag "github.com/spf13/pflag"

	"github.com/srodi/procscope/pkg/collector/cpu"
	"github.com/srodi/procscope/pkg/collector/memory"
	"github.com/srodi/procscope/pkg/config"
	"github.com/srodi/procscope/pkg/cpuinfo"
	"github.com/srodi/procscope/pkg/endpoint"
	"github.com/srodi/procscope/pkg/meminfo"
	"github.com/srodi/procscope/pkg/report"
	"github.com/srodi/procscope/pkg/types"
	"github.com/srodi/procscope/pkg/ui"
)

type runConfig struct {
	reports []types.Report
	pid     int
	watch   bool
	summary bool
}

func parseFlags(args []string) (runConfig, *config.Config, error) {
	fs := flag.NewFlagSet("procscope", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to the config file (default $"+config.EnvVar+")")
	reportName := fs.StringP("report", "r", "", "report to print: cpuinfo or meminfo (default both)")
	pid := fs.IntP("pid", "p", 0, "process the report is generated for (default this process)")
	watch := fs.BoolP("watch", "w", false, "redraw the report every interval")
	interval := fs.Duration("interval", 0, "watch redraw interval (overrides watch.interval)")
	summary := fs.Bool("summary", false, "print a one-screen summary instead of the raw reports")
	mount := fs.String("mount", "", "serve the reports on a FUSE mount at this directory")
	allowOther := fs.Bool("allow-other", false, "let other users read the mounted reports")
	scoped := fs.Bool("scoped", true, "filter cpuinfo by the process's permitted CPUs")
	caps := fs.StringSlice("capabilities", nil, "meminfo blocks to render (default detected)")
	logLevel := fs.String("log-level", "", "debug, info, warn or error (overrides log.level)")
	if err := fs.Parse(args); err != nil {
		return runConfig{}, nil, err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return runConfig{}, nil, err
	}
	if fs.Changed("interval") {
		cfg.Watch.Interval = interval.String()
	}
	if fs.Changed("mount") {
		cfg.Mount.Path = *mount
	}
	if fs.Changed("allow-other") {
		cfg.Mount.AllowOther = *allowOther
	}
	if fs.Changed("scoped") {
		cfg.CPUInfo.Scoped = *scoped
	}
	if fs.Changed("capabilities") {
		cfg.MemInfo.Capabilities = *caps
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		return runConfig{}, nil, err
	}

	run := runConfig{
		reports: types.Reports,
		pid:     *pid,
		watch:   *watch,
		summary: *summary,
	}
	if *reportName != "" {
		run.reports = []types.Report{types.Report(strings.ToLower(*reportName))}
	}
	if run.pid <= 0 {
		run.pid = os.Getpid()
	}
	return run, cfg, nil
}

func main() {
	run, cfg, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "procscope: %v\n", err)
		os.Exit(2)
	}

	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reporter, err := buildReporter(cfg, logger)
	if err != nil {
		logger.Error("initializing reports", "error", err)
		os.Exit(1)
	}

	switch {
	case cfg.Mount.Path != "":
		err = serve(ctx, cfg, reporter, logger)
	case run.summary:
		err = printSummary(os.Stdout, reporter, run, cfg)
	case run.watch:
		err = watch(ctx, reporter, run, cfg, logger)
	default:
		err = printReports(os.Stdout, reporter, run)
	}
	if err != nil {
		logger.Error("procscope failed", "error", err)
		os.Exit(1)
	}
}

func buildReporter(cfg *config.Config, logger *slog.Logger) (*report.Reporter, error) {
	units := cfg.CPUInfo.Units
	if units == 0 {
		n, err := cpu.PossibleUnits()
		if err != nil {
			return nil, err
		}
		units = n
	}
	pool := cpu.NewMaskPool(cfg.CPUInfo.MaskLimit)

	host, err := memory.NewHostSource(cfg.Paths.Proc)
	if err != nil {
		return nil, err
	}

	caps, listed, err := cfg.Capabilities()
	if err != nil {
		return nil, err
	}
	if !listed {
		caps = memory.DetectCapabilities(cfg.Paths.Proc)
	}
	shift := cfg.MemInfo.PageShift
	if shift == 0 {
		shift = memory.PageShift()
	}

	aggregator := &meminfo.Aggregator{System: host, Caps: caps, PageShift: shift}
	if cfg.MemInfo.GroupScoped {
		aggregator.Groups = &memory.GroupResolver{ProcRoot: cfg.Paths.Proc, CgroupRoot: cfg.Paths.Cgroup, Host: host}
	}

	logger.Debug("reports configured",
		"units", units,
		"scoped", cfg.CPUInfo.Scoped,
		"cpusets", cpu.CpusetsEnabled(cfg.Paths.Cgroup),
		"capabilities", caps.String(),
		"page_shift", shift,
	)

	return &report.Reporter{
		CPU: &cpuinfo.Enumerator{
			Units:    units,
			Scoped:   cfg.CPUInfo.Scoped,
			Resolver: cpu.NewResolver(cfg.Paths.Proc, cfg.Paths.Cgroup, pool),
			Provider: cpu.NewProvider(cfg.Paths.Sys),
		},
		Memory: aggregator,
	}, nil
}

func serve(ctx context.Context, cfg *config.Config, reporter *report.Reporter, logger *slog.Logger) error {
	server, err := endpoint.Mount(endpoint.Options{
		Mountpoint: cfg.Mount.Path,
		Reports:    reporter,
		AllowOther: cfg.Mount.AllowOther,
		FSName:     cfg.Mount.FSName,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("unmounting", "mountpoint", cfg.Mount.Path)
	return server.Unmount()
}

func printReports(w io.Writer, reporter *report.Reporter, run runConfig) error {
	for _, name := range run.reports {
		if _, err := reporter.WriteTo(w, name, types.Identity(run.pid)); err != nil {
			return err
		}
	}
	return nil
}

func printSummary(w io.Writer, reporter *report.Reporter, run runConfig, cfg *config.Config) error {
	id := types.Identity(run.pid)
	sum, err := reporter.Summarize(id)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, formatSummary(sum, cpu.ProcessName(cfg.Paths.Proc, id)))
	return err
}

func formatSummary(sum report.Summary, comm string) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s (pid %d)\n", comm, sum.ID)

	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "CPUs\t%d of %d visible\n", sum.VisibleCPUs, sum.TotalCPUs)
	fmt.Fprintf(tw, "Memory (%s)\t%s available of %s (%.1f%% used)\n",
		sum.Scope, humanize.IBytes(sum.AvailableBytes), humanize.IBytes(sum.TotalBytes), 100*sum.UsedRatio)
	if sum.SwapTotalBytes > 0 {
		fmt.Fprintf(tw, "Swap\t%s used of %s\n", humanize.IBytes(sum.SwapUsedBytes), humanize.IBytes(sum.SwapTotalBytes))
	}
	fmt.Fprintf(tw, "Pressure\t%s\n", sum.Pressure)
	tw.Flush()

	return buf.String()
}

func watch(ctx context.Context, reporter *report.Reporter, run runConfig, cfg *config.Config, logger *slog.Logger) error {
	scr := newScreen(os.Stdout, int(os.Stdout.Fd()), int(os.Stdin.Fd()), logger)
	defer scr.close()

	interval := cfg.WatchInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := redraw(scr, reporter, run, cfg, interval); err != nil {
			logger.Warn("redraw failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func redraw(scr *screen, reporter *report.Reporter, run runConfig, cfg *config.Config, interval time.Duration) error {
	id := types.Identity(run.pid)
	scope := ""
	if snap, ok := reporter.Memory.Snapshot(id); ok {
		scope = snap.Scope.String()
	}

	var buf bytes.Buffer
	buf.WriteString(ui.Header(ui.Status{
		Report:   joinReports(run.reports),
		PID:      run.pid,
		Comm:     cpu.ProcessName(cfg.Paths.Proc, id),
		Scope:    scope,
		Updated:  time.Now(),
		Interval: interval,
	}))
	if err := printReports(&buf, reporter, run); err != nil {
		return err
	}

	return scr.draw(buf.String())
}

func joinReports(names []types.Report) string {
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = string(name)
	}
	return strings.Join(parts, "+")
}

