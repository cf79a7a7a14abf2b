// Package config loads the procscope configuration file.
//
// The file is selected by the --config flag or the PROCSCOPE_CONFIG
// environment variable. Without either, the defaults are used. Values
// in the file replace the defaults field by field.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/srodi/procscope/pkg/meminfo"
)

// EnvVar names the environment variable holding the config path.
const EnvVar = "PROCSCOPE_CONFIG"

// Config is the complete procscope configuration.
type Config struct {
	Paths   PathsConfig   `yaml:"paths"`
	CPUInfo CPUInfoConfig `yaml:"cpuinfo"`
	MemInfo MemInfoConfig `yaml:"meminfo"`
	Mount   MountConfig   `yaml:"mount"`
	Log     LogConfig     `yaml:"log"`
	Watch   WatchConfig   `yaml:"watch"`
}

// PathsConfig locates the kernel interfaces counters are read from.
type PathsConfig struct {
	Proc   string `yaml:"proc"`
	Sys    string `yaml:"sys"`
	Cgroup string `yaml:"cgroup"`
}

// CPUInfoConfig configures the cpuinfo report.
type CPUInfoConfig struct {
	// Scoped filters CPUs by the requesting process's permitted set.
	Scoped bool `yaml:"scoped"`

	// Units overrides the possible CPU count. Zero detects it.
	Units int `yaml:"units"`

	// MaskLimit bounds the CPU masks held by concurrent requests.
	MaskLimit int64 `yaml:"mask_limit"`
}

// MemInfoConfig configures the meminfo report.
type MemInfoConfig struct {
	// GroupScoped reports a process's cgroup instead of the machine
	// when the process is not in the root group.
	GroupScoped bool `yaml:"group_scoped"`

	// Capabilities lists the optional blocks to render. Empty detects
	// them from the host's meminfo.
	Capabilities []string `yaml:"capabilities"`

	// PageShift overrides log2 of the page size. Zero detects it.
	PageShift uint `yaml:"page_shift"`
}

// MountConfig configures the FUSE endpoint.
type MountConfig struct {
	// Path is the mountpoint. Empty disables the endpoint.
	Path string `yaml:"path"`

	// AllowOther lets processes of other users read the reports.
	AllowOther bool `yaml:"allow_other"`

	// FSName is shown as the filesystem source in the mount table.
	FSName string `yaml:"fs_name"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is text or json.
	Format string `yaml:"format"`
}

// WatchConfig configures the terminal watch mode.
type WatchConfig struct {
	// Interval between redraws, as a Go duration.
	Interval string `yaml:"interval"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Proc:   "/proc",
			Sys:    "/sys",
			Cgroup: "/sys/fs/cgroup",
		},
		CPUInfo: CPUInfoConfig{
			Scoped:    true,
			MaskLimit: 256,
		},
		MemInfo: MemInfoConfig{
			GroupScoped: true,
		},
		Mount: MountConfig{
			FSName: "procscope",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Watch: WatchConfig{
			Interval: "2s",
		},
	}
}

// Load reads the file at path, or at $PROCSCOPE_CONFIG when path is
// empty, over the defaults and validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}

	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.expandVariables()

	if err := cfg.Validate(); err != nil {
		return nil, invalid(path, err)
	}
	return cfg, nil
}

// invalid wraps a validation error, naming the file when there is one.
func invalid(path string, err error) error {
	if path == "" {
		return fmt.Errorf("invalid config: %w", err)
	}
	return fmt.Errorf("invalid config %s: %w", path, err)
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} from the environment.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

func (c *Config) expandVariables() {
	c.Paths.Proc = expandVars(c.Paths.Proc)
	c.Paths.Sys = expandVars(c.Paths.Sys)
	c.Paths.Cgroup = expandVars(c.Paths.Cgroup)
	c.Mount.Path = expandVars(c.Mount.Path)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Paths.Proc == "" {
		errs = append(errs, errors.New("paths.proc is required"))
	}
	if c.Paths.Sys == "" {
		errs = append(errs, errors.New("paths.sys is required"))
	}
	if c.CPUInfo.Units < 0 {
		errs = append(errs, fmt.Errorf("cpuinfo.units must not be negative, got %d", c.CPUInfo.Units))
	}
	if c.CPUInfo.MaskLimit <= 0 {
		errs = append(errs, fmt.Errorf("cpuinfo.mask_limit must be positive, got %d", c.CPUInfo.MaskLimit))
	}
	if c.MemInfo.GroupScoped && c.Paths.Cgroup == "" {
		errs = append(errs, errors.New("paths.cgroup is required when meminfo.group_scoped is set"))
	}
	if _, err := meminfo.ParseCapabilities(c.MemInfo.Capabilities); err != nil {
		errs = append(errs, err)
	}
	if s := c.MemInfo.PageShift; s != 0 && (s < 10 || s > 30) {
		errs = append(errs, fmt.Errorf("meminfo.page_shift must be between 10 and 30, got %d", s))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if d, err := time.ParseDuration(c.Watch.Interval); err != nil || d <= 0 {
		errs = append(errs, fmt.Errorf("watch.interval must be a positive duration, got %q", c.Watch.Interval))
	}

	return errors.Join(errs...)
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(c.Log.Level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// WatchInterval returns the redraw interval. Validate guarantees it parses.
func (c *Config) WatchInterval() time.Duration {
	d, err := time.ParseDuration(c.Watch.Interval)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// Capabilities returns the configured meminfo blocks. ok is false when
// none are listed and they should be detected.
func (c *Config) Capabilities() (caps meminfo.Capabilities, ok bool, err error) {
	if len(c.MemInfo.Capabilities) == 0 {
		return 0, false, nil
	}
	caps, err = meminfo.ParseCapabilities(c.MemInfo.Capabilities)
	return caps, err == nil, err
}

// NewLogger builds the slog logger described by the config.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := c.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
