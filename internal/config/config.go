// Package config loads the optional ferry configuration file and resolves
// it into the Settings the engine consumes.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/bamsammich/ferry/internal/filter"
	"github.com/bamsammich/ferry/internal/job"
)

// Config represents the optional ferry configuration file. Pointer fields
// are nil when unset.
type Config struct {
	Defaults   DefaultsConfig   `toml:"defaults"`
	Statistics StatisticsConfig `toml:"statistics"`
	Operation  OperationConfig  `toml:"operation"`
	Theme      ThemeConfig      `toml:"theme"`
}

// DefaultsConfig holds persistent flag defaults.
type DefaultsConfig struct {
	ChunkSize      *string `toml:"chunk_size"`
	BWLimit        *string `toml:"bwlimit"`
	Verify         *bool   `toml:"verify"`
	FollowSymlinks *bool   `toml:"follow_symlinks"`
	SkipHidden     *bool   `toml:"skip_hidden"`
	TUI            *bool   `toml:"tui"`
}

// StatisticsConfig tunes the statistics job.
type StatisticsConfig struct {
	SizeChangeInterval *Duration `toml:"size_change_interval"`
	DataNotifyInterval *Duration `toml:"data_notify_interval"`
	ProgressUnit       *int64    `toml:"progress_unit"`
	PseudoFiles        []string  `toml:"pseudo_files"`
	PseudoDevices      []string  `toml:"pseudo_devices"`
}

// OperationConfig tunes the operation worker.
type OperationConfig struct {
	ProgressInterval *Duration `toml:"progress_interval"`
	// OnConflict and OnError preset answers ("skip", "overwrite",
	// "coexist", ...) so matching prompts are never raised.
	OnConflict *string `toml:"on_conflict"`
	OnError    *string `toml:"on_error"`
}

// ThemeConfig holds optional TUI color overrides.
type ThemeConfig struct {
	Green  *string `toml:"green"`
	Blue   *string `toml:"blue"`
	Yellow *string `toml:"yellow"`
	Red    *string `toml:"red"`
	Teal   *string `toml:"teal"`
	Mauve  *string `toml:"mauve"`
	Muted  *string `toml:"muted"`
	Dim    *string `toml:"dim"`
	Bright *string `toml:"bright"`
}

// Duration decodes TOML strings such as "250ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	if v <= 0 {
		return fmt.Errorf("duration must be positive: %q", text)
	}
	d.Duration = v
	return nil
}

// Path returns the resolved path to the config file.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "ferry", "config.toml")
}

// Load reads the config file from the XDG path. A missing file yields a
// zero Config and no error.
func Load() (Config, error) {
	path := Path()
	if path == "" {
		return Config{}, nil
	}
	cfg, err := LoadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Config{}, nil
	}
	return cfg, err
}

// LoadFile reads the config file at path. Unknown keys are rejected.
func LoadFile(path string) (Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}
	return cfg, nil
}

// Built-in pseudo entries; configured lists extend them.
var (
	builtinPseudoFiles   = []string{"/proc/kcore", "/dev/core"}
	builtinPseudoDevices = []string{"proc", "avfsd"}
)

// Settings is the resolved, defaulted configuration the engine consumes.
type Settings struct {
	PseudoFiles        []string
	PseudoDevices      []string
	ChunkSize          int
	BWLimit            int64 // bytes per second, 0 = unlimited
	ProgressUnit       int64
	SizeChangeInterval time.Duration
	DataNotifyInterval time.Duration
	ProgressInterval   time.Duration
	OnConflict         job.Decision // NoDecision = ask
	OnError            job.Decision
	Verify             bool
	FollowSymlinks     bool
	SkipHidden         bool
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		PseudoFiles:        slices.Clone(builtinPseudoFiles),
		PseudoDevices:      slices.Clone(builtinPseudoDevices),
		ChunkSize:          1 << 20,
		ProgressUnit:       int64(os.Getpagesize()),
		SizeChangeInterval: 200 * time.Millisecond,
		DataNotifyInterval: 500 * time.Millisecond,
		ProgressInterval:   200 * time.Millisecond,
		FollowSymlinks:     true,
	}
}

// Settings overlays the config file on DefaultSettings.
func (c Config) Settings() (Settings, error) {
	s := DefaultSettings()

	d := c.Defaults
	if d.ChunkSize != nil {
		n, err := filter.ParseSize(*d.ChunkSize)
		if err != nil {
			return s, fmt.Errorf("defaults.chunk_size: %w", err)
		}
		if n <= 0 {
			return s, fmt.Errorf("defaults.chunk_size must be positive")
		}
		s.ChunkSize = int(n)
	}
	if d.BWLimit != nil {
		n, err := filter.ParseSize(*d.BWLimit)
		if err != nil {
			return s, fmt.Errorf("defaults.bwlimit: %w", err)
		}
		s.BWLimit = n
	}
	if d.Verify != nil {
		s.Verify = *d.Verify
	}
	if d.FollowSymlinks != nil {
		s.FollowSymlinks = *d.FollowSymlinks
	}
	if d.SkipHidden != nil {
		s.SkipHidden = *d.SkipHidden
	}

	st := c.Statistics
	if st.SizeChangeInterval != nil {
		s.SizeChangeInterval = st.SizeChangeInterval.Duration
	}
	if st.DataNotifyInterval != nil {
		s.DataNotifyInterval = st.DataNotifyInterval.Duration
	}
	if st.ProgressUnit != nil {
		if *st.ProgressUnit <= 0 {
			return s, fmt.Errorf("statistics.progress_unit must be positive")
		}
		s.ProgressUnit = *st.ProgressUnit
	}
	s.PseudoFiles = appendUnique(s.PseudoFiles, st.PseudoFiles...)
	s.PseudoDevices = appendUnique(s.PseudoDevices, st.PseudoDevices...)

	op := c.Operation
	if op.ProgressInterval != nil {
		s.ProgressInterval = op.ProgressInterval.Duration
	}
	var err error
	if s.OnConflict, err = parsePolicy("operation.on_conflict", op.OnConflict, job.CollisionChoices); err != nil {
		return s, err
	}
	if s.OnError, err = parsePolicy("operation.on_error", op.OnError, job.ErrorChoices); err != nil {
		return s, err
	}
	return s, nil
}

func parsePolicy(key string, v *string, allowed []job.Decision) (job.Decision, error) {
	if v == nil || *v == "" || *v == "ask" {
		return job.NoDecision, nil
	}
	d, ok := job.ParseDecision(*v)
	if !ok || !slices.Contains(allowed, d) || d == job.Cancel || d == job.Retry {
		return job.NoDecision, fmt.Errorf("%s: unsupported policy %q", key, *v)
	}
	return d, nil
}

func appendUnique(list []string, more ...string) []string {
	for _, m := range more {
		if !slices.Contains(list, m) {
			list = append(list, m)
		}
	}
	return list
}

// Flags returns the job flags implied by the settings.
func (s Settings) Flags() job.Flags {
	var f job.Flags
	if !s.FollowSymlinks {
		f |= job.NoFollowSymlink
	}
	if s.SkipHidden {
		f |= job.SkipHidden
	}
	if s.Verify {
		f |= job.Verify
	}
	return f
}

// IsPseudoFile reports whether path is on the pseudo-file list.
func (s Settings) IsPseudoFile(path string) bool {
	return slices.Contains(s.PseudoFiles, filepath.Clean(path))
}
