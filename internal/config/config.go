package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/llehouerou/termimage/internal/anim"
	"github.com/llehouerou/termimage/internal/imagesrc"
	"github.com/llehouerou/termimage/internal/pixels"
	"github.com/llehouerou/termimage/internal/style"
	"github.com/llehouerou/termimage/internal/termcap"
)

type Config struct {
	Style  string `koanf:"style"`  // "auto", "block", "kitty", "iterm2" or "sixel"
	Method string `koanf:"method"` // "lines" or "whole"; applies to kitty and iterm2
	Filter string `koanf:"filter"` // resize filter (default: lanczos3)
	Size   string `koanf:"size"`   // "fit", "fit-width" or "original"

	Alpha     AlphaConfig     `koanf:"alpha"`
	Kitty     KittyConfig     `koanf:"kitty"`
	ITerm2    ITerm2Config    `koanf:"iterm2"`
	Sixel     SixelConfig     `koanf:"sixel"`
	Anim      AnimConfig      `koanf:"anim"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Probe     ProbeConfig     `koanf:"probe"`
	Cache     CacheConfig     `koanf:"cache"`
	Log       LogConfig       `koanf:"log"`
}

// AlphaConfig selects how transparency is handled.
type AlphaConfig struct {
	Mode       string  `koanf:"mode"`       // "threshold", "blend" or "disabled" (default: threshold)
	Cutoff     float64 `koanf:"cutoff"`     // threshold cutoff in (0, 1] (default: 0.4)
	Background string  `koanf:"background"` // "#rrggbb"; empty uses the terminal background
	Round      bool    `koanf:"round"`      // round blended channels instead of truncating
}

// KittyConfig holds kitty graphics defaults.
type KittyConfig struct {
	ZIndex   *int32 `koanf:"z_index"`  // omitted draws above text
	Mix      bool   `koanf:"mix"`      // keep text under the image
	Compress *int   `koanf:"compress"` // zlib level 0-9 (default: 4)
}

// ITerm2Config holds iTerm2 inline image defaults.
type ITerm2Config struct {
	Mix           bool   `koanf:"mix"`
	JPEGQuality   int    `koanf:"jpeg_quality"`    // 0 keeps PNG
	Native        *bool  `koanf:"native"`          // pass animations through (default: true)
	NativeMaxSize string `koanf:"native_max_size"` // e.g. "2 MiB" (default)
}

// SixelConfig holds sixel defaults.
type SixelConfig struct {
	Dither *bool `koanf:"dither"` // default: true
}

// AnimConfig holds animation defaults.
type AnimConfig struct {
	Repeat         int    `koanf:"repeat"`          // loops, -1 or 0 for infinite
	Cache          string `koanf:"cache"`           // "auto", "on" or "off" (default: auto)
	CacheThreshold int    `koanf:"cache_threshold"` // auto caches animations with fewer frames (default: 100)
}

// SchedulerConfig sizes the background renderers.
type SchedulerConfig struct {
	GridWorkers *int `koanf:"grid_workers"` // default: 2, 0 runs a single worker
}

// ProbeConfig controls terminal capability probes.
type ProbeConfig struct {
	TimeoutMS int  `koanf:"timeout_ms"` // default: 200
	Disabled  bool `koanf:"disabled"`   // trust environment hints only
}

// CacheConfig controls the thumbnail cache.
type CacheConfig struct {
	Thumbnails *bool  `koanf:"thumbnails"` // default: true
	Dir        string `koanf:"dir"`        // default: $XDG_CACHE_HOME/termimage/thumbnails
}

// LogConfig controls the log file.
type LogConfig struct {
	Level string `koanf:"level"` // "debug", "info", "warn" or "error" (default: info)
	File  string `koanf:"file"`  // default: $XDG_STATE_HOME/termimage/termimage.log
}

func Load() (*Config, error) {
	return LoadFrom(getConfigPaths()...)
}

// LoadFrom loads the existing files among paths, later files overriding
// earlier ones.
func LoadFrom(paths ...string) (*Config, error) {
	k := koanf.New(".")

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
		}
	}

	cfg := &Config{
		Style: "auto",
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	if cfg.Cache.Dir != "" {
		cfg.Cache.Dir = expandPath(cfg.Cache.Dir)
	}
	if cfg.Log.File != "" {
		cfg.Log.File = expandPath(cfg.Log.File)
	}

	return cfg, nil
}

func getConfigPaths() []string {
	return []string{
		// 1. $XDG_CONFIG_HOME/termimage/config.toml
		filepath.Join(xdg.ConfigHome, "termimage", "config.toml"),
		// 2. ./termimage.toml (pwd, highest priority)
		"termimage.toml",
	}
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// AlphaPolicy returns the configured alpha policy.
func (c *Config) AlphaPolicy() (pixels.AlphaPolicy, error) {
	bg, err := pixels.ParseColor(c.Alpha.Background)
	if err != nil {
		return nil, fmt.Errorf("alpha.background: %w", err)
	}
	switch c.Alpha.Mode {
	case "", "threshold":
		cutoff := c.Alpha.Cutoff
		if cutoff <= 0 || cutoff > 1 {
			cutoff = 0
		}
		return pixels.Threshold{Cutoff: cutoff}, nil
	case "blend":
		return pixels.Blend{Background: bg, Round: c.Alpha.Round}, nil
	case "disabled":
		return pixels.Disabled{Background: bg}, nil
	}
	return nil, fmt.Errorf("alpha.mode: unknown mode %q", c.Alpha.Mode)
}

// ResizeFilter returns the configured resize filter.
func (c *Config) ResizeFilter() (*pixels.Filter, error) {
	return pixels.ParseFilter(c.Filter)
}

// SizeMode returns the configured sizing mode.
func (c *Config) SizeMode() (imagesrc.Mode, error) {
	return imagesrc.ParseMode(c.Size)
}

// KittyArgs returns the kitty defaults with the configuration applied.
func (c *Config) KittyArgs() (style.KittyArgs, error) {
	raw := map[string]string{}
	if c.Method != "" {
		raw["method"] = c.Method
	}
	if c.Kitty.ZIndex != nil {
		raw["z_index"] = strconv.FormatInt(int64(*c.Kitty.ZIndex), 10)
	}
	if c.Kitty.Mix {
		raw["mix"] = "true"
	}
	if c.Kitty.Compress != nil {
		raw["compress"] = strconv.Itoa(*c.Kitty.Compress)
	}
	return style.ParseKittyArgs(style.DefaultKittyArgs(), raw)
}

// ITerm2Args returns the iTerm2 defaults with the configuration applied.
func (c *Config) ITerm2Args() (style.ITerm2Args, error) {
	raw := map[string]string{}
	if c.Method != "" {
		raw["method"] = c.Method
	}
	if c.ITerm2.Mix {
		raw["mix"] = "true"
	}
	if c.ITerm2.JPEGQuality != 0 {
		raw["jpeg_quality"] = strconv.Itoa(c.ITerm2.JPEGQuality)
	}
	if c.ITerm2.Native != nil {
		raw["native"] = strconv.FormatBool(*c.ITerm2.Native)
	}
	if c.ITerm2.NativeMaxSize != "" {
		raw["native_max_size"] = c.ITerm2.NativeMaxSize
	}
	return style.ParseITerm2Args(style.DefaultITerm2Args(), raw)
}

// SixelArgs returns the sixel defaults with the configuration applied.
func (c *Config) SixelArgs() (style.SixelArgs, error) {
	args := style.DefaultSixelArgs()
	if c.Sixel.Dither != nil {
		args.Dither = *c.Sixel.Dither
	}
	return args, nil
}

// GetAnimConfig returns the animation configuration with defaults applied.
func (c *Config) GetAnimConfig() AnimConfig {
	cfg := c.Anim

	if cfg.Repeat <= 0 {
		cfg.Repeat = anim.Infinite
	}
	switch cfg.Cache {
	case "auto", "on", "off":
	default:
		cfg.Cache = "auto"
	}
	if cfg.CacheThreshold <= 0 {
		cfg.CacheThreshold = anim.DefaultCacheThreshold
	}

	return cfg
}

// CachePolicy returns the animation frame cache policy.
func (c *Config) CachePolicy() anim.CachePolicy {
	cfg := c.GetAnimConfig()
	mode := anim.CacheAuto
	switch cfg.Cache {
	case "on":
		mode = anim.CacheOn
	case "off":
		mode = anim.CacheOff
	}
	return anim.CachePolicy{Mode: mode, Threshold: cfg.CacheThreshold}
}

// GridWorkers returns the number of grid workers.
func (c *Config) GridWorkers() int {
	if c.Scheduler.GridWorkers == nil || *c.Scheduler.GridWorkers < 0 {
		return 2
	}
	return *c.Scheduler.GridWorkers
}

// ProbeTimeout returns the capability probe timeout.
func (c *Config) ProbeTimeout() time.Duration {
	if c.Probe.TimeoutMS <= 0 {
		return termcap.DefaultTimeout
	}
	return time.Duration(c.Probe.TimeoutMS) * time.Millisecond
}

// ThumbnailsEnabled reports whether grid thumbnails are cached on disk.
func (c *Config) ThumbnailsEnabled() bool {
	return c.Cache.Thumbnails == nil || *c.Cache.Thumbnails
}

// ProbeOptions returns the capability options for the configured styles.
func (c *Config) ProbeOptions() (style.Options, error) {
	kitty, err := c.KittyArgs()
	if err != nil {
		return style.Options{}, err
	}
	iterm2, err := c.ITerm2Args()
	if err != nil {
		return style.Options{}, err
	}
	sixel, err := c.SixelArgs()
	if err != nil {
		return style.Options{}, err
	}
	return style.Options{
		Timeout:  c.ProbeTimeout(),
		Kitty:    &kitty,
		ITerm2:   &iterm2,
		Sixel:    &sixel,
		Env:      termcap.Environ(),
		NoProbes: c.Probe.Disabled,
	}, nil
}
