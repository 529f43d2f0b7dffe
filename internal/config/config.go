// Package config loads the engine settings from an optional TOML file and
// the environment.
package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
)

const (
	// EnvPath names the environment variable holding the config file path.
	EnvPath = "PIXEL_ENGINE_CONFIG"
	// DefaultPath is read when EnvPath is unset. A missing file is not an error.
	DefaultPath = "engine.toml"

	envValidation = "VK_VALIDATION"

	maxFramesInFlight = 8
)

type Config struct {
	Window Window `toml:"window"`
	Render Render `toml:"render"`
	Log    Log    `toml:"log"`
}

type Window struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
}

type Render struct {
	Validation     bool     `toml:"validation"`
	FramesInFlight int      `toml:"frames_in_flight"`
	VertexShader   string   `toml:"vertex_shader"`
	FragmentShader string   `toml:"fragment_shader"`
	AcquireTimeout Duration `toml:"acquire_timeout"`
	StatsInterval  Duration `toml:"stats_interval"`
}

type Log struct {
	Level string `toml:"level"`
}

// Duration decodes TOML strings such as "250ms". Zero means "no limit" or
// "disabled" depending on the field.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" || s == "0" {
		d.Duration = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return errors.Wrapf(err, "parse duration %q", s)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default shader binaries, relative to the repository root.
//go:generate glslc ../../shaders/triangle.vert -o ../../shaders/vert.spv
//go:generate glslc ../../shaders/triangle.frag -o ../../shaders/frag.spv

func Default() Config {
	return Config{
		Window: Window{
			Title:  "pixel_engine test application",
			Width:  1280,
			Height: 720,
		},
		Render: Render{
			Validation:     false,
			FramesInFlight: 2,
			VertexShader:   "shaders/vert.spv",
			FragmentShader: "shaders/frag.spv",
			StatsInterval:  Duration{5 * time.Second},
		},
		Log: Log{Level: "info"},
	}
}

// Path returns the config file location to read.
func Path() string {
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. A missing file at DefaultPath yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "decode config %s", path)
		}
	case errors.Is(err, os.ErrNotExist) && path == DefaultPath:
	default:
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	val, ok := os.LookupEnv(envValidation)
	if !ok || val == "" {
		return
	}
	switch val {
	case "0", "false", "False", "FALSE":
		cfg.Render.Validation = false
	default:
		cfg.Render.Validation = true
	}
}

func (c Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return errors.Newf("window size %dx%d must be positive", c.Window.Width, c.Window.Height)
	}
	if c.Render.FramesInFlight < 1 || c.Render.FramesInFlight > maxFramesInFlight {
		return errors.Newf("frames_in_flight %d out of range [1, %d]", c.Render.FramesInFlight, maxFramesInFlight)
	}
	if c.Render.VertexShader == "" || c.Render.FragmentShader == "" {
		return errors.New("vertex_shader and fragment_shader must be set")
	}
	if c.Render.AcquireTimeout.Duration < 0 || c.Render.StatsInterval.Duration < 0 {
		return errors.New("durations must not be negative")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

func (l Log) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, errors.Newf("unknown log level %q", l.Level)
}
