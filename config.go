package framepump

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/image/colornames"
)

// Limits for Config.FramesInFlight.
const (
	MinFramesInFlight = 1
	MaxFramesInFlight = 8
)

// Duration is a time.Duration that reads and writes Go duration strings
// ("16ms", "5s") in TOML.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds the settings of one render loop. Every field has a usable
// default; see DefaultConfig.
type Config struct {
	// Title is the window title used by the demo.
	Title string `toml:"title"`
	// Width and Height are the requested window size.
	Width  int `toml:"width"`
	Height int `toml:"height"`

	// FramesInFlight is the number of frame slots. It is fixed for the
	// lifetime of a Pump.
	FramesInFlight int `toml:"frames_in_flight"`
	// ImageCount is the desired number of presentable images; zero lets
	// the surface decide (minimum + 1).
	ImageCount int `toml:"image_count"`

	// Formats are preferred color format names in priority order, e.g.
	// "bgra8unorm-srgb". Unsupported names are a validation error.
	Formats []string `toml:"formats"`
	// PresentModes are preferred present mode names in priority order
	// ("mailbox", "immediate", "fifo-relaxed", "fifo").
	PresentModes []string `toml:"present_modes"`

	// Depth enables a shared depth target of DepthFormat.
	Depth       bool   `toml:"depth"`
	DepthFormat string `toml:"depth_format"`

	// ClearColor is a CSS/SVG color name resolved with x/image/colornames.
	ClearColor string `toml:"clear_color"`

	AcquireTimeout      Duration `toml:"acquire_timeout"`
	FenceTimeout        Duration `toml:"fence_timeout"`
	SuspendPollInterval Duration `toml:"suspend_poll_interval"`

	// Backend is the driver registry name; empty selects the default.
	Backend string `toml:"backend"`
	// LogLevel is "debug", "info", "warn", "error" or empty for no logging.
	LogLevel string `toml:"log_level"`
}

// DefaultConfig returns the default configuration: two frames in flight,
// an 800x600 window, sRGB BGRA, mailbox when available.
func DefaultConfig() Config {
	return Config{
		Title:               "framepump",
		Width:               800,
		Height:              600,
		FramesInFlight:      2,
		Formats:             []string{"bgra8unorm-srgb", "rgba8unorm-srgb"},
		PresentModes:        []string{"mailbox", "immediate"},
		DepthFormat:         "depth32float",
		ClearColor:          "cornflowerblue",
		AcquireTimeout:      Duration(time.Second),
		FenceTimeout:        Duration(5 * time.Second),
		SuspendPollInterval: Duration(16 * time.Millisecond),
	}
}

// LoadConfig reads a TOML file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("framepump: load config: %w", err)
	}
	defer f.Close()
	return DecodeConfig(f)
}

// ParseConfig decodes TOML bytes on top of DefaultConfig.
func ParseConfig(data []byte) (Config, error) {
	return DecodeConfig(bytes.NewReader(data))
}

// DecodeConfig decodes TOML from r on top of DefaultConfig and validates the
// result. Unknown keys are rejected.
func DecodeConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Encode writes cfg as TOML.
func (c Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// Validate checks ranges and resolves every name.
func (c Config) Validate() error {
	if c.FramesInFlight < MinFramesInFlight || c.FramesInFlight > MaxFramesInFlight {
		return fmt.Errorf("%w: frames_in_flight %d not in [%d,%d]", ErrInvalidConfig,
			c.FramesInFlight, MinFramesInFlight, MaxFramesInFlight)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: window size %dx%d", ErrInvalidConfig, c.Width, c.Height)
	}
	if c.ImageCount < 0 {
		return fmt.Errorf("%w: image_count %d", ErrInvalidConfig, c.ImageCount)
	}
	if c.AcquireTimeout <= 0 || c.FenceTimeout <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidConfig)
	}
	if c.SuspendPollInterval < 0 {
		return fmt.Errorf("%w: suspend_poll_interval %v", ErrInvalidConfig, c.SuspendPollInterval.Std())
	}
	if _, err := c.ColorFormats(); err != nil {
		return err
	}
	if _, err := c.PreferredPresentModes(); err != nil {
		return err
	}
	if _, err := c.DepthTextureFormat(); err != nil {
		return err
	}
	if _, err := c.Clear(); err != nil {
		return err
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

var knownFormats = []gputypes.TextureFormat{
	gputypes.TextureFormatBGRA8Unorm,
	gputypes.TextureFormatBGRA8UnormSrgb,
	gputypes.TextureFormatRGBA8Unorm,
	gputypes.TextureFormatRGBA8UnormSrgb,
	gputypes.TextureFormatRGBA16Float,
	gputypes.TextureFormatDepth24Plus,
	gputypes.TextureFormatDepth24PlusStencil8,
	gputypes.TextureFormatDepth32Float,
}

var knownPresentModes = []gputypes.PresentMode{
	gputypes.PresentModeFifo,
	gputypes.PresentModeFifoRelaxed,
	gputypes.PresentModeImmediate,
	gputypes.PresentModeMailbox,
}

// normalizeName folds "BGRA8UnormSrgb", "bgra8unorm-srgb" and
// "bgra8unorm_srgb" to the same key.
func normalizeName(s string) string {
	s = strings.ToLower(s)
	return strings.NewReplacer("-", "", "_", "", " ", "").Replace(s)
}

// ParseTextureFormat resolves a texture format name.
func ParseTextureFormat(name string) (gputypes.TextureFormat, error) {
	key := normalizeName(name)
	for _, f := range knownFormats {
		if normalizeName(f.String()) == key {
			return f, nil
		}
	}
	return gputypes.TextureFormatUndefined, fmt.Errorf("%w: unknown texture format %q", ErrInvalidConfig, name)
}

// ParsePresentMode resolves a present mode name.
func ParsePresentMode(name string) (gputypes.PresentMode, error) {
	key := normalizeName(name)
	for _, m := range knownPresentModes {
		if normalizeName(m.String()) == key {
			return m, nil
		}
	}
	return gputypes.PresentModeUndefined, fmt.Errorf("%w: unknown present mode %q", ErrInvalidConfig, name)
}

// ColorFormats resolves Formats. Depth formats are rejected.
func (c Config) ColorFormats() ([]gputypes.TextureFormat, error) {
	out := make([]gputypes.TextureFormat, 0, len(c.Formats))
	for _, name := range c.Formats {
		f, err := ParseTextureFormat(name)
		if err != nil {
			return nil, err
		}
		if f.IsDepthStencil() {
			return nil, fmt.Errorf("%w: %q is not a color format", ErrInvalidConfig, name)
		}
		out = append(out, f)
	}
	return out, nil
}

// PreferredPresentModes resolves PresentModes.
func (c Config) PreferredPresentModes() ([]gputypes.PresentMode, error) {
	out := make([]gputypes.PresentMode, 0, len(c.PresentModes))
	for _, name := range c.PresentModes {
		m, err := ParsePresentMode(name)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// DepthTextureFormat returns the depth format, or Undefined when Depth is
// off.
func (c Config) DepthTextureFormat() (gputypes.TextureFormat, error) {
	if !c.Depth {
		return gputypes.TextureFormatUndefined, nil
	}
	f, err := ParseTextureFormat(c.DepthFormat)
	if err != nil {
		return gputypes.TextureFormatUndefined, err
	}
	if !f.IsDepthStencil() {
		return gputypes.TextureFormatUndefined, fmt.Errorf("%w: %q is not a depth format", ErrInvalidConfig, c.DepthFormat)
	}
	return f, nil
}

// Clear resolves ClearColor. An empty name is opaque black.
func (c Config) Clear() (gputypes.Color, error) {
	if c.ClearColor == "" {
		return gputypes.Color{A: 1}, nil
	}
	rgba, ok := colornames.Map[strings.ToLower(c.ClearColor)]
	if !ok {
		return gputypes.Color{}, fmt.Errorf("%w: unknown color %q", ErrInvalidConfig, c.ClearColor)
	}
	return gputypes.Color{
		R: float64(rgba.R) / 255,
		G: float64(rgba.G) / 255,
		B: float64(rgba.B) / 255,
		A: float64(rgba.A) / 255,
	}, nil
}
