package framepump

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	formats, err := cfg.ColorFormats()
	require.NoError(t, err)
	assert.Equal(t, []gputypes.TextureFormat{
		gputypes.TextureFormatBGRA8UnormSrgb,
		gputypes.TextureFormatRGBA8UnormSrgb,
	}, formats)

	modes, err := cfg.PreferredPresentModes()
	require.NoError(t, err)
	assert.Equal(t, []gputypes.PresentMode{gputypes.PresentModeMailbox, gputypes.PresentModeImmediate}, modes)

	depth, err := cfg.DepthTextureFormat()
	require.NoError(t, err)
	assert.Equal(t, gputypes.TextureFormatUndefined, depth, "depth is off by default")
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
title = "triangle"
width = 1280
height = 720
frames_in_flight = 3
image_count = 4
formats = ["rgba8unorm"]
present_modes = ["fifo"]
depth = true
depth_format = "depth24plus-stencil8"
clear_color = "black"
fence_timeout = "250ms"
suspend_poll_interval = "0s"
backend = "noop"
log_level = "debug"
`))
	require.NoError(t, err)

	assert.Equal(t, "triangle", cfg.Title)
	assert.Equal(t, 1280, cfg.Width)
	assert.Equal(t, 3, cfg.FramesInFlight)
	assert.Equal(t, 4, cfg.ImageCount)
	assert.Equal(t, 250*time.Millisecond, cfg.FenceTimeout.Std())
	assert.Equal(t, time.Second, cfg.AcquireTimeout.Std(), "unset keys keep their default")
	assert.Zero(t, cfg.SuspendPollInterval)
	assert.Equal(t, "noop", cfg.Backend)

	depth, err := cfg.DepthTextureFormat()
	require.NoError(t, err)
	assert.Equal(t, gputypes.TextureFormatDepth24PlusStencil8, depth)

	c, err := cfg.Clear()
	require.NoError(t, err)
	assert.Equal(t, gputypes.Color{A: 1}, c)
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		toml string
	}{
		{"unknown key", `frames = 2`},
		{"syntax", `width = `},
		{"bad duration", `fence_timeout = "soon"`},
		{"frames in flight too low", `frames_in_flight = 0`},
		{"frames in flight too high", `frames_in_flight = 9`},
		{"negative image count", `image_count = -1`},
		{"zero width", `width = 0`},
		{"unknown format", `formats = ["rgb565"]`},
		{"depth as color", `formats = ["depth32float"]`},
		{"unknown present mode", `present_modes = ["vsync"]`},
		{"color as depth", "depth = true\ndepth_format = \"rgba8unorm\""},
		{"unknown color", `clear_color = "notacolor"`},
		{"zero timeout", `acquire_timeout = "0s"`},
		{"negative poll", `suspend_poll_interval = "-1ms"`},
		{"log level", `log_level = "chatty"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.toml))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestParseNames(t *testing.T) {
	for _, name := range []string{"bgra8unorm-srgb", "BGRA8UnormSrgb", "bgra8unorm_srgb"} {
		f, err := ParseTextureFormat(name)
		require.NoError(t, err, name)
		assert.Equal(t, gputypes.TextureFormatBGRA8UnormSrgb, f)
	}
	for name, want := range map[string]gputypes.PresentMode{
		"fifo":         gputypes.PresentModeFifo,
		"fifo-relaxed": gputypes.PresentModeFifoRelaxed,
		"Immediate":    gputypes.PresentModeImmediate,
		"MAILBOX":      gputypes.PresentModeMailbox,
	} {
		m, err := ParsePresentMode(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, m)
	}
}

func TestConfigEncodeRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FramesInFlight = 3
	cfg.FenceTimeout = Duration(1500 * time.Millisecond)

	var buf bytes.Buffer
	require.NoError(t, cfg.Encode(&buf))
	assert.Regexp(t, `fence_timeout = ['"]1.5s['"]`, buf.String())

	got, err := ParseConfig(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "framepump.toml")
	require.NoError(t, os.WriteFile(path, []byte("frames_in_flight = 1\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.FramesInFlight)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
