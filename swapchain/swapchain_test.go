package swapchain

import (
	"testing"

	"github.com/gogpu/framepump/driver"
	"github.com/gogpu/framepump/driver/drivertest"
	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChooseFormat(t *testing.T) {
	tests := []struct {
		name      string
		supported []gputypes.TextureFormat
		want      gputypes.TextureFormat
		wantErr   bool
	}{
		{
			name:      "srgb preferred",
			supported: []gputypes.TextureFormat{gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatBGRA8UnormSrgb},
			want:      gputypes.TextureFormatBGRA8UnormSrgb,
		},
		{
			name:      "second preference",
			supported: []gputypes.TextureFormat{gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA8UnormSrgb},
			want:      gputypes.TextureFormatRGBA8UnormSrgb,
		},
		{
			name:      "first available",
			supported: []gputypes.TextureFormat{gputypes.TextureFormatRGBA16Float, gputypes.TextureFormatBGRA8Unorm},
			want:      gputypes.TextureFormatRGBA16Float,
		},
		{name: "none", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ChooseFormat(&driver.SurfaceCapabilities{Formats: tt.supported}, DefaultFormats)
			if tt.wantErr {
				var sue *driver.SurfaceUnsupportedError
				assert.ErrorAs(t, err, &sue)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChoosePresentMode(t *testing.T) {
	tests := []struct {
		name      string
		supported []gputypes.PresentMode
		want      gputypes.PresentMode
		wantErr   bool
	}{
		{"mailbox", []gputypes.PresentMode{gputypes.PresentModeFifo, gputypes.PresentModeMailbox}, gputypes.PresentModeMailbox, false},
		{"immediate", []gputypes.PresentMode{gputypes.PresentModeImmediate, gputypes.PresentModeFifo}, gputypes.PresentModeImmediate, false},
		{"fifo fallback", []gputypes.PresentMode{gputypes.PresentModeFifoRelaxed, gputypes.PresentModeFifo}, gputypes.PresentModeFifo, false},
		{"nothing usable", []gputypes.PresentMode{gputypes.PresentModeFifoRelaxed}, gputypes.PresentModeUndefined, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ChoosePresentMode(&driver.SurfaceCapabilities{PresentModes: tt.supported}, DefaultPresentModes)
			if tt.wantErr {
				var sue *driver.SurfaceUnsupportedError
				assert.ErrorAs(t, err, &sue)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChooseExtent(t *testing.T) {
	caps := &driver.SurfaceCapabilities{
		CurrentExtent: driver.Extent{Width: 1024, Height: 768},
		MinExtent:     driver.Extent{Width: 1, Height: 1},
		MaxExtent:     driver.Extent{Width: 4096, Height: 4096},
	}
	assert.Equal(t, driver.Extent{Width: 1024, Height: 768}, ChooseExtent(caps, driver.Extent{Width: 10, Height: 10}))

	caps.CurrentExtent = driver.UndefinedExtent
	assert.Equal(t, driver.Extent{Width: 800, Height: 600}, ChooseExtent(caps, driver.Extent{Width: 800, Height: 600}))
	assert.Equal(t, driver.Extent{Width: 4096, Height: 1}, ChooseExtent(caps, driver.Extent{Width: 9000, Height: 0}))
}

func TestChooseImageCount(t *testing.T) {
	tests := []struct {
		name     string
		min, max uint32
		desired  int
		want     uint32
	}{
		{"min plus one", 2, 8, 0, 3},
		{"clamped to max", 3, 3, 0, 3},
		{"unbounded", 2, 0, 0, 3},
		{"desired", 2, 8, 5, 5},
		{"desired below min", 3, 8, 1, 3},
		{"desired above max", 2, 4, 9, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps := &driver.SurfaceCapabilities{MinImageCount: tt.min, MaxImageCount: tt.max}
			assert.Equal(t, tt.want, ChooseImageCount(caps, tt.desired))
		})
	}
}

func newChain(t *testing.T, opts Options, sopts drivertest.SurfaceOptions) (*Chain, *drivertest.Device, *drivertest.Surface) {
	t.Helper()
	dev := drivertest.NewDevice(drivertest.Options{})
	surf := drivertest.NewSurface(800, 600, sopts)
	return New(dev, surf, opts), dev, surf
}

func TestBuild(t *testing.T) {
	c, dev, _ := newChain(t, Options{DepthFormat: gputypes.TextureFormatDepth32Float}, drivertest.DefaultSurfaceOptions())
	require.NoError(t, c.Build())

	assert.True(t, c.Built())
	assert.Equal(t, 3, c.ImageCount())
	assert.Equal(t, driver.Extent{Width: 800, Height: 600}, c.Extent())
	assert.Equal(t, gputypes.TextureFormatBGRA8UnormSrgb, c.Format())
	assert.Equal(t, gputypes.PresentModeMailbox, c.PresentMode())
	assert.Equal(t, gputypes.TextureFormatDepth32Float, c.DepthFormat())
	assert.Equal(t, uint64(1), c.Generation())
	require.NotNil(t, c.RenderPass())

	for i := range c.ImageCount() {
		fb := c.Framebuffer(i).(*drivertest.Framebuffer)
		assert.Equal(t, i, fb.Desc.ImageIndex)
		assert.NotNil(t, fb.Desc.Depth, "framebuffer %d has depth", i)
		assert.Same(t, c.Image(i).View, fb.Desc.Color)
	}
	rp := c.RenderPass().(*drivertest.RenderPass)
	assert.Equal(t, gputypes.TextureFormatDepth32Float, rp.Desc.DepthFormat)

	live := dev.Live()
	assert.Equal(t, 1, live["swapchain"])
	assert.Equal(t, 4, live["image-view"])
	assert.Equal(t, 1, live["image"])
	assert.Equal(t, 1, live["render-pass"])
	assert.Equal(t, 3, live["framebuffer"])

	assert.ErrorIs(t, c.Build(), ErrAlreadyBuilt)

	c.Teardown()
	c.Teardown()
	assert.Equal(t, 0, dev.LiveCount())
	assert.Empty(t, dev.Violations())
}

func TestBuildClientSizedSurfaceUsesFramebufferSize(t *testing.T) {
	opts := drivertest.DefaultSurfaceOptions()
	opts.ClientSized = true
	opts.MaxExtent = driver.Extent{Width: 640, Height: 4096}
	c, _, _ := newChain(t, Options{}, opts)
	require.NoError(t, c.Build())
	t.Cleanup(c.Teardown)
	assert.Equal(t, driver.Extent{Width: 640, Height: 600}, c.Extent())
}

func TestBuildZeroExtent(t *testing.T) {
	c, dev, surf := newChain(t, Options{}, drivertest.DefaultSurfaceOptions())
	surf.SetSize(0, 0)
	assert.ErrorIs(t, c.Build(), ErrZeroExtent)
	assert.False(t, c.Built())
	assert.Equal(t, 0, dev.LiveCount())
}

func TestBuildUnsupportedSurface(t *testing.T) {
	opts := drivertest.DefaultSurfaceOptions()
	opts.Formats = nil
	c, _, _ := newChain(t, Options{}, opts)
	var sue *driver.SurfaceUnsupportedError
	assert.ErrorAs(t, c.Build(), &sue)
}

func TestBuildFailureLeavesNothingBehind(t *testing.T) {
	tests := []struct {
		kind     string
		after    int
		resource string
	}{
		{"swapchain", 0, "swapchain"},
		{"image-view", 2, "image view"},
		{"image", 0, "depth image"},
		{"image-view", 3, "depth image view"},
		{"render-pass", 0, "render pass"},
		{"framebuffer", 1, "framebuffer"},
	}
	for _, tt := range tests {
		t.Run(tt.resource, func(t *testing.T) {
			c, dev, _ := newChain(t, Options{DepthFormat: gputypes.TextureFormatDepth24Plus}, drivertest.DefaultSurfaceOptions())
			dev.FailCreate(tt.kind, tt.after)

			err := c.Build()
			var rce *driver.ResourceCreationError
			require.ErrorAs(t, err, &rce)
			assert.Equal(t, tt.resource, rce.Resource)
			assert.NotEmpty(t, rce.Detail)
			assert.False(t, c.Built())
			assert.Equal(t, 0, dev.LiveCount(), "leaked %v", dev.Live())

			// A later build on the same chain succeeds.
			require.NoError(t, c.Build())
			c.Teardown()
		})
	}
}

func TestRebuildIdempotent(t *testing.T) {
	c, dev, _ := newChain(t, Options{}, drivertest.DefaultSurfaceOptions())
	require.NoError(t, c.Build())
	count, extent := c.ImageCount(), c.Extent()

	require.NoError(t, c.Rebuild())
	require.NoError(t, c.Rebuild())
	assert.Equal(t, count, c.ImageCount())
	assert.Equal(t, extent, c.Extent())
	assert.Equal(t, uint64(3), c.Generation())
	assert.Equal(t, 1, dev.Live()["swapchain"])
	c.Teardown()
	assert.Equal(t, 0, dev.LiveCount())
}

func TestRebuildPicksUpNewExtent(t *testing.T) {
	c, _, surf := newChain(t, Options{}, drivertest.DefaultSurfaceOptions())
	require.NoError(t, c.Build())
	surf.SetSize(1280, 720)
	require.NoError(t, c.Rebuild())
	assert.Equal(t, driver.Extent{Width: 1280, Height: 720}, c.Extent())
	c.Teardown()
}

func TestAcquireAndPresentStatuses(t *testing.T) {
	c, dev, surf := newChain(t, Options{}, drivertest.DefaultSurfaceOptions())
	require.NoError(t, c.Build())
	t.Cleanup(c.Teardown)
	sem, err := dev.CreateSemaphore("acquired")
	require.NoError(t, err)

	dev.ScriptAcquire(gputypes.SurfaceStatusSuboptimal)
	idx, st, err := c.AcquireNext(sem)
	require.NoError(t, err)
	assert.Equal(t, StatusSuboptimal, st)
	assert.Equal(t, 0, idx)

	dev.ScriptPresent(gputypes.SurfaceStatusOutdated)
	// Nothing waits on sem in this test; present consumes it directly.
	pst, err := c.Present(dev.Queue(), sem, idx)
	require.NoError(t, err)
	assert.Equal(t, StatusOutOfDate, pst)

	surf.SetSize(640, 480)
	idx, st, err = c.AcquireNext(sem)
	require.NoError(t, err)
	assert.Equal(t, StatusOutOfDate, st)
	assert.Equal(t, -1, idx)
}

func TestAcquireFatalStatuses(t *testing.T) {
	for _, st := range []gputypes.SurfaceStatus{gputypes.SurfaceStatusLost, gputypes.SurfaceStatusTimeout, gputypes.SurfaceStatusUnknown} {
		t.Run(st.String(), func(t *testing.T) {
			c, dev, _ := newChain(t, Options{}, drivertest.DefaultSurfaceOptions())
			require.NoError(t, c.Build())
			t.Cleanup(c.Teardown)
			sem, err := dev.CreateSemaphore("acquired")
			require.NoError(t, err)

			dev.ScriptAcquire(st)
			_, _, err = c.AcquireNext(sem)
			var gde *driver.GraphicsDeviceError
			require.ErrorAs(t, err, &gde)
			assert.Equal(t, "acquire", gde.Op)
		})
	}
}

func TestUnbuiltChain(t *testing.T) {
	c, dev, _ := newChain(t, Options{}, drivertest.DefaultSurfaceOptions())
	sem, err := dev.CreateSemaphore("acquired")
	require.NoError(t, err)
	_, _, err = c.AcquireNext(sem)
	assert.ErrorIs(t, err, ErrNotBuilt)
	_, err = c.Present(dev.Queue(), sem, 0)
	assert.ErrorIs(t, err, ErrNotBuilt)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "ok", StatusOK.String())
	assert.Equal(t, "suboptimal", StatusSuboptimal.String())
	assert.Equal(t, "out-of-date", StatusOutOfDate.String())
	assert.Equal(t, "Status(9)", Status(9).String())
}
