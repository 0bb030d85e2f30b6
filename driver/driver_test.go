package driver

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtentClamp(t *testing.T) {
	lo := Extent{Width: 1, Height: 1}
	hi := Extent{Width: 4096, Height: 2048}

	tests := []struct {
		name string
		in   Extent
		want Extent
	}{
		{"inside", Extent{800, 600}, Extent{800, 600}},
		{"too large", Extent{8000, 6000}, Extent{4096, 2048}},
		{"zero", Extent{0, 0}, Extent{1, 1}},
		{"mixed", Extent{10, 9000}, Extent{10, 2048}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Clamp(lo, hi))
		})
	}
}

func TestExtentClampNoUpperLimit(t *testing.T) {
	got := Extent{Width: 10000, Height: 10000}.Clamp(Extent{}, Extent{})
	assert.Equal(t, Extent{Width: 10000, Height: 10000}, got)
}

func TestExtentPredicates(t *testing.T) {
	assert.True(t, Extent{}.IsZero())
	assert.True(t, Extent{Width: 10}.IsZero())
	assert.False(t, Extent{Width: 10, Height: 1}.IsZero())
	assert.True(t, UndefinedExtent.IsUndefined())
	assert.Equal(t, "800x600", Extent{800, 600}.String())
	assert.Equal(t, uint32(1), Extent{800, 600}.Extent3D().DepthOrArrayLayers)
}

func TestSurfaceCapabilitiesSupports(t *testing.T) {
	caps := &SurfaceCapabilities{
		Formats:      []gputypes.TextureFormat{gputypes.TextureFormatBGRA8Unorm},
		PresentModes: []gputypes.PresentMode{gputypes.PresentModeFifo},
	}
	assert.True(t, caps.SupportsFormat(gputypes.TextureFormatBGRA8Unorm))
	assert.False(t, caps.SupportsFormat(gputypes.TextureFormatBGRA8UnormSrgb))
	assert.True(t, caps.SupportsPresentMode(gputypes.PresentModeFifo))
	assert.False(t, caps.SupportsPresentMode(gputypes.PresentModeMailbox))
}

func TestResourceCreationError(t *testing.T) {
	cause := errors.New("out of memory")
	err := CreateError("depth image", "Depth32Float 800x600", cause)

	var rce *ResourceCreationError
	require.ErrorAs(t, err, &rce)
	assert.Equal(t, "depth image", rce.Resource)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "driver: create depth image (Depth32Float 800x600): out of memory", err.Error())

	// Already wrapped errors keep their original context.
	again := CreateError("framebuffer", "", err)
	assert.Same(t, err, again)

	assert.NoError(t, CreateError("fence", "", nil))
}

func TestGraphicsDeviceError(t *testing.T) {
	err := DeviceError("wait", fmt.Errorf("slot 1: %w", ErrTimeout))
	assert.ErrorIs(t, err, ErrTimeout)
	assert.True(t, IsFatal(err))
	assert.Equal(t, "driver: wait: slot 1: driver: timeout", err.Error())

	again := DeviceError("present", err)
	assert.Same(t, err, again)

	assert.False(t, IsFatal(errors.New("plain")))
	assert.True(t, IsFatal(ErrDeviceLost))
	assert.NoError(t, DeviceError("submit", nil))
}

func TestSurfaceUnsupportedError(t *testing.T) {
	err := &SurfaceUnsupportedError{Reason: "no formats"}
	assert.Equal(t, "driver: surface unsupported: no formats", err.Error())
}

func TestPipelineStageString(t *testing.T) {
	assert.Equal(t, "color-attachment-output", StageColorAttachmentOutput.String())
	assert.Equal(t, "unknown", PipelineStage(0).String())
}

type stubBackend struct{ name string }

func (b stubBackend) Name() string { return b.name }

func (b stubBackend) Open(context.Context, gpucontext.WindowProvider, NativeHandles) (*Context, error) {
	return NewContext(nil, nil, nil, nil), nil
}

func TestRegistry(t *testing.T) {
	const name = "registry-test"
	Register(name, func() Backend { return stubBackend{name: name} })
	t.Cleanup(func() { Unregister(name) })

	assert.True(t, IsRegistered(name))
	assert.Contains(t, Available(), name)
	b := Get(name)
	require.NotNil(t, b)
	assert.Equal(t, name, b.Name())

	got, err := Lookup(name)
	require.NoError(t, err)
	assert.Equal(t, name, got.Name())

	_, err = Lookup("missing-backend")
	assert.ErrorIs(t, err, ErrBackendNotAvailable)

	Unregister(name)
	assert.False(t, IsRegistered(name))
	assert.Nil(t, Get(name))
}

func TestContextCloseOnce(t *testing.T) {
	calls := 0
	c := NewContext(nil, nil, nil, func() error {
		calls++
		return errors.New("boom")
	})
	assert.EqualError(t, c.Close(), "boom")
	assert.EqualError(t, c.Close(), "boom")
	assert.Equal(t, 1, calls)
}
