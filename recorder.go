package framepump

import (
	"context"

	"github.com/gogpu/framepump/driver"
	"github.com/gogpu/gputypes"
)

// Frame describes the frame a Recorder fills.
type Frame struct {
	// Number counts recorded frames from zero.
	Number uint64
	// Slot is the frame slot the work is submitted on.
	Slot int
	// ImageIndex is the presentable image rendered into.
	ImageIndex int

	Extent      driver.Extent
	Format      gputypes.TextureFormat
	RenderPass  driver.RenderPass
	Framebuffer driver.Framebuffer

	// Generation changes whenever the chain is rebuilt.
	Generation uint64
}

// Recorder fills a command list with the work of one frame.
//
// The pump resets the list and calls Begin before Record and End after it.
// Record must be idempotent for a given image index and external scene state.
// An error aborts the frame and is returned to the owner of the render loop.
type Recorder interface {
	Record(ctx context.Context, frame Frame, cl driver.CommandList) error
}

// RecorderFunc adapts a function to the Recorder interface.
type RecorderFunc func(ctx context.Context, frame Frame, cl driver.CommandList) error

// Record calls f.
func (f RecorderFunc) Record(ctx context.Context, frame Frame, cl driver.CommandList) error {
	return f(ctx, frame, cl)
}
