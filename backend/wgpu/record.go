package wgpu

import (
	"fmt"

	"github.com/gogpu/framepump/driver"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Encoder returns the HAL encoder of a command list that is recording.
func Encoder(cl driver.CommandList) (hal.CommandEncoder, error) {
	c, ok := cl.(*CommandList)
	if !ok {
		return nil, driver.ErrForeignHandle
	}
	if !c.recording {
		return nil, fmt.Errorf("wgpu: command list %q not recording", c.label)
	}
	return c.enc, nil
}

// BeginRenderPass starts a HAL render pass on cl targeting fb. The color
// attachment follows the render pass load op and clear color; depth is
// cleared to 1. The caller ends the pass.
func BeginRenderPass(cl driver.CommandList, fb driver.Framebuffer) (hal.RenderPassEncoder, error) {
	enc, err := Encoder(cl)
	if err != nil {
		return nil, err
	}
	f, ok := fb.(*Framebuffer)
	if !ok {
		return nil, driver.ErrForeignHandle
	}
	if f.color.view == nil {
		return nil, fmt.Errorf("wgpu: framebuffer %q: image %d is not acquired", f.label, f.Desc.ImageIndex)
	}

	load := f.pass.Desc.ColorLoadOp
	if load == gputypes.LoadOpUndefined {
		load = gputypes.LoadOpClear
	}
	desc := &hal.RenderPassDescriptor{
		Label: f.pass.label,
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       f.color.view,
			LoadOp:     load,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: f.pass.Desc.ClearColor,
		}},
	}
	if f.depth != nil {
		ds := &hal.RenderPassDepthStencilAttachment{
			View:            f.depth.view,
			DepthLoadOp:     gputypes.LoadOpClear,
			DepthStoreOp:    gputypes.StoreOpDiscard,
			DepthClearValue: 1,
		}
		if f.pass.Desc.DepthFormat.HasStencil() {
			ds.StencilLoadOp = gputypes.LoadOpClear
			ds.StencilStoreOp = gputypes.StoreOpDiscard
		}
		desc.DepthStencilAttachment = ds
	}
	return enc.BeginRenderPass(desc), nil
}
