// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package driver

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// Extent is a two-dimensional size in pixels.
type Extent struct {
	Width  uint32
	Height uint32
}

// UndefinedExtent is reported as the current extent by surfaces whose size is
// chosen by the client (the window framebuffer size is used instead).
var UndefinedExtent = Extent{Width: 0xFFFFFFFF, Height: 0xFFFFFFFF}

// IsZero reports whether either dimension is zero.
func (e Extent) IsZero() bool { return e.Width == 0 || e.Height == 0 }

// IsUndefined reports whether e is [UndefinedExtent].
func (e Extent) IsUndefined() bool { return e == UndefinedExtent }

// Clamp returns e limited to [lo, hi] in each dimension.
func (e Extent) Clamp(lo, hi Extent) Extent {
	return Extent{
		Width:  clampU32(e.Width, lo.Width, hi.Width),
		Height: clampU32(e.Height, lo.Height, hi.Height),
	}
}

// String returns "WxH".
func (e Extent) String() string { return fmt.Sprintf("%dx%d", e.Width, e.Height) }

// Extent3D converts e to a single-layer gputypes extent.
func (e Extent) Extent3D() gputypes.Extent3D {
	return gputypes.Extent3D{Width: e.Width, Height: e.Height, DepthOrArrayLayers: 1}
}

func clampU32(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if hi != 0 && v > hi {
		return hi
	}
	return v
}

// SurfaceCapabilities is the negotiation data reported by a surface.
type SurfaceCapabilities struct {
	Formats      []gputypes.TextureFormat
	PresentModes []gputypes.PresentMode
	AlphaModes   []gputypes.CompositeAlphaMode

	// MinImageCount is the minimum number of swapchain images.
	MinImageCount uint32
	// MaxImageCount is the maximum number of swapchain images; 0 means
	// no limit.
	MaxImageCount uint32

	// CurrentExtent is the surface size, or UndefinedExtent when the
	// client decides.
	CurrentExtent Extent
	MinExtent     Extent
	MaxExtent     Extent
}

// SupportsFormat reports whether f is in Formats.
func (c *SurfaceCapabilities) SupportsFormat(f gputypes.TextureFormat) bool {
	for _, v := range c.Formats {
		if v == f {
			return true
		}
	}
	return false
}

// SupportsPresentMode reports whether m is in PresentModes.
func (c *SurfaceCapabilities) SupportsPresentMode(m gputypes.PresentMode) bool {
	for _, v := range c.PresentModes {
		if v == m {
			return true
		}
	}
	return false
}

// SwapchainDescriptor describes a swapchain to create.
type SwapchainDescriptor struct {
	Label       string
	Format      gputypes.TextureFormat
	PresentMode gputypes.PresentMode
	AlphaMode   gputypes.CompositeAlphaMode
	Usage       gputypes.TextureUsage
	Extent      Extent
	ImageCount  uint32
}

// ImageDescriptor describes a standalone image such as a depth target.
type ImageDescriptor struct {
	Label  string
	Format gputypes.TextureFormat
	Usage  gputypes.TextureUsage
	Extent Extent
}

// ImageViewDescriptor describes a view of an image.
type ImageViewDescriptor struct {
	Label  string
	Format gputypes.TextureFormat
	Aspect gputypes.TextureAspect
}

// RenderPassDescriptor describes the attachments of a render pass.
type RenderPassDescriptor struct {
	Label       string
	ColorFormat gputypes.TextureFormat
	// DepthFormat is TextureFormatUndefined when there is no depth attachment.
	DepthFormat gputypes.TextureFormat
	ColorLoadOp gputypes.LoadOp
	ClearColor  gputypes.Color
}

// FramebufferDescriptor binds attachments to a render pass.
type FramebufferDescriptor struct {
	Label      string
	RenderPass RenderPass
	// Color is the color attachment view.
	Color ImageView
	// Depth is the depth attachment view, or nil.
	Depth  ImageView
	Extent Extent
	// ImageIndex is the swapchain image the framebuffer targets.
	ImageIndex int
}
