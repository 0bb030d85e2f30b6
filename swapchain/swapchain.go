// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package swapchain owns the surface-backed chain of presentable images and
// the render pass and framebuffers compatible with it.
//
// A Chain borrows a device and a surface; it never destroys either. It is
// built from the surface's negotiated format, present mode and extent, and
// rebuilt wholesale when the surface changes:
//
//	chain := swapchain.New(dev, surface, swapchain.Options{})
//	if err := chain.Build(); err != nil { ... }
//	defer chain.Teardown()
//
// Out-of-date and suboptimal surfaces are reported as a [Status], never as an
// error. Errors from AcquireNext and Present are fatal device errors.
package swapchain

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/framepump/driver"
	"github.com/gogpu/gputypes"
)

// DefaultAcquireTimeout bounds AcquireNext when Options.AcquireTimeout is zero.
const DefaultAcquireTimeout = time.Second

var (
	// ErrZeroExtent is returned by Build when the surface has no area.
	ErrZeroExtent = errors.New("swapchain: surface extent is zero")

	// ErrNotBuilt is returned when the chain is used before Build.
	ErrNotBuilt = errors.New("swapchain: not built")

	// ErrAlreadyBuilt is returned by Build on a built chain.
	ErrAlreadyBuilt = errors.New("swapchain: already built")
)

// Status is the outcome of an acquire or present.
type Status int

const (
	// StatusOK means the chain matches the surface.
	StatusOK Status = iota
	// StatusSuboptimal means the chain still works but no longer matches
	// the surface exactly.
	StatusSuboptimal
	// StatusOutOfDate means the chain can no longer be used and must be
	// rebuilt.
	StatusOutOfDate
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusSuboptimal:
		return "suboptimal"
	case StatusOutOfDate:
		return "out-of-date"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Options configures chain negotiation.
type Options struct {
	Label string

	// PreferredFormats defaults to DefaultFormats.
	PreferredFormats []gputypes.TextureFormat
	// PreferredPresentModes defaults to DefaultPresentModes.
	PreferredPresentModes []gputypes.PresentMode
	// ImageCount is the desired image count; zero means minImageCount+1.
	ImageCount int

	// DepthFormat enables a shared depth target when not Undefined.
	DepthFormat gputypes.TextureFormat

	// ClearColor is the color the render pass clears to.
	ClearColor gputypes.Color

	// AcquireTimeout bounds AcquireNext.
	AcquireTimeout time.Duration
}

// Image is one presentable image with its view and framebuffer.
type Image struct {
	Image       driver.Image
	View        driver.ImageView
	Framebuffer driver.Framebuffer
}

// Chain is the presentable image chain. It is not safe for concurrent use.
type Chain struct {
	dev     driver.Device
	surface driver.Surface
	opts    Options

	sc         driver.Swapchain
	images     []Image
	depth      driver.Image
	depthView  driver.ImageView
	renderPass driver.RenderPass

	format      gputypes.TextureFormat
	presentMode gputypes.PresentMode
	extent      driver.Extent
	generation  uint64
	built       bool
}

// New returns an unbuilt chain for surface.
func New(dev driver.Device, surface driver.Surface, opts Options) *Chain {
	if opts.Label == "" {
		opts.Label = "swapchain"
	}
	if len(opts.PreferredFormats) == 0 {
		opts.PreferredFormats = DefaultFormats
	}
	if len(opts.PreferredPresentModes) == 0 {
		opts.PreferredPresentModes = DefaultPresentModes
	}
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = DefaultAcquireTimeout
	}
	return &Chain{dev: dev, surface: surface, opts: opts}
}

// Build negotiates with the surface and creates the swapchain, image views,
// optional depth target, render pass and framebuffers.
//
// Build is all-or-nothing: on failure every resource created by this call is
// destroyed before the error is returned.
func (c *Chain) Build() error {
	if c.built {
		return ErrAlreadyBuilt
	}

	// Step 1: negotiate.
	caps, err := c.surface.Capabilities()
	if err != nil {
		return driver.DeviceError("surface capabilities", err)
	}
	format, err := ChooseFormat(caps, c.opts.PreferredFormats)
	if err != nil {
		return err
	}
	mode, err := ChoosePresentMode(caps, c.opts.PreferredPresentModes)
	if err != nil {
		return err
	}
	framebuffer := c.surface.FramebufferSize()
	zero := framebuffer.IsZero()
	if !caps.CurrentExtent.IsUndefined() {
		zero = caps.CurrentExtent.IsZero()
	}
	if zero {
		return ErrZeroExtent
	}
	extent := ChooseExtent(caps, framebuffer)
	count := ChooseImageCount(caps, c.opts.ImageCount)

	if err := c.create(caps, format, mode, extent, count); err != nil {
		c.destroy()
		return err
	}

	c.format, c.presentMode, c.extent = format, mode, extent
	c.generation++
	c.built = true
	slogger().Info("swapchain: built",
		"format", format.String(),
		"present_mode", mode.String(),
		"extent", extent.String(),
		"images", len(c.images),
		"depth", c.opts.DepthFormat != gputypes.TextureFormatUndefined,
		"generation", c.generation)
	return nil
}

func (c *Chain) create(caps *driver.SurfaceCapabilities, format gputypes.TextureFormat, mode gputypes.PresentMode, extent driver.Extent, count uint32) error {
	detail := fmt.Sprintf("%s %s", format, extent)

	// Step 2: swapchain and color views.
	sc, err := c.dev.CreateSwapchain(c.surface, &driver.SwapchainDescriptor{
		Label:       c.opts.Label,
		Format:      format,
		PresentMode: mode,
		AlphaMode:   chooseAlphaMode(caps),
		Usage:       gputypes.TextureUsageRenderAttachment,
		Extent:      extent,
		ImageCount:  count,
	})
	if err != nil {
		return driver.CreateError("swapchain", fmt.Sprintf("%s x%d %s", detail, count, mode), err)
	}
	c.sc = sc

	imgs := sc.Images()
	c.images = make([]Image, len(imgs))
	for i, img := range imgs {
		c.images[i].Image = img
		view, err := c.dev.CreateImageView(img, &driver.ImageViewDescriptor{
			Label:  fmt.Sprintf("%s view %d", c.opts.Label, i),
			Format: format,
			Aspect: gputypes.TextureAspectAll,
		})
		if err != nil {
			return driver.CreateError("image view", fmt.Sprintf("%s image %d", detail, i), err)
		}
		c.images[i].View = view
	}

	// Step 3: shared depth target.
	if df := c.opts.DepthFormat; df != gputypes.TextureFormatUndefined {
		ddetail := fmt.Sprintf("%s %s", df, extent)
		depth, err := c.dev.CreateImage(&driver.ImageDescriptor{
			Label:  c.opts.Label + " depth",
			Format: df,
			Usage:  gputypes.TextureUsageRenderAttachment,
			Extent: extent,
		})
		if err != nil {
			return driver.CreateError("depth image", ddetail, err)
		}
		c.depth = depth
		view, err := c.dev.CreateImageView(depth, &driver.ImageViewDescriptor{
			Label:  c.opts.Label + " depth view",
			Format: df,
			Aspect: gputypes.TextureAspectDepthOnly,
		})
		if err != nil {
			return driver.CreateError("depth image view", ddetail, err)
		}
		c.depthView = view
	}

	// Step 4: render pass and framebuffers.
	rp, err := c.dev.CreateRenderPass(&driver.RenderPassDescriptor{
		Label:       c.opts.Label + " render pass",
		ColorFormat: format,
		DepthFormat: c.opts.DepthFormat,
		ColorLoadOp: gputypes.LoadOpClear,
		ClearColor:  c.opts.ClearColor,
	})
	if err != nil {
		return driver.CreateError("render pass", fmt.Sprintf("color %s depth %s", format, c.opts.DepthFormat), err)
	}
	c.renderPass = rp

	for i := range c.images {
		fb, err := c.dev.CreateFramebuffer(&driver.FramebufferDescriptor{
			Label:      fmt.Sprintf("%s framebuffer %d", c.opts.Label, i),
			RenderPass: rp,
			Color:      c.images[i].View,
			Depth:      c.depthView,
			Extent:     extent,
			ImageIndex: i,
		})
		if err != nil {
			return driver.CreateError("framebuffer", fmt.Sprintf("%s image %d", detail, i), err)
		}
		c.images[i].Framebuffer = fb
	}
	return nil
}

// destroy releases whatever exists: framebuffers, render pass, image views,
// depth target, then the swapchain. Views and framebuffers reference the
// swapchain images and the render pass, so they go first.
func (c *Chain) destroy() {
	for i := range c.images {
		c.dev.DestroyFramebuffer(c.images[i].Framebuffer)
		c.images[i].Framebuffer = nil
	}
	c.dev.DestroyRenderPass(c.renderPass)
	c.renderPass = nil
	for i := range c.images {
		c.dev.DestroyImageView(c.images[i].View)
		c.images[i].View = nil
	}
	c.dev.DestroyImageView(c.depthView)
	c.depthView = nil
	c.dev.DestroyImage(c.depth)
	c.depth = nil
	c.dev.DestroySwapchain(c.sc)
	c.sc = nil
	c.images = nil
}

// Teardown destroys every chain resource. It is safe to call on an unbuilt
// or already torn down chain. Callers must ensure no pending GPU work
// references the chain.
func (c *Chain) Teardown() {
	if !c.built {
		return
	}
	c.destroy()
	c.built = false
	slogger().Debug("swapchain: torn down", "generation", c.generation)
}

// Rebuild tears the chain down and builds it again against the surface's
// current extent.
func (c *Chain) Rebuild() error {
	c.Teardown()
	return c.Build()
}

// AcquireNext returns the index of the next image and arranges for signal to
// be signaled once the image may be written. The index is only valid with
// StatusOK or StatusSuboptimal.
func (c *Chain) AcquireNext(signal driver.Semaphore) (int, Status, error) {
	if !c.built {
		return -1, StatusOutOfDate, ErrNotBuilt
	}
	idx, st, err := c.sc.AcquireNext(signal, c.opts.AcquireTimeout)
	if err != nil {
		return -1, StatusOK, driver.DeviceError("acquire", err)
	}
	status, err := fromSurfaceStatus("acquire", st)
	if err != nil {
		return -1, status, err
	}
	if status == StatusOutOfDate {
		return -1, status, nil
	}
	if idx < 0 || idx >= len(c.images) {
		return -1, status, driver.DeviceError("acquire", fmt.Errorf("image index %d out of range [0,%d)", idx, len(c.images)))
	}
	return idx, status, nil
}

// Present queues image imageIndex for display once waitOn is signaled.
func (c *Chain) Present(q driver.Queue, waitOn driver.Semaphore, imageIndex int) (Status, error) {
	if !c.built {
		return StatusOutOfDate, ErrNotBuilt
	}
	st, err := q.Present(c.sc, imageIndex, waitOn)
	if err != nil {
		return StatusOK, driver.DeviceError("present", err)
	}
	return fromSurfaceStatus("present", st)
}

func fromSurfaceStatus(op string, st gputypes.SurfaceStatus) (Status, error) {
	switch st {
	case gputypes.SurfaceStatusGood:
		return StatusOK, nil
	case gputypes.SurfaceStatusSuboptimal:
		return StatusSuboptimal, nil
	case gputypes.SurfaceStatusOutdated:
		return StatusOutOfDate, nil
	case gputypes.SurfaceStatusTimeout:
		return StatusOK, driver.DeviceError(op, driver.ErrTimeout)
	case gputypes.SurfaceStatusLost:
		return StatusOK, driver.DeviceError(op, fmt.Errorf("surface lost: %w", driver.ErrDeviceLost))
	default:
		return StatusOK, driver.DeviceError(op, fmt.Errorf("unexpected surface status %s", st))
	}
}

// Built reports whether the chain currently holds resources.
func (c *Chain) Built() bool { return c.built }

// ImageCount returns the number of presentable images.
func (c *Chain) ImageCount() int { return len(c.images) }

// Extent returns the negotiated extent.
func (c *Chain) Extent() driver.Extent { return c.extent }

// Format returns the negotiated color format.
func (c *Chain) Format() gputypes.TextureFormat { return c.format }

// PresentMode returns the negotiated present mode.
func (c *Chain) PresentMode() gputypes.PresentMode { return c.presentMode }

// DepthFormat returns the depth format, or Undefined without depth.
func (c *Chain) DepthFormat() gputypes.TextureFormat { return c.opts.DepthFormat }

// RenderPass returns the render pass compatible with the chain.
func (c *Chain) RenderPass() driver.RenderPass { return c.renderPass }

// Image returns presentable image i.
func (c *Chain) Image(i int) Image { return c.images[i] }

// Framebuffer returns the framebuffer of image i.
func (c *Chain) Framebuffer(i int) driver.Framebuffer { return c.images[i].Framebuffer }

// Generation counts successful builds. Recorders caching per-chain objects
// compare it to detect a rebuild.
func (c *Chain) Generation() uint64 { return c.generation }
