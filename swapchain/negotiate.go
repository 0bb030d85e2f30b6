// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package swapchain

import (
	"github.com/gogpu/framepump/driver"
	"github.com/gogpu/gputypes"
)

// DefaultFormats are the preferred color formats, sRGB first.
var DefaultFormats = []gputypes.TextureFormat{
	gputypes.TextureFormatBGRA8UnormSrgb,
	gputypes.TextureFormatRGBA8UnormSrgb,
}

// DefaultPresentModes are the preferred low-latency present modes.
// FIFO is always the fallback.
var DefaultPresentModes = []gputypes.PresentMode{
	gputypes.PresentModeMailbox,
	gputypes.PresentModeImmediate,
}

// ChooseFormat picks the first preferred format the surface supports,
// otherwise the first supported format.
func ChooseFormat(caps *driver.SurfaceCapabilities, preferred []gputypes.TextureFormat) (gputypes.TextureFormat, error) {
	if len(caps.Formats) == 0 {
		return gputypes.TextureFormatUndefined, &driver.SurfaceUnsupportedError{Reason: "no surface formats"}
	}
	for _, f := range preferred {
		if caps.SupportsFormat(f) {
			return f, nil
		}
	}
	return caps.Formats[0], nil
}

// ChoosePresentMode picks the first preferred present mode the surface
// supports, otherwise FIFO.
func ChoosePresentMode(caps *driver.SurfaceCapabilities, preferred []gputypes.PresentMode) (gputypes.PresentMode, error) {
	for _, m := range preferred {
		if caps.SupportsPresentMode(m) {
			return m, nil
		}
	}
	if caps.SupportsPresentMode(gputypes.PresentModeFifo) {
		return gputypes.PresentModeFifo, nil
	}
	return gputypes.PresentModeUndefined, &driver.SurfaceUnsupportedError{Reason: "no usable present mode"}
}

// ChooseExtent returns the surface's current extent, or the framebuffer size
// when the surface leaves the choice to the client, clamped to the surface
// limits.
func ChooseExtent(caps *driver.SurfaceCapabilities, framebuffer driver.Extent) driver.Extent {
	e := caps.CurrentExtent
	if e.IsUndefined() {
		e = framebuffer
	}
	return e.Clamp(caps.MinExtent, caps.MaxExtent)
}

// ChooseImageCount returns desired (or minImageCount+1 when desired is zero),
// at least minImageCount and at most maxImageCount when the surface has a
// limit.
func ChooseImageCount(caps *driver.SurfaceCapabilities, desired int) uint32 {
	n := caps.MinImageCount + 1
	if desired > 0 {
		n = uint32(desired)
	}
	if n < caps.MinImageCount {
		n = caps.MinImageCount
	}
	if caps.MaxImageCount > 0 && n > caps.MaxImageCount {
		n = caps.MaxImageCount
	}
	if n == 0 {
		n = 1
	}
	return n
}

func chooseAlphaMode(caps *driver.SurfaceCapabilities) gputypes.CompositeAlphaMode {
	for _, m := range caps.AlphaModes {
		if m == gputypes.CompositeAlphaModeOpaque {
			return m
		}
	}
	if len(caps.AlphaModes) > 0 {
		return caps.AlphaModes[0]
	}
	return gputypes.CompositeAlphaModeAuto
}
