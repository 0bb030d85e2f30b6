// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package drivertest

import (
	"sync"

	"github.com/gogpu/framepump/driver"
	"github.com/gogpu/gputypes"
)

// SurfaceOptions configures the capabilities reported by a fake surface.
type SurfaceOptions struct {
	Formats       []gputypes.TextureFormat
	PresentModes  []gputypes.PresentMode
	MinImageCount uint32
	MaxImageCount uint32
	MinExtent     driver.Extent
	MaxExtent     driver.Extent
	// ClientSized makes the surface report driver.UndefinedExtent so the
	// swapchain extent comes from the framebuffer size.
	ClientSized bool
}

// DefaultSurfaceOptions returns a typical desktop surface: sRGB and linear
// BGRA formats, FIFO and mailbox, 2..3 images.
func DefaultSurfaceOptions() SurfaceOptions {
	return SurfaceOptions{
		Formats: []gputypes.TextureFormat{
			gputypes.TextureFormatBGRA8Unorm,
			gputypes.TextureFormatBGRA8UnormSrgb,
		},
		PresentModes:  []gputypes.PresentMode{gputypes.PresentModeFifo, gputypes.PresentModeMailbox},
		MinImageCount: 2,
		MaxImageCount: 3,
		MinExtent:     driver.Extent{Width: 1, Height: 1},
		MaxExtent:     driver.Extent{Width: 16384, Height: 16384},
	}
}

// Surface is a fake window surface. Its size changes when queued sizes are
// delivered by PollEvents, which makes it usable as the platform event pump.
type Surface struct {
	mu      sync.Mutex
	opts    SurfaceOptions
	size    driver.Extent
	queued  []driver.Extent
	polls   int
	queries int
}

// NewSurface returns a surface of the given size.
func NewSurface(width, height uint32, opts SurfaceOptions) *Surface {
	return &Surface{opts: opts, size: driver.Extent{Width: width, Height: height}}
}

// SetSize changes the framebuffer size immediately.
func (s *Surface) SetSize(width, height uint32) {
	s.mu.Lock()
	s.size = driver.Extent{Width: width, Height: height}
	s.mu.Unlock()
}

// QueueSizes queues sizes applied one per PollEvents call.
func (s *Surface) QueueSizes(sizes ...driver.Extent) {
	s.mu.Lock()
	s.queued = append(s.queued, sizes...)
	s.mu.Unlock()
}

// PollEvents applies the next queued size, if any.
func (s *Surface) PollEvents() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls++
	if len(s.queued) > 0 {
		s.size = s.queued[0]
		s.queued = s.queued[1:]
	}
}

// Polls returns how many times PollEvents was called.
func (s *Surface) Polls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls
}

// CapabilityQueries returns how many times Capabilities was called.
func (s *Surface) CapabilityQueries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries
}

// FramebufferSize returns the current size.
func (s *Surface) FramebufferSize() driver.Extent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Capabilities returns the configured capabilities for the current size.
func (s *Surface) Capabilities() (*driver.SurfaceCapabilities, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	current := s.size
	if s.opts.ClientSized {
		current = driver.UndefinedExtent
	}
	return &driver.SurfaceCapabilities{
		Formats:       append([]gputypes.TextureFormat(nil), s.opts.Formats...),
		PresentModes:  append([]gputypes.PresentMode(nil), s.opts.PresentModes...),
		AlphaModes:    []gputypes.CompositeAlphaMode{gputypes.CompositeAlphaModeOpaque},
		MinImageCount: s.opts.MinImageCount,
		MaxImageCount: s.opts.MaxImageCount,
		CurrentExtent: current,
		MinExtent:     s.opts.MinExtent,
		MaxExtent:     s.opts.MaxExtent,
	}, nil
}

var _ driver.Surface = (*Surface)(nil)
