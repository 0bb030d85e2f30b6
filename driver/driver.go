// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package driver

import (
	"context"
	"time"

	"github.com/gogpu/gputypes"
)

// Handle is implemented by every opaque resource handle.
type Handle interface {
	// Label returns the debug label given at creation.
	Label() string
}

// Fence is a CPU-wait primitive signaled by the GPU when a submission retires.
type Fence interface{ Handle }

// Semaphore is a GPU-wait primitive ordering GPU work without host involvement.
type Semaphore interface{ Handle }

// Image is a GPU-visible texture: a swapchain image or a depth target.
type Image interface{ Handle }

// ImageView is a view of an Image usable as a render attachment.
type ImageView interface{ Handle }

// RenderPass describes attachment formats and load/store behavior.
type RenderPass interface{ Handle }

// Framebuffer binds image views to a render pass.
type Framebuffer interface{ Handle }

// Device creates and destroys synchronization primitives and presentation
// resources.
//
// Destroy methods accept nil and are no-ops for it. Destroying a resource
// still referenced by pending GPU work is undefined behavior; callers drain
// first.
type Device interface {
	// CreateFence creates a fence, optionally already in the signaled state.
	CreateFence(signaled bool) (Fence, error)
	DestroyFence(f Fence)

	// WaitFence blocks until f is signaled, timeout elapses or ctx is done.
	// It reports false on timeout.
	WaitFence(ctx context.Context, f Fence, timeout time.Duration) (bool, error)

	// ResetFence returns f to the unsignaled state.
	ResetFence(f Fence) error

	// FenceSignaled reports whether f is signaled without blocking.
	FenceSignaled(f Fence) (bool, error)

	// CreateSemaphore creates an unsignaled semaphore.
	CreateSemaphore(label string) (Semaphore, error)
	DestroySemaphore(s Semaphore)

	CreateSwapchain(surface Surface, desc *SwapchainDescriptor) (Swapchain, error)
	DestroySwapchain(sc Swapchain)

	CreateImage(desc *ImageDescriptor) (Image, error)
	DestroyImage(img Image)

	CreateImageView(img Image, desc *ImageViewDescriptor) (ImageView, error)
	DestroyImageView(view ImageView)

	CreateRenderPass(desc *RenderPassDescriptor) (RenderPass, error)
	DestroyRenderPass(rp RenderPass)

	CreateFramebuffer(desc *FramebufferDescriptor) (Framebuffer, error)
	DestroyFramebuffer(fb Framebuffer)

	CreateCommandList(label string) (CommandList, error)
	FreeCommandList(cl CommandList)

	// WaitIdle blocks until all submitted work has completed.
	WaitIdle() error
}

// Queue submits recorded work and presents swapchain images.
type Queue interface {
	// Submit enqueues command lists. The GPU starts the work after every
	// wait semaphore is signaled, then signals every signal semaphore and
	// finally the fence.
	Submit(info *SubmitInfo) error

	// Present hands image imageIndex of sc to the display once waitOn is
	// signaled. Out-of-date and suboptimal results are reported through the
	// status, not the error.
	Present(sc Swapchain, imageIndex int, waitOn Semaphore) (gputypes.SurfaceStatus, error)
}

// Surface is the presentation target of a window.
type Surface interface {
	// Capabilities returns the negotiation data for the surface. It may be
	// called at any time, including right after an invalidation.
	Capabilities() (*SurfaceCapabilities, error)

	// FramebufferSize returns the live drawable size in pixels.
	// A minimized window reports a zero extent.
	FramebufferSize() Extent
}

// Swapchain is the surface-owned set of presentable images.
type Swapchain interface {
	Handle

	// Images returns the presentable images in index order.
	Images() []Image

	// AcquireNext returns the index of the next image available for
	// rendering and arranges for signal to be signaled once the image may
	// be written. Outdated and suboptimal results are reported through the
	// status.
	AcquireNext(signal Semaphore, timeout time.Duration) (int, gputypes.SurfaceStatus, error)
}

// CommandList is a reusable command buffer.
type CommandList interface {
	Handle

	// Reset discards previously recorded commands.
	Reset() error

	// Begin starts recording.
	Begin() error

	// End finishes recording and makes the list ready for submission.
	End() error
}

// PipelineStage identifies the point in the pipeline at which a semaphore
// wait takes effect.
type PipelineStage uint32

// Pipeline stages used for semaphore waits.
const (
	StageTopOfPipe PipelineStage = 1 << iota
	StageColorAttachmentOutput
	StageComputeShader
	StageTransfer
	StageBottomOfPipe
)

// String returns the stage name.
func (s PipelineStage) String() string {
	switch s {
	case StageTopOfPipe:
		return "top-of-pipe"
	case StageColorAttachmentOutput:
		return "color-attachment-output"
	case StageComputeShader:
		return "compute-shader"
	case StageTransfer:
		return "transfer"
	case StageBottomOfPipe:
		return "bottom-of-pipe"
	default:
		return "unknown"
	}
}

// SemaphoreWait is a wait dependency of a submission.
type SemaphoreWait struct {
	Semaphore Semaphore
	Stage     PipelineStage
}

// SubmitInfo describes one queue submission.
type SubmitInfo struct {
	CommandLists []CommandList
	Waits        []SemaphoreWait
	Signals      []Semaphore

	// Fence is signaled after all command lists complete. May be nil.
	Fence Fence

	// Target is the swapchain image the work renders into, or -1.
	// Backends that track per-image hazards use it; others ignore it.
	Target int
}
