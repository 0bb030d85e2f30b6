// Package wgpu implements the framepump driver contracts on top of the
// gogpu/wgpu hardware abstraction layer.
//
// Importing the package registers two backends with the driver registry:
//
//   - "wgpu": the best HAL backend for the platform (Vulkan, Metal, DX12,
//     GLES, with the software rasterizer as fallback)
//   - "noop": the HAL noop backend, for headless runs and tests
//
//	import _ "github.com/gogpu/framepump/backend/wgpu"
//
//	b, err := driver.Lookup(cfg.Backend)
//	bctx, err := b.Open(ctx, window, handles)
//	defer bctx.Close()
//
// # Mapping
//
// The HAL exposes a WebGPU-shaped API, so several driver primitives are
// emulated:
//
//   - Fences remember the index of the submission that signals them and
//     are polled against Queue.PollCompleted.
//   - Semaphores are tokens. The HAL queue executes submissions in order
//     and presents after them, so a wait only checks that the matching
//     signal happened.
//   - Swapchain images are logical slots handed out round robin. The
//     surface texture returned by each acquire is bound to the slot, and
//     views of it are created then. They are destroyed once the
//     submissions that used them complete.
//   - Render passes and framebuffers are descriptions; [BeginRenderPass]
//     turns them into a HAL render pass on a command list.
//
// HAL errors surface as driver errors: ErrSurfaceOutdated and ErrZeroArea
// become an out-of-date status, ErrSurfaceLost a lost status, and
// ErrDeviceLost a [driver.GraphicsDeviceError] wrapping
// [driver.ErrDeviceLost].
package wgpu
