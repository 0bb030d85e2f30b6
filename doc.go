// Package framepump drives the frame pipelining and presentation loop of a
// GPU renderer.
//
// # Overview
//
// A [Pump] repeats acquire, record, submit and present against a chain of
// presentable images, keeping a fixed number of frames in flight. It
// coordinates the CPU with the GPU through fences and semaphores, and
// recovers from surface invalidation (resize, minimize, surface change)
// without corrupting in-flight work.
//
// # Quick Start
//
//	bctx, err := backend.Open(ctx, window, handles) // a driver.Context
//	...
//	pump, err := framepump.New(bctx.Device, bctx.Queue, bctx.Surface,
//	    framepump.RecorderFunc(draw), window, framepump.DefaultConfig())
//	if err != nil { ... }
//	defer pump.Close()
//
//	for !window.ShouldClose() {
//	    window.PollEvents()
//	    if err := pump.RunFrame(ctx); err != nil { ... }
//	}
//
// # State machine
//
// One iteration moves through the states
//
//	Idle -> Acquiring -> Recording -> Submitting -> Presenting -> Idle
//
// An out-of-date acquire, or an out-of-date or suboptimal present, moves the
// pump to Invalidated. A suboptimal acquire still renders and presents the
// frame and rebuilds afterwards. From Invalidated the pump drains all
// in-flight work and rebuilds the chain, or enters Suspended while the
// surface has no area. In Suspended it only polls platform events.
//
// The frame slot advances once per iteration, including iterations that end
// early on an out-of-date acquire.
//
// # Errors
//
// Out-of-date and suboptimal surfaces never surface as errors. Resource
// creation failures are [*driver.ResourceCreationError]; device loss and
// exceeded wait bounds are [*driver.GraphicsDeviceError]. Both are fatal: the
// pump stops and the owner calls [Pump.Close], which drains before
// releasing anything.
//
// # Architecture
//
// The module is organized into:
//   - framepump: Pump, Config, Recorder, EventPump, logging
//   - driver: backend contracts and error taxonomy
//   - swapchain: presentable image chain
//   - frameslot: per-frame synchronization ring and image ownership
//   - pipeline: pipeline description and builder
//   - backend/wgpu: driver implementation over gogpu/wgpu HAL
//   - platform/desktop: desktop window and event pump
package framepump
