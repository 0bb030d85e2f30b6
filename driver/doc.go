// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package driver defines the narrow contracts the frame pump consumes from a
// graphics backend: a device that creates synchronization primitives and
// presentation resources, a queue that submits and presents, and a surface
// that reports its capabilities and live size.
//
// Handles are opaque. A backend hands out its own concrete types and expects
// to receive them back; mixing handles between devices is a programming error.
//
// # Synchronization primitives
//
// A [Fence] is a CPU-wait primitive: the host blocks on it with
// [Device.WaitFence] until the GPU work submitted with it has retired.
// A [Semaphore] is a GPU-wait primitive: it orders one submission (or a
// present) after another without host involvement.
//
// # Errors
//
// Creation failures are reported as [*ResourceCreationError]. Device loss,
// timeouts and unexpected backend failures are reported as
// [*GraphicsDeviceError]. Out-of-date and suboptimal surfaces are not errors;
// they are returned as [gputypes.SurfaceStatus] values.
//
// # Backends
//
// Backends register themselves with [Register] from an init function and are
// selected with [Open] or [Default].
package driver
