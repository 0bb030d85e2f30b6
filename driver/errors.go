// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package driver

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrDeviceLost is returned when the GPU context is no longer usable.
	ErrDeviceLost = errors.New("driver: device lost")

	// ErrTimeout is returned when a bounded wait expires.
	ErrTimeout = errors.New("driver: timeout")

	// ErrBackendNotAvailable is returned when no backend is registered
	// under the requested name.
	ErrBackendNotAvailable = errors.New("driver: backend not available")

	// ErrForeignHandle is returned when a handle created by another
	// backend is passed in.
	ErrForeignHandle = errors.New("driver: handle belongs to another backend")
)

// ResourceCreationError reports a failed primitive or resource allocation.
type ResourceCreationError struct {
	// Resource names what was being created ("fence", "swapchain", ...).
	Resource string
	// Detail carries the size/format context, e.g. "bgra8unorm-srgb 800x600".
	Detail string
	Err    error
}

func (e *ResourceCreationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("driver: create %s: %v", e.Resource, e.Err)
	}
	return fmt.Sprintf("driver: create %s (%s): %v", e.Resource, e.Detail, e.Err)
}

func (e *ResourceCreationError) Unwrap() error { return e.Err }

// GraphicsDeviceError reports a fatal device failure: device loss, an
// exceeded wait bound, or an unexpected status from acquire, submit or
// present. The render loop is expected to shut down.
type GraphicsDeviceError struct {
	// Op is the failing operation ("acquire", "submit", "present", "wait").
	Op  string
	Err error
}

func (e *GraphicsDeviceError) Error() string {
	return fmt.Sprintf("driver: %s: %v", e.Op, e.Err)
}

func (e *GraphicsDeviceError) Unwrap() error { return e.Err }

// SurfaceUnsupportedError is returned when no format or present mode can be
// negotiated with a surface.
type SurfaceUnsupportedError struct {
	Reason string
}

func (e *SurfaceUnsupportedError) Error() string {
	return "driver: surface unsupported: " + e.Reason
}

// CreateError wraps err as a ResourceCreationError. It returns nil for nil.
func CreateError(resource, detail string, err error) error {
	if err == nil {
		return nil
	}
	var rce *ResourceCreationError
	if errors.As(err, &rce) {
		return err
	}
	return &ResourceCreationError{Resource: resource, Detail: detail, Err: err}
}

// DeviceError wraps err as a GraphicsDeviceError. It returns nil for nil and
// leaves an existing GraphicsDeviceError untouched.
func DeviceError(op string, err error) error {
	if err == nil {
		return nil
	}
	var gde *GraphicsDeviceError
	if errors.As(err, &gde) {
		return err
	}
	return &GraphicsDeviceError{Op: op, Err: err}
}

// IsFatal reports whether err is a device loss or timeout.
func IsFatal(err error) bool {
	var gde *GraphicsDeviceError
	return errors.As(err, &gde) || errors.Is(err, ErrDeviceLost) || errors.Is(err, ErrTimeout)
}
