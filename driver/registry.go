// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package driver

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/gogpu/gpucontext"
)

// Backend names.
const (
	BackendWGPU = "wgpu"
	BackendNoop = "noop"
)

// NativeHandles are the platform window handles a backend needs to create a
// presentation surface. Headless backends ignore them.
type NativeHandles struct {
	Display uintptr
	Window  uintptr
}

// Backend opens a device, queue and surface for a window.
type Backend interface {
	// Name returns the registry name of the backend.
	Name() string

	// Open creates a device context presenting to the given window.
	Open(ctx context.Context, window gpucontext.WindowProvider, handles NativeHandles) (*Context, error)
}

// Context is an opened backend: the device, its queue and the window surface.
// The device is owned by the Context; swapchains and frame pumps borrow it.
type Context struct {
	Device  Device
	Queue   Queue
	Surface Surface

	closeOnce sync.Once
	release   func() error
	err       error
}

// NewContext assembles a Context. release is called once by Close.
func NewContext(dev Device, q Queue, surf Surface, release func() error) *Context {
	return &Context{Device: dev, Queue: q, Surface: surf, release: release}
}

// Close releases the surface, queue and device. Callers must tear down every
// swapchain and frame pump built on the context first.
func (c *Context) Close() error {
	c.closeOnce.Do(func() {
		if c.release != nil {
			c.err = c.release()
		}
	})
	return c.err
}

// BackendFactory creates a new backend instance.
type BackendFactory func() Backend

// Priority order for backend selection (first available wins).
var backends = gpucontext.NewRegistry[Backend](
	gpucontext.WithPriority(BackendWGPU, BackendNoop),
)

// Register registers a backend factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it will be replaced.
func Register(name string, factory BackendFactory) {
	backends.Register(name, factory)
}

// Unregister removes a backend from the registry.
func Unregister(name string) {
	backends.Unregister(name)
}

// Available returns the registered backend names in sorted order.
func Available() []string {
	names := backends.Available()
	sort.Strings(names)
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	return backends.Has(name)
}

// Get returns a backend instance by name, or nil if it is not registered.
func Get(name string) Backend {
	return backends.Get(name)
}

// Default returns the best available backend based on priority,
// or nil if no backends are registered.
func Default() Backend {
	return backends.Best()
}

// MustDefault returns the default backend or panics.
func MustDefault() Backend {
	b := Default()
	if b == nil {
		panic("driver: no backend available")
	}
	return b
}

// Lookup returns the backend registered under name, or the default backend
// when name is empty.
func Lookup(name string) (Backend, error) {
	var b Backend
	if name == "" {
		b = Default()
	} else {
		b = Get(name)
	}
	if b == nil {
		if name == "" {
			return nil, ErrBackendNotAvailable
		}
		return nil, fmt.Errorf("%w: %q", ErrBackendNotAvailable, name)
	}
	return b, nil
}
