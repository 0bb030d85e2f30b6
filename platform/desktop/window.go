// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package desktop provides a GLFW window that feeds a frame pump: it is a
// gpucontext.WindowProvider for the surface size, a gpucontext.EventSource
// for resize notifications and an event pump for the Suspended state.
//
// GLFW must be driven from the main OS thread. Programs call
// runtime.LockOSThread in an init function of package main.
package desktop

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/gogpu/framepump"
	"github.com/gogpu/gpucontext"
)

// ErrUnsupportedPlatform is returned by NativeHandles on platforms whose
// window handles the backends cannot consume.
var ErrUnsupportedPlatform = errors.New("desktop: unsupported platform")

// DefaultWaitTimeout bounds how long PollEvents blocks for an event.
const DefaultWaitTimeout = 50 * time.Millisecond

// Options configures a Window.
type Options struct {
	Title         string
	Width, Height int
	// WaitTimeout is how long PollEvents waits for an event while the pump
	// is suspended. Zero uses DefaultWaitTimeout.
	WaitTimeout time.Duration
}

// Window is a resizable GLFW window without a client API.
type Window struct {
	gpucontext.NullEventSource

	glw  *glfw.Window
	wait time.Duration

	mu     sync.Mutex
	resize []func(width, height int)
	focus  []func(focused bool)
}

var _ gpucontext.WindowProvider = (*Window)(nil)
var _ gpucontext.EventSource = (*Window)(nil)

// New initializes GLFW and opens a window.
func New(opts Options) (*Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("desktop: init glfw: %w", err)
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glw, err := glfw.CreateWindow(opts.Width, opts.Height, opts.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("desktop: create window: %w", err)
	}

	w := &Window{glw: glw, wait: opts.WaitTimeout}
	if w.wait <= 0 {
		w.wait = DefaultWaitTimeout
	}
	glw.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.dispatchResize(width, height)
	})
	glw.SetFocusCallback(func(_ *glfw.Window, focused bool) {
		w.dispatchFocus(focused)
	})
	framepump.Logger().Info("desktop: window opened", "title", opts.Title, "width", opts.Width, "height", opts.Height)
	return w, nil
}

// Size returns the window size in screen coordinates.
func (w *Window) Size() (width, height int) { return w.glw.GetSize() }

// ScaleFactor returns the ratio of framebuffer pixels to screen
// coordinates.
func (w *Window) ScaleFactor() float64 {
	width, _ := w.glw.GetSize()
	fbw, _ := w.glw.GetFramebufferSize()
	return scaleFactor(width, fbw)
}

func scaleFactor(width, framebufferWidth int) float64 {
	if width <= 0 || framebufferWidth <= 0 {
		return 1
	}
	return float64(framebufferWidth) / float64(width)
}

// RequestRedraw wakes a blocked PollEvents.
func (w *Window) RequestRedraw() { glfw.PostEmptyEvent() }

// OnResize registers fn for framebuffer size changes, in pixels.
func (w *Window) OnResize(fn func(width, height int)) {
	w.mu.Lock()
	w.resize = append(w.resize, fn)
	w.mu.Unlock()
}

// OnFocus registers fn for focus changes.
func (w *Window) OnFocus(fn func(focused bool)) {
	w.mu.Lock()
	w.focus = append(w.focus, fn)
	w.mu.Unlock()
}

func (w *Window) dispatchResize(width, height int) {
	w.mu.Lock()
	fns := append([]func(int, int){}, w.resize...)
	w.mu.Unlock()
	for _, fn := range fns {
		fn(width, height)
	}
}

func (w *Window) dispatchFocus(focused bool) {
	w.mu.Lock()
	fns := append([]func(bool){}, w.focus...)
	w.mu.Unlock()
	for _, fn := range fns {
		fn(focused)
	}
}

// PollEvents waits up to the configured timeout for events and processes
// them. The frame pump calls it while suspended.
func (w *Window) PollEvents() { glfw.WaitEventsTimeout(w.wait.Seconds()) }

// ProcessEvents processes pending events without blocking.
func (w *Window) ProcessEvents() { glfw.PollEvents() }

// ShouldClose reports whether the user asked to close the window.
func (w *Window) ShouldClose() bool { return w.glw.ShouldClose() }

// Close destroys the window and terminates GLFW.
func (w *Window) Close() {
	if w.glw == nil {
		return
	}
	w.glw.Destroy()
	w.glw = nil
	glfw.Terminate()
}
