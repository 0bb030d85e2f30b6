// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build (linux || freebsd || netbsd || openbsd) && !wayland

package desktop

import (
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/gogpu/framepump/driver"
)

// NativeHandles returns the X11 display and window.
func (w *Window) NativeHandles() (driver.NativeHandles, error) {
	return driver.NativeHandles{
		Display: uintptr(unsafe.Pointer(glfw.GetX11Display())),
		Window:  uintptr(w.glw.GetX11Window()),
	}, nil
}
