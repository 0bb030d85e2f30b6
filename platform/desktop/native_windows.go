// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build windows

package desktop

import (
	"fmt"
	"unsafe"

	"github.com/gogpu/framepump/driver"
	"golang.org/x/sys/windows"
)

// NativeHandles returns the module instance and the HWND.
func (w *Window) NativeHandles() (driver.NativeHandles, error) {
	var module windows.Handle
	if err := windows.GetModuleHandleEx(0, nil, &module); err != nil {
		return driver.NativeHandles{}, fmt.Errorf("desktop: module handle: %w", err)
	}
	return driver.NativeHandles{
		Display: uintptr(module),
		Window:  uintptr(unsafe.Pointer(w.glw.GetWin32Window())),
	}, nil
}
