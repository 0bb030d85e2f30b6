// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !windows && !((linux || freebsd || netbsd || openbsd) && !wayland)

package desktop

import (
	"fmt"
	"runtime"

	"github.com/gogpu/framepump/driver"
)

// NativeHandles is not available on this platform.
func (w *Window) NativeHandles() (driver.NativeHandles, error) {
	return driver.NativeHandles{}, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, runtime.GOOS)
}
