// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package desktop

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScaleFactor(t *testing.T) {
	tests := []struct {
		name       string
		width, fbw int
		want       float64
	}{
		{"unscaled", 800, 800, 1},
		{"retina", 800, 1600, 2},
		{"fractional", 1000, 1250, 1.25},
		{"minimized", 0, 0, 1},
		{"zero framebuffer", 800, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, scaleFactor(tt.width, tt.fbw), 1e-9)
		})
	}
}

func TestResizeDispatch(t *testing.T) {
	w := &Window{}
	var got [][2]int
	w.OnResize(func(width, height int) { got = append(got, [2]int{width, height}) })
	w.OnResize(func(width, height int) { got = append(got, [2]int{-width, -height}) })

	w.dispatchResize(640, 480)
	assert.Equal(t, [][2]int{{640, 480}, {-640, -480}}, got)
}

func TestFocusDispatch(t *testing.T) {
	w := &Window{}
	var got []bool
	w.OnFocus(func(focused bool) { got = append(got, focused) })
	w.dispatchFocus(false)
	w.dispatchFocus(true)
	assert.Equal(t, []bool{false, true}, got)
}

func TestCloseWithoutWindow(t *testing.T) {
	w := &Window{}
	assert.NotPanics(t, w.Close)
}
