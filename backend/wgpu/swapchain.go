package wgpu

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gogpu/framepump/driver"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Surface implements driver.Surface for a window.
type Surface struct {
	hal     hal.Surface
	adapter hal.Adapter
	window  gpucontext.WindowProvider
	limits  gputypes.Limits

	configured bool
}

// NewSurface wraps a HAL surface created for window.
func NewSurface(s hal.Surface, adapter hal.Adapter, window gpucontext.WindowProvider, limits gputypes.Limits) *Surface {
	return &Surface{hal: s, adapter: adapter, window: window, limits: limits}
}

// FramebufferSize converts the window size in points to pixels.
func (s *Surface) FramebufferSize() driver.Extent {
	w, h := s.window.Size()
	scale := s.window.ScaleFactor()
	if scale <= 0 {
		scale = 1
	}
	return driver.Extent{Width: toPixels(w, scale), Height: toPixels(h, scale)}
}

func toPixels(points int, scale float64) uint32 {
	if points <= 0 {
		return 0
	}
	return uint32(math.Round(float64(points) * scale))
}

// Capabilities queries the adapter. The extent is chosen by the client.
func (s *Surface) Capabilities() (*driver.SurfaceCapabilities, error) {
	caps := s.adapter.SurfaceCapabilities(s.hal)
	if caps == nil {
		return nil, &driver.SurfaceUnsupportedError{Reason: "adapter cannot present to surface"}
	}
	maxDim := s.limits.MaxTextureDimension2D
	if maxDim == 0 {
		maxDim = gputypes.DefaultLimits().MaxTextureDimension2D
	}
	return &driver.SurfaceCapabilities{
		Formats:       caps.Formats,
		PresentModes:  caps.PresentModes,
		AlphaModes:    caps.AlphaModes,
		MinImageCount: 2,
		MaxImageCount: 3,
		CurrentExtent: driver.UndefinedExtent,
		MinExtent:     driver.Extent{Width: 1, Height: 1},
		MaxExtent:     driver.Extent{Width: maxDim, Height: maxDim},
	}, nil
}

// Swapchain implements driver.Swapchain over a configured HAL surface.
type Swapchain struct {
	handle
	Desc driver.SwapchainDescriptor

	dev     *Device
	surface *Surface
	images  []*Image
	next    int
}

func (sc *Swapchain) Images() []driver.Image {
	out := make([]driver.Image, len(sc.images))
	for i, img := range sc.images {
		out[i] = img
	}
	return out
}

// AcquireNext acquires a surface texture and binds it to the next image in
// round-robin order. The HAL acquire blocks on its own; timeout is not
// forwarded.
func (sc *Swapchain) AcquireNext(signal driver.Semaphore, _ time.Duration) (int, gputypes.SurfaceStatus, error) {
	sem, err := asSemaphore(signal)
	if err != nil {
		return -1, gputypes.SurfaceStatusUnknown, err
	}
	sc.dev.collect(false)

	img := sc.images[sc.next]
	if img.acquired != nil {
		return -1, gputypes.SurfaceStatusUnknown, fmt.Errorf("wgpu: image %d acquired twice", img.index)
	}
	acq, err := sc.surface.hal.AcquireTexture(nil)
	switch {
	case errors.Is(err, hal.ErrSurfaceOutdated), errors.Is(err, hal.ErrZeroArea):
		return -1, gputypes.SurfaceStatusOutdated, nil
	case errors.Is(err, hal.ErrSurfaceLost):
		return -1, gputypes.SurfaceStatusLost, nil
	case errors.Is(err, hal.ErrTimeout), errors.Is(err, hal.ErrNotReady):
		return -1, gputypes.SurfaceStatusTimeout, nil
	case err != nil:
		return -1, gputypes.SurfaceStatusUnknown, mapError("acquire", err)
	}
	if err := sc.dev.bind(img, acq.Texture); err != nil {
		sc.surface.hal.DiscardTexture(acq.Texture)
		return -1, gputypes.SurfaceStatusUnknown, err
	}
	sc.next = (sc.next + 1) % len(sc.images)
	sem.signaled = true

	if acq.Suboptimal {
		return img.index, gputypes.SurfaceStatusSuboptimal, nil
	}
	return img.index, gputypes.SurfaceStatusGood, nil
}

// Queue implements driver.Queue on a HAL queue.
type Queue struct {
	dev *Device
	hal hal.Queue

	mu   sync.Mutex
	last uint64
}

// HAL returns the underlying HAL queue.
func (q *Queue) HAL() hal.Queue { return q.hal }

func (q *Queue) lastSubmission() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.last
}

// Submit checks semaphore waits, submits the encoded buffers and attaches
// the submission index to the fence.
func (q *Queue) Submit(info *driver.SubmitInfo) error {
	waits := make([]*Semaphore, 0, len(info.Waits))
	for _, w := range info.Waits {
		sem, err := asSemaphore(w.Semaphore)
		if err != nil {
			return err
		}
		if !sem.signaled {
			return driver.DeviceError("submit", fmt.Errorf("%w: %s", errNotSignaled, sem.label))
		}
		waits = append(waits, sem)
	}
	signals := make([]*Semaphore, 0, len(info.Signals))
	for _, s := range info.Signals {
		sem, err := asSemaphore(s)
		if err != nil {
			return err
		}
		signals = append(signals, sem)
	}
	var fence *Fence
	if info.Fence != nil {
		f, err := asFence(info.Fence)
		if err != nil {
			return err
		}
		fence = f
	}

	bufs := make([]hal.CommandBuffer, 0, len(info.CommandLists))
	for _, cl := range info.CommandLists {
		c, ok := cl.(*CommandList)
		if !ok {
			return driver.ErrForeignHandle
		}
		if c.buf == nil {
			return fmt.Errorf("wgpu: command list %q submitted without End", c.label)
		}
		bufs = append(bufs, c.buf)
	}

	idx, err := q.hal.Submit(bufs)
	if err != nil {
		return mapError("submit", err)
	}

	q.mu.Lock()
	q.last = max(q.last, idx)
	q.mu.Unlock()
	for _, s := range waits {
		s.signaled = false
	}
	for _, s := range signals {
		s.signaled = true
	}
	if fence != nil {
		q.dev.mu.Lock()
		fence.submission = idx
		q.dev.mu.Unlock()
	}
	q.dev.collect(false)
	return nil
}

// Present presents the texture bound to image imageIndex.
func (q *Queue) Present(sc driver.Swapchain, imageIndex int, waitOn driver.Semaphore) (gputypes.SurfaceStatus, error) {
	s, ok := sc.(*Swapchain)
	if !ok {
		return gputypes.SurfaceStatusUnknown, driver.ErrForeignHandle
	}
	if imageIndex < 0 || imageIndex >= len(s.images) {
		return gputypes.SurfaceStatusUnknown, fmt.Errorf("wgpu: image index %d out of range", imageIndex)
	}
	img := s.images[imageIndex]
	if img.acquired == nil {
		return gputypes.SurfaceStatusUnknown, fmt.Errorf("wgpu: image %d presented without acquire", imageIndex)
	}
	if waitOn != nil {
		sem, err := asSemaphore(waitOn)
		if err != nil {
			return gputypes.SurfaceStatusUnknown, err
		}
		if !sem.signaled {
			return gputypes.SurfaceStatusUnknown, driver.DeviceError("present", fmt.Errorf("%w: %s", errNotSignaled, sem.label))
		}
		sem.signaled = false
	}

	err := q.hal.Present(s.surface.hal, img.acquired, nil)
	q.dev.unbind(img)
	switch {
	case err == nil:
		return gputypes.SurfaceStatusGood, nil
	case errors.Is(err, hal.ErrSurfaceOutdated), errors.Is(err, hal.ErrZeroArea):
		return gputypes.SurfaceStatusOutdated, nil
	case errors.Is(err, hal.ErrSurfaceLost):
		return gputypes.SurfaceStatusLost, nil
	}
	return gputypes.SurfaceStatusUnknown, mapError("present", err)
}
