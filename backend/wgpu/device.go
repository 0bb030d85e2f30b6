package wgpu

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/framepump/driver"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Fence polling backoff bounds.
const (
	minFencePoll = 50 * time.Microsecond
	maxFencePoll = 2 * time.Millisecond
)

var errNotSignaled = errors.New("wgpu: semaphore waited on before it was signaled")

type handle struct{ label string }

func (h *handle) Label() string { return h.label }

// Fence is signaled once the submission it was attached to completes.
type Fence struct {
	handle
	signaled bool
	// submission is the HAL submission index that signals the fence; zero
	// when the fence was reset and not yet submitted.
	submission uint64
}

// Semaphore is a GPU-GPU dependency token.
type Semaphore struct {
	handle
	signaled bool
}

// Image is either a device-owned texture (a depth target) or a presentable
// image of a Swapchain.
type Image struct {
	handle
	tex hal.Texture

	sc       *Swapchain
	index    int
	acquired hal.SurfaceTexture
	views    []*ImageView
}

// ImageView is a view of an Image. Views of presentable images only hold a
// HAL view while the image is acquired.
type ImageView struct {
	handle
	img  *Image
	desc driver.ImageViewDescriptor
	view hal.TextureView
}

// RenderPass records attachment formats and load behavior.
type RenderPass struct {
	handle
	Desc driver.RenderPassDescriptor
}

// Framebuffer binds views to a RenderPass.
type Framebuffer struct {
	handle
	Desc  driver.FramebufferDescriptor
	pass  *RenderPass
	color *ImageView
	depth *ImageView
}

// CommandList wraps a HAL command encoder and its last encoded buffer.
type CommandList struct {
	handle
	enc       hal.CommandEncoder
	buf       hal.CommandBuffer
	recording bool
}

// retired is a HAL view whose destruction waits for a submission.
type retired struct {
	view  hal.TextureView
	after uint64
}

// Device implements driver.Device on a HAL device.
type Device struct {
	hal   hal.Device
	queue *Queue

	mu      sync.Mutex
	retired []retired
}

// NewDevice wraps an opened HAL device and its queue.
func NewDevice(dev hal.Device, q hal.Queue) *Device {
	d := &Device{hal: dev}
	d.queue = &Queue{dev: d, hal: q}
	return d
}

// HAL returns the underlying HAL device.
func (d *Device) HAL() hal.Device { return d.hal }

// Queue returns the device queue.
func (d *Device) Queue() *Queue { return d.queue }

// mapError translates HAL errors into the driver taxonomy.
func mapError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, hal.ErrDeviceLost), errors.Is(err, hal.ErrSurfaceLost):
		return driver.DeviceError(op, fmt.Errorf("%w: %w", driver.ErrDeviceLost, err))
	case errors.Is(err, hal.ErrTimeout):
		return driver.DeviceError(op, fmt.Errorf("%w: %w", driver.ErrTimeout, err))
	}
	return driver.DeviceError(op, err)
}

func asFence(f driver.Fence) (*Fence, error) {
	fence, ok := f.(*Fence)
	if !ok || fence == nil {
		return nil, driver.ErrForeignHandle
	}
	return fence, nil
}

func asSemaphore(s driver.Semaphore) (*Semaphore, error) {
	sem, ok := s.(*Semaphore)
	if !ok || sem == nil {
		return nil, driver.ErrForeignHandle
	}
	return sem, nil
}

func (d *Device) CreateFence(signaled bool) (driver.Fence, error) {
	return &Fence{handle: handle{label: "fence"}, signaled: signaled}, nil
}

func (d *Device) DestroyFence(driver.Fence) {}

func (d *Device) FenceSignaled(f driver.Fence) (bool, error) {
	fence, err := asFence(f)
	if err != nil {
		return false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fenceSignaledLocked(fence), nil
}

func (d *Device) fenceSignaledLocked(f *Fence) bool {
	if !f.signaled && f.submission != 0 && d.queue.hal.PollCompleted() >= f.submission {
		f.signaled = true
	}
	return f.signaled
}

// WaitFence polls the queue with exponential backoff.
func (d *Device) WaitFence(ctx context.Context, f driver.Fence, timeout time.Duration) (bool, error) {
	fence, err := asFence(f)
	if err != nil {
		return false, err
	}
	deadline := time.Now().Add(timeout)
	delay := minFencePoll
	for {
		d.mu.Lock()
		done := d.fenceSignaledLocked(fence)
		d.mu.Unlock()
		if done {
			return true, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, nil
		}
		t := time.NewTimer(min(delay, remaining))
		select {
		case <-ctx.Done():
			t.Stop()
			return false, ctx.Err()
		case <-t.C:
		}
		delay = min(delay*2, maxFencePoll)
	}
}

func (d *Device) ResetFence(f driver.Fence) error {
	fence, err := asFence(f)
	if err != nil {
		return err
	}
	d.mu.Lock()
	fence.signaled = false
	fence.submission = 0
	d.mu.Unlock()
	return nil
}

func (d *Device) CreateSemaphore(label string) (driver.Semaphore, error) {
	return &Semaphore{handle: handle{label: label}}, nil
}

func (d *Device) DestroySemaphore(driver.Semaphore) {}

func (d *Device) CreateSwapchain(surface driver.Surface, desc *driver.SwapchainDescriptor) (driver.Swapchain, error) {
	s, ok := surface.(*Surface)
	if !ok {
		return nil, driver.ErrForeignHandle
	}
	if desc.Extent.IsZero() {
		return nil, hal.ErrZeroArea
	}
	err := s.hal.Configure(d.hal, &hal.SurfaceConfiguration{
		Width:       desc.Extent.Width,
		Height:      desc.Extent.Height,
		Format:      desc.Format,
		Usage:       desc.Usage,
		PresentMode: desc.PresentMode,
		AlphaMode:   desc.AlphaMode,
	})
	if err != nil {
		return nil, err
	}
	sc := &Swapchain{handle: handle{label: desc.Label}, dev: d, surface: s, Desc: *desc}
	for i := range int(desc.ImageCount) {
		sc.images = append(sc.images, &Image{
			handle: handle{label: fmt.Sprintf("%s image %d", desc.Label, i)},
			sc:     sc,
			index:  i,
		})
	}
	s.configured = true
	return sc, nil
}

func (d *Device) DestroySwapchain(sc driver.Swapchain) {
	s, ok := sc.(*Swapchain)
	if !ok || s == nil {
		return
	}
	for _, img := range s.images {
		if img.acquired != nil {
			s.surface.hal.DiscardTexture(img.acquired)
			d.unbind(img)
		}
	}
	d.collect(true)
	if s.surface.configured {
		s.surface.hal.Unconfigure(d.hal)
		s.surface.configured = false
	}
}

func (d *Device) CreateImage(desc *driver.ImageDescriptor) (driver.Image, error) {
	tex, err := d.hal.CreateTexture(&hal.TextureDescriptor{
		Label:         desc.Label,
		Size:          hal.Extent3D{Width: desc.Extent.Width, Height: desc.Extent.Height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        desc.Format,
		Usage:         desc.Usage,
	})
	if err != nil {
		return nil, err
	}
	return &Image{handle: handle{label: desc.Label}, tex: tex, index: -1}, nil
}

func (d *Device) DestroyImage(img driver.Image) {
	i, ok := img.(*Image)
	if !ok || i == nil || i.tex == nil {
		return
	}
	d.hal.DestroyTexture(i.tex)
	i.tex = nil
}

func viewDescriptor(desc *driver.ImageViewDescriptor) *hal.TextureViewDescriptor {
	return &hal.TextureViewDescriptor{
		Label:           desc.Label,
		Format:          desc.Format,
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          desc.Aspect,
		MipLevelCount:   1,
		ArrayLayerCount: 1,
	}
}

func (d *Device) CreateImageView(img driver.Image, desc *driver.ImageViewDescriptor) (driver.ImageView, error) {
	i, ok := img.(*Image)
	if !ok || i == nil {
		return nil, driver.ErrForeignHandle
	}
	v := &ImageView{handle: handle{label: desc.Label}, img: i, desc: *desc}
	if i.sc != nil {
		// Bound on acquire.
		i.views = append(i.views, v)
		if i.acquired != nil {
			view, err := d.hal.CreateTextureView(i.acquired, viewDescriptor(desc))
			if err != nil {
				return nil, err
			}
			v.view = view
		}
		return v, nil
	}
	view, err := d.hal.CreateTextureView(i.tex, viewDescriptor(desc))
	if err != nil {
		return nil, err
	}
	v.view = view
	return v, nil
}

func (d *Device) DestroyImageView(view driver.ImageView) {
	v, ok := view.(*ImageView)
	if !ok || v == nil {
		return
	}
	if v.img.sc != nil {
		views := v.img.views[:0]
		for _, o := range v.img.views {
			if o != v {
				views = append(views, o)
			}
		}
		v.img.views = views
	}
	if v.view != nil {
		d.hal.DestroyTextureView(v.view)
		v.view = nil
	}
}

func (d *Device) CreateRenderPass(desc *driver.RenderPassDescriptor) (driver.RenderPass, error) {
	return &RenderPass{handle: handle{label: desc.Label}, Desc: *desc}, nil
}

func (d *Device) DestroyRenderPass(driver.RenderPass) {}

func (d *Device) CreateFramebuffer(desc *driver.FramebufferDescriptor) (driver.Framebuffer, error) {
	pass, ok := desc.RenderPass.(*RenderPass)
	if !ok {
		return nil, driver.ErrForeignHandle
	}
	color, ok := desc.Color.(*ImageView)
	if !ok {
		return nil, driver.ErrForeignHandle
	}
	fb := &Framebuffer{handle: handle{label: desc.Label}, Desc: *desc, pass: pass, color: color}
	if desc.Depth != nil {
		depth, ok := desc.Depth.(*ImageView)
		if !ok {
			return nil, driver.ErrForeignHandle
		}
		fb.depth = depth
	}
	return fb, nil
}

func (d *Device) DestroyFramebuffer(driver.Framebuffer) {}

func (d *Device) CreateCommandList(label string) (driver.CommandList, error) {
	enc, err := d.hal.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, err
	}
	return &CommandList{handle: handle{label: label}, enc: enc}, nil
}

func (d *Device) FreeCommandList(cl driver.CommandList) {
	c, ok := cl.(*CommandList)
	if !ok || c == nil {
		return
	}
	if c.recording {
		c.enc.DiscardEncoding()
		c.recording = false
	}
	if c.buf != nil {
		d.hal.FreeCommandBuffer(c.buf)
		c.buf = nil
	}
	c.enc.Destroy()
}

func (d *Device) WaitIdle() error {
	if err := d.hal.WaitIdle(); err != nil {
		return mapError("wait idle", err)
	}
	d.collect(true)
	return nil
}

// bind attaches an acquired surface texture to img and creates its views.
func (d *Device) bind(img *Image, tex hal.SurfaceTexture) error {
	img.acquired = tex
	for _, v := range img.views {
		view, err := d.hal.CreateTextureView(tex, viewDescriptor(&v.desc))
		if err != nil {
			d.unbind(img)
			return err
		}
		v.view = view
	}
	return nil
}

// unbind detaches the surface texture. Views are retired until the last
// submission completes.
func (d *Device) unbind(img *Image) {
	last := d.queue.lastSubmission()
	d.mu.Lock()
	for _, v := range img.views {
		if v.view != nil {
			d.retired = append(d.retired, retired{view: v.view, after: last})
			v.view = nil
		}
	}
	d.mu.Unlock()
	img.acquired = nil
}

// collect destroys retired views whose submission completed, or all of
// them when all is set (after a wait for idle).
func (d *Device) collect(all bool) {
	completed := d.queue.hal.PollCompleted()
	d.mu.Lock()
	keep := d.retired[:0]
	var done []hal.TextureView
	for _, r := range d.retired {
		if all || r.after <= completed {
			done = append(done, r.view)
		} else {
			keep = append(keep, r)
		}
	}
	d.retired = keep
	d.mu.Unlock()

	for _, v := range done {
		d.hal.DestroyTextureView(v)
	}
}

func (c *CommandList) Reset() error {
	if c.recording {
		c.enc.DiscardEncoding()
		c.recording = false
	}
	if c.buf != nil {
		c.enc.ResetAll([]hal.CommandBuffer{c.buf})
		c.buf = nil
	}
	return nil
}

func (c *CommandList) Begin() error {
	if c.recording {
		return fmt.Errorf("wgpu: command list %q already recording", c.label)
	}
	if err := c.enc.BeginEncoding(c.label); err != nil {
		return err
	}
	c.recording = true
	return nil
}

func (c *CommandList) End() error {
	if !c.recording {
		return fmt.Errorf("wgpu: command list %q not recording", c.label)
	}
	buf, err := c.enc.EndEncoding()
	c.recording = false
	if err != nil {
		return err
	}
	c.buf = buf
	return nil
}
