// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package drivertest provides an asynchronous fake GPU implementing the
// driver contracts.
//
// Every submission executes on its own goroutine once its wait semaphores are
// signaled, so CPU/GPU overlap is real and hazards show up as recorded
// violations instead of silent corruption. The fake detects:
//
//   - two submissions writing the same swapchain image at once
//   - destruction of a resource still referenced by pending work
//   - resetting a fence a pending submission will signal
//   - signaling a binary semaphore that is already signaled
//   - acquiring while the surface has zero area
//
// Tests read the ordered [Event] log and [Device.Violations].
package drivertest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/framepump/driver"
	"github.com/gogpu/gputypes"
)

// Op identifies a logged event.
type Op string

// Logged operations.
const (
	OpAcquire          Op = "acquire"
	OpSubmit           Op = "submit"
	OpExecute          Op = "execute"
	OpComplete         Op = "complete"
	OpPresent          Op = "present"
	OpDisplay          Op = "display"
	OpWaitFence        Op = "wait-fence"
	OpResetFence       Op = "reset-fence"
	OpCreateSwapchain  Op = "create-swapchain"
	OpDestroySwapchain Op = "destroy-swapchain"
	OpWaitIdle         Op = "wait-idle"
)

// Event is one entry of the device log.
type Event struct {
	Seq    int
	Op     Op
	Image  int
	Label  string
	Status gputypes.SurfaceStatus
	// Submission numbers submit, execute and complete events of one
	// submission; zero for other events.
	Submission int
}

func (e Event) String() string {
	return fmt.Sprintf("#%d %s image=%d %s %s", e.Seq, e.Op, e.Image, e.Label, e.Status)
}

// ErrInjected is returned by creations failed through [Device.FailCreate].
var ErrInjected = errors.New("drivertest: injected failure")

type handle struct {
	id    uint64
	kind  string
	label string
}

func (h *handle) Label() string { return h.label }

func (h *handle) base() *handle { return h }

type based interface {
	driver.Handle
	base() *handle
}

// Fence is the fake CPU-wait primitive.
type Fence struct {
	handle
	signaled bool
	pending  int
}

// Semaphore is the fake binary GPU-wait primitive.
type Semaphore struct {
	handle
	signaled bool
}

// Image is a swapchain image or a standalone image.
type Image struct {
	handle
	sc    *Swapchain
	index int
}

// ImageView is a view of an Image.
type ImageView struct {
	handle
	image *Image
}

// RenderPass is the fake render pass.
type RenderPass struct {
	handle
	Desc driver.RenderPassDescriptor
}

// Framebuffer is the fake framebuffer.
type Framebuffer struct {
	handle
	Desc driver.FramebufferDescriptor
}

// CommandList is the fake command list. Recorders may add markers with Mark.
type CommandList struct {
	handle
	dev       *Device
	recording bool
	ended     bool
	pending   int
	marks     []string
}

// Swapchain is the fake swapchain.
type Swapchain struct {
	handle
	dev      *Device
	surface  *Surface
	Desc     driver.SwapchainDescriptor
	images   []driver.Image
	next     int
	acquired []bool
	busy     []int
	refs     int
}

type failure struct {
	after int
	err   error
}

type submission struct {
	n       int
	waits   []*Semaphore
	signals []*Semaphore
	fence   *Fence
	lists   []*CommandList
	sc      *Swapchain
	target  int
}

// Options configures a fake device.
type Options struct {
	// ExecDelay is how long each submission occupies the GPU.
	ExecDelay time.Duration
}

// Device is the fake GPU. It implements driver.Device; Queue returns the
// matching driver.Queue.
type Device struct {
	mu   sync.Mutex
	cond *sync.Cond

	opts   Options
	nextID uint64
	live   map[*handle]bool
	refs   map[*handle]int

	events      []Event
	violations  []string
	submissions int
	pending     int
	maxPending  int
	executing   int
	stalled     bool

	attachmentsInUse int
	current          *Swapchain
	failures         map[string]*failure

	acquireScript []gputypes.SurfaceStatus
	acquireOrder  []int
	presentScript []gputypes.SurfaceStatus
}

// NewDevice returns a fake device.
func NewDevice(opts Options) *Device {
	d := &Device{
		opts:     opts,
		live:     make(map[*handle]bool),
		refs:     make(map[*handle]int),
		failures: make(map[string]*failure),
	}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// Queue returns the device queue.
func (d *Device) Queue() *Queue { return &Queue{dev: d} }

// SetStalled stops (true) or resumes (false) GPU execution. While stalled,
// submitted work stays pending and fences stay unsignaled.
func (d *Device) SetStalled(stalled bool) {
	d.mu.Lock()
	d.stalled = stalled
	d.cond.Broadcast()
	d.mu.Unlock()
}

// FailCreate makes the creation of the given resource kind fail after n more
// successful creations of that kind. Kinds: "fence", "semaphore",
// "swapchain", "image", "image-view", "render-pass", "framebuffer",
// "command-list".
func (d *Device) FailCreate(kind string, n int) {
	d.mu.Lock()
	d.failures[kind] = &failure{after: n, err: ErrInjected}
	d.mu.Unlock()
}

// ScriptAcquire queues statuses returned by successive acquires before the
// default behavior resumes. Good and Suboptimal acquires hand out an image.
func (d *Device) ScriptAcquire(statuses ...gputypes.SurfaceStatus) {
	d.mu.Lock()
	d.acquireScript = append(d.acquireScript, statuses...)
	d.mu.Unlock()
}

// ScriptAcquireOrder queues the image indices returned by successive
// successful acquires. Without a script images are handed out round robin.
func (d *Device) ScriptAcquireOrder(indices ...int) {
	d.mu.Lock()
	d.acquireOrder = append(d.acquireOrder, indices...)
	d.mu.Unlock()
}

// ScriptPresent queues statuses returned by successive presents.
func (d *Device) ScriptPresent(statuses ...gputypes.SurfaceStatus) {
	d.mu.Lock()
	d.presentScript = append(d.presentScript, statuses...)
	d.mu.Unlock()
}

// Events returns a copy of the event log.
func (d *Device) Events() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Event(nil), d.events...)
}

// EventsOf returns the logged events with the given op.
func (d *Device) EventsOf(op Op) []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []Event
	for _, e := range d.events {
		if e.Op == op {
			out = append(out, e)
		}
	}
	return out
}

// Count returns how many events with op were logged.
func (d *Device) Count(op Op) int { return len(d.EventsOf(op)) }

// Violations returns every hazard detected so far.
func (d *Device) Violations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.violations...)
}

// Live returns the number of live resources per kind.
func (d *Device) Live() map[string]int {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]int)
	for h := range d.live {
		out[h.kind]++
	}
	return out
}

// LiveCount returns the total number of live resources.
func (d *Device) LiveCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.live)
}

// Pending returns the number of submissions and presents not yet retired.
func (d *Device) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// MaxPending returns the largest number of simultaneously pending
// submissions observed.
func (d *Device) MaxPending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxPending
}

// --- internal helpers, called with d.mu held ---

func (d *Device) logLocked(e Event) {
	e.Seq = len(d.events)
	d.events = append(d.events, e)
}

func (d *Device) violate(format string, args ...any) {
	d.violations = append(d.violations, fmt.Sprintf(format, args...))
}

func (d *Device) newHandle(kind, label string) (handle, error) {
	if f, ok := d.failures[kind]; ok {
		if f.after == 0 {
			delete(d.failures, kind)
			return handle{}, f.err
		}
		f.after--
	}
	d.nextID++
	return handle{id: d.nextID, kind: kind, label: label}, nil
}

func (d *Device) register(h *handle) { d.live[h] = true }

func (d *Device) checkLive(h driver.Handle, op string) (*handle, bool) {
	b, ok := h.(based)
	if !ok {
		d.violate("%s: foreign handle %T", op, h)
		return nil, false
	}
	hb := b.base()
	if !d.live[hb] {
		d.violate("%s: use of destroyed %s %q", op, hb.kind, hb.label)
		return hb, false
	}
	return hb, true
}

func (d *Device) release(h driver.Handle, op string) {
	if h == nil {
		return
	}
	hb, ok := d.checkLive(h, op)
	if !ok {
		return
	}
	if d.refs[hb] > 0 {
		d.violate("%s: destroy %s %q still referenced by pending GPU work", op, hb.kind, hb.label)
	}
	delete(d.live, hb)
}

// --- driver.Device ---

func (d *Device) CreateFence(signaled bool) (driver.Fence, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, err := d.newHandle("fence", fmt.Sprintf("fence %d", d.nextID+1))
	if err != nil {
		return nil, err
	}
	f := &Fence{handle: h, signaled: signaled}
	d.register(&f.handle)
	return f, nil
}

func (d *Device) DestroyFence(f driver.Fence) {
	if f == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if ff, ok := f.(*Fence); ok && ff.pending > 0 {
		d.violate("destroy fence %q with %d pending submissions", ff.label, ff.pending)
	}
	d.release(f, "destroy fence")
}

func (d *Device) WaitFence(ctx context.Context, f driver.Fence, timeout time.Duration) (bool, error) {
	fence, ok := f.(*Fence)
	if !ok {
		return false, driver.ErrForeignHandle
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.checkLive(f, "wait fence"); !ok {
		return false, driver.ErrDeviceLost
	}
	d.logLocked(Event{Op: OpWaitFence, Image: -1, Label: fence.label})
	if fence.signaled {
		return true, nil
	}

	wake := func() {
		d.mu.Lock()
		d.cond.Broadcast()
		d.mu.Unlock()
	}
	deadline := time.Now().Add(timeout)
	timer := time.AfterFunc(timeout, wake)
	defer timer.Stop()
	stop := context.AfterFunc(ctx, wake)
	defer stop()

	for !fence.signaled {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if !time.Now().Before(deadline) {
			return false, nil
		}
		d.cond.Wait()
	}
	return true, nil
}

func (d *Device) ResetFence(f driver.Fence) error {
	fence, ok := f.(*Fence)
	if !ok {
		return driver.ErrForeignHandle
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.checkLive(f, "reset fence"); !ok {
		return driver.ErrDeviceLost
	}
	if fence.pending > 0 {
		d.violate("reset fence %q while a submission will signal it", fence.label)
	}
	fence.signaled = false
	d.logLocked(Event{Op: OpResetFence, Image: -1, Label: fence.label})
	return nil
}

func (d *Device) FenceSignaled(f driver.Fence) (bool, error) {
	fence, ok := f.(*Fence)
	if !ok {
		return false, driver.ErrForeignHandle
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return fence.signaled, nil
}

func (d *Device) CreateSemaphore(label string) (driver.Semaphore, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, err := d.newHandle("semaphore", label)
	if err != nil {
		return nil, err
	}
	s := &Semaphore{handle: h}
	d.register(&s.handle)
	return s, nil
}

func (d *Device) DestroySemaphore(s driver.Semaphore) {
	if s == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(s, "destroy semaphore")
}

func (d *Device) CreateSwapchain(surface driver.Surface, desc *driver.SwapchainDescriptor) (driver.Swapchain, error) {
	surf, ok := surface.(*Surface)
	if !ok {
		return nil, driver.ErrForeignHandle
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if desc.Extent.IsZero() {
		return nil, fmt.Errorf("drivertest: zero swapchain extent %s", desc.Extent)
	}
	h, err := d.newHandle("swapchain", desc.Label)
	if err != nil {
		return nil, err
	}
	sc := &Swapchain{
		handle:   h,
		dev:      d,
		surface:  surf,
		Desc:     *desc,
		acquired: make([]bool, desc.ImageCount),
		busy:     make([]int, desc.ImageCount),
	}
	for i := range int(desc.ImageCount) {
		ih := handle{kind: "swapchain-image", label: fmt.Sprintf("%s image %d", desc.Label, i)}
		sc.images = append(sc.images, &Image{handle: ih, sc: sc, index: i})
	}
	d.register(&sc.handle)
	d.current = sc
	d.logLocked(Event{Op: OpCreateSwapchain, Image: -1, Label: desc.Label})
	return sc, nil
}

func (d *Device) DestroySwapchain(sc driver.Swapchain) {
	if sc == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := sc.(*Swapchain)
	if ok && s.refs > 0 {
		d.violate("destroy swapchain %q with %d pending operations", s.label, s.refs)
	}
	d.release(sc, "destroy swapchain")
	if d.current == s {
		d.current = nil
	}
	d.logLocked(Event{Op: OpDestroySwapchain, Image: -1, Label: sc.Label()})
}

func (d *Device) CreateImage(desc *driver.ImageDescriptor) (driver.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, err := d.newHandle("image", desc.Label)
	if err != nil {
		return nil, err
	}
	img := &Image{handle: h, index: -1}
	d.register(&img.handle)
	return img, nil
}

func (d *Device) DestroyImage(img driver.Image) {
	if img == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.attachmentsInUse > 0 {
		d.violate("destroy image %q while %d submissions use attachments", img.Label(), d.attachmentsInUse)
	}
	d.release(img, "destroy image")
}

func (d *Device) CreateImageView(img driver.Image, desc *driver.ImageViewDescriptor) (driver.ImageView, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	im, ok := img.(*Image)
	if !ok {
		return nil, driver.ErrForeignHandle
	}
	if im.sc != nil {
		if !d.live[&im.sc.handle] {
			d.violate("create view of image %q of a destroyed swapchain", im.label)
		}
	} else if _, ok := d.checkLive(img, "create image view"); !ok {
		return nil, driver.ErrDeviceLost
	}
	h, err := d.newHandle("image-view", desc.Label)
	if err != nil {
		return nil, err
	}
	v := &ImageView{handle: h, image: im}
	d.register(&v.handle)
	return v, nil
}

func (d *Device) DestroyImageView(view driver.ImageView) {
	if view == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if v, ok := view.(*ImageView); ok && v.image.sc != nil && v.image.index >= 0 {
		if v.image.sc.busy[v.image.index] > 0 || v.image.sc.refs > 0 {
			d.violate("destroy view %q of an image still referenced by pending GPU work", v.label)
		}
	}
	d.release(view, "destroy image view")
}

func (d *Device) CreateRenderPass(desc *driver.RenderPassDescriptor) (driver.RenderPass, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, err := d.newHandle("render-pass", desc.Label)
	if err != nil {
		return nil, err
	}
	rp := &RenderPass{handle: h, Desc: *desc}
	d.register(&rp.handle)
	return rp, nil
}

func (d *Device) DestroyRenderPass(rp driver.RenderPass) {
	if rp == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.attachmentsInUse > 0 {
		d.violate("destroy render pass %q while %d submissions use it", rp.Label(), d.attachmentsInUse)
	}
	d.release(rp, "destroy render pass")
}

func (d *Device) CreateFramebuffer(desc *driver.FramebufferDescriptor) (driver.Framebuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.checkLive(desc.RenderPass, "create framebuffer"); !ok {
		return nil, driver.ErrDeviceLost
	}
	if _, ok := d.checkLive(desc.Color, "create framebuffer"); !ok {
		return nil, driver.ErrDeviceLost
	}
	h, err := d.newHandle("framebuffer", desc.Label)
	if err != nil {
		return nil, err
	}
	fb := &Framebuffer{handle: h, Desc: *desc}
	d.register(&fb.handle)
	return fb, nil
}

func (d *Device) DestroyFramebuffer(fb driver.Framebuffer) {
	if fb == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if f, ok := fb.(*Framebuffer); ok {
		if v, ok := f.Desc.Color.(*ImageView); ok && v.image.sc != nil && v.image.index >= 0 {
			if v.image.sc.busy[v.image.index] > 0 || v.image.sc.refs > 0 {
				d.violate("destroy framebuffer %q still referenced by pending GPU work", f.label)
			}
		}
	}
	d.release(fb, "destroy framebuffer")
}

func (d *Device) CreateCommandList(label string) (driver.CommandList, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, err := d.newHandle("command-list", label)
	if err != nil {
		return nil, err
	}
	cl := &CommandList{handle: h, dev: d}
	d.register(&cl.handle)
	return cl, nil
}

func (d *Device) FreeCommandList(cl driver.CommandList) {
	if cl == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := cl.(*CommandList); ok && c.pending > 0 {
		d.violate("free command list %q still referenced by pending GPU work", c.label)
	}
	d.release(cl, "free command list")
}

func (d *Device) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.logLocked(Event{Op: OpWaitIdle, Image: -1})
	for d.pending > 0 {
		if d.stalled {
			return driver.DeviceError("wait idle", driver.ErrTimeout)
		}
		d.cond.Wait()
	}
	return nil
}

// --- CommandList ---

func (c *CommandList) Reset() error {
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()
	if c.pending > 0 {
		c.dev.violate("reset command list %q still referenced by pending GPU work", c.label)
	}
	c.recording, c.ended = false, false
	c.marks = c.marks[:0]
	return nil
}

func (c *CommandList) Begin() error {
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()
	if c.recording {
		return fmt.Errorf("drivertest: command list %q already recording", c.label)
	}
	c.recording, c.ended = true, false
	return nil
}

func (c *CommandList) End() error {
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()
	if !c.recording {
		return fmt.Errorf("drivertest: command list %q not recording", c.label)
	}
	c.recording, c.ended = false, true
	return nil
}

// Mark appends a marker command.
func (c *CommandList) Mark(s string) {
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()
	c.marks = append(c.marks, s)
}

// Marks returns the markers recorded since the last reset.
func (c *CommandList) Marks() []string {
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()
	return append([]string(nil), c.marks...)
}

// --- Swapchain ---

// Images returns the presentable images.
func (s *Swapchain) Images() []driver.Image { return s.images }

func (s *Swapchain) AcquireNext(signal driver.Semaphore, _ time.Duration) (int, gputypes.SurfaceStatus, error) {
	d := s.dev
	size := s.surface.FramebufferSize()

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.live[&s.handle] {
		d.violate("acquire on destroyed swapchain %q", s.label)
		return -1, gputypes.SurfaceStatusLost, nil
	}
	if size.IsZero() {
		d.violate("acquire while surface extent is %s", size)
		d.logLocked(Event{Op: OpAcquire, Image: -1, Status: gputypes.SurfaceStatusOutdated})
		return -1, gputypes.SurfaceStatusOutdated, nil
	}

	status := gputypes.SurfaceStatusGood
	if len(d.acquireScript) > 0 {
		status = d.acquireScript[0]
		d.acquireScript = d.acquireScript[1:]
	}
	if status == gputypes.SurfaceStatusGood && size != s.Desc.Extent {
		status = gputypes.SurfaceStatusOutdated
	}
	if status != gputypes.SurfaceStatusGood && status != gputypes.SurfaceStatusSuboptimal {
		d.logLocked(Event{Op: OpAcquire, Image: -1, Status: status})
		return -1, status, nil
	}

	idx := s.next
	if len(d.acquireOrder) > 0 {
		idx = d.acquireOrder[0]
		d.acquireOrder = d.acquireOrder[1:]
	} else {
		s.next = (s.next + 1) % len(s.images)
	}

	sem, ok := signal.(*Semaphore)
	if !ok {
		return -1, gputypes.SurfaceStatusUnknown, driver.ErrForeignHandle
	}
	if _, ok := d.checkLive(sem, "acquire"); !ok {
		return -1, gputypes.SurfaceStatusUnknown, driver.ErrDeviceLost
	}
	if sem.signaled {
		d.violate("acquire signals semaphore %q that is already signaled", sem.label)
	}
	sem.signaled = true
	s.acquired[idx] = true
	d.cond.Broadcast()
	d.logLocked(Event{Op: OpAcquire, Image: idx, Label: sem.label, Status: status})
	return idx, status, nil
}

// --- Queue ---

// Queue is the fake queue.
type Queue struct {
	dev *Device
}

func (q *Queue) Submit(info *driver.SubmitInfo) error {
	d := q.dev
	d.mu.Lock()
	defer d.mu.Unlock()

	d.submissions++
	sub := &submission{n: d.submissions, target: info.Target}
	for _, cl := range info.CommandLists {
		c, ok := cl.(*CommandList)
		if !ok {
			return driver.ErrForeignHandle
		}
		if _, ok := d.checkLive(c, "submit"); !ok {
			return driver.DeviceError("submit", driver.ErrDeviceLost)
		}
		if !c.ended {
			d.violate("submit of command list %q that was not ended", c.label)
		}
		c.pending++
		sub.lists = append(sub.lists, c)
	}
	for _, w := range info.Waits {
		s, ok := w.Semaphore.(*Semaphore)
		if !ok {
			return driver.ErrForeignHandle
		}
		d.checkLive(s, "submit wait")
		d.refs[&s.handle]++
		sub.waits = append(sub.waits, s)
	}
	for _, sig := range info.Signals {
		s, ok := sig.(*Semaphore)
		if !ok {
			return driver.ErrForeignHandle
		}
		d.checkLive(s, "submit signal")
		d.refs[&s.handle]++
		sub.signals = append(sub.signals, s)
	}
	label := ""
	if info.Fence != nil {
		f, ok := info.Fence.(*Fence)
		if !ok {
			return driver.ErrForeignHandle
		}
		d.checkLive(f, "submit fence")
		if f.signaled {
			d.violate("submit with fence %q still signaled (not reset)", f.label)
		}
		f.pending++
		d.refs[&f.handle]++
		sub.fence = f
		label = f.label
	}
	if info.Target >= 0 && d.current != nil {
		sub.sc = d.current
		sub.sc.refs++
		d.attachmentsInUse++
	}

	d.pending++
	if d.pending > d.maxPending {
		d.maxPending = d.pending
	}
	d.logLocked(Event{Op: OpSubmit, Image: info.Target, Label: label, Submission: sub.n})
	go d.execute(sub)
	return nil
}

func (d *Device) execute(sub *submission) {
	d.mu.Lock()
	for d.stalled || !signaledAll(sub.waits) {
		d.cond.Wait()
	}
	for _, s := range sub.waits {
		s.signaled = false
		d.refs[&s.handle]--
	}
	if sub.sc != nil && sub.target >= 0 && sub.target < len(sub.sc.busy) {
		sub.sc.busy[sub.target]++
		if sub.sc.busy[sub.target] > 1 {
			d.violate("concurrent write to image %d by submission %d", sub.target, sub.n)
		}
	}
	d.executing++
	label := ""
	if sub.fence != nil {
		label = sub.fence.label
	}
	d.logLocked(Event{Op: OpExecute, Image: sub.target, Label: label, Submission: sub.n})
	d.mu.Unlock()

	if d.opts.ExecDelay > 0 {
		time.Sleep(d.opts.ExecDelay)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for d.stalled {
		d.cond.Wait()
	}
	d.executing--
	if sub.sc != nil && sub.target >= 0 && sub.target < len(sub.sc.busy) {
		sub.sc.busy[sub.target]--
	}
	for _, s := range sub.signals {
		if s.signaled {
			d.violate("submission %d signals semaphore %q that is already signaled", sub.n, s.label)
		}
		s.signaled = true
		d.refs[&s.handle]--
	}
	for _, c := range sub.lists {
		c.pending--
	}
	if sub.sc != nil {
		sub.sc.refs--
		d.attachmentsInUse--
	}
	if sub.fence != nil {
		sub.fence.pending--
		sub.fence.signaled = true
		d.refs[&sub.fence.handle]--
	}
	d.pending--
	d.logLocked(Event{Op: OpComplete, Image: sub.target, Label: label, Submission: sub.n})
	d.cond.Broadcast()
}

func signaledAll(sems []*Semaphore) bool {
	for _, s := range sems {
		if !s.signaled {
			return false
		}
	}
	return true
}

func (q *Queue) Present(sc driver.Swapchain, imageIndex int, waitOn driver.Semaphore) (gputypes.SurfaceStatus, error) {
	d := q.dev
	s, ok := sc.(*Swapchain)
	if !ok {
		return gputypes.SurfaceStatusUnknown, driver.ErrForeignHandle
	}
	size := s.surface.FramebufferSize()

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.checkLive(s, "present"); !ok {
		return gputypes.SurfaceStatusLost, nil
	}
	if imageIndex < 0 || imageIndex >= len(s.images) {
		d.violate("present of out-of-range image %d", imageIndex)
		return gputypes.SurfaceStatusUnknown, driver.DeviceError("present", fmt.Errorf("image index %d", imageIndex))
	}
	if !s.acquired[imageIndex] {
		d.violate("present of image %d that was not acquired", imageIndex)
	}
	s.acquired[imageIndex] = false

	status := gputypes.SurfaceStatusGood
	if len(d.presentScript) > 0 {
		status = d.presentScript[0]
		d.presentScript = d.presentScript[1:]
	}
	if status == gputypes.SurfaceStatusGood && size != s.Desc.Extent {
		status = gputypes.SurfaceStatusOutdated
	}
	d.logLocked(Event{Op: OpPresent, Image: imageIndex, Status: status})

	sem, _ := waitOn.(*Semaphore)
	if sem != nil {
		d.refs[&sem.handle]++
	}
	s.refs++
	d.pending++
	go func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		for sem != nil && !sem.signaled {
			d.cond.Wait()
		}
		if sem != nil {
			sem.signaled = false
			d.refs[&sem.handle]--
		}
		s.refs--
		d.pending--
		d.logLocked(Event{Op: OpDisplay, Image: imageIndex})
		d.cond.Broadcast()
	}()
	return status, nil
}

var (
	_ driver.Device    = (*Device)(nil)
	_ driver.Queue     = (*Queue)(nil)
	_ driver.Swapchain = (*Swapchain)(nil)
)
