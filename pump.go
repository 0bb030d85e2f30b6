package framepump

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gogpu/framepump/driver"
	"github.com/gogpu/framepump/frameslot"
	"github.com/gogpu/framepump/swapchain"
)

// maxStepsPerFrame bounds RunFrame when the surface keeps invalidating.
const maxStepsPerFrame = 32

// Stats are running counters of a Pump.
type Stats struct {
	// Frames is the number of frames presented with an optimal or
	// suboptimal result.
	Frames uint64
	// Iterations is the number of iterations that reached present,
	// including those the surface rejected as out of date.
	Iterations uint64
	// Rebuilds is the number of chain rebuilds.
	Rebuilds uint64
	// Suspensions is the number of times the pump entered Suspended from
	// Invalidated.
	Suspensions uint64
	// OutOfDate counts out-of-date results from acquire and present.
	OutOfDate uint64
	// Suboptimal counts suboptimal results from acquire and present.
	Suboptimal uint64
}

// Pump drives the acquire, record, submit and present cycle.
//
// A Pump owns its frame slots, command lists and presentable image chain.
// It borrows the device, queue and surface, which must outlive it.
// Pump is not safe for concurrent use, except for NotifyResize.
type Pump struct {
	dev     driver.Device
	queue   driver.Queue
	surface driver.Surface
	rec     Recorder
	events  EventPump
	cfg     Config

	chain *swapchain.Chain
	slots *frameslot.Set
	lists []driver.CommandList

	state   State
	slot    int
	image   int
	frame   uint64
	status  swapchain.Status
	rebuild bool
	resized atomic.Bool
	stats   Stats
	err     error
	closed  bool

	onState func(from, to State)
}

// New creates a Pump and builds its chain and frame slots.
//
// If the surface currently has no area the chain is not built and the pump
// starts Invalidated; the first Step moves it to Suspended.
func New(dev driver.Device, q driver.Queue, surface driver.Surface, rec Recorder, events EventPump, cfg Config) (*Pump, error) {
	if rec == nil {
		return nil, ErrNilRecorder
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if events == nil {
		events = NopEventPump
	}

	formats, _ := cfg.ColorFormats()
	modes, _ := cfg.PreferredPresentModes()
	depth, _ := cfg.DepthTextureFormat()
	clearColor, _ := cfg.Clear()

	p := &Pump{
		dev:     dev,
		queue:   q,
		surface: surface,
		rec:     rec,
		events:  events,
		cfg:     cfg,
		image:   -1,
	}
	p.chain = swapchain.New(dev, surface, swapchain.Options{
		Label:                 cfg.Title,
		PreferredFormats:      formats,
		PreferredPresentModes: modes,
		ImageCount:            cfg.ImageCount,
		DepthFormat:           depth,
		ClearColor:            clearColor,
		AcquireTimeout:        cfg.AcquireTimeout.Std(),
	})

	// Step 1: presentable image chain.
	switch err := p.chain.Build(); {
	case errors.Is(err, swapchain.ErrZeroExtent):
		p.state = StateInvalidated
	case err != nil:
		return nil, err
	}

	// Step 2: frame slots.
	slots, err := frameslot.New(dev, cfg.FramesInFlight, p.chain.ImageCount(), frameslot.Options{
		FenceTimeout: cfg.FenceTimeout.Std(),
	})
	if err != nil {
		p.chain.Teardown()
		return nil, err
	}
	p.slots = slots

	// Step 3: one command list per slot.
	for i := range cfg.FramesInFlight {
		cl, err := dev.CreateCommandList(fmt.Sprintf("frame slot %d commands", i))
		if err != nil {
			p.release()
			return nil, driver.CreateError("command list", fmt.Sprintf("frame slot %d", i), err)
		}
		p.lists = append(p.lists, cl)
	}

	Logger().Info("framepump: created",
		"frames_in_flight", cfg.FramesInFlight,
		"images", p.chain.ImageCount(),
		"state", p.state.String())
	return p, nil
}

// OnStateChange registers fn to be called on every state entry, including
// re-entering the same state (a Suspended poll that finds no area).
func (p *Pump) OnStateChange(fn func(from, to State)) { p.onState = fn }

// State returns the current state.
func (p *Pump) State() State { return p.state }

// Slot returns the current frame slot index.
func (p *Pump) Slot() int { return p.slot }

// FramesInFlight returns the number of frame slots.
func (p *Pump) FramesInFlight() int { return p.cfg.FramesInFlight }

// Chain returns the presentable image chain.
func (p *Pump) Chain() *swapchain.Chain { return p.chain }

// Slots returns the frame slot set.
func (p *Pump) Slots() *frameslot.Set { return p.slots }

// Stats returns the running counters.
func (p *Pump) Stats() Stats { return p.stats }

// Err returns the fatal error that stopped the pump, if any.
func (p *Pump) Err() error { return p.err }

func (p *Pump) enter(s State) {
	from := p.state
	p.state = s
	if p.onState != nil {
		p.onState(from, s)
	}
}

func (p *Pump) advance() {
	p.slot = (p.slot + 1) % p.cfg.FramesInFlight
}

// fail records a fatal error. The pump does not retry; every later Step
// returns the same error and the owner is expected to Close.
func (p *Pump) fail(err error) error {
	p.err = err
	Logger().Error("framepump: fatal", "state", p.state.String(), "slot", p.slot, "err", err)
	return err
}

// Step performs one state transition.
//
// Context cancellation is only observed between frames: once an image has
// been acquired the frame is recorded, submitted and presented regardless
// of ctx. Every wait stays bounded by the configured timeouts.
func (p *Pump) Step(ctx context.Context) error {
	if p.closed {
		return ErrClosed
	}
	if p.err != nil {
		return p.err
	}
	if p.state.midFrame() {
		ctx = context.WithoutCancel(ctx)
	} else if err := ctx.Err(); err != nil {
		return err
	}

	switch p.state {
	case StateIdle:
		return p.acquire(ctx)
	case StateAcquiring:
		return p.record(ctx)
	case StateRecording:
		return p.submit()
	case StateSubmitting:
		return p.present()
	case StatePresenting:
		p.finish()
		return nil
	case StateInvalidated:
		return p.invalidated(ctx)
	case StateSuspended:
		return p.suspended(ctx)
	default:
		panic(fmt.Sprintf("framepump: invalid state %v", p.state))
	}
}

// acquire: Idle -> Acquiring, or Invalidated.
func (p *Pump) acquire(ctx context.Context) error {
	if p.resized.Swap(false) || !p.chain.Built() || p.surface.FramebufferSize().IsZero() {
		p.enter(StateInvalidated)
		return nil
	}

	if err := p.slots.WaitForSlot(ctx, p.slot); err != nil {
		if ctx.Err() != nil {
			return err
		}
		return p.fail(err)
	}

	idx, status, err := p.chain.AcquireNext(p.slots.Slot(p.slot).ImageAcquired)
	if err != nil {
		return p.fail(err)
	}
	Logger().Debug("framepump: acquired", "slot", p.slot, "image", idx, "status", status.String())

	switch status {
	case swapchain.StatusOutOfDate:
		// The iteration ends here; nothing was recorded and the slot's
		// fence was not reset.
		p.stats.OutOfDate++
		p.advance()
		p.enter(StateInvalidated)
		return nil
	case swapchain.StatusSuboptimal:
		p.stats.Suboptimal++
		p.rebuild = true
		Logger().Warn("framepump: suboptimal surface, rebuilding after present", "extent", p.chain.Extent().String())
	}
	p.image = idx
	p.enter(StateAcquiring)
	return nil
}

// record: Acquiring -> Recording.
func (p *Pump) record(ctx context.Context) error {
	if err := p.slots.ReserveImage(ctx, p.image, p.slot); err != nil {
		return p.fail(err)
	}

	cl := p.lists[p.slot]
	if err := cl.Reset(); err != nil {
		return p.fail(driver.DeviceError("reset command list", err))
	}
	if err := cl.Begin(); err != nil {
		return p.fail(driver.DeviceError("begin command list", err))
	}
	frame := Frame{
		Number:      p.frame,
		Slot:        p.slot,
		ImageIndex:  p.image,
		Extent:      p.chain.Extent(),
		Format:      p.chain.Format(),
		RenderPass:  p.chain.RenderPass(),
		Framebuffer: p.chain.Framebuffer(p.image),
		Generation:  p.chain.Generation(),
	}
	if err := p.rec.Record(ctx, frame, cl); err != nil {
		return p.fail(fmt.Errorf("framepump: record frame %d: %w", p.frame, err))
	}
	if err := cl.End(); err != nil {
		return p.fail(driver.DeviceError("end command list", err))
	}
	p.frame++
	p.enter(StateRecording)
	return nil
}

// submit: Recording -> Submitting.
func (p *Pump) submit() error {
	slot := p.slots.Slot(p.slot)
	if err := p.slots.Reset(p.slot); err != nil {
		return p.fail(err)
	}
	err := p.queue.Submit(&driver.SubmitInfo{
		CommandLists: []driver.CommandList{p.lists[p.slot]},
		Waits: []driver.SemaphoreWait{{
			Semaphore: slot.ImageAcquired,
			Stage:     driver.StageColorAttachmentOutput,
		}},
		Signals: []driver.Semaphore{slot.RenderFinished},
		Fence:   slot.Completion,
		Target:  p.image,
	})
	if err != nil {
		// Nothing will signal the fence; put it back so a drain does not
		// wait for a submission that never happened.
		if rerr := p.slots.Restore(p.slot); rerr != nil {
			Logger().Warn("framepump: restore slot fence", "slot", p.slot, "err", rerr)
		}
		return p.fail(driver.DeviceError("submit", err))
	}
	p.enter(StateSubmitting)
	return nil
}

// present: Submitting -> Presenting.
func (p *Pump) present() error {
	status, err := p.chain.Present(p.queue, p.slots.Slot(p.slot).RenderFinished, p.image)
	if err != nil {
		return p.fail(err)
	}
	p.status = status
	p.enter(StatePresenting)
	return nil
}

// finish: Presenting -> Idle, or Invalidated. The slot advances either way.
func (p *Pump) finish() {
	p.stats.Iterations++
	if p.status != swapchain.StatusOutOfDate {
		p.stats.Frames++
	}
	p.image = -1
	p.advance()

	invalid := p.rebuild
	switch p.status {
	case swapchain.StatusOutOfDate:
		p.stats.OutOfDate++
		invalid = true
	case swapchain.StatusSuboptimal:
		p.stats.Suboptimal++
		invalid = true
	}
	p.rebuild = false
	if !invalid {
		p.enter(StateIdle)
		return
	}
	Logger().Debug("framepump: chain invalid after present", "status", p.status.String())
	p.enter(StateInvalidated)
}

// invalidated: Invalidated -> Suspended, or Idle after a rebuild.
func (p *Pump) invalidated(ctx context.Context) error {
	if extent := p.surface.FramebufferSize(); extent.IsZero() {
		p.stats.Suspensions++
		Logger().Info("framepump: suspended", "extent", extent.String())
		p.enter(StateSuspended)
		return nil
	}

	if err := p.drain(ctx); err != nil {
		if ctx.Err() != nil {
			return err
		}
		return p.fail(err)
	}
	// A rebuild supersedes any pending resize notification.
	p.resized.Store(false)

	switch err := p.chain.Rebuild(); {
	case errors.Is(err, swapchain.ErrZeroExtent):
		p.stats.Suspensions++
		p.enter(StateSuspended)
		return nil
	case err != nil:
		return p.fail(err)
	}
	p.slots.Resize(p.chain.ImageCount())
	p.stats.Rebuilds++
	Logger().Info("framepump: chain rebuilt",
		"extent", p.chain.Extent().String(),
		"images", p.chain.ImageCount(),
		"generation", p.chain.Generation())
	p.enter(StateIdle)
	return nil
}

// suspended: poll events until the surface has area again.
func (p *Pump) suspended(ctx context.Context) error {
	p.events.PollEvents()
	if !p.surface.FramebufferSize().IsZero() {
		Logger().Info("framepump: resumed", "extent", p.surface.FramebufferSize().String())
		p.enter(StateInvalidated)
		return nil
	}
	p.enter(StateSuspended)

	if d := p.cfg.SuspendPollInterval.Std(); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}

// drain waits for every slot's work to retire, then for the device to go
// idle so presentation no longer references the chain.
func (p *Pump) drain(ctx context.Context) error {
	if err := p.slots.WaitAll(ctx); err != nil {
		return err
	}
	if err := p.dev.WaitIdle(); err != nil {
		return driver.DeviceError("wait idle", err)
	}
	return nil
}

// RunFrame steps until one iteration has reached present, the pump is
// suspended, or the surface keeps invalidating the chain.
func (p *Pump) RunFrame(ctx context.Context) error {
	start := p.stats.Iterations
	for range maxStepsPerFrame {
		if err := p.Step(ctx); err != nil {
			return err
		}
		if p.stats.Iterations > start || p.state == StateSuspended {
			return nil
		}
	}
	return nil
}

// Run steps until ctx is cancelled or a fatal error occurs. Cancellation
// returns nil once the current frame has been presented.
func (p *Pump) Run(ctx context.Context) error {
	for {
		err := p.Step(ctx)
		if err == nil {
			continue
		}
		if !p.state.midFrame() && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return nil
		}
		return err
	}
}

// Close drains all in-flight work and releases the chain, the frame slots
// and the command lists. The device, queue and surface are not touched.
//
// If the drain fails (device lost), nothing is destroyed: destroying
// primitives the GPU may still signal is never safe. Close is idempotent.
func (p *Pump) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	if err := p.drain(context.Background()); err != nil {
		Logger().Warn("framepump: drain failed, leaking GPU resources", "err", err)
		return err
	}
	p.release()
	Logger().Info("framepump: closed", "frames", p.stats.Frames, "rebuilds", p.stats.Rebuilds)
	return nil
}

// release destroys chain resources, command lists and slots, in that order.
func (p *Pump) release() {
	p.chain.Teardown()
	for _, cl := range p.lists {
		p.dev.FreeCommandList(cl)
	}
	p.lists = nil
	if p.slots != nil {
		p.slots.Teardown()
	}
}
