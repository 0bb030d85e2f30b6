// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package frameslot manages the fixed ring of per-frame synchronization
// primitives and the presentable-image ownership map.
//
// A Set holds one slot per frame in flight. Each slot has a fence the CPU
// waits on before reusing the slot, and two semaphores ordering the slot's
// submission between image acquisition and presentation. The Set has no
// surface-specific state and survives swapchain rebuilds untouched; only the
// ownership map is resized.
//
// The expected per-frame sequence for slot s is:
//
//	set.WaitForSlot(ctx, s)
//	// acquire image i, signaling set.Slot(s).ImageAcquired
//	set.ReserveImage(ctx, i, s)
//	// record
//	set.Reset(s)
//	// submit, signaling set.Slot(s).Completion
//
// Resetting a slot whose previous submission has not been waited on is a
// programming error and panics.
package frameslot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/framepump/driver"
)

// DefaultFenceTimeout bounds every fence wait when Options.FenceTimeout is zero.
const DefaultFenceTimeout = 5 * time.Second

// noOwner marks an image no slot has written yet.
const noOwner = -1

// Slot is the synchronization triple of one frame in flight.
type Slot struct {
	// Completion is signaled when the slot's last submission retires.
	Completion driver.Fence
	// ImageAcquired is signaled when the acquired image may be written.
	ImageAcquired driver.Semaphore
	// RenderFinished is signaled when rendering into the image is done.
	RenderFinished driver.Semaphore
}

// Options configures a Set.
type Options struct {
	// FenceTimeout bounds each fence wait. Exceeding it is a device loss.
	FenceTimeout time.Duration
}

// Set is the ring of frame slots plus the image ownership map.
// It is not safe for concurrent use.
type Set struct {
	dev     driver.Device
	slots   []Slot
	owner   []int
	timeout time.Duration

	// observed[i] is true once slot i's fence has been seen signaled since
	// its last reset. Reset requires it.
	observed []bool
	torn     bool
}

// New creates framesInFlight slots, with fences already signaled so the
// first frame of each slot does not block, and an ownership map for images
// presentable images. On failure every primitive created so far is
// destroyed.
func New(dev driver.Device, framesInFlight, images int, opts Options) (*Set, error) {
	if framesInFlight < 1 {
		return nil, fmt.Errorf("frameslot: frames in flight must be at least 1, got %d", framesInFlight)
	}
	if images < 0 {
		return nil, fmt.Errorf("frameslot: negative image count %d", images)
	}
	timeout := opts.FenceTimeout
	if timeout <= 0 {
		timeout = DefaultFenceTimeout
	}

	s := &Set{
		dev:      dev,
		slots:    make([]Slot, 0, framesInFlight),
		timeout:  timeout,
		observed: make([]bool, framesInFlight),
	}
	for i := range framesInFlight {
		slot, err := createSlot(dev, i)
		if err != nil {
			s.Teardown()
			return nil, err
		}
		s.slots = append(s.slots, slot)
		s.observed[i] = true
	}
	s.Resize(images)

	slogger().Debug("frameslot: created", "slots", framesInFlight, "images", images)
	return s, nil
}

func createSlot(dev driver.Device, i int) (Slot, error) {
	var slot Slot
	var err error

	slot.Completion, err = dev.CreateFence(true)
	if err != nil {
		return Slot{}, driver.CreateError("fence", fmt.Sprintf("frame slot %d", i), err)
	}
	slot.ImageAcquired, err = dev.CreateSemaphore(fmt.Sprintf("frame slot %d image acquired", i))
	if err != nil {
		dev.DestroyFence(slot.Completion)
		return Slot{}, driver.CreateError("semaphore", fmt.Sprintf("frame slot %d image acquired", i), err)
	}
	slot.RenderFinished, err = dev.CreateSemaphore(fmt.Sprintf("frame slot %d render finished", i))
	if err != nil {
		dev.DestroySemaphore(slot.ImageAcquired)
		dev.DestroyFence(slot.Completion)
		return Slot{}, driver.CreateError("semaphore", fmt.Sprintf("frame slot %d render finished", i), err)
	}
	return slot, nil
}

// Len returns the number of slots.
func (s *Set) Len() int { return len(s.slots) }

// Images returns the size of the ownership map.
func (s *Set) Images() int { return len(s.owner) }

// Slot returns slot i.
func (s *Set) Slot(i int) Slot {
	s.check(i)
	return s.slots[i]
}

// Owner returns the slot that last wrote image, or -1.
func (s *Set) Owner(image int) int {
	if image < 0 || image >= len(s.owner) {
		return noOwner
	}
	return s.owner[image]
}

func (s *Set) check(i int) {
	if s.torn {
		panic("frameslot: use after teardown")
	}
	if i < 0 || i >= len(s.slots) {
		panic(fmt.Sprintf("frameslot: slot %d out of range [0,%d)", i, len(s.slots)))
	}
}

// WaitForSlot blocks until slot i's fence is signaled, leaving it signaled.
// Exceeding the fence timeout is reported as a *driver.GraphicsDeviceError
// wrapping driver.ErrTimeout.
func (s *Set) WaitForSlot(ctx context.Context, i int) error {
	s.check(i)
	if s.observed[i] {
		return nil
	}
	ok, err := s.dev.WaitFence(ctx, s.slots[i].Completion, s.timeout)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return driver.DeviceError("wait", fmt.Errorf("frame slot %d: %w", i, err))
	}
	if !ok {
		return driver.DeviceError("wait", fmt.Errorf("frame slot %d after %v: %w", i, s.timeout, driver.ErrTimeout))
	}
	s.observed[i] = true
	return nil
}

// ReserveImage records slot as the owner of image. If image is owned by a
// different slot whose work has not retired, it waits for that slot first.
func (s *Set) ReserveImage(ctx context.Context, image, slot int) error {
	s.check(slot)
	if image < 0 || image >= len(s.owner) {
		panic(fmt.Sprintf("frameslot: image %d out of range [0,%d)", image, len(s.owner)))
	}
	if prev := s.owner[image]; prev != noOwner && prev != slot {
		if !s.observed[prev] {
			slogger().Debug("frameslot: image owned by in-flight slot", "image", image, "owner", prev, "slot", slot)
			if err := s.WaitForSlot(ctx, prev); err != nil {
				return err
			}
		}
	}
	s.owner[image] = slot
	return nil
}

// Reset returns slot i's fence to the unsignaled state. It must be called
// once per frame, after WaitForSlot and right before the submission that
// will signal the fence again.
func (s *Set) Reset(i int) error {
	s.check(i)
	if !s.observed[i] {
		panic(fmt.Sprintf("frameslot: reset of slot %d before its previous submission was observed", i))
	}
	if err := s.dev.ResetFence(s.slots[i].Completion); err != nil {
		return driver.DeviceError("reset fence", err)
	}
	s.observed[i] = false
	return nil
}

// Restore marks slot i's fence as signaled again after Reset when the
// submission that would have signaled it failed to go out. The fence is
// recreated in the signaled state.
func (s *Set) Restore(i int) error {
	s.check(i)
	if s.observed[i] {
		return nil
	}
	f, err := s.dev.CreateFence(true)
	if err != nil {
		return driver.CreateError("fence", fmt.Sprintf("frame slot %d", i), err)
	}
	s.dev.DestroyFence(s.slots[i].Completion)
	s.slots[i].Completion = f
	s.observed[i] = true
	return nil
}

// Resize resets the ownership map for a chain of images presentable images.
// Callers drain all slots before rebuilding the chain, so no owner is
// outstanding.
func (s *Set) Resize(images int) {
	s.owner = make([]int, images)
	for i := range s.owner {
		s.owner[i] = noOwner
	}
}

// InFlight returns the number of slots whose fence is not signaled.
func (s *Set) InFlight() int {
	n := 0
	for i := range s.slots {
		ok, err := s.dev.FenceSignaled(s.slots[i].Completion)
		if err != nil || !ok {
			n++
		}
	}
	return n
}

// WaitAll blocks until every slot's fence is signaled.
func (s *Set) WaitAll(ctx context.Context) error {
	if s.torn {
		return nil
	}
	for i := range s.slots {
		if err := s.WaitForSlot(ctx, i); err != nil {
			return err
		}
	}
	return nil
}

// Teardown destroys all primitives. It is safe to call more than once.
// The GPU must be idle: callers run WaitAll first.
func (s *Set) Teardown() {
	if s.torn {
		return
	}
	for i := len(s.slots) - 1; i >= 0; i-- {
		sl := s.slots[i]
		s.dev.DestroySemaphore(sl.RenderFinished)
		s.dev.DestroySemaphore(sl.ImageAcquired)
		s.dev.DestroyFence(sl.Completion)
	}
	s.slots = nil
	s.owner = nil
	s.torn = true
	slogger().Debug("frameslot: torn down")
}
