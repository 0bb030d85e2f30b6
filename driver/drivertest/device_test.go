package drivertest

import (
	"context"
	"testing"
	"time"

	"github.com/gogpu/framepump/driver"
	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSwapchain(t *testing.T, d *Device, s *Surface, n uint32) *Swapchain {
	t.Helper()
	sc, err := d.CreateSwapchain(s, &driver.SwapchainDescriptor{
		Label:      "test swapchain",
		Format:     gputypes.TextureFormatBGRA8UnormSrgb,
		Extent:     s.FramebufferSize(),
		ImageCount: n,
	})
	require.NoError(t, err)
	return sc.(*Swapchain)
}

func recorded(t *testing.T, d *Device) driver.CommandList {
	t.Helper()
	cl, err := d.CreateCommandList("cl")
	require.NoError(t, err)
	require.NoError(t, cl.Begin())
	require.NoError(t, cl.End())
	return cl
}

func TestSubmitSignalsFenceAfterSemaphore(t *testing.T) {
	d := NewDevice(Options{})
	q := d.Queue()
	s := NewSurface(64, 64, DefaultSurfaceOptions())
	sc := newSwapchain(t, d, s, 2)

	acquired, err := d.CreateSemaphore("acquired")
	require.NoError(t, err)
	finished, err := d.CreateSemaphore("finished")
	require.NoError(t, err)
	fence, err := d.CreateFence(false)
	require.NoError(t, err)

	idx, status, err := sc.AcquireNext(acquired, time.Second)
	require.NoError(t, err)
	assert.Equal(t, gputypes.SurfaceStatusGood, status)
	assert.Equal(t, 0, idx)

	require.NoError(t, q.Submit(&driver.SubmitInfo{
		CommandLists: []driver.CommandList{recorded(t, d)},
		Waits:        []driver.SemaphoreWait{{Semaphore: acquired, Stage: driver.StageColorAttachmentOutput}},
		Signals:      []driver.Semaphore{finished},
		Fence:        fence,
		Target:       idx,
	}))
	ok, err := d.WaitFence(context.Background(), fence, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	st, err := q.Present(sc, idx, finished)
	require.NoError(t, err)
	assert.Equal(t, gputypes.SurfaceStatusGood, st)
	require.NoError(t, d.WaitIdle())
	assert.Empty(t, d.Violations())
	assert.Equal(t, 1, d.Count(OpDisplay))
}

func TestWaitFenceTimesOutWhenStalled(t *testing.T) {
	d := NewDevice(Options{})
	fence, err := d.CreateFence(false)
	require.NoError(t, err)
	d.SetStalled(true)

	require.NoError(t, d.Queue().Submit(&driver.SubmitInfo{Fence: fence, Target: -1}))
	ok, err := d.WaitFence(context.Background(), fence, 20*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)

	d.SetStalled(false)
	ok, err = d.WaitFence(context.Background(), fence, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWaitFenceHonorsContext(t *testing.T) {
	d := NewDevice(Options{})
	fence, err := d.CreateFence(false)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = d.WaitFence(ctx, fence, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDestroyWhileReferencedIsViolation(t *testing.T) {
	d := NewDevice(Options{})
	fence, err := d.CreateFence(false)
	require.NoError(t, err)
	d.SetStalled(true)
	require.NoError(t, d.Queue().Submit(&driver.SubmitInfo{Fence: fence, Target: -1}))

	d.DestroyFence(fence)
	assert.NotEmpty(t, d.Violations())
	d.SetStalled(false)
}

func TestConcurrentImageWriteDetected(t *testing.T) {
	d := NewDevice(Options{ExecDelay: 20 * time.Millisecond})
	s := NewSurface(64, 64, DefaultSurfaceOptions())
	newSwapchain(t, d, s, 2)

	for range 2 {
		require.NoError(t, d.Queue().Submit(&driver.SubmitInfo{
			CommandLists: []driver.CommandList{recorded(t, d)},
			Target:       1,
		}))
	}
	require.NoError(t, d.WaitIdle())
	v := d.Violations()
	require.Len(t, v, 1)
	assert.Contains(t, v[0], "concurrent write to image 1")
}

func TestAcquireOutdatedOnResize(t *testing.T) {
	d := NewDevice(Options{})
	s := NewSurface(64, 64, DefaultSurfaceOptions())
	sc := newSwapchain(t, d, s, 2)
	sem, err := d.CreateSemaphore("acquired")
	require.NoError(t, err)

	s.SetSize(128, 64)
	idx, status, err := sc.AcquireNext(sem, time.Second)
	require.NoError(t, err)
	assert.Equal(t, -1, idx)
	assert.Equal(t, gputypes.SurfaceStatusOutdated, status)

	s.SetSize(0, 0)
	_, _, _ = sc.AcquireNext(sem, time.Second)
	assert.Len(t, d.Violations(), 1)
}

func TestFailCreate(t *testing.T) {
	d := NewDevice(Options{})
	d.FailCreate("fence", 1)
	_, err := d.CreateFence(true)
	require.NoError(t, err)
	_, err = d.CreateFence(true)
	assert.ErrorIs(t, err, ErrInjected)
	_, err = d.CreateFence(true)
	assert.NoError(t, err)
	assert.Equal(t, 2, d.Live()["fence"])
}

func TestSurfacePollEventsAppliesQueuedSizes(t *testing.T) {
	s := NewSurface(0, 0, DefaultSurfaceOptions())
	s.QueueSizes(driver.Extent{}, driver.Extent{Width: 800, Height: 600})
	s.PollEvents()
	assert.True(t, s.FramebufferSize().IsZero())
	s.PollEvents()
	assert.Equal(t, driver.Extent{Width: 800, Height: 600}, s.FramebufferSize())
	s.PollEvents()
	assert.Equal(t, 3, s.Polls())
}
