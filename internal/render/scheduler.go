package render

import (
	"context"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
)

// frameState is where a frame slot is in its cycle.
type frameState int

const (
	frameIdle frameState = iota
	frameAcquiring
	frameSubmitted
	framePresented
)

func (s frameState) String() string {
	switch s {
	case frameIdle:
		return "idle"
	case frameAcquiring:
		return "acquiring"
	case frameSubmitted:
		return "submitted"
	case framePresented:
		return "presented"
	}
	return "unknown"
}

// noSlot marks a swapchain image no frame has used yet.
const noSlot = -1

// errWindowClosed is returned by a rebuild that gave up because the window
// was closed or ctx was cancelled while waiting for a drawable size.
var errWindowClosed = errors.New("window closed")

// frameQueue is the device side of the frame loop. Each slot owns an
// image-available semaphore, a render-finished semaphore and an in-flight
// fence; slots are addressed by index.
type frameQueue interface {
	// WaitFence blocks until the slot's in-flight fence is signaled.
	WaitFence(slot int) error
	// ResetFence returns the slot's fence to unsignaled.
	ResetFence(slot int) error
	// Acquire gets the next swapchain image, signaling the slot's
	// image-available semaphore. timeout <= 0 waits forever.
	Acquire(slot int, timeout time.Duration) (uint32, error)
	// Submit queues the image's command buffer: wait image-available at
	// colour output, signal render-finished and the in-flight fence.
	Submit(slot int, image uint32) error
	// Present queues the image for display once render-finished signals.
	Present(slot int, image uint32) error
	WaitIdle() error
}

// rebuildFunc recreates the swapchain and its dependents and returns the
// new image count. It must give up once ctx is done.
type rebuildFunc func(ctx context.Context) (int, error)

// frameScheduler drives acquire, submit and present over a ring of frame
// slots. At most len(states) frames are in flight at once.
type frameScheduler struct {
	queue          frameQueue
	log            *slog.Logger
	acquireTimeout time.Duration
	stats          *frameStats

	// states moves Idle -> Acquiring -> Submitted -> Presented. A failed
	// acquire returns the slot to Idle. A new frame may only start on an
	// Idle or Presented slot.
	states  []frameState
	current int
	frames  uint64

	// imageOwners maps a swapchain image to the slot whose fence guards
	// the last frame rendered into it.
	imageOwners []int

	rebuildRequested bool
}

func newFrameScheduler(queue frameQueue, slots, images int, acquireTimeout time.Duration, stats *frameStats, log *slog.Logger) *frameScheduler {
	s := &frameScheduler{
		queue:          queue,
		log:            log,
		acquireTimeout: acquireTimeout,
		stats:          stats,
		states:         make([]frameState, slots),
	}
	s.resetImages(images)
	return s
}

func (s *frameScheduler) resetImages(n int) {
	s.imageOwners = make([]int, n)
	for i := range s.imageOwners {
		s.imageOwners[i] = noSlot
	}
}

// requestRebuild asks for the swapchain to be recreated after the current
// frame, e.g. when the window was resized.
func (s *frameScheduler) requestRebuild() {
	s.rebuildRequested = true
}

// drawFrame runs one iteration. Errors marked ErrSwapchainStale or
// ErrAcquireTimeout ask for a rebuild; anything else is fatal.
func (s *frameScheduler) drawFrame() error {
	slot := s.current
	if st := s.states[slot]; st != frameIdle && st != framePresented {
		return errors.Newf("slot %d is still %s from an unfinished frame", slot, st)
	}

	if err := s.queue.WaitFence(slot); err != nil {
		return errors.Wrapf(err, "wait in-flight fence of slot %d", slot)
	}
	s.states[slot] = frameAcquiring
	image, err := s.queue.Acquire(slot, s.acquireTimeout)
	if err != nil {
		s.states[slot] = frameIdle
		return err
	}
	if int(image) >= len(s.imageOwners) {
		return errors.Newf("acquired image %d but swapchain has %d images", image, len(s.imageOwners))
	}

	if owner := s.imageOwners[image]; owner != noSlot && owner != slot {
		if err := s.queue.WaitFence(owner); err != nil {
			return errors.Wrapf(err, "wait fence of slot %d guarding image %d", owner, image)
		}
	}
	s.imageOwners[image] = slot

	if err := s.queue.ResetFence(slot); err != nil {
		return errors.Wrapf(err, "reset in-flight fence of slot %d", slot)
	}
	if err := s.queue.Submit(slot, image); err != nil {
		return errors.Wrapf(err, "submit frame %d", s.frames)
	}
	s.states[slot] = frameSubmitted

	presentErr := s.queue.Present(slot, image)
	s.states[slot] = framePresented
	s.current = (s.current + 1) % len(s.states)
	s.frames++
	if presentErr != nil {
		return presentErr
	}

	if report, ok := s.stats.frame(); ok {
		s.log.Info("frame stats",
			"frames", report.Frames,
			"fps", report.FPS,
			"avg", report.Avg,
			"min", report.Min,
			"max", report.Max)
	}
	return nil
}

// run draws frames until ctx is done or stop reports true, checking both
// once per iteration. It always waits for the device to go idle before
// returning.
func (s *frameScheduler) run(ctx context.Context, stop func() bool, rebuild rebuildFunc) (err error) {
	defer func() {
		if idleErr := s.queue.WaitIdle(); idleErr != nil && err == nil {
			err = idleErr
		}
	}()

	for {
		if ctx.Err() != nil || stop() {
			return nil
		}

		drawErr := s.drawFrame()
		switch {
		case drawErr == nil && !s.rebuildRequested:
			continue
		case drawErr == nil, errors.Is(drawErr, ErrSwapchainStale), errors.Is(drawErr, ErrAcquireTimeout):
			if err := s.recreate(ctx, drawErr, rebuild); err != nil {
				if errors.Is(err, errWindowClosed) || ctx.Err() != nil {
					return nil
				}
				return err
			}
		default:
			return drawErr
		}
	}
}

// recreate is the SwapchainStale state: no frame is started until the
// rebuild returns.
func (s *frameScheduler) recreate(ctx context.Context, cause error, rebuild rebuildFunc) error {
	reason := "resize requested"
	if cause != nil {
		reason = cause.Error()
	}
	s.log.Info("swapchain stale, rebuilding", "reason", reason, "frame", s.frames, "slot_state", s.states[s.current])

	images, err := rebuild(ctx)
	if err != nil {
		return errors.Wrap(err, "rebuild swapchain")
	}
	s.resetImages(images)
	s.rebuildRequested = false
	return nil
}
