package render

import (
	"math"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vulkan-go/vulkan"
)

// frameSlot holds the synchronisation objects of one in-flight frame.
type frameSlot struct {
	imageAvailable vulkan.Semaphore
	renderFinished vulkan.Semaphore
	inFlight       vulkan.Fence
}

// newFrameSlots creates n slots. Fences start signaled so the first wait on
// each slot returns at once.
func newFrameSlots(device vulkan.Device, n int) ([]frameSlot, error) {
	semInfo := vulkan.SemaphoreCreateInfo{
		SType: vulkan.StructureTypeSemaphoreCreateInfo,
	}
	fenceInfo := vulkan.FenceCreateInfo{
		SType: vulkan.StructureTypeFenceCreateInfo,
		Flags: vulkan.FenceCreateFlags(vulkan.FenceCreateSignaledBit),
	}

	slots := make([]frameSlot, 0, n)
	for i := 0; i < n; i++ {
		var s frameSlot
		if err := vkCheck("create semaphore", vulkan.CreateSemaphore(device, &semInfo, nil, &s.imageAvailable)); err != nil {
			destroyFrameSlots(device, slots)
			return nil, errors.Wrapf(err, "frame slot %d", i)
		}
		if err := vkCheck("create semaphore", vulkan.CreateSemaphore(device, &semInfo, nil, &s.renderFinished)); err != nil {
			vulkan.DestroySemaphore(device, s.imageAvailable, nil)
			destroyFrameSlots(device, slots)
			return nil, errors.Wrapf(err, "frame slot %d", i)
		}
		if err := vkCheck("create fence", vulkan.CreateFence(device, &fenceInfo, nil, &s.inFlight)); err != nil {
			vulkan.DestroySemaphore(device, s.renderFinished, nil)
			vulkan.DestroySemaphore(device, s.imageAvailable, nil)
			destroyFrameSlots(device, slots)
			return nil, errors.Wrapf(err, "frame slot %d", i)
		}
		slots = append(slots, s)
	}
	return slots, nil
}

func destroyFrameSlots(device vulkan.Device, slots []frameSlot) {
	for _, s := range slots {
		vulkan.DestroySemaphore(device, s.renderFinished, nil)
		vulkan.DestroySemaphore(device, s.imageAvailable, nil)
		vulkan.DestroyFence(device, s.inFlight, nil)
	}
}

// vkFrameQueue runs the frame loop against a real device. targets is
// swapped by the renderer whenever the swapchain is rebuilt.
type vkFrameQueue struct {
	device   vulkan.Device
	graphics vulkan.Queue
	present  vulkan.Queue
	slots    []frameSlot
	targets  *renderTargets
}

func timeoutNanos(d time.Duration) uint64 {
	if d <= 0 {
		return math.MaxUint64
	}
	return uint64(d.Nanoseconds())
}

func (q *vkFrameQueue) WaitFence(slot int) error {
	fences := []vulkan.Fence{q.slots[slot].inFlight}
	return vkCheck("wait for fence", vulkan.WaitForFences(q.device, 1, fences, vulkan.True, math.MaxUint64))
}

func (q *vkFrameQueue) ResetFence(slot int) error {
	fences := []vulkan.Fence{q.slots[slot].inFlight}
	return vkCheck("reset fence", vulkan.ResetFences(q.device, 1, fences))
}

func (q *vkFrameQueue) Acquire(slot int, timeout time.Duration) (uint32, error) {
	var image uint32
	res := vulkan.AcquireNextImage(q.device, q.targets.swapchain.handle, timeoutNanos(timeout),
		q.slots[slot].imageAvailable, vulkan.Fence(vulkan.NullHandle), &image)
	if err := classifyAcquire(res); err != nil {
		return 0, err
	}
	return image, nil
}

func (q *vkFrameQueue) Submit(slot int, image uint32) error {
	s := q.slots[slot]
	submitInfo := vulkan.SubmitInfo{
		SType:                vulkan.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vulkan.Semaphore{s.imageAvailable},
		PWaitDstStageMask:    []vulkan.PipelineStageFlags{vulkan.PipelineStageFlags(vulkan.PipelineStageColorAttachmentOutputBit)},
		CommandBufferCount:   1,
		PCommandBuffers:      []vulkan.CommandBuffer{q.targets.commands.buffers[image]},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vulkan.Semaphore{s.renderFinished},
	}
	return vkCheck("queue submit", vulkan.QueueSubmit(q.graphics, 1, []vulkan.SubmitInfo{submitInfo}, s.inFlight))
}

func (q *vkFrameQueue) Present(slot int, image uint32) error {
	presentInfo := vulkan.PresentInfo{
		SType:              vulkan.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vulkan.Semaphore{q.slots[slot].renderFinished},
		SwapchainCount:     1,
		PSwapchains:        []vulkan.Swapchain{q.targets.swapchain.handle},
		PImageIndices:      []uint32{image},
	}
	return classifyPresent(vulkan.QueuePresent(q.present, &presentInfo))
}

func (q *vkFrameQueue) WaitIdle() error {
	return vkCheck("device wait idle", vulkan.DeviceWaitIdle(q.device))
}
