package render

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/vulkan-go/vulkan"
)

var (
	// ErrSwapchainStale marks acquire/present results that require the
	// swapchain and everything derived from it to be rebuilt.
	ErrSwapchainStale = errors.New("swapchain out of date")
	// ErrAcquireTimeout is returned when a bounded image acquisition expires.
	ErrAcquireTimeout = errors.New("swapchain image acquisition timed out")

	ErrNoSuitableDevice = errors.New("no suitable GPU found")
	ErrNoSurfaceFormats = errors.New("surface reports no formats")
	ErrNoPresentModes   = errors.New("surface reports no present modes")
)

// VkError is a failed Vulkan call: the operation and the raw result code.
type VkError struct {
	Op     string
	Result vulkan.Result
}

func (e *VkError) Error() string {
	return fmt.Sprintf("%s: %v (VkResult %d)", e.Op, vulkan.Error(e.Result), int32(e.Result))
}

func (e *VkError) Unwrap() error {
	return vulkan.Error(e.Result)
}

// vkCheck turns a non-success result into a *VkError with a stack.
func vkCheck(op string, res vulkan.Result) error {
	if res == vulkan.Success {
		return nil
	}
	return errors.WithStack(&VkError{Op: op, Result: res})
}

// ResultOf extracts the Vulkan result code carried by err, if any.
func ResultOf(err error) (vulkan.Result, bool) {
	var vkErr *VkError
	if errors.As(err, &vkErr) {
		return vkErr.Result, true
	}
	return vulkan.Success, false
}

// classifyAcquire maps a vkAcquireNextImageKHR result. Suboptimal still
// delivers a usable image.
func classifyAcquire(res vulkan.Result) error {
	switch res {
	case vulkan.Success, vulkan.Suboptimal:
		return nil
	case vulkan.ErrorOutOfDate:
		return errors.Mark(vkCheck("acquire next image", res), ErrSwapchainStale)
	case vulkan.Timeout, vulkan.NotReady:
		return errors.Mark(vkCheck("acquire next image", res), ErrAcquireTimeout)
	}
	return vkCheck("acquire next image", res)
}

// classifyPresent maps a vkQueuePresentKHR result. The image was queued in
// the suboptimal case, but the swapchain should still be rebuilt.
func classifyPresent(res vulkan.Result) error {
	switch res {
	case vulkan.Success:
		return nil
	case vulkan.Suboptimal, vulkan.ErrorOutOfDate:
		return errors.Mark(vkCheck("queue present", res), ErrSwapchainStale)
	}
	return vkCheck("queue present", res)
}
