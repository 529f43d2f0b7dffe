package render

import (
	"time"

	"github.com/vulkan-go/vulkan"
)

// Window is what the renderer needs from the windowing library.
type Window interface {
	// RequiredInstanceExtensions lists the instance extensions the window
	// system needs for presentation.
	RequiredInstanceExtensions() []string
	// CreateSurface creates a presentable surface bound to the window.
	CreateSurface(instance vulkan.Instance) (vulkan.Surface, error)
	// FramebufferSize reports the drawable size in pixels.
	FramebufferSize() (width, height int)
	PollEvents()
	// WaitEventsTimeout blocks until a window event arrives or timeout
	// passes.
	WaitEventsTimeout(timeout time.Duration)
	// ShouldClose reports whether the user asked for the window to close.
	ShouldClose() bool
}
