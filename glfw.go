package main

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vulkan-go/glfw/v3.3/glfw"
	"github.com/vulkan-go/vulkan"
)

// glfwWindow adapts a GLFW window to render.Window.
type glfwWindow struct {
	w *glfw.Window
}

func newGLFWWindow(title string, width, height int) (*glfwWindow, error) {
	if !glfw.VulkanSupported() {
		return nil, errors.New("GLFW Vulkan loader not found")
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	w, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create window")
	}
	return &glfwWindow{w: w}, nil
}

// initLoader points the Vulkan bindings at the loader GLFW found.
func initLoader() error {
	vulkan.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vulkan.Init(); err != nil {
		return errors.Wrap(err, "vulkan init")
	}
	return nil
}

func (g *glfwWindow) RequiredInstanceExtensions() []string {
	return g.w.GetRequiredInstanceExtensions()
}

func (g *glfwWindow) CreateSurface(instance vulkan.Instance) (vulkan.Surface, error) {
	ptr, err := g.w.CreateWindowSurface(instance, nil)
	if err != nil {
		return vulkan.Surface(vulkan.NullHandle), errors.Wrap(err, "create window surface")
	}
	return vulkan.SurfaceFromPointer(ptr), nil
}

func (g *glfwWindow) FramebufferSize() (int, int) { return g.w.GetFramebufferSize() }

func (g *glfwWindow) PollEvents() { glfw.PollEvents() }

func (g *glfwWindow) WaitEventsTimeout(timeout time.Duration) {
	glfw.WaitEventsTimeout(timeout.Seconds())
}

func (g *glfwWindow) ShouldClose() bool { return g.w.ShouldClose() }

func (g *glfwWindow) destroy() { g.w.Destroy() }
