package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/vulkan-go/glfw/v3.3/glfw"

	"pixelengine/internal/config"
	"pixelengine/internal/render"
)

func init() {
	// GLFW/Vulkan require the main thread.
	runtime.LockOSThread()
}

func main() {
	if err := run(); err != nil {
		slog.Error("pixel_engine failed", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(config.Path())
	if err != nil {
		return err
	}
	level, _ := cfg.Log.SlogLevel()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := glfw.Init(); err != nil {
		return err
	}
	defer glfw.Terminate()

	win, err := newGLFWWindow(cfg.Window.Title, cfg.Window.Width, cfg.Window.Height)
	if err != nil {
		return err
	}
	defer win.destroy()

	// Ensure the framebuffer has a non-zero size before initializing Vulkan.
	for {
		w, h := win.FramebufferSize()
		if w > 0 && h > 0 {
			break
		}
		if ctx.Err() != nil || win.ShouldClose() {
			return nil
		}
		glfw.WaitEventsTimeout(0.01)
	}

	win.w.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
		}
	})

	if err := initLoader(); err != nil {
		return err
	}
	r, err := render.New(win, cfg, log)
	if err != nil {
		return err
	}
	log.Info("pixel_engine initialized", "frames_in_flight", cfg.Render.FramesInFlight, "validation", cfg.Render.Validation)

	win.w.SetFramebufferSizeCallback(func(w *glfw.Window, width int, height int) {
		r.RequestRebuild()
	})

	runErr := r.Run(ctx)
	log.Info("frame loop finished", "frames", r.Frames())
	r.Destroy()
	log.Info("cleanup finished")
	return runErr
}
