// Package render draws a single triangle through Vulkan: device setup,
// swapchain, pipeline, framebuffers, pre-recorded command buffers and the
// frame loop that ties them together.
package render

import (
	"context"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vulkan-go/vulkan"

	"pixelengine/internal/config"
	"pixelengine/internal/shader"
)

// renderTargets is everything derived from the swapchain. It is rebuilt as
// a unit when the swapchain goes stale.
type renderTargets struct {
	swapchain    *swapchain
	pipeline     *graphicsPipeline
	framebuffers []vulkan.Framebuffer
	commands     *commandRecorder
}

func buildTargets(c *deviceContext, width, height int, vert, frag shader.Bytecode) (*renderTargets, error) {
	t := &renderTargets{}
	var err error
	if t.swapchain, err = newSwapchain(c, width, height); err != nil {
		return nil, err
	}
	if t.pipeline, err = newGraphicsPipeline(c.device, t.swapchain.format, t.swapchain.extent, vert, frag); err != nil {
		t.destroy(c.device)
		return nil, err
	}
	if t.framebuffers, err = newFramebuffers(c.device, t.pipeline.renderPass, t.swapchain); err != nil {
		t.destroy(c.device)
		return nil, err
	}

	passes := make([]drawPass, len(t.framebuffers))
	for i, fb := range t.framebuffers {
		passes[i] = drawPass{
			renderPass:  t.pipeline.renderPass,
			framebuffer: fb,
			pipeline:    t.pipeline.pipeline,
			extent:      t.swapchain.extent,
			clear:       clearBlack,
		}
	}
	if t.commands, err = newCommandRecorder(c.device, c.queues.graphics, passes); err != nil {
		t.destroy(c.device)
		return nil, err
	}
	return t, nil
}

// destroy releases the targets in reverse creation order.
func (t *renderTargets) destroy(device vulkan.Device) {
	if t.commands != nil {
		t.commands.destroy(device)
		t.commands = nil
	}
	destroyFramebuffers(device, t.framebuffers)
	t.framebuffers = nil
	if t.pipeline != nil {
		t.pipeline.destroy(device)
		t.pipeline = nil
	}
	if t.swapchain != nil {
		t.swapchain.destroy(device)
		t.swapchain = nil
	}
}

// Renderer owns the whole Vulkan object graph for one window.
type Renderer struct {
	log  *slog.Logger
	win  Window
	vert shader.Bytecode
	frag shader.Bytecode

	ctx     *deviceContext
	targets *renderTargets
	slots   []frameSlot
	queue   *vkFrameQueue
	sched   *frameScheduler
}

// New loads the shaders and builds every Vulkan object needed to draw.
// Whatever was created before a failure is released.
func New(win Window, cfg config.Config, log *slog.Logger) (*Renderer, error) {
	r := &Renderer{log: log, win: win}

	var err error
	if r.vert, err = shader.Load(cfg.Render.VertexShader); err != nil {
		return nil, err
	}
	if r.frag, err = shader.Load(cfg.Render.FragmentShader); err != nil {
		return nil, err
	}
	log.Debug("shaders loaded", "vertex", r.vert.Size(), "fragment", r.frag.Size())

	r.ctx, err = newDeviceContext(win, contextOptions{
		appName:    cfg.Window.Title,
		validation: cfg.Render.Validation,
	}, log)
	if err != nil {
		return nil, err
	}

	width, height := win.FramebufferSize()
	if r.targets, err = buildTargets(r.ctx, width, height, r.vert, r.frag); err != nil {
		r.Destroy()
		return nil, err
	}
	r.logTargets()

	if r.slots, err = newFrameSlots(r.ctx.device, cfg.Render.FramesInFlight); err != nil {
		r.Destroy()
		return nil, err
	}

	r.queue = &vkFrameQueue{
		device:   r.ctx.device,
		graphics: r.ctx.graphicsQueue,
		present:  r.ctx.presentQueue,
		slots:    r.slots,
		targets:  r.targets,
	}
	r.sched = newFrameScheduler(r.queue, len(r.slots), r.targets.swapchain.imageCount(),
		cfg.Render.AcquireTimeout.Duration, newFrameStats(cfg.Render.StatsInterval.Duration), log.With("component", "scheduler"))
	return r, nil
}

func (r *Renderer) logTargets() {
	sc := r.targets.swapchain
	r.log.Info("swapchain ready",
		"images", sc.imageCount(),
		"width", sc.extent.Width,
		"height", sc.extent.Height,
		"format", sc.format,
		"present_mode", sc.presentMode)
	d := r.targets.commands.digest
	r.log.Debug("command buffers recorded", "buffers", len(r.targets.commands.buffers), "sha256", hex.EncodeToString(d[:]))
}

// RequestRebuild schedules a swapchain rebuild after the current frame.
func (r *Renderer) RequestRebuild() {
	r.sched.requestRebuild()
}

// Frames reports how many frames were presented.
func (r *Renderer) Frames() uint64 {
	return r.sched.frames
}

// Run draws until the window closes or ctx is cancelled. The device is idle
// when it returns.
func (r *Renderer) Run(ctx context.Context) error {
	stop := func() bool {
		r.win.PollEvents()
		return r.win.ShouldClose()
	}
	return r.sched.run(ctx, stop, r.rebuild)
}

// drawableWait bounds each event wait while the window is minimised, so a
// cancelled ctx is noticed without a window event.
const drawableWait = 100 * time.Millisecond

// waitForDrawable blocks until the window has a non-zero size. It returns
// errWindowClosed if the window is closed or ctx is done first.
func waitForDrawable(ctx context.Context, win Window) (int, int, error) {
	width, height := win.FramebufferSize()
	for width == 0 || height == 0 {
		if ctx.Err() != nil || win.ShouldClose() {
			return 0, 0, errWindowClosed
		}
		win.WaitEventsTimeout(drawableWait)
		width, height = win.FramebufferSize()
	}
	return width, height, nil
}

// rebuild recreates the swapchain and its dependents. The device context
// and the frame slots survive. A zero-sized window blocks here until it is
// restored, closed or ctx is cancelled.
func (r *Renderer) rebuild(ctx context.Context) (int, error) {
	if err := r.ctx.waitIdle(); err != nil {
		return 0, err
	}

	width, height, err := waitForDrawable(ctx, r.win)
	if err != nil {
		return 0, err
	}

	r.targets.destroy(r.ctx.device)
	targets, err := buildTargets(r.ctx, width, height, r.vert, r.frag)
	if err != nil {
		return 0, errors.Wrapf(err, "rebuild at %dx%d", width, height)
	}
	r.targets = targets
	r.queue.targets = targets
	r.logTargets()
	return targets.swapchain.imageCount(), nil
}

// Destroy waits for the device and releases everything in reverse creation
// order. It is safe to call on a partially built renderer.
func (r *Renderer) Destroy() {
	if r.ctx == nil {
		return
	}
	if r.ctx.device != vulkan.Device(vulkan.NullHandle) {
		if err := r.ctx.waitIdle(); err != nil {
			r.log.Warn("device wait idle before cleanup", "err", err)
		}
		destroyFrameSlots(r.ctx.device, r.slots)
		r.slots = nil
		if r.targets != nil {
			r.targets.destroy(r.ctx.device)
			r.targets = nil
		}
	}
	r.ctx.destroy()
	r.ctx = nil
}
