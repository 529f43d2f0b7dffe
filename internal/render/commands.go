package render

import (
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/cockroachdb/errors"
	mgl32 "github.com/go-gl/mathgl/mgl32"
	"github.com/vulkan-go/vulkan"
)

const (
	triangleVertices  = 3
	triangleInstances = 1
)

var clearBlack = mgl32.Vec4{0, 0, 0, 1}

// commandEncoder receives the fixed draw sequence.
type commandEncoder interface {
	Begin() error
	BeginRenderPass(pass vulkan.RenderPass, fb vulkan.Framebuffer, extent vulkan.Extent2D, clear mgl32.Vec4)
	BindPipeline(pipeline vulkan.Pipeline)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	EndRenderPass()
	End() error
}

// drawPass is everything one command buffer is recorded from.
type drawPass struct {
	renderPass  vulkan.RenderPass
	framebuffer vulkan.Framebuffer
	pipeline    vulkan.Pipeline
	extent      vulkan.Extent2D
	clear       mgl32.Vec4
}

// recordDraw encodes begin, render pass, bind, one 3-vertex draw, end.
func recordDraw(enc commandEncoder, p drawPass) error {
	if err := enc.Begin(); err != nil {
		return err
	}
	enc.BeginRenderPass(p.renderPass, p.framebuffer, p.extent, p.clear)
	enc.BindPipeline(p.pipeline)
	enc.Draw(triangleVertices, triangleInstances, 0, 0)
	enc.EndRenderPass()
	return enc.End()
}

// vkEncoder records into a Vulkan command buffer.
type vkEncoder struct {
	cb vulkan.CommandBuffer
}

func (e vkEncoder) Begin() error {
	beginInfo := vulkan.CommandBufferBeginInfo{
		SType: vulkan.StructureTypeCommandBufferBeginInfo,
	}
	return vkCheck("begin command buffer", vulkan.BeginCommandBuffer(e.cb, &beginInfo))
}

func (e vkEncoder) BeginRenderPass(pass vulkan.RenderPass, fb vulkan.Framebuffer, extent vulkan.Extent2D, clear mgl32.Vec4) {
	clearValues := []vulkan.ClearValue{vulkan.NewClearValue(clear[:])}
	renderPassInfo := vulkan.RenderPassBeginInfo{
		SType:       vulkan.StructureTypeRenderPassBeginInfo,
		RenderPass:  pass,
		Framebuffer: fb,
		RenderArea: vulkan.Rect2D{
			Offset: vulkan.Offset2D{X: 0, Y: 0},
			Extent: extent,
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vulkan.CmdBeginRenderPass(e.cb, &renderPassInfo, vulkan.SubpassContentsInline)
}

func (e vkEncoder) BindPipeline(pipeline vulkan.Pipeline) {
	vulkan.CmdBindPipeline(e.cb, vulkan.PipelineBindPointGraphics, pipeline)
}

func (e vkEncoder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vulkan.CmdDraw(e.cb, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (e vkEncoder) EndRenderPass() {
	vulkan.CmdEndRenderPass(e.cb)
}

func (e vkEncoder) End() error {
	return vkCheck("end command buffer", vulkan.EndCommandBuffer(e.cb))
}

type opcode byte

const (
	opBegin opcode = iota + 1
	opBeginRenderPass
	opBindPipeline
	opDraw
	opEndRenderPass
	opEnd
)

// streamEncoder serialises the command sequence into bytes. Handles are
// numbered in first-seen order so equal inputs give equal streams. One
// encoder shared by several buffers tells their framebuffers apart; a fresh
// encoder per buffer does not.
type streamEncoder struct {
	buf     []byte
	handles map[any]uint32
}

func newStreamEncoder() *streamEncoder {
	return &streamEncoder{handles: make(map[any]uint32)}
}

func (e *streamEncoder) op(o opcode) { e.buf = append(e.buf, byte(o)) }

func (e *streamEncoder) u32(v uint32) { e.buf = binary.LittleEndian.AppendUint32(e.buf, v) }

func (e *streamEncoder) handle(h any) {
	id, ok := e.handles[h]
	if !ok {
		id = uint32(len(e.handles) + 1)
		e.handles[h] = id
	}
	e.u32(id)
}

func (e *streamEncoder) Begin() error {
	e.op(opBegin)
	return nil
}

func (e *streamEncoder) BeginRenderPass(pass vulkan.RenderPass, fb vulkan.Framebuffer, extent vulkan.Extent2D, clear mgl32.Vec4) {
	e.op(opBeginRenderPass)
	e.handle(pass)
	e.handle(fb)
	e.u32(extent.Width)
	e.u32(extent.Height)
	for _, c := range clear {
		e.u32(math.Float32bits(c))
	}
}

func (e *streamEncoder) BindPipeline(pipeline vulkan.Pipeline) {
	e.op(opBindPipeline)
	e.handle(pipeline)
}

func (e *streamEncoder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	e.op(opDraw)
	e.u32(vertexCount)
	e.u32(instanceCount)
	e.u32(firstVertex)
	e.u32(firstInstance)
}

func (e *streamEncoder) EndRenderPass() { e.op(opEndRenderPass) }

func (e *streamEncoder) End() error {
	e.op(opEnd)
	return nil
}

func (e *streamEncoder) Bytes() []byte { return e.buf }

// teeEncoder forwards every command to each encoder in order.
type teeEncoder []commandEncoder

func (t teeEncoder) Begin() error {
	for _, e := range t {
		if err := e.Begin(); err != nil {
			return err
		}
	}
	return nil
}

func (t teeEncoder) BeginRenderPass(pass vulkan.RenderPass, fb vulkan.Framebuffer, extent vulkan.Extent2D, clear mgl32.Vec4) {
	for _, e := range t {
		e.BeginRenderPass(pass, fb, extent, clear)
	}
}

func (t teeEncoder) BindPipeline(pipeline vulkan.Pipeline) {
	for _, e := range t {
		e.BindPipeline(pipeline)
	}
}

func (t teeEncoder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	for _, e := range t {
		e.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
	}
}

func (t teeEncoder) EndRenderPass() {
	for _, e := range t {
		e.EndRenderPass()
	}
}

func (t teeEncoder) End() error {
	for _, e := range t {
		if err := e.End(); err != nil {
			return err
		}
	}
	return nil
}

// commandRecorder owns the command pool and one pre-recorded command buffer
// per framebuffer. Buffers are recorded once and never re-recorded. digest
// covers the streams of all buffers, in image order.
type commandRecorder struct {
	pool    vulkan.CommandPool
	buffers []vulkan.CommandBuffer
	digest  [sha256.Size]byte
}

func newCommandRecorder(device vulkan.Device, family uint32, passes []drawPass) (*commandRecorder, error) {
	r := &commandRecorder{}
	poolInfo := vulkan.CommandPoolCreateInfo{
		SType:            vulkan.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: family,
	}
	if err := vkCheck("create command pool", vulkan.CreateCommandPool(device, &poolInfo, nil, &r.pool)); err != nil {
		return nil, err
	}

	allocInfo := vulkan.CommandBufferAllocateInfo{
		SType:              vulkan.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        r.pool,
		Level:              vulkan.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(len(passes)),
	}
	buffers := make([]vulkan.CommandBuffer, len(passes))
	if err := vkCheck("allocate command buffers", vulkan.AllocateCommandBuffers(device, &allocInfo, buffers)); err != nil {
		r.destroy(device)
		return nil, err
	}
	r.buffers = buffers

	stream := newStreamEncoder()
	for i, p := range passes {
		if err := recordDraw(teeEncoder{vkEncoder{cb: r.buffers[i]}, stream}, p); err != nil {
			r.destroy(device)
			return nil, errors.Wrapf(err, "record command buffer %d", i)
		}
	}
	r.digest = sha256.Sum256(stream.Bytes())
	return r, nil
}

// destroy frees the buffers with their pool.
func (r *commandRecorder) destroy(device vulkan.Device) {
	if len(r.buffers) > 0 {
		vulkan.FreeCommandBuffers(device, r.pool, uint32(len(r.buffers)), r.buffers)
		r.buffers = nil
	}
	if r.pool != vulkan.CommandPool(vulkan.NullHandle) {
		vulkan.DestroyCommandPool(device, r.pool, nil)
		r.pool = vulkan.CommandPool(vulkan.NullHandle)
	}
}
