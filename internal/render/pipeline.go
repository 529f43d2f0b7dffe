package render

import (
	"github.com/vulkan-go/vulkan"

	"pixelengine/internal/shader"
)

const shaderEntryPoint = "main\x00"

// renderPassConfig describes the single colour attachment and subpass.
type renderPassConfig struct {
	format vulkan.Format
}

func (rc renderPassConfig) colorAttachment() vulkan.AttachmentDescription {
	return vulkan.AttachmentDescription{
		Format:         rc.format,
		Samples:        vulkan.SampleCount1Bit,
		LoadOp:         vulkan.AttachmentLoadOpClear,
		StoreOp:        vulkan.AttachmentStoreOpStore,
		StencilLoadOp:  vulkan.AttachmentLoadOpDontCare,
		StencilStoreOp: vulkan.AttachmentStoreOpDontCare,
		InitialLayout:  vulkan.ImageLayoutUndefined,
		FinalLayout:    vulkan.ImageLayoutPresentSrc,
	}
}

func (rc renderPassConfig) subpass() vulkan.SubpassDescription {
	return vulkan.SubpassDescription{
		PipelineBindPoint:    vulkan.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments: []vulkan.AttachmentReference{{
			Attachment: 0,
			Layout:     vulkan.ImageLayoutColorAttachmentOptimal,
		}},
	}
}

// dependency makes the layout transition at the start of the pass wait for
// the same stage the acquire semaphore is waited on.
func (rc renderPassConfig) dependency() vulkan.SubpassDependency {
	return vulkan.SubpassDependency{
		SrcSubpass:    vulkan.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vulkan.PipelineStageFlags(vulkan.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: 0,
		DstStageMask:  vulkan.PipelineStageFlags(vulkan.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vulkan.AccessFlags(vulkan.AccessColorAttachmentWriteBit),
	}
}

func (rc renderPassConfig) createInfo() vulkan.RenderPassCreateInfo {
	return vulkan.RenderPassCreateInfo{
		SType:           vulkan.StructureTypeRenderPassCreateInfo,
		AttachmentCount: 1,
		PAttachments:    []vulkan.AttachmentDescription{rc.colorAttachment()},
		SubpassCount:    1,
		PSubpasses:      []vulkan.SubpassDescription{rc.subpass()},
		DependencyCount: 1,
		PDependencies:   []vulkan.SubpassDependency{rc.dependency()},
	}
}

// pipelineConfig is the fixed-function state of the graphics pipeline.
// Geometry comes from the vertex shader, so there is no vertex input.
type pipelineConfig struct {
	extent      vulkan.Extent2D
	topology    vulkan.PrimitiveTopology
	polygonMode vulkan.PolygonMode
	cullMode    vulkan.CullModeFlagBits
	frontFace   vulkan.FrontFace
	lineWidth   float32
	samples     vulkan.SampleCountFlagBits
}

func defaultPipelineConfig(extent vulkan.Extent2D) pipelineConfig {
	return pipelineConfig{
		extent:      extent,
		topology:    vulkan.PrimitiveTopologyTriangleList,
		polygonMode: vulkan.PolygonModeFill,
		cullMode:    vulkan.CullModeBackBit,
		frontFace:   vulkan.FrontFaceClockwise,
		lineWidth:   1.0,
		samples:     vulkan.SampleCount1Bit,
	}
}

func (pc pipelineConfig) vertexInputState() vulkan.PipelineVertexInputStateCreateInfo {
	return vulkan.PipelineVertexInputStateCreateInfo{
		SType:                           vulkan.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   0,
		VertexAttributeDescriptionCount: 0,
	}
}

func (pc pipelineConfig) inputAssemblyState() vulkan.PipelineInputAssemblyStateCreateInfo {
	return vulkan.PipelineInputAssemblyStateCreateInfo{
		SType:                  vulkan.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               pc.topology,
		PrimitiveRestartEnable: vulkan.False,
	}
}

func (pc pipelineConfig) viewportState() vulkan.PipelineViewportStateCreateInfo {
	viewport := vulkan.Viewport{
		X:        0,
		Y:        0,
		Width:    float32(pc.extent.Width),
		Height:   float32(pc.extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}
	scissor := vulkan.Rect2D{
		Offset: vulkan.Offset2D{X: 0, Y: 0},
		Extent: pc.extent,
	}
	return vulkan.PipelineViewportStateCreateInfo{
		SType:         vulkan.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		PViewports:    []vulkan.Viewport{viewport},
		ScissorCount:  1,
		PScissors:     []vulkan.Rect2D{scissor},
	}
}

func (pc pipelineConfig) rasterizationState() vulkan.PipelineRasterizationStateCreateInfo {
	return vulkan.PipelineRasterizationStateCreateInfo{
		SType:                   vulkan.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vulkan.False,
		RasterizerDiscardEnable: vulkan.False,
		PolygonMode:             pc.polygonMode,
		LineWidth:               pc.lineWidth,
		CullMode:                vulkan.CullModeFlags(pc.cullMode),
		FrontFace:               pc.frontFace,
		DepthBiasEnable:         vulkan.False,
	}
}

func (pc pipelineConfig) multisampleState() vulkan.PipelineMultisampleStateCreateInfo {
	return vulkan.PipelineMultisampleStateCreateInfo{
		SType:                vulkan.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: pc.samples,
		SampleShadingEnable:  vulkan.False,
		MinSampleShading:     1.0,
	}
}

func (pc pipelineConfig) colorBlendState() vulkan.PipelineColorBlendStateCreateInfo {
	attachment := vulkan.PipelineColorBlendAttachmentState{
		ColorWriteMask: vulkan.ColorComponentFlags(vulkan.ColorComponentRBit | vulkan.ColorComponentGBit | vulkan.ColorComponentBBit | vulkan.ColorComponentABit),
		BlendEnable:    vulkan.False,
	}
	return vulkan.PipelineColorBlendStateCreateInfo{
		SType:           vulkan.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vulkan.False,
		LogicOp:         vulkan.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vulkan.PipelineColorBlendAttachmentState{attachment},
	}
}

// layoutInfo has no descriptor sets and no push constants.
func (pc pipelineConfig) layoutInfo() vulkan.PipelineLayoutCreateInfo {
	return vulkan.PipelineLayoutCreateInfo{
		SType:                  vulkan.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         0,
		PushConstantRangeCount: 0,
	}
}

func shaderStages(vert, frag vulkan.ShaderModule) []vulkan.PipelineShaderStageCreateInfo {
	return []vulkan.PipelineShaderStageCreateInfo{
		{
			SType:  vulkan.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vulkan.ShaderStageVertexBit,
			Module: vert,
			PName:  shaderEntryPoint,
		},
		{
			SType:  vulkan.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vulkan.ShaderStageFragmentBit,
			Module: frag,
			PName:  shaderEntryPoint,
		},
	}
}

// graphicsPipeline owns the render pass, the layout and the pipeline.
type graphicsPipeline struct {
	renderPass vulkan.RenderPass
	layout     vulkan.PipelineLayout
	pipeline   vulkan.Pipeline
}

func newGraphicsPipeline(device vulkan.Device, format vulkan.Format, extent vulkan.Extent2D, vert, frag shader.Bytecode) (*graphicsPipeline, error) {
	p := &graphicsPipeline{}
	rpInfo := renderPassConfig{format: format}.createInfo()
	if err := vkCheck("create render pass", vulkan.CreateRenderPass(device, &rpInfo, nil, &p.renderPass)); err != nil {
		return nil, err
	}

	// Shader modules only need to live until the pipeline exists.
	vertModule, err := createShaderModule(device, vert)
	if err != nil {
		p.destroy(device)
		return nil, err
	}
	defer vulkan.DestroyShaderModule(device, vertModule, nil)
	fragModule, err := createShaderModule(device, frag)
	if err != nil {
		p.destroy(device)
		return nil, err
	}
	defer vulkan.DestroyShaderModule(device, fragModule, nil)

	cfg := defaultPipelineConfig(extent)
	layoutInfo := cfg.layoutInfo()
	if err := vkCheck("create pipeline layout", vulkan.CreatePipelineLayout(device, &layoutInfo, nil, &p.layout)); err != nil {
		p.destroy(device)
		return nil, err
	}

	stages := shaderStages(vertModule, fragModule)
	vertexInput := cfg.vertexInputState()
	inputAssembly := cfg.inputAssemblyState()
	viewportState := cfg.viewportState()
	rasterizer := cfg.rasterizationState()
	multisampling := cfg.multisampleState()
	colorBlending := cfg.colorBlendState()

	pipelineInfo := vulkan.GraphicsPipelineCreateInfo{
		SType:               vulkan.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisampling,
		PColorBlendState:    &colorBlending,
		Layout:              p.layout,
		RenderPass:          p.renderPass,
		Subpass:             0,
		BasePipelineIndex:   -1,
	}
	pipelines := make([]vulkan.Pipeline, 1)
	if err := vkCheck("create graphics pipeline", vulkan.CreateGraphicsPipelines(device, vulkan.PipelineCache(vulkan.NullHandle), 1, []vulkan.GraphicsPipelineCreateInfo{pipelineInfo}, nil, pipelines)); err != nil {
		p.destroy(device)
		return nil, err
	}
	p.pipeline = pipelines[0]
	return p, nil
}

func createShaderModule(device vulkan.Device, code shader.Bytecode) (vulkan.ShaderModule, error) {
	createInfo := vulkan.ShaderModuleCreateInfo{
		SType:    vulkan.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(code.Size()),
		PCode:    code.Words(),
	}
	var module vulkan.ShaderModule
	if err := vkCheck("create shader module "+code.Path, vulkan.CreateShaderModule(device, &createInfo, nil, &module)); err != nil {
		return vulkan.ShaderModule(vulkan.NullHandle), err
	}
	return module, nil
}

func (p *graphicsPipeline) destroy(device vulkan.Device) {
	if p.pipeline != vulkan.Pipeline(vulkan.NullHandle) {
		vulkan.DestroyPipeline(device, p.pipeline, nil)
		p.pipeline = vulkan.Pipeline(vulkan.NullHandle)
	}
	if p.layout != vulkan.PipelineLayout(vulkan.NullHandle) {
		vulkan.DestroyPipelineLayout(device, p.layout, nil)
		p.layout = vulkan.PipelineLayout(vulkan.NullHandle)
	}
	if p.renderPass != vulkan.RenderPass(vulkan.NullHandle) {
		vulkan.DestroyRenderPass(device, p.renderPass, nil)
		p.renderPass = vulkan.RenderPass(vulkan.NullHandle)
	}
}
