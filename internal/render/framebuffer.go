package render

import (
	"github.com/cockroachdb/errors"
	"github.com/vulkan-go/vulkan"
)

// newFramebuffers builds one framebuffer per swapchain image view, each with
// that view as its only attachment.
func newFramebuffers(device vulkan.Device, renderPass vulkan.RenderPass, sc *swapchain) ([]vulkan.Framebuffer, error) {
	framebuffers := make([]vulkan.Framebuffer, 0, len(sc.views))
	for i, view := range sc.views {
		createInfo := vulkan.FramebufferCreateInfo{
			SType:           vulkan.StructureTypeFramebufferCreateInfo,
			RenderPass:      renderPass,
			AttachmentCount: 1,
			PAttachments:    []vulkan.ImageView{view},
			Width:           sc.extent.Width,
			Height:          sc.extent.Height,
			Layers:          1,
		}
		var fb vulkan.Framebuffer
		if err := vkCheck("create framebuffer", vulkan.CreateFramebuffer(device, &createInfo, nil, &fb)); err != nil {
			destroyFramebuffers(device, framebuffers)
			return nil, errors.Wrapf(err, "framebuffer %d", i)
		}
		framebuffers = append(framebuffers, fb)
	}
	return framebuffers, nil
}

func destroyFramebuffers(device vulkan.Device, framebuffers []vulkan.Framebuffer) {
	for _, fb := range framebuffers {
		vulkan.DestroyFramebuffer(device, fb, nil)
	}
}
