package render

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/vulkan-go/vulkan"
)

type surfaceSupport struct {
	capabilities vulkan.SurfaceCapabilities
	formats      []vulkan.SurfaceFormat
	presentModes []vulkan.PresentMode
}

// surfaceQuerier is the driver side of a surface support query.
type surfaceQuerier interface {
	Capabilities(caps *vulkan.SurfaceCapabilities) vulkan.Result
	Formats(count *uint32, formats []vulkan.SurfaceFormat) vulkan.Result
	PresentModes(count *uint32, modes []vulkan.PresentMode) vulkan.Result
}

type vkSurfaceQuerier struct {
	dev     vulkan.PhysicalDevice
	surface vulkan.Surface
}

func (q vkSurfaceQuerier) Capabilities(caps *vulkan.SurfaceCapabilities) vulkan.Result {
	return vulkan.GetPhysicalDeviceSurfaceCapabilities(q.dev, q.surface, caps)
}

func (q vkSurfaceQuerier) Formats(count *uint32, formats []vulkan.SurfaceFormat) vulkan.Result {
	return vulkan.GetPhysicalDeviceSurfaceFormats(q.dev, q.surface, count, formats)
}

func (q vkSurfaceQuerier) PresentModes(count *uint32, modes []vulkan.PresentMode) vulkan.Result {
	return vulkan.GetPhysicalDeviceSurfacePresentModes(q.dev, q.surface, count, modes)
}

// listCheck is vkCheck for enumeration calls, where Incomplete still
// fills the slice.
func listCheck(op string, res vulkan.Result) error {
	if res == vulkan.Incomplete {
		return nil
	}
	return vkCheck(op, res)
}

func querySurfaceSupport(q surfaceQuerier) (surfaceSupport, error) {
	var details surfaceSupport
	if err := vkCheck("get surface capabilities", q.Capabilities(&details.capabilities)); err != nil {
		return surfaceSupport{}, err
	}
	details.capabilities.Deref()
	details.capabilities.CurrentExtent.Deref()
	details.capabilities.MinImageExtent.Deref()
	details.capabilities.MaxImageExtent.Deref()

	var formatCount uint32
	if err := listCheck("get surface formats", q.Formats(&formatCount, nil)); err != nil {
		return surfaceSupport{}, err
	}
	if formatCount > 0 {
		details.formats = make([]vulkan.SurfaceFormat, formatCount)
		if err := listCheck("get surface formats", q.Formats(&formatCount, details.formats)); err != nil {
			return surfaceSupport{}, err
		}
		details.formats = details.formats[:formatCount]
		for i := range details.formats {
			details.formats[i].Deref()
		}
	}

	var presentCount uint32
	if err := listCheck("get surface present modes", q.PresentModes(&presentCount, nil)); err != nil {
		return surfaceSupport{}, err
	}
	if presentCount > 0 {
		details.presentModes = make([]vulkan.PresentMode, presentCount)
		if err := listCheck("get surface present modes", q.PresentModes(&presentCount, details.presentModes)); err != nil {
			return surfaceSupport{}, err
		}
		details.presentModes = details.presentModes[:presentCount]
	}
	return details, nil
}

// chooseSurfaceFormat prefers 8-bit BGRA sRGB, else the first format offered.
func chooseSurfaceFormat(available []vulkan.SurfaceFormat) (vulkan.SurfaceFormat, error) {
	if len(available) == 0 {
		return vulkan.SurfaceFormat{}, errors.WithStack(ErrNoSurfaceFormats)
	}
	for _, f := range available {
		if f.Format == vulkan.FormatB8g8r8a8Srgb && f.ColorSpace == vulkan.ColorSpaceSrgbNonlinear {
			return f, nil
		}
	}
	return available[0], nil
}

// choosePresentMode prefers mailbox and falls back to FIFO, which every
// implementation must support.
func choosePresentMode(available []vulkan.PresentMode) (vulkan.PresentMode, error) {
	if len(available) == 0 {
		return 0, errors.WithStack(ErrNoPresentModes)
	}
	for _, m := range available {
		if m == vulkan.PresentModeMailbox {
			return m, nil
		}
	}
	return vulkan.PresentModeFifo, nil
}

// chooseExtent uses the surface's current extent when defined, else the
// drawable size clamped into [MinImageExtent, MaxImageExtent].
func chooseExtent(caps vulkan.SurfaceCapabilities, width, height int) vulkan.Extent2D {
	if caps.CurrentExtent.Width != math.MaxUint32 {
		return caps.CurrentExtent
	}
	return vulkan.Extent2D{
		Width:  clampDim(width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clampDim(height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

func clampDim(v int, lo, hi uint32) uint32 {
	if v < 0 {
		v = 0
	}
	return uint32(clamp(uint64(v), uint64(lo), uint64(hi)))
}

func clamp(val, min, max uint64) uint64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

// chooseImageCount asks for one image more than the driver minimum, capped
// by the maximum when the driver reports one (0 means unbounded).
func chooseImageCount(caps vulkan.SurfaceCapabilities) uint32 {
	n := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && n > caps.MaxImageCount {
		n = caps.MaxImageCount
	}
	return n
}

// sharingFor returns exclusive sharing with no family list when one family
// draws and presents, else concurrent sharing across both families.
func sharingFor(q queueFamilies) (vulkan.SharingMode, []uint32) {
	if q.shared() {
		return vulkan.SharingModeExclusive, nil
	}
	return vulkan.SharingModeConcurrent, []uint32{q.graphics, q.present}
}

// swapchain owns the presentable images and one view per image. Format,
// extent and image count are fixed for its lifetime.
type swapchain struct {
	handle      vulkan.Swapchain
	images      []vulkan.Image
	views       []vulkan.ImageView
	format      vulkan.Format
	extent      vulkan.Extent2D
	presentMode vulkan.PresentMode
}

func (s *swapchain) imageCount() int { return len(s.images) }

func newSwapchain(c *deviceContext, width, height int) (*swapchain, error) {
	support, err := querySurfaceSupport(vkSurfaceQuerier{dev: c.physicalDevice, surface: c.surface})
	if err != nil {
		return nil, err
	}

	surfaceFormat, err := chooseSurfaceFormat(support.formats)
	if err != nil {
		return nil, err
	}
	presentMode, err := choosePresentMode(support.presentModes)
	if err != nil {
		return nil, err
	}
	extent := chooseExtent(support.capabilities, width, height)
	sharing, families := sharingFor(c.queues)

	createInfo := vulkan.SwapchainCreateInfo{
		SType:                 vulkan.StructureTypeSwapchainCreateInfo,
		Surface:               c.surface,
		MinImageCount:         chooseImageCount(support.capabilities),
		ImageFormat:           surfaceFormat.Format,
		ImageColorSpace:       surfaceFormat.ColorSpace,
		ImageExtent:           extent,
		ImageArrayLayers:      1,
		ImageUsage:            vulkan.ImageUsageFlags(vulkan.ImageUsageColorAttachmentBit),
		ImageSharingMode:      sharing,
		QueueFamilyIndexCount: uint32(len(families)),
		PQueueFamilyIndices:   families,
		PreTransform:          support.capabilities.CurrentTransform,
		CompositeAlpha:        vulkan.CompositeAlphaOpaqueBit,
		PresentMode:           presentMode,
		Clipped:               vulkan.True,
		OldSwapchain:          vulkan.Swapchain(vulkan.NullHandle),
	}

	s := &swapchain{format: surfaceFormat.Format, extent: extent, presentMode: presentMode}
	if err := vkCheck("create swapchain", vulkan.CreateSwapchain(c.device, &createInfo, nil, &s.handle)); err != nil {
		return nil, err
	}

	var count uint32
	if err := vkCheck("get swapchain images", vulkan.GetSwapchainImages(c.device, s.handle, &count, nil)); err != nil {
		s.destroy(c.device)
		return nil, err
	}
	s.images = make([]vulkan.Image, count)
	if err := vkCheck("get swapchain images", vulkan.GetSwapchainImages(c.device, s.handle, &count, s.images)); err != nil {
		s.destroy(c.device)
		return nil, err
	}

	s.views = make([]vulkan.ImageView, 0, len(s.images))
	for i, img := range s.images {
		view, err := createImageView(c.device, img, s.format)
		if err != nil {
			s.destroy(c.device)
			return nil, errors.Wrapf(err, "image view %d", i)
		}
		s.views = append(s.views, view)
	}
	return s, nil
}

func createImageView(device vulkan.Device, image vulkan.Image, format vulkan.Format) (vulkan.ImageView, error) {
	viewInfo := vulkan.ImageViewCreateInfo{
		SType:    vulkan.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vulkan.ImageViewType2d,
		Format:   format,
		Components: vulkan.ComponentMapping{
			R: vulkan.ComponentSwizzleIdentity,
			G: vulkan.ComponentSwizzleIdentity,
			B: vulkan.ComponentSwizzleIdentity,
			A: vulkan.ComponentSwizzleIdentity,
		},
		SubresourceRange: vulkan.ImageSubresourceRange{
			AspectMask:     vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	var view vulkan.ImageView
	if err := vkCheck("create image view", vulkan.CreateImageView(device, &viewInfo, nil, &view)); err != nil {
		return vulkan.ImageView(vulkan.NullHandle), err
	}
	return view, nil
}

// destroy releases the views 1:1 and then the swapchain itself.
func (s *swapchain) destroy(device vulkan.Device) {
	for _, view := range s.views {
		vulkan.DestroyImageView(device, view, nil)
	}
	s.views = nil
	s.images = nil
	if s.handle != vulkan.Swapchain(vulkan.NullHandle) {
		vulkan.DestroySwapchain(device, s.handle, nil)
		s.handle = vulkan.Swapchain(vulkan.NullHandle)
	}
}
