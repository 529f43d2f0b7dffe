package render

import "github.com/vulkan-go/vulkan"

// queueFamilies is the graphics/present family pair a device exposes.
type queueFamilies struct {
	graphics    uint32
	present     uint32
	hasGraphics bool
	hasPresent  bool
}

func (q queueFamilies) complete() bool {
	return q.hasGraphics && q.hasPresent
}

// shared reports whether one family serves both roles.
func (q queueFamilies) shared() bool {
	return q.graphics == q.present
}

// unique returns the distinct family indices, graphics first.
func (q queueFamilies) unique() []uint32 {
	if q.shared() {
		return []uint32{q.graphics}
	}
	return []uint32{q.graphics, q.present}
}

// pickQueueFamilies prefers a single family that can both draw and present;
// otherwise it takes the first graphics and the first present family.
// props must already be dereferenced.
func pickQueueFamilies(props []vulkan.QueueFamilyProperties, canPresent func(family uint32) bool) queueFamilies {
	var q queueFamilies
	for i := range props {
		family := uint32(i)
		graphics := props[i].QueueFlags&vulkan.QueueFlags(vulkan.QueueGraphicsBit) != 0
		present := canPresent(family)
		if graphics && present {
			return queueFamilies{graphics: family, present: family, hasGraphics: true, hasPresent: true}
		}
		if graphics && !q.hasGraphics {
			q.graphics, q.hasGraphics = family, true
		}
		if present && !q.hasPresent {
			q.present, q.hasPresent = family, true
		}
	}
	return q
}

// deviceCandidate is everything device selection looks at.
type deviceCandidate struct {
	name         string
	deviceType   vulkan.PhysicalDeviceType
	queues       queueFamilies
	swapchainExt bool
	formats      int
	presentModes int
}

// scoreDevice returns -1 for a device that cannot run the renderer, and a
// type-based preference otherwise.
func scoreDevice(c deviceCandidate) int {
	if !c.queues.complete() || !c.swapchainExt || c.formats == 0 || c.presentModes == 0 {
		return -1
	}
	switch c.deviceType {
	case vulkan.PhysicalDeviceTypeDiscreteGpu:
		return 1000
	case vulkan.PhysicalDeviceTypeIntegratedGpu:
		return 500
	default:
		return 100
	}
}

// bestCandidate returns the index of the highest scoring suitable candidate,
// or -1. Ties keep the earlier device.
func bestCandidate(cands []deviceCandidate) int {
	best, bestScore := -1, -1
	for i, c := range cands {
		if s := scoreDevice(c); s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}
