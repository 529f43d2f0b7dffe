package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vulkan-go/vulkan"
)

func family(flags vulkan.QueueFlagBits) vulkan.QueueFamilyProperties {
	return vulkan.QueueFamilyProperties{QueueFlags: vulkan.QueueFlags(flags), QueueCount: 1}
}

func presentOn(families ...uint32) func(uint32) bool {
	return func(f uint32) bool {
		for _, p := range families {
			if p == f {
				return true
			}
		}
		return false
	}
}

func TestPickQueueFamiliesPrefersShared(t *testing.T) {
	props := []vulkan.QueueFamilyProperties{
		family(vulkan.QueueGraphicsBit),
		family(vulkan.QueueTransferBit),
		family(vulkan.QueueGraphicsBit | vulkan.QueueComputeBit),
	}
	q := pickQueueFamilies(props, presentOn(1, 2))
	assert.True(t, q.complete())
	assert.Equal(t, uint32(2), q.graphics)
	assert.Equal(t, uint32(2), q.present)
	assert.Equal(t, []uint32{2}, q.unique())
}

func TestPickQueueFamiliesSplit(t *testing.T) {
	props := []vulkan.QueueFamilyProperties{
		family(vulkan.QueueGraphicsBit),
		family(vulkan.QueueTransferBit),
	}
	q := pickQueueFamilies(props, presentOn(1))
	assert.True(t, q.complete())
	assert.False(t, q.shared())
	assert.Equal(t, []uint32{0, 1}, q.unique())
}

func TestPickQueueFamiliesIncomplete(t *testing.T) {
	props := []vulkan.QueueFamilyProperties{family(vulkan.QueueComputeBit)}
	q := pickQueueFamilies(props, presentOn(0))
	assert.False(t, q.complete())
}

func TestScoreDevice(t *testing.T) {
	ok := deviceCandidate{
		deviceType:   vulkan.PhysicalDeviceTypeIntegratedGpu,
		queues:       queueFamilies{hasGraphics: true, hasPresent: true},
		swapchainExt: true,
		formats:      2,
		presentModes: 1,
	}
	assert.Equal(t, 500, scoreDevice(ok))

	discrete := ok
	discrete.deviceType = vulkan.PhysicalDeviceTypeDiscreteGpu
	assert.Equal(t, 1000, scoreDevice(discrete))

	noExt := ok
	noExt.swapchainExt = false
	assert.Equal(t, -1, scoreDevice(noExt))

	noModes := ok
	noModes.presentModes = 0
	assert.Equal(t, -1, scoreDevice(noModes))

	noPresent := ok
	noPresent.queues.hasPresent = false
	assert.Equal(t, -1, scoreDevice(noPresent))

	assert.Equal(t, 1, bestCandidate([]deviceCandidate{ok, discrete, noExt}))
	assert.Equal(t, -1, bestCandidate([]deviceCandidate{noExt, noModes}))
	assert.Equal(t, -1, bestCandidate(nil))
}
