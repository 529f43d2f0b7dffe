package render

import (
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vulkan-go/vulkan"
)

func TestChooseSurfaceFormat(t *testing.T) {
	bgra := vulkan.SurfaceFormat{Format: vulkan.FormatB8g8r8a8Srgb, ColorSpace: vulkan.ColorSpaceSrgbNonlinear}
	rgba := vulkan.SurfaceFormat{Format: vulkan.FormatR8g8b8a8Unorm, ColorSpace: vulkan.ColorSpaceSrgbNonlinear}

	got, err := chooseSurfaceFormat([]vulkan.SurfaceFormat{rgba, bgra})
	require.NoError(t, err)
	assert.Equal(t, bgra, got)

	// Only RGBA8 offered: the first entry wins.
	got, err = chooseSurfaceFormat([]vulkan.SurfaceFormat{rgba})
	require.NoError(t, err)
	assert.Equal(t, rgba, got)

	_, err = chooseSurfaceFormat(nil)
	assert.True(t, errors.Is(err, ErrNoSurfaceFormats))
}

func TestChoosePresentMode(t *testing.T) {
	got, err := choosePresentMode([]vulkan.PresentMode{vulkan.PresentModeFifo})
	require.NoError(t, err)
	assert.Equal(t, vulkan.PresentModeFifo, got)

	got, err = choosePresentMode([]vulkan.PresentMode{vulkan.PresentModeImmediate, vulkan.PresentModeMailbox})
	require.NoError(t, err)
	assert.Equal(t, vulkan.PresentModeMailbox, got)

	got, err = choosePresentMode([]vulkan.PresentMode{vulkan.PresentModeImmediate})
	require.NoError(t, err)
	assert.Equal(t, vulkan.PresentModeFifo, got)

	_, err = choosePresentMode(nil)
	assert.True(t, errors.Is(err, ErrNoPresentModes))
}

func TestChooseImageCount(t *testing.T) {
	cases := []struct {
		min, max, want uint32
	}{
		{min: 2, max: 0, want: 3},
		{min: 2, max: 8, want: 3},
		{min: 3, max: 3, want: 3},
		{min: 1, max: 2, want: 2},
	}
	for _, tc := range cases {
		caps := vulkan.SurfaceCapabilities{MinImageCount: tc.min, MaxImageCount: tc.max}
		n := chooseImageCount(caps)
		assert.Equal(t, tc.want, n, "min=%d max=%d", tc.min, tc.max)
		if tc.max > tc.min {
			assert.GreaterOrEqual(t, n, tc.min+1)
			assert.LessOrEqual(t, n, tc.max)
		}
	}
}

func TestChooseExtentCurrent(t *testing.T) {
	caps := vulkan.SurfaceCapabilities{
		CurrentExtent:  vulkan.Extent2D{Width: 800, Height: 600},
		MinImageExtent: vulkan.Extent2D{Width: 1, Height: 1},
		MaxImageExtent: vulkan.Extent2D{Width: 4096, Height: 4096},
	}
	assert.Equal(t, vulkan.Extent2D{Width: 800, Height: 600}, chooseExtent(caps, 10, 10))
}

func TestChooseExtentClamped(t *testing.T) {
	caps := vulkan.SurfaceCapabilities{
		CurrentExtent:  vulkan.Extent2D{Width: math.MaxUint32, Height: math.MaxUint32},
		MinImageExtent: vulkan.Extent2D{Width: 16, Height: 8},
		MaxImageExtent: vulkan.Extent2D{Width: 2048, Height: 1024},
	}
	sizes := [][2]int{{0, 0}, {-5, -1}, {1280, 720}, {100000, 100000}, {16, 4000}}
	for _, sz := range sizes {
		e := chooseExtent(caps, sz[0], sz[1])
		assert.GreaterOrEqual(t, e.Width, caps.MinImageExtent.Width, "size %v", sz)
		assert.LessOrEqual(t, e.Width, caps.MaxImageExtent.Width, "size %v", sz)
		assert.GreaterOrEqual(t, e.Height, caps.MinImageExtent.Height, "size %v", sz)
		assert.LessOrEqual(t, e.Height, caps.MaxImageExtent.Height, "size %v", sz)
	}
	assert.Equal(t, vulkan.Extent2D{Width: 16, Height: 8}, chooseExtent(caps, 0, 0))
	assert.Equal(t, vulkan.Extent2D{Width: 1280, Height: 720}, chooseExtent(caps, 1280, 720))
	assert.Equal(t, vulkan.Extent2D{Width: 2048, Height: 1024}, chooseExtent(caps, 100000, 100000))
}

func TestSharingFor(t *testing.T) {
	mode, families := sharingFor(queueFamilies{graphics: 0, present: 0, hasGraphics: true, hasPresent: true})
	assert.Equal(t, vulkan.SharingModeExclusive, mode)
	assert.Empty(t, families)

	mode, families = sharingFor(queueFamilies{graphics: 0, present: 2, hasGraphics: true, hasPresent: true})
	assert.Equal(t, vulkan.SharingModeConcurrent, mode)
	assert.Equal(t, []uint32{0, 2}, families)
}

type fakeSurface struct {
	caps    vulkan.SurfaceCapabilities
	formats []vulkan.SurfaceFormat
	modes   []vulkan.PresentMode
	capsRes vulkan.Result
	listRes vulkan.Result
}

func (f *fakeSurface) Capabilities(caps *vulkan.SurfaceCapabilities) vulkan.Result {
	*caps = f.caps
	return f.capsRes
}

func (f *fakeSurface) Formats(count *uint32, formats []vulkan.SurfaceFormat) vulkan.Result {
	if f.listRes != vulkan.Success {
		return f.listRes
	}
	if formats == nil {
		*count = uint32(len(f.formats))
		return vulkan.Success
	}
	*count = uint32(copy(formats, f.formats))
	return vulkan.Success
}

func (f *fakeSurface) PresentModes(count *uint32, modes []vulkan.PresentMode) vulkan.Result {
	if modes == nil {
		*count = uint32(len(f.modes))
		return vulkan.Success
	}
	*count = uint32(copy(modes, f.modes))
	return vulkan.Success
}

func TestQuerySurfaceSupport(t *testing.T) {
	f := &fakeSurface{
		caps:    vulkan.SurfaceCapabilities{MinImageCount: 2},
		formats: []vulkan.SurfaceFormat{{Format: vulkan.FormatB8g8r8a8Srgb, ColorSpace: vulkan.ColorSpaceSrgbNonlinear}},
		modes:   []vulkan.PresentMode{vulkan.PresentModeFifo, vulkan.PresentModeMailbox},
	}
	got, err := querySurfaceSupport(f)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), got.capabilities.MinImageCount)
	assert.Equal(t, f.formats, got.formats)
	assert.Equal(t, f.modes, got.presentModes)
}

func TestQuerySurfaceSupportSurfaceLost(t *testing.T) {
	_, err := querySurfaceSupport(&fakeSurface{capsRes: vulkan.ErrorSurfaceLost})
	require.Error(t, err)
	res, ok := ResultOf(err)
	require.True(t, ok)
	assert.Equal(t, vulkan.ErrorSurfaceLost, res)

	_, err = querySurfaceSupport(&fakeSurface{listRes: vulkan.ErrorSurfaceLost})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get surface formats")
}
