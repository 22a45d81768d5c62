package fingerprint

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/lagprobe/internal/latency"
)

func TestChecksum_UniformImageCancels(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = 0x5A
	}

	// 4x4 sampled pixels of the same word XOR to zero
	assert.Equal(t, uint32(0), Checksum(img, latency.Region{W: 16, H: 16}))
}

func TestChecksum_SampledPixelMatters(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	region := latency.Region{W: 16, H: 16}
	before := Checksum(img, region)

	img.Set(4, 8, color.RGBA{R: 1, G: 2, B: 3, A: 4})
	after := Checksum(img, region)

	assert.NotEqual(t, before, after)
	assert.Equal(t, uint32(0x04030201), after)
}

func TestChecksum_UnsampledPixelIgnored(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	region := latency.Region{W: 16, H: 16}
	before := Checksum(img, region)

	img.Set(5, 8, color.RGBA{R: 0xFF, A: 0xFF})

	assert.Equal(t, before, Checksum(img, region))
}

func TestChecksum_OutOfBoundsSkipped(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(0, 0, color.RGBA{R: 9, A: 0})

	got := Checksum(img, latency.Region{X: -4, Y: -4, W: 100, H: 100})
	assert.Equal(t, uint32(9), got)
}

func TestOf(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(0, 0, color.RGBA{R: 7})
	assert.Equal(t, latency.Fingerprint(7), Of(img, latency.Region{W: 4, H: 4}))
}

func TestResolveRegion(t *testing.T) {
	tests := []struct {
		name string
		in   latency.Region
		want latency.Region
	}{
		{"auto centred", latency.Region{}, latency.Region{X: 860, Y: 440, W: 200, H: 200}},
		{"inside untouched", latency.Region{X: 10, Y: 10, W: 50, H: 50}, latency.Region{X: 10, Y: 10, W: 50, H: 50}},
		{"clamped right and bottom", latency.Region{X: 1900, Y: 1000, W: 100, H: 200}, latency.Region{X: 1900, Y: 1000, W: 20, H: 80}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveRegion(1920, 1080, tt.in))
		})
	}
}

func TestResolveRegion_SmallScreen(t *testing.T) {
	assert.Equal(t, latency.Region{X: 0, Y: 0, W: 100, H: 80}, ResolveRegion(100, 80, latency.Region{}))
}

func TestHighestRefreshRate(t *testing.T) {
	assert.Equal(t, 60, HighestRefreshRate(nil))
	assert.Equal(t, 60, HighestRefreshRate([]DisplayMode{{Numerator: 0, Denominator: 1}, {Numerator: 50, Denominator: 0}}))
	assert.Equal(t, 144, HighestRefreshRate([]DisplayMode{
		{Numerator: 60000, Denominator: 1001},
		{Numerator: 143999, Denominator: 1000},
		{Numerator: 144, Denominator: 1},
		{Numerator: 120, Denominator: 1},
	}))
	assert.Equal(t, 60, HighestRefreshRate([]DisplayMode{{Numerator: 30, Denominator: 1}}))
}

func TestFrameTimeMs(t *testing.T) {
	assert.InDelta(t, 16.667, FrameTimeMs(60), 1e-3)
	assert.InDelta(t, 6.944, FrameTimeMs(144), 1e-3)
	assert.InDelta(t, 16.667, FrameTimeMs(0), 1e-3)
}
