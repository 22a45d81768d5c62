// Package fingerprint computes cheap region digests of captured frames and
// resolves the capture geometry they are taken over.
package fingerprint

import (
	"encoding/binary"
	"image"

	"github.com/roach88/lagprobe/internal/latency"
)

// Stride is the sampling step in both axes. Only every Stride-th pixel of
// every Stride-th row contributes to a checksum.
const Stride = 4

// Checksum XORs one little-endian 32-bit word per sampled pixel of region.
//
// The digest is lossy on purpose: it is only compared for equality against
// the previous frame. Sampled pixels outside img are skipped.
func Checksum(img *image.RGBA, region latency.Region) uint32 {
	b := img.Bounds()
	var sum uint32
	for y := region.Y; y < region.Y+region.H; y += Stride {
		if y < b.Min.Y || y >= b.Max.Y {
			continue
		}
		for x := region.X; x < region.X+region.W; x += Stride {
			if x < b.Min.X || x >= b.Max.X {
				continue
			}
			off := img.PixOffset(x, y)
			sum ^= binary.LittleEndian.Uint32(img.Pix[off : off+4])
		}
	}
	return sum
}

// Of returns the region checksum as a latency.Fingerprint.
func Of(img *image.RGBA, region latency.Region) latency.Fingerprint {
	return latency.Fingerprint(Checksum(img, region))
}
