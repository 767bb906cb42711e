package astroburst

import "math"

// Epsilon floors for the tone map kernel. A degenerate data range or clip
// range is clamped rather than ever dividing by exact zero; the transform is
// total over all float32 inputs including NaN and Inf.
const (
	toneMapRangeEps = 1e-20
	toneMapClipEps  = 1e-10
)

// mtf is the midtones transfer function. m=0.5 is the identity exactly:
// substituting gives (-0.5)x / (-0.5) = x.
func mtf(x, m float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}
	return (m - 1) * x / ((2*m-1)*x - m)
}

// toneMapByte maps one raw sample to its display byte. NaN always maps to
// black; ±Inf is absorbed by the normalization clamp. This is the single
// source of truth for the CPU path and must stay in lockstep with the
// shader in internal/gpu/shaders/tonemap.wgsl.
func toneMapByte(v float32, p ToneMapParams) uint8 {
	vf := float64(v)
	if math.IsNaN(vf) {
		return 0
	}
	dataRange := math.Max(float64(p.DataMax)-float64(p.DataMin), toneMapRangeEps)
	norm := clamp01((vf - float64(p.DataMin)) / dataRange)

	clipRange := math.Max(float64(p.Highlight)-float64(p.Shadow), toneMapClipEps)
	clipped := clamp01((norm - float64(p.Shadow)) / clipRange)

	stretched := mtf(clipped, float64(p.Midtone))
	return uint8(math.Round(math.Min(math.Max(stretched*255, 0), 255)))
}

// clamp01 clamps x to [0, 1]. NaN input (0/0 cannot occur here because both
// divisors are epsilon-floored) would propagate, so callers must filter NaN
// samples first.
func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// ApplyToneMapF32 runs the same stretch as the display path but keeps the
// result as normalized [0,1] floats, one per input sample. Invalid (NaN)
// samples map to 0. This feeds RGB channel composition, which needs float
// precision rather than display bytes; it always runs on the CPU.
func ApplyToneMapF32(img Image, p ToneMapParams) []float32 {
	out := make([]float32, len(img.Pix))
	dataRange := math.Max(float64(p.DataMax)-float64(p.DataMin), toneMapRangeEps)
	clipRange := math.Max(float64(p.Highlight)-float64(p.Shadow), toneMapClipEps)
	m := float64(p.Midtone)
	for i, v := range img.Pix {
		vf := float64(v)
		if math.IsNaN(vf) {
			continue
		}
		norm := clamp01((vf - float64(p.DataMin)) / dataRange)
		clipped := clamp01((norm - float64(p.Shadow)) / clipRange)
		out[i] = float32(mtf(clipped, m))
	}
	return out
}

// packGray packs a grayscale display byte into the 4-byte RGBA slot at
// dst[4*i:], mirroring the shader's word packing b | b<<8 | b<<16 | 255<<24
// in little-endian byte order.
func packGray(dst []uint8, i int, b uint8) {
	o := i * 4
	dst[o+0] = b
	dst[o+1] = b
	dst[o+2] = b
	dst[o+3] = 255
}
