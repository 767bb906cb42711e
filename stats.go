package astroburst

import (
	"math"
	"slices"
)

const (
	// paddingThreshold excludes masked, zero, and negative pixels from
	// statistics and correlation scoring. Calibrated frames pad borders
	// with exact zeros; real sky background is always above this.
	paddingThreshold = 1e-7

	// madToSigma converts a median absolute deviation to a standard
	// deviation estimate under a normal distribution.
	madToSigma = 1.4826

	// HistogramBins is the native bin count of ComputeHistogram, matching
	// 16-bit sensor depth. Use DownsampleHistogram for display.
	HistogramBins = 65536
)

// ValidPixel reports whether a sample carries usable data: finite and
// strictly above the padding threshold. NaN, ±Inf, zeros, and negative
// values all fail.
func ValidPixel(v float32) bool {
	f64 := float64(v)
	return !math.IsNaN(f64) && !math.IsInf(f64, 0) && v > paddingThreshold
}

// ImageStats summarizes the valid pixels of one frame. Sigma is the robust
// MAD-based estimate, not the sample standard deviation.
type ImageStats struct {
	Min        float64
	Max        float64
	Median     float64
	MAD        float64
	Sigma      float64
	Mean       float64
	ValidCount uint64
}

// ComputeStats computes robust statistics over the valid pixels of img.
// A frame with no valid pixels yields the zero ImageStats.
func ComputeStats(img Image) ImageStats {
	valid := make([]float32, 0, len(img.Pix))
	for _, v := range img.Pix {
		if ValidPixel(v) {
			valid = append(valid, v)
		}
	}
	n := uint64(len(valid))
	if n == 0 {
		return ImageStats{}
	}

	median := medianFloat32(valid)

	devs := make([]float64, len(valid))
	for i, v := range valid {
		devs[i] = math.Abs(float64(v) - median)
	}
	mad := medianFloat64(devs)
	sigma := math.Max(mad*madToSigma, 1e-30)

	mn, mx, sum := math.MaxFloat64, -math.MaxFloat64, 0.0
	for _, v := range valid {
		vf := float64(v)
		if vf < mn {
			mn = vf
		}
		if vf > mx {
			mx = vf
		}
		sum += vf
	}

	return ImageStats{
		Min:        mn,
		Max:        mx,
		Median:     median,
		MAD:        mad,
		Sigma:      sigma,
		Mean:       sum / float64(n),
		ValidCount: n,
	}
}

// Histogram is a fixed-bin histogram over the valid pixel range of a frame.
type Histogram struct {
	Bins        []uint32
	BinCount    int
	DataMin     float64
	DataMax     float64
	BinWidth    float64
	TotalPixels uint64
}

// ComputeHistogram bins the valid pixels of img into HistogramBins buckets
// spanning [st.Min, st.Max].
func ComputeHistogram(img Image, st ImageStats) Histogram {
	if st.ValidCount == 0 {
		return Histogram{
			Bins:     make([]uint32, HistogramBins),
			BinCount: HistogramBins,
			DataMax:  1,
			BinWidth: 1.0 / HistogramBins,
		}
	}

	dataRange := math.Max(st.Max-st.Min, 1e-30)
	invRange := float64(HistogramBins-1) / dataRange

	bins := make([]uint32, HistogramBins)
	for _, v := range img.Pix {
		if !ValidPixel(v) {
			continue
		}
		idx := int((float64(v) - st.Min) * invRange)
		if idx > HistogramBins-1 {
			idx = HistogramBins - 1
		}
		if idx < 0 {
			idx = 0
		}
		bins[idx]++
	}

	return Histogram{
		Bins:        bins,
		BinCount:    HistogramBins,
		DataMin:     st.Min,
		DataMax:     st.Max,
		BinWidth:    dataRange / HistogramBins,
		TotalPixels: st.ValidCount,
	}
}

// DownsampleHistogram merges hist into targetBins buckets for display.
func DownsampleHistogram(hist Histogram, targetBins int) []uint32 {
	ratio := float64(hist.BinCount) / float64(targetBins)
	out := make([]uint32, targetBins)
	for i, b := range hist.Bins {
		ti := int(float64(i) / ratio)
		if ti > targetBins-1 {
			ti = targetBins - 1
		}
		// Saturating add; a single display bin can aggregate many native bins.
		if sum := uint64(out[ti]) + uint64(b); sum > math.MaxUint32 {
			out[ti] = math.MaxUint32
		} else {
			out[ti] = uint32(sum)
		}
	}
	return out
}

// SigmaClippedStats iteratively rejects outliers beyond kappa robust sigmas
// from the median and returns the surviving median and sigma. The values
// slice is sorted and compacted in place; callers that need the original
// order or contents must pass a copy.
func SigmaClippedStats(values []float32, kappa float64, iterations int) (median, sigma float64) {
	for range iterations {
		if len(values) < 3 {
			break
		}
		med := medianFloat32(values)
		sig := math.Max(madOf(values, med)*madToSigma, 1e-30)

		lo := float32(med - kappa*sig)
		hi := float32(med + kappa*sig)
		values = slices.DeleteFunc(values, func(v float32) bool {
			return v < lo || v > hi
		})
	}

	if len(values) == 0 {
		return 0, 1
	}
	median = medianFloat32(values)
	sigma = math.Max(madOf(values, median)*madToSigma, 1e-30)
	return median, sigma
}

// madOf returns the median absolute deviation of values around center.
func madOf(values []float32, center float64) float64 {
	devs := make([]float64, len(values))
	for i, v := range values {
		devs[i] = math.Abs(float64(v) - center)
	}
	return medianFloat64(devs)
}

// medianFloat32 returns the exact median, averaging the two central values
// for even-length input. Sorts the slice in place.
func medianFloat32(data []float32) float64 {
	n := len(data)
	if n == 0 {
		return 0
	}
	slices.Sort(data)
	mid := n / 2
	if n%2 == 0 {
		return (float64(data[mid-1]) + float64(data[mid])) / 2
	}
	return float64(data[mid])
}

// medianFloat64 is medianFloat32 for float64 slices.
func medianFloat64(data []float64) float64 {
	n := len(data)
	if n == 0 {
		return 0
	}
	slices.Sort(data)
	mid := n / 2
	if n%2 == 0 {
		return (data[mid-1] + data[mid]) / 2
	}
	return data[mid]
}
