package astroburst

import "math"

// minValidPairs is the statistical floor for one candidate shift: with
// fewer valid pixel pairs than this, a correlation coefficient is noise
// and the candidate is scored as no-data instead.
const minValidPairs = 10

// corrDenomEps is the degenerate-variance threshold. At or below it the
// ZNCC denominator is numerically meaningless (constant region) and the
// candidate is scored as no-data.
const corrDenomEps = 1e-10

// sampleTarget returns the target pixel at (x, y), or 0 for coordinates
// outside the image. Zero fails the validity predicate, so out-of-bounds
// samples are excluded from scoring rather than contributing spuriously.
func sampleTarget(tgt Image, x, y int) float32 {
	if x < 0 || y < 0 || x >= tgt.Width || y >= tgt.Height {
		return 0
	}
	return tgt.Pix[y*tgt.Width+x]
}

// scoreShift computes the zero-mean normalized cross-correlation of the ROI
// against the target displaced by (dx, dy), or the wire sentinel when the
// candidate has no usable data. Two passes over the ROI: first the means of
// the valid pairs, then the covariance and variances around them — the same
// structure the GPU shader reduces per workgroup.
func scoreShift(ref, tgt Image, p CorrelationParams, dx, dy int) float32 {
	roiX, roiY := int(p.ROIX), int(p.ROIY)
	roiW, roiH := int(p.ROIW), int(p.ROIH)

	var sumR, sumT float64
	count := 0
	for ry := 0; ry < roiH; ry++ {
		y := roiY + ry
		for rx := 0; rx < roiW; rx++ {
			x := roiX + rx
			r := ref.Pix[y*ref.Width+x]
			t := sampleTarget(tgt, x+dx, y+dy)
			if ValidPixel(r) && ValidPixel(t) {
				sumR += float64(r)
				sumT += float64(t)
				count++
			}
		}
	}
	if count < minValidPairs {
		return scoreSentinel
	}
	meanR := sumR / float64(count)
	meanT := sumT / float64(count)

	var cov, varR, varT float64
	for ry := 0; ry < roiH; ry++ {
		y := roiY + ry
		for rx := 0; rx < roiW; rx++ {
			x := roiX + rx
			r := ref.Pix[y*ref.Width+x]
			t := sampleTarget(tgt, x+dx, y+dy)
			if ValidPixel(r) && ValidPixel(t) {
				dr := float64(r) - meanR
				dt := float64(t) - meanT
				cov += dr * dt
				varR += dr * dr
				varT += dt * dt
			}
		}
	}

	denom := math.Sqrt(varR * varT)
	if denom <= corrDenomEps {
		return scoreSentinel
	}
	return float32(cov / denom)
}

// argmaxScores scans the score grid in linear order and returns the winning
// displacement. Strict greater-than comparison: the first-scanned index wins
// ties, so an all-sentinel grid deterministically resolves to the first
// candidate, (-MaxShift, -MaxShift), with a no-data score.
func argmaxScores(scores []float32, p CorrelationParams) OffsetResult {
	best := float32(math.Inf(-1))
	bestIdx := 0
	for i, s := range scores {
		if s > best {
			best = s
			bestIdx = i
		}
	}
	size := int(p.SearchSize)
	shift := int(p.MaxShift)
	return OffsetResult{
		Dx:    bestIdx%size - shift,
		Dy:    bestIdx/size - shift,
		Score: scoreFromWire(best),
	}
}
