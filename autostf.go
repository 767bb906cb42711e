package astroburst

import "math"

// AutoSTFConfig tunes automatic stretch estimation.
type AutoSTFConfig struct {
	// TargetBg is the normalized display brightness the median (sky
	// background) should land on after the stretch.
	TargetBg float64

	// ShadowK places the shadow clip point at median + ShadowK*sigma in
	// normalized units. More negative keeps more faint signal.
	ShadowK float64
}

// DefaultAutoSTFConfig returns the viewer's standard auto-stretch tuning.
func DefaultAutoSTFConfig() AutoSTFConfig {
	return AutoSTFConfig{TargetBg: 0.25, ShadowK: -2.8}
}

// AutoSTF estimates stretch parameters from frame statistics: the shadow
// point tracks the background level minus a few sigmas, the highlight stays
// at full range, and the midtone is solved so the clipped median lands on
// the target background brightness.
//
// A frame with no valid pixels yields DefaultSTF.
func AutoSTF(st ImageStats, cfg AutoSTFConfig) STFParams {
	if st.ValidCount == 0 {
		return DefaultSTF()
	}

	dataRange := math.Max(st.Max-st.Min, 1e-30)
	medianNorm := (st.Median - st.Min) / dataRange
	sigmaNorm := st.Sigma / dataRange

	shadow := math.Max(medianNorm+cfg.ShadowK*sigmaNorm, 0)
	const highlight = 1.0

	clipRange := math.Max(highlight-shadow, 1e-15)
	mClipped := clamp01((medianNorm - shadow) / clipRange)

	midtone := 0.5
	if mClipped > 0 && mClipped < 1 {
		midtone = mtfBalance(mClipped, cfg.TargetBg)
	}

	return STFParams{
		Shadow:    float32(shadow),
		Midtone:   float32(midtone),
		Highlight: highlight,
	}
}

// mtfBalance solves mtf(m, b) = t for the balance b that maps the clipped
// median m onto the target background t.
func mtfBalance(m, t float64) float64 {
	denom := 2*t*m - t - m
	if math.Abs(denom) < 1e-15 {
		return 0.5
	}
	b := m * (t - 1) / denom
	return math.Min(math.Max(b, 0.0001), 0.9999)
}
