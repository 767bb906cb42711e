//go:build !nogpu

package gpu

import (
	_ "embed"
)

// WGSL compute shaders for the two kernels.
// These are compiled at build time using go:embed directives.

//go:embed shaders/tonemap.wgsl
var toneMapShaderSource string

//go:embed shaders/corr_score.wgsl
var corrScoreShaderSource string

//go:embed shaders/corr_argmax.wgsl
var corrArgmaxShaderSource string
