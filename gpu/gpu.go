//go:build !nogpu

// Package gpu registers the wgpu compute accelerator for hardware-accelerated
// tone mapping and frame correlation.
//
// Import this package to enable GPU dispatch. The accelerator probes for a
// Vulkan adapter once, at init; if no usable device is found the registration
// is silently skipped and every dispatch runs on the CPU path instead. The
// probe never repeats within a process.
//
// Usage:
//
//	import _ "github.com/samuelkriegerbonini-dev/AstroBurst/gpu" // enable GPU compute
package gpu

import (
	astroburst "github.com/samuelkriegerbonini-dev/AstroBurst"
	gpuimpl "github.com/samuelkriegerbonini-dev/AstroBurst/internal/gpu"
)

func init() {
	if err := astroburst.RegisterAccelerator(gpuimpl.New()); err != nil {
		astroburst.Logger().Warn("GPU accelerator not available", "err", err)
	}
}
