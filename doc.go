// Package astroburst implements the numeric compute core of an astronomical
// image viewer.
//
// # Overview
//
// Two kernels do the real work: a parametric midtones-transfer-function (STF)
// tone mapper that converts floating-point sensor data into displayable 8-bit
// pixels, and a cross-correlation engine that recovers the integer pixel
// displacement between two dithered frames prior to stacking.
//
// Both kernels run on the GPU through wgpu compute shaders when a device is
// available, with a CPU implementation that is observably equivalent. The
// [Dispatcher] probes for a GPU once at construction and routes every
// subsequent call to whichever path was selected; a failed probe permanently
// selects the CPU path for that Dispatcher's lifetime.
//
// # Quick Start
//
//	import (
//	    astroburst "github.com/samuelkriegerbonini-dev/AstroBurst"
//	    _ "github.com/samuelkriegerbonini-dev/AstroBurst/gpu" // enable GPU acceleration
//	)
//
//	d := astroburst.NewDispatcher()
//	defer d.Close()
//
//	st := astroburst.ComputeStats(img)
//	stf := astroburst.AutoSTF(st, astroburst.DefaultAutoSTFConfig())
//	rgba, err := d.ToneMap(img, astroburst.NewToneMapParams(img, st, stf))
//
// # Architecture
//
// The library is organized into:
//   - Public API: Dispatcher, Image, ToneMapParams, CorrelationParams, OffsetResult
//   - Internal: parallel (worker pool for the CPU path), gpu (wgpu compute engine)
//   - gpu/: blank-import package that registers the GPU accelerator
//
// # Scope
//
// File decoding, UI state, and drizzle resampling are external collaborators:
// callers hand this package well-formed float32 buffers and receive packed
// pixels or an [OffsetResult] back.
package astroburst

// Version information
const (
	// Version is the current version of the library
	Version = "0.2.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 2

	// VersionPatch is the patch version
	VersionPatch = 0
)
