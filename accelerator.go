package astroburst

import (
	"errors"
	"sync"
)

// ErrDeviceUnavailable indicates that no usable GPU device could be
// initialized. A Dispatcher created afterwards runs permanently on the CPU
// path; the error itself is logged once at registration, never per call.
var ErrDeviceUnavailable = errors.New("astroburst: no usable GPU device")

// ErrReadback indicates that a kernel completed on the device but its result
// could not be copied back to host memory (device lost, map failure). The
// dispatch that observed it fails; the Dispatcher does not retry and does not
// return stale or zeroed buffers.
var ErrReadback = errors.New("astroburst: GPU result readback failed")

// KernelEngine is the contract shared by the CPU path and a registered GPU
// accelerator. The two implementations must be observably indistinguishable:
// same algorithm, same validity predicate, same sentinel encoding, same
// tie-break rule, verified by shared conformance tests rather than trusted
// independently.
type KernelEngine interface {
	// ToneMap converts raw float samples into packed RGBA pixels, 4 bytes
	// per pixel with R=G=B and A=255. The returned buffer is owned by the
	// caller.
	ToneMap(img Image, p ToneMapParams) ([]uint8, error)

	// Correlate scores every candidate integer displacement within
	// [-MaxShift, MaxShift]² and returns the arg-max.
	Correlate(ref, tgt Image, p CorrelationParams) (OffsetResult, error)
}

// GPUAccelerator is an optional GPU compute provider.
//
// When registered via RegisterAccelerator, a Dispatcher constructed
// afterwards submits kernel work to the accelerator instead of the CPU path.
// Implementations are provided by GPU backend packages; users opt in via
// blank import:
//
//	import _ "github.com/samuelkriegerbonini-dev/AstroBurst/gpu"
type GPUAccelerator interface {
	// Name returns the accelerator name (e.g., "wgpu-vulkan").
	Name() string

	// Init initializes GPU resources. Called once during registration;
	// if it fails, the accelerator is not registered.
	Init() error

	// Close releases GPU resources.
	Close()

	KernelEngine
}

var (
	accelMu sync.RWMutex
	accel   GPUAccelerator
)

// RegisterAccelerator registers a GPU accelerator for optional GPU compute.
//
// Only one accelerator can be registered; subsequent calls replace the
// previous one, closing it. The accelerator's Init method is called during
// registration. If Init fails, the accelerator is not registered and the
// error is returned — there is no per-call re-probing anywhere in the
// package.
func RegisterAccelerator(a GPUAccelerator) error {
	if a == nil {
		return errors.New("astroburst: accelerator must not be nil")
	}
	propagateLogger(a, Logger())
	if err := a.Init(); err != nil {
		return err
	}
	accelMu.Lock()
	old := accel
	accel = a
	accelMu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

// Accelerator returns the currently registered GPU accelerator, or nil if
// none.
func Accelerator() GPUAccelerator {
	accelMu.RLock()
	a := accel
	accelMu.RUnlock()
	return a
}
