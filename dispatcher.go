package astroburst

import "fmt"

// Dispatcher routes kernel work to the GPU accelerator registered at
// construction time, or to the CPU engine when none is available. The
// routing decision is made exactly once: a Dispatcher never re-probes the
// device, and a GPU-backed Dispatcher never silently degrades to the CPU
// path mid-lifetime — per-dispatch failures (device lost, readback) are
// surfaced as errors instead.
//
// A Dispatcher owns no buffers across calls; each dispatch allocates its
// inputs and outputs fresh and releases them on return, so concurrent
// dispatches on one Dispatcher do not share mutable state.
type Dispatcher struct {
	gpu GPUAccelerator // nil when running on the CPU path
	cpu *softwareEngine
}

// DispatcherOptions configures Dispatcher construction.
type DispatcherOptions struct {
	// Workers is the CPU worker count for the fallback engine.
	// Zero selects GOMAXPROCS.
	Workers int

	// ForceCPU skips the registered GPU accelerator even when present.
	ForceCPU bool
}

// NewDispatcher creates a Dispatcher with default options.
func NewDispatcher() *Dispatcher {
	return NewDispatcherWithOptions(DispatcherOptions{})
}

// NewDispatcherWithOptions creates a Dispatcher, binding it permanently to
// the GPU accelerator registered via RegisterAccelerator, if any. When no
// accelerator is registered (or ForceCPU is set), every call runs on the
// CPU engine; this is logged once here, not per call.
func NewDispatcherWithOptions(opts DispatcherOptions) *Dispatcher {
	d := &Dispatcher{cpu: newSoftwareEngine(opts.Workers)}
	if opts.ForceCPU {
		Logger().Debug("dispatcher: CPU path forced by options")
		return d
	}
	if a := Accelerator(); a != nil {
		d.gpu = a
		Logger().Debug("dispatcher: using GPU accelerator", "name", a.Name())
	} else {
		Logger().Warn("dispatcher: no GPU accelerator registered, using CPU path")
	}
	return d
}

// Engine returns the active kernel engine name: the accelerator's name or
// "cpu".
func (d *Dispatcher) Engine() string {
	if d.gpu != nil {
		return d.gpu.Name()
	}
	return "cpu"
}

// Close releases the Dispatcher's CPU workers. It does not close a
// registered GPU accelerator, which is shared process-wide and owned by the
// registry.
func (d *Dispatcher) Close() {
	d.cpu.Close()
}

// ToneMap converts raw float samples into packed grayscale RGBA pixels,
// 4 bytes per pixel with A=255. The transform is total: NaN samples render
// black, and malformed parameter ranges are epsilon-floored rather than
// failing, so a display frame is always produced for a well-sized buffer.
func (d *Dispatcher) ToneMap(img Image, p ToneMapParams) ([]uint8, error) {
	if d.gpu != nil {
		out, err := d.gpu.ToneMap(img, p)
		if err != nil {
			return nil, fmt.Errorf("astroburst: gpu tone map: %w", err)
		}
		return out, nil
	}
	return d.cpu.ToneMap(img, p)
}

// Correlate finds the integer displacement within [-maxShift, maxShift]²
// that maximizes the zero-mean normalized cross-correlation of the ROI.
// It always returns a best-effort offset: when no candidate shift has
// usable data the result carries a no-data Score and the first-scanned
// displacement (-maxShift, -maxShift).
func (d *Dispatcher) Correlate(ref, tgt Image, roi ROI, maxShift int) (OffsetResult, error) {
	p, err := NewCorrelationParams(ref, tgt, roi, maxShift)
	if err != nil {
		return OffsetResult{}, err
	}
	if d.gpu != nil {
		res, err := d.gpu.Correlate(ref, tgt, p)
		if err != nil {
			return OffsetResult{}, fmt.Errorf("astroburst: gpu correlate: %w", err)
		}
		return res, nil
	}
	return d.cpu.Correlate(ref, tgt, p)
}

// ToneMapF32 is the float-precision stretch used by RGB channel
// composition. It always runs on the CPU engine; see ApplyToneMapF32.
func (d *Dispatcher) ToneMapF32(img Image, p ToneMapParams) ([]float32, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return ApplyToneMapF32(img, p), nil
}
