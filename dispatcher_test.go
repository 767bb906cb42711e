package astroburst

import (
	"errors"
	"testing"
)

func TestDispatcherCPUWhenNoneRegistered(t *testing.T) {
	resetAccelerator()

	d := NewDispatcher()
	defer d.Close()

	if got := d.Engine(); got != "cpu" {
		t.Errorf("Engine() = %q, want %q", got, "cpu")
	}
}

func TestDispatcherUsesRegisteredAccelerator(t *testing.T) {
	resetAccelerator()
	t.Cleanup(resetAccelerator)

	mock := &mockAccelerator{name: "mock-gpu", result: OffsetResult{Dx: 1, Dy: -1, Score: Score{Kind: ScoreValid, Value: 0.5}}}
	if err := RegisterAccelerator(mock); err != nil {
		t.Fatalf("RegisterAccelerator: %v", err)
	}

	d := NewDispatcher()
	defer d.Close()

	if got := d.Engine(); got != "mock-gpu" {
		t.Errorf("Engine() = %q, want %q", got, "mock-gpu")
	}

	img := testPattern(8, 8, 1)
	p := NewToneMapParams(img, ComputeStats(img), DefaultSTF())
	out, err := d.ToneMap(img, p)
	if err != nil {
		t.Fatalf("ToneMap: %v", err)
	}
	if len(out) != 8*8*4 {
		t.Errorf("output length = %d, want %d", len(out), 8*8*4)
	}
	if mock.toneMapCalls != 1 {
		t.Errorf("accelerator ToneMap called %d times, want 1", mock.toneMapCalls)
	}

	res, err := d.Correlate(img, img, ROI{X: 2, Y: 2, W: 4, H: 4}, 1)
	if err != nil {
		t.Fatalf("Correlate: %v", err)
	}
	if res != mock.result {
		t.Errorf("Correlate result = %+v, want %+v", res, mock.result)
	}
	if mock.correlateCalls != 1 {
		t.Errorf("accelerator Correlate called %d times, want 1", mock.correlateCalls)
	}
}

func TestDispatcherForceCPUSkipsAccelerator(t *testing.T) {
	resetAccelerator()
	t.Cleanup(resetAccelerator)

	mock := &mockAccelerator{name: "mock-gpu"}
	if err := RegisterAccelerator(mock); err != nil {
		t.Fatalf("RegisterAccelerator: %v", err)
	}

	d := NewDispatcherWithOptions(DispatcherOptions{ForceCPU: true})
	defer d.Close()

	if got := d.Engine(); got != "cpu" {
		t.Errorf("Engine() = %q, want %q", got, "cpu")
	}

	img := testPattern(8, 8, 2)
	p := NewToneMapParams(img, ComputeStats(img), DefaultSTF())
	if _, err := d.ToneMap(img, p); err != nil {
		t.Fatalf("ToneMap: %v", err)
	}
	if mock.toneMapCalls != 0 {
		t.Error("forced-CPU dispatcher must not touch the accelerator")
	}
}

func TestDispatcherBindsAcceleratorOnce(t *testing.T) {
	resetAccelerator()
	t.Cleanup(resetAccelerator)

	mock := &mockAccelerator{name: "bound"}
	if err := RegisterAccelerator(mock); err != nil {
		t.Fatalf("RegisterAccelerator: %v", err)
	}

	d := NewDispatcher()
	defer d.Close()

	// Deregistering afterwards must not change an existing dispatcher.
	resetAccelerator()
	if got := d.Engine(); got != "bound" {
		t.Errorf("Engine() after deregistration = %q, want %q", got, "bound")
	}
}

func TestDispatcherGPUErrorsSurfaceNotFallback(t *testing.T) {
	resetAccelerator()
	t.Cleanup(resetAccelerator)

	gpuErr := errors.New("device lost")
	mock := &mockAccelerator{name: "flaky", toneMapErr: gpuErr, correlateErr: gpuErr}
	if err := RegisterAccelerator(mock); err != nil {
		t.Fatalf("RegisterAccelerator: %v", err)
	}

	d := NewDispatcher()
	defer d.Close()

	img := testPattern(8, 8, 3)
	p := NewToneMapParams(img, ComputeStats(img), DefaultSTF())

	if _, err := d.ToneMap(img, p); !errors.Is(err, gpuErr) {
		t.Errorf("ToneMap err = %v, want wrapped %v", err, gpuErr)
	}
	if _, err := d.Correlate(img, img, ROI{X: 2, Y: 2, W: 4, H: 4}, 1); !errors.Is(err, gpuErr) {
		t.Errorf("Correlate err = %v, want wrapped %v", err, gpuErr)
	}
}

func TestDispatcherCorrelateValidation(t *testing.T) {
	resetAccelerator()

	d := NewDispatcher()
	defer d.Close()

	img := testPattern(16, 16, 4)
	if _, err := d.Correlate(img, img, ROI{X: 0, Y: 0, W: 32, H: 32}, 2); !errors.Is(err, ErrROIOutOfBounds) {
		t.Errorf("oversized ROI err = %v, want ErrROIOutOfBounds", err)
	}
	if _, err := d.Correlate(img, img, ROI{X: 4, Y: 4, W: 8, H: 8}, -2); !errors.Is(err, ErrNegativeShift) {
		t.Errorf("negative shift err = %v, want ErrNegativeShift", err)
	}
}

func TestDispatcherToneMapCPU(t *testing.T) {
	resetAccelerator()

	d := NewDispatcherWithOptions(DispatcherOptions{Workers: 2})
	defer d.Close()

	img := testPattern(33, 7, 5) // odd dimensions exercise band splitting
	p := NewToneMapParams(img, ComputeStats(img), DefaultSTF())
	out, err := d.ToneMap(img, p)
	if err != nil {
		t.Fatalf("ToneMap: %v", err)
	}
	if len(out) != 33*7*4 {
		t.Fatalf("output length = %d, want %d", len(out), 33*7*4)
	}
	// Every pixel must be grayscale with opaque alpha, matching the serial
	// transform bit for bit.
	for i := 0; i < 33*7; i++ {
		want := toneMapByte(img.Pix[i], p)
		if out[i*4] != want || out[i*4+1] != want || out[i*4+2] != want || out[i*4+3] != 255 {
			t.Fatalf("pixel %d = %v, want gray %d alpha 255", i, out[i*4:i*4+4], want)
		}
	}
}

func TestDispatcherToneMapSizeMismatch(t *testing.T) {
	resetAccelerator()

	d := NewDispatcher()
	defer d.Close()

	img := testPattern(8, 8, 6)
	p := ToneMapParams{Width: 16, Height: 16, DataMax: 1, STFParams: DefaultSTF()}
	if _, err := d.ToneMap(img, p); err == nil {
		t.Error("expected error for params/image dimension mismatch")
	}
}

func TestDispatcherToneMapF32(t *testing.T) {
	resetAccelerator()

	d := NewDispatcher()
	defer d.Close()

	img := testPattern(8, 8, 7)
	p := NewToneMapParams(img, ComputeStats(img), DefaultSTF())
	out, err := d.ToneMapF32(img, p)
	if err != nil {
		t.Fatalf("ToneMapF32: %v", err)
	}
	if len(out) != len(img.Pix) {
		t.Fatalf("output length = %d, want %d", len(out), len(img.Pix))
	}
	for i, v := range out {
		if v < 0 || v > 1 {
			t.Fatalf("out[%d] = %v outside [0,1]", i, v)
		}
	}
}
