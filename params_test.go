package astroburst

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func TestImageValidate(t *testing.T) {
	tests := []struct {
		name    string
		img     Image
		wantErr bool
	}{
		{"valid", Image{Pix: make([]float32, 6), Width: 3, Height: 2}, false},
		{"one pixel", Image{Pix: make([]float32, 1), Width: 1, Height: 1}, false},
		{"empty", Image{}, true},
		{"zero width", Image{Pix: make([]float32, 4), Width: 0, Height: 4}, true},
		{"buffer too short", Image{Pix: make([]float32, 5), Width: 3, Height: 2}, true},
		{"buffer too long", Image{Pix: make([]float32, 7), Width: 3, Height: 2}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.img.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestToneMapParamsWireLayout(t *testing.T) {
	p := ToneMapParams{
		Width: 640, Height: 480,
		DataMin: 0.25, DataMax: 0.75,
		STFParams: STFParams{Shadow: 0.1, Midtone: 0.3, Highlight: 0.9},
	}
	b := p.WireBytes()
	if len(b) != 32 {
		t.Fatalf("wire size = %d, want 32", len(b))
	}

	le := binary.LittleEndian
	if got := le.Uint32(b[0:4]); got != 640 {
		t.Errorf("width word = %d, want 640", got)
	}
	if got := le.Uint32(b[4:8]); got != 480 {
		t.Errorf("height word = %d, want 480", got)
	}
	wantFloats := []struct {
		off  int
		want float32
	}{
		{8, 0.25}, {12, 0.75}, {16, 0.1}, {20, 0.3}, {24, 0.9},
	}
	for _, wf := range wantFloats {
		got := math.Float32frombits(le.Uint32(b[wf.off : wf.off+4]))
		if got != wf.want {
			t.Errorf("float at offset %d = %v, want %v", wf.off, got, wf.want)
		}
	}
	if got := le.Uint32(b[28:32]); got != 0 {
		t.Errorf("pad word = %d, want 0", got)
	}
}

func TestCorrelationParamsWireLayout(t *testing.T) {
	ref := Image{Pix: make([]float32, 100*80), Width: 100, Height: 80}
	tgt := Image{Pix: make([]float32, 90*70), Width: 90, Height: 70}
	p, err := NewCorrelationParams(ref, tgt, ROI{X: 10, Y: 20, W: 30, H: 40}, 7)
	if err != nil {
		t.Fatalf("NewCorrelationParams: %v", err)
	}
	if p.SearchSize != 15 {
		t.Errorf("SearchSize = %d, want 15", p.SearchSize)
	}

	b := p.WireBytes()
	if len(b) != 48 {
		t.Fatalf("wire size = %d, want 48", len(b))
	}

	le := binary.LittleEndian
	wantWords := []uint32{100, 80, 90, 70, 10, 20, 30, 40, 7, 15, 0, 0}
	for i, want := range wantWords {
		if got := le.Uint32(b[i*4 : i*4+4]); got != want {
			t.Errorf("word %d = %d, want %d", i, got, want)
		}
	}
}

func TestNewCorrelationParamsValidation(t *testing.T) {
	ref := Image{Pix: make([]float32, 64*64), Width: 64, Height: 64}
	tgt := Image{Pix: make([]float32, 64*64), Width: 64, Height: 64}

	tests := []struct {
		name     string
		roi      ROI
		maxShift int
		wantErr  error
	}{
		{"negative shift", ROI{X: 8, Y: 8, W: 16, H: 16}, -1, ErrNegativeShift},
		{"roi past right edge", ROI{X: 56, Y: 8, W: 16, H: 16}, 4, ErrROIOutOfBounds},
		{"roi past bottom edge", ROI{X: 8, Y: 56, W: 16, H: 16}, 4, ErrROIOutOfBounds},
		{"negative roi origin", ROI{X: -1, Y: 8, W: 16, H: 16}, 4, ErrROIOutOfBounds},
		{"empty roi", ROI{X: 8, Y: 8, W: 0, H: 16}, 4, ErrROIOutOfBounds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCorrelationParams(ref, tgt, tt.roi, tt.maxShift)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	// Full-frame ROI with zero shift is the permissive extreme.
	if _, err := NewCorrelationParams(ref, tgt, ROI{X: 0, Y: 0, W: 64, H: 64}, 0); err != nil {
		t.Errorf("full-frame ROI rejected: %v", err)
	}
}

func TestOffsetResultFromBytes(t *testing.T) {
	b := make([]byte, OffsetResultWireSize)
	le := binary.LittleEndian
	le.PutUint32(b[0:4], uint32(0xFFFFFFFD)) // -3 as i32
	le.PutUint32(b[4:8], 5)
	le.PutUint32(b[8:12], math.Float32bits(0.875))

	res, err := OffsetResultFromBytes(b)
	if err != nil {
		t.Fatalf("OffsetResultFromBytes: %v", err)
	}
	if res.Dx != -3 || res.Dy != 5 {
		t.Errorf("offset = (%d, %d), want (-3, 5)", res.Dx, res.Dy)
	}
	if !res.Score.Valid() || res.Score.Value != 0.875 {
		t.Errorf("score = %+v, want valid 0.875", res.Score)
	}
}

func TestOffsetResultFromBytesSentinel(t *testing.T) {
	b := make([]byte, OffsetResultWireSize)
	le := binary.LittleEndian
	le.PutUint32(b[8:12], math.Float32bits(-2.0))

	res, err := OffsetResultFromBytes(b)
	if err != nil {
		t.Fatalf("OffsetResultFromBytes: %v", err)
	}
	if res.Score.Valid() {
		t.Error("sentinel score should decode as no-data")
	}
	if res.Score.Kind != ScoreNoData {
		t.Errorf("kind = %v, want ScoreNoData", res.Score.Kind)
	}
}

func TestOffsetResultFromBytesShortBuffer(t *testing.T) {
	if _, err := OffsetResultFromBytes(make([]byte, 8)); err == nil {
		t.Error("expected error for short result buffer")
	}
}
