package astroburst

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Parameter validation errors.
var (
	// ErrBufferSizeMismatch is returned when an image buffer length does not
	// equal width*height.
	ErrBufferSizeMismatch = errors.New("astroburst: pixel buffer length does not match dimensions")

	// ErrEmptyImage is returned when an image has zero width or height.
	ErrEmptyImage = errors.New("astroburst: image has zero dimensions")

	// ErrROIOutOfBounds is returned when a correlation ROI extends past the
	// reference image.
	ErrROIOutOfBounds = errors.New("astroburst: ROI extends outside the reference image")

	// ErrNegativeShift is returned when a correlation search radius is negative.
	ErrNegativeShift = errors.New("astroburst: max shift must be >= 0")
)

// Image is a flat row-major float32 pixel buffer with its dimensions.
// The buffer is produced and owned by the file-decoding collaborator;
// kernels borrow it read-only for the duration of one dispatch.
type Image struct {
	Pix    []float32
	Width  int
	Height int
}

// Validate reports whether the buffer length matches the dimensions.
func (img Image) Validate() error {
	if img.Width <= 0 || img.Height <= 0 {
		return ErrEmptyImage
	}
	if len(img.Pix) != img.Width*img.Height {
		return fmt.Errorf("%w: have %d pixels, want %dx%d=%d",
			ErrBufferSizeMismatch, len(img.Pix), img.Width, img.Height, img.Width*img.Height)
	}
	return nil
}

// At returns the pixel at (x, y). No bounds checking.
func (img Image) At(x, y int) float32 {
	return img.Pix[y*img.Width+x]
}

// ROI is the rectangular region of the reference image scored during
// correlation, in reference pixel coordinates.
type ROI struct {
	X, Y, W, H int
}

// STFParams holds the three screen-transfer-function parameters.
// Shadow and Highlight are normalized clip points in [0,1]; Midtone is the
// midtones balance, where 0.5 is the identity stretch.
type STFParams struct {
	Shadow    float32
	Midtone   float32
	Highlight float32
}

// DefaultSTF returns the viewer's default stretch parameters.
func DefaultSTF() STFParams {
	return STFParams{Shadow: 0, Midtone: 0.25, Highlight: 1}
}

// ToneMapParams is the complete per-dispatch parameter block of the tone map
// kernel. The field order matches the 32-byte uniform buffer layout consumed
// by the GPU shader; see WireBytes.
type ToneMapParams struct {
	Width   uint32
	Height  uint32
	DataMin float32
	DataMax float32
	STFParams
}

// NewToneMapParams assembles tone map parameters from an image, its
// statistics, and a stretch.
func NewToneMapParams(img Image, st ImageStats, stf STFParams) ToneMapParams {
	return ToneMapParams{
		Width:     uint32(img.Width),
		Height:    uint32(img.Height),
		DataMin:   float32(st.Min),
		DataMax:   float32(st.Max),
		STFParams: stf,
	}
}

// toneMapParamsSize is the uniform buffer size of ToneMapParams:
// 7 fields of 4 bytes plus 4 bytes of padding.
const toneMapParamsSize = 32

// WireBytes serializes ToneMapParams to the little-endian layout of the
// shader's uniform block: width:u32, height:u32, data_min:f32, data_max:f32,
// shadow:f32, midtone:f32, highlight:f32, pad:f32.
func (p ToneMapParams) WireBytes() []byte {
	buf := make([]byte, toneMapParamsSize)
	le := binary.LittleEndian
	le.PutUint32(buf[0:4], p.Width)
	le.PutUint32(buf[4:8], p.Height)
	le.PutUint32(buf[8:12], math.Float32bits(p.DataMin))
	le.PutUint32(buf[12:16], math.Float32bits(p.DataMax))
	le.PutUint32(buf[16:20], math.Float32bits(p.Shadow))
	le.PutUint32(buf[20:24], math.Float32bits(p.Midtone))
	le.PutUint32(buf[24:28], math.Float32bits(p.Highlight))
	// buf[28:32] stays zero (pad).
	return buf
}

// CorrelationParams is the complete per-dispatch parameter block of the
// correlation kernel. SearchSize is always 2*MaxShift+1; SearchSize² is both
// the number of Phase-1 workgroups and the length of the score grid.
type CorrelationParams struct {
	RefWidth  uint32
	RefHeight uint32
	TgtWidth  uint32
	TgtHeight uint32
	ROIX      uint32
	ROIY      uint32
	ROIW      uint32
	ROIH      uint32
	MaxShift   int32
	SearchSize uint32
}

// NewCorrelationParams validates the inputs and assembles correlation
// parameters. The ROI must lie entirely inside the reference image; the
// target image may have different dimensions (out-of-bounds samples after
// shifting are excluded by the kernel's validity predicate).
func NewCorrelationParams(ref, tgt Image, roi ROI, maxShift int) (CorrelationParams, error) {
	if err := ref.Validate(); err != nil {
		return CorrelationParams{}, fmt.Errorf("reference: %w", err)
	}
	if err := tgt.Validate(); err != nil {
		return CorrelationParams{}, fmt.Errorf("target: %w", err)
	}
	if maxShift < 0 {
		return CorrelationParams{}, ErrNegativeShift
	}
	if roi.X < 0 || roi.Y < 0 || roi.W <= 0 || roi.H <= 0 ||
		roi.X+roi.W > ref.Width || roi.Y+roi.H > ref.Height {
		return CorrelationParams{}, fmt.Errorf("%w: roi=%+v ref=%dx%d",
			ErrROIOutOfBounds, roi, ref.Width, ref.Height)
	}
	return CorrelationParams{
		RefWidth:   uint32(ref.Width),
		RefHeight:  uint32(ref.Height),
		TgtWidth:   uint32(tgt.Width),
		TgtHeight:  uint32(tgt.Height),
		ROIX:       uint32(roi.X),
		ROIY:       uint32(roi.Y),
		ROIW:       uint32(roi.W),
		ROIH:       uint32(roi.H),
		MaxShift:   int32(maxShift),
		SearchSize: uint32(2*maxShift + 1),
	}, nil
}

// correlationParamsSize is the uniform buffer size of CorrelationParams:
// 10 fields of 4 bytes plus 8 bytes of padding.
const correlationParamsSize = 48

// WireBytes serializes CorrelationParams to the little-endian layout of the
// shader's uniform block: ref_width, ref_height, tgt_width, tgt_height,
// roi_x, roi_y, roi_w, roi_h (u32 x8), max_shift:i32, search_size:u32,
// pad0:u32, pad1:u32.
func (p CorrelationParams) WireBytes() []byte {
	buf := make([]byte, correlationParamsSize)
	le := binary.LittleEndian
	le.PutUint32(buf[0:4], p.RefWidth)
	le.PutUint32(buf[4:8], p.RefHeight)
	le.PutUint32(buf[8:12], p.TgtWidth)
	le.PutUint32(buf[12:16], p.TgtHeight)
	le.PutUint32(buf[16:20], p.ROIX)
	le.PutUint32(buf[20:24], p.ROIY)
	le.PutUint32(buf[24:28], p.ROIW)
	le.PutUint32(buf[28:32], p.ROIH)
	le.PutUint32(buf[32:36], uint32(p.MaxShift))
	le.PutUint32(buf[36:40], p.SearchSize)
	// buf[40:48] stays zero (pad0, pad1).
	return buf
}

// OffsetResult is the outcome of one correlation dispatch: the winning
// integer displacement and its decoded score.
type OffsetResult struct {
	Dx, Dy int
	Score  Score
}

// OffsetResultWireSize is the readback buffer size of OffsetResult:
// best_dx:i32, best_dy:i32, best_score:f32, pad:u32.
const OffsetResultWireSize = 16

// OffsetResultFromBytes decodes the 16-byte kernel result block.
func OffsetResultFromBytes(b []byte) (OffsetResult, error) {
	if len(b) < OffsetResultWireSize {
		return OffsetResult{}, fmt.Errorf("astroburst: offset result block is %d bytes, want %d", len(b), OffsetResultWireSize)
	}
	le := binary.LittleEndian
	return OffsetResult{
		Dx:    int(int32(le.Uint32(b[0:4]))),
		Dy:    int(int32(le.Uint32(b[4:8]))),
		Score: scoreFromWire(math.Float32frombits(le.Uint32(b[8:12]))),
	}, nil
}
