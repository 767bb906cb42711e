//go:build !nogpu

package gpu

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	astroburst "github.com/samuelkriegerbonini-dev/AstroBurst"
)

// toneMapTileSize must match both @workgroup_size dimensions in tonemap.wgsl.
const toneMapTileSize = 16

// fenceTimeout bounds every submit; a hung driver surfaces as an error
// instead of blocking the caller forever.
const fenceTimeout = 5 * time.Second

// Accelerator runs the tone map and correlation kernels on a wgpu/hal
// compute device. It implements the astroburst.GPUAccelerator interface.
//
// Every public method holds the accelerator mutex for the full dispatch:
// one submit, one fence wait, one readback. Buffers are created per call
// and destroyed before returning; only the pipelines persist.
type Accelerator struct {
	mu sync.Mutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	toneMap    pipelineSet
	corrScore  pipelineSet
	corrArgmax pipelineSet

	gpuReady bool
}

// New returns an unopened accelerator. Resources are acquired in Init.
func New() *Accelerator { return &Accelerator{} }

// Name identifies the accelerator in Dispatcher.Engine and log output.
func (a *Accelerator) Name() string { return "wgpu-vulkan" }

// Init probes for a GPU and compiles the compute pipelines. It is called
// once, at registration; on failure the accelerator stays unregistered and
// every dispatch runs on the CPU path instead.
func (a *Accelerator) Init() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.gpuReady {
		return nil
	}
	return a.initGPU()
}

func (a *Accelerator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.destroyPipelines()
	if a.device != nil {
		a.device.Destroy()
		a.device = nil
	}
	if a.instance != nil {
		a.instance.Destroy()
		a.instance = nil
	}
	a.queue = nil
	a.gpuReady = false
}

// SetLogger routes this package's log output through l.
// Called by astroburst.SetLogger via the registration hook.
func (a *Accelerator) SetLogger(l *slog.Logger) { setLogger(l) }

// ToneMap runs the tone map kernel: one thread per pixel, packed RGBA words
// copied to a staging buffer and read back after the fence signals.
func (a *Accelerator) ToneMap(img astroburst.Image, p astroburst.ToneMapParams) ([]uint8, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.gpuReady {
		return nil, astroburst.ErrDeviceUnavailable
	}

	n := len(img.Pix)
	paramsBytes := p.WireBytes()
	inputBytes := floatsToBytes(img.Pix)
	outSize := uint64(n) * 4

	paramsBuf, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "tonemap_params", Size: uint64(len(paramsBytes)),
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create params buffer: %w", err)
	}
	defer a.device.DestroyBuffer(paramsBuf)
	inputBuf, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "tonemap_input", Size: uint64(len(inputBytes)),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create input buffer: %w", err)
	}
	defer a.device.DestroyBuffer(inputBuf)
	outputBuf, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "tonemap_output", Size: outSize,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("create output buffer: %w", err)
	}
	defer a.device.DestroyBuffer(outputBuf)
	stagingBuf, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "tonemap_staging", Size: outSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create staging buffer: %w", err)
	}
	defer a.device.DestroyBuffer(stagingBuf)

	a.queue.WriteBuffer(paramsBuf, 0, paramsBytes)
	a.queue.WriteBuffer(inputBuf, 0, inputBytes)

	bg, err := a.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: "tonemap_bind", Layout: a.toneMap.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: paramsBuf.NativeHandle(), Offset: 0, Size: uint64(len(paramsBytes))}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: inputBuf.NativeHandle(), Offset: 0, Size: uint64(len(inputBytes))}},
			{Binding: 2, Resource: gputypes.BufferBinding{Buffer: outputBuf.NativeHandle(), Offset: 0, Size: outSize}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create bind group: %w", err)
	}
	defer a.device.DestroyBindGroup(bg)

	gx, gy := toneMapGrid(img.Width, img.Height)
	readback := make([]byte, outSize)
	err = a.submitAndRead("tonemap", func(encoder hal.CommandEncoder) {
		pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "tonemap_pass"})
		pass.SetPipeline(a.toneMap.pipeline)
		pass.SetBindGroup(0, bg, nil)
		pass.Dispatch(gx, gy, 1)
		pass.End()
		encoder.CopyBufferToBuffer(outputBuf, stagingBuf, []hal.BufferCopy{
			{SrcOffset: 0, DstOffset: 0, Size: outSize},
		})
	}, stagingBuf, readback)
	if err != nil {
		return nil, err
	}
	// The packed word b | b<<8 | b<<16 | 255<<24 is little-endian, so the
	// staged bytes already are the RGBA byte stream.
	return readback, nil
}

// Correlate runs the two-phase correlation: a scoring pass with one
// workgroup per candidate shift, then a single-workgroup arg-max reduction.
// Both passes go into one command encoder; the implicit storage barrier
// between passes is the phase boundary.
func (a *Accelerator) Correlate(ref, tgt astroburst.Image, p astroburst.CorrelationParams) (astroburst.OffsetResult, error) {
	var zero astroburst.OffsetResult
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.gpuReady {
		return zero, astroburst.ErrDeviceUnavailable
	}

	paramsBytes := p.WireBytes()
	refBytes := floatsToBytes(ref.Pix)
	tgtBytes := floatsToBytes(tgt.Pix)
	gridLen := uint64(p.SearchSize) * uint64(p.SearchSize)
	scoresSize := gridLen * 4

	paramsBuf, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "corr_params", Size: uint64(len(paramsBytes)),
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return zero, fmt.Errorf("create params buffer: %w", err)
	}
	defer a.device.DestroyBuffer(paramsBuf)
	refBuf, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "corr_ref", Size: uint64(len(refBytes)),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return zero, fmt.Errorf("create ref buffer: %w", err)
	}
	defer a.device.DestroyBuffer(refBuf)
	tgtBuf, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "corr_tgt", Size: uint64(len(tgtBytes)),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return zero, fmt.Errorf("create tgt buffer: %w", err)
	}
	defer a.device.DestroyBuffer(tgtBuf)
	scoresBuf, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "corr_scores", Size: scoresSize,
		Usage: gputypes.BufferUsageStorage,
	})
	if err != nil {
		return zero, fmt.Errorf("create scores buffer: %w", err)
	}
	defer a.device.DestroyBuffer(scoresBuf)
	resultBuf, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "corr_result", Size: astroburst.OffsetResultWireSize,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		return zero, fmt.Errorf("create result buffer: %w", err)
	}
	defer a.device.DestroyBuffer(resultBuf)
	stagingBuf, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "corr_staging", Size: astroburst.OffsetResultWireSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return zero, fmt.Errorf("create staging buffer: %w", err)
	}
	defer a.device.DestroyBuffer(stagingBuf)

	a.queue.WriteBuffer(paramsBuf, 0, paramsBytes)
	a.queue.WriteBuffer(refBuf, 0, refBytes)
	a.queue.WriteBuffer(tgtBuf, 0, tgtBytes)

	scoreBG, err := a.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: "corr_score_bind", Layout: a.corrScore.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: paramsBuf.NativeHandle(), Offset: 0, Size: uint64(len(paramsBytes))}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: refBuf.NativeHandle(), Offset: 0, Size: uint64(len(refBytes))}},
			{Binding: 2, Resource: gputypes.BufferBinding{Buffer: tgtBuf.NativeHandle(), Offset: 0, Size: uint64(len(tgtBytes))}},
			{Binding: 3, Resource: gputypes.BufferBinding{Buffer: scoresBuf.NativeHandle(), Offset: 0, Size: scoresSize}},
		},
	})
	if err != nil {
		return zero, fmt.Errorf("create score bind group: %w", err)
	}
	defer a.device.DestroyBindGroup(scoreBG)
	argmaxBG, err := a.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: "corr_argmax_bind", Layout: a.corrArgmax.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: paramsBuf.NativeHandle(), Offset: 0, Size: uint64(len(paramsBytes))}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: scoresBuf.NativeHandle(), Offset: 0, Size: scoresSize}},
			{Binding: 2, Resource: gputypes.BufferBinding{Buffer: resultBuf.NativeHandle(), Offset: 0, Size: astroburst.OffsetResultWireSize}},
		},
	})
	if err != nil {
		return zero, fmt.Errorf("create argmax bind group: %w", err)
	}
	defer a.device.DestroyBindGroup(argmaxBG)

	readback := make([]byte, astroburst.OffsetResultWireSize)
	err = a.submitAndRead("corr", func(encoder hal.CommandEncoder) {
		score := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "corr_score_pass"})
		score.SetPipeline(a.corrScore.pipeline)
		score.SetBindGroup(0, scoreBG, nil)
		score.Dispatch(p.SearchSize, p.SearchSize, 1)
		score.End()

		argmax := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "corr_argmax_pass"})
		argmax.SetPipeline(a.corrArgmax.pipeline)
		argmax.SetBindGroup(0, argmaxBG, nil)
		argmax.Dispatch(1, 1, 1)
		argmax.End()

		encoder.CopyBufferToBuffer(resultBuf, stagingBuf, []hal.BufferCopy{
			{SrcOffset: 0, DstOffset: 0, Size: astroburst.OffsetResultWireSize},
		})
	}, stagingBuf, readback)
	if err != nil {
		return zero, err
	}
	return astroburst.OffsetResultFromBytes(readback)
}

// submitAndRead records one command buffer, submits it behind a fence, waits
// up to fenceTimeout, and reads the staging buffer back into dst.
func (a *Accelerator) submitAndRead(label string, record func(hal.CommandEncoder), stagingBuf hal.Buffer, dst []byte) error {
	encoder, err := a.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label + "_encoder"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}
	record(encoder)
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer a.device.FreeCommandBuffer(cmdBuf)

	fence, err := a.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer a.device.DestroyFence(fence)
	if err := a.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	if err := fenceWaitErr(a.device.Wait(fence, 1, fenceTimeout)); err != nil {
		return err
	}
	if err := a.queue.ReadBuffer(stagingBuf, 0, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", astroburst.ErrReadback, label, err)
	}
	return nil
}

// fenceWaitErr converts a Device.Wait result into a dispatch error. A timed
// out fence reports ok=false with a nil error, so the two cases need
// distinct messages.
func fenceWaitErr(ok bool, err error) error {
	if err != nil {
		return fmt.Errorf("wait for GPU: %w", err)
	}
	if !ok {
		return fmt.Errorf("wait for GPU: fence not signaled within %v", fenceTimeout)
	}
	return nil
}

// toneMapGrid returns the workgroup counts for a width x height frame.
// Tiling in two dimensions keeps full-frame sensor images below the
// per-dimension dispatch limit, which a flat 1D grid exceeds at around
// 16.7 megapixels.
func toneMapGrid(width, height int) (gx, gy uint32) {
	gx = (uint32(width) + toneMapTileSize - 1) / toneMapTileSize
	gy = (uint32(height) + toneMapTileSize - 1) / toneMapTileSize
	return gx, gy
}

func floatsToBytes(src []float32) []byte {
	out := make([]byte, len(src)*4)
	for i, v := range src {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}
