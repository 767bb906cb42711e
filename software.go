package astroburst

import (
	"fmt"

	"github.com/samuelkriegerbonini-dev/AstroBurst/internal/parallel"
)

// softwareEngine is the CPU implementation of both kernels. It reproduces
// the GPU path's algorithms exactly — same validity predicate, sentinel
// encoding, and tie-break rule — with host parallelism standing in for
// workgroups: row bands for the tone map, one task per candidate shift for
// correlation Phase 1, and a sequential in-order scan for Phase 2.
type softwareEngine struct {
	pool *parallel.WorkerPool
}

// newSoftwareEngine creates the CPU engine. workers <= 0 selects GOMAXPROCS.
func newSoftwareEngine(workers int) *softwareEngine {
	return &softwareEngine{pool: parallel.NewWorkerPool(workers)}
}

// Close shuts down the worker pool.
func (e *softwareEngine) Close() {
	e.pool.Close()
}

// ToneMap runs the per-pixel transform over row bands in parallel.
func (e *softwareEngine) ToneMap(img Image, p ToneMapParams) ([]uint8, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	if int(p.Width) != img.Width || int(p.Height) != img.Height {
		return nil, fmt.Errorf("astroburst: params %dx%d do not match image %dx%d",
			p.Width, p.Height, img.Width, img.Height)
	}

	out := make([]uint8, img.Width*img.Height*4)
	tasks := make([]func(), 0, e.pool.Workers()*4)
	band := bandHeight(img.Height, e.pool.Workers())
	for y0 := 0; y0 < img.Height; y0 += band {
		y1 := min(y0+band, img.Height)
		start, end := y0, y1
		tasks = append(tasks, func() {
			for i := start * img.Width; i < end*img.Width; i++ {
				packGray(out, i, toneMapByte(img.Pix[i], p))
			}
		})
	}
	e.pool.ExecuteAll(tasks)
	return out, nil
}

// Correlate scores every candidate shift in parallel (Phase 1), then scans
// the complete score grid sequentially (Phase 2). The join on ExecuteAll is
// the CPU analogue of the hard phase boundary: no score is read before every
// candidate has written.
func (e *softwareEngine) Correlate(ref, tgt Image, p CorrelationParams) (OffsetResult, error) {
	size := int(p.SearchSize)
	maxShift := int(p.MaxShift)
	scores := make([]float32, size*size)

	tasks := make([]func(), 0, len(scores))
	for idx := range scores {
		i := idx
		tasks = append(tasks, func() {
			dx := i%size - maxShift
			dy := i/size - maxShift
			scores[i] = scoreShift(ref, tgt, p, dx, dy)
		})
	}
	e.pool.ExecuteAll(tasks)

	return argmaxScores(scores, p), nil
}

// bandHeight splits rows into roughly 4 bands per worker so slow bands
// (e.g. rows dense with valid pixels) can be stolen.
func bandHeight(rows, workers int) int {
	bands := workers * 4
	h := (rows + bands - 1) / bands
	if h < 1 {
		h = 1
	}
	return h
}
