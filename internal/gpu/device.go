//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// initGPU probes for a usable adapter and opens a device. Discrete and
// integrated GPUs are preferred over software rasterizers; if neither is
// present the first exposed adapter is used.
func (a *Accelerator) initGPU() error {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return fmt.Errorf("vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	a.instance = instance
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return fmt.Errorf("no GPU adapters found")
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		return fmt.Errorf("open device: %w", err)
	}
	a.device = openDev.Device
	a.queue = openDev.Queue
	if err := a.createPipelines(); err != nil {
		a.device.Destroy()
		a.device = nil
		a.queue = nil
		return fmt.Errorf("create pipelines: %w", err)
	}
	a.gpuReady = true
	slogger().Info("GPU accelerator initialized", "adapter", selected.Info.Name)
	return nil
}

// pipelineSet bundles the objects behind one compute entry point.
type pipelineSet struct {
	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline
}

func (a *Accelerator) buildPipeline(name, source string, bindings []gputypes.BindGroupLayoutEntry) (pipelineSet, error) {
	var ps pipelineSet
	shader, err := a.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  name + "_shader",
		Source: hal.ShaderSource{WGSL: source},
	})
	if err != nil {
		return ps, fmt.Errorf("create %s shader: %w", name, err)
	}
	ps.shader = shader
	bindLayout, err := a.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   name + "_bind_layout",
		Entries: bindings,
	})
	if err != nil {
		a.destroyPipelineSet(&ps)
		return ps, fmt.Errorf("create %s bind layout: %w", name, err)
	}
	ps.bindLayout = bindLayout
	pipeLayout, err := a.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: name + "_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{bindLayout},
	})
	if err != nil {
		a.destroyPipelineSet(&ps)
		return ps, fmt.Errorf("create %s pipe layout: %w", name, err)
	}
	ps.pipeLayout = pipeLayout
	pipeline, err := a.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   name + "_pipeline",
		Layout:  pipeLayout,
		Compute: hal.ComputeState{Module: shader, EntryPoint: "main"},
	})
	if err != nil {
		a.destroyPipelineSet(&ps)
		return ps, fmt.Errorf("create %s pipeline: %w", name, err)
	}
	ps.pipeline = pipeline
	return ps, nil
}

func (a *Accelerator) createPipelines() error {
	uniform := &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}
	roStorage := &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}
	rwStorage := &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}

	toneMap, err := a.buildPipeline("tonemap", toneMapShaderSource, []gputypes.BindGroupLayoutEntry{
		{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: uniform},
		{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: roStorage},
		{Binding: 2, Visibility: gputypes.ShaderStageCompute, Buffer: rwStorage},
	})
	if err != nil {
		return err
	}
	a.toneMap = toneMap

	corrScore, err := a.buildPipeline("corr_score", corrScoreShaderSource, []gputypes.BindGroupLayoutEntry{
		{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: uniform},
		{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: roStorage},
		{Binding: 2, Visibility: gputypes.ShaderStageCompute, Buffer: roStorage},
		{Binding: 3, Visibility: gputypes.ShaderStageCompute, Buffer: rwStorage},
	})
	if err != nil {
		a.destroyPipelines()
		return err
	}
	a.corrScore = corrScore

	corrArgmax, err := a.buildPipeline("corr_argmax", corrArgmaxShaderSource, []gputypes.BindGroupLayoutEntry{
		{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: uniform},
		{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: roStorage},
		{Binding: 2, Visibility: gputypes.ShaderStageCompute, Buffer: rwStorage},
	})
	if err != nil {
		a.destroyPipelines()
		return err
	}
	a.corrArgmax = corrArgmax
	return nil
}

func (a *Accelerator) destroyPipelineSet(ps *pipelineSet) {
	if a.device == nil {
		return
	}
	if ps.pipeline != nil {
		a.device.DestroyComputePipeline(ps.pipeline)
		ps.pipeline = nil
	}
	if ps.pipeLayout != nil {
		a.device.DestroyPipelineLayout(ps.pipeLayout)
		ps.pipeLayout = nil
	}
	if ps.bindLayout != nil {
		a.device.DestroyBindGroupLayout(ps.bindLayout)
		ps.bindLayout = nil
	}
	if ps.shader != nil {
		a.device.DestroyShaderModule(ps.shader)
		ps.shader = nil
	}
}

func (a *Accelerator) destroyPipelines() {
	a.destroyPipelineSet(&a.toneMap)
	a.destroyPipelineSet(&a.corrScore)
	a.destroyPipelineSet(&a.corrArgmax)
}
