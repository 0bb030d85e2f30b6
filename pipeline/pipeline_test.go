// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/gogpu/framepump/driver"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const triangleWGSL = `
@vertex
fn vs_main(@builtin(vertex_index) i: u32) -> @builtin(position) vec4<f32> {
    let x = f32(i32(i) - 1);
    let y = f32(i32(i & 1u) * 2 - 1);
    return vec4<f32>(x, y, 0.0, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 0.5, 0.0, 1.0);
}
`

func computeWGSL(n int) string {
	return fmt.Sprintf(`
@compute @workgroup_size(%d)
fn cs_main(@builtin(global_invocation_id) id: vec3<u32>) {
}
`, n)
}

func createNoopDevice(t *testing.T) (hal.Device, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	require.NoError(t, err)
	adapters := instance.EnumerateAdapters(nil)
	require.NotEmpty(t, adapters)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	return openDev.Device, func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
}

// countingDevice records shader module and pipeline traffic on top of the
// noop device.
type countingDevice struct {
	hal.Device

	mu               sync.Mutex
	modulesCreated   int
	modulesDestroyed int
	layoutsCreated   int
	layoutsDestroyed int
	lastModule       hal.ShaderModuleDescriptor
	lastRender       *hal.RenderPipelineDescriptor
	lastCompute      *hal.ComputePipelineDescriptor
	failPipeline     error
}

func newCountingDevice(t *testing.T) *countingDevice {
	dev, cleanup := createNoopDevice(t)
	t.Cleanup(cleanup)
	return &countingDevice{Device: dev}
}

func (d *countingDevice) CreateShaderModule(desc *hal.ShaderModuleDescriptor) (hal.ShaderModule, error) {
	d.mu.Lock()
	d.modulesCreated++
	d.lastModule = *desc
	d.mu.Unlock()
	return d.Device.CreateShaderModule(desc)
}

func (d *countingDevice) DestroyShaderModule(m hal.ShaderModule) {
	d.mu.Lock()
	d.modulesDestroyed++
	d.mu.Unlock()
	d.Device.DestroyShaderModule(m)
}

func (d *countingDevice) CreatePipelineLayout(desc *hal.PipelineLayoutDescriptor) (hal.PipelineLayout, error) {
	d.layoutsCreated++
	return d.Device.CreatePipelineLayout(desc)
}

func (d *countingDevice) DestroyPipelineLayout(l hal.PipelineLayout) {
	d.layoutsDestroyed++
	d.Device.DestroyPipelineLayout(l)
}

func (d *countingDevice) CreateRenderPipeline(desc *hal.RenderPipelineDescriptor) (hal.RenderPipeline, error) {
	if d.failPipeline != nil {
		return nil, d.failPipeline
	}
	d.lastRender = desc
	return d.Device.CreateRenderPipeline(desc)
}

func (d *countingDevice) CreateComputePipeline(desc *hal.ComputePipelineDescriptor) (hal.ComputePipeline, error) {
	if d.failPipeline != nil {
		return nil, d.failPipeline
	}
	d.lastCompute = desc
	return d.Device.CreateComputePipeline(desc)
}

func triangleDesc() Desc {
	return Raster("triangle",
		Shader{WGSL: triangleWGSL, EntryPoint: "vs_main"},
		Shader{WGSL: triangleWGSL, EntryPoint: "fs_main"},
		gputypes.TextureFormatBGRA8UnormSrgb)
}

func TestDescValidate(t *testing.T) {
	vs := Shader{WGSL: triangleWGSL, EntryPoint: "vs_main"}
	cs := Shader{WGSL: computeWGSL(1), EntryPoint: "cs_main"}

	depthOnly := Desc{Label: "shadow", Kind: KindRaster, Vertex: vs}.WithDepth(gputypes.TextureFormatDepth32Float)
	require.NoError(t, depthOnly.Validate())
	require.NoError(t, triangleDesc().Validate())
	require.NoError(t, Compute("double", cs).Validate())

	tests := []struct {
		name string
		desc Desc
	}{
		{"no vertex source", Desc{Kind: KindRaster, Vertex: Shader{EntryPoint: "vs_main"}}},
		{"no vertex entry", Desc{Kind: KindRaster, Vertex: Shader{WGSL: triangleWGSL}}},
		{"raster with compute", func() Desc { d := triangleDesc(); d.Compute = cs; return d }()},
		{"no fragment no depth", Desc{Kind: KindRaster, Vertex: vs}},
		{"targets without fragment", func() Desc { d := triangleDesc(); d.Fragment = Shader{}; return d }()},
		{"fragment without targets", func() Desc { d := triangleDesc(); d.Targets = nil; return d }()},
		{"depth target format", Raster("x", vs, vs, gputypes.TextureFormatDepth24Plus)},
		{"undefined target format", Raster("x", vs, vs, gputypes.TextureFormatUndefined)},
		{"compute with vertex", func() Desc { d := Compute("x", cs); d.Vertex = vs; return d }()},
		{"compute with depth", Compute("x", cs).WithDepth(gputypes.TextureFormatDepth32Float)},
		{"compute without entry", Compute("x", Shader{WGSL: computeWGSL(1)})},
		{"unknown kind", Desc{Kind: Kind(7)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.desc.Validate(), ErrInvalidDesc)
		})
	}
}

func TestEntryPoints(t *testing.T) {
	eps, err := EntryPoints(triangleWGSL)
	require.NoError(t, err)
	assert.ElementsMatch(t, []EntryPoint{
		{Name: "vs_main", Stage: StageVertex},
		{Name: "fs_main", Stage: StageFragment},
	}, eps)

	eps, err = EntryPoints(computeWGSL(64))
	require.NoError(t, err)
	assert.Equal(t, []EntryPoint{{Name: "cs_main", Stage: StageCompute}}, eps)

	_, err = EntryPoints("fn broken( {")
	assert.Error(t, err)
}

func TestCompile(t *testing.T) {
	words, err := Compile(triangleWGSL)
	require.NoError(t, err)
	require.NotEmpty(t, words)
	assert.Equal(t, uint32(0x07230203), words[0], "SPIR-V magic")

	_, err = Compile("not wgsl")
	assert.Error(t, err)
}

func TestBuildRaster(t *testing.T) {
	dev := newCountingDevice(t)
	p, err := Build(dev, triangleDesc(), nil)
	require.NoError(t, err)

	assert.Equal(t, KindRaster, p.Kind)
	assert.NotNil(t, p.Render())
	assert.Nil(t, p.Compute())
	assert.NotNil(t, p.Layout())

	require.NotNil(t, dev.lastRender)
	assert.Equal(t, "vs_main", dev.lastRender.Vertex.EntryPoint)
	require.NotNil(t, dev.lastRender.Fragment)
	assert.Equal(t, "fs_main", dev.lastRender.Fragment.EntryPoint)
	assert.Equal(t, gputypes.TextureFormatBGRA8UnormSrgb, dev.lastRender.Fragment.Targets[0].Format)
	assert.Equal(t, uint32(1), dev.lastRender.Multisample.Count)
	assert.Equal(t, triangleWGSL, dev.lastModule.Source.WGSL)

	// Without a cache the modules only live for the Build call.
	assert.Equal(t, 2, dev.modulesCreated)
	assert.Equal(t, 2, dev.modulesDestroyed)

	p.Destroy()
	p.Destroy()
	assert.Equal(t, 1, dev.layoutsDestroyed)
	assert.Nil(t, p.Render())
}

func TestBuildDepthOnly(t *testing.T) {
	dev := newCountingDevice(t)
	desc := Desc{Label: "shadow", Kind: KindRaster, Vertex: Shader{WGSL: triangleWGSL, EntryPoint: "vs_main"}}
	p, err := Build(dev, desc.WithDepth(gputypes.TextureFormatDepth32Float), nil)
	require.NoError(t, err)
	defer p.Destroy()

	assert.Nil(t, dev.lastRender.Fragment)
	require.NotNil(t, dev.lastRender.DepthStencil)
	assert.Equal(t, gputypes.CompareFunctionLess, dev.lastRender.DepthStencil.DepthCompare)
}

func TestBuildCompute(t *testing.T) {
	dev := newCountingDevice(t)
	p, err := Build(dev, Compute("double", Shader{WGSL: computeWGSL(64), EntryPoint: "cs_main"}), nil)
	require.NoError(t, err)
	defer p.Destroy()

	assert.NotNil(t, p.Compute())
	assert.Nil(t, p.Render())
	assert.Equal(t, "cs_main", dev.lastCompute.Compute.EntryPoint)
}

func TestBuildEntryPointErrors(t *testing.T) {
	tests := []struct {
		name string
		desc Desc
	}{
		{"missing", Raster("x",
			Shader{WGSL: triangleWGSL, EntryPoint: "main"},
			Shader{WGSL: triangleWGSL, EntryPoint: "fs_main"},
			gputypes.TextureFormatBGRA8Unorm)},
		{"wrong stage", Raster("x",
			Shader{WGSL: triangleWGSL, EntryPoint: "fs_main"},
			Shader{WGSL: triangleWGSL, EntryPoint: "fs_main"},
			gputypes.TextureFormatBGRA8Unorm)},
		{"vertex as compute", Compute("x", Shader{WGSL: triangleWGSL, EntryPoint: "vs_main"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := newCountingDevice(t)
			_, err := Build(dev, tt.desc, nil)
			assert.ErrorIs(t, err, ErrEntryPoint)
			assert.Equal(t, dev.modulesCreated, dev.modulesDestroyed)
			assert.Zero(t, dev.layoutsCreated)
		})
	}
}

func TestBuildInvalidWGSL(t *testing.T) {
	dev := newCountingDevice(t)
	_, err := Build(dev, Compute("x", Shader{WGSL: "fn (", EntryPoint: "main"}), nil)
	var rce *driver.ResourceCreationError
	require.ErrorAs(t, err, &rce)
	assert.Equal(t, "shader module", rce.Resource)
	assert.Zero(t, dev.modulesCreated)
}

func TestBuildPipelineFailureCleansUp(t *testing.T) {
	dev := newCountingDevice(t)
	dev.failPipeline = errors.New("out of memory")

	_, err := Build(dev, triangleDesc(), nil)
	var rce *driver.ResourceCreationError
	require.ErrorAs(t, err, &rce)
	assert.Equal(t, "render pipeline", rce.Resource)
	assert.Equal(t, 1, dev.layoutsCreated)
	assert.Equal(t, 1, dev.layoutsDestroyed)
	assert.Equal(t, dev.modulesCreated, dev.modulesDestroyed)
}

func TestCacheReusesModules(t *testing.T) {
	dev := newCountingDevice(t)
	modules := NewCache(dev, CacheOptions{})

	for range 3 {
		p, err := Build(dev, triangleDesc(), modules)
		require.NoError(t, err)
		p.Destroy()
	}
	assert.Equal(t, 1, dev.modulesCreated, "vertex and fragment share one source")
	assert.Zero(t, dev.modulesDestroyed)
	assert.Equal(t, 1, modules.Len())

	modules.Close()
	assert.Equal(t, 1, dev.modulesDestroyed)
	assert.Zero(t, modules.Len())
}

func TestCacheEvictionDestroysModules(t *testing.T) {
	dev := newCountingDevice(t)
	modules := NewCache(dev, CacheOptions{Size: 2})

	for _, n := range []int{1, 2, 4} {
		p, err := Build(dev, Compute("c", Shader{WGSL: computeWGSL(n), EntryPoint: "cs_main"}), modules)
		require.NoError(t, err)
		p.Destroy()
	}
	assert.Equal(t, 3, dev.modulesCreated)
	assert.Equal(t, 1, dev.modulesDestroyed)
	assert.Equal(t, 2, modules.Len())
	modules.Close()
	assert.Equal(t, 3, dev.modulesDestroyed)
}

func TestCacheSPIRV(t *testing.T) {
	dev := newCountingDevice(t)
	modules := NewCache(dev, CacheOptions{SPIRV: true})
	defer modules.Close()

	p, err := Build(dev, triangleDesc(), modules)
	require.NoError(t, err)
	defer p.Destroy()

	assert.Empty(t, dev.lastModule.Source.WGSL)
	require.NotEmpty(t, dev.lastModule.Source.SPIRV)
	assert.Equal(t, uint32(0x07230203), dev.lastModule.Source.SPIRV[0])
}

func TestKindAndStageString(t *testing.T) {
	assert.Equal(t, "raster", KindRaster.String())
	assert.Equal(t, "compute", KindCompute.String())
	assert.Equal(t, "Kind(9)", Kind(9).String())
	assert.Equal(t, "fragment", StageFragment.String())
}
