// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package pipeline

import (
	"fmt"

	"github.com/gogpu/framepump"
	"github.com/gogpu/framepump/driver"
	"github.com/gogpu/wgpu/hal"
)

// Pipeline is a built render or compute pipeline and its layout.
type Pipeline struct {
	Label string
	Kind  Kind

	dev     hal.Device
	layout  hal.PipelineLayout
	render  hal.RenderPipeline
	compute hal.ComputePipeline
}

// Render returns the render pipeline, nil for compute pipelines.
func (p *Pipeline) Render() hal.RenderPipeline { return p.render }

// Compute returns the compute pipeline, nil for raster pipelines.
func (p *Pipeline) Compute() hal.ComputePipeline { return p.compute }

// Layout returns the pipeline layout.
func (p *Pipeline) Layout() hal.PipelineLayout { return p.layout }

// Destroy releases the pipeline and its layout. Safe to call twice.
func (p *Pipeline) Destroy() {
	if p.dev == nil {
		return
	}
	if p.render != nil {
		p.dev.DestroyRenderPipeline(p.render)
	}
	if p.compute != nil {
		p.dev.DestroyComputePipeline(p.compute)
	}
	if p.layout != nil {
		p.dev.DestroyPipelineLayout(p.layout)
	}
	*p = Pipeline{Label: p.Label, Kind: p.Kind}
}

// Build validates desc and creates its pipeline on dev.
//
// Shader modules come from modules when it is non-nil and are otherwise
// created for this call and destroyed once the pipeline exists.
func Build(dev hal.Device, desc Desc, modules *Cache) (*Pipeline, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	var temp []hal.ShaderModule
	defer func() {
		for _, m := range temp {
			dev.DestroyShaderModule(m)
		}
	}()
	load := func(stage string, s Shader, want Stage) (hal.ShaderModule, error) {
		label := fmt.Sprintf("%s %s", desc.Label, stage)
		var m *module
		var err error
		if modules != nil {
			m, err = modules.get(label, s.WGSL)
		} else {
			m, err = createModule(dev, label, s.WGSL, false)
			if err == nil {
				temp = append(temp, m.mod)
			}
		}
		if err != nil {
			return nil, err
		}
		if err := findEntryPoint(m.entries, s.EntryPoint, want); err != nil {
			return nil, fmt.Errorf("pipeline: %q %s stage: %w", desc.Label, stage, err)
		}
		return m.mod, nil
	}

	p := &Pipeline{Label: desc.Label, Kind: desc.Kind, dev: dev}
	var err error
	switch desc.Kind {
	case KindRaster:
		err = p.buildRaster(desc, load)
	case KindCompute:
		err = p.buildCompute(desc, load)
	}
	if err != nil {
		p.Destroy()
		return nil, err
	}
	framepump.Logger().Debug("pipeline: built", "label", desc.Label, "kind", desc.Kind.String())
	return p, nil
}

type loadFunc func(stage string, s Shader, want Stage) (hal.ShaderModule, error)

func (p *Pipeline) createLayout(desc Desc) error {
	layout, err := p.dev.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            desc.Label + " layout",
		BindGroupLayouts: desc.BindGroupLayouts,
	})
	if err != nil {
		return driver.CreateError("pipeline layout", desc.Label, err)
	}
	p.layout = layout
	return nil
}

func (p *Pipeline) buildRaster(desc Desc, load loadFunc) error {
	vs, err := load("vertex", desc.Vertex, StageVertex)
	if err != nil {
		return err
	}
	var fragment *hal.FragmentState
	if !desc.Fragment.empty() {
		fs, err := load("fragment", desc.Fragment, StageFragment)
		if err != nil {
			return err
		}
		fragment = &hal.FragmentState{
			Module:     fs,
			EntryPoint: desc.Fragment.EntryPoint,
			Targets:    desc.Targets,
		}
	}
	if err := p.createLayout(desc); err != nil {
		return err
	}
	rp, err := p.dev.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: p.layout,
		Vertex: hal.VertexState{
			Module:     vs,
			EntryPoint: desc.Vertex.EntryPoint,
			Buffers:    desc.VertexBuffers,
		},
		Primitive:    desc.Primitive,
		DepthStencil: desc.DepthStencil,
		Multisample:  desc.multisample(),
		Fragment:     fragment,
	})
	if err != nil {
		return driver.CreateError("render pipeline", desc.Label, err)
	}
	p.render = rp
	return nil
}

func (p *Pipeline) buildCompute(desc Desc, load loadFunc) error {
	cs, err := load("compute", desc.Compute, StageCompute)
	if err != nil {
		return err
	}
	if err := p.createLayout(desc); err != nil {
		return err
	}
	cp, err := p.dev.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  desc.Label,
		Layout: p.layout,
		Compute: hal.ComputeState{
			Module:     cs,
			EntryPoint: desc.Compute.EntryPoint,
		},
	})
	if err != nil {
		return driver.CreateError("compute pipeline", desc.Label, err)
	}
	p.compute = cp
	return nil
}
