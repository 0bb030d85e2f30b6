// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package pipeline describes and builds render and compute pipelines.
//
// A [Desc] is a plain value that says which kind of pipeline is wanted and
// carries the WGSL source of every stage. [Build] is the only place that
// turns a Desc into GPU objects: it checks the desc, verifies the entry
// points against the parsed shader, then creates the module, layout and
// pipeline.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// ErrInvalidDesc is wrapped by every Desc validation error.
var ErrInvalidDesc = errors.New("pipeline: invalid descriptor")

// Kind selects the pipeline type.
type Kind int

// Pipeline kinds.
const (
	KindRaster Kind = iota
	KindCompute
)

func (k Kind) String() string {
	switch k {
	case KindRaster:
		return "raster"
	case KindCompute:
		return "compute"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Shader is one stage's WGSL source and entry point.
type Shader struct {
	WGSL       string
	EntryPoint string
}

func (s Shader) empty() bool { return s.WGSL == "" && s.EntryPoint == "" }

// Desc describes a pipeline. Only the fields of its Kind may be set.
type Desc struct {
	Label string
	Kind  Kind

	// Raster stages. Fragment may be empty for depth-only pipelines.
	Vertex   Shader
	Fragment Shader

	// Compute stage.
	Compute Shader

	VertexBuffers []gputypes.VertexBufferLayout
	Primitive     gputypes.PrimitiveState
	DepthStencil  *hal.DepthStencilState
	// Multisample with a zero Count means single sampling.
	Multisample gputypes.MultisampleState
	Targets     []gputypes.ColorTargetState

	BindGroupLayouts []hal.BindGroupLayout
}

// Raster returns a raster Desc drawing into one color target of format.
func Raster(label string, vs, fs Shader, format gputypes.TextureFormat) Desc {
	return Desc{
		Label:    label,
		Kind:     KindRaster,
		Vertex:   vs,
		Fragment: fs,
		Targets: []gputypes.ColorTargetState{{
			Format:    format,
			WriteMask: gputypes.ColorWriteMaskAll,
		}},
	}
}

// Compute returns a compute Desc.
func Compute(label string, cs Shader) Desc {
	return Desc{Label: label, Kind: KindCompute, Compute: cs}
}

// WithDepth returns d with a depth test against format: less-than compare,
// depth writes on, stencil untouched.
func (d Desc) WithDepth(format gputypes.TextureFormat) Desc {
	keep := hal.StencilFaceState{
		Compare:     gputypes.CompareFunctionAlways,
		FailOp:      hal.StencilOperationKeep,
		DepthFailOp: hal.StencilOperationKeep,
		PassOp:      hal.StencilOperationKeep,
	}
	d.DepthStencil = &hal.DepthStencilState{
		Format:            format,
		DepthWriteEnabled: true,
		DepthCompare:      gputypes.CompareFunctionLess,
		StencilFront:      keep,
		StencilBack:       keep,
	}
	return d
}

// Validate checks that the stages match the Kind. It does not parse WGSL.
func (d Desc) Validate() error {
	switch d.Kind {
	case KindRaster:
		if !d.Compute.empty() {
			return fmt.Errorf("%w: %q: raster pipeline with a compute stage", ErrInvalidDesc, d.Label)
		}
		if err := checkStage(d.Label, "vertex", d.Vertex); err != nil {
			return err
		}
		if d.Fragment.empty() {
			if len(d.Targets) > 0 {
				return fmt.Errorf("%w: %q: color targets without a fragment stage", ErrInvalidDesc, d.Label)
			}
			if d.DepthStencil == nil {
				return fmt.Errorf("%w: %q: no fragment stage and no depth target", ErrInvalidDesc, d.Label)
			}
			return nil
		}
		if err := checkStage(d.Label, "fragment", d.Fragment); err != nil {
			return err
		}
		if len(d.Targets) == 0 {
			return fmt.Errorf("%w: %q: fragment stage without color targets", ErrInvalidDesc, d.Label)
		}
		for i, t := range d.Targets {
			if t.Format == gputypes.TextureFormatUndefined || t.Format.IsDepthStencil() {
				return fmt.Errorf("%w: %q: target %d has format %s", ErrInvalidDesc, d.Label, i, t.Format)
			}
		}
	case KindCompute:
		if !d.Vertex.empty() || !d.Fragment.empty() {
			return fmt.Errorf("%w: %q: compute pipeline with raster stages", ErrInvalidDesc, d.Label)
		}
		if len(d.Targets) > 0 || d.DepthStencil != nil || len(d.VertexBuffers) > 0 {
			return fmt.Errorf("%w: %q: compute pipeline with raster state", ErrInvalidDesc, d.Label)
		}
		return checkStage(d.Label, "compute", d.Compute)
	default:
		return fmt.Errorf("%w: %q: unknown kind %v", ErrInvalidDesc, d.Label, d.Kind)
	}
	return nil
}

func checkStage(label, stage string, s Shader) error {
	if s.WGSL == "" {
		return fmt.Errorf("%w: %q: %s stage has no source", ErrInvalidDesc, label, stage)
	}
	if s.EntryPoint == "" {
		return fmt.Errorf("%w: %q: %s stage has no entry point", ErrInvalidDesc, label, stage)
	}
	return nil
}

func (d Desc) multisample() gputypes.MultisampleState {
	if d.Multisample.Count == 0 {
		return gputypes.DefaultMultisampleState()
	}
	return d.Multisample
}
