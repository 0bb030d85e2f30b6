// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package pipeline

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
)

// ErrEntryPoint is returned when a stage's entry point is missing from its
// shader or declared for another stage.
var ErrEntryPoint = errors.New("pipeline: entry point")

// Stage is a shader stage.
type Stage int

// Shader stages.
const (
	StageVertex Stage = iota
	StageFragment
	StageCompute
	StageOther
)

func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	case StageCompute:
		return "compute"
	}
	return "other"
}

// EntryPoint is an entry point declared by a WGSL module.
type EntryPoint struct {
	Name  string
	Stage Stage
}

// EntryPoints parses src and lists its entry points.
func EntryPoints(src string) ([]EntryPoint, error) {
	ast, err := naga.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("pipeline: parse wgsl: %w", err)
	}
	mod, err := naga.LowerWithSource(ast, src)
	if err != nil {
		return nil, fmt.Errorf("pipeline: lower wgsl: %w", err)
	}
	out := make([]EntryPoint, 0, len(mod.EntryPoints))
	for _, ep := range mod.EntryPoints {
		out = append(out, EntryPoint{Name: ep.Name, Stage: stageOf(ep.Stage)})
	}
	return out, nil
}

func stageOf(s ir.ShaderStage) Stage {
	switch s {
	case ir.StageVertex:
		return StageVertex
	case ir.StageFragment:
		return StageFragment
	case ir.StageCompute:
		return StageCompute
	}
	return StageOther
}

func findEntryPoint(eps []EntryPoint, name string, stage Stage) error {
	for _, ep := range eps {
		if ep.Name != name {
			continue
		}
		if ep.Stage != stage {
			return fmt.Errorf("%w: %q is a %s entry point, want %s", ErrEntryPoint, name, ep.Stage, stage)
		}
		return nil
	}
	return fmt.Errorf("%w: %q not found", ErrEntryPoint, name)
}

// Compile translates WGSL to SPIR-V words for backends that consume
// SPIR-V directly.
func Compile(src string) ([]uint32, error) {
	code, err := naga.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("pipeline: compile wgsl: %w", err)
	}
	if len(code)%4 != 0 {
		return nil, fmt.Errorf("pipeline: compile wgsl: SPIR-V length %d is not word aligned", len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	return words, nil
}
