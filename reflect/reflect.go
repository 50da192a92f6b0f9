// Package reflect derives a shader-argument descriptor layout from
// shader source, and performs the Vulkan-specific
// CBV-register shift that lets a shader be authored once and consumed
// by either backend.
//
// Reflection runs on the WGSL source each gpuhal.ShaderCode carries
// (SPIRV-Reflect's role in the reference system is filled here by
// naga's own IR, already part of this module's compile pipeline — see
// package DESIGN.md), not a separate SPIR-V parse: naga.Parse and
// naga.LowerWithSource give the same (group, binding, type) triples a
// SPIR-V reflector would, without a second parser dependency.
package reflect

import (
	"fmt"
	"log"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"

	"github.com/gviegas/gpuhal"
)

// DescriptorKind classifies a reflected binding the way the binding
// convention in the shader binding ABI does.
type DescriptorKind int

// Descriptor kinds.
const (
	KindCBV DescriptorKind = iota
	KindSRV
	KindUAV
	KindSampler
)

// Binding is one reflected (group, binding) pair, merged across every
// stage of a pipeline that references it.
type Binding struct {
	Kind          DescriptorKind
	Group         int
	Index         int
	ArraySize     int
	StageVisible  gpuhal.ShaderStageFlags
	// VulkanSet is Group after the CBV set-shift has been applied; for
	// non-CBV bindings it equals Group.
	VulkanSet int
}

// PushConstants reports the single push-constant / root-constant block
// found across a pipeline's stages, if any.
type PushConstants struct {
	Present bool
	Bytes   int
}

// Layout is the merged, per-pipeline result of reflecting every stage:
// every unique (set, binding, array_size, kind) tuple with its
// visibility mask OR'd across stages, plus the push-constant block.
type Layout struct {
	Bindings      []Binding
	PushConstants PushConstants
}

// stageModule pairs a parsed IR module with the gpuhal stage it was
// compiled for.
type stageModule struct {
	stage  gpuhal.ShaderStage
	module *ir.Module
}

// ParseStage runs the WGSL front-end (naga.Parse + naga.LowerWithSource)
// on one shader stage's source, returning its IR module for Reflect.
func ParseStage(stage gpuhal.ShaderStage, wgslSource string) (*ir.Module, error) {
	ast, err := naga.Parse(wgslSource)
	if err != nil {
		return nil, fmt.Errorf("reflect: WGSL parse (%v): %w", stage, err)
	}
	module, err := naga.LowerWithSource(ast, wgslSource)
	if err != nil {
		return nil, fmt.Errorf("reflect: WGSL lower (%v): %w", stage, err)
	}
	return module, nil
}

// Reflect derives the merged shader-argument Layout for a pipeline
// from its per-stage IR modules. maxShaderArguments is the CBV
// set-shift (gpuhal.MaxShaderArguments in production use).
func Reflect(stages map[gpuhal.ShaderStage]*ir.Module, maxShaderArguments int) Layout {
	merged := map[[4]int]*Binding{} // key: {group, binding, arraySize, kind}
	var push PushConstants

	for stage, module := range stages {
		flag := stage.ToFlag()
		for _, gv := range module.GlobalVariables {
			if gv.Binding == nil {
				continue
			}
			kind, arraySize := classify(gv)
			group := gv.Binding.Group
			binding := gv.Binding.Binding
			key := [4]int{group, binding, arraySize, int(kind)}
			if b, ok := merged[key]; ok {
				b.StageVisible |= flag
				continue
			}
			merged[key] = &Binding{
				Kind:         kind,
				Group:        group,
				Index:        binding,
				ArraySize:    arraySize,
				StageVisible: flag,
			}
		}
		if module.PushConstantSize > 0 {
			push.Present = true
			if module.PushConstantSize > push.Bytes {
				push.Bytes = module.PushConstantSize
			}
		}
	}

	out := Layout{PushConstants: push}
	for _, b := range merged {
		if b.Kind == KindCBV {
			b.VulkanSet = b.Group + maxShaderArguments
		} else {
			b.VulkanSet = b.Group
		}
		out.Bindings = append(out.Bindings, *b)
	}
	return out
}

// classify maps a naga global variable's address space to the
// binding-ABI descriptor kind and its array size (1 for a scalar
// binding).
func classify(gv *ir.GlobalVariable) (DescriptorKind, int) {
	arraySize := 1
	if gv.Type != nil && gv.Type.ArraySize > 0 {
		arraySize = gv.Type.ArraySize
	}
	switch gv.Space {
	case ir.AddressSpaceUniform:
		return KindCBV, arraySize
	case ir.AddressSpaceStorage:
		return KindUAV, arraySize
	case ir.AddressSpaceHandle:
		if gv.Type != nil && gv.Type.IsSampler {
			return KindSampler, arraySize
		}
		return KindSRV, arraySize
	default:
		return KindSRV, arraySize
	}
}

// DeclaredShape is the client-authored shape of one shader-argument
// slot, compared against the reflected Layout by ConsistencyCheck.
type DeclaredShape struct {
	HasCBV     bool
	NumSRVs    int
	NumUAVs    int
	NumSamplers int
}

// ConsistencyCheck compares declared, the per-slot shapes the client
// authored, against layout's reflected counts grouped by unshifted
// Group (slot i is compared with Group i, CBVs included).
// A mismatch is logged and returned, never treated as fatal — per
// design decision this package does not synthesize placeholder
// descriptors to paper over a gap; a caller that wants reflection
// mismatches to be fatal should do so itself using the returned list.
func ConsistencyCheck(declared []DeclaredShape, layout Layout) []string {
	type counts struct {
		cbv, srv, uav, sampler int
	}
	bySet := map[int]*counts{}
	for _, b := range layout.Bindings {
		c := bySet[b.Group]
		if c == nil {
			c = &counts{}
			bySet[b.Group] = c
		}
		switch b.Kind {
		case KindCBV:
			c.cbv++
		case KindSRV:
			c.srv++
		case KindUAV:
			c.uav++
		case KindSampler:
			c.sampler++
		}
	}

	var mismatches []string
	for slot, d := range declared {
		c := bySet[slot]
		if c == nil {
			c = &counts{}
		}
		gotCBV := c.cbv > 0
		if gotCBV != d.HasCBV {
			mismatches = append(mismatches, fmt.Sprintf("slot %d: declared has_cbv=%v, reflected=%v", slot, d.HasCBV, gotCBV))
		}
		if c.srv != d.NumSRVs {
			mismatches = append(mismatches, fmt.Sprintf("slot %d: declared num_srvs=%d, reflected=%d", slot, d.NumSRVs, c.srv))
		}
		if c.uav != d.NumUAVs {
			mismatches = append(mismatches, fmt.Sprintf("slot %d: declared num_uavs=%d, reflected=%d", slot, d.NumUAVs, c.uav))
		}
		if c.sampler != d.NumSamplers {
			mismatches = append(mismatches, fmt.Sprintf("slot %d: declared num_samplers=%d, reflected=%d", slot, d.NumSamplers, c.sampler))
		}
	}
	for _, m := range mismatches {
		log.Printf("[!] gpuhal/reflect: %s", m)
	}
	return mismatches
}
