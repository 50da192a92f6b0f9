//go:build windows

package d3d12

import (
	"fmt"
	"unsafe"

	"github.com/gogpu/wgpu/hal/dx12/d3d12"
	"github.com/gogpu/wgpu/hal/dx12/dxgi"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/hlsl"
	"github.com/gogpu/naga/ir"

	"github.com/gogpu/wgpu/hal/dx12/d3dcompile"

	"github.com/gviegas/gpuhal"
	"github.com/gviegas/gpuhal/reflect"
)

// groupRootMapping records where a reflected shader-argument group
// landed in the root signature. tableIndex is the root parameter index
// of the group's SRV/UAV descriptor table (bound from the group's
// ShaderArgument.ShaderView); cbvTableIndex is a second, one-range
// descriptor table carrying the group's constant buffer (bound from
// ShaderArgument.ConstantBuffer). Either is -1 when the group declares
// no binding of that kind.
//
// The CBV has to be its own table, written fresh at bind time into a
// dedicated scratch heap slot (see Backend.dynamicCBVBase), rather
// than a root descriptor or a range folded into the SRV/UAV table:
// the command list binding this backend is built against
// (github.com/gogpu/wgpu/hal/dx12/d3d12) exposes
// SetGraphicsRootDescriptorTable/SetComputeRootDescriptorTable but not
// SetGraphicsRootConstantBufferView/SetComputeRootConstantBufferView,
// and folding it into the SRV/UAV table would require the caller's
// CreateShaderView views to carry an extra slot the reflected layout
// never asked for.
type groupRootMapping struct {
	tableIndex    int
	cbvTableIndex int
}

// pipelineRes holds a pipeline state object together with the root
// signature and group-to-root-parameter mapping derived from its
// reflected shader argument layout; cmd.go consults groupMappings to
// know which root parameter a ShaderArgument's view binds to. Push
// constants have no equivalent here: see the comment on
// buildRootSignature.
type pipelineRes struct {
	pso           *d3d12.ID3D12PipelineState
	rootSig       *d3d12.ID3D12RootSignature
	groupMappings []groupRootMapping
	topology      d3d12.D3D_PRIMITIVE_TOPOLOGY
	isCompute     bool
}

// compileStage runs code's WGSL source through naga and the HLSL
// backend, then through the real D3DCompile entry point to produce
// DXBC bytecode. This mirrors the Vulkan backend's compileStage (see
// backend/vk/pipeline.go): the same WGSL source and the same IR module
// feed both backends, only the final codegen target differs (SPIR-V
// there, HLSL/DXBC here).
func (b *Backend) compileStage(stage gpuhal.ShaderStage, code gpuhal.ShaderCode) ([]byte, *ir.Module, error) {
	wgsl := string(code.Code)
	ast, err := naga.Parse(wgsl)
	if err != nil {
		return nil, nil, fmt.Errorf("d3d12: WGSL parse: %w", err)
	}
	module, err := naga.LowerWithSource(ast, wgsl)
	if err != nil {
		return nil, nil, fmt.Errorf("d3d12: WGSL lower: %w", err)
	}
	hlslSource, info, err := hlsl.Compile(module, hlsl.DefaultOptions())
	if err != nil {
		return nil, nil, fmt.Errorf("d3d12: HLSL codegen: %w", err)
	}
	compiler, err := d3dcompile.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("d3d12: d3dcompiler_47.dll: %w", err)
	}
	entry := code.Entry
	if info != nil && info.EntryPointNames != nil {
		if mapped, ok := info.EntryPointNames[code.Entry]; ok {
			entry = mapped
		}
	}
	bc, err := compiler.Compile(hlslSource, entry, targetProfileOf(stage))
	if err != nil {
		return nil, nil, fmt.Errorf("d3d12: D3DCompile %s: %w", entry, err)
	}
	return bc, module, nil
}

// targetProfileOf maps a shader stage onto its HLSL shader-model
// profile string. d3dcompile only exports named constants for the
// vertex/pixel/compute profiles it ships tests for; hull, domain and
// geometry use the equally-real "*_5_1" profile strings directly,
// since D3DCompile takes the target as a plain string rather than a
// typed constant.
func targetProfileOf(stage gpuhal.ShaderStage) string {
	switch stage {
	case gpuhal.StagePixel:
		return d3dcompile.TargetPS51
	case gpuhal.StageCompute:
		return d3dcompile.TargetCS51
	case gpuhal.StageHull:
		return "hs_5_1"
	case gpuhal.StageDomain:
		return "ds_5_1"
	case gpuhal.StageGeometry:
		return "gs_5_1"
	default:
		return d3dcompile.TargetVS51
	}
}

// buildRootSignature derives a root signature and per-group root
// parameter mapping from the merged shader-argument layout. Unlike the
// Vulkan backend's buildPipelineLayout, which keys sets by
// Binding.VulkanSet (Group shifted to make room for a second,
// push-descriptor range of CBV sets), this keys directly by
// Binding.Group, but it follows the same split: a group's SRV/UAV
// bindings land in one descriptor table, populated from the caller's
// own CreateShaderView heap range, while a group's CBV binding (there
// is at most one, ShaderArgument carries a single ConstantBuffer
// field) gets a second, one-range table of its own, populated at bind
// time from a scratch heap slot cmd.go writes fresh with
// CreateConstantBufferView every draw/dispatch (see
// Backend.dynamicCBVBase in driver.go). Folding the CBV into the first
// table would require CreateShaderView's caller to supply a CBV-shaped
// view the reflected layout never asks for, and writeView (see
// resource.go) never produces one anyway — ShaderView and
// ConstantBuffer are independent binding channels, mirroring how the
// Vulkan backend binds its ShaderView set with
// vkCmdBindDescriptorSets but pushes ConstantBuffer with
// vkCmdPushDescriptorSetKHR at a separate, shifted set index. The
// command list binding this backend is built against
// (github.com/gogpu/wgpu/hal/dx12/d3d12) exposes
// SetGraphicsRootDescriptorTable/SetComputeRootDescriptorTable but not
// SetGraphicsRootConstantBufferView/SetComputeRootConstantBufferView,
// so both tables are bound the same way, table-only. The same binding
// also omits SetGraphicsRoot32BitConstants/SetComputeRoot32BitConstants,
// so push constants reflected in layout.PushConstants are not realized
// in the root signature at all; ShaderArgument push-constant bytes are
// silently dropped on this backend, the same honest-unavailability
// treatment raytracing.go and query.go give capabilities this binding
// cannot reach.
func (b *Backend) buildRootSignature(layout reflect.Layout, visibility d3d12.D3D12_SHADER_VISIBILITY) (*d3d12.ID3D12RootSignature, []groupRootMapping, error) {
	bySet := map[int][]reflect.Binding{}
	maxGroup := -1
	for _, bnd := range layout.Bindings {
		bySet[bnd.Group] = append(bySet[bnd.Group], bnd)
		if bnd.Group > maxGroup {
			maxGroup = bnd.Group
		}
	}
	numGroups := maxGroup + 1
	if numGroups < 0 {
		numGroups = 0
	}

	mappings := make([]groupRootMapping, numGroups)
	var params []d3d12.D3D12_ROOT_PARAMETER
	var rangeSets [][]d3d12.D3D12_DESCRIPTOR_RANGE

	addTable := func(ranges []d3d12.D3D12_DESCRIPTOR_RANGE) int {
		rangeSets = append(rangeSets, ranges)
		idx := len(params)
		param := d3d12.D3D12_ROOT_PARAMETER{
			ParameterType:    d3d12.D3D12_ROOT_PARAMETER_TYPE_DESCRIPTOR_TABLE,
			ShaderVisibility: visibility,
		}
		table := (*d3d12.D3D12_ROOT_DESCRIPTOR_TABLE)(unsafe.Pointer(&param.Union[0]))
		last := rangeSets[len(rangeSets)-1]
		table.NumDescriptorRanges = uint32(len(last))
		table.DescriptorRanges = &last[0]
		params = append(params, param)
		return idx
	}

	for g := 0; g < numGroups; g++ {
		m := groupRootMapping{tableIndex: -1, cbvTableIndex: -1}
		var ranges []d3d12.D3D12_DESCRIPTOR_RANGE
		var cbvBnd *reflect.Binding
		for i, bnd := range bySet[g] {
			if bnd.Kind == reflect.KindCBV {
				// ShaderArgument carries a single ConstantBuffer per
				// group; keep the first reflected CBV binding only.
				if cbvBnd == nil {
					b := bySet[g][i]
					cbvBnd = &b
				}
				continue
			}
			rangeType, skip := rangeTypeOf(bnd.Kind)
			if skip {
				// No sampler heap is built on this backend (see
				// descheap.go); sampler bindings are reflected but
				// never realized in the root signature.
				continue
			}
			ranges = append(ranges, d3d12.D3D12_DESCRIPTOR_RANGE{
				RangeType:                         rangeType,
				NumDescriptors:                    uint32(bnd.ArraySize),
				BaseShaderRegister:                uint32(bnd.Index),
				RegisterSpace:                     uint32(g),
				OffsetInDescriptorsFromTableStart: 0xFFFFFFFF,
			})
		}
		if len(ranges) > 0 {
			m.tableIndex = addTable(ranges)
		}
		if cbvBnd != nil {
			cbvRanges := []d3d12.D3D12_DESCRIPTOR_RANGE{{
				RangeType:                         d3d12.D3D12_DESCRIPTOR_RANGE_TYPE_CBV,
				NumDescriptors:                    1,
				BaseShaderRegister:                uint32(cbvBnd.Index),
				RegisterSpace:                     uint32(g),
				OffsetInDescriptorsFromTableStart: 0xFFFFFFFF,
			}}
			m.cbvTableIndex = addTable(cbvRanges)
		}
		mappings[g] = m
	}

	desc := d3d12.D3D12_ROOT_SIGNATURE_DESC{
		Flags: d3d12.D3D12_ROOT_SIGNATURE_FLAG_ALLOW_INPUT_ASSEMBLER_INPUT_LAYOUT,
	}
	if len(params) > 0 {
		desc.NumParameters = uint32(len(params))
		desc.Parameters = &params[0]
	}

	blob, errBlob, err := b.d3d12Lib.SerializeRootSignature(&desc, d3d12.D3D_ROOT_SIGNATURE_VERSION_1_0)
	if err != nil {
		if errBlob != nil {
			errBlob.Release()
		}
		return nil, nil, fmt.Errorf("d3d12: SerializeRootSignature: %w", err)
	}
	defer blob.Release()

	rootSig, err := b.dev.CreateRootSignature(0, blob.GetBufferPointer(), blob.GetBufferSize())
	if err != nil {
		return nil, nil, fmt.Errorf("d3d12: CreateRootSignature: %w", err)
	}
	return rootSig, mappings, nil
}

// rangeTypeOf maps a reflected binding kind onto its descriptor range
// type. skip reports a sampler binding, which this backend never
// realizes (see buildRootSignature).
func rangeTypeOf(k reflect.DescriptorKind) (t d3d12.D3D12_DESCRIPTOR_RANGE_TYPE, skip bool) {
	switch k {
	case reflect.KindCBV:
		return d3d12.D3D12_DESCRIPTOR_RANGE_TYPE_CBV, false
	case reflect.KindUAV:
		return d3d12.D3D12_DESCRIPTOR_RANGE_TYPE_UAV, false
	case reflect.KindSampler:
		return 0, true
	default:
		return d3d12.D3D12_DESCRIPTOR_RANGE_TYPE_SRV, false
	}
}

// buildInputLayout builds a D3D12_INPUT_LAYOUT_DESC from the graphics
// state's vertex inputs. WGSL carries no named vertex semantics, so
// every attribute uses the semantic name "TEXCOORD" with its shader
// location as SemanticIndex, the convention the reference D3D12
// pipeline builder uses for the same reason (see
// hal/dx12/pipeline.go's buildInputLayout in the retrieved module).
func buildInputLayout(inputs []gpuhal.VertexIn) ([]d3d12.D3D12_INPUT_ELEMENT_DESC, []byte) {
	name := append([]byte("TEXCOORD"), 0)
	elems := make([]d3d12.D3D12_INPUT_ELEMENT_DESC, len(inputs))
	for i, in := range inputs {
		elems[i] = d3d12.D3D12_INPUT_ELEMENT_DESC{
			SemanticName:      &name[0],
			SemanticIndex:     uint32(i),
			Format:            convVertexFormat(in.Format),
			InputSlot:         uint32(in.Slot),
			AlignedByteOffset: 0,
			InputSlotClass:    d3d12.D3D12_INPUT_CLASSIFICATION_PER_VERTEX_DATA,
		}
	}
	return elems, name
}

func convVertexFormat(f gpuhal.VertexFmt) dxgi.DXGI_FORMAT {
	switch f {
	case gpuhal.Int8:
		return dxgi.DXGI_FORMAT_R8_SINT
	case gpuhal.Int8x2:
		return dxgi.DXGI_FORMAT_R8G8_SINT
	case gpuhal.Int8x4:
		return dxgi.DXGI_FORMAT_R8G8B8A8_SINT
	case gpuhal.UInt8:
		return dxgi.DXGI_FORMAT_R8_UINT
	case gpuhal.UInt8x2:
		return dxgi.DXGI_FORMAT_R8G8_UINT
	case gpuhal.UInt8x4:
		return dxgi.DXGI_FORMAT_R8G8B8A8_UINT
	case gpuhal.Int16:
		return dxgi.DXGI_FORMAT_R16_SINT
	case gpuhal.Int16x2:
		return dxgi.DXGI_FORMAT_R16G16_SINT
	case gpuhal.Int16x4:
		return dxgi.DXGI_FORMAT_R16G16B16A16_SINT
	case gpuhal.UInt16:
		return dxgi.DXGI_FORMAT_R16_UINT
	case gpuhal.UInt16x2:
		return dxgi.DXGI_FORMAT_R16G16_UINT
	case gpuhal.UInt16x4:
		return dxgi.DXGI_FORMAT_R16G16B16A16_UINT
	case gpuhal.Int32:
		return dxgi.DXGI_FORMAT_R32_SINT
	case gpuhal.Int32x2:
		return dxgi.DXGI_FORMAT_R32G32_SINT
	case gpuhal.Int32x3:
		return dxgi.DXGI_FORMAT_R32G32B32_SINT
	case gpuhal.Int32x4:
		return dxgi.DXGI_FORMAT_R32G32B32A32_SINT
	case gpuhal.UInt32:
		return dxgi.DXGI_FORMAT_R32_UINT
	case gpuhal.UInt32x2:
		return dxgi.DXGI_FORMAT_R32G32_UINT
	case gpuhal.UInt32x3:
		return dxgi.DXGI_FORMAT_R32G32B32_UINT
	case gpuhal.UInt32x4:
		return dxgi.DXGI_FORMAT_R32G32B32A32_UINT
	case gpuhal.Float32:
		return dxgi.DXGI_FORMAT_R32_FLOAT
	case gpuhal.Float32x2:
		return dxgi.DXGI_FORMAT_R32G32_FLOAT
	case gpuhal.Float32x3:
		return dxgi.DXGI_FORMAT_R32G32B32_FLOAT
	case gpuhal.Float32x4:
		return dxgi.DXGI_FORMAT_R32G32B32A32_FLOAT
	default:
		return dxgi.DXGI_FORMAT_UNKNOWN
	}
}

func convTopology(t gpuhal.Topology) d3d12.D3D_PRIMITIVE_TOPOLOGY {
	switch t {
	case gpuhal.TPoint:
		return d3d12.D3D_PRIMITIVE_TOPOLOGY_POINTLIST
	case gpuhal.TLine:
		return d3d12.D3D_PRIMITIVE_TOPOLOGY_LINELIST
	case gpuhal.TLineStrip:
		return d3d12.D3D_PRIMITIVE_TOPOLOGY_LINESTRIP
	case gpuhal.TTriangleStrip:
		return d3d12.D3D_PRIMITIVE_TOPOLOGY_TRIANGLESTRIP
	default:
		return d3d12.D3D_PRIMITIVE_TOPOLOGY_TRIANGLELIST
	}
}

func convTopologyType(t gpuhal.Topology) d3d12.D3D12_PRIMITIVE_TOPOLOGY_TYPE {
	switch t {
	case gpuhal.TPoint:
		return d3d12.D3D12_PRIMITIVE_TOPOLOGY_TYPE_POINT
	case gpuhal.TLine, gpuhal.TLineStrip:
		return d3d12.D3D12_PRIMITIVE_TOPOLOGY_TYPE_LINE
	default:
		return d3d12.D3D12_PRIMITIVE_TOPOLOGY_TYPE_TRIANGLE
	}
}

func convFillMode(f gpuhal.FillMode) d3d12.D3D12_FILL_MODE {
	if f == gpuhal.FillWireframe {
		return d3d12.D3D12_FILL_MODE_WIREFRAME
	}
	return d3d12.D3D12_FILL_MODE_SOLID
}

func convCullMode(c gpuhal.CullMode) d3d12.D3D12_CULL_MODE {
	switch c {
	case gpuhal.CullFront:
		return d3d12.D3D12_CULL_MODE_FRONT
	case gpuhal.CullBack:
		return d3d12.D3D12_CULL_MODE_BACK
	default:
		return d3d12.D3D12_CULL_MODE_NONE
	}
}

func convCmpFunc(c gpuhal.CmpFunc) d3d12.D3D12_COMPARISON_FUNC {
	switch c {
	case gpuhal.CmpNever:
		return d3d12.D3D12_COMPARISON_FUNC_NEVER
	case gpuhal.CmpLess:
		return d3d12.D3D12_COMPARISON_FUNC_LESS
	case gpuhal.CmpEqual:
		return d3d12.D3D12_COMPARISON_FUNC_EQUAL
	case gpuhal.CmpLessEqual:
		return d3d12.D3D12_COMPARISON_FUNC_LESS_EQUAL
	case gpuhal.CmpGreater:
		return d3d12.D3D12_COMPARISON_FUNC_GREATER
	case gpuhal.CmpNotEqual:
		return d3d12.D3D12_COMPARISON_FUNC_NOT_EQUAL
	case gpuhal.CmpGreaterEqual:
		return d3d12.D3D12_COMPARISON_FUNC_GREATER_EQUAL
	default:
		return d3d12.D3D12_COMPARISON_FUNC_ALWAYS
	}
}

func convStencilOp(s gpuhal.StencilOp) d3d12.D3D12_STENCIL_OP {
	switch s {
	case gpuhal.StencilZero:
		return d3d12.D3D12_STENCIL_OP_ZERO
	case gpuhal.StencilReplace:
		return d3d12.D3D12_STENCIL_OP_REPLACE
	case gpuhal.StencilIncClamp:
		return d3d12.D3D12_STENCIL_OP_INCR_SAT
	case gpuhal.StencilDecClamp:
		return d3d12.D3D12_STENCIL_OP_DECR_SAT
	case gpuhal.StencilInvert:
		return d3d12.D3D12_STENCIL_OP_INVERT
	case gpuhal.StencilIncWrap:
		return d3d12.D3D12_STENCIL_OP_INCR
	case gpuhal.StencilDecWrap:
		return d3d12.D3D12_STENCIL_OP_DECR
	default:
		return d3d12.D3D12_STENCIL_OP_KEEP
	}
}

func convBlendOp(o gpuhal.BlendOp) d3d12.D3D12_BLEND_OP {
	switch o {
	case gpuhal.BlendSubtract:
		return d3d12.D3D12_BLEND_OP_SUBTRACT
	case gpuhal.BlendRevSubtract:
		return d3d12.D3D12_BLEND_OP_REV_SUBTRACT
	case gpuhal.BlendMin:
		return d3d12.D3D12_BLEND_OP_MIN
	case gpuhal.BlendMax:
		return d3d12.D3D12_BLEND_OP_MAX
	default:
		return d3d12.D3D12_BLEND_OP_ADD
	}
}

func convBlendFac(f gpuhal.BlendFac) d3d12.D3D12_BLEND {
	switch f {
	case gpuhal.FacOne:
		return d3d12.D3D12_BLEND_ONE
	case gpuhal.FacSrcColor:
		return d3d12.D3D12_BLEND_SRC_COLOR
	case gpuhal.FacInvSrcColor:
		return d3d12.D3D12_BLEND_INV_SRC_COLOR
	case gpuhal.FacSrcAlpha:
		return d3d12.D3D12_BLEND_SRC_ALPHA
	case gpuhal.FacInvSrcAlpha:
		return d3d12.D3D12_BLEND_INV_SRC_ALPHA
	case gpuhal.FacDstColor:
		return d3d12.D3D12_BLEND_DEST_COLOR
	case gpuhal.FacInvDstColor:
		return d3d12.D3D12_BLEND_INV_DEST_COLOR
	case gpuhal.FacDstAlpha:
		return d3d12.D3D12_BLEND_DEST_ALPHA
	case gpuhal.FacInvDstAlpha:
		return d3d12.D3D12_BLEND_INV_DEST_ALPHA
	case gpuhal.FacSrcAlphaSaturated:
		return d3d12.D3D12_BLEND_SRC_ALPHA_SAT
	case gpuhal.FacBlendColor:
		return d3d12.D3D12_BLEND_BLEND_FACTOR
	case gpuhal.FacInvBlendColor:
		return d3d12.D3D12_BLEND_INV_BLEND_FACTOR
	default:
		return d3d12.D3D12_BLEND_ZERO
	}
}

func convColorWriteMask(m gpuhal.ColorMask) uint8 {
	var out uint8
	if m&gpuhal.MaskRed != 0 {
		out |= uint8(d3d12.D3D12_COLOR_WRITE_ENABLE_RED)
	}
	if m&gpuhal.MaskGreen != 0 {
		out |= uint8(d3d12.D3D12_COLOR_WRITE_ENABLE_GREEN)
	}
	if m&gpuhal.MaskBlue != 0 {
		out |= uint8(d3d12.D3D12_COLOR_WRITE_ENABLE_BLUE)
	}
	if m&gpuhal.MaskAlpha != 0 {
		out |= uint8(d3d12.D3D12_COLOR_WRITE_ENABLE_ALPHA)
	}
	return out
}

func depthWriteMaskOf(write bool) d3d12.D3D12_DEPTH_WRITE_MASK {
	if write {
		return d3d12.D3D12_DEPTH_WRITE_MASK_ALL
	}
	return d3d12.D3D12_DEPTH_WRITE_MASK_ZERO
}

func stencilOpDescOf(f gpuhal.StencilFace) d3d12.D3D12_DEPTH_STENCILOP_DESC {
	return d3d12.D3D12_DEPTH_STENCILOP_DESC{
		StencilFailOp:      convStencilOp(f.FailOp),
		StencilDepthFailOp: convStencilOp(f.DepthFailOp),
		StencilPassOp:      convStencilOp(f.PassOp),
		StencilFunc:        convCmpFunc(f.Cmp),
	}
}

func boolToBOOL(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// CreatePipelineState implements gpuhal.Backend.
func (b *Backend) CreatePipelineState(desc gpuhal.GraphicsStateDesc) (gpuhal.PipelineHandle, error) {
	type stageSrc struct {
		stage gpuhal.ShaderStage
		code  gpuhal.ShaderCode
	}
	srcs := []stageSrc{{gpuhal.StageVertex, desc.Vertex}}
	if desc.Hull.Code != nil {
		srcs = append(srcs, stageSrc{gpuhal.StageHull, desc.Hull})
	}
	if desc.Domain.Code != nil {
		srcs = append(srcs, stageSrc{gpuhal.StageDomain, desc.Domain})
	}
	if desc.Geometry.Code != nil {
		srcs = append(srcs, stageSrc{gpuhal.StageGeometry, desc.Geometry})
	}
	srcs = append(srcs, stageSrc{gpuhal.StagePixel, desc.Pixel})

	irByStage := map[gpuhal.ShaderStage]*ir.Module{}
	bytecode := map[gpuhal.ShaderStage][]byte{}
	for _, s := range srcs {
		bc, irMod, err := b.compileStage(s.stage, s.code)
		if err != nil {
			return gpuhal.NullPipeline, err
		}
		bytecode[s.stage] = bc
		irByStage[s.stage] = irMod
	}

	shaderLayout := reflect.Reflect(irByStage, gpuhal.MaxShaderArguments)
	rootSig, mappings, err := b.buildRootSignature(shaderLayout, d3d12.D3D12_SHADER_VISIBILITY_ALL)
	if err != nil {
		return gpuhal.NullPipeline, err
	}

	elems, _ := buildInputLayout(desc.VertexInputs)

	blendDesc := d3d12.D3D12_BLEND_DESC{IndependentBlendEnable: boolToBOOL(desc.Blend.IndependentBlend)}
	for i := 0; i < int(desc.NumRenderTargets) && i < 8; i++ {
		t := desc.Blend.Target[0]
		if desc.Blend.IndependentBlend {
			t = desc.Blend.Target[i]
		}
		blendDesc.RenderTarget[i] = d3d12.D3D12_RENDER_TARGET_BLEND_DESC{
			BlendEnable:           boolToBOOL(t.Blend),
			SrcBlend:              convBlendFac(t.SrcFac[0]),
			DestBlend:             convBlendFac(t.DstFac[0]),
			BlendOp:               convBlendOp(t.Op[0]),
			SrcBlendAlpha:         convBlendFac(t.SrcFac[1]),
			DestBlendAlpha:        convBlendFac(t.DstFac[1]),
			BlendOpAlpha:          convBlendOp(t.Op[1]),
			RenderTargetWriteMask: convColorWriteMask(t.WriteMask),
		}
	}

	rtvFormats := [8]dxgi.DXGI_FORMAT{}
	for i := 0; i < int(desc.NumRenderTargets) && i < 8; i++ {
		rtvFormats[i] = convFormat(desc.RTVFormats[i])
	}

	pso, err := b.dev.CreateGraphicsPipelineState(&d3d12.D3D12_GRAPHICS_PIPELINE_STATE_DESC{
		RootSignature: rootSig,
		VS:            shaderBytecodeOf(bytecode[gpuhal.StageVertex]),
		PS:            shaderBytecodeOf(bytecode[gpuhal.StagePixel]),
		HS:            shaderBytecodeOf(bytecode[gpuhal.StageHull]),
		DS:            shaderBytecodeOf(bytecode[gpuhal.StageDomain]),
		GS:            shaderBytecodeOf(bytecode[gpuhal.StageGeometry]),
		BlendState:    blendDesc,
		SampleMask:    0xFFFFFFFF,
		RasterizerState: d3d12.D3D12_RASTERIZER_DESC{
			FillMode:              convFillMode(desc.Raster.Fill),
			CullMode:              convCullMode(desc.Raster.Cull),
			FrontCounterClockwise: boolToBOOL(!desc.Raster.Clockwise),
			DepthBias:             int32(desc.Raster.BiasValue),
			DepthBiasClamp:        desc.Raster.BiasClamp,
			SlopeScaledDepthBias:  desc.Raster.BiasSlope,
			DepthClipEnable:       1,
		},
		DepthStencilState: d3d12.D3D12_DEPTH_STENCIL_DESC{
			DepthEnable:      boolToBOOL(desc.DS.DepthTest),
			DepthWriteMask:   depthWriteMaskOf(desc.DS.DepthWrite),
			DepthFunc:        convCmpFunc(desc.DS.DepthCmp),
			StencilEnable:    boolToBOOL(desc.DS.StencilTest),
			StencilReadMask:  uint8(desc.DS.Front.ReadMask),
			StencilWriteMask: uint8(desc.DS.Front.WriteMask),
			FrontFace:        stencilOpDescOf(desc.DS.Front),
			BackFace:         stencilOpDescOf(desc.DS.Back),
		},
		InputLayout: d3d12.D3D12_INPUT_LAYOUT_DESC{
			InputElementDescs: inputElemPtr(elems),
			NumElements:       uint32(len(elems)),
		},
		PrimitiveTopologyType: convTopologyType(desc.Topology),
		NumRenderTargets:      uint32(desc.NumRenderTargets),
		RTVFormats:            rtvFormats,
		DSVFormat:             convFormat(desc.DSVFormat),
		SampleDesc:            d3d12.DXGI_SAMPLE_DESC{Count: uint32(desc.Samples)},
	})
	if err != nil {
		rootSig.Release()
		return gpuhal.NullPipeline, fmt.Errorf("d3d12: CreateGraphicsPipelineState: %w", err)
	}

	h := b.pipes.insert(pipelineRes{
		pso:           pso,
		rootSig:       rootSig,
		groupMappings: mappings,
		topology:      convTopology(desc.Topology),
	})
	return gpuhal.PipelineFromRaw(h), nil
}

// CreateComputePipelineState implements gpuhal.Backend.
func (b *Backend) CreateComputePipelineState(desc gpuhal.ComputeStateDesc) (gpuhal.PipelineHandle, error) {
	bc, irMod, err := b.compileStage(gpuhal.StageCompute, desc.Compute)
	if err != nil {
		return gpuhal.NullPipeline, err
	}

	shaderLayout := reflect.Reflect(map[gpuhal.ShaderStage]*ir.Module{gpuhal.StageCompute: irMod}, gpuhal.MaxShaderArguments)
	rootSig, mappings, err := b.buildRootSignature(shaderLayout, d3d12.D3D12_SHADER_VISIBILITY_ALL)
	if err != nil {
		return gpuhal.NullPipeline, err
	}

	pso, err := b.dev.CreateComputePipelineState(&d3d12.D3D12_COMPUTE_PIPELINE_STATE_DESC{
		RootSignature: rootSig,
		CS:            shaderBytecodeOf(bc),
	})
	if err != nil {
		rootSig.Release()
		return gpuhal.NullPipeline, fmt.Errorf("d3d12: CreateComputePipelineState: %w", err)
	}

	h := b.pipes.insert(pipelineRes{
		pso:           pso,
		rootSig:       rootSig,
		groupMappings: mappings,
		isCompute:     true,
	})
	return gpuhal.PipelineFromRaw(h), nil
}

// FreePipelineState implements gpuhal.Backend.
func (b *Backend) FreePipelineState(h gpuhal.PipelineHandle) {
	r, ok := b.pipes.remove(h.Raw())
	if !ok {
		return
	}
	r.pso.Release()
	r.rootSig.Release()
}

func shaderBytecodeOf(bc []byte) d3d12.D3D12_SHADER_BYTECODE {
	if len(bc) == 0 {
		return d3d12.D3D12_SHADER_BYTECODE{}
	}
	return d3d12.D3D12_SHADER_BYTECODE{
		ShaderBytecode: unsafe.Pointer(&bc[0]),
		BytecodeLength: uintptr(len(bc)),
	}
}

func inputElemPtr(elems []d3d12.D3D12_INPUT_ELEMENT_DESC) *d3d12.D3D12_INPUT_ELEMENT_DESC {
	if len(elems) == 0 {
		return nil
	}
	return &elems[0]
}
