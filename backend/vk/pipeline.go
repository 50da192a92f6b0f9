package vk

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"

	"github.com/gviegas/gpuhal"
	"github.com/gviegas/gpuhal/reflect"
)

// pipelineRes holds a pipeline object together with the pipeline
// layout and descriptor set layouts derived from its reflected shader
// argument layout; cmd.go consults shaderLayout to know which
// descriptor sets a draw/dispatch must bind.
type pipelineRes struct {
	pipeline     vk.Pipeline
	layout       vk.PipelineLayout
	setLayouts   []vk.DescriptorSetLayout
	bindPoint    vk.PipelineBindPoint
	shaderLayout reflect.Layout
	stages       vk.ShaderStageFlags
}

// compileStage runs code's WGSL source through naga, producing both
// the SPIR-V module consumed by vkCreateShaderModule and the IR module
// consumed by package reflect. A single authoring point (WGSL) feeding
// both this backend and the D3D12 one is the reason reflection runs on
// IR rather than a second, SPIR-V-specific reflector.
func (b *Backend) compileStage(code gpuhal.ShaderCode) (vk.ShaderModule, *ir.Module, error) {
	wgsl := string(code.Code)
	ast, err := naga.Parse(wgsl)
	if err != nil {
		return vk.ShaderModule(vk.NullHandle), nil, fmt.Errorf("vk: WGSL parse: %w", err)
	}
	module, err := naga.LowerWithSource(ast, wgsl)
	if err != nil {
		return vk.ShaderModule(vk.NullHandle), nil, fmt.Errorf("vk: WGSL lower: %w", err)
	}
	spv, _, err := spirv.Compile(module, spirv.DefaultOptions())
	if err != nil {
		return vk.ShaderModule(vk.NullHandle), nil, fmt.Errorf("vk: SPIR-V codegen: %w", err)
	}
	info := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(spv)),
		PCode:    spvWords(spv),
	}
	var mod vk.ShaderModule
	if res := vk.CreateShaderModule(b.dev, &info, nil, &mod); res != vk.Success {
		return vk.ShaderModule(vk.NullHandle), nil, vkError(res)
	}
	return mod, module, nil
}

func spvWords(b []byte) []uint32 {
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = uint32(b[i*4]) | uint32(b[i*4+1])<<8 | uint32(b[i*4+2])<<16 | uint32(b[i*4+3])<<24
	}
	return words
}

// buildPipelineLayout derives set layouts and a pipeline layout from
// the merged shader-argument layout, one VkDescriptorSetLayout per
// distinct Vulkan set (shader-view sets at [0, MaxShaderArguments),
// constant-buffer sets shifted to [MaxShaderArguments, 2*MaxShaderArguments)).
func (b *Backend) buildPipelineLayout(layout reflect.Layout, stages vk.ShaderStageFlags) ([]vk.DescriptorSetLayout, vk.PipelineLayout, error) {
	bySet := map[int][]reflect.Binding{}
	maxSet := -1
	for _, bnd := range layout.Bindings {
		bySet[bnd.VulkanSet] = append(bySet[bnd.VulkanSet], bnd)
		if bnd.VulkanSet > maxSet {
			maxSet = bnd.VulkanSet
		}
	}
	numSets := maxSet + 1
	if numSets < 0 {
		numSets = 0
	}
	setLayouts := make([]vk.DescriptorSetLayout, numSets)
	for set := 0; set < numSets; set++ {
		bindings := make([]vk.DescriptorSetLayoutBinding, 0, len(bySet[set]))
		for _, bnd := range bySet[set] {
			bindings = append(bindings, vk.DescriptorSetLayoutBinding{
				Binding:         uint32(bnd.Index),
				DescriptorType:  descriptorTypeOfKind(bnd.Kind),
				DescriptorCount: uint32(bnd.ArraySize),
				StageFlags:      vk.ShaderStageFlags(stageFlagsOf(bnd.StageVisible)),
			})
		}
		info := vk.DescriptorSetLayoutCreateInfo{
			SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
			BindingCount: uint32(len(bindings)),
			PBindings:    bindings,
		}
		if set >= gpuhal.MaxShaderArguments {
			// Constant-buffer sets are bound per draw/dispatch via
			// vkCmdPushDescriptorSetKHR rather than through a persistent
			// VkDescriptorSet, since a ShaderArgument's constant buffer
			// is a raw resource+offset pair with no corresponding
			// CreateShaderView call.
			info.Flags = vk.DescriptorSetLayoutCreateFlags(vk.DescriptorSetLayoutCreatePushDescriptorBitKhr)
		}
		var l vk.DescriptorSetLayout
		if res := vk.CreateDescriptorSetLayout(b.dev, &info, nil, &l); res != vk.Success {
			for _, done := range setLayouts[:set] {
				vk.DestroyDescriptorSetLayout(b.dev, done, nil)
			}
			return nil, vk.PipelineLayout(vk.NullHandle), vkError(res)
		}
		setLayouts[set] = l
	}

	var pushRanges []vk.PushConstantRange
	if layout.PushConstants.Present {
		pushRanges = []vk.PushConstantRange{{
			StageFlags: stages,
			Offset:     0,
			Size:       uint32(layout.PushConstants.Bytes),
		}}
	}
	info := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(setLayouts)),
		PSetLayouts:            setLayouts,
		PushConstantRangeCount: uint32(len(pushRanges)),
		PPushConstantRanges:    pushRanges,
	}
	var pl vk.PipelineLayout
	if res := vk.CreatePipelineLayout(b.dev, &info, nil, &pl); res != vk.Success {
		for _, l := range setLayouts {
			vk.DestroyDescriptorSetLayout(b.dev, l, nil)
		}
		return nil, vk.PipelineLayout(vk.NullHandle), vkError(res)
	}
	return setLayouts, pl, nil
}

func descriptorTypeOfKind(k reflect.DescriptorKind) vk.DescriptorType {
	switch k {
	case reflect.KindCBV:
		return vk.DescriptorTypeUniformBuffer
	case reflect.KindUAV:
		return vk.DescriptorTypeStorageImage
	case reflect.KindSampler:
		return vk.DescriptorTypeSampler
	default:
		return vk.DescriptorTypeSampledImage
	}
}

func stageFlagsOf(f gpuhal.ShaderStageFlags) vk.ShaderStageFlagBits {
	var out vk.ShaderStageFlagBits
	if f&gpuhal.FlagVertex != 0 {
		out |= vk.ShaderStageVertexBit
	}
	if f&gpuhal.FlagHull != 0 {
		out |= vk.ShaderStageTessellationControlBit
	}
	if f&gpuhal.FlagDomain != 0 {
		out |= vk.ShaderStageTessellationEvaluationBit
	}
	if f&gpuhal.FlagGeometry != 0 {
		out |= vk.ShaderStageGeometryBit
	}
	if f&gpuhal.FlagPixel != 0 {
		out |= vk.ShaderStageFragmentBit
	}
	if f&gpuhal.FlagCompute != 0 {
		out |= vk.ShaderStageComputeBit
	}
	if f&gpuhal.MaskAllRay != 0 {
		out |= vk.ShaderStageRaygenBitKhr | vk.ShaderStageMissBitKhr | vk.ShaderStageClosestHitBitKhr |
			vk.ShaderStageAnyHitBitKhr | vk.ShaderStageIntersectionBitKhr | vk.ShaderStageCallableBitKhr
	}
	return out
}

func convVertexFormat(f gpuhal.VertexFmt) vk.Format {
	switch f {
	case gpuhal.Int8:
		return vk.FormatR8Sint
	case gpuhal.Int8x2:
		return vk.FormatR8g8Sint
	case gpuhal.Int8x4:
		return vk.FormatR8g8b8a8Sint
	case gpuhal.UInt8:
		return vk.FormatR8Uint
	case gpuhal.UInt8x2:
		return vk.FormatR8g8Uint
	case gpuhal.UInt8x4:
		return vk.FormatR8g8b8a8Uint
	case gpuhal.Int16:
		return vk.FormatR16Sint
	case gpuhal.Int16x2:
		return vk.FormatR16g16Sint
	case gpuhal.Int16x4:
		return vk.FormatR16g16b16a16Sint
	case gpuhal.UInt16:
		return vk.FormatR16Uint
	case gpuhal.UInt16x2:
		return vk.FormatR16g16Uint
	case gpuhal.UInt16x4:
		return vk.FormatR16g16b16a16Uint
	case gpuhal.Int32:
		return vk.FormatR32Sint
	case gpuhal.Int32x2:
		return vk.FormatR32g32Sint
	case gpuhal.Int32x3:
		return vk.FormatR32g32b32Sint
	case gpuhal.Int32x4:
		return vk.FormatR32g32b32a32Sint
	case gpuhal.UInt32:
		return vk.FormatR32Uint
	case gpuhal.UInt32x2:
		return vk.FormatR32g32Uint
	case gpuhal.UInt32x3:
		return vk.FormatR32g32b32Uint
	case gpuhal.UInt32x4:
		return vk.FormatR32g32b32a32Uint
	case gpuhal.Float32:
		return vk.FormatR32Sfloat
	case gpuhal.Float32x2:
		return vk.FormatR32g32Sfloat
	case gpuhal.Float32x3:
		return vk.FormatR32g32b32Sfloat
	case gpuhal.Float32x4:
		return vk.FormatR32g32b32a32Sfloat
	default:
		return vk.FormatUndefined
	}
}

func convTopology(t gpuhal.Topology) vk.PrimitiveTopology {
	switch t {
	case gpuhal.TPoint:
		return vk.PrimitiveTopologyPointList
	case gpuhal.TLine:
		return vk.PrimitiveTopologyLineList
	case gpuhal.TLineStrip:
		return vk.PrimitiveTopologyLineStrip
	case gpuhal.TTriangleStrip:
		return vk.PrimitiveTopologyTriangleStrip
	default:
		return vk.PrimitiveTopologyTriangleList
	}
}

func convCullMode(c gpuhal.CullMode) vk.CullModeFlagBits {
	switch c {
	case gpuhal.CullFront:
		return vk.CullModeFrontBit
	case gpuhal.CullBack:
		return vk.CullModeBackBit
	default:
		return vk.CullModeNone
	}
}

func convCmpFunc(c gpuhal.CmpFunc) vk.CompareOp {
	switch c {
	case gpuhal.CmpNever:
		return vk.CompareOpNever
	case gpuhal.CmpLess:
		return vk.CompareOpLess
	case gpuhal.CmpEqual:
		return vk.CompareOpEqual
	case gpuhal.CmpLessEqual:
		return vk.CompareOpLessOrEqual
	case gpuhal.CmpGreater:
		return vk.CompareOpGreater
	case gpuhal.CmpNotEqual:
		return vk.CompareOpNotEqual
	case gpuhal.CmpGreaterEqual:
		return vk.CompareOpGreaterOrEqual
	default:
		return vk.CompareOpAlways
	}
}

func convStencilOp(s gpuhal.StencilOp) vk.StencilOp {
	switch s {
	case gpuhal.StencilZero:
		return vk.StencilOpZero
	case gpuhal.StencilReplace:
		return vk.StencilOpReplace
	case gpuhal.StencilIncClamp:
		return vk.StencilOpIncrementAndClamp
	case gpuhal.StencilDecClamp:
		return vk.StencilOpDecrementAndClamp
	case gpuhal.StencilInvert:
		return vk.StencilOpInvert
	case gpuhal.StencilIncWrap:
		return vk.StencilOpIncrementAndWrap
	case gpuhal.StencilDecWrap:
		return vk.StencilOpDecrementAndWrap
	default:
		return vk.StencilOpKeep
	}
}

func convBlendOp(o gpuhal.BlendOp) vk.BlendOp {
	switch o {
	case gpuhal.BlendSubtract:
		return vk.BlendOpSubtract
	case gpuhal.BlendRevSubtract:
		return vk.BlendOpReverseSubtract
	case gpuhal.BlendMin:
		return vk.BlendOpMin
	case gpuhal.BlendMax:
		return vk.BlendOpMax
	default:
		return vk.BlendOpAdd
	}
}

func convBlendFac(f gpuhal.BlendFac) vk.BlendFactor {
	switch f {
	case gpuhal.FacOne:
		return vk.BlendFactorOne
	case gpuhal.FacSrcColor:
		return vk.BlendFactorSrcColor
	case gpuhal.FacInvSrcColor:
		return vk.BlendFactorOneMinusSrcColor
	case gpuhal.FacSrcAlpha:
		return vk.BlendFactorSrcAlpha
	case gpuhal.FacInvSrcAlpha:
		return vk.BlendFactorOneMinusSrcAlpha
	case gpuhal.FacDstColor:
		return vk.BlendFactorDstColor
	case gpuhal.FacInvDstColor:
		return vk.BlendFactorOneMinusDstColor
	case gpuhal.FacDstAlpha:
		return vk.BlendFactorDstAlpha
	case gpuhal.FacInvDstAlpha:
		return vk.BlendFactorOneMinusDstAlpha
	case gpuhal.FacSrcAlphaSaturated:
		return vk.BlendFactorSrcAlphaSaturate
	case gpuhal.FacBlendColor:
		return vk.BlendFactorConstantColor
	case gpuhal.FacInvBlendColor:
		return vk.BlendFactorOneMinusConstantColor
	default:
		return vk.BlendFactorZero
	}
}

func convColorWriteMask(m gpuhal.ColorMask) vk.ColorComponentFlags {
	var out vk.ColorComponentFlagBits
	if m&gpuhal.MaskRed != 0 {
		out |= vk.ColorComponentRBit
	}
	if m&gpuhal.MaskGreen != 0 {
		out |= vk.ColorComponentGBit
	}
	if m&gpuhal.MaskBlue != 0 {
		out |= vk.ColorComponentBBit
	}
	if m&gpuhal.MaskAlpha != 0 {
		out |= vk.ColorComponentABit
	}
	return vk.ColorComponentFlags(out)
}

// CreatePipelineState implements gpuhal.Backend.
func (b *Backend) CreatePipelineState(desc gpuhal.GraphicsStateDesc) (gpuhal.PipelineHandle, error) {
	type stageSrc struct {
		stage gpuhal.ShaderStage
		code  gpuhal.ShaderCode
		bit   vk.ShaderStageFlagBits
	}
	srcs := []stageSrc{{gpuhal.StageVertex, desc.Vertex, vk.ShaderStageVertexBit}}
	if desc.Hull.Code != nil {
		srcs = append(srcs, stageSrc{gpuhal.StageHull, desc.Hull, vk.ShaderStageTessellationControlBit})
	}
	if desc.Domain.Code != nil {
		srcs = append(srcs, stageSrc{gpuhal.StageDomain, desc.Domain, vk.ShaderStageTessellationEvaluationBit})
	}
	if desc.Geometry.Code != nil {
		srcs = append(srcs, stageSrc{gpuhal.StageGeometry, desc.Geometry, vk.ShaderStageGeometryBit})
	}
	srcs = append(srcs, stageSrc{gpuhal.StagePixel, desc.Pixel, vk.ShaderStageFragmentBit})

	irByStage := map[gpuhal.ShaderStage]*ir.Module{}
	var stageInfos []vk.PipelineShaderStageCreateInfo
	var modules []vk.ShaderModule
	cleanup := func() {
		for _, m := range modules {
			vk.DestroyShaderModule(b.dev, m, nil)
		}
	}
	for _, s := range srcs {
		mod, irMod, err := b.compileStage(s.code)
		if err != nil {
			cleanup()
			return gpuhal.NullPipeline, err
		}
		modules = append(modules, mod)
		irByStage[s.stage] = irMod
		stageInfos = append(stageInfos, vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  s.bit,
			Module: mod,
			PName:  s.code.Entry,
		})
	}
	defer cleanup()

	shaderLayout := reflect.Reflect(irByStage, gpuhal.MaxShaderArguments)

	var allStages vk.ShaderStageFlagBits
	for _, s := range srcs {
		allStages |= s.bit
	}
	setLayouts, plLayout, err := b.buildPipelineLayout(shaderLayout, vk.ShaderStageFlags(allStages))
	if err != nil {
		return gpuhal.NullPipeline, err
	}

	bindings := make([]vk.VertexInputBindingDescription, len(desc.VertexInputs))
	attrs := make([]vk.VertexInputAttributeDescription, len(desc.VertexInputs))
	for i, in := range desc.VertexInputs {
		bindings[i] = vk.VertexInputBindingDescription{
			Binding:   uint32(in.Slot),
			Stride:    uint32(in.Stride),
			InputRate: vk.VertexInputRateVertex,
		}
		attrs[i] = vk.VertexInputAttributeDescription{
			Location: uint32(i),
			Binding:  uint32(in.Slot),
			Format:   convVertexFormat(in.Format),
		}
	}
	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(bindings)),
		PVertexBindingDescriptions:      bindings,
		VertexAttributeDescriptionCount: uint32(len(attrs)),
		PVertexAttributeDescriptions:    attrs,
	}
	inputAsm := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: convTopology(desc.Topology),
	}
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	raster := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode:             polygonModeOf(desc.Raster.Fill),
		CullMode:                vk.CullModeFlags(convCullMode(desc.Raster.Cull)),
		FrontFace:               frontFaceOf(desc.Raster.Clockwise),
		DepthBiasEnable:         vk.Bool32(boolToU32(desc.Raster.DepthBias)),
		DepthBiasConstantFactor: desc.Raster.BiasValue,
		DepthBiasSlopeFactor:    desc.Raster.BiasSlope,
		DepthBiasClamp:          desc.Raster.BiasClamp,
		LineWidth:               1,
	}
	multisample := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: sampleCountOf(desc.Samples),
	}
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:  vk.Bool32(boolToU32(desc.DS.DepthTest)),
		DepthWriteEnable: vk.Bool32(boolToU32(desc.DS.DepthWrite)),
		DepthCompareOp:   convCmpFunc(desc.DS.DepthCmp),
		StencilTestEnable: vk.Bool32(boolToU32(desc.DS.StencilTest)),
		Front:            stencilOpStateOf(desc.DS.Front),
		Back:             stencilOpStateOf(desc.DS.Back),
	}

	attachments := make([]vk.PipelineColorBlendAttachmentState, desc.NumRenderTargets)
	for i := range attachments {
		t := desc.Blend.Target[0]
		if desc.Blend.IndependentBlend {
			t = desc.Blend.Target[i]
		}
		attachments[i] = vk.PipelineColorBlendAttachmentState{
			BlendEnable:         vk.Bool32(boolToU32(t.Blend)),
			SrcColorBlendFactor: convBlendFac(t.SrcFac[0]),
			DstColorBlendFactor: convBlendFac(t.DstFac[0]),
			ColorBlendOp:        convBlendOp(t.Op[0]),
			SrcAlphaBlendFactor: convBlendFac(t.SrcFac[1]),
			DstAlphaBlendFactor: convBlendFac(t.DstFac[1]),
			AlphaBlendOp:        convBlendOp(t.Op[1]),
			ColorWriteMask:      convColorWriteMask(t.WriteMask),
		}
	}
	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
	}
	dynStates := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	dyn := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynStates)),
		PDynamicStates:    dynStates,
	}

	colorFormats := make([]vk.Format, desc.NumRenderTargets)
	for i := 0; i < desc.NumRenderTargets; i++ {
		colorFormats[i] = convFormat(desc.RTVFormats[i])
	}
	renderingInfo := vk.PipelineRenderingCreateInfo{
		SType:                   vk.StructureTypePipelineRenderingCreateInfo,
		ColorAttachmentCount:    uint32(len(colorFormats)),
		PColorAttachmentFormats: colorFormats,
	}
	if desc.DSVFormat.IsDepthStencil() {
		f := convFormat(desc.DSVFormat)
		renderingInfo.DepthAttachmentFormat = f
		if desc.DSVFormat == gpuhal.D24unS8ui || desc.DSVFormat == gpuhal.D32fS8ui || desc.DSVFormat == gpuhal.S8ui {
			renderingInfo.StencilAttachmentFormat = f
		}
	}

	info := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		PNext:               unsafePtr(&renderingInfo),
		StageCount:          uint32(len(stageInfos)),
		PStages:             stageInfos,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAsm,
		PViewportState:      &viewportState,
		PRasterizationState: &raster,
		PMultisampleState:   &multisample,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dyn,
		Layout:              plLayout,
	}
	pipelines := make([]vk.Pipeline, 1)
	if res := vk.CreateGraphicsPipelines(b.dev, vk.PipelineCache(vk.NullHandle), 1, []vk.GraphicsPipelineCreateInfo{info}, nil, pipelines); res != vk.Success {
		for _, l := range setLayouts {
			vk.DestroyDescriptorSetLayout(b.dev, l, nil)
		}
		vk.DestroyPipelineLayout(b.dev, plLayout, nil)
		return gpuhal.NullPipeline, vkError(res)
	}

	h := b.pipes.insert(pipelineRes{
		pipeline:     pipelines[0],
		layout:       plLayout,
		setLayouts:   setLayouts,
		bindPoint:    vk.PipelineBindPointGraphics,
		shaderLayout: shaderLayout,
		stages:       vk.ShaderStageFlags(allStages),
	})
	return gpuhal.PipelineFromRaw(h), nil
}

// CreateComputePipelineState implements gpuhal.Backend.
func (b *Backend) CreateComputePipelineState(desc gpuhal.ComputeStateDesc) (gpuhal.PipelineHandle, error) {
	mod, irMod, err := b.compileStage(desc.Compute)
	if err != nil {
		return gpuhal.NullPipeline, err
	}
	defer vk.DestroyShaderModule(b.dev, mod, nil)

	shaderLayout := reflect.Reflect(map[gpuhal.ShaderStage]*ir.Module{gpuhal.StageCompute: irMod}, gpuhal.MaxShaderArguments)
	setLayouts, plLayout, err := b.buildPipelineLayout(shaderLayout, vk.ShaderStageFlags(vk.ShaderStageComputeBit))
	if err != nil {
		return gpuhal.NullPipeline, err
	}

	info := vk.ComputePipelineCreateInfo{
		SType: vk.StructureTypeComputePipelineCreateInfo,
		Stage: vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageComputeBit,
			Module: mod,
			PName:  desc.Compute.Entry,
		},
		Layout: plLayout,
	}
	pipelines := make([]vk.Pipeline, 1)
	if res := vk.CreateComputePipelines(b.dev, vk.PipelineCache(vk.NullHandle), 1, []vk.ComputePipelineCreateInfo{info}, nil, pipelines); res != vk.Success {
		for _, l := range setLayouts {
			vk.DestroyDescriptorSetLayout(b.dev, l, nil)
		}
		vk.DestroyPipelineLayout(b.dev, plLayout, nil)
		return gpuhal.NullPipeline, vkError(res)
	}

	h := b.pipes.insert(pipelineRes{
		pipeline:     pipelines[0],
		layout:       plLayout,
		setLayouts:   setLayouts,
		bindPoint:    vk.PipelineBindPointCompute,
		shaderLayout: shaderLayout,
		stages:       vk.ShaderStageFlags(vk.ShaderStageComputeBit),
	})
	return gpuhal.PipelineFromRaw(h), nil
}

// CreateRaytracingPipelineState implements gpuhal.Backend.
//
// desc.Library is a single WGSL module compiled once; every export
// named anywhere in desc (Library.Entry, a hit group's ClosestHit/
// AnyHit/Intersection, or an ArgumentAssocs export) resolves to one of
// the module's functions via PName. WGSL carries no raygen/miss/
// closest-hit/any-hit/intersection/callable stage attribute, so stage
// role is inferred from where a name is used: Library.Entry is always
// the ray generation shader; a name appearing in a HitGroups entry is
// that hit group's corresponding stage; any other named export is
// treated as a general (miss-class) shader — this backend does not
// distinguish miss from callable, since RaytracingStateDesc gives no
// signal to do so.
//
// Shader groups are emitted in a fixed order — ray generation, then
// general (miss) exports in ArgumentAssocs order, then one group per
// HitGroups entry — and CalculateShaderTableSize/WriteShaderTable
// assume records are supplied to match: callers must order
// ShaderTableRecords ray-gen first, then miss records in the same
// order these general exports were declared, then hit groups in
// desc.HitGroups order.
func (b *Backend) CreateRaytracingPipelineState(desc gpuhal.RaytracingStateDesc) (gpuhal.PipelineHandle, error) {
	if !b.raytracingEnabled {
		return gpuhal.NullPipeline, gpuhal.ErrRaytracingUnavailable
	}

	mod, irMod, err := b.compileStage(desc.Library)
	if err != nil {
		return gpuhal.NullPipeline, err
	}
	defer vk.DestroyShaderModule(b.dev, mod, nil)

	hitSubShader := map[string]bool{}
	for _, hg := range desc.HitGroups {
		if hg.ClosestHit != "" {
			hitSubShader[hg.ClosestHit] = true
		}
		if hg.AnyHit != "" {
			hitSubShader[hg.AnyHit] = true
		}
		if hg.Intersection != "" {
			hitSubShader[hg.Intersection] = true
		}
	}

	var stageInfos []vk.PipelineShaderStageCreateInfo
	stageIndex := map[string]uint32{}
	addStage := func(name string, bit vk.ShaderStageFlagBits) uint32 {
		if idx, ok := stageIndex[name]; ok {
			return idx
		}
		idx := uint32(len(stageInfos))
		stageInfos = append(stageInfos, vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  bit,
			Module: mod,
			PName:  name,
		})
		stageIndex[name] = idx
		return idx
	}

	var groups []vk.RayTracingShaderGroupCreateInfoKHR
	generalGroup := func(name string, bit vk.ShaderStageFlagBits) {
		idx := addStage(name, bit)
		groups = append(groups, vk.RayTracingShaderGroupCreateInfoKHR{
			SType:              vk.StructureTypeRayTracingShaderGroupCreateInfoKhr,
			Type:               vk.RayTracingShaderGroupTypeGeneralKhr,
			GeneralShader:      idx,
			ClosestHitShader:   vk.ShaderUnusedKhr,
			AnyHitShader:       vk.ShaderUnusedKhr,
			IntersectionShader: vk.ShaderUnusedKhr,
		})
	}

	generalGroup(desc.Library.Entry, vk.ShaderStageRaygenBitKhr)
	seenGeneral := map[string]bool{desc.Library.Entry: true}
	for _, assoc := range desc.ArgumentAssocs {
		for _, name := range assoc.ExportNames {
			if seenGeneral[name] || hitSubShader[name] {
				continue
			}
			seenGeneral[name] = true
			generalGroup(name, vk.ShaderStageMissBitKhr)
		}
	}

	for _, hg := range desc.HitGroups {
		group := vk.RayTracingShaderGroupCreateInfoKHR{
			SType:              vk.StructureTypeRayTracingShaderGroupCreateInfoKhr,
			Type:               vk.RayTracingShaderGroupTypeTrianglesHitGroupKhr,
			GeneralShader:      vk.ShaderUnusedKhr,
			ClosestHitShader:   vk.ShaderUnusedKhr,
			AnyHitShader:       vk.ShaderUnusedKhr,
			IntersectionShader: vk.ShaderUnusedKhr,
		}
		if hg.Intersection != "" {
			group.Type = vk.RayTracingShaderGroupTypeProceduralHitGroupKhr
			group.IntersectionShader = addStage(hg.Intersection, vk.ShaderStageIntersectionBitKhr)
		}
		if hg.ClosestHit != "" {
			group.ClosestHitShader = addStage(hg.ClosestHit, vk.ShaderStageClosestHitBitKhr)
		}
		if hg.AnyHit != "" {
			group.AnyHitShader = addStage(hg.AnyHit, vk.ShaderStageAnyHitBitKhr)
		}
		groups = append(groups, group)
	}

	irByStage := map[gpuhal.ShaderStage]*ir.Module{
		gpuhal.StageRayGen:       irMod,
		gpuhal.StageRayMiss:      irMod,
		gpuhal.StageRayClosestHit: irMod,
		gpuhal.StageRayAnyHit:    irMod,
		gpuhal.StageRayIntersect: irMod,
		gpuhal.StageRayCallable:  irMod,
	}
	shaderLayout := reflect.Reflect(irByStage, gpuhal.MaxShaderArguments)

	// ArgumentAssocs names per-export local root layouts; Vulkan has
	// no local-root-signature equivalent, so every export shares the
	// one pipeline layout built from the reflected whole-library
	// bindings instead — a gap only a D3D12 backend needs to close.
	allRayStages := stageFlagsOf(gpuhal.MaskAllRay)
	setLayouts, plLayout, err := b.buildPipelineLayout(shaderLayout, vk.ShaderStageFlags(allRayStages))
	if err != nil {
		return gpuhal.NullPipeline, err
	}

	rtInterface := vk.RayTracingPipelineInterfaceCreateInfoKHR{
		SType:                          vk.StructureTypeRayTracingPipelineInterfaceCreateInfoKhr,
		MaxPipelineRayPayloadSize:      uint32(desc.MaxPayloadBytes),
		MaxPipelineRayHitAttributeSize: uint32(desc.MaxAttributeBytes),
	}
	info := vk.RayTracingPipelineCreateInfoKHR{
		SType:                        vk.StructureTypeRayTracingPipelineCreateInfoKhr,
		StageCount:                   uint32(len(stageInfos)),
		PStages:                      stageInfos,
		GroupCount:                   uint32(len(groups)),
		PGroups:                      groups,
		MaxPipelineRayRecursionDepth: uint32(desc.MaxRecursionDepth),
		PLibraryInterface:            &rtInterface,
		Layout:                       plLayout,
	}
	pipelines := make([]vk.Pipeline, 1)
	res := vk.CreateRayTracingPipelinesKHR(b.dev, vk.DeferredOperationKHR(vk.NullHandle), vk.PipelineCache(vk.NullHandle),
		1, []vk.RayTracingPipelineCreateInfoKHR{info}, nil, pipelines)
	if res != vk.Success {
		for _, l := range setLayouts {
			vk.DestroyDescriptorSetLayout(b.dev, l, nil)
		}
		vk.DestroyPipelineLayout(b.dev, plLayout, nil)
		return gpuhal.NullPipeline, vkError(res)
	}

	h := b.pipes.insert(pipelineRes{
		pipeline:     pipelines[0],
		layout:       plLayout,
		setLayouts:   setLayouts,
		bindPoint:    vk.PipelineBindPointRayTracingKhr,
		shaderLayout: shaderLayout,
		stages:       vk.ShaderStageFlags(allRayStages),
	})
	return gpuhal.PipelineFromRaw(h), nil
}

// FreePipelineState implements gpuhal.Backend.
func (b *Backend) FreePipelineState(h gpuhal.PipelineHandle) {
	r, ok := b.pipes.remove(h.Raw())
	if !ok {
		return
	}
	vk.DestroyPipeline(b.dev, r.pipeline, nil)
	vk.DestroyPipelineLayout(b.dev, r.layout, nil)
	for _, l := range r.setLayouts {
		vk.DestroyDescriptorSetLayout(b.dev, l, nil)
	}
}

func polygonModeOf(f gpuhal.FillMode) vk.PolygonMode {
	if f == gpuhal.FillWireframe {
		return vk.PolygonModeLine
	}
	return vk.PolygonModeFill
}

func frontFaceOf(clockwise bool) vk.FrontFace {
	if clockwise {
		return vk.FrontFaceClockwise
	}
	return vk.FrontFaceCounterClockwise
}

func stencilOpStateOf(f gpuhal.StencilFace) vk.StencilOpState {
	return vk.StencilOpState{
		FailOp:      convStencilOp(f.FailOp),
		PassOp:      convStencilOp(f.PassOp),
		DepthFailOp: convStencilOp(f.DepthFailOp),
		CompareOp:   convCmpFunc(f.Cmp),
		CompareMask: f.ReadMask,
		WriteMask:   f.WriteMask,
	}
}

func boolToU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
