package gpuhal

// ShaderStage is a single programmable pipeline stage.
type ShaderStage uint8

// Shader stages.
const (
	StageNone ShaderStage = iota
	StageVertex
	StageHull
	StageDomain
	StageGeometry
	StagePixel
	StageCompute
	StageRayGen
	StageRayMiss
	StageRayClosestHit
	StageRayIntersect
	StageRayAnyHit
	StageRayCallable

	numShaderStages
)

// ShaderStageFlags is a bitmask over ShaderStage values, used to
// declare which stages a resource is visible to.
type ShaderStageFlags uint16

// Shader stage flags.
const (
	FlagVertex ShaderStageFlags = 1 << iota
	FlagHull
	FlagDomain
	FlagGeometry
	FlagPixel
	FlagCompute
	FlagRayGen
	FlagRayMiss
	FlagRayClosestHit
	FlagRayIntersect
	FlagRayAnyHit
	FlagRayCallable

	MaskAllGraphics = FlagVertex | FlagHull | FlagDomain | FlagGeometry | FlagPixel
	MaskRayIdentifiable = FlagRayGen | FlagRayMiss | FlagRayCallable
	MaskRayHitGroup     = FlagRayClosestHit | FlagRayAnyHit | FlagRayIntersect
	MaskAllRay          = MaskRayIdentifiable | MaskRayHitGroup
)

// ToFlag converts a single stage to its bit in ShaderStageFlags.
func (s ShaderStage) ToFlag() ShaderStageFlags {
	if s == StageNone {
		return 0
	}
	return 1 << (s - 1)
}

// ShaderArgument is one of up to MaxShaderArguments slots carrying
// (constant_buffer, shader_view) bindings to a draw or dispatch
// command.
type ShaderArgument struct {
	ConstantBuffer       ResourceHandle
	ConstantBufferOffset uint32
	ShaderView           ShaderViewHandle
}

// ResourceViewKind discriminates the payload of a ResourceView.
type ResourceViewKind uint8

// Resource view kinds.
const (
	ViewBuffer ResourceViewKind = iota
	ViewRawBuffer
	ViewTexture1D
	ViewTexture1DArray
	ViewTexture2D
	ViewTexture2DArray
	ViewTexture2DMS
	ViewTexture2DMSArray
	ViewTexture3D
	ViewTextureCube
	ViewTextureCubeArray
	ViewRaytracingAccelStruct
)

// ResourceView is a discriminated union describing how a resource is
// bound as a shader-visible view or render target: buffer, raw
// buffer, texture (1d/2d/3d/cube, array and multisample variants), or
// a raytracing acceleration structure, each with its own payload.
type ResourceView struct {
	Resource ResourceHandle
	Kind     ResourceViewKind
	Format   Format

	// Texture payload.
	MipStart    uint32
	NumMips     uint32
	ArrayStart  uint32
	NumArrayLayers uint32

	// Buffer payload.
	NumElements uint32
	Stride      uint32
	ElementStart uint32

	// IsBackbuffer marks a view created over a swapchain backbuffer
	// image; the translator resolves it to the current backbuffer at
	// render-pass time rather than at encode time.
	IsBackbuffer bool
}

// Texture2DView returns a ResourceView over a 2D texture.
func Texture2DView(res ResourceHandle, f Format, mipStart, numMips uint32) ResourceView {
	if numMips == 0 {
		numMips = ^uint32(0)
	}
	return ResourceView{Resource: res, Kind: ViewTexture2D, Format: f, MipStart: mipStart, NumMips: numMips}
}

// BackbufferView returns a ResourceView that refers to a swapchain's
// current backbuffer.
func BackbufferView(res ResourceHandle) ResourceView {
	return ResourceView{Resource: res, Kind: ViewTexture2D, IsBackbuffer: true}
}

// StructuredBufferView returns a ResourceView over a structured
// buffer.
func StructuredBufferView(res ResourceHandle, numElements, strideBytes, elementStart uint32) ResourceView {
	return ResourceView{Resource: res, Kind: ViewBuffer, NumElements: numElements, Stride: strideBytes, ElementStart: elementStart}
}
