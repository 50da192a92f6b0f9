package gpuhal

// VertexFmt describes the format of one vertex input attribute.
type VertexFmt int

// Vertex formats.
const (
	Int8 VertexFmt = iota
	Int8x2
	Int8x3
	Int8x4
	Int16
	Int16x2
	Int16x3
	Int16x4
	Int32
	Int32x2
	Int32x3
	Int32x4
	UInt8
	UInt8x2
	UInt8x3
	UInt8x4
	UInt16
	UInt16x2
	UInt16x3
	UInt16x4
	UInt32
	UInt32x2
	UInt32x3
	UInt32x4
	Float32
	Float32x2
	Float32x3
	Float32x4
)

// VertexIn describes one vertex buffer binding. Consecutive vertices
// are fetched Stride bytes apart; each input is a separate buffer
// binding, interleaved inputs are not supported.
type VertexIn struct {
	Format VertexFmt
	Stride int
	Slot   int
}

// Topology is a primitive topology.
type Topology int

// Primitive topologies.
const (
	TPoint Topology = iota
	TLine
	TLineStrip
	TTriangle
	TTriangleStrip
)

// IndexFmt describes the element width of an index buffer.
type IndexFmt int

// Index formats.
const (
	Index16 IndexFmt = 2
	Index32 IndexFmt = 4
)

// Viewport defines the bounds of a viewport, in framebuffer space.
type Viewport struct {
	X, Y, Width, Height, MinDepth, MaxDepth float32
}

// Scissor defines a scissor rectangle.
type Scissor struct {
	X, Y, Width, Height int
}

// CullMode selects which triangle faces to discard.
type CullMode int

// Cull modes.
const (
	CullNone CullMode = iota
	CullFront
	CullBack
)

// FillMode selects triangle rasterization fill.
type FillMode int

// Fill modes.
const (
	FillSolid FillMode = iota
	FillWireframe
)

// RasterState is the rasterization state of a graphics pipeline.
type RasterState struct {
	Clockwise bool
	Cull      CullMode
	Fill      FillMode
	DepthBias bool
	BiasValue float32
	BiasSlope float32
	BiasClamp float32
}

// CmpFunc is a comparison function used by depth and stencil tests.
type CmpFunc int

// Comparison functions.
const (
	CmpNever CmpFunc = iota
	CmpLess
	CmpEqual
	CmpLessEqual
	CmpGreater
	CmpNotEqual
	CmpGreaterEqual
	CmpAlways
)

// StencilOp is a stencil update operation.
type StencilOp int

// Stencil operations.
const (
	StencilKeep StencilOp = iota
	StencilZero
	StencilReplace
	StencilIncClamp
	StencilDecClamp
	StencilInvert
	StencilIncWrap
	StencilDecWrap
)

// StencilFace holds the stencil parameters for one triangle face.
type StencilFace struct {
	FailOp      StencilOp
	DepthFailOp StencilOp
	PassOp      StencilOp
	ReadMask    uint32
	WriteMask   uint32
	Cmp         CmpFunc
}

// DSState is the depth/stencil state of a graphics pipeline.
type DSState struct {
	DepthTest   bool
	DepthWrite  bool
	DepthCmp    CmpFunc
	StencilTest bool
	Front       StencilFace
	Back        StencilFace
}

// BlendOp is a color/alpha blend combine operation.
type BlendOp int

// Blend operations.
const (
	BlendAdd BlendOp = iota
	BlendSubtract
	BlendRevSubtract
	BlendMin
	BlendMax
)

// BlendFac is a color/alpha blend factor.
type BlendFac int

// Blend factors.
const (
	FacZero BlendFac = iota
	FacOne
	FacSrcColor
	FacInvSrcColor
	FacSrcAlpha
	FacInvSrcAlpha
	FacDstColor
	FacInvDstColor
	FacDstAlpha
	FacInvDstAlpha
	FacSrcAlphaSaturated
	FacBlendColor
	FacInvBlendColor
)

// ColorMask is a render-target color write mask.
type ColorMask int

// Color write masks.
const (
	MaskRed ColorMask = 1 << iota
	MaskGreen
	MaskBlue
	MaskAlpha
	MaskAll = MaskRed | MaskGreen | MaskBlue | MaskAlpha
)

// ColorBlend defines one render target's blend parameters.
type ColorBlend struct {
	Blend     bool
	WriteMask ColorMask
	// Index 0 is color, index 1 is alpha.
	Op     [2]BlendOp
	SrcFac [2]BlendFac
	DstFac [2]BlendFac
}

// BlendState is the color blend state of a graphics pipeline.
type BlendState struct {
	IndependentBlend bool
	// Target holds blend parameters for each render target. Only
	// Target[0] is used unless IndependentBlend is set.
	Target [MaxRenderTargets]ColorBlend
}

// ShaderCode is a shader module together with the entry point to
// invoke in it. Code holds WGSL source text, which both backends
// compile through naga (to SPIR-V on Vulkan, to HLSL on D3D12), so
// the same ShaderCode value is accepted by either Backend.
type ShaderCode struct {
	Code  []byte
	Entry string
}

// GraphicsStateDesc is the combination of programmable and fixed
// function stages of a graphics pipeline. The shader-argument layout
// embedded in it (rather than a client-supplied descriptor table) is
// derived by package reflect from Vertex/Pixel's reflection data; see
// the shader-reflection patch design.
type GraphicsStateDesc struct {
	Vertex   ShaderCode
	Hull     ShaderCode // optional
	Domain   ShaderCode // optional
	Geometry ShaderCode // optional
	Pixel    ShaderCode

	VertexInputs []VertexIn
	Topology     Topology
	Raster       RasterState
	Samples      int
	DS           DSState
	Blend        BlendState

	NumRenderTargets int
	RTVFormats       [MaxRenderTargets]Format
	DSVFormat        Format
}

// ComputeStateDesc is the state of a compute pipeline: a single
// compute shader and its (derived) shader-argument layout.
type ComputeStateDesc struct {
	Compute ShaderCode
}

// RaytracingArgumentAssoc binds a local root/descriptor layout to one
// or more exported shader identifiers within a raytracing library.
type RaytracingArgumentAssoc struct {
	ExportNames []string
	Layout      ShaderArgument
}

// RaytracingHitGroup names the closest-hit, any-hit and intersection
// exports (each optional save for closest-hit) that make up one hit
// group, exposed to shader tables under GroupName.
type RaytracingHitGroup struct {
	GroupName    string
	ClosestHit   string
	AnyHit       string
	Intersection string
}

// RaytracingStateDesc is the state of a raytracing pipeline: a single
// DXR/Vulkan-RT shader library plus its hit groups and local-root
// associations.
type RaytracingStateDesc struct {
	Library           ShaderCode
	MaxRecursionDepth int
	MaxPayloadBytes   int
	MaxAttributeBytes int

	HitGroups    []RaytracingHitGroup
	ArgumentAssocs []RaytracingArgumentAssoc
}
