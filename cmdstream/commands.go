package cmdstream

import "github.com/gviegas/gpuhal"

// RTClearType selects whether a render target is cleared or its
// existing contents are loaded at the start of a render pass.
type RTClearType uint8

// Render target clear types.
const (
	ClearLoad RTClearType = iota
	ClearClear
)

// RenderTargetInfo is one color render target attached to a render
// pass.
type RenderTargetInfo struct {
	View       gpuhal.ResourceView
	ClearValue [4]float32
	ClearType  RTClearType
}

const renderTargetInfoSize = resourceViewSize + 16 + 1

func putRenderTargetInfo(dst []byte, r RenderTargetInfo) {
	putResourceView(dst[0:], r.View)
	o := resourceViewSize
	for i := 0; i < 4; i++ {
		putFloat32(dst[o+i*4:], r.ClearValue[i])
	}
	dst[o+16] = byte(r.ClearType)
}

func getRenderTargetInfo(src []byte) RenderTargetInfo {
	var r RenderTargetInfo
	r.View = getResourceView(src[0:])
	o := resourceViewSize
	for i := 0; i < 4; i++ {
		r.ClearValue[i] = getFloat32(src[o+i*4:])
	}
	r.ClearType = RTClearType(src[o+16])
	return r
}

// DepthStencilInfo is the depth/stencil target attached to a render
// pass.
type DepthStencilInfo struct {
	View          gpuhal.ResourceView
	ClearDepth    float32
	ClearStencil  uint8
	ClearType     RTClearType
}

const depthStencilInfoSize = resourceViewSize + 4 + 1 + 1

func putDepthStencilInfo(dst []byte, d DepthStencilInfo) {
	putResourceView(dst[0:], d.View)
	o := resourceViewSize
	putFloat32(dst[o:], d.ClearDepth)
	dst[o+4] = d.ClearStencil
	dst[o+5] = byte(d.ClearType)
}

func getDepthStencilInfo(src []byte) DepthStencilInfo {
	var d DepthStencilInfo
	d.View = getResourceView(src[0:])
	o := resourceViewSize
	d.ClearDepth = getFloat32(src[o:])
	d.ClearStencil = src[o+4]
	d.ClearType = RTClearType(src[o+5])
	return d
}

// BeginRenderPass opens a render pass over up to
// gpuhal.MaxRenderTargets color targets and an optional depth/stencil
// target. The translator does not eagerly open the native render pass
// on this command; it records the parameters and opens it lazily on
// the first draw (see the translator design).
type BeginRenderPass struct {
	RenderTargets    []RenderTargetInfo // len <= gpuhal.MaxRenderTargets
	DepthTarget      DepthStencilInfo
	HasDepthTarget   bool
	ViewportW, ViewportH int32
	ViewportOffX, ViewportOffY int32
}

func (BeginRenderPass) Tag() Tag { return TagBeginRenderPass }
func (BeginRenderPass) Size() int {
	return 1 + 1 + gpuhal.MaxRenderTargets*renderTargetInfoSize + depthStencilInfoSize + 1 + 4*4
}

func (c BeginRenderPass) encode(dst []byte) {
	dst[0] = byte(TagBeginRenderPass)
	o := 1
	dst[o] = byte(len(c.RenderTargets))
	o++
	for i := 0; i < gpuhal.MaxRenderTargets; i++ {
		if i < len(c.RenderTargets) {
			putRenderTargetInfo(dst[o:], c.RenderTargets[i])
		}
		o += renderTargetInfoSize
	}
	putDepthStencilInfo(dst[o:], c.DepthTarget)
	o += depthStencilInfoSize
	if c.HasDepthTarget {
		dst[o] = 1
	}
	o++
	putInt32(dst[o:], c.ViewportW)
	putInt32(dst[o+4:], c.ViewportH)
	putInt32(dst[o+8:], c.ViewportOffX)
	putInt32(dst[o+12:], c.ViewportOffY)
}

func decodeBeginRenderPass(src []byte) BeginRenderPass {
	var c BeginRenderPass
	o := 1
	n := int(src[o])
	o++
	for i := 0; i < gpuhal.MaxRenderTargets; i++ {
		if i < n {
			c.RenderTargets = append(c.RenderTargets, getRenderTargetInfo(src[o:]))
		}
		o += renderTargetInfoSize
	}
	c.DepthTarget = getDepthStencilInfo(src[o:])
	o += depthStencilInfoSize
	c.HasDepthTarget = src[o] != 0
	o++
	c.ViewportW = getInt32(src[o:])
	c.ViewportH = getInt32(src[o+4:])
	c.ViewportOffX = getInt32(src[o+8:])
	c.ViewportOffY = getInt32(src[o+12:])
	return c
}

// EndRenderPass closes the current render pass.
type EndRenderPass struct{}

func (EndRenderPass) Tag() Tag                { return TagEndRenderPass }
func (EndRenderPass) Size() int                { return 1 }
func (EndRenderPass) encode(dst []byte)        { dst[0] = byte(TagEndRenderPass) }
func decodeEndRenderPass(src []byte) EndRenderPass { return EndRenderPass{} }

// TransitionInfo names one resource and the state it must be in after
// this command executes; the prior state is looked up from the
// incomplete-state cache, not carried on the wire.
type TransitionInfo struct {
	Resource        gpuhal.ResourceHandle
	Target          gpuhal.ResourceState
	DependentStages gpuhal.ShaderStageFlags
}

const transitionInfoSize = 4 + 4 + 2

func putTransitionInfo(dst []byte, t TransitionInfo) {
	putResource(dst[0:], t.Resource)
	putInt32(dst[4:], int32(t.Target))
	dst[8] = byte(t.DependentStages)
	dst[9] = byte(t.DependentStages >> 8)
}

func getTransitionInfo(src []byte) TransitionInfo {
	return TransitionInfo{
		Resource:        getResource(src[0:]),
		Target:          gpuhal.ResourceState(getInt32(src[4:])),
		DependentStages: gpuhal.ShaderStageFlags(src[8]) | gpuhal.ShaderStageFlags(src[9])<<8,
	}
}

// TransitionResources transitions up to
// gpuhal.MaxResourceTransitions resources to new master-visible
// states.
type TransitionResources struct {
	Transitions []TransitionInfo // len <= gpuhal.MaxResourceTransitions
}

func (TransitionResources) Tag() Tag  { return TagTransitionResources }
func (TransitionResources) Size() int { return 1 + 1 + gpuhal.MaxResourceTransitions*transitionInfoSize }

func (c TransitionResources) encode(dst []byte) {
	dst[0] = byte(TagTransitionResources)
	dst[1] = byte(len(c.Transitions))
	o := 2
	for i := 0; i < gpuhal.MaxResourceTransitions; i++ {
		if i < len(c.Transitions) {
			putTransitionInfo(dst[o:], c.Transitions[i])
		}
		o += transitionInfoSize
	}
}

func decodeTransitionResources(src []byte) TransitionResources {
	var c TransitionResources
	n := int(src[1])
	o := 2
	for i := 0; i < gpuhal.MaxResourceTransitions; i++ {
		if i < n {
			c.Transitions = append(c.Transitions, getTransitionInfo(src[o:]))
		}
		o += transitionInfoSize
	}
	return c
}

// SliceTransitionInfo is a fully explicit subresource transition: both
// the source and target states are given by the caller, and the
// master state is not updated by it.
type SliceTransitionInfo struct {
	Resource              gpuhal.ResourceHandle
	SourceState, TargetState gpuhal.ResourceState
	SourceDeps, TargetDeps gpuhal.ShaderStageFlags
	MipLevel, ArraySlice  int32
}

const sliceTransitionInfoSize = 4 + 4 + 4 + 2 + 2 + 4 + 4

func putSliceTransitionInfo(dst []byte, t SliceTransitionInfo) {
	putResource(dst[0:], t.Resource)
	putInt32(dst[4:], int32(t.SourceState))
	putInt32(dst[8:], int32(t.TargetState))
	putUint32(dst[12:], uint32(t.SourceDeps)<<16|uint32(t.TargetDeps))
	putInt32(dst[16:], t.MipLevel)
	putInt32(dst[20:], t.ArraySlice)
}

func getSliceTransitionInfo(src []byte) SliceTransitionInfo {
	deps := getUint32(src[12:])
	return SliceTransitionInfo{
		Resource:    getResource(src[0:]),
		SourceState: gpuhal.ResourceState(getInt32(src[4:])),
		TargetState: gpuhal.ResourceState(getInt32(src[8:])),
		SourceDeps:  gpuhal.ShaderStageFlags(deps >> 16),
		TargetDeps:  gpuhal.ShaderStageFlags(deps & 0xFFFF),
		MipLevel:    getInt32(src[16:]),
		ArraySlice:  getInt32(src[20:]),
	}
}

// TransitionImageSlices transitions up to
// gpuhal.MaxResourceTransitions individual subresources explicitly.
type TransitionImageSlices struct {
	Transitions []SliceTransitionInfo // len <= gpuhal.MaxResourceTransitions
}

func (TransitionImageSlices) Tag() Tag { return TagTransitionImageSlices }
func (TransitionImageSlices) Size() int {
	return 1 + 1 + gpuhal.MaxResourceTransitions*sliceTransitionInfoSize
}

func (c TransitionImageSlices) encode(dst []byte) {
	dst[0] = byte(TagTransitionImageSlices)
	dst[1] = byte(len(c.Transitions))
	o := 2
	for i := 0; i < gpuhal.MaxResourceTransitions; i++ {
		if i < len(c.Transitions) {
			putSliceTransitionInfo(dst[o:], c.Transitions[i])
		}
		o += sliceTransitionInfoSize
	}
}

func decodeTransitionImageSlices(src []byte) TransitionImageSlices {
	var c TransitionImageSlices
	n := int(src[1])
	o := 2
	for i := 0; i < gpuhal.MaxResourceTransitions; i++ {
		if i < n {
			c.Transitions = append(c.Transitions, getSliceTransitionInfo(src[o:]))
		}
		o += sliceTransitionInfoSize
	}
	return c
}

// BarrierUAV explicitly records UAV barriers for up to
// gpuhal.MaxUAVBarriers resources.
type BarrierUAV struct {
	Resources []gpuhal.ResourceHandle // len <= gpuhal.MaxUAVBarriers
}

func (BarrierUAV) Tag() Tag  { return TagBarrierUAV }
func (BarrierUAV) Size() int { return 1 + 1 + gpuhal.MaxUAVBarriers*handleSize }

func (c BarrierUAV) encode(dst []byte) {
	dst[0] = byte(TagBarrierUAV)
	dst[1] = byte(len(c.Resources))
	o := 2
	for i := 0; i < gpuhal.MaxUAVBarriers; i++ {
		if i < len(c.Resources) {
			putResource(dst[o:], c.Resources[i])
		}
		o += handleSize
	}
}

func decodeBarrierUAV(src []byte) BarrierUAV {
	var c BarrierUAV
	n := int(src[1])
	o := 2
	for i := 0; i < gpuhal.MaxUAVBarriers; i++ {
		if i < n {
			c.Resources = append(c.Resources, getResource(src[o:]))
		}
		o += handleSize
	}
	return c
}

func putShaderArguments(dst []byte, args []gpuhal.ShaderArgument) int {
	dst[0] = byte(len(args))
	o := 1
	for i := 0; i < gpuhal.MaxShaderArguments; i++ {
		if i < len(args) {
			putShaderArgument(dst[o:], args[i])
		}
		o += shaderArgumentSize
	}
	return o
}

func getShaderArguments(src []byte) ([]gpuhal.ShaderArgument, int) {
	n := int(src[0])
	o := 1
	var args []gpuhal.ShaderArgument
	for i := 0; i < gpuhal.MaxShaderArguments; i++ {
		if i < n {
			args = append(args, getShaderArgument(src[o:]))
		}
		o += shaderArgumentSize
	}
	return args, o
}

const shaderArgumentsBlockSize = 1 + gpuhal.MaxShaderArguments*shaderArgumentSize
const rootConstantsSize = gpuhal.MaxRootConstantBytes

// Draw issues a (possibly indexed) non-indirect draw call against the
// currently-implied pipeline state.
type Draw struct {
	RootConstants   [rootConstantsSize]byte
	ShaderArguments []gpuhal.ShaderArgument // len <= gpuhal.MaxShaderArguments
	PipelineState   gpuhal.PipelineHandle
	VertexBuffer    gpuhal.ResourceHandle
	IndexBuffer     gpuhal.ResourceHandle
	NumIndices      uint32
	IndexOffset     uint32
	VertexOffset    uint32
	// Scissor is inclusive-left/top, exclusive-right/bottom, in
	// pixels; ScissorLeft == -1 means "no scissor set".
	ScissorLeft, ScissorTop, ScissorRight, ScissorBottom int32
}

func (Draw) Tag() Tag { return TagDraw }
func (Draw) Size() int {
	return 1 + rootConstantsSize + shaderArgumentsBlockSize + handleSize*3 + 4*3 + 4*4
}

func (c Draw) encode(dst []byte) {
	dst[0] = byte(TagDraw)
	o := 1
	copy(dst[o:], c.RootConstants[:])
	o += rootConstantsSize
	o += putShaderArguments(dst[o:], c.ShaderArguments)
	putPipeline(dst[o:], c.PipelineState)
	o += handleSize
	putResource(dst[o:], c.VertexBuffer)
	o += handleSize
	putResource(dst[o:], c.IndexBuffer)
	o += handleSize
	putUint32(dst[o:], c.NumIndices)
	o += 4
	putUint32(dst[o:], c.IndexOffset)
	o += 4
	putUint32(dst[o:], c.VertexOffset)
	o += 4
	putInt32(dst[o:], c.ScissorLeft)
	putInt32(dst[o+4:], c.ScissorTop)
	putInt32(dst[o+8:], c.ScissorRight)
	putInt32(dst[o+12:], c.ScissorBottom)
}

func decodeDraw(src []byte) Draw {
	var c Draw
	o := 1
	copy(c.RootConstants[:], src[o:o+rootConstantsSize])
	o += rootConstantsSize
	args, n := getShaderArguments(src[o:])
	c.ShaderArguments = args
	o += n
	c.PipelineState = getPipeline(src[o:])
	o += handleSize
	c.VertexBuffer = getResource(src[o:])
	o += handleSize
	c.IndexBuffer = getResource(src[o:])
	o += handleSize
	c.NumIndices = getUint32(src[o:])
	o += 4
	c.IndexOffset = getUint32(src[o:])
	o += 4
	c.VertexOffset = getUint32(src[o:])
	o += 4
	c.ScissorLeft = getInt32(src[o:])
	c.ScissorTop = getInt32(src[o+4:])
	c.ScissorRight = getInt32(src[o+8:])
	c.ScissorBottom = getInt32(src[o+12:])
	return c
}

// DrawIndirect issues a draw whose vertex/index counts are read from
// a GPU-visible argument buffer.
type DrawIndirect struct {
	RootConstants        [rootConstantsSize]byte
	ShaderArguments      []gpuhal.ShaderArgument
	PipelineState        gpuhal.PipelineHandle
	IndirectArgBuffer    gpuhal.ResourceHandle
	ArgBufferOffset      uint32
	NumArguments         uint32
	VertexBuffer         gpuhal.ResourceHandle
	IndexBuffer          gpuhal.ResourceHandle
}

func (DrawIndirect) Tag() Tag { return TagDrawIndirect }
func (DrawIndirect) Size() int {
	return 1 + rootConstantsSize + shaderArgumentsBlockSize + handleSize*4 + 4*2
}

func (c DrawIndirect) encode(dst []byte) {
	dst[0] = byte(TagDrawIndirect)
	o := 1
	copy(dst[o:], c.RootConstants[:])
	o += rootConstantsSize
	o += putShaderArguments(dst[o:], c.ShaderArguments)
	putPipeline(dst[o:], c.PipelineState)
	o += handleSize
	putResource(dst[o:], c.IndirectArgBuffer)
	o += handleSize
	putUint32(dst[o:], c.ArgBufferOffset)
	o += 4
	putUint32(dst[o:], c.NumArguments)
	o += 4
	putResource(dst[o:], c.VertexBuffer)
	o += handleSize
	putResource(dst[o:], c.IndexBuffer)
}

func decodeDrawIndirect(src []byte) DrawIndirect {
	var c DrawIndirect
	o := 1
	copy(c.RootConstants[:], src[o:o+rootConstantsSize])
	o += rootConstantsSize
	args, n := getShaderArguments(src[o:])
	c.ShaderArguments = args
	o += n
	c.PipelineState = getPipeline(src[o:])
	o += handleSize
	c.IndirectArgBuffer = getResource(src[o:])
	o += handleSize
	c.ArgBufferOffset = getUint32(src[o:])
	o += 4
	c.NumArguments = getUint32(src[o:])
	o += 4
	c.VertexBuffer = getResource(src[o:])
	o += handleSize
	c.IndexBuffer = getResource(src[o:])
	return c
}

// Dispatch issues a compute dispatch.
type Dispatch struct {
	RootConstants   [rootConstantsSize]byte
	ShaderArguments []gpuhal.ShaderArgument
	X, Y, Z         uint32
	PipelineState   gpuhal.PipelineHandle
}

func (Dispatch) Tag() Tag { return TagDispatch }
func (Dispatch) Size() int {
	return 1 + rootConstantsSize + shaderArgumentsBlockSize + 4*3 + handleSize
}

func (c Dispatch) encode(dst []byte) {
	dst[0] = byte(TagDispatch)
	o := 1
	copy(dst[o:], c.RootConstants[:])
	o += rootConstantsSize
	o += putShaderArguments(dst[o:], c.ShaderArguments)
	putUint32(dst[o:], c.X)
	o += 4
	putUint32(dst[o:], c.Y)
	o += 4
	putUint32(dst[o:], c.Z)
	o += 4
	putPipeline(dst[o:], c.PipelineState)
}

func decodeDispatch(src []byte) Dispatch {
	var c Dispatch
	o := 1
	copy(c.RootConstants[:], src[o:o+rootConstantsSize])
	o += rootConstantsSize
	args, n := getShaderArguments(src[o:])
	c.ShaderArguments = args
	o += n
	c.X = getUint32(src[o:])
	o += 4
	c.Y = getUint32(src[o:])
	o += 4
	c.Z = getUint32(src[o:])
	o += 4
	c.PipelineState = getPipeline(src[o:])
	return c
}

// CopyBuffer copies Size bytes from Source at SourceOffset to
// Destination at DestOffset.
type CopyBuffer struct {
	Source, Destination       gpuhal.ResourceHandle
	DestOffset, SourceOffset, Size uint64
}

func (CopyBuffer) Tag() Tag  { return TagCopyBuffer }
func (CopyBuffer) Size() int { return 1 + handleSize*2 + 8*3 }

func (c CopyBuffer) encode(dst []byte) {
	dst[0] = byte(TagCopyBuffer)
	o := 1
	putResource(dst[o:], c.Source)
	o += handleSize
	putResource(dst[o:], c.Destination)
	o += handleSize
	putUint64(dst[o:], c.DestOffset)
	o += 8
	putUint64(dst[o:], c.SourceOffset)
	o += 8
	putUint64(dst[o:], c.Size)
}

func decodeCopyBuffer(src []byte) CopyBuffer {
	var c CopyBuffer
	o := 1
	c.Source = getResource(src[o:])
	o += handleSize
	c.Destination = getResource(src[o:])
	o += handleSize
	c.DestOffset = getUint64(src[o:])
	o += 8
	c.SourceOffset = getUint64(src[o:])
	o += 8
	c.Size = getUint64(src[o:])
	return c
}

// CopyTexture copies a rectangular region between two texture
// resources at matching mip/array coordinates.
type CopyTexture struct {
	Source, Destination                           gpuhal.ResourceHandle
	SrcMipIndex, SrcArrayIndex                     uint32
	DestMipIndex, DestArrayIndex                   uint32
	Width, Height, NumArraySlices                  uint32
}

func (CopyTexture) Tag() Tag  { return TagCopyTexture }
func (CopyTexture) Size() int { return 1 + handleSize*2 + 4*7 }

func (c CopyTexture) encode(dst []byte) {
	dst[0] = byte(TagCopyTexture)
	o := 1
	putResource(dst[o:], c.Source)
	o += handleSize
	putResource(dst[o:], c.Destination)
	o += handleSize
	for _, v := range []uint32{c.SrcMipIndex, c.SrcArrayIndex, c.DestMipIndex, c.DestArrayIndex, c.Width, c.Height, c.NumArraySlices} {
		putUint32(dst[o:], v)
		o += 4
	}
}

func decodeCopyTexture(src []byte) CopyTexture {
	var c CopyTexture
	o := 1
	c.Source = getResource(src[o:])
	o += handleSize
	c.Destination = getResource(src[o:])
	o += handleSize
	vals := make([]uint32, 7)
	for i := range vals {
		vals[i] = getUint32(src[o:])
		o += 4
	}
	c.SrcMipIndex, c.SrcArrayIndex, c.DestMipIndex, c.DestArrayIndex = vals[0], vals[1], vals[2], vals[3]
	c.Width, c.Height, c.NumArraySlices = vals[4], vals[5], vals[6]
	return c
}

// CopyBufferToTexture copies from a linear buffer region into one
// texture mip/array slice.
type CopyBufferToTexture struct {
	Source, Destination                       gpuhal.ResourceHandle
	SourceOffset                               uint64
	DestWidth, DestHeight                      uint32
	DestMipIndex, DestArrayIndex               uint32
}

func (CopyBufferToTexture) Tag() Tag  { return TagCopyBufferToTexture }
func (CopyBufferToTexture) Size() int { return 1 + handleSize*2 + 8 + 4*4 }

func (c CopyBufferToTexture) encode(dst []byte) {
	dst[0] = byte(TagCopyBufferToTexture)
	o := 1
	putResource(dst[o:], c.Source)
	o += handleSize
	putResource(dst[o:], c.Destination)
	o += handleSize
	putUint64(dst[o:], c.SourceOffset)
	o += 8
	for _, v := range []uint32{c.DestWidth, c.DestHeight, c.DestMipIndex, c.DestArrayIndex} {
		putUint32(dst[o:], v)
		o += 4
	}
}

func decodeCopyBufferToTexture(src []byte) CopyBufferToTexture {
	var c CopyBufferToTexture
	o := 1
	c.Source = getResource(src[o:])
	o += handleSize
	c.Destination = getResource(src[o:])
	o += handleSize
	c.SourceOffset = getUint64(src[o:])
	o += 8
	vals := make([]uint32, 4)
	for i := range vals {
		vals[i] = getUint32(src[o:])
		o += 4
	}
	c.DestWidth, c.DestHeight, c.DestMipIndex, c.DestArrayIndex = vals[0], vals[1], vals[2], vals[3]
	return c
}

// CopyTextureToBuffer copies one texture mip/array slice into a
// linear buffer region.
type CopyTextureToBuffer struct {
	Source, Destination                   gpuhal.ResourceHandle
	DestOffset                             uint64
	SrcWidth, SrcHeight                    uint32
	SrcMipIndex, SrcArrayIndex             uint32
}

func (CopyTextureToBuffer) Tag() Tag  { return TagCopyTextureToBuffer }
func (CopyTextureToBuffer) Size() int { return 1 + handleSize*2 + 8 + 4*4 }

func (c CopyTextureToBuffer) encode(dst []byte) {
	dst[0] = byte(TagCopyTextureToBuffer)
	o := 1
	putResource(dst[o:], c.Source)
	o += handleSize
	putResource(dst[o:], c.Destination)
	o += handleSize
	putUint64(dst[o:], c.DestOffset)
	o += 8
	for _, v := range []uint32{c.SrcWidth, c.SrcHeight, c.SrcMipIndex, c.SrcArrayIndex} {
		putUint32(dst[o:], v)
		o += 4
	}
}

func decodeCopyTextureToBuffer(src []byte) CopyTextureToBuffer {
	var c CopyTextureToBuffer
	o := 1
	c.Source = getResource(src[o:])
	o += handleSize
	c.Destination = getResource(src[o:])
	o += handleSize
	c.DestOffset = getUint64(src[o:])
	o += 8
	vals := make([]uint32, 4)
	for i := range vals {
		vals[i] = getUint32(src[o:])
		o += 4
	}
	c.SrcWidth, c.SrcHeight, c.SrcMipIndex, c.SrcArrayIndex = vals[0], vals[1], vals[2], vals[3]
	return c
}

// ResolveTexture resolves a multisampled Source into a non-multisampled
// Destination.
type ResolveTexture struct {
	Source, Destination                           gpuhal.ResourceHandle
	SrcMipIndex, SrcArrayIndex                     uint32
	DestMipIndex, DestArrayIndex                   uint32
	Width, Height                                  uint32
}

func (ResolveTexture) Tag() Tag  { return TagResolveTexture }
func (ResolveTexture) Size() int { return 1 + handleSize*2 + 4*6 }

func (c ResolveTexture) encode(dst []byte) {
	dst[0] = byte(TagResolveTexture)
	o := 1
	putResource(dst[o:], c.Source)
	o += handleSize
	putResource(dst[o:], c.Destination)
	o += handleSize
	for _, v := range []uint32{c.SrcMipIndex, c.SrcArrayIndex, c.DestMipIndex, c.DestArrayIndex, c.Width, c.Height} {
		putUint32(dst[o:], v)
		o += 4
	}
}

func decodeResolveTexture(src []byte) ResolveTexture {
	var c ResolveTexture
	o := 1
	c.Source = getResource(src[o:])
	o += handleSize
	c.Destination = getResource(src[o:])
	o += handleSize
	vals := make([]uint32, 6)
	for i := range vals {
		vals[i] = getUint32(src[o:])
		o += 4
	}
	c.SrcMipIndex, c.SrcArrayIndex, c.DestMipIndex, c.DestArrayIndex = vals[0], vals[1], vals[2], vals[3]
	c.Width, c.Height = vals[4], vals[5]
	return c
}

// WriteTimestamp writes a GPU timestamp into one element of a
// query_range.
type WriteTimestamp struct {
	QueryRange gpuhal.QueryRangeHandle
	Index      uint32
}

func (WriteTimestamp) Tag() Tag  { return TagWriteTimestamp }
func (WriteTimestamp) Size() int { return 1 + handleSize + 4 }

func (c WriteTimestamp) encode(dst []byte) {
	dst[0] = byte(TagWriteTimestamp)
	putQueryRange(dst[1:], c.QueryRange)
	putUint32(dst[1+handleSize:], c.Index)
}

func decodeWriteTimestamp(src []byte) WriteTimestamp {
	return WriteTimestamp{QueryRange: getQueryRange(src[1:]), Index: getUint32(src[1+handleSize:])}
}

// ResolveQueries reads back NumQueries contiguous query results
// starting at QueryStart from SrcQueryRange into DestBuffer at
// DestOffset.
type ResolveQueries struct {
	DestBuffer    gpuhal.ResourceHandle
	SrcQueryRange gpuhal.QueryRangeHandle
	QueryStart    uint32
	NumQueries    uint32
	DestOffset    uint32
}

func (ResolveQueries) Tag() Tag  { return TagResolveQueries }
func (ResolveQueries) Size() int { return 1 + handleSize*2 + 4*3 }

func (c ResolveQueries) encode(dst []byte) {
	dst[0] = byte(TagResolveQueries)
	o := 1
	putResource(dst[o:], c.DestBuffer)
	o += handleSize
	putQueryRange(dst[o:], c.SrcQueryRange)
	o += handleSize
	putUint32(dst[o:], c.QueryStart)
	o += 4
	putUint32(dst[o:], c.NumQueries)
	o += 4
	putUint32(dst[o:], c.DestOffset)
}

func decodeResolveQueries(src []byte) ResolveQueries {
	var c ResolveQueries
	o := 1
	c.DestBuffer = getResource(src[o:])
	o += handleSize
	c.SrcQueryRange = getQueryRange(src[o:])
	o += handleSize
	c.QueryStart = getUint32(src[o:])
	o += 4
	c.NumQueries = getUint32(src[o:])
	o += 4
	c.DestOffset = getUint32(src[o:])
	return c
}

// debugLabelMaxLen bounds a debug label to a fixed record size; labels
// are truncated, not rejected, since they are diagnostic-only.
const debugLabelMaxLen = 63

// BeginDebugLabel opens a named debug region, consumed by capture
// tools (RenderDoc, PIX, Nsight); closed by EndDebugLabel.
type BeginDebugLabel struct {
	Label string
}

func (BeginDebugLabel) Tag() Tag  { return TagBeginDebugLabel }
func (BeginDebugLabel) Size() int { return 1 + debugLabelMaxLen + 1 }

func (c BeginDebugLabel) encode(dst []byte) {
	dst[0] = byte(TagBeginDebugLabel)
	n := copy(dst[1:1+debugLabelMaxLen], c.Label)
	dst[1+n] = 0
}

func decodeBeginDebugLabel(src []byte) BeginDebugLabel {
	end := 1
	for end < 1+debugLabelMaxLen && src[end] != 0 {
		end++
	}
	return BeginDebugLabel{Label: string(src[1:end])}
}

// EndDebugLabel closes the most recently opened debug label.
type EndDebugLabel struct{}

func (EndDebugLabel) Tag() Tag                { return TagEndDebugLabel }
func (EndDebugLabel) Size() int                { return 1 }
func (EndDebugLabel) encode(dst []byte)        { dst[0] = byte(TagEndDebugLabel) }
func decodeEndDebugLabel(src []byte) EndDebugLabel { return EndDebugLabel{} }

// UpdateBottomLevel builds or, if Source is non-null, updates in
// place a bottom-level acceleration structure.
type UpdateBottomLevel struct {
	Dest, Source gpuhal.AccelStructHandle
}

func (UpdateBottomLevel) Tag() Tag  { return TagUpdateBottomLevel }
func (UpdateBottomLevel) Size() int { return 1 + handleSize*2 }

func (c UpdateBottomLevel) encode(dst []byte) {
	dst[0] = byte(TagUpdateBottomLevel)
	putAccelStruct(dst[1:], c.Dest)
	putAccelStruct(dst[1+handleSize:], c.Source)
}

func decodeUpdateBottomLevel(src []byte) UpdateBottomLevel {
	return UpdateBottomLevel{Dest: getAccelStruct(src[1:]), Source: getAccelStruct(src[1+handleSize:])}
}

// UpdateTopLevel builds or updates a top-level acceleration structure
// from a packed instance buffer (see gpuhal.AccelStructInstance).
type UpdateTopLevel struct {
	NumInstances          uint32
	SourceBufferInstances gpuhal.ResourceHandle
	SourceBufferOffset    uint32
	Dest                  gpuhal.AccelStructHandle
}

func (UpdateTopLevel) Tag() Tag  { return TagUpdateTopLevel }
func (UpdateTopLevel) Size() int { return 1 + 4 + handleSize + 4 + handleSize }

func (c UpdateTopLevel) encode(dst []byte) {
	dst[0] = byte(TagUpdateTopLevel)
	o := 1
	putUint32(dst[o:], c.NumInstances)
	o += 4
	putResource(dst[o:], c.SourceBufferInstances)
	o += handleSize
	putUint32(dst[o:], c.SourceBufferOffset)
	o += 4
	putAccelStruct(dst[o:], c.Dest)
}

func decodeUpdateTopLevel(src []byte) UpdateTopLevel {
	var c UpdateTopLevel
	o := 1
	c.NumInstances = getUint32(src[o:])
	o += 4
	c.SourceBufferInstances = getResource(src[o:])
	o += handleSize
	c.SourceBufferOffset = getUint32(src[o:])
	o += 4
	c.Dest = getAccelStruct(src[o:])
	return c
}

// BufferRange names a byte range of one buffer resource.
type BufferRange struct {
	Buffer   gpuhal.ResourceHandle
	Offset   uint32
	Size     uint32
}

// BufferRangeAndStride is a BufferRange plus a per-record stride, used
// for the miss/hit-group/callable shader-table regions which may hold
// more than one record.
type BufferRangeAndStride struct {
	Buffer gpuhal.ResourceHandle
	Offset uint32
	Size   uint32
	Stride uint32
}

const bufferRangeSize = 4 + 4 + 4
const bufferRangeAndStrideSize = 4 + 4 + 4 + 4

func putBufferRange(dst []byte, r BufferRange) {
	putResource(dst[0:], r.Buffer)
	putUint32(dst[4:], r.Offset)
	putUint32(dst[8:], r.Size)
}

func getBufferRange(src []byte) BufferRange {
	return BufferRange{Buffer: getResource(src[0:]), Offset: getUint32(src[4:]), Size: getUint32(src[8:])}
}

func putBufferRangeAndStride(dst []byte, r BufferRangeAndStride) {
	putResource(dst[0:], r.Buffer)
	putUint32(dst[4:], r.Offset)
	putUint32(dst[8:], r.Size)
	putUint32(dst[12:], r.Stride)
}

func getBufferRangeAndStride(src []byte) BufferRangeAndStride {
	return BufferRangeAndStride{
		Buffer: getResource(src[0:]),
		Offset: getUint32(src[4:]),
		Size:   getUint32(src[8:]),
		Stride: getUint32(src[12:]),
	}
}

// DispatchRays traces rays against a raytracing pipeline state, using
// shader tables written by Backend.WriteShaderTable.
type DispatchRays struct {
	PipelineState gpuhal.PipelineHandle
	RayGen        BufferRange
	Miss          BufferRangeAndStride
	HitGroups     BufferRangeAndStride
	Callable      BufferRangeAndStride // optional; zero Buffer means unused
	Width, Height, Depth uint32
}

func (DispatchRays) Tag() Tag { return TagDispatchRays }
func (DispatchRays) Size() int {
	return 1 + handleSize + bufferRangeSize + bufferRangeAndStrideSize*3 + 4*3
}

func (c DispatchRays) encode(dst []byte) {
	dst[0] = byte(TagDispatchRays)
	o := 1
	putPipeline(dst[o:], c.PipelineState)
	o += handleSize
	putBufferRange(dst[o:], c.RayGen)
	o += bufferRangeSize
	putBufferRangeAndStride(dst[o:], c.Miss)
	o += bufferRangeAndStrideSize
	putBufferRangeAndStride(dst[o:], c.HitGroups)
	o += bufferRangeAndStrideSize
	putBufferRangeAndStride(dst[o:], c.Callable)
	o += bufferRangeAndStrideSize
	putUint32(dst[o:], c.Width)
	o += 4
	putUint32(dst[o:], c.Height)
	o += 4
	putUint32(dst[o:], c.Depth)
}

func decodeDispatchRays(src []byte) DispatchRays {
	var c DispatchRays
	o := 1
	c.PipelineState = getPipeline(src[o:])
	o += handleSize
	c.RayGen = getBufferRange(src[o:])
	o += bufferRangeSize
	c.Miss = getBufferRangeAndStride(src[o:])
	o += bufferRangeAndStrideSize
	c.HitGroups = getBufferRangeAndStride(src[o:])
	o += bufferRangeAndStrideSize
	c.Callable = getBufferRangeAndStride(src[o:])
	o += bufferRangeAndStrideSize
	c.Width = getUint32(src[o:])
	o += 4
	c.Height = getUint32(src[o:])
	o += 4
	c.Depth = getUint32(src[o:])
	return c
}

// ClearOp clears one view to a fixed color/depth/stencil value,
// outside of any render pass.
type ClearOp struct {
	View         gpuhal.ResourceView
	ClearValue   [4]float32
	ClearDepth   float32
	ClearStencil uint8
}

const clearOpSize = resourceViewSize + 16 + 4 + 1

func putClearOp(dst []byte, c ClearOp) {
	putResourceView(dst[0:], c.View)
	o := resourceViewSize
	for i := 0; i < 4; i++ {
		putFloat32(dst[o+i*4:], c.ClearValue[i])
	}
	o += 16
	putFloat32(dst[o:], c.ClearDepth)
	dst[o+4] = c.ClearStencil
}

func getClearOp(src []byte) ClearOp {
	var c ClearOp
	c.View = getResourceView(src[0:])
	o := resourceViewSize
	for i := 0; i < 4; i++ {
		c.ClearValue[i] = getFloat32(src[o+i*4:])
	}
	o += 16
	c.ClearDepth = getFloat32(src[o:])
	c.ClearStencil = src[o+4]
	return c
}

// maxClearTextures bounds ClearTextures, matching the four-slot
// capped vector in the reference layout.
const maxClearTextures = 4

// ClearTextures clears up to maxClearTextures texture views to fixed
// values, standalone (outside a render pass).
type ClearTextures struct {
	Ops []ClearOp // len <= maxClearTextures
}

func (ClearTextures) Tag() Tag  { return TagClearTextures }
func (ClearTextures) Size() int { return 1 + 1 + maxClearTextures*clearOpSize }

func (c ClearTextures) encode(dst []byte) {
	dst[0] = byte(TagClearTextures)
	dst[1] = byte(len(c.Ops))
	o := 2
	for i := 0; i < maxClearTextures; i++ {
		if i < len(c.Ops) {
			putClearOp(dst[o:], c.Ops[i])
		}
		o += clearOpSize
	}
}

func decodeClearTextures(src []byte) ClearTextures {
	var c ClearTextures
	n := int(src[1])
	o := 2
	for i := 0; i < maxClearTextures; i++ {
		if i < n {
			c.Ops = append(c.Ops, getClearOp(src[o:]))
		}
		o += clearOpSize
	}
	return c
}
