package vk

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/gviegas/gpuhal"
	"github.com/gviegas/gpuhal/cmdstream"
	"github.com/gviegas/gpuhal/internal/alloclife"
	"github.com/gviegas/gpuhal/statecache"
)

// cmdListRes is a recorded command buffer awaiting submission, paired
// with the allocator it was drawn from (so Submit/DiscardCommandList
// can return it to circulation) and the per-list resource-state cache
// built up while translating its command stream.
type cmdListRes struct {
	cb    vk.CommandBuffer
	alloc *alloclife.CommandAllocator[vk.Fence, vk.CommandPool, vk.CommandBuffer]
	queue gpuhal.QueueType
	cache *statecache.Cache
}

// stateSyncScope maps a resource state and the shader stages that
// depend on it to the access and pipeline-stage flags a barrier needs
// to make the transition visible; convResourceState handles the
// companion image-layout half of the same mapping.
func stateSyncScope(s gpuhal.ResourceState, deps gpuhal.ShaderStageFlags) (vk.AccessFlags, vk.PipelineStageFlags) {
	switch s {
	case gpuhal.StateUndefined:
		return 0, vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
	case gpuhal.StateVertexBuffer:
		return vk.AccessFlags(vk.AccessVertexAttributeReadBit), vk.PipelineStageFlags(vk.PipelineStageVertexInputBit)
	case gpuhal.StateIndexBuffer:
		return vk.AccessFlags(vk.AccessIndexReadBit), vk.PipelineStageFlags(vk.PipelineStageVertexInputBit)
	case gpuhal.StateConstantBuffer:
		return vk.AccessFlags(vk.AccessUniformReadBit), stagesOf(deps)
	case gpuhal.StateShaderResource, gpuhal.StateShaderResourceNonPixel:
		return vk.AccessFlags(vk.AccessShaderReadBit), stagesOf(deps)
	case gpuhal.StateUnorderedAccess:
		return vk.AccessFlags(vk.AccessShaderReadBit | vk.AccessShaderWriteBit), stagesOf(deps)
	case gpuhal.StateRenderTarget:
		return vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit),
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	case gpuhal.StateDepthRead:
		return vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit),
			vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit)
	case gpuhal.StateDepthWrite:
		return vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit),
			vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit)
	case gpuhal.StateIndirectArgument:
		return vk.AccessFlags(vk.AccessIndirectCommandReadBit), vk.PipelineStageFlags(vk.PipelineStageDrawIndirectBit)
	case gpuhal.StateCopySrc, gpuhal.StateResolveSrc:
		return vk.AccessFlags(vk.AccessTransferReadBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case gpuhal.StateCopyDst, gpuhal.StateResolveDst:
		return vk.AccessFlags(vk.AccessTransferWriteBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case gpuhal.StatePresent:
		return 0, vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit)
	case gpuhal.StateRaytraceAccelStruct:
		return vk.AccessFlags(vk.AccessAccelerationStructureReadBitKhr),
			vk.PipelineStageFlags(vk.PipelineStageAccelerationStructureBuildBitKhr | vk.PipelineStageRayTracingShaderBitKhr)
	default:
		return 0, vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
	}
}

// stagesOf converts a shader-stage mask to the pipeline-stage flags
// any of its member stages can run at, used when a resource state is
// shader-visible and depends on the stages that actually read it.
func stagesOf(deps gpuhal.ShaderStageFlags) vk.PipelineStageFlags {
	var flags vk.PipelineStageFlagBits
	if deps&gpuhal.MaskAllGraphics != 0 {
		if deps&gpuhal.FlagVertex != 0 {
			flags |= vk.PipelineStageVertexShaderBit
		}
		if deps&gpuhal.FlagHull != 0 {
			flags |= vk.PipelineStageTessellationControlShaderBit
		}
		if deps&gpuhal.FlagDomain != 0 {
			flags |= vk.PipelineStageTessellationEvaluationShaderBit
		}
		if deps&gpuhal.FlagGeometry != 0 {
			flags |= vk.PipelineStageGeometryShaderBit
		}
		if deps&gpuhal.FlagPixel != 0 {
			flags |= vk.PipelineStageFragmentShaderBit
		}
	}
	if deps&gpuhal.FlagCompute != 0 {
		flags |= vk.PipelineStageComputeShaderBit
	}
	if deps&gpuhal.MaskAllRay != 0 {
		flags |= vk.PipelineStageRayTracingShaderBitKhr
	}
	if flags == 0 {
		flags = vk.PipelineStageAllCommandsBit
	}
	return vk.PipelineStageFlags(flags)
}

// emitBarrier records a global memory barrier for a resource
// transition that does not target a specific image subresource.
func emitBarrier(b *Backend, cb vk.CommandBuffer, resH gpuhal.ResourceHandle, bar statecache.Barrier) {
	srcAccess, srcStage := stateSyncScope(bar.Source, bar.SourceDeps)
	dstAccess, dstStage := stateSyncScope(bar.Target, bar.TargetDeps)

	res, ok := b.resources.get(resH.Raw())
	if !ok {
		return
	}
	if !res.isImage {
		mb := vk.MemoryBarrier{SType: vk.StructureTypeMemoryBarrier, SrcAccessMask: srcAccess, DstAccessMask: dstAccess}
		vk.CmdPipelineBarrier(cb, srcStage, dstStage, 0, 1, []vk.MemoryBarrier{mb}, 0, nil, 0, nil)
		return
	}
	ib := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       srcAccess,
		DstAccessMask:       dstAccess,
		OldLayout:           convResourceState(bar.Source),
		NewLayout:           convResourceState(bar.Target),
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               vk.Image(res.image.img),
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     res.image.aspect,
			LevelCount:     uint32(res.image.levels),
			LayerCount:     uint32(res.image.layers),
		},
	}
	vk.CmdPipelineBarrier(cb, srcStage, dstStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{ib})
}

// emitSliceBarrier records an image barrier restricted to one mip
// level and array layer, used for TransitionImageSlices commands that
// bypass the aggregate per-resource state cache entirely.
func emitSliceBarrier(b *Backend, cb vk.CommandBuffer, t cmdstream.SliceTransitionInfo) {
	res, ok := b.resources.get(t.Resource.Raw())
	if !ok || !res.isImage {
		return
	}
	srcAccess, srcStage := stateSyncScope(t.SourceState, t.SourceDeps)
	dstAccess, dstStage := stateSyncScope(t.TargetState, t.TargetDeps)
	ib := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       srcAccess,
		DstAccessMask:       dstAccess,
		OldLayout:           convResourceState(t.SourceState),
		NewLayout:           convResourceState(t.TargetState),
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               vk.Image(res.image.img),
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     res.image.aspect,
			BaseMipLevel:   uint32(t.MipLevel),
			LevelCount:     1,
			BaseArrayLayer: uint32(t.ArraySlice),
			LayerCount:     1,
		},
	}
	vk.CmdPipelineBarrier(cb, srcStage, dstStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{ib})
}

// emitUAVBarrier records an execution barrier ordering
// unordered-access reads/writes to a set of resources against each
// other, without changing any resource's logical state or layout.
func emitUAVBarrier(b *Backend, cb vk.CommandBuffer, resources []gpuhal.ResourceHandle) {
	access := vk.AccessFlags(vk.AccessShaderReadBit | vk.AccessShaderWriteBit)
	stage := vk.PipelineStageFlags(vk.PipelineStageComputeShaderBit | vk.PipelineStageFragmentShaderBit)
	for _, rh := range resources {
		res, ok := b.resources.get(rh.Raw())
		if !ok {
			continue
		}
		if !res.isImage {
			mb := vk.MemoryBarrier{SType: vk.StructureTypeMemoryBarrier, SrcAccessMask: access, DstAccessMask: access}
			vk.CmdPipelineBarrier(cb, stage, stage, 0, 1, []vk.MemoryBarrier{mb}, 0, nil, 0, nil)
			continue
		}
		layout := convResourceState(gpuhal.StateUnorderedAccess)
		ib := vk.ImageMemoryBarrier{
			SType:               vk.StructureTypeImageMemoryBarrier,
			SrcAccessMask:       access,
			DstAccessMask:       access,
			OldLayout:           layout,
			NewLayout:           layout,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               vk.Image(res.image.img),
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: res.image.aspect,
				LevelCount: uint32(res.image.levels),
				LayerCount: uint32(res.image.layers),
			},
		}
		vk.CmdPipelineBarrier(cb, stage, stage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{ib})
	}
}

// cmdTranslator walks one gpuhal command stream and emits the native
// Vulkan calls it describes into cb, tracking per-resource state in
// cache so later submission can reconcile it against the shared
// master-state table.
type cmdTranslator struct {
	b     *Backend
	cb    vk.CommandBuffer
	queue gpuhal.QueueType
	cache *statecache.Cache

	pending       *cmdstream.BeginRenderPass
	renderingOpen bool
}

func (t *cmdTranslator) VisitBeginRenderPass(c cmdstream.BeginRenderPass) {
	cp := c
	t.pending = &cp
}

// openRenderPass lazily opens the native dynamic-rendering scope the
// first time a draw references it; every ResourceView reaching this
// point already carries a resolved resource handle, including
// backbuffer views, which AcquireBackbuffer resolves up front.
func (t *cmdTranslator) openRenderPass() {
	if t.renderingOpen || t.pending == nil {
		return
	}
	p := t.pending
	t.renderingOpen = true

	var colorAttachments []vk.RenderingAttachmentInfo
	for _, rt := range p.RenderTargets {
		view, _, _, err := t.b.imageViewFor(rt.View)
		if err != nil {
			continue
		}
		loadOp := vk.AttachmentLoadOpLoad
		if rt.ClearType == cmdstream.ClearClear {
			loadOp = vk.AttachmentLoadOpClear
		}
		att := vk.RenderingAttachmentInfo{
			SType:       vk.StructureTypeRenderingAttachmentInfo,
			ImageView:   view,
			ImageLayout: vk.ImageLayoutColorAttachmentOptimal,
			LoadOp:      loadOp,
			StoreOp:     vk.AttachmentStoreOpStore,
		}
		var ccv vk.ClearColorValue
		ccv.SetFloat32(rt.ClearValue[:])
		att.ClearValue.SetColor(ccv)
		colorAttachments = append(colorAttachments, att)
	}

	info := vk.RenderingInfo{
		SType:      vk.StructureTypeRenderingInfo,
		RenderArea: vk.Rect2D{Offset: vk.Offset2D{X: p.ViewportOffX, Y: p.ViewportOffY}, Extent: vk.Extent2D{Width: uint32(p.ViewportW), Height: uint32(p.ViewportH)}},
		LayerCount: 1,
		ColorAttachmentCount: uint32(len(colorAttachments)),
		PColorAttachments:    colorAttachments,
	}

	var depthAtt vk.RenderingAttachmentInfo
	if p.HasDepthTarget {
		view, _, _, err := t.b.imageViewFor(p.DepthTarget.View)
		if err == nil {
			loadOp := vk.AttachmentLoadOpLoad
			if p.DepthTarget.ClearType == cmdstream.ClearClear {
				loadOp = vk.AttachmentLoadOpClear
			}
			depthAtt = vk.RenderingAttachmentInfo{
				SType:       vk.StructureTypeRenderingAttachmentInfo,
				ImageView:   view,
				ImageLayout: vk.ImageLayoutDepthStencilAttachmentOptimal,
				LoadOp:      loadOp,
				StoreOp:     vk.AttachmentStoreOpStore,
			}
			depthAtt.ClearValue.SetDepthStencil(vk.ClearDepthStencilValue{
				Depth:   p.DepthTarget.ClearDepth,
				Stencil: uint32(p.DepthTarget.ClearStencil),
			})
			info.PDepthAttachment = &depthAtt
		}
	}

	vk.CmdBeginRendering(t.cb, &info)

	viewport := vk.Viewport{X: float32(p.ViewportOffX), Y: float32(p.ViewportOffY), Width: float32(p.ViewportW), Height: float32(p.ViewportH), MinDepth: 0, MaxDepth: 1}
	vk.CmdSetViewport(t.cb, 0, 1, []vk.Viewport{viewport})
	scissor := vk.Rect2D{Offset: vk.Offset2D{X: p.ViewportOffX, Y: p.ViewportOffY}, Extent: vk.Extent2D{Width: uint32(p.ViewportW), Height: uint32(p.ViewportH)}}
	vk.CmdSetScissor(t.cb, 0, 1, []vk.Rect2D{scissor})
}

func (t *cmdTranslator) VisitEndRenderPass(cmdstream.EndRenderPass) {
	if t.renderingOpen {
		vk.CmdEndRendering(t.cb)
	}
	t.renderingOpen = false
	t.pending = nil
}

func (t *cmdTranslator) VisitTransitionResources(c cmdstream.TransitionResources) {
	for _, tr := range c.Transitions {
		bar, has := t.cache.Transition(tr.Resource, tr.Target, tr.DependentStages)
		if has {
			emitBarrier(t.b, t.cb, tr.Resource, bar)
		}
	}
}

func (t *cmdTranslator) VisitTransitionImageSlices(c cmdstream.TransitionImageSlices) {
	for _, tr := range c.Transitions {
		t.cache.TouchSlice(tr.Resource)
		emitSliceBarrier(t.b, t.cb, tr)
	}
}

func (t *cmdTranslator) VisitBarrierUAV(c cmdstream.BarrierUAV) {
	emitUAVBarrier(t.b, t.cb, c.Resources)
}

// bindShaderArguments binds, per gpuhal.MaxShaderArguments slot, the
// persistent descriptor set of a ShaderView or, for an inline constant
// buffer, a push-descriptor write at the shifted set index that
// buildPipelineLayout reserves for push descriptors.
func (t *cmdTranslator) bindShaderArguments(bindPoint vk.PipelineBindPoint, layout vk.PipelineLayout, args []gpuhal.ShaderArgument) {
	for i, arg := range args {
		if !arg.ShaderView.IsNull() {
			if vr, ok := t.b.views.get(arg.ShaderView.Raw()); ok {
				vk.CmdBindDescriptorSets(t.cb, bindPoint, layout, uint32(i), 1, []vk.DescriptorSet{vr.set}, 0, nil)
			}
		}
		if !arg.ConstantBuffer.IsNull() {
			if res, ok := t.b.resources.get(arg.ConstantBuffer.Raw()); ok && !res.isImage {
				write := vk.WriteDescriptorSet{
					SType:          vk.StructureTypeWriteDescriptorSet,
					DstBinding:     0,
					DescriptorCount: 1,
					DescriptorType: vk.DescriptorTypeUniformBuffer,
					PBufferInfo: []vk.DescriptorBufferInfo{{
						Buffer: vk.Buffer(res.buffer.buf),
						Offset: vk.DeviceSize(arg.ConstantBufferOffset),
						Range:  vk.DeviceSize(vk.WholeSize),
					}},
				}
				vk.CmdPushDescriptorSetKHR(t.cb, bindPoint, layout, uint32(i+gpuhal.MaxShaderArguments), 1, []vk.WriteDescriptorSet{write})
			}
		}
	}
}

func (t *cmdTranslator) pushRootConstants(pipe *pipelineRes, bytes [gpuhal.MaxRootConstantBytes]byte) {
	if !pipe.shaderLayout.PushConstants.Present {
		return
	}
	n := pipe.shaderLayout.PushConstants.Bytes
	if n > len(bytes) {
		n = len(bytes)
	}
	vk.CmdPushConstants(t.cb, pipe.layout, pipe.stages, 0, uint32(n), unsafePtr(&bytes[0]))
}

func (t *cmdTranslator) VisitDraw(c cmdstream.Draw) {
	pipe, ok := t.b.pipes.get(c.PipelineState.Raw())
	if !ok {
		return
	}
	t.openRenderPass()
	vk.CmdBindPipeline(t.cb, vk.PipelineBindPointGraphics, pipe.pipeline)
	t.bindShaderArguments(vk.PipelineBindPointGraphics, pipe.layout, c.ShaderArguments)
	t.pushRootConstants(pipe, c.RootConstants)

	if c.ScissorLeft != -1 {
		scissor := vk.Rect2D{
			Offset: vk.Offset2D{X: c.ScissorLeft, Y: c.ScissorTop},
			Extent: vk.Extent2D{Width: uint32(c.ScissorRight - c.ScissorLeft), Height: uint32(c.ScissorBottom - c.ScissorTop)},
		}
		vk.CmdSetScissor(t.cb, 0, 1, []vk.Rect2D{scissor})
	}

	if !c.VertexBuffer.IsNull() {
		if res, ok := t.b.resources.get(c.VertexBuffer.Raw()); ok && !res.isImage {
			vk.CmdBindVertexBuffers(t.cb, 0, 1, []vk.Buffer{vk.Buffer(res.buffer.buf)}, []vk.DeviceSize{0})
		}
	}
	if !c.IndexBuffer.IsNull() {
		if res, ok := t.b.resources.get(c.IndexBuffer.Raw()); ok && !res.isImage {
			vk.CmdBindIndexBuffer(t.cb, vk.Buffer(res.buffer.buf), 0, vk.IndexTypeUint32)
		}
		vk.CmdDrawIndexed(t.cb, c.NumIndices, 1, c.IndexOffset, int32(c.VertexOffset), 0)
		return
	}
	vk.CmdDraw(t.cb, c.NumIndices, 1, c.VertexOffset, 0)
}

func (t *cmdTranslator) VisitDrawIndirect(c cmdstream.DrawIndirect) {
	pipe, ok := t.b.pipes.get(c.PipelineState.Raw())
	if !ok {
		return
	}
	t.openRenderPass()
	vk.CmdBindPipeline(t.cb, vk.PipelineBindPointGraphics, pipe.pipeline)
	t.bindShaderArguments(vk.PipelineBindPointGraphics, pipe.layout, c.ShaderArguments)
	t.pushRootConstants(pipe, c.RootConstants)

	if !c.VertexBuffer.IsNull() {
		if res, ok := t.b.resources.get(c.VertexBuffer.Raw()); ok && !res.isImage {
			vk.CmdBindVertexBuffers(t.cb, 0, 1, []vk.Buffer{vk.Buffer(res.buffer.buf)}, []vk.DeviceSize{0})
		}
	}
	argRes, ok := t.b.resources.get(c.IndirectArgBuffer.Raw())
	if !ok || argRes.isImage {
		return
	}
	if !c.IndexBuffer.IsNull() {
		if res, ok := t.b.resources.get(c.IndexBuffer.Raw()); ok && !res.isImage {
			vk.CmdBindIndexBuffer(t.cb, vk.Buffer(res.buffer.buf), 0, vk.IndexTypeUint32)
		}
		vk.CmdDrawIndexedIndirect(t.cb, vk.Buffer(argRes.buffer.buf), vk.DeviceSize(c.ArgBufferOffset), c.NumArguments, 20)
		return
	}
	vk.CmdDrawIndirect(t.cb, vk.Buffer(argRes.buffer.buf), vk.DeviceSize(c.ArgBufferOffset), c.NumArguments, 16)
}

func (t *cmdTranslator) VisitDispatch(c cmdstream.Dispatch) {
	pipe, ok := t.b.pipes.get(c.PipelineState.Raw())
	if !ok {
		return
	}
	vk.CmdBindPipeline(t.cb, vk.PipelineBindPointCompute, pipe.pipeline)
	t.bindShaderArguments(vk.PipelineBindPointCompute, pipe.layout, c.ShaderArguments)
	t.pushRootConstants(pipe, c.RootConstants)
	vk.CmdDispatch(t.cb, c.X, c.Y, c.Z)
}

func (t *cmdTranslator) VisitCopyBuffer(c cmdstream.CopyBuffer) {
	src, ok1 := t.b.resources.get(c.Source.Raw())
	dst, ok2 := t.b.resources.get(c.Destination.Raw())
	if !ok1 || !ok2 || src.isImage || dst.isImage {
		return
	}
	region := vk.BufferCopy{SrcOffset: vk.DeviceSize(c.SourceOffset), DstOffset: vk.DeviceSize(c.DestOffset), Size: vk.DeviceSize(c.Size)}
	vk.CmdCopyBuffer(t.cb, vk.Buffer(src.buffer.buf), vk.Buffer(dst.buffer.buf), 1, []vk.BufferCopy{region})
}

func imageSubresource(r *resourceRes, mip, layer, numLayers uint32) vk.ImageSubresourceLayers {
	return vk.ImageSubresourceLayers{AspectMask: r.image.aspect, MipLevel: mip, BaseArrayLayer: layer, LayerCount: numLayers}
}

func (t *cmdTranslator) VisitCopyTexture(c cmdstream.CopyTexture) {
	src, ok1 := t.b.resources.get(c.Source.Raw())
	dst, ok2 := t.b.resources.get(c.Destination.Raw())
	if !ok1 || !ok2 || !src.isImage || !dst.isImage {
		return
	}
	n := c.NumArraySlices
	if n == 0 {
		n = 1
	}
	region := vk.ImageCopy{
		SrcSubresource: imageSubresource(src, c.SrcMipIndex, c.SrcArrayIndex, n),
		DstSubresource: imageSubresource(dst, c.DestMipIndex, c.DestArrayIndex, n),
		Extent:         vk.Extent3D{Width: c.Width, Height: c.Height, Depth: 1},
	}
	vk.CmdCopyImage(t.cb, vk.Image(src.image.img), vk.ImageLayoutTransferSrcOptimal, vk.Image(dst.image.img), vk.ImageLayoutTransferDstOptimal, 1, []vk.ImageCopy{region})
}

func (t *cmdTranslator) VisitCopyBufferToTexture(c cmdstream.CopyBufferToTexture) {
	src, ok1 := t.b.resources.get(c.Source.Raw())
	dst, ok2 := t.b.resources.get(c.Destination.Raw())
	if !ok1 || !ok2 || src.isImage || !dst.isImage {
		return
	}
	region := vk.BufferImageCopy{
		BufferOffset:      vk.DeviceSize(c.SourceOffset),
		ImageSubresource:  imageSubresource(dst, c.DestMipIndex, c.DestArrayIndex, 1),
		ImageExtent:       vk.Extent3D{Width: c.DestWidth, Height: c.DestHeight, Depth: 1},
	}
	vk.CmdCopyBufferToImage(t.cb, vk.Buffer(src.buffer.buf), vk.Image(dst.image.img), vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
}

func (t *cmdTranslator) VisitCopyTextureToBuffer(c cmdstream.CopyTextureToBuffer) {
	src, ok1 := t.b.resources.get(c.Source.Raw())
	dst, ok2 := t.b.resources.get(c.Destination.Raw())
	if !ok1 || !ok2 || !src.isImage || dst.isImage {
		return
	}
	region := vk.BufferImageCopy{
		BufferOffset:      vk.DeviceSize(c.DestOffset),
		ImageSubresource:  imageSubresource(src, c.SrcMipIndex, c.SrcArrayIndex, 1),
		ImageExtent:       vk.Extent3D{Width: c.SrcWidth, Height: c.SrcHeight, Depth: 1},
	}
	vk.CmdCopyImageToBuffer(t.cb, vk.Image(src.image.img), vk.ImageLayoutTransferSrcOptimal, vk.Buffer(dst.buffer.buf), 1, []vk.BufferImageCopy{region})
}

func (t *cmdTranslator) VisitResolveTexture(c cmdstream.ResolveTexture) {
	src, ok1 := t.b.resources.get(c.Source.Raw())
	dst, ok2 := t.b.resources.get(c.Destination.Raw())
	if !ok1 || !ok2 || !src.isImage || !dst.isImage {
		return
	}
	region := vk.ImageResolve{
		SrcSubresource: imageSubresource(src, c.SrcMipIndex, c.SrcArrayIndex, 1),
		DstSubresource: imageSubresource(dst, c.DestMipIndex, c.DestArrayIndex, 1),
		Extent:         vk.Extent3D{Width: c.Width, Height: c.Height, Depth: 1},
	}
	vk.CmdResolveImage(t.cb, vk.Image(src.image.img), vk.ImageLayoutTransferSrcOptimal, vk.Image(dst.image.img), vk.ImageLayoutTransferDstOptimal, 1, []vk.ImageResolve{region})
}

func (t *cmdTranslator) VisitWriteTimestamp(c cmdstream.WriteTimestamp) {
	qr, ok := t.b.queries.get(c.QueryRange.Raw())
	if !ok {
		return
	}
	vk.CmdResetQueryPool(t.cb, qr.pool, c.Index, 1)
	vk.CmdWriteTimestamp(t.cb, vk.PipelineStageBottomOfPipeBit, qr.pool, c.Index)
}

func (t *cmdTranslator) VisitResolveQueries(c cmdstream.ResolveQueries) {
	qr, ok := t.b.queries.get(c.SrcQueryRange.Raw())
	dst, ok2 := t.b.resources.get(c.DestBuffer.Raw())
	if !ok || !ok2 || dst.isImage {
		return
	}
	vk.CmdCopyQueryPoolResults(
		t.cb, qr.pool, c.QueryStart, c.NumQueries, vk.Buffer(dst.buffer.buf),
		vk.DeviceSize(c.DestOffset), 8, vk.QueryResultFlags(vk.QueryResult64Bit|vk.QueryResultWaitBit),
	)
}

func (t *cmdTranslator) VisitBeginDebugLabel(c cmdstream.BeginDebugLabel) {
	label := vk.DebugUtilsLabelEXT{SType: vk.StructureTypeDebugUtilsLabelExt, PLabelName: c.Label}
	vk.CmdBeginDebugUtilsLabelEXT(t.cb, &label)
}

func (t *cmdTranslator) VisitEndDebugLabel(cmdstream.EndDebugLabel) {
	vk.CmdEndDebugUtilsLabelEXT(t.cb)
}

func (t *cmdTranslator) VisitUpdateBottomLevel(c cmdstream.UpdateBottomLevel) {
	t.b.buildAccelStruct(t.cb, c.Dest, c.Source)
}

func (t *cmdTranslator) VisitUpdateTopLevel(c cmdstream.UpdateTopLevel) {
	t.b.buildTopLevel(t.cb, c.Dest, c.SourceBufferInstances, c.SourceBufferOffset, c.NumInstances)
}

func (t *cmdTranslator) VisitDispatchRays(c cmdstream.DispatchRays) {
	pipe, ok := t.b.pipes.get(c.PipelineState.Raw())
	if !ok {
		return
	}
	vk.CmdBindPipeline(t.cb, vk.PipelineBindPointRayTracingKhr, pipe.pipeline)

	bufferRange := func(r cmdstream.BufferRange) vk.StridedDeviceAddressRegionKHR {
		if r.Buffer.IsNull() {
			return vk.StridedDeviceAddressRegionKHR{}
		}
		res, ok := t.b.resources.get(r.Buffer.Raw())
		if !ok || res.isImage {
			return vk.StridedDeviceAddressRegionKHR{}
		}
		addr := t.b.bufferDeviceAddress(res.buffer.buf) + uint64(r.Offset)
		return vk.StridedDeviceAddressRegionKHR{DeviceAddress: addr, Stride: vk.DeviceSize(r.Size), Size: vk.DeviceSize(r.Size)}
	}
	strideRange := func(r cmdstream.BufferRangeAndStride) vk.StridedDeviceAddressRegionKHR {
		if r.Buffer.IsNull() {
			return vk.StridedDeviceAddressRegionKHR{}
		}
		res, ok := t.b.resources.get(r.Buffer.Raw())
		if !ok || res.isImage {
			return vk.StridedDeviceAddressRegionKHR{}
		}
		addr := t.b.bufferDeviceAddress(res.buffer.buf) + uint64(r.Offset)
		return vk.StridedDeviceAddressRegionKHR{DeviceAddress: addr, Stride: vk.DeviceSize(r.Stride), Size: vk.DeviceSize(r.Size)}
	}

	rayGen := bufferRange(c.RayGen)
	miss := strideRange(c.Miss)
	hit := strideRange(c.HitGroups)
	callable := strideRange(c.Callable)
	vk.CmdTraceRaysKHR(t.cb, &rayGen, &miss, &hit, &callable, c.Width, c.Height, c.Depth)
}

func (t *cmdTranslator) VisitClearTextures(c cmdstream.ClearTextures) {
	for _, op := range c.Ops {
		_, _, aspect, err := t.b.imageViewFor(op.View)
		if err != nil {
			continue
		}
		res, ok := t.b.resources.get(op.View.Resource.Raw())
		if !ok {
			continue
		}
		ranges := []vk.ImageSubresourceRange{{
			AspectMask:     aspect,
			BaseMipLevel:   op.View.MipStart,
			LevelCount:     op.View.NumMips,
			BaseArrayLayer: op.View.ArrayStart,
			LayerCount:     op.View.NumArrayLayers,
		}}
		if aspect&vk.ImageAspectFlags(vk.ImageAspectDepthBit) != 0 || aspect&vk.ImageAspectFlags(vk.ImageAspectStencilBit) != 0 {
			val := vk.ClearDepthStencilValue{Depth: op.ClearDepth, Stencil: uint32(op.ClearStencil)}
			vk.CmdClearDepthStencilImage(t.cb, vk.Image(res.image.img), vk.ImageLayoutTransferDstOptimal, &val, 1, ranges)
		} else {
			var val vk.ClearColorValue
			val.SetFloat32(op.ClearValue[:])
			vk.CmdClearColorImage(t.cb, vk.Image(res.image.img), vk.ImageLayoutTransferDstOptimal, &val, 1, ranges)
		}
	}
}

// bundleFor selects the per-thread, per-queue allocator bundle a
// command list should be recorded from.
func (b *Backend) bundleFor(threadID int, queue gpuhal.QueueType) (*alloclife.CommandAllocatorBundle[vk.Fence, vk.CommandPool, vk.CommandBuffer], error) {
	if threadID < 0 || threadID >= len(b.perThread) {
		return nil, fmt.Errorf("vk: invalid thread id %d", threadID)
	}
	pt := b.perThread[threadID]
	switch queue {
	case gpuhal.QueueDirect:
		return pt.Direct, nil
	case gpuhal.QueueCompute:
		return pt.Compute, nil
	case gpuhal.QueueCopy:
		return pt.Copy, nil
	default:
		return nil, fmt.Errorf("vk: invalid queue type %d", queue)
	}
}

// RecordCommandList implements gpuhal.Backend. It translates stream
// into native commands recorded against a command buffer drawn from
// threadID's pool for queue, and keeps the resulting buffer pending
// until Submit or DiscardCommandList consumes it.
func (b *Backend) RecordCommandList(threadID int, queue gpuhal.QueueType, stream []byte) (cl gpuhal.CommandListHandle, err error) {
	bundle, err := b.bundleFor(threadID, queue)
	if err != nil {
		return gpuhal.NullCommandList, err
	}
	cb, alloc := bundle.AcquireMemory()

	beginInfo := vk.CommandBufferBeginInfo{SType: vk.StructureTypeCommandBufferBeginInfo, Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)}
	if res := vk.BeginCommandBuffer(cb, &beginInfo); res != vk.Success {
		return gpuhal.NullCommandList, vkError(res)
	}

	tr := &cmdTranslator{b: b, cb: cb, queue: queue, cache: statecache.New(len(stream) / 32)}
	if perr := parseStream(stream, tr); perr != nil {
		vk.EndCommandBuffer(cb)
		return gpuhal.NullCommandList, perr
	}
	if tr.renderingOpen {
		vk.CmdEndRendering(cb)
	}

	if res := vk.EndCommandBuffer(cb); res != vk.Success {
		return gpuhal.NullCommandList, vkError(res)
	}

	h := b.cmdLists.insert(cmdListRes{cb: cb, alloc: alloc, queue: queue, cache: tr.cache})
	return gpuhal.CommandListFromRaw(h), nil
}

// parseStream runs the cmdstream parser under recover, since Parse
// panics on a truncated or unrecognized stream rather than returning
// an error.
func parseStream(stream []byte, v cmdstream.Visitor) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("vk: malformed command stream: %v", r)
		}
	}()
	cmdstream.Parse(stream, v)
	return nil
}

// DiscardCommandList implements gpuhal.Backend.
func (b *Backend) DiscardCommandList(cl gpuhal.CommandListHandle) {
	r, ok := b.cmdLists.remove(cl.Raw())
	if !ok {
		return
	}
	r.alloc.OnDiscard(1)
}

// Submit implements gpuhal.Backend. Unlike a design that tracks
// present-ownership transfer across queue families, this backend only
// ever acquires and presents backbuffers on the direct queue, so
// submission needs no cross-queue hand-off: it reconciles the
// per-list resource-state caches against the shared master-state
// table, records any implicit barriers that reconciliation requires
// into one transient buffer ahead of the caller's lists, and submits
// everything together signalling fence to value on completion.
func (b *Backend) Submit(queue gpuhal.QueueType, cls []gpuhal.CommandListHandle, fence gpuhal.FenceHandle, value uint64) error {
	if len(cls) == 0 {
		return nil
	}
	fenceRes, ok := b.fences.get(fence.Raw())
	if !ok {
		return gpuhal.ErrInvalidHandle
	}

	lists := make([]*cmdListRes, 0, len(cls))
	for _, cl := range cls {
		r, ok := b.cmdLists.get(cl.Raw())
		if !ok {
			return gpuhal.ErrInvalidHandle
		}
		lists = append(lists, r)
	}

	b.master.Mu.Lock()
	defer b.master.Mu.Unlock()

	var barriers []statecache.Barrier
	for _, r := range lists {
		barriers = append(barriers, b.master.ImplicitBarriers(r.cache)...)
	}

	var cbs []vk.CommandBuffer
	var barrierAlloc *alloclife.CommandAllocator[vk.Fence, vk.CommandPool, vk.CommandBuffer]
	if len(barriers) > 0 {
		bundle, err := b.bundleFor(0, gpuhal.QueueDirect)
		if err != nil {
			return err
		}
		barrierCB, alloc := bundle.AcquireMemory()
		barrierAlloc = alloc
		beginInfo := vk.CommandBufferBeginInfo{SType: vk.StructureTypeCommandBufferBeginInfo, Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)}
		vk.BeginCommandBuffer(barrierCB, &beginInfo)
		for _, bar := range barriers {
			emitBarrier(b, barrierCB, bar.Resource, bar)
		}
		vk.EndCommandBuffer(barrierCB)
		cbs = append(cbs, barrierCB)
	}
	for _, r := range lists {
		cbs = append(cbs, r.cb)
	}

	timelineInfo := vk.TimelineSemaphoreSubmitInfo{
		SType:                     vk.StructureTypeTimelineSemaphoreSubmitInfo,
		SignalSemaphoreValueCount: 1,
		PSignalSemaphoreValues:    []uint64{value},
	}
	submit := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		PNext:                unsafePtr(&timelineInfo),
		CommandBufferCount:   uint32(len(cbs)),
		PCommandBuffers:      cbs,
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{fenceRes.sem},
	}

	b.qmus[queue].Lock()
	res := vk.QueueSubmit(b.ques[queue], 1, []vk.SubmitInfo{submit}, vk.NullFence)
	b.qmus[queue].Unlock()
	if res != vk.Success {
		return vkError(res)
	}

	idx, _ := b.fenceRing.Acquire()
	if barrierAlloc != nil {
		barrierAlloc.OnSubmit(1, idx)
	}
	for _, r := range lists {
		r.alloc.OnSubmit(1, idx)
		b.master.Advance(r.cache)
	}

	for _, cl := range cls {
		b.cmdLists.remove(cl.Raw())
	}
	return nil
}
