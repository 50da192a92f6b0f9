package cmdstream

import "fmt"

// Visitor receives one call per decoded command, in stream order.
// Implementations only need to handle the variants they care about;
// package statecache and the two backend translators each implement
// their own Visitor.
type Visitor interface {
	VisitBeginRenderPass(BeginRenderPass)
	VisitEndRenderPass(EndRenderPass)
	VisitTransitionResources(TransitionResources)
	VisitTransitionImageSlices(TransitionImageSlices)
	VisitBarrierUAV(BarrierUAV)
	VisitDraw(Draw)
	VisitDrawIndirect(DrawIndirect)
	VisitDispatch(Dispatch)
	VisitCopyBuffer(CopyBuffer)
	VisitCopyTexture(CopyTexture)
	VisitCopyBufferToTexture(CopyBufferToTexture)
	VisitCopyTextureToBuffer(CopyTextureToBuffer)
	VisitResolveTexture(ResolveTexture)
	VisitWriteTimestamp(WriteTimestamp)
	VisitResolveQueries(ResolveQueries)
	VisitBeginDebugLabel(BeginDebugLabel)
	VisitEndDebugLabel(EndDebugLabel)
	VisitUpdateBottomLevel(UpdateBottomLevel)
	VisitUpdateTopLevel(UpdateTopLevel)
	VisitDispatchRays(DispatchRays)
	VisitClearTextures(ClearTextures)
}

// Parse decodes every record in stream and dispatches it to v, in
// order, until the stream is exhausted. It panics if stream ends in
// the middle of a record or names an unrecognized tag — both are
// command-stream decode mismatches, a fatal contract violation.
func Parse(stream []byte, v Visitor) {
	off := 0
	for off < len(stream) {
		tag := Tag(stream[off])
		switch tag {
		case TagBeginRenderPass:
			c := decodeBeginRenderPass(stream[off:])
			v.VisitBeginRenderPass(c)
			off += c.Size()
		case TagEndRenderPass:
			c := decodeEndRenderPass(stream[off:])
			v.VisitEndRenderPass(c)
			off += c.Size()
		case TagTransitionResources:
			c := decodeTransitionResources(stream[off:])
			v.VisitTransitionResources(c)
			off += c.Size()
		case TagTransitionImageSlices:
			c := decodeTransitionImageSlices(stream[off:])
			v.VisitTransitionImageSlices(c)
			off += c.Size()
		case TagBarrierUAV:
			c := decodeBarrierUAV(stream[off:])
			v.VisitBarrierUAV(c)
			off += c.Size()
		case TagDraw:
			c := decodeDraw(stream[off:])
			v.VisitDraw(c)
			off += c.Size()
		case TagDrawIndirect:
			c := decodeDrawIndirect(stream[off:])
			v.VisitDrawIndirect(c)
			off += c.Size()
		case TagDispatch:
			c := decodeDispatch(stream[off:])
			v.VisitDispatch(c)
			off += c.Size()
		case TagCopyBuffer:
			c := decodeCopyBuffer(stream[off:])
			v.VisitCopyBuffer(c)
			off += c.Size()
		case TagCopyTexture:
			c := decodeCopyTexture(stream[off:])
			v.VisitCopyTexture(c)
			off += c.Size()
		case TagCopyBufferToTexture:
			c := decodeCopyBufferToTexture(stream[off:])
			v.VisitCopyBufferToTexture(c)
			off += c.Size()
		case TagCopyTextureToBuffer:
			c := decodeCopyTextureToBuffer(stream[off:])
			v.VisitCopyTextureToBuffer(c)
			off += c.Size()
		case TagResolveTexture:
			c := decodeResolveTexture(stream[off:])
			v.VisitResolveTexture(c)
			off += c.Size()
		case TagWriteTimestamp:
			c := decodeWriteTimestamp(stream[off:])
			v.VisitWriteTimestamp(c)
			off += c.Size()
		case TagResolveQueries:
			c := decodeResolveQueries(stream[off:])
			v.VisitResolveQueries(c)
			off += c.Size()
		case TagBeginDebugLabel:
			c := decodeBeginDebugLabel(stream[off:])
			v.VisitBeginDebugLabel(c)
			off += c.Size()
		case TagEndDebugLabel:
			c := decodeEndDebugLabel(stream[off:])
			v.VisitEndDebugLabel(c)
			off += c.Size()
		case TagUpdateBottomLevel:
			c := decodeUpdateBottomLevel(stream[off:])
			v.VisitUpdateBottomLevel(c)
			off += c.Size()
		case TagUpdateTopLevel:
			c := decodeUpdateTopLevel(stream[off:])
			v.VisitUpdateTopLevel(c)
			off += c.Size()
		case TagDispatchRays:
			c := decodeDispatchRays(stream[off:])
			v.VisitDispatchRays(c)
			off += c.Size()
		case TagClearTextures:
			c := decodeClearTextures(stream[off:])
			v.VisitClearTextures(c)
			off += c.Size()
		default:
			panic(fmt.Sprintf("cmdstream: unrecognized tag %d at offset %d", tag, off))
		}
	}
}

// BaseVisitor implements Visitor with no-op methods, so callers that
// only care about a handful of variants can embed it and override
// just those.
type BaseVisitor struct{}

func (BaseVisitor) VisitBeginRenderPass(BeginRenderPass)             {}
func (BaseVisitor) VisitEndRenderPass(EndRenderPass)                 {}
func (BaseVisitor) VisitTransitionResources(TransitionResources)     {}
func (BaseVisitor) VisitTransitionImageSlices(TransitionImageSlices) {}
func (BaseVisitor) VisitBarrierUAV(BarrierUAV)                       {}
func (BaseVisitor) VisitDraw(Draw)                                   {}
func (BaseVisitor) VisitDrawIndirect(DrawIndirect)                   {}
func (BaseVisitor) VisitDispatch(Dispatch)                           {}
func (BaseVisitor) VisitCopyBuffer(CopyBuffer)                       {}
func (BaseVisitor) VisitCopyTexture(CopyTexture)                     {}
func (BaseVisitor) VisitCopyBufferToTexture(CopyBufferToTexture)     {}
func (BaseVisitor) VisitCopyTextureToBuffer(CopyTextureToBuffer)     {}
func (BaseVisitor) VisitResolveTexture(ResolveTexture)               {}
func (BaseVisitor) VisitWriteTimestamp(WriteTimestamp)               {}
func (BaseVisitor) VisitResolveQueries(ResolveQueries)               {}
func (BaseVisitor) VisitBeginDebugLabel(BeginDebugLabel)             {}
func (BaseVisitor) VisitEndDebugLabel(EndDebugLabel)                 {}
func (BaseVisitor) VisitUpdateBottomLevel(UpdateBottomLevel)         {}
func (BaseVisitor) VisitUpdateTopLevel(UpdateTopLevel)               {}
func (BaseVisitor) VisitDispatchRays(DispatchRays)                   {}
func (BaseVisitor) VisitClearTextures(ClearTextures)                 {}
