//go:build windows

package d3d12

import (
	"fmt"

	"github.com/gogpu/wgpu/hal/dx12/d3d12"
	"github.com/gogpu/wgpu/hal/dx12/dxgi"

	"github.com/gviegas/gpuhal"
	"github.com/gviegas/gpuhal/cmdstream"
	"github.com/gviegas/gpuhal/internal/alloclife"
	"github.com/gviegas/gpuhal/statecache"
)

// allSubresources is D3D12_RESOURCE_BARRIER_ALL_SUBRESOURCES, a
// sentinel this binding does not export as a named constant (see
// pipeline.go's identical use of 0xFFFFFFFF for
// OffsetInDescriptorsFromTableStart).
const allSubresources = 0xFFFFFFFF

// cmdListRes is a recorded command list awaiting submission, paired
// with the allocator it was drawn from (so Submit/DiscardCommandList
// can return it to circulation) and the per-list resource-state cache
// built up while translating its command stream. Mirrors the Vulkan
// backend's cmdListRes (see backend/vk/cmd.go).
type cmdListRes struct {
	cb    *d3d12.ID3D12GraphicsCommandList
	alloc *alloclife.CommandAllocator[*d3d12.ID3D12Fence, *d3d12.ID3D12CommandAllocator, *d3d12.ID3D12GraphicsCommandList]
	queue gpuhal.QueueType
	cache *statecache.Cache
}

// emitBarrier records a transition barrier for a resource that does
// not target a specific subresource.
func emitBarrier(b *Backend, cb *d3d12.ID3D12GraphicsCommandList, resH gpuhal.ResourceHandle, bar statecache.Barrier) {
	res, ok := b.resources.get(resH.Raw())
	if !ok {
		return
	}
	native := res.buffer.res
	if res.isTexture {
		native = res.texture.res
	}
	tb := d3d12.NewTransitionBarrier(native, stateOf(bar.Source), stateOf(bar.Target), allSubresources)
	cb.ResourceBarrier(1, &tb)
}

// emitSliceBarrier records a transition barrier restricted to one
// subresource index, used for TransitionImageSlices commands that
// bypass the aggregate per-resource state cache entirely.
func emitSliceBarrier(b *Backend, cb *d3d12.ID3D12GraphicsCommandList, t cmdstream.SliceTransitionInfo) {
	res, ok := b.resources.get(t.Resource.Raw())
	if !ok || !res.isTexture {
		return
	}
	levels := res.texture.levels
	if levels == 0 {
		levels = 1
	}
	subresource := uint32(t.ArraySlice)*uint32(levels) + uint32(t.MipLevel)
	tb := d3d12.NewTransitionBarrier(res.texture.res, stateOf(t.SourceState), stateOf(t.TargetState), subresource)
	cb.ResourceBarrier(1, &tb)
}

// emitUAVBarrier records execution barriers ordering unordered-access
// reads/writes to a set of resources against each other, without
// changing any resource's logical state.
func emitUAVBarrier(b *Backend, cb *d3d12.ID3D12GraphicsCommandList, resources []gpuhal.ResourceHandle) {
	for _, rh := range resources {
		res, ok := b.resources.get(rh.Raw())
		if !ok {
			continue
		}
		native := res.buffer.res
		if res.isTexture {
			native = res.texture.res
		}
		ub := d3d12.NewUAVBarrier(native)
		cb.ResourceBarrier(1, &ub)
	}
}

// cmdTranslator walks one gpuhal command stream and emits the native
// D3D12 calls it describes into cb, tracking per-resource state in
// cache so later submission can reconcile it against the shared
// master-state table. It embeds cmdstream.BaseVisitor so that
// commands this backend's binding cannot realize (texture copies and
// resolves, queries, raytracing, debug labels — see the honest-
// unavailability notes on query.go and raytracing.go) fall through to
// BaseVisitor's no-op implementations instead of silently
// misbehaving.
type cmdTranslator struct {
	cmdstream.BaseVisitor

	b     *Backend
	cb    *d3d12.ID3D12GraphicsCommandList
	queue gpuhal.QueueType
	cache *statecache.Cache

	pending       *cmdstream.BeginRenderPass
	renderingOpen bool
}

func (t *cmdTranslator) VisitBeginRenderPass(c cmdstream.BeginRenderPass) {
	cp := c
	t.pending = &cp
}

// openRenderPass lazily binds render targets and the viewport/scissor
// the first time a draw references them; every ResourceView reaching
// this point already carries a resolved resource handle, including
// backbuffer views, which AcquireBackbuffer resolves up front.
func (t *cmdTranslator) openRenderPass() {
	if t.renderingOpen || t.pending == nil {
		return
	}
	p := t.pending
	t.renderingOpen = true

	var rtvHandles []d3d12.D3D12_CPU_DESCRIPTOR_HANDLE
	for _, rt := range p.RenderTargets {
		h, err := t.b.renderTargetViewFor(rt.View)
		if err != nil {
			continue
		}
		if rt.ClearType == cmdstream.ClearClear {
			t.cb.ClearRenderTargetView(h, &rt.ClearValue, 0, nil)
		}
		rtvHandles = append(rtvHandles, h)
	}

	var dsvHandle d3d12.D3D12_CPU_DESCRIPTOR_HANDLE
	var dsvPtr *d3d12.D3D12_CPU_DESCRIPTOR_HANDLE
	if p.HasDepthTarget {
		if h, err := t.b.depthStencilViewFor(p.DepthTarget.View); err == nil {
			dsvHandle = h
			dsvPtr = &dsvHandle
			if p.DepthTarget.ClearType == cmdstream.ClearClear {
				t.cb.ClearDepthStencilView(h, d3d12.D3D12_CLEAR_FLAG_DEPTH|d3d12.D3D12_CLEAR_FLAG_STENCIL,
					p.DepthTarget.ClearDepth, p.DepthTarget.ClearStencil, 0, nil)
			}
		}
	}

	var rtvPtr *d3d12.D3D12_CPU_DESCRIPTOR_HANDLE
	if len(rtvHandles) > 0 {
		rtvPtr = &rtvHandles[0]
	}
	t.cb.OMSetRenderTargets(uint32(len(rtvHandles)), rtvPtr, 0, dsvPtr)

	viewport := d3d12.D3D12_VIEWPORT{
		TopLeftX: float32(p.ViewportOffX), TopLeftY: float32(p.ViewportOffY),
		Width: float32(p.ViewportW), Height: float32(p.ViewportH),
		MinDepth: 0, MaxDepth: 1,
	}
	t.cb.RSSetViewports(1, &viewport)
	scissor := d3d12.D3D12_RECT{
		Left: p.ViewportOffX, Top: p.ViewportOffY,
		Right: p.ViewportOffX + p.ViewportW, Bottom: p.ViewportOffY + p.ViewportH,
	}
	t.cb.RSSetScissorRects(1, &scissor)
}

func (t *cmdTranslator) VisitEndRenderPass(cmdstream.EndRenderPass) {
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

// bindShaderArguments binds, per group with a reflected SRV/UAV table,
// the caller's persistent ShaderView heap range, and, per group with a
// reflected CBV, a fresh CreateConstantBufferView write into the
// group's dedicated scratch slot (see Backend.dynamicCBVBase and
// groupRootMapping in pipeline.go).
func (t *cmdTranslator) bindShaderArguments(isCompute bool, mappings []groupRootMapping, args []gpuhal.ShaderArgument) {
	for i, arg := range args {
		if i >= len(mappings) {
			break
		}
		m := mappings[i]
		if m.tableIndex >= 0 && !arg.ShaderView.IsNull() {
			if vr, ok := t.b.views.get(arg.ShaderView.Raw()); ok {
				gpu := t.b.cbvSrvUavHeap.gpuHandle(vr.base)
				if isCompute {
					t.cb.SetComputeRootDescriptorTable(uint32(m.tableIndex), gpu)
				} else {
					t.cb.SetGraphicsRootDescriptorTable(uint32(m.tableIndex), gpu)
				}
			}
		}
		if m.cbvTableIndex >= 0 && !arg.ConstantBuffer.IsNull() {
			if res, ok := t.b.resources.get(arg.ConstantBuffer.Raw()); ok && !res.isTexture {
				slot := t.b.dynamicCBVBase + i
				desc := d3d12.D3D12_CONSTANT_BUFFER_VIEW_DESC{
					BufferLocation: res.buffer.res.GetGPUVirtualAddress() + uint64(arg.ConstantBufferOffset),
					SizeInBytes:    alignUp(uint32(res.buffer.size), 256),
				}
				cpu := t.b.cbvSrvUavHeap.cpuHandle(slot)
				t.b.dev.CreateConstantBufferView(&desc, cpu)
				gpu := t.b.cbvSrvUavHeap.gpuHandle(slot)
				if isCompute {
					t.cb.SetComputeRootDescriptorTable(uint32(m.cbvTableIndex), gpu)
				} else {
					t.cb.SetGraphicsRootDescriptorTable(uint32(m.cbvTableIndex), gpu)
				}
			}
		}
	}
}

func alignUp(v, align uint32) uint32 {
	return (v + align - 1) &^ (align - 1)
}

// pushRootConstants is a no-op on this backend: buildRootSignature
// never realizes layout.PushConstants, since the command list binding
// this backend is built against exposes no
// SetGraphicsRoot32BitConstants/SetComputeRoot32BitConstants entry
// point (see the doc comment on buildRootSignature in pipeline.go).

func (t *cmdTranslator) VisitDraw(c cmdstream.Draw) {
	pipe, ok := t.b.pipes.get(c.PipelineState.Raw())
	if !ok {
		return
	}
	t.openRenderPass()
	t.cb.SetGraphicsRootSignature(pipe.rootSig)
	t.cb.SetPipelineState(pipe.pso)
	t.cb.IASetPrimitiveTopology(pipe.topology)
	t.bindShaderArguments(false, pipe.groupMappings, c.ShaderArguments)

	if c.ScissorLeft != -1 {
		scissor := d3d12.D3D12_RECT{Left: c.ScissorLeft, Top: c.ScissorTop, Right: c.ScissorRight, Bottom: c.ScissorBottom}
		t.cb.RSSetScissorRects(1, &scissor)
	}

	if !c.VertexBuffer.IsNull() {
		if res, ok := t.b.resources.get(c.VertexBuffer.Raw()); ok && !res.isTexture {
			vbv := d3d12.D3D12_VERTEX_BUFFER_VIEW{
				BufferLocation: res.buffer.res.GetGPUVirtualAddress(),
				SizeInBytes:    uint32(res.buffer.size),
			}
			t.cb.IASetVertexBuffers(0, 1, &vbv)
		}
	}
	if !c.IndexBuffer.IsNull() {
		if res, ok := t.b.resources.get(c.IndexBuffer.Raw()); ok && !res.isTexture {
			ibv := d3d12.D3D12_INDEX_BUFFER_VIEW{
				BufferLocation: res.buffer.res.GetGPUVirtualAddress(),
				SizeInBytes:    uint32(res.buffer.size),
				Format:         dxgi.DXGI_FORMAT_R32_UINT,
			}
			t.cb.IASetIndexBuffer(&ibv)
		}
		t.cb.DrawIndexedInstanced(c.NumIndices, 1, c.IndexOffset, int32(c.VertexOffset), 0)
		return
	}
	t.cb.DrawInstanced(c.NumIndices, 1, c.VertexOffset, 0)
}

// VisitDrawIndirect is unavailable on this backend: indirect execution
// requires ID3D12GraphicsCommandList::ExecuteIndirect, which the
// command list binding this backend is built against does not expose.
// Falls through to BaseVisitor's no-op, the same honest-unavailability
// treatment raytracing.go and query.go give capabilities this binding
// cannot reach.

func (t *cmdTranslator) VisitDispatch(c cmdstream.Dispatch) {
	pipe, ok := t.b.pipes.get(c.PipelineState.Raw())
	if !ok {
		return
	}
	t.cb.SetComputeRootSignature(pipe.rootSig)
	t.cb.SetPipelineState(pipe.pso)
	t.bindShaderArguments(true, pipe.groupMappings, c.ShaderArguments)
	t.cb.Dispatch(c.X, c.Y, c.Z)
}

func (t *cmdTranslator) VisitCopyBuffer(c cmdstream.CopyBuffer) {
	src, ok1 := t.b.resources.get(c.Source.Raw())
	dst, ok2 := t.b.resources.get(c.Destination.Raw())
	if !ok1 || !ok2 || src.isTexture || dst.isTexture {
		return
	}
	t.cb.CopyBufferRegion(dst.buffer.res, c.DestOffset, src.buffer.res, c.SourceOffset, c.Size)
}

// VisitCopyTexture, VisitCopyBufferToTexture, VisitCopyTextureToBuffer
// and VisitResolveTexture are unavailable on this backend:
// ID3D12GraphicsCommandList::CopyTextureRegion and ::ResolveSubresource
// are the native entry points these commands need, and the command
// list binding this backend is built against
// (github.com/gogpu/wgpu/hal/dx12/d3d12) exposes only CopyResource
// (whole-resource, no subresource or region selection) and
// CopyBufferRegion. Substituting CopyResource would silently ignore
// the mip/array/region fields these commands carry, so they fall
// through to BaseVisitor's no-op instead, the same honest-
// unavailability treatment raytracing.go and query.go give.

func (t *cmdTranslator) VisitClearTextures(c cmdstream.ClearTextures) {
	for _, op := range c.Ops {
		res, ok := t.b.resources.get(op.View.Resource.Raw())
		if !ok || !res.isTexture {
			continue
		}
		if res.texture.depthStc {
			h, err := t.b.depthStencilViewFor(op.View)
			if err != nil {
				continue
			}
			t.cb.ClearDepthStencilView(h, d3d12.D3D12_CLEAR_FLAG_DEPTH|d3d12.D3D12_CLEAR_FLAG_STENCIL, op.ClearDepth, op.ClearStencil, 0, nil)
			continue
		}
		h, err := t.b.renderTargetViewFor(op.View)
		if err != nil {
			continue
		}
		cv := op.ClearValue
		t.cb.ClearRenderTargetView(h, &cv, 0, nil)
	}
}

// bundleFor selects the per-thread, per-queue allocator bundle a
// command list should be recorded from.
func (b *Backend) bundleFor(threadID int, queue gpuhal.QueueType) (*alloclife.CommandAllocatorBundle[*d3d12.ID3D12Fence, *d3d12.ID3D12CommandAllocator, *d3d12.ID3D12GraphicsCommandList], error) {
	if threadID < 0 || threadID >= len(b.perThread) {
		return nil, fmt.Errorf("d3d12: invalid thread id %d", threadID)
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
		return nil, fmt.Errorf("d3d12: invalid queue type %d", queue)
	}
}

// RecordCommandList implements gpuhal.Backend. It translates stream
// into native commands recorded against a command list drawn from
// threadID's pool for queue, and keeps the resulting list pending
// until Submit or DiscardCommandList consumes it. Unlike the Vulkan
// backend, a list handed out by AcquireMemory is already closed (see
// init.go's nativeOps, whose AllocateCmdBuffer calls Close right after
// CreateCommandList), so recording has to Reset it against its own
// allocator before issuing anything else.
func (b *Backend) RecordCommandList(threadID int, queue gpuhal.QueueType, stream []byte) (cl gpuhal.CommandListHandle, err error) {
	bundle, err := b.bundleFor(threadID, queue)
	if err != nil {
		return gpuhal.NullCommandList, err
	}
	cb, alloc := bundle.AcquireMemory()

	if err := cb.Reset(alloc.Native(), nil); err != nil {
		return gpuhal.NullCommandList, fmt.Errorf("d3d12: Reset: %w", err)
	}

	heap := b.cbvSrvUavHeap.heap
	cb.SetDescriptorHeaps(1, &heap)

	tr := &cmdTranslator{b: b, cb: cb, queue: queue, cache: statecache.New(len(stream) / 32)}
	if perr := parseStream(stream, tr); perr != nil {
		cb.Close()
		return gpuhal.NullCommandList, perr
	}

	if err := cb.Close(); err != nil {
		return gpuhal.NullCommandList, fmt.Errorf("d3d12: Close: %w", err)
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
			err = fmt.Errorf("d3d12: malformed command stream: %v", r)
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

// Submit implements gpuhal.Backend. Mirrors the Vulkan backend's
// Submit (see backend/vk/cmd.go): it reconciles the per-list
// resource-state caches against the shared master-state table,
// records any implicit barriers that reconciliation requires into one
// transient list ahead of the caller's lists, and submits everything
// together signalling fence to value on completion.
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

	var cmdLists []*d3d12.ID3D12GraphicsCommandList
	var barrierAlloc *alloclife.CommandAllocator[*d3d12.ID3D12Fence, *d3d12.ID3D12CommandAllocator, *d3d12.ID3D12GraphicsCommandList]
	if len(barriers) > 0 {
		bundle, err := b.bundleFor(0, gpuhal.QueueDirect)
		if err != nil {
			return err
		}
		barrierCB, alloc := bundle.AcquireMemory()
		barrierAlloc = alloc
		if err := barrierCB.Reset(alloc.Native(), nil); err != nil {
			return fmt.Errorf("d3d12: Reset (barrier list): %w", err)
		}
		for _, bar := range barriers {
			emitBarrier(b, barrierCB, bar.Resource, bar)
		}
		if err := barrierCB.Close(); err != nil {
			return fmt.Errorf("d3d12: Close (barrier list): %w", err)
		}
		cmdLists = append(cmdLists, barrierCB)
	}
	for _, r := range lists {
		cmdLists = append(cmdLists, r.cb)
	}

	b.qmus[queue].Lock()
	q := b.ques[queue]
	q.ExecuteCommandLists(uint32(len(cmdLists)), &cmdLists[0])
	err := q.Signal(fenceRes.fence, value)
	b.qmus[queue].Unlock()
	if err != nil {
		return fmt.Errorf("d3d12: Signal: %w", err)
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
