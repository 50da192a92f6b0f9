package vk

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/gviegas/gpuhal"
)

// accelStructRes is a built BLAS or TLAS together with the buffer
// backing it and its build scratch memory; both are kept for the
// structure's lifetime, so later builds reuse them, and are freed
// alongside the structure.
type accelStructRes struct {
	accel  vk.AccelerationStructureKHR
	buf    vk.Buffer
	mem    vk.DeviceMemory
	scratchBuf vk.Buffer
	scratchMem vk.DeviceMemory
	scratchAddr uint64
	deviceAddr uint64
	isTLAS bool

	// buildInfo and ranges are retained from the initial build so that
	// an in-command-list UpdateBottomLevel/UpdateTopLevel can reissue
	// vkCmdBuildAccelerationStructuresKHR against the same geometry,
	// either rebuilding from scratch or updating in place against a
	// source structure (see cmd.go's accel-struct visitors). The
	// update-mode scratch requirement is bounded by the build-mode one
	// (see VkAccelerationStructureBuildSizesInfoKHR), so the scratch
	// buffer sized for the initial build is reused rather than sized
	// again.
	buildInfo vk.AccelerationStructureBuildGeometryInfoKHR
	ranges    []vk.AccelerationStructureBuildRangeInfoKHR

	// instBuf/instMem/instMapped back a TLAS's native-layout instance
	// array; unlike a BLAS's vertex/index buffers, which are
	// caller-owned and outlive the structure, a TLAS's instance data is
	// re-encoded by this backend from gpuhal.AccelStructInstance
	// records on every build/update, so the backend owns this buffer
	// for the structure's lifetime instead of discarding it after the
	// first build. instCap is the number of instance records it was
	// sized for; unused (instCap == 0) for a BLAS.
	instBuf    vk.Buffer
	instMem    vk.DeviceMemory
	instMapped unsafe.Pointer
	instCap    int
}

func (b *Backend) bufferDeviceAddress(buf vk.Buffer) uint64 {
	info := vk.BufferDeviceAddressInfo{SType: vk.StructureTypeBufferDeviceAddressInfo, Buffer: buf}
	return vk.GetBufferDeviceAddress(b.dev, &info)
}

func (b *Backend) allocScratchBuffer(size uint64) (vk.Buffer, vk.DeviceMemory, uint64, error) {
	align := uint64(b.rtASProps.MinAccelerationStructureScratchOffsetAlignment)
	if align == 0 {
		align = 256
	}
	size = (size + align - 1) &^ (align - 1)
	info := vk.BufferCreateInfo{
		SType: vk.StructureTypeBufferCreateInfo,
		Size:  vk.DeviceSize(size),
		Usage: vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit | vk.BufferUsageShaderDeviceAddressBit),
	}
	var buf vk.Buffer
	if res := vk.CreateBuffer(b.dev, &info, nil, &buf); res != vk.Success {
		return 0, 0, 0, vkError(res)
	}
	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(b.dev, buf, &req)
	req.Deref()
	memType, err := b.findMemoryType(req.MemoryTypeBits, false)
	if err != nil {
		vk.DestroyBuffer(b.dev, buf, nil)
		return 0, 0, 0, err
	}
	flagsInfo := vk.MemoryAllocateFlagsInfo{SType: vk.StructureTypeMemoryAllocateFlagsInfo, Flags: vk.MemoryAllocateFlags(vk.MemoryAllocateDeviceAddressBit)}
	allocInfo := vk.MemoryAllocateInfo{SType: vk.StructureTypeMemoryAllocateInfo, PNext: unsafePtr(&flagsInfo), AllocationSize: req.Size, MemoryTypeIndex: memType}
	var mem vk.DeviceMemory
	if res := vk.AllocateMemory(b.dev, &allocInfo, nil, &mem); res != vk.Success {
		vk.DestroyBuffer(b.dev, buf, nil)
		return 0, 0, 0, vkError(res)
	}
	vk.BindBufferMemory(b.dev, buf, mem, 0)
	return buf, mem, b.bufferDeviceAddress(buf), nil
}

// CreateBottomLevelAccelStruct implements gpuhal.Backend.
func (b *Backend) CreateBottomLevelAccelStruct(geom []gpuhal.RaytracingGeometry) (gpuhal.AccelStructHandle, error) {
	if !b.raytracingEnabled {
		return gpuhal.NullAccelStruct, gpuhal.ErrRaytracingUnavailable
	}
	geoms := make([]vk.AccelerationStructureGeometryKHR, len(geom))
	ranges := make([]vk.AccelerationStructureBuildRangeInfoKHR, len(geom))
	maxPrims := make([]uint32, len(geom))
	for i, g := range geom {
		vtxRes, ok := b.resources.get(g.VertexBuffer.Raw())
		if !ok {
			return gpuhal.NullAccelStruct, gpuhal.ErrInvalidHandle
		}
		idxRes, ok := b.resources.get(g.IndexBuffer.Raw())
		if !ok {
			return gpuhal.NullAccelStruct, gpuhal.ErrInvalidHandle
		}
		flags := vk.GeometryFlagsKhr(0)
		if g.Opaque {
			flags = vk.GeometryFlagsKhr(vk.GeometryOpaqueBitKhr)
		}
		geoms[i] = vk.AccelerationStructureGeometryKHR{
			SType:       vk.StructureTypeAccelerationStructureGeometryKhr,
			GeometryType: vk.GeometryTypeTrianglesKhr,
			Flags:       flags,
		}
		tris := vk.AccelerationStructureGeometryTrianglesDataKHR{
			SType:         vk.StructureTypeAccelerationStructureGeometryTrianglesDataKhr,
			VertexFormat:  convVertexFormat(g.VertexFormat),
			VertexData:    vk.DeviceOrHostAddressConstKHR{DeviceAddress: b.bufferDeviceAddress(vtxRes.buffer.buf)},
			VertexStride:  vk.DeviceSize(g.VertexStride),
			MaxVertex:     uint32(g.NumVertices - 1),
			IndexType:     indexTypeOf(g.IndexFormat),
			IndexData:     vk.DeviceOrHostAddressConstKHR{DeviceAddress: b.bufferDeviceAddress(idxRes.buffer.buf)},
		}
		geoms[i].Geometry.SetTriangles(tris)
		numTriangles := uint32(g.NumIndices / 3)
		maxPrims[i] = numTriangles
		ranges[i] = vk.AccelerationStructureBuildRangeInfoKHR{PrimitiveCount: numTriangles}
	}

	buildInfo := vk.AccelerationStructureBuildGeometryInfoKHR{
		SType:        vk.StructureTypeAccelerationStructureBuildGeometryInfoKhr,
		Type:         vk.AccelerationStructureTypeBottomLevelKhr,
		Flags:        vk.BuildAccelerationStructureFlagsKhr(vk.BuildAccelerationStructurePreferFastTraceBitKhr),
		Mode:         vk.BuildAccelerationStructureModeBuildKhr,
		GeometryCount: uint32(len(geoms)),
		PGeometries:  geoms,
	}
	var sizeInfo vk.AccelerationStructureBuildSizesInfoKHR
	sizeInfo.SType = vk.StructureTypeAccelerationStructureBuildSizesInfoKhr
	vk.GetAccelerationStructureBuildSizesKHR(b.dev, vk.AccelerationStructureBuildTypeDeviceKhr, &buildInfo, maxPrims, &sizeInfo)

	return b.finishAccelStructBuild(buildInfo, sizeInfo, ranges, vk.AccelerationStructureTypeBottomLevelKhr, false)
}

// encodeInstances reads numInstances AccelStructInstance.Pack()'d
// records starting at byte offset srcOffset of srcBuf and re-encodes
// them into dst using Vulkan's native VkAccelerationStructureInstanceKHR
// layout, which needs a bottom-level structure's device address rather
// than its pool handle.
func (b *Backend) encodeInstances(dst []byte, srcBuf gpuhal.ResourceHandle, srcOffset, numInstances int) error {
	srcRes, ok := b.resources.get(srcBuf.Raw())
	if !ok || srcRes.isImage || srcRes.buffer.mapped == nil {
		return gpuhal.ErrInvalidHandle
	}
	base := unsafe.Add(srcRes.buffer.mapped, srcOffset)
	src := unsafe.Slice((*byte)(base), numInstances*gpuhal.InstanceRecordSize)
	for i := 0; i < numInstances; i++ {
		var rec [gpuhal.InstanceRecordSize]byte
		copy(rec[:], src[i*gpuhal.InstanceRecordSize:(i+1)*gpuhal.InstanceRecordSize])
		in := gpuhal.UnpackAccelStructInstance(rec)
		blas, ok := b.accels.get(in.BottomLevel.Raw())
		if !ok {
			return fmt.Errorf("vk: instance %d references unknown bottom-level structure", i)
		}
		out := dst[i*64 : (i+1)*64]
		off := 0
		for r := 0; r < 3; r++ {
			for c := 0; c < 4; c++ {
				binary.LittleEndian.PutUint32(out[off:], floatBitsOf(in.Transform[r][c]))
				off += 4
			}
		}
		binary.LittleEndian.PutUint32(out[off:], (in.InstanceID&0xFFFFFF)|(uint32(in.VisibilityMask)<<24))
		off += 4
		binary.LittleEndian.PutUint32(out[off:], (in.HitGroupIndex&0xFFFFFF)|(uint32(in.Flags)<<24))
		off += 4
		binary.LittleEndian.PutUint64(out[off:], blas.deviceAddr)
	}
	return nil
}

// allocHostVisibleBuffer allocates a host-visible, host-coherent,
// mapped buffer with a device address, for data this backend writes
// from the CPU and reads on the GPU (e.g. a TLAS's native instance
// array). Unlike allocScratchBuffer, which backs device-local-only
// scratch memory, the returned memory stays mapped for the buffer's
// lifetime.
func (b *Backend) allocHostVisibleBuffer(size uint64, usage vk.BufferUsageFlagBits) (vk.Buffer, vk.DeviceMemory, unsafe.Pointer, uint64, error) {
	info := vk.BufferCreateInfo{
		SType: vk.StructureTypeBufferCreateInfo,
		Size:  vk.DeviceSize(size),
		Usage: vk.BufferUsageFlags(usage | vk.BufferUsageShaderDeviceAddressBit),
	}
	var buf vk.Buffer
	if res := vk.CreateBuffer(b.dev, &info, nil, &buf); res != vk.Success {
		return 0, 0, nil, 0, vkError(res)
	}
	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(b.dev, buf, &req)
	req.Deref()
	memType, err := b.findMemoryType(req.MemoryTypeBits, true)
	if err != nil {
		vk.DestroyBuffer(b.dev, buf, nil)
		return 0, 0, nil, 0, err
	}
	flagsInfo := vk.MemoryAllocateFlagsInfo{SType: vk.StructureTypeMemoryAllocateFlagsInfo, Flags: vk.MemoryAllocateFlags(vk.MemoryAllocateDeviceAddressBit)}
	allocInfo := vk.MemoryAllocateInfo{SType: vk.StructureTypeMemoryAllocateInfo, PNext: unsafePtr(&flagsInfo), AllocationSize: req.Size, MemoryTypeIndex: memType}
	var mem vk.DeviceMemory
	if res := vk.AllocateMemory(b.dev, &allocInfo, nil, &mem); res != vk.Success {
		vk.DestroyBuffer(b.dev, buf, nil)
		return 0, 0, nil, 0, vkError(res)
	}
	vk.BindBufferMemory(b.dev, buf, mem, 0)
	var mapped unsafe.Pointer
	if res := vk.MapMemory(b.dev, mem, 0, vk.DeviceSize(size), 0, &mapped); res != vk.Success {
		vk.FreeMemory(b.dev, mem, nil)
		vk.DestroyBuffer(b.dev, buf, nil)
		return 0, 0, nil, 0, vkError(res)
	}
	return buf, mem, mapped, b.bufferDeviceAddress(buf), nil
}

// CreateTopLevelAccelStruct implements gpuhal.Backend. The instance
// buffer must already hold AccelStructInstance.Pack()'d records; each
// is re-encoded into Vulkan's native instance layout into a backend-
// owned buffer retained for the structure's lifetime, so that a later
// UpdateTopLevel command can re-encode into it and rebuild the
// structure without reallocating it (see cmd.go).
func (b *Backend) CreateTopLevelAccelStruct(instances gpuhal.ResourceHandle, numInstances int) (gpuhal.AccelStructHandle, error) {
	if !b.raytracingEnabled {
		return gpuhal.NullAccelStruct, gpuhal.ErrRaytracingUnavailable
	}
	instBuf, instMem, instMapped, instAddr, err := b.allocHostVisibleBuffer(
		uint64(numInstances*64),
		vk.BufferUsageAccelerationStructureBuildInputReadOnlyBitKhr,
	)
	if err != nil {
		return gpuhal.NullAccelStruct, err
	}
	if err := b.encodeInstances(unsafe.Slice((*byte)(instMapped), numInstances*64), instances, 0, numInstances); err != nil {
		vk.UnmapMemory(b.dev, instMem)
		vk.DestroyBuffer(b.dev, instBuf, nil)
		vk.FreeMemory(b.dev, instMem, nil)
		return gpuhal.NullAccelStruct, err
	}

	geom := vk.AccelerationStructureGeometryKHR{
		SType:        vk.StructureTypeAccelerationStructureGeometryKhr,
		GeometryType: vk.GeometryTypeInstancesKhr,
	}
	geom.Geometry.SetInstances(vk.AccelerationStructureGeometryInstancesDataKHR{
		SType: vk.StructureTypeAccelerationStructureGeometryInstancesDataKhr,
		Data:  vk.DeviceOrHostAddressConstKHR{DeviceAddress: instAddr},
	})
	geoms := []vk.AccelerationStructureGeometryKHR{geom}
	ranges := []vk.AccelerationStructureBuildRangeInfoKHR{{PrimitiveCount: uint32(numInstances)}}
	maxPrims := []uint32{uint32(numInstances)}

	buildInfo := vk.AccelerationStructureBuildGeometryInfoKHR{
		SType:         vk.StructureTypeAccelerationStructureBuildGeometryInfoKhr,
		Type:          vk.AccelerationStructureTypeTopLevelKhr,
		Flags:         vk.BuildAccelerationStructureFlagsKhr(vk.BuildAccelerationStructurePreferFastTraceBitKhr),
		Mode:          vk.BuildAccelerationStructureModeBuildKhr,
		GeometryCount: uint32(len(geoms)),
		PGeometries:   geoms,
	}
	var sizeInfo vk.AccelerationStructureBuildSizesInfoKHR
	sizeInfo.SType = vk.StructureTypeAccelerationStructureBuildSizesInfoKhr
	vk.GetAccelerationStructureBuildSizesKHR(b.dev, vk.AccelerationStructureBuildTypeDeviceKhr, &buildInfo, maxPrims, &sizeInfo)

	h, err := b.finishAccelStructBuild(buildInfo, sizeInfo, ranges, vk.AccelerationStructureTypeTopLevelKhr, true)
	if err != nil {
		vk.UnmapMemory(b.dev, instMem)
		vk.DestroyBuffer(b.dev, instBuf, nil)
		vk.FreeMemory(b.dev, instMem, nil)
		return gpuhal.NullAccelStruct, err
	}
	if r, ok := b.accels.get(h.Raw()); ok {
		r.instBuf, r.instMem, r.instMapped, r.instCap = instBuf, instMem, instMapped, numInstances
	}
	return h, nil
}

// finishAccelStructBuild allocates the backing and scratch buffers
// sized per sizeInfo, creates the structure object, records a one-shot
// command buffer that builds it, and submits+waits on the direct queue
// — acceleration structure builds are infrequent enough (compared to
// per-frame draw/dispatch traffic) that synchronous submission here,
// rather than threading the build through RecordCommandList/Submit, is
// an acceptable simplification of the Backend contract.
func (b *Backend) finishAccelStructBuild(
	buildInfo vk.AccelerationStructureBuildGeometryInfoKHR,
	sizeInfo vk.AccelerationStructureBuildSizesInfoKHR,
	ranges []vk.AccelerationStructureBuildRangeInfoKHR,
	typ vk.AccelerationStructureTypeKHR,
	isTLAS bool,
) (gpuhal.AccelStructHandle, error) {
	bufInfo := vk.BufferCreateInfo{
		SType: vk.StructureTypeBufferCreateInfo,
		Size:  sizeInfo.AccelerationStructureSize,
		Usage: vk.BufferUsageFlags(vk.BufferUsageAccelerationStructureStorageBitKhr | vk.BufferUsageShaderDeviceAddressBit),
	}
	var buf vk.Buffer
	if res := vk.CreateBuffer(b.dev, &bufInfo, nil, &buf); res != vk.Success {
		return gpuhal.NullAccelStruct, vkError(res)
	}
	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(b.dev, buf, &req)
	req.Deref()
	memType, err := b.findMemoryType(req.MemoryTypeBits, false)
	if err != nil {
		vk.DestroyBuffer(b.dev, buf, nil)
		return gpuhal.NullAccelStruct, err
	}
	allocInfo := vk.MemoryAllocateInfo{SType: vk.StructureTypeMemoryAllocateInfo, AllocationSize: req.Size, MemoryTypeIndex: memType}
	var mem vk.DeviceMemory
	if res := vk.AllocateMemory(b.dev, &allocInfo, nil, &mem); res != vk.Success {
		vk.DestroyBuffer(b.dev, buf, nil)
		return gpuhal.NullAccelStruct, vkError(res)
	}
	vk.BindBufferMemory(b.dev, buf, mem, 0)

	createInfo := vk.AccelerationStructureCreateInfoKHR{
		SType:  vk.StructureTypeAccelerationStructureCreateInfoKhr,
		Buffer: buf,
		Size:   sizeInfo.AccelerationStructureSize,
		Type:   typ,
	}
	var accel vk.AccelerationStructureKHR
	if res := vk.CreateAccelerationStructureKHR(b.dev, &createInfo, nil, &accel); res != vk.Success {
		vk.DestroyBuffer(b.dev, buf, nil)
		vk.FreeMemory(b.dev, mem, nil)
		return gpuhal.NullAccelStruct, vkError(res)
	}

	scratchBuf, scratchMem, scratchAddr, err := b.allocScratchBuffer(uint64(sizeInfo.BuildScratchSize))
	if err != nil {
		vk.DestroyAccelerationStructureKHR(b.dev, accel, nil)
		vk.DestroyBuffer(b.dev, buf, nil)
		vk.FreeMemory(b.dev, mem, nil)
		return gpuhal.NullAccelStruct, err
	}
	buildInfo.DstAccelerationStructure = accel
	buildInfo.ScratchData = vk.DeviceOrHostAddressKHR{DeviceAddress: scratchAddr}

	if err := b.runOneShotCommand(func(cb vk.CommandBuffer) {
		vk.CmdBuildAccelerationStructuresKHR(cb, 1, []vk.AccelerationStructureBuildGeometryInfoKHR{buildInfo},
			[][]vk.AccelerationStructureBuildRangeInfoKHR{ranges})
	}); err != nil {
		vk.DestroyAccelerationStructureKHR(b.dev, accel, nil)
		vk.DestroyBuffer(b.dev, buf, nil)
		vk.FreeMemory(b.dev, mem, nil)
		vk.DestroyBuffer(b.dev, scratchBuf, nil)
		vk.FreeMemory(b.dev, scratchMem, nil)
		return gpuhal.NullAccelStruct, err
	}

	addrInfo := vk.AccelerationStructureDeviceAddressInfoKHR{SType: vk.StructureTypeAccelerationStructureDeviceAddressInfoKhr, AccelerationStructure: accel}
	addr := vk.GetAccelerationStructureDeviceAddressKHR(b.dev, &addrInfo)

	h := b.accels.insert(accelStructRes{
		accel: accel, buf: buf, mem: mem,
		scratchBuf: scratchBuf, scratchMem: scratchMem, scratchAddr: scratchAddr,
		deviceAddr: addr, isTLAS: isTLAS,
		buildInfo: buildInfo, ranges: ranges,
	})
	return gpuhal.AccelStructFromRaw(h), nil
}

// runOneShotCommand records cb's body into a transient command buffer
// on the direct queue's allocator and blocks until it completes.
func (b *Backend) runOneShotCommand(record func(cb vk.CommandBuffer)) error {
	if len(b.perThread) == 0 {
		return fmt.Errorf("vk: no per-thread command allocators configured")
	}
	cb, alloc := b.perThread[0].Direct.AcquireMemory()
	beginInfo := vk.CommandBufferBeginInfo{SType: vk.StructureTypeCommandBufferBeginInfo, Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)}
	vk.BeginCommandBuffer(cb, &beginInfo)
	record(cb)
	vk.EndCommandBuffer(cb)

	idx, fence := b.fenceRing.Acquire()
	submit := vk.SubmitInfo{SType: vk.StructureTypeSubmitInfo, CommandBufferCount: 1, PCommandBuffers: []vk.CommandBuffer{cb}}
	b.qmus[gpuhal.QueueDirect].Lock()
	res := vk.QueueSubmit(b.ques[gpuhal.QueueDirect], 1, []vk.SubmitInfo{submit}, fence)
	b.qmus[gpuhal.QueueDirect].Unlock()
	if res != vk.Success {
		return vkError(res)
	}
	b.fenceRing.Wait(idx)
	alloc.OnSubmit(1, idx)
	return nil
}

// FreeAccelStruct implements gpuhal.Backend.
func (b *Backend) FreeAccelStruct(h gpuhal.AccelStructHandle) {
	r, ok := b.accels.remove(h.Raw())
	if !ok {
		return
	}
	vk.DestroyAccelerationStructureKHR(b.dev, r.accel, nil)
	vk.DestroyBuffer(b.dev, r.buf, nil)
	vk.FreeMemory(b.dev, r.mem, nil)
	vk.DestroyBuffer(b.dev, r.scratchBuf, nil)
	vk.FreeMemory(b.dev, r.scratchMem, nil)
	if r.instCap > 0 {
		vk.UnmapMemory(b.dev, r.instMem)
		vk.DestroyBuffer(b.dev, r.instBuf, nil)
		vk.FreeMemory(b.dev, r.instMem, nil)
	}
}

// CalculateShaderTableSize implements gpuhal.Backend.
func (b *Backend) CalculateShaderTableSize(pso gpuhal.PipelineHandle) (gpuhal.ShaderTableLayout, error) {
	if !b.raytracingEnabled {
		return gpuhal.ShaderTableLayout{}, gpuhal.ErrRaytracingUnavailable
	}
	handleSize := uint64(b.rtProps.ShaderGroupHandleSize)
	align := uint64(b.rtProps.ShaderGroupBaseAlignment)
	stride := alignUp(handleSize+uint64(gpuhal.MaxRootConstantBytes), uint64(b.rtProps.ShaderGroupHandleAlignment))
	size := alignUp(stride, align)
	return gpuhal.ShaderTableLayout{
		RayGenStride: int64(alignUp(stride, align)), RayGenSize: int64(size),
		MissStride: int64(stride), MissSize: int64(size),
		HitGroupStride: int64(stride), HitGroupSize: int64(size),
		CallableStride: int64(stride), CallableSize: int64(size),
	}, nil
}

// WriteShaderTable implements gpuhal.Backend.
func (b *Backend) WriteShaderTable(pso gpuhal.PipelineHandle, layout gpuhal.ShaderTableLayout, records []gpuhal.ShaderTableRecord, dst []byte) error {
	if !b.raytracingEnabled {
		return gpuhal.ErrRaytracingUnavailable
	}
	p, ok := b.pipes.get(pso.Raw())
	if !ok {
		return gpuhal.ErrInvalidHandle
	}
	handleSize := int(b.rtProps.ShaderGroupHandleSize)
	numGroups := len(records)
	handles := make([]byte, handleSize*numGroups)
	if res := vk.GetRayTracingShaderGroupHandlesKHR(b.dev, p.pipeline, 0, uint32(numGroups), len(handles), unsafe.Pointer(&handles[0])); res != vk.Success {
		return vkError(res)
	}
	stride := int(layout.RayGenStride)
	for i, rec := range records {
		off := i * stride
		if off+handleSize > len(dst) {
			return fmt.Errorf("vk: shader table record %d (%s) exceeds dst", i, rec.ExportName)
		}
		copy(dst[off:off+handleSize], handles[i*handleSize:(i+1)*handleSize])
		copy(dst[off+handleSize:], rec.RootArgs)
	}
	return nil
}

// buildAccelStruct records a rebuild of dest's bottom-level structure
// into cb, reusing the geometry and scratch buffer retained from its
// initial build. If source is non-null, the build is recorded as an
// in-place update against source instead of a build from scratch —
// source and dest must be the same structure, since this backend never
// allocates update scratch separately from the initial build's.
func (b *Backend) buildAccelStruct(cb vk.CommandBuffer, dest, source gpuhal.AccelStructHandle) {
	r, ok := b.accels.get(dest.Raw())
	if !ok || r.isTLAS {
		return
	}
	info := r.buildInfo
	info.ScratchData = vk.DeviceOrHostAddressKHR{DeviceAddress: r.scratchAddr}
	if !source.IsNull() {
		info.Mode = vk.BuildAccelerationStructureModeUpdateKhr
		info.SrcAccelerationStructure = r.accel
	}
	info.DstAccelerationStructure = r.accel
	vk.CmdBuildAccelerationStructuresKHR(cb, 1, []vk.AccelerationStructureBuildGeometryInfoKHR{info},
		[][]vk.AccelerationStructureBuildRangeInfoKHR{r.ranges})
}

// buildTopLevel re-encodes numInstances AccelStructInstance records
// from srcBuf starting at srcOffset into dest's backend-owned native
// instance buffer, then records a rebuild of dest's top-level
// structure into cb. A TLAS never updates in place here: the source
// instance data can reference different bottom-level structures or
// counts from one call to the next, so refitting against the prior
// build would require the caller to guarantee topology stability this
// interface does not promise.
func (b *Backend) buildTopLevel(cb vk.CommandBuffer, dest gpuhal.AccelStructHandle, srcBuf gpuhal.ResourceHandle, srcOffset, numInstances uint32) {
	r, ok := b.accels.get(dest.Raw())
	if !ok || !r.isTLAS || int(numInstances) > r.instCap {
		return
	}
	dst := unsafe.Slice((*byte)(r.instMapped), int(numInstances)*64)
	if err := b.encodeInstances(dst, srcBuf, int(srcOffset), int(numInstances)); err != nil {
		return
	}
	info := r.buildInfo
	info.ScratchData = vk.DeviceOrHostAddressKHR{DeviceAddress: r.scratchAddr}
	info.DstAccelerationStructure = r.accel
	ranges := make([]vk.AccelerationStructureBuildRangeInfoKHR, len(r.ranges))
	copy(ranges, r.ranges)
	for i := range ranges {
		ranges[i].PrimitiveCount = numInstances
	}
	vk.CmdBuildAccelerationStructuresKHR(cb, 1, []vk.AccelerationStructureBuildGeometryInfoKHR{info},
		[][]vk.AccelerationStructureBuildRangeInfoKHR{ranges})
}

func alignUp(v, align uint64) uint64 {
	if align == 0 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}

func indexTypeOf(f gpuhal.IndexFmt) vk.IndexType {
	if f == gpuhal.Index16 {
		return vk.IndexTypeUint16
	}
	return vk.IndexTypeUint32
}

func floatBitsOf(f float32) uint32 {
	return *(*uint32)(unsafe.Pointer(&f))
}
