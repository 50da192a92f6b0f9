package vk

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/gviegas/gpuhal"
)

// bufferRes and imageRes hold the native objects and bookkeeping for
// one buffer or image resource; resourceRes tags which kind a
// resources-pool slot currently holds, since both kinds share one
// handle index space (see Backend.resources).
type bufferRes struct {
	buf    vk.Buffer
	mem    vk.DeviceMemory
	size   int64
	mapped unsafe.Pointer
}

type imageRes struct {
	img    vk.Image
	mem    vk.DeviceMemory
	format vk.Format
	aspect vk.ImageAspectFlags
	layers int
	levels int
	// borrowed marks a swapchain backbuffer image: it is given a
	// resources-pool slot so it can be named by a ResourceHandle like
	// any other image, but it is owned and destroyed by its
	// swapchainRes, not by FreeResource.
	borrowed bool
}

type resourceRes struct {
	isImage bool
	buffer  bufferRes
	image   imageRes
}

// viewRes is a descriptor set (and the single-use layout it was
// allocated against) created by CreateShaderView.
type viewRes struct {
	pool   vk.DescriptorPool
	layout vk.DescriptorSetLayout
	set    vk.DescriptorSet
}

func usageToBufferFlags(u gpuhal.Usage) vk.BufferUsageFlagBits {
	var f vk.BufferUsageFlagBits
	if u&gpuhal.UsageVertexBuffer != 0 {
		f |= vk.BufferUsageVertexBufferBit
	}
	if u&gpuhal.UsageIndexBuffer != 0 {
		f |= vk.BufferUsageIndexBufferBit
	}
	if u&gpuhal.UsageConstantBuffer != 0 {
		f |= vk.BufferUsageUniformBufferBit
	}
	if u&(gpuhal.UsageShaderResource|gpuhal.UsageUnorderedAccess) != 0 {
		f |= vk.BufferUsageStorageBufferBit
	}
	if u&gpuhal.UsageCopySrc != 0 {
		f |= vk.BufferUsageTransferSrcBit
	}
	if u&gpuhal.UsageCopyDst != 0 {
		f |= vk.BufferUsageTransferDstBit
	}
	if u&gpuhal.UsageIndirectArgument != 0 {
		f |= vk.BufferUsageIndirectBufferBit
	}
	if u&gpuhal.UsageRaytracingAccelStruct != 0 {
		f |= vk.BufferUsageAccelerationStructureStorageBitKhr | vk.BufferUsageShaderDeviceAddressBit
	}
	if u&gpuhal.UsageRaytracingScratch != 0 {
		f |= vk.BufferUsageStorageBufferBit | vk.BufferUsageShaderDeviceAddressBit
	}
	return f
}

// CreateBuffer implements gpuhal.Backend.
func (b *Backend) CreateBuffer(desc gpuhal.BufferDesc) (gpuhal.ResourceHandle, error) {
	info := vk.BufferCreateInfo{
		SType: vk.StructureTypeBufferCreateInfo,
		Size:  vk.DeviceSize(desc.Size),
		Usage: vk.BufferUsageFlags(usageToBufferFlags(desc.Usage)),
	}
	var buf vk.Buffer
	if res := vk.CreateBuffer(b.dev, &info, nil, &buf); res != vk.Success {
		return gpuhal.NullResource, vkError(res)
	}
	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(b.dev, buf, &req)
	req.Deref()

	memType, err := b.findMemoryType(req.MemoryTypeBits, desc.HostVisible)
	if err != nil {
		vk.DestroyBuffer(b.dev, buf, nil)
		return gpuhal.NullResource, err
	}
	allocFlags := vk.MemoryAllocateFlagsInfo{
		SType: vk.StructureTypeMemoryAllocateFlagsInfo,
		Flags: vk.MemoryAllocateFlags(vk.MemoryAllocateDeviceAddressBit),
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		PNext:           unsafePtr(&allocFlags),
		AllocationSize:  req.Size,
		MemoryTypeIndex: memType,
	}
	var mem vk.DeviceMemory
	if res := vk.AllocateMemory(b.dev, &allocInfo, nil, &mem); res != vk.Success {
		vk.DestroyBuffer(b.dev, buf, nil)
		return gpuhal.NullResource, vkError(res)
	}
	vk.BindBufferMemory(b.dev, buf, mem, 0)

	var mapped unsafe.Pointer
	if desc.HostVisible {
		var p unsafe.Pointer
		if res := vk.MapMemory(b.dev, mem, 0, vk.DeviceSize(desc.Size), 0, &p); res != vk.Success {
			vk.FreeMemory(b.dev, mem, nil)
			vk.DestroyBuffer(b.dev, buf, nil)
			return gpuhal.NullResource, vkError(res)
		}
		mapped = p
	}

	h := b.resources.insert(resourceRes{buffer: bufferRes{buf: buf, mem: mem, size: desc.Size, mapped: mapped}})
	return gpuhal.ResourceFromRaw(h), nil
}

// CreateImage implements gpuhal.Backend.
func (b *Backend) CreateImage(desc gpuhal.ImageDesc) (gpuhal.ResourceHandle, error) {
	format := convFormat(desc.Format)
	aspect := vk.ImageAspectFlags(vk.ImageAspectColorBit)
	if desc.Format.IsDepthStencil() {
		aspect = vk.ImageAspectFlags(vk.ImageAspectDepthBit)
		if desc.Format == gpuhal.D24unS8ui || desc.Format == gpuhal.D32fS8ui {
			aspect |= vk.ImageAspectFlags(vk.ImageAspectStencilBit)
		}
	}

	var usage vk.ImageUsageFlagBits
	if desc.Usage&gpuhal.UsageShaderResource != 0 {
		usage |= vk.ImageUsageSampledBit
	}
	if desc.Usage&gpuhal.UsageUnorderedAccess != 0 {
		usage |= vk.ImageUsageStorageBit
	}
	if desc.Usage&gpuhal.UsageRenderTarget != 0 {
		if desc.Format.IsDepthStencil() {
			usage |= vk.ImageUsageDepthStencilAttachmentBit
		} else {
			usage |= vk.ImageUsageColorAttachmentBit
		}
	}
	usage |= vk.ImageUsageTransferSrcBit | vk.ImageUsageTransferDstBit

	typ := vk.ImageType2d
	if desc.Size.Depth > 1 {
		typ = vk.ImageType3d
	} else if desc.Size.Height <= 1 {
		typ = vk.ImageType1d
	}

	info := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: typ,
		Format:    format,
		Extent:    vk.Extent3D{Width: uint32(desc.Size.Width), Height: uint32(desc.Size.Height), Depth: uint32(desc.Size.Depth)},
		MipLevels: uint32(desc.Levels),
		ArrayLayers: uint32(desc.Layers),
		Samples:   sampleCountOf(desc.Samples),
		Tiling:    vk.ImageTilingOptimal,
		Usage:     vk.ImageUsageFlags(usage),
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var img vk.Image
	if res := vk.CreateImage(b.dev, &info, nil, &img); res != vk.Success {
		return gpuhal.NullResource, vkError(res)
	}
	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(b.dev, img, &req)
	req.Deref()
	memType, err := b.findMemoryType(req.MemoryTypeBits, false)
	if err != nil {
		vk.DestroyImage(b.dev, img, nil)
		return gpuhal.NullResource, err
	}
	allocInfo := vk.MemoryAllocateInfo{SType: vk.StructureTypeMemoryAllocateInfo, AllocationSize: req.Size, MemoryTypeIndex: memType}
	var mem vk.DeviceMemory
	if res := vk.AllocateMemory(b.dev, &allocInfo, nil, &mem); res != vk.Success {
		vk.DestroyImage(b.dev, img, nil)
		return gpuhal.NullResource, vkError(res)
	}
	vk.BindImageMemory(b.dev, img, mem, 0)

	h := b.resources.insert(resourceRes{isImage: true, image: imageRes{
		img: img, mem: mem, format: format, aspect: aspect, layers: desc.Layers, levels: desc.Levels,
	}})
	return gpuhal.ResourceFromRaw(h), nil
}

// FreeResource implements gpuhal.Backend.
func (b *Backend) FreeResource(h gpuhal.ResourceHandle) {
	r, ok := b.resources.remove(h.Raw())
	if !ok {
		return
	}
	if r.isImage {
		b.invalidateImageViews(h)
		if r.image.borrowed {
			return
		}
		vk.DestroyImage(b.dev, r.image.img, nil)
		vk.FreeMemory(b.dev, r.image.mem, nil)
		return
	}
	if r.buffer.mapped != nil {
		vk.UnmapMemory(b.dev, r.buffer.mem)
	}
	vk.DestroyBuffer(b.dev, r.buffer.buf, nil)
	vk.FreeMemory(b.dev, r.buffer.mem, nil)
}

// MapBuffer implements gpuhal.Backend.
func (b *Backend) MapBuffer(h gpuhal.ResourceHandle) ([]byte, error) {
	r, ok := b.resources.get(h.Raw())
	if !ok || r.isImage {
		return nil, gpuhal.ErrInvalidHandle
	}
	if r.buffer.mapped == nil {
		return nil, fmt.Errorf("vk: buffer not created host-visible")
	}
	return unsafe.Slice((*byte)(r.buffer.mapped), r.buffer.size), nil
}

// FlushMappedRange implements gpuhal.Backend.
func (b *Backend) FlushMappedRange(h gpuhal.ResourceHandle, offset, size int64) error {
	r, ok := b.resources.get(h.Raw())
	if !ok || r.isImage {
		return gpuhal.ErrInvalidHandle
	}
	ranges := []vk.MappedMemoryRange{{
		SType:  vk.StructureTypeMappedMemoryRange,
		Memory: r.buffer.mem,
		Offset: vk.DeviceSize(offset),
		Size:   vk.DeviceSize(size),
	}}
	if res := vk.FlushMappedMemoryRanges(b.dev, 1, ranges); res != vk.Success {
		return vkError(res)
	}
	return nil
}

func (b *Backend) findMemoryType(typeBits uint32, hostVisible bool) (uint32, error) {
	want := vk.MemoryPropertyFlagBits(vk.MemoryPropertyDeviceLocalBit)
	if hostVisible {
		want = vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit
	}
	for i := uint32(0); i < b.memProps.MemoryTypeCount; i++ {
		if typeBits&(1<<i) == 0 {
			continue
		}
		flags := vk.MemoryPropertyFlagBits(b.memProps.MemoryTypes[i].PropertyFlags)
		if flags&want == want {
			return i, nil
		}
	}
	return 0, fmt.Errorf("vk: no suitable memory type for mask %#x", typeBits)
}

func sampleCountOf(n int) vk.SampleCountFlagBits {
	switch n {
	case 2:
		return vk.SampleCount2Bit
	case 4:
		return vk.SampleCount4Bit
	case 8:
		return vk.SampleCount8Bit
	case 16:
		return vk.SampleCount16Bit
	default:
		return vk.SampleCount1Bit
	}
}

// CreateShaderView implements gpuhal.Backend: it allocates a
// single-use descriptor-set layout sized to exactly the views
// supplied, then a descriptor set from a per-call single-set pool and
// writes every view into it. This mirrors the reference model where a
// shader view is an immutable, already-written descriptor table
// rather than a mutable bindless heap range.
func (b *Backend) CreateShaderView(views []gpuhal.ResourceView) (gpuhal.ShaderViewHandle, error) {
	bindings := make([]vk.DescriptorSetLayoutBinding, len(views))
	poolSizes := map[vk.DescriptorType]uint32{}
	for i, v := range views {
		dt := descriptorTypeOf(v.Kind)
		bindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         uint32(i),
			DescriptorType:  dt,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageAll),
		}
		poolSizes[dt]++
	}
	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(b.dev, &layoutInfo, nil, &layout); res != vk.Success {
		return gpuhal.NullShaderView, vkError(res)
	}

	sizes := make([]vk.DescriptorPoolSize, 0, len(poolSizes))
	for t, c := range poolSizes {
		sizes = append(sizes, vk.DescriptorPoolSize{Type: t, DescriptorCount: c})
	}
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       1,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(b.dev, &poolInfo, nil, &pool); res != vk.Success {
		vk.DestroyDescriptorSetLayout(b.dev, layout, nil)
		return gpuhal.NullShaderView, vkError(res)
	}
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}
	var set vk.DescriptorSet
	if res := vk.AllocateDescriptorSets(b.dev, &allocInfo, &set); res != vk.Success {
		vk.DestroyDescriptorPool(b.dev, pool, nil)
		vk.DestroyDescriptorSetLayout(b.dev, layout, nil)
		return gpuhal.NullShaderView, vkError(res)
	}

	writes := make([]vk.WriteDescriptorSet, len(views))
	for i, v := range views {
		writes[i] = b.descriptorWriteFor(set, uint32(i), v)
	}
	vk.UpdateDescriptorSets(b.dev, uint32(len(writes)), writes, 0, nil)

	h := b.views.insert(viewRes{pool: pool, layout: layout, set: set})
	return gpuhal.ShaderViewFromRaw(h), nil
}

// FreeShaderView implements gpuhal.Backend.
func (b *Backend) FreeShaderView(h gpuhal.ShaderViewHandle) {
	r, ok := b.views.remove(h.Raw())
	if !ok {
		return
	}
	vk.DestroyDescriptorPool(b.dev, r.pool, nil)
	vk.DestroyDescriptorSetLayout(b.dev, r.layout, nil)
}

func descriptorTypeOf(k gpuhal.ResourceViewKind) vk.DescriptorType {
	switch k {
	case gpuhal.ViewBuffer, gpuhal.ViewRawBuffer:
		return vk.DescriptorTypeStorageBuffer
	case gpuhal.ViewRaytracingAccelStruct:
		return vk.DescriptorTypeAccelerationStructureKhr
	default:
		return vk.DescriptorTypeSampledImage
	}
}

// imageViewKey identifies a vk.ImageView cached for a render-pass
// color/depth target or clear target. Unlike CreateShaderView's
// descriptor sets, render-pass attachment views are requested directly
// from a gpuhal.ResourceView by cmd.go's render-pass and clear visitors
// with no prior creation call, so the Backend keeps a lazily-populated
// cache instead, invalidated whenever the underlying resource is freed.
type imageViewKey struct {
	resource   gpuhal.ResourceHandle
	mipStart   uint32
	numMips    uint32
	arrayStart uint32
	numLayers  uint32
}

// imageViewFor returns (creating and caching if necessary) the
// vk.ImageView naming the mip/array range of v's resource. v.Resource
// must already be resolved (IsBackbuffer views are resolved by the
// caller before reaching here).
func (b *Backend) imageViewFor(v gpuhal.ResourceView) (vk.ImageView, vk.Format, vk.ImageAspectFlags, error) {
	res, ok := b.resources.get(v.Resource.Raw())
	if !ok || !res.isImage {
		return vk.ImageView(vk.NullHandle), 0, 0, gpuhal.ErrInvalidHandle
	}
	key := imageViewKey{
		resource:   v.Resource,
		mipStart:   v.MipStart,
		numMips:    v.NumMips,
		arrayStart: v.ArrayStart,
		numLayers:  v.NumArrayLayers,
	}
	b.imageViewMu.Lock()
	defer b.imageViewMu.Unlock()
	if view, ok := b.imageViews[key]; ok {
		return view, res.image.format, res.image.aspect, nil
	}
	numMips := v.NumMips
	if numMips == 0 {
		numMips = uint32(res.image.levels) - v.MipStart
	}
	numLayers := v.NumArrayLayers
	if numLayers == 0 {
		numLayers = uint32(res.image.layers) - v.ArrayStart
	}
	viewType := vk.ImageViewType2d
	if numLayers > 1 {
		viewType = vk.ImageViewType2dArray
	}
	info := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    res.image.img,
		ViewType: viewType,
		Format:   res.image.format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     res.image.aspect,
			BaseMipLevel:   v.MipStart,
			LevelCount:     numMips,
			BaseArrayLayer: v.ArrayStart,
			LayerCount:     numLayers,
		},
	}
	var view vk.ImageView
	if res2 := vk.CreateImageView(b.dev, &info, nil, &view); res2 != vk.Success {
		return vk.ImageView(vk.NullHandle), 0, 0, vkError(res2)
	}
	b.imageViews[key] = view
	return view, res.image.format, res.image.aspect, nil
}

// invalidateImageViews destroys and evicts every cached view of h.
func (b *Backend) invalidateImageViews(h gpuhal.ResourceHandle) {
	b.imageViewMu.Lock()
	defer b.imageViewMu.Unlock()
	for k, v := range b.imageViews {
		if k.resource == h {
			vk.DestroyImageView(b.dev, v, nil)
			delete(b.imageViews, k)
		}
	}
}

func (b *Backend) descriptorWriteFor(set vk.DescriptorSet, binding uint32, v gpuhal.ResourceView) vk.WriteDescriptorSet {
	w := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  descriptorTypeOf(v.Kind),
	}
	res, ok := b.resources.get(v.Resource.Raw())
	if !ok {
		return w
	}
	switch w.DescriptorType {
	case vk.DescriptorTypeStorageBuffer:
		w.PBufferInfo = []vk.DescriptorBufferInfo{{
			Buffer: res.buffer.buf,
			Offset: vk.DeviceSize(v.ElementStart) * vk.DeviceSize(v.Stride),
			Range:  vk.DeviceSize(v.NumElements) * vk.DeviceSize(v.Stride),
		}}
	case vk.DescriptorTypeSampledImage:
		w.PImageInfo = []vk.DescriptorImageInfo{{
			ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
		}}
	}
	return w
}
