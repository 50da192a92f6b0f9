package vk

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/gviegas/gpuhal"
)

// queryRangeRes is one dedicated VkQueryPool sized to exactly the page
// requested by CreateQueryRange; pages are not sub-allocated from a
// shared pool, mirroring the page-granularity the query-range handle
// already implies.
type queryRangeRes struct {
	pool  vk.QueryPool
	qtype vk.QueryType
	count int
}

func convQueryType(qt gpuhal.QueryType) vk.QueryType {
	switch qt {
	case gpuhal.QueryOcclusion:
		return vk.QueryTypeOcclusion
	case gpuhal.QueryPipelineStats:
		return vk.QueryTypePipelineStatistics
	default:
		return vk.QueryTypeTimestamp
	}
}

// CreateQueryRange implements gpuhal.Backend.
func (b *Backend) CreateQueryRange(qt gpuhal.QueryType, count int) (gpuhal.QueryRangeHandle, error) {
	qtype := convQueryType(qt)
	info := vk.QueryPoolCreateInfo{
		SType:      vk.StructureTypeQueryPoolCreateInfo,
		QueryType:  qtype,
		QueryCount: uint32(count),
	}
	if qtype == vk.QueryTypePipelineStatistics {
		info.PipelineStatistics = vk.QueryPipelineStatisticFlags(
			vk.QueryPipelineStatisticInputAssemblyVerticesBit |
				vk.QueryPipelineStatisticInputAssemblyPrimitivesBit |
				vk.QueryPipelineStatisticVertexShaderInvocationsBit |
				vk.QueryPipelineStatisticClippingInvocationsBit |
				vk.QueryPipelineStatisticClippingPrimitivesBit |
				vk.QueryPipelineStatisticFragmentShaderInvocationsBit |
				vk.QueryPipelineStatisticComputeShaderInvocationsBit,
		)
	}
	var pool vk.QueryPool
	if res := vk.CreateQueryPool(b.dev, &info, nil, &pool); res != vk.Success {
		return gpuhal.NullQueryRange, vkError(res)
	}
	h := b.queries.insert(queryRangeRes{pool: pool, qtype: qtype, count: count})
	return gpuhal.QueryRangeFromRaw(h), nil
}

// FreeQueryRange implements gpuhal.Backend.
func (b *Backend) FreeQueryRange(h gpuhal.QueryRangeHandle) {
	r, ok := b.queries.remove(h.Raw())
	if !ok {
		return
	}
	vk.DestroyQueryPool(b.dev, r.pool, nil)
}

// ResolveQueries implements gpuhal.Backend. It reads query results
// directly on the host via vkGetQueryPoolResults and writes them into
// dst's already-mapped range, rather than recording a
// vkCmdCopyQueryPoolResults into a command list: resolution here is a
// synchronous, CPU-side call, so dst must be a host-visible buffer
// previously returned by MapBuffer.
func (b *Backend) ResolveQueries(qr gpuhal.QueryRangeHandle, first, count int, dst gpuhal.ResourceHandle, dstOffset int64) error {
	r, ok := b.queries.get(qr.Raw())
	if !ok {
		return gpuhal.ErrInvalidHandle
	}
	dstRes, ok := b.resources.get(dst.Raw())
	if !ok || dstRes.isImage || dstRes.buffer.mapped == nil {
		return gpuhal.ErrInvalidHandle
	}
	stride := uint64(8)
	dataSize := uint64(count) * stride
	ptr := unsafe.Add(dstRes.buffer.mapped, dstOffset)
	res := vk.GetQueryPoolResults(
		b.dev, r.pool, uint32(first), uint32(count),
		int(dataSize), ptr, vk.DeviceSize(stride),
		vk.QueryResultFlags(vk.QueryResult64Bit|vk.QueryResultWaitBit),
	)
	if res != vk.Success {
		return vkError(res)
	}
	return nil
}
