//go:build windows

package d3d12

import (
	"fmt"

	"github.com/gogpu/wgpu/hal/dx12/d3d12"

	"github.com/gviegas/gpuhal"
)

type queryRangeRes struct {
	heap  *d3d12.ID3D12QueryHeap
	typ   gpuhal.QueryType
	count int
}

func queryHeapTypeOf(t gpuhal.QueryType) d3d12.D3D12_QUERY_HEAP_TYPE {
	switch t {
	case gpuhal.QueryOcclusion:
		return d3d12.D3D12_QUERY_HEAP_TYPE_OCCLUSION
	case gpuhal.QueryPipelineStats:
		return d3d12.D3D12_QUERY_HEAP_TYPE_PIPELINE_STATISTICS
	default:
		return d3d12.D3D12_QUERY_HEAP_TYPE_TIMESTAMP
	}
}

// CreateQueryRange implements gpuhal.Backend.
func (b *Backend) CreateQueryRange(t gpuhal.QueryType, count int) (gpuhal.QueryRangeHandle, error) {
	heap, err := b.dev.CreateQueryHeap(&d3d12.D3D12_QUERY_HEAP_DESC{
		Type:  queryHeapTypeOf(t),
		Count: uint32(count),
	})
	if err != nil {
		return gpuhal.NullQueryRange, fmt.Errorf("d3d12: CreateQueryHeap: %w", err)
	}
	h := b.queries.insert(queryRangeRes{heap: heap, typ: t, count: count})
	return gpuhal.QueryRangeFromRaw(h), nil
}

// FreeQueryRange implements gpuhal.Backend.
func (b *Backend) FreeQueryRange(h gpuhal.QueryRangeHandle) {
	if r, ok := b.queries.remove(h.Raw()); ok {
		r.heap.Release()
	}
}

// ResolveQueries implements gpuhal.Backend. Resolving a D3D12 query
// heap to a readable buffer is ID3D12GraphicsCommandList::
// ResolveQueryData, recorded into a command list like any other GPU
// command; the command-list binding this backend is built from (see
// github.com/gogpu/wgpu/hal/dx12/d3d12) does not expose that method
// (nor BeginQuery/EndQuery), so query ranges can be allocated and
// freed but never written or resolved on this backend. Query support
// is consequently unavailable end-to-end, tracked the same way
// raytracing is (see raytracing.go) rather than silently returning
// zeroed data.
func (b *Backend) ResolveQueries(qr gpuhal.QueryRangeHandle, first, count int, dst gpuhal.ResourceHandle, dstOffset int64) error {
	if _, ok := b.queries.get(qr.Raw()); !ok {
		return gpuhal.ErrInvalidHandle
	}
	return fmt.Errorf("d3d12: query resolution requires ID3D12GraphicsCommandList.ResolveQueryData, unavailable in this binding")
}
