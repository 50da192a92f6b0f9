//go:build windows

package d3d12

import (
	"encoding/binary"

	"github.com/gogpu/wgpu/hal/dx12/d3d12"
)

// setBufferSRV and the UAV/dimension setters below extend
// d3d12.D3D12_SHADER_RESOURCE_VIEW_DESC / D3D12_UNORDERED_ACCESS_VIEW_DESC
// the same way the dependency's own view_helpers.go extends the RTV/
// DSV/SRV texture descs: raw little-endian writes into the desc's
// fixed union byte array. D3D12_BUFFER_SRV's Flags field falls past
// the union's 16-byte capacity and is left at its implicit zero
// (D3D12_BUFFER_SRV_FLAG_NONE), the same truncation the dependency's
// own SetTexture2DArray/SetTextureCubeArray already accept for fields
// past the 16th byte.

func setBufferSRV(d *d3d12.D3D12_SHADER_RESOURCE_VIEW_DESC, firstElement uint64, numElements, structureByteStride uint32) {
	d.ViewDimension = d3d12.D3D12_SRV_DIMENSION_BUFFER
	binary.LittleEndian.PutUint64(d.Union[0:8], firstElement)
	binary.LittleEndian.PutUint32(d.Union[8:12], numElements)
	binary.LittleEndian.PutUint32(d.Union[12:16], structureByteStride)
}

func setBufferUAV(d *d3d12.D3D12_UNORDERED_ACCESS_VIEW_DESC, firstElement uint64, numElements, structureByteStride uint32) {
	d.ViewDimension = d3d12.D3D12_UAV_DIMENSION_BUFFER
	binary.LittleEndian.PutUint64(d.Union[0:8], firstElement)
	binary.LittleEndian.PutUint32(d.Union[8:12], numElements)
	binary.LittleEndian.PutUint32(d.Union[12:16], structureByteStride)
}

func setTexture2DUAV(d *d3d12.D3D12_UNORDERED_ACCESS_VIEW_DESC, mipSlice, planeSlice uint32) {
	d.ViewDimension = d3d12.D3D12_UAV_DIMENSION_TEXTURE2D
	binary.LittleEndian.PutUint32(d.Union[0:4], mipSlice)
	binary.LittleEndian.PutUint32(d.Union[4:8], planeSlice)
}

func setTexture2DArrayUAV(d *d3d12.D3D12_UNORDERED_ACCESS_VIEW_DESC, mipSlice, firstArraySlice, arraySize, planeSlice uint32) {
	d.ViewDimension = d3d12.D3D12_UAV_DIMENSION_TEXTURE2DARRAY
	binary.LittleEndian.PutUint32(d.Union[0:4], mipSlice)
	binary.LittleEndian.PutUint32(d.Union[4:8], firstArraySlice)
	binary.LittleEndian.PutUint32(d.Union[8:12], arraySize)
	_ = planeSlice // past the 16-byte union bound, left at zero
}

func setTexture3DUAV(d *d3d12.D3D12_UNORDERED_ACCESS_VIEW_DESC, mipSlice, firstWSlice, wSize uint32) {
	d.ViewDimension = d3d12.D3D12_UAV_DIMENSION_TEXTURE3D
	binary.LittleEndian.PutUint32(d.Union[0:4], mipSlice)
	binary.LittleEndian.PutUint32(d.Union[4:8], firstWSlice)
	binary.LittleEndian.PutUint32(d.Union[8:12], wSize)
}
