//go:build windows

package d3d12

import "github.com/gviegas/gpuhal"

// Raytracing is unsupported on this backend: DXR requires
// ID3D12Device5, ID3D12GraphicsCommandList4 and ID3D12StateObject,
// none of which are exposed by this module's D3D12 binding
// (github.com/gogpu/wgpu/hal/dx12/d3d12 wraps ID3D12Device/
// ID3D12GraphicsCommandList only). Every raytracing entry point
// degrades to ErrRaytracingUnavailable, the explicit degradation path
// named for a backend that lacks a capability rather than emulating
// it.

type accelStructRes struct{}

// CreateBottomLevelAccelStruct implements gpuhal.Backend.
func (b *Backend) CreateBottomLevelAccelStruct(geom []gpuhal.RaytracingGeometry) (gpuhal.AccelStructHandle, error) {
	return gpuhal.NullAccelStruct, gpuhal.ErrRaytracingUnavailable
}

// CreateTopLevelAccelStruct implements gpuhal.Backend.
func (b *Backend) CreateTopLevelAccelStruct(instances gpuhal.ResourceHandle, numInstances int) (gpuhal.AccelStructHandle, error) {
	return gpuhal.NullAccelStruct, gpuhal.ErrRaytracingUnavailable
}

// FreeAccelStruct implements gpuhal.Backend.
func (b *Backend) FreeAccelStruct(h gpuhal.AccelStructHandle) {}

// CreateRaytracingPipelineState implements gpuhal.Backend.
func (b *Backend) CreateRaytracingPipelineState(desc gpuhal.RaytracingStateDesc) (gpuhal.PipelineHandle, error) {
	return gpuhal.NullPipeline, gpuhal.ErrRaytracingUnavailable
}

// CalculateShaderTableSize implements gpuhal.Backend.
func (b *Backend) CalculateShaderTableSize(pso gpuhal.PipelineHandle) (gpuhal.ShaderTableLayout, error) {
	return gpuhal.ShaderTableLayout{}, gpuhal.ErrRaytracingUnavailable
}

// WriteShaderTable implements gpuhal.Backend.
func (b *Backend) WriteShaderTable(pso gpuhal.PipelineHandle, layout gpuhal.ShaderTableLayout, records []gpuhal.ShaderTableRecord, dst []byte) error {
	return gpuhal.ErrRaytracingUnavailable
}
