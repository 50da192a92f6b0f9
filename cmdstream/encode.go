package cmdstream

import (
	"encoding/binary"
	"math"

	"github.com/gviegas/gpuhal"
	"github.com/gviegas/gpuhal/handle"
)

// handleSize is the wire size of any opaque handle.Handle-backed type.
const handleSize = 4

func putHandle(dst []byte, h handle.Handle) {
	binary.LittleEndian.PutUint32(dst, uint32(h))
}

func getHandle(src []byte) handle.Handle {
	return handle.Handle(binary.LittleEndian.Uint32(src))
}

func putResource(dst []byte, h gpuhal.ResourceHandle)       { putHandle(dst, h.Raw()) }
func getResource(src []byte) gpuhal.ResourceHandle          { return gpuhal.ResourceFromRaw(getHandle(src)) }
func putShaderView(dst []byte, h gpuhal.ShaderViewHandle)   { putHandle(dst, h.Raw()) }
func getShaderView(src []byte) gpuhal.ShaderViewHandle      { return gpuhal.ShaderViewFromRaw(getHandle(src)) }
func putPipeline(dst []byte, h gpuhal.PipelineHandle)       { putHandle(dst, h.Raw()) }
func getPipeline(src []byte) gpuhal.PipelineHandle          { return gpuhal.PipelineFromRaw(getHandle(src)) }
func putQueryRange(dst []byte, h gpuhal.QueryRangeHandle)   { putHandle(dst, h.Raw()) }
func getQueryRange(src []byte) gpuhal.QueryRangeHandle      { return gpuhal.QueryRangeFromRaw(getHandle(src)) }
func putAccelStruct(dst []byte, h gpuhal.AccelStructHandle) { putHandle(dst, h.Raw()) }
func getAccelStruct(src []byte) gpuhal.AccelStructHandle    { return gpuhal.AccelStructFromRaw(getHandle(src)) }

func putUint32(dst []byte, v uint32)  { binary.LittleEndian.PutUint32(dst, v) }
func getUint32(src []byte) uint32     { return binary.LittleEndian.Uint32(src) }
func putInt32(dst []byte, v int32)    { binary.LittleEndian.PutUint32(dst, uint32(v)) }
func getInt32(src []byte) int32       { return int32(binary.LittleEndian.Uint32(src)) }
func putUint64(dst []byte, v uint64)  { binary.LittleEndian.PutUint64(dst, v) }
func getUint64(src []byte) uint64     { return binary.LittleEndian.Uint64(src) }
func putFloat32(dst []byte, v float32) {
	binary.LittleEndian.PutUint32(dst, math.Float32bits(v))
}
func getFloat32(src []byte) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(src)) }

// resourceViewSize is the fixed wire size of a ResourceView record.
const resourceViewSize = 4 + 1 + 4 + 4*4 + 4*3 + 1

func putResourceView(dst []byte, v gpuhal.ResourceView) {
	putResource(dst[0:], v.Resource)
	dst[4] = byte(v.Kind)
	putInt32(dst[5:], int32(v.Format))
	putUint32(dst[9:], v.MipStart)
	putUint32(dst[13:], v.NumMips)
	putUint32(dst[17:], v.ArrayStart)
	putUint32(dst[21:], v.NumArrayLayers)
	putUint32(dst[25:], v.NumElements)
	putUint32(dst[29:], v.Stride)
	putUint32(dst[33:], v.ElementStart)
	if v.IsBackbuffer {
		dst[37] = 1
	} else {
		dst[37] = 0
	}
}

func getResourceView(src []byte) gpuhal.ResourceView {
	return gpuhal.ResourceView{
		Resource:       getResource(src[0:]),
		Kind:           gpuhal.ResourceViewKind(src[4]),
		Format:         gpuhal.Format(getInt32(src[5:])),
		MipStart:       getUint32(src[9:]),
		NumMips:        getUint32(src[13:]),
		ArrayStart:     getUint32(src[17:]),
		NumArrayLayers: getUint32(src[21:]),
		NumElements:    getUint32(src[25:]),
		Stride:         getUint32(src[29:]),
		ElementStart:   getUint32(src[33:]),
		IsBackbuffer:   src[37] != 0,
	}
}

// shaderArgumentSize is the fixed wire size of a ShaderArgument record.
const shaderArgumentSize = 4 + 4 + 4

func putShaderArgument(dst []byte, a gpuhal.ShaderArgument) {
	putResource(dst[0:], a.ConstantBuffer)
	putUint32(dst[4:], a.ConstantBufferOffset)
	putShaderView(dst[8:], a.ShaderView)
}

func getShaderArgument(src []byte) gpuhal.ShaderArgument {
	return gpuhal.ShaderArgument{
		ConstantBuffer:       getResource(src[0:]),
		ConstantBufferOffset: getUint32(src[4:]),
		ShaderView:           getShaderView(src[8:]),
	}
}
