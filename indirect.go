package gpuhal

import "encoding/binary"

// IndirectDrawArgs is the 32-bit-word layout of a non-indexed indirect
// draw record, matching the native argument buffer format consumed by
// both backends' indirect-draw entry points.
type IndirectDrawArgs struct {
	NumVertices   uint32
	NumInstances  uint32
	VertexOffset  uint32
	FirstInstance uint32
}

// IndirectDrawArgsSize is the packed size, in bytes, of IndirectDrawArgs.
const IndirectDrawArgsSize = 4 * 4

// Pack serializes a to the native word layout.
func (a IndirectDrawArgs) Pack() [IndirectDrawArgsSize]byte {
	var buf [IndirectDrawArgsSize]byte
	binary.LittleEndian.PutUint32(buf[0:], a.NumVertices)
	binary.LittleEndian.PutUint32(buf[4:], a.NumInstances)
	binary.LittleEndian.PutUint32(buf[8:], a.VertexOffset)
	binary.LittleEndian.PutUint32(buf[12:], a.FirstInstance)
	return buf
}

// IndirectDrawIndexedArgs is the 32-bit-word layout of an indexed
// indirect draw record.
type IndirectDrawIndexedArgs struct {
	NumIndices    uint32
	NumInstances  uint32
	IndexOffset   uint32
	VertexOffset  uint32
	FirstInstance uint32
}

// IndirectDrawIndexedArgsSize is the packed size, in bytes, of
// IndirectDrawIndexedArgs.
const IndirectDrawIndexedArgsSize = 5 * 4

// Pack serializes a to the native word layout.
func (a IndirectDrawIndexedArgs) Pack() [IndirectDrawIndexedArgsSize]byte {
	var buf [IndirectDrawIndexedArgsSize]byte
	binary.LittleEndian.PutUint32(buf[0:], a.NumIndices)
	binary.LittleEndian.PutUint32(buf[4:], a.NumInstances)
	binary.LittleEndian.PutUint32(buf[8:], a.IndexOffset)
	binary.LittleEndian.PutUint32(buf[12:], a.VertexOffset)
	binary.LittleEndian.PutUint32(buf[16:], a.FirstInstance)
	return buf
}

// IndirectDrawIndexedIDArgs is the 32-bit-word layout of an indexed
// indirect draw record that also carries a per-draw identifier, used
// by multi-draw-indirect command streams so the shader can recover
// gl_DrawID / SV_DrawIndex equivalents without API-native support.
type IndirectDrawIndexedIDArgs struct {
	DrawID        uint32
	NumIndices    uint32
	NumInstances  uint32
	IndexOffset   uint32
	VertexOffset  uint32
	FirstInstance uint32
}

// IndirectDrawIndexedIDArgsSize is the packed size, in bytes, of
// IndirectDrawIndexedIDArgs.
const IndirectDrawIndexedIDArgsSize = 6 * 4

// Pack serializes a to the native word layout.
func (a IndirectDrawIndexedIDArgs) Pack() [IndirectDrawIndexedIDArgsSize]byte {
	var buf [IndirectDrawIndexedIDArgsSize]byte
	binary.LittleEndian.PutUint32(buf[0:], a.DrawID)
	binary.LittleEndian.PutUint32(buf[4:], a.NumIndices)
	binary.LittleEndian.PutUint32(buf[8:], a.NumInstances)
	binary.LittleEndian.PutUint32(buf[12:], a.IndexOffset)
	binary.LittleEndian.PutUint32(buf[16:], a.VertexOffset)
	binary.LittleEndian.PutUint32(buf[20:], a.FirstInstance)
	return buf
}
