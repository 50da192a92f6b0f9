package gpuhal

import (
	"encoding/binary"
	"math"

	handlePkg "github.com/gviegas/gpuhal/handle"
)

// InstanceRecordSize is the fixed size, in bytes, of an
// AccelStructInstance once packed: no padding is permitted, since
// both native backends read this layout directly as an array of
// opaque bytes uploaded to an instance buffer.
const InstanceRecordSize = 64

// AccelStructInstance is one entry of a top-level acceleration
// structure's instance buffer: a row-major affine transform, packed
// identity/visibility and hit-group/flags words, and the bottom-level
// structure it instances. Pack serializes it to the exact 64-byte
// layout both native backends expect.
type AccelStructInstance struct {
	// Transform is a 3x4 row-major affine transform (3 rows of 4
	// floats: the last column is translation).
	Transform [3][4]float32

	InstanceID      uint32 // low 24 bits significant
	VisibilityMask  uint8

	HitGroupIndex uint32 // low 24 bits significant
	Flags         InstanceFlags

	BottomLevel AccelStructHandle
}

// InstanceFlags modify how an instance is consumed during traversal.
type InstanceFlags uint8

// Instance flags.
const (
	InstanceTriangleCullDisable InstanceFlags = 1 << iota
	InstanceTriangleFrontCCW
	InstanceForceOpaque
	InstanceForceNonOpaque
)

// Pack serializes the instance to the 64-byte native layout: 12
// floats, then instance_id:24|visibility_mask:8, then
// hit_group_index:24|flags:8, then the 64-bit opaque handle value of
// the referenced bottom-level structure.
func (in *AccelStructInstance) Pack() [InstanceRecordSize]byte {
	var buf [InstanceRecordSize]byte
	off := 0
	for r := 0; r < 3; r++ {
		for c := 0; c < 4; c++ {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(in.Transform[r][c]))
			off += 4
		}
	}
	binary.LittleEndian.PutUint32(buf[off:], (in.InstanceID&0xFFFFFF)|(uint32(in.VisibilityMask)<<24))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], (in.HitGroupIndex&0xFFFFFF)|(uint32(in.Flags)<<24))
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], uint64(in.BottomLevel.Raw()))
	return buf
}

// handleFromUint64 narrows a zero-extended 64-bit instance-record
// field back to a 32-bit Handle. The upper 32 bits are reserved by
// the native layout for backends that address acceleration structures
// by GPU virtual address rather than by pool handle; this backend
// always zero-extends on Pack and truncates on unpack.
func handleFromUint64(v uint64) handlePkg.Handle {
	return handlePkg.Handle(uint32(v))
}

// UnpackAccelStructInstance is the inverse of Pack, used by tests and
// by capture tooling that inspects an uploaded instance buffer.
func UnpackAccelStructInstance(buf [InstanceRecordSize]byte) AccelStructInstance {
	var in AccelStructInstance
	off := 0
	for r := 0; r < 3; r++ {
		for c := 0; c < 4; c++ {
			in.Transform[r][c] = math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
			off += 4
		}
	}
	w0 := binary.LittleEndian.Uint32(buf[off:])
	in.InstanceID = w0 & 0xFFFFFF
	in.VisibilityMask = uint8(w0 >> 24)
	off += 4
	w1 := binary.LittleEndian.Uint32(buf[off:])
	in.HitGroupIndex = w1 & 0xFFFFFF
	in.Flags = InstanceFlags(w1 >> 24)
	off += 4
	raw := binary.LittleEndian.Uint64(buf[off:])
	in.BottomLevel = AccelStructFromRaw(handleFromUint64(raw))
	return in
}
