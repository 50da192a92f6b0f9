// Package handle implements the fixed-capacity, generation-checked object
// pools that back every GPU object class (resource, shader view, pipeline
// state, fence, command list, query range, acceleration structure,
// swapchain).
//
// A Handle is a 32-bit opaque key into a Pool. It is packed as
//
//	bits  0..15  index
//	bits 16..28  generation
//	bits 29..31  class tag
//
// and carries no ownership by itself. The all-ones value is the null
// sentinel for every class.
package handle

import "math"

// Handle is an opaque 32-bit reference to an object held in a Pool.
type Handle uint32

const (
	indexBits = 16
	genBits   = 13
	tagBits   = 3

	indexMask = (uint32(1) << indexBits) - 1
	genMask   = (uint32(1) << genBits) - 1
	tagMask   = (uint32(1) << tagBits) - 1
)

// Null is the sentinel value denoting "no object". It is not a valid
// handle to any object of any class.
const Null Handle = Handle(math.MaxUint32)

// Class identifies the object-class tag embedded in a Handle.
// It exists so that a misdirected handle (e.g. a resource handle
// passed where a shader-view handle is expected) can be rejected
// cheaply without consulting the pool.
type Class uint8

// Object classes, one per pool kind in the data model.
const (
	ClassResource Class = iota
	ClassShaderView
	ClassPipelineState
	ClassFence
	ClassCommandList
	ClassQueryRange
	ClassAccelStruct
	ClassSwapchain
)

// Pack builds a Handle from its constituent fields. It is used by Pool
// implementations and must not be called with out-of-range components.
func Pack(index uint32, gen uint32, class Class) Handle {
	return Handle(index&indexMask | (gen&genMask)<<indexBits | (uint32(class)&tagMask)<<(indexBits+genBits))
}

// Index returns the slot index encoded in h.
func (h Handle) Index() uint32 { return uint32(h) & indexMask }

// Generation returns the generation counter encoded in h.
func (h Handle) Generation() uint32 { return (uint32(h) >> indexBits) & genMask }

// Class returns the object-class tag encoded in h.
func (h Handle) Class() Class { return Class((uint32(h) >> (indexBits + genBits)) & tagMask) }

// IsNull reports whether h is the null sentinel.
func (h Handle) IsNull() bool { return h == Null }

// MaxIndex is the largest slot index a Handle can address; it bounds
// the capacity of any single Pool.
const MaxIndex = int(indexMask)
