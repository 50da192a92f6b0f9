// Package cmdstream implements the command-stream writer and parser:
// a closed set of trivially-copyable command variants, each a
// fixed-size record beginning with a single-byte type tag, written
// into and read back from a caller-owned byte buffer.
//
// No error propagates through a decoded stream itself — a command
// naming a freed or null handle is only caught by the translator at
// recording time (see package statecache), not here.
package cmdstream

// Tag identifies a command variant at a fixed offset (byte 0) of its
// record.
type Tag uint8

// Command variant tags, one per entry of the closed command set.
const (
	TagBeginRenderPass Tag = iota
	TagEndRenderPass
	TagTransitionResources
	TagTransitionImageSlices
	TagBarrierUAV
	TagDraw
	TagDrawIndirect
	TagDispatch
	TagCopyBuffer
	TagCopyTexture
	TagCopyBufferToTexture
	TagCopyTextureToBuffer
	TagResolveTexture
	TagWriteTimestamp
	TagResolveQueries
	TagBeginDebugLabel
	TagEndDebugLabel
	TagUpdateBottomLevel
	TagUpdateTopLevel
	TagDispatchRays
	TagClearTextures

	numTags
)

func (t Tag) String() string {
	switch t {
	case TagBeginRenderPass:
		return "begin_render_pass"
	case TagEndRenderPass:
		return "end_render_pass"
	case TagTransitionResources:
		return "transition_resources"
	case TagTransitionImageSlices:
		return "transition_image_slices"
	case TagBarrierUAV:
		return "barrier_uav"
	case TagDraw:
		return "draw"
	case TagDrawIndirect:
		return "draw_indirect"
	case TagDispatch:
		return "dispatch"
	case TagCopyBuffer:
		return "copy_buffer"
	case TagCopyTexture:
		return "copy_texture"
	case TagCopyBufferToTexture:
		return "copy_buffer_to_texture"
	case TagCopyTextureToBuffer:
		return "copy_texture_to_buffer"
	case TagResolveTexture:
		return "resolve_texture"
	case TagWriteTimestamp:
		return "write_timestamp"
	case TagResolveQueries:
		return "resolve_queries"
	case TagBeginDebugLabel:
		return "begin_debug_label"
	case TagEndDebugLabel:
		return "end_debug_label"
	case TagUpdateBottomLevel:
		return "update_bottom_level"
	case TagUpdateTopLevel:
		return "update_top_level"
	case TagDispatchRays:
		return "dispatch_rays"
	case TagClearTextures:
		return "clear_textures"
	default:
		return "unknown_tag"
	}
}

// Command is implemented by every variant. Size is the record's fixed
// wire size including the tag byte; it does not depend on how many
// slots of an embedded capped collection are in use, so Parse can
// advance past each decoded record by its Size alone.
type Command interface {
	Tag() Tag
	Size() int
	encode(dst []byte)
}
