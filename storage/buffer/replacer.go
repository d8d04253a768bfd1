package buffer

// FrameID is the type for frame id
type FrameID uint32

// AccessType is a hint recorded together with a frame access
type AccessType int32

const (
	AccessUnknown AccessType = iota
	AccessLookup
	AccessScan
	AccessIndex
)

// Replacer chooses which frame gives up its page when the free list is
// empty. Frames become candidates only while marked evictable.
type Replacer interface {
	// RecordAccess notes one access to the frame. Tracking state is kept
	// even while the frame is not evictable.
	RecordAccess(frameID FrameID, accessType AccessType)
	// SetEvictable toggles whether the frame may be chosen as a victim
	SetEvictable(frameID FrameID, setEvictable bool)
	// Evict removes and returns the victim frame chosen by the policy
	Evict() (FrameID, bool)
	// Remove purges the frame's tracking state. The frame must be evictable.
	Remove(frameID FrameID)
	// Size returns the number of currently evictable frames
	Size() uint32
}
