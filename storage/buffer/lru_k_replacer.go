package buffer

import (
	"fmt"
	"sync"

	"github.com/mkaneda/KawahagiDB/common"
)

type lruKNode struct {
	// last k access timestamps, oldest first
	history     []uint64
	isEvictable bool
}

/**
 * LRUKReplacer picks the frame whose k-th most recent access is furthest in
 * the past. Frames with fewer than k recorded accesses have an infinite
 * backward k-distance and are evicted first, ordered by their earliest
 * recorded access.
 */
type LRUKReplacer struct {
	nodeStore        map[FrameID]*lruKNode
	currentTimestamp uint64
	curSize          uint32
	k                uint32
	mutex            *sync.Mutex
}

// NewLRUKReplacer instantiates a replacer keeping k timestamps per frame
func NewLRUKReplacer(numFrames uint32, k uint32) *LRUKReplacer {
	common.SH_Assert(k > 0, "LRUKReplacer: k must be positive")
	return &LRUKReplacer{make(map[FrameID]*lruKNode, numFrames), 0, 0, k, new(sync.Mutex)}
}

// RecordAccess notes one access to the frame at the current timestamp
func (l *LRUKReplacer) RecordAccess(frameID FrameID, accessType AccessType) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	node, ok := l.nodeStore[frameID]
	if !ok {
		node = &lruKNode{history: make([]uint64, 0, l.k)}
		l.nodeStore[frameID] = node
	}

	node.history = append(node.history, l.currentTimestamp)
	l.currentTimestamp++
	if uint32(len(node.history)) > l.k {
		node.history = node.history[1:]
	}
}

// SetEvictable toggles the evictable flag of a tracked frame
func (l *LRUKReplacer) SetEvictable(frameID FrameID, setEvictable bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	node, ok := l.nodeStore[frameID]
	if !ok {
		if common.EnableDebug {
			panic(fmt.Sprintf("LRUKReplacer::SetEvictable frame %d is not tracked", frameID))
		}
		return
	}

	if node.isEvictable != setEvictable {
		if setEvictable {
			l.curSize++
		} else {
			l.curSize--
		}
	}
	node.isEvictable = setEvictable
}

// Evict removes and returns the frame chosen by the LRU-K policy. Frames
// with fewer than k accesses are preferred, ordered by first recorded
// access. Among frames with full histories the one whose k-th most recent
// access is oldest wins.
func (l *LRUKReplacer) Evict() (FrameID, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	victim := FrameID(0)
	victimIsCold := false
	victimStamp := uint64(0)
	found := false

	for frameID, node := range l.nodeStore {
		if !node.isEvictable {
			continue
		}
		// for frames below k accesses history[0] is the first access ever,
		// for full frames it is the k-th most recent access
		isCold := uint32(len(node.history)) < l.k
		stamp := node.history[0]

		if !found ||
			(isCold && !victimIsCold) ||
			(isCold == victimIsCold && stamp < victimStamp) {
			victim = frameID
			victimIsCold = isCold
			victimStamp = stamp
			found = true
		}
	}

	if !found {
		return 0, false
	}

	delete(l.nodeStore, victim)
	l.curSize--
	return victim, true
}

// Remove purges the tracking state of an evictable frame
func (l *LRUKReplacer) Remove(frameID FrameID) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	node, ok := l.nodeStore[frameID]
	if !ok {
		return
	}
	if !node.isEvictable {
		panic(fmt.Sprintf("LRUKReplacer::Remove frame %d is not evictable", frameID))
	}
	delete(l.nodeStore, frameID)
	l.curSize--
}

// Size returns the number of evictable frames
func (l *LRUKReplacer) Size() uint32 {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.curSize
}
