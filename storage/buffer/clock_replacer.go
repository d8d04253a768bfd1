// this code is based on https://github.com/brunocalza/go-bustub
// there is license and copyright notice in licenses/go-bustub dir

package buffer

import (
	"sync"
)

/**
 * ClockReplacer keeps evictable frames on a circular list with one
 * reference bit each. The hand sweeps the ring, clearing reference bits
 * until it finds a frame whose bit is already clear.
 */
type ClockReplacer struct {
	cList     *circularList
	clockHand **node
	mutex     *sync.Mutex
}

// RecordAccess gives the frame a second chance if it is currently in the ring
func (c *ClockReplacer) RecordAccess(frameID FrameID, accessType AccessType) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	n := c.cList.find(frameID)
	if n != nil {
		n.value = true
	}
}

// SetEvictable inserts the frame into or removes it from the ring
func (c *ClockReplacer) SetEvictable(frameID FrameID, setEvictable bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if setEvictable {
		if !c.cList.hasKey(frameID) {
			c.cList.insert(frameID, true)
			if c.cList.size == 1 {
				c.clockHand = &c.cList.head
			}
		}
		return
	}

	n := c.cList.find(frameID)
	if n == nil {
		return
	}
	if (*c.clockHand) == n {
		c.clockHand = &(*c.clockHand).next
	}
	c.cList.remove(frameID)
}

// Evict removes the victim frame as defined by the clock policy
func (c *ClockReplacer) Evict() (FrameID, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.cList.size == 0 {
		return 0, false
	}

	currentNode := (*c.clockHand)
	for {
		if currentNode.value {
			currentNode.value = false
			c.clockHand = &currentNode.next
			currentNode = *c.clockHand
		} else {
			frameID := currentNode.key
			c.clockHand = &currentNode.next
			c.cList.remove(currentNode.key)
			return frameID, true
		}
	}
}

// Remove purges the frame from the ring unconditionally
func (c *ClockReplacer) Remove(frameID FrameID) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	n := c.cList.find(frameID)
	if n == nil {
		return
	}
	if (*c.clockHand) == n {
		c.clockHand = &(*c.clockHand).next
	}
	c.cList.remove(frameID)
}

// Size returns the number of frames in the ring
func (c *ClockReplacer) Size() uint32 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.cList.size
}

// NewClockReplacer instantiates a new clock replacer
func NewClockReplacer(poolSize uint32) *ClockReplacer {
	cList := newCircularList(poolSize)
	return &ClockReplacer{cList, &cList.head, new(sync.Mutex)}
}
