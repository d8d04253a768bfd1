// this code is based on https://github.com/brunocalza/go-bustub
// there is license and copyright notice in licenses/go-bustub dir

package page

import (
	pair "github.com/notEpsilon/go-pair"
)

// HashTablePair is one slot of a bucket page
type HashTablePair struct {
	key   uint32
	value uint32
}

const sizeOfHashTablePair = 8
const BucketArraySize = 4 * 4096 / (4*sizeOfHashTablePair + 1)

/**
 * Bucket page for the extendible hash table. Stores key and value together
 * within the page. Supports non-unique keys as long as the values differ.
 *
 * Bucket page format (keys are stored in order):
 *  ----------------------------------------------------------------
 * | occupied bitmap | readable bitmap | KEY(1) + VALUE(1) | ... | KEY(n) + VALUE(n)
 *  ----------------------------------------------------------------
 *
 * The occupied bit records that a slot was ever used within the bucket's
 * current epoch, the readable bit that the slot currently holds a live
 * entry. readable implies occupied.
 */
type HashTableBucketPage struct {
	occupied [(BucketArraySize-1)/8 + 1]byte
	readable [(BucketArraySize-1)/8 + 1]byte
	array    [BucketArraySize]HashTablePair
}

// KeyAt gets the key at an index in the bucket
func (page *HashTableBucketPage) KeyAt(index uint32) uint32 {
	return page.array[index].key
}

// ValueAt gets the value at an index in the bucket
func (page *HashTableBucketPage) ValueAt(index uint32) uint32 {
	return page.array[index].value
}

// GetValue collects the values of every live entry whose key matches
func (page *HashTableBucketPage) GetValue(key uint32) []uint32 {
	result := make([]uint32, 0)
	for index := uint32(0); index < BucketArraySize; index++ {
		if page.IsReadable(index) && page.array[index].key == key {
			result = append(result, page.array[index].value)
		}
	}
	return result
}

// Insert puts the pair into the first vacant slot. Returns false when the
// exact (key, value) pair is already present or the bucket is full.
func (page *HashTableBucketPage) Insert(key uint32, value uint32) bool {
	vacant := uint32(BucketArraySize)
	for index := uint32(0); index < BucketArraySize; index++ {
		if page.IsReadable(index) {
			if page.array[index].key == key && page.array[index].value == value {
				return false
			}
		} else if vacant == BucketArraySize {
			vacant = index
		}
	}

	if vacant == BucketArraySize {
		return false
	}

	page.array[vacant] = HashTablePair{key, value}
	page.occupied[vacant/8] |= 1 << (vacant % 8)
	page.readable[vacant/8] |= 1 << (vacant % 8)
	return true
}

// Remove clears the readable bit of the exact (key, value) match. The
// occupied bit stays set until the bucket is re-initialized.
func (page *HashTableBucketPage) Remove(key uint32, value uint32) bool {
	for index := uint32(0); index < BucketArraySize; index++ {
		if page.IsReadable(index) && page.array[index].key == key && page.array[index].value == value {
			page.RemoveAt(index)
			return true
		}
	}
	return false
}

// RemoveAt clears the readable bit at index
func (page *HashTableBucketPage) RemoveAt(index uint32) {
	page.readable[index/8] &= ^(byte(1) << (index % 8))
}

// IsOccupied returns whether the slot was ever used within this epoch
func (page *HashTableBucketPage) IsOccupied(index uint32) bool {
	return (page.occupied[index/8] & (1 << (index % 8))) != 0
}

// IsReadable returns whether the slot holds a live entry
func (page *HashTableBucketPage) IsReadable(index uint32) bool {
	return (page.readable[index/8] & (1 << (index % 8))) != 0
}

// NumReadable returns the number of live entries
func (page *HashTableBucketPage) NumReadable() uint32 {
	ret := uint32(0)
	for index := uint32(0); index < BucketArraySize; index++ {
		if page.IsReadable(index) {
			ret++
		}
	}
	return ret
}

// IsFull returns whether no vacant slot is left
func (page *HashTableBucketPage) IsFull() bool {
	for index := uint32(0); index < BucketArraySize; index++ {
		if !page.IsReadable(index) {
			return false
		}
	}
	return true
}

// IsEmpty returns whether the bucket has no live entry
func (page *HashTableBucketPage) IsEmpty() bool {
	for index := uint32(0); index < BucketArraySize; index++ {
		if page.IsReadable(index) {
			return false
		}
	}
	return true
}

// GetAllPairs returns the live entries of the bucket. Used by the split
// path to rehash a bucket's contents.
func (page *HashTableBucketPage) GetAllPairs() []pair.Pair[uint32, uint32] {
	pairs := make([]pair.Pair[uint32, uint32], 0, page.NumReadable())
	for index := uint32(0); index < BucketArraySize; index++ {
		if page.IsReadable(index) {
			pairs = append(pairs, pair.Pair[uint32, uint32]{First: page.array[index].key, Second: page.array[index].value})
		}
	}
	return pairs
}

// ResetMemory starts a new epoch for the bucket, clearing both bitmaps
func (page *HashTableBucketPage) ResetMemory() {
	*page = HashTableBucketPage{}
}
