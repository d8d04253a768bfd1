package hash

import (
	"unsafe"

	"github.com/golang-collections/collections/stack"
	"github.com/mkaneda/KawahagiDB/common"
	"github.com/mkaneda/KawahagiDB/concurrency"
	kerrors "github.com/mkaneda/KawahagiDB/errors"
	"github.com/mkaneda/KawahagiDB/storage/buffer"
	"github.com/mkaneda/KawahagiDB/storage/page"
	"github.com/mkaneda/KawahagiDB/types"
)

/**
 * ExtendibleHashTable is a disk-backed hash index over the buffer pool.
 * A directory page maps the low globalDepth bits of a key's hash to bucket
 * pages which hold the entries. Buckets split when full, growing the
 * directory as needed, and merge back when they drain.
 *
 * The table stores the 32-bit hash of the key together with the value, so
 * lookups compare hashes. Non-unique keys are supported; the exact
 * (key, value) pair must be unique.
 *
 * Latching: the table latch protects the directory structure. Reads and
 * point inserts take it shared and latch the bucket page through a page
 * guard. Splits and merges take it exclusive. Buckets always latch after
 * the directory, which fixes the lock order.
 */
type ExtendibleHashTable struct {
	directoryPageId types.PageID
	bpm             *buffer.BufferPoolManager
	tableLatch      common.ReaderWriterLatch
	hashFn          HashFunc
}

// NewExtendibleHashTable opens the table whose directory lives at
// directoryPageId, or builds a fresh one when InvalidPageID is passed.
func NewExtendibleHashTable(bpm *buffer.BufferPoolManager, hashFn HashFunc, directoryPageId types.PageID) *ExtendibleHashTable {
	ht := &ExtendibleHashTable{directoryPageId, bpm, common.NewRWLatch(), hashFn}
	if directoryPageId != types.InvalidPageID {
		return ht
	}

	dirGuard := bpm.NewPageGuarded()
	common.SH_Assert(dirGuard != nil, "could not allocate the hash table directory page")
	dirPage := castDirectoryPage(dirGuard.GetDataMut())
	dirPage.SetPageId(dirGuard.PageId())
	ht.directoryPageId = dirGuard.PageId()

	bucketGuard := bpm.NewPageGuarded()
	common.SH_Assert(bucketGuard != nil, "could not allocate the initial bucket page")
	dirPage.SetBucketPageId(0, bucketGuard.PageId())
	dirPage.SetLocalDepth(0, 0)
	bucketGuard.Drop()
	dirGuard.Drop()

	return ht
}

func castDirectoryPage(data *[common.PageSize]byte) *page.HashTableDirectoryPage {
	return (*page.HashTableDirectoryPage)(unsafe.Pointer(data))
}

func castBucketPage(data *[common.PageSize]byte) *page.HashTableBucketPage {
	return (*page.HashTableBucketPage)(unsafe.Pointer(data))
}

// GetDirectoryPageId returns the page id the table can be reopened with
func (ht *ExtendibleHashTable) GetDirectoryPageId() types.PageID {
	return ht.directoryPageId
}

func (ht *ExtendibleHashTable) hash(key []byte) uint32 {
	return ht.hashFn(key)
}

// GetValue returns the values stored under key
func (ht *ExtendibleHashTable) GetValue(txn *concurrency.Transaction, key []byte) []uint32 {
	ht.tableLatch.RLock()
	defer ht.tableLatch.RUnlock()

	keyHash := ht.hash(key)

	dirGuard := ht.bpm.FetchPageRead(ht.directoryPageId)
	dirPage := castDirectoryPage(dirGuard.GetData())
	bucketPageId := dirPage.GetBucketPageId(keyHash & dirPage.GetGlobalDepthMask())

	bucketGuard := ht.bpm.FetchPageRead(bucketPageId)
	dirGuard.Drop()
	bucketPage := castBucketPage(bucketGuard.GetData())
	result := bucketPage.GetValue(keyHash)
	bucketGuard.Drop()

	return result
}

// Insert adds the (key, value) pair to the table. A full bucket escalates
// to the split path under the exclusive table latch.
func (ht *ExtendibleHashTable) Insert(txn *concurrency.Transaction, key []byte, value uint32) error {
	keyHash := ht.hash(key)

	ht.tableLatch.RLock()

	dirGuard := ht.bpm.FetchPageRead(ht.directoryPageId)
	dirPage := castDirectoryPage(dirGuard.GetData())
	bucketPageId := dirPage.GetBucketPageId(keyHash & dirPage.GetGlobalDepthMask())

	bucketGuard := ht.bpm.FetchPageWrite(bucketPageId)
	dirGuard.Drop()
	bucketPage := castBucketPage(bucketGuard.GetData())

	if !bucketPage.IsFull() {
		inserted := castBucketPage(bucketGuard.GetDataMut()).Insert(keyHash, value)
		bucketGuard.Drop()
		ht.tableLatch.RUnlock()
		if !inserted {
			return kerrors.ErrDuplicateEntry
		}
		return nil
	}

	// the bucket is full. Reject a duplicate before splitting; otherwise the
	// split could never separate the pair from itself.
	for _, v := range bucketPage.GetValue(keyHash) {
		if v == value {
			bucketGuard.Drop()
			ht.tableLatch.RUnlock()
			return kerrors.ErrDuplicateEntry
		}
	}
	bucketGuard.Drop()
	ht.tableLatch.RUnlock()

	ht.tableLatch.WLock()
	defer ht.tableLatch.WUnlock()
	return ht.splitInsert(txn, keyHash, value)
}

// splitInsert retries the insert under the exclusive table latch, splitting
// the target bucket (and growing the directory) until a slot opens up or
// the directory cannot discriminate any further.
func (ht *ExtendibleHashTable) splitInsert(txn *concurrency.Transaction, keyHash uint32, value uint32) error {
	for {
		dirGuard := ht.bpm.FetchPageWrite(ht.directoryPageId)
		dirPage := castDirectoryPage(dirGuard.GetDataMut())
		bucketIdx := keyHash & dirPage.GetGlobalDepthMask()
		bucketPageId := dirPage.GetBucketPageId(bucketIdx)

		bucketGuard := ht.bpm.FetchPageWrite(bucketPageId)
		bucketPage := castBucketPage(bucketGuard.GetDataMut())

		if !bucketPage.IsFull() {
			inserted := bucketPage.Insert(keyHash, value)
			bucketGuard.Drop()
			dirGuard.Drop()
			if !inserted {
				return kerrors.ErrDuplicateEntry
			}
			return nil
		}

		localDepth := dirPage.GetLocalDepth(bucketIdx)
		if localDepth == dirPage.GetGlobalDepth() {
			if dirPage.GetGlobalDepth() >= common.HashTableMaxDepth {
				bucketGuard.Drop()
				dirGuard.Drop()
				return kerrors.ErrHashDepthExhausted
			}

			// double the directory. The new upper half mirrors the lower.
			prevSize := dirPage.Size()
			dirPage.IncrGlobalDepth()
			for i := prevSize; i < dirPage.Size(); i++ {
				dirPage.SetBucketPageId(i, dirPage.GetBucketPageId(i&(prevSize-1)))
				dirPage.SetLocalDepth(i, uint8(dirPage.GetLocalDepth(i&(prevSize-1))))
			}
		}

		newBucketGuard := ht.bpm.NewPageGuarded()
		if newBucketGuard == nil {
			bucketGuard.Drop()
			dirGuard.Drop()
			return kerrors.ErrNoFreeFrame
		}
		newBucketPage := castBucketPage(newBucketGuard.GetDataMut())
		newBucketPageId := newBucketGuard.PageId()

		// the bit that tells the split pair apart at the deeper local depth
		newHighBit := uint32(1) << localDepth

		for i := uint32(0); i < dirPage.Size(); i++ {
			if dirPage.GetBucketPageId(i) != bucketPageId {
				continue
			}
			if i&newHighBit != 0 {
				dirPage.SetBucketPageId(i, newBucketPageId)
			}
			dirPage.SetLocalDepth(i, uint8(localDepth+1))
		}

		for _, entry := range bucketPage.GetAllPairs() {
			if entry.First&newHighBit != 0 {
				newBucketPage.Insert(entry.First, entry.Second)
				bucketPage.Remove(entry.First, entry.Second)
			}
		}

		newBucketGuard.Drop()
		bucketGuard.Drop()
		dirGuard.Drop()
	}
}

// Remove deletes the exact (key, value) pair. A drained bucket triggers
// the merge path under the exclusive table latch.
func (ht *ExtendibleHashTable) Remove(txn *concurrency.Transaction, key []byte, value uint32) bool {
	keyHash := ht.hash(key)

	ht.tableLatch.RLock()

	dirGuard := ht.bpm.FetchPageRead(ht.directoryPageId)
	dirPage := castDirectoryPage(dirGuard.GetData())
	bucketIdx := keyHash & dirPage.GetGlobalDepthMask()
	bucketPageId := dirPage.GetBucketPageId(bucketIdx)

	bucketGuard := ht.bpm.FetchPageWrite(bucketPageId)
	dirGuard.Drop()
	bucketPage := castBucketPage(bucketGuard.GetDataMut())

	removed := bucketPage.Remove(keyHash, value)
	becameEmpty := bucketPage.IsEmpty()
	bucketGuard.Drop()
	ht.tableLatch.RUnlock()

	if removed && becameEmpty {
		ht.tableLatch.WLock()
		ht.merge(txn, keyHash)
		ht.tableLatch.WUnlock()
	}

	return removed
}

// merge folds empty buckets into their split images while the exclusive
// table latch is held. A worklist carries cascading merge candidates; the
// directory shrinks whenever every local depth drops below the global one.
func (ht *ExtendibleHashTable) merge(txn *concurrency.Transaction, keyHash uint32) {
	workStack := stack.New()
	workStack.Push(keyHash)

	for workStack.Len() > 0 {
		curHash := workStack.Pop().(uint32)

		dirGuard := ht.bpm.FetchPageWrite(ht.directoryPageId)
		dirPage := castDirectoryPage(dirGuard.GetDataMut())

		bucketIdx := curHash & dirPage.GetGlobalDepthMask()
		localDepth := dirPage.GetLocalDepth(bucketIdx)
		if localDepth == 0 {
			dirGuard.Drop()
			continue
		}

		bucketPageId := dirPage.GetBucketPageId(bucketIdx)
		buddyIdx := dirPage.GetSplitImageIndex(bucketIdx)
		buddyPageId := dirPage.GetBucketPageId(buddyIdx)

		if buddyPageId == bucketPageId || dirPage.GetLocalDepth(buddyIdx) != localDepth {
			dirGuard.Drop()
			continue
		}

		bucketGuard := ht.bpm.FetchPageRead(bucketPageId)
		bucketEmpty := castBucketPage(bucketGuard.GetData()).IsEmpty()
		bucketGuard.Drop()

		buddyGuard := ht.bpm.FetchPageRead(buddyPageId)
		buddyEmpty := castBucketPage(buddyGuard.GetData()).IsEmpty()
		buddyGuard.Drop()

		if !bucketEmpty && !buddyEmpty {
			dirGuard.Drop()
			continue
		}

		freedPageId := bucketPageId
		survivorPageId := buddyPageId
		if buddyEmpty && !bucketEmpty {
			freedPageId = buddyPageId
			survivorPageId = bucketPageId
		}

		for i := uint32(0); i < dirPage.Size(); i++ {
			if dirPage.GetBucketPageId(i) == freedPageId {
				dirPage.SetBucketPageId(i, survivorPageId)
			}
			if dirPage.GetBucketPageId(i) == survivorPageId {
				dirPage.SetLocalDepth(i, uint8(localDepth-1))
			}
		}

		for dirPage.CanShrink() {
			dirPage.DecrGlobalDepth()
		}

		deleted := ht.bpm.DeletePage(freedPageId)
		common.SH_Assert(deleted, "merge could not delete the freed bucket page")

		// the surviving bucket may itself be empty now; try one level up
		if bucketEmpty && buddyEmpty {
			workStack.Push(curHash)
		}

		dirGuard.Drop()
	}
}

// GetGlobalDepth returns the directory's current global depth
func (ht *ExtendibleHashTable) GetGlobalDepth() uint32 {
	ht.tableLatch.RLock()
	defer ht.tableLatch.RUnlock()

	dirGuard := ht.bpm.FetchPageRead(ht.directoryPageId)
	defer dirGuard.Drop()
	return castDirectoryPage(dirGuard.GetData()).GetGlobalDepth()
}

// VerifyIntegrity checks the directory invariants, panicking on violation
func (ht *ExtendibleHashTable) VerifyIntegrity() {
	ht.tableLatch.RLock()
	defer ht.tableLatch.RUnlock()

	dirGuard := ht.bpm.FetchPageRead(ht.directoryPageId)
	defer dirGuard.Drop()
	castDirectoryPage(dirGuard.GetData()).VerifyIntegrity()
}
