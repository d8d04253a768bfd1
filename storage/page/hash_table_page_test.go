package page

import (
	"testing"
	"unsafe"

	"github.com/mkaneda/KawahagiDB/common"
	testingpkg "github.com/mkaneda/KawahagiDB/testing/testing_assert"
	"github.com/mkaneda/KawahagiDB/types"
)

func TestPageLayoutsFitThePage(t *testing.T) {
	testingpkg.SimpleAssert(t, unsafe.Sizeof(HashTableDirectoryPage{}) <= common.PageSize)
	testingpkg.SimpleAssert(t, unsafe.Sizeof(HashTableBucketPage{}) <= common.PageSize)
}

func TestHashTableBucketPage(t *testing.T) {
	data := &[common.PageSize]byte{}
	bucketPage := (*HashTableBucketPage)(unsafe.Pointer(data))

	for i := uint32(0); i < 10; i++ {
		testingpkg.SimpleAssert(t, bucketPage.Insert(i, i))
	}

	for i := uint32(0); i < 10; i++ {
		testingpkg.Equals(t, i, bucketPage.KeyAt(i))
		testingpkg.Equals(t, i, bucketPage.ValueAt(i))
	}

	// the exact pair is rejected, another value under the same key is not
	testingpkg.SimpleAssert(t, !bucketPage.Insert(5, 5))
	testingpkg.SimpleAssert(t, bucketPage.Insert(5, 50))
	testingpkg.SimpleAssert(t, bucketPage.Remove(5, 50))

	for i := uint32(0); i < 10; i++ {
		if i%2 == 1 {
			testingpkg.SimpleAssert(t, bucketPage.Remove(i, i))
		}
	}
	testingpkg.SimpleAssert(t, !bucketPage.Remove(1, 1))

	// removal clears readable but occupied keeps recording history
	for i := uint32(0); i < 15; i++ {
		if i < 11 {
			testingpkg.Assert(t, bucketPage.IsOccupied(i), "bucket page should be occupied at %d", i)
			if i%2 == 1 || i == 10 {
				testingpkg.Assert(t, !bucketPage.IsReadable(i), "bucket page should not be readable at %d", i)
			} else {
				testingpkg.Assert(t, bucketPage.IsReadable(i), "bucket page should be readable at %d", i)
			}
		} else {
			testingpkg.Assert(t, !bucketPage.IsOccupied(i), "bucket page should not be occupied at %d", i)
		}
	}

	testingpkg.Equals(t, uint32(5), bucketPage.NumReadable())

	// vacated slots are reused by later inserts
	testingpkg.SimpleAssert(t, bucketPage.Insert(100, 100))
	testingpkg.Equals(t, uint32(100), bucketPage.KeyAt(1))

	bucketPage.ResetMemory()
	testingpkg.SimpleAssert(t, bucketPage.IsEmpty())
	testingpkg.SimpleAssert(t, !bucketPage.IsOccupied(0))
}

func TestHashTableBucketPageFill(t *testing.T) {
	data := &[common.PageSize]byte{}
	bucketPage := (*HashTableBucketPage)(unsafe.Pointer(data))

	for i := uint32(0); i < BucketArraySize; i++ {
		testingpkg.SimpleAssert(t, bucketPage.Insert(i, i))
	}
	testingpkg.SimpleAssert(t, bucketPage.IsFull())
	testingpkg.SimpleAssert(t, !bucketPage.Insert(BucketArraySize, BucketArraySize))
	testingpkg.Equals(t, uint32(BucketArraySize), bucketPage.NumReadable())
	testingpkg.Equals(t, BucketArraySize, len(bucketPage.GetAllPairs()))
}

func TestHashTableDirectoryPage(t *testing.T) {
	data := &[common.PageSize]byte{}
	dirPage := (*HashTableDirectoryPage)(unsafe.Pointer(data))

	dirPage.SetPageId(types.PageID(7))
	testingpkg.Equals(t, types.PageID(7), dirPage.GetPageId())
	dirPage.SetLSN(types.LSN(3))
	testingpkg.Equals(t, types.LSN(3), dirPage.GetLSN())

	testingpkg.Equals(t, uint32(0), dirPage.GetGlobalDepth())
	testingpkg.Equals(t, uint32(1), dirPage.Size())

	// two buckets at depth one
	dirPage.IncrGlobalDepth()
	testingpkg.Equals(t, uint32(1), dirPage.GetGlobalDepthMask())
	dirPage.SetBucketPageId(0, types.PageID(10))
	dirPage.SetLocalDepth(0, 1)
	dirPage.SetBucketPageId(1, types.PageID(11))
	dirPage.SetLocalDepth(1, 1)

	testingpkg.Equals(t, uint32(1), dirPage.GetLocalHighBit(0))
	testingpkg.Equals(t, uint32(1), dirPage.GetSplitImageIndex(0))
	testingpkg.Equals(t, uint32(0), dirPage.GetSplitImageIndex(1))
	testingpkg.SimpleAssert(t, !dirPage.CanShrink())

	dirPage.VerifyIntegrity()

	// collapsing bucket 1 into 0 makes the directory shrinkable
	dirPage.SetBucketPageId(1, types.PageID(10))
	dirPage.SetLocalDepth(0, 0)
	dirPage.SetLocalDepth(1, 0)
	dirPage.VerifyIntegrity()
	testingpkg.SimpleAssert(t, dirPage.CanShrink())
	dirPage.DecrGlobalDepth()
	testingpkg.Equals(t, uint32(1), dirPage.Size())
	dirPage.VerifyIntegrity()
}

func TestDirectoryIntegrityViolationsAreLoud(t *testing.T) {
	data := &[common.PageSize]byte{}
	dirPage := (*HashTableDirectoryPage)(unsafe.Pointer(data))

	dirPage.IncrGlobalDepth()
	dirPage.SetBucketPageId(0, types.PageID(10))
	dirPage.SetBucketPageId(1, types.PageID(11))
	dirPage.SetLocalDepth(0, 1)
	// a local depth above the global depth violates invariant A
	dirPage.SetLocalDepth(1, 2)

	defer func() {
		if recover() == nil {
			t.Fatal("VerifyIntegrity accepted a corrupt directory")
		}
	}()
	dirPage.VerifyIntegrity()
}
