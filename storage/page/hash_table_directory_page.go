package page

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/mkaneda/KawahagiDB/common"
	"github.com/mkaneda/KawahagiDB/types"
)

// DirectoryArraySize is the number of directory entries at max depth
const DirectoryArraySize = 1 << common.HashTableMaxDepth

/**
 * Directory page for the extendible hash table. Entry i holds the bucket
 * page id and local depth for the bucket addressed by the low globalDepth
 * bits equal to i.
 *
 * Directory page format (size in byte, little endian):
 * ------------------------------------------------------------------------------------
 * | PageId (4) | LSN (4) | GlobalDepth (4) | Reserved (4) | BucketPageIds (512 * 4) |
 * ------------------------------------------------------------------------------------
 * | LocalDepths (512 * 1) | Free space |
 * -------------------------------------
 *
 * The struct is mapped directly onto the page buffer with an unsafe cast,
 * the same way the bucket page is.
 */
type HashTableDirectoryPage struct {
	pageId        types.PageID
	lsn           types.LSN
	globalDepth   uint32
	reserved      uint32
	bucketPageIds [DirectoryArraySize]types.PageID
	localDepths   [DirectoryArraySize]uint8
}

func (page *HashTableDirectoryPage) GetPageId() types.PageID {
	return page.pageId
}

func (page *HashTableDirectoryPage) SetPageId(pageId types.PageID) {
	page.pageId = pageId
}

func (page *HashTableDirectoryPage) GetLSN() types.LSN {
	return page.lsn
}

func (page *HashTableDirectoryPage) SetLSN(lsn types.LSN) {
	page.lsn = lsn
}

func (page *HashTableDirectoryPage) GetGlobalDepth() uint32 {
	return page.globalDepth
}

// GetGlobalDepthMask returns a mask of globalDepth 1's and the rest 0's
func (page *HashTableDirectoryPage) GetGlobalDepthMask() uint32 {
	return (1 << page.globalDepth) - 1
}

func (page *HashTableDirectoryPage) IncrGlobalDepth() {
	common.SH_Assert(page.globalDepth < common.HashTableMaxDepth, "directory cannot grow past max depth")
	page.globalDepth++
}

func (page *HashTableDirectoryPage) DecrGlobalDepth() {
	common.SH_Assert(page.globalDepth > 0, "directory cannot shrink below depth zero")
	page.globalDepth--
}

// Size returns the number of directory entries currently addressable
func (page *HashTableDirectoryPage) Size() uint32 {
	return 1 << page.globalDepth
}

func (page *HashTableDirectoryPage) GetBucketPageId(index uint32) types.PageID {
	return page.bucketPageIds[index]
}

func (page *HashTableDirectoryPage) SetBucketPageId(index uint32, pageId types.PageID) {
	page.bucketPageIds[index] = pageId
}

func (page *HashTableDirectoryPage) GetLocalDepth(index uint32) uint32 {
	return uint32(page.localDepths[index])
}

func (page *HashTableDirectoryPage) SetLocalDepth(index uint32, depth uint8) {
	page.localDepths[index] = depth
}

func (page *HashTableDirectoryPage) IncrLocalDepth(index uint32) {
	page.localDepths[index]++
}

func (page *HashTableDirectoryPage) DecrLocalDepth(index uint32) {
	page.localDepths[index]--
}

// GetLocalDepthMask returns a mask of localDepth 1's for the entry at index
func (page *HashTableDirectoryPage) GetLocalDepthMask(index uint32) uint32 {
	return (1 << page.localDepths[index]) - 1
}

// GetLocalHighBit returns the high bit corresponding to the entry's local
// depth. An entry and its split image differ exactly in this bit.
func (page *HashTableDirectoryPage) GetLocalHighBit(index uint32) uint32 {
	return 1 << (page.GetLocalDepth(index) - 1)
}

// GetSplitImageIndex returns the directory index of the sibling bucket
func (page *HashTableDirectoryPage) GetSplitImageIndex(index uint32) uint32 {
	return index ^ page.GetLocalHighBit(index)
}

// CanShrink returns true when every entry's local depth is strictly below
// the global depth, so halving the directory loses nothing
func (page *HashTableDirectoryPage) CanShrink() bool {
	if page.globalDepth == 0 {
		return false
	}
	size := page.Size()
	for i := uint32(0); i < size; i++ {
		if uint32(page.localDepths[i]) == page.globalDepth {
			return false
		}
	}
	return true
}

// VerifyIntegrity checks the three directory invariants and panics on the
// first violation:
//
//	(A) every local depth is at most the global depth
//	(B) each bucket has exactly 2^(GD - LD) directory entries pointing to it
//	(C) the local depth is the same at each entry pointing to one bucket
func (page *HashTableDirectoryPage) VerifyIntegrity() {
	pageIdToCount := make(map[types.PageID]uint32)
	pageIdToLD := make(map[types.PageID]uint32)
	bucketIds := mapset.NewSet[types.PageID]()

	size := page.Size()
	for curIdx := uint32(0); curIdx < size; curIdx++ {
		curPageId := page.bucketPageIds[curIdx]
		curLD := uint32(page.localDepths[curIdx])

		common.SH_Assert(curLD <= page.globalDepth,
			fmt.Sprintf("local depth %d exceeds global depth %d at index %d", curLD, page.globalDepth, curIdx))

		bucketIds.Add(curPageId)
		pageIdToCount[curPageId] = pageIdToCount[curPageId] + 1

		if knownLD, ok := pageIdToLD[curPageId]; ok {
			common.SH_Assert(curLD == knownLD,
				fmt.Sprintf("local depth mismatch for bucket page %d: %d vs %d at index %d",
					curPageId, knownLD, curLD, curIdx))
		} else {
			pageIdToLD[curPageId] = curLD
		}
	}

	for _, curPageId := range bucketIds.ToSlice() {
		curCount := pageIdToCount[curPageId]
		curLD := pageIdToLD[curPageId]
		requiredCount := uint32(1) << (page.globalDepth - curLD)
		common.SH_Assert(curCount == requiredCount,
			fmt.Sprintf("bucket page %d has %d directory entries, expected %d", curPageId, curCount, requiredCount))
	}
}

// PrintDirectory dumps the directory state for debugging
func (page *HashTableDirectoryPage) PrintDirectory() {
	common.ShPrintf(common.DEBUG_INFO, "======== DIRECTORY (global depth: %d) ========\n", page.globalDepth)
	common.ShPrintf(common.DEBUG_INFO, "| bucket_idx | page_id | local_depth |\n")
	for idx := uint32(0); idx < page.Size(); idx++ {
		common.ShPrintf(common.DEBUG_INFO, "|     %d     |     %d     |     %d     |\n",
			idx, page.bucketPageIds[idx], page.localDepths[idx])
	}
	common.ShPrintf(common.DEBUG_INFO, "==============================================\n")
}
