// this code is based on https://github.com/brunocalza/go-bustub
// there is license and copyright notice in licenses/go-bustub dir

package buffer

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/mkaneda/KawahagiDB/common"
	kerrors "github.com/mkaneda/KawahagiDB/errors"
	"github.com/mkaneda/KawahagiDB/recovery"
	"github.com/mkaneda/KawahagiDB/storage/disk"
	"github.com/mkaneda/KawahagiDB/storage/page"
	"github.com/mkaneda/KawahagiDB/types"
	"github.com/ncw/directio"
)

/**
 * BufferPoolManager keeps a bounded number of pages resident, arbitrates
 * pin accounting and dirty write-back, and delegates victim selection to
 * its replacer.
 *
 * The pool-wide mutex guards the page table, the free list and the frame
 * array. On a fetch miss a frame is claimed and its page table entry
 * installed under the mutex, then the disk read fills the frame under the
 * frame's own latch. Concurrent fetchers of a page that is still loading
 * block on that latch.
 */
type BufferPoolManager struct {
	diskManager   disk.DiskManager
	pages         []*page.Page // index is FrameID
	replacer      Replacer
	freeList      []FrameID
	pageTable     map[types.PageID]FrameID
	logManager    *recovery.LogManager
	nextPageID    types.PageID
	numInstances  uint32
	instanceIndex uint32
	mutex         *sync.Mutex
}

// FetchPage fetches the requested page from the buffer pool.
func (b *BufferPoolManager) FetchPage(pageID types.PageID, accessType AccessType) *page.Page {
	b.mutex.Lock()
	if frameID, ok := b.pageTable[pageID]; ok {
		pg := b.pages[frameID]
		pg.IncPinCount()
		b.replacer.RecordAccess(frameID, accessType)
		b.replacer.SetEvictable(frameID, false)
		b.mutex.Unlock()
		// wait until a concurrent miss on this page has filled the frame
		pg.RLatch()
		pg.RUnlatch()
		if common.EnableDebug {
			common.ShPrintf(common.DEBUG_INFO, "FetchPage: PageId=%d PinCount=%d\n", pg.GetPageId(), pg.PinCount())
		}
		return pg
	}

	frameID, ok := b.allocateNewFrame()
	if !ok {
		b.mutex.Unlock()
		return nil
	}

	pg := page.NewEmpty(pageID)
	pg.WLatch()
	b.pageTable[pageID] = frameID
	b.pages[frameID] = pg
	b.replacer.RecordAccess(frameID, accessType)
	b.replacer.SetEvictable(frameID, false)
	b.mutex.Unlock()

	// the read happens outside the pool mutex; concurrent fetchers of this
	// page block on the frame latch until the contents arrive
	data := directio.AlignedBlock(common.PageSize)
	err := b.diskManager.ReadPage(pageID, data)
	if err != nil {
		pg.WUnlatch()
		b.mutex.Lock()
		delete(b.pageTable, pageID)
		b.pages[frameID] = nil
		b.freeList = append(b.freeList, frameID)
		b.replacer.SetEvictable(frameID, true)
		b.replacer.Remove(frameID)
		b.mutex.Unlock()
		if !errors.Is(err, kerrors.ErrDeallocated) {
			common.ShPrintf(common.ERROR, "FetchPage: ReadPage failed: %v\n", err)
		}
		return nil
	}
	copy(pg.Data()[:], data)
	pg.WUnlatch()

	if common.EnableDebug {
		common.ShPrintf(common.DEBUG_INFO, "FetchPage: PageId=%d PinCount=%d\n", pg.GetPageId(), pg.PinCount())
	}
	return pg
}

// UnpinPage unpins the target page from the buffer pool. Returns false when
// the page is not resident or its pin count is already zero.
func (b *BufferPoolManager) UnpinPage(pageID types.PageID, isDirty bool, accessType AccessType) bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	frameID, ok := b.pageTable[pageID]
	if !ok {
		if common.EnableDebug {
			panic(fmt.Sprintf("UnpinPage: could not find page! PageId=%d", pageID))
		}
		return false
	}

	pg := b.pages[frameID]
	if pg.PinCount() <= 0 {
		if common.EnableDebug {
			panic(fmt.Sprintf("UnpinPage: pin count is already zero! PageId=%d", pageID))
		}
		return false
	}

	pg.DecPinCount()
	if isDirty {
		pg.SetIsDirty(true)
	}
	if pg.PinCount() == 0 {
		b.replacer.SetEvictable(frameID, true)
	}

	if common.EnableDebug {
		common.ShPrintf(common.DEBUG_INFO, "UnpinPage: PageId=%d PinCount=%d\n", pg.GetPageId(), pg.PinCount())
	}
	return true
}

// FlushPage writes the target page back to disk, forcing the log first when
// the page carries log records that are not yet persistent. Pin state is
// untouched and readers may proceed concurrently.
func (b *BufferPoolManager) FlushPage(pageID types.PageID) bool {
	b.mutex.Lock()
	frameID, ok := b.pageTable[pageID]
	if !ok {
		b.mutex.Unlock()
		return false
	}
	pg := b.pages[frameID]
	b.mutex.Unlock()

	if b.logManager != nil && b.logManager.IsEnabledLogging() && pg.GetLSN() > b.logManager.GetPersistentLSN() {
		b.logManager.Flush()
	}

	pg.RLatch()
	err := b.diskManager.WritePage(pageID, pg.Data()[:])
	pg.RUnlatch()
	if err != nil {
		return false
	}
	pg.SetIsDirty(false)
	return true
}

// NewPage allocates a new page in the buffer pool
func (b *BufferPoolManager) NewPage() *page.Page {
	b.mutex.Lock()
	frameID, ok := b.allocateNewFrame()
	if !ok {
		b.mutex.Unlock()
		return nil
	}

	pageID := b.allocatePageID()
	pg := page.NewEmpty(pageID)

	b.pageTable[pageID] = frameID
	b.pages[frameID] = pg
	b.replacer.RecordAccess(frameID, AccessUnknown)
	b.replacer.SetEvictable(frameID, false)
	b.mutex.Unlock()

	if common.EnableDebug {
		common.ShPrintf(common.DEBUG_INFO, "NewPage: returned pageID: %d\n", pageID)
	}
	return pg
}

// DeletePage removes the page from the buffer pool and requests page id
// deallocation. Returns true when the page is not resident, false while it
// is still pinned.
func (b *BufferPoolManager) DeletePage(pageID types.PageID) bool {
	b.mutex.Lock()
	frameID, ok := b.pageTable[pageID]
	if !ok {
		b.mutex.Unlock()
		b.deallocatePage(pageID)
		return true
	}

	pg := b.pages[frameID]
	if pg.PinCount() > 0 {
		b.mutex.Unlock()
		return false
	}

	delete(b.pageTable, pageID)
	b.replacer.Remove(frameID)
	b.pages[frameID] = nil
	b.freeList = append(b.freeList, frameID)
	b.mutex.Unlock()

	b.deallocatePage(pageID)
	return true
}

// FlushAllPages flushes all the pages in the buffer pool to disk.
func (b *BufferPoolManager) FlushAllPages() {
	pageIDs := make([]types.PageID, 0)
	b.mutex.Lock()
	for pageID := range b.pageTable {
		pageIDs = append(pageIDs, pageID)
	}
	b.mutex.Unlock()

	for _, pageID := range pageIDs {
		b.FlushPage(pageID)
	}
}

// FlushAllDirtyPages flushes the dirty pages in the buffer pool to disk.
func (b *BufferPoolManager) FlushAllDirtyPages() bool {
	pageIDs := make([]types.PageID, 0)
	b.mutex.Lock()
	for pageID, frameID := range b.pageTable {
		pg := b.pages[frameID]
		if pg.IsDirty() {
			pageIDs = append(pageIDs, pageID)
		}
	}
	b.mutex.Unlock()

	for _, pageID := range pageIDs {
		if !b.FlushPage(pageID) {
			return false
		}
	}
	return true
}

// allocateNewFrame secures a frame for a caller that holds the pool mutex.
// The free list wins over eviction. A dirty victim is written back before
// its page table entry disappears, so a later fetch of the victim's page id
// cannot read stale bytes from disk.
func (b *BufferPoolManager) allocateNewFrame() (FrameID, bool) {
	if len(b.freeList) > 0 {
		frameID := b.freeList[0]
		b.freeList = b.freeList[1:]
		return frameID, true
	}

	frameID, ok := b.replacer.Evict()
	if !ok {
		return 0, false
	}

	victimPage := b.pages[frameID]
	if victimPage != nil {
		if victimPage.PinCount() != 0 {
			panic(fmt.Sprintf("BPM::allocateNewFrame pin count of page to be cached out must be zero!!!. pageId:%d PinCount:%d",
				victimPage.GetPageId(), victimPage.PinCount()))
		}
		if common.EnableDebug && common.LogLevelSetting&common.CACHE_OUT_IN_INFO > 0 {
			common.ShPrintf(common.CACHE_OUT_IN_INFO, "BPM::allocateNewFrame cache out occurs! pageId:%d\n", victimPage.GetPageId())
		}
		if !victimPage.IsDeallocated() && victimPage.IsDirty() {
			if b.logManager != nil && b.logManager.IsEnabledLogging() {
				b.logManager.Flush()
			}
			victimPage.WLatch()
			b.diskManager.WritePage(victimPage.GetPageId(), victimPage.Data()[:])
			victimPage.WUnlatch()
		}
		delete(b.pageTable, victimPage.GetPageId())
	}
	return frameID, true
}

// allocatePageID hands out the next page id of this instance's residue
// class. Caller must hold the pool mutex.
func (b *BufferPoolManager) allocatePageID() types.PageID {
	pageID := b.nextPageID
	b.nextPageID += types.PageID(b.numInstances)
	common.SH_Assert(uint32(pageID)%b.numInstances == b.instanceIndex,
		"allocated page id falls outside this instance's residue class")
	return pageID
}

// deallocatePage logs the deallocation and tells the disk manager
func (b *BufferPoolManager) deallocatePage(pageID types.PageID) {
	if b.logManager != nil && b.logManager.IsEnabledLogging() {
		logRecord := recovery.NewLogRecordDeallocatePage(pageID)
		b.logManager.AppendLogRecord(logRecord)
		b.logManager.Flush()
	}
	b.diskManager.DeallocatePage(pageID)
}

func (b *BufferPoolManager) GetPages() []*page.Page {
	return b.pages
}

// GetPoolSize returns the number of resident pages
func (b *BufferPoolManager) GetPoolSize() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.pageTable)
}

// PinnedPinCountSum returns the sum of pin counts over all resident pages
func (b *BufferPoolManager) PinnedPinCountSum() int32 {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	sum := int32(0)
	for _, frameID := range b.pageTable {
		sum += b.pages[frameID].PinCount()
	}
	return sum
}

func (b *BufferPoolManager) PrintBufferUsageState(callerAdditionalInfo string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	printStr := fmt.Sprintf("BPM::PrintBufferUsageState %s ", callerAdditionalInfo)
	var pages []*page.Page
	for key := range b.pageTable {
		frameID := b.pageTable[key]
		pg := b.pages[frameID]
		if pg.PinCount() > 0 {
			pages = append(pages, pg)
		}
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].GetPageId() < pages[j].GetPageId() })

	for ii := 0; ii < len(pages); ii++ {
		printStr += fmt.Sprintf("(%d,%d)-", pages[ii].GetPageId(), pages[ii].PinCount())
	}
	fmt.Println(printStr)
}

// NewBufferPoolManager returns a pool that owns the whole page id space
func NewBufferPoolManager(poolSize uint32, diskManager disk.DiskManager, logManager *recovery.LogManager) *BufferPoolManager {
	return NewBufferPoolManagerInstance(poolSize, 1, 0, diskManager, logManager)
}

// NewBufferPoolManagerInstance returns one pool of a multi-instance
// deployment. Page ids allocated here satisfy
// id mod numInstances == instanceIndex, so coexisting instances carve
// disjoint residue classes.
func NewBufferPoolManagerInstance(poolSize uint32, numInstances uint32, instanceIndex uint32,
	diskManager disk.DiskManager, logManager *recovery.LogManager) *BufferPoolManager {
	common.SH_Assert(numInstances > 0, "a pool must consist of at least one instance")
	common.SH_Assert(instanceIndex < numInstances, "instance index out of range")

	replacer := NewLRUKReplacer(poolSize, common.ReplacerK)
	return newBufferPoolManager(poolSize, numInstances, instanceIndex, replacer, diskManager, logManager)
}

// NewBufferPoolManagerWithReplacer returns a pool driven by the passed
// replacement policy
func NewBufferPoolManagerWithReplacer(poolSize uint32, replacer Replacer,
	diskManager disk.DiskManager, logManager *recovery.LogManager) *BufferPoolManager {
	return newBufferPoolManager(poolSize, 1, 0, replacer, diskManager, logManager)
}

func newBufferPoolManager(poolSize uint32, numInstances uint32, instanceIndex uint32, replacer Replacer,
	diskManager disk.DiskManager, logManager *recovery.LogManager) *BufferPoolManager {
	freeList := make([]FrameID, poolSize)
	pages := make([]*page.Page, poolSize)
	for i := uint32(0); i < poolSize; i++ {
		freeList[i] = FrameID(i)
		pages[i] = nil
	}

	// resume the id counter past pages already present in the db file
	nPages := types.PageID(diskManager.Size() / common.PageSize)
	nextPageID := types.PageID(instanceIndex)
	for nextPageID < nPages {
		nextPageID += types.PageID(numInstances)
	}

	return &BufferPoolManager{diskManager, pages, replacer, freeList,
		make(map[types.PageID]FrameID), logManager,
		nextPageID, numInstances, instanceIndex, new(sync.Mutex)}
}
