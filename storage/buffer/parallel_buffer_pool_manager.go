package buffer

import (
	"sync"

	"github.com/mkaneda/KawahagiDB/recovery"
	"github.com/mkaneda/KawahagiDB/storage/disk"
	"github.com/mkaneda/KawahagiDB/storage/page"
	"github.com/mkaneda/KawahagiDB/types"
)

/**
 * ParallelBufferPoolManager spreads the page id space over several
 * BufferPoolManager instances by residue class, so that unrelated page
 * accesses do not contend on one pool mutex.
 */
type ParallelBufferPoolManager struct {
	instances       []*BufferPoolManager
	numInstances    uint32
	startNewPageIdx uint32
	mutex           *sync.Mutex
}

// NewParallelBufferPoolManager builds numInstances pools of poolSize frames
// each over one shared disk manager
func NewParallelBufferPoolManager(numInstances uint32, poolSize uint32,
	diskManager disk.DiskManager, logManager *recovery.LogManager) *ParallelBufferPoolManager {
	instances := make([]*BufferPoolManager, numInstances)
	for i := uint32(0); i < numInstances; i++ {
		instances[i] = NewBufferPoolManagerInstance(poolSize, numInstances, i, diskManager, logManager)
	}
	return &ParallelBufferPoolManager{instances, numInstances, 0, new(sync.Mutex)}
}

// instanceFor routes a page id to the pool owning its residue class
func (p *ParallelBufferPoolManager) instanceFor(pageID types.PageID) *BufferPoolManager {
	return p.instances[uint32(pageID)%p.numInstances]
}

func (p *ParallelBufferPoolManager) FetchPage(pageID types.PageID, accessType AccessType) *page.Page {
	return p.instanceFor(pageID).FetchPage(pageID, accessType)
}

func (p *ParallelBufferPoolManager) UnpinPage(pageID types.PageID, isDirty bool, accessType AccessType) bool {
	return p.instanceFor(pageID).UnpinPage(pageID, isDirty, accessType)
}

func (p *ParallelBufferPoolManager) FlushPage(pageID types.PageID) bool {
	return p.instanceFor(pageID).FlushPage(pageID)
}

func (p *ParallelBufferPoolManager) DeletePage(pageID types.PageID) bool {
	return p.instanceFor(pageID).DeletePage(pageID)
}

// NewPage tries each instance once, round robin. Each call starts one
// instance further on than the previous call started, whichever instance
// served that call.
func (p *ParallelBufferPoolManager) NewPage() *page.Page {
	p.mutex.Lock()
	start := p.startNewPageIdx
	p.startNewPageIdx = (p.startNewPageIdx + 1) % p.numInstances
	p.mutex.Unlock()

	for i := uint32(0); i < p.numInstances; i++ {
		pg := p.instances[(start+i)%p.numInstances].NewPage()
		if pg != nil {
			return pg
		}
	}
	return nil
}

// FlushAllPages flushes every resident page of every instance
func (p *ParallelBufferPoolManager) FlushAllPages() {
	for _, instance := range p.instances {
		instance.FlushAllPages()
	}
}

// GetPoolSize returns the number of resident pages over all instances
func (p *ParallelBufferPoolManager) GetPoolSize() int {
	total := 0
	for _, instance := range p.instances {
		total += instance.GetPoolSize()
	}
	return total
}

// GetNumInstances returns the number of underlying pools
func (p *ParallelBufferPoolManager) GetNumInstances() uint32 {
	return p.numInstances
}
